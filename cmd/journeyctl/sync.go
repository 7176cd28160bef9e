package main

import (
	"context"
	"fmt"

	"github.com/dukex/journeys/pkg/log"
	"github.com/dukex/journeys/pkg/registrar"
	"github.com/dukex/journeys/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func registrarFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region of the workflow, rule and schedule services",
			Sources: cli.EnvVars("AWS_REGION"),
		},
		&cli.StringFlag{
			Name:     "state-machine-arn-prefix",
			Usage:    "Prefix that, followed by a journey id, forms its state machine ARN",
			Required: true,
			Sources:  cli.EnvVars("STATE_MACHINE_ARN_PREFIX"),
		},
		&cli.StringFlag{
			Name:    "role-arn",
			Usage:   "Execution role of state machines and schedules",
			Sources: cli.EnvVars("ROLE_ARN"),
		},
		&cli.StringFlag{
			Name:    "log-group-arn",
			Usage:   "Log group state machine executions log to",
			Sources: cli.EnvVars("LOG_GROUP_ARN"),
		},
		&cli.StringFlag{
			Name:    "event-bus-name",
			Usage:   "Event bus journey rules are attached to",
			Value:   registrar.DefaultEventBusName,
			Sources: cli.EnvVars("EVENT_BUS_NAME"),
		},
		&cli.StringFlag{
			Name:    "schedule-group",
			Usage:   "Schedule group journey schedules are created in",
			Value:   registrar.DefaultScheduleGroup,
			Sources: cli.EnvVars("SCHEDULE_GROUP"),
		},
	}
}

func newRegistrar(ctx context.Context, command *cli.Command) (*registrar.Registrar, error) {
	return registrar.NewAWS(ctx, command.String("aws-region"), registrar.Config{
		StateMachineARNPrefix: command.String("state-machine-arn-prefix"),
		RoleARN:               command.String("role-arn"),
		LogGroupARN:           command.String("log-group-arn"),
		EventBusName:          command.String("event-bus-name"),
		ScheduleGroup:         command.String("schedule-group"),
		ScheduleTimezone:      command.String("schedule-timezone"),
	}, log.WithModule("journeyctl"))
}

func NewSyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Aliases:   []string{"s"},
		Usage:     "Compile a journey file and register its workflow and trigger",
		ArgsUsage: "<file>",
		Flags: append([]cli.Flag{
			idFlag,
			&cli.BoolFlag{
				Name:  "create",
				Usage: "Create the resources first instead of updating them",
			},
		}, registrarFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			c, err := newCompiler(command)
			if err != nil {
				return err
			}

			journey, err := loadJourney(command)
			if err != nil {
				return err
			}

			reg, err := newRegistrar(ctx, command)
			if err != nil {
				return err
			}

			syncService := services.NewSync(c, reg, log.WithModule("journeyctl"))

			if _, err := syncService.Sync(ctx, journey, command.Bool("create")); err != nil {
				return err
			}

			_, err = fmt.Fprintf(command.Root().Writer, "synced %s (%s)\n", journey.ID, reg.StateMachineARN(journey.ID))

			return err
		},
	}
}

func NewDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"d"},
		Usage:     "Remove the workflow and trigger of a journey",
		ArgsUsage: "<journey-id>",
		Flags:     registrarFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			journeyID := command.Args().First()
			if journeyID == "" {
				return ErrMissingJourneyID
			}

			reg, err := newRegistrar(ctx, command)
			if err != nil {
				return err
			}

			report := services.NewSync(nil, reg, log.WithModule("journeyctl")).Delete(ctx, journeyID)

			return printReport(command, report)
		},
	}
}

func printReport(command *cli.Command, report *registrar.CleanupReport) error {
	out := command.Root().Writer

	for _, step := range report.Steps {
		line := fmt.Sprintf("%-22s %s", step.Step, step.Status)
		if step.Err != nil {
			line += ": " + step.Err.Error()
		}

		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d", ErrIncompleteDeregister, len(failed), len(report.Steps))
	}

	return nil
}
