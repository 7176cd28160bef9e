package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dukex/journeys/pkg/cmd"
	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/log"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/dukex/journeys/pkg/registrar"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort = 9091
	serviceName = "journeys-api"
)

func main() {
	command := &cli.Command{
		Name:                  "journeys-api",
		Usage:                 "Create journeys and keep their workflows and triggers registered",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (file path, file://, postgres:// or postgresql://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Lifecycle event bus (gochannel, kafka). Empty disables events",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers for the kafka event bus",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for journey edit locks. Empty uses in-process locks",
				Sources: cli.EnvVars("REDIS_URL"),
			},
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
				Name:     "role-arn",
				Usage:    "Execution role of state machines and schedules",
				Required: true,
				Sources:  cli.EnvVars("ROLE_ARN"),
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
			&cli.StringFlag{
				Name:    "schedule-timezone",
				Usage:   "IANA timezone at() schedules are rendered and evaluated in",
				Value:   "UTC",
				Sources: cli.EnvVars("SCHEDULE_TIMEZONE"),
			},
			&cli.StringFlag{
				Name:     "task-resource-arn",
				Usage:    "Executor every task state invokes",
				Required: true,
				Sources:  cli.EnvVars("TASK_RESOURCE_ARN"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")

	logger.InfoContext(ctx, "Initializing Journeys API")

	location, err := time.LoadLocation(command.String("schedule-timezone"))
	if err != nil {
		return fmt.Errorf("invalid schedule timezone: %w", err)
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	journeyLocker, closeLocker, err := cmd.NewLocker(command.String("redis-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := closeLocker(); err != nil {
			logger.ErrorContext(ctx, "Failed to close locker", "error", err)
		}
	}()

	reg, err := registrar.NewAWS(ctx, command.String("aws-region"), registrar.Config{
		StateMachineARNPrefix: command.String("state-machine-arn-prefix"),
		RoleARN:               command.String("role-arn"),
		LogGroupARN:           command.String("log-group-arn"),
		EventBusName:          command.String("event-bus-name"),
		ScheduleGroup:         command.String("schedule-group"),
		ScheduleTimezone:      location.String(),
	}, logger)
	if err != nil {
		return err
	}

	opts := []APIOption{}

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return err
	}

	if eventBus != nil {
		defer func() {
			if err := eventBus.Close(); err != nil {
				logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		}()

		opts = append(opts, WithEventBus(eventBus))
	}

	if command.Bool("otel") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()

		opts = append(opts, WithTracer(tracer))
	}

	api := NewAPI(
		logger,
		persistence,
		compiler.New(compiler.Options{
			TaskResource: command.String("task-resource-arn"),
			Location:     location,
		}),
		reg,
		journeyLocker,
		opts...,
	)

	if err := api.WatchEvents(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to lifecycle events: %w", err)
	}

	return api.Start(command.Int("port"))
}
