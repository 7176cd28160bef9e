// Package main provides journeyctl, a command line tool that compiles journey
// documents and manages their registered resources.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dukex/journeys/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:                  "journeyctl",
		Usage:                 "Compile journeys and manage their workflows and triggers",
		EnableShellCompletion: true,
		Writer:                out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "task-resource-arn",
				Usage:   "Executor every task state invokes",
				Sources: cli.EnvVars("TASK_RESOURCE_ARN"),
			},
			&cli.StringFlag{
				Name:    "schedule-timezone",
				Usage:   "IANA timezone at() schedules are rendered in",
				Value:   "UTC",
				Sources: cli.EnvVars("SCHEDULE_TIMEZONE"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), "text")

			return ctx, nil
		},
		Commands: []*cli.Command{
			NewValidateCommand(),
			NewCompileCommand(),
			NewPatternCommand(),
			NewScheduleCommand(),
			NewSyncCommand(),
			NewDeleteCommand(),
		},
	}
}
