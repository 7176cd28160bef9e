package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/models"
	cli "github.com/urfave/cli/v3"
)

var (
	ErrMissingFile          = errors.New("a journey file is required")
	ErrNotEventJourney      = errors.New("journey is not event-triggered")
	ErrNotScheduleJourney   = errors.New("journey is not schedule-triggered")
	ErrInvalidJourneys      = errors.New("invalid journeys found")
	ErrMissingJourneyID     = errors.New("a journey id is required")
	ErrIncompleteDeregister = errors.New("some cleanup steps failed")
)

var idFlag = &cli.StringFlag{
	Name:  "id",
	Usage: "Journey id used in the output. Defaults to the document id",
}

func newCompiler(command *cli.Command) (*compiler.Compiler, error) {
	location, err := time.LoadLocation(command.String("schedule-timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone: %w", err)
	}

	return compiler.New(compiler.Options{
		TaskResource: command.String("task-resource-arn"),
		Location:     location,
	}), nil
}

// loadJourney reads the file named by the first argument, applying the --id flag
// when it is set.
func loadJourney(command *cli.Command) (*models.Journey, error) {
	path := command.Args().First()
	if path == "" {
		return nil, ErrMissingFile
	}

	journey, err := models.LoadJourneyFile(path)
	if err != nil {
		return nil, err
	}

	if id := command.String("id"); id != "" {
		journey.ID = id
	}

	if journey.ID == "" {
		journey.ID = "preview"
	}

	return journey, nil
}

func printJSON(command *cli.Command, value any) error {
	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check that journey files decode and compile",
		ArgsUsage: "<file>...",
		Action: func(_ context.Context, command *cli.Command) error {
			if command.Args().Len() == 0 {
				return ErrMissingFile
			}

			c, err := newCompiler(command)
			if err != nil {
				return err
			}

			out := command.Root().Writer
			invalid := 0

			for _, path := range command.Args().Slice() {
				journey, err := models.LoadJourneyFile(path)
				if err == nil {
					_, err = c.Compile(journey)
				}

				if err != nil {
					invalid++

					_, _ = fmt.Fprintf(out, "%s: %v\n", path, err)

					continue
				}

				_, _ = fmt.Fprintf(out, "%s: ok\n", path)
			}

			if invalid > 0 {
				return fmt.Errorf("%w: %d of %d", ErrInvalidJourneys, invalid, command.Args().Len())
			}

			return nil
		},
	}
}

func NewCompileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Aliases:   []string{"c"},
		Usage:     "Print the state machine definition of a journey",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{idFlag},
		Action: func(_ context.Context, command *cli.Command) error {
			c, err := newCompiler(command)
			if err != nil {
				return err
			}

			journey, err := loadJourney(command)
			if err != nil {
				return err
			}

			definition, err := c.Definition(journey)
			if err != nil {
				return err
			}

			return printJSON(command, definition)
		},
	}
}

func NewPatternCommand() *cli.Command {
	return &cli.Command{
		Name:      "pattern",
		Usage:     "Print the event pattern of an event-triggered journey",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{idFlag},
		Action: func(_ context.Context, command *cli.Command) error {
			c, err := newCompiler(command)
			if err != nil {
				return err
			}

			journey, err := loadJourney(command)
			if err != nil {
				return err
			}

			if journey.Trigger.Type != models.TriggerTypeEvent {
				return ErrNotEventJourney
			}

			pattern, err := c.EventPattern(journey)
			if err != nil {
				return err
			}

			return printJSON(command, pattern)
		},
	}
}

func NewScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "schedule",
		Usage:     "Print the schedule of a schedule-triggered journey and its next fire times",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			idFlag,
			&cli.IntFlag{
				Name:  "next",
				Usage: "Number of upcoming fire times to list",
				Value: 5,
			},
			&cli.TimestampFlag{
				Name:  "from",
				Usage: "Instant to list fire times after (RFC 3339). Defaults to now",
				Config: cli.TimestampConfig{
					Layouts: []string{time.RFC3339},
				},
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			c, err := newCompiler(command)
			if err != nil {
				return err
			}

			journey, err := loadJourney(command)
			if err != nil {
				return err
			}

			if journey.Trigger.Type != models.TriggerTypeSchedule {
				return ErrNotScheduleJourney
			}

			schedule, err := c.Schedule(journey)
			if err != nil {
				return err
			}

			from := command.Timestamp("from")
			if from.IsZero() {
				from = time.Now()
			}

			next, err := c.NextFireTimes(schedule, from, command.Int("next"))
			if err != nil {
				return err
			}

			return printJSON(command, struct {
				*compiler.Schedule

				NextFireTimes []time.Time `json:"next_fire_times"`
			}{schedule, next})
		},
	}
}
