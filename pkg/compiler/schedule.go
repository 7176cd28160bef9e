package compiler

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukex/journeys/pkg/models"
)

const atLayout = "2006-01-02T15:04:05"

// Schedule is a compiled schedule trigger. Start and End are the optional active
// bounds, in epoch seconds, passed through from the journey.
type Schedule struct {
	Expression string `json:"expression"`
	Start      *int64 `json:"start,omitempty"`
	End        *int64 `json:"end,omitempty"`
}

// StartTime returns Start as a time, or nil.
func (s *Schedule) StartTime() *time.Time { return epochTime(s.Start) }

// EndTime returns End as a time, or nil.
func (s *Schedule) EndTime() *time.Time { return epochTime(s.End) }

func epochTime(epoch *int64) *time.Time {
	if epoch == nil {
		return nil
	}

	t := time.Unix(*epoch, 0).UTC()

	return &t
}

// Schedule builds the schedule expression of a schedule-triggered journey.
func (c *Compiler) Schedule(journey *models.Journey) (*Schedule, error) {
	trigger := journey.Trigger.Schedule
	if journey.Trigger.Type != models.TriggerTypeSchedule || trigger == nil {
		return nil, compileError(journey.ID, "", invalidTriggerType(journey.Trigger.Type))
	}

	expression, err := c.ScheduleExpression(trigger.Schedule)
	if err != nil {
		return nil, compileError(journey.ID, "", err)
	}

	return &Schedule{
		Expression: expression,
		Start:      trigger.Schedule.Start,
		End:        trigger.Schedule.End,
	}, nil
}

// ScheduleExpression renders exactly one of at, cron or rate.
func (c *Compiler) ScheduleExpression(spec models.ScheduleSpec) (string, error) {
	cron := strings.TrimSpace(spec.Cron)
	rate := strings.TrimSpace(spec.Rate)

	set := 0
	for _, ok := range []bool{spec.At != nil, cron != "", rate != ""} {
		if ok {
			set++
		}
	}

	switch {
	case set == 0:
		return "", fmt.Errorf("%w: one of at, cron or rate is required", ErrInvalidSchedule)
	case set > 1:
		return "", fmt.Errorf("%w: only one of at, cron or rate may be set", ErrInvalidSchedule)
	}

	switch {
	case spec.At != nil:
		return "at(" + time.Unix(*spec.At, 0).In(c.opts.Location).Format(atLayout) + ")", nil
	case cron != "":
		return "cron(" + cron + ")", nil
	default:
		return "rate(" + rate + ")", nil
	}
}
