package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var expressionPattern = regexp.MustCompile(`^(at|cron|rate)\((.+)\)$`)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextFireTimes previews up to n fire times of a compiled schedule after from,
// honoring its start and end bounds.
func (c *Compiler) NextFireTimes(schedule *Schedule, from time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}

	if start := schedule.StartTime(); start != nil && from.Before(*start) {
		from = start.Add(-time.Second)
	}

	end := schedule.EndTime()

	next, err := c.nextFunc(schedule.Expression)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, n)

	for t := next(from); !t.IsZero() && len(times) < n; t = next(t) {
		if end != nil && t.After(*end) {
			break
		}

		times = append(times, t)
	}

	return times, nil
}

// nextFunc returns the successor function of an expression. A zero time means the
// schedule does not fire again.
func (c *Compiler) nextFunc(expression string) (func(time.Time) time.Time, error) {
	match := expressionPattern.FindStringSubmatch(strings.TrimSpace(expression))
	if match == nil {
		return nil, fmt.Errorf("%w: malformed expression %q", ErrInvalidSchedule, expression)
	}

	body := strings.TrimSpace(match[2])

	switch match[1] {
	case "at":
		at, err := time.ParseInLocation(atLayout, body, c.opts.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}

		return func(t time.Time) time.Time {
			if at.After(t) {
				return at
			}

			return time.Time{}
		}, nil
	case "rate":
		every, err := parseRate(body)
		if err != nil {
			return nil, err
		}

		return func(t time.Time) time.Time { return t.Add(every) }, nil
	default:
		spec, err := standardCron(body)
		if err != nil {
			return nil, err
		}

		schedule, err := cronParser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}

		loc := c.opts.Location

		return func(t time.Time) time.Time { return schedule.Next(t.In(loc)) }, nil
	}
}

// parseRate reads "<value> <unit>" where unit is minute(s), hour(s) or day(s).
func parseRate(body string) (time.Duration, error) {
	fields := strings.Fields(body)
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: rate %q must be \"<value> <unit>\"", ErrInvalidSchedule, body)
	}

	value, err := strconv.Atoi(fields[0])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: rate value %q must be a positive integer", ErrInvalidSchedule, fields[0])
	}

	var unit time.Duration

	switch strings.TrimSuffix(fields[1], "s") {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: unknown rate unit %q", ErrInvalidSchedule, fields[1])
	}

	return time.Duration(value) * unit, nil
}

// standardCron converts a six-field rule cron (minutes hours day-of-month month
// day-of-week year) to the five-field form. Five-field input is returned as is.
// The year field must be "*" and day-of-week numbers shift from 1-7 to 0-6.
func standardCron(body string) (string, error) {
	fields := strings.Fields(body)

	switch len(fields) {
	case 5:
		return body, nil
	case 6:
	default:
		return "", fmt.Errorf("%w: cron %q must have 5 or 6 fields", ErrInvalidSchedule, body)
	}

	if fields[5] != "*" {
		return "", fmt.Errorf("%w: cron year field %q cannot be previewed", ErrInvalidSchedule, fields[5])
	}

	for _, field := range fields[:5] {
		if unsupportedCron.MatchString(field) {
			return "", fmt.Errorf("%w: cron field %q cannot be previewed", ErrInvalidSchedule, field)
		}
	}

	for i := range fields[:5] {
		if fields[i] == "?" {
			fields[i] = "*"
		}
	}

	dow, err := shiftWeekdays(fields[4])
	if err != nil {
		return "", err
	}

	fields[4] = dow

	return strings.Join(fields[:5], " "), nil
}

var unsupportedCron = regexp.MustCompile(`#|(^|,)L|\d[LW]`)

var weekdayNumber = regexp.MustCompile(`\d+`)

func shiftWeekdays(field string) (string, error) {
	// Step values such as */2 are intervals, not weekdays.
	base, step, hasStep := strings.Cut(field, "/")

	var err error

	shifted := weekdayNumber.ReplaceAllStringFunc(base, func(digits string) string {
		n, convErr := strconv.Atoi(digits)
		if convErr != nil || n < 1 || n > 7 {
			err = fmt.Errorf("%w: day-of-week %q out of range 1-7", ErrInvalidSchedule, digits)

			return digits
		}

		return strconv.Itoa(n - 1)
	})

	if err != nil {
		return "", err
	}

	if hasStep {
		return shifted + "/" + step, nil
	}

	return shifted, nil
}
