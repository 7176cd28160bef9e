package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"
)

// ErrInvalidConfig is returned when a typed config view is missing a field or holds a bad value.
var ErrInvalidConfig = errors.New("invalid action config")

// WaitConfig configures a wait action. Seconds is decoded as a float so fractional
// values are seen, not truncated.
type WaitConfig struct {
	Seconds *float64 `mapstructure:"seconds"`
}

// MatchConfig configures match_all and match_any actions.
type MatchConfig struct {
	Filters []Filter `mapstructure:"filters"`
}

// DecodeConfig decodes the action's free-form config into out. Numbers coming from
// JSON (float64) or YAML (int) decode into numeric fields alike.
func (a *Action) DecodeConfig(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(a.Config); err != nil {
		return fmt.Errorf("decode %s config: %w", a.Type, err)
	}

	return nil
}

// WaitSeconds returns the duration of a wait action.
func (a *Action) WaitSeconds() (int, error) {
	var cfg WaitConfig
	if err := a.DecodeConfig(&cfg); err != nil {
		return 0, err
	}

	if cfg.Seconds == nil {
		return 0, fmt.Errorf("%w: seconds is required", ErrInvalidConfig)
	}

	seconds := *cfg.Seconds
	if seconds < 0 {
		return 0, fmt.Errorf("%w: seconds must not be negative, got %v", ErrInvalidConfig, seconds)
	}

	if seconds != math.Trunc(seconds) || seconds > math.MaxInt32 {
		return 0, fmt.Errorf("%w: seconds must be a whole number, got %v", ErrInvalidConfig, seconds)
	}

	return int(seconds), nil
}
