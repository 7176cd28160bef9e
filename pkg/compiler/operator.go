package compiler

import (
	"fmt"
	"strconv"

	"github.com/dukex/journeys/pkg/models"
)

// Predicate is a list of alternatives in the event rule language; a field matches
// when any element matches.
type Predicate []any

var numericSymbols = map[models.OperatorKind]string{
	models.OperatorGreaterThan:        ">",
	models.OperatorGreaterThanOrEqual: ">=",
	models.OperatorLessThan:           "<",
	models.OperatorLessThanOrEqual:    "<=",
}

// TranslateOperator maps a filter operator and its value to an event rule predicate.
// It is total over the declared operators and fails for anything else.
func TranslateOperator(operator models.OperatorKind, value any) (Predicate, error) {
	switch operator {
	case models.OperatorEqual:
		return Predicate{value}, nil
	case models.OperatorNotEqual:
		return Predicate{map[string]any{"anything-but": []any{value}}}, nil
	case models.OperatorExists:
		return Predicate{map[string]any{"exists": true}}, nil
	case models.OperatorNotExists:
		return Predicate{map[string]any{"exists": false}}, nil
	case models.OperatorStartsWith:
		return Predicate{map[string]any{"prefix": value}}, nil
	case models.OperatorNotStartsWith:
		return Predicate{map[string]any{"anything-but": map[string]any{"prefix": value}}}, nil
	case models.OperatorEndsWith:
		return Predicate{map[string]any{"suffix": value}}, nil
	case models.OperatorNotEndsWith:
		return Predicate{map[string]any{"anything-but": map[string]any{"suffix": value}}}, nil
	case models.OperatorGreaterThan, models.OperatorGreaterThanOrEqual,
		models.OperatorLessThan, models.OperatorLessThanOrEqual:
		number, err := numeric(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFilter, operator, err)
		}

		return Predicate{map[string]any{"numeric": []any{numericSymbols[operator], number}}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, operator)
	}
}

// numeric accepts the number shapes JSON and YAML decoding produce, plus numeric strings.
func numeric(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", v)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not a number", value, value)
	}
}
