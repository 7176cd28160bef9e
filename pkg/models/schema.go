package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when a journey document does not match JourneySchema.
var ErrInvalidDocument = errors.New("invalid journey document")

// JSONSchema represents a JSON Schema for document validation
type JSONSchema struct {
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property
type Property struct {
	Type                 string               `json:"type,omitempty"`
	Description          string               `json:"description,omitempty"`
	Enum                 []any                `json:"enum,omitempty"`
	MinLength            *int                 `json:"minLength,omitempty"`
	Minimum              *float64             `json:"minimum,omitempty"`
	Items                *Property            `json:"items,omitempty"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	AdditionalProperties *Property            `json:"additionalProperties,omitempty"`
	Required             []string             `json:"required,omitempty"`
}

func nonEmpty() *int {
	n := 1

	return &n
}

func zero() *float64 {
	var f float64

	return &f
}

func enumOf[T ~string](values ...T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}

	return out
}

var epochSeconds = &Property{Type: "integer", Minimum: zero()}

var filterSchema = &Property{
	Type:     "object",
	Required: []string{"field", "operator"},
	Properties: map[string]*Property{
		"field": {Type: "string", MinLength: nonEmpty()},
		"operator": {Type: "string", Enum: enumOf(
			OperatorEqual, OperatorNotEqual, OperatorExists, OperatorNotExists,
			OperatorStartsWith, OperatorNotStartsWith, OperatorEndsWith, OperatorNotEndsWith,
			OperatorGreaterThan, OperatorGreaterThanOrEqual, OperatorLessThan, OperatorLessThanOrEqual,
		)},
	},
}

// JourneySchema describes the journey document accepted by the loader and the API.
var JourneySchema = &JSONSchema{
	Type:        "object",
	Title:       "Journey",
	Description: "A trigger plus a named graph of action states",
	Required:    []string{"account", "name", "start", "trigger"},
	Properties: map[string]*Property{
		"id":          {Type: "string"},
		"account":     {Type: "string", MinLength: nonEmpty()},
		"name":        {Type: "string", MinLength: nonEmpty()},
		"description": {Type: "string"},
		"active":      {Type: "boolean"},
		"start":       {Type: "string", MinLength: nonEmpty()},
		"metadata":    {Type: "object"},
		"states": {
			Type: "object",
			AdditionalProperties: &Property{
				Type:     "object",
				Required: []string{"type"},
				Properties: map[string]*Property{
					"type":    {Type: "string", Enum: enumOf(ActionKinds...)},
					"config":  {Type: "object"},
					"next":    {Type: "string", MinLength: nonEmpty()},
					"end":     {Type: "boolean"},
					"comment": {Type: "string"},
				},
			},
		},
		"trigger": {
			Type:     "object",
			Required: []string{"type", "config"},
			Properties: map[string]*Property{
				"type": {Type: "string", Enum: enumOf(TriggerTypeEvent, TriggerTypeSchedule)},
				"config": {
					Type: "object",
					Properties: map[string]*Property{
						"source":         {Type: "string"},
						"detail_type":    {Type: "string"},
						"detail_filters": {Type: "array", Items: filterSchema},
						"schedule": {
							Type: "object",
							Properties: map[string]*Property{
								"at":    epochSeconds,
								"cron":  {Type: "string", MinLength: nonEmpty()},
								"rate":  {Type: "string", MinLength: nonEmpty()},
								"start": epochSeconds,
								"end":   epochSeconds,
							},
						},
					},
				},
			},
		},
	},
}

// ValidateDocument checks a decoded (map-based) journey document against JourneySchema.
func ValidateDocument(document any) error {
	schemaLoader := gojsonschema.NewGoLoader(JourneySchema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(messages, "; "))
	}

	return nil
}
