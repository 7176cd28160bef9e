package models

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJourney parses a journey document. YAML is a superset of JSON, so both
// formats are accepted. The document is checked against JourneySchema before it is
// decoded and the decoded journey is validated with its struct tags.
func DecodeJourney(data []byte) (*Journey, error) {
	var document any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if err := ValidateDocument(document); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	var journey Journey
	if err := json.Unmarshal(raw, &journey); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if err := ValidateJourney(&journey); err != nil {
		return nil, err
	}

	return &journey, nil
}

// LoadJourneyFile reads and decodes a journey document from disk.
func LoadJourneyFile(path string) (*Journey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read journey file %s: %w", path, err)
	}

	journey, err := DecodeJourney(data)
	if err != nil {
		return nil, fmt.Errorf("journey file %s: %w", path, err)
	}

	return journey, nil
}

// ValidateJourney applies the struct validation rules of Journey.
func ValidateJourney(journey *Journey) error {
	if err := validate.Struct(journey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}
