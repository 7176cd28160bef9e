// Package web provides the HTTP API for journeys and journey runs.
package web

import (
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/registrar"
	"github.com/dukex/journeys/pkg/services"
)

// CreateJourneyRequest represents the request body for creating a journey. It is
// also the body of a compile preview.
type CreateJourneyRequest struct {
	Account     string                    `json:"account"               validate:"required"`
	Name        string                    `json:"name"                  validate:"required,min=1"`
	Description string                    `json:"description,omitempty"`
	Active      bool                      `json:"active"`
	Start       string                    `json:"start"                 validate:"required"`
	States      map[string]*models.Action `json:"states"                validate:"dive"`
	Trigger     models.Trigger            `json:"trigger"`
	Metadata    map[string]any            `json:"metadata,omitempty"`
}

func (r CreateJourneyRequest) journey() *models.Journey {
	return &models.Journey{
		Account:     r.Account,
		Name:        r.Name,
		Description: r.Description,
		Active:      r.Active,
		Start:       r.Start,
		States:      r.States,
		Trigger:     r.Trigger,
		Metadata:    r.Metadata,
	}
}

// UpdateJourneyRequest represents the request body for updating a journey. All
// fields are optional to support partial updates.
type UpdateJourneyRequest struct {
	Name        *string                   `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description *string                   `json:"description,omitempty"`
	Active      *bool                     `json:"active,omitempty"`
	Start       *string                   `json:"start,omitempty"       validate:"omitempty,min=1"`
	States      map[string]*models.Action `json:"states,omitempty"      validate:"omitempty,dive"`
	Trigger     *models.Trigger           `json:"trigger,omitempty"`
	Metadata    map[string]any            `json:"metadata,omitempty"`
}

func (r UpdateJourneyRequest) service() services.UpdateJourneyRequest {
	return services.UpdateJourneyRequest{
		Name:        r.Name,
		Description: r.Description,
		Active:      r.Active,
		Start:       r.Start,
		States:      r.States,
		Trigger:     r.Trigger,
		Metadata:    r.Metadata,
	}
}

// StateResultRequest represents a per-state result reported by an action task.
type StateResultRequest struct {
	StateName string           `json:"state_name"       validate:"required"`
	Status    models.RunStatus `json:"status,omitempty" validate:"omitempty,oneof=completed failed"`
	Result    map[string]any   `json:"result,omitempty"`
}

// CleanupStepResponse is one teardown step of a deleted journey.
type CleanupStepResponse struct {
	Step   registrar.Step       `json:"step"`
	Status registrar.StepStatus `json:"status"`
	Error  string               `json:"error,omitempty"`
}

// DeleteJourneyResponse reports the teardown of a deleted journey.
type DeleteJourneyResponse struct {
	JourneyID string                `json:"journey_id"`
	Steps     []CleanupStepResponse `json:"steps"`
}

func newDeleteJourneyResponse(report *registrar.CleanupReport) DeleteJourneyResponse {
	response := DeleteJourneyResponse{
		JourneyID: report.JourneyID,
		Steps:     make([]CleanupStepResponse, 0, len(report.Steps)),
	}

	for _, step := range report.Steps {
		stepResponse := CleanupStepResponse{Step: step.Step, Status: step.Status}
		if step.Err != nil {
			stepResponse.Error = step.Err.Error()
		}

		response.Steps = append(response.Steps, stepResponse)
	}

	return response
}
