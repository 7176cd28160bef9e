package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// MaxPreviewFireTimes caps the next query parameter of a compile preview.
const MaxPreviewFireTimes = 50

type APIHandlers struct {
	journeys  *services.Journeys
	runs      *services.Runs
	sync      *services.Sync
	validator *validator.Validate
}

func NewAPIHandlers(
	journeys *services.Journeys,
	runs *services.Runs,
	sync *services.Sync,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		journeys:  journeys,
		runs:      runs,
		sync:      sync,
		validator: validator,
	}
}

func (h *APIHandlers) GetJourneys(c fiber.Ctx) error {
	req, err := parseListJourneysRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.journeys.List(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"journeys":      result.Journeys,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

func parseListJourneysRequest(c fiber.Ctx) (*services.ListJourneysRequest, error) {
	req := &services.ListJourneysRequest{Account: c.Query("account")}

	var err error

	if req.Limit, err = intQuery(c, "limit"); err != nil {
		return nil, err
	}

	if req.Offset, err = intQuery(c, "offset"); err != nil {
		return nil, err
	}

	if activeStr := c.Query("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			return nil, err
		}

		req.Active = &active
	}

	return req, nil
}

func intQuery(c fiber.Ctx, key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, nil
	}

	return strconv.Atoi(value)
}

func (h *APIHandlers) GetJourney(c fiber.Ctx) error {
	journey, err := h.journeys.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(journey)
}

func (h *APIHandlers) CreateJourney(c fiber.Ctx) error {
	var req CreateJourneyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.journeys.Create(c.Context(), req.journey())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateJourney(c fiber.Ctx) error {
	var req UpdateJourneyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.journeys.Update(c.Context(), c.Params("id"), req.service())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DuplicateJourney(c fiber.Ctx) error {
	duplicate, err := h.journeys.Duplicate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(duplicate)
}

// DeleteJourney removes the journey and reports the teardown of its resources.
// Failed teardown steps do not fail the request.
func (h *APIHandlers) DeleteJourney(c fiber.Ctx) error {
	report, err := h.journeys.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(newDeleteJourneyResponse(report))
}

// CompileJourney previews what a journey compiles to without registering it.
func (h *APIHandlers) CompileJourney(c fiber.Ctx) error {
	next, err := intQuery(c, "next")
	if err != nil || next < 0 || next > MaxPreviewFireTimes {
		return badRequest(c, "next must be an integer between 0 and "+strconv.Itoa(MaxPreviewFireTimes))
	}

	var req CreateJourneyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	journey := req.journey()
	journey.ID = c.Query("id", "preview")

	preview, err := h.sync.Preview(journey, time.Now().UTC(), next)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(preview)
}

func (h *APIHandlers) GetJourneyRuns(c fiber.Ctx) error {
	req := services.ListRunsRequest{Status: models.RunStatus(c.Query("status"))}

	var err error

	if req.Limit, err = intQuery(c, "limit"); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if req.Offset, err = intQuery(c, "offset"); err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	runs, err := h.runs.List(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.runs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

// HandleTask receives the create_run and update_run callbacks of a running workflow.
func (h *APIHandlers) HandleTask(c fiber.Ctx) error {
	var input services.TaskInput
	if err := c.Bind().JSON(&input); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	output, err := h.runs.HandleTask(c.Context(), input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(output)
}

func (h *APIHandlers) RecordStateResult(c fiber.Ctx) error {
	var req StateResultRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.runs.RecordStateResult(c.Context(), c.Params("id"), req.StateName, services.StateResult{
		Status: req.Status,
		Result: req.Result,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.journeys.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Journeys API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Journeys API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	j := app.Group("/journeys")
	j.Get("/", h.GetJourneys)
	j.Post("/", h.CreateJourney)
	j.Post("/compile", h.CompileJourney)
	j.Get("/:id", h.GetJourney)
	j.Patch("/:id", h.UpdateJourney)
	j.Delete("/:id", h.DeleteJourney)
	j.Post("/:id/duplicate", h.DuplicateJourney)
	j.Get("/:id/runs", h.GetJourneyRuns)

	r := app.Group("/runs")
	r.Get("/:id", h.GetRun)
	r.Post("/:id/results", h.RecordStateResult)

	app.Post("/tasks", h.HandleTask)
	app.Get("/health", h.HealthCheck)
}
