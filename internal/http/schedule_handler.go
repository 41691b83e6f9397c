package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/application"
	"github.com/maxton76/stall-bokning-sub003/internal/fairness"
	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/recurrence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// ScheduleAPI is the application surface consumed by the schedule handler.
type ScheduleAPI interface {
	CreateSchedule(ctx context.Context, params application.CreateScheduleParams) (persistence.RoutineSchedule, error)
	PreviewSchedule(ctx context.Context, params application.PreviewScheduleParams) (fairness.Plan, error)
	PublishSchedule(ctx context.Context, params application.PublishScheduleParams) (application.PublishResult, error)
	GetSchedule(ctx context.Context, id string) (persistence.RoutineSchedule, error)
	ListSchedules(ctx context.Context, stableID string, enabledOnly bool) ([]persistence.RoutineSchedule, error)
}

// ScheduleHandler serves schedule definition endpoints.
type ScheduleHandler struct {
	service   ScheduleAPI
	responder responder
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(service ScheduleAPI, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger)}
}

type scheduleRequest struct {
	OrganizationID      string `json:"organization_id"`
	StableID            string `json:"stable_id"`
	TemplateID          string `json:"template_id"`
	StartDate           string `json:"start_date"`
	EndDate             string `json:"end_date"`
	RepeatPattern       string `json:"repeat_pattern"`
	RepeatDays          []int  `json:"repeat_days"`
	IncludeHolidays     bool   `json:"include_holidays"`
	StartTime           string `json:"scheduled_start_time"`
	AssignmentMode      string `json:"assignment_mode"`
	DefaultAssignedTo   string `json:"default_assigned_to"`
	DefaultAssignedName string `json:"default_assigned_to_name"`
	PointsValue         int    `json:"points_value"`
	Enabled             *bool  `json:"enabled"`
}

type scheduleResponse struct {
	ID                string  `json:"id"`
	OrganizationID    string  `json:"organization_id"`
	StableID          string  `json:"stable_id"`
	TemplateID        string  `json:"template_id"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date"`
	RepeatPattern     string  `json:"repeat_pattern"`
	RepeatDays        []int   `json:"repeat_days,omitempty"`
	IncludeHolidays   bool    `json:"include_holidays"`
	StartTime         string  `json:"scheduled_start_time"`
	AssignmentMode    string  `json:"assignment_mode"`
	DefaultAssignedTo *string `json:"default_assigned_to,omitempty"`
	PointsValue       int     `json:"points_value"`
	Enabled           bool    `json:"enabled"`
	CreatedBy         string  `json:"created_by"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type planSlotResponse struct {
	Date              string  `json:"date"`
	SuggestedAssignee *string `json:"suggested_assignee,omitempty"`
	SuggestedName     *string `json:"suggested_assignee_name,omitempty"`
}

type planResponse struct {
	PointsValue int                `json:"points_value"`
	Slots       []planSlotResponse `json:"slots"`
}

type publishRequest struct {
	Entries []publishEntry `json:"entries"`
}

type publishEntry struct {
	Date         string `json:"date"`
	AssigneeID   string `json:"assignee_id"`
	AssigneeName string `json:"assignee_name"`
}

type publishResponse struct {
	Created     int              `json:"created_count"`
	Skipped     int              `json:"skipped_count"`
	InstanceIDs []string         `json:"instance_ids"`
	Failures    []publishFailure `json:"failures,omitempty"`
}

type publishFailure struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// Create handles POST /schedules.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}

	input, err := h.decodeScheduleInput(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	schedule, err := h.service.CreateSchedule(r.Context(), application.CreateScheduleParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toScheduleResponse(schedule))
}

// Preview handles POST /schedules/preview.
func (h *ScheduleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}

	input, err := h.decodeScheduleInput(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	plan, err := h.service.PreviewSchedule(r.Context(), application.PreviewScheduleParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toPlanResponse(plan))
}

// Publish handles POST /schedules/{id}/publish.
func (h *ScheduleHandler) Publish(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}
	scheduleID, ok := ScheduleIDFromContext(r.Context())
	if !ok || scheduleID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	var body publishRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	entries := make([]application.PlanSlotInput, 0, len(body.Entries))
	for _, entry := range body.Entries {
		date, err := routine.ParseDate(entry.Date)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		entries = append(entries, application.PlanSlotInput{
			Date:         date,
			AssigneeID:   entry.AssigneeID,
			AssigneeName: entry.AssigneeName,
		})
	}

	result, err := h.service.PublishSchedule(r.Context(), application.PublishScheduleParams{
		Principal:  principal,
		ScheduleID: scheduleID,
		Entries:    entries,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	response := publishResponse{
		Created:     result.Created,
		Skipped:     result.Skipped,
		InstanceIDs: result.InstanceIDs,
	}
	for _, failure := range result.Failures {
		response.Failures = append(response.Failures, publishFailure{
			Date:   routine.FormatDate(failure.Date),
			Reason: failure.Reason,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

// Get handles GET /schedules/{id}.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := ScheduleIDFromContext(r.Context())
	if !ok || scheduleID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleResponse(schedule))
}

// List handles GET /schedules.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	schedules, err := h.service.ListSchedules(r.Context(), query.Get("stable"), query.Get("enabled") == "true")
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	responses := make([]scheduleResponse, 0, len(schedules))
	for _, schedule := range schedules {
		responses = append(responses, toScheduleResponse(schedule))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, responses)
}

func (h *ScheduleHandler) decodeScheduleInput(r *http.Request) (application.ScheduleInput, error) {
	var body scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return application.ScheduleInput{}, errBadRequestBody
	}

	input := application.ScheduleInput{
		OrganizationID:      body.OrganizationID,
		StableID:            body.StableID,
		TemplateID:          body.TemplateID,
		Pattern:             recurrence.Pattern(body.RepeatPattern),
		IncludeHolidays:     body.IncludeHolidays,
		StartTime:           body.StartTime,
		AssignmentMode:      routine.AssignmentMode(body.AssignmentMode),
		DefaultAssigneeID:   body.DefaultAssignedTo,
		DefaultAssigneeName: body.DefaultAssignedName,
		PointsValue:         body.PointsValue,
		Enabled:             true,
	}
	if body.Enabled != nil {
		input.Enabled = *body.Enabled
	}

	if body.StartDate != "" {
		date, err := routine.ParseDate(body.StartDate)
		if err != nil {
			return application.ScheduleInput{}, errInvalidDate
		}
		input.StartDate = date
	}
	if body.EndDate != "" {
		date, err := routine.ParseDate(body.EndDate)
		if err != nil {
			return application.ScheduleInput{}, errInvalidDate
		}
		input.EndDate = date
	}
	for _, day := range body.RepeatDays {
		input.RepeatDays = append(input.RepeatDays, time.Weekday(day))
	}

	return input, nil
}

func toScheduleResponse(schedule persistence.RoutineSchedule) scheduleResponse {
	response := scheduleResponse{
		ID:                schedule.ID,
		OrganizationID:    schedule.OrganizationID,
		StableID:          schedule.StableID,
		TemplateID:        schedule.TemplateID,
		StartDate:         routine.FormatDate(schedule.StartDate),
		EndDate:           routine.FormatDate(schedule.EndDate),
		RepeatPattern:     schedule.Pattern,
		IncludeHolidays:   schedule.IncludeHolidays,
		StartTime:         schedule.StartTime,
		AssignmentMode:    schedule.AssignmentMode,
		DefaultAssignedTo: schedule.DefaultAssigneeID,
		PointsValue:       schedule.PointsValue,
		Enabled:           schedule.Enabled,
		CreatedBy:         schedule.CreatedBy,
		CreatedAt:         schedule.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         schedule.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, day := range schedule.RepeatDays {
		response.RepeatDays = append(response.RepeatDays, int(day))
	}
	return response
}

func toPlanResponse(plan fairness.Plan) planResponse {
	response := planResponse{PointsValue: plan.PointsValue, Slots: make([]planSlotResponse, 0, len(plan.Slots))}
	for _, slot := range plan.Slots {
		entry := planSlotResponse{Date: routine.FormatDate(slot.Date)}
		if assignee := slot.Assignee(); assignee != nil {
			id := assignee.MemberID
			name := assignee.DisplayName
			entry.SuggestedAssignee = &id
			entry.SuggestedName = &name
		}
		response.Slots = append(response.Slots, entry)
	}
	return response
}
