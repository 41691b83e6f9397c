package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maxton76/stall-bokning-sub003/internal/application"
	"github.com/maxton76/stall-bokning-sub003/internal/persistence"
	"github.com/maxton76/stall-bokning-sub003/internal/routine"
)

// InstanceAPI is the application surface consumed by the instance handler.
type InstanceAPI interface {
	CreateAdHocInstance(ctx context.Context, params application.CreateInstanceParams) (persistence.RoutineInstance, error)
	GetInstance(ctx context.Context, id string) (persistence.RoutineInstance, error)
	ListInstances(ctx context.Context, params application.ListInstancesParams) ([]persistence.RoutineInstance, error)
	Start(ctx context.Context, principal application.Principal, instanceID string) (persistence.RoutineInstance, error)
	Complete(ctx context.Context, principal application.Principal, instanceID string) (persistence.RoutineInstance, error)
	Cancel(ctx context.Context, principal application.Principal, instanceID string) (persistence.RoutineInstance, error)
	Reassign(ctx context.Context, params application.ReassignParams) (persistence.RoutineInstance, error)
	Delete(ctx context.Context, principal application.Principal, instanceID string) error
}

// InstanceHandler serves routine instance endpoints.
type InstanceHandler struct {
	service   InstanceAPI
	responder responder
}

// NewInstanceHandler constructs an InstanceHandler.
func NewInstanceHandler(service InstanceAPI, logger *slog.Logger) *InstanceHandler {
	return &InstanceHandler{service: service, responder: newResponder(logger)}
}

type instanceRequest struct {
	OrganizationID string `json:"organization_id"`
	StableID       string `json:"stable_id"`
	TemplateID     string `json:"template_id"`
	ScheduledDate  string `json:"scheduled_date"`
	StartTime      string `json:"scheduled_start_time"`
	AssigneeID     string `json:"assigned_to"`
	AssigneeName   string `json:"assigned_to_name"`
	PointsValue    int    `json:"points_value"`
	StepsTotal     int    `json:"steps_total"`
}

type reassignRequest struct {
	AssigneeID   string `json:"assigned_to"`
	AssigneeName string `json:"assigned_to_name"`
}

type instanceResponse struct {
	ID             string  `json:"id"`
	ScheduleID     *string `json:"schedule_id,omitempty"`
	OrganizationID string  `json:"organization_id"`
	StableID       string  `json:"stable_id"`
	TemplateID     string  `json:"template_id"`
	ScheduledDate  string  `json:"scheduled_date"`
	StartTime      string  `json:"scheduled_start_time"`
	AssigneeID     *string `json:"assigned_to,omitempty"`
	AssigneeName   *string `json:"assigned_to_name,omitempty"`
	Status         string  `json:"status"`
	StepsCompleted int     `json:"steps_completed"`
	StepsTotal     int     `json:"steps_total"`
	PointsValue    int     `json:"points_value"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// Create handles POST /instances.
func (h *InstanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}

	var body instanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input := application.AdHocInstanceInput{
		OrganizationID: body.OrganizationID,
		StableID:       body.StableID,
		TemplateID:     body.TemplateID,
		StartTime:      body.StartTime,
		AssigneeID:     body.AssigneeID,
		AssigneeName:   body.AssigneeName,
		PointsValue:    body.PointsValue,
		StepsTotal:     body.StepsTotal,
	}
	if body.ScheduledDate != "" {
		date, err := routine.ParseDate(body.ScheduledDate)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		input.ScheduledDate = date
	}

	instance, err := h.service.CreateAdHocInstance(r.Context(), application.CreateInstanceParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toInstanceResponse(instance))
}

// Get handles GET /instances/{id}.
func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := InstanceIDFromContext(r.Context())
	if !ok || instanceID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	instance, err := h.service.GetInstance(r.Context(), instanceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toInstanceResponse(instance))
}

// List handles GET /instances.
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}

	params := application.ListInstancesParams{
		Principal: principal,
		StableID:  r.URL.Query().Get("stable"),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		date, err := routine.ParseDate(from)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		params.From = &date
	}
	if to := r.URL.Query().Get("to"); to != "" {
		date, err := routine.ParseDate(to)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		params.To = &date
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, value := range strings.Split(raw, ",") {
			status := routine.Status(strings.TrimSpace(value))
			if !status.Valid() {
				h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidStatuses)
				return
			}
			params.Statuses = append(params.Statuses, status)
		}
	}

	instances, err := h.service.ListInstances(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	responses := make([]instanceResponse, 0, len(instances))
	for _, instance := range instances {
		responses = append(responses, toInstanceResponse(instance))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, responses)
}

// Transition handles POST /instances/{id}/{action} for start, complete,
// cancel and reassign.
func (h *InstanceHandler) Transition(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
			return
		}
		instanceID, ok := InstanceIDFromContext(r.Context())
		if !ok || instanceID == "" {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
			return
		}

		var (
			instance persistence.RoutineInstance
			err      error
		)
		switch action {
		case "start":
			instance, err = h.service.Start(r.Context(), principal, instanceID)
		case "complete":
			instance, err = h.service.Complete(r.Context(), principal, instanceID)
		case "cancel":
			instance, err = h.service.Cancel(r.Context(), principal, instanceID)
		case "reassign":
			var body reassignRequest
			if decodeErr := json.NewDecoder(r.Body).Decode(&body); decodeErr != nil {
				h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
				return
			}
			instance, err = h.service.Reassign(r.Context(), application.ReassignParams{
				Principal:    principal,
				InstanceID:   instanceID,
				AssigneeID:   body.AssigneeID,
				AssigneeName: body.AssigneeName,
			})
		default:
			h.responder.writeError(r.Context(), w, http.StatusNotFound, errUnknownAction)
			return
		}

		if err != nil {
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.responder.writeJSON(r.Context(), w, http.StatusOK, toInstanceResponse(instance))
	}
}

// Delete handles DELETE /instances/{id}.
func (h *InstanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}
	instanceID, ok := InstanceIDFromContext(r.Context())
	if !ok || instanceID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	if err := h.service.Delete(r.Context(), principal, instanceID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func toInstanceResponse(instance persistence.RoutineInstance) instanceResponse {
	return instanceResponse{
		ID:             instance.ID,
		ScheduleID:     instance.ScheduleID,
		OrganizationID: instance.OrganizationID,
		StableID:       instance.StableID,
		TemplateID:     instance.TemplateID,
		ScheduledDate:  routine.FormatDate(instance.ScheduledDate),
		StartTime:      instance.StartTime,
		AssigneeID:     instance.AssigneeID,
		AssigneeName:   instance.AssigneeName,
		Status:         string(instance.Status),
		StepsCompleted: instance.StepsCompleted,
		StepsTotal:     instance.StepsTotal,
		PointsValue:    instance.PointsValue,
		CreatedAt:      instance.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      instance.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
