package handlers

import (
	"context"
	"net/http"

	"github.com/upb/calendar-api/internal/router"
	"github.com/upb/calendar-api/models"
	"github.com/upb/calendar-api/services"
	"github.com/upb/calendar-api/utils"
	"go.uber.org/zap"
)

// EventService defines the calendar operations used by EventHandler
type EventService interface {
	List(ctx context.Context) ([]*models.Event, error)
	Create(ctx context.Context, userID string, input services.CreateEventInput) (*models.Event, error)
	Update(ctx context.Context, id string, input services.UpdateEventInput) (*models.Event, error)
	Delete(ctx context.Context, id string) error
}

// CreateEventResponse is the body of a successful event creation
type CreateEventResponse struct {
	NewEvent *models.Event `json:"newEvent"`
	UserID   string        `json:"userId"`
}

// EventHandler handles calendar event requests
type EventHandler struct {
	service EventService
	body    *utils.BodyReader
	logger  *zap.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(service EventService, body *utils.BodyReader, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		body:    body,
		logger:  logger,
	}
}

// HandleListEvents handles GET /api/events
func (h *EventHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if len(events) == 0 {
		err = utils.WriteMessage(w, http.StatusOK, "No events found")
	} else {
		err = utils.WriteJSON(w, http.StatusOK, events)
	}
	if err != nil {
		h.logger.Error("failed to write events response", zap.Error(err))
	}
}

// HandleCreateEvent handles POST /api/events
func (h *EventHandler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	identity := router.Identity(r.Context())
	if identity == nil {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	var input services.CreateEventInput
	if err := h.body.DecodeJSON(w, r, &input); err != nil {
		HandleBodyError(w, err, h.logger)
		return
	}

	event, err := h.service.Create(r.Context(), identity.ID, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	response := CreateEventResponse{NewEvent: event, UserID: identity.ID}
	if err := utils.WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("failed to write create event response", zap.Error(err))
	}
}

// HandleUpdateEvent handles PUT /api/events/{id}
func (h *EventHandler) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := router.Param(r.Context(), "id")
	if id == "" {
		HandleServiceError(w, services.NewValidationError("Valid Event ID is required"), h.logger)
		return
	}

	var input services.UpdateEventInput
	if err := h.body.DecodeJSON(w, r, &input); err != nil {
		HandleBodyError(w, err, h.logger)
		return
	}

	event, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, event); err != nil {
		h.logger.Error("failed to write update event response", zap.Error(err))
	}
}

// HandleDeleteEvent handles DELETE /api/events/{id}
func (h *EventHandler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := router.Param(r.Context(), "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteMessage(w, http.StatusOK, "Event deleted successfully"); err != nil {
		h.logger.Error("failed to write delete event response", zap.Error(err))
	}
}
