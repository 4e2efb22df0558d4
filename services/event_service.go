package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/upb/calendar-api/models"
	"github.com/upb/calendar-api/repositories"
	"go.uber.org/zap"
)

// dateLayouts are the accepted date-time formats, tried in order
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CreateEventInput is the payload of an event creation request.
// Fields stay raw so wrongly typed values get the same message as missing ones.
type CreateEventInput struct {
	ID            json.RawMessage `json:"id"`
	Title         json.RawMessage `json:"title"`
	StartDateTime json.RawMessage `json:"startDateTime"`
	EndDateTime   json.RawMessage `json:"endDateTime"`
	Description   json.RawMessage `json:"description"`
}

// UpdateEventInput is the payload of a partial event update.
// Absent or null fields are left unchanged.
type UpdateEventInput struct {
	Title         json.RawMessage `json:"title"`
	StartDateTime json.RawMessage `json:"startDateTime"`
	EndDateTime   json.RawMessage `json:"endDateTime"`
	Description   json.RawMessage `json:"description"`
}

// EventService implements calendar event operations
type EventService struct {
	events repositories.EventRepository
	txMgr  repositories.TransactionManager
	logger *zap.Logger
	now    func() time.Time
}

// NewEventService creates a new EventService
func NewEventService(events repositories.EventRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *EventService {
	return &EventService{
		events: events,
		txMgr:  txMgr,
		logger: logger,
		now:    time.Now,
	}
}

// List returns every event ordered by start time
func (s *EventService) List(ctx context.Context) ([]*models.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		s.logger.Error("failed to fetch events", zap.Error(err))
		return nil, WrapInternal("Failed to fetch events", err)
	}
	return events, nil
}

// Create validates the input and stores a new event owned by userID
func (s *EventService) Create(ctx context.Context, userID string, input CreateEventInput) (*models.Event, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	id, ok := stringValue(input.ID)
	if !ok || strings.TrimSpace(id) == "" {
		return nil, NewValidationError("Invalid or missing id")
	}
	title, ok := stringValue(input.Title)
	if !ok || strings.TrimSpace(title) == "" {
		return nil, NewValidationError("Invalid or missing title")
	}
	start, ok := dateValue(input.StartDateTime)
	if !ok {
		return nil, NewValidationError("Invalid or missing startDateTime")
	}
	end, ok := dateValue(input.EndDateTime)
	if !ok {
		return nil, NewValidationError("Invalid or missing endDateTime")
	}
	if !start.Before(end) {
		return nil, ErrInvalidEventRange
	}

	var description string
	if isPresent(input.Description) {
		if description, ok = stringValue(input.Description); !ok {
			return nil, NewValidationError("Invalid description")
		}
	}

	event := models.NewEvent(id, title, start, end, description, userID)
	if err := s.events.Create(ctx, event); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEventExists
		}
		s.logger.Error("failed to create event", zap.String("event_id", id), zap.Error(err))
		return nil, WrapInternal("Failed to create event", err)
	}

	s.logger.Info("event created", zap.String("event_id", id), zap.String("user_id", userID))
	return event, nil
}

// Update applies a partial update. The merged event is validated while its
// row is locked, so a patch of only one bound is checked against the stored other bound.
func (s *EventService) Update(ctx context.Context, id string, input UpdateEventInput) (*models.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("Valid Event ID is required")
	}

	patch, err := parsePatch(input)
	if err != nil {
		return nil, err
	}

	updated, err := WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.Event, error) {
		current, err := s.events.GetByIDForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}

		updated := patch.Apply(current, s.now())
		if !updated.HasValidRange() {
			return nil, ErrInvalidEventRange
		}

		if err := s.events.Update(ctx, updated); err != nil {
			return nil, err
		}
		return updated, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, ErrEventNotFound
		case GetErrorType(err) != "":
			return nil, err
		}
		s.logger.Error("failed to update event", zap.String("event_id", id), zap.Error(err))
		return nil, WrapInternal("Failed to update event", err)
	}

	s.logger.Info("event updated", zap.String("event_id", id))
	return updated, nil
}

// Delete removes an event
func (s *EventService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEventIDRequired
	}

	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrEventNotFound
		}
		s.logger.Error("failed to delete event", zap.String("event_id", id), zap.Error(err))
		return WrapInternal("Failed to delete event", err)
	}

	s.logger.Info("event deleted", zap.String("event_id", id))
	return nil
}

func parsePatch(input UpdateEventInput) (models.EventPatch, error) {
	var patch models.EventPatch

	if isPresent(input.Title) {
		title, ok := stringValue(input.Title)
		if !ok || strings.TrimSpace(title) == "" {
			return patch, NewValidationError("Invalid title: must be a non-empty string")
		}
		patch.Title = &title
	}
	if isPresent(input.StartDateTime) {
		start, ok := dateValue(input.StartDateTime)
		if !ok {
			return patch, NewValidationError("Invalid startDateTime: must be a valid date")
		}
		patch.StartDateTime = &start
	}
	if isPresent(input.EndDateTime) {
		end, ok := dateValue(input.EndDateTime)
		if !ok {
			return patch, NewValidationError("Invalid endDateTime: must be a valid date")
		}
		patch.EndDateTime = &end
	}
	if patch.StartDateTime != nil && patch.EndDateTime != nil && !patch.StartDateTime.Before(*patch.EndDateTime) {
		return patch, ErrInvalidEventRange
	}
	if isPresent(input.Description) {
		description, ok := stringValue(input.Description)
		if !ok {
			return patch, NewValidationError("Invalid description: must be a string")
		}
		patch.Description = &description
	}
	if patch.IsEmpty() {
		return patch, ErrEmptyEventUpdate
	}

	return patch, nil
}

// ParseDateTime parses a date-time in any of the accepted layouts
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func isPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// stringValue decodes raw as a JSON string
func stringValue(raw json.RawMessage) (string, bool) {
	if !isPresent(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func dateValue(raw json.RawMessage) (time.Time, bool) {
	s, ok := stringValue(raw)
	if !ok {
		return time.Time{}, false
	}
	t, err := ParseDateTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
