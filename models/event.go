package models

import "time"

// Event is a calendar entry. ID is chosen by the client that creates it.
type Event struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	StartDateTime time.Time `json:"startDateTime" db:"start_date_time"`
	EndDateTime   time.Time `json:"endDateTime" db:"end_date_time"`
	Description   string    `json:"description,omitempty" db:"description"`
	UserID        string    `json:"userId" db:"user_id"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// NewEvent creates a new Event owned by userID
func NewEvent(id, title string, start, end time.Time, description, userID string) *Event {
	now := time.Now().UTC()
	return &Event{
		ID:            id,
		Title:         title,
		StartDateTime: start.UTC(),
		EndDateTime:   end.UTC(),
		Description:   description,
		UserID:        userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// HasValidRange reports whether the event starts strictly before it ends
func (e *Event) HasValidRange() bool {
	return e.StartDateTime.Before(e.EndDateTime)
}

// EventPatch holds the fields of a partial update. Nil fields are left unchanged.
type EventPatch struct {
	Title         *string
	StartDateTime *time.Time
	EndDateTime   *time.Time
	Description   *string
}

// IsEmpty reports whether the patch changes nothing
func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.StartDateTime == nil && p.EndDateTime == nil && p.Description == nil
}

// Apply returns a copy of e with the patch applied
func (p EventPatch) Apply(e *Event, now time.Time) *Event {
	updated := *e
	if p.Title != nil {
		updated.Title = *p.Title
	}
	if p.StartDateTime != nil {
		updated.StartDateTime = p.StartDateTime.UTC()
	}
	if p.EndDateTime != nil {
		updated.EndDateTime = p.EndDateTime.UTC()
	}
	if p.Description != nil {
		updated.Description = *p.Description
	}
	updated.UpdatedAt = now.UTC()
	return &updated
}
