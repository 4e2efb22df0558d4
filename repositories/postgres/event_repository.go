package postgres

import (
	"context"

	"github.com/upb/calendar-api/models"
	"github.com/upb/calendar-api/repositories"
	"go.uber.org/zap"
)

const eventColumns = `id, title, start_date_time, end_date_time, description, user_id, created_at, updated_at`

// EventRepository implements the repositories.EventRepository interface
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, logger *zap.Logger) repositories.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	event := &models.Event{}
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.StartDateTime,
		&event.EndDateTime,
		&event.Description,
		&event.UserID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// List returns all events ordered by start time
func (r *EventRepository) List(ctx context.Context) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		ORDER BY start_date_time ASC, id ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError("query events", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, mapError("scan event", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, mapError("iterate event rows", err)
	}

	return events, nil
}

// GetByIDForUpdate retrieves an event and locks the row for the current transaction
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
		FOR UPDATE
	`

	event, err := scanEvent(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError("lock event", err)
	}
	return event, nil
}

// Create creates a new event
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.StartDateTime,
		event.EndDateTime,
		event.Description,
		event.UserID,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return mapError("create event", err)
	}

	r.logger.Debug("event created", zap.String("id", event.ID), zap.String("user_id", event.UserID))
	return nil
}

// Update updates an event
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events
		SET title = $2,
		    start_date_time = $3,
		    end_date_time = $4,
		    description = $5,
		    updated_at = $6
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.StartDateTime,
		event.EndDateTime,
		event.Description,
		event.UpdatedAt,
	)
	if err != nil {
		return mapError("update event", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("get rows affected", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("event updated", zap.String("id", event.ID))
	return nil
}

// Delete deletes an event
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return mapError("delete event", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("get rows affected", err)
	}

	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("event deleted", zap.String("id", id))
	return nil
}
