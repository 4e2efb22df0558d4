package repositories

import (
	"context"
	"errors"

	"github.com/upb/calendar-api/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("record already exists")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository is the credential store
type UserRepository interface {
	// Create inserts a new user. A taken email yields ErrDuplicate.
	Create(ctx context.Context, user *models.User) error

	// GetByEmail retrieves an active (not soft deleted) user by email
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// EventRepository is the calendar event store
type EventRepository interface {
	// List returns every event ordered by start time
	List(ctx context.Context) ([]*models.Event, error)

	// GetByIDForUpdate retrieves an event and locks its row until the
	// surrounding transaction ends
	GetByIDForUpdate(ctx context.Context, id string) (*models.Event, error)

	// Create inserts a new event. A taken ID yields ErrDuplicate.
	Create(ctx context.Context, event *models.Event) error

	// Update overwrites the mutable fields of an event
	Update(ctx context.Context, event *models.Event) error

	// Delete removes an event
	Delete(ctx context.Context, id string) error
}

// Repositories holds all repository instances
type Repositories struct {
	Users  UserRepository
	Events EventRepository
}
