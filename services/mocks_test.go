package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/upb/calendar-api/internal/auth"
	"github.com/upb/calendar-api/models"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) List(ctx context.Context) ([]*models.Event, error) {
	args := m.Called(ctx)
	if events := args.Get(0); events != nil {
		return events.([]*models.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEventRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if event := args.Get(0); event != nil {
		return event.(*models.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) Update(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(hash, password string) error {
	args := m.Called(hash, password)
	return args.Error(0)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(identity auth.Identity) (string, time.Time, error) {
	args := m.Called(identity)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type MockRevocationRegistry struct {
	mock.Mock
}

func (m *MockRevocationRegistry) Revoke(token string, expiresAt time.Time) {
	m.Called(token, expiresAt)
}

func (m *MockRevocationRegistry) IsRevoked(token string) bool {
	args := m.Called(token)
	return args.Bool(0)
}
