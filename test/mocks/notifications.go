package mocks

import (
	"context"

	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockEmailSender is a mock implementation of notifications.EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, toName, subject, plainText, html string) error {
	args := m.Called(ctx, to, toName, subject, plainText, html)
	return args.Error(0)
}

// MockSMSSender is a mock implementation of notifications.SMSSender
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

// MockPlayerLookup resolves players by ID
type MockPlayerLookup struct {
	mock.Mock
}

func (m *MockPlayerLookup) GetByID(ctx context.Context, id uuid.UUID) (*players.Player, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*players.Player), args.Error(1)
}
