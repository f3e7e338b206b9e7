package notifications

import (
	"context"

	"github.com/courtmate/tennis-platform/internal/courts"
	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/google/uuid"
)

// RepositoryInterface defines the delivery log operations
type RepositoryInterface interface {
	CreateNotification(ctx context.Context, n *Notification) error
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status Status, errorMsg *string) error
	ListForPlayer(ctx context.Context, playerID uuid.UUID, limit, offset int) ([]*Notification, error)
}

// ContactLookup resolves a player's email and phone.
type ContactLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*players.Player, error)
}

// CourtLookup names courts in messages.
type CourtLookup interface {
	GetCourt(ctx context.Context, id uuid.UUID) (*courts.Court, error)
}

// EmailSender delivers a rendered email
type EmailSender interface {
	SendEmail(ctx context.Context, to, toName, subject, plainText, html string) error
}

// SMSSender delivers a text message and returns the provider message ID
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}
