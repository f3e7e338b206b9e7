package notifications

import (
	"context"
	"time"

	"github.com/courtmate/tennis-platform/pkg/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres delivery log
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new notifications repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateNotification creates a new notification record
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, player_id, type, channel, title, body, data, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		n.ID,
		n.PlayerID,
		n.Type,
		n.Channel,
		n.Title,
		n.Body,
		n.Data,
		n.Status,
	).Scan(&n.CreatedAt)
	if err != nil {
		return common.NewInternalErrorWithError("failed to create notification", err)
	}

	return nil
}

// UpdateNotificationStatus records the outcome of a delivery attempt
func (r *Repository) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status Status, errorMessage *string) error {
	var sentAt *time.Time
	if status == StatusSent {
		now := time.Now()
		sentAt = &now
	}

	query := `
		UPDATE notifications
		SET status = $1, sent_at = COALESCE($2, sent_at), error_message = $3
		WHERE id = $4`

	_, err := r.db.Exec(ctx, query, status, sentAt, errorMessage, id)
	if err != nil {
		return common.NewInternalErrorWithError("failed to update notification status", err)
	}

	return nil
}

// ListForPlayer returns a player's notifications, newest first
func (r *Repository) ListForPlayer(ctx context.Context, playerID uuid.UUID, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT id, player_id, type, channel, title, body, data, status,
			error_message, sent_at, created_at
		FROM notifications
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, playerID, limit, offset)
	if err != nil {
		return nil, common.NewInternalErrorWithError("failed to get notifications", err)
	}
	defer rows.Close()

	notifications := make([]*Notification, 0)
	for rows.Next() {
		n := &Notification{}
		err := rows.Scan(
			&n.ID,
			&n.PlayerID,
			&n.Type,
			&n.Channel,
			&n.Title,
			&n.Body,
			&n.Data,
			&n.Status,
			&n.ErrorMessage,
			&n.SentAt,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, common.NewInternalErrorWithError("failed to scan notification", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}
