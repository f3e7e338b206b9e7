package notifications

import (
	"context"
	"fmt"

	"github.com/courtmate/tennis-platform/internal/players"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultListLimit = 20

// Service delivers messages to players and keeps a delivery log.
type Service struct {
	repo     RepositoryInterface
	contacts ContactLookup
	email    EmailSender
	sms      SMSSender
}

// NewService creates a notification service. Either sender may be nil, in
// which case that channel is skipped.
func NewService(repo RepositoryInterface, contacts ContactLookup, email EmailSender, sms SMSSender) *Service {
	return &Service{
		repo:     repo,
		contacts: contacts,
		email:    email,
		sms:      sms,
	}
}

// Notify sends msg to the player on every channel they can be reached on.
// Delivery failures are logged and recorded, not returned; the error is for
// failures to look up the player or write the log.
func (s *Service) Notify(ctx context.Context, playerID uuid.UUID, msg Message) ([]*Notification, error) {
	player, err := s.contacts.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	var sent []*Notification
	if s.email != nil && player.Email != "" {
		n, err := s.deliver(ctx, player, ChannelEmail, msg, func() error {
			plain, html, err := renderEmail(player.Name, msg)
			if err != nil {
				return err
			}
			return s.email.SendEmail(ctx, player.Email, player.Name, msg.Subject, plain, html)
		})
		if err != nil {
			return sent, err
		}
		sent = append(sent, n)
	}

	if msg.Urgent && s.sms != nil && player.Phone != "" {
		n, err := s.deliver(ctx, player, ChannelSMS, msg, func() error {
			_, err := s.sms.SendSMS(ctx, player.Phone, fmt.Sprintf("%s: %s", msg.Subject, msg.Body))
			return err
		})
		if err != nil {
			return sent, err
		}
		sent = append(sent, n)
	}

	return sent, nil
}

func (s *Service) deliver(ctx context.Context, player *players.Player, channel Channel, msg Message, send func() error) (*Notification, error) {
	n := &Notification{
		ID:       uuid.New(),
		PlayerID: player.ID,
		Type:     msg.Type,
		Channel:  channel,
		Title:    msg.Subject,
		Body:     msg.Body,
		Data:     msg.Details,
		Status:   StatusPending,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	status := StatusSent
	var errMsg *string
	if err := send(); err != nil {
		status = StatusFailed
		text := err.Error()
		errMsg = &text
		logger.WarnContext(ctx, "notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("channel", string(channel)),
			zap.Error(err),
		)
	}

	n.Status = status
	n.ErrorMessage = errMsg
	if err := s.repo.UpdateNotificationStatus(ctx, n.ID, status, errMsg); err != nil {
		logger.WarnContext(ctx, "failed to record notification status",
			zap.String("notification_id", n.ID.String()), zap.Error(err))
	}
	return n, nil
}

// ListForPlayer returns a page of the player's delivery log
func (s *Service) ListForPlayer(ctx context.Context, playerID uuid.UUID, limit, offset int) ([]*Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListForPlayer(ctx, playerID, limit, max(offset, 0))
}
