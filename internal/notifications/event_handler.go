package notifications

import (
	"context"
	"fmt"

	"github.com/courtmate/tennis-platform/pkg/eventbus"
	"github.com/courtmate/tennis-platform/pkg/logger"
	"go.uber.org/zap"
)

const sharedBookingConsumer = "notifications-shared-bookings"

// EventHandler turns shared booking events into player notifications.
type EventHandler struct {
	service *Service
	courts  CourtLookup
}

// NewEventHandler creates an event handler backed by the notification
// service. courts may be nil, in which case messages omit the court name.
func NewEventHandler(service *Service, courts CourtLookup) *EventHandler {
	return &EventHandler{service: service, courts: courts}
}

// RegisterSubscriptions subscribes to shared booking lifecycle events on the bus.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus eventbus.Subscriber) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectSharedBookingAll, sharedBookingConsumer, h.HandleSharedBookingEvent); err != nil {
		return fmt.Errorf("subscribe to shared booking events: %w", err)
	}
	logger.Info("notifications: subscribed to shared booking events")
	return nil
}

// HandleSharedBookingEvent notifies the players affected by a transition.
// Malformed payloads are dropped; delivery problems are logged so one bad
// address does not cause redelivery to the other player.
func (h *EventHandler) HandleSharedBookingEvent(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.SharedBookingEventData
	if err := event.Decode(&data); err != nil {
		return fmt.Errorf("%w: shared booking payload: %v", eventbus.ErrPoison, err)
	}

	msg, ok := h.messageFor(ctx, data)
	if !ok {
		logger.Debug("notifications: ignoring shared booking status", zap.String("status", data.Status))
		return nil
	}

	for _, recipient := range data.Recipients() {
		if _, err := h.service.Notify(ctx, recipient, msg); err != nil {
			logger.WarnContext(ctx, "failed to notify player",
				zap.String("player_id", recipient.String()),
				zap.String("shared_booking_id", data.SharedBookingID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (h *EventHandler) messageFor(ctx context.Context, data eventbus.SharedBookingEventData) (Message, bool) {
	msg := Message{
		Type: "shared_booking_" + data.Status,
		Details: map[string]interface{}{
			"Court":      h.courtName(ctx, data),
			"Date":       data.BookingDate,
			"Time":       data.StartTime + " - " + data.EndTime,
			"Total cost": fmt.Sprintf("%.2f", data.TotalCost),
			"Your share": fmt.Sprintf("%.2f", data.TotalCost/2),
		},
	}

	switch data.Status {
	case "proposed":
		msg.Subject = "New shared court booking proposal"
		msg.Body = "A partner has invited you to share a court. Accept, counter-propose or decline before it expires."
		msg.Urgent = true
	case "counter_proposed":
		msg.Subject = "Your partner suggested another slot"
		msg.Body = "Your shared booking proposal has a counter-proposal waiting for you."
		msg.Urgent = true
	case "accepted":
		msg.Subject = "Shared booking accepted"
		msg.Body = "The slot is agreed. Either player can now confirm to book the court."
	case "confirmed":
		msg.Subject = "Court booked"
		msg.Body = "Your shared court booking is confirmed. See you on court!"
		msg.Urgent = true
		if data.FinalBookingID != nil {
			msg.Details["Booking"] = data.FinalBookingID.String()
		}
	case "cancelled":
		msg.Subject = "Shared booking cancelled"
		msg.Body = "Your partner cancelled the shared booking."
		if data.Reason != "" {
			msg.Details["Reason"] = data.Reason
		}
	case "expired":
		msg.Subject = "Shared booking proposal expired"
		msg.Body = "The proposal expired before it was answered."
	default:
		return Message{}, false
	}
	return msg, true
}

func (h *EventHandler) courtName(ctx context.Context, data eventbus.SharedBookingEventData) string {
	if h.courts == nil {
		return data.CourtID.String()
	}
	court, err := h.courts.GetCourt(ctx, data.CourtID)
	if err != nil {
		logger.Debug("notifications: court lookup failed", zap.Error(err))
		return data.CourtID.String()
	}
	return court.Name
}
