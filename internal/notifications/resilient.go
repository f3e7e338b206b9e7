package notifications

import (
	"context"
	"time"

	"github.com/courtmate/tennis-platform/pkg/logger"
	"github.com/courtmate/tennis-platform/pkg/resilience"
	"go.uber.org/zap"
)

// guard retries a provider call through its breaker.
type guard struct {
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

func newGuard(breaker *resilience.CircuitBreaker, fallbackName string, initial, ceiling time.Duration, retryable func(error) bool) guard {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.Settings{
			Name:             fallbackName,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		})
	}
	policy := resilience.DefaultRetryConfig()
	policy.InitialBackoff = initial
	if ceiling > 0 {
		policy.MaxBackoff = ceiling
	}
	policy.RetryableChecker = retryable
	return guard{breaker: breaker, retry: policy}
}

func (g guard) do(ctx context.Context, op resilience.Operation) (interface{}, error) {
	return resilience.RetryWithBreaker(ctx, g.retry, g.breaker, op)
}

// ResilientEmailSender retries SendGrid through a breaker.
type ResilientEmailSender struct {
	sender EmailSender
	guard
}

// NewResilientEmailSender wraps sender. A nil breaker gets default settings.
// Email tolerates delay, so it backs off longer than SMS.
func NewResilientEmailSender(sender EmailSender, breaker *resilience.CircuitBreaker) *ResilientEmailSender {
	return &ResilientEmailSender{
		sender: sender,
		guard:  newGuard(breaker, "sendgrid-email", 2*time.Second, 15*time.Second, isEmailRetryable),
	}
}

func (r *ResilientEmailSender) SendEmail(ctx context.Context, to, toName, subject, plainText, html string) error {
	_, err := r.do(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, r.sender.SendEmail(ctx, to, toName, subject, plainText, html)
	})
	if err != nil {
		logger.ErrorContext(ctx, "email delivery failed",
			zap.String("to", maskEmail(to)),
			zap.String("subject", subject),
			zap.String("breaker", r.breaker.State()),
			zap.Error(err),
		)
		return err
	}
	logger.DebugContext(ctx, "email delivered", zap.String("to", maskEmail(to)))
	return nil
}

// ResilientSMSSender retries Twilio through a breaker.
type ResilientSMSSender struct {
	sender SMSSender
	guard
}

// NewResilientSMSSender wraps sender. A nil breaker gets default settings.
func NewResilientSMSSender(sender SMSSender, breaker *resilience.CircuitBreaker) *ResilientSMSSender {
	return &ResilientSMSSender{
		sender: sender,
		guard:  newGuard(breaker, "twilio-sms", time.Second, 0, isTwilioRetryable),
	}
}

// SendSMS returns the Twilio message SID.
func (r *ResilientSMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	result, err := r.do(ctx, func(ctx context.Context) (interface{}, error) {
		return r.sender.SendSMS(ctx, to, body)
	})
	if err != nil {
		logger.ErrorContext(ctx, "sms delivery failed",
			zap.String("to", maskPhoneNumber(to)),
			zap.String("breaker", r.breaker.State()),
			zap.Error(err),
		)
		return "", err
	}

	sid, _ := result.(string)
	logger.DebugContext(ctx, "sms delivered", zap.String("message_sid", sid), zap.String("to", maskPhoneNumber(to)))
	return sid, nil
}
