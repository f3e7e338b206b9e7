package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/courtmate/tennis-platform/pkg/resilience"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Twilio error codes that will fail the same way on every attempt: invalid
// or unreachable number, unsubscribed recipient, unverified trial number.
var permanentTwilioCodes = map[int]bool{
	21211: true,
	21408: true,
	21608: true,
	21610: true,
	21614: true,
}

// TwilioSMSSender sends texts through the Twilio Messages API.
type TwilioSMSSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSMSSender(accountSid, authToken, fromNumber string) *TwilioSMSSender {
	return &TwilioSMSSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
		from: fromNumber,
	}
}

// SendSMS returns the message SID. The Twilio client takes no context, so
// cancellation is only honoured before the request goes out.
func (t *TwilioSMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := (&twilioApi.CreateMessageParams{}).SetTo(to).SetFrom(t.from).SetBody(body)
	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp.Sid == nil {
		return "", errors.New("twilio returned no message SID")
	}
	return *resp.Sid, nil
}

// isTwilioRetryable retries throttling, 5xx and network failures.
func isTwilioRetryable(err error) bool {
	if err == nil {
		return false
	}

	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		if permanentTwilioCodes[restErr.Code] {
			return false
		}
		return resilience.IsRetryableHTTPStatus(restErr.Status)
	}

	msg := strings.ToLower(err.Error())
	for code := range permanentTwilioCodes {
		if strings.Contains(msg, fmt.Sprint(code)) {
			return false
		}
	}
	return !strings.Contains(msg, "unauthorized") && !strings.Contains(msg, "forbidden")
}

// maskPhoneNumber keeps the last four digits.
func maskPhoneNumber(phoneNumber string) string {
	if len(phoneNumber) <= 4 {
		return "***"
	}
	return "***" + phoneNumber[len(phoneNumber)-4:]
}
