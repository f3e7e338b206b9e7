package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"slices"
	"strings"

	"github.com/courtmate/tennis-platform/pkg/resilience"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridEmailSender delivers email through the SendGrid v3 API
type SendGridEmailSender struct {
	apiKey    string
	host      string
	fromEmail string
	fromName  string
}

// NewSendGridEmailSender creates a SendGrid sender
func NewSendGridEmailSender(apiKey, fromEmail, fromName string) *SendGridEmailSender {
	return &SendGridEmailSender{
		apiKey:    apiKey,
		host:      sendGridHost,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// SendEmail sends a multipart plain text and HTML email
func (s *SendGridEmailSender) SendEmail(ctx context.Context, to, toName, subject, plainText, html string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		subject,
		mail.NewEmail(toName, to),
		plainText,
		html,
	)

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = rest.Post
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &sendGridError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

type sendGridError struct {
	StatusCode int
	Body       string
}

func (e *sendGridError) Error() string {
	return fmt.Sprintf("SendGrid returned status %d: %s", e.StatusCode, e.Body)
}

// Email templates
var bookingEmailTemplate = template.Must(template.New("booking").Parse(`<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #2E7D32; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .details { background-color: white; padding: 15px; margin: 15px 0; border-radius: 5px; }
        .detail-row { display: flex; justify-content: space-between; padding: 5px 0; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Subject}}</h1>
        </div>
        <div class="content">
            <p>Hi {{.RecipientName}},</p>
            <p>{{.Body}}</p>
            {{if .Details}}
            <div class="details">
                {{range $key, $value := .Details}}
                <div class="detail-row">
                    <strong>{{$key}}:</strong>
                    <span>{{$value}}</span>
                </div>
                {{end}}
            </div>
            {{end}}
        </div>
        <div class="footer">
            <p>CourtMate</p>
        </div>
    </div>
</body>
</html>
`))

// renderEmail builds the plain text and HTML bodies for a message
func renderEmail(recipientName string, msg Message) (string, string, error) {
	if recipientName == "" {
		recipientName = "there"
	}

	var html bytes.Buffer
	err := bookingEmailTemplate.Execute(&html, struct {
		RecipientName string
		Subject       string
		Body          string
		Details       map[string]interface{}
	}{recipientName, msg.Subject, msg.Body, msg.Details})
	if err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}

	var plain strings.Builder
	fmt.Fprintf(&plain, "Hi %s,\n\n%s\n", recipientName, msg.Body)
	for _, key := range slices.Sorted(maps.Keys(msg.Details)) {
		fmt.Fprintf(&plain, "\n%s: %v", key, msg.Details[key])
	}
	return plain.String(), html.String(), nil
}

// isEmailRetryable determines if a SendGrid error should be retried
func isEmailRetryable(err error) bool {
	if err == nil {
		return false
	}
	var sgErr *sendGridError
	if errors.As(err, &sgErr) {
		return resilience.IsRetryableHTTPStatus(sgErr.StatusCode)
	}

	errMsg := strings.ToLower(err.Error())
	for _, msg := range []string{"invalid", "unauthorized", "forbidden"} {
		if strings.Contains(errMsg, msg) {
			return false
		}
	}
	// Network failures
	return true
}

// maskEmail masks email address for logging (show only first char and domain)
func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}
	if len(parts[0]) == 0 {
		return "***@" + parts[1]
	}
	return string(parts[0][0]) + "***@" + parts[1]
}
