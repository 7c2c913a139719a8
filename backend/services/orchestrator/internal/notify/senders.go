package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// EmailSender delivers a single e-mail.
type EmailSender interface {
	SendEmail(ctx context.Context, toEmail, toName, subject, plain, html string) error
}

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SendGridSender sends e-mail through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewSendGridSender returns a sender, or nil when apiKey or fromEmail is empty.
func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(fromEmail) == "" {
		return nil
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// SendEmail implements EmailSender.
func (s *SendGridSender) SendEmail(ctx context.Context, toEmail, toName, subject, plain, html string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plain, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: send: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

// TwilioSender sends SMS through the Twilio messaging API.
type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSender returns a sender, or nil when any credential is missing.
func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil
	}
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   accountSID,
			Password:   authToken,
			AccountSid: accountSID,
		}),
		fromNumber: fromNumber,
	}
}

// SendSMS implements SMSSender. Numbers must be E.164 formatted.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if !strings.HasPrefix(to, "+") {
		return errors.New("twilio: destination must be in E.164 format")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromNumber)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: send: %w", err)
	}
	return nil
}
