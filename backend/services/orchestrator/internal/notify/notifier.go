package notify

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

const deliveryTimeout = 15 * time.Second

// Notifier sends booking instructions by e-mail and SMS in the background.
type Notifier struct {
	email  EmailSender
	sms    SMSSender
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewNotifier builds a Notifier. Either sender may be nil.
func NewNotifier(email EmailSender, sms SMSSender, logger *zap.Logger) *Notifier {
	return &Notifier{email: email, sms: sms, logger: logger}
}

// Enabled reports whether any channel is configured.
func (n *Notifier) Enabled() bool {
	return n.email != nil || n.sms != nil
}

// BookingCreated queues delivery of the instructions of a new booking.
func (n *Notifier) BookingCreated(ctx context.Context, user *models.User, booking *models.Booking, instructions models.BookingInstructions) {
	if user == nil || !n.Enabled() {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()
		n.deliver(ctx, user, booking, instructions)
	}()
}

// Wait blocks until queued deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, user *models.User, booking *models.Booking, instructions models.BookingInstructions) {
	fields := []zap.Field{zap.Int64("booking_id", booking.ID), zap.Int64("user_id", user.ID)}

	if n.email != nil && user.Email != "" {
		subject := fmt.Sprintf("Booking %s confirmed", instructions.Token)
		plain, htmlBody := bookingEmail(user, booking, instructions)
		if err := n.email.SendEmail(ctx, user.Email, user.Name, subject, plain, htmlBody); err != nil {
			n.logger.Warn("failed to send booking email", append(fields, zap.Error(err))...)
		} else {
			n.logger.Info("booking email sent", fields...)
		}
	}

	if n.sms != nil && user.Phone != nil && *user.Phone != "" {
		if err := n.sms.SendSMS(ctx, *user.Phone, bookingSMS(booking, instructions)); err != nil {
			n.logger.Warn("failed to send booking sms", append(fields, zap.Error(err))...)
		} else {
			n.logger.Info("booking sms sent", fields...)
		}
	}
}

func bookingSMS(booking *models.Booking, in models.BookingInstructions) string {
	return fmt.Sprintf("EV booking %s at %s. Arrive %s. Start code %d, end code %d.",
		in.Token, stationLabel(booking), in.ArrivalWindow, in.StartCode, in.EndCode)
}

func bookingEmail(user *models.User, booking *models.Booking, in models.BookingInstructions) (string, string) {
	plain := fmt.Sprintf(
		"Hi %s,\n\nYour charging slot %d at %s is booked.\nToken: %s\nArrival window: %s\nStart code: %d\nEnd code: %d\nExpected duration: %s\n",
		user.Name, booking.SlotNumber, stationLabel(booking), in.Token, in.ArrivalWindow, in.StartCode, in.EndCode, in.PredictedDuration,
	)
	htmlBody := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your charging slot <strong>%d</strong> at %s is booked.</p>"+
			"<ul><li>Token: %s</li><li>Arrival window: %s</li><li>Start code: <strong>%d</strong></li>"+
			"<li>End code: <strong>%d</strong></li><li>Expected duration: %s</li></ul>",
		html.EscapeString(user.Name), booking.SlotNumber, html.EscapeString(stationLabel(booking)),
		html.EscapeString(in.Token), html.EscapeString(in.ArrivalWindow), in.StartCode, in.EndCode,
		html.EscapeString(in.PredictedDuration),
	)
	return plain, htmlBody
}

func stationLabel(booking *models.Booking) string {
	if booking.StationName != "" {
		return booking.StationName
	}
	return fmt.Sprintf("station #%d", booking.StationID)
}
