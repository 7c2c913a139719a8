package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

type recordingSender struct {
	mu      sync.Mutex
	emails  []string
	sms     []string
	failing bool
}

func (r *recordingSender) SendEmail(_ context.Context, toEmail, _, subject, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errors.New("smtp down")
	}
	r.emails = append(r.emails, toEmail+"|"+subject)
	return nil
}

func (r *recordingSender) SendSMS(_ context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sms = append(r.sms, to+"|"+body)
	return nil
}

func sampleBooking() (*models.Booking, models.BookingInstructions) {
	return &models.Booking{ID: 11, StationID: 3, StationName: "ISBT Power Point", SlotNumber: 2},
		models.BookingInstructions{Token: "TK1700000000000123", StartCode: 1234, EndCode: 5678, ArrivalWindow: "5:30 PM - 6:15 PM", PredictedDuration: "120 minutes"}
}

func TestNotifierSendsEmailAndSMS(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, sender, zap.NewNop())
	phone := "+919999999999"
	user := &models.User{ID: 1, Email: "driver@example.com", Name: "Driver", Phone: &phone}
	booking, instructions := sampleBooking()

	n.BookingCreated(context.Background(), user, booking, instructions)
	n.Wait()

	require.Len(t, sender.emails, 1)
	assert.Equal(t, "driver@example.com|Booking TK1700000000000123 confirmed", sender.emails[0])
	require.Len(t, sender.sms, 1)
	assert.Contains(t, sender.sms[0], "Start code 1234, end code 5678")
	assert.Contains(t, sender.sms[0], "ISBT Power Point")
}

func TestNotifierSkipsSMSWithoutPhone(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, sender, zap.NewNop())
	booking, instructions := sampleBooking()

	n.BookingCreated(context.Background(), &models.User{ID: 1, Email: "driver@example.com"}, booking, instructions)
	n.Wait()

	assert.Len(t, sender.emails, 1)
	assert.Empty(t, sender.sms)
}

func TestNotifierSurvivesSenderFailure(t *testing.T) {
	sender := &recordingSender{failing: true}
	n := NewNotifier(sender, nil, zap.NewNop())
	booking, instructions := sampleBooking()

	n.BookingCreated(context.Background(), &models.User{ID: 1, Email: "driver@example.com"}, booking, instructions)
	n.Wait()

	assert.Empty(t, sender.emails)
}

func TestNotifierDisabledWithoutSenders(t *testing.T) {
	n := NewNotifier(nil, nil, zap.NewNop())
	assert.False(t, n.Enabled())
	booking, instructions := sampleBooking()
	n.BookingCreated(context.Background(), &models.User{ID: 1}, booking, instructions)
	n.Wait()
}

func TestSenderConstructorsRequireCredentials(t *testing.T) {
	assert.Nil(t, NewSendGridSender("", "from@example.com", "EV"))
	assert.Nil(t, NewTwilioSender("sid", "", "+100"))
	assert.NotNil(t, NewSendGridSender("key", "from@example.com", "EV"))
}
