package service

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

// Booking lifecycle events.
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventCancel   = "cancel"
)

var bookingEvents = fsm.Events{
	{Name: EventStart, Src: []string{models.BookingStatusBooked}, Dst: models.BookingStatusInProgress},
	{Name: EventComplete, Src: []string{models.BookingStatusInProgress}, Dst: models.BookingStatusCompleted},
	{Name: EventCancel, Src: []string{models.BookingStatusBooked, models.BookingStatusInProgress}, Dst: models.BookingStatusCancelled},
}

// nextStatus returns the status a booking in status reaches through event.
func nextStatus(status, event string) (string, error) {
	machine := fsm.NewFSM(status, bookingEvents, fsm.Callbacks{})
	if !machine.Can(event) {
		return "", fmt.Errorf("booking: %s not allowed from %s", event, status)
	}
	if err := machine.Event(context.Background(), event); err != nil {
		return "", fmt.Errorf("booking: %s: %w", event, err)
	}
	return machine.Current(), nil
}

// isTerminal reports whether no event leaves status.
func isTerminal(status string) bool {
	machine := fsm.NewFSM(status, bookingEvents, fsm.Callbacks{})
	return len(machine.AvailableTransitions()) == 0
}
