package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/repository"
)

type memoryBookings struct {
	mu       sync.Mutex
	stations map[int64]*models.Station
	bookings map[int64]*models.Booking
	nextID   int64
	tokenErr int
	getErr   error
}

func newMemoryBookings(stations ...models.Station) *memoryBookings {
	m := &memoryBookings{stations: make(map[int64]*models.Station), bookings: make(map[int64]*models.Booking)}
	for i := range stations {
		st := stations[i]
		m.stations[st.ID] = &st
	}
	return m
}

func (m *memoryBookings) activeAt(stationID int64) int {
	active := 0
	for _, b := range m.bookings {
		if b.StationID == stationID && b.IsActive() {
			active++
		}
	}
	return active
}

func (m *memoryBookings) add(b models.Booking) *models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	m.bookings[b.ID] = &b
	return &b
}

func (m *memoryBookings) Reserve(_ context.Context, stationID int64, build repository.BuildBookingFunc) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	station, ok := m.stations[stationID]
	if !ok {
		return nil, repository.ErrStationNotFound
	}
	booking, err := build(station, m.activeAt(stationID))
	if err != nil {
		return nil, err
	}
	if m.tokenErr > 0 {
		m.tokenErr--
		return nil, repository.ErrTokenTaken
	}
	m.nextID++
	booking.ID = m.nextID
	booking.StationName = station.Name
	stored := *booking
	m.bookings[booking.ID] = &stored
	return booking, nil
}

func (m *memoryBookings) GetByID(_ context.Context, id int64) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memoryBookings) list(match func(*models.Booking) bool) []models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Booking, 0)
	for _, b := range m.bookings {
		if match(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memoryBookings) ListByUser(_ context.Context, userID int64) ([]models.Booking, error) {
	return m.list(func(b *models.Booking) bool { return b.UserID == userID }), nil
}

func (m *memoryBookings) ListAll(_ context.Context) ([]models.Booking, error) {
	return m.list(func(*models.Booking) bool { return true }), nil
}

func (m *memoryBookings) Transition(_ context.Context, t repository.Transition) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[t.BookingID]
	if !ok || b.Status != t.From {
		return nil, repository.ErrStatusChanged
	}
	b.Status = t.To
	b.StartCodeUsed = b.StartCodeUsed || t.MarkStartCodeUsed
	b.EndCodeUsed = b.EndCodeUsed || t.MarkEndCodeUsed
	cp := *b
	return &cp, nil
}

func (m *memoryBookings) CancelExpired(_ context.Context, cutoff time.Time) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.Status == models.BookingStatusBooked && b.ArrivalWindowEnd.Before(cutoff) {
			b.Status = models.BookingStatusCancelled
			out = append(out, *b)
		}
	}
	return out, nil
}

type memoryVehicles struct {
	vehicles map[int64]*models.Vehicle
}

func (m *memoryVehicles) GetForUser(_ context.Context, id, userID int64) (*models.Vehicle, error) {
	v, ok := m.vehicles[id]
	if !ok || v.UserID != userID {
		return nil, repository.ErrVehicleNotFound
	}
	cp := *v
	return &cp, nil
}

type recordingRefresher struct {
	mu       sync.Mutex
	stations []int64
}

func (r *recordingRefresher) RefreshAvailability(_ context.Context, stationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stations = append(r.stations, stationID)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
	last  models.BookingInstructions
}

func (r *recordingNotifier) BookingCreated(_ context.Context, _ *models.User, _ *models.Booking, instructions models.BookingInstructions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = instructions
}

// sequenceCodes cycles through fixed codes so tests can assert on them.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []int
	next  int
	token string
}

func (s *sequenceCodes) Token(time.Time) string { return s.token }

func (s *sequenceCodes) Code() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.codes[s.next%len(s.codes)]
	s.next++
	return c
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }
