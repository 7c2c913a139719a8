package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/http/handlers"
	"evorchestrator/backend/services/orchestrator/internal/http/middleware"
	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/password"
	"evorchestrator/backend/services/orchestrator/internal/repository"
	"evorchestrator/backend/services/orchestrator/internal/service"
)

// store backs every repository interface the router needs with in-memory maps.
type store struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	stations map[int64]*models.Station
	bookings map[int64]*models.Booking
	nextID   int64
}

func newStore() *store {
	return &store{
		users:    make(map[int64]*models.User),
		stations: make(map[int64]*models.Station),
		bookings: make(map[int64]*models.Booking),
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *store) activeAt(stationID int64) int {
	n := 0
	for _, b := range s.bookings {
		if b.StationID == stationID && b.IsActive() {
			n++
		}
	}
	return n
}

func (s *store) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *store) UpsertByEmail(context.Context, string, string) (*models.User, error) {
	return nil, repository.ErrUserNotFound
}

func (s *store) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *store) GetByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

type stationStore struct{ *store }

func (s stationStore) List(context.Context) ([]models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, *st)
	}
	return out, nil
}

func (s stationStore) GetByID(_ context.Context, id int64) (*models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[id]
	if !ok {
		return nil, repository.ErrStationNotFound
	}
	cp := *st
	return &cp, nil
}

func (s stationStore) CountActiveBookings(_ context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeAt(id), nil
}

type noUtilization struct{}

func (noUtilization) LatestByStationForDay(context.Context, time.Time, int) (map[int64]float64, error) {
	return map[int64]float64{}, nil
}

func (noUtilization) LatestBetween(context.Context, int64, time.Time, time.Time) (*models.StationUtilization, error) {
	return nil, repository.ErrNoUtilization
}

func (noUtilization) HourlyAverages(context.Context, int64, time.Time) ([]models.HourlyAverage, error) {
	return nil, nil
}

type bookingStore struct{ *store }

func (s bookingStore) Reserve(_ context.Context, stationID int64, build repository.BuildBookingFunc) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[stationID]
	if !ok {
		return nil, repository.ErrStationNotFound
	}
	b, err := build(st, s.activeAt(stationID))
	if err != nil {
		return nil, err
	}
	b.ID = s.id()
	b.StationName = st.Name
	cp := *b
	s.bookings[b.ID] = &cp
	return b, nil
}

func (s bookingStore) GetByID(_ context.Context, id int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s bookingStore) ListByUser(_ context.Context, userID int64) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s bookingStore) ListAll(context.Context) ([]models.Booking, error) {
	return nil, nil
}

func (s bookingStore) Transition(_ context.Context, t repository.Transition) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[t.BookingID]
	if !ok || b.Status != t.From {
		return nil, repository.ErrStatusChanged
	}
	b.Status = t.To
	b.StartCodeUsed = b.StartCodeUsed || t.MarkStartCodeUsed
	b.EndCodeUsed = b.EndCodeUsed || t.MarkEndCodeUsed
	cp := *b
	return &cp, nil
}

func (s bookingStore) CancelExpired(context.Context, time.Time) ([]models.Booking, error) {
	return nil, nil
}

type noVehicles struct{}

func (noVehicles) GetForUser(context.Context, int64, int64) (*models.Vehicle, error) {
	return nil, repository.ErrVehicleNotFound
}

type testAPI struct {
	handler http.Handler
	store   *store
	token   string
	user    *models.User
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop()
	st := newStore()

	st.stations[100] = &models.Station{ID: 100, Name: "ISBT Power Point", City: "Delhi", TotalSlots: 2, PricePerKWh: 14, ChargingPower: 60, EfficiencyRating: 0.9, IsActive: true}
	st.stations[101] = &models.Station{ID: 101, Name: "Airport Express Charge", City: "Delhi", TotalSlots: 8, PricePerKWh: 18, ChargingPower: 100, EfficiencyRating: 0.96, IsActive: true}

	user := &models.User{Email: "asha@example.com", Name: "Asha", Role: models.RoleUser}
	require.NoError(t, st.Create(context.Background(), user))

	tokens := service.NewTokenService("router-test-secret", time.Hour)
	token, err := tokens.Issue(user)
	require.NoError(t, err)

	auth := service.NewAuthService(st, password.NewBcryptHasher(0), tokens, "", logger)
	stations := service.NewStationService(stationStore{st}, noUtilization{}, nil, nil, time.UTC, logger)
	bookings := service.NewBookingService(bookingStore{st}, noVehicles{}, stations, nil, service.BookingOptions{Location: time.UTC}, logger)

	router := NewRouter(RouterDeps{
		AuthHandlers:     handlers.NewAuthHandlers(auth, logger),
		StationsHandlers: handlers.NewStationsHandlers(stations, logger),
		VehiclesHandlers: handlers.NewVehiclesHandlers(service.NewVehicleService(nil, logger), logger),
		BookingsHandlers: handlers.NewBookingsHandlers(bookings, logger),
		HealthHandler:    handlers.NewHealthHandler(),
	}, middleware.AuthMiddleware(auth, false, logger), middleware.NewRateLimiter(100, 100, logger).Handler)

	return &testAPI{handler: router, store: st, token: token, user: user}
}

func (a *testAPI) do(t *testing.T, method, path, body string, authenticated bool) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec, payload
}

func (a *testAPI) book(stationID int64, status string) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	id := a.store.id()
	a.store.bookings[id] = &models.Booking{ID: id, UserID: 999, StationID: stationID, Status: status}
}

func TestCreateBookingAtFullStationIsRejected(t *testing.T) {
	api := newTestAPI(t)
	api.book(100, models.BookingStatusBooked)
	api.book(100, models.BookingStatusBooked)

	rec, body := api.do(t, http.MethodPost, "/api/bookings/create",
		`{"stationId": 100, "vehicleModel": "Tata Nexon EV", "currentBattery": 20, "targetBattery": 80}`, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No available slots at this station", body["error"])
	assert.Equal(t, 2, api.store.activeAt(100))
}

func TestCreateBookingReturnsInstructions(t *testing.T) {
	api := newTestAPI(t)
	api.book(100, models.BookingStatusBooked)

	rec, body := api.do(t, http.MethodPost, "/api/bookings/create",
		`{"userId": "`+jsonID(api.user.ID)+`", "stationId": "100", "vehicleModel": "Tata Nexon EV", "currentBattery": 20, "targetBattery": 80}`, true)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Booking created successfully", body["message"])

	data := body["data"].(map[string]interface{})
	booking := data["booking"].(map[string]interface{})
	instructions := data["instructions"].(map[string]interface{})
	assert.Equal(t, float64(2), booking["slot_number"])
	assert.Equal(t, "booked", booking["status"])
	assert.Equal(t, "120 minutes", instructions["predictedDuration"])
	assert.Regexp(t, `^TK\d+$`, instructions["token"])
	assert.NotEqual(t, instructions["startCode"], instructions["endCode"])
}

func TestCreateBookingForAnotherUserIsForbidden(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodPost, "/api/bookings/create",
		`{"userId": 42, "stationId": 101, "vehicleModel": "Tata Nexon EV", "currentBattery": 20, "targetBattery": 80}`, true)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestBookingRoutesRequireAuthentication(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodPost, "/api/bookings/create", `{}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required. Please login.", body["error"])
}

func TestStartChargingRejectsWrongCode(t *testing.T) {
	api := newTestAPI(t)
	api.store.bookings[50] = &models.Booking{ID: 50, UserID: api.user.ID, StationID: 101, Status: models.BookingStatusBooked, StartCode: 4321, EndCode: 8765}

	rec, body := api.do(t, http.MethodPost, "/api/bookings/start/50", `{"startCode": 1111}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid booking or start code", body["error"])

	rec, body = api.do(t, http.MethodPost, "/api/bookings/start/50", `{"startCode": "4321"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Charging started successfully", body["message"])
}

func TestCancelTwiceIsRejected(t *testing.T) {
	api := newTestAPI(t)
	api.store.bookings[60] = &models.Booking{ID: 60, UserID: api.user.ID, StationID: 101, Status: models.BookingStatusBooked}

	rec, _ := api.do(t, http.MethodPut, "/api/bookings/cancel/60", ``, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := api.do(t, http.MethodPut, "/api/bookings/cancel/60", ``, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Booking already cancelled", body["error"])
}

func TestAvailabilityAndStations(t *testing.T) {
	api := newTestAPI(t)
	api.book(100, models.BookingStatusInProgress)

	rec, body := api.do(t, http.MethodGet, "/api/bookings/availability/100", ``, false)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["activeBookings"])
	assert.Equal(t, float64(1), data["availableSlots"])

	rec, body = api.do(t, http.MethodGet, "/api/stations?sort=price", ``, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 2)

	rec, body = api.do(t, http.MethodGet, "/api/stations/abc", ``, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid station ID", body["error"])

	rec, body = api.do(t, http.MethodGet, "/api/stations/999", ``, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Station not found", body["error"])
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodGet, "/health", ``, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])

	rec, body = api.do(t, http.MethodGet, "/api/nowhere", ``, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", body["error"])
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
