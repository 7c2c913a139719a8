package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/http/middleware"
	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/service"
)

// BookingService is the lifecycle logic behind the booking endpoints.
type BookingService interface {
	Create(ctx context.Context, in service.CreateBookingInput) (*service.BookingConfirmation, error)
	Cancel(ctx context.Context, user *models.User, bookingID int64) (*models.Booking, error)
	StartCharging(ctx context.Context, user *models.User, bookingID int64, code int) (*models.Booking, error)
	EndCharging(ctx context.Context, user *models.User, bookingID int64, code int) (*models.Booking, error)
	ListForUser(ctx context.Context, requester *models.User, userID int64) ([]models.Booking, error)
	ListAll(ctx context.Context, requester *models.User) ([]models.Booking, error)
}

// BookingsHandlers serves /api/bookings.
type BookingsHandlers struct {
	bookings BookingService
	logger   *zap.Logger
}

// NewBookingsHandlers returns handler.
func NewBookingsHandlers(bookings BookingService, logger *zap.Logger) *BookingsHandlers {
	return &BookingsHandlers{bookings: bookings, logger: logger}
}

// flexibleID accepts ids sent either as JSON numbers or numeric strings. set records that the
// field was present and non-null; valid that it parsed.
type flexibleID struct {
	value *int64
	set   bool
	valid bool
}

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	f.set = true
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	f.value, f.valid = &v, true
	return nil
}

type createBookingRequest struct {
	UserID         flexibleID      `json:"userId"`
	StationID      flexibleID      `json:"stationId"`
	VehicleID      flexibleID      `json:"vehicleId"`
	VehicleModel   string          `json:"vehicleModel"`
	CurrentBattery *int            `json:"currentBattery"`
	TargetBattery  *int            `json:"targetBattery"`
	SlotStartTime  json.RawMessage `json:"slotStartTime"`
}

// Create handles POST /api/bookings/create.
func (h *BookingsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !req.StationID.valid {
		writeError(w, http.StatusBadRequest, "Station is required")
		return
	}
	if (req.UserID.set && !req.UserID.valid) || (req.VehicleID.set && !req.VehicleID.valid) {
		writeError(w, http.StatusBadRequest, "Invalid user or vehicle ID")
		return
	}

	slotStart, err := parseSlotStart(req.SlotStartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid slot start time")
		return
	}

	confirmation, err := h.bookings.Create(r.Context(), service.CreateBookingInput{
		User:            user,
		RequestedUserID: req.UserID.value,
		StationID:       *req.StationID.value,
		VehicleID:       req.VehicleID.value,
		VehicleModel:    strings.TrimSpace(req.VehicleModel),
		CurrentBattery:  req.CurrentBattery,
		TargetBattery:   req.TargetBattery,
		SlotStartTime:   slotStart,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create booking")
		return
	}
	writeSuccess(w, http.StatusCreated, confirmation, "Booking created successfully")
}

// Cancel handles PUT /api/bookings/cancel/{bookingId}.
func (h *BookingsHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "bookingId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.bookings.Cancel(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to cancel booking")
		return
	}
	writeSuccess(w, http.StatusOK, booking, "Booking cancelled successfully")
}

// Start handles POST /api/bookings/start/{bookingId}.
func (h *BookingsHandlers) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, code, ok := h.codeRequest(w, r, "startCode", "Invalid booking or start code")
	if !ok {
		return
	}

	booking, err := h.bookings.StartCharging(r.Context(), user, id, code)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to start charging")
		return
	}
	writeSuccess(w, http.StatusOK, booking, "Charging started successfully")
}

// End handles POST /api/bookings/end/{bookingId}.
func (h *BookingsHandlers) End(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, code, ok := h.codeRequest(w, r, "endCode", "Invalid booking or end code")
	if !ok {
		return
	}

	booking, err := h.bookings.EndCharging(r.Context(), user, id, code)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to end charging")
		return
	}
	writeSuccess(w, http.StatusOK, booking, "Charging completed successfully")
}

// ListForUser handles GET /api/bookings/user/{userId}.
func (h *BookingsHandlers) ListForUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	bookings, err := h.bookings.ListForUser(r.Context(), user, userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch bookings")
		return
	}
	writeSuccess(w, http.StatusOK, bookings, "")
}

// ListAll handles GET /api/bookings/all.
func (h *BookingsHandlers) ListAll(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	bookings, err := h.bookings.ListAll(r.Context(), user)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch bookings")
		return
	}
	writeSuccess(w, http.StatusOK, bookings, "")
}

// codeRequest reads the booking id and the named code field. Any malformed part yields the same
// rejection as a wrong code.
func (h *BookingsHandlers) codeRequest(w http.ResponseWriter, r *http.Request, field, rejection string) (int64, int, bool) {
	id, ok := pathID(r, "bookingId")
	if !ok {
		writeError(w, http.StatusBadRequest, rejection)
		return 0, 0, false
	}

	var body map[string]flexibleID
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, rejection)
		return 0, 0, false
	}
	code, present := body[field]
	if !present || !code.valid {
		writeError(w, http.StatusBadRequest, rejection)
		return 0, 0, false
	}
	return id, int(*code.value), true
}

func (h *BookingsHandlers) user(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required. Please login.")
	}
	return user, ok
}

func parseSlotStart(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
