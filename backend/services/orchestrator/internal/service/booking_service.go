package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/metrics"
	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/repository"
)

const (
	defaultSlotLead     = 30 * time.Minute
	arrivalLead         = 30 * time.Minute
	arrivalGrace        = 15 * time.Minute
	maxTokenAttempts    = 3
	arrivalWindowLayout = "3:04 PM"

	msgMissingFields      = "Missing required fields"
	msgStationUnavailable = "Station not found or inactive"
	msgNoSlots            = "No available slots at this station"
	msgBookingNotFound    = "Booking not found"
	msgInvalidStartCode   = "Invalid booking or start code"
	msgInvalidEndCode     = "Invalid booking or end code"
)

// BookingRepository defines storage contract used by the booking service.
type BookingRepository interface {
	Reserve(ctx context.Context, stationID int64, build repository.BuildBookingFunc) (*models.Booking, error)
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Booking, error)
	ListAll(ctx context.Context) ([]models.Booking, error)
	Transition(ctx context.Context, t repository.Transition) (*models.Booking, error)
	CancelExpired(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
}

// VehicleLookup resolves a vehicle owned by a user.
type VehicleLookup interface {
	GetForUser(ctx context.Context, id, userID int64) (*models.Vehicle, error)
}

// AvailabilityRefresher is told whenever a station's active bookings change.
type AvailabilityRefresher interface {
	RefreshAvailability(ctx context.Context, stationID int64)
}

// BookingNotifier delivers booking instructions to the driver.
type BookingNotifier interface {
	BookingCreated(ctx context.Context, user *models.User, booking *models.Booking, instructions models.BookingInstructions)
}

// CreateBookingInput carries a reservation request. User is the authenticated caller and
// RequestedUserID the optional userId of the request body.
type CreateBookingInput struct {
	User            *models.User
	RequestedUserID *int64
	StationID       int64
	VehicleID       *int64
	VehicleModel    string
	CurrentBattery  *int
	TargetBattery   *int
	SlotStartTime   *time.Time
}

// BookingConfirmation is a created booking with the driver's instructions.
type BookingConfirmation struct {
	Booking      *models.Booking            `json:"booking"`
	Instructions models.BookingInstructions `json:"instructions"`
}

// BookingService manages the booking lifecycle.
type BookingService struct {
	repo        BookingRepository
	vehicles    VehicleLookup
	refresher   AvailabilityRefresher
	notifier    BookingNotifier
	codes       CodeGenerator
	loc         *time.Location
	noShowGrace time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// BookingOptions tunes BookingService.
type BookingOptions struct {
	Location    *time.Location
	NoShowGrace time.Duration
	Codes       CodeGenerator
}

// NewBookingService builds BookingService. refresher and notifier may be nil.
func NewBookingService(
	repo BookingRepository,
	vehicles VehicleLookup,
	refresher AvailabilityRefresher,
	notifier BookingNotifier,
	opts BookingOptions,
	logger *zap.Logger,
) *BookingService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Codes == nil {
		opts.Codes = RandomCodes{}
	}
	if opts.NoShowGrace < 0 {
		opts.NoShowGrace = 0
	}
	return &BookingService{
		repo:        repo,
		vehicles:    vehicles,
		refresher:   refresher,
		notifier:    notifier,
		codes:       opts.Codes,
		loc:         opts.Location,
		noShowGrace: opts.NoShowGrace,
		now:         time.Now,
		logger:      logger,
	}
}

// Create reserves a slot. The capacity check and the insert run in one transaction holding
// the station row lock.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*BookingConfirmation, error) {
	if in.User == nil {
		return nil, Unauthenticated(msgAuthRequired)
	}
	if in.RequestedUserID != nil && *in.RequestedUserID != in.User.ID {
		return nil, Forbidden("Cannot create bookings for another user")
	}
	if in.StationID <= 0 || in.CurrentBattery == nil || in.TargetBattery == nil ||
		(in.VehicleModel == "" && in.VehicleID == nil) {
		return nil, Validation(msgMissingFields)
	}
	current, target := *in.CurrentBattery, *in.TargetBattery
	if current < 0 || current > 100 || target < 0 || target > 100 {
		return nil, Validation("Battery levels must be between 0 and 100")
	}
	if target <= current {
		return nil, Validation("Target battery must be greater than current battery")
	}

	vehicleModel := in.VehicleModel
	if in.VehicleID != nil {
		vehicle, err := s.vehicles.GetForUser(ctx, *in.VehicleID, in.User.ID)
		if err != nil {
			if errors.Is(err, repository.ErrVehicleNotFound) {
				return nil, NotFound(msgVehicleNotFound, err)
			}
			return nil, Internal("Failed to create booking", err)
		}
		if vehicleModel == "" {
			vehicleModel = vehicle.DisplayName()
		}
	}

	now := s.now()
	slotStart := now.Add(defaultSlotLead)
	if in.SlotStartTime != nil {
		if in.SlotStartTime.Before(now) {
			return nil, Validation("Slot start time must be in the future")
		}
		slotStart = *in.SlotStartTime
	}

	build := func(station *models.Station, active int) (*models.Booking, error) {
		if !station.IsActive {
			return nil, NotFound(msgStationUnavailable, nil)
		}
		if active >= station.TotalSlots {
			return nil, Conflict(msgNoSlots, nil)
		}
		startCode, endCode := codePair(s.codes)
		return &models.Booking{
			UserID:             in.User.ID,
			StationID:          station.ID,
			VehicleID:          in.VehicleID,
			VehicleModel:       vehicleModel,
			CurrentBattery:     current,
			TargetBattery:      target,
			TokenNumber:        s.codes.Token(now),
			SlotNumber:         active + 1,
			PredictedDuration:  PredictedDuration(current, target),
			SlotStartTime:      slotStart,
			ArrivalWindowStart: slotStart.Add(-arrivalLead),
			ArrivalWindowEnd:   slotStart.Add(arrivalGrace),
			StartCode:          startCode,
			EndCode:            endCode,
			Status:             models.BookingStatusBooked,
		}, nil
	}

	var booking *models.Booking
	var err error
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		booking, err = s.repo.Reserve(ctx, in.StationID, build)
		if !errors.Is(err, repository.ErrTokenTaken) {
			break
		}
		s.logger.Warn("booking token collision, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, s.reservationError(in.StationID, err)
	}

	instructions := s.instructions(booking)
	metrics.RecordBookingCreated()
	s.logger.Info("booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("user_id", booking.UserID),
		zap.Int64("station_id", booking.StationID),
		zap.Int("slot_number", booking.SlotNumber),
	)

	s.stationChanged(ctx, booking.StationID)
	if s.notifier != nil {
		s.notifier.BookingCreated(ctx, in.User, booking, instructions)
	}

	return &BookingConfirmation{Booking: booking, Instructions: instructions}, nil
}

func (s *BookingService) reservationError(stationID int64, err error) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		if svcErr.Kind == KindConflict {
			metrics.RecordBookingRejected("capacity")
		} else {
			metrics.RecordBookingRejected("station_unavailable")
		}
		return err
	case errors.Is(err, repository.ErrStationNotFound):
		metrics.RecordBookingRejected("station_unavailable")
		return NotFound(msgStationUnavailable, err)
	}
	s.logger.Error("failed to reserve slot", zap.Int64("station_id", stationID), zap.Error(err))
	return Internal("Failed to create booking", err)
}

// Cancel cancels a booking of the caller.
func (s *BookingService) Cancel(ctx context.Context, user *models.User, bookingID int64) (*models.Booking, error) {
	booking, err := s.ownedBooking(ctx, user, bookingID)
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, booking, EventCancel, repository.Transition{})
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking cancelled", zap.Int64("booking_id", updated.ID), zap.String("from", booking.Status))
	return updated, nil
}

// StartCharging redeems the start code of a booked reservation.
func (s *BookingService) StartCharging(ctx context.Context, user *models.User, bookingID int64, code int) (*models.Booking, error) {
	booking, err := s.codeHolder(ctx, user, bookingID, msgInvalidStartCode, func(b *models.Booking) bool { return b.StartCode == code })
	if err != nil {
		return nil, err
	}
	if booking.StartCodeUsed {
		return nil, Conflict("Start code already used", nil)
	}

	updated, err := s.transition(ctx, booking, EventStart, repository.Transition{MarkStartCodeUsed: true})
	if err != nil {
		return nil, err
	}
	s.logger.Info("charging started", zap.Int64("booking_id", updated.ID))
	return updated, nil
}

// EndCharging redeems the end code of a session in progress.
func (s *BookingService) EndCharging(ctx context.Context, user *models.User, bookingID int64, code int) (*models.Booking, error) {
	booking, err := s.codeHolder(ctx, user, bookingID, msgInvalidEndCode, func(b *models.Booking) bool { return b.EndCode == code })
	if err != nil {
		return nil, err
	}
	if booking.EndCodeUsed {
		return nil, Conflict("End code already used", nil)
	}

	updated, err := s.transition(ctx, booking, EventComplete, repository.Transition{MarkEndCodeUsed: true})
	if err != nil {
		return nil, err
	}
	s.logger.Info("charging completed", zap.Int64("booking_id", updated.ID))
	return updated, nil
}

// ListForUser returns a user's bookings. Only the user or an admin may read them.
func (s *BookingService) ListForUser(ctx context.Context, requester *models.User, userID int64) ([]models.Booking, error) {
	if requester == nil {
		return nil, Unauthenticated(msgAuthRequired)
	}
	if requester.ID != userID && !requester.IsAdmin() {
		return nil, Forbidden("Cannot read bookings of another user")
	}
	bookings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, Internal("Failed to fetch bookings", err)
	}
	return bookings, nil
}

// ListAll returns every booking. Admin only.
func (s *BookingService) ListAll(ctx context.Context, requester *models.User) ([]models.Booking, error) {
	if requester == nil {
		return nil, Unauthenticated(msgAuthRequired)
	}
	if !requester.IsAdmin() {
		return nil, Forbidden("Admin access required")
	}
	bookings, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, Internal("Failed to fetch bookings", err)
	}
	return bookings, nil
}

// ExpireNoShows cancels booked reservations whose arrival window closed more than the grace
// period ago and returns how many were cancelled.
func (s *BookingService) ExpireNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.noShowGrace)
	cancelled, err := s.repo.CancelExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(cancelled) == 0 {
		return 0, nil
	}

	stations := make(map[int64]struct{})
	for _, b := range cancelled {
		stations[b.StationID] = struct{}{}
	}
	for stationID := range stations {
		s.stationChanged(ctx, stationID)
	}

	metrics.RecordBookingTransition("expire", len(cancelled))
	s.logger.Info("expired no-show bookings", zap.Int("count", len(cancelled)), zap.Time("cutoff", cutoff))
	return len(cancelled), nil
}

// ownedBooking loads a booking of user; bookings of other users are reported as missing.
func (s *BookingService) ownedBooking(ctx context.Context, user *models.User, bookingID int64) (*models.Booking, error) {
	if user == nil {
		return nil, Unauthenticated(msgAuthRequired)
	}
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, NotFound(msgBookingNotFound, err)
		}
		return nil, Internal("Failed to fetch booking", err)
	}
	if booking.UserID != user.ID {
		return nil, NotFound(msgBookingNotFound, nil)
	}
	return booking, nil
}

// codeHolder loads a booking of user for a code redemption. A missing booking, another user's
// booking and a wrong code all yield the same rejection; lookup failures stay internal.
func (s *BookingService) codeHolder(ctx context.Context, user *models.User, bookingID int64, rejection string, matches func(*models.Booking) bool) (*models.Booking, error) {
	booking, err := s.ownedBooking(ctx, user, bookingID)
	if err != nil {
		switch KindOf(err) {
		case KindInternal, KindUnauthenticated:
			return nil, err
		}
		return nil, Validation(rejection)
	}
	if !matches(booking) {
		return nil, Validation(rejection)
	}
	return booking, nil
}

// transition applies event to booking with a compare-and-set on its current status.
func (s *BookingService) transition(ctx context.Context, booking *models.Booking, event string, t repository.Transition) (*models.Booking, error) {
	to, err := nextStatus(booking.Status, event)
	if err != nil {
		return nil, transitionConflict(booking.Status, event)
	}

	t.BookingID = booking.ID
	t.From = booking.Status
	t.To = to
	updated, err := s.repo.Transition(ctx, t)
	if err != nil {
		if !errors.Is(err, repository.ErrStatusChanged) {
			return nil, Internal("Failed to update booking", err)
		}
		current, getErr := s.repo.GetByID(ctx, booking.ID)
		if getErr != nil {
			return nil, Conflict("Booking was modified, please retry", err)
		}
		return nil, transitionConflict(current.Status, event)
	}

	metrics.RecordBookingTransition(event, 1)
	s.stationChanged(ctx, updated.StationID)
	return updated, nil
}

func transitionConflict(status, event string) error {
	if isTerminal(status) {
		return Conflict(fmt.Sprintf("Booking already %s", status), nil)
	}
	switch event {
	case EventStart:
		return Conflict(fmt.Sprintf("Cannot start charging for a booking that is %s", status), nil)
	case EventComplete:
		return Conflict(fmt.Sprintf("Cannot end charging for a booking that is %s", status), nil)
	}
	return Conflict(fmt.Sprintf("Booking cannot be updated while %s", status), nil)
}

func (s *BookingService) stationChanged(ctx context.Context, stationID int64) {
	if s.refresher != nil {
		s.refresher.RefreshAvailability(ctx, stationID)
	}
}

func (s *BookingService) instructions(b *models.Booking) models.BookingInstructions {
	return models.BookingInstructions{
		Token:     b.TokenNumber,
		StartCode: b.StartCode,
		EndCode:   b.EndCode,
		ArrivalWindow: fmt.Sprintf("%s - %s",
			b.ArrivalWindowStart.In(s.loc).Format(arrivalWindowLayout),
			b.ArrivalWindowEnd.In(s.loc).Format(arrivalWindowLayout),
		),
		PredictedDuration: fmt.Sprintf("%d minutes", b.PredictedDuration),
	}
}
