package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	libdb "evorchestrator/backend/libs/db"
	"evorchestrator/backend/services/orchestrator/internal/models"
)

const bookingColumns = `id, user_id, station_id, vehicle_id, vehicle_model, current_battery, target_battery,
	token_number, slot_number, predicted_duration, slot_start_time, arrival_window_start, arrival_window_end,
	start_code, end_code, start_code_used, end_code_used, status, booking_time, updated_at`

const bookingColumnsQualified = `b.id, b.user_id, b.station_id, s.name AS station_name, b.vehicle_id, b.vehicle_model,
	b.current_battery, b.target_battery, b.token_number, b.slot_number, b.predicted_duration, b.slot_start_time,
	b.arrival_window_start, b.arrival_window_end, b.start_code, b.end_code, b.start_code_used, b.end_code_used,
	b.status, b.booking_time, b.updated_at`

// BuildBookingFunc turns a locked station and its active booking count into the booking to
// insert. Returning an error aborts the reservation.
type BuildBookingFunc func(station *models.Station, activeBookings int) (*models.Booking, error)

// Transition is a compare-and-set status change of one booking.
type Transition struct {
	BookingID         int64
	From              string
	To                string
	MarkStartCodeUsed bool
	MarkEndCodeUsed   bool
}

// BookingRepository persists bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository returns repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Reserve locks the station row, counts its active bookings and inserts the booking produced
// by build, all in one transaction. Concurrent reservations of the same station serialise on
// the row lock so capacity can never be exceeded.
func (r *BookingRepository) Reserve(ctx context.Context, stationID int64, build BuildBookingFunc) (*models.Booking, error) {
	var created *models.Booking
	err := libdb.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var station models.Station
		const lockQuery = `SELECT ` + stationColumns + ` FROM stations WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &station, lockQuery, stationID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStationNotFound
			}
			return err
		}

		active, err := countActive(ctx, tx, stationID)
		if err != nil {
			return err
		}

		booking, err := build(&station, active)
		if err != nil {
			return err
		}

		const insert = `
			INSERT INTO bookings (user_id, station_id, vehicle_id, vehicle_model, current_battery, target_battery,
				token_number, slot_number, predicted_duration, slot_start_time, arrival_window_start,
				arrival_window_end, start_code, end_code, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id, booking_time, updated_at
		`
		err = tx.QueryRowxContext(ctx, insert,
			booking.UserID, booking.StationID, booking.VehicleID, booking.VehicleModel, booking.CurrentBattery,
			booking.TargetBattery, booking.TokenNumber, booking.SlotNumber, booking.PredictedDuration,
			booking.SlotStartTime, booking.ArrivalWindowStart, booking.ArrivalWindowEnd,
			booking.StartCode, booking.EndCode, booking.Status,
		).Scan(&booking.ID, &booking.BookingTime, &booking.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "bookings_token_number_key") {
				return ErrTokenTaken
			}
			return err
		}

		booking.StationName = station.Name
		created = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID fetches one booking.
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	const query = `
		SELECT ` + bookingColumnsQualified + `
		FROM bookings b
		JOIN stations s ON s.id = b.station_id
		WHERE b.id = $1
	`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// ListByUser returns the user's bookings newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	const query = `
		SELECT ` + bookingColumnsQualified + `
		FROM bookings b
		JOIN stations s ON s.id = b.station_id
		WHERE b.user_id = $1
		ORDER BY b.booking_time DESC, b.id DESC
	`
	bookings := make([]models.Booking, 0)
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListAll returns every booking newest first.
func (r *BookingRepository) ListAll(ctx context.Context) ([]models.Booking, error) {
	const query = `
		SELECT ` + bookingColumnsQualified + `
		FROM bookings b
		JOIN stations s ON s.id = b.station_id
		ORDER BY b.booking_time DESC, b.id DESC
	`
	bookings := make([]models.Booking, 0)
	if err := r.db.SelectContext(ctx, &bookings, query); err != nil {
		return nil, err
	}
	return bookings, nil
}

// Transition moves a booking from t.From to t.To. ErrStatusChanged is returned when the
// booking is no longer in t.From.
func (r *BookingRepository) Transition(ctx context.Context, t Transition) (*models.Booking, error) {
	const query = `
		UPDATE bookings SET
			status = $3,
			start_code_used = start_code_used OR $4,
			end_code_used = end_code_used OR $5,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns
	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, query, t.BookingID, t.From, t.To, t.MarkStartCodeUsed, t.MarkEndCodeUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusChanged
		}
		return nil, err
	}
	return &booking, nil
}

// CancelExpired cancels bookings still booked whose arrival window ended before cutoff and
// returns the affected rows.
func (r *BookingRepository) CancelExpired(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	var expired []int64
	const selectQuery = `SELECT id FROM bookings WHERE status = $1 AND arrival_window_end < $2`
	if err := r.db.SelectContext(ctx, &expired, selectQuery, models.BookingStatusBooked, cutoff); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	const updateQuery = `
		UPDATE bookings SET status = $1, updated_at = NOW()
		WHERE id = ANY($2) AND status = $3
		RETURNING ` + bookingColumns
	cancelled := make([]models.Booking, 0, len(expired))
	err := r.db.SelectContext(ctx, &cancelled, updateQuery,
		models.BookingStatusCancelled, pq.Array(expired), models.BookingStatusBooked)
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
