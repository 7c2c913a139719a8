package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

const (
	lockStationSQL = `SELECT .+ FROM stations WHERE id = \$1 FOR UPDATE`
	countActiveSQL = `SELECT COUNT\(\*\) FROM bookings WHERE station_id = \$1 AND status = ANY\(\$2\)`
	insertBooking  = `INSERT INTO bookings`
)

func bookingFor(station *models.Station, active int) *models.Booking {
	return &models.Booking{
		UserID:            5,
		StationID:         station.ID,
		VehicleModel:      "Tata Nexon EV",
		CurrentBattery:    20,
		TargetBattery:     80,
		TokenNumber:       "TK1710437400000042",
		SlotNumber:        active + 1,
		PredictedDuration: 120,
		SlotStartTime:     fixedTime,
		StartCode:         1234,
		EndCode:           5678,
		Status:            models.BookingStatusBooked,
	}
}

func TestReserveInsertsUnderStationLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockStationSQL).WithArgs(int64(4)).WillReturnRows(stationRows(4, "ISBT Power Point", 2, true))
	mock.ExpectQuery(countActiveSQL).WithArgs(int64(4), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(insertBooking).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_time", "updated_at"}).AddRow(91, fixedTime, fixedTime))
	mock.ExpectCommit()

	var seenActive int
	booking, err := repo.Reserve(context.Background(), 4, func(station *models.Station, active int) (*models.Booking, error) {
		seenActive = active
		assert.Equal(t, []string{"24/7", "Security"}, []string(station.Amenities))
		return bookingFor(station, active), nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, seenActive)
	assert.Equal(t, int64(91), booking.ID)
	assert.Equal(t, 2, booking.SlotNumber)
	assert.Equal(t, "ISBT Power Point", booking.StationName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveRollsBackWhenBuildRejects(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)
	errFull := errors.New("full")

	mock.ExpectBegin()
	mock.ExpectQuery(lockStationSQL).WithArgs(int64(4)).WillReturnRows(stationRows(4, "ISBT Power Point", 2, true))
	mock.ExpectQuery(countActiveSQL).WithArgs(int64(4), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), 4, func(station *models.Station, active int) (*models.Booking, error) {
		if active >= station.TotalSlots {
			return nil, errFull
		}
		return bookingFor(station, active), nil
	})
	require.ErrorIs(t, err, errFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveUnknownStation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockStationSQL).WithArgs(int64(99)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), 99, func(*models.Station, int) (*models.Booking, error) {
		t.Fatal("build must not run for a missing station")
		return nil, nil
	})
	require.ErrorIs(t, err, ErrStationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveMapsTokenCollision(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockStationSQL).WithArgs(int64(4)).WillReturnRows(stationRows(4, "ISBT Power Point", 2, true))
	mock.ExpectQuery(countActiveSQL).WithArgs(int64(4), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(insertBooking).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "bookings_token_number_key"})
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), 4, func(station *models.Station, active int) (*models.Booking, error) {
		return bookingFor(station, active), nil
	})
	require.ErrorIs(t, err, ErrTokenTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionReportsStatusChange(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectQuery(`UPDATE bookings SET`).
		WithArgs(int64(7), models.BookingStatusBooked, models.BookingStatusCancelled, false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Transition(context.Background(), Transition{
		BookingID: 7,
		From:      models.BookingStatusBooked,
		To:        models.BookingStatusCancelled,
	})
	require.ErrorIs(t, err, ErrStatusChanged)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelExpiredSkipsUpdateWhenNothingExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBookingRepository(db)

	mock.ExpectQuery(`SELECT id FROM bookings WHERE status = \$1 AND arrival_window_end < \$2`).
		WithArgs(models.BookingStatusBooked, fixedTime).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cancelled, err := repo.CancelExpired(context.Background(), fixedTime)
	require.NoError(t, err)
	assert.Empty(t, cancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}
