package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

var fixedTime = time.Date(2025, 3, 14, 17, 30, 0, 0, time.UTC)

func stationRows(id int64, name string, totalSlots int, active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "address", "latitude", "longitude", "city", "total_slots", "price_per_kwh",
		"charging_power", "charger_type", "efficiency_rating", "amenities", "is_active", "created_at",
	}).AddRow(id, name, "ISBT Kashmere Gate, Delhi", 28.6692, 77.2265, "Delhi", totalSlots, 14.0,
		60, "CHAdeMO", 0.9, "{24/7,Security}", active, fixedTime)
}

func vehicleRows(id, userID int64, primary bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "make", "model", "year", "color", "license_plate", "battery_capacity",
		"charging_efficiency", "max_charging_power", "vehicle_range", "charging_curve_type", "is_primary", "created_at",
	}).AddRow(id, userID, "Tata", "Nexon EV", 2023, nil, nil, 40.5, 0.85, 50.0, 312, "standard", primary, fixedTime)
}
