package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

const stationColumns = `id, name, address, latitude, longitude, city, total_slots, price_per_kwh,
	charging_power, charger_type, efficiency_rating, amenities, is_active, created_at`

// StationRepository reads the station directory.
type StationRepository struct {
	db *sqlx.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sqlx.DB) *StationRepository {
	return &StationRepository{db: db}
}

// List returns every station ordered by id.
func (r *StationRepository) List(ctx context.Context) ([]models.Station, error) {
	const query = `SELECT ` + stationColumns + ` FROM stations ORDER BY id`
	stations := make([]models.Station, 0)
	if err := r.db.SelectContext(ctx, &stations, query); err != nil {
		return nil, err
	}
	return stations, nil
}

// ListActive returns stations currently accepting bookings.
func (r *StationRepository) ListActive(ctx context.Context) ([]models.Station, error) {
	const query = `SELECT ` + stationColumns + ` FROM stations WHERE is_active ORDER BY id`
	stations := make([]models.Station, 0)
	if err := r.db.SelectContext(ctx, &stations, query); err != nil {
		return nil, err
	}
	return stations, nil
}

// GetByID fetches one station.
func (r *StationRepository) GetByID(ctx context.Context, id int64) (*models.Station, error) {
	const query = `SELECT ` + stationColumns + ` FROM stations WHERE id = $1`
	var station models.Station
	if err := r.db.GetContext(ctx, &station, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, err
	}
	return &station, nil
}

// Create inserts a station.
func (r *StationRepository) Create(ctx context.Context, station *models.Station) error {
	const query = `
		INSERT INTO stations (name, address, latitude, longitude, city, total_slots, price_per_kwh,
			charging_power, charger_type, efficiency_rating, amenities, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		station.Name, station.Address, station.Latitude, station.Longitude, station.City,
		station.TotalSlots, station.PricePerKWh, station.ChargingPower, station.ChargerType,
		station.EfficiencyRating, station.Amenities, station.IsActive,
	).Scan(&station.ID, &station.CreatedAt)
}

// CountActiveBookings counts bookings occupying a slot at the station.
func (r *StationRepository) CountActiveBookings(ctx context.Context, stationID int64) (int, error) {
	return countActive(ctx, r.db, stationID)
}

// ActiveBookingCounts returns the active booking count of every station that has one.
func (r *StationRepository) ActiveBookingCounts(ctx context.Context) (map[int64]int, error) {
	const query = `
		SELECT station_id, COUNT(*) AS active
		FROM bookings
		WHERE status = ANY($1)
		GROUP BY station_id
	`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(models.ActiveBookingStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var stationID int64
		var active int
		if err := rows.Scan(&stationID, &active); err != nil {
			return nil, err
		}
		counts[stationID] = active
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func countActive(ctx context.Context, q sqlx.QueryerContext, stationID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE station_id = $1 AND status = ANY($2)`
	var active int
	if err := sqlx.GetContext(ctx, q, &active, query, stationID, pq.Array(models.ActiveBookingStatuses)); err != nil {
		return 0, err
	}
	return active, nil
}
