package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

const utilizationColumns = `id, station_id, date, hour, utilization, avg_wait_time, total_sessions`

// UtilizationRepository stores hourly station utilization samples.
type UtilizationRepository struct {
	db *sqlx.DB
}

// NewUtilizationRepository returns repository.
func NewUtilizationRepository(db *sqlx.DB) *UtilizationRepository {
	return &UtilizationRepository{db: db}
}

// LatestByStationForDay returns, per station, the utilization of the latest hour of day
// that is not after hour.
func (r *UtilizationRepository) LatestByStationForDay(ctx context.Context, day time.Time, hour int) (map[int64]float64, error) {
	const query = `
		SELECT DISTINCT ON (station_id) station_id, utilization
		FROM station_utilization
		WHERE date = $1 AND hour <= $2
		ORDER BY station_id, hour DESC
	`
	rows, err := r.db.QueryxContext(ctx, query, dateOnly(day), hour)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest := make(map[int64]float64)
	for rows.Next() {
		var stationID int64
		var utilization float64
		if err := rows.Scan(&stationID, &utilization); err != nil {
			return nil, err
		}
		latest[stationID] = utilization
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return latest, nil
}

// LatestBetween returns the most recent sample of a station whose date/hour lies in [from, to].
func (r *UtilizationRepository) LatestBetween(ctx context.Context, stationID int64, from, to time.Time) (*models.StationUtilization, error) {
	const query = `
		SELECT ` + utilizationColumns + `
		FROM station_utilization
		WHERE station_id = $1
		  AND date + make_interval(hours => hour) BETWEEN $2 AND $3
		ORDER BY date DESC, hour DESC
		LIMIT 1
	`
	var sample models.StationUtilization
	if err := r.db.GetContext(ctx, &sample, query, stationID, wallClock(from), wallClock(to)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoUtilization
		}
		return nil, err
	}
	return &sample, nil
}

// HourlyAverages returns the mean utilization per hour of day since the given day.
func (r *UtilizationRepository) HourlyAverages(ctx context.Context, stationID int64, since time.Time) ([]models.HourlyAverage, error) {
	const query = `
		SELECT hour, AVG(utilization) AS utilization
		FROM station_utilization
		WHERE station_id = $1 AND date >= $2
		GROUP BY hour
		ORDER BY hour
	`
	averages := make([]models.HourlyAverage, 0, 24)
	if err := r.db.SelectContext(ctx, &averages, query, stationID, dateOnly(since)); err != nil {
		return nil, err
	}
	return averages, nil
}

// Upsert writes the sample for its station/date/hour, replacing an existing one.
func (r *UtilizationRepository) Upsert(ctx context.Context, sample *models.StationUtilization) error {
	const query = `
		INSERT INTO station_utilization (station_id, date, hour, utilization, avg_wait_time, total_sessions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (station_id, date, hour) DO UPDATE SET
			utilization = EXCLUDED.utilization,
			avg_wait_time = EXCLUDED.avg_wait_time,
			total_sessions = EXCLUDED.total_sessions
		RETURNING id
	`
	return r.db.QueryRowxContext(ctx, query,
		sample.StationID, dateOnly(sample.Date), sample.Hour, sample.Utilization,
		sample.AvgWaitTime, sample.TotalSessions,
	).Scan(&sample.ID)
}

// dateOnly renders the calendar day of t in its own location.
func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}

// wallClock renders t as a zone-less timestamp matching date + hour arithmetic.
func wallClock(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
