package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	libdb "evorchestrator/backend/libs/db"
	"evorchestrator/backend/services/orchestrator/internal/models"
)

const vehicleColumns = `id, user_id, make, model, year, color, license_plate, battery_capacity,
	charging_efficiency, max_charging_power, vehicle_range, charging_curve_type, is_primary, created_at`

// VehicleRepository persists vehicles. Every write takes the owner's user row lock so the
// single-primary rule holds under concurrent requests.
type VehicleRepository struct {
	db *sqlx.DB
}

// NewVehicleRepository returns repository.
func NewVehicleRepository(db *sqlx.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// ListByUser returns the user's vehicles, primary first then newest first.
func (r *VehicleRepository) ListByUser(ctx context.Context, userID int64) ([]models.Vehicle, error) {
	const query = `
		SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE user_id = $1
		ORDER BY is_primary DESC, created_at DESC, id DESC
	`
	vehicles := make([]models.Vehicle, 0)
	if err := r.db.SelectContext(ctx, &vehicles, query, userID); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// GetForUser fetches a vehicle owned by userID.
func (r *VehicleRepository) GetForUser(ctx context.Context, id, userID int64) (*models.Vehicle, error) {
	return getVehicle(ctx, r.db, id, userID)
}

// Create inserts v. The vehicle becomes primary when requested or when it is the owner's
// first one; any other primary of the owner is cleared in the same transaction.
func (r *VehicleRepository) Create(ctx context.Context, v *models.Vehicle) error {
	return libdb.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if err := lockUser(ctx, tx, v.UserID); err != nil {
			return err
		}

		var existing int
		if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM vehicles WHERE user_id = $1`, v.UserID); err != nil {
			return err
		}
		if existing == 0 {
			v.IsPrimary = true
		}
		if v.IsPrimary {
			if err := clearPrimary(ctx, tx, v.UserID, 0); err != nil {
				return err
			}
		}

		const query = `
			INSERT INTO vehicles (user_id, make, model, year, color, license_plate, battery_capacity,
				charging_efficiency, max_charging_power, vehicle_range, charging_curve_type, is_primary)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at
		`
		return tx.QueryRowxContext(ctx, query,
			v.UserID, v.Make, v.Model, v.Year, v.Color, v.LicensePlate, v.BatteryCapacity,
			v.ChargingEfficiency, v.MaxChargingPower, v.VehicleRange, v.ChargingCurveType, v.IsPrimary,
		).Scan(&v.ID, &v.CreatedAt)
	})
}

// Update loads the vehicle under the owner's lock, lets apply change it and writes it back.
// Setting IsPrimary clears the flag on the owner's other vehicles in the same transaction.
// An error from apply aborts the transaction and is returned unchanged.
func (r *VehicleRepository) Update(ctx context.Context, userID, vehicleID int64, apply func(*models.Vehicle) error) (*models.Vehicle, error) {
	var vehicle *models.Vehicle
	err := libdb.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		v, err := getVehicle(ctx, tx, vehicleID, userID)
		if err != nil {
			return err
		}
		if err := apply(v); err != nil {
			return err
		}
		if v.IsPrimary {
			if err := clearPrimary(ctx, tx, userID, v.ID); err != nil {
				return err
			}
		}

		const query = `
			UPDATE vehicles SET
				make = $3, model = $4, year = $5, color = $6, license_plate = $7,
				battery_capacity = $8, charging_efficiency = $9, max_charging_power = $10,
				vehicle_range = $11, charging_curve_type = $12, is_primary = $13
			WHERE id = $1 AND user_id = $2
		`
		if _, err := tx.ExecContext(ctx, query,
			v.ID, v.UserID, v.Make, v.Model, v.Year, v.Color, v.LicensePlate, v.BatteryCapacity,
			v.ChargingEfficiency, v.MaxChargingPower, v.VehicleRange, v.ChargingCurveType, v.IsPrimary,
		); err != nil {
			return err
		}
		vehicle = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

// Delete removes a vehicle unless an active booking references it. When the removed vehicle
// was primary the owner's newest remaining vehicle is promoted.
func (r *VehicleRepository) Delete(ctx context.Context, userID, vehicleID int64) error {
	return libdb.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		vehicle, err := getVehicle(ctx, tx, vehicleID, userID)
		if err != nil {
			return err
		}

		var active int
		const activeQuery = `SELECT COUNT(*) FROM bookings WHERE vehicle_id = $1 AND status = ANY($2)`
		if err := tx.GetContext(ctx, &active, activeQuery, vehicleID, pq.Array(models.ActiveBookingStatuses)); err != nil {
			return err
		}
		if active > 0 {
			return ErrVehicleInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1 AND user_id = $2`, vehicleID, userID); err != nil {
			return err
		}

		if vehicle.IsPrimary {
			const promote = `
				UPDATE vehicles SET is_primary = TRUE
				WHERE id = (
					SELECT id FROM vehicles
					WHERE user_id = $1
					ORDER BY created_at DESC, id DESC
					LIMIT 1
				)
			`
			if _, err := tx.ExecContext(ctx, promote, userID); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetPrimary makes vehicleID the owner's only primary vehicle.
func (r *VehicleRepository) SetPrimary(ctx context.Context, userID, vehicleID int64) error {
	return libdb.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := clearPrimary(ctx, tx, userID, vehicleID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `UPDATE vehicles SET is_primary = TRUE WHERE id = $1 AND user_id = $2`, vehicleID, userID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrVehicleNotFound
		}
		return nil
	})
}

// clearPrimary unsets is_primary on the owner's vehicles except keepID.
func clearPrimary(ctx context.Context, tx *sqlx.Tx, userID, keepID int64) error {
	const query = `UPDATE vehicles SET is_primary = FALSE WHERE user_id = $1 AND is_primary AND id <> $2`
	_, err := tx.ExecContext(ctx, query, userID, keepID)
	return err
}

func getVehicle(ctx context.Context, q sqlx.QueryerContext, id, userID int64) (*models.Vehicle, error) {
	const query = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1 AND user_id = $2`
	var vehicle models.Vehicle
	if err := sqlx.GetContext(ctx, q, &vehicle, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}
