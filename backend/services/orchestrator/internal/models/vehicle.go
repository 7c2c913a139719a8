package models

import "time"

// Vehicle is a car registered by a user.
type Vehicle struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	Make               string    `db:"make" json:"make"`
	Model              string    `db:"model" json:"model"`
	Year               int       `db:"year" json:"year"`
	Color              *string   `db:"color" json:"color"`
	LicensePlate       *string   `db:"license_plate" json:"license_plate"`
	BatteryCapacity    float64   `db:"battery_capacity" json:"battery_capacity"`
	ChargingEfficiency float64   `db:"charging_efficiency" json:"charging_efficiency"`
	MaxChargingPower   float64   `db:"max_charging_power" json:"max_charging_power"`
	VehicleRange       int       `db:"vehicle_range" json:"vehicle_range"`
	ChargingCurveType  string    `db:"charging_curve_type" json:"charging_curve_type"`
	IsPrimary          bool      `db:"is_primary" json:"is_primary"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// DisplayName is the make and model joined for booking records.
func (v *Vehicle) DisplayName() string {
	return v.Make + " " + v.Model
}
