package models

import "time"

// Booking status values.
const (
	BookingStatusBooked     = "booked"
	BookingStatusInProgress = "in_progress"
	BookingStatusCompleted  = "completed"
	BookingStatusCancelled  = "cancelled"
)

// ActiveBookingStatuses count against station capacity.
var ActiveBookingStatuses = []string{BookingStatusBooked, BookingStatusInProgress}

// Booking is a reservation of one charging slot.
type Booking struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	StationID          int64     `db:"station_id" json:"station_id"`
	StationName        string    `db:"station_name" json:"station_name,omitempty"`
	VehicleID          *int64    `db:"vehicle_id" json:"vehicle_id"`
	VehicleModel       string    `db:"vehicle_model" json:"vehicle_model"`
	CurrentBattery     int       `db:"current_battery" json:"current_battery"`
	TargetBattery      int       `db:"target_battery" json:"target_battery"`
	TokenNumber        string    `db:"token_number" json:"token_number"`
	SlotNumber         int       `db:"slot_number" json:"slot_number"`
	PredictedDuration  int       `db:"predicted_duration" json:"predicted_duration"`
	SlotStartTime      time.Time `db:"slot_start_time" json:"slot_start_time"`
	ArrivalWindowStart time.Time `db:"arrival_window_start" json:"arrival_window_start"`
	ArrivalWindowEnd   time.Time `db:"arrival_window_end" json:"arrival_window_end"`
	StartCode          int       `db:"start_code" json:"start_code"`
	EndCode            int       `db:"end_code" json:"end_code"`
	StartCodeUsed      bool      `db:"start_code_used" json:"start_code_used"`
	EndCodeUsed        bool      `db:"end_code_used" json:"end_code_used"`
	Status             string    `db:"status" json:"status"`
	BookingTime        time.Time `db:"booking_time" json:"booking_time"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the booking occupies a slot.
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusBooked || b.Status == BookingStatusInProgress
}

// BookingInstructions is what the driver needs at the station.
type BookingInstructions struct {
	Token             string `json:"token"`
	StartCode         int    `json:"startCode"`
	EndCode           int    `json:"endCode"`
	ArrivalWindow     string `json:"arrivalWindow"`
	PredictedDuration string `json:"predictedDuration"`
}
