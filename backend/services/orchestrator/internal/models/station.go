package models

import (
	"time"

	"github.com/lib/pq"
)

// Station is a physical charging site with a fixed number of slots.
type Station struct {
	ID               int64          `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Address          string         `db:"address" json:"address"`
	Latitude         float64        `db:"latitude" json:"latitude"`
	Longitude        float64        `db:"longitude" json:"longitude"`
	City             string         `db:"city" json:"city"`
	TotalSlots       int            `db:"total_slots" json:"total_slots"`
	PricePerKWh      float64        `db:"price_per_kwh" json:"price_per_kwh"`
	ChargingPower    int            `db:"charging_power" json:"charging_power"`
	ChargerType      string         `db:"charger_type" json:"charger_type"`
	EfficiencyRating float64        `db:"efficiency_rating" json:"efficiency_rating"`
	Amenities        pq.StringArray `db:"amenities" json:"amenities"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// StationView is a station annotated with derived utilization fields.
type StationView struct {
	Station
	CurrentUtilization int      `json:"current_utilization"`
	EstimatedWait      string   `json:"estimated_wait"`
	AvailabilityStatus string   `json:"availability_status"`
	AIRecommendation   string   `json:"ai_recommendation"`
	Distance           *float64 `json:"distance,omitempty"`
}

// StationAvailability summarises slot usage of a station.
type StationAvailability struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	TotalSlots     int    `json:"totalSlots"`
	ActiveBookings int    `json:"activeBookings"`
	AvailableSlots int    `json:"availableSlots"`
	IsActive       bool   `json:"isActive"`
}

// StationUtilization is one hourly utilization sample.
type StationUtilization struct {
	ID            int64     `db:"id" json:"id"`
	StationID     int64     `db:"station_id" json:"station_id"`
	Date          time.Time `db:"date" json:"date"`
	Hour          int       `db:"hour" json:"hour"`
	Utilization   float64   `db:"utilization" json:"utilization"`
	AvgWaitTime   int       `db:"avg_wait_time" json:"avg_wait_time"`
	TotalSessions int       `db:"total_sessions" json:"total_sessions"`
}

// HourlyAverage is the mean utilization of one hour of the day.
type HourlyAverage struct {
	Hour        int     `db:"hour" json:"hour"`
	Utilization float64 `db:"utilization" json:"utilization"`
}

// TimeSlotPrediction forecasts one upcoming hour at a station.
type TimeSlotPrediction struct {
	Hour                 int     `json:"hour"`
	PredictedUtilization float64 `json:"predicted_utilization"`
	AvailabilityStatus   string  `json:"availability_status"`
	EstimatedWait        string  `json:"estimated_wait"`
	DynamicPrice         float64 `json:"dynamic_price"`
}

// BestTime is the quietest remaining hour of the current day.
type BestTime struct {
	Hour        int     `json:"hour"`
	Utilization float64 `json:"utilization"`
	Message     string  `json:"message"`
}

// StationInsights is the utilization analysis of a single station.
type StationInsights struct {
	StationID           int64                `json:"station_id"`
	AverageUtilization  float64              `json:"average_utilization"`
	PeakHours           []int                `json:"peak_hours"`
	BestTimeToday       *BestTime            `json:"best_time_today"`
	CostSavingsTip      string               `json:"cost_savings_tip"`
	TimeSlotsPrediction []TimeSlotPrediction `json:"time_slots_prediction"`
}
