package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

// HistoryDays is how many past days of hourly utilization are generated besides today.
const HistoryDays = 30

// StationStore persists seeded stations.
type StationStore interface {
	List(ctx context.Context) ([]models.Station, error)
	Create(ctx context.Context, station *models.Station) error
}

// UtilizationStore persists seeded utilization samples.
type UtilizationStore interface {
	Upsert(ctx context.Context, sample *models.StationUtilization) error
}

// Stations returns the demo charging sites around Delhi NCR.
func Stations() []models.Station {
	return []models.Station{
		{
			Name: "Connaught Place EV Hub", Address: "Block A, Connaught Place, New Delhi",
			Latitude: 28.6315, Longitude: 77.2167, City: "Delhi",
			TotalSlots: 4, PricePerKWh: 12.50, ChargingPower: 50, ChargerType: "CCS", EfficiencyRating: 0.95,
			Amenities: pq.StringArray{"WiFi", "Cafe", "Parking", "24/7"}, IsActive: true,
		},
		{
			Name: "Cyber City Fast Charge", Address: "DLF Cyber City, Sector 25, Gurgaon",
			Latitude: 28.4949, Longitude: 77.0853, City: "Gurgaon",
			TotalSlots: 6, PricePerKWh: 15.00, ChargingPower: 75, ChargerType: "CCS", EfficiencyRating: 0.92,
			Amenities: pq.StringArray{"Restroom", "Food Court", "ATM"}, IsActive: true,
		},
		{
			Name: "Select City Mall Station", Address: "Select City Walk, Saket, Delhi",
			Latitude: 28.5244, Longitude: 77.2066, City: "Delhi",
			TotalSlots: 3, PricePerKWh: 10.00, ChargingPower: 25, ChargerType: "Type2", EfficiencyRating: 0.88,
			Amenities: pq.StringArray{"WiFi", "Shopping", "Movies"}, IsActive: true,
		},
		{
			Name: "ISBT Power Point", Address: "ISBT Kashmere Gate, Delhi",
			Latitude: 28.6692, Longitude: 77.2265, City: "Delhi",
			TotalSlots: 2, PricePerKWh: 14.00, ChargingPower: 60, ChargerType: "CHAdeMO", EfficiencyRating: 0.90,
			Amenities: pq.StringArray{"24/7", "Security", "Bus Terminal"}, IsActive: true,
		},
		{
			Name: "Airport Express Charge", Address: "Terminal 3, IGI Airport, Delhi",
			Latitude: 28.5562, Longitude: 77.0999, City: "Delhi",
			TotalSlots: 8, PricePerKWh: 18.00, ChargingPower: 100, ChargerType: "CCS", EfficiencyRating: 0.96,
			Amenities: pq.StringArray{"Premium", "Valet", "Airport", "Fast"}, IsActive: true,
		},
	}
}

// BaseUtilization is the typical load of an hour before jitter.
func BaseUtilization(hour int) float64 {
	switch {
	case hour >= 17 && hour <= 21:
		return 0.8
	case hour >= 8 && hour <= 10:
		return 0.6
	case hour >= 22 || hour <= 6:
		return 0.2
	default:
		return 0.3
	}
}

// Seeder loads demo data.
type Seeder struct {
	stations    StationStore
	utilization UtilizationStore
	rng         *rand.Rand
	loc         *time.Location
	logger      *zap.Logger
}

// NewSeeder builds a Seeder. rng may be nil.
func NewSeeder(stations StationStore, utilization UtilizationStore, rng *rand.Rand, loc *time.Location, logger *zap.Logger) *Seeder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if loc == nil {
		loc = time.Local
	}
	return &Seeder{stations: stations, utilization: utilization, rng: rng, loc: loc, logger: logger}
}

// Run creates the demo stations and their utilization history up to today. It does nothing when
// stations already exist unless force is set.
func (s *Seeder) Run(ctx context.Context, today time.Time, force bool) (int, error) {
	existing, err := s.stations.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stations: %w", err)
	}
	if len(existing) > 0 && !force {
		s.logger.Info("stations already present, skipping seed", zap.Int("stations", len(existing)))
		return 0, nil
	}

	today = today.In(s.loc)
	samples := 0
	for _, station := range Stations() {
		if err := s.stations.Create(ctx, &station); err != nil {
			return samples, fmt.Errorf("create station %q: %w", station.Name, err)
		}

		for offset := -HistoryDays; offset <= 0; offset++ {
			day := today.AddDate(0, 0, offset)
			for hour := 0; hour < 24; hour++ {
				sample := s.sample(station, day, hour)
				if err := s.utilization.Upsert(ctx, &sample); err != nil {
					return samples, fmt.Errorf("store utilization of %q: %w", station.Name, err)
				}
				samples++
			}
		}
		s.logger.Info("seeded station", zap.Int64("station_id", station.ID), zap.String("name", station.Name))
	}
	return samples, nil
}

func (s *Seeder) sample(station models.Station, day time.Time, hour int) models.StationUtilization {
	u := BaseUtilization(hour) + (s.rng.Float64()-0.5)*0.3
	u = math.Max(0, math.Min(1, u))
	return models.StationUtilization{
		StationID:     station.ID,
		Date:          day,
		Hour:          hour,
		Utilization:   u,
		AvgWaitTime:   int(math.Round(u * 20)),
		TotalSessions: int(math.Round(u * float64(station.TotalSlots))),
	}
}
