package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/repository"
)

const insightsWindow = 7 * 24 * time.Hour

// StationRepository defines station reads used by the directory.
type StationRepository interface {
	List(ctx context.Context) ([]models.Station, error)
	GetByID(ctx context.Context, id int64) (*models.Station, error)
	CountActiveBookings(ctx context.Context, stationID int64) (int, error)
}

// UtilizationReader defines utilization reads used by the directory.
type UtilizationReader interface {
	LatestByStationForDay(ctx context.Context, day time.Time, hour int) (map[int64]float64, error)
	LatestBetween(ctx context.Context, stationID int64, from, to time.Time) (*models.StationUtilization, error)
	HourlyAverages(ctx context.Context, stationID int64, since time.Time) ([]models.HourlyAverage, error)
}

// AvailabilityCache stores availability snapshots. Save overwrites, Fill only writes a missing
// entry so a read-through cannot replace a snapshot written after a booking change.
type AvailabilityCache interface {
	Get(ctx context.Context, stationID int64) (*models.StationAvailability, error)
	Save(ctx context.Context, availability models.StationAvailability) error
	Fill(ctx context.Context, availability models.StationAvailability) error
	Delete(ctx context.Context, stationID int64) error
}

// AvailabilityPublisher pushes availability changes to live subscribers.
type AvailabilityPublisher interface {
	PublishAvailability(availability models.StationAvailability)
}

// StationFilter narrows and orders the directory listing.
type StationFilter struct {
	Status   string
	Power    string
	City     string
	MinPrice *float64
	MaxPrice *float64
	Lat      *float64
	Lng      *float64
	Sort     string
}

// StationService serves the station directory.
type StationService struct {
	stations    StationRepository
	utilization UtilizationReader
	cache       AvailabilityCache
	publisher   AvailabilityPublisher
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewStationService builds StationService. cache and publisher may be nil.
func NewStationService(
	stations StationRepository,
	utilization UtilizationReader,
	cache AvailabilityCache,
	publisher AvailabilityPublisher,
	loc *time.Location,
	logger *zap.Logger,
) *StationService {
	if loc == nil {
		loc = time.Local
	}
	return &StationService{
		stations:    stations,
		utilization: utilization,
		cache:       cache,
		publisher:   publisher,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// List returns every station matching filter, annotated with today's utilization.
func (s *StationService) List(ctx context.Context, filter StationFilter) ([]models.StationView, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	stations, err := s.stations.List(ctx)
	if err != nil {
		return nil, Internal("Failed to fetch stations", err)
	}

	now := s.now().In(s.loc)
	latest, err := s.utilization.LatestByStationForDay(ctx, now, now.Hour())
	if err != nil {
		return nil, Internal("Failed to fetch stations", err)
	}

	views := make([]models.StationView, 0, len(stations))
	for _, station := range stations {
		utilization, ok := latest[station.ID]
		if !ok {
			utilization = DefaultUtilization
		}
		view := annotate(station, utilization, now.Hour())
		if filter.Lat != nil && filter.Lng != nil {
			d := DistanceKm(*filter.Lat, *filter.Lng, station.Latitude, station.Longitude)
			view.Distance = &d
		}
		if matchesFilter(view, filter) {
			views = append(views, view)
		}
	}

	sortViews(views, filter.Sort)
	return views, nil
}

// Get returns one station annotated with its latest utilization of the past day.
func (s *StationService) Get(ctx context.Context, id int64) (*models.StationView, error) {
	station, err := s.stations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrStationNotFound) {
			return nil, NotFound("Station not found", err)
		}
		return nil, Internal("Failed to fetch station", err)
	}

	now := s.now().In(s.loc)
	utilization := DefaultUtilization
	sample, err := s.utilization.LatestBetween(ctx, id, now.Add(-24*time.Hour), now)
	switch {
	case err == nil:
		utilization = sample.Utilization
	case errors.Is(err, repository.ErrNoUtilization):
	default:
		return nil, Internal("Failed to fetch station", err)
	}

	view := annotate(*station, utilization, now.Hour())
	return &view, nil
}

// Insights analyses the last week of utilization of a station.
func (s *StationService) Insights(ctx context.Context, id int64) (*models.StationInsights, error) {
	station, err := s.stations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrStationNotFound) {
			return nil, NotFound("Station not found", err)
		}
		return nil, Internal("Failed to analyse station", err)
	}

	now := s.now().In(s.loc)
	averages, err := s.utilization.HourlyAverages(ctx, id, now.Add(-insightsWindow))
	if err != nil {
		return nil, Internal("Failed to analyse station", err)
	}
	return buildInsights(station, averages, now.Hour()), nil
}

// Availability returns the slot usage of a station, served from cache when possible.
func (s *StationService) Availability(ctx context.Context, id int64) (*models.StationAvailability, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed to read availability cache", zap.Int64("station_id", id), zap.Error(err))
		}
	}

	availability, err := s.loadAvailability(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Fill(ctx, *availability); err != nil {
			s.logger.Warn("failed to cache availability", zap.Int64("station_id", id), zap.Error(err))
		}
	}
	return availability, nil
}

// RefreshAvailability replaces the cached snapshot of a station with the current one and
// publishes it. When the snapshot cannot be loaded or stored the cache entry is dropped.
func (s *StationService) RefreshAvailability(ctx context.Context, stationID int64) {
	if s.cache == nil && s.publisher == nil {
		return
	}
	availability, err := s.loadAvailability(ctx, stationID)
	if err != nil {
		s.logger.Warn("failed to load availability for refresh", zap.Int64("station_id", stationID), zap.Error(err))
		s.dropCached(ctx, stationID)
		return
	}
	if s.cache != nil {
		if err := s.cache.Save(ctx, *availability); err != nil {
			s.logger.Warn("failed to refresh availability cache", zap.Int64("station_id", stationID), zap.Error(err))
			s.dropCached(ctx, stationID)
		}
	}
	if s.publisher != nil {
		s.publisher.PublishAvailability(*availability)
	}
}

func (s *StationService) dropCached(ctx context.Context, stationID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, stationID); err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("failed to invalidate availability cache", zap.Int64("station_id", stationID), zap.Error(err))
	}
}

func (s *StationService) loadAvailability(ctx context.Context, id int64) (*models.StationAvailability, error) {
	station, err := s.stations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrStationNotFound) {
			return nil, NotFound("Station not found", err)
		}
		return nil, Internal("Failed to check availability", err)
	}

	active, err := s.stations.CountActiveBookings(ctx, id)
	if err != nil {
		return nil, Internal("Failed to check availability", err)
	}

	available := station.TotalSlots - active
	if available < 0 {
		available = 0
	}
	return &models.StationAvailability{
		ID:             station.ID,
		Name:           station.Name,
		TotalSlots:     station.TotalSlots,
		ActiveBookings: active,
		AvailableSlots: available,
		IsActive:       station.IsActive,
	}, nil
}

func validateFilter(filter StationFilter) error {
	switch strings.ToLower(filter.Status) {
	case "", "available", "moderate", "busy":
	default:
		return Validation("Invalid status filter")
	}
	switch strings.ToLower(filter.Power) {
	case "", PowerSlow, PowerFast, PowerRapid:
	default:
		return Validation("Invalid power filter")
	}
	switch strings.ToLower(filter.Sort) {
	case "", "distance", "price", "power", "availability":
	default:
		return Validation("Invalid sort option")
	}
	if (filter.Lat == nil) != (filter.Lng == nil) {
		return Validation("Both lat and lng are required for distance")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return Validation("min_price cannot exceed max_price")
	}
	return nil
}

func matchesFilter(view models.StationView, filter StationFilter) bool {
	if filter.Status != "" && !strings.EqualFold(view.AvailabilityStatus, filter.Status) {
		return false
	}
	if filter.Power != "" && PowerTier(view.ChargingPower) != strings.ToLower(filter.Power) {
		return false
	}
	if filter.City != "" && !strings.EqualFold(view.City, filter.City) {
		return false
	}
	if filter.MinPrice != nil && view.PricePerKWh < *filter.MinPrice {
		return false
	}
	if filter.MaxPrice != nil && view.PricePerKWh > *filter.MaxPrice {
		return false
	}
	return true
}

func sortViews(views []models.StationView, by string) {
	var less func(a, b models.StationView) bool
	switch strings.ToLower(by) {
	case "distance":
		less = func(a, b models.StationView) bool {
			if a.Distance == nil || b.Distance == nil {
				return a.Distance != nil
			}
			return *a.Distance < *b.Distance
		}
	case "price":
		less = func(a, b models.StationView) bool { return a.PricePerKWh < b.PricePerKWh }
	case "power":
		less = func(a, b models.StationView) bool { return a.ChargingPower > b.ChargingPower }
	case "availability":
		less = func(a, b models.StationView) bool { return a.CurrentUtilization < b.CurrentUtilization }
	default:
		return
	}
	sort.SliceStable(views, func(i, j int) bool { return less(views[i], views[j]) })
}
