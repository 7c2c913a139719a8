package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

// maxWaitMinutes is the wait recorded for a fully utilised station.
const maxWaitMinutes = 20

// UtilizationStationSource lists stations and their active booking counts.
type UtilizationStationSource interface {
	ListActive(ctx context.Context) ([]models.Station, error)
	ActiveBookingCounts(ctx context.Context) (map[int64]int, error)
}

// UtilizationWriter persists utilization samples.
type UtilizationWriter interface {
	Upsert(ctx context.Context, sample *models.StationUtilization) error
}

// UtilizationService records hourly utilization samples from live booking counts.
type UtilizationService struct {
	stations UtilizationStationSource
	writer   UtilizationWriter
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewUtilizationService builds UtilizationService.
func NewUtilizationService(stations UtilizationStationSource, writer UtilizationWriter, loc *time.Location, logger *zap.Logger) *UtilizationService {
	if loc == nil {
		loc = time.Local
	}
	return &UtilizationService{stations: stations, writer: writer, loc: loc, now: time.Now, logger: logger}
}

// Snapshot writes the current hour's sample for every active station and returns the
// number of samples written.
func (s *UtilizationService) Snapshot(ctx context.Context) (int, error) {
	stations, err := s.stations.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	counts, err := s.stations.ActiveBookingCounts(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().In(s.loc)
	written := 0
	for _, station := range stations {
		sample := utilizationSample(station, counts[station.ID], now)
		if err := s.writer.Upsert(ctx, &sample); err != nil {
			return written, err
		}
		written++
	}

	s.logger.Info("utilization snapshot recorded", zap.Int("stations", written), zap.Int("hour", now.Hour()))
	return written, nil
}

func utilizationSample(station models.Station, active int, at time.Time) models.StationUtilization {
	utilization := 1.0
	if station.TotalSlots > 0 {
		utilization = math.Min(1, float64(active)/float64(station.TotalSlots))
	}
	return models.StationUtilization{
		StationID:     station.ID,
		Date:          at,
		Hour:          at.Hour(),
		Utilization:   utilization,
		AvgWaitTime:   int(math.Round(utilization * maxWaitMinutes)),
		TotalSessions: active,
	}
}
