package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

type snapshotSource struct {
	stations []models.Station
	counts   map[int64]int
}

func (s *snapshotSource) ListActive(context.Context) ([]models.Station, error) {
	return s.stations, nil
}

func (s *snapshotSource) ActiveBookingCounts(context.Context) (map[int64]int, error) {
	return s.counts, nil
}

type sampleSink struct {
	samples []models.StationUtilization
}

func (s *sampleSink) Upsert(_ context.Context, sample *models.StationUtilization) error {
	s.samples = append(s.samples, *sample)
	return nil
}

func TestSnapshotRecordsCurrentHour(t *testing.T) {
	source := &snapshotSource{
		stations: []models.Station{{ID: 1, TotalSlots: 4}, {ID: 4, TotalSlots: 2}},
		counts:   map[int64]int{1: 1, 4: 2},
	}
	sink := &sampleSink{}
	svc := NewUtilizationService(source, sink, time.UTC, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 19, 42, 0, 0, time.UTC) }

	written, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	require.Len(t, sink.samples, 2)
	assert.Equal(t, 19, sink.samples[0].Hour)
	assert.InDelta(t, 0.25, sink.samples[0].Utilization, 1e-9)
	assert.Equal(t, 5, sink.samples[0].AvgWaitTime)
	assert.Equal(t, 1, sink.samples[0].TotalSessions)
	assert.InDelta(t, 1.0, sink.samples[1].Utilization, 1e-9)
	assert.Equal(t, 20, sink.samples[1].AvgWaitTime)
}
