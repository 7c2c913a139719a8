package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/repository"
)

type stubStations struct {
	stations []models.Station
	active   map[int64]int
	counted  int
}

func (s *stubStations) List(context.Context) ([]models.Station, error) { return s.stations, nil }

func (s *stubStations) GetByID(_ context.Context, id int64) (*models.Station, error) {
	for i := range s.stations {
		if s.stations[i].ID == id {
			st := s.stations[i]
			return &st, nil
		}
	}
	return nil, repository.ErrStationNotFound
}

func (s *stubStations) CountActiveBookings(_ context.Context, id int64) (int, error) {
	s.counted++
	return s.active[id], nil
}

type stubUtilization struct {
	latest   map[int64]float64
	sample   *models.StationUtilization
	averages []models.HourlyAverage
}

func (s *stubUtilization) LatestByStationForDay(context.Context, time.Time, int) (map[int64]float64, error) {
	return s.latest, nil
}

func (s *stubUtilization) LatestBetween(context.Context, int64, time.Time, time.Time) (*models.StationUtilization, error) {
	if s.sample == nil {
		return nil, repository.ErrNoUtilization
	}
	return s.sample, nil
}

func (s *stubUtilization) HourlyAverages(context.Context, int64, time.Time) ([]models.HourlyAverage, error) {
	return s.averages, nil
}

type mapCache struct {
	entries    map[int64]models.StationAvailability
	deletes    int
	beforeFill func()
}

func (m *mapCache) Get(_ context.Context, id int64) (*models.StationAvailability, error) {
	a, ok := m.entries[id]
	if !ok {
		return nil, redis.Nil
	}
	return &a, nil
}

func (m *mapCache) Save(_ context.Context, a models.StationAvailability) error {
	m.entries[a.ID] = a
	return nil
}

func (m *mapCache) Fill(_ context.Context, a models.StationAvailability) error {
	if m.beforeFill != nil {
		m.beforeFill()
	}
	if _, ok := m.entries[a.ID]; !ok {
		m.entries[a.ID] = a
	}
	return nil
}

func (m *mapCache) Delete(_ context.Context, id int64) error {
	m.deletes++
	delete(m.entries, id)
	return nil
}

type capturePublisher struct {
	published []models.StationAvailability
}

func (c *capturePublisher) PublishAvailability(a models.StationAvailability) {
	c.published = append(c.published, a)
}

func delhiStations() []models.Station {
	return []models.Station{
		{ID: 1, Name: "Connaught Place EV Hub", City: "Delhi", Latitude: 28.6315, Longitude: 77.2167, TotalSlots: 4, PricePerKWh: 12.5, ChargingPower: 50, EfficiencyRating: 0.95, IsActive: true},
		{ID: 2, Name: "Cyber City Fast Charge", City: "Gurgaon", Latitude: 28.4949, Longitude: 77.0853, TotalSlots: 6, PricePerKWh: 15, ChargingPower: 75, EfficiencyRating: 0.92, IsActive: true},
		{ID: 3, Name: "Select City Mall Station", City: "Delhi", Latitude: 28.5244, Longitude: 77.2066, TotalSlots: 3, PricePerKWh: 10, ChargingPower: 25, EfficiencyRating: 0.88, IsActive: true},
		{ID: 5, Name: "Airport Express Charge", City: "Delhi", Latitude: 28.5562, Longitude: 77.0999, TotalSlots: 8, PricePerKWh: 18, ChargingPower: 100, EfficiencyRating: 0.96, IsActive: true},
	}
}

func newStationFixture(util *stubUtilization) (*StationService, *stubStations, *mapCache, *capturePublisher) {
	stations := &stubStations{stations: delhiStations(), active: map[int64]int{1: 3}}
	cache := &mapCache{entries: make(map[int64]models.StationAvailability)}
	publisher := &capturePublisher{}
	svc := NewStationService(stations, util, cache, publisher, time.UTC, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }
	return svc, stations, cache, publisher
}

func TestListAnnotatesWithLatestUtilization(t *testing.T) {
	svc, _, _, _ := newStationFixture(&stubUtilization{latest: map[int64]float64{1: 0.85, 2: 0.55}})

	views, err := svc.List(context.Background(), StationFilter{})
	require.NoError(t, err)
	require.Len(t, views, 4)

	assert.Equal(t, 85, views[0].CurrentUtilization)
	assert.Equal(t, StatusBusy, views[0].AvailabilityStatus)
	assert.Equal(t, StatusModerate, views[1].AvailabilityStatus)
	assert.Equal(t, 30, views[2].CurrentUtilization, "stations without samples default to 30%")
	assert.Equal(t, "Good efficiency (88%) - Expected fast charging", views[2].AIRecommendation)
}

func TestListFiltersAndSorts(t *testing.T) {
	svc, _, _, _ := newStationFixture(&stubUtilization{latest: map[int64]float64{1: 0.85}})
	lat, lng := 28.6315, 77.2167

	views, err := svc.List(context.Background(), StationFilter{City: "delhi", Status: "available", Lat: &lat, Lng: &lng, Sort: "distance"})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, int64(3), views[0].ID)
	assert.Equal(t, int64(5), views[1].ID)
	require.NotNil(t, views[0].Distance)
	assert.Less(t, *views[0].Distance, *views[1].Distance)

	views, err = svc.List(context.Background(), StationFilter{Power: "rapid"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(5), views[0].ID)

	views, err = svc.List(context.Background(), StationFilter{Sort: "price"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), views[0].ID)
	assert.Equal(t, int64(5), views[3].ID)
}

func TestListRejectsBadFilters(t *testing.T) {
	svc, _, _, _ := newStationFixture(&stubUtilization{})
	lat := 28.6

	for _, filter := range []StationFilter{
		{Status: "crowded"},
		{Power: "warp"},
		{Sort: "name"},
		{Lat: &lat},
	} {
		_, err := svc.List(context.Background(), filter)
		assert.Equal(t, KindValidation, KindOf(err), "%+v", filter)
	}
}

func TestGetUsesRecentSample(t *testing.T) {
	svc, _, _, _ := newStationFixture(&stubUtilization{sample: &models.StationUtilization{Utilization: 0.62}})

	view, err := svc.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 62, view.CurrentUtilization)
	assert.Equal(t, "10-15 mins", view.EstimatedWait)

	_, err = svc.Get(context.Background(), 42)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "Station not found", MessageOf(err, ""))
}

func TestAvailabilityReadsThroughCache(t *testing.T) {
	svc, stations, cache, _ := newStationFixture(&stubUtilization{})

	first, err := svc.Availability(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.StationAvailability{ID: 1, Name: "Connaught Place EV Hub", TotalSlots: 4, ActiveBookings: 3, AvailableSlots: 1, IsActive: true}, *first)

	_, err = svc.Availability(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stations.counted, "second read is served from cache")
	assert.Contains(t, cache.entries, int64(1))
}

func TestRefreshAvailabilityStoresAndPublishes(t *testing.T) {
	svc, stations, cache, publisher := newStationFixture(&stubUtilization{})
	cache.entries[1] = models.StationAvailability{ID: 1, ActiveBookings: 0}
	stations.active[1] = 4

	svc.RefreshAvailability(context.Background(), 1)

	assert.Equal(t, 4, cache.entries[1].ActiveBookings)
	assert.Equal(t, 0, cache.entries[1].AvailableSlots)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, 0, publisher.published[0].AvailableSlots)
}

func TestRefreshAvailabilityDropsEntryOfUnknownStation(t *testing.T) {
	svc, _, cache, publisher := newStationFixture(&stubUtilization{})
	cache.entries[42] = models.StationAvailability{ID: 42}

	svc.RefreshAvailability(context.Background(), 42)

	assert.NotContains(t, cache.entries, int64(42))
	assert.Equal(t, 1, cache.deletes)
	assert.Empty(t, publisher.published)
}

func TestReadThroughDoesNotOverwriteRefreshedSnapshot(t *testing.T) {
	svc, stations, cache, _ := newStationFixture(&stubUtilization{})

	// A booking commits and refreshes between the reader's load and its cache write.
	cache.beforeFill = func() {
		cache.beforeFill = nil
		stations.active[1] = 4
		svc.RefreshAvailability(context.Background(), 1)
	}

	stale, err := svc.Availability(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stale.ActiveBookings)

	assert.Equal(t, 4, cache.entries[1].ActiveBookings)
	fresh, err := svc.Availability(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.AvailableSlots)
}

func TestInsightsUnknownStation(t *testing.T) {
	svc, _, _, _ := newStationFixture(&stubUtilization{})
	_, err := svc.Insights(context.Background(), 42)
	assert.Equal(t, KindNotFound, KindOf(err))
}
