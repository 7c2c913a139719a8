package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	libredis "evorchestrator/backend/libs/redis"
	"evorchestrator/backend/services/orchestrator/internal/models"
)

// AvailabilityStore caches station availability snapshots in redis.
type AvailabilityStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityStore returns redis-backed store.
func NewAvailabilityStore(client *redis.Client, ttl time.Duration) *AvailabilityStore {
	return &AvailabilityStore{client: client, ttl: ttl}
}

func (s *AvailabilityStore) key(stationID int64) string {
	return libredis.Key("stations", "availability", stationID)
}

// Save caches a snapshot, replacing any previous one.
func (s *AvailabilityStore) Save(ctx context.Context, availability models.StationAvailability) error {
	data, err := json.Marshal(availability)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(availability.ID), data, s.ttl).Err()
}

// Fill caches a snapshot only when none is stored.
func (s *AvailabilityStore) Fill(ctx context.Context, availability models.StationAvailability) error {
	data, err := json.Marshal(availability)
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, s.key(availability.ID), data, s.ttl).Err()
}

// Get returns the cached snapshot or redis.Nil.
func (s *AvailabilityStore) Get(ctx context.Context, stationID int64) (*models.StationAvailability, error) {
	result, err := s.client.Get(ctx, s.key(stationID)).Bytes()
	if err != nil {
		return nil, err
	}
	var availability models.StationAvailability
	if err := json.Unmarshal(result, &availability); err != nil {
		return nil, err
	}
	return &availability, nil
}

// Delete drops the cached snapshot.
func (s *AvailabilityStore) Delete(ctx context.Context, stationID int64) error {
	return s.client.Del(ctx, s.key(stationID)).Err()
}
