package jobs

import (
	"context"
)

// NoShowExpirer cancels bookings whose arrival window has passed.
type NoShowExpirer interface {
	ExpireNoShows(ctx context.Context) (int, error)
}

// UtilizationSnapshotter records the current utilization of every station.
type UtilizationSnapshotter interface {
	Snapshot(ctx context.Context) (int, error)
}

// NoShowJob cancels abandoned reservations so their slots free up.
func NoShowJob(schedule string, expirer NoShowExpirer) Job {
	return Job{
		Name:     "expire_no_shows",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			_, err := expirer.ExpireNoShows(ctx)
			return err
		},
	}
}

// UtilizationJob samples station utilization for the directory and insights.
func UtilizationJob(schedule string, snapshotter UtilizationSnapshotter) Job {
	return Job{
		Name:     "utilization_snapshot",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			_, err := snapshotter.Snapshot(ctx)
			return err
		},
	}
}
