package scheduler

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/metrics"
)

// RetentionDays is how long raw samples are kept. Fuel events and alerts are
// the durable record and are never reaped.
const RetentionDays = 90

// Reaper deletes samples older than the retention horizon.
type Reaper struct {
	Telemetry db.TelemetryCollection
}

// Run performs one reaping pass. A failed pass is retried on the next tick.
func (r *Reaper) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -RetentionDays)
	deleted, err := r.Telemetry.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete samples before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if deleted > 0 {
		metrics.ReaperDeleted.Add(float64(deleted))
		log.WithFields(log.Fields{"deleted": deleted}).Info("Cleaned up old telemetry records")
	}
	return nil
}
