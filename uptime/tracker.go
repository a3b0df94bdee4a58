package uptime

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Tracker keeps the running uptime counter and its record for each component
// in the store.
type Tracker struct {
	store  Store
	logger *zap.Logger
}

func NewTracker(store Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, logger: logger}
}

// Reset zeroes the uptime counter. It must run before Update in the same tick
// so the record comparison sees the reset value.
func (t *Tracker) Reset(ctx context.Context, component string) error {
	if err := t.store.Set(ctx, UptimeKey(component), 0); err != nil {
		return fmt.Errorf("reset %s: %w", UptimeKey(component), err)
	}
	return nil
}

// Update counts one tick of uptime unless status is DOWN, then raises the
// record if the counter passed it.
func (t *Tracker) Update(ctx context.Context, component string, status Status) (uptime, record int64, err error) {
	if status != StatusDown {
		if _, err := t.store.Incr(ctx, UptimeKey(component)); err != nil {
			return 0, 0, fmt.Errorf("incr %s: %w", UptimeKey(component), err)
		}
	}

	vals, err := t.store.MGet(ctx, UptimeKey(component), RecordKey(component))
	if err != nil {
		return 0, 0, fmt.Errorf("read uptime of %s: %w", component, err)
	}
	uptime, record = vals[0], vals[1]
	if uptime <= record {
		return uptime, record, nil
	}

	if err := t.store.Set(ctx, RecordKey(component), uptime); err != nil {
		return uptime, record, fmt.Errorf("set %s: %w", RecordKey(component), err)
	}
	t.logger.Info("Uptime record broken",
		zap.String("component", component),
		zap.Int64("previous", record),
		zap.Int64("record", uptime))
	return uptime, uptime, nil
}
