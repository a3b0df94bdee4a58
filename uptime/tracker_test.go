package uptime

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTrackerUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, EnsureKeys(ctx, s, "site"))
	tr := NewTracker(s, nil)

	uptime, record, err := tr.Update(ctx, "site", StatusUp)
	require.NoError(t, err)
	assert.Equal(t, int64(1), uptime)
	assert.Equal(t, int64(1), record)

	uptime, record, err = tr.Update(ctx, "site", StatusUnstable)
	require.NoError(t, err)
	assert.Equal(t, int64(2), uptime, "unstable still counts as uptime")
	assert.Equal(t, int64(2), record)

	require.NoError(t, tr.Reset(ctx, "site"))
	uptime, record, err = tr.Update(ctx, "site", StatusDown)
	require.NoError(t, err)
	assert.Equal(t, int64(0), uptime)
	assert.Equal(t, int64(2), record, "record survives an outage")
}

func TestTrackerLogsRecordBroken(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, RecordKey("irc"), 1))
	require.NoError(t, s.Set(ctx, UptimeKey("irc"), 1))
	tr := NewTracker(s, zap.New(core))

	_, record, err := tr.Update(ctx, "irc", StatusUp)
	require.NoError(t, err)
	assert.Equal(t, int64(2), record)

	entries := logs.FilterMessage("Uptime record broken").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "irc", fields["component"])
	assert.Equal(t, int64(1), fields["previous"])
	assert.Equal(t, int64(2), fields["record"])
}

func TestTrackerRecordNeverBelowUptime(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	s := NewMemoryStore()
	tr := NewTracker(s, nil)
	statuses := []Status{StatusUp, StatusUnstable, StatusDown}

	for i := 0; i < 1000; i++ {
		st := statuses[rng.Intn(len(statuses))]
		if st == StatusDown {
			require.NoError(t, tr.Reset(ctx, "tracker"))
		}
		uptime, record, err := tr.Update(ctx, "tracker", st)
		require.NoError(t, err)
		require.GreaterOrEqual(t, record, uptime)

		vals, _ := s.MGet(ctx, UptimeKey("tracker"), RecordKey("tracker"))
		require.GreaterOrEqual(t, vals[1], vals[0])
	}
}

func TestTrackerStoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	s := &faultyStore{Store: NewMemoryStore(), failIncr: boom}
	tr := NewTracker(s, nil)

	_, _, err := tr.Update(ctx, "site", StatusUp)
	require.ErrorIs(t, err, boom)

	s.failIncr, s.failSet = nil, boom
	require.ErrorIs(t, tr.Reset(ctx, "site"), boom)
}

func TestEnsureKeysIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, EnsureKeys(ctx, s, "site"))
	require.NoError(t, s.Set(ctx, UptimeKey("site"), 9))
	require.NoError(t, s.Set(ctx, StatusKey("site"), int64(StatusUnstable)))
	require.NoError(t, EnsureKeys(ctx, s, "site"))
	require.NoError(t, EnsureKeys(ctx, s, "site"))

	vals, err := s.MGet(ctx, componentKeys("site")...)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 0, 9, 0}, vals)
}

// faultyStore fails selected operations.
type faultyStore struct {
	Store
	failSet  error
	failIncr error
	failMGet error
}

func (f *faultyStore) Set(ctx context.Context, key string, v int64) error {
	if f.failSet != nil {
		return f.failSet
	}
	return f.Store.Set(ctx, key, v)
}

func (f *faultyStore) Incr(ctx context.Context, key string) (int64, error) {
	if f.failIncr != nil {
		return 0, f.failIncr
	}
	return f.Store.Incr(ctx, key)
}

func (f *faultyStore) MGet(ctx context.Context, keys ...string) ([]int64, error) {
	if f.failMGet != nil {
		return nil, f.failMGet
	}
	return f.Store.MGet(ctx, keys...)
}
