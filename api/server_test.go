package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apollostatus/apollostatus/uptime"
)

type fakeEngine struct {
	comps    []uptime.Component
	readings map[string]uptime.Reading
	history  []uptime.Result
	err      error
}

func (f *fakeEngine) Components() []uptime.Component { return f.comps }

func (f *fakeEngine) Reading(_ context.Context, name string) (uptime.Reading, error) {
	if f.err != nil {
		return uptime.Reading{}, f.err
	}
	r, ok := f.readings[name]
	if !ok {
		return uptime.Reading{}, uptime.ErrUnknownComponent
	}
	return r, nil
}

func (f *fakeEngine) Readings(context.Context) (map[string]uptime.Reading, error) {
	return f.readings, f.err
}

func (f *fakeEngine) History(_ string, limit int) []uptime.Result {
	if len(f.history) > limit {
		return f.history[len(f.history)-limit:]
	}
	return f.history
}

func newFake() *fakeEngine {
	return &fakeEngine{
		comps: []uptime.Component{
			{Name: "site", DisplayName: "Site", Kind: uptime.KindHTTPS},
			{Name: "irc", DisplayName: "IRC", Kind: uptime.KindTCP},
		},
		readings: map[string]uptime.Reading{
			"site": {Status: uptime.StatusUp, Latency: 12, Uptime: 30, UptimeRecord: 40},
			"irc":  {Status: uptime.StatusUnstable, Latency: 3, Uptime: 5, UptimeRecord: 5},
		},
	}
}

func do(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestFieldEndpoints(t *testing.T) {
	s := New(":0", "Test", newFake(), nil)

	tests := []struct {
		path string
		want map[string]int64
	}{
		{"/api/status", map[string]int64{"site": 1, "irc": 2}},
		{"/api/latency", map[string]int64{"site": 12, "irc": 3}},
		{"/api/uptime", map[string]int64{"site": 30, "irc": 5}},
		{"/api/records", map[string]int64{"site": 40, "irc": 5}},
	}
	for _, tt := range tests {
		rec := do(t, s, tt.path)
		require.Equal(t, http.StatusOK, rec.Code, tt.path)
		var got map[string]int64
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestAll(t *testing.T) {
	s := New(":0", "Test", newFake(), nil)
	rec := do(t, s, "/api/all")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]int64{"status": 1, "latency": 12, "uptime": 30, "uptimerecord": 40}, got["site"])
}

func TestOneUnknownComponent(t *testing.T) {
	s := New(":0", "Test", newFake(), nil)
	assert.Equal(t, http.StatusNotFound, do(t, s, "/api/all/nope").Code)
	assert.Equal(t, http.StatusOK, do(t, s, "/api/all/irc").Code)
}

func TestStoreFailure(t *testing.T) {
	f := newFake()
	f.err = errors.New("disk on fire")
	s := New(":0", "Test", f, nil)
	assert.Equal(t, http.StatusInternalServerError, do(t, s, "/api/status").Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, s, "/api/all/site").Code)
}

func TestComponents(t *testing.T) {
	s := New(":0", "AnimeBytes", newFake(), nil)
	rec := do(t, s, "/api/components")
	require.Equal(t, http.StatusOK, rec.Code)

	var got ComponentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "AnimeBytes", got.SiteName)
	require.Len(t, got.Components, 2)
	assert.Equal(t, "IRC", got.Components[1].DisplayName)
}

func TestHistory(t *testing.T) {
	f := newFake()
	now := time.Now()
	for i := 0; i < 5; i++ {
		f.history = append(f.history, uptime.Result{
			Outcome: uptime.Outcome{Component: "site", Success: i%2 == 0, Latency: 7 * time.Millisecond, HasLatency: true, Timestamp: now},
			Status:  uptime.StatusUp,
		})
	}
	s := New(":0", "Test", f, nil)

	rec := do(t, s, "/api/history/site?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "UP", got[0].Status)
	assert.Equal(t, int64(7), got[0].LatencyMS)

	assert.Equal(t, http.StatusBadRequest, do(t, s, "/api/history/site?limit=x").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, "/api/history/nope").Code)
}

func TestHealth(t *testing.T) {
	s := New(":0", "Test", newFake(), nil)
	rec := do(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
