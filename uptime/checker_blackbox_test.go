package uptime_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"net/http"
	"net/http/httptest"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	up "github.com/apollostatus/apollostatus/uptime"
)

// Components come back with defaults applied, in configuration order.
func TestNewDefaultsAndComponents(t *testing.T) {
	c, err := up.New([]up.Component{
		{Name: "site", Kind: up.KindHTTPS, URL: "https://example"},
		{Name: "irc", DisplayName: "IRC", Kind: up.KindTCP, Host: "irc.example", Port: 6697},
	}, up.WithTimeout(3*time.Second), up.DisableLogs())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	comps := c.Components()
	if len(comps) != 2 {
		t.Fatalf("expected 2 components, got %d", len(comps))
	}
	if comps[0].Timeout != 3*time.Second {
		t.Fatalf("expected default timeout 3s, got %v", comps[0].Timeout)
	}
	if comps[0].DisplayName != "site" {
		t.Fatalf("expected display name to default to name, got %q", comps[0].DisplayName)
	}
	if comps[1].DisplayName != "IRC" {
		t.Fatalf("expected display name IRC, got %q", comps[1].DisplayName)
	}
}

// End-to-end success path using a real HTTP server and the public API.
func TestStartAndResultsFlow_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c, err := up.New([]up.Component{{Name: "ok", URL: ts.URL, Kind: up.KindHTTP}},
		up.WithResultBuffer(10),
		up.WithInterval(time.Hour),
		up.DisableLogs(),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer c.Stop()

	select {
	case res := <-c.Results():
		if !res.Outcome.Success || res.Outcome.StatusCode != 200 {
			t.Fatalf("expected success with 200, got success=%v status=%d error=%s", res.Outcome.Success, res.Outcome.StatusCode, res.Outcome.Error)
		}
		if res.Outcome.Component != "ok" {
			t.Fatalf("expected component 'ok', got %s", res.Outcome.Component)
		}
		if res.Status != up.StatusUp || res.Uptime != 1 {
			t.Fatalf("expected UP with uptime 1, got %s uptime=%d", res.Status, res.Uptime)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for result")
	}

	r, err := c.Reading(context.Background(), "ok")
	if err != nil {
		t.Fatalf("Reading error: %v", err)
	}
	if r.Status != up.StatusUp {
		t.Fatalf("expected persisted status UP, got %s", r.Status)
	}
}

// Stop closes the results channel and is safe to call twice.
func TestStopClosesResults(t *testing.T) {
	c, err := up.New([]up.Component{{Name: "x", Kind: up.KindTCP, Host: "127.0.0.1", Port: 1}}, up.DisableLogs())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.Stop()
	c.Stop()
	if _, ok := <-c.Results(); ok {
		t.Fatalf("expected closed results channel")
	}
	// ticks after Stop must not panic on the closed channel
	c.Tick(context.Background())
}

// Verify per-component history retention cap via the public History API.
func TestHistoryRetentionLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := up.New([]up.Component{{Name: "keep", URL: ts.URL, Kind: up.KindHTTP}},
		up.WithLogRetention(10),
		up.DisableLogs(),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 15; i++ {
		c.Tick(context.Background())
	}
	logs := c.History("keep", 1000)
	if len(logs) != 10 {
		t.Fatalf("expected retention of 10 results, got %d", len(logs))
	}
	if logs[9].Uptime != 15 {
		t.Fatalf("expected newest result last with uptime 15, got %d", logs[9].Uptime)
	}
}

// Validate logging options: file-only, console off; file created and non-empty after a tick.
func TestLogging_FileOnlyProducesOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apollostatus.log")

	c, err := up.New([]up.Component{{Name: "one", Kind: up.KindTCP, Host: "127.0.0.1", Port: 1, Timeout: 200 * time.Millisecond}},
		up.WithLogLevel(up.LogDebug),
		up.LogConsole(false),
		up.LogFile(path),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.Tick(context.Background())
	c.Stop()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected log file to be non-empty")
	}
}

// Use zap observer to assert the status transition is logged.
func TestStatusChangeLoggedWithObserver(t *testing.T) {
	core, obs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := up.New([]up.Component{{Name: "svc", URL: ts.URL, Kind: up.KindHTTP}},
		up.WithLogger(logger),
		up.WithLogLevel(up.LogInfo),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.Tick(context.Background())

	entries := obs.FilterMessage("Status changed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 status change entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["to"]; got != "UP" {
		t.Fatalf("expected transition to UP, got %v", got)
	}
}
