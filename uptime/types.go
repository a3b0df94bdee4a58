// Package uptime defines core types for the status engine.
package uptime

import (
	"errors"
	"fmt"
	"time"
)

type LogLevel int

const (
	LogNone  LogLevel = iota // no logs
	LogError                 // only errors
	LogInfo                  // info + errors
	LogDebug                 // verbose
)

// Status is the public health classification of a component. The numeric
// values are what gets persisted.
type Status int

const (
	StatusDown     Status = 0
	StatusUp       Status = 1
	StatusUnstable Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusDown:
		return "DOWN"
	case StatusUp:
		return "UP"
	case StatusUnstable:
		return "UNSTABLE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ProbeKind selects the driver used for a component.
type ProbeKind string

const (
	KindHTTP  ProbeKind = "http"
	KindHTTPS ProbeKind = "https"
	KindTCP   ProbeKind = "tcp"
	KindICMP  ProbeKind = "icmp"
)

var ErrInvalidComponent = errors.New("invalid component")

// Component is the static descriptor of one monitored endpoint.
type Component struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Kind        ProbeKind     `json:"kind"`
	URL         string        `json:"url,omitempty"`
	Host        string        `json:"host,omitempty"`
	Port        int           `json:"port,omitempty"`
	Timeout     time.Duration `json:"timeout"`
}

// Validate reports descriptor errors that would leave probe behaviour undefined.
func (c Component) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidComponent)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: %s: timeout must be > 0", ErrInvalidComponent, c.Name)
	}
	switch c.Kind {
	case KindHTTP, KindHTTPS:
		if c.URL == "" {
			return fmt.Errorf("%w: %s: url is required for kind %s", ErrInvalidComponent, c.Name, c.Kind)
		}
	case KindTCP:
		if c.Host == "" || c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("%w: %s: host and port are required for kind tcp", ErrInvalidComponent, c.Name)
		}
	case KindICMP:
		if c.Host == "" {
			return fmt.Errorf("%w: %s: host is required for kind icmp", ErrInvalidComponent, c.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidComponent, c.Name, c.Kind)
	}
	return nil
}

// Outcome is the result of one probe. Latency is only meaningful when
// HasLatency is set.
type Outcome struct {
	Component  string        `json:"component"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	HasLatency bool          `json:"has_latency"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// LatencyMillis is the latency in the store unit, truncated.
func (o Outcome) LatencyMillis() int64 {
	return o.Latency.Microseconds() / 1000
}

// Result is what one pipeline run produced for a component.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Status  Status  `json:"status"`
	Uptime  int64   `json:"uptime"`
	Record  int64   `json:"record"`
	Skipped bool    `json:"skipped,omitempty"`
}

// Reading is the persisted view of a component served to presentation.
type Reading struct {
	Status       Status `json:"status"`
	Latency      int64  `json:"latency"`
	Uptime       int64  `json:"uptime"`
	UptimeRecord int64  `json:"uptimerecord"`
}
