// Package uptime exposes configuration options for the Checker via a
// functional options API.
package uptime

import (
	"time"

	"go.uber.org/zap"
)

// ===== Options Pattern =====
type Option func(*Checker)

// WithStore sets the key-value backend. Defaults to a MemoryStore.
func WithStore(s Store) Option {
	return func(c *Checker) { c.store = s }
}

// WithProber replaces the network probe drivers.
func WithProber(p Prober) Option {
	return func(c *Checker) { c.prober = p }
}

// WithInterval sets the tick period used by Start.
func WithInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTimeout is the probe timeout applied to components that do not set one.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithLogLevel(level LogLevel) Option {
	return func(c *Checker) { c.logLevel = level }
}

func WithResultBuffer(size int) Option {
	return func(c *Checker) { c.results = make(chan Result, size) }
}

// enable/disable internal logs
func WithInternalLogs(enabled bool) Option {
	return func(c *Checker) { c.enableInternalLogs = enabled }
}

// WithLogger allows injecting a custom zap logger (useful in tests).
func WithLogger(l *zap.Logger) Option {
	return func(c *Checker) {
		c.logger = l
		c.loggerExplicit = l != nil
	}
}

// LogConsole toggles the stdout sink. On by default.
func LogConsole(enabled bool) Option {
	return func(c *Checker) { c.logConsoleOpt = &enabled }
}

// LogFile adds a rotated file sink. Repeatable.
func LogFile(path string) Option {
	return func(c *Checker) { c.logFilesOpt = append(c.logFilesOpt, path) }
}

// WithLogRotation tunes rotation of LogFile sinks.
func WithLogRotation(maxSizeMB, maxBackups, maxAgeDays int, compress bool) Option {
	return func(c *Checker) {
		c.logRotation = rotation{
			maxSizeMB:  maxSizeMB,
			maxBackups: maxBackups,
			maxAgeDays: maxAgeDays,
			compress:   compress,
		}
	}
}

// DisableLogs silences the checker entirely.
func DisableLogs() Option {
	return func(c *Checker) { c.logDisableOpt = true }
}

// WithLogRetention sets the max number of in-memory results kept per component.
func WithLogRetention(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.logRetention = n
		}
	}
}
