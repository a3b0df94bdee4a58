package uptime

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type rotation struct {
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	compress   bool
}

var defaultRotation = rotation{maxSizeMB: 50, maxBackups: 5, maxAgeDays: 30}

func defaultConsoleLogger() *zap.Logger {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (c *Checker) buildLoggerFromConfig() *zap.Logger {
	if c.logDisableOpt {
		return zap.NewNop()
	}

	console := true
	if c.logConsoleOpt != nil {
		console = *c.logConsoleOpt
	}

	var level zapcore.Level
	switch c.logLevel {
	case LogNone:
		return zap.NewNop()
	case LogError:
		level = zapcore.ErrorLevel
	case LogDebug:
		level = zapcore.DebugLevel
	default:
		level = zapcore.InfoLevel
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	var cores []zapcore.Core
	if console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}
	seen := map[string]struct{}{}
	for _, f := range c.logFilesOpt {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   f,
			MaxSize:    c.logRotation.maxSizeMB,
			MaxBackups: c.logRotation.maxBackups,
			MaxAge:     c.logRotation.maxAgeDays,
			Compress:   c.logRotation.compress,
		})
		cores = append(cores, zapcore.NewCore(encoder, w, level))
	}

	if len(cores) == 0 {
		// No outputs selected: default to console
		return defaultConsoleLogger()
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// log reports one pipeline result according to the configured level.
func (c *Checker) log(res Result) {
	out := res.Outcome
	switch c.logLevel {
	case LogNone:
		return
	case LogError:
		// probe failures are expected input, not errors
		return
	case LogInfo:
		if !out.Success {
			c.logger.Info("Check failed",
				zap.String("component", out.Component),
				zap.Stringer("status", res.Status),
				zap.String("error", out.Error))
		}
	case LogDebug:
		c.logger.Debug("Check",
			zap.String("component", out.Component),
			zap.Bool("success", out.Success),
			zap.Stringer("status", res.Status),
			zap.Int("status_code", out.StatusCode),
			zap.Int64("latency_ms", out.LatencyMillis()),
			zap.Int64("uptime", res.Uptime),
			zap.String("error", out.Error))
	}
}

// ===== Internal Logging Helper =====
func (c *Checker) ilog(format string, args ...interface{}) {
	if c.enableInternalLogs {
		c.logger.Info(fmt.Sprintf("[INTERNAL] "+format, args...))
	}
}
