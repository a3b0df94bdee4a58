// Package api serves the engine's readings as read-only JSON.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/apollostatus/apollostatus/uptime"
)

// Engine is the read side of the status engine.
type Engine interface {
	Components() []uptime.Component
	Reading(ctx context.Context, name string) (uptime.Reading, error)
	Readings(ctx context.Context) (map[string]uptime.Reading, error)
	History(name string, limit int) []uptime.Result
}

type Server struct {
	engine   Engine
	siteName string
	logger   *zap.Logger
	router   *gin.Engine
	http     *http.Server
}

type ComponentResponse struct {
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Kind        uptime.ProbeKind `json:"kind"`
}

type ComponentsResponse struct {
	SiteName   string              `json:"site_name"`
	Components []ComponentResponse `json:"components"`
}

type HistoryResponse struct {
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Status     string    `json:"status"`
	StatusCode int       `json:"status_code,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
}

func New(addr, siteName string, engine Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: engine, siteName: siteName, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := r.Group("/api")
	apiGroup.GET("/components", s.components)
	apiGroup.GET("/status", s.field(func(r uptime.Reading) int64 { return int64(r.Status) }))
	apiGroup.GET("/latency", s.field(func(r uptime.Reading) int64 { return r.Latency }))
	apiGroup.GET("/uptime", s.field(func(r uptime.Reading) int64 { return r.Uptime }))
	apiGroup.GET("/records", s.field(func(r uptime.Reading) int64 { return r.UptimeRecord }))
	apiGroup.GET("/all", s.all)
	apiGroup.GET("/all/:component", s.one)
	apiGroup.GET("/history/:component", s.history)

	s.router = r
	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run blocks until the server stops. Returns http.ErrServerClosed after Shutdown.
func (s *Server) Run() error {
	s.logger.Info("API listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) components(c *gin.Context) {
	comps := s.engine.Components()
	resp := ComponentsResponse{SiteName: s.siteName, Components: make([]ComponentResponse, 0, len(comps))}
	for _, comp := range comps {
		resp.Components = append(resp.Components, ComponentResponse{
			Name:        comp.Name,
			DisplayName: comp.DisplayName,
			Kind:        comp.Kind,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// field serves one value per component, keyed by component name.
func (s *Server) field(pick func(uptime.Reading) int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		readings, err := s.engine.Readings(c.Request.Context())
		if err != nil {
			s.storeFailure(c, err)
			return
		}
		out := make(map[string]int64, len(readings))
		for name, r := range readings {
			out[name] = pick(r)
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) all(c *gin.Context) {
	readings, err := s.engine.Readings(c.Request.Context())
	if err != nil {
		s.storeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (s *Server) one(c *gin.Context) {
	r, err := s.engine.Reading(c.Request.Context(), c.Param("component"))
	if errors.Is(err, uptime.ErrUnknownComponent) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown component"})
		return
	}
	if err != nil {
		s.storeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) history(c *gin.Context) {
	name := c.Param("component")
	if !s.known(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown component"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	raw := s.engine.History(name, limit)
	logs := make([]HistoryResponse, 0, len(raw))
	for _, r := range raw {
		logs = append(logs, HistoryResponse{
			Timestamp:  r.Outcome.Timestamp,
			Success:    r.Outcome.Success,
			Status:     r.Status.String(),
			StatusCode: r.Outcome.StatusCode,
			LatencyMS:  r.Outcome.LatencyMillis(),
			Error:      r.Outcome.Error,
			Skipped:    r.Skipped,
		})
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) known(name string) bool {
	for _, comp := range s.engine.Components() {
		if comp.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) storeFailure(c *gin.Context, err error) {
	s.logger.Error("Read from store failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
