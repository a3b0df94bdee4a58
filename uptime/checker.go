// Package uptime implements the status engine: probes, the sliding-window
// evaluator, uptime bookkeeping and the periodic trigger that drives them.
package uptime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var ErrUnknownComponent = errors.New("unknown component")

type Checker struct {
	prober         Prober
	store          Store
	tracker        *Tracker
	interval       time.Duration
	defaultTimeout time.Duration
	logLevel       LogLevel
	logRetention   int

	enableInternalLogs bool
	logger             *zap.Logger
	loggerExplicit     bool // set when WithLogger used

	// logging configuration accumulated by options
	logConsoleOpt *bool
	logFilesOpt   []string
	logDisableOpt bool
	logRotation   rotation

	results       chan Result
	resultsMu     sync.RWMutex
	resultsClosed bool

	// fixed after New
	components []Component
	pipelines  map[string]*pipeline

	mu   sync.Mutex
	logs map[string][]Result

	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// ===== Constructor =====

// New validates the component descriptors and builds a checker. A malformed
// descriptor is a configuration error and nothing is started.
func New(components []Component, opts ...Option) (*Checker, error) {
	c := &Checker{
		interval:       60 * time.Second,
		defaultTimeout: 10 * time.Second,
		logLevel:       LogInfo,
		logRetention:   100,
		logRotation:    defaultRotation,
		results:        make(chan Result, 100),
		pipelines:      make(map[string]*pipeline),
		logs:           make(map[string][]Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Build logger after options applied unless explicitly provided
	if !c.loggerExplicit {
		c.logger = c.buildLoggerFromConfig()
	}
	if c.logger == nil {
		c.logger = defaultConsoleLogger()
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.prober == nil {
		c.prober = NewNetProber(false, false)
	}
	c.tracker = NewTracker(c.store, c.logger)

	if len(components) == 0 {
		return nil, fmt.Errorf("%w: at least one component is required", ErrInvalidComponent)
	}
	for _, comp := range components {
		if comp.Timeout == 0 {
			comp.Timeout = c.defaultTimeout
		}
		if comp.DisplayName == "" {
			comp.DisplayName = comp.Name
		}
		if err := comp.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.pipelines[comp.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidComponent, comp.Name)
		}
		c.components = append(c.components, comp)
		c.pipelines[comp.Name] = &pipeline{component: comp, eval: NewEvaluator(StatusDown)}
	}
	return c, nil
}

// Init makes sure every component has its four keys in the store and seeds
// each evaluator with the last persisted status. Safe to call more than once.
// A component that fails here is retried by its pipeline on the next tick;
// the returned error joins every component failure.
func (c *Checker) Init(ctx context.Context) error {
	var errs []error
	for _, comp := range c.components {
		p := c.pipelines[comp.Name]
		if !p.running.CompareAndSwap(false, true) {
			continue
		}
		err := c.initPipeline(ctx, p)
		p.running.Store(false)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initPipeline must be called with p.running held.
func (c *Checker) initPipeline(ctx context.Context, p *pipeline) error {
	if p.initialized {
		return nil
	}
	name := p.component.Name
	if err := EnsureKeys(ctx, c.store, name); err != nil {
		return fmt.Errorf("initialise keys for %s: %w", name, err)
	}
	st, err := c.store.Get(ctx, StatusKey(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", StatusKey(name), err)
	}
	p.eval = NewEvaluator(Status(st))
	p.last.Store(int32(st))
	p.initialized = true
	c.ilog("Initialised component %s (last status %s)", name, Status(st))
	return nil
}

// ===== Public API =====

// Start initialises the store and fires a tick every interval until Stop.
// The first tick runs immediately.
func (c *Checker) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	if err := c.Init(c.ctx); err != nil {
		c.logger.Error("Store initialisation failed, retrying on next tick", zap.Error(err))
	}

	c.cron = cron.New()
	schedule := fmt.Sprintf("@every %s", c.interval)
	if _, err := c.cron.AddFunc(schedule, func() { c.Tick(c.ctx) }); err != nil {
		c.cancel()
		return fmt.Errorf("schedule ticks: %w", err)
	}
	c.cron.Start()
	c.ilog("Scheduler started (%s)", schedule)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Tick(c.ctx)
	}()
	return nil
}

// Stop cancels in-flight probes, waits for running ticks and closes Results.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.cron != nil {
			<-c.cron.Stop().Done()
		}
		c.wg.Wait()
		c.resultsMu.Lock()
		c.resultsClosed = true
		close(c.results)
		c.resultsMu.Unlock()
		_ = c.logger.Sync()
		c.ilog("Checker stopped")
	})
}

// Results streams every pipeline result. Results are dropped when the buffer
// is full.
func (c *Checker) Results() <-chan Result { return c.results }

// Logger is the logger the checker writes to, for embedders that want one sink.
func (c *Checker) Logger() *zap.Logger { return c.logger }

// Components returns the configured descriptors in configuration order.
func (c *Checker) Components() []Component {
	return append([]Component(nil), c.components...)
}

// History returns the last limit results of a component, oldest first.
func (c *Checker) History(name string, limit int) []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	logs := c.logs[name]
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return append([]Result(nil), logs...)
}

// Reading returns the persisted values of one component.
func (c *Checker) Reading(ctx context.Context, name string) (Reading, error) {
	if _, ok := c.pipelines[name]; !ok {
		return Reading{}, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	vals, err := c.store.MGet(ctx, componentKeys(name)...)
	if err != nil {
		return Reading{}, fmt.Errorf("read %s: %w", name, err)
	}
	return readingFrom(vals), nil
}

// Readings returns the persisted values of every component in one read.
func (c *Checker) Readings(ctx context.Context) (map[string]Reading, error) {
	keys := make([]string, 0, 4*len(c.components))
	for _, comp := range c.components {
		keys = append(keys, componentKeys(comp.Name)...)
	}
	vals, err := c.store.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("read components: %w", err)
	}
	out := make(map[string]Reading, len(c.components))
	for i, comp := range c.components {
		out[comp.Name] = readingFrom(vals[4*i : 4*i+4])
	}
	return out, nil
}

func readingFrom(vals []int64) Reading {
	return Reading{
		Status:       Status(vals[0]),
		Latency:      vals[1],
		Uptime:       vals[2],
		UptimeRecord: vals[3],
	}
}
