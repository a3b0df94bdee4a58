package uptime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// pipeline owns the evaluator of one component. running guards against a
// slow run from the previous tick overlapping the next one; eval and
// initialized are only touched while it is held.
type pipeline struct {
	component   Component
	eval        *Evaluator
	initialized bool
	running     atomic.Bool
	last        atomic.Int32 // last evaluated status, readable while running
}

// ===== Tick, Pipelines, and Internals =====

// Tick runs every component pipeline concurrently and returns when all of
// them finished. Results are in configuration order. A component still busy
// from a previous tick is skipped, as is one whose keys cannot be
// initialised yet.
func (c *Checker) Tick(ctx context.Context) []Result {
	tickID := uuid.NewString()
	c.ilog("Tick %s started for %d components", tickID, len(c.components))

	results := make([]Result, len(c.components))
	var wg conc.WaitGroup
	for i, comp := range c.components {
		i := i
		p := c.pipelines[comp.Name]
		wg.Go(func() {
			results[i] = c.run(ctx, tickID, p)
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		c.logger.Error("Pipeline panicked", zap.String("tick", tickID), zap.String("panic", r.String()))
		for i, comp := range c.components {
			if results[i].Outcome.Component == "" {
				results[i] = c.skipped(c.pipelines[comp.Name], "pipeline panicked")
			}
		}
	}

	c.ilog("Tick %s finished", tickID)
	return results
}

func (c *Checker) run(ctx context.Context, tickID string, p *pipeline) Result {
	name := p.component.Name
	if !p.running.CompareAndSwap(false, true) {
		c.logger.Warn("Previous check still running, skipping tick",
			zap.String("tick", tickID), zap.String("component", name))
		return c.skipped(p, "previous check still running")
	}
	defer p.running.Store(false)

	if ctx.Err() != nil {
		return c.skipped(p, ctx.Err().Error())
	}
	if err := c.initPipeline(ctx, p); err != nil {
		c.storeError(tickID, name, err)
		return c.skipped(p, err.Error())
	}

	out := c.prober.Probe(ctx, p.component)
	out.Component = name
	// shutdown, not the component's own timeout
	if ctx.Err() != nil {
		return c.skipped(p, ctx.Err().Error())
	}

	prev := p.eval.Status()
	status, down := p.eval.Observe(out.Success)
	p.last.Store(int32(status))
	if status != prev {
		c.logger.Info("Status changed",
			zap.String("tick", tickID),
			zap.String("component", name),
			zap.Stringer("from", prev),
			zap.Stringer("to", status))
	}

	res := Result{Outcome: out, Status: status}

	if down {
		if err := c.tracker.Reset(ctx, name); err != nil {
			c.storeError(tickID, name, err)
		}
	}
	uptime, record, err := c.tracker.Update(ctx, name, status)
	if err != nil {
		c.storeError(tickID, name, err)
	}
	res.Uptime, res.Record = uptime, record

	if err := c.store.Set(ctx, StatusKey(name), int64(status)); err != nil {
		c.storeError(tickID, name, err)
	}
	if out.HasLatency {
		if err := c.store.Set(ctx, LatencyKey(name), out.LatencyMillis()); err != nil {
			c.storeError(tickID, name, err)
		}
	}

	c.saveLog(res)
	c.publish(res)
	c.log(res)
	return res
}

// skipped reports a run that did not evaluate; counters and the window are
// left alone.
func (c *Checker) skipped(p *pipeline, reason string) Result {
	return Result{
		Outcome: Outcome{Component: p.component.Name, Error: reason, Timestamp: time.Now()},
		Status:  Status(p.last.Load()),
		Skipped: true,
	}
}

func (c *Checker) storeError(tickID, component string, err error) {
	c.logger.Error("Store access failed",
		zap.String("tick", tickID),
		zap.String("component", component),
		zap.Error(err))
}

func (c *Checker) publish(res Result) {
	c.resultsMu.RLock()
	defer c.resultsMu.RUnlock()
	if c.resultsClosed {
		return
	}
	select {
	case c.results <- res:
	default:
		c.ilog("Result buffer full, dropped result for %s", res.Outcome.Component)
	}
}

func (c *Checker) saveLog(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := res.Outcome.Component
	c.logs[id] = append(c.logs[id], res)
	if len(c.logs[id]) > c.logRetention {
		c.logs[id] = c.logs[id][len(c.logs[id])-c.logRetention:]
	}
}
