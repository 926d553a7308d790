// Package watchdog schedules periodic detection passes over the ledger.
// One tick at a time: when detectors outlast the interval, the next due
// tick is skipped and logged, never queued, so a slow detector can not
// build an unbounded backlog. Cancellation wakes the loop immediately.
package watchdog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/detect"
	"github.com/hugo-lorenzo-mato/leakgate/internal/events"
	"github.com/hugo-lorenzo-mato/leakgate/internal/ledger"
	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
)

// State is the scheduler state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// DefaultInterval is the tick interval when none is configured.
const DefaultInterval = 30 * time.Second

// Config wires a watchdog.
type Config struct {
	Ledger *ledger.Ledger
	// Policies resolves the active policy store per tick, so a policy
	// hot-reload takes effect on the next pass.
	Policies func() core.PolicyLookup
	Runner   *detect.Runner
	Interval time.Duration
	Bus      *events.EventBus
	Sinks    []core.AlertSink
	// Writer, when set, persists the report of every violating tick.
	Writer *report.Writer
	Logger *logging.Logger
}

// Watchdog runs the periodic detection loop.
type Watchdog struct {
	cfg    Config
	logger *logging.Logger

	state atomic.Value // State

	// tickMu is the single-in-flight guard. Scheduled ticks TryLock and
	// skip on contention; manual runs Lock and wait, serializing against
	// the scheduled tick so alerts are never emitted twice for one pass.
	tickMu  sync.Mutex
	skipped atomic.Int64

	lastSet atomic.Pointer[core.ViolationSet]

	inFlightRun atomic.Value // string
}

// New creates a watchdog.
func New(cfg Config) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	w := &Watchdog{
		cfg:    cfg,
		logger: cfg.Logger.WithComponent("watchdog"),
	}
	w.state.Store(StateIdle)
	w.inFlightRun.Store("")
	return w
}

// State returns the current scheduler state.
func (w *Watchdog) State() State {
	return w.state.Load().(State)
}

// SkippedTicks returns how many scheduled ticks were skipped because a
// previous tick was still running.
func (w *Watchdog) SkippedTicks() int64 {
	return w.skipped.Load()
}

// LastSet returns the most recently published violation set, if any.
func (w *Watchdog) LastSet() (core.ViolationSet, bool) {
	p := w.lastSet.Load()
	if p == nil {
		return core.ViolationSet{}, false
	}
	return *p, true
}

// Run executes the loop until ctx is cancelled. The cancellation signal
// wakes the sleep immediately; it never waits for the interval to lapse.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("watchdog started", "interval", w.cfg.Interval.String())

	for {
		select {
		case <-ctx.Done():
			w.state.Store(StateStopping)
			// Wait for an in-flight tick before declaring stopped.
			w.tickMu.Lock()
			w.tickMu.Unlock() //nolint:staticcheck // barrier, not a critical section
			w.state.Store(StateStopped)
			w.logger.Info("watchdog stopped")
			return ctx.Err()
		case <-ticker.C:
			if !w.tickMu.TryLock() {
				n := w.skipped.Add(1)
				inFlight, _ := w.inFlightRun.Load().(string)
				w.logger.Warn("tick skipped, previous tick still running",
					"in_flight_run", inFlight, "skipped_total", n)
				if w.cfg.Bus != nil {
					w.cfg.Bus.Publish(events.NewTickSkippedEvent(inFlight))
				}
				continue
			}
			go func() {
				defer w.tickMu.Unlock()
				w.tick(ctx)
			}()
		}
	}
}

// RunNow triggers one detection pass immediately, serialized against any
// scheduled tick in flight. Returns the resulting set.
func (w *Watchdog) RunNow(ctx context.Context) core.ViolationSet {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()
	return w.tick(ctx)
}

// tick runs one detection pass. Caller holds tickMu.
func (w *Watchdog) tick(ctx context.Context) core.ViolationSet {
	runID := uuid.NewString()
	w.inFlightRun.Store(runID)
	defer w.inFlightRun.Store("")

	prev := w.State()
	w.state.Store(StateRunning)
	defer func() {
		if w.State() == StateRunning {
			w.state.Store(prev)
		}
	}()

	log := w.logger.WithTick(runID)
	started := time.Now()

	snap := w.cfg.Ledger.Snapshot()
	violations, detectorErrors := w.cfg.Runner.Run(ctx, snap, w.cfg.Policies())

	set := core.ViolationSet{
		RunID:          runID,
		StartedAt:      started,
		FinishedAt:     time.Now(),
		Violations:     violations,
		DetectorErrors: detectorErrors,
	}
	w.lastSet.Store(&set)

	duration := set.FinishedAt.Sub(set.StartedAt)
	log.Debug("tick complete", "violations", len(violations),
		"detector_errors", len(detectorErrors), "duration", duration.String())

	w.publish(ctx, set, log)
	return set
}

func (w *Watchdog) publish(ctx context.Context, set core.ViolationSet, log *logging.Logger) {
	if w.cfg.Bus != nil {
		w.cfg.Bus.Publish(events.NewTickCompletedEvent(
			set.RunID, len(set.Violations), len(set.DetectorErrors),
			set.FinishedAt.Sub(set.StartedAt)))
		for _, derr := range set.DetectorErrors {
			w.cfg.Bus.Publish(events.NewDetectorFailedEvent(set.RunID, derr))
		}
	}

	if len(set.Violations) == 0 {
		return
	}

	if w.cfg.Bus != nil {
		w.cfg.Bus.PublishPriority(events.NewViolationsDetectedEvent(set))
	}
	if w.cfg.Writer != nil {
		if err := w.cfg.Writer.Write(report.Generate(set)); err != nil {
			log.Error("persisting report", "error", err)
		}
	}
	for _, sink := range w.cfg.Sinks {
		if err := sink.Publish(ctx, set); err != nil {
			log.Error("alert sink failed", "error", err)
		}
	}
}
