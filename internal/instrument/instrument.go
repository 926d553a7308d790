// Package instrument is the thin layer application code calls at resource
// acquisition and release sites. It forwards every event to the ledger and
// keeps call sites honest: a rejected release is logged and surfaced as an
// error but never panics, and the scoped helper releases exactly once on
// every exit path, panics included.
package instrument

import (
	"context"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/ledger"
	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
)

// Adapter instruments acquisition and release call sites.
type Adapter struct {
	ledger *ledger.Ledger
	logger *logging.Logger
}

// New creates an adapter over led.
func New(led *ledger.Ledger, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Adapter{
		ledger: led,
		logger: logger.WithComponent("instrument"),
	}
}

// OnAcquire records a freshly acquired resource and returns its handle id.
func (a *Adapter) OnAcquire(ctx context.Context, rt core.ResourceType, owner, label string) (core.HandleID, error) {
	id, err := a.ledger.Acquire(ctx, rt, owner, label)
	if err != nil {
		a.logger.Error("acquire rejected",
			"resource_type", string(rt), "owner", owner, "error", err)
		return 0, err
	}
	a.logger.Debug("acquired",
		"handle_id", int64(id), "resource_type", string(rt), "owner", owner)
	return id, nil
}

// OnRelease records a release. Duplicate or unknown releases come back as
// typed errors; the recorded state is never mutated by them.
func (a *Adapter) OnRelease(ctx context.Context, id core.HandleID) error {
	if err := a.ledger.Release(ctx, id); err != nil {
		a.logger.Warn("release rejected",
			"handle_id", int64(id),
			"code", core.GetCode(err),
			"error", err)
		return err
	}
	a.logger.Debug("released", "handle_id", int64(id))
	return nil
}

// WithResource runs fn with a tracked handle, releasing it exactly once on
// every exit path. A panic inside fn still releases before re-panicking.
// A failed release never masks fn's own error.
func (a *Adapter) WithResource(ctx context.Context, rt core.ResourceType, owner, label string, fn func(core.HandleID) error) error {
	id, err := a.OnAcquire(ctx, rt, owner, label)
	if err != nil {
		return err
	}

	done := false
	release := func() {
		if done {
			return
		}
		done = true
		if rerr := a.OnRelease(ctx, id); rerr != nil {
			a.logger.Error("scoped release failed", "handle_id", int64(id), "error", rerr)
		}
	}
	defer release()

	if err := fn(id); err != nil {
		return err
	}
	return nil
}
