package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hugo-lorenzo-mato/leakgate/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/leakgate/internal/config"
	"github.com/hugo-lorenzo-mato/leakgate/internal/ledger"
	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
	"github.com/hugo-lorenzo-mato/leakgate/internal/policy"
)

// openLedger builds the ledger with the configured state backend and
// restores any persisted handles.
func openLedger(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*ledger.Ledger, error) {
	store, err := state.NewLedgerStore(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return nil, err
	}

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if store != nil {
		opts = append(opts, ledger.WithStore(store))
	}
	led := ledger.New(opts...)

	if store != nil {
		if err := led.Restore(ctx); err != nil {
			led.Close()
			return nil, fmt.Errorf("restoring ledger state: %w", err)
		}
	}
	return led, nil
}

// loadPolicyStore loads the policy file. A missing file is not fatal:
// detection falls back to per-type defaults.
func loadPolicyStore(path string, logger *logging.Logger) (*policy.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warn("policy file not found, using defaults", "path", path)
		return policy.NewStore(nil), nil
	}
	return policy.LoadFile(path)
}
