package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Cross-check the ledger against OS-level resource usage",
	Long: `Sample the process's file descriptors, threads, and connections and
compare them with what the ledger tracks. A ledger that claims more open
resources than the kernel reports means release calls are going missing.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()

	led, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	sampler, err := diagnostics.NewSampler()
	if err != nil {
		return err
	}
	stats, err := sampler.Sample(ctx)
	if err != nil {
		return err
	}

	findings := diagnostics.Check(stats,
		led.CountOpen(core.ResourceFile),
		led.CountOpen(core.ResourceSocket))

	fmt.Printf("leakgate doctor (pid %d)\n\n", stats.PID)
	allOK := true
	for _, f := range findings {
		icon := "✓"
		if !f.OK {
			icon = "✗"
			allOK = false
		}
		fmt.Printf("  %s %-18s %s\n", icon, f.Check, f.Message)
	}
	fmt.Println()

	if !allOK {
		return &exitError{code: 1}
	}
	fmt.Println("All checks passed.")
	return nil
}
