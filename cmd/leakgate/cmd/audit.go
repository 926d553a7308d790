package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/leakgate/internal/detect"
	"github.com/hugo-lorenzo-mato/leakgate/internal/gate"
	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
)

var (
	auditPolicyPath string
	auditJSON       bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run a one-shot leak audit and gate on the result",
	Long: `Run every detector once against the ledger and exit with a CI-friendly
status code: 0 when clean or warnings only with warnings suppressed, 1 for
warnings, 2 for violations at error severity or above.`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditPolicyPath, "policy", "",
		"policy file (default: policy.path from config)")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false,
		"emit the report as JSON")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()

	policyPath := cfg.Policy.Path
	if auditPolicyPath != "" {
		policyPath = auditPolicyPath
	}
	policies, err := loadPolicyStore(policyPath, logger)
	if err != nil {
		return err
	}

	led, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	runner := detect.NewRunner(detect.Builtin(nil),
		detect.WithLogger(logger),
		detect.WithParallelism(cfg.Watchdog.Parallelism))

	result := gate.Evaluate(ctx, led, policies, runner)

	if err := printReport(result.Report, auditJSON || cfg.Report.Format == "json"); err != nil {
		return err
	}
	if cfg.Report.Path != "" {
		if werr := report.NewWriter(cfg.Report.Path).Write(result.Report); werr != nil {
			logger.Error("persisting report", "path", cfg.Report.Path, "error", werr)
		}
	}

	if code := result.Status.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func printReport(r report.Report, asJSON bool) error {
	if asJSON {
		data, err := r.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Print(r.Text())
	return nil
}
