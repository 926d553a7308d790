package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the last persisted leak report",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false,
		"emit the report as JSON")
	rootCmd.AddCommand(reportCmd)
}

func runReport(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Report.Path == "" {
		return fmt.Errorf("no report path configured")
	}

	writer := report.NewWriter(cfg.Report.Path)
	if !writer.Exists() {
		return fmt.Errorf("no report at %s, run 'leakgate audit' first", cfg.Report.Path)
	}
	r, err := writer.Load()
	if err != nil {
		return err
	}
	return printReport(r, reportJSON || cfg.Report.Format == "json")
}
