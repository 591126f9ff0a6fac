package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ncm-converter/internal/diagnostics"
	"ncm-converter/internal/domain"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the decoder and output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			settings := cfg.Settings()
			if dir := strings.TrimSpace(outputDir); dir != "" {
				settings.OutputDir = dir
			}

			report := diagnostics.NewChecker().Run(settings)
			fmt.Fprintln(cmd.OutOrStdout(), renderDiagnostics(report))
			if report.HasFailures {
				return fmt.Errorf("%d check(s) failed", len(report.Failed()))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory to check instead of output.dir")
	return cmd
}

func renderDiagnostics(report domain.DiagnosticReport) string {
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		rows = append(rows, []string{item.Name, strings.ToUpper(string(item.Status)), item.Message, item.Hint})
	}
	return renderTable(tableSpec{
		headers: []string{"Check", "Status", "Detail", "Hint"},
		rows:    rows,
	})
}
