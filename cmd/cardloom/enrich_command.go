package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"cardloom/internal/run"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var manifestPath string
	var workers int

	cmd := &cobra.Command{
		Use:   "enrich <cards.json>",
		Short: "Generate audio and images for a card file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := run.Run(runCtx, cfg, ctx.ensureLogger(), run.Options{
				InputPath:    args[0],
				OutputPath:   outputPath,
				ManifestPath: manifestPath,
				Workers:      workers,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Metric", "Value"},
				[][]string{
					{"Run", report.RunID},
					{"Cards", strconv.Itoa(report.Items)},
					{"Fields added", strconv.Itoa(report.FieldsAdded)},
					{"Files registered", strconv.Itoa(report.FilesRegistered)},
					{"Duration", report.Duration.Round(timeRounding).String()},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			if len(report.SkippedFields) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Skipped field", "Count"},
					skippedRows(report.SkippedFields),
					[]columnAlignment{alignLeft, alignRight},
				))
			}
			fmt.Fprintf(out, "Enriched cards written to %s\n", report.OutputPath)
			fmt.Fprintf(out, "Media manifest written to %s\n", report.ManifestPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path for the enriched card file")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path for the media manifest")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent cards (0 uses the configured value)")
	return cmd
}

func skippedRows(skipped map[string]int) [][]string {
	fields := make([]string, 0, len(skipped))
	for field := range skipped {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	rows := make([][]string, 0, len(fields))
	for _, field := range fields {
		rows = append(rows, []string{field, strconv.Itoa(skipped[field])})
	}
	return rows
}
