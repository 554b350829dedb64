package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/gcsuploader"
	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/pipeline"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
	"github.com/dvloznov/recurring-tracker/internal/reminder"
	"github.com/dvloznov/recurring-tracker/internal/statement"
)

func newDetectCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect recurring payments in a CSV export",
		Long: `Run the detector over a transaction export without storing anything.

The export needs date, description and amount columns; type, id and
category are optional.`,
		Example: `  recurring detect --file export.csv
  recurring detect --gcs-uri gs://bucket/statements/export.csv --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := statementSource(cmd)
			if err != nil {
				return err
			}
			if src == "" {
				return errors.New("one of --file or --gcs-uri is required")
			}

			ctx, cancel := e.commandContext()
			defer cancel()

			loader := statement.NewLoader(gcsuploader.NewGCSStorageService())
			res, err := loader.Load(ctx, src)
			if err != nil {
				return err
			}
			patterns := recurring.Detect(res.Records, e.Config.DetectionOptions())

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]any{
					"patterns":     patterns,
					"count":        len(patterns),
					"skipped_rows": len(res.Skipped),
				})
			}
			if len(res.Skipped) > 0 {
				output.Printf("Skipped %d malformed rows\n", len(res.Skipped))
			}
			return printPatterns(output, patterns)
		},
	}
	addStatementFlags(cmd)
	return cmd
}

func newScanCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Detect and store a user's recurring obligations",
		Long: `Run the full scan pipeline for one user: load transactions, detect
patterns, upsert obligations and build reminders for upcoming payments.

With --file or --gcs-uri the export is scanned (and imported when the
storage driver keeps transactions); otherwise the stored transactions in
the --start/--end range are used.`,
		Example: `  recurring scan --user u-123 --file export.csv
  recurring scan --user u-123 --start 2024-01-01 --end 2024-12-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
			}
			src, err := statementSource(cmd)
			if err != nil {
				return err
			}
			start, end, err := dateRange(cmd)
			if err != nil {
				return err
			}
			if src == "" && start.IsZero() && end.IsZero() {
				start, end = pipeline.LookbackWindow(time.Now(), e.Config.Detection.LookbackDays)
			}
			horizon, _ := cmd.Flags().GetInt("horizon")
			if horizon <= 0 {
				horizon = e.Config.Detection.UpcomingHorizonDays
			}

			ctx, cancel := e.commandContext()
			defer cancel()

			a, err := e.App(ctx)
			if err != nil {
				return err
			}

			state := &pipeline.PipelineState{
				UserID:       userID,
				StatementURI: src,
				Start:        start,
				End:          end,
				HorizonDays:  horizon,
			}
			if err := a.Pipeline().Execute(ctx, state); err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]any{
					"records":   len(state.Records),
					"imported":  state.Imported,
					"result":    state.Result,
					"upcoming":  state.Upcoming,
					"reminders": state.Reminders,
				})
			}

			output.Printf("Scanned %d transactions for %s\n", len(state.Records), logger.MaskUserID(userID))
			if state.Imported > 0 {
				output.Printf("Imported %d transactions\n", state.Imported)
			}
			if err := printPatterns(output, state.Result.Patterns); err != nil {
				return err
			}
			created := 0
			for _, u := range state.Result.Upserts {
				if u.IsNew {
					created++
				}
			}
			output.Printf("Obligations: %d new, %d updated, %d failed\n",
				created, len(state.Result.Upserts)-created, state.Result.Failed)
			printReminders(output, state.Reminders)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user ID (required)")
	cmd.Flags().String("start", "", "scan start date YYYY-MM-DD")
	cmd.Flags().String("end", "", "scan end date YYYY-MM-DD")
	cmd.Flags().Int("horizon", 0, "reminder horizon in days (default from config)")
	addStatementFlags(cmd)
	return cmd
}

func addStatementFlags(cmd *cobra.Command) {
	cmd.Flags().String("file", "", "path to a CSV transaction export")
	cmd.Flags().String("gcs-uri", "", "gs:// URI of a CSV transaction export")
	cmd.MarkFlagsMutuallyExclusive("file", "gcs-uri")
}

func statementSource(cmd *cobra.Command) (string, error) {
	file, _ := cmd.Flags().GetString("file")
	uri, _ := cmd.Flags().GetString("gcs-uri")
	if uri != "" && !strings.HasPrefix(uri, "gs://") {
		return "", fmt.Errorf("--gcs-uri must start with gs://, got %q", uri)
	}
	if uri != "" {
		return uri, nil
	}
	return file, nil
}

func dateRange(cmd *cobra.Command) (start, end time.Time, err error) {
	if s, _ := cmd.Flags().GetString("start"); s != "" {
		if start, err = time.Parse(domain.DateLayout, s); err != nil {
			return start, end, fmt.Errorf("invalid --start %q, expected YYYY-MM-DD", s)
		}
	}
	if s, _ := cmd.Flags().GetString("end"); s != "" {
		if end, err = time.Parse(domain.DateLayout, s); err != nil {
			return start, end, fmt.Errorf("invalid --end %q, expected YYYY-MM-DD", s)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, errors.New("--end must not be before --start")
	}
	return start, end, nil
}

func printPatterns(output *Output, patterns []recurring.Pattern) error {
	if len(patterns) == 0 {
		output.Println("No recurring payments found.")
		return nil
	}
	table := NewTable(output, "Merchant", "Frequency", "Interval", "Avg", "Last Seen", "Count", "Confidence")
	for _, p := range patterns {
		table.AddRow(
			logger.TruncateMerchant(p.MerchantName),
			string(p.Frequency),
			fmt.Sprintf("%dd", p.IntervalDays),
			fmt.Sprintf("%.2f", p.AvgAmount),
			formatDate(p.LastSeenDate),
			fmt.Sprintf("%d", p.Occurrences),
			fmt.Sprintf("%.2f", p.Confidence),
		)
	}
	return table.Render()
}

func printReminders(output *Output, reminders []reminder.Reminder) {
	if len(reminders) == 0 {
		return
	}
	output.Println()
	output.Println("Upcoming:")
	for _, r := range reminders {
		output.Printf("  %s\n    %s\n", r.Title, r.Body)
	}
}
