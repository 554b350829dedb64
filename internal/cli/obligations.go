package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/recurring-tracker/internal/gcsuploader"
	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/notionsync"
	"github.com/dvloznov/recurring-tracker/internal/reminder"
)

func newObligationsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "obligations",
		Short: "List a user's stored obligations",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
			}
			ctx, cancel := e.commandContext()
			defer cancel()

			a, err := e.App(ctx)
			if err != nil {
				return err
			}
			list, err := a.Service.List(ctx, userID)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]any{"obligations": list, "count": len(list)})
			}
			if len(list) == 0 {
				output.Println("No obligations stored.")
				return nil
			}
			table := NewTable(output, "Merchant", "Type", "Frequency", "Avg", "Last", "Next Due")
			for _, o := range list {
				next := "-"
				if o.NextEstimatedDate != nil {
					next = formatDate(*o.NextEstimatedDate)
				}
				table.AddRow(
					logger.TruncateMerchant(o.MerchantName),
					string(o.ObligationType),
					string(o.Frequency),
					fmt.Sprintf("%.2f", o.AvgAmount),
					fmt.Sprintf("%.2f", o.LastAmount),
					next,
				)
			}
			return table.Render()
		},
	}
	cmd.Flags().String("user", "", "user ID (required)")
	return cmd
}

func newUpcomingCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "Show obligations due soon with reminder text",
		Example: `  recurring upcoming --user u-123
  recurring upcoming --user u-123 --horizon 30 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
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
			upcoming, err := a.Service.Upcoming(ctx, userID, horizon)
			if err != nil {
				return err
			}
			reminders := reminder.BuildAll(upcoming)

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]any{
					"upcoming":     upcoming,
					"reminders":    reminders,
					"horizon_days": horizon,
				})
			}
			if len(reminders) == 0 {
				output.Printf("Nothing due in the next %d days.\n", horizon)
				return nil
			}
			printReminders(output, reminders)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user ID (required)")
	cmd.Flags().Int("horizon", 0, "days ahead to look (default from config)")
	return cmd
}

func newSyncNotionCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Mirror a user's obligations into a Notion database",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
			}
			token, _ := cmd.Flags().GetString("notion-token")
			if token == "" {
				token = e.Config.Notion.Token
			}
			dbID, _ := cmd.Flags().GetString("notion-db-id")
			if dbID == "" {
				dbID = e.Config.Notion.DatabaseID
			}
			if token == "" || dbID == "" {
				return errors.New("a Notion token and database ID are required (flags or notion.* config)")
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			ctx, cancel := e.commandContext()
			defer cancel()

			a, err := e.App(ctx)
			if err != nil {
				return err
			}
			stats, err := notionsync.SyncObligations(ctx, a.Store, notionsync.NewNotionClient(token), dbID, userID, dryRun)
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(stats)
			}
			output.Printf("Notion sync: %d created, %d updated, %d archived, %d failed\n",
				stats.Created, stats.Updated, stats.Deleted, stats.Failed)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user ID (required)")
	cmd.Flags().String("notion-token", "", "Notion API token (default from config)")
	cmd.Flags().String("notion-db-id", "", "Notion database ID (default from config)")
	cmd.Flags().Bool("dry-run", false, "preview changes without writing to Notion")
	return cmd
}

func newUploadCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a CSV export to Cloud Storage for later scans",
		Example: `  recurring upload --user u-123 --file export.csv
  recurring scan --user u-123 --gcs-uri gs://bucket/statements/u-123/2024-03-25/export.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
			}
			filePath, err := requireFlag(cmd, "file")
			if err != nil {
				return err
			}
			bucket, _ := cmd.Flags().GetString("bucket")
			if bucket == "" {
				bucket = e.Config.Storage.GCSBucket
			}
			if bucket == "" {
				return errors.New("--bucket is required when storage.gcs_bucket is not configured")
			}

			ctx, cancel := e.commandContext()
			defer cancel()

			uri, err := gcsuploader.UploadStatement(ctx, gcsuploader.NewGCSStorageService(), bucket, userID, filePath, time.Now())
			if err != nil {
				return err
			}

			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"gcs_uri": uri})
			}
			output.Printf("Uploaded %s to %s\n", filePath, uri)
			return nil
		},
	}
	cmd.Flags().String("user", "", "user ID (required)")
	cmd.Flags().String("file", "", "path to the CSV export (required)")
	cmd.Flags().String("bucket", "", "GCS bucket (default from storage.gcs_bucket)")
	return cmd
}
