package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/recurring-tracker/internal/logger"
)

// SyncStats counts what a sync did, or would do on a dry run.
type SyncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// SyncObligations mirrors a user's obligations into a Notion database.
// Pages are matched on the Obligation ID property: matching pages are
// updated, missing ones created, and pages whose obligation no longer
// exists are archived. Failures on single pages are logged and counted.
func SyncObligations(ctx context.Context, repo ObligationLister, notionClient NotionService, notionDBID, userID string, dryRun bool) (*SyncStats, error) {
	log := logger.FromContext(ctx).With().
		Str("user", logger.MaskUserID(userID)).
		Bool("dry_run", dryRun).
		Logger()

	list, err := repo.ListObligations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("SyncObligations: list obligations: %w", err)
	}
	log.Info().Int("obligation_count", len(list)).Msg("Retrieved obligations")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("SyncObligations: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	current := make(map[string]bool, len(list))
	for _, o := range list {
		current[o.ID] = true
	}

	stats := &SyncStats{}
	pageByObligation := make(map[string]string, len(pages))
	for _, page := range pages {
		id := extractObligationID(page)
		if id != "" && current[id] {
			pageByObligation[id] = string(page.ID)
			continue
		}

		if dryRun {
			log.Info().Str("obligation_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Deleted++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Deleted++
	}

	for i := range list {
		o := &list[i]
		pageID, exists := pageByObligation[o.ID]

		if dryRun {
			if exists {
				stats.Updated++
			} else {
				stats.Created++
			}
			continue
		}

		props := ObligationToNotionProperties(o)
		if exists {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("obligation_id", o.ID).Str("page_id", pageID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("obligation_id", o.ID).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().Str("obligation_id", o.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Int("failed", stats.Failed).
		Msg("Obligation sync completed")

	return stats, nil
}

// queryAllNotionPages queries all pages from a Notion database, following
// pagination cursors.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return allPages, nil
}

// extractObligationID returns the Obligation ID property of a page, or "".
func extractObligationID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropObligationID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			if rt.RichText[0].PlainText != "" {
				return rt.RichText[0].PlainText
			}
			if rt.RichText[0].Text != nil {
				return rt.RichText[0].Text.Content
			}
		}
	}
	return ""
}
