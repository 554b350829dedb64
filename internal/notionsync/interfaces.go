package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/recurring-tracker/internal/obligations"
)

// NotionService is the subset of the Notion API the sync uses.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// ArchivePage removes a page from the database view.
	ArchivePage(ctx context.Context, pageID string) error
}

// ObligationLister reads a user's stored obligations.
type ObligationLister interface {
	ListObligations(ctx context.Context, userID string) ([]obligations.Obligation, error)
}

var _ NotionService = (*NotionClient)(nil)
