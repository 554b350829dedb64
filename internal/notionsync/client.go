package notionsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/recurring-tracker/internal/logger"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
)

// NotionClient implements NotionService on top of the notionapi SDK.
// Requests rejected with 429 or a 5xx status are retried with a linearly
// growing delay.
type NotionClient struct {
	client      *notionapi.Client
	maxAttempts int
	retryDelay  time.Duration
}

// NewNotionClient creates a NotionClient for the integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client:      notionapi.NewClient(notionapi.Token(token)),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

// CreatePage adds an obligation page to databaseID.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	var page *notionapi.Page
	err := n.withRetry(ctx, "CreatePage", func() (err error) {
		page, err = n.client.Page.Create(ctx, req)
		return err
	})
	return page, err
}

// UpdatePage overwrites the given properties of an existing page.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageUpdateRequest{Properties: properties}

	var page *notionapi.Page
	err := n.withRetry(ctx, "UpdatePage", func() (err error) {
		page, err = n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
	return page, err
}

// QueryDatabase returns one page of database results.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	var resp *notionapi.DatabaseQueryResponse
	err := n.withRetry(ctx, "QueryDatabase", func() (err error) {
		resp, err = n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
		return err
	})
	return resp, err
}

// ArchivePage archives a page; the API has no hard delete.
func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	req := &notionapi.PageUpdateRequest{Archived: true}
	return n.withRetry(ctx, "ArchivePage", func() error {
		_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), req)
		return err
	})
}

func (n *NotionClient) withRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if !retryable(err) || attempt == n.maxAttempts {
			break
		}

		delay := time.Duration(attempt) * n.retryDelay
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Notion request failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// retryable reports whether the API rejected the request for rate limiting
// or a server-side failure.
func retryable(err error) bool {
	var apiErr *notionapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
}
