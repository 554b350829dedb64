package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// QueryTransactionsByUserAndDateRangeWithClient queries a user's transactions
// within the specified date range using the provided BigQuery client. A zero
// startDate or endDate leaves that side of the range open.
// Pending transactions and internal transfers are excluded: neither is a
// payment to a merchant.
func QueryTransactionsByUserAndDateRangeWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, startDate, endDate time.Time) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.user_id,
			t.account_id,
			t.transaction_date,
			t.posting_date,
			t.amount,
			t.currency,
			t.direction,
			t.raw_description,
			t.normalized_description,
			t.category_name,
			t.subcategory_name,
			t.is_pending,
			t.is_internal_transfer,
			t.created_ts
		FROM %s t
		WHERE t.user_id = @user_id
		  AND t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		  AND IFNULL(t.is_pending, FALSE) = FALSE
		  AND IFNULL(t.is_internal_transfer, FALSE) = FALSE
		ORDER BY t.transaction_date, t.created_ts
	`, ds.Table(transactionsTable)))
	from, to := dateRangeParams(startDate, endDate)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: from},
		{Name: "end_date", Value: to},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByUserAndDateRange: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByUserAndDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// dateRangeParams formats the query bounds, widening zero times to the
// limits of the DATE type.
func dateRangeParams(start, end time.Time) (string, string) {
	from, to := "0001-01-01", "9999-12-31"
	if !start.IsZero() {
		from = start.Format(dateFormat)
	}
	if !end.IsZero() {
		to = end.Format(dateFormat)
	}
	return from, to
}
