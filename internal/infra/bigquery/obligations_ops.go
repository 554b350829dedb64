package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const obligationColumns = `
			obligation_id,
			user_id,
			merchant_name,
			category,
			obligation_type,
			avg_amount,
			amount_variance,
			last_amount,
			frequency,
			interval_days,
			day_of_month,
			weekday,
			next_estimated_date,
			first_seen_date,
			last_seen_date,
			source,
			confidence,
			created_ts,
			updated_ts`

// FindObligationWithClient returns the obligation matching (user, merchant,
// category), or nil if there is none. An empty category matches NULL.
func FindObligationWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, merchantName, category string) (*ObligationRow, error) {
	categoryClause := "category IS NULL"
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "merchant_name", Value: merchantName},
	}
	if category != "" {
		categoryClause = "category = @category"
		params = append(params, bigquery.QueryParameter{Name: "category", Value: category})
	}

	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		  AND merchant_name = @merchant_name
		  AND %s
		LIMIT 1
	`, obligationColumns, ds.Table(obligationsTable), categoryClause))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindObligation: query read: %w", err)
	}

	var row ObligationRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindObligation: iter next: %w", err)
	}
	return &row, nil
}

// InsertObligationWithClient inserts one obligation with a DML statement so
// that the row can be updated right away (streamed rows cannot).
func InsertObligationWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *ObligationRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s (%s
		)
		VALUES (
			@obligation_id,
			@user_id,
			@merchant_name,
			@category,
			@obligation_type,
			@avg_amount,
			@amount_variance,
			@last_amount,
			@frequency,
			@interval_days,
			@day_of_month,
			@weekday,
			@next_estimated_date,
			@first_seen_date,
			@last_seen_date,
			@source,
			@confidence,
			@created_ts,
			@updated_ts
		)
	`, ds.Table(obligationsTable), obligationColumns))
	q.Parameters = append(obligationParams(row),
		bigquery.QueryParameter{Name: "obligation_id", Value: row.ObligationID},
		bigquery.QueryParameter{Name: "user_id", Value: row.UserID},
		bigquery.QueryParameter{Name: "merchant_name", Value: row.MerchantName},
		bigquery.QueryParameter{Name: "category", Value: row.Category},
		bigquery.QueryParameter{Name: "created_ts", Value: row.CreatedTS},
	)

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertObligation: %w", err)
	}
	return nil
}

// UpdateObligationWithClient overwrites the detected statistics of an
// existing obligation. Identity columns and created_ts are left unchanged.
func UpdateObligationWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *ObligationRow) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET
			obligation_type = @obligation_type,
			avg_amount = @avg_amount,
			amount_variance = @amount_variance,
			last_amount = @last_amount,
			frequency = @frequency,
			interval_days = @interval_days,
			day_of_month = @day_of_month,
			weekday = @weekday,
			next_estimated_date = @next_estimated_date,
			first_seen_date = @first_seen_date,
			last_seen_date = @last_seen_date,
			source = @source,
			confidence = @confidence,
			updated_ts = @updated_ts
		WHERE obligation_id = @obligation_id
	`, ds.Table(obligationsTable)))
	q.Parameters = append(obligationParams(row),
		bigquery.QueryParameter{Name: "obligation_id", Value: row.ObligationID},
	)

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateObligation: %w", err)
	}
	return nil
}

// ListObligationsByUserWithClient returns a user's obligations ordered by merchant.
func ListObligationsByUserWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) ([]*ObligationRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		ORDER BY merchant_name, category
	`, obligationColumns, ds.Table(obligationsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListObligationsByUser: query read: %w", err)
	}

	var rows []*ObligationRow
	for {
		var r ObligationRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListObligationsByUser: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

// DeleteObligationsByUserWithClient removes all of a user's obligations.
func DeleteObligationsByUserWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) error {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id
	`, ds.Table(obligationsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteObligationsByUser: %w", err)
	}
	return nil
}

// obligationParams binds the columns shared by insert and update.
func obligationParams(row *ObligationRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "obligation_type", Value: row.ObligationType},
		{Name: "avg_amount", Value: row.AvgAmount},
		{Name: "amount_variance", Value: row.AmountVariance},
		{Name: "last_amount", Value: row.LastAmount},
		{Name: "frequency", Value: row.Frequency},
		{Name: "interval_days", Value: row.IntervalDays},
		{Name: "day_of_month", Value: row.DayOfMonth},
		{Name: "weekday", Value: row.Weekday},
		{Name: "next_estimated_date", Value: row.NextEstimatedDate},
		{Name: "first_seen_date", Value: row.FirstSeenDate},
		{Name: "last_seen_date", Value: row.LastSeenDate},
		{Name: "source", Value: row.Source},
		{Name: "confidence", Value: row.Confidence},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}
}

func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
