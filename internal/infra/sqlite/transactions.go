package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
)

// transactionNamespace scopes the IDs derived by transactionID.
var transactionNamespace = uuid.MustParse("6f1c2b7e-8d4a-4e5f-9b3c-2a7d1e0f5c84")

// transactionID derives a stable ID for a record that has none. seq numbers
// identical rows within one import, so two same-day coffees stay two rows
// while a re-imported export maps onto the rows it created before.
func transactionID(userID string, r domain.TransactionRecord, seq int) string {
	key := strings.Join([]string{
		userID,
		r.Date.Format(domain.DateLayout),
		strings.TrimSpace(r.Description),
		strconv.FormatFloat(r.Amount, 'f', 2, 64),
		string(r.Direction),
		strconv.Itoa(seq),
	}, "\x1f")
	return uuid.NewSHA1(transactionNamespace, []byte(key)).String()
}

// ImportTransactions stores records for a user. Records without an ID get
// one from transactionID; records whose ID already exists are replaced, so
// importing the same export twice leaves one copy of each row.
func (db *DB) ImportTransactions(ctx context.Context, userID string, records []domain.TransactionRecord) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO transactions (id, user_id, transaction_date, description, amount, direction, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	seen := make(map[string]int)
	for _, r := range records {
		id := r.ID
		if id == "" {
			base := transactionID(userID, r, 0)
			id = transactionID(userID, r, seen[base])
			seen[base]++
		}
		if _, err := stmt.ExecContext(ctx, id, userID, r.Date.Format(domain.DateLayout), r.Description, r.Amount, string(r.Direction), r.Category); err != nil {
			return 0, fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(records), nil
}

// ListTransactions implements obligations.TransactionSource. A zero start or
// end leaves that side of the range open.
func (db *DB) ListTransactions(ctx context.Context, userID string, start, end time.Time) ([]domain.TransactionRecord, error) {
	from, to := "0000-01-01", "9999-12-31"
	if !start.IsZero() {
		from = start.Format(domain.DateLayout)
	}
	if !end.IsZero() {
		to = end.Format(domain.DateLayout)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, transaction_date, description, amount, direction, category
		FROM transactions
		WHERE user_id = ? AND transaction_date >= ? AND transaction_date <= ?
		ORDER BY transaction_date, id
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var (
			r         domain.TransactionRecord
			date, dir string
		)
		if err := rows.Scan(&r.ID, &date, &r.Description, &r.Amount, &dir, &r.Category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if r.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse transaction_date: %w", err)
		}
		r.Direction = domain.ParseFlowDirection(dir)
		records = append(records, r)
	}
	return records, rows.Err()
}

var _ obligations.TransactionSource = (*DB)(nil)
