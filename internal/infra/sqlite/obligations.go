package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/obligations"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
)

const obligationColumns = `id, user_id, merchant_name, category, obligation_type,
	avg_amount, amount_variance, last_amount, frequency, interval_days,
	day_of_month, weekday, next_estimated_date, first_seen_date, last_seen_date,
	source, confidence, created_at, updated_at`

// FindObligation implements obligations.Store.
func (db *DB) FindObligation(ctx context.Context, key obligations.Key) (*obligations.Obligation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+obligationColumns+`
		FROM recurring_obligations
		WHERE user_id = ? AND merchant_name = ? AND category = ?
	`, key.UserID, key.MerchantName, key.Category)

	o, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, obligations.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query obligation: %w", err)
	}
	return &o, nil
}

// InsertObligation implements obligations.Store.
func (db *DB) InsertObligation(ctx context.Context, o *obligations.Obligation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO recurring_obligations (`+obligationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.UserID, o.MerchantName, o.Category, string(o.ObligationType),
		o.AvgAmount, o.AmountVariance, o.LastAmount, string(o.Frequency), o.IntervalDays,
		nullInt(o.DayOfMonth), nullWeekday(o.Weekday), nullDate(o.NextEstimatedDate),
		o.FirstSeenDate.Format(domain.DateLayout), o.LastSeenDate.Format(domain.DateLayout),
		o.Source, o.Confidence, o.CreatedAt.UTC().Format(timestampLayout), o.UpdatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert obligation: %w", err)
	}
	return nil
}

// UpdateObligation implements obligations.Store.
func (db *DB) UpdateObligation(ctx context.Context, o *obligations.Obligation) error {
	res, err := db.ExecContext(ctx, `
		UPDATE recurring_obligations SET
			merchant_name = ?, category = ?, obligation_type = ?,
			avg_amount = ?, amount_variance = ?, last_amount = ?,
			frequency = ?, interval_days = ?, day_of_month = ?, weekday = ?,
			next_estimated_date = ?, first_seen_date = ?, last_seen_date = ?,
			source = ?, confidence = ?, updated_at = ?
		WHERE id = ?
	`,
		o.MerchantName, o.Category, string(o.ObligationType),
		o.AvgAmount, o.AmountVariance, o.LastAmount,
		string(o.Frequency), o.IntervalDays, nullInt(o.DayOfMonth), nullWeekday(o.Weekday),
		nullDate(o.NextEstimatedDate), o.FirstSeenDate.Format(domain.DateLayout), o.LastSeenDate.Format(domain.DateLayout),
		o.Source, o.Confidence, o.UpdatedAt.UTC().Format(timestampLayout),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update obligation %s: %w", o.ID, obligations.ErrNotFound)
	}
	return nil
}

// ListObligations implements obligations.Store.
func (db *DB) ListObligations(ctx context.Context, userID string) ([]obligations.Obligation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+obligationColumns+`
		FROM recurring_obligations
		WHERE user_id = ?
		ORDER BY merchant_name, category
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query obligations: %w", err)
	}
	defer rows.Close()

	list := []obligations.Obligation{}
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// DeleteObligations removes all of a user's obligations.
func (db *DB) DeleteObligations(ctx context.Context, userID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM recurring_obligations WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete obligations: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObligation(s scanner) (obligations.Obligation, error) {
	var (
		o                    obligations.Obligation
		obligationType, freq string
		dayOfMonth, weekday  sql.NullInt64
		next                 sql.NullString
		firstSeen, lastSeen  string
		createdAt, updatedAt string
	)
	err := s.Scan(
		&o.ID, &o.UserID, &o.MerchantName, &o.Category, &obligationType,
		&o.AvgAmount, &o.AmountVariance, &o.LastAmount, &freq, &o.IntervalDays,
		&dayOfMonth, &weekday, &next, &firstSeen, &lastSeen,
		&o.Source, &o.Confidence, &createdAt, &updatedAt,
	)
	if err != nil {
		return o, err
	}

	o.ObligationType = domain.ObligationType(obligationType)
	o.Frequency = recurring.ParseFrequency(freq)
	if dayOfMonth.Valid {
		d := int(dayOfMonth.Int64)
		o.DayOfMonth = &d
	}
	if weekday.Valid {
		wd := time.Weekday(weekday.Int64)
		o.Weekday = &wd
	}
	if next.Valid {
		d, err := time.Parse(domain.DateLayout, next.String)
		if err != nil {
			return o, fmt.Errorf("parse next_estimated_date: %w", err)
		}
		o.NextEstimatedDate = &d
	}
	if o.FirstSeenDate, err = time.Parse(domain.DateLayout, firstSeen); err != nil {
		return o, fmt.Errorf("parse first_seen_date: %w", err)
	}
	if o.LastSeenDate, err = time.Parse(domain.DateLayout, lastSeen); err != nil {
		return o, fmt.Errorf("parse last_seen_date: %w", err)
	}
	if o.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return o, fmt.Errorf("parse created_at: %w", err)
	}
	if o.UpdatedAt, err = time.Parse(timestampLayout, updatedAt); err != nil {
		return o, fmt.Errorf("parse updated_at: %w", err)
	}
	return o, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullWeekday(v *time.Weekday) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDate(v *time.Time) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.Format(domain.DateLayout), Valid: true}
}

var _ obligations.Store = (*DB)(nil)
