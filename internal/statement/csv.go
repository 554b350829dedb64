// Package statement reads transaction exports into detector records.
package statement

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/recurring-tracker/internal/domain"
)

// csvRow is one line of a transaction export. Column names are matched
// case-insensitively after trimming.
type csvRow struct {
	ID          string `csv:"id"`
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Type        string `csv:"type"`
	Category    string `csv:"category"`
}

// RowError describes a skipped line.
type RowError struct {
	Line int // 1-based, header is line 1
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result holds the parsed records and the lines that were skipped.
type Result struct {
	Records []domain.TransactionRecord
	Skipped []RowError
}

// ParseCSV reads a transaction export with the columns
// date, description, amount, type and optionally id and category.
// Malformed rows are skipped and reported; only an unreadable file or a
// missing required column is an error.
func ParseCSV(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ParseCSV: read: %w", err)
	}
	data, err = normalizeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("ParseCSV: %w", err)
	}

	var rows []*csvRow
	if err := gocsv.Unmarshal(bytes.NewReader(data), &rows); err != nil {
		return nil, fmt.Errorf("ParseCSV: decode: %w", err)
	}

	res := &Result{}
	for i, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			res.Skipped = append(res.Skipped, RowError{Line: i + 2, Err: err})
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func (r *csvRow) toRecord() (domain.TransactionRecord, error) {
	if strings.TrimSpace(r.Description) == "" {
		return domain.TransactionRecord{}, fmt.Errorf("empty description")
	}
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	tag := r.Type
	if strings.TrimSpace(tag) == "" {
		// exports without a type column carry the direction in the sign
		if amount < 0 {
			tag = "expense"
		} else {
			tag = "income"
		}
	}

	rec, err := domain.RecordFromTags(strings.TrimSpace(r.ID), r.Date, strings.TrimSpace(r.Description), amount, tag)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	rec.Category = strings.TrimSpace(r.Category)
	return rec, nil
}

// ParseAmount parses amounts as banks export them: optional currency
// symbol, thousands separators and accounting-style parentheses for
// negatives. The result is rounded to cents.
func ParseAmount(s string) (float64, error) {
	clean := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
	}
	clean = strings.NewReplacer("$", "", "£", "", "€", "", ",", "", " ", "").Replace(clean)
	if clean == "" {
		return 0, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	amount := d.Round(2).InexactFloat64()
	if err := domain.CheckAmount(amount); err != nil {
		return 0, err
	}
	return amount, nil
}

var requiredColumns = []string{"date", "description", "amount"}

// normalizeHeader lowercases the header line and checks required columns.
func normalizeHeader(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	end := bytes.IndexByte(data, '\n')
	if end == -1 {
		end = len(data)
	}
	header := strings.TrimRight(string(data[:end]), "\r")
	if strings.TrimSpace(header) == "" {
		return nil, fmt.Errorf("missing header row")
	}

	cols := strings.Split(header, ",")
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		cols[i] = strings.ToLower(strings.Trim(strings.TrimSpace(c), `"`))
		seen[cols[i]] = true
	}
	for _, req := range requiredColumns {
		if !seen[req] {
			return nil, fmt.Errorf("missing required column %q", req)
		}
	}

	out := []byte(strings.Join(cols, ","))
	return append(out, data[end:]...), nil
}
