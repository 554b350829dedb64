package bigquery

import "fmt"

const (
	transactionsTable = "transactions"
	obligationsTable  = "recurring_obligations"
	dateFormat        = "2006-01-02"
)

// Dataset names the BigQuery project and dataset the repositories work in.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// Table returns the backquoted, fully qualified name of table.
func (d Dataset) Table(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, table)
}
