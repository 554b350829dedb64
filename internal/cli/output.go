package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/recurring-tracker/internal/domain"
)

// Output writes command results either as indented JSON or as plain text.
type Output struct {
	w    io.Writer
	json bool
}

func NewOutput(cmd *cobra.Command) *Output {
	asJSON, _ := cmd.Flags().GetBool("json")
	return &Output{w: cmd.OutOrStdout(), json: asJSON}
}

func (o *Output) IsJSON() bool { return o.json }

func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}

func (o *Output) Println(args ...any) {
	fmt.Fprintln(o.w, args...)
}

// Table buffers rows and aligns them on Render.
type Table struct {
	tw *tabwriter.Writer
}

func NewTable(o *Output, headers ...string) *Table {
	t := &Table{tw: tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)}
	t.AddRow(headers...)
	return t
}

func (t *Table) AddRow(cells ...string) {
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

func (t *Table) Render() error {
	return t.tw.Flush()
}

func formatDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
