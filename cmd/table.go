package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one table column; numeric columns align right.
type column struct {
	Title   string
	Numeric bool
}

// renderTable renders rows under the given columns. Short rows are padded.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, 0, len(columns))
	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, c := range columns {
		header = append(header, c.Title)
		align := text.AlignLeft
		if c.Numeric {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
