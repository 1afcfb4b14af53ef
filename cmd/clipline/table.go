package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one coordinator table column. Numeric columns align right;
// maxWidth trims long cell values so titles never blow out the terminal.
type column struct {
	name     string
	numeric  bool
	maxWidth int
}

var queueListColumns = []column{
	{name: "ID"},
	{name: "Title", maxWidth: 40},
	{name: "Stage"},
	{name: "Deadline"},
	{name: "Age", numeric: true},
	{name: "Priority", numeric: true},
	{name: "Claim"},
	{name: "Next"},
}

var queueStatsColumns = []column{
	{name: "Stage"},
	{name: "Count", numeric: true},
}

var timelineColumns = []column{
	{name: "When"},
	{name: "Event"},
	{name: "Stage"},
	{name: "Actor"},
}

func renderColumns(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col.name
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i, col := range columns {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			if col.maxWidth > 0 {
				value = truncate(value, col.maxWidth)
			}
			r[i] = value
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
