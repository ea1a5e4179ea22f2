package main

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"platter/internal/plan"
)

func renderPlanTable(entries []plan.Entry) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Title", "Chapters", "Episode", "Output"})

	for i, entry := range entries {
		tw.AppendRow(table.Row{
			i + 1,
			entry.TitleID,
			fmt.Sprintf("%d-%d", entry.ChapterStart, entry.ChapterEnd),
			entry.Label(),
			shortenPath(entry.OutputPath),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

// shortenPath keeps the last two path segments so table rows stay readable.
func shortenPath(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) {
		return filepath.Base(path)
	}
	return filepath.Join(dir, filepath.Base(path))
}
