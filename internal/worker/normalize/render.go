package normalize

import (
	"fmt"
	"strings"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

const (
	tablesHeader = "TABLES (In Order)"
	linesHeader  = "RAW_LINES"
)

// Render formats a normalized result as plain text for downstream structuring:
// every table with aligned columns, followed by the raw lines.
func Render(result domain.NormalizedResult) string {
	var b strings.Builder
	b.WriteString(tablesHeader)
	for i, table := range result.Tables {
		fmt.Fprintf(&b, "\n\nTable %d:\n%s", i+1, FormatTable(table))
	}
	b.WriteString("\n\n")
	b.WriteString(linesHeader)
	for _, line := range result.Lines {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

// FormatTable pads ragged rows and aligns columns, joining cells with " | "
func FormatTable(table domain.Table) string {
	cols := 0
	for _, row := range table {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	for _, row := range table {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	lines := make([]string, 0, len(table))
	for _, row := range table {
		cells := make([]string, cols)
		for i := range cells {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	return strings.Join(lines, "\n")
}
