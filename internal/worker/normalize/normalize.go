// Package normalize turns the analysis engine's raw block graph into tables and text lines.
package normalize

import (
	"sort"
	"strings"

	"github.com/cuongbtq/docanalysis/internal/worker/domain"
)

// Normalize groups blocks by page and extracts tables and lines in document order.
// It is pure: the same blocks always produce the same result.
func Normalize(blocks []domain.Block) domain.NormalizedResult {
	result := domain.NormalizedResult{
		Tables: []domain.Table{},
		Lines:  []string{},
	}

	index := make(map[string]domain.Block, len(blocks))
	for _, b := range blocks {
		index[b.ID] = b
	}

	for _, page := range groupByPage(blocks) {
		for _, b := range page {
			if b.Type != domain.BlockTypeTable {
				continue
			}
			if table := buildTable(b, index); len(table) > 0 {
				result.Tables = append(result.Tables, table)
			}
		}

		for _, b := range page {
			if b.Type != domain.BlockTypeLine {
				continue
			}
			if text := strings.TrimSpace(b.Text); text != "" {
				result.Lines = append(result.Lines, text)
			}
		}
	}

	return result
}

// groupByPage buckets blocks by page number, keeping block order inside a page.
// Blocks without a page number belong to page 1.
func groupByPage(blocks []domain.Block) [][]domain.Block {
	byPage := make(map[int][]domain.Block)
	for _, b := range blocks {
		page := b.Page
		if page <= 0 {
			page = 1
		}
		byPage[page] = append(byPage[page], b)
	}

	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	grouped := make([][]domain.Block, 0, len(pages))
	for _, p := range pages {
		grouped = append(grouped, byPage[p])
	}
	return grouped
}

func buildTable(table domain.Block, index map[string]domain.Block) domain.Table {
	cells := make([]domain.Block, 0, len(table.Children))
	for _, id := range table.Children {
		if cell, ok := index[id]; ok && cell.Type == domain.BlockTypeCell {
			cells = append(cells, cell)
		}
	}

	sort.SliceStable(cells, func(i, j int) bool {
		if cells[i].RowIndex != cells[j].RowIndex {
			return cells[i].RowIndex < cells[j].RowIndex
		}
		return cells[i].ColumnIndex < cells[j].ColumnIndex
	})

	var rows domain.Table
	var row []string
	currentRow := 0
	flush := func() {
		if rowHasText(row) {
			rows = append(rows, row)
		}
		row = nil
	}
	for i, cell := range cells {
		if i > 0 && cell.RowIndex != currentRow {
			flush()
		}
		currentRow = cell.RowIndex
		row = append(row, cellText(cell, index))
	}
	flush()

	return rows
}

// cellText concatenates the cell's children in order: words separated by
// spaces, selection elements as their status followed by ", ". It falls back
// to the cell's own text when no child contributes.
func cellText(cell domain.Block, index map[string]domain.Block) string {
	var sb strings.Builder
	for _, id := range cell.Children {
		child, ok := index[id]
		if !ok {
			continue
		}
		switch child.Type {
		case domain.BlockTypeWord:
			if text := strings.TrimSpace(child.Text); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		case domain.BlockTypeSelection:
			if child.SelectionStatus != "" {
				sb.WriteString(child.SelectionStatus)
				sb.WriteString(", ")
			}
		}
	}

	if text := strings.TrimSpace(sb.String()); text != "" {
		return text
	}
	return strings.TrimSpace(cell.Text)
}

func rowHasText(row []string) bool {
	for _, c := range row {
		if c != "" {
			return true
		}
	}
	return false
}
