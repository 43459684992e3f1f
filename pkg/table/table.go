// Package table renders simple text tables with lipgloss.
package table

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TableStyle defines the visual styling for tables
type TableStyle struct {
	Header    lipgloss.Style
	Cell      lipgloss.Style
	Separator string
}

// PlainTableStyle returns a plain, boring table style with no colors
func PlainTableStyle() TableStyle {
	return TableStyle{
		Header:    lipgloss.NewStyle().Bold(true).PaddingLeft(1).PaddingRight(1),
		Cell:      lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1),
		Separator: "|",
	}
}

// StyledTableStyle returns a colorful, styled table
func StyledTableStyle() TableStyle {
	return TableStyle{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(1).
			PaddingRight(1),
		Cell:      lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1),
		Separator: "|",
	}
}

// Table is a static table renderer
type Table struct {
	headers     []string
	rows        [][]string
	style       TableStyle
	alignment   []lipgloss.Position
	columnWidth []int
}

// NewTable creates a new table with plain styling
func NewTable() *Table {
	return &Table{style: PlainTableStyle()}
}

// NewStyledTable creates a new table with colorful styling
func NewStyledTable() *Table {
	return &Table{style: StyledTableStyle()}
}

// SetHeaders sets the table headers. Columns default to left alignment.
func (t *Table) SetHeaders(headers ...string) {
	t.headers = headers
	t.alignment = make([]lipgloss.Position, len(headers))
	for i := range t.alignment {
		t.alignment[i] = lipgloss.Left
	}
}

// SetColumnAlignment sets the alignment of one column
func (t *Table) SetColumnAlignment(col int, align lipgloss.Position) {
	if col >= 0 && col < len(t.alignment) {
		t.alignment[col] = align
	}
}

// AppendRow adds a single row to the table. Missing cells are left empty and
// extra cells are dropped.
func (t *Table) AppendRow(row ...string) {
	r := make([]string, len(t.headers))
	copy(r, row)
	t.rows = append(t.rows, r)
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) calculateColumnWidths() {
	t.columnWidth = make([]int, len(t.headers))
	for i, header := range t.headers {
		t.columnWidth[i] = lipgloss.Width(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			t.columnWidth[i] = max(t.columnWidth[i], lipgloss.Width(cell))
		}
	}
	for i := range t.columnWidth {
		t.columnWidth[i] += 2 // padding
	}
}

func (t *Table) renderRow(row []string, isHeader bool) string {
	style := t.style.Cell
	if isHeader {
		style = t.style.Header
	}
	cells := make([]string, len(row))
	for i, cell := range row {
		cells[i] = style.Width(t.columnWidth[i]).Align(t.alignment[i]).Render(cell)
	}
	return strings.Join(cells, t.style.Separator)
}

// Render generates the complete table as a string
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	t.calculateColumnWidths()

	var output strings.Builder

	output.WriteString(t.renderRow(t.headers, true) + "\n")

	separators := make([]string, len(t.columnWidth))
	for i, width := range t.columnWidth {
		separators[i] = strings.Repeat("-", width)
	}
	output.WriteString(strings.Join(separators, "+") + "\n")

	for _, row := range t.rows {
		output.WriteString(t.renderRow(row, false) + "\n")
	}

	return strings.TrimRight(output.String(), "\n")
}
