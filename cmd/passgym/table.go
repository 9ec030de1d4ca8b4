// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

// styles holds the lipgloss styles for one output stream. Color is
// dropped automatically when the stream is not a terminal.
type styles struct {
	renderer *lipgloss.Renderer
	header   lipgloss.Style
	label    lipgloss.Style
	good     lipgloss.Style
	bad      lipgloss.Style
	dim      lipgloss.Style
	plain    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	renderer := lipgloss.NewRenderer(w)
	return styles{
		renderer: renderer,
		header:   renderer.NewStyle().Bold(true).Underline(true),
		label:    renderer.NewStyle().Bold(true),
		good:     renderer.NewStyle().Foreground(lipgloss.Color("2")),
		bad:      renderer.NewStyle().Foreground(lipgloss.Color("1")),
		dim:      renderer.NewStyle().Foreground(lipgloss.Color("8")),
		plain:    renderer.NewStyle(),
	}
}

// terminalWidth returns the width of w when it is a terminal, and 0
// otherwise.
func terminalWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// cell is one table cell with the style it is rendered in.
type cell struct {
	text  string
	style lipgloss.Style
}

// table is a borderless lipgloss table whose cells keep their own
// styles.
type table struct {
	styles  styles
	headers []string

	// right marks right-aligned (numeric) columns.
	right map[int]bool

	// wrap is the column truncated to fit maxWidth, or -1.
	wrap     int
	maxWidth int

	rows [][]cell
}

// columnGap separates adjacent columns.
const columnGap = 2

func newTable(s styles, headers ...string) *table {
	return &table{styles: s, headers: headers, right: map[int]bool{}, wrap: -1}
}

func (t *table) add(cells ...cell) {
	t.rows = append(t.rows, cells)
}

// wrapWidth returns the width the wrap column is cut to, or 0 when
// the table fits as is.
func (t *table) wrapWidth() int {
	if t.wrap < 0 || t.maxWidth <= 0 {
		return 0
	}
	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = lipgloss.Width(header)
	}
	for _, row := range t.rows {
		for i, c := range row {
			widths[i] = max(widths[i], lipgloss.Width(c.text))
		}
	}
	total := columnGap * (len(widths) - 1)
	for _, width := range widths {
		total += width
	}
	over := total - t.maxWidth
	if over <= 0 {
		return 0
	}
	return max(lipgloss.Width(t.headers[t.wrap]), widths[t.wrap]-over)
}

func (t *table) render(w io.Writer) error {
	limit := t.wrapWidth()
	rows := make([][]string, len(t.rows))
	for r, row := range t.rows {
		rows[r] = make([]string, len(row))
		for i, c := range row {
			rows[r][i] = c.text
			if i == t.wrap && limit > 0 && lipgloss.Width(c.text) > limit {
				rows[r][i] = truncate(c.text, limit)
			}
		}
	}

	listing := lgtable.New().
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(t.headers...).
		Rows(rows...).
		StyleFunc(func(row, column int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == lgtable.HeaderRow:
				style = t.styles.header
			case row < len(t.rows) && column < len(t.rows[row]):
				style = t.rows[row][column].style
			default:
				style = t.styles.plain
			}
			if t.right[column] {
				style = style.Align(lipgloss.Right)
			}
			if column < len(t.headers)-1 {
				style = style.PaddingRight(columnGap)
			}
			return style
		})

	var out strings.Builder
	for _, line := range strings.Split(strings.TrimRight(listing.String(), "\n"), "\n") {
		out.WriteString(strings.TrimRight(line, " "))
		out.WriteString("\n")
	}
	_, err := io.WriteString(w, out.String())
	return err
}

// truncate shortens text to width columns, ending in "…".
func truncate(text string, width int) string {
	if width <= 1 {
		return "…"
	}
	runes := []rune(text)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
