package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rivo/uniseg"
	"golang.org/x/term"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
)

// Column describes one table column. Max == 0 means unlimited.
type Column struct {
	Label   string
	Min     int
	Max     int
	Align   Align
	HardCut bool // cut without the ellipsis marker
}

// Row holds rendering-ready cell strings, one per column.
type Row []string

type RenderOptions struct {
	Delimiter string
	Blank     string // substituted for empty cells
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Delimiter: "  "}
}

// RenderTable lays out rows in two passes: measure column widths over
// the whole row set, then emit the header and data lines. It holds no
// state between calls, identical inputs produce identical lines.
func RenderTable(cols []Column, rows []Row, opts RenderOptions) ([]string, error) {
	if opts.Delimiter == "" {
		opts.Delimiter = "  "
	}
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = c.Min
		if w := uniseg.StringWidth(c.Label); w > widths[i] {
			widths[i] = w
		}
	}
	for _, row := range rows {
		if len(row) > len(cols) {
			return nil, fmt.Errorf("row has %d cells, table has %d columns", len(row), len(cols))
		}
		for i, cell := range row {
			if w := uniseg.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i, c := range cols {
		if c.Max > 0 && widths[i] > c.Max {
			widths[i] = c.Max
		}
	}
	lines := make([]string, 0, len(rows)+1)
	header := make(Row, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	lines = append(lines, emitRow(cols, widths, header, opts))
	for _, row := range rows {
		lines = append(lines, emitRow(cols, widths, row, opts))
	}
	return lines, nil
}

func emitRow(cols []Column, widths []int, row Row, opts RenderOptions) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if cell == "" {
			cell = opts.Blank
		}
		cell = truncateCell(cell, widths[i], c.HardCut)
		parts[i] = pad(cell, widths[i], c.Align)
	}
	return strings.TrimRight(strings.Join(parts, opts.Delimiter), " ")
}

// truncateCell shortens a cell to max display cells, walking grapheme
// clusters so that a wide or combining character is never split.
func truncateCell(s string, max int, hard bool) string {
	if max <= 0 || uniseg.StringWidth(s) <= max {
		return s
	}
	budget := max
	if !hard {
		budget--
	}
	var b strings.Builder
	used := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > budget {
			break
		}
		b.WriteString(cluster)
		used += w
	}
	if !hard {
		b.WriteString("…")
	}
	return b.String()
}

func pad(s string, width int, align Align) string {
	slack := width - uniseg.StringWidth(s)
	if slack <= 0 {
		return s
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", slack) + s
	case AlignCenter:
		left := slack / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", slack-left)
	default:
		return s + strings.Repeat(" ", slack)
	}
}

// terminalWidth reports the width of the attached terminal, 0 when
// stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		return w
	}
	return 0
}
