package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ron-matt163/wiki-llm/internal/models"
)

const (
	maxColSpan = 1000
	maxRowSpan = 65534
	maxColumns = 2000
)

var (
	// ErrNoHeaderCell rejects tables without a single th cell. Those are layout artifacts.
	ErrNoHeaderCell = errors.New("table has no header cell")
	// ErrTooFewRows rejects tables with one data row or fewer.
	ErrTooFewRows = errors.New("table has too few data rows")
	// ErrTableMalformed marks a table whose rows cannot be laid out on a rectangular grid.
	ErrTableMalformed = errors.New("table malformed")
)

// RawCell is a single td or th as found in the markup.
type RawCell struct {
	Text    string
	Header  bool
	ColSpan int
	RowSpan int
}

type RawRow struct {
	Cells []RawCell
	// InHead is set for rows that sit inside a thead element.
	InHead bool
}

// RawTable is a table as read from markup, before spans are expanded.
type RawTable struct {
	Rows []RawRow
}

// HasHeaderCell reports whether any cell of the table is a header cell.
func HasHeaderCell(rt RawTable) bool {
	for _, row := range rt.Rows {
		for _, c := range row.Cells {
			if c.Header {
				return true
			}
		}
	}
	return false
}

// HasEnoughRows reports whether t has more than one data row.
func HasEnoughRows(t models.Table) bool {
	return len(t.Rows) > 1
}

// Admit runs the full filter chain over rt: header cell present, parseable into a
// rectangular table, more than one data row. The returned error wraps one of
// ErrNoHeaderCell, ErrTableMalformed or ErrTooFewRows.
func Admit(rt RawTable) (models.Table, error) {
	if !HasHeaderCell(rt) {
		return models.Table{}, ErrNoHeaderCell
	}
	t, err := Normalize(rt)
	if err != nil {
		return models.Table{}, err
	}
	if !HasEnoughRows(t) {
		return models.Table{}, fmt.Errorf("%w: %d", ErrTooFewRows, len(t.Rows))
	}
	return t, nil
}

// Normalize expands colspan and rowspan, splits header rows from data rows and
// returns a rectangular table. Header rows are the thead rows, or failing that the
// leading rows made only of th cells. Several header rows are merged per column.
func Normalize(rt RawTable) (models.Table, error) {
	grid, err := expand(rt.Rows)
	if err != nil {
		return models.Table{}, err
	}

	nHead := 0
	for i, row := range rt.Rows {
		if row.InHead {
			nHead = i + 1
		}
	}
	if nHead == 0 {
		for _, row := range rt.Rows {
			if !allHeader(row) {
				break
			}
			nHead++
		}
	}
	if nHead == 0 {
		return models.Table{}, fmt.Errorf("%w: no header row", ErrTableMalformed)
	}

	header := mergeHeader(grid[:nHead])
	if len(header) == 0 {
		return models.Table{}, fmt.Errorf("%w: header has no columns", ErrTableMalformed)
	}

	var rows [][]string
	for i, cells := range grid[nHead:] {
		if len(cells) == 0 {
			continue
		}
		cells = trimTrailingEmpty(cells, len(header))
		if len(cells) > len(header) {
			return models.Table{}, fmt.Errorf("%w: row %d has %d cells, header has %d",
				ErrTableMalformed, i, len(cells), len(header))
		}
		for len(cells) < len(header) {
			cells = append(cells, "")
		}
		rows = append(rows, cells)
	}

	return models.Table{Header: header, Rows: rows}, nil
}

func allHeader(row RawRow) bool {
	if len(row.Cells) == 0 {
		return false
	}
	for _, c := range row.Cells {
		if !c.Header {
			return false
		}
	}
	return true
}

type carry struct {
	text string
	left int
}

// expand lays the rows out on a grid, repeating spanned cells into every slot they cover.
// Grids wider than maxColumns are rejected as malformed.
func expand(rows []RawRow) ([][]string, error) {
	grid := make([][]string, 0, len(rows))
	// spans[c] carries a rowspan cell down column c; nil when the column is free.
	var spans []*carry

	for _, row := range rows {
		var out []string
		col := 0
		take := func() {
			c := spans[col]
			c.left--
			if c.left == 0 {
				spans[col] = nil
			}
		}
		fill := func() {
			for col < len(spans) && spans[col] != nil {
				out = append(out, spans[col].text)
				take()
				col++
			}
		}

		for _, cell := range row.Cells {
			fill()
			cs := clamp(cell.ColSpan, maxColSpan)
			rs := clamp(cell.RowSpan, maxRowSpan)
			if col+cs > maxColumns {
				return nil, fmt.Errorf("%w: wider than %d columns", ErrTableMalformed, maxColumns)
			}
			for k := 0; k < cs; k++ {
				out = append(out, cell.Text)
				// A colspan running over a rowspan still uses up that row of the rowspan.
				if col < len(spans) && spans[col] != nil {
					take()
				}
				if rs > 1 {
					for len(spans) <= col {
						spans = append(spans, nil)
					}
					spans[col] = &carry{text: cell.Text, left: rs - 1}
				}
				col++
			}
		}

		// Spans reaching past the last cell of this row.
		for col < len(spans) {
			if spans[col] != nil {
				fill()
				continue
			}
			out = append(out, "")
			col++
		}
		for len(spans) > 0 && spans[len(spans)-1] == nil {
			spans = spans[:len(spans)-1]
		}

		grid = append(grid, out)
	}
	return grid, nil
}

func clamp(n, hi int) int {
	if n < 1 {
		return 1
	}
	if n > hi {
		return hi
	}
	return n
}

func mergeHeader(levels [][]string) []string {
	width := 0
	for _, l := range levels {
		if len(l) > width {
			width = len(l)
		}
	}

	header := make([]string, width)
	for j := 0; j < width; j++ {
		var parts []string
		for _, l := range levels {
			if j >= len(l) || l[j] == "" {
				continue
			}
			if len(parts) > 0 && parts[len(parts)-1] == l[j] {
				continue
			}
			parts = append(parts, l[j])
		}
		header[j] = strings.Join(parts, " ")
	}
	return header
}

func trimTrailingEmpty(cells []string, width int) []string {
	for len(cells) > width && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}
