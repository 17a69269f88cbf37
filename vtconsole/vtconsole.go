// Package vtconsole implements C12's VT/framebuffer console output:
// a fixed-cell grid that klog records are rendered into, one rune per
// cell, wide runes (CJK, fullwidth forms) occupying two cells so the
// grid stays aligned the way a real text-mode framebuffer would.
//
// No source package here has a VT console of its own, so this package
// is grounded on spec.md §4.12's "VT console, ... framebuffer console"
// output kinds plus SPEC_FULL.md §11's mapping of
// golang.org/x/text/width onto exactly this rendering step.
package vtconsole

import (
	"protura/klog"

	"golang.org/x/text/width"
)

// Console_t is a fixed Rows x Cols grid of cells, each either one rune
// wide or the leading half of a two-cell-wide rune followed by a
// continuation cell (a 0 rune).
type Console_t struct {
	Rows, Cols int
	cells      []rune
	row, col   int
}

// NewConsole allocates a rows x cols grid, cursor at the origin.
func NewConsole(rows, cols int) *Console_t {
	return &Console_t{
		Rows:  rows,
		Cols:  cols,
		cells: make([]rune, rows*cols),
	}
}

func (c *Console_t) at(row, col int) int { return row*c.Cols + col }

func (c *Console_t) newline() {
	if c.row >= c.Rows {
		c.scroll()
		c.row = c.Rows - 1
	}
	c.col = 0
	c.row++
}

// scroll shifts every row up by one, dropping the top row, the way a
// real text-mode console does once output continues past the bottom
// row.
func (c *Console_t) scroll() {
	copy(c.cells, c.cells[c.Cols:])
	for i := len(c.cells) - c.Cols; i < len(c.cells); i++ {
		c.cells[i] = 0
	}
}

// putRune writes r at the cursor, advancing one cell for a narrow rune
// or two for a wide one (width.LookupRune classifies East Asian Wide
// and Fullwidth runes as double-width).
func (c *Console_t) putRune(r rune) {
	if r == '\n' {
		c.newline()
		return
	}

	cellWidth := 1
	if p := width.LookupRune(r); p.Kind() == width.EastAsianWide || p.Kind() == width.EastAsianFullwidth {
		cellWidth = 2
	}
	if c.col+cellWidth > c.Cols {
		c.newline()
	}
	if c.row >= c.Rows {
		c.scroll()
		c.row = c.Rows - 1
	}

	c.cells[c.at(c.row, c.col)] = r
	c.col++
	if cellWidth == 2 && c.col < c.Cols {
		c.cells[c.at(c.row, c.col)] = 0
		c.col++
	}
}

// WriteLine implements klog.Output_i, rendering line into the grid
// cell by cell.
func (c *Console_t) WriteLine(level klog.Level, line string) {
	for _, r := range line {
		c.putRune(r)
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		c.newline()
	}
}

// Row returns the runes currently occupying row r, continuation cells
// (the second half of a wide rune) included as 0.
func (c *Console_t) Row(r int) []rune {
	return append([]rune(nil), c.cells[c.at(r, 0):c.at(r, 0)+c.Cols]...)
}

// String renders the full grid as rows of text, trimming continuation
// cells and trailing blank cells from each line.
func (c *Console_t) String() string {
	out := make([]byte, 0, c.Rows*c.Cols)
	for r := 0; r < c.Rows; r++ {
		end := c.Cols
		for end > 0 && c.cells[c.at(r, end-1)] == 0 {
			end--
		}
		for col := 0; col < end; col++ {
			ch := c.cells[c.at(r, col)]
			if ch == 0 {
				continue
			}
			out = append(out, []byte(string(ch))...)
		}
		out = append(out, '\n')
	}
	return string(out)
}
