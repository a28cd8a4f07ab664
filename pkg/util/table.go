package util

import (
	"fmt"
	"io"
)

// TablePrinter is useful for printing tables to the terminal.
type TablePrinter struct {
	widths []uint
	rows   [][]string
}

// NewTablePrinter constructs a new table with given dimensions.
func NewTablePrinter(width uint, height uint) *TablePrinter {
	widths := make([]uint, width)
	rows := make([][]string, height)
	// Construct the table
	for i := uint(0); i < height; i++ {
		rows[i] = make([]string, width)
	}

	return &TablePrinter{widths, rows}
}

// SetRow sets the contents of an entire row in this table
func (p *TablePrinter) SetRow(row uint, vals ...string) {
	if len(vals) != len(p.widths) {
		panic("incorrect number of columns")
	}
	// Update column widths
	for i := 0; i < len(p.widths); i++ {
		p.widths[i] = max(p.widths[i], uint(len(vals[i])))
	}
	// Done
	p.rows[row] = vals
}

// FitWidth shrinks the widest columns until each row fits within a given
// number of characters (where possible).
func (p *TablePrinter) FitWidth(width uint) {
	for p.Width() > width {
		widest := 0
		//
		for i, w := range p.widths {
			if w > p.widths[widest] {
				widest = i
			}
		}
		// Columns are never narrower than a single character
		if p.widths[widest] <= 1 {
			return
		}
		//
		p.widths[widest]--
	}
}

// Width returns the number of characters in each printed row.
func (p *TablePrinter) Width() uint {
	var width uint
	//
	for _, w := range p.widths {
		width += w + 3
	}
	//
	return width
}

// Write the table to a given writer.
func (p *TablePrinter) Write(w io.Writer) error {
	for _, row := range p.rows {
		for j, col := range row {
			jth := col
			jth_width := p.widths[j]

			if uint(len(col)) > jth_width {
				jth = col[0:jth_width]
			}

			if _, err := fmt.Fprintf(w, " %*s |", jth_width, jth); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	return nil
}
