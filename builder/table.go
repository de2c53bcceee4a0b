package builder

import (
	"fmt"

	"github.com/wudi/pdfstream/contentstream"
	"github.com/wudi/pdfstream/structure"
)

// Table defines a matrix of cells to draw.
type Table struct {
	Columns    []float64
	Rows       []TableRow
	HeaderRows int
}

// TableRow wraps a slice of cells.
type TableRow struct {
	Cells []TableCell
}

// TableCell configures individual table cell rendering.
type TableCell struct {
	Text       string
	Font       string
	FontSize   float64
	Background *contentstream.Color
	TextColor  *contentstream.Color
	ColSpan    int
	HAlign     HAlign
}

// HAlign controls horizontal text alignment within a cell.
type HAlign string

const (
	HAlignLeft   HAlign = "left"
	HAlignCenter HAlign = "center"
	HAlignRight  HAlign = "right"
)

// TableOptions configures table rendering. Rows that do not fit above
// BottomMargin continue on a new page of the same size, below TopMargin,
// with the header rows repeated.
type TableOptions struct {
	X            float64
	Y            float64
	CellPadding  float64
	BorderWidth  float64
	BorderColor  *contentstream.Color
	HeaderFill   *contentstream.Color
	DefaultSize  float64
	TopMargin    float64
	BottomMargin float64
	// Key registers Table, TR and TH/TD elements under Parent. Repeated
	// header rows are artifacts.
	Key    structure.Key
	Parent structure.ElementID
}

func rowKey(table structure.Key, row int) structure.Key {
	return structure.Key(fmt.Sprintf("%s/r%d", table, row))
}

func cellKey(table structure.Key, row, col int) structure.Key {
	return structure.Key(fmt.Sprintf("%s/r%d/c%d", table, row, col))
}

// DeclareTable registers the Table, TR and TH/TD elements of t under parent
// ahead of drawing, so the table keeps its place among its siblings.
func (b *Builder) DeclareTable(t Table, key structure.Key, parent structure.ElementID) error {
	tags := b.tags
	if tags == nil {
		return nil
	}
	tbl, err := tags.AddElement(parent, key, "Table")
	if err != nil {
		return err
	}
	for i, row := range t.Rows {
		tr, err := tags.AddElement(tbl, rowKey(key, i), "TR")
		if err != nil {
			return err
		}
		typ := "TD"
		if i < t.HeaderRows {
			typ = "TH"
		}
		for j := range row.Cells {
			if _, err := tags.AddElement(tr, cellKey(key, i, j), typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// DrawTable draws t and returns the page the table ended on, which differs
// from p when rows overflowed, and the y coordinate below its last row.
func (p *Page) DrawTable(t Table, opts TableOptions) (*Page, float64, error) {
	if err := p.Err(); err != nil {
		return p, opts.Y, err
	}
	if len(t.Columns) == 0 || len(t.Rows) == 0 {
		return p, opts.Y, nil
	}
	if opts.CellPadding == 0 {
		opts.CellPadding = 4
	}
	if opts.BorderWidth == 0 {
		opts.BorderWidth = 0.5
	}
	if opts.DefaultSize == 0 {
		opts.DefaultSize = defaultFontSize
	}
	if opts.Y == 0 {
		opts.Y = p.Height() - opts.TopMargin
	}
	tagged := p.b.tags != nil && opts.Key != ""
	if tagged {
		if _, ok := p.b.tags.Lookup(opts.Key); !ok {
			if err := p.b.DeclareTable(t, opts.Key, opts.Parent); err != nil {
				return p, opts.Y, p.fail(err).Err()
			}
		}
	}
	headers := t.HeaderRows
	if headers > len(t.Rows) {
		headers = len(t.Rows)
	}

	heights := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		h := opts.DefaultSize*1.2 + 2*opts.CellPadding
		for _, c := range row.Cells {
			if c.FontSize > 0 {
				h = max(h, c.FontSize*1.2+2*opts.CellPadding)
			}
		}
		heights[i] = h
	}
	spanWidth := func(col, span int) float64 {
		w := 0.0
		for i := col; i < col+span && i < len(t.Columns); i++ {
			w += t.Columns[i]
		}
		return w
	}

	cur := p
	y := opts.Y
	var drawRow func(i int, repeat bool)
	drawRow = func(i int, repeat bool) {
		row := t.Rows[i]
		h := heights[i]
		x := opts.X
		for col, j := 0, 0; col < len(t.Columns) && j < len(row.Cells); j++ {
			cell := row.Cells[j]
			span := max(cell.ColSpan, 1)
			w := spanWidth(col, span)
			fill := cell.Background
			if fill == nil && i < headers {
				fill = opts.HeaderFill
			}
			if fill != nil {
				cur.DrawRectangle(x, y-h, w, h, RectOptions{Fill: true, FillColor: fill})
			}
			cur.DrawRectangle(x, y-h, w, h, RectOptions{Stroke: true, StrokeColor: opts.BorderColor, LineWidth: opts.BorderWidth})

			size := cell.FontSize
			if size == 0 {
				size = opts.DefaultSize
			}
			tx := x + opts.CellPadding
			if cell.HAlign == HAlignCenter || cell.HAlign == HAlignRight {
				tw := cur.b.MeasureText(cell.Text, cell.Font, size)
				avail := w - 2*opts.CellPadding
				if cell.HAlign == HAlignCenter {
					tx += (avail - tw) / 2
				} else {
					tx += avail - tw
				}
			}
			var key structure.Key
			if tagged && !repeat {
				key = cellKey(opts.Key, i, j)
			}
			cur.DrawText(cell.Text, tx, y-opts.CellPadding-size, TextOptions{
				Font:     cell.Font,
				FontSize: size,
				Color:    cell.TextColor,
				Key:      key,
			})
			x += w
			col += span
		}
		y -= h
	}

	fresh := false
	for i := range t.Rows {
		if y-heights[i] < opts.BottomMargin && !fresh {
			w, h := cur.Width(), cur.Height()
			if err := cur.Finish(); err != nil {
				return cur, y, err
			}
			next, err := cur.b.NewPage(w, h)
			if err != nil {
				return cur, y, err
			}
			cur = next
			fresh = true
			y = h - opts.TopMargin
			if i >= headers {
				for r := 0; r < headers; r++ {
					drawRow(r, true)
				}
			}
		}
		drawRow(i, false)
		fresh = false
		if err := cur.Err(); err != nil {
			return cur, y, err
		}
	}
	return cur, y, nil
}
