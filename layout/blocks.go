package layout

import (
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wudi/pdfstream/builder"
	"github.com/wudi/pdfstream/contentstream"
	"github.com/wudi/pdfstream/coords"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/structure"
)

var headingScale = [...]float64{2, 1.5, 1.25, 1.1, 1, 1}

// childKey is the key of the i-th child of parent. Both passes over a
// source derive keys this way, so content finds the element declared for it.
func childKey(parent structure.Key, i int) structure.Key {
	return parent + "/" + structure.Key(strconv.Itoa(i))
}

type style struct {
	font   string
	size   float64
	strike bool
}

// figure is an image met while collecting the text of a block.
type figure struct {
	src string
	alt string
	key structure.Key
}

func (e *Engine) spacing(size float64) {
	e.cursorY -= size * 0.5
}

func (e *Engine) available(x float64) float64 {
	return e.pageWidth - e.Margins.Right - x
}

func (e *Engine) pageErr() error {
	if e.page != nil {
		return e.page.Err()
	}
	return nil
}

func (e *Engine) headingSize(level int) float64 {
	return e.DefaultFontSize * headingScale[min(max(level, 1), 6)-1]
}

// heading places a heading with an outline entry and, when anchor is set,
// the named destination links to it resolve to.
func (e *Engine) heading(level int, anchor, title string, spans []TextSpan, figs []figure, x float64) error {
	size := e.headingSize(level)
	if err := e.ensureSpace(size * e.LineHeight * 2); err != nil {
		return err
	}
	top := e.cursorY
	if anchor != "" {
		e.page.Anchor(anchor, x, top)
	}
	if err := e.bookmark(level, title, top); err != nil {
		return err
	}
	if err := e.paragraph(spans, figs, x, false); err != nil {
		return err
	}
	e.spacing(size)
	return e.pageErr()
}

// paragraph flows spans and draws the figures below them.
func (e *Engine) paragraph(spans []TextSpan, figs []figure, x float64, spaced bool) error {
	if err := e.renderSpans(spans, x); err != nil {
		return err
	}
	if err := e.figures(figs, x); err != nil {
		return err
	}
	if spaced {
		e.spacing(e.DefaultFontSize)
	}
	return e.pageErr()
}

func (e *Engine) rule(x float64) error {
	size := e.DefaultFontSize
	if err := e.ensureSpace(size); err != nil {
		return err
	}
	y := e.cursorY - size/2
	e.page.DrawLine(x, y, e.pageWidth-e.Margins.Right, y, builder.LineOptions{LineWidth: 0.5})
	e.cursorY -= size
	return e.page.Err()
}

// codeLines draws preformatted lines in the mono font, one per line.
func (e *Engine) codeLines(lines []string, key structure.Key, x float64) error {
	size := e.DefaultFontSize * 0.9
	for _, line := range lines {
		line = strings.ReplaceAll(line, "\t", "    ")
		if err := e.ensureSpace(size * e.LineHeight); err != nil {
			return err
		}
		if line != "" {
			e.page.DrawText(line, x+10, e.cursorY-size, builder.TextOptions{Font: e.MonoFont, FontSize: size, Key: key})
		}
		e.cursorY -= size * e.LineHeight
	}
	e.spacing(e.DefaultFontSize)
	return e.pageErr()
}

// drawTable draws t at the cursor with bold header cells. The cursor moves
// below the table, on whatever page it ended.
func (e *Engine) drawTable(t builder.Table, key structure.Key, x float64) error {
	for i := 0; i < t.HeaderRows && i < len(t.Rows); i++ {
		for j := range t.Rows[i].Cells {
			t.Rows[i].Cells[j].Font = e.BoldFont
		}
	}
	if err := e.ensureSpace(e.DefaultFontSize * 3); err != nil {
		return err
	}
	opts := builder.TableOptions{
		X:            x,
		Y:            e.cursorY,
		DefaultSize:  e.DefaultFontSize,
		TopMargin:    e.Margins.Top,
		BottomMargin: e.Margins.Bottom,
		Key:          key,
		Parent:       structure.NoElement,
	}
	page, y, err := e.page.DrawTable(t, opts)
	e.page = page
	if err != nil {
		return err
	}
	e.cursorY = y
	e.spacing(e.DefaultFontSize)
	return nil
}

var linkColor = contentstream.RGB(0, 0, 0.6)

// linkAction builds the link action for a destination. Fragments become
// forward references resolved when the heading is placed.
func (e *Engine) linkAction(dest string) *TextSpan {
	if strings.HasPrefix(dest, "#") {
		return &TextSpan{Link: e.doc.Target(dest[1:]), Color: &linkColor}
	}
	if u, err := url.Parse(dest); err != nil || !u.IsAbs() {
		e.log.Warn("relative link dropped", observability.String("dest", dest))
		return nil
	}
	a, err := e.doc.NewURI(dest)
	if err != nil {
		e.log.Warn("link dropped", observability.String("dest", dest), observability.Error("error", err))
		return nil
	}
	return &TextSpan{Link: a, Color: &linkColor}
}

// figures draws images at their natural size (0.75pt per pixel), scaled
// down to fit the text column. Images that cannot be loaded leave their
// alternate text in place.
func (e *Engine) figures(figs []figure, x float64) error {
	for _, f := range figs {
		path := f.src
		if !filepath.IsAbs(path) && e.BaseDir != "" {
			path = filepath.Join(e.BaseDir, path)
		}
		im, err := e.images.Load(path)
		if err != nil {
			e.log.Warn("image skipped", observability.String("path", path), observability.Error("error", err))
			if err := e.renderSpans([]TextSpan{{Text: "[" + f.alt + "]", Font: e.ItalicFont, Key: f.key}}, x); err != nil {
				return err
			}
			continue
		}
		maxW := e.available(x)
		maxH := e.pageHeight - e.Margins.Top - e.Margins.Bottom
		w, h := float64(im.Width)*0.75, float64(im.Height)*0.75
		if w > maxW {
			w, h = maxW, h*maxW/w
		}
		if h > maxH {
			w, h = w*maxH/h, maxH
		}
		if err := e.ensureSpace(h); err != nil {
			return err
		}
		y := e.cursorY - h
		e.page.DrawImage(im, x, y, w, h, builder.ImageOptions{Key: f.key})
		if tags := e.b.Structure(); tags != nil {
			if id, ok := tags.Lookup(f.key); ok {
				tags.SetBBox(id, coords.Rect{LLX: x, LLY: y, URX: x + w, URY: y + h})
			}
		}
		e.cursorY = y - e.DefaultFontSize*0.5
	}
	return nil
}
