// Package layout flows a logical source document onto pages through the
// builder, tagging every piece of text with the structure element it
// belongs to.
package layout

import (
	"errors"
	"strings"

	"github.com/go-text/typesetting/segmenter"

	"github.com/wudi/pdfstream/builder"
	"github.com/wudi/pdfstream/contentstream"
	"github.com/wudi/pdfstream/fonts"
	"github.com/wudi/pdfstream/images"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/outline"
	"github.com/wudi/pdfstream/structure"
	"github.com/wudi/pdfstream/writer"
)

// Engine handles the layout and rendering of structured content into PDF pages.
type Engine struct {
	b   *builder.Builder
	doc *writer.Document
	log observability.Logger

	// Configuration
	DefaultFont     string
	BoldFont        string
	ItalicFont      string
	MonoFont        string
	DefaultFontSize float64
	LineHeight      float64 // Multiplier, e.g., 1.2
	Margins         Margins

	// BaseDir resolves relative image paths.
	BaseDir string

	// State
	page       *builder.Page
	cursorY    float64
	pageWidth  float64
	pageHeight float64
	sources    int
	headings   []heading
	images     *images.Cache
}

type heading struct {
	level int
	node  outline.NodeID
}

// Margins defines page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithDefaultFont sets the default font.
func WithDefaultFont(font string) Option {
	return func(e *Engine) {
		e.DefaultFont = font
	}
}

// WithFonts sets the fonts used for regular, strong, emphasised and code text.
func WithFonts(regular, bold, italic, mono string) Option {
	return func(e *Engine) {
		e.DefaultFont, e.BoldFont, e.ItalicFont, e.MonoFont = regular, bold, italic, mono
	}
}

// WithDefaultFontSize sets the default font size.
func WithDefaultFontSize(size float64) Option {
	return func(e *Engine) {
		e.DefaultFontSize = size
	}
}

// WithLineHeight sets the line height multiplier.
func WithLineHeight(height float64) Option {
	return func(e *Engine) {
		e.LineHeight = height
	}
}

// WithMargins sets the page margins.
func WithMargins(margins Margins) Option {
	return func(e *Engine) {
		e.Margins = margins
	}
}

// WithPageSize sets the page dimensions.
func WithPageSize(width, height float64) Option {
	return func(e *Engine) {
		e.pageWidth = width
		e.pageHeight = height
	}
}

// WithPaperSize sets the page dimensions using a standard paper size.
func WithPaperSize(size builder.PaperSize) Option {
	return func(e *Engine) {
		e.pageWidth = size.Width
		e.pageHeight = size.Height
	}
}

func WithBaseDir(dir string) Option {
	return func(e *Engine) {
		e.BaseDir = dir
	}
}

// NewEngine creates a new layout engine with optional configuration.
func NewEngine(b *builder.Builder, opts ...Option) *Engine {
	e := &Engine{
		b:               b,
		doc:             b.Document(),
		log:             b.Document().Logger(),
		DefaultFont:     "Helvetica",
		BoldFont:        "Helvetica-Bold",
		ItalicFont:      "Helvetica-Oblique",
		MonoFont:        "Courier",
		DefaultFontSize: 12,
		LineHeight:      1.2,
		Margins: Margins{
			Top:    50,
			Bottom: 50,
			Left:   50,
			Right:  50,
		},
		pageWidth:  builder.A4.Width,
		pageHeight: builder.A4.Height,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.images = images.NewCache(e.doc, images.Options{MaxSize: 2048})
	return e
}

// PageSize reports the dimensions used for new pages.
func (e *Engine) PageSize() (float64, float64) { return e.pageWidth, e.pageHeight }

// useFont makes sure name is registered with the builder, registering a
// standard font of that name when it is not.
func (e *Engine) useFont(name string) error {
	_, err := e.b.Face(name)
	if err == nil || !errors.Is(err, builder.ErrUnknownFont) {
		return err
	}
	face, err := fonts.Standard(e.doc, name)
	if err != nil {
		return err
	}
	e.b.RegisterFont(name, face)
	return nil
}

func (e *Engine) prepareFonts() error {
	for _, name := range []string{e.DefaultFont, e.BoldFont, e.ItalicFont, e.MonoFont} {
		if err := e.useFont(name); err != nil {
			return err
		}
	}
	return nil
}

// newPage finishes the current page and starts another.
func (e *Engine) newPage() error {
	if e.page != nil {
		if err := e.page.Finish(); err != nil {
			return err
		}
		e.page = nil
	}
	p, err := e.b.NewPage(e.pageWidth, e.pageHeight)
	if err != nil {
		return err
	}
	e.page = p
	e.cursorY = e.pageHeight - e.Margins.Top
	return nil
}

// ensureSpace breaks the page unless height fits above the bottom margin.
func (e *Engine) ensureSpace(height float64) error {
	if e.page == nil {
		return e.newPage()
	}
	if e.cursorY-height < e.Margins.Bottom && e.cursorY < e.pageHeight-e.Margins.Top {
		return e.newPage()
	}
	return nil
}

// Finish completes the last page. The builder still has to be closed.
func (e *Engine) Finish() error {
	if e.page == nil {
		return nil
	}
	err := e.page.Finish()
	e.page = nil
	return err
}

// TextSpan represents a segment of text with specific styling.
type TextSpan struct {
	Text          string
	Font          string
	FontSize      float64
	Color         *contentstream.Color
	Strikethrough bool
	// Key is the structure element the text belongs to.
	Key structure.Key
	// Link makes the span clickable; the annotation is tagged with Key.
	Link *writer.Action
}

type piece struct {
	span  *TextSpan
	text  string
	width float64
}

func (e *Engine) measure(text string, s *TextSpan) float64 {
	return e.b.MeasureText(text, s.Font, s.FontSize)
}

// splitWord cuts runes[start:end] at span boundaries.
func (e *Engine) splitWord(runes []rune, owner []int, spans []TextSpan, start, end int) []piece {
	var out []piece
	for i := start; i < end; {
		j := i
		for j < end && owner[j] == owner[i] {
			j++
		}
		s := &spans[owner[i]]
		text := string(runes[i:j])
		out = append(out, piece{span: s, text: text, width: e.measure(text, s)})
		i = j
	}
	return out
}

func trimmedWidth(word []piece) float64 {
	w := 0.0
	for i, p := range word {
		if i == len(word)-1 {
			t := strings.TrimRight(p.text, " \t\n")
			w += p.width * float64(len([]rune(t))) / float64(max(len([]rune(p.text)), 1))
			continue
		}
		w += p.width
	}
	return w
}

// renderSpans breaks spans into lines at the Unicode line break
// opportunities and draws them starting at x.
func (e *Engine) renderSpans(spans []TextSpan, x float64) error {
	var runes []rune
	var owner []int
	lineSize := 0.0
	for i := range spans {
		s := &spans[i]
		if s.Font == "" {
			s.Font = e.DefaultFont
		}
		if s.FontSize == 0 {
			s.FontSize = e.DefaultFontSize
		}
		lineSize = max(lineSize, s.FontSize)
		for _, r := range s.Text {
			runes = append(runes, r)
			owner = append(owner, i)
		}
	}
	if len(runes) == 0 {
		return nil
	}
	lineHeight := lineSize * e.LineHeight
	maxWidth := e.pageWidth - e.Margins.Right - x

	var line []piece
	width := 0.0
	flush := func() error {
		if len(line) == 0 {
			return nil
		}
		if err := e.ensureSpace(lineHeight); err != nil {
			return err
		}
		e.drawLine(line, x, e.cursorY-lineSize)
		e.cursorY -= lineHeight
		line, width = nil, 0
		return e.page.Err()
	}

	var seg segmenter.Segmenter
	seg.Init(runes)
	iter := seg.LineIterator()
	for iter.Next() {
		l := iter.Line()
		word := e.splitWord(runes, owner, spans, l.Offset, l.Offset+len(l.Text))
		fit := trimmedWidth(word)
		if width+fit > maxWidth && len(line) > 0 {
			if err := flush(); err != nil {
				return err
			}
		}
		if fit > maxWidth {
			// A single word wider than the line is cut between characters.
			for _, p := range word {
				for _, r := range p.text {
					rw := e.measure(string(r), p.span)
					if width+rw > maxWidth && len(line) > 0 {
						if err := flush(); err != nil {
							return err
						}
					}
					line = append(line, piece{span: p.span, text: string(r), width: rw})
					width += rw
				}
			}
		} else {
			for _, p := range word {
				line = append(line, p)
				width += p.width
			}
		}
		if l.IsMandatoryBreak {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// drawLine draws consecutive pieces of the same span as one run.
func (e *Engine) drawLine(line []piece, x, baseline float64) {
	for i := 0; i < len(line); {
		s := line[i].span
		var sb strings.Builder
		w := 0.0
		j := i
		for j < len(line) && line[j].span == s {
			sb.WriteString(line[j].text)
			w += line[j].width
			j++
		}
		text := strings.TrimRight(sb.String(), "\n")
		if text == "" {
			x += w
			i = j
			continue
		}
		e.page.DrawText(text, x, baseline, builder.TextOptions{
			Font:     s.Font,
			FontSize: s.FontSize,
			Color:    s.Color,
			Key:      s.Key,
		})
		visible := e.b.MeasureText(strings.TrimRight(text, " \t"), s.Font, s.FontSize)
		if s.Strikethrough {
			mid := baseline + s.FontSize*0.3
			e.page.DrawLine(x, mid, x+visible, mid, builder.LineOptions{StrokeColor: s.Color, LineWidth: s.FontSize / 16})
		}
		if s.Link != nil && visible > 0 {
			rect := writer.Rect{LLX: x, LLY: baseline - s.FontSize*0.2, URX: x + visible, URY: baseline + s.FontSize*0.8}
			e.page.AddLink(rect, s.Link, s.Key, strings.TrimSpace(text))
		}
		x += w
		i = j
	}
}

// bookmark adds an outline entry for a heading, nested under the closest
// preceding heading of a lower level.
func (e *Engine) bookmark(level int, title string, y float64) error {
	for len(e.headings) > 0 && e.headings[len(e.headings)-1].level >= level {
		e.headings = e.headings[:len(e.headings)-1]
	}
	parent := outline.Root
	if n := len(e.headings); n > 0 {
		parent = e.headings[n-1].node
	}
	id, err := e.page.Bookmark(parent, title, e.Margins.Left, y)
	if err != nil {
		return err
	}
	e.headings = append(e.headings, heading{level: level, node: id})
	return nil
}
