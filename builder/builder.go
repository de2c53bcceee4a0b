// Package builder assembles pages one at a time: it drives a content
// generator, tags what it draws in the structure tree and flushes each page
// to the output as soon as it is finished.
package builder

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfstream/contentstream"
	"github.com/wudi/pdfstream/coords"
	"github.com/wudi/pdfstream/fonts"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/outline"
	"github.com/wudi/pdfstream/structure"
	"github.com/wudi/pdfstream/writer"
)

var (
	ErrPageOpen    = errors.New("previous page not finished")
	ErrNoPage      = errors.New("page already finished")
	ErrUnknownFont = errors.New("font not registered")
)

const (
	defaultBaseFont = "Helvetica"
	defaultFontSize = 12
)

// TextOptions configures text drawing.
type TextOptions struct {
	// Font is a name given to RegisterFont; empty selects the default font.
	Font        string
	FontSize    float64
	Color       *contentstream.Color
	RenderMode  contentstream.TextRenderMode
	CharSpacing float64
	WordSpacing float64
	// Key ties the text to a structure element. Untagged text in a tagged
	// document is drawn as an artifact.
	Key structure.Key
}

// PathOptions configures path drawing.
type PathOptions struct {
	StrokeColor *contentstream.Color
	FillColor   *contentstream.Color
	LineWidth   float64
	LineCap     contentstream.LineCap
	LineJoin    contentstream.LineJoin
	DashPattern []float64
	DashPhase   float64
	Fill        bool
	Stroke      bool
	// Key tags the drawing as figure content; empty makes it an artifact.
	Key structure.Key
}

// RectOptions configures rectangle drawing (defaults to stroke if neither fill nor stroke is set).
type RectOptions = PathOptions

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor *contentstream.Color
	LineWidth   float64
	LineCap     contentstream.LineCap
	DashPattern []float64
	DashPhase   float64
	Key         structure.Key
}

// ImageOptions configures image drawing.
type ImageOptions struct {
	Key structure.Key
}

// Builder writes a document page by page.
type Builder struct {
	doc     *writer.Document
	out     io.Writer
	log     observability.Logger
	tags    *structure.Tree
	outline *outline.Tree

	fonts       map[string]*fonts.Face
	defaultFont string
	page        *Page
	closed      bool
}

// New creates a builder writing doc to out. Tagged documents get a
// structure tree.
func New(doc *writer.Document, out io.Writer) *Builder {
	b := &Builder{
		doc:     doc,
		out:     out,
		log:     doc.Logger(),
		outline: outline.New(doc),
		fonts:   make(map[string]*fonts.Face),
	}
	if doc.Config().Tagged {
		b.tags = structure.New(doc)
	}
	return b
}

func (b *Builder) Document() *writer.Document { return b.doc }

// Structure returns the structure tree, or nil for untagged documents.
func (b *Builder) Structure() *structure.Tree { return b.tags }

func (b *Builder) Outline() *outline.Tree { return b.outline }

// RegisterFont makes face available to DrawText under name. The first
// registered font becomes the default.
func (b *Builder) RegisterFont(name string, face *fonts.Face) {
	b.fonts[name] = face
	if b.defaultFont == "" {
		b.defaultFont = name
	}
}

// Face returns the font registered under name, falling back to the default
// font and registering Helvetica when nothing else exists.
func (b *Builder) Face(name string) (*fonts.Face, error) {
	if name == "" {
		if b.defaultFont == "" {
			face, err := fonts.Standard(b.doc, defaultBaseFont)
			if err != nil {
				return nil, err
			}
			b.RegisterFont(defaultBaseFont, face)
		}
		name = b.defaultFont
	}
	face, ok := b.fonts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFont, name)
	}
	return face, nil
}

// MeasureText returns the width of text in points.
func (b *Builder) MeasureText(text, font string, size float64) float64 {
	face, err := b.Face(font)
	if err != nil {
		return 0
	}
	if size <= 0 {
		size = defaultFontSize
	}
	return face.Width(text, size)
}

// NewPage starts a page of the given size. The previous page must be
// finished first.
func (b *Builder) NewPage(width, height float64) (*Page, error) {
	if b.page != nil {
		return nil, ErrPageOpen
	}
	if b.closed {
		return nil, writer.ErrFinished
	}
	wp, err := b.doc.NewPage(width, height)
	if err != nil {
		return nil, err
	}
	content, err := b.doc.NewContentStream()
	if err != nil {
		return nil, err
	}
	wp.AddContent(content)
	if b.tags != nil {
		if err := b.tags.StartPage(wp); err != nil {
			return nil, err
		}
	}
	p := &Page{b: b, page: wp, content: content, gen: contentstream.NewGenerator()}
	b.page = p
	return p, nil
}

// Current returns the open page, or nil.
func (b *Builder) Current() *Page { return b.page }

// NewTemplate records a reusable form XObject drawn by fn.
func (b *Builder) NewTemplate(bbox writer.Rect, fn func(g *contentstream.Generator)) (*writer.FormXObject, error) {
	form, err := b.doc.NewFormXObject(bbox)
	if err != nil {
		return nil, err
	}
	g := contentstream.NewGenerator()
	fn(g)
	if err := g.Finish(); err != nil {
		return nil, fmt.Errorf("template %s: %w", form.Name, err)
	}
	if err := b.doc.UseColorSpaces(g.ColorSpaces(), "template "+form.Name); err != nil {
		return nil, err
	}
	form.Write(g.Bytes())
	return form, nil
}

// Close finishes the open page and writes the trailer.
func (b *Builder) Close() error {
	if b.closed {
		return writer.ErrFinished
	}
	if b.page != nil {
		if err := b.page.Finish(); err != nil {
			return err
		}
	}
	b.closed = true
	return b.doc.WriteTrailer(b.out)
}

// Page is the page being drawn. Drawing errors stick: the first one stops
// further output and is returned by Finish.
type Page struct {
	b       *Builder
	page    *writer.Page
	content *writer.Stream
	gen     *contentstream.Generator
	err     error
	done    bool
}

func (p *Page) Page() *writer.Page { return p.page }

// Generator exposes the content generator for operators the page has no
// helper for.
func (p *Page) Generator() *contentstream.Generator { return p.gen }

func (p *Page) Err() error {
	if p.err != nil {
		return p.err
	}
	return p.gen.Err()
}

func (p *Page) fail(err error) *Page {
	if p.err == nil {
		p.err = err
	}
	return p
}

func (p *Page) ok() bool { return p.err == nil && p.gen.Err() == nil && !p.done }

func (p *Page) Width() float64  { return p.page.MediaBox.Width() }
func (p *Page) Height() float64 { return p.page.MediaBox.Height() }

// mark opens marked content for key. In untagged documents it does
// nothing and reports false.
func (p *Page) mark(key structure.Key, image bool) bool {
	tags := p.b.tags
	if tags == nil {
		return false
	}
	if key == "" {
		p.gen.BeginArtifact()
		return true
	}
	add := tags.AddTextContent
	if image {
		add = tags.AddImageContent
	}
	m, err := add(key)
	if err != nil {
		p.fail(err)
		return false
	}
	if m.Artifact() {
		p.gen.BeginArtifact()
	} else {
		p.gen.BeginMarkedContent(m.Tag, m.MCID)
	}
	return true
}

func (p *Page) unmark(opened bool) {
	if opened {
		p.gen.EndMarkedContent()
	}
}

// DrawText sets a single line of text with its baseline starting at (x, y).
func (p *Page) DrawText(text string, x, y float64, opts TextOptions) *Page {
	if !p.ok() {
		return p
	}
	face, err := p.b.Face(opts.Font)
	if err != nil {
		return p.fail(err)
	}
	size := opts.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	opened := p.mark(opts.Key, false)
	if opts.Color != nil {
		p.gen.SetFillColor(*opts.Color)
		if isStrokeMode(opts.RenderMode) {
			p.gen.SetStrokeColor(*opts.Color)
		}
	}
	p.gen.BeginText()
	p.gen.SetFont(face.Font.Name, size)
	p.gen.SetCharSpacing(opts.CharSpacing)
	p.gen.SetWordSpacing(opts.WordSpacing)
	p.gen.SetTextRenderMode(opts.RenderMode)
	p.gen.MoveText(x, y)
	p.gen.ShowText(face.Encode(text))
	p.gen.EndText()
	p.unmark(opened)
	p.gen.AddBounds(coords.Rect{
		LLX: x, LLY: y + face.Descent*size/1000,
		URX: x + face.Width(text, size), URY: y + face.Ascent*size/1000,
	})
	return p
}

// DrawPath strokes and/or fills path inside its own graphics state.
func (p *Page) DrawPath(path *contentstream.Path, opts PathOptions) *Page {
	if path == nil || !p.ok() {
		return p
	}
	opened := p.mark(opts.Key, true)
	p.gen.SaveState()
	p.applyPathState(opts)
	p.gen.AppendPath(path)
	p.paint(opts.Fill, opts.Stroke)
	p.gen.RestoreState()
	p.unmark(opened)
	return p
}

// DrawImage paints im scaled to width x height with its lower-left corner at
// (x, y). A zero size uses the image's pixel size.
func (p *Page) DrawImage(im *writer.ImageXObject, x, y, width, height float64, opts ImageOptions) *Page {
	if im == nil || !p.ok() {
		return p
	}
	if width == 0 {
		width = float64(im.Width)
	}
	if height == 0 {
		height = float64(im.Height)
	}
	opened := p.mark(opts.Key, true)
	p.gen.PlaceXObject(im.Name, coords.Matrix{width, 0, 0, height, x, y})
	p.unmark(opened)
	return p
}

// DrawTemplate paints a form XObject under the transform m.
func (p *Page) DrawTemplate(form *writer.FormXObject, m coords.Matrix, opts ImageOptions) *Page {
	if form == nil || !p.ok() {
		return p
	}
	opened := p.mark(opts.Key, true)
	p.gen.PlaceXObject(form.Name, m)
	p.unmark(opened)
	return p
}

func (p *Page) DrawRectangle(x, y, width, height float64, opts RectOptions) *Page {
	if !p.ok() {
		return p
	}
	po := opts
	if !po.Stroke && !po.Fill {
		po.Stroke = true
	}
	opened := p.mark(opts.Key, true)
	p.gen.SaveState()
	p.applyPathState(po)
	p.gen.Rect(x, y, width, height)
	p.paint(po.Fill, po.Stroke)
	p.gen.RestoreState()
	p.unmark(opened)
	return p
}

func (p *Page) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) *Page {
	if !p.ok() {
		return p
	}
	po := PathOptions{
		StrokeColor: opts.StrokeColor,
		LineWidth:   opts.LineWidth,
		LineCap:     opts.LineCap,
		DashPattern: opts.DashPattern,
		DashPhase:   opts.DashPhase,
		Stroke:      true,
	}
	opened := p.mark(opts.Key, true)
	p.gen.SaveState()
	p.applyPathState(po)
	p.gen.MoveTo(x1, y1)
	p.gen.LineTo(x2, y2)
	p.gen.Stroke()
	p.gen.RestoreState()
	p.unmark(opened)
	return p
}

// FillShading fills the rectangle with a shading pattern, optionally through
// a graphics state such as a constant alpha.
func (p *Page) FillShading(pat *writer.Pattern, gs *writer.ExtGState, x, y, width, height float64) *Page {
	if pat == nil {
		return p.fail(writer.ErrMissingShading)
	}
	if !p.ok() {
		return p
	}
	opened := p.mark("", true)
	p.gen.SaveState()
	if gs != nil {
		p.gen.SetExtGState(gs.Name)
	}
	p.gen.SetFillPattern(pat.Name)
	p.gen.Rect(x, y, width, height)
	p.gen.Fill()
	p.gen.RestoreState()
	p.unmark(opened)
	return p
}

// AddLink places a link annotation. A key ties the annotation to a Link
// element; in a tagged document a link without one is an accessibility
// error under PDF/UA.
func (p *Page) AddLink(rect writer.Rect, action *writer.Action, key structure.Key, contents string) *Page {
	if !p.ok() {
		return p
	}
	annot, err := p.b.doc.NewLink(p.page, rect, action, contents)
	if err != nil {
		return p.fail(err)
	}
	if p.b.tags != nil {
		if err := p.b.tags.AddLinkContent(key, annot); err != nil {
			return p.fail(err)
		}
	}
	return p
}

// AddNote places a text annotation.
func (p *Page) AddNote(rect writer.Rect, contents string) *Page {
	if !p.ok() {
		return p
	}
	if _, err := p.b.doc.NewTextAnnotation(p.page, rect, contents); err != nil {
		return p.fail(err)
	}
	return p
}

// Anchor resolves the named destination id to (x, y) on this page.
func (p *Page) Anchor(id string, x, y float64) *Page {
	if !p.ok() {
		return p
	}
	if err := p.b.doc.ResolveTarget(id, p.page, x, y); err != nil {
		return p.fail(err)
	}
	return p
}

// Bookmark adds an outline entry under parent pointing at (x, y).
func (p *Page) Bookmark(parent outline.NodeID, title string, x, y float64) (outline.NodeID, error) {
	if err := p.Err(); err != nil {
		return outline.Root, err
	}
	id, err := p.b.outline.Add(parent, title)
	if err != nil {
		return id, err
	}
	return id, p.b.outline.SetDest(id, p.page, x, y)
}

// Finish closes the content stream, ends the page in the structure tree and
// flushes every pending object to the output.
func (p *Page) Finish() error {
	if p.done {
		return ErrNoPage
	}
	p.done = true
	p.b.page = nil
	if p.err != nil {
		return p.b.doc.Fail(p.err)
	}
	if err := p.gen.Finish(); err != nil {
		return p.b.doc.Fail(fmt.Errorf("page %d: %w", p.page.Index()+1, err))
	}
	if p.b.tags != nil {
		if err := p.b.tags.EndPage(); err != nil {
			return p.b.doc.Fail(err)
		}
	}
	loc := fmt.Sprintf("page %d", p.page.Index()+1)
	if err := p.b.doc.UseColorSpaces(p.gen.ColorSpaces(), loc); err != nil {
		return err
	}
	p.content.Write(p.gen.Bytes())
	if err := p.b.doc.Flush(p.b.out); err != nil {
		return err
	}
	p.b.log.Debug("page finished", observability.Int("page", p.page.Index()+1), observability.Int("content", p.gen.Len()))
	return nil
}

func (p *Page) applyPathState(opts PathOptions) {
	if opts.Fill && opts.FillColor != nil {
		p.gen.SetFillColor(*opts.FillColor)
	}
	if !opts.Stroke {
		return
	}
	if opts.StrokeColor != nil {
		p.gen.SetStrokeColor(*opts.StrokeColor)
	}
	if opts.LineWidth > 0 {
		p.gen.SetLineWidth(opts.LineWidth)
	}
	p.gen.SetLineCap(opts.LineCap)
	p.gen.SetLineJoin(opts.LineJoin)
	if len(opts.DashPattern) > 0 {
		p.gen.SetDash(opts.DashPattern, opts.DashPhase)
	}
}

func (p *Page) paint(fill, stroke bool) {
	switch {
	case fill && stroke:
		p.gen.FillStroke()
	case fill:
		p.gen.Fill()
	default:
		p.gen.Stroke()
	}
}

func isStrokeMode(mode contentstream.TextRenderMode) bool {
	return mode == contentstream.TextStroke ||
		mode == contentstream.TextFillStroke ||
		mode == contentstream.TextStrokeClip ||
		mode == contentstream.TextFillStrokeClip
}
