// Package contentstream generates page content streams. A Generator emits
// operators while tracking the graphics state so that redundant updates are
// dropped and text objects, marked content and save/restore stay balanced.
package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/wudi/pdfstream/coords"
	"github.com/wudi/pdfstream/ir/raw"
)

var (
	// ErrTextState reports an operator used on the wrong side of BT/ET.
	ErrTextState = errors.New("operator not allowed in current text state")
	// ErrUnbalanced reports a restore without save, or an EMC without an
	// open marked-content sequence at the same nesting level.
	ErrUnbalanced = errors.New("unbalanced graphics state or marked content")
)

// GraphicsState is the part of the PDF graphics state the generator tracks.
type GraphicsState struct {
	CTM       coords.Matrix
	LineWidth float64
	LineCap   LineCap
	LineJoin  LineJoin
	Dash      []float64
	DashPhase float64
	Fill      Color
	Stroke    Color
	// FillPattern is the pattern resource name when filling with a pattern.
	FillPattern string
	ExtGState   string
}

// TextState holds the text parameters, which persist across text objects.
type TextState struct {
	Font        string
	FontSize    float64
	CharSpacing float64
	WordSpacing float64
	RenderMode  TextRenderMode
}

func defaultState() GraphicsState {
	return GraphicsState{
		CTM:       coords.Identity(),
		LineWidth: 1,
		Fill:      Gray(0),
		Stroke:    Gray(0),
	}
}

type frame struct {
	gs     GraphicsState
	ts     TextState
	marked int
}

type mark struct {
	depth  int
	inText bool
}

// Generator builds one content stream. The first error is sticky: later
// calls do nothing and Err reports it.
type Generator struct {
	buf    bytes.Buffer
	gs     GraphicsState
	ts     TextState
	stack  []frame
	marks  []mark
	inText bool
	spaces map[ColorSpace]bool
	bounds coords.Rect
	path   []coords.Point
	err    error
}

func NewGenerator() *Generator {
	return &Generator{gs: defaultState(), spaces: make(map[ColorSpace]bool)}
}

func (g *Generator) Err() error { return g.err }

func (g *Generator) Bytes() []byte { return g.buf.Bytes() }

func (g *Generator) Len() int { return g.buf.Len() }

// State returns a copy of the current graphics state.
func (g *Generator) State() GraphicsState {
	s := g.gs
	s.Dash = slices.Clone(g.gs.Dash)
	return s
}

func (g *Generator) Text() TextState { return g.ts }

func (g *Generator) InText() bool { return g.inText }

// Depth is the number of unmatched saves.
func (g *Generator) Depth() int { return len(g.stack) }

// MarkedDepth is the number of open marked-content sequences.
func (g *Generator) MarkedDepth() int { return len(g.marks) }

// ColorSpaces lists the device colour spaces set so far, sorted.
func (g *Generator) ColorSpaces() []string {
	out := make([]string, 0, len(g.spaces))
	for cs := range g.spaces {
		out = append(out, string(cs))
	}
	sort.Strings(out)
	return out
}

// Bounds returns the area painted by paths, shadings and XObjects since the
// last ResetBounds, in default user space.
func (g *Generator) Bounds() coords.Rect { return g.bounds }

// ResetBounds clears the painted area and returns its previous value.
func (g *Generator) ResetBounds() coords.Rect {
	r := g.bounds
	g.bounds = coords.Rect{}
	return r
}

// AddBounds extends the painted area by r given in user space, for content
// whose extent only the caller knows, such as a run of text.
func (g *Generator) AddBounds(r coords.Rect) {
	g.bounds = g.bounds.Union(g.gs.CTM.TransformRect(r))
}

// Finish closes an open text object and checks that every save and marked
// content sequence was closed.
func (g *Generator) Finish() error {
	if g.err != nil {
		return g.err
	}
	if g.inText {
		g.EndText()
	}
	if len(g.stack) > 0 || len(g.marks) > 0 {
		return g.fail(fmt.Errorf("%w: %d saves and %d marked sequences open", ErrUnbalanced, len(g.stack), len(g.marks)))
	}
	return g.err
}

func (g *Generator) fail(err error) error {
	if g.err == nil {
		g.err = err
	}
	return g.err
}

func (g *Generator) ok() bool { return g.err == nil }

func (g *Generator) needText(op string, inside bool) bool {
	if !g.ok() {
		return false
	}
	if g.inText != inside {
		where := "outside"
		if g.inText {
			where = "inside"
		}
		g.fail(fmt.Errorf("%w: %s %s text object", ErrTextState, op, where))
		return false
	}
	return true
}

func (g *Generator) op(operator string, args ...float64) {
	for _, a := range args {
		g.buf.WriteString(raw.FormatReal(a))
		g.buf.WriteByte(' ')
	}
	g.buf.WriteString(operator)
	g.buf.WriteByte('\n')
}

// SaveState pushes the graphics state (q). An open text object is closed
// first since q is not allowed inside one.
func (g *Generator) SaveState() {
	if !g.ok() {
		return
	}
	if g.inText {
		g.EndText()
	}
	g.stack = append(g.stack, frame{gs: g.State(), ts: g.ts, marked: len(g.marks)})
	g.op("q")
}

// RestoreState pops the graphics state (Q), closing first an open text
// object and any marked content begun since the matching save.
func (g *Generator) RestoreState() {
	if !g.ok() {
		return
	}
	n := len(g.stack)
	if n == 0 {
		g.fail(fmt.Errorf("%w: restore without save", ErrUnbalanced))
		return
	}
	if g.inText {
		g.EndText()
	}
	top := g.stack[n-1]
	for len(g.marks) > top.marked {
		g.marks = g.marks[:len(g.marks)-1]
		g.op("EMC")
	}
	g.stack = g.stack[:n-1]
	g.gs, g.ts = top.gs, top.ts
	g.op("Q")
}

func (g *Generator) BeginText() {
	if !g.needText("BT", false) {
		return
	}
	g.inText = true
	g.op("BT")
}

// EndText closes the text object, ending marked content begun inside it.
func (g *Generator) EndText() {
	if !g.needText("ET", true) {
		return
	}
	for n := len(g.marks); n > 0 && g.marks[n-1].inText && g.marks[n-1].depth == len(g.stack); n-- {
		g.marks = g.marks[:n-1]
		g.op("EMC")
	}
	g.inText = false
	g.op("ET")
}

// SetFont selects a font resource and size (Tf).
func (g *Generator) SetFont(name string, size float64) {
	if !g.needText("Tf", true) {
		return
	}
	if g.ts.Font == name && g.ts.FontSize == size {
		return
	}
	g.ts.Font, g.ts.FontSize = name, size
	g.buf.WriteString("/" + raw.EscapeName(name) + " ")
	g.op("Tf", size)
}

func (g *Generator) SetCharSpacing(v float64) {
	if !g.needText("Tc", true) || g.ts.CharSpacing == v {
		return
	}
	g.ts.CharSpacing = v
	g.op("Tc", v)
}

func (g *Generator) SetWordSpacing(v float64) {
	if !g.needText("Tw", true) || g.ts.WordSpacing == v {
		return
	}
	g.ts.WordSpacing = v
	g.op("Tw", v)
}

func (g *Generator) SetTextRenderMode(m TextRenderMode) {
	if !g.needText("Tr", true) || g.ts.RenderMode == m {
		return
	}
	g.ts.RenderMode = m
	g.op("Tr", float64(m))
}

func (g *Generator) SetTextMatrix(m coords.Matrix) {
	if !g.needText("Tm", true) {
		return
	}
	g.op("Tm", m[:]...)
}

// MoveText starts a new line offset from the start of the current one (Td).
func (g *Generator) MoveText(tx, ty float64) {
	if !g.needText("Td", true) {
		return
	}
	g.op("Td", tx, ty)
}

// ShowText shows encoded glyph codes as a literal string (Tj).
func (g *Generator) ShowText(codes []byte) {
	if !g.needText("Tj", true) {
		return
	}
	if g.ts.Font == "" {
		g.fail(fmt.Errorf("%w: Tj before Tf", ErrTextState))
		return
	}
	g.buf.Write(raw.Serialize(raw.Str(codes)))
	g.buf.WriteString(" Tj\n")
}

// BeginMarkedContent opens a tagged sequence carrying mcid (BDC).
func (g *Generator) BeginMarkedContent(tag string, mcid int) {
	if !g.ok() {
		return
	}
	props := raw.Dict()
	props.Set("MCID", raw.Int(mcid))
	g.buf.WriteString("/" + raw.EscapeName(tag) + " ")
	g.buf.Write(raw.Serialize(props))
	g.buf.WriteString(" BDC\n")
	g.marks = append(g.marks, mark{depth: len(g.stack), inText: g.inText})
}

// BeginArtifact opens an untagged sequence for decorative content (BMC).
func (g *Generator) BeginArtifact() {
	if !g.ok() {
		return
	}
	g.buf.WriteString("/Artifact BMC\n")
	g.marks = append(g.marks, mark{depth: len(g.stack), inText: g.inText})
}

// BeginPagination opens an artifact sequence for running headers, footers
// and page numbers.
func (g *Generator) BeginPagination(subtype string) {
	if !g.ok() {
		return
	}
	props := raw.Dict()
	props.Set("Type", raw.NameLiteral("Pagination"))
	if subtype != "" {
		props.Set("Subtype", raw.NameLiteral(subtype))
	}
	g.buf.WriteString("/Artifact ")
	g.buf.Write(raw.Serialize(props))
	g.buf.WriteString(" BDC\n")
	g.marks = append(g.marks, mark{depth: len(g.stack), inText: g.inText})
}

func (g *Generator) EndMarkedContent() {
	if !g.ok() {
		return
	}
	n := len(g.marks)
	if n == 0 || g.marks[n-1].depth != len(g.stack) || g.marks[n-1].inText != g.inText {
		g.fail(fmt.Errorf("%w: EMC does not match an open sequence", ErrUnbalanced))
		return
	}
	g.marks = g.marks[:n-1]
	g.op("EMC")
}

func (g *Generator) setColor(c Color, stroke bool) {
	if !g.ok() {
		return
	}
	if stroke {
		if g.gs.Stroke == c {
			return
		}
		g.gs.Stroke = c
	} else {
		if g.gs.Fill == c && g.gs.FillPattern == "" {
			return
		}
		g.gs.Fill = c
		g.gs.FillPattern = ""
	}
	g.spaces[c.Space] = true
	g.op(c.operator(stroke), c.Components()...)
}

func (g *Generator) SetFillColor(c Color)   { g.setColor(c, false) }
func (g *Generator) SetStrokeColor(c Color) { g.setColor(c, true) }

// SetFillPattern fills with a pattern resource (/Pattern cs /name scn).
func (g *Generator) SetFillPattern(name string) {
	if !g.ok() || g.gs.FillPattern == name {
		return
	}
	g.gs.FillPattern = name
	g.buf.WriteString("/Pattern cs /" + raw.EscapeName(name) + " scn\n")
}

func (g *Generator) SetLineWidth(w float64) {
	if !g.ok() || g.gs.LineWidth == w {
		return
	}
	if w < 0 {
		g.fail(fmt.Errorf("negative line width %g", w))
		return
	}
	g.gs.LineWidth = w
	g.op("w", w)
}

func (g *Generator) SetLineCap(c LineCap) {
	if !g.ok() || g.gs.LineCap == c {
		return
	}
	g.gs.LineCap = c
	g.op("J", float64(c))
}

func (g *Generator) SetLineJoin(j LineJoin) {
	if !g.ok() || g.gs.LineJoin == j {
		return
	}
	g.gs.LineJoin = j
	g.op("j", float64(j))
}

// SetDash sets the dash pattern; an empty array draws solid lines.
func (g *Generator) SetDash(dash []float64, phase float64) {
	if !g.ok() || (slices.Equal(g.gs.Dash, dash) && g.gs.DashPhase == phase) {
		return
	}
	g.gs.Dash, g.gs.DashPhase = slices.Clone(dash), phase
	g.buf.Write(raw.Serialize(raw.Numbers(dash...)))
	g.buf.WriteByte(' ')
	g.op("d", phase)
}

// SetExtGState applies a graphics state parameter dictionary (gs).
func (g *Generator) SetExtGState(name string) {
	if !g.ok() || g.gs.ExtGState == name {
		return
	}
	g.gs.ExtGState = name
	g.buf.WriteString("/" + raw.EscapeName(name) + " gs\n")
}

// Concat modifies the transformation matrix (cm). Identity is a no-op.
func (g *Generator) Concat(m coords.Matrix) {
	if !g.needText("cm", false) || m.IsIdentity() {
		return
	}
	g.gs.CTM = m.Multiply(g.gs.CTM)
	g.op("cm", m[:]...)
}

func (g *Generator) pathPoint(x, y float64) {
	g.path = append(g.path, g.gs.CTM.Transform(coords.Point{X: x, Y: y}))
}

func (g *Generator) MoveTo(x, y float64) {
	if !g.needText("m", false) {
		return
	}
	g.pathPoint(x, y)
	g.op("m", x, y)
}

func (g *Generator) LineTo(x, y float64) {
	if !g.needText("l", false) {
		return
	}
	g.pathPoint(x, y)
	g.op("l", x, y)
}

func (g *Generator) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	if !g.needText("c", false) {
		return
	}
	g.pathPoint(x1, y1)
	g.pathPoint(x2, y2)
	g.pathPoint(x3, y3)
	g.op("c", x1, y1, x2, y2, x3, y3)
}

func (g *Generator) Rect(x, y, w, h float64) {
	if !g.needText("re", false) {
		return
	}
	g.pathPoint(x, y)
	g.pathPoint(x+w, y+h)
	g.pathPoint(x, y+h)
	g.pathPoint(x+w, y)
	g.op("re", x, y, w, h)
}

func (g *Generator) ClosePath() {
	if !g.needText("h", false) {
		return
	}
	g.op("h")
}

// AppendPath adds every subpath of p to the current path.
func (g *Generator) AppendPath(p *Path) {
	if p == nil {
		return
	}
	for _, sp := range p.Subpaths {
		for _, pt := range sp.Points {
			switch pt.Type {
			case PathMoveTo:
				g.MoveTo(pt.X, pt.Y)
			case PathLineTo:
				g.LineTo(pt.X, pt.Y)
			case PathCurveTo:
				g.CurveTo(pt.Control1X, pt.Control1Y, pt.Control2X, pt.Control2Y, pt.X, pt.Y)
			case PathClose:
				g.ClosePath()
			}
		}
		if sp.Closed {
			g.ClosePath()
		}
	}
}

func (g *Generator) paint(op string) {
	if !g.needText(op, false) {
		return
	}
	if op != "n" {
		g.bounds = g.bounds.Union(coords.Bounds(g.path...))
	}
	g.path = g.path[:0]
	g.op(op)
}

func (g *Generator) Stroke()     { g.paint("S") }
func (g *Generator) Fill()       { g.paint("f") }
func (g *Generator) FillStroke() { g.paint("B") }
func (g *Generator) EndPath()    { g.paint("n") }

// ClipRect intersects the clipping path with a rectangle.
func (g *Generator) ClipRect(x, y, w, h float64) {
	if !g.needText("W", false) {
		return
	}
	g.op("re", x, y, w, h)
	g.op("W")
	g.op("n")
}

// PaintShading fills the clipping region with a shading resource (sh).
func (g *Generator) PaintShading(name string) {
	if !g.needText("sh", false) {
		return
	}
	g.buf.WriteString("/" + raw.EscapeName(name) + " sh\n")
}

// PlaceXObject draws an XObject under m inside its own save/restore pair
// so m never leaks into the caller's state. For images m maps the unit
// square onto the page. Do is not allowed inside a text object.
func (g *Generator) PlaceXObject(name string, m coords.Matrix) {
	if !g.needText("Do", false) {
		return
	}
	g.SaveState()
	g.Concat(m)
	if g.ok() {
		g.bounds = g.bounds.Union(g.gs.CTM.TransformRect(coords.Rect{URX: 1, URY: 1}))
		g.buf.WriteString("/" + raw.EscapeName(name) + " Do\n")
	}
	g.RestoreState()
}
