package writer

import (
	"fmt"
	"io"

	"github.com/wudi/pdfstream/ir/raw"
)

// ShadingType selects axial (2) or radial (3) shading.
type ShadingType int

const (
	Axial  ShadingType = 2
	Radial ShadingType = 3
)

// Shading blends C0 into C1 with an exponential interpolation function.
type Shading struct {
	objectBase
	Name       string
	Type       ShadingType
	ColorSpace string
	Coords     []float64
	C0, C1     []float64
	Exponent   float64
	Extend     [2]bool
}

// NewShading validates and registers a shading resource.
func (d *Document) NewShading(sh Shading) (*Shading, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	n := components(sh.ColorSpace)
	if n == 0 {
		return nil, fmt.Errorf("shading colour space %q", sh.ColorSpace)
	}
	switch {
	case sh.Type == Axial && len(sh.Coords) == 4:
	case sh.Type == Radial && len(sh.Coords) == 6:
	default:
		return nil, fmt.Errorf("shading type %d with %d coordinates", sh.Type, len(sh.Coords))
	}
	if len(sh.C0) != n || len(sh.C1) != n {
		return nil, fmt.Errorf("shading colours need %d components", n)
	}
	if sh.Exponent == 0 {
		sh.Exponent = 1
	}
	if err := d.UseColorSpaces([]string{sh.ColorSpace}, "shading"); err != nil {
		return nil, err
	}
	s := &sh
	s.ref = raw.ObjectRef{}
	d.AddDocumentOrderObject(s)
	s.Name = d.resourceName("Sh")
	d.resources.Add("Shading", s.Name, s.ref)
	return s, nil
}

func (s *Shading) dict() *raw.DictObj {
	fn := raw.Dict()
	fn.Set("FunctionType", raw.Int(2))
	fn.Set("Domain", raw.Numbers(0, 1))
	fn.Set("C0", raw.Numbers(s.C0...))
	fn.Set("C1", raw.Numbers(s.C1...))
	fn.Set("N", raw.NumberFloat(s.Exponent))

	d := raw.Dict()
	d.Set("ShadingType", raw.Int(int(s.Type)))
	d.Set("ColorSpace", raw.NameLiteral(s.ColorSpace))
	d.Set("Coords", raw.Numbers(s.Coords...))
	d.Set("Function", fn)
	if s.Extend[0] || s.Extend[1] {
		d.Set("Extend", raw.NewArray(raw.Bool(s.Extend[0]), raw.Bool(s.Extend[1])))
	}
	return d
}

func (s *Shading) WriteTo(w io.Writer) (int64, error) { return writeValue(w, s.ref, s.dict()) }

// Pattern is a shading pattern used as a fill colour.
type Pattern struct {
	objectBase
	Name    string
	Shading *Shading
	Matrix  Matrix
}

// NewShadingPattern wraps sh in a pattern. A nil shading is an error.
func (d *Document) NewShadingPattern(sh *Shading, m Matrix) (*Pattern, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, ErrMissingShading
	}
	p := &Pattern{Shading: sh, Matrix: m}
	d.AddDocumentOrderObject(p)
	p.Name = d.resourceName("Pa")
	d.resources.Add("Pattern", p.Name, p.ref)
	return p, nil
}

func (p *Pattern) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Pattern"))
	d.Set("PatternType", raw.Int(2))
	d.Set("Shading", raw.RefTo(p.Shading.Ref()))
	if p.Matrix != (Matrix{}) && p.Matrix != Identity {
		d.Set("Matrix", p.Matrix.Array())
	}
	return writeValue(w, p.ref, d)
}

// ExtGState holds graphics state parameters set with gs.
type ExtGState struct {
	objectBase
	Name        string
	FillAlpha   *float64
	StrokeAlpha *float64
	BlendMode   string
	LineWidth   *float64
}

func (g *ExtGState) transparent() bool {
	if g.FillAlpha != nil && *g.FillAlpha < 1 {
		return true
	}
	if g.StrokeAlpha != nil && *g.StrokeAlpha < 1 {
		return true
	}
	return g.BlendMode != "" && g.BlendMode != "Normal" && g.BlendMode != "Compatible"
}

// NewExtGState registers a graphics state dictionary.
func (d *Document) NewExtGState(gs ExtGState) (*ExtGState, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	for _, a := range []*float64{gs.FillAlpha, gs.StrokeAlpha} {
		if a != nil && (*a < 0 || *a > 1) {
			return nil, fmt.Errorf("alpha %g outside [0, 1]", *a)
		}
	}
	if gs.transparent() {
		if err := d.checker.Transparency("graphics state alpha or blend mode", "ExtGState"); err != nil {
			return nil, d.setErr(err)
		}
	}
	g := &gs
	g.ref = raw.ObjectRef{}
	d.AddDocumentOrderObject(g)
	g.Name = d.resourceName("GS")
	d.resources.Add("ExtGState", g.Name, g.ref)
	return g, nil
}

func (g *ExtGState) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("ExtGState"))
	if g.FillAlpha != nil {
		d.Set("ca", raw.NumberFloat(*g.FillAlpha))
	}
	if g.StrokeAlpha != nil {
		d.Set("CA", raw.NumberFloat(*g.StrokeAlpha))
	}
	if g.BlendMode != "" {
		d.Set("BM", raw.NameLiteral(g.BlendMode))
	}
	if g.LineWidth != nil {
		d.Set("LW", raw.NumberFloat(*g.LineWidth))
	}
	return writeValue(w, g.ref, d)
}
