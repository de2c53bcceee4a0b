// Package fonts measures and registers simple fonts: the standard Type1
// faces and embedded TrueType programs, both addressed through WinAnsi
// single-byte codes.
package fonts

import (
	"fmt"
	"math"
	"strings"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/pdfstream/writer"
)

var winAnsi = charmap.Windows1252

// Face pairs a registered font resource with the metrics needed to lay
// text out in it. Widths and vertical metrics are in 1/1000 em.
type Face struct {
	Font    *writer.Font
	widths  [256]float64
	Ascent  float64
	Descent float64
}

// Encode maps text to WinAnsi codes. Characters outside the code page
// become '?'.
func (f *Face) Encode(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := winAnsi.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// Width returns the advance of text set at size points.
func (f *Face) Width(text string, size float64) float64 {
	var sum float64
	for _, c := range f.Encode(text) {
		sum += f.widths[c]
	}
	return sum * size / 1000
}

// LineHeight is the distance between baselines at size points.
func (f *Face) LineHeight(size float64) float64 {
	return (f.Ascent - f.Descent) * size / 1000 * 1.15
}

// Helvetica advances for codes 32..126.
var helvetica = [...]float64{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}

// Standard registers one of the standard Type1 fonts. Courier faces are
// measured exactly; the proportional faces use Helvetica advances.
func Standard(doc *writer.Document, base string) (*Face, error) {
	if base == "Symbol" || base == "ZapfDingbats" {
		return nil, fmt.Errorf("font %s has no WinAnsi encoding", base)
	}
	font, err := doc.NewFontType1(base, nil)
	if err != nil {
		return nil, err
	}
	f := &Face{Font: font}
	switch {
	case strings.HasPrefix(base, "Courier"):
		for i := range f.widths {
			f.widths[i] = 600
		}
		f.Ascent, f.Descent = 629, -157
	default:
		for i := range f.widths {
			f.widths[i] = 556
		}
		copy(f.widths[32:], helvetica[:])
		f.Ascent, f.Descent = 718, -207
		if strings.HasPrefix(base, "Times") {
			f.Ascent, f.Descent = 683, -217
		}
	}
	return f, nil
}

// LoadTrueType embeds a TrueType program and measures its WinAnsi glyphs.
func LoadTrueType(doc *writer.Document, data []byte) (*Face, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	upem := font.UnitsPerEm()
	if upem == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	var buf sfnt.Buffer
	ppem := fixed.Int26_6(upem) << 6
	scale := func(v fixed.Int26_6) float64 {
		return math.Round(float64(v) * 1000 / (64 * float64(upem)))
	}

	name, _ := font.Name(&buf, sfnt.NameIDPostScript)
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "")
	if name == "" {
		name = "CustomTT"
	}

	const first = 32
	face := &Face{}
	desc := writer.TrueTypeDesc{
		BaseFont:  name,
		Program:   data,
		FirstChar: first,
		Widths:    make([]float64, 256-first),
		Flags:     32,
		StemV:     80,
		ToUnicode: make(map[int]rune),
	}
	notdef := 0.0
	if adv, err := font.GlyphAdvance(&buf, 0, ppem, xfont.HintingNone); err == nil {
		notdef = scale(adv)
	}
	for code := first; code < 256; code++ {
		r := winAnsi.DecodeByte(byte(code))
		w := notdef
		if gid, err := font.GlyphIndex(&buf, r); err == nil && gid != 0 {
			if adv, err := font.GlyphAdvance(&buf, gid, ppem, xfont.HintingNone); err == nil {
				w = scale(adv)
			}
			desc.ToUnicode[code] = r
		}
		desc.Widths[code-first] = w
		face.widths[code] = w
	}

	if m, err := font.Metrics(&buf, ppem, xfont.HintingNone); err == nil {
		desc.Ascent = scale(m.Ascent)
		desc.Descent = -scale(m.Descent)
		desc.CapHeight = scale(m.CapHeight)
		if desc.CapHeight == 0 {
			desc.CapHeight = desc.Ascent
		}
	}
	// sfnt bounds grow downwards.
	if b, err := font.Bounds(&buf, ppem, xfont.HintingNone); err == nil {
		desc.BBox = writer.Rect{LLX: scale(b.Min.X), LLY: -scale(b.Max.Y), URX: scale(b.Max.X), URY: -scale(b.Min.Y)}
	}
	if post := font.PostTable(); post != nil {
		desc.ItalicAngle = post.ItalicAngle
		if post.ItalicAngle != 0 {
			desc.Flags |= 64
		}
	}

	f, err := doc.NewFontTrueType(desc)
	if err != nil {
		return nil, err
	}
	face.Font = f
	face.Ascent, face.Descent = desc.Ascent, desc.Descent
	return face, nil
}

// GoRegular embeds the Go Regular typeface.
func GoRegular(doc *writer.Document) (*Face, error) {
	return LoadTrueType(doc, goregular.TTF)
}
