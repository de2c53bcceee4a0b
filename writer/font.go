package writer

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"unicode/utf16"

	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/ir/raw"
)

var standard14 = map[string]bool{
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Symbol": true, "ZapfDingbats": true,
}

// Font is a simple font resource.
type Font struct {
	objectBase
	// Name is the resource name, e.g. F1.
	Name      string
	BaseFont  string
	Subtype   string
	Encoding  raw.Object
	FirstChar int
	Widths    []float64

	Descriptor *FontDescriptor
	ToUnicode  *Stream
}

func (f *Font) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Font"))
	d.Set("Subtype", raw.NameLiteral(f.Subtype))
	d.Set("BaseFont", raw.NameLiteral(f.BaseFont))
	if f.Encoding != nil {
		d.Set("Encoding", f.Encoding)
	}
	if len(f.Widths) > 0 {
		d.Set("FirstChar", raw.Int(f.FirstChar))
		d.Set("LastChar", raw.Int(f.FirstChar+len(f.Widths)-1))
		d.Set("Widths", raw.Numbers(f.Widths...))
	}
	if f.Descriptor != nil {
		d.Set("FontDescriptor", raw.RefTo(f.Descriptor.Ref()))
	}
	if f.ToUnicode != nil {
		d.Set("ToUnicode", raw.RefTo(f.ToUnicode.Ref()))
	}
	return writeValue(w, f.ref, d)
}

// Embedded reports whether the font program is part of the file.
func (f *Font) Embedded() bool { return f.Descriptor != nil && f.Descriptor.FontFile != nil }

// NewFontType1 references one of the 14 standard fonts. Symbol and
// ZapfDingbats keep their built-in encoding; the others use WinAnsi unless
// enc is given.
func (d *Document) NewFontType1(base string, enc *Encoding) (*Font, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if !standard14[base] {
		return nil, fmt.Errorf("%s is not a standard font", base)
	}
	f := &Font{BaseFont: base, Subtype: "Type1"}
	switch {
	case enc != nil:
		f.Encoding = raw.RefTo(enc.Ref())
	case base != "Symbol" && base != "ZapfDingbats":
		f.Encoding = raw.NameLiteral("WinAnsiEncoding")
	}
	if err := d.checker.Font(base, false, false, "Font "+base); err != nil {
		return nil, d.setErr(err)
	}
	return f, d.registerFont(f)
}

func (d *Document) registerFont(f *Font) error {
	d.AddDocumentOrderObject(f)
	f.Name = d.resourceName("F")
	d.resources.Add("Font", f.Name, f.ref)
	return nil
}

// Encoding is an /Encoding dictionary with a /Differences array.
type Encoding struct {
	objectBase
	Base        string
	Differences map[int]string
}

// NewEncoding creates an encoding that overrides base for the given codes.
func (d *Document) NewEncoding(base string, diffs map[int]string) (*Encoding, error) {
	for code := range diffs {
		if code < 0 || code > 255 {
			return nil, fmt.Errorf("encoding code %d out of range", code)
		}
	}
	e := &Encoding{Base: base, Differences: diffs}
	d.AddDocumentOrderObject(e)
	return e, nil
}

func (e *Encoding) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Encoding"))
	if e.Base != "" {
		d.Set("BaseEncoding", raw.NameLiteral(e.Base))
	}
	codes := make([]int, 0, len(e.Differences))
	for c := range e.Differences {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	arr := raw.NewArray()
	for i, c := range codes {
		if i == 0 || codes[i-1] != c-1 {
			arr.Append(raw.Int(c))
		}
		arr.Append(raw.NameLiteral(e.Differences[c]))
	}
	if arr.Len() > 0 {
		d.Set("Differences", arr)
	}
	return writeValue(w, e.ref, d)
}

// FontDescriptor carries the metrics and the embedded program of a font.
type FontDescriptor struct {
	objectBase
	FontName    string
	Flags       int
	BBox        Rect
	ItalicAngle float64
	Ascent      float64
	Descent     float64
	CapHeight   float64
	StemV       float64
	FontFile    *Stream
}

func (fd *FontDescriptor) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("FontDescriptor"))
	d.Set("FontName", raw.NameLiteral(fd.FontName))
	d.Set("Flags", raw.Int(fd.Flags))
	d.Set("FontBBox", fd.BBox.Array())
	d.Set("ItalicAngle", raw.NumberFloat(fd.ItalicAngle))
	d.Set("Ascent", raw.NumberFloat(fd.Ascent))
	d.Set("Descent", raw.NumberFloat(fd.Descent))
	d.Set("CapHeight", raw.NumberFloat(fd.CapHeight))
	d.Set("StemV", raw.NumberFloat(fd.StemV))
	if fd.FontFile != nil {
		d.Set("FontFile2", raw.RefTo(fd.FontFile.Ref()))
	}
	return writeValue(w, fd.ref, d)
}

// TrueTypeDesc describes a TrueType program measured by a font collaborator.
// Widths are in 1/1000 em for codes FirstChar upward; ToUnicode maps codes
// to the characters they render.
type TrueTypeDesc struct {
	BaseFont    string
	Program     []byte
	FirstChar   int
	Widths      []float64
	Flags       int
	BBox        Rect
	ItalicAngle float64
	Ascent      float64
	Descent     float64
	CapHeight   float64
	StemV       float64
	ToUnicode   map[int]rune
}

// NewFontTrueType embeds a simple TrueType font with WinAnsi encoding. The
// font, its descriptor, the program stream and the ToUnicode map are all
// document-order objects.
func (d *Document) NewFontTrueType(desc TrueTypeDesc) (*Font, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if len(desc.Program) == 0 {
		return nil, fmt.Errorf("font %s: empty program", desc.BaseFont)
	}
	if desc.FirstChar < 0 || desc.FirstChar+len(desc.Widths) > 256 {
		return nil, fmt.Errorf("font %s: widths cover codes outside 0..255", desc.BaseFont)
	}
	if err := desc.BBox.Validate(); err != nil {
		return nil, fmt.Errorf("font %s bbox: %w", desc.BaseFont, err)
	}
	if err := d.checker.Font(desc.BaseFont, true, len(desc.ToUnicode) > 0, "Font "+desc.BaseFont); err != nil {
		return nil, d.setErr(err)
	}

	program, err := d.newStream(filters.KindFont)
	if err != nil {
		return nil, err
	}
	program.Write(desc.Program)
	program.Dict.Set("Length1", raw.Int(len(desc.Program)))

	fd := &FontDescriptor{
		FontName:    desc.BaseFont,
		Flags:       desc.Flags,
		BBox:        desc.BBox,
		ItalicAngle: desc.ItalicAngle,
		Ascent:      desc.Ascent,
		Descent:     desc.Descent,
		CapHeight:   desc.CapHeight,
		StemV:       desc.StemV,
		FontFile:    program,
	}
	f := &Font{
		BaseFont:   desc.BaseFont,
		Subtype:    "TrueType",
		Encoding:   raw.NameLiteral("WinAnsiEncoding"),
		FirstChar:  desc.FirstChar,
		Widths:     desc.Widths,
		Descriptor: fd,
	}
	if err := d.registerFont(f); err != nil {
		return nil, err
	}
	d.AddDocumentOrderObject(fd)
	d.AddDocumentOrderObject(program)
	if len(desc.ToUnicode) > 0 {
		cmap, err := d.newStream(filters.KindDefault)
		if err != nil {
			return nil, err
		}
		cmap.Write(toUnicodeCMap(desc.BaseFont, desc.ToUnicode))
		d.AddDocumentOrderObject(cmap)
		f.ToUnicode = cmap
	}
	return f, nil
}

func utf16Hex(r rune) string {
	var b bytes.Buffer
	for _, u := range utf16.Encode([]rune{r}) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}

// toUnicodeCMap renders a one-byte ToUnicode CMap.
func toUnicodeCMap(name string, m map[int]rune) []byte {
	codes := make([]int, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n")
	buf.WriteString("12 dict begin\n")
	buf.WriteString("begincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	fmt.Fprintf(&buf, "/CMapName /%s-UCS def\n", raw.EscapeName(name))
	buf.WriteString("/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n<00> <FF>\nendcodespacerange\n")
	for i := 0; i < len(codes); {
		chunk := len(codes) - i
		if chunk > 100 {
			chunk = 100
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", chunk)
		for j := 0; j < chunk; j++ {
			c := codes[i+j]
			fmt.Fprintf(&buf, "<%02X> <%s>\n", c, utf16Hex(m[c]))
		}
		buf.WriteString("endbfchar\n")
		i += chunk
	}
	buf.WriteString("endcmap\n")
	buf.WriteString("CMapName currentdict /CMap defineresource pop\n")
	buf.WriteString("end\nend\n")
	return buf.Bytes()
}
