package writer

import (
	"fmt"
	"io"

	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/ir/raw"
)

// Page is a leaf of the page tree. It is a document-order object: set
// contents, annotations and the structure key before the next Flush.
type Page struct {
	objectBase
	doc      *Document
	index    int
	MediaBox Rect
	CropBox  *Rect
	TrimBox  *Rect
	Rotate   int

	contents      []raw.ObjectRef
	annots        []raw.ObjectRef
	structParents int
}

// NewPage creates a page of the given size in points and appends it to the
// page tree.
func (d *Document) NewPage(width, height float64) (*Page, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	box, err := NewRect(0, 0, width, height)
	if err != nil {
		return nil, err
	}
	p := &Page{doc: d, MediaBox: box, structParents: -1, index: d.pages.Count()}
	if d.checker.TrimBoxRequired() {
		trim := box
		p.TrimBox = &trim
	}
	d.AddDocumentOrderObject(p)
	d.pages.kids = append(d.pages.kids, p.ref)
	return p, nil
}

// Index is the page's zero-based position in the document.
func (p *Page) Index() int { return p.index }

// AddContent appends a content stream to the page's /Contents.
func (p *Page) AddContent(s *Stream) { p.contents = append(p.contents, s.Ref()) }

func (p *Page) AddAnnotation(a *Annotation) { p.annots = append(p.annots, a.Ref()) }

// SetStructParents sets the page's key in the structure parent tree.
func (p *Page) SetStructParents(key int) { p.structParents = key }

func (p *Page) StructParents() int { return p.structParents }

// Dest returns an explicit destination at (x, y) with unchanged zoom.
func (p *Page) Dest(x, y float64) *raw.ArrayObj {
	return raw.NewArray(raw.RefTo(p.ref), raw.NameLiteral("XYZ"), raw.NumberFloat(x), raw.NumberFloat(y), raw.NullObj{})
}

func (p *Page) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Page"))
	d.Set("Parent", raw.RefTo(p.doc.pages.Ref()))
	d.Set("MediaBox", p.MediaBox.Array())
	d.Set("Resources", raw.RefTo(p.doc.resources.Ref()))
	if p.CropBox != nil {
		d.Set("CropBox", p.CropBox.Array())
	}
	if p.TrimBox != nil {
		d.Set("TrimBox", p.TrimBox.Array())
	}
	if p.Rotate != 0 {
		d.Set("Rotate", raw.Int(p.Rotate))
	}
	switch len(p.contents) {
	case 0:
	case 1:
		d.Set("Contents", raw.RefTo(p.contents[0]))
	default:
		arr := raw.NewArray()
		for _, c := range p.contents {
			arr.Append(raw.RefTo(c))
		}
		d.Set("Contents", arr)
	}
	if len(p.annots) > 0 {
		arr := raw.NewArray()
		for _, a := range p.annots {
			arr.Append(raw.RefTo(a))
		}
		d.Set("Annots", arr)
	}
	if p.structParents >= 0 {
		d.Set("StructParents", raw.Int(p.structParents))
		d.Set("Tabs", raw.NameLiteral("S"))
	}
	return writeValue(w, p.ref, d)
}

// NewStream creates a document-order stream whose filters come from the
// configuration for kind.
func (d *Document) NewStream(kind string) (*Stream, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	s, err := d.newStream(kind)
	if err != nil {
		return nil, err
	}
	d.AddDocumentOrderObject(s)
	return s, nil
}

// NewContentStream creates a page content stream.
func (d *Document) NewContentStream() (*Stream, error) {
	return d.NewStream(filters.KindContent)
}

// NewDictionary creates a generic document-order dictionary object.
func (d *Document) NewDictionary(dict *raw.DictObj) *Dictionary {
	o := &Dictionary{Dict: dict}
	d.AddDocumentOrderObject(o)
	return o
}

// DefineDictionary creates a dictionary object under a number obtained
// from Reserve. Trailer dictionaries are written by WriteTrailer.
func (d *Document) DefineDictionary(ref raw.ObjectRef, dict *raw.DictObj, trailer bool) (*Dictionary, error) {
	if ref.Num <= 0 || ref.Num >= d.next {
		return nil, fmt.Errorf("%w: %s", ErrUnreservedObject, ref)
	}
	o := &Dictionary{objectBase: objectBase{ref: ref}, Dict: dict}
	if trailer {
		d.AddTrailerObject(o)
	} else {
		d.AddDocumentOrderObject(o)
	}
	return o, nil
}

// NewArray creates a generic document-order array object.
func (d *Document) NewArray(items ...raw.Object) *Array {
	o := &Array{Array: raw.NewArray(items...)}
	d.AddDocumentOrderObject(o)
	return o
}
