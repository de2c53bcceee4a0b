package writer

import (
	"fmt"
	"io"

	"github.com/wudi/pdfstream/ir/raw"
)

// Annotation is a Link, Text or FileAttachment annotation.
type Annotation struct {
	objectBase
	Subtype  string
	Rect     Rect
	Action   *Action
	Contents string
	FileSpec *FileSpec
	page     raw.ObjectRef
	// structParent is the annotation's parent tree key, or -1.
	structParent int
}

// SetStructParent sets the annotation's key in the structure parent tree.
func (a *Annotation) SetStructParent(key int) { a.structParent = key }

func (a *Annotation) StructParent() int { return a.structParent }

// Page returns the page the annotation is placed on.
func (a *Annotation) Page() raw.ObjectRef { return a.page }

func (a *Annotation) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Annot"))
	d.Set("Subtype", raw.NameLiteral(a.Subtype))
	d.Set("Rect", a.Rect.Array())
	d.Set("P", raw.RefTo(a.page))
	d.Set("F", raw.Int(4))
	if a.Contents != "" {
		d.Set("Contents", raw.Text(a.Contents))
	}
	switch a.Subtype {
	case "Link":
		d.Set("Border", raw.NewArray(raw.Int(0), raw.Int(0), raw.Int(0)))
		d.Set("A", raw.RefTo(a.Action.Ref()))
	case "FileAttachment":
		d.Set("FS", raw.RefTo(a.FileSpec.Ref()))
		d.Set("Name", raw.NameLiteral("PushPin"))
	case "Text":
		d.Set("Name", raw.NameLiteral("Note"))
	}
	if a.structParent >= 0 {
		d.Set("StructParent", raw.Int(a.structParent))
	}
	return writeValue(w, a.ref, d)
}

func (d *Document) newAnnotation(page *Page, a *Annotation) (*Annotation, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%s annotation without page", a.Subtype)
	}
	if err := a.Rect.Validate(); err != nil {
		return nil, fmt.Errorf("%s annotation: %w", a.Subtype, err)
	}
	a.page = page.Ref()
	a.structParent = -1
	d.AddDocumentOrderObject(a)
	page.AddAnnotation(a)
	return a, nil
}

// NewLink places a link annotation running action on page. Contents is the
// alternate description required for accessible links.
func (d *Document) NewLink(page *Page, rect Rect, action *Action, contents string) (*Annotation, error) {
	if action == nil {
		return nil, ErrMissingAction
	}
	return d.newAnnotation(page, &Annotation{Subtype: "Link", Rect: rect, Action: action, Contents: contents})
}

// NewTextAnnotation places a sticky note.
func (d *Document) NewTextAnnotation(page *Page, rect Rect, contents string) (*Annotation, error) {
	return d.newAnnotation(page, &Annotation{Subtype: "Text", Rect: rect, Contents: contents})
}

// NewFileAttachmentAnnotation places an icon that opens an embedded file.
func (d *Document) NewFileAttachmentAnnotation(page *Page, rect Rect, fs *FileSpec) (*Annotation, error) {
	if fs == nil {
		return nil, fmt.Errorf("file attachment annotation without file")
	}
	return d.newAnnotation(page, &Annotation{Subtype: "FileAttachment", Rect: rect, FileSpec: fs, Contents: fs.Description})
}
