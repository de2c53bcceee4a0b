package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/wudi/pdfstream/compliance"
	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/ir/raw"
	"github.com/wudi/pdfstream/scripting"
)

// EmbeddedFile is the stream holding an attachment's bytes.
type EmbeddedFile struct {
	Stream
	MIME string
	Size int
}

func (e *EmbeddedFile) WriteTo(w io.Writer) (int64, error) {
	e.Dict.Set("Type", raw.NameLiteral("EmbeddedFile"))
	if e.MIME != "" {
		e.Dict.Set("Subtype", raw.NameLiteral(e.MIME))
	}
	params := raw.Dict()
	params.Set("Size", raw.Int(e.Size))
	e.Dict.Set("Params", params)
	return e.Stream.WriteTo(w)
}

// FileSpec is a file specification with an embedded file.
type FileSpec struct {
	objectBase
	FileName     string
	Description  string
	Relationship string
	File         *EmbeddedFile
}

func (f *FileSpec) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Filespec"))
	d.Set("F", raw.Text(f.FileName))
	d.Set("UF", raw.Text(f.FileName))
	if f.Description != "" {
		d.Set("Desc", raw.Text(f.Description))
	}
	if f.Relationship != "" {
		d.Set("AFRelationship", raw.NameLiteral(f.Relationship))
	}
	ef := raw.Dict()
	ef.Set("F", raw.RefTo(f.File.Ref()))
	ef.Set("UF", raw.RefTo(f.File.Ref()))
	d.Set("EF", ef)
	return writeValue(w, f.ref, d)
}

// NewFileSpec embeds data as an attachment named name. The file spec and its
// stream are document-order objects; Attach lists it in the catalog.
func (d *Document) NewFileSpec(name, description string, data []byte, mime string) (*FileSpec, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("file specification without name")
	}
	if err := d.checker.Attachment(mime, "EmbeddedFile "+name); err != nil {
		return nil, d.setErr(err)
	}
	ef := &EmbeddedFile{MIME: mime, Size: len(data)}
	if err := d.initStream(&ef.Stream, filters.KindDefault); err != nil {
		return nil, err
	}
	ef.Write(data)
	fs := &FileSpec{FileName: name, Description: description, File: ef}
	if d.checker.Has(compliance.PDFA3B) {
		fs.Relationship = "Unspecified"
	}
	d.AddDocumentOrderObject(fs)
	d.AddDocumentOrderObject(ef)
	return fs, nil
}

// Attach lists fs in the EmbeddedFiles name tree, and in /AF under PDF/A-3.
func (d *Document) Attach(fs *FileSpec) error {
	for _, e := range d.embedded {
		if e.name == fs.FileName {
			return fmt.Errorf("%w: attachment %q", ErrDuplicateKey, fs.FileName)
		}
	}
	d.embedded = append(d.embedded, nameEntry{name: fs.FileName, ref: fs.Ref()})
	if fs.Relationship != "" {
		d.af = append(d.af, fs.Ref())
	}
	return nil
}

// AddDocumentJavaScript adds a script run when the document opens.
func (d *Document) AddDocumentJavaScript(name, src string) error {
	for _, e := range d.scripts {
		if e.name == name {
			return fmt.Errorf("%w: script %q", ErrDuplicateKey, name)
		}
	}
	if err := scripting.Check(name, src); err != nil {
		return err
	}
	a, err := d.newAction(&Action{Kind: ActionJavaScript, Script: src}, "")
	if err != nil {
		return err
	}
	d.scripts = append(d.scripts, nameEntry{name: name, ref: a.Ref()})
	return nil
}
