// Package writer assembles numbered PDF objects and streams them to a sink.
//
// Objects come in two classes. Document-order objects (pages, content
// streams, images, fonts, annotations) are written by Flush in the order
// they were created and then dropped. Trailer objects (catalog, page tree,
// shared resources, outlines, the structure tree, forward link targets)
// stay in memory until WriteTrailer because their content depends on the
// whole document.
package writer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wudi/pdfstream/cmm"
	"github.com/wudi/pdfstream/compliance"
	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/ir/raw"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/xref"
)

// Document owns object numbering, the offset table and every object still
// waiting to be written.
type Document struct {
	cfg     Config
	log     observability.Logger
	checker *compliance.Checker
	icc     *cmm.ICCProfile

	next     int
	pending  []Object
	trailers []Object
	offsets  []int64
	pos      int64

	headerWritten bool
	finished      bool
	err           error

	catalog   *Catalog
	pages     *PageTree
	resources *Resources
	info      *Dictionary

	names      map[string]int
	finalizers []func() error
	colorUse   map[string]bool

	targets     map[string]*Action
	targetOrder []string
	dests       map[string]raw.Object
	embedded    []nameEntry
	scripts     []nameEntry
	labels      []pageLabel
	af          []raw.ObjectRef
}

// New validates cfg and returns an empty document. The catalog, page tree,
// shared resources and info dictionary take the first object numbers.
func New(cfg Config) (*Document, error) {
	cfg = cfg.withDefaults()
	d := &Document{
		cfg:      cfg,
		log:      cfg.Logger,
		checker:  compliance.NewChecker(cfg.Profiles...),
		next:     1,
		offsets:  []int64{0},
		names:    make(map[string]int),
		colorUse: make(map[string]bool),
		targets:  make(map[string]*Action),
		dests:    make(map[string]raw.Object),
	}
	if limit := d.checker.MaxVersion(); limit != "" && string(cfg.Version) > limit {
		d.cfg.Version = PDFVersion(limit)
	}
	for kind, names := range cfg.Filters {
		encs, err := filters.ParseList(names, d.level())
		if err != nil {
			return nil, fmt.Errorf("filters for %s: %w", kind, err)
		}
		for _, e := range encs {
			if err := d.checker.Filter(e.Name(), "filters."+kind); err != nil {
				return nil, err
			}
		}
	}
	if len(cfg.ICCProfile) > 0 {
		icc, err := d.checker.OutputIntent(cfg.ICCProfile)
		if err != nil {
			return nil, err
		}
		d.icc = icc
	}
	if d.checker.NeedsTagging() {
		d.cfg.Tagged = true
	}

	d.catalog = &Catalog{Dict: raw.Dict()}
	d.AddTrailerObject(d.catalog)
	d.pages = &PageTree{}
	d.AddTrailerObject(d.pages)
	d.resources = newResources()
	d.AddTrailerObject(d.resources)
	d.info = &Dictionary{Dict: raw.Dict()}
	d.AddTrailerObject(d.info)
	return d, nil
}

func (d *Document) Config() Config               { return d.cfg }
func (d *Document) Logger() observability.Logger { return d.log }
func (d *Document) Checker() *compliance.Checker { return d.checker }
func (d *Document) Catalog() *Catalog            { return d.catalog }
func (d *Document) Pages() *PageTree             { return d.pages }
func (d *Document) Resources() *Resources        { return d.resources }
func (d *Document) Err() error                   { return d.err }

// Reserve hands out the next object number without creating an object.
// The number must be defined before WriteTrailer emits the xref table.
func (d *Document) Reserve() raw.ObjectRef {
	r := raw.ObjectRef{Num: d.next}
	d.next++
	return r
}

// Highest returns the highest object number reserved so far.
func (d *Document) Highest() int { return d.next - 1 }

// assign numbers o once; an object that already has a number keeps it.
func (d *Document) assign(o numbered) {
	if o.Ref().IsZero() {
		o.setRef(d.Reserve())
	}
}

// AddDocumentOrderObject queues obj for the next Flush. Objects built by
// this package are numbered here when they are not numbered yet; any other
// Object must carry a number obtained from Reserve.
func (d *Document) AddDocumentOrderObject(obj Object) {
	if n, ok := obj.(numbered); ok {
		d.assign(n)
	}
	d.pending = append(d.pending, obj)
}

// AddTrailerObject queues obj for WriteTrailer.
func (d *Document) AddTrailerObject(obj Object) {
	if n, ok := obj.(numbered); ok {
		d.assign(n)
	}
	d.trailers = append(d.trailers, obj)
}

// OnTrailer registers fn to run at the start of WriteTrailer, before any
// trailer object is written. Collaborators that build trailer objects
// (outlines, structure tree) hook in here.
func (d *Document) OnTrailer(fn func() error) {
	d.finalizers = append(d.finalizers, fn)
}

// resourceName returns the next name for a resource prefix: F1, F2, Im1, ...
func (d *Document) resourceName(prefix string) string {
	d.names[prefix]++
	return fmt.Sprintf("%s%d", prefix, d.names[prefix])
}

func (d *Document) newStream(kind string) (*Stream, error) {
	s := &Stream{}
	if err := d.initStream(s, kind); err != nil {
		return nil, err
	}
	return s, nil
}

// initStream prepares an embedded stream with the filters configured for kind.
func (d *Document) initStream(s *Stream, kind string) error {
	encs, err := filters.ForKind(d.cfg.Filters, kind, d.level())
	if err != nil {
		return err
	}
	s.Dict = raw.Dict()
	s.Kind = kind
	s.addFilters(encs)
	return nil
}

func (d *Document) level() int {
	if d.cfg.CompressionLevel == 0 {
		return filters.DefaultLevel
	}
	return d.cfg.CompressionLevel
}

// UseColorSpaces records device colour spaces used at loc and checks them
// against the output intent.
func (d *Document) UseColorSpaces(spaces []string, loc string) error {
	if err := d.fail(); err != nil {
		return err
	}
	intent := ""
	if d.icc != nil {
		intent = d.icc.DeviceSpace()
	}
	if err := d.checker.ColorSpaces(spaces, intent, loc); err != nil {
		return d.setErr(err)
	}
	for _, cs := range spaces {
		d.colorUse[cs] = true
	}
	return nil
}

func (d *Document) fail() error {
	if d.err != nil {
		return d.err
	}
	if d.finished {
		return ErrFinished
	}
	return nil
}

// Fail records err as the document's sticky error, for collaborators that
// detect a conformance violation on their own objects. It returns err.
func (d *Document) Fail(err error) error { return d.setErr(err) }

// setErr makes err sticky; conformance and I/O failures leave the
// document unusable.
func (d *Document) setErr(err error) error {
	if d.err == nil {
		d.err = err
	}
	return err
}

// WriteHeader writes the version line and the binary marker comment and
// resets the byte position to the bytes written. It may be called once,
// before any object is flushed.
func (d *Document) WriteHeader(w io.Writer) error {
	if err := d.fail(); err != nil {
		return err
	}
	if d.headerWritten {
		return ErrHeaderWritten
	}
	n, err := fmt.Fprintf(w, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", d.cfg.Version)
	d.pos = int64(n)
	if err != nil {
		return d.setErr(err)
	}
	d.headerWritten = true
	return nil
}

// Flush writes every pending document-order object in insertion order,
// recording the offset at which each begins, then drops them.
func (d *Document) Flush(w io.Writer) error {
	if err := d.fail(); err != nil {
		return err
	}
	if !d.headerWritten {
		if err := d.WriteHeader(w); err != nil {
			return err
		}
	}
	count := len(d.pending)
	for _, obj := range d.pending {
		if err := d.writeObject(w, obj); err != nil {
			return err
		}
	}
	d.pending = d.pending[:0]
	if count > 0 {
		d.log.Debug("flush", observability.Int("objects", count), observability.Int64("offset", d.pos))
	}
	return nil
}

func (d *Document) writeObject(w io.Writer, obj Object) error {
	ref := obj.Ref()
	if ref.Num <= 0 || ref.Num >= d.next {
		return d.setErr(fmt.Errorf("%w: %T numbered %d", ErrUnreservedObject, obj, ref.Num))
	}
	d.growOffsets(ref.Num)
	if d.offsets[ref.Num] != xref.Placeholder {
		return d.setErr(fmt.Errorf("object %d written twice", ref.Num))
	}
	if f, ok := obj.(interface{ FilterNames() []string }); ok {
		for _, name := range f.FilterNames() {
			if err := d.checker.Filter(name, ref.String()); err != nil {
				return d.setErr(err)
			}
		}
	}
	for _, ic := range d.cfg.Interceptors {
		if err := ic.BeforeWrite(obj); err != nil {
			return d.setErr(err)
		}
	}
	start := d.pos
	n, err := obj.WriteTo(w)
	d.pos += n
	if err != nil {
		return d.setErr(err)
	}
	d.offsets[ref.Num] = start
	for _, ic := range d.cfg.Interceptors {
		if err := ic.AfterWrite(obj, n); err != nil {
			return d.setErr(err)
		}
	}
	return nil
}

func (d *Document) growOffsets(num int) {
	for len(d.offsets) <= num {
		d.offsets = append(d.offsets, xref.Placeholder)
	}
}

// prepareOffsetTable covers every reserved number; slots of objects that
// were referenced but never written keep the placeholder.
func (d *Document) prepareOffsetTable() {
	d.growOffsets(d.next - 1)
}

// Offsets returns the recorded byte offset of every object number. Slot 0
// is unused; unwritten slots hold xref.Placeholder.
func (d *Document) Offsets() []int64 {
	out := make([]int64, len(d.offsets))
	copy(out, d.offsets)
	return out
}

// WriteTrailer completes the document: it runs trailer hooks, flushes
// pending objects, writes trailer objects, then the xref table and trailer.
func (d *Document) WriteTrailer(w io.Writer) (err error) {
	if err := d.fail(); err != nil {
		return err
	}
	_, span := d.cfg.Tracer.StartSpan(context.Background(), "writer.WriteTrailer")
	started := time.Now()
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.SetTag(observability.MetricWriteTime, time.Since(started))
		span.Finish()
	}()

	for _, fn := range d.finalizers {
		if err := fn(); err != nil {
			return d.setErr(err)
		}
	}
	d.finalizers = nil
	if err := d.checkTargets(); err != nil {
		return d.setErr(err)
	}
	if err := d.finishCatalog(); err != nil {
		return d.setErr(err)
	}
	if err := d.Flush(w); err != nil {
		return err
	}
	for _, obj := range d.trailers {
		if err := d.writeObject(w, obj); err != nil {
			return err
		}
	}
	d.trailers = nil

	d.prepareOffsetTable()
	startxref := d.pos
	n, err := xref.WriteTable(w, d.offsets)
	if err != nil {
		return d.setErr(err)
	}
	d.pos += n
	tr := xref.Trailer{
		Size: len(d.offsets),
		Root: d.catalog.Ref(),
		Info: d.info.Ref(),
	}
	if d.needsID() {
		tr.ID = d.fileID()
	}
	n, err = xref.WriteTrailer(w, tr, startxref)
	d.pos += n
	if err != nil {
		return d.setErr(err)
	}
	d.finished = true
	span.SetTag(observability.MetricObjectCount, len(d.offsets)-1)
	span.SetTag(observability.MetricPageCount, d.pages.Count())
	span.SetTag(observability.MetricBytesWritten, d.pos)
	d.log.Info("trailer written",
		observability.Int("objects", len(d.offsets)-1),
		observability.Int("pages", d.pages.Count()),
		observability.Int64("bytes", d.pos))
	return nil
}

func (d *Document) needsID() bool {
	if !d.cfg.OmitID {
		return true
	}
	_, pdfa := d.checker.PDFA()
	return pdfa || d.checker.Has(compliance.PDFX3)
}

func (d *Document) checkTargets() error {
	for _, id := range d.targetOrder {
		if a := d.targets[id]; a.Dest == nil {
			return fmt.Errorf("%w: %q", ErrUnresolvedTarget, id)
		}
	}
	return nil
}
