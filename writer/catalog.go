package writer

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-text/typesetting/language"

	"github.com/wudi/pdfstream/compliance"
	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/ir/raw"
)

// Catalog is the document root. Entries may be set until WriteTrailer.
type Catalog struct {
	objectBase
	Dict *raw.DictObj
}

func (c *Catalog) WriteTo(w io.Writer) (int64, error) {
	c.Dict.Set("Type", raw.NameLiteral("Catalog"))
	return writeValue(w, c.ref, c.Dict)
}

// PageTree is the single /Pages node every page hangs from.
type PageTree struct {
	objectBase
	kids []raw.ObjectRef
}

func (t *PageTree) Count() int { return len(t.kids) }

func (t *PageTree) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Pages"))
	kids := raw.NewArray()
	for _, k := range t.kids {
		kids.Append(raw.RefTo(k))
	}
	d.Set("Kids", kids)
	d.Set("Count", raw.Int(len(t.kids)))
	return writeValue(w, t.ref, d)
}

// Resources is the resource dictionary shared by every page and form.
type Resources struct {
	objectBase
	entries map[string]*raw.DictObj
}

func newResources() *Resources {
	return &Resources{entries: make(map[string]*raw.DictObj)}
}

// Add registers ref under category (Font, XObject, Pattern, Shading,
// ExtGState) with the given name.
func (r *Resources) Add(category, name string, ref raw.ObjectRef) {
	d, ok := r.entries[category]
	if !ok {
		d = raw.Dict()
		r.entries[category] = d
	}
	d.Set(name, raw.RefTo(ref))
}

// Lookup returns the reference registered for name in category.
func (r *Resources) Lookup(category, name string) (raw.ObjectRef, bool) {
	d, ok := r.entries[category]
	if !ok {
		return raw.ObjectRef{}, false
	}
	v, ok := d.Get(name)
	if !ok {
		return raw.ObjectRef{}, false
	}
	ref, ok := v.(raw.RefObj)
	return ref.R, ok
}

func (r *Resources) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("ProcSet", raw.Names("PDF", "Text", "ImageB", "ImageC", "ImageI"))
	for cat, entries := range r.entries {
		d.Set(cat, entries)
	}
	return writeValue(w, r.ref, d)
}

type nameEntry struct {
	name string
	ref  raw.ObjectRef
}

type pageLabel struct {
	page   int
	style  string
	prefix string
	start  int
}

// nameTree renders a flat name tree node with keys in byte order.
func nameTree(entries []nameEntry) *raw.DictObj {
	sorted := append([]nameEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	arr := raw.NewArray()
	for _, e := range sorted {
		arr.Append(raw.Text(e.name))
		arr.Append(raw.RefTo(e.ref))
	}
	d := raw.Dict()
	d.Set("Names", arr)
	return d
}

// SetPageLabel starts a labelling range at page index (0-based). Style is
// one of D, R, r, A, a or "" for prefix-only labels.
func (d *Document) SetPageLabel(page int, style, prefix string, start int) error {
	if page < 0 {
		return fmt.Errorf("page label index %d", page)
	}
	switch style {
	case "", "D", "R", "r", "A", "a":
	default:
		return fmt.Errorf("page label style %q", style)
	}
	for _, l := range d.labels {
		if l.page == page {
			return fmt.Errorf("%w: page label at %d", ErrDuplicateKey, page)
		}
	}
	d.labels = append(d.labels, pageLabel{page: page, style: style, prefix: prefix, start: start})
	return nil
}

func (d *Document) pageLabels() *raw.DictObj {
	sort.Slice(d.labels, func(i, j int) bool { return d.labels[i].page < d.labels[j].page })
	nums := raw.NewArray()
	for _, l := range d.labels {
		e := raw.Dict()
		if l.style != "" {
			e.Set("S", raw.NameLiteral(l.style))
		}
		if l.prefix != "" {
			e.Set("P", raw.Text(l.prefix))
		}
		if l.start > 1 {
			e.Set("St", raw.Int(l.start))
		}
		nums.Append(raw.Int(l.page))
		nums.Append(e)
	}
	out := raw.Dict()
	out.Set("Nums", nums)
	return out
}

// Lang returns the canonical BCP 47 form of the configured language.
func (d *Document) Lang() string {
	if d.cfg.Lang == "" {
		return ""
	}
	return string(language.NewLanguage(d.cfg.Lang))
}

func (d *Document) finishCatalog() error {
	c := d.catalog.Dict
	c.Set("Pages", raw.RefTo(d.pages.Ref()))

	names := raw.Dict()
	if len(d.dests) > 0 {
		keys := make([]string, 0, len(d.dests))
		for k := range d.dests {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		arr := raw.NewArray()
		for _, k := range keys {
			arr.Append(raw.Text(k))
			arr.Append(d.dests[k])
		}
		dests := raw.Dict()
		dests.Set("Names", arr)
		names.Set("Dests", dests)
	}
	if len(d.embedded) > 0 {
		names.Set("EmbeddedFiles", nameTree(d.embedded))
	}
	if len(d.scripts) > 0 {
		names.Set("JavaScript", nameTree(d.scripts))
	}
	if names.Len() > 0 {
		c.Set("Names", names)
	}
	if len(d.labels) > 0 {
		c.Set("PageLabels", d.pageLabels())
	}
	if len(d.af) > 0 {
		af := raw.NewArray()
		for _, r := range d.af {
			af.Append(raw.RefTo(r))
		}
		c.Set("AF", af)
	}
	if lang := d.Lang(); lang != "" {
		c.Set("Lang", raw.Text(lang))
	}
	if d.cfg.Tagged {
		mi := raw.Dict()
		mi.Set("Marked", raw.Bool(true))
		c.Set("MarkInfo", mi)
	}
	if d.checker.NeedsTagging() {
		vp := raw.Dict()
		vp.Set("DisplayDocTitle", raw.Bool(true))
		c.Set("ViewerPreferences", vp)
	}

	d.finishInfo()
	if d.icc != nil {
		c.Set("OutputIntents", raw.NewArray(d.outputIntent()))
	}
	if d.checker.NeedsMetadata() || d.cfg.Metadata {
		md := d.metadata()
		d.AddTrailerObject(md)
		c.Set("Metadata", raw.RefTo(md.Ref()))
	}
	_, tagged := c.Get("StructTreeRoot")
	return d.checker.Document(compliance.DocumentFacts{
		Tagged:       d.cfg.Tagged && tagged,
		Title:        d.cfg.Info.Title,
		Lang:         d.Lang(),
		OutputIntent: d.icc != nil,
		Metadata:     c.KV["Metadata"] != nil,
		Pages:        d.pages.Count(),
	})
}

func (d *Document) finishInfo() {
	in := d.cfg.Info
	set := func(key, val string) {
		if val != "" {
			d.info.Dict.Set(key, raw.Text(val))
		}
	}
	set("Title", in.Title)
	set("Author", in.Author)
	set("Subject", in.Subject)
	set("Keywords", in.Keywords)
	set("Creator", in.Creator)
	set("Producer", in.Producer)
	d.info.Dict.Set("CreationDate", raw.Date(in.CreationDate))
	for k, v := range d.checker.InfoEntries() {
		d.info.Dict.Set(k, v)
	}
}

func (d *Document) outputIntent() *raw.DictObj {
	icc := &Stream{Dict: raw.Dict(), Kind: "icc"}
	icc.Write(d.icc.Data())
	icc.AddFilter(&filters.Flate{Level: d.level()})
	icc.Dict.Set("N", raw.Int(d.icc.Components()))
	d.AddTrailerObject(icc)

	cond := d.cfg.OutputCondition
	if cond == "" {
		cond = d.icc.Name()
	}
	if cond == "" {
		cond = "Custom"
	}
	oi := raw.Dict()
	oi.Set("Type", raw.NameLiteral("OutputIntent"))
	oi.Set("S", raw.NameLiteral(d.checker.OutputIntentSubtype()))
	oi.Set("OutputConditionIdentifier", raw.Text(cond))
	oi.Set("Info", raw.Text(cond))
	oi.Set("DestOutputProfile", raw.RefTo(icc.Ref()))
	return oi
}
