// Package structure builds the logical structure tree of a tagged PDF.
//
// The tree is filled by two passes over the same logical source. The
// construction pass registers every element under a stable Key; the content
// pass, run while pages are generated, looks elements up by that Key and
// appends marked-content references to them. Content whose Key was never
// registered is treated as an artifact.
package structure

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdfstream/coords"
	"github.com/wudi/pdfstream/ir/raw"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/writer"
)

// Key identifies a logical source node across both passes.
type Key string

// ElementID is a handle into the tree's element arena.
type ElementID int

// NoElement is the parent of top-level elements.
const NoElement ElementID = -1

var (
	ErrNoPage       = errors.New("no page open")
	ErrPageOpen     = errors.New("previous page not ended")
	ErrNoElement    = errors.New("unknown structure element")
	ErrDuplicateKey = writer.ErrDuplicateKey
)

type kidKind int

const (
	kidElement kidKind = iota
	kidMCR
	kidOBJR
)

type kid struct {
	kind kidKind
	elem ElementID
	mcid int
	page raw.ObjectRef
	obj  raw.ObjectRef
}

type element struct {
	typ     string
	key     Key
	parent  ElementID
	kids    []kid
	ref     raw.ObjectRef
	page    raw.ObjectRef
	alt     string
	actual  string
	lang    string
	title   string
	bbox    coords.Rect
	regions map[string]ElementID
}

// Mark tells the content generator how to bracket a piece of content. An
// empty Tag means the content is an artifact.
type Mark struct {
	Tag  string
	MCID int
}

func (m Mark) Artifact() bool { return m.Tag == "" }

type openPage struct {
	page  *writer.Page
	key   int
	mcids []ElementID
}

// Tree is the structure tree of one document.
type Tree struct {
	doc        *writer.Document
	log        observability.Logger
	elems      []element
	top        []ElementID
	byKey      map[Key]ElementID
	roleMap    map[string]string
	ref        raw.ObjectRef
	nextKey    int
	parentTree map[int]raw.Object
	page       *openPage
}

// New creates the tree for doc. The structure tree root is a trailer object
// and is linked from the catalog when the trailer is written.
func New(doc *writer.Document) *Tree {
	t := &Tree{
		doc:        doc,
		log:        doc.Logger(),
		byKey:      make(map[Key]ElementID),
		roleMap:    make(map[string]string),
		ref:        doc.Reserve(),
		parentTree: make(map[int]raw.Object),
	}
	doc.OnTrailer(t.finish)
	return t
}

// Ref is the reserved number of the StructTreeRoot.
func (t *Tree) Ref() raw.ObjectRef { return t.ref }

// Len is the number of elements in the tree.
func (t *Tree) Len() int { return len(t.elems) }

// Lookup returns the element registered under key.
func (t *Tree) Lookup(key Key) (ElementID, bool) {
	id, ok := t.byKey[key]
	return id, ok
}

// Type returns the structure type of id.
func (t *Tree) Type(id ElementID) string {
	if !t.valid(id) {
		return ""
	}
	return t.elems[id].typ
}

// Parent returns the parent of id, or NoElement for top-level elements.
func (t *Tree) Parent(id ElementID) ElementID {
	if !t.valid(id) {
		return NoElement
	}
	return t.elems[id].parent
}

// Children returns the element children of id in order.
func (t *Tree) Children(id ElementID) []ElementID {
	var out []ElementID
	if !t.valid(id) {
		return out
	}
	for _, k := range t.elems[id].kids {
		if k.kind == kidElement {
			out = append(out, k.elem)
		}
	}
	return out
}

// TopLevel returns the children of the structure tree root.
func (t *Tree) TopLevel() []ElementID { return append([]ElementID(nil), t.top...) }

func (t *Tree) valid(id ElementID) bool { return id >= 0 && int(id) < len(t.elems) }

func (t *Tree) standardType(typ string) string {
	if std, ok := t.roleMap[typ]; ok {
		return std
	}
	return typ
}

// AddElement creates an element of type typ under parent and registers it
// under key. An empty key creates an element content cannot refer to.
func (t *Tree) AddElement(parent ElementID, key Key, typ string) (ElementID, error) {
	if err := t.doc.Err(); err != nil {
		return NoElement, err
	}
	if typ == "" {
		return NoElement, fmt.Errorf("element %q without structure type", key)
	}
	if parent != NoElement && !t.valid(parent) {
		return NoElement, fmt.Errorf("%w: parent %d", ErrNoElement, parent)
	}
	if key != "" {
		if _, ok := t.byKey[key]; ok {
			return NoElement, fmt.Errorf("%w: structure key %q", ErrDuplicateKey, key)
		}
	}
	if parent != NoElement {
		p := t.elems[parent]
		loc := fmt.Sprintf("StructElem %s (%s)", typ, key)
		if err := t.doc.Checker().StructChild(t.standardType(p.typ), t.standardType(typ), loc); err != nil {
			return NoElement, t.doc.Fail(err)
		}
	}
	id := ElementID(len(t.elems))
	t.elems = append(t.elems, element{typ: typ, key: key, parent: parent, ref: t.doc.Reserve()})
	if parent == NoElement {
		t.top = append(t.top, id)
	} else {
		t.elems[parent].kids = append(t.elems[parent].kids, kid{kind: kidElement, elem: id})
	}
	if key != "" {
		t.byKey[key] = id
	}
	return id, nil
}

// PageSequence creates a top-level Part element for a run of pages
// sharing a layout, optionally in its own language.
func (t *Tree) PageSequence(key Key, lang string) (ElementID, error) {
	id, err := t.AddElement(NoElement, key, "Part")
	if err != nil {
		return NoElement, err
	}
	t.elems[id].lang = lang
	return id, nil
}

// Region returns the named content slot of a page sequence, such as the
// main flow or a running header, creating it on first use.
func (t *Tree) Region(seq ElementID, name string) (ElementID, error) {
	if !t.valid(seq) {
		return NoElement, fmt.Errorf("%w: page sequence %d", ErrNoElement, seq)
	}
	if id, ok := t.elems[seq].regions[name]; ok {
		return id, nil
	}
	id, err := t.AddElement(seq, "", "Sect")
	if err != nil {
		return NoElement, err
	}
	t.elems[id].title = name
	if t.elems[seq].regions == nil {
		t.elems[seq].regions = make(map[string]ElementID)
	}
	t.elems[seq].regions[name] = id
	return id, nil
}

func (t *Tree) set(id ElementID, fn func(e *element)) error {
	if !t.valid(id) {
		return fmt.Errorf("%w: %d", ErrNoElement, id)
	}
	fn(&t.elems[id])
	return nil
}

// SetAlt sets the alternate description, required on figures for PDF/UA.
func (t *Tree) SetAlt(id ElementID, alt string) error {
	return t.set(id, func(e *element) { e.alt = alt })
}

func (t *Tree) SetActualText(id ElementID, text string) error {
	return t.set(id, func(e *element) { e.actual = text })
}

func (t *Tree) SetLang(id ElementID, lang string) error {
	return t.set(id, func(e *element) { e.lang = lang })
}

func (t *Tree) SetTitle(id ElementID, title string) error {
	return t.set(id, func(e *element) { e.title = title })
}

// SetBBox records the element's bounding box in default user space; it is
// written as a Layout attribute.
func (t *Tree) SetBBox(id ElementID, r coords.Rect) error {
	return t.set(id, func(e *element) { e.bbox = r })
}

// RoleMap maps a custom structure type onto a standard one.
func (t *Tree) RoleMap(custom, standard string) error {
	if custom == standard {
		return fmt.Errorf("role %s maps onto itself", custom)
	}
	if prev, ok := t.roleMap[custom]; ok && prev != standard {
		return fmt.Errorf("%w: role %s", ErrDuplicateKey, custom)
	}
	t.roleMap[custom] = standard
	return nil
}

// StartPage assigns page the next parent tree key and resets the
// marked-content counter. It must precede any tagged content on the page.
func (t *Tree) StartPage(page *writer.Page) error {
	if t.page != nil {
		return ErrPageOpen
	}
	t.page = &openPage{page: page, key: t.nextKey}
	t.nextKey++
	page.SetStructParents(t.page.key)
	return nil
}

// EndPage registers the page's marked content in the parent tree.
func (t *Tree) EndPage() error {
	if t.page == nil {
		return ErrNoPage
	}
	arr := raw.NewArray()
	for _, id := range t.page.mcids {
		arr.Append(raw.RefTo(t.elems[id].ref))
	}
	t.parentTree[t.page.key] = arr
	t.page = nil
	return nil
}

func (t *Tree) addContent(key Key, what string) (Mark, error) {
	if t.page == nil {
		return Mark{}, ErrNoPage
	}
	id, ok := t.byKey[key]
	if !ok {
		t.log.Debug("untagged content", observability.String("key", string(key)), observability.String("kind", what))
		return Mark{}, nil
	}
	e := &t.elems[id]
	pg := t.page.page.Ref()
	mcid := len(t.page.mcids)
	t.page.mcids = append(t.page.mcids, id)
	e.kids = append(e.kids, kid{kind: kidMCR, mcid: mcid, page: pg})
	if e.page.IsZero() {
		e.page = pg
	}
	return Mark{Tag: e.typ, MCID: mcid}, nil
}

// AddTextContent appends a marked-content reference for text belonging to
// key. An artifact Mark is returned for unknown keys.
func (t *Tree) AddTextContent(key Key) (Mark, error) { return t.addContent(key, "text") }

// AddImageContent is AddTextContent for images and other figures.
func (t *Tree) AddImageContent(key Key) (Mark, error) { return t.addContent(key, "image") }

// AddLinkContent ties a link annotation to the element registered under
// key through an object reference and its own parent tree key. A link
// whose key is unknown stays outside the tree, which PDF/UA rejects.
func (t *Tree) AddLinkContent(key Key, annot *writer.Annotation) error {
	if t.page == nil {
		return ErrNoPage
	}
	id, ok := t.byKey[key]
	if !ok {
		if err := t.doc.Checker().Untagged("Link annotation", annot.Ref().String()); err != nil {
			return t.doc.Fail(err)
		}
		return nil
	}
	e := &t.elems[id]
	sp := t.nextKey
	t.nextKey++
	annot.SetStructParent(sp)
	e.kids = append(e.kids, kid{kind: kidOBJR, obj: annot.Ref(), page: annot.Page()})
	if e.page.IsZero() {
		e.page = annot.Page()
	}
	t.parentTree[sp] = raw.RefTo(e.ref)
	return nil
}

func (t *Tree) finish() error {
	if t.page != nil {
		return fmt.Errorf("structure: %w", ErrPageOpen)
	}
	checker := t.doc.Checker()
	for i := range t.elems {
		e := &t.elems[i]
		loc := fmt.Sprintf("StructElem %s %s", e.typ, e.ref)
		if err := checker.StructElem(t.standardType(e.typ), e.alt, e.actual, loc); err != nil {
			return err
		}
		if _, err := t.doc.DefineDictionary(e.ref, t.elementDict(e), true); err != nil {
			return err
		}
	}

	keys := make([]int, 0, len(t.parentTree))
	for k := range t.parentTree {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	nums := raw.NewArray()
	for _, k := range keys {
		nums.Append(raw.Int(k))
		nums.Append(t.parentTree[k])
	}
	pt := raw.Dict()
	pt.Set("Nums", nums)
	ptRef := t.doc.Reserve()
	if _, err := t.doc.DefineDictionary(ptRef, pt, true); err != nil {
		return err
	}

	root := raw.Dict()
	root.Set("Type", raw.NameLiteral("StructTreeRoot"))
	kids := raw.NewArray()
	for _, id := range t.top {
		kids.Append(raw.RefTo(t.elems[id].ref))
	}
	root.Set("K", kids)
	root.Set("ParentTree", raw.RefTo(ptRef))
	root.Set("ParentTreeNextKey", raw.Int(t.nextKey))
	if len(t.roleMap) > 0 {
		rm := raw.Dict()
		for custom, std := range t.roleMap {
			rm.Set(custom, raw.NameLiteral(std))
		}
		root.Set("RoleMap", rm)
	}
	if _, err := t.doc.DefineDictionary(t.ref, root, true); err != nil {
		return err
	}
	t.doc.Catalog().Dict.Set("StructTreeRoot", raw.RefTo(t.ref))
	t.log.Debug("structure tree", observability.Int("elements", len(t.elems)), observability.Int("parent_keys", len(keys)))
	return nil
}

func (t *Tree) elementDict(e *element) *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("StructElem"))
	d.Set("S", raw.NameLiteral(e.typ))
	if e.parent == NoElement {
		d.Set("P", raw.RefTo(t.ref))
	} else {
		d.Set("P", raw.RefTo(t.elems[e.parent].ref))
	}
	if !e.page.IsZero() {
		d.Set("Pg", raw.RefTo(e.page))
	}
	if len(e.kids) > 0 {
		k := raw.NewArray()
		for _, c := range e.kids {
			switch c.kind {
			case kidElement:
				k.Append(raw.RefTo(t.elems[c.elem].ref))
			case kidMCR:
				mcr := raw.Dict()
				mcr.Set("Type", raw.NameLiteral("MCR"))
				mcr.Set("Pg", raw.RefTo(c.page))
				mcr.Set("MCID", raw.Int(c.mcid))
				k.Append(mcr)
			case kidOBJR:
				objr := raw.Dict()
				objr.Set("Type", raw.NameLiteral("OBJR"))
				objr.Set("Pg", raw.RefTo(c.page))
				objr.Set("Obj", raw.RefTo(c.obj))
				k.Append(objr)
			}
		}
		d.Set("K", k)
	}
	if e.alt != "" {
		d.Set("Alt", raw.Text(e.alt))
	}
	if e.actual != "" {
		d.Set("ActualText", raw.Text(e.actual))
	}
	if e.lang != "" {
		d.Set("Lang", raw.Text(e.lang))
	}
	if e.title != "" {
		d.Set("T", raw.Text(e.title))
	}
	if !e.bbox.Empty() {
		a := raw.Dict()
		a.Set("O", raw.NameLiteral("Layout"))
		a.Set("BBox", raw.Numbers(e.bbox.LLX, e.bbox.LLY, e.bbox.URX, e.bbox.URY))
		d.Set("A", a)
	}
	return d
}
