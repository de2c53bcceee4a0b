// Package outline builds the document outline (bookmarks). Nodes live in an
// arena and are linked by index; the tree is written with the trailer.
package outline

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfstream/ir/raw"
	"github.com/wudi/pdfstream/writer"
)

// NodeID is a handle into the outline arena.
type NodeID int

const (
	// Root is the outline dictionary itself.
	Root NodeID = 0
	none NodeID = -1
)

var (
	ErrNoNode   = errors.New("unknown outline node")
	ErrAttached = errors.New("outline node already has a parent")
	ErrCycle    = errors.New("outline node would contain itself")
)

type node struct {
	title  string
	parent NodeID
	first  NodeID
	last   NodeID
	prev   NodeID
	next   NodeID
	// count is the number of descendants.
	count  int
	open   bool
	dest   raw.Object
	action raw.ObjectRef
	ref    raw.ObjectRef
}

// Tree is the outline of one document.
type Tree struct {
	doc   *writer.Document
	nodes []node
}

// New creates an empty outline for doc. Nothing is written unless the root
// receives a child.
func New(doc *writer.Document) *Tree {
	t := &Tree{doc: doc, nodes: []node{{parent: none, first: none, last: none, prev: none, next: none}}}
	doc.OnTrailer(t.finish)
	return t
}

func (t *Tree) valid(id NodeID) bool { return id >= 0 && int(id) < len(t.nodes) }

// NewNode creates a detached entry. Attach it with AddChild.
func (t *Tree) NewNode(title string) NodeID {
	t.nodes = append(t.nodes, node{title: title, parent: none, first: none, last: none, prev: none, next: none})
	return NodeID(len(t.nodes) - 1)
}

// Add creates an entry and appends it under parent.
func (t *Tree) Add(parent NodeID, title string) (NodeID, error) {
	id := t.NewNode(title)
	return id, t.AddChild(parent, id)
}

// AddChild appends n as the last child of parent and adds n and its
// descendants to the count of every ancestor.
func (t *Tree) AddChild(parent, n NodeID) error {
	if !t.valid(parent) || !t.valid(n) {
		return fmt.Errorf("%w: %d under %d", ErrNoNode, n, parent)
	}
	if n == Root || t.nodes[n].parent != none {
		return fmt.Errorf("%w: %d", ErrAttached, n)
	}
	for a := parent; a != none; a = t.nodes[a].parent {
		if a == n {
			return fmt.Errorf("%w: %d", ErrCycle, n)
		}
	}
	p := &t.nodes[parent]
	c := &t.nodes[n]
	c.parent = parent
	if p.last != none {
		t.nodes[p.last].next = n
		c.prev = p.last
	} else {
		p.first = n
	}
	p.last = n
	added := 1 + c.count
	for a := parent; a != none; a = t.nodes[a].parent {
		t.nodes[a].count += added
	}
	return nil
}

// SetDest points the entry at (x, y) on page.
func (t *Tree) SetDest(id NodeID, page *writer.Page, x, y float64) error {
	if !t.valid(id) || id == Root {
		return fmt.Errorf("%w: %d", ErrNoNode, id)
	}
	t.nodes[id].dest = page.Dest(x, y)
	return nil
}

// SetAction makes the entry run a, for instance a forward GoTo from
// Document.Target.
func (t *Tree) SetAction(id NodeID, a *writer.Action) error {
	if !t.valid(id) || id == Root || a == nil {
		return fmt.Errorf("%w: %d", ErrNoNode, id)
	}
	t.nodes[id].action = a.Ref()
	return nil
}

// SetOpen shows the entry's children when the document opens.
func (t *Tree) SetOpen(id NodeID, open bool) error {
	if !t.valid(id) {
		return fmt.Errorf("%w: %d", ErrNoNode, id)
	}
	t.nodes[id].open = open
	return nil
}

// Count returns the number of descendants of id.
func (t *Tree) Count(id NodeID) int {
	if !t.valid(id) {
		return 0
	}
	return t.nodes[id].count
}

// Children lists the children of id in order.
func (t *Tree) Children(id NodeID) []NodeID {
	var out []NodeID
	if !t.valid(id) {
		return out
	}
	for c := t.nodes[id].first; c != none; c = t.nodes[c].next {
		out = append(out, c)
	}
	return out
}

func (t *Tree) Title(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].title
}

// Ref is the number the root was written under; zero before the trailer or
// when the outline is empty.
func (t *Tree) Ref() raw.ObjectRef { return t.nodes[Root].ref }

// finish numbers the attached nodes depth first and defines them as
// trailer objects. Detached nodes are dropped.
func (t *Tree) finish() error {
	if t.nodes[Root].first == none {
		return nil
	}
	var number func(id NodeID)
	number = func(id NodeID) {
		t.nodes[id].ref = t.doc.Reserve()
		for c := t.nodes[id].first; c != none; c = t.nodes[c].next {
			number(c)
		}
	}
	number(Root)

	var define func(id NodeID) error
	define = func(id NodeID) error {
		if _, err := t.doc.DefineDictionary(t.nodes[id].ref, t.dict(id), true); err != nil {
			return err
		}
		for c := t.nodes[id].first; c != none; c = t.nodes[c].next {
			if err := define(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := define(Root); err != nil {
		return err
	}
	cat := t.doc.Catalog().Dict
	cat.Set("Outlines", raw.RefTo(t.nodes[Root].ref))
	cat.Set("PageMode", raw.NameLiteral("UseOutlines"))
	return nil
}

func (t *Tree) dict(id NodeID) *raw.DictObj {
	n := t.nodes[id]
	ref := func(o NodeID) raw.Object { return raw.RefTo(t.nodes[o].ref) }
	d := raw.Dict()
	if id == Root {
		d.Set("Type", raw.NameLiteral("Outlines"))
		d.Set("First", ref(n.first))
		d.Set("Last", ref(n.last))
		return d
	}
	d.Set("Title", raw.Text(n.title))
	d.Set("Parent", ref(n.parent))
	if n.prev != none {
		d.Set("Prev", ref(n.prev))
	}
	if n.next != none {
		d.Set("Next", ref(n.next))
	}
	if n.first != none {
		d.Set("First", ref(n.first))
		d.Set("Last", ref(n.last))
		if n.open {
			d.Set("Count", raw.Int(n.count))
		} else {
			d.Set("Count", raw.Int(-n.count))
		}
	}
	switch {
	case !n.action.IsZero():
		d.Set("A", raw.RefTo(n.action))
	case n.dest != nil:
		d.Set("Dest", n.dest)
	}
	return d
}
