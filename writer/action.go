package writer

import (
	"fmt"
	"io"
	"net/url"

	"github.com/wudi/pdfstream/ir/raw"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/scripting"
)

// Action kinds.
const (
	ActionGoTo       = "GoTo"
	ActionGoToR      = "GoToR"
	ActionURI        = "URI"
	ActionLaunch     = "Launch"
	ActionJavaScript = "JavaScript"
	ActionNamed      = "Named"
)

// Action is an indirect action dictionary.
type Action struct {
	objectBase
	Kind string
	// Dest is the destination of GoTo and GoToR actions.
	Dest   raw.Object
	URI    string
	Script string
	File   string
	Named  string
	target string
}

func (a *Action) WriteTo(w io.Writer) (int64, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Action"))
	d.Set("S", raw.NameLiteral(a.Kind))
	switch a.Kind {
	case ActionGoTo:
		d.Set("D", a.Dest)
	case ActionGoToR:
		d.Set("F", raw.Text(a.File))
		d.Set("D", a.Dest)
	case ActionURI:
		d.Set("URI", raw.Str([]byte(a.URI)))
	case ActionLaunch:
		d.Set("F", raw.Text(a.File))
	case ActionJavaScript:
		d.Set("JS", raw.Text(a.Script))
	case ActionNamed:
		d.Set("N", raw.NameLiteral(a.Named))
	}
	return writeValue(w, a.ref, d)
}

func (d *Document) newAction(a *Action, name string) (*Action, error) {
	if err := d.fail(); err != nil {
		return nil, err
	}
	if err := d.checker.Action(a.Kind, name, "Action "+a.Kind); err != nil {
		return nil, d.setErr(err)
	}
	d.AddDocumentOrderObject(a)
	return a, nil
}

// NewGoTo jumps to (x, y) on page.
func (d *Document) NewGoTo(page *Page, x, y float64) (*Action, error) {
	return d.newAction(&Action{Kind: ActionGoTo, Dest: page.Dest(x, y)}, "")
}

// NewURI opens an absolute URI.
func (d *Document) NewURI(uri string) (*Action, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("uri action: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("uri action: %q is not absolute", uri)
	}
	return d.newAction(&Action{Kind: ActionURI, URI: uri}, "")
}

// NewJavaScript checks the script's syntax before embedding it.
func (d *Document) NewJavaScript(name, src string) (*Action, error) {
	if err := scripting.Check(name, src); err != nil {
		return nil, err
	}
	return d.newAction(&Action{Kind: ActionJavaScript, Script: src}, "")
}

// NewLaunch opens an external file.
func (d *Document) NewLaunch(file string) (*Action, error) {
	if file == "" {
		return nil, fmt.Errorf("launch action without file")
	}
	return d.newAction(&Action{Kind: ActionLaunch, File: file}, "")
}

// NewGoToRemote jumps to a zero-based page of another PDF file.
func (d *Document) NewGoToRemote(file string, page int) (*Action, error) {
	if file == "" || page < 0 {
		return nil, fmt.Errorf("remote go-to %q page %d", file, page)
	}
	dest := raw.NewArray(raw.Int(page), raw.NameLiteral("Fit"))
	return d.newAction(&Action{Kind: ActionGoToR, File: file, Dest: dest}, "")
}

// NewNamed runs a viewer action such as NextPage.
func (d *Document) NewNamed(name string) (*Action, error) {
	return d.newAction(&Action{Kind: ActionNamed, Named: name}, name)
}

// Target returns the GoTo action for a destination id that may not exist
// yet. The action is a trailer object; ResolveTarget fills in the page.
func (d *Document) Target(id string) *Action {
	if a, ok := d.targets[id]; ok {
		return a
	}
	a := &Action{Kind: ActionGoTo, target: id}
	if dest, ok := d.dests[id]; ok {
		a.Dest = dest
	}
	d.targets[id] = a
	d.targetOrder = append(d.targetOrder, id)
	d.AddTrailerObject(a)
	return a
}

// ResolveTarget defines destination id at (x, y) on page. Any action handed
// out by Target for id now points there, and id becomes a named destination.
func (d *Document) ResolveTarget(id string, page *Page, x, y float64) error {
	if err := d.fail(); err != nil {
		return err
	}
	if _, ok := d.dests[id]; ok {
		return fmt.Errorf("%w: destination %q", ErrDuplicateKey, id)
	}
	dest := page.Dest(x, y)
	d.dests[id] = dest
	if a, ok := d.targets[id]; ok {
		a.Dest = dest
		d.log.Debug("target resolved", observability.String("id", id), observability.Int("page", page.Index()))
	}
	return nil
}

// Dests returns the number of named destinations defined.
func (d *Document) Dests() int { return len(d.dests) }
