package layout

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/pdfstream/builder"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/structure"
)

// RenderHTML lays out the body of an HTML document. Like RenderMarkdown it
// walks the document twice under the same keys, once to declare structure
// elements and once to draw.
func (e *Engine) RenderHTML(source []byte) error {
	doc, err := html.Parse(bytes.NewReader(source))
	if err != nil {
		return err
	}
	if err := e.prepareFonts(); err != nil {
		return err
	}
	var nodes []*html.Node
	if body := findElement(doc, atom.Body); body != nil {
		nodes = children(body)
	}
	e.sources++
	key := structure.Key("html" + strconv.Itoa(e.sources))

	if tags := e.b.Structure(); tags != nil {
		lang := e.doc.Lang()
		if root := findElement(doc, atom.Html); root != nil {
			if l, ok := attr(root, "lang"); ok && l != "" {
				lang = l
			}
		}
		seq, err := tags.PageSequence(key, lang)
		if err != nil {
			return err
		}
		flow, err := tags.Region(seq, "flow")
		if err != nil {
			return err
		}
		d := &htmlDeclarer{e: e, tags: tags}
		if err := d.blocks(flow, nodes, key); err != nil {
			return err
		}
	}
	r := &htmlRenderer{e: e}
	if err := r.blocks(nodes, key, e.Margins.Left); err != nil {
		return err
	}
	e.log.Debug("html rendered", observability.Int("bytes", len(source)), observability.Int("elements", e.elements()))
	return nil
}

// parseHTMLFragment parses markup as the content of a body element.
func parseHTMLFragment(src []byte) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(src), body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return nodes, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

var htmlSkipped = map[atom.Atom]bool{
	atom.Head: true, atom.Title: true, atom.Meta: true, atom.Link: true,
	atom.Script: true, atom.Style: true, atom.Template: true, atom.Noscript: true,
}

var htmlBlocks = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.P: true, atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Pre: true,
	atom.Hr: true, atom.Table: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Main: true, atom.Header: true, atom.Footer: true, atom.Nav: true, atom.Aside: true,
	atom.Figure: true, atom.Body: true, atom.Html: true,
}

// Grouping elements not listed add no structure element of their own.
var htmlContainers = map[atom.Atom]string{
	atom.Div:     "Div",
	atom.Section: "Sect",
	atom.Article: "Art",
}

var htmlHeadings = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// htmlItem is one block of a container: a block element, or a run of
// inline content that reads as an anonymous paragraph.
type htmlItem struct {
	elem   *html.Node
	inline []*html.Node
	key    structure.Key
}

// htmlItems groups nodes into blocks and keys them in document order.
func htmlItems(nodes []*html.Node, key structure.Key) []htmlItem {
	var items []htmlItem
	var run []*html.Node
	flush := func() {
		if !blank(run) {
			items = append(items, htmlItem{inline: run, key: childKey(key, len(items))})
		}
		run = nil
	}
	for _, n := range nodes {
		switch {
		case n.Type == html.ElementNode && htmlSkipped[n.DataAtom]:
		case n.Type == html.ElementNode && htmlBlocks[n.DataAtom]:
			flush()
			items = append(items, htmlItem{elem: n, key: childKey(key, len(items))})
		case n.Type == html.TextNode || n.Type == html.ElementNode:
			run = append(run, n)
		}
	}
	flush()
	return items
}

func blank(run []*html.Node) bool {
	for _, n := range run {
		if n.Type != html.TextNode || strings.TrimSpace(n.Data) != "" {
			return false
		}
	}
	return true
}

func listItems(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			out = append(out, c)
		}
	}
	return out
}

// rawText concatenates the text below n as written.
func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// textContent is the text below n with white space collapsed.
func textContent(n *html.Node) string {
	return strings.Join(strings.Fields(rawText(n)), " ")
}

func preLines(n *html.Node) []string {
	text := strings.TrimSuffix(rawText(n), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func imageAlt(n *html.Node) string {
	if alt, _ := attr(n, "alt"); alt != "" {
		return alt
	}
	src, _ := attr(n, "src")
	return filepath.Base(src)
}

// tableFromHTML converts a table element. Rows in thead, and leading rows
// made only of th cells, are header rows.
func tableFromHTML(n *html.Node, width float64) builder.Table {
	var rows []*html.Node
	var head []bool
	var collect func(n *html.Node, inHead bool)
	collect = func(n *html.Node, inHead bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				rows = append(rows, c)
				head = append(head, inHead)
			case atom.Thead:
				collect(c, true)
			case atom.Tbody, atom.Tfoot:
				collect(c, false)
			}
		}
	}
	collect(n, false)

	var t builder.Table
	cols := 0
	inHeader := true
	for i, row := range rows {
		var tr builder.TableRow
		allTH := true
		span := 0
		for c := row.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
				continue
			}
			if c.DataAtom != atom.Th {
				allTH = false
			}
			cell := builder.TableCell{Text: textContent(c)}
			if v, ok := attr(c, "colspan"); ok {
				if n, err := strconv.Atoi(v); err == nil && n > 1 {
					cell.ColSpan = n
				}
			}
			align, _ := attr(c, "align")
			switch strings.ToLower(align) {
			case "center":
				cell.HAlign = builder.HAlignCenter
			case "right":
				cell.HAlign = builder.HAlignRight
			}
			tr.Cells = append(tr.Cells, cell)
			span += max(cell.ColSpan, 1)
		}
		if inHeader && (head[i] || allTH && len(tr.Cells) > 0) {
			t.HeaderRows++
		} else {
			inHeader = false
		}
		cols = max(cols, span)
		t.Rows = append(t.Rows, tr)
	}
	for i := 0; i < cols; i++ {
		t.Columns = append(t.Columns, width/float64(cols))
	}
	return t
}

// htmlDeclarer is the construction pass over HTML.
type htmlDeclarer struct {
	e    *Engine
	tags *structure.Tree
}

func (d *htmlDeclarer) blocks(parent structure.ElementID, nodes []*html.Node, key structure.Key) error {
	for _, it := range htmlItems(nodes, key) {
		if err := d.item(parent, it); err != nil {
			return err
		}
	}
	return nil
}

func (d *htmlDeclarer) item(parent structure.ElementID, it htmlItem) error {
	if it.elem == nil {
		id, err := d.tags.AddElement(parent, it.key, "P")
		if err != nil {
			return err
		}
		return d.inlines(id, it.inline, it.key)
	}
	n := it.elem
	if level, ok := htmlHeadings[n.DataAtom]; ok {
		id, err := d.tags.AddElement(parent, it.key, "H"+strconv.Itoa(level))
		if err != nil {
			return err
		}
		return d.inlines(id, children(n), it.key)
	}
	switch n.DataAtom {
	case atom.P:
		id, err := d.tags.AddElement(parent, it.key, "P")
		if err != nil {
			return err
		}
		return d.inlines(id, children(n), it.key)
	case atom.Ul, atom.Ol:
		list, err := d.tags.AddElement(parent, it.key, "L")
		if err != nil {
			return err
		}
		for i, li := range listItems(n) {
			ik := childKey(it.key, i)
			item, err := d.tags.AddElement(list, ik, "LI")
			if err != nil {
				return err
			}
			if _, err := d.tags.AddElement(item, ik+"/lbl", "Lbl"); err != nil {
				return err
			}
			body, err := d.tags.AddElement(item, ik+"/body", "LBody")
			if err != nil {
				return err
			}
			if err := d.blocks(body, children(li), ik); err != nil {
				return err
			}
		}
		return nil
	case atom.Blockquote:
		id, err := d.tags.AddElement(parent, it.key, "BlockQuote")
		if err != nil {
			return err
		}
		return d.blocks(id, children(n), it.key)
	case atom.Pre:
		_, err := d.tags.AddElement(parent, it.key, "Code")
		return err
	case atom.Hr:
		return nil
	case atom.Table:
		return d.e.b.DeclareTable(tableFromHTML(n, 1), it.key, parent)
	}
	if typ, ok := htmlContainers[n.DataAtom]; ok {
		id, err := d.tags.AddElement(parent, it.key, typ)
		if err != nil {
			return err
		}
		return d.blocks(id, children(n), it.key)
	}
	return d.blocks(parent, children(n), it.key)
}

// inlines declares Link and Figure elements found inside a block.
func (d *htmlDeclarer) inlines(parent structure.ElementID, nodes []*html.Node, key structure.Key) error {
	for i, c := range nodes {
		if c.Type != html.ElementNode || htmlSkipped[c.DataAtom] {
			continue
		}
		ck := childKey(key, i)
		switch c.DataAtom {
		case atom.A:
			if _, ok := attr(c, "href"); ok {
				if _, err := d.tags.AddElement(parent, ck, "Link"); err != nil {
					return err
				}
				continue
			}
		case atom.Img:
			id, err := d.tags.AddElement(parent, ck, "Figure")
			if err != nil {
				return err
			}
			if err := d.tags.SetAlt(id, imageAlt(c)); err != nil {
				return err
			}
			continue
		}
		if err := d.inlines(parent, children(c), ck); err != nil {
			return err
		}
	}
	return nil
}

// htmlRenderer is the content pass over HTML.
type htmlRenderer struct {
	e *Engine
}

func (r *htmlRenderer) blocks(nodes []*html.Node, key structure.Key, x float64) error {
	for _, it := range htmlItems(nodes, key) {
		if err := r.item(it, x); err != nil {
			return err
		}
	}
	return nil
}

func (r *htmlRenderer) item(it htmlItem, x float64) error {
	e := r.e
	if it.elem == nil {
		spans, figures := r.inlines(it.inline, it.key, style{font: e.DefaultFont, size: e.DefaultFontSize})
		return e.paragraph(spans, figures, x, false)
	}
	n := it.elem
	if level, ok := htmlHeadings[n.DataAtom]; ok {
		anchor, _ := attr(n, "id")
		spans, figures := r.inlines(children(n), it.key, style{font: e.BoldFont, size: e.headingSize(level)})
		return e.heading(level, anchor, textContent(n), spans, figures, x)
	}
	switch n.DataAtom {
	case atom.P:
		spans, figures := r.inlines(children(n), it.key, style{font: e.DefaultFont, size: e.DefaultFontSize})
		return e.paragraph(spans, figures, x, true)
	case atom.Ul, atom.Ol:
		return r.list(n, it.key, x)
	case atom.Blockquote:
		return r.blocks(children(n), it.key, x+20)
	case atom.Pre:
		return e.codeLines(preLines(n), it.key, x)
	case atom.Hr:
		return e.rule(x)
	case atom.Table:
		return e.drawTable(tableFromHTML(n, e.available(x)), it.key, x)
	}
	return r.blocks(children(n), it.key, x)
}

func (r *htmlRenderer) list(n *html.Node, key structure.Key, x float64) error {
	e := r.e
	size := e.DefaultFontSize
	ordered := n.DataAtom == atom.Ol
	number := 1
	if v, ok := attr(n, "start"); ok {
		if s, err := strconv.Atoi(v); err == nil {
			number = s
		}
	}
	for i, li := range listItems(n) {
		ik := childKey(key, i)
		if err := e.ensureSpace(size * e.LineHeight); err != nil {
			return err
		}
		label := "•"
		if ordered {
			label = fmt.Sprintf("%d.", number)
			number++
		}
		e.page.DrawText(label, x, e.cursorY-size, builder.TextOptions{Font: e.DefaultFont, FontSize: size, Key: ik + "/lbl"})
		if err := r.blocks(children(li), ik, x+18); err != nil {
			return err
		}
	}
	e.spacing(size)
	return e.pageErr()
}

func isHTMLSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

// inlines turns inline nodes into spans, as the markdown pass does. Images
// are returned separately and drawn below the text.
func (r *htmlRenderer) inlines(nodes []*html.Node, key structure.Key, st style) ([]TextSpan, []figure) {
	e := r.e
	var spans []TextSpan
	var figures []figure
	add := func(s string, owner structure.Key, st style, link *TextSpan) {
		span := TextSpan{Text: s, Font: st.font, FontSize: st.size, Strikethrough: st.strike, Key: owner}
		if link != nil {
			span.Link = link.Link
			span.Color = link.Color
		}
		spans = append(spans, span)
	}
	var walk func(nodes []*html.Node, key, owner structure.Key, st style, link *TextSpan)
	walk = func(nodes []*html.Node, key, owner structure.Key, st style, link *TextSpan) {
		for i, c := range nodes {
			ck := childKey(key, i)
			if c.Type == html.TextNode {
				// Source line breaks are white space; "\n" is kept for <br>.
				add(strings.Map(func(r rune) rune {
					if isHTMLSpace(r) {
						return ' '
					}
					return r
				}, c.Data), owner, st, link)
				continue
			}
			if c.Type != html.ElementNode || htmlSkipped[c.DataAtom] {
				continue
			}
			next := st
			switch c.DataAtom {
			case atom.Br:
				add("\n", owner, st, link)
				continue
			case atom.Img:
				src, _ := attr(c, "src")
				alt, _ := attr(c, "alt")
				figures = append(figures, figure{src: src, alt: alt, key: ck})
				continue
			case atom.A:
				if href, ok := attr(c, "href"); ok {
					walk(children(c), ck, ck, st, e.linkAction(href))
					continue
				}
			case atom.Strong, atom.B:
				next.font = e.BoldFont
			case atom.Em, atom.I, atom.Cite, atom.Var:
				next.font = e.ItalicFont
			case atom.Code, atom.Kbd, atom.Samp, atom.Tt:
				next.font = e.MonoFont
			case atom.Del, atom.S, atom.Strike:
				next.strike = true
			}
			walk(children(c), ck, owner, next, link)
		}
	}
	walk(nodes, key, key, st, nil)
	return collapse(spans), figures
}

// collapse applies HTML white space rules across spans: a run of spaces
// shows as one, and none remain at either end of the block or after a
// line break.
func collapse(spans []TextSpan) []TextSpan {
	out := spans[:0]
	space := true
	for _, s := range spans {
		var sb strings.Builder
		for _, r := range s.Text {
			switch {
			case r == '\n':
				sb.WriteRune(r)
				space = true
			case r == ' ':
				if !space {
					sb.WriteByte(' ')
				}
				space = true
			default:
				sb.WriteRune(r)
				space = false
			}
		}
		s.Text = sb.String()
		if s.Text != "" {
			out = append(out, s)
		}
	}
	for len(out) > 0 {
		last := &out[len(out)-1]
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			break
		}
		out = out[:len(out)-1]
	}
	return out
}
