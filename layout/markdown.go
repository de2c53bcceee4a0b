package layout

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/wudi/pdfstream/builder"
	"github.com/wudi/pdfstream/observability"
	"github.com/wudi/pdfstream/structure"
)

// RenderMarkdown lays out a markdown document. A tagged document is walked
// twice with the same keys: first to declare the structure elements, then
// to draw the content that refers to them.
func (e *Engine) RenderMarkdown(source []byte) error {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	root := md.Parser().Parse(text.NewReader(source))
	if err := e.prepareFonts(); err != nil {
		return err
	}
	e.sources++
	key := structure.Key("md" + strconv.Itoa(e.sources))

	if tags := e.b.Structure(); tags != nil {
		seq, err := tags.PageSequence(key, e.doc.Lang())
		if err != nil {
			return err
		}
		flow, err := tags.Region(seq, "flow")
		if err != nil {
			return err
		}
		d := &declarer{e: e, tags: tags, source: source}
		if err := d.blocks(flow, root, key); err != nil {
			return err
		}
	}
	r := &renderer{e: e, source: source}
	if err := r.blocks(root, key, e.Margins.Left); err != nil {
		return err
	}
	e.log.Debug("markdown rendered", observability.Int("bytes", len(source)), observability.Int("elements", e.elements()))
	return nil
}

func (e *Engine) elements() int {
	if tags := e.b.Structure(); tags != nil {
		return tags.Len()
	}
	return 0
}

// declarer is the construction pass.
type declarer struct {
	e      *Engine
	tags   *structure.Tree
	source []byte
}

func (d *declarer) blocks(parent structure.ElementID, n ast.Node, key structure.Key) error {
	i := 0
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if err := d.block(parent, c, childKey(key, i)); err != nil {
			return err
		}
		i++
	}
	return nil
}

func (d *declarer) block(parent structure.ElementID, n ast.Node, key structure.Key) error {
	switch n := n.(type) {
	case *ast.Heading:
		id, err := d.tags.AddElement(parent, key, "H"+strconv.Itoa(min(n.Level, 6)))
		if err != nil {
			return err
		}
		return d.inlines(id, n, key)
	case *ast.Paragraph, *ast.TextBlock:
		id, err := d.tags.AddElement(parent, key, "P")
		if err != nil {
			return err
		}
		return d.inlines(id, n, key)
	case *ast.List:
		list, err := d.tags.AddElement(parent, key, "L")
		if err != nil {
			return err
		}
		i := 0
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			ik := childKey(key, i)
			li, err := d.tags.AddElement(list, ik, "LI")
			if err != nil {
				return err
			}
			if _, err := d.tags.AddElement(li, ik+"/lbl", "Lbl"); err != nil {
				return err
			}
			body, err := d.tags.AddElement(li, ik+"/body", "LBody")
			if err != nil {
				return err
			}
			if err := d.blocks(body, item, ik); err != nil {
				return err
			}
			i++
		}
		return nil
	case *ast.Blockquote:
		id, err := d.tags.AddElement(parent, key, "BlockQuote")
		if err != nil {
			return err
		}
		return d.blocks(id, n, key)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		_, err := d.tags.AddElement(parent, key, "Code")
		return err
	case *east.Table:
		return d.e.b.DeclareTable(tableFromAST(n, d.source, 1), key, parent)
	case *ast.HTMLBlock:
		nodes, err := parseHTMLFragment(htmlBlockSource(n, d.source))
		if err != nil {
			return err
		}
		hd := &htmlDeclarer{e: d.e, tags: d.tags}
		return hd.blocks(parent, nodes, key)
	}
	return nil
}

// inlines declares Link and Figure elements found inside a block.
func (d *declarer) inlines(parent structure.ElementID, n ast.Node, key structure.Key) error {
	i := 0
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		ck := childKey(key, i)
		i++
		switch c := c.(type) {
		case *ast.Link, *ast.AutoLink:
			if _, err := d.tags.AddElement(parent, ck, "Link"); err != nil {
				return err
			}
		case *ast.Image:
			id, err := d.tags.AddElement(parent, ck, "Figure")
			if err != nil {
				return err
			}
			alt := inlineText(c, d.source)
			if alt == "" {
				alt = filepath.Base(string(c.Destination))
			}
			if err := d.tags.SetAlt(id, alt); err != nil {
				return err
			}
		default:
			if err := d.inlines(parent, c, ck); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderer is the content pass.
type renderer struct {
	e      *Engine
	source []byte
}

func (r *renderer) blocks(n ast.Node, key structure.Key, x float64) error {
	i := 0
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if err := r.block(c, childKey(key, i), x); err != nil {
			return err
		}
		i++
	}
	return nil
}

func (r *renderer) block(n ast.Node, key structure.Key, x float64) error {
	e := r.e
	switch n := n.(type) {
	case *ast.Heading:
		anchor := ""
		if id, ok := n.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				anchor = string(b)
			}
		}
		spans, figures := r.inlines(n, key, style{font: e.BoldFont, size: e.headingSize(n.Level)})
		return e.heading(n.Level, anchor, inlineText(n, r.source), spans, figures, x)
	case *ast.Paragraph, *ast.TextBlock:
		spans, figures := r.inlines(n, key, style{font: e.DefaultFont, size: e.DefaultFontSize})
		_, spaced := n.(*ast.Paragraph)
		return e.paragraph(spans, figures, x, spaced)
	case *ast.List:
		return r.list(n, key, x)
	case *ast.Blockquote:
		return r.blocks(n, key, x+20)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return e.codeLines(codeBlockLines(n, r.source), key, x)
	case *ast.ThematicBreak:
		return e.rule(x)
	case *east.Table:
		return e.drawTable(tableFromAST(n, r.source, e.available(x)), key, x)
	case *ast.HTMLBlock:
		nodes, err := parseHTMLFragment(htmlBlockSource(n, r.source))
		if err != nil {
			return err
		}
		hr := &htmlRenderer{e: e}
		return hr.blocks(nodes, key, x)
	}
	return e.pageErr()
}

func (r *renderer) list(n *ast.List, key structure.Key, x float64) error {
	e := r.e
	size := e.DefaultFontSize
	indent := 18.0
	number := n.Start
	if number == 0 {
		number = 1
	}
	i := 0
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		ik := childKey(key, i)
		i++
		if err := e.ensureSpace(size * e.LineHeight); err != nil {
			return err
		}
		label := "•"
		if n.IsOrdered() {
			label = fmt.Sprintf("%d.", number)
			number++
		}
		e.page.DrawText(label, x, e.cursorY-size, builder.TextOptions{Font: e.DefaultFont, FontSize: size, Key: ik + "/lbl"})
		if err := r.blocks(item, ik, x+indent); err != nil {
			return err
		}
	}
	if n.IsTight {
		e.spacing(size)
	}
	return nil
}

func codeBlockLines(n ast.Node, source []byte) []string {
	var out []string
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, strings.TrimRight(string(seg.Value(source)), "\r\n"))
	}
	return out
}

// htmlBlockSource returns the raw markup of an HTML block.
func htmlBlockSource(n *ast.HTMLBlock, source []byte) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	if n.HasClosure() {
		buf.Write(n.ClosureLine.Value(source))
	}
	return buf.Bytes()
}

// isBreak reports whether raw inline HTML is a <br> tag.
func isBreak(n *ast.RawHTML, source []byte) bool {
	var sb strings.Builder
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		sb.Write(seg.Value(source))
	}
	tag := strings.ToLower(sb.String())
	return tag == "<br>" || strings.HasPrefix(tag, "<br/") || strings.HasPrefix(tag, "<br ")
}

// inlines turns the inline children of a block into spans. Images are
// returned separately and drawn below the text.
func (r *renderer) inlines(n ast.Node, key structure.Key, st style) ([]TextSpan, []figure) {
	var spans []TextSpan
	var figures []figure
	var walk func(n ast.Node, key, owner structure.Key, st style, link *TextSpan)
	add := func(s string, owner structure.Key, st style, link *TextSpan) {
		span := TextSpan{Text: s, Font: st.font, FontSize: st.size, Strikethrough: st.strike, Key: owner}
		if link != nil {
			span.Link = link.Link
			span.Color = link.Color
		}
		spans = append(spans, span)
	}
	walk = func(n ast.Node, key, owner structure.Key, st style, link *TextSpan) {
		i := 0
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			ck := childKey(key, i)
			i++
			switch c := c.(type) {
			case *ast.Text:
				s := string(c.Segment.Value(r.source))
				switch {
				case c.HardLineBreak():
					s += "\n"
				case c.SoftLineBreak():
					s += " "
				}
				add(s, owner, st, link)
			case *ast.String:
				add(string(c.Value), owner, st, link)
			case *ast.CodeSpan:
				add(inlineText(c, r.source), owner, style{font: r.e.MonoFont, size: st.size}, link)
			case *ast.Emphasis:
				next := st
				next.font = r.e.ItalicFont
				if c.Level >= 2 {
					next.font = r.e.BoldFont
				}
				walk(c, ck, owner, next, link)
			case *east.Strikethrough:
				next := st
				next.strike = true
				walk(c, ck, owner, next, link)
			case *ast.Link:
				walk(c, ck, ck, st, r.e.linkAction(string(c.Destination)))
			case *ast.AutoLink:
				u := string(c.URL(r.source))
				add(u, ck, st, r.e.linkAction(u))
			case *ast.Image:
				figures = append(figures, figure{src: string(c.Destination), alt: inlineText(c, r.source), key: ck})
			case *ast.RawHTML:
				if isBreak(c, r.source) {
					add("\n", owner, st, link)
				}
			default:
				walk(c, ck, owner, st, link)
			}
		}
	}
	walk(n, key, key, st, nil)
	return spans, figures
}

// tableFromAST converts a table node. Columns share width evenly.
func tableFromAST(n *east.Table, source []byte, width float64) builder.Table {
	var t builder.Table
	cols := 0
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var tr builder.TableRow
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			tc := builder.TableCell{Text: inlineText(cell, source)}
			if c, ok := cell.(*east.TableCell); ok {
				switch c.Alignment {
				case east.AlignCenter:
					tc.HAlign = builder.HAlignCenter
				case east.AlignRight:
					tc.HAlign = builder.HAlignRight
				}
			}
			tr.Cells = append(tr.Cells, tc)
		}
		if _, ok := row.(*east.TableHeader); ok {
			t.HeaderRows++
		}
		cols = max(cols, len(tr.Cells))
		t.Rows = append(t.Rows, tr)
	}
	for i := 0; i < cols; i++ {
		t.Columns = append(t.Columns, width/float64(max(cols, 1)))
	}
	return t
}

// inlineText concatenates the text below n.
func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.Text:
				sb.Write(c.Segment.Value(source))
				if c.SoftLineBreak() || c.HardLineBreak() {
					sb.WriteByte(' ')
				}
			case *ast.String:
				sb.Write(c.Value)
			case *ast.AutoLink:
				sb.Write(c.URL(source))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
