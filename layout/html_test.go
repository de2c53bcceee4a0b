package layout

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/pdfstream/builder"
	"github.com/wudi/pdfstream/structure"
)

// shape renders the element types below ids, children in parentheses.
func shape(tags *structure.Tree, ids []structure.ElementID) string {
	var parts []string
	for _, id := range ids {
		s := tags.Type(id)
		if kids := tags.Children(id); len(kids) > 0 {
			s += "(" + shape(tags, kids) + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

var marked = regexp.MustCompile(`/(\w+) << /MCID (\d+) >> BDC`)

func markedContent(out string) []string {
	var seq []string
	for _, m := range marked.FindAllStringSubmatch(out, -1) {
		seq = append(seq, m[1]+" "+m[2])
	}
	return seq
}

func TestHTMLMatchesMarkdown(t *testing.T) {
	md := "# Intro\n\nSee [intro](#intro) and [the site](https://example.com).\n\n- one\n- two\n\n## More\n"
	page := `<!DOCTYPE html>
<html lang="en">
<head><title>ignored</title><style>p { color: red }</style></head>
<body>
  <h1 id="intro">Intro</h1>
  <p>See <a href="#intro">intro</a>
     and <a href="https://example.com">the site</a>.</p>
  <ul>
    <li>one</li>
    <li>two</li>
  </ul>
  <h2 id="more">More</h2>
</body>
</html>`

	me, mb, mbuf := newEngine(t, true)
	if err := me.RenderMarkdown([]byte(md)); err != nil {
		t.Fatal(err)
	}
	mdShape := shape(mb.Structure(), mb.Structure().TopLevel())
	mdOut := finish(t, me, mb, mbuf)

	he, hb, hbuf := newEngine(t, true)
	if err := he.RenderHTML([]byte(page)); err != nil {
		t.Fatal(err)
	}
	htmlShape := shape(hb.Structure(), hb.Structure().TopLevel())
	htmlOut := finish(t, he, hb, hbuf)

	want := "Part(Sect(H1 P(Link Link) L(LI(Lbl LBody(P)) LI(Lbl LBody(P))) H2))"
	if mdShape != want {
		t.Errorf("markdown structure = %s", mdShape)
	}
	if diff := cmp.Diff(mdShape, htmlShape); diff != "" {
		t.Errorf("structure (-markdown +html):\n%s", diff)
	}

	mdMarks := markedContent(mdOut)
	if len(mdMarks) == 0 {
		t.Fatalf("markdown output has no marked content")
	}
	if diff := cmp.Diff(mdMarks, markedContent(htmlOut)); diff != "" {
		t.Errorf("marked content (-markdown +html):\n%s", diff)
	}
	for _, want := range []string{
		"/H1 << /MCID 0 >> BDC",
		"/Dests << /Names [(intro) [",
		"/URI (https://example.com)",
		"/Type /OBJR",
		"/Title (More)",
	} {
		if !strings.Contains(htmlOut, want) {
			t.Errorf("html output is missing %q", want)
		}
	}
	if strings.Contains(htmlOut, "ignored") {
		t.Errorf("head content was drawn")
	}
}

func TestMarkdownHTMLBlock(t *testing.T) {
	e, b, buf := newEngine(t, true)
	src := "# Notes\n\n<div>\n<p>Raw <b>bold</b> text</p>\n</div>\n\nAfter.<br>next\n"
	if err := e.RenderMarkdown([]byte(src)); err != nil {
		t.Fatal(err)
	}
	tags := b.Structure()
	if got, want := shape(tags, tags.TopLevel()), "Part(Sect(H1 Div(P) P))"; got != want {
		t.Errorf("structure = %s, want %s", got, want)
	}
	out := finish(t, e, b, buf)
	for _, want := range []string{"(bold) Tj", "/S /Div", "(next) Tj"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q", want)
		}
	}
}

func TestHTMLUntagged(t *testing.T) {
	e, b, buf := newEngine(t, false)
	src := "<h2>Code</h2><pre>a := 1\n\tb := 2\n</pre><hr><blockquote>quoted</blockquote>"
	if err := e.RenderHTML([]byte(src)); err != nil {
		t.Fatal(err)
	}
	out := finish(t, e, b, buf)
	if strings.Contains(out, "BDC") {
		t.Errorf("untagged output carries marked content")
	}
	for _, want := range []string{"(Code) Tj", "(a := 1) Tj", "(    b := 2) Tj", "(quoted) Tj"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q", want)
		}
	}
	if n := len(b.Outline().Children(0)); n != 1 {
		t.Errorf("outline entries = %d", n)
	}
}

func TestTableFromHTML(t *testing.T) {
	src := `<table>
<thead><tr><th>A</th><th>B</th></tr></thead>
<tbody><tr><td colspan="2" align="right">wide</td></tr><tr><td>1</td><td>2</td></tr></tbody>
</table>`
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	got := tableFromHTML(findElement(doc, atom.Table), 200)
	want := builder.Table{
		Columns:    []float64{100, 100},
		HeaderRows: 1,
		Rows: []builder.TableRow{
			{Cells: []builder.TableCell{{Text: "A"}, {Text: "B"}}},
			{Cells: []builder.TableCell{{Text: "wide", ColSpan: 2, HAlign: builder.HAlignRight}}},
			{Cells: []builder.TableCell{{Text: "1"}, {Text: "2"}}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table (-want +got):\n%s", diff)
	}

	e, b, buf := newEngine(t, true)
	if err := e.RenderHTML([]byte(src)); err != nil {
		t.Fatal(err)
	}
	tags := b.Structure()
	if got, want := shape(tags, tags.TopLevel()), "Part(Sect(Table(TR(TH TH) TR(TD) TR(TD TD))))"; got != want {
		t.Errorf("structure = %s, want %s", got, want)
	}
	finish(t, e, b, buf)
}

func TestCollapseWhiteSpace(t *testing.T) {
	spans := []TextSpan{{Text: " Hello  "}, {Text: "  "}, {Text: "world"}, {Text: "\n"}, {Text: " next "}, {Text: " "}}
	var got []string
	for _, s := range collapse(spans) {
		got = append(got, s.Text)
	}
	if diff := cmp.Diff([]string{"Hello ", "world", "\n", "next"}, got); diff != "" {
		t.Errorf("spans (-want +got):\n%s", diff)
	}
}
