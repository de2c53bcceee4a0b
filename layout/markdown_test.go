package layout

import (
	"bytes"
	"image"
	pngenc "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfstream/builder"
	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/structure"
	"github.com/wudi/pdfstream/writer"
	"github.com/wudi/pdfstream/xref"
)

func newEngine(t *testing.T, tagged bool, opts ...Option) (*Engine, *builder.Builder, *bytes.Buffer) {
	t.Helper()
	doc, err := writer.New(writer.Config{
		Deterministic: true,
		Tagged:        tagged,
		Lang:          "en",
		Filters:       map[string][]string{filters.KindDefault: {"null"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	b := builder.New(doc, &buf)
	return NewEngine(b, opts...), b, &buf
}

func finish(t *testing.T, e *Engine, b *builder.Builder, buf *bytes.Buffer) string {
	t.Helper()
	if err := e.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := xref.Read(buf.Bytes()); err != nil {
		t.Fatalf("xref: %v", err)
	}
	return buf.String()
}

const sample = `# Title

See [part two](#part-two) and [the site](https://example.com).

- one
- two

## Part Two

    code line

| A | B |
|---|---|
| 1 | 2 |
`

func types(tags *structure.Tree, ids []structure.ElementID) []string {
	var out []string
	for _, id := range ids {
		out = append(out, tags.Type(id))
	}
	return out
}

func TestMarkdownStructure(t *testing.T) {
	e, b, buf := newEngine(t, true)
	if err := e.RenderMarkdown([]byte(sample)); err != nil {
		t.Fatal(err)
	}
	tags := b.Structure()
	seq, ok := tags.Lookup("md1")
	if !ok {
		t.Fatalf("page sequence not registered")
	}
	flow := tags.Children(seq)
	if len(flow) != 1 {
		t.Fatalf("regions = %d", len(flow))
	}
	blocks := tags.Children(flow[0])
	if diff := cmp.Diff([]string{"H1", "P", "L", "H2", "Code", "Table"}, types(tags, blocks)); diff != "" {
		t.Errorf("block order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Link", "Link"}, types(tags, tags.Children(blocks[1]))); diff != "" {
		t.Errorf("paragraph kids (-want +got):\n%s", diff)
	}
	items := tags.Children(blocks[2])
	if diff := cmp.Diff([]string{"LI", "LI"}, types(tags, items)); diff != "" {
		t.Errorf("list kids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Lbl", "LBody"}, types(tags, tags.Children(items[0]))); diff != "" {
		t.Errorf("item kids (-want +got):\n%s", diff)
	}

	out := finish(t, e, b, buf)
	for _, want := range []string{
		"/StructTreeRoot",
		"/S /Link",
		"/Type /OBJR",
		"/URI (https://example.com)",
		"/Dests << /Names [(part-two) [",
		"/Outlines",
		"/Title (Title)",
		"/Title (Part Two)",
		"/H1 << /MCID 0 >> BDC",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q", want)
		}
	}
}

func TestMarkdownUntagged(t *testing.T) {
	e, b, buf := newEngine(t, false)
	if err := e.RenderMarkdown([]byte(sample)); err != nil {
		t.Fatal(err)
	}
	if b.Structure() != nil {
		t.Fatalf("untagged document has a structure tree")
	}
	out := finish(t, e, b, buf)
	if strings.Contains(out, "/StructTreeRoot") || strings.Contains(out, "BDC") {
		t.Errorf("untagged output carries marked content")
	}
	for _, want := range []string{"(code line) Tj", "(Title) Tj", "/Subtype /Link"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q", want)
		}
	}
}

func TestMarkdownBreaksPages(t *testing.T) {
	e, b, buf := newEngine(t, true, WithPageSize(300, 300))
	var src strings.Builder
	for i := 0; i < 30; i++ {
		src.WriteString("A paragraph that needs a line or two on a small page.\n\n")
	}
	if err := e.RenderMarkdown([]byte(src.String())); err != nil {
		t.Fatal(err)
	}
	if err := e.Finish(); err != nil {
		t.Fatal(err)
	}
	if n := b.Document().Pages().Count(); n < 2 {
		t.Fatalf("pages = %d, want a break", n)
	}
	finish(t, e, b, buf)
}

var shown = regexp.MustCompile(`\((.*?)\) Tj`)

func TestLinesStayInsideMargins(t *testing.T) {
	e, b, buf := newEngine(t, false, WithPageSize(200, 400))
	src := "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda\n\nsupercalifragilisticexpialidocious"
	if err := e.RenderMarkdown([]byte(src)); err != nil {
		t.Fatal(err)
	}
	out := finish(t, e, b, buf)
	lines := shown.FindAllStringSubmatch(out, -1)
	if len(lines) < 5 {
		t.Fatalf("got %d lines, want the text wrapped", len(lines))
	}
	var joined strings.Builder
	for _, m := range lines {
		text := strings.TrimSpace(m[1])
		if w := b.MeasureText(text, "", 12); w > 100.01 {
			t.Errorf("line %q is %.2f wide", text, w)
		}
		joined.WriteString(text)
	}
	if !strings.Contains(joined.String(), "supercalifragilisticexpialidocious") {
		t.Errorf("long word lost: %q", joined.String())
	}
}

func TestHeadingsNestInOutline(t *testing.T) {
	e, b, buf := newEngine(t, false)
	src := "# One\n\n## One.A\n\n## One.B\n\n# Two\n"
	if err := e.RenderMarkdown([]byte(src)); err != nil {
		t.Fatal(err)
	}
	tree := b.Outline()
	top := tree.Children(0)
	if len(top) != 2 {
		t.Fatalf("top level entries = %d", len(top))
	}
	if got := len(tree.Children(top[0])); got != 2 {
		t.Errorf("One has %d children", got)
	}
	if got := tree.Title(top[1]); got != "Two" {
		t.Errorf("second title = %q", got)
	}
	finish(t, e, b, buf)
}

func TestImagesBecomeFigures(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	var png bytes.Buffer
	if err := pngenc.Encode(&png, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), png.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	e, b, buf := newEngine(t, true, WithBaseDir(dir))
	src := "![The logo](logo.png)\n\nAgain: ![The logo](logo.png)\n\n![gone](missing.png)\n"
	if err := e.RenderMarkdown([]byte(src)); err != nil {
		t.Fatal(err)
	}
	out := finish(t, e, b, buf)
	if n := strings.Count(out, "/Subtype /Image"); n != 1 {
		t.Errorf("image embedded %d times", n)
	}
	if n := strings.Count(out, "/Im1 Do"); n != 2 {
		t.Errorf("image drawn %d times", n)
	}
	for _, want := range []string{"/Alt (The logo)", "/Alt (gone)", "/S /Figure", "([gone]) Tj"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q", want)
		}
	}
}
