package builder

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/wudi/pdfstream/contentstream"
	"github.com/wudi/pdfstream/coords"
	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/outline"
	"github.com/wudi/pdfstream/structure"
	"github.com/wudi/pdfstream/writer"
	"github.com/wudi/pdfstream/xref"
)

func newBuilder(t *testing.T, tagged bool) (*Builder, *bytes.Buffer) {
	t.Helper()
	doc, err := writer.New(writer.Config{
		Deterministic: true,
		Tagged:        tagged,
		Filters:       map[string][]string{filters.KindDefault: {"null"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	return New(doc, &buf), &buf
}

func closeAndRead(t *testing.T, b *Builder, buf *bytes.Buffer) string {
	t.Helper()
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := xref.Read(buf.Bytes()); err != nil {
		t.Fatalf("xref: %v", err)
	}
	return buf.String()
}

func TestPageIsWrittenOnFinish(t *testing.T) {
	b, buf := newBuilder(t, false)
	page, err := b.NewPage(612, 792)
	if err != nil {
		t.Fatal(err)
	}
	red := contentstream.RGB(1, 0, 0)
	page.DrawText("Hello", 72, 720, TextOptions{Color: &red})
	if buf.Len() != 0 {
		t.Fatalf("bytes written before the page finished")
	}
	if err := page.Finish(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"%PDF-1.7", "1 0 0 rg\nBT\n/F1 12 Tf\n72 720 Td\n(Hello) Tj\nET\n", "/BaseFont /Helvetica"} {
		if !strings.Contains(out, want) {
			t.Errorf("flushed output lacks %q", want)
		}
	}
	if strings.Contains(out, "xref") {
		t.Errorf("trailer written early")
	}
	if err := page.Finish(); !errors.Is(err, ErrNoPage) {
		t.Errorf("second finish: %v", err)
	}
	closeAndRead(t, b, buf)
}

func TestOnePageAtATime(t *testing.T) {
	b, _ := newBuilder(t, false)
	if _, err := b.NewPage(100, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := b.NewPage(100, 100); !errors.Is(err, ErrPageOpen) {
		t.Fatalf("got %v", err)
	}
	if b.Current() == nil {
		t.Fatal("no current page")
	}
}

func TestDrawingErrorsStick(t *testing.T) {
	b, _ := newBuilder(t, false)
	page, _ := b.NewPage(100, 100)
	page.DrawText("x", 0, 0, TextOptions{Font: "Missing"})
	size := page.Generator().Len()
	page.DrawLine(0, 0, 10, 10, LineOptions{})
	if page.Generator().Len() != size {
		t.Errorf("page kept drawing after an error")
	}
	if err := page.Finish(); !errors.Is(err, ErrUnknownFont) {
		t.Fatalf("got %v", err)
	}
	if b.Document().Err() == nil {
		t.Errorf("document not failed")
	}
}

func TestTaggedDrawing(t *testing.T) {
	b, buf := newBuilder(t, true)
	tags := b.Structure()
	if _, err := tags.AddElement(structure.NoElement, "p1", "P"); err != nil {
		t.Fatal(err)
	}
	if _, err := tags.AddElement(structure.NoElement, "fig", "Figure"); err != nil {
		t.Fatal(err)
	}
	page, _ := b.NewPage(300, 300)
	page.DrawText("Body", 10, 200, TextOptions{Key: "p1"})
	page.DrawLine(10, 190, 290, 190, LineOptions{})
	page.DrawRectangle(10, 10, 50, 50, RectOptions{Key: "fig"})
	page.DrawText("unregistered", 10, 100, TextOptions{Key: "nope"})
	out := closeAndRead(t, b, buf)
	for _, want := range []string{
		"/P << /MCID 0 >> BDC\nBT\n",
		"/Artifact BMC\nq\n10 190 m\n290 190 l\nS\nQ\nEMC\n",
		"/Figure << /MCID 1 >> BDC\nq\n10 10 50 50 re\nS\nQ\nEMC\n",
		"/StructParents 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}
	if n := strings.Count(out, "/Artifact BMC"); n != 2 {
		t.Errorf("%d artifacts, want 2", n)
	}
}

func TestTableOverflowRepeatsHeader(t *testing.T) {
	b, buf := newBuilder(t, true)
	page, _ := b.NewPage(200, 200)
	table := Table{Columns: []float64{80, 80}, HeaderRows: 1}
	table.Rows = append(table.Rows, TableRow{Cells: []TableCell{{Text: "Name"}, {Text: "Qty", HAlign: HAlignRight}}})
	for i := 0; i < 12; i++ {
		table.Rows = append(table.Rows, TableRow{Cells: []TableCell{{Text: "item"}, {Text: "1", HAlign: HAlignRight}}})
	}
	last, _, err := page.DrawTable(table, TableOptions{X: 10, TopMargin: 10, BottomMargin: 10, Key: "t", Parent: structure.NoElement})
	if err != nil {
		t.Fatal(err)
	}
	if last == page {
		t.Fatal("table did not continue on a new page")
	}
	if got := b.Document().Pages().Count(); got < 2 {
		t.Fatalf("%d pages", got)
	}
	out := closeAndRead(t, b, buf)
	if n := strings.Count(out, "(Name) Tj"); n != b.Document().Pages().Count() {
		t.Errorf("header drawn %d times on %d pages", n, b.Document().Pages().Count())
	}
	if n := len(regexp.MustCompile(`/S /TD\b`).FindAllString(out, -1)); n != 24 {
		t.Errorf("%d TD elements, want 24", n)
	}
	for _, want := range []string{"/S /Table", "/S /TH", "/S /TR"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}
}

func TestLinksAnchorsAndBookmarks(t *testing.T) {
	b, buf := newBuilder(t, false)
	doc := b.Document()
	first, _ := b.NewPage(612, 792)
	first.AddLink(writer.Rect{LLX: 72, LLY: 700, URX: 200, URY: 714}, doc.Target("appendix"), "", "see appendix")
	if _, err := first.Bookmark(outline.Root, "Start", 0, 792); err != nil {
		t.Fatal(err)
	}
	if err := first.Finish(); err != nil {
		t.Fatal(err)
	}
	second, _ := b.NewPage(612, 792)
	second.Anchor("appendix", 0, 792)
	if _, err := second.Bookmark(outline.Root, "Appendix", 0, 792); err != nil {
		t.Fatal(err)
	}
	second.AddNote(writer.Rect{LLX: 10, LLY: 10, URX: 30, URY: 30}, "remember")
	out := closeAndRead(t, b, buf)
	for _, want := range []string{"/Subtype /Link", "/Subtype /Text", "/Dests << /Names [(appendix) [", "/Outlines ", "/Title (Appendix)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}
	if got := b.Outline().Count(outline.Root); got != 2 {
		t.Errorf("outline has %d entries", got)
	}
}

func TestTemplateAndShading(t *testing.T) {
	b, buf := newBuilder(t, false)
	doc := b.Document()
	form, err := b.NewTemplate(writer.Rect{URX: 10, URY: 10}, func(g *contentstream.Generator) {
		g.SetFillColor(contentstream.RGB(0, 0, 1))
		g.Rect(0, 0, 10, 10)
		g.Fill()
	})
	if err != nil {
		t.Fatal(err)
	}
	sh, err := doc.NewShading(writer.Shading{Type: writer.Axial, ColorSpace: "DeviceRGB", Coords: []float64{0, 0, 100, 0}, C0: []float64{1, 0, 0}, C1: []float64{0, 0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	pat, err := doc.NewShadingPattern(sh, writer.Identity)
	if err != nil {
		t.Fatal(err)
	}
	page, _ := b.NewPage(100, 100)
	page.DrawTemplate(form, coords.Translate(20, 20), ImageOptions{})
	page.FillShading(pat, nil, 0, 0, 100, 50)
	out := closeAndRead(t, b, buf)
	for _, want := range []string{"/Fm1 Do", "/Pattern cs /Pa1 scn", "/Subtype /Form", "/ShadingType 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}
	if err := page.FillShading(nil, nil, 0, 0, 1, 1).Err(); err == nil {
		t.Errorf("missing pattern accepted")
	}
}

func TestMeasureText(t *testing.T) {
	b, _ := newBuilder(t, false)
	if got := b.MeasureText("Hello", "", 10); got < 22.7 || got > 22.8 {
		t.Errorf("Hello at 10pt measured %v", got)
	}
	if got := b.MeasureText("x", "Missing", 10); got != 0 {
		t.Errorf("unknown font measured %v", got)
	}
}
