package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfstream/cmm"
	"github.com/wudi/pdfstream/compliance"
	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/ir/raw"
	"github.com/wudi/pdfstream/xref"
)

func newTestDoc(t *testing.T, cfg Config) *Document {
	t.Helper()
	cfg.Deterministic = true
	if cfg.Filters == nil {
		cfg.Filters = map[string][]string{filters.KindDefault: {"null"}}
	}
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return d
}

// verifyOffsets checks that every xref entry points at its object header.
func verifyOffsets(t *testing.T, data []byte) *xref.Table {
	t.Helper()
	tbl, err := xref.Read(data)
	if err != nil {
		t.Fatalf("read xref: %v", err)
	}
	for _, num := range tbl.Objects() {
		off, gen, _ := tbl.Lookup(num)
		want := fmt.Sprintf("%d %d obj\n", num, gen)
		if off < 0 || int(off)+len(want) > len(data) || string(data[off:int(off)+len(want)]) != want {
			t.Fatalf("object %d: offset %d does not point at %q", num, off, want)
		}
	}
	scanned := xref.Scan(data)
	if len(scanned) != len(tbl.Objects()) {
		t.Fatalf("scanned %d object headers, xref lists %d", len(scanned), len(tbl.Objects()))
	}
	return tbl
}

func TestSingleEmptyPage(t *testing.T) {
	d := newTestDoc(t, Config{})
	if _, err := d.NewPage(612, 792); err != nil {
		t.Fatalf("new page: %v", err)
	}
	var buf bytes.Buffer
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatalf("write trailer: %v", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")) {
		t.Fatalf("unexpected header %q", out[:16])
	}
	if got := len(regexp.MustCompile(`/Type /Page[^s]`).FindAll(out, -1)); got != 1 {
		t.Errorf("found %d page objects, want 1", got)
	}
	if !bytes.Contains(out, []byte("/Count 1 ")) || !bytes.Contains(out, []byte("/Type /Pages")) {
		t.Errorf("page tree missing /Count 1:\n%s", out)
	}
	if !bytes.Contains(out, []byte("/MediaBox [0 0 612 792]")) {
		t.Errorf("media box missing")
	}
	tbl := verifyOffsets(t, out)
	objects := len(xref.Scan(out))
	if tbl.Size != objects+1 {
		t.Errorf("size %d, want %d", tbl.Size, objects+1)
	}
	if !bytes.Contains(out, []byte(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R", objects+1))) {
		t.Errorf("trailer not found:\n%s", out[bytes.LastIndex(out, []byte("trailer")):])
	}
	if !bytes.HasSuffix(out, []byte("\n%%EOF\n")) {
		t.Errorf("missing EOF marker")
	}
}

func TestOmitID(t *testing.T) {
	d := newTestDoc(t, Config{OmitID: true})
	if _, err := d.NewPage(612, 792); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.Bytes()
	objects := len(xref.Scan(out))
	want := fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n", objects+1)
	if !bytes.Contains(out, []byte(want)) {
		t.Errorf("trailer is not %q:\n%s", want, out[bytes.LastIndex(out, []byte("trailer")):])
	}
	verifyOffsets(t, out)

	// PDF/A requires the identifier regardless.
	d = newTestDoc(t, Config{
		OmitID:     true,
		Profiles:   []compliance.Profile{compliance.PDFA2B},
		ICCProfile: cmm.SRGB(),
	})
	if _, err := d.NewPage(612, 792); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("/ID [<")) {
		t.Errorf("PDF/A trailer lost its file identifier")
	}
}

func TestObjectNumbersIncrease(t *testing.T) {
	d := newTestDoc(t, Config{})
	last := d.Highest()
	next := func(r raw.ObjectRef) {
		t.Helper()
		if r.Num <= last {
			t.Fatalf("object number %d after %d", r.Num, last)
		}
		last = r.Num
	}
	for i := 0; i < 5; i++ {
		p, err := d.NewPage(100, 100)
		if err != nil {
			t.Fatal(err)
		}
		next(p.Ref())
		s, err := d.NewContentStream()
		if err != nil {
			t.Fatal(err)
		}
		next(s.Ref())
		next(d.Reserve())
		next(d.NewDictionary(raw.Dict()).Ref())
	}
	if d.Highest() != last {
		t.Errorf("highest %d, want %d", d.Highest(), last)
	}
}

func TestStreamLengthCountsNewline(t *testing.T) {
	d := newTestDoc(t, Config{})
	s, err := d.NewContentStream()
	if err != nil {
		t.Fatal(err)
	}
	s.WriteString("BT ET")
	var buf bytes.Buffer
	if err := d.Flush(&buf); err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%d 0 obj\n<< /Length 6 >>\nstream\nBT ET\nendstream\nendobj\n", s.Ref().Num)
	if !strings.HasSuffix(buf.String(), want) {
		t.Errorf("stream framing:\n%q\nwant suffix\n%q", buf.String(), want)
	}
}

func TestStreamFiltersApplyOnce(t *testing.T) {
	d := newTestDoc(t, Config{Filters: map[string][]string{filters.KindContent: {"ascii-hex"}}})
	s, err := d.NewContentStream()
	if err != nil {
		t.Fatal(err)
	}
	s.Write([]byte{0, 255})
	frag, err := s.ApplyFilters()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyFilters(); err != nil {
		t.Fatal(err)
	}
	if got := string(s.Bytes()); got != "00FF>" {
		t.Errorf("payload %q", got)
	}
	if got := raw.Serialize(frag.Filter); string(got) != "/ASCIIHexDecode" {
		t.Errorf("filter %s", got)
	}
}

func TestFlushStreamsPages(t *testing.T) {
	d := newTestDoc(t, Config{})
	var buf bytes.Buffer
	var prefixes [][]byte
	for i := 0; i < 3; i++ {
		p, err := d.NewPage(200, 200)
		if err != nil {
			t.Fatal(err)
		}
		s, err := d.NewContentStream()
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(s, "0 0 %d %d re f", 10*(i+1), 10*(i+1))
		p.AddContent(s)
		if err := d.Flush(&buf); err != nil {
			t.Fatal(err)
		}
		if len(d.pending) != 0 {
			t.Fatalf("pending objects left after flush: %d", len(d.pending))
		}
		prefixes = append(prefixes, append([]byte(nil), buf.Bytes()...))
	}
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatal(err)
	}
	for i, p := range prefixes {
		if !bytes.HasPrefix(buf.Bytes(), p) {
			t.Errorf("bytes flushed after page %d were rewritten", i)
		}
	}
	verifyOffsets(t, buf.Bytes())
	offsets := d.Offsets()
	scanned := xref.Scan(buf.Bytes())
	for num := 1; num < len(offsets); num++ {
		if offsets[num] != scanned[num] {
			t.Errorf("object %d recorded at %d, found at %d", num, offsets[num], scanned[num])
		}
	}
}

func TestForwardTarget(t *testing.T) {
	d := newTestDoc(t, Config{})
	var buf bytes.Buffer

	first, err := d.NewPage(612, 792)
	if err != nil {
		t.Fatal(err)
	}
	target := d.Target("chapter-2")
	rect, _ := NewRect(72, 700, 200, 714)
	if _, err := d.NewLink(first, rect, target, "Go to chapter 2"); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(&buf); err != nil {
		t.Fatal(err)
	}
	written := append([]byte(nil), buf.Bytes()...)
	actionNum := target.Ref().Num

	if again := d.Target("chapter-2"); again != target {
		t.Fatalf("Target returned a second action for the same id")
	}
	second, err := d.NewPage(612, 792)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.ResolveTarget("chapter-2", second, 0, 792); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, written) {
		t.Fatalf("previously written objects changed")
	}
	if target.Ref().Num != actionNum {
		t.Fatalf("action renumbered from %d to %d", actionNum, target.Ref().Num)
	}
	want := fmt.Sprintf("%d 0 obj\n<< /D [%d 0 R /XYZ 0 792 null] /S /GoTo /Type /Action >>", actionNum, second.Ref().Num)
	if !bytes.Contains(out, []byte(want)) {
		t.Errorf("resolved action %q not found", want)
	}
	if !bytes.Contains(out, []byte(fmt.Sprintf("/A %d 0 R", actionNum))) {
		t.Errorf("link does not reference the action")
	}
	if !bytes.Contains(out, []byte("/Dests << /Names [(chapter-2) [")) {
		t.Errorf("named destination missing")
	}
	verifyOffsets(t, out)
}

func TestUnresolvedTarget(t *testing.T) {
	d := newTestDoc(t, Config{})
	if _, err := d.NewPage(10, 10); err != nil {
		t.Fatal(err)
	}
	d.Target("nowhere")
	err := d.WriteTrailer(&bytes.Buffer{})
	if !errors.Is(err, ErrUnresolvedTarget) {
		t.Fatalf("expected ErrUnresolvedTarget, got %v", err)
	}
	if _, err := d.NewPage(10, 10); !errors.Is(err, ErrUnresolvedTarget) {
		t.Errorf("error is not sticky: %v", err)
	}
}

type nullObject struct{ ref raw.ObjectRef }

func (o nullObject) Ref() raw.ObjectRef { return o.ref }

func (o nullObject) WriteTo(w io.Writer) (int64, error) { return writeValue(w, o.ref, raw.NullObj{}) }

func TestUnreservedObject(t *testing.T) {
	d := newTestDoc(t, Config{})
	d.AddDocumentOrderObject(nullObject{ref: raw.ObjectRef{Num: 99}})
	err := d.Flush(&bytes.Buffer{})
	if !errors.Is(err, ErrUnreservedObject) {
		t.Fatalf("expected ErrUnreservedObject, got %v", err)
	}
}

func TestReservedObject(t *testing.T) {
	t.Run("defined", func(t *testing.T) {
		d := newTestDoc(t, Config{})
		ref := d.Reserve()
		d.AddDocumentOrderObject(nullObject{ref: ref})
		var buf bytes.Buffer
		if err := d.WriteTrailer(&buf); err != nil {
			t.Fatal(err)
		}
		verifyOffsets(t, buf.Bytes())
	})
	t.Run("never defined", func(t *testing.T) {
		d := newTestDoc(t, Config{})
		d.Reserve()
		err := d.WriteTrailer(&bytes.Buffer{})
		if !errors.Is(err, ErrUndefinedObject) {
			t.Fatalf("expected ErrUndefinedObject, got %v", err)
		}
	})
}

var errDiskFull = errors.New("disk full")

type failingWriter struct {
	limit int
	n     int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.limit {
		k := w.limit - w.n
		w.n = w.limit
		return k, errDiskFull
	}
	w.n += len(p)
	return len(p), nil
}

func TestWriteErrorIsReturnedUnchanged(t *testing.T) {
	d := newTestDoc(t, Config{})
	if _, err := d.NewPage(10, 10); err != nil {
		t.Fatal(err)
	}
	w := &failingWriter{limit: 20}
	if err := d.Flush(w); err != errDiskFull {
		t.Fatalf("flush error %v, want the sink error", err)
	}
	if err := d.WriteTrailer(&bytes.Buffer{}); err != errDiskFull {
		t.Errorf("trailer after failure returned %v", err)
	}
}

func TestWriteAfterFinish(t *testing.T) {
	d := newTestDoc(t, Config{})
	if err := d.WriteTrailer(&bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.NewPage(10, 10); !errors.Is(err, ErrFinished) {
		t.Errorf("expected ErrFinished, got %v", err)
	}
}

func TestHeaderIsWrittenOnce(t *testing.T) {
	d := newTestDoc(t, Config{})
	if _, err := d.NewPage(10, 10); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := d.Flush(&buf); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteHeader(&buf); !errors.Is(err, ErrHeaderWritten) {
		t.Fatalf("second header returned %v, want ErrHeaderWritten", err)
	}
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatalf("trailer after rejected header: %v", err)
	}
	if n := strings.Count(buf.String(), "%PDF-"); n != 1 {
		t.Errorf("header written %d times", n)
	}
	verifyOffsets(t, buf.Bytes())
}

func TestConformanceErrors(t *testing.T) {
	t.Run("lzw under PDF/A-1b", func(t *testing.T) {
		_, err := New(Config{
			Profiles: []compliance.Profile{compliance.PDFA1B},
			Filters:  map[string][]string{filters.KindContent: {"lzw"}},
		})
		var v *compliance.Violation
		if !errors.As(err, &v) || v.Code != "FLT001" {
			t.Fatalf("expected FLT001 violation, got %v", err)
		}
	})
	t.Run("transparency under PDF/A-1b", func(t *testing.T) {
		d := newTestDoc(t, Config{Profiles: []compliance.Profile{compliance.PDFA1B}})
		alpha := 0.5
		_, err := d.NewExtGState(ExtGState{FillAlpha: &alpha})
		var v *compliance.Violation
		if !errors.As(err, &v) || v.Code != "TRN001" {
			t.Fatalf("expected TRN001 violation, got %v", err)
		}
		if !errors.As(d.Err(), &v) {
			t.Errorf("violation did not abort the document")
		}
	})
	t.Run("attachment under PDF/A-1b", func(t *testing.T) {
		d := newTestDoc(t, Config{Profiles: []compliance.Profile{compliance.PDFA1B}})
		_, err := d.NewFileSpec("data.csv", "", []byte("a,b"), "text/csv")
		var v *compliance.Violation
		if !errors.As(err, &v) || v.Code != "ATT001" {
			t.Fatalf("expected ATT001 violation, got %v", err)
		}
	})
	t.Run("launch under PDF/A-2b", func(t *testing.T) {
		d := newTestDoc(t, Config{Profiles: []compliance.Profile{compliance.PDFA2B}})
		_, err := d.NewLaunch("notes.txt")
		var v *compliance.Violation
		if !errors.As(err, &v) || v.Code != "ACT001" {
			t.Fatalf("expected ACT001 violation, got %v", err)
		}
	})
	t.Run("missing output intent", func(t *testing.T) {
		d := newTestDoc(t, Config{Profiles: []compliance.Profile{compliance.PDFA2B}})
		if _, err := d.NewPage(10, 10); err != nil {
			t.Fatal(err)
		}
		err := d.WriteTrailer(&bytes.Buffer{})
		var v *compliance.Violation
		if !errors.As(err, &v) || v.Code != "INT001" {
			t.Fatalf("expected INT001 violation, got %v", err)
		}
	})
}

func TestConstructionErrors(t *testing.T) {
	d := newTestDoc(t, Config{})
	if _, err := d.NewPage(0, 792); !errors.Is(err, ErrInvalidRect) {
		t.Errorf("zero width page: %v", err)
	}
	page, err := d.NewPage(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.NewLink(page, Rect{0, 0, 10, 10}, nil, ""); !errors.Is(err, ErrMissingAction) {
		t.Errorf("link without action: %v", err)
	}
	if _, err := d.NewShadingPattern(nil, Identity); !errors.Is(err, ErrMissingShading) {
		t.Errorf("pattern without shading: %v", err)
	}
	if _, err := New(Config{Filters: map[string][]string{filters.KindImage: {"zip"}}}); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("unknown filter: %v", err)
	}
	if _, err := d.NewImage(ImageDesc{Width: 2, Height: 2, ColorSpace: "DeviceRGB", BitsPerComponent: 8, Samples: make([]byte, 5)}); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("short samples: %v", err)
	}
	if _, err := d.NewJavaScript("open.js", "app.alert("); err == nil {
		t.Errorf("broken script accepted")
	}
	if d.Err() != nil {
		t.Errorf("construction errors must not poison the document: %v", d.Err())
	}
}

type countingInterceptor struct {
	before, after int
	bytes         int64
}

func (c *countingInterceptor) BeforeWrite(Object) error { c.before++; return nil }

func (c *countingInterceptor) AfterWrite(_ Object, n int64) error {
	c.after++
	c.bytes += n
	return nil
}

func TestInterceptorsSeeEveryObject(t *testing.T) {
	ic := &countingInterceptor{}
	d := newTestDoc(t, Config{Interceptors: []Interceptor{ic}})
	if _, err := d.NewPage(300, 300); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatal(err)
	}
	objects := len(xref.Scan(buf.Bytes()))
	if ic.before != objects || ic.after != objects {
		t.Errorf("interceptor saw %d/%d objects, want %d", ic.before, ic.after, objects)
	}
	tbl, err := xref.Read(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	header := int64(len("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n"))
	if ic.bytes != tbl.StartXRef-header {
		t.Errorf("interceptor counted %d object bytes, want %d", ic.bytes, tbl.StartXRef-header)
	}
}

func buildSample(t *testing.T, cfg Config) []byte {
	t.Helper()
	d := newTestDoc(t, cfg)
	page, err := d.NewPage(612, 792)
	if err != nil {
		t.Fatal(err)
	}
	font, err := d.NewFontType1("Helvetica", nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := d.NewContentStream()
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(s, "BT /%s 12 Tf 72 720 Td (Hello) Tj ET", font.Name)
	page.AddContent(s)
	uri, err := d.NewURI("https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.NewLink(page, Rect{72, 700, 150, 730}, uri, "Example"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPageLabel(0, "r", "", 1); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDeterministicOutput(t *testing.T) {
	cfg := Config{
		Info:     Info{Title: "Sample", Author: "pdfstream"},
		Metadata: true,
		Filters:  map[string][]string{filters.KindDefault: {"flate"}},
	}
	a := buildSample(t, cfg)
	b := buildSample(t, cfg)
	if diff := cmp.Diff(string(a), string(b)); diff != "" {
		t.Errorf("output differs between runs (-first +second):\n%s", diff)
	}
	verifyOffsets(t, a)
	if !bytes.Contains(a, []byte("/ID [<")) {
		t.Errorf("file identifier missing")
	}
	if !bytes.Contains(a, []byte("/PageLabels << /Nums [0 << /S /r >>] >>")) {
		t.Errorf("page labels missing")
	}
}

func TestEmbeddedFilesAndScripts(t *testing.T) {
	d := newTestDoc(t, Config{})
	fs, err := d.NewFileSpec("data.csv", "Raw data", []byte("a,b\n1,2\n"), "text/csv")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Attach(fs); err != nil {
		t.Fatal(err)
	}
	if err := d.Attach(fs); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("duplicate attachment: %v", err)
	}
	if err := d.AddDocumentJavaScript("init", "var x = 1;"); err != nil {
		t.Fatal(err)
	}
	page, err := d.NewPage(100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.NewFileAttachmentAnnotation(page, Rect{10, 10, 30, 30}, fs); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := d.WriteTrailer(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"/EmbeddedFiles << /Names [(data.csv) " + fs.Ref().String() + "] >>",
		"/JavaScript << /Names [(init) ",
		"/Subtype /text#2Fcsv",
		"/Params << /Size 8 >>",
		"/FS " + fs.Ref().String(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}
	verifyOffsets(t, buf.Bytes())
}
