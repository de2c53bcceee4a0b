package filters

import (
	"bytes"
	"compress/lzw"
	"compress/zlib"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfstream/ir/raw"
)

func TestFlateDecode(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write([]byte("hello world"))
	w.Close()

	dec := NewFlateDecoder()
	out, err := dec.Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithPredictor(t *testing.T) {
	var comp bytes.Buffer
	w := zlib.NewWriter(&comp)
	// PNG predictor row: filter byte 1 (Sub), then row bytes.
	w.Write([]byte{1, 10, 12, 20})
	w.Close()

	params := raw.Dict()
	params.Set("Predictor", raw.Int(12))
	params.Set("Colors", raw.Int(1))
	params.Set("BitsPerComponent", raw.Int(8))
	params.Set("Columns", raw.Int(3))

	dec := NewFlateDecoder()
	out, err := dec.Decode(context.Background(), comp.Bytes(), params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 22, 42}
	if !bytes.Equal(out, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", out, want)
	}
}

func TestLZWDecodeEarlyChangeZero(t *testing.T) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	w.Write([]byte("TOBEORNOTTOBEORTOBEORNOT"))
	w.Close()

	params := raw.Dict()
	params.Set("EarlyChange", raw.Int(0))
	out, err := NewLZWDecoder().Decode(context.Background(), buf.Bytes(), params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "TOBEORNOTTOBEORTOBEORNOT" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRunLengthDecode(t *testing.T) {
	in := []byte{2, 'a', 'b', 'c', 253, 'z', 128}
	out, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "abczzzz" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	out, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48656C6C6F>"), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "Hello" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCIIHexEncoding(t *testing.T) {
	var c Chain
	c.Add(ASCIIHex{})
	out, frag, err := c.Apply([]byte{0, 255})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if string(out) != "00FF>" {
		t.Fatalf("payload = %q, want %q", out, "00FF>")
	}
	d := raw.Dict()
	frag.ApplyTo(d)
	if got := string(raw.Serialize(d)); got != "<< /Filter /ASCIIHexDecode >>" {
		t.Fatalf("dict = %s", got)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	var c Chain
	c.Add(ASCIIHex{})
	c.Add(ASCII85{})
	first, frag1, err := c.Apply([]byte("stream payload"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	second, frag2, err := c.Apply(first)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second apply changed the buffer: %q -> %q", first, second)
	}
	if string(raw.Serialize(frag1.Filter)) != string(raw.Serialize(frag2.Filter)) {
		t.Fatalf("fragment changed between applies")
	}
	if c.Pending() {
		t.Fatalf("chain still pending after apply")
	}
}

func TestChainReverseOrder(t *testing.T) {
	fl, err := NewFlate(DefaultLevel, &Predictor{Predictor: 12, Colors: 3, Columns: 4})
	if err != nil {
		t.Fatalf("flate: %v", err)
	}
	var c Chain
	c.Add(fl)
	c.Add(ASCII85{})
	_, frag, err := c.Apply(make([]byte, 24))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	d := raw.Dict()
	frag.ApplyTo(d)
	want := "<< /DecodeParms [null << /Colors 3 /Columns 4 /Predictor 12 >>] /Filter [/ASCII85Decode /FlateDecode] >>"
	if got := string(raw.Serialize(d)); got != want {
		t.Fatalf("dict mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

func TestAppliedStageIsNotReencoded(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	var c Chain
	c.AddApplied(DCT{})
	out, frag, err := c.Apply(jpeg)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !bytes.Equal(out, jpeg) {
		t.Fatalf("passthrough modified payload")
	}
	if got := string(raw.Serialize(frag.Filter)); got != "/DCTDecode" {
		t.Fatalf("filter = %s", got)
	}
	if frag.DecodeParms != nil {
		t.Fatalf("unexpected DecodeParms")
	}
}

func TestCCITTParms(t *testing.T) {
	var c Chain
	c.AddApplied(CCITT{K: -1, Columns: 2480, Rows: 3508, BlackIs1: true})
	_, frag, _ := c.Apply([]byte{0})
	want := "<< /BlackIs1 true /Columns 2480 /K -1 /Rows 3508 >>"
	if got := string(raw.Serialize(frag.DecodeParms)); got != want {
		t.Fatalf("parms = %s, want %s", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("BT /F1 12 Tf (aaaaaaaa) Tj ET\n"), 40)
	pred, err := NewFlate(DefaultLevel, &Predictor{Predictor: 15, Colors: 1, Columns: 30})
	if err != nil {
		t.Fatalf("flate: %v", err)
	}
	tiff, err := NewFlate(DefaultLevel, &Predictor{Predictor: 2, Colors: 3, Columns: 10})
	if err != nil {
		t.Fatalf("flate: %v", err)
	}
	tests := []struct {
		name   string
		stages []Encoder
	}{
		{"flate", []Encoder{&Flate{Level: DefaultLevel}}},
		{"png-up", []Encoder{pred}},
		{"tiff", []Encoder{tiff}},
		{"lzw", []Encoder{LZW{}}},
		{"run-length", []Encoder{RunLength{}}},
		{"hex-85", []Encoder{ASCIIHex{}, ASCII85{}}},
		{"flate-85", []Encoder{&Flate{Level: DefaultLevel}, ASCII85{}}},
	}
	p := NewDefaultPipeline()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Chain
			for _, e := range tt.stages {
				c.Add(e)
			}
			enc, frag, err := c.Apply(payload)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			d := raw.Dict()
			frag.ApplyTo(d)
			names, params := ExtractFilters(d)
			dec, err := p.Decode(context.Background(), enc, names, params)
			if err != nil {
				t.Fatalf("decode %v: %v", names, err)
			}
			if !bytes.Equal(dec, payload) {
				t.Fatalf("round trip mismatch")
			}
		})
	}
}

func TestInvalidPredictor(t *testing.T) {
	cases := []*Predictor{
		{Predictor: 7},
		{Predictor: 2, BitsPerComponent: 4},
		{Predictor: 12, BitsPerComponent: 3},
		{Predictor: 12, Columns: -1},
	}
	for _, p := range cases {
		if _, err := NewFlate(DefaultLevel, p); !errors.Is(err, ErrInvalidFilter) {
			t.Fatalf("predictor %+v: err = %v, want ErrInvalidFilter", *p, err)
		}
	}
}

func TestPredictorRowMismatch(t *testing.T) {
	fl, err := NewFlate(DefaultLevel, &Predictor{Predictor: 12, Columns: 5})
	if err != nil {
		t.Fatalf("flate: %v", err)
	}
	if _, err := fl.Encode(make([]byte, 7)); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("err = %v, want ErrInvalidFilter", err)
	}
}

func TestResolve(t *testing.T) {
	cfg := map[string][]string{
		KindDefault: {"ascii-hex"},
		KindImage:   {"flate", "ascii-85"},
		KindFont:    {"null"},
	}
	tests := []struct {
		kind string
		cfg  map[string][]string
		want []string
	}{
		{KindImage, cfg, []string{"flate", "ascii-85"}},
		{KindContent, cfg, []string{"ascii-hex"}},
		{KindFont, cfg, []string{"null"}},
		{KindContent, nil, []string{"flate"}},
		{KindJPEG, nil, []string{"null"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Resolve(tt.cfg, tt.kind)); diff != "" {
			t.Fatalf("Resolve(%s) mismatch (-want +got):\n%s", tt.kind, diff)
		}
	}
	encs, err := ForKind(cfg, KindFont, DefaultLevel)
	if err != nil || len(encs) != 0 {
		t.Fatalf("null filter produced %d encoders, err %v", len(encs), err)
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("jbig2", DefaultLevel); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("err = %v, want ErrInvalidFilter", err)
	}
}

func TestUnknownDecoder(t *testing.T) {
	p := NewPipeline(nil, Limits{})
	if _, err := p.Decode(context.Background(), []byte("x"), []string{"Foo"}, nil); err == nil {
		t.Fatalf("expected error for unknown filter")
	}
}

func TestPipelineSizeLimit(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(make([]byte, 4096))
	w.Close()

	tight := NewPipeline([]Decoder{NewFlateDecoder()}, Limits{MaxDecompressedSize: 1024})
	if _, err := tight.Decode(context.Background(), buf.Bytes(), []string{NameFlate}, nil); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
	loose := NewPipeline([]Decoder{NewFlateDecoder()}, Limits{MaxDecompressedSize: 4096})
	out, err := loose.Decode(context.Background(), buf.Bytes(), []string{NameFlate}, nil)
	if err != nil || len(out) != 4096 {
		t.Fatalf("decode at the limit: %d bytes, err %v", len(out), err)
	}
}

// stallDecoder blocks until its context ends.
type stallDecoder struct{}

func (stallDecoder) Name() string { return "Stall" }
func (stallDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPipelineTimeLimit(t *testing.T) {
	p := NewPipeline([]Decoder{stallDecoder{}}, Limits{MaxDecodeTime: 20 * time.Millisecond})
	start := time.Now()
	_, err := p.Decode(context.Background(), []byte("x"), []string{"Stall"}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("decode ran for %v", elapsed)
	}
}
