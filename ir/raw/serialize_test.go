package raw

import (
	"bytes"
	"testing"
	"time"
)

func TestSerializePrimitives(t *testing.T) {
	cases := []struct {
		name string
		obj  Object
		want string
	}{
		{"name", NameLiteral("Type"), "/Type"},
		{"escaped name", NameLiteral("A B#"), "/A#20B#23"},
		{"int", NumberInt(42), "42"},
		{"real", NumberFloat(612), "612"},
		{"real fraction", NumberFloat(0.125), "0.125"},
		{"negative zero", NumberFloat(-0.000001), "0"},
		{"bool", Bool(true), "true"},
		{"null", NullObj{}, "null"},
		{"literal", Str([]byte("a(b)\\")), `(a\(b\)\\)`},
		{"octal", Str([]byte{0x01, 0xff}), `(\001\377)`},
		{"hex", HexStr([]byte{0x00, 0xab}), "<00AB>"},
		{"array", NewArray(Int(0), Int(0), Int(612), Int(792)), "[0 0 612 792]"},
		{"ref", Ref(12, 0), "12 0 R"},
		{"empty dict", Dict(), "<< >>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(Serialize(tc.obj)); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestDictKeysSorted(t *testing.T) {
	d := Dict()
	d.Set("Type", NameLiteral("Page"))
	d.Set("Count", Int(1))
	d.Set("Kids", NewArray(Ref(3, 0)))
	got := string(Serialize(d))
	want := "<< /Count 1 /Kids [3 0 R] /Type /Page >>"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	d.Set("Kids", nil)
	if _, ok := d.Get("Kids"); ok {
		t.Fatalf("nil value should delete key")
	}
}

func TestTextString(t *testing.T) {
	if got := Text("Chapter 1"); !bytes.Equal(got.Bytes, []byte("Chapter 1")) {
		t.Fatalf("ascii text should stay literal, got %q", got.Bytes)
	}
	got := Text("Ünïcode")
	if !bytes.HasPrefix(got.Bytes, []byte{0xFE, 0xFF}) {
		t.Fatalf("expected UTF-16BE BOM, got % x", got.Bytes)
	}
	if len(got.Bytes) != 2+2*7 {
		t.Fatalf("unexpected UTF-16 length %d", len(got.Bytes))
	}
}

func TestReferenceFormatting(t *testing.T) {
	r := ObjectRef{Num: 7}
	if r.String() != "7 0 R" {
		t.Fatalf("got %q", r.String())
	}
	if !(ObjectRef{}).IsZero() {
		t.Fatalf("zero ref should report IsZero")
	}
}

func TestDate(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)
	if got := string(Date(ts).Bytes); got != "D:20240305102030Z" {
		t.Fatalf("got %q", got)
	}
	east := time.FixedZone("x", 5*3600+30*60)
	if got := string(Date(ts.In(east)).Bytes); got != "D:20240305155030+05'30'" {
		t.Fatalf("got %q", got)
	}
}
