package xref_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfstream/ir/raw"
	"github.com/wudi/pdfstream/xref"
)

func buildSimplePDF(t *testing.T) ([]byte, []int64) {
	t.Helper()
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int64, 3)
	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 /Kids [] >>\nendobj\n")

	start := int64(buf.Len())
	if _, err := xref.WriteTable(buf, offsets); err != nil {
		t.Fatalf("write table: %v", err)
	}
	tr := xref.Trailer{Size: 3, Root: raw.ObjectRef{Num: 1}}
	if _, err := xref.WriteTrailer(buf, tr, start); err != nil {
		t.Fatalf("write trailer: %v", err)
	}
	return buf.Bytes(), offsets
}

func TestWriteTableFormat(t *testing.T) {
	var buf bytes.Buffer
	n, err := xref.WriteTable(&buf, []int64{0, 15, 120})
	if err != nil {
		t.Fatalf("write table: %v", err)
	}
	want := "xref\n0 3\n0000000000 65535 f \n0000000015 00000 n \n0000000120 00000 n \n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
	if n != int64(len(want)) {
		t.Fatalf("reported %d bytes, wrote %d", n, len(want))
	}
	for _, line := range strings.SplitAfter(buf.String(), "\n")[2:4] {
		if len(line) != 20 {
			t.Fatalf("entry %q is %d bytes, want 20", line, len(line))
		}
	}
}

func TestWriteTableUndefined(t *testing.T) {
	var buf bytes.Buffer
	_, err := xref.WriteTable(&buf, []int64{0, 15, xref.Placeholder, 40})
	if !errors.Is(err, xref.ErrUndefinedObject) {
		t.Fatalf("err = %v, want ErrUndefinedObject", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("table partially written on error")
	}
}

func TestWriteTrailer(t *testing.T) {
	var buf bytes.Buffer
	tr := xref.Trailer{Size: 7, Root: raw.ObjectRef{Num: 5}, Info: raw.ObjectRef{Num: 6}}
	if _, err := xref.WriteTrailer(&buf, tr, 1234); err != nil {
		t.Fatalf("write trailer: %v", err)
	}
	want := "trailer\n<< /Size 7 /Root 5 0 R /Info 6 0 R >>\nstartxref\n1234\n%%EOF\n"
	if buf.String() != want {
		t.Fatalf("trailer = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	tr.ID = [2][]byte{{0xAB, 0x01}, {0xAB, 0x01}}
	xref.WriteTrailer(&buf, tr, 1)
	if !strings.Contains(buf.String(), "/Info 6 0 R /ID [<AB01> <AB01>] >>") {
		t.Fatalf("ID not written: %q", buf.String())
	}
}

func TestReadRoundTrip(t *testing.T) {
	pdf, offsets := buildSimplePDF(t)
	table, err := xref.Read(pdf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if table.Size != 3 {
		t.Fatalf("size = %d, want 3", table.Size)
	}
	if diff := cmp.Diff([]int{1, 2}, table.Objects()); diff != "" {
		t.Fatalf("objects mismatch (-want +got):\n%s", diff)
	}
	for num := 1; num <= 2; num++ {
		off, gen, ok := table.Lookup(num)
		if !ok {
			t.Fatalf("object %d missing", num)
		}
		if off != offsets[num] || gen != 0 {
			t.Fatalf("object %d: offset %d gen %d, want %d 0", num, off, gen, offsets[num])
		}
		header := fmt.Sprintf("%d 0 obj", num)
		if !bytes.HasPrefix(pdf[off:], []byte(header)) {
			t.Fatalf("offset %d does not start %q", off, header)
		}
	}
	if _, _, ok := table.Lookup(0); ok {
		t.Fatalf("free entry reported in use")
	}
}

func TestScan(t *testing.T) {
	pdf, offsets := buildSimplePDF(t)
	found := xref.Scan(pdf)
	want := map[int]int64{1: offsets[1], 2: offsets[2]}
	if diff := cmp.Diff(want, found); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMissingStartXRef(t *testing.T) {
	if _, err := xref.Read([]byte("%PDF-1.4\n")); err == nil {
		t.Fatalf("expected error")
	}
}
