// Package xref writes the classic cross-reference table and trailer, and
// reads them back from a finished file.
package xref

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/pdfstream/ir/raw"
)

// ErrUndefinedObject reports an object number that was reserved but never
// written before the table was emitted.
var ErrUndefinedObject = errors.New("reserved object never defined")

// Placeholder marks an offset slot whose object has not been written.
const Placeholder int64 = -1

// Trailer holds the entries of the trailer dictionary.
type Trailer struct {
	Size int
	Root raw.ObjectRef
	Info raw.ObjectRef
	// ID is the file identifier pair; omitted when both halves are empty.
	ID [2][]byte
}

// WriteTable emits the table for offsets indexed by object number. Slot 0
// is the free list head and its value is ignored.
func WriteTable(w io.Writer, offsets []int64) (int64, error) {
	n := len(offsets)
	if n == 0 {
		n = 1
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < 0 {
			return 0, fmt.Errorf("%w: object %d", ErrUndefinedObject, i)
		}
	}
	buf := make([]byte, 0, 32+20*n)
	buf = fmt.Appendf(buf, "xref\n0 %d\n0000000000 65535 f \n", n)
	for i := 1; i < len(offsets); i++ {
		buf = fmt.Appendf(buf, "%010d 00000 n \n", offsets[i])
	}
	written, err := w.Write(buf)
	return int64(written), err
}

// WriteTrailer emits the trailer dictionary, startxref and the EOF marker.
func WriteTrailer(w io.Writer, t Trailer, startxref int64) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString("trailer\n<< /Size ")
	buf.WriteString(strconv.Itoa(t.Size))
	if !t.Root.IsZero() {
		buf.WriteString(" /Root ")
		buf.WriteString(t.Root.String())
	}
	if !t.Info.IsZero() {
		buf.WriteString(" /Info ")
		buf.WriteString(t.Info.String())
	}
	if len(t.ID[0]) > 0 || len(t.ID[1]) > 0 {
		buf.WriteString(" /ID ")
		buf.Write(raw.Serialize(raw.NewArray(raw.HexStr(t.ID[0]), raw.HexStr(t.ID[1]))))
	}
	fmt.Fprintf(&buf, " >>\nstartxref\n%d\n%%%%EOF\n", startxref)
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Table is a parsed classic cross-reference section.
type Table struct {
	StartXRef int64
	// Size is the subsection count, one greater than the highest object.
	Size    int
	entries map[int]entry
}

type entry struct {
	offset int64
	gen    int
}

// Lookup returns the offset and generation of an in-use object.
func (t *Table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

// Objects lists in-use object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Read locates the last startxref in data and parses the table it points at.
func Read(data []byte) (*Table, error) {
	startxref := bytes.LastIndex(data, []byte("startxref"))
	if startxref < 0 {
		return nil, errors.New("startxref not found")
	}
	rest := data[startxref+len("startxref"):]
	lines := bufio.NewScanner(bytes.NewReader(rest))
	var offset int64
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse startxref: %w", err)
		}
		offset = val
		break
	}

	if offset <= 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset out of range: %d", offset)
	}

	sc := bufio.NewScanner(bytes.NewReader(data[offset:]))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "xref" {
		return nil, errors.New("xref keyword not found at offset")
	}

	t := &Table{StartXRef: offset, entries: make(map[int]entry)}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			break
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid xref subsection header: %q", line)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("parse xref start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("parse xref count: %w", err)
		}
		if startObj+count > t.Size {
			t.Size = startObj + count
		}

		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, errors.New("unexpected end of xref section")
			}
			fields := strings.Fields(sc.Text())
			if len(fields) < 3 {
				return nil, fmt.Errorf("invalid xref entry: %q", sc.Text())
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("parse xref gen: %w", err)
			}
			if fields[2] != "n" {
				continue // free entry
			}
			t.entries[startObj+i] = entry{offset: off, gen: gen}
		}
	}
	return t, nil
}

// Scan finds every "<num> <gen> obj" header that starts a line and returns
// its byte offset keyed by object number.
func Scan(data []byte) map[int]int64 {
	found := make(map[int]int64)
	for pos := 0; pos < len(data); {
		end := bytes.IndexByte(data[pos:], '\n')
		if end < 0 {
			end = len(data) - pos
		}
		line := data[pos : pos+end]
		if f := strings.Fields(string(line)); len(f) == 3 && f[2] == "obj" {
			if num, err := strconv.Atoi(f[0]); err == nil {
				if _, err := strconv.Atoi(f[1]); err == nil {
					found[num] = int64(pos)
				}
			}
		}
		pos += end + 1
	}
	return found
}
