package writer

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/wudi/pdfstream/ir/raw"
)

// Object is an indirect object: it has an identity and writes its complete
// "N G obj ... endobj" framing.
type Object interface {
	Ref() raw.ObjectRef
	WriteTo(w io.Writer) (int64, error)
}

type numbered interface {
	Object
	setRef(raw.ObjectRef)
}

type objectBase struct {
	ref raw.ObjectRef
}

func (o *objectBase) Ref() raw.ObjectRef     { return o.ref }
func (o *objectBase) setRef(r raw.ObjectRef) { o.ref = r }
func (o *objectBase) refObj() raw.RefObj     { return raw.RefTo(o.ref) }

func writeValue(w io.Writer, ref raw.ObjectRef, v raw.Object) (int64, error) {
	buf := fmt.Appendf(nil, "%d %d obj\n", ref.Num, ref.Gen)
	buf = raw.Append(buf, v)
	buf = append(buf, "\nendobj\n"...)
	n, err := w.Write(buf)
	return int64(n), err
}

func writeStream(w io.Writer, ref raw.ObjectRef, d *raw.DictObj, payload []byte) (int64, error) {
	d.Set("Length", raw.Int(len(payload)+1))
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(raw.Serialize(d))
	buf.WriteString("\nstream\n")
	buf.Write(payload)
	buf.WriteString("\nendstream\nendobj\n")
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Dictionary is a generic indirect dictionary.
type Dictionary struct {
	objectBase
	Dict *raw.DictObj
}

func (d *Dictionary) WriteTo(w io.Writer) (int64, error) { return writeValue(w, d.ref, d.Dict) }

// Array is a generic indirect array.
type Array struct {
	objectBase
	Array *raw.ArrayObj
}

func (a *Array) WriteTo(w io.Writer) (int64, error) { return writeValue(w, a.ref, a.Array) }

// Rect is a rectangle in default user space.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// NewRect validates corners and returns the rectangle.
func NewRect(llx, lly, urx, ury float64) (Rect, error) {
	r := Rect{llx, lly, urx, ury}
	return r, r.Validate()
}

// Validate rejects non-finite coordinates and empty or inverted rectangles.
func (r Rect) Validate() error {
	for _, v := range []float64{r.LLX, r.LLY, r.URX, r.URY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidRect)
		}
	}
	if r.URX <= r.LLX || r.URY <= r.LLY {
		return fmt.Errorf("%w: [%g %g %g %g]", ErrInvalidRect, r.LLX, r.LLY, r.URX, r.URY)
	}
	return nil
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

func (r Rect) Array() *raw.ArrayObj { return raw.Numbers(r.LLX, r.LLY, r.URX, r.URY) }

// Matrix is a PDF transformation matrix [a b c d e f].
type Matrix [6]float64

var Identity = Matrix{1, 0, 0, 1, 0, 0}

func (m Matrix) Array() *raw.ArrayObj { return raw.Numbers(m[:]...) }
