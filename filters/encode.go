package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"compress/zlib"
	"encoding/ascii85"
	"fmt"

	"github.com/wudi/pdfstream/ir/raw"
)

// PDF filter names.
const (
	NameASCIIHex  = "ASCIIHexDecode"
	NameASCII85   = "ASCII85Decode"
	NameFlate     = "FlateDecode"
	NameRunLength = "RunLengthDecode"
	NameLZW       = "LZWDecode"
	NameDCT       = "DCTDecode"
	NameCCITT     = "CCITTFaxDecode"
)

// Encoder is one stage of a stream's filter chain.
type Encoder interface {
	// Name is the PDF filter name written to /Filter.
	Name() string
	Encode(data []byte) ([]byte, error)
	// DecodeParms returns the stage's /DecodeParms entry, or nil.
	DecodeParms() *raw.DictObj
}

// ASCIIHex encodes bytes as uppercase hex digits terminated by '>'.
type ASCIIHex struct{}

func (ASCIIHex) Name() string              { return NameASCIIHex }
func (ASCIIHex) DecodeParms() *raw.DictObj { return nil }

const hexDigits = "0123456789ABCDEF"

func (ASCIIHex) Encode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*2+1)
	for _, b := range data {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return append(out, '>'), nil
}

// ASCII85 encodes bytes in base-85 terminated by "~>".
type ASCII85 struct{}

func (ASCII85) Name() string              { return NameASCII85 }
func (ASCII85) DecodeParms() *raw.DictObj { return nil }

func (ASCII85) Encode(data []byte) ([]byte, error) {
	dst := make([]byte, ascii85.MaxEncodedLen(len(data)))
	n := ascii85.Encode(dst, data)
	return append(dst[:n], "~>"...), nil
}

// Flate compresses with zlib framing. A non-nil Predictor is applied before
// compression and advertised in /DecodeParms.
type Flate struct {
	Level     int
	Predictor *Predictor
}

// NewFlate validates the predictor and returns the stage.
func NewFlate(level int, p *Predictor) (*Flate, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("%w: flate level %d", ErrInvalidFilter, level)
	}
	if p != nil {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &Flate{Level: level, Predictor: p}, nil
}

func (f *Flate) Name() string { return NameFlate }

func (f *Flate) DecodeParms() *raw.DictObj {
	if f.Predictor == nil {
		return nil
	}
	return f.Predictor.Parms()
}

func (f *Flate) Encode(data []byte) ([]byte, error) {
	if f.Predictor != nil {
		var err error
		if data, err = f.Predictor.encode(data); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunLength is the PackBits-style byte run encoder.
type RunLength struct{}

func (RunLength) Name() string              { return NameRunLength }
func (RunLength) DecodeParms() *raw.DictObj { return nil }

func (RunLength) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && run < 128 && data[i+run] == data[i] {
			run++
		}
		if run > 1 {
			buf.WriteByte(byte(257 - run))
			buf.WriteByte(data[i])
			i += run
			continue
		}
		lit := 1
		for i+lit < len(data) && lit < 128 && (i+lit+1 >= len(data) || data[i+lit] != data[i+lit+1]) {
			lit++
		}
		buf.WriteByte(byte(lit - 1))
		buf.Write(data[i : i+lit])
		i += lit
	}
	buf.WriteByte(128)
	return buf.Bytes(), nil
}

// LZW writes GIF-style codes, declared with /EarlyChange 0.
type LZW struct{}

func (LZW) Name() string { return NameLZW }

func (LZW) DecodeParms() *raw.DictObj {
	d := raw.Dict()
	d.Set("EarlyChange", raw.Int(0))
	return d
}

func (LZW) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DCT names already-compressed JPEG data. It is always added applied.
type DCT struct{}

func (DCT) Name() string                       { return NameDCT }
func (DCT) DecodeParms() *raw.DictObj          { return nil }
func (DCT) Encode(data []byte) ([]byte, error) { return data, nil }

// CCITT names Group 3/4 fax data produced elsewhere. It is always added applied.
type CCITT struct {
	K        int
	Columns  int
	Rows     int
	BlackIs1 bool
}

func (CCITT) Name() string                       { return NameCCITT }
func (CCITT) Encode(data []byte) ([]byte, error) { return data, nil }

func (c CCITT) DecodeParms() *raw.DictObj {
	d := raw.Dict()
	if c.K != 0 {
		d.Set("K", raw.Int(c.K))
	}
	if c.Columns != 0 && c.Columns != 1728 {
		d.Set("Columns", raw.Int(c.Columns))
	}
	if c.Rows != 0 {
		d.Set("Rows", raw.Int(c.Rows))
	}
	if c.BlackIs1 {
		d.Set("BlackIs1", raw.Bool(true))
	}
	if d.Len() == 0 {
		return nil
	}
	return d
}
