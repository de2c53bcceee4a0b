package filters

import (
	"errors"
	"fmt"

	"github.com/wudi/pdfstream/ir/raw"
)

// ErrInvalidFilter reports a filter stage that cannot be constructed.
var ErrInvalidFilter = errors.New("invalid filter")

// Predictor describes the /DecodeParms of a Flate or LZW stage.
// Predictor 2 is TIFF, 10 through 15 are PNG. Every PNG variant is
// encoded with the Up algorithm on each row, which any PNG-aware
// decoder accepts.
type Predictor struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
}

func (p *Predictor) colors() int {
	if p.Colors == 0 {
		return 1
	}
	return p.Colors
}

func (p *Predictor) bpc() int {
	if p.BitsPerComponent == 0 {
		return 8
	}
	return p.BitsPerComponent
}

func (p *Predictor) columns() int {
	if p.Columns == 0 {
		return 1
	}
	return p.Columns
}

func (p *Predictor) rowLen() int { return (p.colors()*p.bpc()*p.columns() + 7) / 8 }

func (p *Predictor) bytesPerPixel() int {
	n := (p.colors()*p.bpc() + 7) / 8
	if n < 1 {
		return 1
	}
	return n
}

// Validate rejects predictor/colour/column combinations no decoder can invert.
func (p *Predictor) Validate() error {
	switch {
	case p.Predictor == 1 || p.Predictor == 2:
	case p.Predictor >= 10 && p.Predictor <= 15:
	default:
		return fmt.Errorf("%w: predictor %d", ErrInvalidFilter, p.Predictor)
	}
	if p.Colors < 0 || p.colors() > 32 {
		return fmt.Errorf("%w: predictor colors %d", ErrInvalidFilter, p.Colors)
	}
	switch p.bpc() {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("%w: predictor bits per component %d", ErrInvalidFilter, p.BitsPerComponent)
	}
	if p.Columns < 0 {
		return fmt.Errorf("%w: predictor columns %d", ErrInvalidFilter, p.Columns)
	}
	if p.Predictor == 2 && p.bpc() != 8 {
		return fmt.Errorf("%w: TIFF predictor with %d bits per component", ErrInvalidFilter, p.bpc())
	}
	return nil
}

// Parms renders the predictor as a /DecodeParms dictionary, omitting defaults.
func (p *Predictor) Parms() *raw.DictObj {
	d := raw.Dict()
	d.Set("Predictor", raw.Int(p.Predictor))
	if p.colors() != 1 {
		d.Set("Colors", raw.Int(p.colors()))
	}
	if p.bpc() != 8 {
		d.Set("BitsPerComponent", raw.Int(p.bpc()))
	}
	if p.columns() != 1 {
		d.Set("Columns", raw.Int(p.columns()))
	}
	return d
}

func (p *Predictor) encode(data []byte) ([]byte, error) {
	if p.Predictor == 1 {
		return data, nil
	}
	row := p.rowLen()
	if len(data)%row != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of row length %d", ErrInvalidFilter, len(data), row)
	}
	if p.Predictor == 2 {
		out := make([]byte, len(data))
		c := p.colors()
		for start := 0; start < len(data); start += row {
			for i := 0; i < row; i++ {
				if i < c {
					out[start+i] = data[start+i]
				} else {
					out[start+i] = data[start+i] - data[start+i-c]
				}
			}
		}
		return out, nil
	}
	out := make([]byte, 0, len(data)+len(data)/row)
	prev := make([]byte, row)
	for start := 0; start < len(data); start += row {
		cur := data[start : start+row]
		out = append(out, 2)
		for i, b := range cur {
			out = append(out, b-prev[i])
		}
		prev = cur
	}
	return out, nil
}

func (p *Predictor) decode(data []byte) ([]byte, error) {
	if p.Predictor == 1 {
		return data, nil
	}
	row := p.rowLen()
	if p.Predictor == 2 {
		if p.bpc() != 8 {
			return nil, fmt.Errorf("%w: TIFF predictor with %d bits per component", ErrInvalidFilter, p.bpc())
		}
		out := append([]byte(nil), data...)
		c := p.colors()
		for start := 0; start+row <= len(out); start += row {
			for i := c; i < row; i++ {
				out[start+i] += out[start+i-c]
			}
		}
		return out, nil
	}
	bpp := p.bytesPerPixel()
	out := make([]byte, 0, len(data))
	prev := make([]byte, row)
	for start := 0; start < len(data); start += row + 1 {
		if start+row+1 > len(data) {
			return nil, errors.New("truncated predictor row")
		}
		ft := data[start]
		cur := append([]byte(nil), data[start+1:start+1+row]...)
		for i := range cur {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch ft {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown png filter type %d", ft)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func intParam(d *raw.DictObj, key string, def int) int {
	if d == nil {
		return def
	}
	v, ok := d.Get(key)
	if !ok {
		return def
	}
	if n, ok := v.(raw.NumberObj); ok {
		return int(n.Int())
	}
	return def
}

func predictorFromParms(d *raw.DictObj) (*Predictor, error) {
	pred := intParam(d, "Predictor", 1)
	if pred <= 1 {
		return nil, nil
	}
	p := &Predictor{
		Predictor:        pred,
		Colors:           intParam(d, "Colors", 1),
		BitsPerComponent: intParam(d, "BitsPerComponent", 8),
		Columns:          intParam(d, "Columns", 1),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
