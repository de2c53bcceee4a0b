package filters

import "github.com/wudi/pdfstream/ir/raw"

// Stage is one entry of a Chain. Applied stages contribute their name and
// parameters but never touch the buffer again.
type Stage struct {
	Encoder Encoder
	Applied bool
}

// Chain is the ordered filter list of one stream.
type Chain struct {
	stages []Stage
}

// Add appends a stage that still has to run.
func (c *Chain) Add(e Encoder) {
	c.stages = append(c.stages, Stage{Encoder: e})
}

// AddApplied appends a stage whose output the payload already is, such as
// JPEG bytes copied through under DCTDecode.
func (c *Chain) AddApplied(e Encoder) {
	c.stages = append(c.stages, Stage{Encoder: e, Applied: true})
}

func (c *Chain) Len() int { return len(c.stages) }

func (c *Chain) Stages() []Stage { return c.stages }

// Pending reports whether any stage has not run yet.
func (c *Chain) Pending() bool {
	for _, s := range c.stages {
		if !s.Applied {
			return true
		}
	}
	return false
}

// Apply runs every stage not yet applied over data in declaration order,
// marks it applied and returns the encoded bytes together with the
// dictionary entries describing the whole chain.
func (c *Chain) Apply(data []byte) ([]byte, Fragment, error) {
	for i := range c.stages {
		s := &c.stages[i]
		if s.Applied {
			continue
		}
		out, err := s.Encoder.Encode(data)
		if err != nil {
			return nil, Fragment{}, err
		}
		data = out
		s.Applied = true
	}
	return data, c.Fragment(), nil
}

// Fragment describes the chain in decode order, outermost first.
func (c *Chain) Fragment() Fragment {
	n := len(c.stages)
	if n == 0 {
		return Fragment{}
	}
	if n == 1 {
		e := c.stages[0].Encoder
		f := Fragment{Filter: raw.NameLiteral(e.Name())}
		if p := e.DecodeParms(); p != nil {
			f.DecodeParms = p
		}
		return f
	}
	names := raw.NewArray()
	parms := raw.NewArray()
	hasParms := false
	for i := n - 1; i >= 0; i-- {
		e := c.stages[i].Encoder
		names.Append(raw.NameLiteral(e.Name()))
		if p := e.DecodeParms(); p != nil {
			parms.Append(p)
			hasParms = true
		} else {
			parms.Append(raw.NullObj{})
		}
	}
	f := Fragment{Filter: names}
	if hasParms {
		f.DecodeParms = parms
	}
	return f
}

// Fragment holds the /Filter and /DecodeParms values of a stream dictionary.
type Fragment struct {
	Filter      raw.Object
	DecodeParms raw.Object
}

func (f Fragment) IsZero() bool { return f.Filter == nil }

// ApplyTo sets the fragment's entries on d, leaving d untouched when empty.
func (f Fragment) ApplyTo(d *raw.DictObj) {
	if f.Filter != nil {
		d.Set("Filter", f.Filter)
	}
	if f.DecodeParms != nil {
		d.Set("DecodeParms", f.DecodeParms)
	}
}
