package writer

import (
	"bytes"
	"io"

	"github.com/wudi/pdfstream/filters"
	"github.com/wudi/pdfstream/ir/raw"
)

// Stream is an indirect stream object. The payload is encoded by its filter
// chain when the object is written.
type Stream struct {
	objectBase
	Dict  *raw.DictObj
	Kind  string
	buf   bytes.Buffer
	chain filters.Chain
}

// Write appends raw payload bytes.
func (s *Stream) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *Stream) WriteString(str string) (int, error) { return s.buf.WriteString(str) }

// Bytes returns the payload in its current state, encoded or not.
func (s *Stream) Bytes() []byte { return s.buf.Bytes() }

func (s *Stream) Len() int { return s.buf.Len() }

// AddFilter appends a stage that runs when filters are applied.
func (s *Stream) AddFilter(e filters.Encoder) { s.chain.Add(e) }

// AddAppliedFilter declares a stage the payload is already encoded with.
func (s *Stream) AddAppliedFilter(e filters.Encoder) { s.chain.AddApplied(e) }

// FilterNames lists the chain's PDF filter names in application order.
func (s *Stream) FilterNames() []string {
	var out []string
	for _, st := range s.chain.Stages() {
		out = append(out, st.Encoder.Name())
	}
	return out
}

// ApplyFilters encodes the payload with every pending stage and sets
// /Filter and /DecodeParms. Calling it again changes nothing.
func (s *Stream) ApplyFilters() (filters.Fragment, error) {
	if s.chain.Len() == 0 {
		return filters.Fragment{}, nil
	}
	if !s.chain.Pending() {
		frag := s.chain.Fragment()
		frag.ApplyTo(s.Dict)
		return frag, nil
	}
	out, frag, err := s.chain.Apply(s.buf.Bytes())
	if err != nil {
		return filters.Fragment{}, err
	}
	s.buf.Reset()
	s.buf.Write(out)
	frag.ApplyTo(s.Dict)
	return frag, nil
}

func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if _, err := s.ApplyFilters(); err != nil {
		return 0, err
	}
	return writeStream(w, s.ref, s.Dict, s.buf.Bytes())
}

func (s *Stream) addFilters(encs []filters.Encoder) {
	for _, e := range encs {
		s.chain.Add(e)
	}
}
