// Package compliance enforces archival, accessibility and print-exchange
// profiles while a document is produced. A rule that a requested profile
// forbids is reported as a *Violation and aborts the document.
package compliance

import (
	"fmt"
	"strings"
)

// Profile is one conformance level a document can claim.
type Profile int

const (
	PDFA1B Profile = iota + 1
	PDFA2B
	PDFA2U
	PDFA3B
	PDFUA1
	PDFX3
)

func (p Profile) String() string {
	switch p {
	case PDFA1B:
		return "PDF/A-1b"
	case PDFA2B:
		return "PDF/A-2b"
	case PDFA2U:
		return "PDF/A-2u"
	case PDFA3B:
		return "PDF/A-3b"
	case PDFUA1:
		return "PDF/UA-1"
	case PDFX3:
		return "PDF/X-3"
	default:
		return "Unknown"
	}
}

// ParseProfile accepts names such as "PDF/A-2u", "pdfa-2u" or "ua-1".
func ParseProfile(s string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("pdf/", "", "pdf", "", "-", "", "_", "").Replace(key)
	switch key {
	case "a1b":
		return PDFA1B, nil
	case "a2b":
		return PDFA2B, nil
	case "a2u":
		return PDFA2U, nil
	case "a3b":
		return PDFA3B, nil
	case "ua1", "ua":
		return PDFUA1, nil
	case "x3":
		return PDFX3, nil
	}
	return 0, fmt.Errorf("unknown conformance profile %q", s)
}

// Violation is a rule of a requested profile the document would break.
type Violation struct {
	Code        string
	Description string
	Location    string
	Standard    string
}

func (v *Violation) Error() string {
	if v.Location == "" {
		return fmt.Sprintf("%s %s: %s", v.Standard, v.Code, v.Description)
	}
	return fmt.Sprintf("%s %s: %s (%s)", v.Standard, v.Code, v.Description, v.Location)
}

// Report lists every violation seen by a Checker.
type Report struct {
	Standards  []string
	Violations []Violation
}

func (r *Report) Compliant() bool { return len(r.Violations) == 0 }

// Checker evaluates document facts against a set of profiles. The zero
// value and a nil *Checker accept everything.
type Checker struct {
	profiles []Profile
	report   Report
}

// NewChecker returns a checker for the given profiles.
func NewChecker(profiles ...Profile) *Checker {
	c := &Checker{profiles: profiles}
	for _, p := range profiles {
		c.report.Standards = append(c.report.Standards, p.String())
	}
	return c
}

func (c *Checker) Profiles() []Profile {
	if c == nil {
		return nil
	}
	return c.profiles
}

// Has reports whether p was requested.
func (c *Checker) Has(p Profile) bool {
	for _, q := range c.Profiles() {
		if q == p {
			return true
		}
	}
	return false
}

// Report returns the violations recorded so far.
func (c *Checker) Report() Report {
	if c == nil {
		return Report{}
	}
	return c.report
}

func (c *Checker) fail(p Profile, code, desc, loc string) error {
	v := &Violation{Code: code, Description: desc, Location: loc, Standard: p.String()}
	c.report.Violations = append(c.report.Violations, *v)
	return v
}

// PDFA returns the archival profile requested, if any.
func (c *Checker) PDFA() (Profile, bool) {
	for _, p := range c.Profiles() {
		if p.IsPDFA() {
			return p, true
		}
	}
	return 0, false
}

// MaxVersion is the highest header version every requested profile allows,
// or "" when unrestricted.
func (c *Checker) MaxVersion() string {
	switch {
	case c.Has(PDFX3):
		return "1.3"
	case c.Has(PDFA1B):
		return "1.4"
	}
	return ""
}

// NeedsOutputIntent reports whether a profile requires an ICC output intent.
func (c *Checker) NeedsOutputIntent() bool {
	for _, p := range c.Profiles() {
		if p.IsPDFA() || p == PDFX3 {
			return true
		}
	}
	return false
}

// NeedsTagging reports whether a structure tree is mandatory.
func (c *Checker) NeedsTagging() bool { return c.Has(PDFUA1) }

// NeedsMetadata reports whether XMP metadata is mandatory.
func (c *Checker) NeedsMetadata() bool {
	_, ok := c.PDFA()
	return ok || c.Has(PDFUA1)
}

// DocumentFacts summarizes catalog-level state at trailer time.
type DocumentFacts struct {
	Tagged       bool
	Title        string
	Lang         string
	OutputIntent bool
	Metadata     bool
	Pages        int
}

// Document checks catalog-level requirements.
func (c *Checker) Document(f DocumentFacts) error {
	for _, p := range c.Profiles() {
		if (p.IsPDFA() || p == PDFX3) && !f.OutputIntent {
			return c.fail(p, "INT001", "OutputIntent is required", "Catalog")
		}
		if p.IsPDFA() && !f.Metadata {
			return c.fail(p, "MET001", "XMP metadata is required", "Catalog")
		}
		if p == PDFUA1 {
			if err := c.uaDocument(f); err != nil {
				return err
			}
		}
		if p == PDFX3 && strings.TrimSpace(f.Title) == "" {
			return c.fail(p, "X001", "Document title is required", "Info")
		}
	}
	return nil
}
