package compliance

import "github.com/wudi/pdfstream/ir/raw"

// TrimBoxRequired reports whether every page needs a TrimBox.
func (c *Checker) TrimBoxRequired() bool { return c.Has(PDFX3) }

// InfoEntries returns extra document information entries a profile needs.
func (c *Checker) InfoEntries() map[string]raw.Object {
	if !c.Has(PDFX3) {
		return nil
	}
	return map[string]raw.Object{
		"GTS_PDFXVersion": raw.Text("PDF/X-3:2003"),
		"Trapped":         raw.NameLiteral("False"),
	}
}
