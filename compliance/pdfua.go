package compliance

import "strings"

func (c *Checker) uaDocument(f DocumentFacts) error {
	if !f.Tagged {
		return c.fail(PDFUA1, "UA001", "Document must be marked (MarkInfo dictionary with Marked=true)", "Catalog")
	}
	if strings.TrimSpace(f.Title) == "" {
		return c.fail(PDFUA1, "UA003", "Document title is required", "Info Dictionary")
	}
	if strings.TrimSpace(f.Lang) == "" {
		return c.fail(PDFUA1, "UA004", "Document language is required", "Catalog")
	}
	return nil
}

// StructElem checks a structure element's alternate descriptions.
func (c *Checker) StructElem(typ, alt, actualText, loc string) error {
	if !c.Has(PDFUA1) {
		return nil
	}
	if typ == "Figure" && alt == "" && actualText == "" {
		return c.fail(PDFUA1, "UA006", "Figure missing Alternative Text", loc)
	}
	return nil
}

var allowedKids = map[string]map[string]bool{
	"Table": {"TR": true, "THead": true, "TBody": true, "TFoot": true, "Caption": true},
	"THead": {"TR": true},
	"TBody": {"TR": true},
	"TFoot": {"TR": true},
	"TR":    {"TH": true, "TD": true},
	"L":     {"LI": true, "L": true, "Caption": true},
	"LI":    {"Lbl": true, "LBody": true},
}

// StructChild checks that child may appear directly under parent.
func (c *Checker) StructChild(parent, child, loc string) error {
	if !c.Has(PDFUA1) {
		return nil
	}
	if kids, ok := allowedKids[parent]; ok && !kids[child] {
		return c.fail(PDFUA1, "UA007", "Invalid child "+child+" in "+parent, loc)
	}
	return nil
}

// Untagged rejects content of the given kind that carries no tag, such as a
// link annotation outside the structure tree.
func (c *Checker) Untagged(kind, loc string) error {
	if !c.Has(PDFUA1) {
		return nil
	}
	return c.fail(PDFUA1, "UA008", kind+" is not tagged", loc)
}
