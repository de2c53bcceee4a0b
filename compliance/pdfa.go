package compliance

import "github.com/wudi/pdfstream/cmm"

// IsPDFA returns true for the archival levels.
func (p Profile) IsPDFA() bool {
	return p == PDFA1B || p == PDFA2B || p == PDFA2U || p == PDFA3B
}

// AllowsTransparency returns true if the level allows transparency (A-2+).
func (p Profile) AllowsTransparency() bool {
	return p != PDFA1B && p != PDFX3
}

// AllowsAttachment returns true if the level allows file attachments.
// A-1: No. A-2: PDF only. A-3: Any.
func (p Profile) AllowsAttachment() bool {
	return p != PDFA1B && p != PDFX3
}

// AllowsArbitraryAttachment returns true if the level allows non-PDF attachments.
func (p Profile) AllowsArbitraryAttachment() bool {
	return p == PDFA3B || (!p.IsPDFA() && p != PDFX3)
}

// RequiresUnicode reports whether every font needs a ToUnicode mapping.
func (p Profile) RequiresUnicode() bool { return p == PDFA2U }

// Part and Conformance are the pdfaid values written into XMP metadata.
func (p Profile) Part() int {
	switch p {
	case PDFA1B:
		return 1
	case PDFA2B, PDFA2U:
		return 2
	case PDFA3B:
		return 3
	case PDFUA1:
		return 1
	}
	return 0
}

func (p Profile) Conformance() string {
	if p == PDFA2U {
		return "U"
	}
	if p.IsPDFA() {
		return "B"
	}
	return ""
}

// OutputIntentSubtype is the /S entry of the output intent dictionary.
func (c *Checker) OutputIntentSubtype() string {
	if c.Has(PDFX3) {
		return "GTS_PDFX"
	}
	return "GTS_PDFA1"
}

// Filter rejects stream filters a profile forbids.
func (c *Checker) Filter(name, loc string) error {
	for _, p := range c.Profiles() {
		if p == PDFA1B && name == "LZWDecode" {
			return c.fail(p, "FLT001", "LZW compression is forbidden", loc)
		}
	}
	return nil
}

// Transparency rejects soft masks, constant alpha and blend modes.
func (c *Checker) Transparency(what, loc string) error {
	for _, p := range c.Profiles() {
		if !p.AllowsTransparency() {
			return c.fail(p, "TRN001", "Transparency is forbidden: "+what, loc)
		}
	}
	return nil
}

// Attachment checks an embedded file of the given MIME type.
func (c *Checker) Attachment(mime, loc string) error {
	for _, p := range c.Profiles() {
		if !p.AllowsAttachment() {
			return c.fail(p, "ATT001", "Embedded files are forbidden", loc)
		}
		if !p.AllowsArbitraryAttachment() && mime != "application/pdf" {
			return c.fail(p, "ATT002", "Embedded file must be PDF/A compliant", loc)
		}
	}
	return nil
}

var namedActionsAllowed = map[string]bool{
	"NextPage": true, "PrevPage": true, "FirstPage": true, "LastPage": true,
}

// Action checks an action type, and for Named actions the action name.
func (c *Checker) Action(kind, name, loc string) error {
	for _, p := range c.Profiles() {
		if !p.IsPDFA() && p != PDFX3 {
			continue
		}
		switch kind {
		case "Launch", "Sound", "Movie", "ResetForm", "ImportData", "JavaScript":
			return c.fail(p, "ACT001", "Forbidden action: "+kind, loc)
		case "Named":
			if !namedActionsAllowed[name] {
				return c.fail(p, "ACT002", "Forbidden named action: "+name, loc)
			}
		}
	}
	return nil
}

// Font checks embedding and Unicode mapping of a font resource.
func (c *Checker) Font(name string, embedded, toUnicode bool, loc string) error {
	for _, p := range c.Profiles() {
		if !embedded {
			code := "FNT001"
			if p == PDFUA1 {
				code = "UA005"
			}
			return c.fail(p, code, "Font must be embedded: "+name, loc)
		}
		if p.RequiresUnicode() && !toUnicode {
			return c.fail(p, "FNT002", "Font needs a ToUnicode map: "+name, loc)
		}
	}
	return nil
}

// OutputIntent validates the destination profile data.
func (c *Checker) OutputIntent(data []byte) (*cmm.ICCProfile, error) {
	icc, err := cmm.NewICCProfile(data)
	if err != nil {
		if ps := c.Profiles(); len(ps) > 0 {
			return nil, c.fail(ps[0], "INT002", "Invalid OutputIntent ICC profile: "+err.Error(), "OutputIntent")
		}
		return nil, err
	}
	return icc, nil
}

// ColorSpaces checks device colour spaces used by a content stream or image
// against the output intent's colour space ("" when no intent).
func (c *Checker) ColorSpaces(used []string, intent string, loc string) error {
	for _, p := range c.Profiles() {
		if !p.IsPDFA() && p != PDFX3 {
			continue
		}
		for _, cs := range used {
			if cs == "DeviceGray" || cs == intent {
				continue
			}
			if p == PDFX3 && cs == "DeviceRGB" {
				return c.fail(p, "CLR002", "DeviceRGB is forbidden", loc)
			}
			if intent == "" {
				return c.fail(p, "CLR001", cs+" used without an output intent", loc)
			}
			return c.fail(p, "CLR001", cs+" does not match output intent "+intent, loc)
		}
	}
	return nil
}
