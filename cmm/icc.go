// Package cmm reads the header of ICC colour profiles embedded as output intents.
package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ICCProfile is a validated ICC profile.
type ICCProfile struct {
	data []byte
}

// NewICCProfile creates a new ICCProfile from bytes. The header's size field,
// file signature and colour space must be consistent.
func NewICCProfile(data []byte) (*ICCProfile, error) {
	if len(data) < 132 {
		return nil, errors.New("invalid ICC profile data")
	}
	if size := binary.BigEndian.Uint32(data[0:4]); int(size) > len(data) {
		return nil, fmt.Errorf("icc profile declares %d bytes, have %d", size, len(data))
	}
	if string(data[36:40]) != "acsp" {
		return nil, errors.New("icc profile signature missing")
	}
	p := &ICCProfile{data: data}
	if p.Components() == 0 {
		return nil, fmt.Errorf("unsupported icc colour space %q", p.ColorSpace())
	}
	return p, nil
}

// Name returns the ASCII part of the 'desc' tag, or "" when absent.
func (p *ICCProfile) Name() string {
	count := int(binary.BigEndian.Uint32(p.data[128:132]))
	for i := 0; i < count; i++ {
		at := 132 + i*12
		if at+12 > len(p.data) {
			return ""
		}
		if string(p.data[at:at+4]) != "desc" {
			continue
		}
		off := int(binary.BigEndian.Uint32(p.data[at+4:]))
		size := int(binary.BigEndian.Uint32(p.data[at+8:]))
		if off+size > len(p.data) || size < 12 || string(p.data[off:off+4]) != "desc" {
			return ""
		}
		n := int(binary.BigEndian.Uint32(p.data[off+8:]))
		if n <= 0 || off+12+n > len(p.data) {
			return ""
		}
		return strings.TrimRight(string(p.data[off+12:off+12+n]), "\x00")
	}
	return ""
}

// ColorSpace returns the data colour space signature, e.g. "RGB " or "CMYK".
func (p *ICCProfile) ColorSpace() string { return string(p.data[16:20]) }

// Class returns the profile class, e.g. "mntr" or "prtr".
func (p *ICCProfile) Class() string { return string(p.data[12:16]) }

// Components is the /N entry of an ICCBased stream for this profile.
func (p *ICCProfile) Components() int {
	switch p.ColorSpace() {
	case "GRAY":
		return 1
	case "RGB ", "Lab ":
		return 3
	case "CMYK":
		return 4
	}
	return 0
}

// DeviceSpace names the device colour space the profile characterizes.
func (p *ICCProfile) DeviceSpace() string {
	switch p.Components() {
	case 1:
		return "DeviceGray"
	case 4:
		return "DeviceCMYK"
	}
	return "DeviceRGB"
}

func (p *ICCProfile) Data() []byte {
	return p.data
}
