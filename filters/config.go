package filters

import (
	"compress/flate"
	"fmt"
	"strings"
)

// Stream kinds used to pick a configured filter list.
const (
	KindDefault  = "default"
	KindContent  = "content"
	KindImage    = "image"
	KindJPEG     = "jpeg"
	KindTIFF     = "tiff"
	KindFont     = "font"
	KindMetadata = "metadata"
)

// Configuration names of the encoders.
const (
	ConfigFlate     = "flate"
	ConfigASCIIHex  = "ascii-hex"
	ConfigASCII85   = "ascii-85"
	ConfigRunLength = "run-length"
	ConfigLZW       = "lzw"
	ConfigNull      = "null"
)

// Defaults apply when neither the kind nor "default" is configured.
// Already-compressed payloads get no extra stage.
var Defaults = map[string][]string{
	KindJPEG: {ConfigNull},
	KindTIFF: {ConfigNull},
}

// ByName builds the encoder for a configuration name. "null" yields a nil
// encoder and no error.
func ByName(name string, level int) (Encoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ConfigFlate:
		return NewFlate(level, nil)
	case ConfigASCIIHex:
		return ASCIIHex{}, nil
	case ConfigASCII85:
		return ASCII85{}, nil
	case ConfigRunLength:
		return RunLength{}, nil
	case ConfigLZW:
		return LZW{}, nil
	case ConfigNull, "":
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown filter %q", ErrInvalidFilter, name)
}

// ParseList builds encoders for names in application order, dropping "null".
func ParseList(names []string, level int) ([]Encoder, error) {
	var out []Encoder
	for _, n := range names {
		e, err := ByName(n, level)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// Resolve returns the filter names configured for kind: the kind's own
// entry, then "default", then the package Defaults, then flate.
func Resolve(cfg map[string][]string, kind string) []string {
	if names, ok := cfg[kind]; ok {
		return names
	}
	if names, ok := cfg[KindDefault]; ok {
		return names
	}
	if names, ok := Defaults[kind]; ok {
		return names
	}
	return []string{ConfigFlate}
}

// ForKind resolves and builds the encoders for a stream kind.
func ForKind(cfg map[string][]string, kind string, level int) ([]Encoder, error) {
	return ParseList(Resolve(cfg, kind), level)
}

// DefaultLevel is the flate level used when none is configured.
const DefaultLevel = flate.DefaultCompression
