package raw

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Serialize renders a direct object in PDF syntax.
func Serialize(o Object) []byte { return Append(nil, o) }

// Append renders o onto dst and returns the extended slice.
func Append(dst []byte, o Object) []byte {
	switch v := o.(type) {
	case NameObj:
		return append(append(dst, '/'), EscapeName(v.Value())...)
	case NumberObj:
		if v.IsInteger() {
			return strconv.AppendInt(dst, v.Int(), 10)
		}
		return append(dst, FormatReal(v.Float())...)
	case BoolObj:
		return strconv.AppendBool(dst, v.Value())
	case NullObj, nil:
		return append(dst, "null"...)
	case StringObj:
		if v.IsHex() {
			enc := make([]byte, hex.EncodedLen(len(v.Bytes)))
			hex.Encode(enc, v.Bytes)
			dst = append(dst, '<')
			dst = append(dst, strings.ToUpper(string(enc))...)
			return append(dst, '>')
		}
		return appendLiteralString(dst, v.Bytes)
	case *ArrayObj:
		dst = append(dst, '[')
		for i, it := range v.Items {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = Append(dst, it)
		}
		return append(dst, ']')
	case *DictObj:
		return appendDict(dst, v)
	case RefObj:
		return fmt.Appendf(dst, "%d %d R", v.R.Num, v.R.Gen)
	default:
		return append(dst, "null"...)
	}
}

func appendDict(dst []byte, d *DictObj) []byte {
	if d == nil || len(d.KV) == 0 {
		return append(dst, "<< >>"...)
	}
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dst = append(dst, "<<"...)
	for _, k := range keys {
		dst = append(dst, " /"...)
		dst = append(dst, EscapeName(k)...)
		dst = append(dst, ' ')
		dst = Append(dst, d.KV[k])
	}
	return append(dst, " >>"...)
}

// FormatReal prints f without exponent, with at most five decimals and no
// trailing zeros.
func FormatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', 5, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// EscapeName applies #xx escaping to bytes that are not regular characters in
// a PDF name.
func EscapeName(value string) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if ch > 0x20 && ch < 0x7f && !strings.ContainsRune("#()<>[]{}/%", rune(ch)) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "#%02X", ch)
	}
	return b.String()
}

// EscapeLiteralString renders raw bytes as a parenthesised literal string.
func EscapeLiteralString(rawBytes []byte) []byte {
	return appendLiteralString(nil, rawBytes)
}

func appendLiteralString(dst []byte, rawBytes []byte) []byte {
	dst = append(dst, '(')
	for _, ch := range rawBytes {
		switch ch {
		case '\\', '(', ')':
			dst = append(dst, '\\', ch)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			if ch < 0x20 || ch >= 0x80 {
				dst = fmt.Appendf(dst, "\\%03o", ch)
			} else {
				dst = append(dst, ch)
			}
		}
	}
	return append(dst, ')')
}
