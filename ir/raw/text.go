package raw

import (
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// Text encodes a human-readable text string (titles, alternate text, info
// entries). ASCII stays a literal string; anything else becomes UTF-16BE with
// a byte order mark.
func Text(s string) StringObj {
	if isASCII(s) {
		return Str([]byte(s))
	}
	enc, err := utf16BE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return Str([]byte(s))
	}
	return Str(enc)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Date renders t in the PDF date format D:YYYYMMDDHHmmSS+HH'mm'.
func Date(t time.Time) StringObj {
	_, offset := t.Zone()
	sign := byte('+')
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	s := t.Format("20060102150405")
	if offset == 0 {
		return Str([]byte("D:" + s + "Z"))
	}
	tz := []byte{sign}
	tz = append(tz, twoDigits(offset/3600)...)
	tz = append(tz, '\'')
	tz = append(tz, twoDigits((offset%3600)/60)...)
	tz = append(tz, '\'')
	return Str(append([]byte("D:"+s), tz...))
}

func twoDigits(v int) []byte {
	return []byte{byte('0' + v/10%10), byte('0' + v%10)}
}
