package cmm

import (
	"bytes"
	"encoding/binary"
	"math"
)

// SRGBName is the description of the profile returned by SRGB.
const SRGBName = "sRGB IEC61966-2.1"

type xyz [3]float64

// D50-adapted sRGB primaries.
var (
	d50    = xyz{0.9642, 1.0, 0.8249}
	redXYZ = xyz{0.4361, 0.2225, 0.0139}
	grnXYZ = xyz{0.3851, 0.7169, 0.0971}
	bluXYZ = xyz{0.1431, 0.0606, 0.7141}
)

const trcPoints = 1024

type tag struct {
	sig  string
	data []byte
}

func s15f16(v float64) uint32 { return uint32(int32(math.Round(v * 65536))) }

func xyzTag(v xyz) []byte {
	var b bytes.Buffer
	b.WriteString("XYZ ")
	binary.Write(&b, binary.BigEndian, uint32(0))
	for _, c := range v {
		binary.Write(&b, binary.BigEndian, s15f16(c))
	}
	return b.Bytes()
}

// srgbCurve samples the sRGB transfer function.
func srgbCurve() []byte {
	var b bytes.Buffer
	b.WriteString("curv")
	binary.Write(&b, binary.BigEndian, uint32(0))
	binary.Write(&b, binary.BigEndian, uint32(trcPoints))
	for i := 0; i < trcPoints; i++ {
		v := float64(i) / (trcPoints - 1)
		if v <= 0.04045 {
			v /= 12.92
		} else {
			v = math.Pow((v+0.055)/1.055, 2.4)
		}
		binary.Write(&b, binary.BigEndian, uint16(math.Round(v*65535)))
	}
	return b.Bytes()
}

func descTag(s string) []byte {
	var b bytes.Buffer
	b.WriteString("desc")
	binary.Write(&b, binary.BigEndian, uint32(0))
	binary.Write(&b, binary.BigEndian, uint32(len(s)+1))
	b.WriteString(s)
	b.WriteByte(0)
	// Empty Unicode and ScriptCode records.
	b.Write(make([]byte, 4+4+2+1+67))
	return b.Bytes()
}

func textTag(s string) []byte {
	var b bytes.Buffer
	b.WriteString("text")
	binary.Write(&b, binary.BigEndian, uint32(0))
	b.WriteString(s)
	b.WriteByte(0)
	return b.Bytes()
}

// SRGB builds an ICC version 2 display profile for sRGB, suitable as the
// output intent of PDF/A documents with device RGB content.
func SRGB() []byte {
	trc := srgbCurve()
	tags := []tag{
		{"desc", descTag(SRGBName)},
		{"cprt", textTag("No copyright, use freely")},
		{"wtpt", xyzTag(d50)},
		{"rXYZ", xyzTag(redXYZ)},
		{"gXYZ", xyzTag(grnXYZ)},
		{"bXYZ", xyzTag(bluXYZ)},
		{"rTRC", trc},
		{"gTRC", trc},
		{"bTRC", trc},
	}

	offset := 128 + 4 + 12*len(tags)
	var table, data bytes.Buffer
	binary.Write(&table, binary.BigEndian, uint32(len(tags)))
	shared := -1
	for i, t := range tags {
		at := offset + data.Len()
		if i > 0 && bytes.Equal(t.data, tags[i-1].data) && shared >= 0 {
			at = shared
		} else {
			shared = at
			data.Write(t.data)
			for data.Len()%4 != 0 {
				data.WriteByte(0)
			}
		}
		table.WriteString(t.sig)
		binary.Write(&table, binary.BigEndian, uint32(at))
		binary.Write(&table, binary.BigEndian, uint32(len(t.data)))
	}

	size := offset + data.Len()
	hdr := make([]byte, 128)
	be := binary.BigEndian
	be.PutUint32(hdr[0:], uint32(size))
	be.PutUint32(hdr[8:], 0x02100000)
	copy(hdr[12:], "mntr")
	copy(hdr[16:], "RGB ")
	copy(hdr[20:], "XYZ ")
	be.PutUint16(hdr[24:], 2000)
	be.PutUint16(hdr[26:], 1)
	be.PutUint16(hdr[28:], 1)
	copy(hdr[36:], "acsp")
	for i, c := range d50 {
		be.PutUint32(hdr[68+4*i:], s15f16(c))
	}

	out := make([]byte, 0, size)
	out = append(out, hdr...)
	out = append(out, table.Bytes()...)
	return append(out, data.Bytes()...)
}
