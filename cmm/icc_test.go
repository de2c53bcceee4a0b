package cmm

import (
	"encoding/binary"
	"testing"
)

func makeProfile(cs string, desc string) []byte {
	data := make([]byte, 132+12)
	binary.BigEndian.PutUint32(data[12:16], 0x6D6E7472) // mntr
	copy(data[16:20], cs)
	copy(data[36:40], "acsp")
	binary.BigEndian.PutUint32(data[128:132], 1)
	tag := make([]byte, 12+len(desc)+1)
	copy(tag[0:4], "desc")
	binary.BigEndian.PutUint32(tag[8:12], uint32(len(desc)+1))
	copy(tag[12:], desc)
	copy(data[132:136], "desc")
	binary.BigEndian.PutUint32(data[136:140], uint32(len(data)))
	binary.BigEndian.PutUint32(data[140:144], uint32(len(tag)))
	data = append(data, tag...)
	binary.BigEndian.PutUint32(data[0:4], uint32(len(data)))
	return data
}

func TestICCProfileParse(t *testing.T) {
	p, err := NewICCProfile(makeProfile("RGB ", "sRGB IEC61966-2.1"))
	if err != nil {
		t.Fatalf("NewICCProfile failed: %v", err)
	}
	if p.Class() != "mntr" {
		t.Errorf("expected class 'mntr', got '%s'", p.Class())
	}
	if p.ColorSpace() != "RGB " {
		t.Errorf("expected color space 'RGB ', got '%s'", p.ColorSpace())
	}
	if p.Components() != 3 || p.DeviceSpace() != "DeviceRGB" {
		t.Errorf("components = %d, space = %s", p.Components(), p.DeviceSpace())
	}
	if p.Name() != "sRGB IEC61966-2.1" {
		t.Errorf("name = %q", p.Name())
	}
}

func TestICCProfileCMYK(t *testing.T) {
	p, err := NewICCProfile(makeProfile("CMYK", "Coated FOGRA39"))
	if err != nil {
		t.Fatalf("NewICCProfile failed: %v", err)
	}
	if p.Components() != 4 || p.DeviceSpace() != "DeviceCMYK" {
		t.Errorf("components = %d, space = %s", p.Components(), p.DeviceSpace())
	}
}

func TestICCProfileInvalid(t *testing.T) {
	if _, err := NewICCProfile(make([]byte, 64)); err == nil {
		t.Fatalf("short profile accepted")
	}
	bad := makeProfile("RGB ", "x")
	copy(bad[36:40], "xxxx")
	if _, err := NewICCProfile(bad); err == nil {
		t.Fatalf("profile without signature accepted")
	}
	bad = makeProfile("YCC ", "x")
	if _, err := NewICCProfile(bad); err == nil {
		t.Fatalf("unsupported colour space accepted")
	}
	bad = makeProfile("RGB ", "x")
	binary.BigEndian.PutUint32(bad[0:4], uint32(len(bad)+10))
	if _, err := NewICCProfile(bad); err == nil {
		t.Fatalf("truncated profile accepted")
	}
}
