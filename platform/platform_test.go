package platform

import "testing"

// fakeIO latches the config address and serves a single 32-bit register
// value through the data port lanes.
type fakeIO struct {
	addr uint32
	data uint32

	wrote16 *struct {
		port uint16
		val  uint16
	}
}

func (f *fakeIO) In8(port uint16) uint8       { return 0 }
func (f *fakeIO) Out8(port uint16, v uint8)   {}
func (f *fakeIO) In32(port uint16) uint32     { return f.data }
func (f *fakeIO) Out32(port uint16, v uint32) { f.addr = v }

func (f *fakeIO) In16(port uint16) uint16 {
	return uint16(f.data >> (8 * (port - ConfigDataPort)))
}

func (f *fakeIO) Out16(port uint16, v uint16) {
	f.wrote16 = &struct {
		port uint16
		val  uint16
	}{port, v}
}

func TestEncodeAddr(t *testing.T) {
	cases := []struct {
		a    Addr
		want uint32
	}{
		{Addr{Bus: 0, Dev: 0x1f, Fn: 0, Off: 0x40}, 0x8000f840},
		{Addr{Bus: 0, Dev: 0x1f, Fn: 0, Off: 0xa4}, 0x8000f8a4},
		{Addr{Bus: 1, Dev: 2, Fn: 3, Off: 0x41}, 0x80011340},
	}

	for _, tc := range cases {
		if got := encodeAddr(tc.a); got != tc.want {
			t.Errorf("encodeAddr(%+v) = %#x != %#x", tc.a, got, tc.want)
		}
	}
}

func TestConfigPortsRead32(t *testing.T) {
	f := &fakeIO{data: 0x12345678}
	c := ConfigPorts{IO: f}

	if got := c.Read32(Addr{Dev: 0x1f, Off: 0x40}); got != 0x12345678 {
		t.Errorf("read %#x", got)
	}

	if f.addr != 0x8000f840 {
		t.Errorf("config address %#x", f.addr)
	}
}

func TestConfigPortsRead16Lanes(t *testing.T) {
	f := &fakeIO{data: 0xaabbccdd}
	c := ConfigPorts{IO: f}

	if got := c.Read16(Addr{Dev: 0x1f, Off: 0xa4}); got != 0xccdd {
		t.Errorf("low lane read %#x", got)
	}

	if got := c.Read16(Addr{Dev: 0x1f, Off: 0xa6}); got != 0xaabb {
		t.Errorf("high lane read %#x", got)
	}

	// both lanes address the same dword
	if f.addr != 0x8000f8a4 {
		t.Errorf("config address %#x", f.addr)
	}
}

func TestOr16(t *testing.T) {
	f := &fakeIO{data: 0x00210021}
	c := ConfigPorts{IO: f}

	Or16(c, Addr{Dev: 0x1f, Off: 0xa4}, 1<<4)

	if f.wrote16 == nil {
		t.Fatal("nothing written")
	}

	if f.wrote16.port != ConfigDataPort {
		t.Errorf("wrote port %#x", f.wrote16.port)
	}

	if f.wrote16.val != 0x0031 {
		t.Errorf("wrote %#x != 0x0031", f.wrote16.val)
	}
}
