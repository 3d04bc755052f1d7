// Package platform abstracts the two register access paths the SMI
// control core is written against: x86 port I/O and PCI configuration
// space. Implementations are expected to complete every access; port I/O
// has no failure mode at this layer.
package platform

// IO is x86 port I/O.
type IO interface {
	In8(port uint16) uint8
	Out8(port uint16, v uint8)
	In16(port uint16) uint16
	Out16(port uint16, v uint16)
	In32(port uint16) uint32
	Out32(port uint16, v uint32)
}

// PCI reads and writes PCI configuration space.
type PCI interface {
	Read32(a Addr) uint32
	Read16(a Addr) uint16
	Write16(a Addr, v uint16)
}

// Addr identifies a PCI configuration register.
type Addr struct {
	Bus uint8
	Dev uint8
	Fn  uint8
	Off uint16
}

// Or16 sets bits in a 16-bit configuration register. The SMI lock bit is
// written this way: bits are only ever added.
func Or16(p PCI, a Addr, bits uint16) {
	p.Write16(a, p.Read16(a)|bits)
}

// Legacy PCI configuration mechanism ports.
const (
	ConfigAddrPort = 0xcf8
	ConfigDataPort = 0xcfc
)

// ConfigPorts implements PCI over the legacy 0xCF8/0xCFC configuration
// address/data port pair, on top of any IO.
type ConfigPorts struct {
	IO IO
}

func (c ConfigPorts) Read32(a Addr) uint32 {
	c.IO.Out32(ConfigAddrPort, encodeAddr(a))
	return c.IO.In32(ConfigDataPort)
}

func (c ConfigPorts) Read16(a Addr) uint16 {
	c.IO.Out32(ConfigAddrPort, encodeAddr(a))
	return c.IO.In16(ConfigDataPort + a.Off&2)
}

func (c ConfigPorts) Write16(a Addr, v uint16) {
	c.IO.Out32(ConfigAddrPort, encodeAddr(a))
	c.IO.Out16(ConfigDataPort+a.Off&2, v)
}

// encodeAddr packs a into the CONFIG_ADDRESS format: enable bit, bus,
// device, function, and the dword-aligned register offset. Sub-dword
// accesses select the byte lane through the data port address instead.
func encodeAddr(a Addr) uint32 {
	return 1<<31 |
		uint32(a.Bus)<<16 |
		uint32(a.Dev&0x1f)<<11 |
		uint32(a.Fn&0x7)<<8 |
		uint32(a.Off&0xfc)
}
