//go:build linux

// Package devport implements platform.IO over the Linux /dev/port device.
package devport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// IO accesses x86 I/O ports through /dev/port. Opening it requires
// CAP_SYS_RAWIO. Multi-byte accesses are issued as single pread/pwrite
// calls at the port offset; the kernel splits them into byte-wide inb/outb
// cycles, which the registers driven by this module tolerate.
type IO struct {
	f *os.File
}

func Open() (*IO, error) {
	f, err := os.OpenFile("/dev/port", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("devport: %w", err)
	}

	return &IO{f: f}, nil
}

func (io *IO) Close() error {
	return io.f.Close()
}

func (io *IO) In8(port uint16) uint8 {
	var b [1]byte
	io.read(port, b[:])
	return b[0]
}

func (io *IO) Out8(port uint16, v uint8) {
	io.write(port, []byte{v})
}

func (io *IO) In16(port uint16) uint16 {
	var b [2]byte
	io.read(port, b[:])
	return uint16(b[0]) | uint16(b[1])<<8
}

func (io *IO) Out16(port uint16, v uint16) {
	io.write(port, []byte{byte(v), byte(v >> 8)})
}

func (io *IO) In32(port uint16) uint32 {
	var b [4]byte
	io.read(port, b[:])
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (io *IO) Out32(port uint16, v uint32) {
	io.write(port, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// Port I/O is presumed to complete. A failing pread/pwrite on an open
// /dev/port means the process lost CAP_SYS_RAWIO mid-flight or the fd
// was closed under us; neither is recoverable here.

func (io *IO) read(port uint16, p []byte) {
	if _, err := unix.Pread(int(io.f.Fd()), p, int64(port)); err != nil {
		panic(fmt.Errorf("devport: read port %#x: %w", port, err))
	}
}

func (io *IO) write(port uint16, p []byte) {
	if _, err := unix.Pwrite(int(io.f.Fd()), p, int64(port)); err != nil {
		panic(fmt.Errorf("devport: write port %#x: %w", port, err))
	}
}
