// Package fwcfg is a minimal read-only client for the QEMU fw_cfg device
// over x86 port I/O. Selecting an item resets the device's read cursor;
// bytes of the item are then read one at a time from the data port. The
// client never writes item contents, so probing through it has no
// observable effect on the machine beyond steering subsequent reads.
package fwcfg

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/c35s/smictl/platform"
)

// Well-known x86 ports.
const (
	SelectorPort = 0x510
	DataPort     = 0x511
)

// Well-known item keys.
const (
	ItemSignature = 0x0000
	ItemFileDir   = 0x0019
)

// Signature is the value of the signature item when fw_cfg is present.
const Signature = "QEMU"

// File directory integers are big-endian.
var be = binary.BigEndian

const (
	fileNameLen  = 56
	fileEntryLen = 64
)

var (
	ErrNoDevice = errors.New("fwcfg: device not present")
	ErrNotFound = errors.New("fwcfg: file not found")
)

// File describes an entry in the fw_cfg file directory.
type File struct {
	Name string
	Key  uint16
	Size uint32
}

type Client struct {
	IO platform.IO
}

// Probe returns ErrNoDevice if the signature item doesn't read back as
// "QEMU".
func (c Client) Probe() error {
	var sig [4]byte
	c.selectItem(ItemSignature)
	c.read(sig[:])

	if string(sig[:]) != Signature {
		return ErrNoDevice
	}

	return nil
}

// Find looks up a file in the fw_cfg directory by name.
func (c Client) Find(name string) (File, error) {
	c.selectItem(ItemFileDir)

	var nb [4]byte
	c.read(nb[:])

	n := be.Uint32(nb[:])
	for i := uint32(0); i < n; i++ {
		var eb [fileEntryLen]byte
		c.read(eb[:])

		f := File{
			Size: be.Uint32(eb[0:4]),
			Key:  be.Uint16(eb[4:6]),
			Name: cstr(eb[8 : 8+fileNameLen]),
		}

		if f.Name == name {
			return f, nil
		}
	}

	return File{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ReadFile selects f and reads its contents into p. Short buffers read a
// prefix; long ones are truncated to the file size.
func (c Client) ReadFile(f File, p []byte) int {
	if uint32(len(p)) > f.Size {
		p = p[:f.Size]
	}

	c.selectItem(f.Key)
	c.read(p)

	return len(p)
}

func (c Client) selectItem(key uint16) {
	c.IO.Out16(SelectorPort, key)
}

func (c Client) read(p []byte) {
	for i := range p {
		p[i] = c.IO.In8(DataPort)
	}
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}
