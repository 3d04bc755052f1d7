// Package sim models the slice of a Q35 machine that the smi lockdown
// sequence touches: the power management function's configuration
// registers behind the legacy 0xCF8/0xCFC mechanism, the SMI enable
// register in the ACPI PM I/O window, the APM command/data ports, and a
// small read-only fw_cfg device. It implements platform.IO, so lockdown
// runs against it unchanged, and it records every port access in order
// for tests to inspect.
package sim

import (
	"encoding/binary"
	"sort"

	"github.com/c35s/smictl/fwcfg"
	"github.com/c35s/smictl/ich9"
	"github.com/c35s/smictl/platform"
)

var be = binary.BigEndian

// Access is one recorded port I/O cycle. Val holds the value written, or
// read back, widened to 32 bits.
type Access struct {
	Op   string // in8, out8, in16, out16, in32, out32
	Port uint16
	Val  uint32
}

// Machine is the register model. The exported fields are live machine
// state: tests set them up before running lockdown and inspect them
// after. The zero value has an empty PM window base; use New for a
// machine with the usual Q35 layout.
type Machine struct {

	// PMBase is the I/O address of the ACPI PM window.
	PMBase uint32

	// SMIEn is the current value of the SMI control and enable register.
	SMIEn uint32

	// GenPMCon1 is the current value of GEN_PMCON_1.
	GenPMCon1 uint16

	// LockBroken makes SMILock ineffective: SMI_EN writes land even while
	// the lock bit reads back as set. It models a board whose lock fails
	// to engage.
	LockBroken bool

	// SMIHandler, if set, is called synchronously when a write to the APM
	// control port asserts an SMI. data is the last value written to the
	// status port before the assertion.
	SMIHandler func(cmd, data uint8)

	// Files populates the fw_cfg file directory. A nil map models a
	// machine without fw_cfg.
	Files map[string][]byte

	// Trace is every port access, in order.
	Trace []Access

	cfgAddr uint32
	apmSts  uint8
	apmCnt  uint8
	fwItem  []byte
	fwOff   int
}

// New returns a machine with the PM window at the usual Q35 base and all
// SMI state at its power-on defaults.
func New() *Machine {
	return &Machine{PMBase: 0x600}
}

// Writes returns only the out accesses from the trace.
func (m *Machine) Writes() []Access {
	var ww []Access
	for _, a := range m.Trace {
		switch a.Op {
		case "out8", "out16", "out32":
			ww = append(ww, a)
		}
	}

	return ww
}

func (m *Machine) smiEnPort() uint16 {
	return uint16(m.PMBase) + ich9.SMIEnOffset
}

func (m *Machine) record(op string, port uint16, v uint32) {
	m.Trace = append(m.Trace, Access{Op: op, Port: port, Val: v})
}

func (m *Machine) In8(port uint16) uint8 {
	var v uint8
	switch port {
	case fwcfg.DataPort:
		v = m.fwRead()

	case ich9.APMCnt:
		v = m.apmCnt

	case ich9.APMSts:
		v = m.apmSts

	default:
		v = 0xff // open bus
	}

	m.record("in8", port, uint32(v))
	return v
}

func (m *Machine) Out8(port uint16, v uint8) {
	m.record("out8", port, uint32(v))

	switch port {
	case ich9.APMSts:
		m.apmSts = v

	case ich9.APMCnt:
		m.apmCnt = v
		m.assertSMI(v)
	}
}

func (m *Machine) In16(port uint16) uint16 {
	var v uint16
	switch {
	case port == platform.ConfigDataPort || port == platform.ConfigDataPort+2:
		v = m.cfgRead16(port - platform.ConfigDataPort)

	default:
		v = 0xffff
	}

	m.record("in16", port, uint32(v))
	return v
}

func (m *Machine) Out16(port uint16, v uint16) {
	m.record("out16", port, uint32(v))

	switch {
	case port == fwcfg.SelectorPort:
		m.fwSelect(v)

	case port == platform.ConfigDataPort || port == platform.ConfigDataPort+2:
		m.cfgWrite16(port-platform.ConfigDataPort, v)
	}
}

func (m *Machine) In32(port uint16) uint32 {
	var v uint32
	switch port {
	case platform.ConfigAddrPort:
		v = m.cfgAddr

	case platform.ConfigDataPort:
		v = m.cfgRead32()

	case m.smiEnPort():
		v = m.SMIEn

	default:
		v = 0xffffffff
	}

	m.record("in32", port, v)
	return v
}

func (m *Machine) Out32(port uint16, v uint32) {
	m.record("out32", port, v)

	switch port {
	case platform.ConfigAddrPort:
		m.cfgAddr = v

	case m.smiEnPort():
		m.writeSMIEn(v)
	}
}

func (m *Machine) locked() bool {
	return m.GenPMCon1&ich9.SMILock != 0
}

func (m *Machine) writeSMIEn(v uint32) {
	if m.locked() && !m.LockBroken {
		const frozen = uint32(ich9.SMIEnGbl | ich9.SMIEnAPMC)
		v = v&^frozen | m.SMIEn&frozen
	}

	m.SMIEn = v
}

func (m *Machine) assertSMI(cmd uint8) {
	if m.SMIEn&ich9.SMIEnAPMC == 0 || m.SMIEn&ich9.SMIEnGbl == 0 {
		return
	}

	if m.SMIHandler != nil {
		m.SMIHandler(cmd, m.apmSts)
	}
}

// PCI configuration space. Only the power management function at D31:F0
// is decoded; everything else reads as open bus.

func (m *Machine) cfgDecode() (off uint16, ok bool) {
	var (
		bus = uint8(m.cfgAddr >> 16)
		dev = uint8(m.cfgAddr >> 11 & 0x1f)
		fn  = uint8(m.cfgAddr >> 8 & 0x7)
	)

	if m.cfgAddr&(1<<31) == 0 || bus != 0 || dev != 0x1f || fn != 0 {
		return 0, false
	}

	return uint16(m.cfgAddr & 0xfc), true
}

func (m *Machine) cfgRead32() uint32 {
	off, ok := m.cfgDecode()
	if !ok {
		return 0xffffffff
	}

	switch off {
	case ich9.PMBase:
		// hardware reports the I/O space indicator in bit 0
		return m.PMBase | 1

	case ich9.GenPMCon1:
		return uint32(m.GenPMCon1)
	}

	return 0xffffffff
}

func (m *Machine) cfgRead16(lane uint16) uint16 {
	return uint16(m.cfgRead32() >> (8 * lane))
}

func (m *Machine) cfgWrite16(lane uint16, v uint16) {
	off, ok := m.cfgDecode()
	if !ok {
		return
	}

	if off+lane == ich9.GenPMCon1 {
		// SMI_LOCK is write-once until reset
		m.GenPMCon1 = v | m.GenPMCon1&ich9.SMILock
	}
}

// fw_cfg. Selecting an item latches its contents; data port reads walk
// through them. Files are assigned keys in name order so a machine's
// directory is stable.

const fwFileKeyBase = 0x20

func (m *Machine) fwFileNames() []string {
	nn := make([]string, 0, len(m.Files))
	for name := range m.Files {
		nn = append(nn, name)
	}

	sort.Strings(nn)
	return nn
}

func (m *Machine) fwSelect(key uint16) {
	m.fwOff = 0
	m.fwItem = nil

	if m.Files == nil {
		return
	}

	switch {
	case key == fwcfg.ItemSignature:
		m.fwItem = []byte(fwcfg.Signature)

	case key == fwcfg.ItemFileDir:
		m.fwItem = m.fwDir()

	case key >= fwFileKeyBase:
		nn := m.fwFileNames()
		if i := int(key - fwFileKeyBase); i < len(nn) {
			m.fwItem = m.Files[nn[i]]
		}
	}
}

func (m *Machine) fwDir() []byte {
	nn := m.fwFileNames()

	dir := make([]byte, 4+64*len(nn))
	be.PutUint32(dir[0:4], uint32(len(nn)))

	for i, name := range nn {
		e := dir[4+64*i:]
		be.PutUint32(e[0:4], uint32(len(m.Files[name])))
		be.PutUint16(e[4:6], fwFileKeyBase+uint16(i))
		copy(e[8:8+56], name)
	}

	return dir
}

func (m *Machine) fwRead() uint8 {
	if m.fwOff >= len(m.fwItem) {
		return 0
	}

	v := m.fwItem[m.fwOff]
	m.fwOff++
	return v
}
