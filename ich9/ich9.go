// Package ich9 defines the Q35/ICH9 registers and bits used to configure
// and trigger System Management Interrupts.
package ich9

import "github.com/c35s/smictl/platform"

// The power management function lives at D31:F0 on bus 0.
const (
	pmBus = 0
	pmDev = 0x1f
	pmFn  = 0
)

// PCI configuration registers of the power management function.
const (
	PMBase    = 0x40 // ACPI PM I/O window base (32-bit)
	GenPMCon1 = 0xa4 // general PM configuration 1 (16-bit)
)

// PMBaseMask keeps bits 15:7 of PMBASE. The window is 128-byte aligned;
// everything below bit 7, including the I/O space indicator, is not part
// of the address.
const PMBaseMask = 0xff80

// GEN_PMCON_1 bits.

const (
	// SMILock freezes the SMI_EN enables until platform reset.
	// Setting it is a one-way transition.
	SMILock = 1 << 4
)

// Registers in the ACPI PM I/O window.
const (
	SMIEnOffset = 0x30 // SMI control and enable register (32-bit)
)

// SMI_EN bits. Bits not named here are reserved and must be carried
// verbatim through every read-modify-write.

const (
	SMIEnGbl  = 1 << 0 // GBL_SMI_EN: global SMI enable
	SMIEnAPMC = 1 << 5 // APMC_EN: assert an SMI on APM control port writes
)

// APM ports. Writing the control port is what asserts the SMI; the status
// port is a scratchpad the SMI handler reads after entry.
const (
	APMCnt = 0xb2
	APMSts = 0xb3
)

// SMI feature bits published by QEMU in etc/smi/supported-features.
const (
	SMIFeatBroadcast    = 1 << 0
	SMIFeatCPUHotplug   = 1 << 1
	SMIFeatCPUHotUnplug = 1 << 2
)

// PMReg addresses a configuration register of the power management function.
func PMReg(off uint16) platform.Addr {
	return platform.Addr{Bus: pmBus, Dev: pmDev, Fn: pmFn, Off: off}
}
