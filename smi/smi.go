// Package smi configures and exposes the Q35 System Management Interrupt
// trigger.
//
// Lockdown runs once at startup. It brings the SMI facility from its
// power-on state to an enabled state, locks the enables in hardware until
// platform reset, and verifies the lock took. The Control it returns is
// the only way to trigger SMIs for the rest of the session. There is no
// degraded mode: a platform where the facility can't be locked gets
// halted, because later trust decisions depend on the trigger being
// genuinely exclusive to privileged software.
package smi

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/c35s/smictl/ich9"
	"github.com/c35s/smictl/platform"
	"github.com/c35s/smictl/registry"
)

// ServiceName is the registry identifier the Control is published under.
const ServiceName = "smi-control"

var (
	ErrConfig           = errors.New("smi: invalid config")
	ErrDevice           = errors.New("smi: device error")
	ErrInvalidParameter = errors.New("smi: invalid parameter")
)

// lockState tracks the one-way hardware lock. The only transitions are
// Unlocked to Locked on the success path and Unlocked to Faulted on any
// verification failure. Faulted has no operation but halting.
type lockState int

const (
	stateUnlocked lockState = iota
	stateLocked
	stateFaulted
)

func (s lockState) String() string {
	switch s {
	case stateUnlocked:
		return "unlocked"

	case stateLocked:
		return "locked"

	case stateFaulted:
		return "faulted"

	default:
		return fmt.Sprintf("lockState(%d)", int(s))
	}
}

// Config describes the platform the SMI facility is locked down on.
type Config struct {

	// IO is the port I/O path to the ACPI PM window, the APM ports, and
	// the fw_cfg device.
	IO platform.IO

	// PCI is the configuration space path to the power management
	// function. It is usually platform.ConfigPorts over the same IO.
	PCI platform.PCI

	// LockedSMRAM records that an earlier bringup phase configured the
	// platform with locked SMRAM. It is a configuration invariant, not a
	// probe: a build that doesn't lock SMRAM has no business installing
	// an SMI trigger, and Lockdown halts before touching hardware if the
	// invariant doesn't hold.
	LockedSMRAM bool

	// StandaloneMM selects the stricter check applied to a pre-set
	// APMC_EN when the management-mode environment is launched
	// standalone.
	StandaloneMM bool

	// Registry, if set, is where Lockdown publishes the Control under
	// ServiceName.
	Registry *registry.Registry

	// Log defaults to slog.Default().
	Log *slog.Logger

	// Halt is the fatal path. It must not return. If Halt is nil,
	// Lockdown logs and panics.
	Halt func()
}

// lockdown is the in-flight state of one Lockdown call.
type lockdown struct {
	cfg   Config
	state lockState
}

// Lockdown configures, locks, and verifies the SMI trigger, and returns
// the Control that fires it. It returns an error only for an unusable
// Config; every platform-level failure is fatal and halts through
// cfg.Halt instead, after moving the lock state machine to Faulted.
func Lockdown(cfg Config) (*Control, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	l := &lockdown{cfg: cfg}

	if !cfg.LockedSMRAM {
		l.fault("SMRAM is not locked on this build")
	}

	// The bringup phase left us a working ACPI PM window; its base names
	// the absolute port of the SMI control and enable register.
	pmBase := cfg.PCI.Read32(ich9.PMReg(ich9.PMBase)) & ich9.PMBaseMask
	smiEn := uint16(pmBase) + ich9.SMIEnOffset

	val := cfg.IO.In32(smiEn)
	cfg.Log.Debug("smi: lockdown starting", "smi_en_port", smiEn, "smi_en", val)

	// A pre-set APMC_EN is either the board's way of signaling that SMI
	// support is absent, or an earlier phase having configured it; after
	// a reset the bit is clear. Under standalone MM the global enable
	// must already be up too, or the facility isn't there at all.
	if val&ich9.SMIEnAPMC != 0 {
		if cfg.StandaloneMM && val&ich9.SMIEnGbl == 0 {
			l.fault("platform lacks SMI support", "smi_en", val)
		}
	}

	// Enable SMI on APM control port writes. Reserved bits ride along
	// verbatim.
	val |= ich9.SMIEnAPMC | ich9.SMIEnGbl
	cfg.IO.Out32(smiEn, val)

	// Freeze the enables until platform reset.
	platform.Or16(cfg.PCI, ich9.PMReg(ich9.GenPMCon1), ich9.SMILock)

	// If the global enable can still be cleared, the lock didn't engage
	// and the facility isn't backed by working hardware.
	cfg.IO.Out32(smiEn, val&^uint32(ich9.SMIEnGbl))
	if got := cfg.IO.In32(smiEn); got != val {
		l.fault("lock did not engage", "want", val, "got", got)
	}

	l.state = stateLocked
	cfg.Log.Debug("smi: lockdown complete", "state", l.state.String())

	c := &Control{
		io:    cfg.IO,
		smiEn: smiEn,
	}

	// Negotiation is advisory: a failed probe downgrades the feature
	// flag, not the lockdown.
	c.negotiated = negotiateFeatures(cfg)

	if cfg.Registry != nil {
		if err := cfg.Registry.Install(ServiceName, c); err != nil {
			l.fault("publish failed", "err", err)
		}
	}

	return c, nil
}

// fault is the boot-fatal path: Unlocked to Faulted, then halt. It never
// returns.
func (l *lockdown) fault(msg string, args ...any) {
	l.state = stateFaulted
	l.cfg.Log.Error("smi: "+msg, args...)
	l.cfg.Halt()
	panic("smi: Halt returned")
}

func (cfg Config) withDefaults() Config {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	if cfg.Halt == nil {
		cfg.Halt = func() {
			panic("smi: lockdown failed")
		}
	}

	return cfg
}

func (cfg Config) validate() error {
	if cfg.IO == nil {
		return errors.New("IO is not set")
	}

	if cfg.PCI == nil {
		return errors.New("PCI is not set")
	}

	return nil
}
