package smi

import (
	"math"

	"github.com/c35s/smictl/ich9"
	"github.com/c35s/smictl/platform"
)

// MinimumTriggerPeriod advertises that periodic SMIs are categorically
// unsupported: the maximum representable period means single synchronous
// activations only.
const MinimumTriggerPeriod uint64 = math.MaxUint64

// Control triggers and acknowledges SMIs. It is only available from a
// completed Lockdown, so holding one implies the enables are set and
// hardware-locked. Its methods don't serialize concurrent callers; a
// caller that shares a Control across goroutines owns that discipline.
type Control struct {
	io         platform.IO
	smiEn      uint16
	negotiated bool
}

// Trigger fires a single synchronous SMI. cmd and data may be nil, in
// which case zero is written. Periodic or delayed activation is not
// supported: a periodic request or a nonzero interval fails with
// ErrDevice before any register is written.
//
// The data port is written first. It is only a scratchpad the SMI handler
// reads after entry; the write to the command port is what asserts the
// SMI, so it must come last.
func (c *Control) Trigger(cmd, data *uint8, periodic bool, interval uint64) error {
	if periodic || interval > 0 {
		return ErrDevice
	}

	var cv, dv uint8
	if cmd != nil {
		cv = *cmd
	}

	if data != nil {
		dv = *data
	}

	c.io.Out8(ich9.APMSts, dv)
	c.io.Out8(ich9.APMCnt, cv)

	return nil
}

// Clear acknowledges the last Trigger. Only software-visible activation
// state is in scope here, and there is none: the chipset deasserts the
// SMI on its own as the CPU enters management mode. Deasserting it from
// software could also swallow an SMI raised between the handler's return
// and this call. Clear is safe to call any number of times.
func (c *Control) Clear(periodic bool) error {
	if periodic {
		return ErrInvalidParameter
	}

	return nil
}

// Enabled reads the SMI enable register back and reports whether both
// enables are up. After a successful Lockdown it always reports true.
func (c *Control) Enabled() bool {
	const both = uint32(ich9.SMIEnAPMC | ich9.SMIEnGbl)
	return c.io.In32(c.smiEn)&both == both
}

// NegotiatedFeatures reports whether the advisory feature probe
// succeeded. Nothing consults it yet.
func (c *Control) NegotiatedFeatures() bool {
	return c.negotiated
}
