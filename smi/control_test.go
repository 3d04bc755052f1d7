package smi_test

import (
	"errors"
	"testing"

	"github.com/c35s/smictl/ich9"
	"github.com/c35s/smictl/sim"
	"github.com/c35s/smictl/smi"
	"github.com/google/go-cmp/cmp"
)

// newControl locks down a fresh machine and resets its trace so tests see
// only the accesses made through the returned control.
func newControl(t *testing.T) (*smi.Control, *sim.Machine) {
	t.Helper()

	m := sim.New()
	ctl, err := smi.Lockdown(testConfig(m))
	if err != nil {
		t.Fatal(err)
	}

	m.Trace = nil
	return ctl, m
}

func TestTriggerWriteOrder(t *testing.T) {
	ctl, m := newControl(t)

	var (
		cmd  = uint8(0x42)
		data = uint8(0x99)
	)

	if err := ctl.Trigger(&cmd, &data, false, 0); err != nil {
		t.Fatal(err)
	}

	// the data port is staged before the command port asserts the SMI
	want := []sim.Access{
		{Op: "out8", Port: ich9.APMSts, Val: 0x99},
		{Op: "out8", Port: ich9.APMCnt, Val: 0x42},
	}

	if diff := cmp.Diff(want, m.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestTriggerNilBytes(t *testing.T) {
	ctl, m := newControl(t)

	if err := ctl.Trigger(nil, nil, false, 0); err != nil {
		t.Fatal(err)
	}

	want := []sim.Access{
		{Op: "out8", Port: ich9.APMSts, Val: 0},
		{Op: "out8", Port: ich9.APMCnt, Val: 0},
	}

	if diff := cmp.Diff(want, m.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestTriggerRepeats(t *testing.T) {
	ctl, m := newControl(t)

	fired := 0
	m.SMIHandler = func(cmd, data uint8) {
		fired++
	}

	for i := 0; i < 3; i++ {
		if err := ctl.Trigger(nil, nil, false, 0); err != nil {
			t.Fatal(err)
		}
	}

	if fired != 3 {
		t.Errorf("SMI fired %d times != 3", fired)
	}
}

func TestTriggerRejectsPeriodic(t *testing.T) {
	ctl, m := newControl(t)

	cases := []struct {
		periodic bool
		interval uint64
	}{
		{periodic: true, interval: 0},
		{periodic: false, interval: 1},
		{periodic: true, interval: 640},
	}

	for _, tc := range cases {
		err := ctl.Trigger(nil, nil, tc.periodic, tc.interval)
		if !errors.Is(err, smi.ErrDevice) {
			t.Errorf("periodic=%v interval=%d: error isn't ErrDevice: %v",
				tc.periodic, tc.interval, err)
		}
	}

	if len(m.Trace) != 0 {
		t.Errorf("%d register accesses for rejected triggers", len(m.Trace))
	}
}

func TestClear(t *testing.T) {
	ctl, m := newControl(t)

	if err := ctl.Clear(true); !errors.Is(err, smi.ErrInvalidParameter) {
		t.Errorf("error isn't ErrInvalidParameter: %v", err)
	}

	// acknowledging is a sanctioned no-op, repeatable indefinitely
	for i := 0; i < 3; i++ {
		if err := ctl.Clear(false); err != nil {
			t.Fatal(err)
		}
	}

	if len(m.Trace) != 0 {
		t.Errorf("%d register accesses for clear", len(m.Trace))
	}
}

func TestMinimumTriggerPeriod(t *testing.T) {
	// the maximum representable period means "periodic SMIs unsupported"
	if smi.MinimumTriggerPeriod != 1<<64-1 {
		t.Errorf("MinimumTriggerPeriod %d is not maximal", smi.MinimumTriggerPeriod)
	}
}
