// smictl locks down the Q35 SMI trigger and fires a single SMI.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/c35s/smictl/platform"
	"github.com/c35s/smictl/platform/devport"
	"github.com/c35s/smictl/registry"
	"github.com/c35s/smictl/sim"
	"github.com/c35s/smictl/smi"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type platformFile struct {

	// Backend selects the register access path: "devport" drives the
	// real ports through /dev/port, "sim" a modeled machine.
	Backend string `yaml:"backend"`

	// StandaloneMM enables the stricter lockdown check used when the
	// management-mode environment is launched standalone.
	StandaloneMM bool `yaml:"standalone-mm"`

	// LockedSMRAM asserts that SMRAM was locked during bringup. Lockdown
	// refuses to run without it.
	LockedSMRAM bool `yaml:"locked-smram"`
}

func main() {

	var (
		cfgPath  = flag.String("platform", "", "load the platform description from a YAML file")
		cmdByte  = flag.Uint("command", 0, "value written to the APM command port")
		dataByte = flag.Uint("data", 0, "value written to the APM data port")
		yes      = flag.Bool("yes", false, "skip the confirmation prompt")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)

	flag.Parse()

	if *verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	pf := platformFile{
		Backend:     "sim",
		LockedSMRAM: true,
	}

	if *cfgPath != "" {
		buf, err := os.ReadFile(*cfgPath)
		if err != nil {
			panic(err)
		}

		if err := yaml.Unmarshal(buf, &pf); err != nil {
			panic(err)
		}
	}

	var pio platform.IO
	switch pf.Backend {
	case "sim":
		m := sim.New()
		m.SMIHandler = func(cmd, data uint8) {
			fmt.Printf("SMI asserted: command %#02x data %#02x\n", cmd, data)
		}

		pio = m

	case "devport":
		dp, err := devport.Open()
		if err != nil {
			panic(err)
		}

		defer dp.Close()
		pio = dp

	default:
		panic(fmt.Errorf("unknown backend %q", pf.Backend))
	}

	if !*yes && !confirm(pf.Backend) {
		fmt.Println("aborted")
		return
	}

	ctl, err := smi.Lockdown(smi.Config{
		IO:           pio,
		PCI:          platform.ConfigPorts{IO: pio},
		LockedSMRAM:  pf.LockedSMRAM,
		StandaloneMM: pf.StandaloneMM,
		Registry:     registry.New(),
	})

	if err != nil {
		panic(err)
	}

	var (
		cv = uint8(*cmdByte)
		dv = uint8(*dataByte)
	)

	if err := ctl.Trigger(&cv, &dv, false, 0); err != nil {
		panic(err)
	}

	if err := ctl.Clear(false); err != nil {
		panic(err)
	}

	fmt.Printf("triggered: command %#02x data %#02x negotiated=%v\n",
		cv, dv, ctl.NegotiatedFeatures())
}

// confirm prompts before touching the machine. Lockdown is irreversible
// on real hardware, so a non-interactive run without -yes doesn't
// proceed.
func confirm(backend string) bool {
	if backend == "sim" {
		return true
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}

	fmt.Printf("lock down SMI enables until reset and trigger an SMI? [y/N] ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(line) == "y"
}
