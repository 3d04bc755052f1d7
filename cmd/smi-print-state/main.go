// smi-print-state prints the SMI-related register state of the local
// machine without modifying it.
package main

import (
	"fmt"

	"github.com/c35s/smictl/ich9"
	"github.com/c35s/smictl/platform"
	"github.com/c35s/smictl/platform/devport"
)

func main() {
	dp, err := devport.Open()
	if err != nil {
		panic(err)
	}

	defer dp.Close()

	pci := platform.ConfigPorts{IO: dp}

	pmBase := pci.Read32(ich9.PMReg(ich9.PMBase)) & ich9.PMBaseMask
	fmt.Printf("PMBASE: %#x\n", pmBase)

	smiEn := dp.In32(uint16(pmBase) + ich9.SMIEnOffset)
	fmt.Printf("SMI_EN: %#08x\n", smiEn)
	fmt.Printf("  GBL_SMI_EN: %v\n", smiEn&ich9.SMIEnGbl != 0)
	fmt.Printf("  APMC_EN:    %v\n", smiEn&ich9.SMIEnAPMC != 0)

	pmCon := pci.Read16(ich9.PMReg(ich9.GenPMCon1))
	fmt.Printf("GEN_PMCON_1: %#04x\n", pmCon)
	fmt.Printf("  SMI_LOCK: %v\n", pmCon&ich9.SMILock != 0)
}
