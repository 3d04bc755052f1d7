package smi

import (
	"encoding/binary"

	"github.com/c35s/smictl/fwcfg"
	"github.com/c35s/smictl/ich9"
)

// supportedFeaturesFile is the little-endian uint64 bitmap of SMI
// features the board supports.
const supportedFeaturesFile = "etc/smi/supported-features"

// negotiateFeatures probes the board's SMI feature bitmap over fw_cfg.
// The probe is read-only and advisory: it succeeds when broadcast SMI is
// on offer, and its result is recorded on the Control for future
// consumers without gating anything today.
func negotiateFeatures(cfg Config) bool {
	fw := fwcfg.Client{IO: cfg.IO}

	if err := fw.Probe(); err != nil {
		cfg.Log.Debug("smi: feature negotiation unavailable", "err", err)
		return false
	}

	f, err := fw.Find(supportedFeaturesFile)
	if err != nil {
		cfg.Log.Debug("smi: feature negotiation unavailable", "err", err)
		return false
	}

	if f.Size != 8 {
		cfg.Log.Debug("smi: unexpected feature bitmap size", "size", f.Size)
		return false
	}

	var buf [8]byte
	fw.ReadFile(f, buf[:])

	supported := binary.LittleEndian.Uint64(buf[:])
	cfg.Log.Debug("smi: features", "supported", supported)

	return supported&ich9.SMIFeatBroadcast != 0
}
