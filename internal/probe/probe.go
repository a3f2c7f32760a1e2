// Package probe decides which GPU vendor backend is present on the host.
package probe

import (
	"context"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/worldland/gpuctl/internal/adapters/runner"
	"github.com/worldland/gpuctl/internal/adapters/sysfs"
	"github.com/worldland/gpuctl/internal/domain"
)

// VendorProbe is the detection step of the controller
type VendorProbe interface {
	Detect(ctx context.Context) domain.VendorKind
}

// Prober checks for the NVIDIA management tool first, then for AMD DRM nodes.
// Detection never fails: a broken or missing backend is a negative result.
type Prober struct {
	Runner  runner.Runner
	Fs      afero.Fs
	DRMRoot string
	SMIPath string
	GOOS    string
	Log     log.FieldLogger
}

// NewProber creates a prober for the current host OS
func NewProber(r runner.Runner, fs afero.Fs, drmRoot, smiPath string, logger log.FieldLogger) *Prober {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Prober{
		Runner:  r,
		Fs:      fs,
		DRMRoot: drmRoot,
		SMIPath: smiPath,
		GOOS:    runtime.GOOS,
		Log:     logger,
	}
}

// Detect returns the first matching vendor: NVIDIA, then AMD (Linux only), then Unknown
func (p *Prober) Detect(ctx context.Context) domain.VendorKind {
	_, err := p.Runner.Run(ctx, p.SMIPath)
	if err == nil {
		return domain.VendorNVIDIA
	}
	p.Log.Debugf("NVIDIA check negative: %v", err)

	if p.GOOS != "linux" {
		p.Log.Debugf("AMD check skipped on %s", p.GOOS)
		return domain.VendorUnknown
	}

	if sysfs.HasCards(p.Fs, p.DRMRoot) {
		return domain.VendorAMD
	}
	p.Log.Debugf("AMD check negative: no card entries with a device node under %s", p.DRMRoot)

	return domain.VendorUnknown
}

// ForcedProbe skips detection and always reports Vendor (--vendor flag)
type ForcedProbe struct {
	Vendor domain.VendorKind
}

func (f ForcedProbe) Detect(ctx context.Context) domain.VendorKind {
	return f.Vendor
}

// Compile-time interface checks
var (
	_ VendorProbe = (*Prober)(nil)
	_ VendorProbe = ForcedProbe{}
)
