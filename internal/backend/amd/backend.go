// Package amd drives AMD GPUs through the kernel DRM sysfs tree.
package amd

import (
	"context"
	"fmt"
	"path"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/worldland/gpuctl/internal/adapters/sysfs"
	"github.com/worldland/gpuctl/internal/domain"
)

// Control node names under <card>/device. They differ between amdgpu driver
// versions, so both are configurable.
const (
	DefaultPowerNode = "power_limit"
	DefaultClockNode = "pp_dpm_sclk"
)

// Backend lists and controls AMD GPUs
type Backend struct {
	Fs        afero.Fs
	Root      string
	PowerNode string
	ClockNode string
	Resolver  Resolver
	Log       log.FieldLogger
}

// NewBackend creates a backend over fs rooted at root. The resolver prefers
// the PCI bus id, then the DRM entry recorded at listing time, and only then
// substring matching on the GPU name.
func NewBackend(fs afero.Fs, root string, logger log.FieldLogger) *Backend {
	if root == "" {
		root = sysfs.DefaultDRMRoot
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Backend{
		Fs:        fs,
		Root:      root,
		PowerNode: DefaultPowerNode,
		ClockNode: DefaultClockNode,
		Resolver:  DefaultResolver(fs, root),
		Log:       logger,
	}
}

// DefaultResolver chains bus id, DRM entry and name substring matching
func DefaultResolver(fs afero.Fs, root string) Resolver {
	return BusIDResolver{
		Fs:   fs,
		Root: root,
		Fallback: EntryResolver{
			Fs:       fs,
			Root:     root,
			Fallback: SubstringResolver{Fs: fs, Root: root},
		},
	}
}

func (b *Backend) Vendor() domain.VendorKind {
	return domain.VendorAMD
}

// List reads device/name of every card entry. Any read failure aborts the
// whole listing: a partial device list is never presented as complete.
func (b *Backend) List(ctx context.Context) ([]domain.GPURecord, error) {
	cards, err := sysfs.ListCards(b.Fs, b.Root)
	if err != nil {
		b.Log.Errorf("Error querying AMD GPU: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}

	gpus := make([]domain.GPURecord, 0, len(cards))
	for _, c := range cards {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
		}
		name, err := sysfs.ReadTrimmed(b.Fs, path.Join(c.DevicePath, "name"))
		if err != nil {
			b.Log.Errorf("Error querying AMD GPU: %v", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
		}
		gpus = append(gpus, domain.GPURecord{
			Index: len(gpus),
			Name:  name,
			Card:  c.Entry,
			BusID: sysfs.PCISlot(b.Fs, c.DevicePath),
		})
	}
	return gpus, nil
}

// Apply resolves the control directory, then writes power (milliwatts) and
// clock independently. An invalid request or an unresolved device performs
// no writes.
func (b *Backend) Apply(ctx context.Context, gpu domain.GPURecord, req domain.LimitRequest) domain.ApplyOutcome {
	out := domain.NewApplyOutcome(gpu)
	logger := b.Log.WithFields(log.Fields{"vendor": domain.VendorAMD.String(), "gpu": gpu.Name})

	if err := req.Validate(); err != nil {
		logger.Errorf("Refusing to apply settings for AMD GPU: %v", err)
		out.Skip(req, err)
		return out
	}

	card, err := b.Resolver.Resolve(gpu)
	if err != nil {
		logger.Errorf("AMD GPU %s not found in sysfs: %v", gpu.Name, err)
		out.Skip(req, err)
		return out
	}

	if req.PowerLimitWatts != nil {
		watts := *req.PowerLimitWatts
		err := b.write(ctx, logger.WithField("setting", domain.SettingPower), card, b.PowerNode, int64(watts*1000)) // watts to milliwatts
		if err == nil {
			logger.Infof("Set AMD power limit to %vW on %s", watts, card.Entry)
		}
		out.Record(domain.SettingPower, watts, err)
	}

	if req.ClockLimitMHz != nil {
		mhz := *req.ClockLimitMHz
		err := b.write(ctx, logger.WithField("setting", domain.SettingClock), card, b.ClockNode, int64(mhz))
		if err == nil {
			logger.Infof("Set AMD clock limit to %v MHz on %s", mhz, card.Entry)
		}
		out.Record(domain.SettingClock, mhz, err)
	}
	return out
}

func (b *Backend) write(ctx context.Context, logger log.FieldLogger, card sysfs.Card, node string, v int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrApplyFailed, err)
	}
	if err := sysfs.WriteInt(b.Fs, path.Join(card.DevicePath, node), v); err != nil {
		logger.Errorf("Error applying settings for AMD GPU: %v", err)
		return fmt.Errorf("%w: %v", domain.ErrApplyFailed, err)
	}
	return nil
}

// Compile-time interface check
var _ domain.Backend = (*Backend)(nil)
