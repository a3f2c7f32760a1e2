package amd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/worldland/gpuctl/internal/adapters/sysfs"
	"github.com/worldland/gpuctl/internal/domain"
)

// Resolver maps a GPU record back to its DRM control directory
type Resolver interface {
	Resolve(gpu domain.GPURecord) (sysfs.Card, error)
}

// SubstringResolver matches DRM entries whose name contains the GPU name.
// Zero or several matches are errors; it never guesses.
type SubstringResolver struct {
	Fs   afero.Fs
	Root string
}

func (r SubstringResolver) Resolve(gpu domain.GPURecord) (sysfs.Card, error) {
	if gpu.Name == "" {
		return sysfs.Card{}, fmt.Errorf("%w: GPU has no name", domain.ErrDeviceNotFound)
	}
	cards, err := sysfs.ListCards(r.Fs, r.Root)
	if err != nil {
		return sysfs.Card{}, fmt.Errorf("%w: %v", domain.ErrDeviceNotFound, err)
	}
	var matches []sysfs.Card
	for _, c := range cards {
		if strings.Contains(c.Entry, gpu.Name) {
			matches = append(matches, c)
		}
	}
	return pick(matches, fmt.Sprintf("name %q", gpu.Name))
}

// EntryResolver matches the DRM entry recorded at listing time, e.g. "card0".
// Records without an entry go to Fallback.
type EntryResolver struct {
	Fs       afero.Fs
	Root     string
	Fallback Resolver
}

func (r EntryResolver) Resolve(gpu domain.GPURecord) (sysfs.Card, error) {
	if gpu.Card == "" {
		if r.Fallback == nil {
			return sysfs.Card{}, fmt.Errorf("%w: GPU has no DRM entry", domain.ErrDeviceNotFound)
		}
		return r.Fallback.Resolve(gpu)
	}
	cards, err := sysfs.ListCards(r.Fs, r.Root)
	if err != nil {
		return sysfs.Card{}, fmt.Errorf("%w: %v", domain.ErrDeviceNotFound, err)
	}
	var matches []sysfs.Card
	for _, c := range cards {
		if c.Entry == gpu.Card {
			matches = append(matches, c)
		}
	}
	return pick(matches, "entry "+gpu.Card)
}

// BusIDResolver matches the card whose device/uevent carries the record's
// PCI slot. Records without a bus id go to Fallback.
type BusIDResolver struct {
	Fs       afero.Fs
	Root     string
	Fallback Resolver
}

func (r BusIDResolver) Resolve(gpu domain.GPURecord) (sysfs.Card, error) {
	if gpu.BusID == "" {
		if r.Fallback == nil {
			return sysfs.Card{}, fmt.Errorf("%w: GPU has no bus id", domain.ErrDeviceNotFound)
		}
		return r.Fallback.Resolve(gpu)
	}
	cards, err := sysfs.ListCards(r.Fs, r.Root)
	if err != nil {
		return sysfs.Card{}, fmt.Errorf("%w: %v", domain.ErrDeviceNotFound, err)
	}
	var matches []sysfs.Card
	for _, c := range cards {
		if strings.EqualFold(sysfs.PCISlot(r.Fs, c.DevicePath), gpu.BusID) {
			matches = append(matches, c)
		}
	}
	return pick(matches, "bus id "+gpu.BusID)
}

func pick(matches []sysfs.Card, what string) (sysfs.Card, error) {
	switch len(matches) {
	case 0:
		return sysfs.Card{}, fmt.Errorf("%w: no DRM entry for %s", domain.ErrDeviceNotFound, what)
	case 1:
		return matches[0], nil
	default:
		entries := make([]string, len(matches))
		for i, m := range matches {
			entries[i] = m.Entry
		}
		return sysfs.Card{}, fmt.Errorf("%w: %s matches %s", domain.ErrDeviceAmbiguous, what, strings.Join(entries, ", "))
	}
}

// Compile-time interface checks
var (
	_ Resolver = SubstringResolver{}
	_ Resolver = EntryResolver{}
	_ Resolver = BusIDResolver{}
)
