package sysfs

import (
	"path"

	"github.com/spf13/afero"
)

// FakeCard describes a DRM entry to lay out in an in-memory tree
type FakeCard struct {
	Entry   string
	Name    string // contents of device/name, "" leaves the node out
	PCISlot string // PCI_SLOT_NAME in device/uevent, "" leaves the node out
	Nodes   []string
}

// AddFakeCard creates entry/device with the given nodes under root.
// Control nodes are created empty so writes to them succeed.
func AddFakeCard(fs afero.Fs, root string, c FakeCard) error {
	dev := path.Join(root, c.Entry, "device")
	if err := fs.MkdirAll(dev, 0755); err != nil {
		return err
	}
	if c.Name != "" {
		if err := afero.WriteFile(fs, path.Join(dev, "name"), []byte(c.Name+"\n"), 0444); err != nil {
			return err
		}
	}
	if c.PCISlot != "" {
		uevent := "DRIVER=amdgpu\nPCI_SLOT_NAME=" + c.PCISlot + "\n"
		if err := afero.WriteFile(fs, path.Join(dev, "uevent"), []byte(uevent), 0444); err != nil {
			return err
		}
	}
	for _, n := range c.Nodes {
		if err := afero.WriteFile(fs, path.Join(dev, n), nil, 0644); err != nil {
			return err
		}
	}
	return nil
}
