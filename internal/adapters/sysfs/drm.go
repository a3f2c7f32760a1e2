// Package sysfs reads and writes the kernel DRM class tree through afero,
// so the same code runs against /sys, an in-memory tree in tests, or a
// copy-on-write overlay in dry-run mode.
package sysfs

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// DefaultDRMRoot is the kernel's device-class directory for GPUs
const DefaultDRMRoot = "/sys/class/drm"

// Card is one DRM class entry that exposes a device subnode
type Card struct {
	Entry      string // directory entry name, e.g. "card0"
	Path       string // full path to the entry
	DevicePath string // Path + "/device"
}

// ListCards returns entries under root whose name contains "card" and that
// have a device subnode, in directory order.
func ListCards(fs afero.Fs, root string) ([]Card, error) {
	entries, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	var cards []Card
	for _, e := range entries {
		if !strings.Contains(e.Name(), "card") {
			continue
		}
		p := path.Join(root, e.Name())
		dev := path.Join(p, "device")
		ok, err := afero.Exists(fs, dev)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", dev, err)
		}
		if !ok {
			continue
		}
		cards = append(cards, Card{Entry: e.Name(), Path: p, DevicePath: dev})
	}
	return cards, nil
}

// HasCards reports whether at least one card entry with a device subnode
// exists. Errors count as "no".
func HasCards(fs afero.Fs, root string) bool {
	cards, err := ListCards(fs, root)
	return err == nil && len(cards) > 0
}

// ReadTrimmed reads a text node and strips surrounding whitespace
func ReadTrimmed(fs afero.Fs, p string) (string, error) {
	data, err := afero.ReadFile(fs, p)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteInt writes v as a plain integer string to an existing control node.
// The node is opened write-only without O_CREATE, as sysfs attributes are.
func WriteInt(fs afero.Fs, p string, v int64) error {
	f, err := fs.OpenFile(p, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	if _, err := f.Write([]byte(strconv.FormatInt(v, 10))); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", p, err)
	}
	return nil
}

// PCISlot returns the PCI_SLOT_NAME from a device's uevent node, or "" when
// the node is missing or carries no slot.
func PCISlot(fs afero.Fs, devicePath string) string {
	data, err := afero.ReadFile(fs, path.Join(devicePath, "uevent"))
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "PCI_SLOT_NAME=") {
			return strings.TrimPrefix(line, "PCI_SLOT_NAME=")
		}
	}
	return ""
}
