package nvml

import "fmt"

// FormatBusID renders a PCI location in the sysfs form used by
// PCI_SLOT_NAME, e.g. "0000:65:00.0". NVML reports a 32-bit domain but
// the kernel uses the low 16 bits.
func FormatBusID(domain, bus, device uint32) string {
	return fmt.Sprintf("%04x:%02x:%02x.0", domain&0xffff, bus, device)
}
