package domain

import "strings"

// VendorKind identifies the GPU vendor backend present on the host
type VendorKind int

const (
	VendorUnknown VendorKind = iota
	VendorNVIDIA
	VendorAMD
)

func (v VendorKind) String() string {
	switch v {
	case VendorNVIDIA:
		return "NVIDIA"
	case VendorAMD:
		return "AMD"
	default:
		return "Unknown"
	}
}

// MarshalText renders the vendor by name in JSON output
func (v VendorKind) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseVendor maps a --vendor flag value to a VendorKind.
// "auto" and the empty string return VendorUnknown, meaning "probe the host".
func ParseVendor(s string) (VendorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return VendorUnknown, nil
	case "nvidia":
		return VendorNVIDIA, nil
	case "amd":
		return VendorAMD, nil
	default:
		return VendorUnknown, ErrUnknownVendor
	}
}

// GPURecord represents one physical GPU discovered on the host during a
// single invocation. Nothing here is persisted.
type GPURecord struct {
	Index int    `json:"index"` // 0-based enumeration position within one query
	Name  string `json:"name"`

	// NVIDIA only, from telemetry
	MaxPowerWatts     *float64 `json:"max_power_watts,omitempty"`
	CurrentPowerWatts *float64 `json:"current_power_watts,omitempty"`

	Card  string `json:"card,omitempty"`   // AMD DRM class entry, e.g. "card0"
	BusID string `json:"bus_id,omitempty"` // PCI bus location when known
	UUID  string `json:"uuid,omitempty"`   // NVIDIA, from NVML
}

// Selectable reports whether an operator may pick this GPU
func (g GPURecord) Selectable() bool {
	return strings.TrimSpace(g.Name) != ""
}

// Float64 returns a pointer to v, for optional numeric fields
func Float64(v float64) *float64 {
	return &v
}
