package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorKind_String(t *testing.T) {
	assert.Equal(t, "NVIDIA", VendorNVIDIA.String())
	assert.Equal(t, "AMD", VendorAMD.String())
	assert.Equal(t, "Unknown", VendorUnknown.String())
}

func TestParseVendor(t *testing.T) {
	for in, want := range map[string]VendorKind{
		"":       VendorUnknown,
		"auto":   VendorUnknown,
		"nvidia": VendorNVIDIA,
		"NVIDIA": VendorNVIDIA,
		"amd":    VendorAMD,
	} {
		got, err := ParseVendor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVendor("intel")
	assert.ErrorIs(t, err, ErrUnknownVendor)
}

func TestGPURecord_Selectable(t *testing.T) {
	assert.True(t, GPURecord{Name: "RTX 4090"}.Selectable())
	assert.False(t, GPURecord{}.Selectable())
}
