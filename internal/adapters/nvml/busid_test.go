package nvml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldland/gpuctl/internal/domain"
)

func TestFormatBusID(t *testing.T) {
	assert.Equal(t, "0000:65:00.0", FormatBusID(0, 0x65, 0))
	assert.Equal(t, "0001:03:1f.0", FormatBusID(0x10001, 3, 0x1f))
}

func TestMockIdentifier_EnrichDoesNotMutateInput(t *testing.T) {
	in := []domain.GPURecord{{Index: 0, Name: "A"}, {Index: 1, Name: "B"}}
	m := NewMockIdentifier(map[int]string{1: "GPU-b"}, map[int]string{1: "0000:02:00.0"})

	out, err := m.Enrich(in)

	require.NoError(t, err)
	assert.Equal(t, "", in[1].UUID)
	assert.Equal(t, "GPU-b", out[1].UUID)
	assert.Equal(t, "0000:02:00.0", out[1].BusID)
	assert.Equal(t, 1, m.EnrichCalls)
}

func TestMockIdentifier_InitError(t *testing.T) {
	in := []domain.GPURecord{{Index: 0, Name: "A"}}
	m := &MockIdentifier{InitErr: errors.New("NVML init failed")}

	out, err := m.Enrich(in)

	assert.Error(t, err)
	assert.Equal(t, in, out)
}
