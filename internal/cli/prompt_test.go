package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldland/gpuctl/internal/domain"
)

func testGPUs() []domain.GPURecord {
	return []domain.GPURecord{
		{Index: 0, Name: "RTX 4090", MaxPowerWatts: domain.Float64(450), CurrentPowerWatts: domain.Float64(97.5)},
		{Index: 1, Name: "RTX 3090", MaxPowerWatts: domain.Float64(350)},
	}
}

func TestPrompt_Select(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompt(strings.NewReader("2\n300\n1500\n"), &out, domain.VendorNVIDIA)

	sel, err := p.Select(context.Background(), testGPUs())

	require.NoError(t, err)
	assert.Equal(t, 2, sel.Index)
	require.NotNil(t, sel.Limits.PowerLimitWatts)
	require.NotNil(t, sel.Limits.ClockLimitMHz)
	assert.Equal(t, 300.0, *sel.Limits.PowerLimitWatts)
	assert.Equal(t, 1500.0, *sel.Limits.ClockLimitMHz)

	printed := out.String()
	assert.Contains(t, printed, "RTX 3090")
	assert.Contains(t, printed, "Enter the number of the GPU to adjust:")
	assert.Contains(t, printed, "Enter power limit (W):")
	assert.Contains(t, printed, "Enter clock limit (MHz):")
}

func TestPrompt_BlankLimitIsUnset(t *testing.T) {
	p := NewPrompt(strings.NewReader("1\n300\n\n"), &bytes.Buffer{}, domain.VendorNVIDIA)

	sel, err := p.Select(context.Background(), testGPUs())

	require.NoError(t, err)
	assert.NotNil(t, sel.Limits.PowerLimitWatts)
	assert.Nil(t, sel.Limits.ClockLimitMHz)
}

func TestPrompt_LastLineWithoutNewline(t *testing.T) {
	p := NewPrompt(strings.NewReader("1\n300\n1500"), &bytes.Buffer{}, domain.VendorNVIDIA)

	sel, err := p.Select(context.Background(), testGPUs())

	require.NoError(t, err)
	require.NotNil(t, sel.Limits.ClockLimitMHz)
	assert.Equal(t, 1500.0, *sel.Limits.ClockLimitMHz)
}

func TestPrompt_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"non-numeric index", "first\n300\n1500\n"},
		{"non-numeric power", "1\nlots\n1500\n"},
		{"non-numeric clock", "1\n300\nfast\n"},
		{"closed input", "1\n"},
		{"empty input", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPrompt(strings.NewReader(tt.input), &bytes.Buffer{}, domain.VendorNVIDIA)

			_, err := p.Select(context.Background(), testGPUs())

			assert.ErrorIs(t, err, domain.ErrSelectionInvalid)
		})
	}
}

func TestPrompt_OutOfRangeChoiceAsksNoLimits(t *testing.T) {
	for _, input := range []string{"0\n300\n1500\n", "3\n300\n1500\n", "-1\n300\n1500\n"} {
		var out bytes.Buffer
		p := NewPrompt(strings.NewReader(input), &out, domain.VendorNVIDIA)

		_, err := p.Select(context.Background(), testGPUs())

		assert.ErrorIs(t, err, domain.ErrSelectionInvalid, input)
		assert.NotContains(t, out.String(), "Enter power limit", input)
		assert.NotContains(t, out.String(), "Enter clock limit", input)
	}
}

func TestPrompt_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPrompt(strings.NewReader("1\n300\n1500\n"), &bytes.Buffer{}, domain.VendorNVIDIA)

	_, err := p.Select(ctx, testGPUs())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseLimit(t *testing.T) {
	v, err := ParseLimit(" 250.5 ")
	require.NoError(t, err)
	assert.Equal(t, 250.5, *v)

	v, err = ParseLimit("   ")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ParseLimit("250W")
	assert.ErrorIs(t, err, domain.ErrSelectionInvalid)
}

func TestFlagSelector(t *testing.T) {
	f := FlagSelector{Index: 1, Limits: domain.LimitRequest{PowerLimitWatts: domain.Float64(200)}}

	sel, err := f.Select(context.Background(), testGPUs())
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Index)
	assert.Equal(t, 200.0, *sel.Limits.PowerLimitWatts)

	_, err = FlagSelector{}.Select(context.Background(), testGPUs())
	assert.ErrorIs(t, err, domain.ErrSelectionInvalid)
}
