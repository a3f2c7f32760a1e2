package amd

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldland/gpuctl/internal/adapters/sysfs"
	"github.com/worldland/gpuctl/internal/domain"
)

const root = sysfs.DefaultDRMRoot

var controlNodes = []string{DefaultPowerNode, DefaultClockNode}

func newTree(t *testing.T, cards ...sysfs.FakeCard) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(root, 0755))
	for _, c := range cards {
		require.NoError(t, sysfs.AddFakeCard(fs, root, c))
	}
	return fs
}

func newTestBackend(fs afero.Fs) (*Backend, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return NewBackend(fs, root, logger), hook
}

func readNode(t *testing.T, fs afero.Fs, p string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	return string(data)
}

func TestList_ReadsTrimmedNames(t *testing.T) {
	fs := newTree(t,
		sysfs.FakeCard{Entry: "card0", Name: "amdgpu", PCISlot: "0000:03:00.0"},
		sysfs.FakeCard{Entry: "card1", Name: "amdgpu"},
	)
	require.NoError(t, fs.MkdirAll(root+"/renderD128/device", 0755))
	b, _ := newTestBackend(fs)

	gpus, err := b.List(context.Background())

	require.NoError(t, err)
	require.Len(t, gpus, 2)
	assert.Equal(t, domain.GPURecord{Index: 0, Name: "amdgpu", Card: "card0", BusID: "0000:03:00.0"}, gpus[0])
	assert.Equal(t, "card1", gpus[1].Card)
	assert.Empty(t, gpus[1].BusID)
	assert.Nil(t, gpus[0].MaxPowerWatts)
}

func TestList_ReadFailureAbortsWholeListing(t *testing.T) {
	fs := newTree(t,
		sysfs.FakeCard{Entry: "card0", Name: "amdgpu"},
		sysfs.FakeCard{Entry: "card1"}, // no name node
	)
	b, hook := newTestBackend(fs)

	gpus, err := b.List(context.Background())

	assert.Nil(t, gpus)
	assert.ErrorIs(t, err, domain.ErrQueryFailed)
	assert.Contains(t, hook.LastEntry().Message, "Error querying AMD GPU")
}

func TestList_MissingRoot(t *testing.T) {
	b, _ := newTestBackend(afero.NewMemMapFs())

	gpus, err := b.List(context.Background())

	assert.Nil(t, gpus)
	assert.ErrorIs(t, err, domain.ErrQueryFailed)
}

func TestApply_PowerWritesMilliwatts(t *testing.T) {
	fs := newTree(t, sysfs.FakeCard{Entry: "card0", Name: "amdgpu", Nodes: controlNodes})
	b, _ := newTestBackend(fs)

	out := b.Apply(context.Background(), domain.GPURecord{Name: "card0"}, domain.LimitRequest{PowerLimitWatts: domain.Float64(150)})

	assert.Equal(t, "150000", readNode(t, fs, root+"/card0/device/power_limit"))
	assert.Equal(t, "", readNode(t, fs, root+"/card0/device/pp_dpm_sclk"))
	assert.Equal(t, domain.StatusApplied, out.Power.Status)
	assert.Equal(t, domain.StatusNotRequested, out.Clock.Status)
	assert.True(t, out.Applied())
}

func TestApply_TruncatesToInteger(t *testing.T) {
	fs := newTree(t, sysfs.FakeCard{Entry: "card0", Nodes: controlNodes})
	b, _ := newTestBackend(fs)

	out := b.Apply(context.Background(), domain.GPURecord{Card: "card0", Name: "amdgpu"}, domain.LimitRequest{
		PowerLimitWatts: domain.Float64(150.0009),
		ClockLimitMHz:   domain.Float64(1800.7),
	})

	require.NoError(t, out.Err)
	assert.Equal(t, "150000", readNode(t, fs, root+"/card0/device/power_limit"))
	assert.Equal(t, "1800", readNode(t, fs, root+"/card0/device/pp_dpm_sclk"))
}

func TestApply_NoMatchPerformsNoWrites(t *testing.T) {
	fs := newTree(t, sysfs.FakeCard{Entry: "card0", Nodes: controlNodes})
	b, hook := newTestBackend(fs)
	req := domain.LimitRequest{PowerLimitWatts: domain.Float64(150), ClockLimitMHz: domain.Float64(1800)}

	out := b.Apply(context.Background(), domain.GPURecord{Name: "Radeon VII"}, req)

	assert.ErrorIs(t, out.Err, domain.ErrDeviceNotFound)
	assert.Equal(t, domain.StatusSkipped, out.Power.Status)
	assert.Equal(t, domain.StatusSkipped, out.Clock.Status)
	assert.Empty(t, out.Attempted())
	assert.Equal(t, "", readNode(t, fs, root+"/card0/device/power_limit"))
	assert.Equal(t, "", readNode(t, fs, root+"/card0/device/pp_dpm_sclk"))
	assert.Contains(t, hook.LastEntry().Message, "not found in sysfs")
}

func TestApply_AmbiguousMatchPerformsNoWrites(t *testing.T) {
	fs := newTree(t,
		sysfs.FakeCard{Entry: "card0", Nodes: controlNodes},
		sysfs.FakeCard{Entry: "card1", Nodes: controlNodes},
	)
	b, _ := newTestBackend(fs)

	out := b.Apply(context.Background(), domain.GPURecord{Name: "card"}, domain.LimitRequest{PowerLimitWatts: domain.Float64(150)})

	assert.ErrorIs(t, out.Err, domain.ErrDeviceAmbiguous)
	assert.Equal(t, "", readNode(t, fs, root+"/card0/device/power_limit"))
	assert.Equal(t, "", readNode(t, fs, root+"/card1/device/power_limit"))
}

func TestApply_PowerFailureStillWritesClock(t *testing.T) {
	fs := newTree(t, sysfs.FakeCard{Entry: "card0", Nodes: []string{DefaultClockNode}})
	b, _ := newTestBackend(fs)

	out := b.Apply(context.Background(), domain.GPURecord{Card: "card0", Name: "amdgpu"}, domain.LimitRequest{
		PowerLimitWatts: domain.Float64(150),
		ClockLimitMHz:   domain.Float64(1800),
	})

	assert.Equal(t, domain.StatusFailed, out.Power.Status)
	assert.Equal(t, domain.StatusApplied, out.Clock.Status)
	assert.ErrorIs(t, out.Err, domain.ErrApplyFailed)
	assert.Equal(t, "1800", readNode(t, fs, root+"/card0/device/pp_dpm_sclk"))
}

func TestApply_ReadOnlyFsReportsBothFailures(t *testing.T) {
	base := newTree(t, sysfs.FakeCard{Entry: "card0", Nodes: controlNodes})
	b, _ := newTestBackend(afero.NewReadOnlyFs(base))

	out := b.Apply(context.Background(), domain.GPURecord{Card: "card0", Name: "amdgpu"}, domain.LimitRequest{
		PowerLimitWatts: domain.Float64(150),
		ClockLimitMHz:   domain.Float64(1800),
	})

	assert.Equal(t, domain.StatusFailed, out.Power.Status)
	assert.Equal(t, domain.StatusFailed, out.Clock.Status)
	assert.Equal(t, []domain.Setting{domain.SettingPower, domain.SettingClock}, out.Attempted())
}

func TestApply_ConfigurableNodes(t *testing.T) {
	fs := newTree(t, sysfs.FakeCard{Entry: "card0", Nodes: []string{"hwmon_power1_cap"}})
	b, _ := newTestBackend(fs)
	b.PowerNode = "hwmon_power1_cap"

	out := b.Apply(context.Background(), domain.GPURecord{Card: "card0", Name: "amdgpu"}, domain.LimitRequest{PowerLimitWatts: domain.Float64(200)})

	require.NoError(t, out.Err)
	assert.Equal(t, "200000", readNode(t, fs, root+"/card0/device/hwmon_power1_cap"))
}

func TestApply_IsRepeatable(t *testing.T) {
	fs := newTree(t, sysfs.FakeCard{Entry: "card0", Nodes: controlNodes})
	b, _ := newTestBackend(fs)
	gpu := domain.GPURecord{Card: "card0", Name: "amdgpu"}
	req := domain.LimitRequest{PowerLimitWatts: domain.Float64(150)}

	first := b.Apply(context.Background(), gpu, req)
	second := b.Apply(context.Background(), gpu, req)

	assert.True(t, first.Applied())
	assert.True(t, second.Applied())
	assert.Equal(t, "150000", readNode(t, fs, root+"/card0/device/power_limit"))
}

func TestApply_OutOfRangeLimitsPerformNoWrites(t *testing.T) {
	tests := []struct {
		name string
		req  domain.LimitRequest
	}{
		{"power overflows milliwatts", domain.LimitRequest{PowerLimitWatts: domain.Float64(1e300), ClockLimitMHz: domain.Float64(1800)}},
		{"clock overflows", domain.LimitRequest{PowerLimitWatts: domain.Float64(150), ClockLimitMHz: domain.Float64(1e30)}},
		{"clock truncates to zero", domain.LimitRequest{ClockLimitMHz: domain.Float64(0.5)}},
		{"power truncates to zero", domain.LimitRequest{PowerLimitWatts: domain.Float64(0.0001)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newTree(t, sysfs.FakeCard{Entry: "card0", Nodes: controlNodes})
			b, hook := newTestBackend(fs)

			out := b.Apply(context.Background(), domain.GPURecord{Card: "card0", Name: "amdgpu"}, tt.req)

			assert.ErrorIs(t, out.Err, domain.ErrInvalidLimit)
			assert.Empty(t, out.Attempted())
			assert.False(t, out.Applied())
			assert.Equal(t, "", readNode(t, fs, root+"/card0/device/power_limit"))
			assert.Equal(t, "", readNode(t, fs, root+"/card0/device/pp_dpm_sclk"))
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, "amdgpu", hook.LastEntry().Data["gpu"])
		})
	}
}
