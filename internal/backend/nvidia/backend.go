// Package nvidia drives NVIDIA GPUs through the nvidia-smi management tool.
package nvidia

import (
	"context"
	"fmt"
	"math"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/worldland/gpuctl/internal/adapters/runner"
	"github.com/worldland/gpuctl/internal/domain"
)

// DefaultSMIPath is the management tool looked up on $PATH
const DefaultSMIPath = "nvidia-smi"

// Backend lists and controls NVIDIA GPUs. Query and Control may be different
// runners so that dry-run mode still reads live telemetry.
type Backend struct {
	Query   runner.Runner
	Control runner.Runner
	SMIPath string
	Log     log.FieldLogger
}

// NewBackend creates a backend that uses r for both queries and control calls
func NewBackend(r runner.Runner, smiPath string, logger log.FieldLogger) *Backend {
	if smiPath == "" {
		smiPath = DefaultSMIPath
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Backend{Query: r, Control: r, SMIPath: smiPath, Log: logger}
}

func (b *Backend) Vendor() domain.VendorKind {
	return domain.VendorNVIDIA
}

// List runs the telemetry query. Invocation and parse failures both return
// nil and an error wrapping ErrQueryFailed.
func (b *Backend) List(ctx context.Context) ([]domain.GPURecord, error) {
	res, err := b.Query.Run(ctx, b.SMIPath, QueryArgs...)
	if err != nil {
		b.Log.Errorf("Error querying NVIDIA GPU: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrQueryFailed, err)
	}

	gpus, err := ParseOutput(string(res.Stdout))
	if err != nil {
		b.Log.Errorf("Error parsing NVIDIA GPU telemetry: %v", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrQueryFailed, err)
	}
	return gpus, nil
}

// Apply sets power then clock. A failed setting is recorded and the next one
// is still attempted; nothing is rolled back. An invalid request issues no
// control call.
func (b *Backend) Apply(ctx context.Context, gpu domain.GPURecord, req domain.LimitRequest) domain.ApplyOutcome {
	out := domain.NewApplyOutcome(gpu)
	index := strconv.Itoa(gpu.Index)
	logger := b.Log.WithFields(log.Fields{"vendor": domain.VendorNVIDIA.String(), "gpu": gpu.Name})

	if err := req.Validate(); err != nil {
		logger.Errorf("Refusing to apply settings for NVIDIA GPU: %v", err)
		out.Skip(req, err)
		return out
	}

	if req.PowerLimitWatts != nil {
		watts := *req.PowerLimitWatts
		l := logger.WithField("setting", domain.SettingPower)
		l.Infof("Setting NVIDIA power limit to %sW on GPU %d", formatWatts(watts), gpu.Index)
		out.Record(domain.SettingPower, watts, b.control(ctx, l, "-i", index, "-pl", formatWatts(watts)))
	}

	if req.ClockLimitMHz != nil {
		mhz := *req.ClockLimitMHz
		l := logger.WithField("setting", domain.SettingClock)
		l.Infof("Setting NVIDIA clock limit to %d MHz on GPU %d", int64(mhz), gpu.Index)
		out.Record(domain.SettingClock, mhz, b.control(ctx, l, "-i", index, "-lgc", strconv.FormatInt(int64(math.Trunc(mhz)), 10)))
	}

	if out.Err == nil && len(out.Attempted()) > 0 {
		logger.Infof("Settings applied successfully for %s", gpu.Name)
	}
	return out
}

func (b *Backend) control(ctx context.Context, logger log.FieldLogger, args ...string) error {
	if _, err := b.Control.Run(ctx, b.SMIPath, args...); err != nil {
		logger.Errorf("Error applying settings for NVIDIA GPU: %v", err)
		return fmt.Errorf("%w: %v", domain.ErrApplyFailed, err)
	}
	return nil
}

// IsQuery reports whether an nvidia-smi invocation only reads state.
// Dry-run mode lets these through.
func IsQuery(name string, args []string) bool {
	return len(args) == 0 || (len(args) == len(QueryArgs) && args[0] == QueryArgs[0])
}

func formatWatts(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Compile-time interface check
var _ domain.Backend = (*Backend)(nil)
