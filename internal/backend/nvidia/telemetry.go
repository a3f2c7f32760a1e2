package nvidia

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/worldland/gpuctl/internal/domain"
)

// QueryArgs asks for one machine-parseable line per GPU: name, max power limit, current draw
var QueryArgs = []string{"--query-gpu=name,power.max_limit,power.draw", "--format=csv,noheader"}

// ParseOutput parses the whole query output. Any malformed line fails the
// whole query; garbled vendor output is not trusted partially.
func ParseOutput(out string) ([]domain.GPURecord, error) {
	var gpus []domain.GPURecord
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		gpu, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		gpu.Index = len(gpus)
		gpus = append(gpus, gpu)
	}
	return gpus, nil
}

// ParseLine parses "Model X, 250.00 W, 97.50 W"
func ParseLine(line string) (domain.GPURecord, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return domain.GPURecord{}, fmt.Errorf("%w: expected 3 fields, got %d in %q", domain.ErrParseFailed, len(parts), line)
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return domain.GPURecord{}, fmt.Errorf("%w: empty name in %q", domain.ErrParseFailed, line)
	}

	maxPower, err := parseWatts(parts[1])
	if err != nil {
		return domain.GPURecord{}, fmt.Errorf("%w: max power in %q: %v", domain.ErrParseFailed, line, err)
	}
	current, err := parseWatts(parts[2])
	if err != nil {
		return domain.GPURecord{}, fmt.Errorf("%w: current power in %q: %v", domain.ErrParseFailed, line, err)
	}

	return domain.GPURecord{
		Name:              name,
		MaxPowerWatts:     domain.Float64(maxPower),
		CurrentPowerWatts: domain.Float64(current),
	}, nil
}

// parseWatts takes the numeric prefix of a unit-suffixed field ("250.00 W" -> 250)
func parseWatts(field string) (float64, error) {
	f := strings.Fields(field)
	if len(f) == 0 {
		return 0, fmt.Errorf("empty field")
	}
	if strings.ContainsAny(f[0], "xXpP") {
		return 0, fmt.Errorf("not a decimal number: %q", f[0])
	}
	v, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", f[0])
	}
	return v, nil
}
