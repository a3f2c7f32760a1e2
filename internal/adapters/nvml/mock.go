package nvml

import "github.com/worldland/gpuctl/internal/domain"

// MockIdentifier fills identity from fixed tables, keyed by record index
type MockIdentifier struct {
	UUIDs   map[int]string
	BusIDs  map[int]string
	InitErr error

	// Call tracking
	EnrichCalls int
}

func NewMockIdentifier(uuids, busIDs map[int]string) *MockIdentifier {
	return &MockIdentifier{UUIDs: uuids, BusIDs: busIDs}
}

func (p *MockIdentifier) Enrich(gpus []domain.GPURecord) ([]domain.GPURecord, error) {
	p.EnrichCalls++
	if p.InitErr != nil {
		return gpus, p.InitErr
	}
	out := make([]domain.GPURecord, len(gpus))
	copy(out, gpus)
	for i := range out {
		out[i].UUID = p.UUIDs[out[i].Index]
		out[i].BusID = p.BusIDs[out[i].Index]
	}
	return out, nil
}

// Compile-time interface check
var _ domain.Enricher = (*MockIdentifier)(nil)
