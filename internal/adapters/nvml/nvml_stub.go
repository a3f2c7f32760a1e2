//go:build nonvml
// +build nonvml

package nvml

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/worldland/gpuctl/internal/domain"
)

// Identifier stub - used when building without NVIDIA libraries
type Identifier struct{}

func NewIdentifier(logger log.FieldLogger) *Identifier {
	return &Identifier{}
}

func (p *Identifier) Init() error {
	return fmt.Errorf("NVML not available (built with nonvml tag)")
}

func (p *Identifier) Shutdown() error {
	return nil
}

func (p *Identifier) Enrich(gpus []domain.GPURecord) ([]domain.GPURecord, error) {
	return gpus, fmt.Errorf("NVML not available")
}

// Compile-time interface check
var _ domain.Enricher = (*Identifier)(nil)
