//go:build !nonvml
// +build !nonvml

package nvml

import (
	"fmt"
	"strings"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	log "github.com/sirupsen/logrus"

	"github.com/worldland/gpuctl/internal/domain"
)

// Identifier fills UUID and PCI bus id into NVIDIA records using NVML.
// nvidia-smi remains the source of telemetry; NVML only supplies identity.
type Identifier struct {
	lib nvml.Interface
	log log.FieldLogger
}

func NewIdentifier(logger log.FieldLogger) *Identifier {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Identifier{lib: nvml.New(), log: logger}
}

func (p *Identifier) Init() error {
	ret := p.lib.Init()
	if ret != nvml.SUCCESS {
		return fmt.Errorf("NVML init failed: %v", ret.Error())
	}
	return nil
}

func (p *Identifier) Shutdown() error {
	ret := p.lib.Shutdown()
	if ret != nvml.SUCCESS {
		return fmt.Errorf("NVML shutdown failed: %v", ret.Error())
	}
	return nil
}

// Enrich matches records to NVML devices by enumeration index. A device whose
// name disagrees with the record is left untouched.
func (p *Identifier) Enrich(gpus []domain.GPURecord) ([]domain.GPURecord, error) {
	if err := p.Init(); err != nil {
		return gpus, err
	}
	defer func() {
		if err := p.Shutdown(); err != nil {
			p.log.Debugf("%v", err)
		}
	}()

	count, ret := p.lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return gpus, fmt.Errorf("failed to get device count: %v", ret.Error())
	}

	out := make([]domain.GPURecord, len(gpus))
	copy(out, gpus)
	for i := range out {
		if out[i].Index >= count {
			continue
		}
		device, ret := p.lib.DeviceGetHandleByIndex(out[i].Index)
		if ret != nvml.SUCCESS {
			continue // Skip failed device
		}

		name, _ := device.GetName()
		if name != "" && !strings.EqualFold(name, out[i].Name) {
			p.log.Debugf("NVML device %d is %q, telemetry says %q; not enriching", out[i].Index, name, out[i].Name)
			continue
		}

		if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
			out[i].UUID = uuid
		}
		if pci, ret := device.GetPciInfo(); ret == nvml.SUCCESS {
			out[i].BusID = FormatBusID(pci.Domain, pci.Bus, pci.Device)
		}
	}
	return out, nil
}

// Compile-time interface check
var _ domain.Enricher = (*Identifier)(nil)
