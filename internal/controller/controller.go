// Package controller runs the single detect, enumerate, select, apply pass.
package controller

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/worldland/gpuctl/internal/domain"
	"github.com/worldland/gpuctl/internal/probe"
)

// State is a step of the controller's single pass
type State string

const (
	StateStart       State = "start"
	StateDetect      State = "detect"
	StateNVIDIAFlow  State = "nvidia"
	StateAMDFlow     State = "amd"
	StateUnsupported State = "unsupported"
	StateEnd         State = "end"
)

// Report describes what one invocation did
type Report struct {
	Vendor    domain.VendorKind
	GPUs      []domain.GPURecord
	Selection *domain.Selection
	Outcome   *domain.ApplyOutcome
	Path      []State
}

// Controller composes the vendor probe, the vendor backends and the operator
// selector. It never loops back to detection and never retries an apply.
type Controller struct {
	probe    probe.VendorProbe
	backends map[domain.VendorKind]domain.Backend
	selector domain.Selector
	enricher map[domain.VendorKind]domain.Enricher
	listOnly bool
	log      log.FieldLogger
}

// Option configures a Controller
type Option func(*Controller)

// WithEnricher attaches identity enrichment for one vendor's records
func WithEnricher(v domain.VendorKind, e domain.Enricher) Option {
	return func(c *Controller) {
		c.enricher[v] = e
	}
}

// WithListOnly stops the pass after enumeration
func WithListOnly(listOnly bool) Option {
	return func(c *Controller) {
		c.listOnly = listOnly
	}
}

// NewController creates a controller. Backends are keyed by their Vendor().
func NewController(p probe.VendorProbe, backends []domain.Backend, selector domain.Selector, logger log.FieldLogger, opts ...Option) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := &Controller{
		probe:    p,
		backends: make(map[domain.VendorKind]domain.Backend, len(backends)),
		selector: selector,
		enricher: make(map[domain.VendorKind]domain.Enricher),
		log:      logger,
	}
	for _, b := range backends {
		c.backends[b.Vendor()] = b
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs START -> DETECT -> (NVIDIA | AMD | UNSUPPORTED) -> END once.
// The returned error belongs to the domain taxonomy; the report is always
// filled as far as the pass got.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	report := &Report{Path: []State{StateStart, StateDetect}}

	vendor := c.probe.Detect(ctx)
	report.Vendor = vendor
	c.log.Infof("Detected GPU type: %s", vendor)

	backend, ok := c.backends[vendor]
	if vendor == domain.VendorUnknown || !ok {
		report.Path = append(report.Path, StateUnsupported, StateEnd)
		c.log.Warn("Unsupported GPU type. Please ensure you have compatible drivers and tools installed.")
		return report, domain.ErrProbeInconclusive
	}
	report.Path = append(report.Path, flowState(vendor))
	defer func() { report.Path = append(report.Path, StateEnd) }()

	gpus, err := backend.List(ctx)
	if err != nil {
		c.log.Errorf("No %s GPUs detected: %v", vendor, err)
		return report, err
	}
	if len(gpus) == 0 {
		c.log.Warnf("No %s GPUs detected.", vendor)
		return report, fmt.Errorf("%s: %w", vendor, domain.ErrNoGPUs)
	}
	gpus = c.enrich(vendor, gpus)
	report.GPUs = gpus

	if c.listOnly {
		return report, nil
	}

	sel, err := c.selector.Select(ctx, gpus)
	if err != nil {
		c.log.Errorf("Invalid choice: %v", err)
		return report, wrapSelection(err)
	}
	report.Selection = &sel

	gpu, err := validate(sel, gpus)
	if err != nil {
		c.log.Errorf("Invalid choice: %v", err)
		return report, err
	}

	if sel.Limits.Empty() {
		c.log.Infof("No limits requested for %s; leaving it unchanged", gpu.Name)
	}
	outcome := backend.Apply(ctx, gpu, sel.Limits)
	report.Outcome = &outcome
	if outcome.Err != nil {
		return report, outcome.Err
	}
	return report, nil
}

func (c *Controller) enrich(vendor domain.VendorKind, gpus []domain.GPURecord) []domain.GPURecord {
	e, ok := c.enricher[vendor]
	if !ok || e == nil {
		return gpus
	}
	enriched, err := e.Enrich(gpus)
	if err != nil {
		c.log.Debugf("Identity enrichment skipped: %v", err)
		return gpus
	}
	return enriched
}

// validate checks the 1-based index and the limits before any control call
func validate(sel domain.Selection, gpus []domain.GPURecord) (domain.GPURecord, error) {
	if sel.Index < 1 || sel.Index > len(gpus) {
		return domain.GPURecord{}, fmt.Errorf("%w: index %d not in [1, %d]", domain.ErrSelectionInvalid, sel.Index, len(gpus))
	}
	gpu := gpus[sel.Index-1]
	if !gpu.Selectable() {
		return domain.GPURecord{}, fmt.Errorf("%w: GPU %d has no name", domain.ErrSelectionInvalid, sel.Index)
	}
	if err := sel.Limits.Validate(); err != nil {
		return domain.GPURecord{}, fmt.Errorf("%w: %w", domain.ErrSelectionInvalid, err)
	}
	return gpu, nil
}

func wrapSelection(err error) error {
	if errors.Is(err, domain.ErrSelectionInvalid) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSelectionInvalid, err)
}

func flowState(v domain.VendorKind) State {
	if v == domain.VendorAMD {
		return StateAMDFlow
	}
	return StateNVIDIAFlow
}
