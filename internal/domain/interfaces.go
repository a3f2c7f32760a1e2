package domain

import "context"

// Backend is one vendor's telemetry reader and limit applier
type Backend interface {
	// Vendor returns the vendor this backend drives
	Vendor() VendorKind
	// List enumerates installed GPUs. On failure it returns nil and an
	// error wrapping ErrQueryFailed; a partial list is never returned.
	List(ctx context.Context) ([]GPURecord, error)
	// Apply issues the control calls for every setting in req. Settings
	// are independent and are not rolled back on failure.
	Apply(ctx context.Context, gpu GPURecord, req LimitRequest) ApplyOutcome
}

// Selection is what the operator picked: a 1-based index and the limits
type Selection struct {
	Index  int
	Limits LimitRequest
}

// Selector presents the enumerated GPUs and collects operator input
type Selector interface {
	Select(ctx context.Context, gpus []GPURecord) (Selection, error)
}

// Enricher adds identity details (UUID, bus id) to freshly listed records
type Enricher interface {
	Enrich(gpus []GPURecord) ([]GPURecord, error)
}
