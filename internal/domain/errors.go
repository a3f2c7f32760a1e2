package domain

import "errors"

var (
	ErrProbeInconclusive = errors.New("no supported GPU vendor detected")
	ErrQueryFailed       = errors.New("GPU query failed")
	ErrParseFailed       = errors.New("unparseable telemetry")
	ErrNoGPUs            = errors.New("no GPUs of this vendor detected")
	ErrSelectionInvalid  = errors.New("invalid selection")
	ErrInvalidLimit      = errors.New("limit must be a positive number")
	ErrApplyFailed       = errors.New("apply failed")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrDeviceAmbiguous   = errors.New("device matches more than one control directory")
	ErrUnknownVendor     = errors.New("unknown vendor")
)
