package domain

import (
	"fmt"
	"math"
)

// Setting names a single control the appliers can change
type Setting string

const (
	SettingPower Setting = "power"
	SettingClock Setting = "clock"
)

// SettingStatus is the per-setting result of an apply call
type SettingStatus string

const (
	StatusNotRequested SettingStatus = "not attempted"
	StatusApplied      SettingStatus = "applied"
	StatusFailed       SettingStatus = "failed"
	StatusSkipped      SettingStatus = "skipped" // requested, but the device was never reached
)

// LimitRequest is operator intent. A nil field means "leave unchanged".
type LimitRequest struct {
	PowerLimitWatts *float64
	ClockLimitMHz   *float64
}

// Empty reports whether no setting was requested
func (r LimitRequest) Empty() bool {
	return r.PowerLimitWatts == nil && r.ClockLimitMHz == nil
}

// Validate rejects values that are non-finite, non-positive, or that would
// reach a control node as an integer below 1 or beyond int64. Power is
// checked in milliwatts and clock in whole MHz, as the appliers write them.
func (r LimitRequest) Validate() error {
	if err := checkInteger("power limit", r.PowerLimitWatts, 1000); err != nil {
		return err
	}
	return checkInteger("clock limit", r.ClockLimitMHz, 1)
}

func checkInteger(label string, v *float64, scale float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return fmt.Errorf("%s %v: %w", label, *v, ErrInvalidLimit)
	}
	n := math.Trunc(*v * scale)
	if n < 1 {
		return fmt.Errorf("%s %v rounds down to zero: %w", label, *v, ErrInvalidLimit)
	}
	if n >= math.MaxInt64 {
		return fmt.Errorf("%s %v is out of range: %w", label, *v, ErrInvalidLimit)
	}
	return nil
}

// SettingResult records what happened to one requested setting
type SettingResult struct {
	Status SettingStatus `json:"status"`
	Value  float64       `json:"value,omitempty"`
	Err    error         `json:"-"`
}

// ApplyOutcome is the result of one apply operation
type ApplyOutcome struct {
	GPU   GPURecord
	Power SettingResult
	Clock SettingResult

	// Err is the first failure encountered, nil when every attempted setting succeeded
	Err error
}

// NewApplyOutcome starts an outcome with every setting marked not attempted
func NewApplyOutcome(gpu GPURecord) ApplyOutcome {
	return ApplyOutcome{
		GPU:   gpu,
		Power: SettingResult{Status: StatusNotRequested},
		Clock: SettingResult{Status: StatusNotRequested},
	}
}

// Record stores the result for a setting and keeps the first failure
func (o *ApplyOutcome) Record(s Setting, value float64, err error) {
	res := SettingResult{Status: StatusApplied, Value: value}
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		if o.Err == nil {
			o.Err = err
		}
	}
	o.set(s, res)
}

// Skip marks every requested setting as skipped and records err as terminal
func (o *ApplyOutcome) Skip(req LimitRequest, err error) {
	if req.PowerLimitWatts != nil {
		o.set(SettingPower, SettingResult{Status: StatusSkipped, Value: *req.PowerLimitWatts, Err: err})
	}
	if req.ClockLimitMHz != nil {
		o.set(SettingClock, SettingResult{Status: StatusSkipped, Value: *req.ClockLimitMHz, Err: err})
	}
	if o.Err == nil {
		o.Err = err
	}
}

func (o *ApplyOutcome) set(s Setting, res SettingResult) {
	switch s {
	case SettingPower:
		o.Power = res
	case SettingClock:
		o.Clock = res
	}
}

// Result returns the result recorded for s
func (o ApplyOutcome) Result(s Setting) SettingResult {
	if s == SettingClock {
		return o.Clock
	}
	return o.Power
}

// Attempted lists the settings a control call was issued for, in apply order
func (o ApplyOutcome) Attempted() []Setting {
	var out []Setting
	for _, s := range []Setting{SettingPower, SettingClock} {
		st := o.Result(s).Status
		if st == StatusApplied || st == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// Applied reports whether at least one setting was attempted and none failed
func (o ApplyOutcome) Applied() bool {
	return o.Err == nil && len(o.Attempted()) > 0
}
