package runner

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// DryRunRunner passes read-only commands to Next and only logs the rest.
// ReadOnly decides which invocations are safe to execute.
type DryRunRunner struct {
	Next     Runner
	ReadOnly func(name string, args []string) bool
	Log      log.FieldLogger
}

// NewDryRunRunner wraps next. A nil readOnly treats every call as a mutation.
func NewDryRunRunner(next Runner, readOnly func(name string, args []string) bool, logger log.FieldLogger) *DryRunRunner {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &DryRunRunner{Next: next, ReadOnly: readOnly, Log: logger}
}

func (r *DryRunRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if r.ReadOnly != nil && r.ReadOnly(name, args) && r.Next != nil {
		return r.Next.Run(ctx, name, args...)
	}
	r.Log.WithField("dry_run", true).Infof("would run: %s", CommandLine(name, args))
	return Result{}, nil
}

// Compile-time interface check
var _ Runner = (*DryRunRunner)(nil)
