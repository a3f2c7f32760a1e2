package runner

import (
	"context"
	"fmt"
	"strings"
)

// MockRunner returns canned results keyed by the full command line.
// Unknown commands fail as if the binary were missing.
type MockRunner struct {
	Responses map[string]MockResponse

	// Call tracking
	Calls []string
}

// MockResponse is a canned invocation result
type MockResponse struct {
	Stdout   string
	ExitCode int
	Err      error
}

func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// On registers the response for name+args
func (m *MockRunner) On(resp MockResponse, name string, args ...string) *MockRunner {
	m.Responses[CommandLine(name, args)] = resp
	return m
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	key := CommandLine(name, args)
	m.Calls = append(m.Calls, key)

	resp, ok := m.Responses[key]
	if !ok {
		return Result{ExitCode: -1}, fmt.Errorf("%s: executable file not found in $PATH", key)
	}
	res := Result{ExitCode: resp.ExitCode, Stdout: []byte(resp.Stdout)}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, fmt.Errorf("%s: exit status %d: %w", key, resp.ExitCode, ErrNonZeroExit)
	}
	return res, nil
}

// CallsWithPrefix returns tracked calls starting with prefix
func (m *MockRunner) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range m.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Compile-time interface check
var _ Runner = (*MockRunner)(nil)
