// Package setup reports whether the host has what gpuctl needs to control
// its GPUs.
package setup

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/worldland/gpuctl/internal/adapters/runner"
	"github.com/worldland/gpuctl/internal/adapters/sysfs"
)

// ComponentStatus is the state of one requirement
type ComponentStatus struct {
	Name      string
	Installed bool
	Version   string
}

// PreflightResult contains the results of the preflight check
type PreflightResult struct {
	Components []ComponentStatus
	OSId       string // "ubuntu", "debian", etc.
	OSVersion  string // "22.04", "12", etc.
	Privileged bool   // limit changes need root
}

// Preflight gathers host facts through the same collaborators the backends use
type Preflight struct {
	Runner  runner.Runner
	Fs      afero.Fs
	SMIPath string
	DRMRoot string
	EUID    int
}

// Run checks for the NVIDIA management tool, AMD DRM cards and privileges
func (p *Preflight) Run(ctx context.Context) *PreflightResult {
	result := &PreflightResult{Privileged: p.EUID == 0}
	result.OSId, result.OSVersion = detectOS(p.Fs)

	result.Components = []ComponentStatus{
		p.checkNvidiaSMI(ctx),
		p.checkDRM(),
	}
	return result
}

// MissingComponents returns the names of components that are not installed
func (r *PreflightResult) MissingComponents() []string {
	var missing []string
	for _, c := range r.Components {
		if !c.Installed {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// Ready reports whether at least one vendor backend can be used
func (r *PreflightResult) Ready() bool {
	return len(r.MissingComponents()) < len(r.Components)
}

// PrintStatus prints the preflight check results
func (r *PreflightResult) PrintStatus(w io.Writer) {
	for _, c := range r.Components {
		if c.Installed {
			fmt.Fprintf(w, "  ✓ %s: %s\n", c.Name, c.Version)
		} else {
			fmt.Fprintf(w, "  ✗ %s: NOT FOUND\n", c.Name)
		}
	}
	fmt.Fprintf(w, "  OS: %s %s\n", r.OSId, r.OSVersion)
	if !r.Privileged {
		fmt.Fprintln(w, "  ! not running as root: applying limits will likely be refused")
	}
}

func (p *Preflight) checkNvidiaSMI(ctx context.Context) ComponentStatus {
	cs := ComponentStatus{Name: "nvidia-smi"}

	res, err := p.Runner.Run(ctx, p.SMIPath, "--query-gpu=driver_version", "--format=csv,noheader")
	if err != nil {
		// Binary exists but the query failed: still installed
		if res.ExitCode > 0 {
			cs.Installed = true
			cs.Version = "(version unknown)"
		}
		return cs
	}

	cs.Installed = true
	lines := strings.Split(strings.TrimSpace(string(res.Stdout)), "\n")
	cs.Version = "driver " + strings.TrimSpace(lines[0])
	if len(cs.Version) > 60 {
		cs.Version = cs.Version[:60]
	}
	return cs
}

func (p *Preflight) checkDRM() ComponentStatus {
	cs := ComponentStatus{Name: "amdgpu sysfs"}

	cards, err := sysfs.ListCards(p.Fs, p.DRMRoot)
	if err != nil || len(cards) == 0 {
		return cs
	}
	cs.Installed = true
	cs.Version = strconv.Itoa(len(cards)) + " card(s) under " + p.DRMRoot
	return cs
}

func detectOS(fs afero.Fs) (id, version string) {
	data, err := afero.ReadFile(fs, "/etc/os-release")
	if err != nil {
		return "unknown", ""
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "ID=") {
			id = strings.Trim(strings.TrimPrefix(line, "ID="), "\"")
		}
		if strings.HasPrefix(line, "VERSION_ID=") {
			version = strings.Trim(strings.TrimPrefix(line, "VERSION_ID="), "\"")
		}
	}
	return id, version
}
