package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/worldland/gpuctl/internal/adapters/nvml"
	"github.com/worldland/gpuctl/internal/adapters/runner"
	"github.com/worldland/gpuctl/internal/backend/amd"
	"github.com/worldland/gpuctl/internal/backend/nvidia"
	"github.com/worldland/gpuctl/internal/cli"
	"github.com/worldland/gpuctl/internal/config"
	"github.com/worldland/gpuctl/internal/controller"
	"github.com/worldland/gpuctl/internal/domain"
	"github.com/worldland/gpuctl/internal/logging"
	"github.com/worldland/gpuctl/internal/probe"
	"github.com/worldland/gpuctl/internal/setup"
)

// Exit statuses
const (
	ExitSuccess       = 0
	ExitApplyFailed   = 1
	ExitCmdArg        = 2
	ExitQueryFailed   = 3
	ExitUnsupportedHW = 4
)

// app holds the host collaborators so tests can swap them out
type app struct {
	runner      runner.Runner
	fs          afero.Fs
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	goos        string
	euid        int
	logger      *log.Logger
	newEnricher func(log.FieldLogger) domain.Enricher
}

func newApp() *app {
	return &app{
		fs:     afero.NewOsFs(),
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		goos:   runtime.GOOS,
		euid:   os.Geteuid(),
		logger: log.StandardLogger(),
		newEnricher: func(l log.FieldLogger) domain.Enricher {
			return nvml.NewIdentifier(l)
		},
	}
}

type options struct {
	configPath string
	list       bool
	json       bool
	gpu        int
	power      float64
	clock      float64
}

// execute runs one invocation and returns the process exit status
func (a *app) execute(ctx context.Context, args []string) int {
	var opts options
	var cfg *config.Config

	root := &cobra.Command{
		Use:   "gpuctl",
		Short: "Detect local GPUs and apply power and clock limits",
		Long: `gpuctl detects whether NVIDIA (nvidia-smi) or AMD (DRM sysfs) GPUs are
present, lists them with their power telemetry, and applies a power limit
and clock limit to the one you choose.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(a.fs, opts.configPath, cmd.Flags())
			if err != nil {
				return usageError{err}
			}
			if err := a.initLogging(cfg.LogLevel); err != nil {
				return usageError{err}
			}
			cfg.Print(a.logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, cfg, opts)
		},
	}
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.Flags()
	flags.BoolVarP(&opts.list, "list", "l", false, "List detected GPUs and exit")
	flags.BoolVar(&opts.json, "json", false, "Print the GPU list and apply outcome as JSON on stdout")
	flags.IntVar(&opts.gpu, "gpu", 0, "1-based number of the GPU to adjust (non-interactive)")
	flags.Float64Var(&opts.power, "power", 0, "Power limit in watts")
	flags.Float64Var(&opts.clock, "clock", 0, "Clock limit in MHz")

	flags = root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "C", "", "Path to a YAML configuration file")
	flags.String("vendor", "auto", "Force a vendor backend: auto, nvidia, amd")
	flags.Bool("dry-run", false, "Log control calls and sysfs writes instead of performing them")
	flags.Bool("strict", false, "Exit with a failure status when no supported GPU vendor is found")
	flags.Duration("timeout", config.Default().Timeout, "Timeout for each management tool invocation (0 disables)")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flags.String("smi-path", nvidia.DefaultSMIPath, "Path to nvidia-smi")
	flags.Bool("nvml", true, "Use NVML to add UUID and bus id to NVIDIA GPUs")
	flags.String("drm-root", config.Default().AMD.DRMRoot, "DRM class directory scanned for AMD cards")

	root.AddCommand(&cobra.Command{
		Use:   "preflight",
		Short: "Check that the host has an NVIDIA or AMD control interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.preflight(cmd.Context(), cfg)
		},
	})

	err := root.ExecuteContext(ctx)
	code := exitCode(err, cfg)
	if err != nil && code != ExitSuccess {
		cli.PrintError(a.errOut, err.Error())
	}
	return code
}

func (a *app) initLogging(level string) error {
	if a.logger == log.StandardLogger() {
		return logging.Init(level)
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	a.logger.SetLevel(lvl)
	return nil
}

func (a *app) run(cmd *cobra.Command, cfg *config.Config, opts options) error {
	ctr := a.build(cmd, cfg, opts)

	report, err := ctr.Run(cmd.Context())
	if report == nil {
		return err
	}

	if opts.json {
		r := cli.Report{Vendor: report.Vendor, GPUs: report.GPUs}
		if report.Outcome != nil {
			r.Outcome = cli.NewOutcome(*report.Outcome)
		}
		if jerr := cli.PrintJSON(a.out, r); jerr != nil {
			return errors.Join(err, jerr)
		}
		return err
	}

	if opts.list && len(report.GPUs) > 0 {
		cli.PrintGPUTable(a.out, report.Vendor, report.GPUs)
	}
	if report.Outcome != nil {
		cli.PrintOutcome(a.out, *report.Outcome)
	}
	return err
}

func (a *app) preflight(ctx context.Context, cfg *config.Config) error {
	r := a.runner
	if r == nil {
		r = runner.NewExecRunner(cfg.Timeout)
	}
	p := &setup.Preflight{
		Runner:  r,
		Fs:      a.fs,
		SMIPath: cfg.NVIDIA.SMIPath,
		DRMRoot: cfg.AMD.DRMRoot,
		EUID:    a.euid,
	}

	cli.PrintHeader(a.out, "Preflight")
	result := p.Run(ctx)
	result.PrintStatus(a.out)
	if !result.Ready() {
		return fmt.Errorf("neither nvidia-smi nor amdgpu sysfs found: %w", domain.ErrNoGPUs)
	}
	return nil
}

// build wires the controller for this invocation
func (a *app) build(cmd *cobra.Command, cfg *config.Config, opts options) *controller.Controller {
	logger := a.logger
	r := a.runner
	if r == nil {
		r = runner.NewExecRunner(cfg.Timeout)
	}
	fs := a.fs

	nv := nvidia.NewBackend(r, cfg.NVIDIA.SMIPath, logger)
	if cfg.DryRun {
		nv.Control = runner.NewDryRunRunner(r, nvidia.IsQuery, logger)
		// reads fall through to the host tree, writes land in memory
		fs = afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(a.fs), afero.NewMemMapFs())
		logger.WithField("dry_run", true).Info("Dry run: no settings will be changed")
	}
	am := amd.NewBackend(fs, cfg.AMD.DRMRoot, logger)
	am.PowerNode = cfg.AMD.PowerNode
	am.ClockNode = cfg.AMD.ClockNode

	var vp probe.VendorProbe
	if forced := cfg.VendorKind(); forced != domain.VendorUnknown {
		vp = probe.ForcedProbe{Vendor: forced}
	} else {
		p := probe.NewProber(r, a.fs, cfg.AMD.DRMRoot, cfg.NVIDIA.SMIPath, logger)
		p.GOOS = a.goos
		vp = p
	}

	var selector domain.Selector
	if flags := cmd.Flags(); flags.Changed("gpu") || flags.Changed("power") || flags.Changed("clock") {
		fsel := cli.FlagSelector{Index: opts.gpu}
		if flags.Changed("power") {
			fsel.Limits.PowerLimitWatts = domain.Float64(opts.power)
		}
		if flags.Changed("clock") {
			fsel.Limits.ClockLimitMHz = domain.Float64(opts.clock)
		}
		selector = fsel
	} else {
		promptOut := a.out
		if opts.json {
			// keep stdout parseable
			promptOut = a.errOut
		}
		prompt := cli.NewPrompt(a.in, promptOut, domain.VendorUnknown)
		selector = prompt
		vp = notifyProbe{VendorProbe: vp, notify: prompt.SetVendor}
	}

	ctrOpts := []controller.Option{controller.WithListOnly(opts.list)}
	if cfg.NVIDIA.UseNVML && a.newEnricher != nil {
		ctrOpts = append(ctrOpts, controller.WithEnricher(domain.VendorNVIDIA, a.newEnricher(logger)))
	}

	return controller.NewController(vp, []domain.Backend{nv, am}, selector, logger, ctrOpts...)
}

// notifyProbe reports the detected vendor to the prompt so its GPU list is labeled
type notifyProbe struct {
	probe.VendorProbe
	notify func(domain.VendorKind)
}

func (p notifyProbe) Detect(ctx context.Context) domain.VendorKind {
	v := p.VendorProbe.Detect(ctx)
	p.notify(v)
	return v
}

// usageError marks configuration and flag problems
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func exitCode(err error, cfg *config.Config) int {
	var uerr usageError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &uerr):
		return ExitCmdArg
	case errors.Is(err, domain.ErrProbeInconclusive):
		if cfg != nil && cfg.Strict {
			return ExitUnsupportedHW
		}
		return ExitSuccess
	case errors.Is(err, domain.ErrSelectionInvalid), errors.Is(err, domain.ErrInvalidLimit):
		return ExitCmdArg
	case errors.Is(err, domain.ErrQueryFailed), errors.Is(err, domain.ErrNoGPUs):
		return ExitQueryFailed
	case errors.Is(err, domain.ErrApplyFailed), errors.Is(err, domain.ErrDeviceNotFound), errors.Is(err, domain.ErrDeviceAmbiguous):
		return ExitApplyFailed
	case cfg == nil:
		// cobra rejected the command line before config was loaded
		return ExitCmdArg
	default:
		return ExitApplyFailed
	}
}
