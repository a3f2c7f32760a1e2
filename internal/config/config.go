// Package config loads gpuctl settings from defaults, an optional YAML file,
// GPUCTL_* environment variables and command-line flags, in rising priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/worldland/gpuctl/internal/adapters/sysfs"
	"github.com/worldland/gpuctl/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g. GPUCTL_DRY_RUN
const EnvPrefix = "GPUCTL"

// Config holds everything one invocation needs
type Config struct {
	// Vendor forces a backend: "nvidia", "amd", or "auto" to probe the host
	Vendor string `mapstructure:"vendor"`

	// DryRun logs control calls and sysfs writes instead of performing them
	DryRun bool `mapstructure:"dry_run"`

	// Strict turns an undetected vendor into a failing exit status
	Strict bool `mapstructure:"strict"`

	// Timeout bounds each external tool invocation. 0 disables it.
	Timeout time.Duration `mapstructure:"timeout"`

	LogLevel string `mapstructure:"log_level"`

	NVIDIA NVIDIAConfig `mapstructure:"nvidia"`
	AMD    AMDConfig    `mapstructure:"amd"`
}

// NVIDIAConfig configures the nvidia-smi backend
type NVIDIAConfig struct {
	SMIPath string `mapstructure:"smi_path"`

	// UseNVML fills UUID and bus id from NVML when the library loads
	UseNVML bool `mapstructure:"use_nvml"`
}

// AMDConfig configures the sysfs backend. Control node names differ
// between amdgpu driver versions.
type AMDConfig struct {
	DRMRoot   string `mapstructure:"drm_root"`
	PowerNode string `mapstructure:"power_node"`
	ClockNode string `mapstructure:"clock_node"`
}

// flagKeys maps command-line flag names to config keys
var flagKeys = map[string]string{
	"vendor":    "vendor",
	"dry-run":   "dry_run",
	"strict":    "strict",
	"timeout":   "timeout",
	"log-level": "log_level",
	"smi-path":  "nvidia.smi_path",
	"nvml":      "nvidia.use_nvml",
	"drm-root":  "amd.drm_root",
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Vendor:   "auto",
		Timeout:  30 * time.Second,
		LogLevel: "info",
		NVIDIA: NVIDIAConfig{
			SMIPath: "nvidia-smi",
			UseNVML: true,
		},
		AMD: AMDConfig{
			DRMRoot:   sysfs.DefaultDRMRoot,
			PowerNode: "power_limit",
			ClockNode: "pp_dpm_sclk",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("vendor", d.Vendor)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("nvidia.smi_path", d.NVIDIA.SMIPath)
	v.SetDefault("nvidia.use_nvml", d.NVIDIA.UseNVML)
	v.SetDefault("amd.drm_root", d.AMD.DRMRoot)
	v.SetDefault("amd.power_node", d.AMD.PowerNode)
	v.SetDefault("amd.clock_node", d.AMD.ClockNode)
}

// Load reads the configuration. path may be empty; flags may be nil.
// Only flags the operator actually set override lower layers.
func Load(fs afero.Fs, path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the config is usable
func (c *Config) Validate() error {
	var errs []error

	if _, err := domain.ParseVendor(c.Vendor); err != nil {
		errs = append(errs, fmt.Errorf("vendor %q: %w", c.Vendor, err))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if strings.TrimSpace(c.NVIDIA.SMIPath) == "" {
		errs = append(errs, errors.New("nvidia.smi_path must be specified"))
	}
	if strings.TrimSpace(c.AMD.DRMRoot) == "" {
		errs = append(errs, errors.New("amd.drm_root must be specified"))
	}
	for key, node := range map[string]string{"amd.power_node": c.AMD.PowerNode, "amd.clock_node": c.AMD.ClockNode} {
		if node == "" || strings.Contains(node, "/") {
			errs = append(errs, fmt.Errorf("%s must be a plain file name, got %q", key, node))
		}
	}

	return errors.Join(errs...)
}

// VendorKind returns the forced vendor, VendorUnknown meaning "probe"
func (c *Config) VendorKind() domain.VendorKind {
	v, _ := domain.ParseVendor(c.Vendor)
	return v
}

// Print logs the effective configuration at debug level
func (c *Config) Print(logger log.FieldLogger) {
	logger.WithFields(log.Fields{
		"vendor":          c.Vendor,
		"dry_run":         c.DryRun,
		"strict":          c.Strict,
		"timeout":         c.Timeout,
		"nvidia.smi_path": c.NVIDIA.SMIPath,
		"nvidia.use_nvml": c.NVIDIA.UseNVML,
		"amd.drm_root":    c.AMD.DRMRoot,
		"amd.power_node":  c.AMD.PowerNode,
		"amd.clock_node":  c.AMD.ClockNode,
	}).Debug("Effective configuration")
}
