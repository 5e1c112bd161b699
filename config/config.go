// Package config loads the scheduler's configuration namespace: a flat
// set of recognized keys, each with a default and a clamped range,
// following the same load/defaults/validate pipeline the teacher used
// for its JSON application config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bravo1goingdark/schedcore/internal/jobmodel"
)

// WorkTypeConfigOverride lets a deployment override one cell of the
// screenState x memoryTrimLevel WorkTypeConfig table (spec §6.4:
// max_total_<config_id>, min_<wt>_<config_id>, max_<wt>_<config_id>).
type WorkTypeConfigOverride struct {
	MaxTotal    *int         `json:"max_total,omitempty"`
	MinReserved map[string]int `json:"min_reserved,omitempty"`
	MaxAllowed  map[string]int `json:"max_allowed,omitempty"`
}

// SchedulerConfig is the full recognized configuration namespace.
type SchedulerConfig struct {
	ScreenOffAdjustmentDelayMs int64 `json:"screen_off_adjustment_delay_ms"`

	PkgConcurrencyLimitEJ      int `json:"pkg_concurrency_limit_ej"`
	PkgConcurrencyLimitRegular int `json:"pkg_concurrency_limit_regular"`

	GracePeriodMs int64 `json:"grace_period_ms"`

	RuntimeMinGuaranteeMs             int64 `json:"runtime_min_guarantee_ms"`
	RuntimeMinEJGuaranteeMs           int64 `json:"runtime_min_ej_guarantee_ms"`
	RuntimeMinHighPriorityGuaranteeMs int64 `json:"runtime_min_high_priority_guarantee_ms"`
	RuntimeFreeQuotaMaxLimitMs        int64 `json:"runtime_free_quota_max_limit_ms"`

	EnableAPIQuotas    bool  `json:"enable_api_quotas"`
	AQScheduleCount    int   `json:"aq_schedule_count"`
	AQScheduleWindowMs int64 `json:"aq_schedule_window_ms"`

	// WorkTypeConfigOverrides is keyed "on_normal", "off_critical", etc,
	// matching the <config_id> suffix used by spec §6.4's key names.
	WorkTypeConfigOverrides map[string]WorkTypeConfigOverride `json:"work_type_config_overrides,omitempty"`

	Log     LogConfig     `json:"log"`
	Metrics MetricsConfig `json:"metrics"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// Load reads JSON config from disk and returns a parsed, defaulted,
// validated SchedulerConfig. It never terminates the process; callers
// handle returned errors.
func Load(path string) (*SchedulerConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("warning: failed to close config file: %v\n", closeErr)
		}
	}()

	var cfg SchedulerConfig
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config JSON: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a SchedulerConfig with every recognized key at its
// spec §6.4 default, for callers that don't load from disk.
func Default() *SchedulerConfig {
	cfg := &SchedulerConfig{}
	cfg.setDefaults()
	return cfg
}

func (c *SchedulerConfig) setDefaults() {
	if c.ScreenOffAdjustmentDelayMs == 0 {
		c.ScreenOffAdjustmentDelayMs = 30_000
	}
	if c.PkgConcurrencyLimitEJ == 0 {
		c.PkgConcurrencyLimitEJ = 3
	}
	if c.PkgConcurrencyLimitRegular == 0 {
		c.PkgConcurrencyLimitRegular = jobmodel.StandardConcurrencyLimit / 2
	}
	if c.GracePeriodMs == 0 {
		c.GracePeriodMs = int64(10 * time.Minute / time.Millisecond)
	}
	if c.RuntimeMinGuaranteeMs == 0 {
		c.RuntimeMinGuaranteeMs = int64(10 * time.Minute / time.Millisecond)
	}
	if c.RuntimeMinEJGuaranteeMs == 0 {
		c.RuntimeMinEJGuaranteeMs = int64(3 * time.Minute / time.Millisecond)
	}
	if c.RuntimeMinHighPriorityGuaranteeMs == 0 {
		c.RuntimeMinHighPriorityGuaranteeMs = int64(5 * time.Minute / time.Millisecond)
	}
	if c.RuntimeFreeQuotaMaxLimitMs == 0 {
		c.RuntimeFreeQuotaMaxLimitMs = int64(30 * time.Minute / time.Millisecond)
	}
	if c.AQScheduleCount == 0 {
		c.AQScheduleCount = 20
	}
	if c.AQScheduleWindowMs == 0 {
		c.AQScheduleWindowMs = int64(15 * time.Minute / time.Millisecond)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 8090
	}
}

func clampInt(name string, v, lo, hi int) (int, error) {
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return v, nil
}

func (c *SchedulerConfig) validate() error {
	if v, err := clampInt("pkg_concurrency_limit_ej", c.PkgConcurrencyLimitEJ, 1, jobmodel.StandardConcurrencyLimit); err != nil {
		return err
	} else {
		c.PkgConcurrencyLimitEJ = v
	}
	if v, err := clampInt("pkg_concurrency_limit_regular", c.PkgConcurrencyLimitRegular, 1, jobmodel.StandardConcurrencyLimit); err != nil {
		return err
	} else {
		c.PkgConcurrencyLimitRegular = v
	}
	if c.RuntimeMinGuaranteeMs < int64(10*time.Minute/time.Millisecond) {
		return fmt.Errorf("runtime_min_guarantee_ms must be >= 10 minutes")
	}
	if c.RuntimeMinEJGuaranteeMs < int64(time.Minute/time.Millisecond) {
		return fmt.Errorf("runtime_min_ej_guarantee_ms must be >= 1 minute")
	}
	if c.RuntimeMinHighPriorityGuaranteeMs < int64(4*time.Minute/time.Millisecond) {
		return fmt.Errorf("runtime_min_high_priority_guarantee_ms must be >= 4 minutes")
	}
	if c.RuntimeFreeQuotaMaxLimitMs < c.RuntimeMinGuaranteeMs {
		return fmt.Errorf("runtime_free_quota_max_limit_ms must be >= runtime_min_guarantee_ms")
	}
	if c.ScreenOffAdjustmentDelayMs < 0 {
		return fmt.Errorf("screen_off_adjustment_delay_ms cannot be negative")
	}
	if c.EnableAPIQuotas {
		if c.AQScheduleCount <= 0 {
			return fmt.Errorf("aq_schedule_count must be positive when api quotas are enabled")
		}
		if c.AQScheduleWindowMs <= 0 {
			return fmt.Errorf("aq_schedule_window_ms must be positive when api quotas are enabled")
		}
	}
	return nil
}

// ApplyOverrides merges any configured WorkTypeConfigOverrides onto
// base in place and returns base. Only cells named by configID are
// touched; everything else in base passes through unchanged.
func (c *SchedulerConfig) ApplyOverrides(base map[jobmodel.ScreenState]map[jobmodel.MemoryTrimLevel]jobmodel.WorkTypeConfig) map[jobmodel.ScreenState]map[jobmodel.MemoryTrimLevel]jobmodel.WorkTypeConfig {
	if len(c.WorkTypeConfigOverrides) == 0 {
		return base
	}
	screenNames := map[jobmodel.ScreenState]string{jobmodel.ScreenOn: "on", jobmodel.ScreenOff: "off"}
	trimNames := map[jobmodel.MemoryTrimLevel]string{
		jobmodel.TrimNormal:   "normal",
		jobmodel.TrimModerate: "moderate",
		jobmodel.TrimLow:      "low",
		jobmodel.TrimCritical: "critical",
	}
	for screen, byTrim := range base {
		for trim, cfg := range byTrim {
			id := screenNames[screen] + "_" + trimNames[trim]
			override, ok := c.WorkTypeConfigOverrides[id]
			if !ok {
				continue
			}
			if override.MaxTotal != nil {
				cfg.MaxTotal = *override.MaxTotal
			}
			for name, v := range override.MinReserved {
				if wt, ok := workTypeByName[name]; ok {
					cfg.MinReserved[wt] = v
				}
			}
			for name, v := range override.MaxAllowed {
				if wt, ok := workTypeByName[name]; ok {
					cfg.MaxAllowed[wt] = v
				}
			}
			base[screen][trim] = cfg
		}
	}
	return base
}

var workTypeByName = map[string]jobmodel.WorkType{
	"top":      jobmodel.WorkTypeTop,
	"fgs":      jobmodel.WorkTypeFGS,
	"ej":       jobmodel.WorkTypeEJ,
	"bg":       jobmodel.WorkTypeBG,
	"bguser_i": jobmodel.WorkTypeBGUserI,
	"bguser":   jobmodel.WorkTypeBGUser,
}
