// Package integration provides configuration presets and assembly helpers
// for building powchain node runtimes. Presets bundle storage, mining and
// monitoring settings into named profiles so operators can start a node
// for a given workload without tweaking every flag.
//
// Usage:
//
//	cfg := node.DefaultConfig()
//	preset, _ := integration.GetPresetByName("full")
//	integration.ApplyPreset(&cfg, preset)
package integration

import (
	"fmt"
	"runtime"

	"github.com/rony4d/go-powchain/node"
)

// DefaultMetricsAddr is used by presets that enable metrics when the node
// config carries no address of its own.
const DefaultMetricsAddr = "127.0.0.1:6060"

// PresetConfig captures the parameters that vary across preset profiles.
// Network rules and identities are never part of a preset.
type PresetConfig struct {
	Name          string // identifier accepted by --preset
	CacheMB       int    // database cache
	Handles       int    // database file handles
	InMemory      bool   // keep the chain in memory only
	MinerThreads  int    // nonce search workers
	EnableMetrics bool   // serve prometheus metrics
}

// DefaultPreset returns the preset used when no flags override it.
func DefaultPreset() PresetConfig {
	return PresetConfig{
		Name:         "default",
		CacheMB:      64,
		Handles:      64,
		MinerThreads: 1,
	}
}

// LitePreset is meant for development and CI: nothing touches the disk
// and metrics are on for diagnosing runs.
func LitePreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "lite"
	cfg.CacheMB = 16
	cfg.Handles = 16
	cfg.InMemory = true
	cfg.EnableMetrics = true
	return cfg
}

// FullPreset is a long running mining node using every CPU.
func FullPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "full"
	cfg.CacheMB = 512
	cfg.Handles = 512
	cfg.MinerThreads = runtime.NumCPU()
	cfg.EnableMetrics = true
	return cfg
}

// GetPresetByName looks up a preset by its identifier.
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "lite":
		return LitePreset(), nil
	case "full":
		return FullPreset(), nil
	case "default", "":
		return DefaultPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: lite, full, default)", name)
	}
}

// ApplyPreset merges a preset into a node config. Non-zero preset values
// override the target; booleans only ever switch a feature on.
func ApplyPreset(target *node.Config, preset PresetConfig) {
	if preset.CacheMB > 0 {
		target.DBCache = preset.CacheMB
	}
	if preset.Handles > 0 {
		target.DBHandles = preset.Handles
	}
	if preset.MinerThreads > 0 {
		target.Miner.Workers = preset.MinerThreads
	}
	if preset.InMemory {
		target.DataDir = ""
	}
	if preset.EnableMetrics && target.MetricsAddr == "" {
		target.MetricsAddr = DefaultMetricsAddr
	}
}
