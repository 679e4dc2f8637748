package config

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// GCConfig tunes the Go garbage collector for the engine process. On the
// hot path, the matching engine's SubmitOrder allocates its returned fill
// slice and any newly needed price level; the rest of the garbage comes from
// ambient goroutines (the publisher, the websocket fan-out, the admin API).
type GCConfig struct {
	GCPercent         int           `yaml:"gc_percent" default:"200"`
	MemoryLimit       int64         `yaml:"memory_limit" default:"2147483648"`
	MaxProcs          int           `yaml:"max_procs" default:"0"`
	EnableMemoryLimit bool          `yaml:"enable_memory_limit" default:"true"`
	EnableGCMonitoring bool         `yaml:"enable_gc_monitoring" default:"true"`
	GCStatsInterval   time.Duration `yaml:"gc_stats_interval" default:"30s"`
}

// ApplyGCTuning applies config's GOGC/memory-limit/GOMAXPROCS settings and,
// if enabled, starts a background goroutine logging periodic GC statistics.
func ApplyGCTuning(config *GCConfig, logger *zap.Logger) error {
	if config == nil {
		return fmt.Errorf("config: gc config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	debug.SetGCPercent(config.GCPercent)

	if config.EnableMemoryLimit {
		debug.SetMemoryLimit(config.MemoryLimit)
	}

	if config.MaxProcs > 0 {
		runtime.GOMAXPROCS(config.MaxProcs)
	} else {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}

	if config.EnableGCMonitoring {
		go monitorGCStats(config.GCStatsInterval, logger)
	}

	return nil
}

func monitorGCStats(interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last runtime.MemStats
	runtime.ReadMemStats(&last)

	for range ticker.C {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)

		gcCount := stats.NumGC - last.NumGC
		if gcCount > 0 {
			var totalPause uint64
			for i := uint32(0); i < gcCount && i < 256; i++ {
				idx := (stats.NumGC - 1 - i) % 256
				totalPause += stats.PauseNs[idx]
			}
			avgPause := time.Duration(totalPause / uint64(gcCount))
			logger.Info("gc stats",
				zap.Uint32("count", gcCount),
				zap.Duration("avg_pause", avgPause),
				zap.Uint64("heap_alloc_mb", stats.HeapAlloc/1024/1024),
				zap.Uint64("next_gc_mb", stats.NextGC/1024/1024),
			)
		}
		last = stats
	}
}

// ValidateGCConfig checks a GCConfig for internally consistent values.
func ValidateGCConfig(config *GCConfig) error {
	if config.GCPercent < 50 || config.GCPercent > 500 {
		return fmt.Errorf("gc_percent must be between 50 and 500")
	}
	if config.MemoryLimit <= 0 {
		return fmt.Errorf("memory_limit must be positive")
	}
	if config.MaxProcs < 0 {
		return fmt.Errorf("max_procs cannot be negative")
	}
	if config.GCStatsInterval <= 0 {
		return fmt.Errorf("gc_stats_interval must be positive")
	}
	return nil
}
