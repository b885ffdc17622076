package monitoring

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot is the host-resource block embedded in every
// system_status broadcast.
type SystemSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	DiskPercent   float64 `json:"disk_percent"`
	Goroutines    int     `json:"goroutines"`
	CapturedAt    int64   `json:"captured_at"`
}

// SnapshotSystem measures current host resources. Each gopsutil probe
// is independent; a failed probe leaves its field zero rather than
// failing the snapshot.
func SnapshotSystem(dataPath string, logger zerolog.Logger) SystemSnapshot {
	snap := SystemSnapshot{
		Goroutines: runtime.NumGoroutine(),
		CapturedAt: time.Now().Unix(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	} else if err != nil {
		logger.Debug().Err(err).Msg("CPU probe failed")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryPercent = vm.UsedPercent
		snap.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
	} else {
		logger.Debug().Err(err).Msg("Memory probe failed")
	}

	if dataPath != "" {
		if du, err := disk.Usage(dataPath); err == nil {
			snap.DiskPercent = du.UsedPercent
		} else {
			logger.Debug().Err(err).Msg("Disk probe failed")
		}
	}
	return snap
}
