// metrics.go - host and ledger metrics for the health endpoints
package server

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
)

// NodeMetrics holds host and chain health figures.
type NodeMetrics struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	BlockHeight    int     `json:"block_height"`
	FilesTracked   int     `json:"files_tracked"`
	Difficulty     int     `json:"difficulty"`
	CPULoadPercent float64 `json:"cpu_load_percent"`
	MemoryMB       float64 `json:"memory_mb"`
	DiskFreeMB     float64 `json:"disk_free_mb"`
	LastBlockTime  string  `json:"last_block_time"`
}

// GetNodeMetrics returns current health metrics for the node.
func (s *Server) GetNodeMetrics() NodeMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	diskFreeMB := 0.0
	if usage, err := disk.Usage(s.uploadDir); err == nil {
		diskFreeMB = float64(usage.Free) / (1024 * 1024)
	}

	cpuLoad := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuLoad = pct[0]
	}

	stats := s.chain.Statistics()
	lastBlockTime := ""
	if tip, ok := s.chain.Latest(); ok {
		lastBlockTime = tip.Time().UTC().Format(time.RFC3339)
	}

	return NodeMetrics{
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		BlockHeight:    stats.TotalBlocks,
		FilesTracked:   stats.FilesTracked,
		Difficulty:     stats.Difficulty,
		CPULoadPercent: cpuLoad,
		MemoryMB:       float64(m.Alloc) / (1024 * 1024),
		DiskFreeMB:     diskFreeMB,
		LastBlockTime:  lastBlockTime,
	}
}
