package services

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	issuesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "civic_issues_created_total",
			Help: "Total number of issues reported",
		},
	)

	issueTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_issue_transitions_total",
			Help: "Issue status transitions by target status",
		},
		[]string{"status"},
	)

	misconfigurationAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_misconfiguration_alerts_total",
			Help: "Operations that failed because reference data is missing",
		},
		[]string{"reason"},
	)
)

// HostStats is a point-in-time view of the process and host, served by the
// health endpoint.
type HostStats struct {
	CapturedAt        time.Time `json:"capturedAt"`
	ProcessRSSBytes   int64     `json:"processRssBytes"`
	SystemMemoryTotal int64     `json:"systemMemoryTotalBytes"`
	SystemMemoryUsed  int64     `json:"systemMemoryUsedBytes"`
	DiskTotalBytes    int64     `json:"diskTotalBytes"`
	DiskUsedBytes     int64     `json:"diskUsedBytes"`
	ProcessCpuLoad    float64   `json:"processCpuLoad"`
	SystemCpuLoad     float64   `json:"systemCpuLoad"`
}

func CaptureHostStats(ctx context.Context, diskPath string) HostStats {
	stats := HostStats{CapturedAt: now()}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfoWithContext(ctx); err == nil && rss != nil {
			stats.ProcessRSSBytes = int64(rss.RSS)
		}
		if perc, err := proc.CPUPercentWithContext(ctx); err == nil {
			stats.ProcessCpuLoad = perc / 100.0
		}
	}
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.SystemMemoryTotal = int64(memStat.Total)
		stats.SystemMemoryUsed = int64(memStat.Total - memStat.Available)
	}
	diskStat, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		diskStat, err = disk.UsageWithContext(ctx, "/")
	}
	if err == nil {
		stats.DiskTotalBytes = int64(diskStat.Total)
		stats.DiskUsedBytes = int64(diskStat.Used)
	}
	if sysCPU, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(sysCPU) > 0 {
		stats.SystemCpuLoad = sysCPU[0] / 100.0
	}
	return stats
}
