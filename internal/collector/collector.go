// Package collector samples host CPU, memory and disk utilization.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultDiskPath is the filesystem sampled when no path is given.
const DefaultDiskPath = "/"

var (
	ErrNoData       = errors.New("collector: no data returned")
	ErrOutOfRange   = errors.New("collector: value out of range")
	ErrInconsistent = errors.New("collector: inconsistent sample")
)

// Source is the OS query layer. The default implementation is backed by
// gopsutil; tests substitute synthetic responses.
type Source interface {
	CPUPercent(ctx context.Context, interval time.Duration) ([]float64, error)
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error)
}

type psutilSource struct{}

func (psutilSource) CPUPercent(ctx context.Context, interval time.Duration) ([]float64, error) {
	return cpu.PercentWithContext(ctx, interval, false)
}

func (psutilSource) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (psutilSource) DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

// Collector reads point-in-time samples from a Source.
type Collector struct {
	source Source
	nowFn  func() time.Time
}

// New returns a Collector reading from src, or from the host when src is nil.
func New(src Source) *Collector {
	if src == nil {
		src = psutilSource{}
	}
	return &Collector{source: src, nowFn: time.Now}
}

// SampleCPU blocks for interval and returns the average utilization over
// that window. An interval of zero compares against the previous call.
func (c *Collector) SampleCPU(ctx context.Context, interval time.Duration) (CPUSample, error) {
	if interval < 0 {
		slog.Warn("negative cpu interval, sampling instantaneously", "interval", interval)
		interval = 0
	}

	percents, err := c.source.CPUPercent(ctx, interval)
	if err == nil && len(percents) == 0 {
		err = ErrNoData
	}
	if err == nil && !validPercent(percents[0]) {
		err = fmt.Errorf("%w: cpu percent %v", ErrOutOfRange, percents[0])
	}
	if err != nil {
		slog.Error("cpu sample failed", "interval", interval, "err", err)
		return CPUSample{}, fmt.Errorf("sample cpu: %w", err)
	}

	return CPUSample{Percent: percents[0], Interval: interval}, nil
}

// SampleMemory reads total, available and used-percent physical memory.
func (c *Collector) SampleMemory(ctx context.Context) (MemorySample, error) {
	vm, err := c.source.VirtualMemory(ctx)
	if err == nil && vm == nil {
		err = ErrNoData
	}
	if err == nil {
		switch {
		case vm.Available > vm.Total:
			err = fmt.Errorf("%w: available %d > total %d", ErrInconsistent, vm.Available, vm.Total)
		case !validPercent(vm.UsedPercent):
			err = fmt.Errorf("%w: memory percent %v", ErrOutOfRange, vm.UsedPercent)
		}
	}
	if err != nil {
		slog.Error("memory sample failed", "err", err)
		return MemorySample{}, fmt.Errorf("sample memory: %w", err)
	}

	return MemorySample{
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
		UsedPercent:    vm.UsedPercent,
	}, nil
}

// SampleDisk reads total and used space of the filesystem holding path.
func (c *Collector) SampleDisk(ctx context.Context, path string) (DiskSample, error) {
	if path == "" {
		path = DefaultDiskPath
	}

	du, err := c.source.DiskUsage(ctx, path)
	if err == nil && du == nil {
		err = ErrNoData
	}
	if err == nil && du.Used > du.Total {
		err = fmt.Errorf("%w: used %d > total %d", ErrInconsistent, du.Used, du.Total)
	}
	if err != nil {
		slog.Error("disk sample failed", "path", path, "err", err)
		return DiskSample{}, fmt.Errorf("sample disk %s: %w", path, err)
	}

	return DiskSample{Path: path, TotalBytes: du.Total, UsedBytes: du.Used}, nil
}

// Collect samples each metric once, stopping at the first failure.
func (c *Collector) Collect(ctx context.Context, interval time.Duration, diskPath string) (Snapshot, error) {
	cpuSample, err := c.SampleCPU(ctx, interval)
	if err != nil {
		return Snapshot{}, err
	}
	memSample, err := c.SampleMemory(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	diskSample, err := c.SampleDisk(ctx, diskPath)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		CPU:         cpuSample,
		Memory:      memSample,
		Disk:        diskSample,
		CollectedAt: c.nowFn().UTC(),
	}, nil
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}
