package collector

import "time"

const bytesPerGiB = 1024 * 1024 * 1024

// CPUSample is the average CPU utilization over Interval.
type CPUSample struct {
	Percent  float64
	Interval time.Duration
}

// MemorySample holds physical memory usage. AvailableBytes never exceeds
// TotalBytes.
type MemorySample struct {
	TotalBytes     uint64
	AvailableBytes uint64
	UsedPercent    float64
}

func (m MemorySample) TotalGiB() float64     { return toGiB(m.TotalBytes) }
func (m MemorySample) AvailableGiB() float64 { return toGiB(m.AvailableBytes) }

// DiskSample holds filesystem usage for Path. UsedBytes never exceeds
// TotalBytes.
type DiskSample struct {
	Path       string
	TotalBytes uint64
	UsedBytes  uint64
}

func (d DiskSample) TotalGiB() float64 { return toGiB(d.TotalBytes) }
func (d DiskSample) UsedGiB() float64  { return toGiB(d.UsedBytes) }

// UsedPercent returns used space as a share of total, 0 for an empty
// filesystem.
func (d DiskSample) UsedPercent() float64 {
	if d.TotalBytes == 0 {
		return 0
	}
	return float64(d.UsedBytes) / float64(d.TotalBytes) * 100
}

// Snapshot is one run's worth of samples.
type Snapshot struct {
	CPU         CPUSample
	Memory      MemorySample
	Disk        DiskSample
	CollectedAt time.Time
}

func toGiB(b uint64) float64 {
	return float64(b) / bytesPerGiB
}
