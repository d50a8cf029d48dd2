package alerts

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Metric names.
const (
	MetricCPU    = "cpu"
	MetricMemory = "memory"
	MetricDisk   = "disk"
)

// DiskMode selects which disk quantity is compared against Thresholds.Disk.
type DiskMode string

const (
	// DiskModeUsedGiB compares absolute used GiB against the threshold. The
	// default threshold of 90 reads like a percentage, so this mode is a
	// known unit mismatch kept for output parity with earlier reports.
	DiskModeUsedGiB DiskMode = "used_gib"
	// DiskModePercent compares the used share of the filesystem.
	DiskModePercent DiskMode = "percent"
)

// ErrInvalidDiskMode is returned when a disk mode is not recognized.
var ErrInvalidDiskMode = errors.New("invalid disk alert mode")

// ParseDiskMode validates raw. Empty input selects DiskModeUsedGiB.
func ParseDiskMode(raw string) (DiskMode, error) {
	switch DiskMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DiskModeUsedGiB:
		return DiskModeUsedGiB, nil
	case DiskModePercent:
		return DiskModePercent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDiskMode, raw)
	}
}

// Thresholds holds the exclusive upper bounds for each metric.
type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	Disk          float64
	DiskMode      DiskMode
}

// DefaultThresholds returns cpu > 80%, memory > 75%, disk > 90 (used GiB).
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUPercent:    80,
		MemoryPercent: 75,
		Disk:          90,
		DiskMode:      DiskModeUsedGiB,
	}
}

// Input carries the sampled values the thresholds apply to.
type Input struct {
	CPUPercent        float64
	MemoryUsedPercent float64
	DiskUsedGiB       float64
	DiskUsedPercent   float64
}

// Alert is a single threshold breach.
type Alert struct {
	Metric    string  `json:"metric"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// Evaluate checks every metric independently and returns the breaches in
// cpu, memory, disk order. A value equal to its threshold is not a breach.
func Evaluate(th Thresholds, in Input) []Alert {
	var out []Alert

	if in.CPUPercent > th.CPUPercent {
		out = append(out, Alert{
			Metric:    MetricCPU,
			Message:   "CPU usage high",
			Value:     in.CPUPercent,
			Threshold: th.CPUPercent,
		})
	}

	if in.MemoryUsedPercent > th.MemoryPercent {
		out = append(out, Alert{
			Metric:    MetricMemory,
			Message:   "Memory usage high",
			Value:     in.MemoryUsedPercent,
			Threshold: th.MemoryPercent,
		})
	}

	disk := in.DiskUsedGiB
	if th.DiskMode == DiskModePercent {
		disk = in.DiskUsedPercent
	}
	if disk > th.Disk {
		out = append(out, Alert{
			Metric:    MetricDisk,
			Message:   "Disk usage high",
			Value:     disk,
			Threshold: th.Disk,
		})
	}

	return out
}

// Write prints one message per alert.
func Write(w io.Writer, alerts []Alert) error {
	for _, a := range alerts {
		if _, err := fmt.Fprintln(w, a.Message); err != nil {
			return err
		}
	}
	return nil
}
