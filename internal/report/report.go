// Package report serializes a host usage report as text, JSON or CSV.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

const title = "System Report"

// ErrNonFinite is returned when a value cannot be expressed as a JSON number.
var ErrNonFinite = errors.New("report value is not finite")

// Report is the set of values written for one run.
type Report struct {
	CPUPercent        float64
	MemoryUsedPercent float64
	DiskUsedGiB       float64
}

// Options tunes serialization details.
type Options struct {
	CSVLayout CSVLayout
}

func (r Report) lines() []string {
	return []string{
		"CPU Usage: " + formatNumber(r.CPUPercent) + "%",
		"Memory Usage: " + formatNumber(r.MemoryUsedPercent),
		"Disk Usage: " + formatNumber(r.DiskUsedGiB),
	}
}

// Encode writes r to w in format f.
func Encode(w io.Writer, r Report, f Format, opts Options) error {
	switch f {
	case FormatText:
		return encodeText(w, r)
	case FormatJSON:
		return encodeJSON(w, r)
	case FormatCSV:
		return encodeCSV(w, r, opts.CSVLayout)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// WriteFile renders r and writes it to f's fixed file name inside dir,
// replacing any existing file. Nothing is written when rendering fails.
func WriteFile(dir string, r Report, f Format, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r, f, opts); err != nil {
		return "", err
	}

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, f.Filename())

	file, err := os.Create(path) //nolint:gosec // output path is operator-chosen
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if _, err := buf.WriteTo(file); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	return path, nil
}

func encodeText(w io.Writer, r Report) error {
	var b strings.Builder
	b.WriteString(title)
	b.WriteByte('\n')
	for _, line := range r.lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// number is a float that keeps its ".0" suffix when marshaled.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %v", ErrNonFinite, v)
	}
	return []byte(formatNumber(v)), nil
}

type jsonReport struct {
	CPUUsage    number `json:"CPU_Usage(%)"`
	MemoryUsage number `json:"Memory_Usage"`
	DiskUsage   number `json:"Disk_Usage"`
}

func encodeJSON(w io.Writer, r Report) error {
	data, err := json.MarshalIndent(jsonReport{
		CPUUsage:    number(r.CPUPercent),
		MemoryUsage: number(r.MemoryUsedPercent),
		DiskUsage:   number(r.DiskUsedGiB),
	}, "", "    ")
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}
	_, err = w.Write(data)
	return err
}
