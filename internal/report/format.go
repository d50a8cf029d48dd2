package report

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnsupportedFormatMessage is printed when a report is requested in a
// format other than text, json or csv.
const UnsupportedFormatMessage = "Unsupported format specified."

var (
	ErrUnsupportedFormat = errors.New("unsupported report format")
	ErrInvalidCSVLayout  = errors.New("invalid csv layout")
)

// Format selects the report serialization.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Formats lists the supported formats in help order.
var Formats = []Format{FormatText, FormatJSON, FormatCSV}

// ParseFormat validates raw against the supported formats.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// Filename is the fixed output file name for f.
func (f Format) Filename() string {
	switch f {
	case FormatText:
		return "system_report.txt"
	case FormatJSON:
		return "system_report.json"
	case FormatCSV:
		return "system_report.csv"
	default:
		return ""
	}
}

func (f Format) String() string { return string(f) }

// Set implements flag.Value, rejecting unsupported formats at parse time.
func (f *Format) Set(raw string) error {
	parsed, err := ParseFormat(raw)
	if err != nil {
		return fmt.Errorf("must be one of %s", formatChoices())
	}
	*f = parsed
	return nil
}

func formatChoices() string {
	names := make([]string, 0, len(Formats))
	for _, f := range Formats {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// CSVLayout selects the CSV row structure.
type CSVLayout string

const (
	// CSVLayoutTable writes one Metric,Details row per metric.
	CSVLayoutTable CSVLayout = "table"
	// CSVLayoutLegacy reproduces the older output where every character of
	// a metric line became its own field.
	CSVLayoutLegacy CSVLayout = "legacy"
)

// ParseCSVLayout validates raw. Empty input selects CSVLayoutTable.
func ParseCSVLayout(raw string) (CSVLayout, error) {
	switch l := CSVLayout(strings.ToLower(strings.TrimSpace(raw))); l {
	case "":
		return CSVLayoutTable, nil
	case CSVLayoutTable, CSVLayoutLegacy:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCSVLayout, raw)
	}
}

// formatNumber renders v with the shortest digits that round-trip. Integral
// values keep a trailing ".0" and very small or very large magnitudes use
// exponent notation, so 85 prints as "85.0" and 1.5e-05 stays as is.
func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
