package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var csvHeader = []string{"Metric", "Details"}

func encodeCSV(w io.Writer, r Report, layout CSVLayout) error {
	switch layout {
	case "", CSVLayoutTable:
		return encodeCSVTable(w, r)
	case CSVLayoutLegacy:
		return encodeCSVLegacy(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCSVLayout, string(layout))
	}
}

func encodeCSVTable(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	records := [][]string{csvHeader}
	for _, line := range r.lines() {
		metric, details, _ := strings.Cut(line, ": ")
		records = append(records, []string{metric, details})
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("encode csv report: %w", err)
	}
	return nil
}

// encodeCSVLegacy emits each metric line, newline included, one character
// per field. encoding/csv is not used here because it quotes fields with a
// leading space and rewrites embedded LF as CRLF, both of which would change
// the bytes.
func encodeCSVLegacy(w io.Writer, r Report) error {
	var b strings.Builder
	writeLegacyRecord(&b, csvHeader)
	for _, line := range r.lines() {
		chars := make([]string, 0, len(line)+1)
		for _, c := range line + "\n" {
			chars = append(chars, string(c))
		}
		writeLegacyRecord(&b, chars)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeLegacyRecord(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if strings.ContainsAny(field, ",\"\r\n") {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(field, `"`, `""`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(field)
	}
	b.WriteString("\r\n")
}
