package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	isatty "github.com/mattn/go-isatty"

	"github.com/opus-domini/sysreport/internal/alerts"
	"github.com/opus-domini/sysreport/internal/collector"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

type outputRow struct {
	Key   string
	Value string
}

func shouldUsePrettyOutput(w io.Writer) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	fd, ok := fileDescriptor(w)
	if !ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func fileDescriptor(w io.Writer) (uintptr, bool) {
	type fdWriter interface {
		Fd() uintptr
	}
	f, ok := w.(fdWriter)
	if !ok {
		return 0, false
	}
	return f.Fd(), true
}

func printRows(w io.Writer, rows []outputRow) {
	if !shouldUsePrettyOutput(w) {
		for _, row := range rows {
			writef(w, "%s: %s\n", row.Key, row.Value)
		}
		return
	}

	maxKey := 0
	for _, row := range rows {
		if len(row.Key) > maxKey {
			maxKey = len(row.Key)
		}
	}
	for _, row := range rows {
		writef(w, "%s%-*s%s  %s\n", ansiDim, maxKey, row.Key, ansiReset, colorizeValue(row.Value))
	}
}

func printHeading(w io.Writer, title string) {
	if shouldUsePrettyOutput(w) {
		writef(w, "%s%s%s\n", ansiBold, title, ansiReset)
		return
	}
	writeln(w, title)
	writeln(w, strings.Repeat("-", len(title)))
}

func printNotice(w io.Writer, message string) {
	if shouldUsePrettyOutput(w) {
		writef(w, "%s%s%s\n", ansiGreen, message, ansiReset)
		return
	}
	writeln(w, message)
}

func printAlerts(w io.Writer, fired []alerts.Alert) {
	if !shouldUsePrettyOutput(w) {
		_ = alerts.Write(w, fired)
		return
	}
	for _, a := range fired {
		writef(w, "%s%s%s\n", ansiYellow, a.Message, ansiReset)
	}
}

func printSummary(w io.Writer, snap collector.Snapshot, fired []alerts.Alert) {
	alertLabel := "none"
	if len(fired) > 0 {
		names := make([]string, 0, len(fired))
		for _, a := range fired {
			names = append(names, a.Metric)
		}
		alertLabel = strings.Join(names, ", ")
	}

	printHeading(w, "Summary")
	printRows(w, []outputRow{
		{Key: "collected at", Value: snap.CollectedAt.Format(time.RFC3339)},
		{Key: "cpu", Value: fmt.Sprintf("%.1f%% over %s", snap.CPU.Percent, snap.CPU.Interval)},
		{Key: "memory", Value: fmt.Sprintf("%.1f%% used, %s available of %s",
			snap.Memory.UsedPercent,
			humanize.IBytes(snap.Memory.AvailableBytes),
			humanize.IBytes(snap.Memory.TotalBytes),
		)},
		{Key: "disk " + snap.Disk.Path, Value: fmt.Sprintf("%s used of %s (%.1f%%)",
			humanize.IBytes(snap.Disk.UsedBytes),
			humanize.IBytes(snap.Disk.TotalBytes),
			snap.Disk.UsedPercent(),
		)},
		{Key: "alerts", Value: alertLabel},
	})
}

func colorizeValue(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch {
	case normalized == "true", normalized == "ok", normalized == "yes", normalized == "none":
		return ansiGreen + value + ansiReset
	case normalized == "false", normalized == "no", strings.HasPrefix(normalized, "failed"):
		return ansiRed + value + ansiReset
	case normalized == "-", normalized == "unknown", normalized == "n/a":
		return ansiYellow + value + ansiReset
	default:
		return value
	}
}
