package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/opus-domini/sysreport/internal/alerts"
	"github.com/opus-domini/sysreport/internal/collector"
	"github.com/opus-domini/sysreport/internal/config"
	"github.com/opus-domini/sysreport/internal/report"
)

func runReportCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	interval := fs.Int("interval", 1, "CPU sampling interval in seconds")
	format := report.FormatText
	fs.Var(&format, "format", "report format: text, json or csv")
	outputDir := fs.String("output-dir", ".", "directory the report is written to")
	diskPath := fs.String("disk-path", collector.DefaultDiskPath, "filesystem path sampled for disk usage")
	csvLayout := fs.String("csv-layout", string(report.CSVLayoutTable), "csv rows: table or legacy")
	summary := fs.Bool("summary", false, "print a usage summary after the report is written")
	help := fs.Bool("help", false, "show help")
	if code, ok := parseFlags(ctx, fs, args, help, printReportHelp); !ok {
		return code
	}

	cfg, err := loadConfigFn(*configPath)
	if err != nil {
		writef(ctx.stderr, "config: %v\n", err)
		return 2
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			cfg.IntervalSec = *interval
		case "format":
			cfg.Format = format.String()
		case "output-dir":
			cfg.OutputDir = *outputDir
		case "disk-path":
			cfg.DiskPath = *diskPath
		case "csv-layout":
			cfg.CSVLayout = *csvLayout
		}
	})
	if err := cfg.Validate(); err != nil {
		writef(ctx.stderr, "%v\n", err)
		printReportHelp(ctx.stderr)
		return 2
	}
	initLogger(ctx.stderr, cfg.LogLevel, newRunIDFn())

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return generateReport(runCtx, ctx, cfg, *summary)
}

// generateReport samples once, prints alerts and writes the report file. No
// file is written unless every sample succeeded.
func generateReport(runCtx context.Context, ctx commandContext, cfg config.Config, summary bool) int {
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		slog.Debug("report format rejected", "format", cfg.Format)
		writeln(ctx.stdout, report.UnsupportedFormatMessage)
		return 2
	}

	slog.Debug("collecting host metrics", "interval", cfg.Interval(), "disk_path", cfg.DiskPath)
	snap, err := newCollectorFn().Collect(runCtx, cfg.Interval(), cfg.DiskPath)
	if err != nil {
		writef(ctx.stderr, "system report aborted: %v\n", err)
		return 1
	}

	fired := alerts.Evaluate(cfg.Thresholds(), alerts.Input{
		CPUPercent:        snap.CPU.Percent,
		MemoryUsedPercent: snap.Memory.UsedPercent,
		DiskUsedGiB:       snap.Disk.UsedGiB(),
		DiskUsedPercent:   snap.Disk.UsedPercent(),
	})
	printAlerts(ctx.stdout, fired)

	rep := report.Report{
		CPUPercent:        snap.CPU.Percent,
		MemoryUsedPercent: snap.Memory.UsedPercent,
		DiskUsedGiB:       snap.Disk.UsedGiB(),
	}
	path, err := report.WriteFile(cfg.OutputDir, rep, format, report.Options{
		CSVLayout: report.CSVLayout(cfg.CSVLayout),
	})
	if err != nil {
		writef(ctx.stderr, "system report failed: %v\n", err)
		return 1
	}
	slog.Debug("report written", "path", path, "format", format, "alerts", len(fired))

	printNotice(ctx.stdout, "System report generated: "+path)
	if summary {
		printSummary(ctx.stdout, snap, fired)
	}
	return 0
}
