package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/opus-domini/sysreport/internal/collector"
	"github.com/opus-domini/sysreport/internal/config"
)

var (
	loadConfigFn     = config.Load
	newCollectorFn   = func() *collector.Collector { return collector.New(nil) }
	newRunIDFn       = uuid.NewString
	currentVersionFn = currentVersion
)

const (
	cmdHelp       = "help"
	flagHelpShort = "-h"
	flagHelpLong  = "--help"
)

func writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

func runCLI(args []string, stdout, stderr io.Writer) int {
	ctx := commandContext{stdout: stdout, stderr: stderr}

	if len(args) == 0 {
		return runReportCommand(ctx, nil)
	}

	switch args[0] {
	case "-v", "--version", "version":
		writef(stdout, "sysreport version %s\n", currentVersionFn())
		return 0
	case "report":
		return runReportCommand(ctx, args[1:])
	case "doctor":
		return runDoctorCommand(ctx, args[1:])
	case "config":
		return runConfigCommand(ctx, args[1:])
	case cmdHelp, flagHelpShort, flagHelpLong:
		printRootHelp(stdout)
		return 0
	default:
		// Root flags belong to the default report command.
		if strings.HasPrefix(args[0], "-") {
			return runReportCommand(ctx, args)
		}
		writef(stderr, "unknown command: %s\n\n", args[0])
		printRootHelp(stderr)
		return 2
	}
}

// parseFlags applies the shared parse/help/extra-args handling. ok is false
// when the caller should return code immediately.
func parseFlags(ctx commandContext, fs *flag.FlagSet, args []string, help *bool, usage func(io.Writer)) (code int, ok bool) {
	fs.SetOutput(ctx.stderr)
	fs.Usage = func() { usage(ctx.stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	if *help {
		usage(ctx.stdout)
		return 0, false
	}
	if fs.NArg() > 0 {
		writef(ctx.stderr, "unexpected argument(s): %s\n", strings.Join(fs.Args(), " "))
		usage(ctx.stderr)
		return 2, false
	}
	return 0, true
}

func runDoctorCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	help := fs.Bool("help", false, "show help")
	if code, ok := parseFlags(ctx, fs, args, help, printDoctorHelp); !ok {
		return code
	}

	cfg, err := loadConfigFn(*configPath)
	if err != nil {
		writef(ctx.stderr, "config: %v\n", err)
		return 2
	}
	initLogger(ctx.stderr, cfg.LogLevel, newRunIDFn())

	col := newCollectorFn()
	probeCtx := context.Background()
	memStatus := "ok"
	if _, err := col.SampleMemory(probeCtx); err != nil {
		memStatus = "failed: " + err.Error()
	}
	diskStatus := "ok"
	if _, err := col.SampleDisk(probeCtx, cfg.DiskPath); err != nil {
		diskStatus = "failed: " + err.Error()
	}

	printHeading(ctx.stdout, "sysreport doctor report")
	printRows(ctx.stdout, []outputRow{
		{Key: "os", Value: runtime.GOOS + "/" + runtime.GOARCH},
		{Key: "supported host", Value: strconv.FormatBool(supportedHost(runtime.GOOS))},
		{Key: "config file", Value: cfg.Path},
		{Key: "config loaded", Value: strconv.FormatBool(cfg.Loaded)},
		{Key: "ignored keys", Value: valueOrDash(strings.Join(cfg.Ignored, ", "))},
		{Key: "output dir", Value: cfg.OutputDir},
		{Key: "output dir writable", Value: strconv.FormatBool(dirWritable(cfg.OutputDir))},
		{Key: "memory probe", Value: memStatus},
		{Key: "disk probe", Value: diskStatus},
	})
	return 0
}

func runConfigCommand(ctx commandContext, args []string) int {
	if len(args) == 0 {
		printConfigHelp(ctx.stderr)
		return 2
	}

	switch args[0] {
	case "init":
		return runConfigInitCommand(ctx, args[1:])
	case "show":
		return runConfigShowCommand(ctx, args[1:])
	case cmdHelp, flagHelpShort, flagHelpLong:
		printConfigHelp(ctx.stdout)
		return 0
	default:
		writef(ctx.stderr, "unknown config command: %s\n\n", args[0])
		printConfigHelp(ctx.stderr)
		return 2
	}
}

func runConfigInitCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	path := fs.String("config", "", "path to write (defaults to $SYSREPORT_HOME/config.toml)")
	force := fs.Bool("force", false, "overwrite an existing file")
	help := fs.Bool("help", false, "show help")
	if code, ok := parseFlags(ctx, fs, args, help, printConfigInitHelp); !ok {
		return code
	}

	target := strings.TrimSpace(*path)
	if target == "" {
		_, target = config.DefaultPath()
	}
	if err := config.WriteDefault(target, *force); err != nil {
		if errors.Is(err, config.ErrExists) {
			writef(ctx.stderr, "%v (use -force to overwrite)\n", err)
			return 1
		}
		writef(ctx.stderr, "config init failed: %v\n", err)
		return 1
	}
	printNotice(ctx.stdout, "config written: "+target)
	return 0
}

func runConfigShowCommand(ctx commandContext, args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	path := fs.String("config", "", "path to config file")
	help := fs.Bool("help", false, "show help")
	if code, ok := parseFlags(ctx, fs, args, help, printConfigShowHelp); !ok {
		return code
	}

	cfg, err := loadConfigFn(*path)
	if err != nil {
		writef(ctx.stderr, "config: %v\n", err)
		return 2
	}

	source := cfg.Path
	if !cfg.Loaded {
		source += " (not found, using defaults)"
	}
	printHeading(ctx.stdout, "Effective configuration")
	printRows(ctx.stdout, []outputRow{
		{Key: "file", Value: source},
		{Key: "interval", Value: strconv.Itoa(cfg.IntervalSec) + "s"},
		{Key: "format", Value: cfg.Format},
		{Key: "output_dir", Value: cfg.OutputDir},
		{Key: "disk_path", Value: cfg.DiskPath},
		{Key: "csv_layout", Value: cfg.CSVLayout},
		{Key: "log_level", Value: cfg.LogLevel},
		{Key: "alerts.cpu_percent", Value: formatThreshold(cfg.Alerts.CPUPercent)},
		{Key: "alerts.memory_percent", Value: formatThreshold(cfg.Alerts.MemoryPercent)},
		{Key: "alerts.disk_used", Value: formatThreshold(cfg.Alerts.DiskUsed)},
		{Key: "alerts.disk_mode", Value: cfg.Alerts.DiskMode},
		{Key: "ignored keys", Value: valueOrDash(strings.Join(cfg.Ignored, ", "))},
	})
	return 0
}

func supportedHost(goos string) bool {
	switch goos {
	case "linux", "darwin", "windows", "freebsd", "openbsd", "solaris", "aix":
		return true
	default:
		return false
	}
}

func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".sysreport-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func valueOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func printRootHelp(w io.Writer) {
	writeln(w, "sysreport command-line interface")
	writeln(w, "")
	writeln(w, "Usage:")
	writeln(w, "  sysreport [report] [-interval N] [-format text|json|csv]")
	writeln(w, "  sysreport doctor")
	writeln(w, "  sysreport config <init|show>")
	writeln(w, "  sysreport version")
	writeln(w, "")
	writeln(w, "Commands:")
	writeln(w, "  report     Sample CPU, memory and disk and write a report (default)")
	writeln(w, "  doctor     Check local environment and runtime config")
	writeln(w, "  config     Create or inspect the config file")
	writeln(w, "  version    Print the build version")
}

func printReportHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  sysreport report [-interval N] [-format text|json|csv] [-output-dir DIR]")
	writeln(w, "                   [-disk-path PATH] [-csv-layout table|legacy] [-config PATH] [-summary]")
	writeln(w, "")
	writeln(w, "Samples CPU over the interval, checks alert thresholds and writes")
	writeln(w, "system_report.{txt,json,csv} to the output directory.")
	writeln(w, "Flags override environment variables and the config file.")
}

func printDoctorHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  sysreport doctor [-config PATH]")
}

func printConfigHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  sysreport config init [-config PATH] [-force]")
	writeln(w, "  sysreport config show [-config PATH]")
}

func printConfigInitHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  sysreport config init [-config PATH] [-force]")
}

func printConfigShowHelp(w io.Writer) {
	writeln(w, "Usage:")
	writeln(w, "  sysreport config show [-config PATH]")
}
