package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/opus-domini/sysreport/internal/collector"
	"github.com/opus-domini/sysreport/internal/config"
)

const gib = 1024 * 1024 * 1024

type fakeSource struct {
	cpu       float64
	cpuErr    error
	memUsed   float64
	memErr    error
	diskUsed  uint64
	diskTotal uint64
	diskErr   error
	interval  time.Duration
}

func (f *fakeSource) CPUPercent(_ context.Context, interval time.Duration) ([]float64, error) {
	f.interval = interval
	if f.cpuErr != nil {
		return nil, f.cpuErr
	}
	return []float64{f.cpu}, nil
}

func (f *fakeSource) VirtualMemory(context.Context) (*mem.VirtualMemoryStat, error) {
	if f.memErr != nil {
		return nil, f.memErr
	}
	return &mem.VirtualMemoryStat{Total: 16 * gib, Available: 8 * gib, UsedPercent: f.memUsed}, nil
}

func (f *fakeSource) DiskUsage(_ context.Context, path string) (*disk.UsageStat, error) {
	if f.diskErr != nil {
		return nil, f.diskErr
	}
	total := f.diskTotal
	if total == 0 {
		total = 100 * gib
	}
	return &disk.UsageStat{Path: path, Total: total, Used: f.diskUsed}, nil
}

// withHost swaps the collector and config seams for the duration of t.
func withHost(t *testing.T, src *fakeSource, cfg config.Config) {
	t.Helper()
	origCollector := newCollectorFn
	origLoad := loadConfigFn
	origRunID := newRunIDFn
	t.Cleanup(func() {
		newCollectorFn = origCollector
		loadConfigFn = origLoad
		newRunIDFn = origRunID
	})
	newCollectorFn = func() *collector.Collector { return collector.New(src) }
	loadConfigFn = func(string) (config.Config, error) { return cfg, nil }
	newRunIDFn = func() string { return "test-run" }
}

func scenarioSource() *fakeSource {
	return &fakeSource{cpu: 85, memUsed: 50, diskUsed: 10 * gib}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Path = filepath.Join(t.TempDir(), "config.toml")
	return cfg
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunCLIScenarioCPUAlertJSON(t *testing.T) {
	cfg := testConfig(t)
	withHost(t, scenarioSource(), cfg)

	var out, errOut bytes.Buffer
	code := runCLI([]string{"--format", "json"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut.String())
	}

	path := filepath.Join(cfg.OutputDir, "system_report.json")
	wantOut := "CPU usage high\nSystem report generated: " + path + "\n"
	if out.String() != wantOut {
		t.Fatalf("stdout = %q, want %q", out.String(), wantOut)
	}

	data, err := os.ReadFile(path) //nolint:gosec // test file, path is from t.TempDir()
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n    \"CPU_Usage(%)\": 85.0,\n    \"Memory_Usage\": 50.0,\n    \"Disk_Usage\": 10.0\n}"
	if string(data) != want {
		t.Fatalf("report = %q, want %q", data, want)
	}
}

func TestRunCLIDefaultIsTextReport(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{cpu: 12.5, memUsed: 40.25, diskUsed: 5 * gib}
	withHost(t, src, cfg)

	var out, errOut bytes.Buffer
	if code := runCLI(nil, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut.String())
	}
	if src.interval != time.Second {
		t.Fatalf("cpu interval = %v, want 1s", src.interval)
	}
	if got := dirEntries(t, cfg.OutputDir); len(got) != 1 || got[0] != "system_report.txt" {
		t.Fatalf("files = %v, want [system_report.txt]", got)
	}
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "system_report.txt")) //nolint:gosec // test file
	if err != nil {
		t.Fatal(err)
	}
	want := "System Report\nCPU Usage: 12.5%\nMemory Usage: 40.25\nDisk Usage: 5.0\n"
	if string(data) != want {
		t.Fatalf("report = %q, want %q", data, want)
	}
	if strings.Contains(out.String(), "high") {
		t.Fatalf("unexpected alert output: %q", out.String())
	}
}

func TestRunCLIReportFlagsOverrideConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Format = "json"
	src := scenarioSource()
	withHost(t, src, cfg)

	otherDir := t.TempDir()
	var out, errOut bytes.Buffer
	code := runCLI([]string{"report", "-interval", "0", "-format", "csv", "-csv-layout", "legacy", "-output-dir", otherDir}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, errOut.String())
	}
	if src.interval != 0 {
		t.Fatalf("cpu interval = %v, want 0", src.interval)
	}
	if got := dirEntries(t, cfg.OutputDir); len(got) != 0 {
		t.Fatalf("config output dir used: %v", got)
	}
	data, err := os.ReadFile(filepath.Join(otherDir, "system_report.csv")) //nolint:gosec // test file
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Metric,Details\r\nC,P,U, ,U,s,a,g,e,:,") {
		t.Fatalf("legacy csv not written: %q", data)
	}
}

func TestRunCLIUnsupportedFormatFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Format = "xml"
	withHost(t, scenarioSource(), cfg)

	var out, errOut bytes.Buffer
	code := runCLI([]string{"report"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if got := out.String(); got != "Unsupported format specified.\n" {
		t.Fatalf("stdout = %q", got)
	}
	if got := dirEntries(t, cfg.OutputDir); len(got) != 0 {
		t.Fatalf("files written: %v", got)
	}
}

func TestRunCLIInvalidFormatFlag(t *testing.T) {
	cfg := testConfig(t)
	withHost(t, scenarioSource(), cfg)

	var out, errOut bytes.Buffer
	code := runCLI([]string{"--format", "xml"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), `invalid value "xml" for flag -format`) {
		t.Fatalf("stderr missing parse error: %s", errOut.String())
	}
	if !strings.Contains(errOut.String(), "Usage:") {
		t.Fatalf("stderr missing usage: %s", errOut.String())
	}
	if got := dirEntries(t, cfg.OutputDir); len(got) != 0 {
		t.Fatalf("files written: %v", got)
	}
}

func TestRunCLICollectorFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	src := scenarioSource()
	src.memErr = errors.New("simulated os error")
	withHost(t, src, cfg)

	var out, errOut bytes.Buffer
	code := runCLI([]string{"--format", "json"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "system report aborted: sample memory: simulated os error") {
		t.Fatalf("stderr missing fatal diagnostic: %s", errOut.String())
	}
	if got := dirEntries(t, cfg.OutputDir); len(got) != 0 {
		t.Fatalf("partial report written: %v", got)
	}
	if out.Len() != 0 {
		t.Fatalf("stdout = %q, want empty", out.String())
	}
}

func TestRunCLIWriteFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.OutputDir = filepath.Join(cfg.OutputDir, "missing")
	withHost(t, scenarioSource(), cfg)

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"report"}, &out, &errOut); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "system report failed") {
		t.Fatalf("stderr = %s", errOut.String())
	}
}

func TestRunCLIDiskPercentMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerts.DiskMode = "percent"
	// 200 GiB used alerts in used_gib mode but is only 10% of this disk.
	src := &fakeSource{cpu: 10, memUsed: 10, diskUsed: 200 * gib, diskTotal: 2000 * gib}
	withHost(t, src, cfg)

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"report"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "System report generated: ") {
		t.Fatalf("stdout = %q, want no alerts", out.String())
	}

	src.diskUsed = 1900 * gib
	out.Reset()
	if code := runCLI([]string{"report"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "Disk usage high\n") {
		t.Fatalf("stdout = %q, want disk alert", out.String())
	}
}

func TestRunCLISummary(t *testing.T) {
	cfg := testConfig(t)
	withHost(t, scenarioSource(), cfg)

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"-summary"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, errOut.String())
	}
	for _, fragment := range []string{
		"Summary",
		"cpu: 85.0% over 1s",
		"memory: 50.0% used, 8.0 GiB available of 16 GiB",
		"disk /: 10 GiB used of 100 GiB (10.0%)",
		"alerts: cpu",
	} {
		if !strings.Contains(out.String(), fragment) {
			t.Fatalf("summary missing %q:\n%s", fragment, out.String())
		}
	}
}

func TestRunCLIConfigError(t *testing.T) {
	orig := loadConfigFn
	t.Cleanup(func() { loadConfigFn = orig })
	loadConfigFn = func(string) (config.Config, error) {
		return config.Config{}, config.ErrInvalid
	}

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"report"}, &out, &errOut); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "config: invalid config") {
		t.Fatalf("stderr = %s", errOut.String())
	}
}

func TestRunCLIInvalidCSVLayoutFlag(t *testing.T) {
	cfg := testConfig(t)
	withHost(t, scenarioSource(), cfg)

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"-csv-layout", "wide"}, &out, &errOut); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if got := dirEntries(t, cfg.OutputDir); len(got) != 0 {
		t.Fatalf("files written: %v", got)
	}
}

func TestRunCLIRouting(t *testing.T) {
	origVersion := currentVersionFn
	t.Cleanup(func() { currentVersionFn = origVersion })
	currentVersionFn = func() string { return "1.2.3" }

	cases := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{name: "version", args: []string{"version"}, wantOut: "sysreport version 1.2.3"},
		{name: "version flag", args: []string{"--version"}, wantOut: "sysreport version 1.2.3"},
		{name: "root help", args: []string{"help"}, wantOut: "sysreport command-line interface"},
		{name: "root help flag", args: []string{"-h"}, wantOut: "Commands:"},
		{name: "report help", args: []string{"report", "-help"}, wantOut: "system_report.{txt,json,csv}"},
		{name: "unknown command", args: []string{"serve"}, wantCode: 2, wantErr: "unknown command: serve"},
		{name: "unexpected args", args: []string{"report", "extra"}, wantCode: 2, wantErr: "unexpected argument(s): extra"},
		{name: "config no args", args: []string{"config"}, wantCode: 2, wantErr: "sysreport config init"},
		{name: "config help", args: []string{"config", "help"}, wantOut: "sysreport config show"},
		{name: "config unknown", args: []string{"config", "edit"}, wantCode: 2, wantErr: "unknown config command: edit"},
		{name: "doctor help", args: []string{"doctor", "--help"}, wantOut: "sysreport doctor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code := runCLI(tc.args, &out, &errOut)
			if code != tc.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr: %s)", code, tc.wantCode, errOut.String())
			}
			if tc.wantOut != "" && !strings.Contains(out.String(), tc.wantOut) {
				t.Fatalf("stdout missing %q: %s", tc.wantOut, out.String())
			}
			if tc.wantErr != "" && !strings.Contains(errOut.String(), tc.wantErr) {
				t.Fatalf("stderr missing %q: %s", tc.wantErr, errOut.String())
			}
		})
	}
}

func TestRunCLIConfigInit(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SYSREPORT_HOME", home)
	t.Setenv("SYSREPORT_CONFIG", "")

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"config", "init"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, errOut.String())
	}
	path := filepath.Join(home, "config.toml")
	if !strings.Contains(out.String(), "config written: "+path) {
		t.Fatalf("stdout = %q", out.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	out.Reset()
	errOut.Reset()
	if code := runCLI([]string{"config", "init"}, &out, &errOut); code != 1 {
		t.Fatalf("second init exit code = %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "-force") {
		t.Fatalf("stderr = %q", errOut.String())
	}
	if code := runCLI([]string{"config", "init", "-force"}, &out, &errOut); code != 0 {
		t.Fatalf("forced init exit code = %d", code)
	}
}

func TestRunCLIConfigShow(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ignored = []string{"listen"}
	withHost(t, scenarioSource(), cfg)

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"config", "show"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, errOut.String())
	}
	for _, fragment := range []string{
		"(not found, using defaults)",
		"interval: 1s",
		"format: text",
		"alerts.cpu_percent: 80",
		"alerts.disk_mode: used_gib",
		"ignored keys: listen",
	} {
		if !strings.Contains(out.String(), fragment) {
			t.Fatalf("output missing %q:\n%s", fragment, out.String())
		}
	}
}

func TestRunCLIDoctor(t *testing.T) {
	cfg := testConfig(t)
	src := scenarioSource()
	src.diskErr = errors.New("statfs denied")
	withHost(t, src, cfg)

	var out, errOut bytes.Buffer
	if code := runCLI([]string{"doctor"}, &out, &errOut); code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, errOut.String())
	}
	for _, fragment := range []string{
		"sysreport doctor report",
		"config loaded: false",
		"output dir writable: true",
		"memory probe: ok",
		"disk probe: failed: sample disk /: statfs denied",
	} {
		if !strings.Contains(out.String(), fragment) {
			t.Fatalf("doctor output missing %q:\n%s", fragment, out.String())
		}
	}
	if got := dirEntries(t, cfg.OutputDir); len(got) != 0 {
		t.Fatalf("doctor left files behind: %v", got)
	}
}

func TestCurrentVersionPrefersBuildVersion(t *testing.T) {
	orig := buildVersion
	t.Cleanup(func() { buildVersion = orig })

	buildVersion = "v0.4.0"
	if got := currentVersion(); got != "v0.4.0" {
		t.Fatalf("currentVersion() = %q, want v0.4.0", got)
	}

	buildVersion = "dev"
	// Test binaries may report "(devel)" build info; either way the result
	// must not be empty.
	if got := currentVersion(); got == "" {
		t.Fatal("currentVersion() returned empty string")
	}
}
