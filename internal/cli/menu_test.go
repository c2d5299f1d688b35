package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stone-age-io/sysinfo/internal/inventory"
	"go.uber.org/zap"
)

func init() {
	color.NoColor = true
}

type fakeTransmitter struct {
	calls  int
	apiKey string
	prompt string
	reply  string
	err    error
}

func (f *fakeTransmitter) Transmit(ctx context.Context, apiKey, prompt string, report *inventory.Report) (string, error) {
	f.calls++
	f.apiKey = apiKey
	f.prompt = prompt
	return f.reply, f.err
}

func menuReport() *inventory.Report {
	cpu := 3.5
	return &inventory.Report{
		System:   &inventory.SystemInfo{OS: "Linux", OSVersion: "24.04", Architecture: [2]string{"64bit", "ELF"}},
		Hardware: &inventory.HardwareInfo{CPUCount: 4, Memory: &inventory.MemoryInfo{Total: 8 << 30}},
		Programs: []inventory.Program{{Manager: "dpkg"}},
		Network: &inventory.NetworkInfo{Interfaces: []inventory.Interface{
			{Name: "eth0", Addresses: []inventory.AddressFamily{{Family: "AF_INET", HasAddress: true}}},
		}},
		Processes: []inventory.ProcessEntry{{Name: "init", CPUPercent: &cpu}},
	}
}

func runMenu(t *testing.T, input string, report *inventory.Report, tx Transmitter, opts MenuOptions) string {
	t.Helper()
	var out bytes.Buffer
	m := NewMenu(strings.NewReader(input), &out, report, tx, opts, zap.NewNop())
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return out.String()
}

func TestMenuSummaryAndExit(t *testing.T) {
	out := runMenu(t, "3\n4\n", menuReport(), &fakeTransmitter{}, MenuOptions{})

	for _, want := range []string{"=== SYSTEM SUMMARY ===", "OS: Linux 24.04", "RAM: 8.0 GB", "Running processes: 1", "Exiting..."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMenuInvalidOptionContinues(t *testing.T) {
	out := runMenu(t, "9\nabc\n4\n", menuReport(), &fakeTransmitter{}, MenuOptions{})

	if strings.Count(out, "ERROR Invalid option!") != 2 {
		t.Errorf("expected two invalid option errors:\n%s", out)
	}
	if strings.Count(out, "What would you like to do?") != 3 {
		t.Errorf("menu not shown again after invalid input:\n%s", out)
	}
}

func TestMenuEndOfInput(t *testing.T) {
	out := runMenu(t, "3\n", menuReport(), &fakeTransmitter{}, MenuOptions{})
	if !strings.Contains(out, "=== SYSTEM SUMMARY ===") {
		t.Errorf("summary not shown before end of input:\n%s", out)
	}
}

func TestMenuSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	out := runMenu(t, "1\n"+path+"\n4\n", menuReport(), &fakeTransmitter{}, MenuOptions{})
	if !strings.Contains(out, "OK Report saved to "+path) {
		t.Errorf("save not confirmed:\n%s", out)
	}

	loaded, err := inventory.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.System.OS != "Linux" {
		t.Errorf("loaded OS = %q", loaded.System.OS)
	}
}

func TestMenuSaveDefaultName(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	runMenu(t, "1\n\n4\n", menuReport(), &fakeTransmitter{}, MenuOptions{})
	if _, err := os.Stat(filepath.Join(dir, DefaultReportFile)); err != nil {
		t.Errorf("default report file not written: %v", err)
	}
}

func TestMenuSaveEndOfInput(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	out := runMenu(t, "1\n", menuReport(), &fakeTransmitter{}, MenuOptions{})
	if _, err := os.Stat(filepath.Join(dir, DefaultReportFile)); !os.IsNotExist(err) {
		t.Errorf("report saved after input ended at the file name prompt (stat err = %v)", err)
	}
	if strings.Contains(out, "OK Report saved") {
		t.Errorf("unexpected save:\n%s", out)
	}
}

func TestMenuSaveFailureContinues(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "report.json")
	out := runMenu(t, "1\n"+bad+"\n3\n4\n", menuReport(), &fakeTransmitter{}, MenuOptions{})

	if !strings.Contains(out, "ERROR saving:") {
		t.Errorf("save failure not reported:\n%s", out)
	}
	if !strings.Contains(out, "=== SYSTEM SUMMARY ===") {
		t.Errorf("menu did not continue after failure:\n%s", out)
	}
}

func TestMenuTransmit(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		opts       MenuOptions
		tx         *fakeTransmitter
		wantCalls  int
		wantKey    string
		wantPrompt string
		wantOut    string
	}{
		{
			name:       "default prompt",
			input:      "2\nsk-test\n\n4\n",
			opts:       MenuOptions{DefaultPrompt: "Analyze my system"},
			tx:         &fakeTransmitter{reply: "Looks healthy."},
			wantCalls:  1,
			wantKey:    "sk-test",
			wantPrompt: "Analyze my system",
			wantOut:    "Looks healthy.",
		},
		{
			name:       "custom prompt",
			input:      "2\nsk-test\nIs my disk full?\n4\n",
			tx:         &fakeTransmitter{reply: "No."},
			wantCalls:  1,
			wantKey:    "sk-test",
			wantPrompt: "Is my disk full?",
			wantOut:    "ASSISTANT RESPONSE:",
		},
		{
			name:      "empty key returns to menu",
			input:     "2\n\n4\n",
			tx:        &fakeTransmitter{},
			wantCalls: 0,
			wantOut:   "Exiting...",
		},
		{
			name:      "input ends at key prompt",
			input:     "2\n",
			opts:      MenuOptions{APIKey: "sk-config"},
			tx:        &fakeTransmitter{},
			wantCalls: 0,
			wantOut:   "API key",
		},
		{
			name:      "input ends at question prompt",
			input:     "2\nsk-test\n",
			opts:      MenuOptions{DefaultPrompt: "p"},
			tx:        &fakeTransmitter{},
			wantCalls: 0,
			wantOut:   "Question for the assistant",
		},
		{
			name:       "configured key",
			input:      "2\n\n\n4\n",
			opts:       MenuOptions{APIKey: "sk-config", DefaultPrompt: "p"},
			tx:         &fakeTransmitter{reply: "ok"},
			wantCalls:  1,
			wantKey:    "sk-config",
			wantPrompt: "p",
			wantOut:    "ok",
		},
		{
			name:       "failure reported",
			input:      "2\nsk-test\nq\n4\n",
			tx:         &fakeTransmitter{err: errors.New("endpoint returned 401")},
			wantCalls:  1,
			wantKey:    "sk-test",
			wantPrompt: "q",
			wantOut:    "ERROR communicating with assistant: endpoint returned 401",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runMenu(t, tt.input, menuReport(), tt.tx, tt.opts)
			if tt.tx.calls != tt.wantCalls {
				t.Errorf("transmit calls = %d, want %d", tt.tx.calls, tt.wantCalls)
			}
			if tt.wantCalls > 0 && (tt.tx.apiKey != tt.wantKey || tt.tx.prompt != tt.wantPrompt) {
				t.Errorf("transmit(%q, %q), want (%q, %q)", tt.tx.apiKey, tt.tx.prompt, tt.wantKey, tt.wantPrompt)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output missing %q:\n%s", tt.wantOut, out)
			}
		})
	}
}

func TestMenuSummaryMissingField(t *testing.T) {
	report := menuReport()
	report.Hardware = nil

	out := runMenu(t, "3\n4\n", report, &fakeTransmitter{}, MenuOptions{})
	if !strings.Contains(out, "ERROR showing summary:") {
		t.Errorf("summary error not reported:\n%s", out)
	}
}

func TestWriteDetail(t *testing.T) {
	report := menuReport()
	report.Hardware.DiskUsage = []inventory.DiskUsage{
		{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4", Total: 100 << 30, Used: 95 << 30, Percent: 95},
	}

	var out bytes.Buffer
	WriteDetail(&out, report)
	text := out.String()

	for _, want := range []string{"MOUNTPOINT", "/dev/sda1", "95.0%", "100.0", "init", "3.5", "eth0", "AF_INET"} {
		if !strings.Contains(text, want) {
			t.Errorf("detail output missing %q:\n%s", want, text)
		}
	}
}

func TestStepPrinter(t *testing.T) {
	var out bytes.Buffer
	step := StepPrinter(&out)
	step(inventory.CategorySystem, 0)
	step(inventory.CategoryProcesses, 4)

	want := "OK System information\nOK Running processes (4 skipped)\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}
