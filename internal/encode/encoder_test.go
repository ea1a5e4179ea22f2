package encode_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"platter/internal/encode"
	"platter/internal/plan"
	"platter/internal/services"
)

type fakeCall struct {
	binary string
	args   []string
}

type fakeExecutor struct {
	calls []fakeCall
	// behave decides the outcome of each call in order; extra calls reuse
	// the last entry.
	behave []func(call fakeCall, onLine func(string)) error
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	call := fakeCall{binary: binary, args: args}
	f.calls = append(f.calls, call)
	if len(f.behave) == 0 {
		return nil
	}
	idx := len(f.calls) - 1
	if idx >= len(f.behave) {
		idx = len(f.behave) - 1
	}
	return f.behave[idx](call, onLine)
}

func writeOutput(t *testing.T, call fakeCall, content string) {
	t.Helper()
	for i, arg := range call.args {
		if arg == "--output" && i+1 < len(call.args) {
			if err := os.WriteFile(call.args[i+1], []byte(content), 0o644); err != nil {
				t.Fatalf("write output: %v", err)
			}
			return
		}
	}
	t.Fatalf("no --output flag in %v", call.args)
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func testEntry(t *testing.T) plan.Entry {
	t.Helper()
	return plan.Entry{
		TitleID:      3,
		ChapterStart: 1,
		ChapterEnd:   6,
		OutputPath:   filepath.Join(t.TempDir(), "Season_02", "S02E05.mkv"),
		Season:       2,
		Episode:      5,
	}
}

func newEncoder(t *testing.T, exec encode.Executor, preferred string, retries int) *encode.Encoder {
	t.Helper()
	enc, err := encode.New("HandBrakeCLI", "nvidia-smi", preferred, "x264", 20, time.Minute, retries, encode.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return enc
}

func TestEncodeSoftwareArgs(t *testing.T) {
	exec := &fakeExecutor{behave: []func(fakeCall, func(string)) error{
		func(call fakeCall, _ func(string)) error {
			writeOutput(t, call, "video data")
			return nil
		},
	}}
	enc := newEncoder(t, exec, "x264", 0)
	entry := testEntry(t)

	if err := enc.Encode(context.Background(), "/dev/sr0", entry, nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("calls = %d, want 1 (no GPU probe for software encoder)", len(exec.calls))
	}
	call := exec.calls[0]
	if call.binary != "HandBrakeCLI" {
		t.Fatalf("binary = %q", call.binary)
	}
	if got := argValue(call.args, "--title"); got != "3" {
		t.Fatalf("--title = %q", got)
	}
	if got := argValue(call.args, "--chapters"); got != "1-6" {
		t.Fatalf("--chapters = %q", got)
	}
	if got := argValue(call.args, "--encoder"); got != "x264" {
		t.Fatalf("--encoder = %q", got)
	}
}

func TestEncodeHardwareProbeAndFallback(t *testing.T) {
	probeErr := errors.New("no nvidia device")
	exec := &fakeExecutor{behave: []func(fakeCall, func(string)) error{
		func(call fakeCall, _ func(string)) error {
			if call.binary != "nvidia-smi" {
				t.Fatalf("first call binary = %q, want nvidia-smi", call.binary)
			}
			return probeErr
		},
		func(call fakeCall, _ func(string)) error {
			writeOutput(t, call, "video data")
			return nil
		},
	}}
	enc := newEncoder(t, exec, "nvenc_h265_10bit", 0)

	if err := enc.Encode(context.Background(), "/dev/sr0", testEntry(t), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := argValue(exec.calls[1].args, "--encoder"); got != "x264" {
		t.Fatalf("--encoder = %q, want x264 fallback", got)
	}
}

func TestEncodeHardwareFailureFallsBackOnRetry(t *testing.T) {
	exec := &fakeExecutor{behave: []func(fakeCall, func(string)) error{
		func(call fakeCall, _ func(string)) error { return nil }, // GPU probe succeeds
		func(call fakeCall, _ func(string)) error {
			if got := argValue(call.args, "--encoder"); got != "nvenc_h265_10bit" {
				t.Fatalf("first attempt encoder = %q", got)
			}
			return errors.New("nvenc init failed")
		},
		func(call fakeCall, _ func(string)) error {
			if got := argValue(call.args, "--encoder"); got != "x264" {
				t.Fatalf("retry encoder = %q, want x264", got)
			}
			writeOutput(t, call, "video data")
			return nil
		},
	}}
	enc := newEncoder(t, exec, "nvenc_h265_10bit", 1)

	if err := enc.Encode(context.Background(), "/dev/sr0", testEntry(t), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(exec.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(exec.calls))
	}
}

func TestEncodeEmptyOutputIsFailure(t *testing.T) {
	exec := &fakeExecutor{behave: []func(fakeCall, func(string)) error{
		func(call fakeCall, _ func(string)) error {
			writeOutput(t, call, "")
			return nil
		},
	}}
	enc := newEncoder(t, exec, "x264", 0)
	entry := testEntry(t)

	err := enc.Encode(context.Background(), "/dev/sr0", entry, nil)
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("err = %v, want ErrEncode", err)
	}
	if _, statErr := os.Stat(entry.OutputPath); !os.IsNotExist(statErr) {
		t.Fatalf("empty output should be removed, stat err = %v", statErr)
	}
}

func TestEncodeMissingOutputIsFailure(t *testing.T) {
	exec := &fakeExecutor{behave: []func(fakeCall, func(string)) error{
		func(call fakeCall, _ func(string)) error { return nil },
	}}
	enc := newEncoder(t, exec, "x264", 0)

	err := enc.Encode(context.Background(), "/dev/sr0", testEntry(t), nil)
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("err = %v, want ErrEncode", err)
	}
}

func TestEncodeStagesThenMovesIntoLibrary(t *testing.T) {
	staging := t.TempDir()
	exec := &fakeExecutor{behave: []func(fakeCall, func(string)) error{
		func(call fakeCall, _ func(string)) error {
			writeOutput(t, call, "video data")
			return nil
		},
	}}
	enc, err := encode.New("HandBrakeCLI", "nvidia-smi", "x264", "", 20, time.Minute, 0,
		encode.WithExecutor(exec), encode.WithStagingDir(staging))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entry := testEntry(t)

	if err := enc.Encode(context.Background(), "/dev/sr0", entry, nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	wantWork := filepath.Join(staging, "S02E05.mkv")
	if got := argValue(exec.calls[0].args, "--output"); got != wantWork {
		t.Fatalf("--output = %q, want staging path %q", got, wantWork)
	}
	data, err := os.ReadFile(entry.OutputPath)
	if err != nil {
		t.Fatalf("final output missing: %v", err)
	}
	if string(data) != "video data" {
		t.Fatalf("final output content = %q", data)
	}
	if _, err := os.Stat(wantWork); !os.IsNotExist(err) {
		t.Fatalf("staging copy should be gone, stat err = %v", err)
	}
}

func TestEncodeStagingFailureLeavesNoFiles(t *testing.T) {
	staging := t.TempDir()
	exec := &fakeExecutor{behave: []func(fakeCall, func(string)) error{
		func(call fakeCall, _ func(string)) error {
			writeOutput(t, call, "")
			return nil
		},
	}}
	enc, err := encode.New("HandBrakeCLI", "nvidia-smi", "x264", "", 20, time.Minute, 0,
		encode.WithExecutor(exec), encode.WithStagingDir(staging))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entry := testEntry(t)

	encErr := enc.Encode(context.Background(), "/dev/sr0", entry, nil)
	if !errors.Is(encErr, services.ErrEncode) {
		t.Fatalf("err = %v, want ErrEncode", encErr)
	}
	if _, err := os.Stat(filepath.Join(staging, "S02E05.mkv")); !os.IsNotExist(err) {
		t.Fatalf("failed staging file should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(entry.OutputPath); !os.IsNotExist(err) {
		t.Fatalf("library path should be untouched, stat err = %v", err)
	}
}

func TestEncodeProgressCallback(t *testing.T) {
	exec := &fakeExecutor{behave: []func(fakeCall, func(string)) error{
		func(call fakeCall, onLine func(string)) error {
			onLine("Encoding: task 1 of 1, 12.50 % (110.20 fps, avg 108.00 fps, ETA 00h10m05s)")
			onLine("some unrelated log line")
			onLine("Encoding: task 1 of 1, 99.90 %")
			writeOutput(t, call, "video data")
			return nil
		},
	}}
	enc := newEncoder(t, exec, "x264", 0)

	var updates []encode.Progress
	err := enc.Encode(context.Background(), "/dev/sr0", testEntry(t), func(p encode.Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	first := updates[0]
	if first.Percent != 12.5 || first.FPS != 110.2 {
		t.Fatalf("first update = %+v", first)
	}
	if want := 10*time.Minute + 5*time.Second; first.ETA != want {
		t.Fatalf("ETA = %v, want %v", first.ETA, want)
	}
	if updates[1].Percent != 99.9 {
		t.Fatalf("second update = %+v", updates[1])
	}
}

func TestParseProgressRejectsNonProgressLines(t *testing.T) {
	lines := []string{
		"scan: DVD has 9 title(s)",
		"+ duration: 00:42:10",
		"Muxing: this may take awhile...",
	}
	for _, line := range lines {
		if _, ok := encode.ParseProgress(line); ok {
			t.Fatalf("ParseProgress accepted %q", line)
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := encode.New("", "nvidia-smi", "x264", "", 20, time.Minute, 1); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("empty binary err = %v", err)
	}
	if _, err := encode.New("HandBrakeCLI", "nvidia-smi", "x264", "", 99, time.Minute, 1); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("bad quality err = %v", err)
	}
	if !strings.Contains(errString(func() error {
		_, err := encode.New("HandBrakeCLI", "nvidia-smi", "x264", "", 0, time.Minute, 1)
		return err
	}()), "quality") {
		t.Fatalf("quality error should name quality")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
