// Package encode drives HandBrakeCLI to produce one video file per planned
// episode, with hardware-encoder detection and a software fallback.
package encode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"platter/internal/logging"
	"platter/internal/plan"
	"platter/internal/services"
)

// Progress is one parsed progress report from the encoder tool.
type Progress struct {
	Percent float64
	FPS     float64
	ETA     time.Duration
}

// ProgressFunc receives progress updates while an entry encodes.
type ProgressFunc func(Progress)

// Executor runs the encoder binary and feeds each output line to onLine.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	return cmd.Wait()
}

// scanCRLines splits on both newlines and carriage returns; HandBrake
// rewrites its progress line in place with bare \r.
func scanCRLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Encoding: task 1 of 1, 43.52 % (112.33 fps, avg 105.91 fps, ETA 00h12m34s)
var progressPattern = regexp.MustCompile(`Encoding:.*?(\d+(?:\.\d+)?)\s*%(?:.*?(\d+(?:\.\d+)?)\s*fps)?(?:.*?ETA\s+(\d+)h(\d+)m(\d+)s)?`)

// ParseProgress extracts a progress report from one encoder output line.
func ParseProgress(line string) (Progress, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return Progress{}, false
	}
	progress := Progress{}
	progress.Percent, _ = strconv.ParseFloat(match[1], 64)
	if match[2] != "" {
		progress.FPS, _ = strconv.ParseFloat(match[2], 64)
	}
	if match[3] != "" {
		hours, _ := strconv.Atoi(match[3])
		minutes, _ := strconv.Atoi(match[4])
		seconds, _ := strconv.Atoi(match[5])
		progress.ETA = time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	}
	return progress, true
}

// Encoder shells out to HandBrakeCLI for each planned entry.
type Encoder struct {
	binary     string
	nvidiaSMI  string
	encoder    string
	fallback   string
	quality    int
	timeout    time.Duration
	retries    uint
	stagingDir string
	exec       Executor
	logger     *slog.Logger
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithExecutor overrides the default command executor.
func WithExecutor(executor Executor) Option {
	return func(e *Encoder) {
		if executor != nil {
			e.exec = executor
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStagingDir makes entries encode into dir and move to their final path
// only after verification, so the library never holds partial files.
func WithStagingDir(dir string) Option {
	return func(e *Encoder) {
		e.stagingDir = strings.TrimSpace(dir)
	}
}

// New creates an Encoder. encoder is preferred; fallback is used when the
// preferred encoder is hardware-backed and no GPU is available, or when a
// hardware encode fails outright.
func New(binary, nvidiaSMI, encoder, fallback string, quality int, timeout time.Duration, retries int, opts ...Option) (*Encoder, error) {
	if strings.TrimSpace(binary) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "encode", "new", "encoder binary required", nil)
	}
	if quality < 1 || quality > 51 {
		return nil, services.Wrap(services.ErrConfiguration, "encode", "new", "quality must be within 1-51", nil)
	}
	if retries < 0 {
		retries = 0
	}
	enc := &Encoder{
		binary:    binary,
		nvidiaSMI: nvidiaSMI,
		encoder:   encoder,
		fallback:  fallback,
		quality:   quality,
		timeout:   timeout,
		retries:   uint(retries),
		exec:      commandExecutor{},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(enc)
	}
	return enc, nil
}

func isHardwareEncoder(name string) bool {
	return strings.Contains(strings.ToLower(name), "nvenc")
}

// SelectEncoder probes for GPU support and returns the encoder to use.
// Software encoders pass through untouched.
func (e *Encoder) SelectEncoder(ctx context.Context) string {
	if !isHardwareEncoder(e.encoder) {
		return e.encoder
	}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.exec.Run(probeCtx, e.nvidiaSMI, nil, nil); err != nil {
		e.logger.Info("hardware encoder unavailable, using fallback",
			logging.String("encoder", e.encoder),
			logging.String("fallback", e.fallback),
			logging.Error(err))
		return e.fallback
	}
	return e.encoder
}

func (e *Encoder) args(device string, entry plan.Entry, encoder string) []string {
	return []string{
		"--input", device,
		"--title", strconv.Itoa(entry.TitleID),
		"--chapters", fmt.Sprintf("%d-%d", entry.ChapterStart, entry.ChapterEnd),
		"--output", entry.OutputPath,
		"--encoder", encoder,
		"--quality", strconv.Itoa(e.quality),
	}
}

// Encode produces the entry's output file from the disc in device. The
// output is verified to exist and be non-empty; a clean tool exit with a
// missing or zero-byte file is still a failure.
func (e *Encoder) Encode(ctx context.Context, device string, entry plan.Entry, onProgress ProgressFunc) error {
	encoder := e.SelectEncoder(ctx)

	err := retry.Do(
		func() error {
			attemptErr := e.encodeOnce(ctx, device, entry, encoder, onProgress)
			if attemptErr != nil && isHardwareEncoder(encoder) && e.fallback != "" {
				e.logger.Warn("hardware encode failed, retrying with fallback",
					logging.String("encoder", encoder),
					logging.String("fallback", e.fallback),
					logging.Error(attemptErr))
				encoder = e.fallback
			}
			return attemptErr
		},
		retry.Context(ctx),
		retry.Attempts(e.retries+1),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			e.logger.Warn("encode attempt failed",
				logging.String("output", entry.OutputPath),
				logging.Int("attempt", int(attempt)+1),
				logging.Error(err))
		}),
	)
	if err != nil {
		return services.Wrap(services.ErrEncode, "encode", entry.Label(), "encode "+filepath.Base(entry.OutputPath), err)
	}
	return nil
}

func (e *Encoder) encodeOnce(ctx context.Context, device string, entry plan.Entry, encoder string, onProgress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(entry.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	workPath := entry.OutputPath
	if e.stagingDir != "" {
		if err := os.MkdirAll(e.stagingDir, 0o755); err != nil {
			return fmt.Errorf("create staging directory: %w", err)
		}
		workPath = filepath.Join(e.stagingDir, filepath.Base(entry.OutputPath))
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	onLine := func(line string) {
		if onProgress == nil {
			return
		}
		if progress, ok := ParseProgress(line); ok {
			onProgress(progress)
		}
	}
	work := entry
	work.OutputPath = workPath
	if err := e.exec.Run(runCtx, e.binary, e.args(device, work, encoder), onLine); err != nil {
		os.Remove(workPath)
		return fmt.Errorf("run %s: %w", e.binary, err)
	}

	info, err := os.Stat(workPath)
	if err != nil {
		return fmt.Errorf("missing output %s: %w", workPath, err)
	}
	if info.Size() == 0 {
		os.Remove(workPath)
		return fmt.Errorf("empty output %s", workPath)
	}

	if workPath != entry.OutputPath {
		if err := moveFile(workPath, entry.OutputPath); err != nil {
			os.Remove(workPath)
			return fmt.Errorf("move output into library: %w", err)
		}
	}
	return nil
}

// moveFile renames src to dst, copying when the two sit on different
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
