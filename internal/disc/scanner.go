package disc

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"platter/internal/logging"
	"platter/internal/services"
)

// Executor abstracts command execution for the scanner.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// commandExecutor executes commands using os/exec. HandBrake writes the scan
// report to stderr, so stdout and stderr are captured together.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Scanner wraps HandBrake scan invocations to gather disc titles.
type Scanner struct {
	binary  string
	timeout time.Duration
	retries uint
	exec    Executor
	logger  *slog.Logger
}

// ScannerOption customizes scanner construction.
type ScannerOption func(*Scanner)

// WithExecutor injects a custom executor, primarily for tests.
func WithExecutor(exec Executor) ScannerOption {
	return func(s *Scanner) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithScanTimeout bounds a single scan attempt.
func WithScanTimeout(timeout time.Duration) ScannerOption {
	return func(s *Scanner) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithScanRetries sets the total number of scan attempts per disc.
func WithScanRetries(retries int) ScannerOption {
	return func(s *Scanner) {
		if retries > 0 {
			s.retries = uint(retries)
		}
	}
}

// WithLogger attaches a logger to the scanner.
func WithLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logging.NewComponentLogger(logger, "scanner")
	}
}

// NewScanner constructs a Scanner for the provided HandBrake binary.
func NewScanner(binary string, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		binary:  strings.TrimSpace(binary),
		timeout: 300 * time.Second,
		retries: 2,
		exec:    commandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs a full-disc title scan and parses the report. Damaged discs that
// fail the first pass are retried without libdvdnav, matching the behaviour
// of HandBrake's own fallback advice.
func (s *Scanner) Scan(ctx context.Context, device string) ([]TitleRecord, error) {
	if s.binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "scan", "", "handbrake binary not configured", nil)
	}
	device = strings.TrimSpace(device)
	if device == "" {
		return nil, services.Wrap(services.ErrConfiguration, "scan", "", "no device specified", nil)
	}

	var attempt atomic.Uint32
	var records []TitleRecord
	err := retry.Do(
		func() error {
			n := attempt.Add(1)
			args := []string{"--scan", "--title", "0", "--input", device}
			if n > 1 {
				args = append(args, "--no-dvdnav")
			}

			attemptCtx := ctx
			var cancel context.CancelFunc
			if s.timeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}

			s.logger.Debug("scanning disc",
				logging.String("device", device),
				logging.Int("attempt", int(n)),
			)
			output, runErr := s.exec.Run(attemptCtx, s.binary, args)
			if runErr != nil && len(output) == 0 {
				return services.Wrap(services.ErrExternalTool, "scan", "handbrake", "scan invocation failed", runErr)
			}

			parsed, parseErr := ParseScan(output)
			if parseErr != nil {
				if runErr != nil {
					return services.Wrap(services.ErrExternalTool, "scan", "handbrake", "scan failed", runErr)
				}
				return parseErr
			}
			records = parsed
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.retries),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("disc scan failed, retrying without dvdnav",
				logging.Int("attempt", int(n)+1),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, services.Wrap(services.ErrParse, "scan", "parse", "scan reported no usable titles", nil)
	}

	s.logger.Info("disc scan complete",
		logging.String("device", device),
		logging.Int("titles", len(records)),
	)
	return records, nil
}
