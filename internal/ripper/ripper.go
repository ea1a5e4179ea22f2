// Package ripper sequences one disc's pipeline: scan, classify, assign,
// plan, confirm, encode. Entries encode one at a time; a failed entry is
// journaled and skipped without stopping the disc.
package ripper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"platter/internal/assign"
	"platter/internal/classify"
	"platter/internal/disc"
	"platter/internal/encode"
	"platter/internal/journal"
	"platter/internal/logging"
	"platter/internal/plan"
	"platter/internal/services"
)

// Scanner produces title records for the disc in the drive.
type Scanner interface {
	Scan(ctx context.Context, device string) ([]disc.TitleRecord, error)
}

// Encoder produces one output file per planned entry.
type Encoder interface {
	Encode(ctx context.Context, device string, entry plan.Entry, onProgress encode.ProgressFunc) error
}

// Confirmer approves or rejects a plan before any encode starts.
type Confirmer func(entries []plan.Entry, summary plan.Summary) (bool, error)

// ProgressSink builds a per-entry progress callback; nil disables reporting.
type ProgressSink func(entry plan.Entry) encode.ProgressFunc

// LabelReader reads the volume label of the disc in device.
type LabelReader func(ctx context.Context, device string) (string, error)

// Journal records sessions and entry outcomes.
type Journal interface {
	BeginSession(ctx context.Context, show string, season int, discLabel string) (*journal.Session, error)
	FinishSession(ctx context.Context, sessionID string) error
	RecordEntry(ctx context.Context, entry journal.Entry) (int64, error)
}

// Request describes one disc run.
type Request struct {
	Device string
	Policy classify.Policy
	Season *assign.SeasonContext
	// Lookup supplies next-season totals on rollover.
	Lookup assign.SeasonLookup
}

// Result summarizes a completed disc run.
type Result struct {
	Label     string
	Planned   int
	Encoded   int
	Failed    int
	Confirmed bool
}

// Ripper wires the pipeline stages together.
type Ripper struct {
	scanner    Scanner
	classifier *classify.Classifier
	planner    *plan.Planner
	encoder    Encoder
	journal    Journal
	ejector    disc.Ejector
	confirm    Confirmer
	progress   ProgressSink
	labels     LabelReader
	logger     *slog.Logger
}

// Option configures a Ripper.
type Option func(*Ripper)

// WithEjector sets the tray ejector used after each disc.
func WithEjector(ejector disc.Ejector) Option {
	return func(r *Ripper) {
		if ejector != nil {
			r.ejector = ejector
		}
	}
}

// WithConfirmer sets the plan approval hook. Without one, plans are
// accepted unconditionally.
func WithConfirmer(confirm Confirmer) Option {
	return func(r *Ripper) { r.confirm = confirm }
}

// WithProgressSink sets the per-entry progress factory.
func WithProgressSink(sink ProgressSink) Option {
	return func(r *Ripper) { r.progress = sink }
}

// WithLabelReader overrides how the disc label is read.
func WithLabelReader(reader LabelReader) Option {
	return func(r *Ripper) {
		if reader != nil {
			r.labels = reader
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ripper) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Ripper.
func New(scanner Scanner, encoder Encoder, store Journal, opts ...Option) (*Ripper, error) {
	if scanner == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ripper", "new", "scanner required", nil)
	}
	if encoder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ripper", "new", "encoder required", nil)
	}
	if store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ripper", "new", "journal required", nil)
	}
	ripper := &Ripper{
		scanner: scanner,
		planner: plan.NewPlanner(),
		encoder: encoder,
		journal: store,
		labels: func(ctx context.Context, device string) (string, error) {
			return disc.ReadLabel(ctx, device, 30*time.Second)
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(ripper)
	}
	ripper.classifier = classify.NewClassifier(ripper.logger)
	return ripper, nil
}

// AcquireLock takes an exclusive file lock so only one ripper runs per
// machine. Returns a release func.
func AcquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "ripper", "lock", "another instance holds "+path, nil)
	}
	return func() { _ = lock.Unlock() }, nil
}

// Plan runs the pipeline up to the final plan without touching the encoder
// or the journal. Used for dry runs.
func (r *Ripper) Plan(ctx context.Context, req Request) ([]plan.Entry, plan.Summary, error) {
	if req.Season == nil {
		return nil, plan.Summary{}, services.Wrap(services.ErrValidation, "ripper", "plan", "season context required", nil)
	}
	records, err := r.scanner.Scan(ctx, req.Device)
	if err != nil {
		return nil, plan.Summary{}, err
	}
	candidates, err := r.classifier.Classify(records, req.Policy)
	if err != nil {
		return nil, plan.Summary{}, err
	}
	assigner := assign.NewAssigner(req.Lookup, r.logger)
	proposed, err := assigner.Assign(ctx, candidates, req.Season)
	if err != nil {
		return nil, plan.Summary{}, err
	}
	return r.planner.Finalize(proposed)
}

// Run processes the disc currently in the drive. Fatal errors (parse,
// catalog) abort the disc; per-entry encode failures are journaled as
// failed and skipped. The tray is ejected whenever a session was opened,
// except when classification found no candidates, since the caller will
// retry with a loosened policy against the same disc.
func (r *Ripper) Run(ctx context.Context, req Request) (result Result, err error) {
	if req.Season == nil {
		return Result{}, services.Wrap(services.ErrValidation, "ripper", "run", "season context required", nil)
	}

	label, labelErr := r.labels(ctx, req.Device)
	if labelErr != nil {
		r.logger.Warn("disc label unavailable", logging.String(logging.FieldDisc, req.Device), logging.Error(labelErr))
	}
	result.Label = label
	ctx = services.WithDisc(ctx, label)
	logger := logging.WithContext(ctx, r.logger)

	session, err := r.journal.BeginSession(ctx, req.Season.Show, req.Season.SeasonNumber, label)
	if err != nil {
		return result, err
	}
	defer func() {
		if finishErr := r.journal.FinishSession(ctx, session.ID); finishErr != nil {
			logger.Warn("finish session", logging.Error(finishErr))
		}
		if errors.Is(err, services.ErrNoCandidates) {
			return
		}
		r.eject(ctx, req.Device, logger)
	}()

	entries, summary, err := r.Plan(ctx, req)
	if err != nil {
		return result, err
	}
	result.Planned = summary.Entries
	logger.Info("plan ready",
		logging.Int("entries", summary.Entries),
		logging.String("first", summary.FirstEpisode),
		logging.String("last", summary.LastEpisode))

	if r.confirm != nil {
		approved, err := r.confirm(entries, summary)
		if err != nil {
			return result, err
		}
		if !approved {
			logger.Info("plan rejected, skipping disc")
			r.journalAll(ctx, session.ID, entries, journal.OutcomeSkipped, "plan rejected", logger)
			return result, nil
		}
	}
	result.Confirmed = true

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			r.journalEntry(ctx, session.ID, entry, journal.OutcomeSkipped, "run canceled", logger)
			result.Failed++
			continue
		}
		entryCtx := services.WithTitle(ctx, entry.TitleID)
		entryLogger := logging.WithContext(entryCtx, r.logger).With(
			logging.String(logging.FieldEpisodeLabel, entry.Label()),
		)

		var onProgress encode.ProgressFunc
		if r.progress != nil {
			onProgress = r.progress(entry)
		}

		entryLogger.Info("encoding entry", logging.String("output", entry.OutputPath))
		if err := r.encoder.Encode(entryCtx, req.Device, entry, onProgress); err != nil {
			entryLogger.Error("entry failed, continuing with next", logging.Error(err))
			r.journalEntry(ctx, session.ID, entry, journal.OutcomeFailed, err.Error(), logger)
			result.Failed++
			continue
		}
		entryLogger.Info("entry complete")
		r.journalEntry(ctx, session.ID, entry, journal.OutcomeDone, "", logger)
		result.Encoded++
	}
	return result, nil
}

func (r *Ripper) journalEntry(ctx context.Context, sessionID string, entry plan.Entry, outcome, detail string, logger *slog.Logger) {
	record := journal.Entry{
		SessionID:   sessionID,
		TitleID:     entry.TitleID,
		ChapterSpan: fmt.Sprintf("%d-%d", entry.ChapterStart, entry.ChapterEnd),
		Season:      entry.Season,
		Episode:     entry.Episode,
		OutputPath:  entry.OutputPath,
		Outcome:     outcome,
		Detail:      detail,
	}
	if _, err := r.journal.RecordEntry(ctx, record); err != nil {
		logger.Warn("journal entry", logging.Error(err))
	}
}

func (r *Ripper) journalAll(ctx context.Context, sessionID string, entries []plan.Entry, outcome, detail string, logger *slog.Logger) {
	for _, entry := range entries {
		r.journalEntry(ctx, sessionID, entry, outcome, detail, logger)
	}
}

func (r *Ripper) eject(ctx context.Context, device string, logger *slog.Logger) {
	if r.ejector == nil {
		return
	}
	if err := r.ejector.Eject(ctx, device); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("eject", logging.Error(err))
	}
}
