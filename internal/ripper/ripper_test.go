package ripper_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platter/internal/assign"
	"platter/internal/classify"
	"platter/internal/disc"
	"platter/internal/encode"
	"platter/internal/journal"
	"platter/internal/plan"
	"platter/internal/ripper"
	"platter/internal/services"
)

type fakeScanner struct {
	records []disc.TitleRecord
	err     error
}

func (f *fakeScanner) Scan(ctx context.Context, device string) ([]disc.TitleRecord, error) {
	return f.records, f.err
}

type fakeEncoder struct {
	encoded []plan.Entry
	failOn  map[string]error
}

func (f *fakeEncoder) Encode(ctx context.Context, device string, entry plan.Entry, onProgress encode.ProgressFunc) error {
	if err, ok := f.failOn[entry.Label()]; ok {
		return err
	}
	f.encoded = append(f.encoded, entry)
	if onProgress != nil {
		onProgress(encode.Progress{Percent: 100})
	}
	return nil
}

type fakeJournal struct {
	sessions []string
	finished []string
	entries  []journal.Entry
}

func (f *fakeJournal) BeginSession(ctx context.Context, show string, season int, discLabel string) (*journal.Session, error) {
	id := "session-1"
	f.sessions = append(f.sessions, id)
	return &journal.Session{ID: id, Show: show, Season: season, DiscLabel: discLabel}, nil
}

func (f *fakeJournal) FinishSession(ctx context.Context, sessionID string) error {
	f.finished = append(f.finished, sessionID)
	return nil
}

func (f *fakeJournal) RecordEntry(ctx context.Context, entry journal.Entry) (int64, error) {
	f.entries = append(f.entries, entry)
	return int64(len(f.entries)), nil
}

type fakeEjector struct {
	ejected []string
}

func (f *fakeEjector) Eject(ctx context.Context, device string) error {
	f.ejected = append(f.ejected, device)
	return nil
}

type fixedLookup int

func (f fixedLookup) SeasonTotal(ctx context.Context, season int) (int, error) {
	return int(f), nil
}

func episodeRecords(durations ...int) []disc.TitleRecord {
	records := make([]disc.TitleRecord, 0, len(durations))
	for i, duration := range durations {
		records = append(records, disc.TitleRecord{
			ID:              i + 1,
			DurationSeconds: duration,
			ChapterCount:    6,
		})
	}
	return records
}

func testRequest(t *testing.T) ripper.Request {
	t.Helper()
	seasonDir := filepath.Join(t.TempDir(), "The Wire (2002)", "Season_02")
	if err := os.MkdirAll(seasonDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return ripper.Request{
		Device: "/dev/sr0",
		Policy: classify.Policy{
			Mode:       classify.ModeEpisodeRange,
			EpisodeMin: 1200,
			EpisodeMax: 3600,
		},
		Season: &assign.SeasonContext{
			Show:          "The Wire",
			SeasonNumber:  2,
			TotalEpisodes: 12,
			NextEpisode:   5,
			Dir:           seasonDir,
		},
		Lookup: fixedLookup(12),
	}
}

func newRipper(t *testing.T, scanner *fakeScanner, encoder *fakeEncoder, store *fakeJournal, opts ...ripper.Option) *ripper.Ripper {
	t.Helper()
	opts = append(opts, ripper.WithLabelReader(func(ctx context.Context, device string) (string, error) {
		return "WIRE_S2_D2", nil
	}))
	r, err := ripper.New(scanner, encoder, store, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRunEncodesAllEntries(t *testing.T) {
	scanner := &fakeScanner{records: episodeRecords(2530, 2531, 2529)}
	encoder := &fakeEncoder{}
	store := &fakeJournal{}
	ejector := &fakeEjector{}
	r := newRipper(t, scanner, encoder, store, ripper.WithEjector(ejector))

	result, err := r.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Planned != 3 || result.Encoded != 3 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.Label != "WIRE_S2_D2" {
		t.Fatalf("label = %q", result.Label)
	}
	if len(encoder.encoded) != 3 {
		t.Fatalf("encoded = %d", len(encoder.encoded))
	}
	if got := encoder.encoded[0].Label(); got != "S02E05" {
		t.Fatalf("first label = %q", got)
	}
	if len(store.entries) != 3 {
		t.Fatalf("journal entries = %d", len(store.entries))
	}
	for _, entry := range store.entries {
		if entry.Outcome != journal.OutcomeDone {
			t.Fatalf("outcome = %q", entry.Outcome)
		}
	}
	if len(store.finished) != 1 {
		t.Fatalf("finished sessions = %d", len(store.finished))
	}
	if len(ejector.ejected) != 1 {
		t.Fatalf("ejects = %d", len(ejector.ejected))
	}
}

func TestRunFailedEntrySkippedAndJournaled(t *testing.T) {
	scanner := &fakeScanner{records: episodeRecords(2530, 2531, 2529)}
	encoder := &fakeEncoder{failOn: map[string]error{
		"S02E06": services.Wrap(services.ErrEncode, "encode", "S02E06", "empty output", nil),
	}}
	store := &fakeJournal{}
	r := newRipper(t, scanner, encoder, store)

	result, err := r.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Encoded != 2 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	// The failure must not renumber later entries.
	if got := encoder.encoded[1].Label(); got != "S02E07" {
		t.Fatalf("entry after failure = %q, want S02E07", got)
	}
	var failed *journal.Entry
	for i := range store.entries {
		if store.entries[i].Outcome == journal.OutcomeFailed {
			failed = &store.entries[i]
		}
	}
	if failed == nil {
		t.Fatal("no failed journal entry recorded")
	}
	if failed.Episode != 6 {
		t.Fatalf("failed episode = %d, want 6", failed.Episode)
	}
	if failed.Detail == "" {
		t.Fatal("failed entry should record the reason")
	}
}

func TestRunRejectedPlanSkipsEncoding(t *testing.T) {
	scanner := &fakeScanner{records: episodeRecords(2530)}
	encoder := &fakeEncoder{}
	store := &fakeJournal{}
	r := newRipper(t, scanner, encoder, store,
		ripper.WithConfirmer(func(entries []plan.Entry, summary plan.Summary) (bool, error) {
			if summary.Entries != 1 || summary.FirstEpisode != "S02E05" {
				t.Fatalf("summary = %+v", summary)
			}
			return false, nil
		}))

	result, err := r.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Confirmed {
		t.Fatal("rejected plan should not be confirmed")
	}
	if len(encoder.encoded) != 0 {
		t.Fatalf("encoded = %d, want 0", len(encoder.encoded))
	}
	if len(store.entries) != 1 || store.entries[0].Outcome != journal.OutcomeSkipped {
		t.Fatalf("journal entries = %+v", store.entries)
	}
}

func TestRunScanFailureAbortsDisc(t *testing.T) {
	scanErr := services.Wrap(services.ErrParse, "scan", "parse", "no confirmation line", nil)
	scanner := &fakeScanner{err: scanErr}
	encoder := &fakeEncoder{}
	store := &fakeJournal{}
	ejector := &fakeEjector{}
	r := newRipper(t, scanner, encoder, store, ripper.WithEjector(ejector))

	_, err := r.Run(context.Background(), testRequest(t))
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	if !services.FatalForDisc(err) {
		t.Fatalf("scan failure should be fatal for the disc")
	}
	if len(ejector.ejected) != 1 {
		t.Fatal("tray should eject even on failure")
	}
}

func TestRunNoCandidatesIsRecoverable(t *testing.T) {
	// A single long title outside the episode range: nothing classifies.
	scanner := &fakeScanner{records: episodeRecords(7800)}
	ejector := &fakeEjector{}
	r := newRipper(t, scanner, &fakeEncoder{}, &fakeJournal{}, ripper.WithEjector(ejector))

	_, err := r.Run(context.Background(), testRequest(t))
	if !errors.Is(err, services.ErrNoCandidates) {
		t.Fatalf("err = %v, want ErrNoCandidates", err)
	}
	if services.FatalForDisc(err) {
		t.Fatal("no-candidates should be recoverable for re-prompting")
	}
	// The caller retries against the same disc, so the tray stays closed.
	if len(ejector.ejected) != 0 {
		t.Fatalf("ejects = %d, want 0 so a retry can rescan the disc", len(ejector.ejected))
	}
}

func TestRunLogsCarryDiscAndTitleFields(t *testing.T) {
	scanner := &fakeScanner{records: episodeRecords(2530)}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := newRipper(t, scanner, &fakeEncoder{}, &fakeJournal{}, ripper.WithLogger(logger))

	if _, err := r.Run(context.Background(), testRequest(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	logs := buf.String()
	if !strings.Contains(logs, "disc=WIRE_S2_D2") {
		t.Fatalf("logs missing disc field:\n%s", logs)
	}
	if !strings.Contains(logs, "title=1") {
		t.Fatalf("logs missing title field:\n%s", logs)
	}
}

func TestPlanDryRunTouchesNoJournal(t *testing.T) {
	scanner := &fakeScanner{records: episodeRecords(2530, 2531)}
	store := &fakeJournal{}
	r := newRipper(t, scanner, &fakeEncoder{}, store)

	entries, summary, err := r.Plan(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(entries) != 2 || summary.FirstEpisode != "S02E05" || summary.LastEpisode != "S02E06" {
		t.Fatalf("entries = %d, summary = %+v", len(entries), summary)
	}
	if len(store.sessions) != 0 || len(store.entries) != 0 {
		t.Fatal("dry run must not write to the journal")
	}
}

func TestAcquireLockBlocksSecondInstance(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "platter.lock")
	release, err := ripper.AcquireLock(lockPath)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer release()

	if _, err := ripper.AcquireLock(lockPath); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("second acquire err = %v, want ErrConfiguration", err)
	}

	release()
	release2, err := ripper.AcquireLock(lockPath)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release2()
}
