// Package journal persists per-disc run history in SQLite so episode
// numbering survives restarts and operators can audit what each disc
// produced.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"platter/internal/services"
)

// Entry outcomes.
const (
	OutcomeDone    = "done"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Session is one disc's run.
type Session struct {
	ID         string
	Show       string
	Season     int
	DiscLabel  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Entry is one planned episode within a session.
type Entry struct {
	ID          int64
	SessionID   string
	TitleID     int
	ChapterSpan string
	Season      int
	Episode     int
	OutputPath  string
	Outcome     string
	Detail      string
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    show TEXT NOT NULL,
    season INTEGER NOT NULL,
    disc_label TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT
);
CREATE TABLE IF NOT EXISTS entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    title_id INTEGER NOT NULL,
    chapter_span TEXT NOT NULL DEFAULT '',
    season INTEGER NOT NULL,
    episode INTEGER NOT NULL,
    output_path TEXT NOT NULL,
    outcome TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id);
CREATE INDEX IF NOT EXISTS idx_entries_show ON entries(season, episode);
`

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "journal", "open", "journal path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginSession records the start of one disc's run.
func (s *Store) BeginSession(ctx context.Context, show string, season int, discLabel string) (*Session, error) {
	session := &Session{
		ID:        uuid.NewString(),
		Show:      show,
		Season:    season,
		DiscLabel: discLabel,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, show, season, disc_label, started_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID,
		session.Show,
		session.Season,
		session.DiscLabel,
		session.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// FinishSession stamps the session's end time.
func (s *Store) FinishSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// RecordEntry inserts one planned episode with its initial outcome.
func (s *Store) RecordEntry(ctx context.Context, entry Entry) (int64, error) {
	switch entry.Outcome {
	case OutcomeDone, OutcomeFailed, OutcomeSkipped:
	default:
		return 0, services.Wrap(services.ErrValidation, "journal", "record", "unknown outcome "+entry.Outcome, nil)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO entries (
            session_id, title_id, chapter_span, season, episode,
            output_path, outcome, detail, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.TitleID,
		entry.ChapterSpan,
		entry.Season,
		entry.Episode,
		entry.OutputPath,
		entry.Outcome,
		entry.Detail,
		timestamp,
		timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// UpdateOutcome replaces an entry's outcome and detail.
func (s *Store) UpdateOutcome(ctx context.Context, entryID int64, outcome, detail string) error {
	switch outcome {
	case OutcomeDone, OutcomeFailed, OutcomeSkipped:
	default:
		return services.Wrap(services.ErrValidation, "journal", "update", "unknown outcome "+outcome, nil)
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE entries SET outcome = ?, detail = ?, updated_at = ? WHERE id = ?`,
		outcome,
		detail,
		time.Now().UTC().Format(time.RFC3339Nano),
		entryID,
	)
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	return nil
}

// SessionEntries returns a session's entries ordered by insertion.
func (s *Store) SessionEntries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, session_id, title_id, chapter_span, season, episode,
                output_path, outcome, detail
         FROM entries WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.TitleID,
			&entry.ChapterSpan,
			&entry.Season,
			&entry.Episode,
			&entry.OutputPath,
			&entry.Outcome,
			&entry.Detail,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// NextEpisode returns the next episode number to offer for a show's season:
// starting from the earliest recorded episode, the first number with no done
// entry. Failed and skipped entries do not consume their numbers, so a
// mid-disc failure is re-offered even when later episodes succeeded.
// Returns 1 when nothing has been recorded.
func (s *Store) NextEpisode(ctx context.Context, show string, season int) (int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT e.episode, MAX(CASE WHEN e.outcome = ? THEN 1 ELSE 0 END)
         FROM entries e JOIN sessions ses ON e.session_id = ses.id
         WHERE ses.show = ? AND e.season = ?
         GROUP BY e.episode`,
		OutcomeDone,
		show,
		season,
	)
	if err != nil {
		return 0, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	first := 0
	for rows.Next() {
		var episode, isDone int
		if err := rows.Scan(&episode, &isDone); err != nil {
			return 0, fmt.Errorf("scan episode: %w", err)
		}
		if first == 0 || episode < first {
			first = episode
		}
		if isDone == 1 {
			done[episode] = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate episodes: %w", err)
	}
	if first == 0 {
		return 1, nil
	}
	for n := first; ; n++ {
		if !done[n] {
			return n, nil
		}
	}
}
