// Package assign numbers classified candidates into sequential episodes,
// rolling into the next season exactly when the disc's supply exceeds the
// catalog's declared episode count.
package assign

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"platter/internal/classify"
	"platter/internal/logging"
	"platter/internal/plan"
	"platter/internal/services"
)

// SeasonLookup supplies the total episode count for a season of the show
// being assigned. Implemented by the TV catalog client.
type SeasonLookup interface {
	SeasonTotal(ctx context.Context, season int) (int, error)
}

// SeasonContext tracks numbering state across one assignment pass. It is
// owned exclusively by the Assigner; only increment and rollover mutate it.
type SeasonContext struct {
	Show          string
	SeasonNumber  int
	TotalEpisodes int
	NextEpisode   int
	// Dir is the current season's output directory.
	Dir string
}

// Assigner walks candidates in disc order and emits proposed plan entries.
type Assigner struct {
	lookup SeasonLookup
	logger *slog.Logger
}

// NewAssigner builds an Assigner backed by the given season lookup.
func NewAssigner(lookup SeasonLookup, logger *slog.Logger) *Assigner {
	return &Assigner{
		lookup: lookup,
		logger: logging.NewComponentLogger(logger, "assigner"),
	}
}

// Assign consumes candidates strictly in the order the scan emitted them,
// chapters ascending, and assigns gap-free, strictly increasing episode
// numbers. Rollover happens exactly when the next episode number exceeds
// the season's declared total, never before: the next season's total is
// re-fetched from the catalog, the season number advances, the counter
// resets to 1, and the new season directory is materialized as a sibling
// of the current one.
func (a *Assigner) Assign(ctx context.Context, candidates []classify.Candidate, season *SeasonContext) ([]plan.Entry, error) {
	if season == nil {
		return nil, services.Wrap(services.ErrValidation, "assign", "", "season context is required", nil)
	}

	entries := make([]plan.Entry, 0, len(candidates))
	for _, candidate := range candidates {
		if season.NextEpisode > season.TotalEpisodes {
			if err := a.rollover(ctx, season); err != nil {
				return nil, err
			}
		}

		entry := plan.Entry{
			TitleID:      candidate.TitleID,
			ChapterStart: candidate.ChapterStart,
			ChapterEnd:   candidate.ChapterEnd,
			Season:       season.SeasonNumber,
			Episode:      season.NextEpisode,
		}
		entry.OutputPath = filepath.Join(season.Dir, entry.Label()+".mkv")
		entries = append(entries, entry)

		a.logger.Debug("episode assigned",
			logging.Int("title", candidate.TitleID),
			logging.Int("chapter_start", candidate.ChapterStart),
			logging.Int("chapter_end", candidate.ChapterEnd),
			logging.String(logging.FieldEpisodeLabel, entry.Label()),
		)
		season.NextEpisode++
	}
	return entries, nil
}

func (a *Assigner) rollover(ctx context.Context, season *SeasonContext) error {
	if a.lookup == nil {
		return services.Wrap(services.ErrCatalog, "assign", "rollover", "no season lookup configured", nil)
	}

	next := season.SeasonNumber + 1
	total, err := a.lookup.SeasonTotal(ctx, next)
	if err != nil {
		return err
	}

	dir := filepath.Join(filepath.Dir(season.Dir), fmt.Sprintf("Season_%02d", next))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create season directory %s: %w", dir, err)
	}

	a.logger.Info("rolled over to next season",
		logging.Int(logging.FieldSeason, next),
		logging.Int("total_episodes", total),
		logging.String("dir", dir),
	)

	season.SeasonNumber = next
	season.TotalEpisodes = total
	season.NextEpisode = 1
	season.Dir = dir
	return nil
}
