// Package classify selects rippable candidates from scanned disc titles
// using duration-based policies.
package classify

import (
	"log/slog"

	"platter/internal/disc"
	"platter/internal/logging"
	"platter/internal/services"
)

// Candidate is a rippable span: either a whole title or a chapter range
// within a compilation title. Chapters are 1-based and inclusive.
type Candidate struct {
	TitleID         int
	ChapterStart    int
	ChapterEnd      int
	DurationSeconds int
}

// Mode names a classification strategy.
type Mode int

const (
	// ModeEpisodeRange keeps whole titles whose duration falls inside the
	// configured window.
	ModeEpisodeRange Mode = iota
	// ModeCompilation splits long titles into per-chapter candidates where
	// the chapter duration fits the episode window.
	ModeCompilation
	// ModeMostChapters keeps the single title with the most chapters,
	// spanning all of them.
	ModeMostChapters
)

func (m Mode) String() string {
	switch m {
	case ModeEpisodeRange:
		return "episode-range"
	case ModeCompilation:
		return "compilation"
	case ModeMostChapters:
		return "most-chapters"
	default:
		return "unknown"
	}
}

// Policy carries the thresholds for one classification pass. EpisodeMin and
// EpisodeMax bound a single episode in seconds, boundaries inclusive.
// CompilationMin is the minimum title duration for a title to be treated as
// a chapter compilation.
type Policy struct {
	Mode           Mode
	EpisodeMin     int
	EpisodeMax     int
	CompilationMin int
}

// Classifier applies a Policy to scanned titles.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier builds a classifier. A nil logger is replaced with a no-op.
func NewClassifier(logger *slog.Logger) *Classifier {
	return &Classifier{logger: logging.NewComponentLogger(logger, "classifier")}
}

// Classify returns candidates in disc order, chapters ascending within a
// title. It returns services.ErrNoCandidates when nothing matches the
// policy; the caller may re-prompt with different thresholds.
func (c *Classifier) Classify(titles []disc.TitleRecord, policy Policy) ([]Candidate, error) {
	var candidates []Candidate
	switch policy.Mode {
	case ModeEpisodeRange:
		candidates = c.episodeRange(titles, policy)
	case ModeCompilation:
		candidates = c.compilation(titles, policy)
	case ModeMostChapters:
		candidates = c.mostChapters(titles)
	default:
		return nil, services.Wrap(services.ErrValidation, "classify", "", "unknown classification mode", nil)
	}

	if len(candidates) == 0 {
		return nil, services.Wrap(services.ErrNoCandidates, "classify", policy.Mode.String(), "no titles matched the duration policy", nil)
	}
	return candidates, nil
}

func (c *Classifier) episodeRange(titles []disc.TitleRecord, policy Policy) []Candidate {
	candidates := make([]Candidate, 0, len(titles))
	for _, title := range titles {
		if title.DurationSeconds < policy.EpisodeMin || title.DurationSeconds > policy.EpisodeMax {
			c.logger.Debug("title outside episode range",
				logging.Int("title", title.ID),
				logging.Int("duration", title.DurationSeconds),
			)
			continue
		}
		candidates = append(candidates, Candidate{
			TitleID:         title.ID,
			ChapterStart:    1,
			ChapterEnd:      title.ChapterCount,
			DurationSeconds: title.DurationSeconds,
		})
	}
	return candidates
}

// compilation checks every chapter of every qualifying title independently.
// Chapters outside the episode window are skipped; over-length chapters are
// never subdivided.
func (c *Classifier) compilation(titles []disc.TitleRecord, policy Policy) []Candidate {
	var candidates []Candidate
	for _, title := range titles {
		if title.DurationSeconds < policy.CompilationMin {
			c.logger.Debug("title below compilation threshold",
				logging.Int("title", title.ID),
				logging.Int("duration", title.DurationSeconds),
			)
			continue
		}
		for chapter := 1; chapter <= title.ChapterCount; chapter++ {
			seconds := title.ChapterSeconds(chapter)
			if seconds < policy.EpisodeMin || seconds > policy.EpisodeMax {
				c.logger.Debug("chapter outside episode range",
					logging.Int("title", title.ID),
					logging.Int("chapter", chapter),
					logging.Int("duration", seconds),
				)
				continue
			}
			candidates = append(candidates, Candidate{
				TitleID:         title.ID,
				ChapterStart:    chapter,
				ChapterEnd:      chapter,
				DurationSeconds: seconds,
			})
		}
	}
	return candidates
}

func (c *Classifier) mostChapters(titles []disc.TitleRecord) []Candidate {
	best := -1
	for i, title := range titles {
		if best < 0 || title.ChapterCount > titles[best].ChapterCount {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	title := titles[best]
	return []Candidate{{
		TitleID:         title.ID,
		ChapterStart:    1,
		ChapterEnd:      title.ChapterCount,
		DurationSeconds: title.DurationSeconds,
	}}
}
