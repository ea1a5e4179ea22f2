// Package plan assembles the final ordered rip plan: output paths resolved
// against the existing library, one entry per episode or movie.
package plan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one unit of encoding work: a title (or chapter range within a
// title) bound to an output path and an episode identity.
type Entry struct {
	TitleID      int
	ChapterStart int
	ChapterEnd   int
	OutputPath   string
	Season       int
	Episode      int
}

// Label returns the S{NN}E{NN} identifier for the entry.
func (e Entry) Label() string {
	return fmt.Sprintf("S%02dE%02d", e.Season, e.Episode)
}

// OutOfOrderDirName is where colliding outputs are redirected, created as a
// sibling of the season directory.
const OutOfOrderDirName = "Out of Order"

// DuplicateResolver redirects output paths that would overwrite existing
// files.
type DuplicateResolver struct{}

// Resolve returns the proposed path unchanged when nothing exists there.
// When the path is already occupied the same filename is relocated into the
// "Out of Order" directory under the parent of the season directory, which
// is created on demand. A repeat collision for the same episode gets a
// counter suffix inside that directory; existing files are never
// overwritten and filenames are never suffixed inside the season directory.
func (DuplicateResolver) Resolve(proposed string) (string, error) {
	if _, err := os.Stat(proposed); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return proposed, nil
		}
		return "", fmt.Errorf("stat %s: %w", proposed, err)
	}

	seasonDir := filepath.Dir(proposed)
	outOfOrder := filepath.Join(filepath.Dir(seasonDir), OutOfOrderDirName)
	if err := os.MkdirAll(outOfOrder, 0o755); err != nil {
		return "", fmt.Errorf("create out-of-order directory: %w", err)
	}

	base := filepath.Base(proposed)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	target := filepath.Join(outOfOrder, base)
	for i := 2; ; i++ {
		if _, err := os.Stat(target); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return target, nil
			}
			return "", fmt.Errorf("stat %s: %w", target, err)
		}
		target = filepath.Join(outOfOrder, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
}

// Summary describes a plan for operator confirmation.
type Summary struct {
	Entries      int
	FirstEpisode string
	LastEpisode  string
}

// Planner threads duplicate resolution through proposed entries and reports
// the final ordered plan. Pure aggregation; no filesystem writes besides the
// on-demand out-of-order directory.
type Planner struct {
	resolver DuplicateResolver
}

// NewPlanner constructs a Planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Finalize resolves every proposed entry's output path and returns the
// ordered plan with its confirmation summary.
func (p *Planner) Finalize(proposed []Entry) ([]Entry, Summary, error) {
	entries := make([]Entry, 0, len(proposed))
	for _, entry := range proposed {
		resolved, err := p.resolver.Resolve(entry.OutputPath)
		if err != nil {
			return nil, Summary{}, err
		}
		entry.OutputPath = resolved
		entries = append(entries, entry)
	}

	summary := Summary{Entries: len(entries)}
	if len(entries) > 0 {
		summary.FirstEpisode = entries[0].Label()
		summary.LastEpisode = entries[len(entries)-1].Label()
	}
	return entries, summary, nil
}
