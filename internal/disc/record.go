package disc

// TitleRecord describes one playable title from a disc scan.
type TitleRecord struct {
	ID              int   `json:"id"`
	DurationSeconds int   `json:"duration_seconds"`
	ChapterCount    int   `json:"chapter_count"`
	// ChapterDurations holds per-chapter seconds when the scan reports
	// them; empty when the dialect only counts chapters.
	ChapterDurations []int `json:"chapter_durations,omitempty"`
}

// ChapterSeconds returns the duration of the 1-based chapter. When the scan
// did not report per-chapter timing the title duration is divided evenly
// across its chapters.
func (t TitleRecord) ChapterSeconds(chapter int) int {
	if chapter < 1 || chapter > t.ChapterCount {
		return 0
	}
	if len(t.ChapterDurations) >= chapter {
		return t.ChapterDurations[chapter-1]
	}
	if t.ChapterCount == 0 {
		return 0
	}
	return t.DurationSeconds / t.ChapterCount
}
