package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse marks scan output that could not be turned into title records.
	// Fatal for the current disc; nothing downstream can run without titles.
	ErrParse = errors.New("scan parse error")
	// ErrNoCandidates marks a classification pass that matched nothing under
	// the active duration policy. Recoverable; callers may widen the range.
	ErrNoCandidates = errors.New("no candidate titles")
	// ErrCatalog marks a failed catalog lookup. Fatal for the current disc
	// since numbering cannot proceed without season metadata.
	ErrCatalog = errors.New("catalog error")
	// ErrNotFound marks a catalog search with no usable match.
	ErrNotFound = errors.New("not found")
	// ErrNoEpisodes marks a season the catalog has no episodes for.
	ErrNoEpisodes = errors.New("no episodes for season")
	// ErrEncode marks an encode invocation that produced no usable output.
	// Recovered per entry; the episode number is not consumed.
	ErrEncode = errors.New("encode failure")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FatalForDisc reports whether an error should abort the current disc's run
// rather than be recovered in place.
func FatalForDisc(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrParse), errors.Is(err, ErrCatalog),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrNoEpisodes),
		errors.Is(err, ErrConfiguration):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
