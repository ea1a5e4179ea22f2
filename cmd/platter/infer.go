package main

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	seasonDirPattern = regexp.MustCompile(`(?i)^season[ _]?(\d{1,3})$`)
	showDirPattern   = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)$`)
)

// pathHints carries show and season details inferred from an output path
// like ".../The Wire (2002)/Season 02". Any field may be empty when the
// path does not encode it.
type pathHints struct {
	Show      string
	Year      string
	Season    int
	SeasonDir string
}

// inferFromPath extracts show and season hints from a directory path.
// The deepest season-shaped segment wins; the show is taken from its
// parent when that parent looks like "Name (Year)".
func inferFromPath(dir string) pathHints {
	hints := pathHints{}
	clean := filepath.Clean(dir)
	if clean == "." || clean == string(filepath.Separator) {
		return hints
	}

	base := filepath.Base(clean)
	if match := seasonDirPattern.FindStringSubmatch(base); match != nil {
		if season, err := strconv.Atoi(match[1]); err == nil && season > 0 {
			hints.Season = season
			hints.SeasonDir = clean
		}
		clean = filepath.Dir(clean)
		base = filepath.Base(clean)
	}

	if match := showDirPattern.FindStringSubmatch(base); match != nil {
		hints.Show = strings.TrimSpace(match[1])
		hints.Year = match[2]
	} else if base != "." && base != string(filepath.Separator) && hints.Season > 0 {
		// A season dir nested under a plain directory still names the show.
		hints.Show = base
	}
	return hints
}
