package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"platter/internal/assign"
	"platter/internal/catalog/tvdb"
	"platter/internal/classify"
	"platter/internal/config"
	"platter/internal/journal"
	"platter/internal/ripper"
)

// tvSession holds everything a TV disc run needs; it persists across discs
// so episode numbering continues from one disc to the next.
type tvSession struct {
	request ripper.Request
	series  tvdb.Series
	info    tvdb.SeasonInfo
}

// buildTVSession prompts for show, season, and policy details, resolves the
// series against the catalog, and prepares the season context. Defaults come
// from the output path, the journal, and the catalog's runtime range.
func buildTVSession(ctx context.Context, cfg *config.Config, p *prompter, store *journal.Store) (*tvSession, error) {
	outputDir, err := p.String("Output directory", cfg.Paths.OutputDir)
	if err != nil {
		return nil, err
	}
	hints := inferFromPath(outputDir)

	showQuery, err := p.String("Show name", hints.Show)
	if err != nil {
		return nil, err
	}

	client, err := tvdb.New(cfg.TVDB.APIKey, cfg.TVDB.PIN, cfg.TVDB.BaseURL)
	if err != nil {
		return nil, err
	}
	series, err := client.SearchSeries(ctx, showQuery)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(p.out, "Matched %q", series.Name)
	if series.Year != "" {
		fmt.Fprintf(p.out, " (%s)", series.Year)
	}
	fmt.Fprintln(p.out)

	seasonDefault := hints.Season
	if seasonDefault == 0 {
		seasonDefault = 1
	}
	season, err := p.Int("Season", seasonDefault)
	if err != nil {
		return nil, err
	}

	info, err := client.SeasonEpisodes(ctx, series.ID, season)
	if err != nil {
		return nil, err
	}

	startDefault := 1
	if next, nextErr := store.NextEpisode(ctx, series.Name, season); nextErr == nil && next > 0 {
		startDefault = next
	}
	start, err := p.Int("Start at episode", startDefault)
	if err != nil {
		return nil, err
	}
	if start < 1 {
		start = 1
	}

	policy, err := promptPolicy(p, cfg, info)
	if err != nil {
		return nil, err
	}

	seasonDir := seasonDirFor(outputDir, hints, series, season)
	if err := os.MkdirAll(seasonDir, 0o755); err != nil {
		return nil, fmt.Errorf("create season directory: %w", err)
	}

	return &tvSession{
		request: ripper.Request{
			Device: cfg.Drive.Device,
			Policy: policy,
			Season: &assign.SeasonContext{
				Show:          series.Name,
				SeasonNumber:  season,
				TotalEpisodes: info.TotalEpisodes,
				NextEpisode:   start,
				Dir:           seasonDir,
			},
			Lookup: client.Seasons(series.ID),
		},
		series: series,
		info:   info,
	}, nil
}

// promptPolicy asks for the rip mode and duration thresholds. Threshold
// defaults come from the catalog's runtime range when it has one, otherwise
// from the config.
func promptPolicy(p *prompter, cfg *config.Config, info tvdb.SeasonInfo) (classify.Policy, error) {
	mode, err := p.Choice("Rip mode", []string{"episodes", "compilation", "chapters"}, "episodes")
	if err != nil {
		return classify.Policy{}, err
	}

	minDefault := cfg.Episodes.MinSeconds
	maxDefault := cfg.Episodes.MaxSeconds
	if info.MinRuntime > 0 && info.MaxRuntime > 0 {
		minDefault = info.MinRuntime * 60
		maxDefault = info.MaxRuntime * 60
	}

	policy := classify.Policy{CompilationMin: cfg.Episodes.CompilationMinSeconds}
	switch mode {
	case "episodes":
		policy.Mode = classify.ModeEpisodeRange
	case "compilation":
		policy.Mode = classify.ModeCompilation
	case "chapters":
		policy.Mode = classify.ModeMostChapters
		return policy, nil
	}

	policy.EpisodeMin, err = p.Int("Minimum episode seconds", minDefault)
	if err != nil {
		return classify.Policy{}, err
	}
	policy.EpisodeMax, err = p.Int("Maximum episode seconds", maxDefault)
	if err != nil {
		return classify.Policy{}, err
	}
	return policy, nil
}

// seasonDirFor resolves the season output directory from what the operator
// pointed at: a season directory, a show directory, or the library root.
func seasonDirFor(outputDir string, hints pathHints, series tvdb.Series, season int) string {
	seasonName := fmt.Sprintf("Season_%02d", season)
	if hints.SeasonDir != "" {
		if season == hints.Season {
			return hints.SeasonDir
		}
		return filepath.Join(filepath.Dir(hints.SeasonDir), seasonName)
	}
	if hints.Show != "" {
		return filepath.Join(outputDir, seasonName)
	}
	showDir := series.Name
	if series.Year != "" {
		showDir = fmt.Sprintf("%s (%s)", series.Name, series.Year)
	}
	return filepath.Join(outputDir, showDir, seasonName)
}
