package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"platter/internal/catalog/tmdb"
	"platter/internal/classify"
	"platter/internal/config"
	"platter/internal/disc"
	"platter/internal/encode"
	"platter/internal/journal"
	"platter/internal/logging"
	"platter/internal/plan"
)

// runMovie handles a single movie disc: the longest multi-chapter title is
// encoded once under the catalog's canonical "Title (Year)" name.
func runMovie(ctx context.Context, cfg *config.Config, logger *slog.Logger, p *prompter, store *journal.Store) error {
	outputDir, err := p.String("Output directory", cfg.Paths.OutputDir)
	if err != nil {
		return err
	}

	label, labelErr := disc.ReadLabel(ctx, cfg.Drive.Device, 30*time.Second)
	if labelErr != nil {
		logger.Warn("disc label unavailable", logging.Error(labelErr))
	}
	query, err := p.String("Movie search", humanizeLabel(label))
	if err != nil {
		return err
	}

	client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
	if err != nil {
		return err
	}
	name, err := client.MovieName(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Matched %q\n", name)

	scanner := disc.NewScanner(cfg.HandBrakeBinary(),
		disc.WithScanTimeout(time.Duration(cfg.Drive.ScanTimeout)*time.Second),
		disc.WithScanRetries(cfg.Drive.ScanRetries),
		disc.WithLogger(logger),
	)
	records, err := scanner.Scan(ctx, cfg.Drive.Device)
	if err != nil {
		return err
	}
	candidates, err := classify.NewClassifier(logger).Classify(records, classify.Policy{Mode: classify.ModeMostChapters})
	if err != nil {
		return err
	}
	feature := candidates[0]

	proposed := filepath.Join(outputDir, name, name+".mkv")
	resolver := plan.DuplicateResolver{}
	outputPath, err := resolver.Resolve(proposed)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create movie directory: %w", err)
	}

	entry := plan.Entry{
		TitleID:      feature.TitleID,
		ChapterStart: feature.ChapterStart,
		ChapterEnd:   feature.ChapterEnd,
		OutputPath:   outputPath,
	}
	fmt.Fprintf(p.out, "Title %d, chapters %d-%d -> %s\n",
		entry.TitleID, entry.ChapterStart, entry.ChapterEnd, shortenPath(outputPath))
	approved, err := p.Confirm("Encode this title", true)
	if err != nil {
		return err
	}
	if !approved {
		return nil
	}

	encoder, err := encode.New(
		cfg.HandBrakeBinary(),
		cfg.NvidiaSMIBinary(),
		cfg.Encode.Encoder,
		cfg.Encode.FallbackEncoder,
		cfg.Encode.Quality,
		time.Duration(cfg.Encode.Timeout)*time.Second,
		cfg.Encode.Retries,
		encode.WithLogger(logger),
		encode.WithStagingDir(cfg.Paths.StagingDir),
	)
	if err != nil {
		return err
	}

	session, err := store.BeginSession(ctx, name, 0, label)
	if err != nil {
		return err
	}
	defer func() {
		if finishErr := store.FinishSession(ctx, session.ID); finishErr != nil {
			logger.Warn("finish session", logging.Error(finishErr))
		}
		if ejectErr := disc.NewEjector().Eject(ctx, cfg.Drive.Device); ejectErr != nil {
			logger.Warn("eject", logging.Error(ejectErr))
		}
	}()

	var onProgress encode.ProgressFunc
	if sink := newProgressSink(); sink != nil {
		onProgress = sink(entry)
	}
	encodeErr := encoder.Encode(ctx, cfg.Drive.Device, entry, onProgress)

	outcome := journal.OutcomeDone
	detail := ""
	if encodeErr != nil {
		outcome = journal.OutcomeFailed
		detail = encodeErr.Error()
	}
	if _, recordErr := store.RecordEntry(ctx, journal.Entry{
		SessionID:   session.ID,
		TitleID:     entry.TitleID,
		ChapterSpan: fmt.Sprintf("%d-%d", entry.ChapterStart, entry.ChapterEnd),
		OutputPath:  entry.OutputPath,
		Outcome:     outcome,
		Detail:      detail,
	}); recordErr != nil {
		logger.Warn("journal entry", logging.Error(recordErr))
	}
	if encodeErr != nil {
		return encodeErr
	}

	fmt.Fprintf(p.out, "Encoded %s\n", shortenPath(outputPath))
	return nil
}

// humanizeLabel turns a disc volume label like "THE_BIG_LEBOWSKI" into a
// usable search query.
func humanizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	label = strings.ReplaceAll(label, "_", " ")
	return strings.ToLower(label)
}
