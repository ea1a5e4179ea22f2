package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"platter/internal/config"
	"platter/internal/disc"
	"platter/internal/encode"
	"platter/internal/journal"
	"platter/internal/plan"
	"platter/internal/ripper"
	"platter/internal/services"
)

func newRipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rip",
		Short: "Scan the disc, plan episodes, and encode after confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			release, err := ripper.AcquireLock(filepath.Join(cfg.Paths.LogDir, "platter.lock"))
			if err != nil {
				return err
			}
			defer release()

			store, err := journal.Open(cfg.Paths.JournalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			p := newPrompter()
			media, err := p.Choice("Media type", []string{"tv", "movie"}, "tv")
			if err != nil {
				return err
			}
			if media == "movie" {
				return runMovie(cmd.Context(), cfg, logger, p, store)
			}

			session, err := buildTVSession(cmd.Context(), cfg, p, store)
			if err != nil {
				return err
			}

			r, err := newSessionRipper(cfg, logger, store, p)
			if err != nil {
				return err
			}

			waiter := disc.NewWaiter(cfg.Drive.Device, logger)
			for {
				result, err := r.Run(cmd.Context(), session.request)
				if errors.Is(err, services.ErrNoCandidates) {
					fmt.Fprintln(p.out, "No titles matched the duration thresholds.")
					again, confirmErr := p.Confirm("Adjust thresholds and rescan", true)
					if confirmErr != nil {
						return confirmErr
					}
					if !again {
						return err
					}
					policy, policyErr := promptPolicy(p, cfg, session.info)
					if policyErr != nil {
						return policyErr
					}
					session.request.Policy = policy
					continue
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(p.out, "Disc %s: %d encoded, %d failed of %d planned.\n",
					result.Label, result.Encoded, result.Failed, result.Planned)

				next, err := p.Confirm("Insert the next disc and continue", true)
				if err != nil {
					return err
				}
				if !next {
					return nil
				}
				fmt.Fprintln(p.out, "Waiting for the next disc...")
				if err := waiter.Wait(cmd.Context()); err != nil {
					return err
				}
			}
		},
	}
}

func newSessionRipper(cfg *config.Config, logger *slog.Logger, store *journal.Store, p *prompter) (*ripper.Ripper, error) {
	scanner := disc.NewScanner(cfg.HandBrakeBinary(),
		disc.WithScanTimeout(time.Duration(cfg.Drive.ScanTimeout)*time.Second),
		disc.WithScanRetries(cfg.Drive.ScanRetries),
		disc.WithLogger(logger),
	)
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
		return nil, err
	}

	return ripper.New(scanner, encoder, store,
		ripper.WithLogger(logger),
		ripper.WithEjector(disc.NewEjector()),
		ripper.WithProgressSink(newProgressSink()),
		ripper.WithConfirmer(func(entries []plan.Entry, summary plan.Summary) (bool, error) {
			fmt.Fprintln(p.out, renderPlanTable(entries))
			fmt.Fprintf(p.out, "%d entries, %s through %s.\n", summary.Entries, summary.FirstEpisode, summary.LastEpisode)
			return p.Confirm("Encode this plan", true)
		}),
	)
}
