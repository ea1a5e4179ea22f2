package main

import (
	"context"
	"fmt"
	"log/slog"
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

func newPlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Scan and print the episode plan without encoding",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg.Paths.JournalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			p := newPrompter()
			session, err := buildTVSession(cmd.Context(), cfg, p, store)
			if err != nil {
				return err
			}

			r, err := newPlanRipper(cfg, logger, store)
			if err != nil {
				return err
			}

			entries, summary, err := r.Plan(cmd.Context(), session.request)
			if err != nil {
				return err
			}

			fmt.Fprintln(p.out, renderPlanTable(entries))
			fmt.Fprintf(p.out, "%d entries, %s through %s. Nothing was encoded.\n",
				summary.Entries, summary.FirstEpisode, summary.LastEpisode)
			return nil
		},
	}
}

// newPlanRipper builds a ripper whose encoder is never invoked; Plan stops
// before encoding.
func newPlanRipper(cfg *config.Config, logger *slog.Logger, store *journal.Store) (*ripper.Ripper, error) {
	scanner := disc.NewScanner(cfg.HandBrakeBinary(),
		disc.WithScanTimeout(time.Duration(cfg.Drive.ScanTimeout)*time.Second),
		disc.WithScanRetries(cfg.Drive.ScanRetries),
		disc.WithLogger(logger),
	)
	return ripper.New(scanner, planOnlyEncoder{}, store, ripper.WithLogger(logger))
}

type planOnlyEncoder struct{}

func (planOnlyEncoder) Encode(ctx context.Context, device string, entry plan.Entry, onProgress encode.ProgressFunc) error {
	return services.Wrap(services.ErrValidation, "plan", "", "dry run never encodes", nil)
}
