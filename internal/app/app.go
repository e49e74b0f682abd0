// Package app wires the archiver components together. Run returns errors;
// only the CLI layer decides the process exit code.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/brisppy/battlelog-archiver/internal/config"
	"github.com/brisppy/battlelog-archiver/pkg/archive"
	"github.com/brisppy/battlelog-archiver/pkg/battlelog"
	"github.com/brisppy/battlelog-archiver/pkg/logging"
	"github.com/brisppy/battlelog-archiver/pkg/progress"
	"github.com/brisppy/battlelog-archiver/pkg/reports"
	"github.com/brisppy/battlelog-archiver/pkg/session"
)

// Options configure one archiver run.
type Options struct {
	ProfileName string
	CookiePath  string
	Config      *config.Config

	// Observer receives per-attempt progress events. Defaults to a
	// console reporter on stdout.
	Observer progress.Observer
}

// Run archives one profile end to end: session, metadata, enumeration,
// hydration, persistence. Fatal conditions (block, hidden reports, write
// failure, transport failure on a one-shot fetch) surface as errors.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.NewLogger("archiver")

	sess, err := session.LoadCookieFile(opts.CookiePath)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	client, err := battlelog.New(sess, battlelog.Config{
		BaseURL:           cfg.HTTP.BaseURL,
		Timeout:           cfg.HTTP.Timeout.Duration,
		GatewayRetryDelay: cfg.HTTP.GatewayRetryDelay.Duration,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	logger.Info().Str("profile", opts.ProfileName).Msg("Fetching profile data")
	profileData, err := client.FetchProfile(ctx, opts.ProfileName)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	identity, err := battlelog.ResolveIdentity(opts.ProfileName, profileData)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	logger.Info().
		Str("profile_id", identity.ProfileID).
		Str("user_id", identity.UserID).
		Msg("Resolved profile identity")

	bundle := &archive.Bundle{ProfileData: profileData}

	if identity.ClubID != "" {
		logger.Info().Str("club_id", identity.ClubID).Msg("Fetching club data")
		if bundle.ClubData, err = client.FetchClub(ctx, identity.ClubID); err != nil {
			return fmt.Errorf("fetch club: %w", err)
		}
	} else {
		logger.Info().Msg("Soldier has no club, skipping club data")
	}

	logger.Info().Msg("Fetching weapon stats")
	if bundle.WeaponStats, err = client.FetchWeaponStats(ctx, identity.ProfileID); err != nil {
		return fmt.Errorf("fetch weapon stats: %w", err)
	}
	logger.Info().Msg("Fetching vehicle stats")
	if bundle.VehicleStats, err = client.FetchVehicleStats(ctx, identity.ProfileID); err != nil {
		return fmt.Errorf("fetch vehicle stats: %w", err)
	}
	logger.Info().Msg("Fetching detailed stats")
	if bundle.DetailedStats, err = client.FetchDetailedStats(ctx, identity.ProfileID); err != nil {
		return fmt.Errorf("fetch detailed stats: %w", err)
	}
	logger.Info().Msg("Fetching assignment stats")
	if bundle.AssignmentStats, err = client.FetchAssignmentStats(ctx, identity.ProfileName, identity.ProfileID, identity.UserID); err != nil {
		return fmt.Errorf("fetch assignment stats: %w", err)
	}
	logger.Info().Msg("Fetching award stats")
	if bundle.AwardStats, err = client.FetchAwardStats(ctx, identity.ProfileID); err != nil {
		return fmt.Errorf("fetch award stats: %w", err)
	}

	logger.Info().Msg("Enumerating battle reports, this may take a while")
	enumerator := reports.NewEnumerator(client, reports.EnumeratorConfig{
		PageSize:           cfg.Engine.PageSize,
		EmptyPageThreshold: cfg.Engine.EmptyPageThreshold,
	})
	stubs, err := enumerator.Enumerate(ctx, identity)
	if err != nil {
		return fmt.Errorf("enumerate reports: %w", err)
	}
	bundle.ReportList = stubs
	logger.Info().Int("total", len(stubs)).Msg("Report index enumerated")

	observer := opts.Observer
	var console *progress.ConsoleReporter
	if observer == nil {
		console = progress.NewConsoleReporter(os.Stdout)
		observer = console
	}

	logger.Info().Msg("Fetching individual reports, this can take a long time")
	fetcher := reports.NewBatchFetcher(client, reports.BatchFetcherConfig{
		BatchSize: cfg.Engine.BatchSize,
		Policy: reports.RetryPolicy{
			MaxAttempts:  cfg.Engine.MaxAttempts,
			ShortDelay:   cfg.Engine.ShortDelay.Duration,
			LongDelay:    cfg.Engine.LongDelay.Duration,
			NetworkDelay: cfg.Engine.NetworkDelay.Duration,
		},
	}, observer)
	bundle.Reports, err = fetcher.FetchAll(ctx, stubs, identity)
	if console != nil {
		console.Finish()
	}
	if err != nil {
		return fmt.Errorf("fetch reports: %w", err)
	}

	logger.Info().Str("dir", cfg.Archive.OutputDir).Msg("Writing archive")
	sink, err := archive.NewLocalSink(cfg.Archive.OutputDir)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer sink.Close()

	if err := sink.Persist(ctx, opts.ProfileName, bundle); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	logger.Info().
		Int("stubs", len(bundle.ReportList)).
		Int("reports", len(bundle.Reports)).
		Int("missing", len(bundle.ReportList)-len(bundle.Reports)).
		Msg("Archive complete")

	return nil
}
