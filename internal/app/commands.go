package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/adreel/backend/internal/config"
	"github.com/adreel/backend/internal/player"
	"github.com/adreel/backend/internal/repositories"
)

// runCompact rewrites the file store so it holds only live records.
func runCompact(out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.StoreFile {
		return fmt.Errorf("compact applies to the %s store only (ADREEL_STORE_DRIVER=%s)", config.StoreFile, cfg.StoreDriver)
	}

	repo, err := repositories.OpenFileVideoRepository(cfg.DataFile)
	if err != nil {
		return err
	}
	compactErr := repo.Compact()
	if err := errors.Join(compactErr, repo.Close()); err != nil {
		return err
	}
	fmt.Fprintf(out, "compacted %s\n", cfg.DataFile)
	return nil
}

// runSimulate plays a stored record through the ad controller on a virtual
// clock and prints every mode transition.
func runSimulate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(out)
	tick := fs.Duration("tick", 250*time.Millisecond, "interval between time updates")
	skipAfter := fs.Duration("skip-after", 0, "press skip once the ad has played this long (0 watches it to the end)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: simulate [-tick d] [-skip-after d] <record-id>")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openRecords(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.close() }()

	record, err := store.repo.Get(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	sim := player.Simulation{
		PrimaryDuration: record.Video.Duration,
		AdDuration:      record.AdVideo.Duration,
		Placement:       record.AdPlacement,
		Tick:            *tick,
		MinInterval:     cfg.AdThrottle,
		SkipAfter:       *skipAfter,
	}

	fmt.Fprintf(out, "record %s: %.2fs video, %.2fs ad at %ds\n",
		record.ID, record.Video.Duration, record.AdVideo.Duration, record.AdPlacement)
	transitions := sim.Run()
	for _, tr := range transitions {
		fmt.Fprintf(out, "%7.2fs  %s -> %s (%s)\n", tr.At, tr.From, tr.To, tr.Reason)
	}
	if len(transitions) == 0 {
		fmt.Fprintln(out, "no ad break")
	}
	return nil
}
