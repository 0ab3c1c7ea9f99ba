package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tripsage/go-placephoto/display"
	"golang.org/x/sync/errgroup"
)

var resolveTimeout time.Duration

var resolveCmd = &cobra.Command{
	Use:   "resolve <place-id>...",
	Short: "Resolve place photos and print the displayed image of each",
	Long: `Resolve the photo of each place the way an image view does: failed
lookups are retried up to the configured number of attempts before a
fallback image is shown. One JSON line is printed per place.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().DurationVar(&resolveTimeout, "timeout", 30*time.Second, "time to wait for all photos")
}

type resolveOutput struct {
	PlaceID  string `json:"placeId"`
	State    string `json:"state"`
	URL      string `json:"url"`
	Attempts int    `json:"attempts"`
	Failure  string `json:"failure,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if resolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, resolveTimeout)
		defer cancel()
	}

	photos, err := newPhotoStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer photos.Close()

	out := make([]resolveOutput, len(args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Cache.PrefetchConcurrency)
	for i, placeID := range args {
		g.Go(func() error {
			adapter, err := display.New(photos.cache, placeID, cfg.DisplayOptions(photos.pool)...)
			if err != nil {
				return err
			}
			defer adapter.Unmount()

			if err = adapter.Mount(gctx); err != nil {
				return err
			}
			snap, err := adapter.Wait(gctx)
			if err != nil {
				return fmt.Errorf("place %q: %w", placeID, err)
			}
			out[i] = resolveOutput{
				PlaceID:  placeID,
				State:    snap.State.String(),
				URL:      snap.Ref,
				Attempts: snap.Attempts,
			}
			if snap.Failure != nil {
				out[i].Failure = snap.Failure.Error()
			}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, o := range out {
		if err = enc.Encode(o); err != nil {
			return err
		}
	}
	return nil
}
