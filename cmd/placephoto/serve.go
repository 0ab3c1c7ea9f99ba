package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/spf13/cobra"
	"github.com/tripsage/go-placephoto/itinerary"
	"github.com/tripsage/go-placephoto/server"
	"github.com/tripsage/go-placephoto/tripstore"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the photo and trip HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	photos, err := newPhotoStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer photos.Close()

	var planner *itinerary.Planner
	if cfg.GenAI.APIKey != "" {
		gen, err := itinerary.NewGemini(ctx, cfg.GenAI.APIKey, cfg.GenAI.Model)
		if err != nil {
			return err
		}
		planner = itinerary.NewPlanner(gen)
		log.Infow("Trip generation enabled", "generator", gen)
	} else {
		log.Warn("No generation API key configured, trip creation is disabled")
	}

	trips := tripstore.New(dssync.MutexWrap(datastore.NewMapDatastore()))
	srv := server.New(photos.cache, trips, planner)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Listening", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Shutdown did not complete", "err", err)
		return err
	}
	return nil
}
