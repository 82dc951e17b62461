package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"geostack_service/internal/api"
	"geostack_service/internal/config"
	"geostack_service/internal/core"
	"geostack_service/internal/domain/model"
	"geostack_service/internal/domain/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sampling runs over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env := config.FromEnv()

	backend, err := newBackend(env)
	if err != nil {
		return err
	}
	boundaries, closeBoundaries, err := newBoundaries(env)
	if err != nil {
		return err
	}
	defer closeBoundaries()

	var writer model.ExportWriter
	recorder, err := newRecorder(ctx, env)
	if err != nil {
		return err
	}
	if recorder != nil {
		defer recorder.Close()
		writer = recorder
	}

	service := core.NewSamplingService(backend, repository.NewGeoJSONFileReader(), boundaries, writer, logger)
	handler := api.NewHandler(service, logger)

	srv := &http.Server{
		Addr:              env.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", env.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
