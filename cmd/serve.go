/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/detector"
	"github.com/valpere/perekladach/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the translation API over HTTP",
	Long: `Start an HTTP server exposing:

  POST /v1/translate         aggregate JSON results
  POST /v1/translate/stream  Server-Sent Events, one "data:" line per event
  GET  /v1/services          registered providers
  GET  /healthz              liveness

Provider credentials come from the "providers:" config section; a request
may override a provider's settings with its own "config" object.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := zap.L()
		orch, reg := buildOrchestrator()

		config := httpapi.Config{
			Providers:   providersConfig(),
			CORSOrigins: viper.GetStringSlice("server.cors_origins"),
		}
		if viper.GetBool("server.detect") {
			config.Detector = detector.New()
		}
		if viper.GetBool("server.history") {
			db, err := openHistory()
			if err != nil {
				return err
			}
			defer db.Close()
			config.History = db
		}

		srv := &http.Server{
			Addr:              viper.GetString("server.addr"),
			Handler:           httpapi.New(orch, reg, config, logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting HTTP server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	serveCmd.Flags().Bool("history", false, "Record requests in the history database")
	serveCmd.Flags().Bool("detect", true, "Detect the source language locally when it is auto")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origins"))
	viper.BindPFlag("server.history", serveCmd.Flags().Lookup("history"))
	viper.BindPFlag("server.detect", serveCmd.Flags().Lookup("detect"))
}
