/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"missioneditor/internal/backend"
	applog "missioneditor/internal/log"
	"missioneditor/internal/storage"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(app *App) *cobra.Command {
	var addr, driver, dsn, seed string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mission API over a SQLite or PostgreSQL store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := app.Cfg.Server
			if addr != "" {
				sc.Addr = addr
			}
			if driver != "" {
				sc.Driver = driver
			}
			if dsn != "" {
				sc.DSN = dsn
			}
			if seed != "" {
				sc.SeedFile = seed
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, sc.Addr, storage.Options{Driver: sc.Driver, DSN: sc.DSN}, sc.SeedFile, sc.AuthSecret)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&driver, "driver", "", "store driver: sqlite or pgx")
	cmd.Flags().StringVar(&dsn, "dsn", "", "sqlite file or postgres URL")
	cmd.Flags().StringVar(&seed, "seed", "", "fixture file loaded into the store at startup")
	return cmd
}

func serve(ctx context.Context, addr string, so storage.Options, seedFile, secret string) error {
	log := applog.WithComponent("serve")
	st, err := storage.Open(ctx, so)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if seedFile != "" {
		f, err := storage.LoadFixture(seedFile)
		if err != nil {
			return err
		}
		if err := st.Seed(ctx, f); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
		log.Info("store seeded", slog.String("file", seedFile), slog.Int("missions", len(f.Missions)))
	}
	if secret == "" {
		log.Warn("auth disabled; set MSE_AUTH_SECRET to require tokens")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           backend.NewServer(st, backend.ServerOptions{Secret: secret}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", slog.String("addr", addr), slog.String("driver", st.Driver()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
