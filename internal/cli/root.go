/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli is the missioneditor command line: offline inspection of
// mission files, transfer to and from the backend, and the development server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"missioneditor/internal/action"
	"missioneditor/internal/action/variants"
	"missioneditor/internal/backend"
	"missioneditor/internal/config"
	"missioneditor/internal/dnd"
	"missioneditor/internal/editor"
	applog "missioneditor/internal/log"
	"missioneditor/internal/telemetry"
)

// App carries state shared by all commands.
type App struct {
	Cfg   config.AppConfig
	Token string

	backendURL string
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}
	cmd := &cobra.Command{
		Use:           "missioneditor",
		Short:         "Mission script editor for the robot fleet",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Print the action tree of a mission file
  missioneditor tree patrol.mission.json

  # Download, edit elsewhere, upload again
  missioneditor fetch ms-42 -o patrol.mission.json
  missioneditor push patrol.mission.json

  # Run the development API over a local SQLite file
  missioneditor serve --dsn missions.db --seed testdata/seed.json
`),
	}
	cmd.PersistentFlags().StringVar(&app.backendURL, "backend", "", "backend base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.load()
	}

	cmd.AddCommand(
		newVersionCmd(),
		newActionsCmd(app),
		newTreeCmd(app),
		newValidateCmd(app),
		newPDFCmd(app),
		newFetchCmd(app),
		newPushCmd(app),
		newServeCmd(app),
		newConfigCmd(app),
	)
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *App) load() error {
	cfg, tok, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.backendURL != "" {
		cfg.Backend.BaseURL = a.backendURL
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.Cfg, a.Token = cfg, tok
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	telemetry.NewDefault(telemetry.FromAppConfig(cfg.Telemetry))
	return nil
}

func (a *App) registry() (*action.Registry, error) {
	return variants.NewRegistry(action.Options{UnknownPolicy: action.UnknownPolicy(a.Cfg.Editor.UnknownActions)})
}

func (a *App) client() (*backend.Client, error) {
	if strings.TrimSpace(a.Cfg.Backend.BaseURL) == "" {
		return nil, errors.New("no backend URL configured (use --backend or MSE_BACKEND_URL)")
	}
	return backend.NewClient(a.Cfg.Backend.BaseURL, backend.Options{
		Token:   a.Token,
		Timeout: a.Cfg.Backend.Timeout(),
		Retries: a.Cfg.Backend.Retries,
		Backoff: a.Cfg.Backend.Backoff(),
	}), nil
}

// writerNotifier prints save failures for the user.
type writerNotifier struct{ w io.Writer }

func (n writerNotifier) Notify(title, message string) {
	_, _ = fmt.Fprintf(n.w, "%s: %s\n", title, message)
}

func (a *App) session(ctx context.Context, be editor.Backend, errOut io.Writer) (*editor.Session, *action.Registry, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, nil, err
	}
	s, err := editor.NewSession(ctx, reg, be, editor.Options{
		DropPolicy: dnd.ParsePolicy(a.Cfg.Editor.DropPolicy),
		Notifier:   writerNotifier{w: errOut},
		Logger:     applog.WithComponent("cli").With(slog.String("cmd", "session")),
	})
	if err != nil {
		return nil, nil, err
	}
	return s, reg, nil
}
