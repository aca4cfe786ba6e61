/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"missioneditor/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the user configuration",
	}
	cmd.AddCommand(newConfigShowCmd(app), newConfigLoginCmd(app), newConfigLogoutCmd())
	return cmd
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "# %s\n", path)
			data, err := yaml.Marshal(app.Cfg)
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
			tok := "unset"
			if app.Token != "" {
				tok = "set"
			}
			_, _ = fmt.Fprintf(out, "# token: %s\n", tok)
			for _, k := range config.OverridableKeys() {
				if env, ok := config.EnvOverrideFor(k); ok {
					_, _ = fmt.Fprintf(out, "# %s overridden by %s\n", k, env)
				}
			}
			return nil
		},
	}
}

func newConfigLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store the backend token in the OS keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok := strings.TrimSpace(args[0])
			if tok == "" {
				return errors.New("empty token")
			}
			if err := config.Save(app.Cfg, tok); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			app.Token = tok
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "token stored")
			return err
		},
	}
}

func newConfigLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored backend token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ClearToken(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "token removed")
			return err
		},
	}
}
