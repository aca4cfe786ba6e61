/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"missioneditor/internal/crash"
	"missioneditor/internal/domain"
	"missioneditor/internal/storage"
)

func newFetchCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fetch <missionID>",
		Short: "Download a mission from the backend into a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			m, err := c.GetMission(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetch %s: %w", args[0], err)
			}
			path := out
			if path == "" {
				path = m.ID + ".mission.json"
			}
			if err := storage.SaveMissionFile(path, m); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", m.ID, path)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default <id>.mission.json)")
	return cmd
}

func newPushCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "push <file>",
		Short: "Upload a local mission file through the editor save path",
		Long: "push parses the file into an action tree, serializes it again and writes it\n" +
			"to the backend. Nothing is written when the tree cannot be serialized or\n" +
			"the result fails validation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := storage.OpenMissionFile(args[0])
			if err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			s, _, err := app.session(cmd.Context(), c, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer crash.Recover(s, filepath.Dir(args[0]))
			if err := s.LoadMission(m, domain.Lookups{}); err != nil {
				return err
			}
			if err := s.Save(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pushed %s\n", m.ID)
			return err
		},
	}
}
