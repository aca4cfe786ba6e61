/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"missioneditor/internal/action"
	"missioneditor/internal/domain"
	"missioneditor/internal/export"
	"missioneditor/internal/schema"
	"missioneditor/internal/storage"
	"missioneditor/internal/tree"
	"missioneditor/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}

func newActionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the registered action types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := app.registry()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TYPE\tLABEL\tCATEGORY\tBRANCHES")
			for _, tag := range reg.Tags() {
				pr, _ := reg.Presentation(tag)
				v, _ := reg.Variant(tag)
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", tag, pr.Label, pr.Category, v.Branches())
			}
			return tw.Flush()
		},
	}
}

func newTreeCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tree <file>",
		Short: "Print the action tree of a mission file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := storage.OpenMissionFile(args[0])
			if err != nil {
				return err
			}
			reg, err := app.registry()
			if err != nil {
				return err
			}
			roots, err := reg.ParseMission(m.DataMission, domain.Lookups{})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(roots)
			}
			return export.WriteOutline(cmd.OutOrStdout(), roots, reg)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed panels as JSON")
	return cmd
}

func newValidateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a mission file against the schema and the action registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := storage.OpenMissionFile(args[0])
			if err != nil {
				return err
			}
			if err := schema.ValidateMission(m); err != nil {
				return err
			}
			reg, err := app.registry()
			if err != nil {
				return err
			}
			recs, err := domain.DecodeRecords(m.DataMission)
			if err != nil {
				return err
			}
			roots := reg.ParseBranch(recs, action.ParseContext{})
			if _, err := reg.SerializeMission(roots); err != nil {
				return err
			}
			if err := tree.Validate(roots); err != nil {
				return err
			}
			if len(roots) != len(recs) {
				return fmt.Errorf("%d of %d top-level actions could not be parsed", len(recs)-len(roots), len(recs))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %s, %d actions\n", m.MissionName, tree.Count(roots))
			return err
		},
	}
}

func newPDFCmd(app *App) *cobra.Command {
	var ids bool
	var pageSize string
	cmd := &cobra.Command{
		Use:   "pdf <file> <out.pdf>",
		Short: "Export the mission outline as PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := storage.OpenMissionFile(args[0])
			if err != nil {
				return err
			}
			reg, err := app.registry()
			if err != nil {
				return err
			}
			roots, err := reg.ParseMission(m.DataMission, domain.Lookups{})
			if err != nil {
				return err
			}
			if err := export.ExportMissionPDF(args[1], m, roots, reg, export.PDFOptions{PageSize: pageSize, IncludeIDs: ids}); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[1])
			return err
		},
	}
	cmd.Flags().BoolVar(&ids, "ids", false, "print panel ids")
	cmd.Flags().StringVar(&pageSize, "page", "A4", "page size (A4, Letter, ...)")
	return cmd
}
