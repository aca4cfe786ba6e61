/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"missioneditor/internal/domain"
)

// PDFOptions controls PDF export behavior. Units are points.
type PDFOptions struct {
	PageSize   string  // gofpdf size name, default "A4"
	Margin     float64 // default 36
	Indent     float64 // per outline depth, default 14
	RowHeight  float64 // default 18
	IncludeIDs bool    // print panel ids under each row
}

type rgb struct{ R, G, B int }

var categoryFill = map[string]rgb{
	"Motion":      {222, 235, 247},
	"Flow":        {229, 245, 224},
	"Errors":      {254, 224, 210},
	"Interaction": {255, 247, 188},
	"Missions":    {239, 237, 245},
}

var defaultFill = rgb{240, 240, 240}

func (o PDFOptions) withDefaults() PDFOptions {
	if o.PageSize == "" {
		o.PageSize = "A4"
	}
	if o.Margin <= 0 {
		o.Margin = 36
	}
	if o.Indent <= 0 {
		o.Indent = 14
	}
	if o.RowHeight <= 0 {
		o.RowHeight = 18
	}
	return o
}

// WritePDF renders the mission outline as a PDF: one boxed row per action,
// indented by depth and tinted by menu category, branch captions in italics.
func WritePDF(w io.Writer, m domain.Mission, roots []*domain.Panel, lb Labeler, opt PDFOptions) error {
	opt = opt.withDefaults()
	pdf := gofpdf.New("P", "pt", opt.PageSize, "")
	pdf.SetMargins(opt.Margin, opt.Margin, opt.Margin)
	pdf.SetAutoPageBreak(true, opt.Margin)
	pdf.SetTitle(fmt.Sprintf("%s - mission outline", m.MissionName), false)
	pdf.SetAuthor("Mission Editor", false)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-opt.Margin + 8)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*opt.Margin

	// Header
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 22, m.MissionName, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	meta := []string{"id " + m.ID}
	if m.GroupID != "" {
		meta = append(meta, "group "+m.GroupID)
	}
	if m.SiteID != "" {
		meta = append(meta, "site "+m.SiteID)
	}
	pdf.CellFormat(0, 14, strings.Join(meta, "   "), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(120, 120, 120)
	for _, l := range Flatten(roots, lb) {
		x := opt.Margin + float64(l.Depth)*opt.Indent
		width := contentW - float64(l.Depth)*opt.Indent
		if width < 40 {
			width = 40
		}
		pdf.SetX(x)
		if l.IsCaption() {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(width, opt.RowHeight*0.8, tr(l.Caption), "", 1, "L", false, 0, "")
			continue
		}
		fill, ok := categoryFill[l.Category]
		if !ok {
			fill = defaultFill
		}
		pdf.SetFillColor(fill.R, fill.G, fill.B)
		pdf.SetFont("Helvetica", "B", 10)
		text := l.Label
		if l.Summary != "" {
			text += "   " + l.Summary
		}
		pdf.CellFormat(width, opt.RowHeight, tr(text), "1", 1, "L", true, 0, "")
		if opt.IncludeIDs {
			pdf.SetX(x)
			pdf.SetFont("Courier", "", 7)
			pdf.CellFormat(width, 10, l.PanelID, "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportMissionPDF writes the outline PDF to outPath, creating its directory.
func ExportMissionPDF(outPath string, m domain.Mission, roots []*domain.Panel, lb Labeler, opt PDFOptions) (err error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WritePDF(f, m, roots, lb, opt)
}
