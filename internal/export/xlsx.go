package export

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospect-cli/internal/model"
)

// SheetName is the worksheet holding the prospects.
const SheetName = "Prospects"

var gradeColors = map[model.Grade]string{
	model.GradeA: "FF27AE60",
	model.GradeB: "FFF39C12",
	model.GradeC: "FFE74C3C",
	model.GradeD: "FF7F8C8D",
}

var columnWidths = map[int]float64{
	0: 8, 1: 35, 2: 35, 3: 14, 4: 24, 5: 14, 6: 35, 7: 30,
	12: 40, 13: 20, 14: 26, 15: 20, 18: 12, 19: 45, 20: 60,
	21: 50, 22: 70, 23: 60,
}

func headerStyle() *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font = *xlsx.NewFont(11, "Calibri")
	s.Font.Bold = true
	s.Font.Color = "FFE0E0E0"
	s.Fill = *xlsx.NewFill("solid", "FF1A1A2E", "FF1A1A2E")
	s.Alignment = xlsx.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	s.ApplyFont = true
	s.ApplyFill = true
	s.ApplyAlignment = true
	return s
}

func gradeStyle(color string) *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font = *xlsx.NewFont(11, "Calibri")
	s.Font.Bold = true
	s.Font.Color = "FFFFFFFF"
	s.Fill = *xlsx.NewFill("solid", color, color)
	s.Alignment = xlsx.Alignment{Horizontal: "center"}
	s.ApplyFont = true
	s.ApplyFill = true
	s.ApplyAlignment = true
	return s
}

// BuildWorkbook lays out records on a styled "Prospects" sheet.
func BuildWorkbook(records []model.ScoredRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	hs := headerStyle()
	header := sheet.AddRow()
	for _, name := range Columns {
		c := header.AddCell()
		c.SetString(name)
		c.SetStyle(hs)
	}

	styles := make(map[model.Grade]*xlsx.Style, len(gradeColors))
	for g, color := range gradeColors {
		styles[g] = gradeStyle(color)
	}

	for _, sr := range records {
		row := sheet.AddRow()
		for i, v := range Row(sr) {
			c := row.AddCell()
			setCell(c, i, v)
			if i == 0 {
				if s, ok := styles[sr.Score.Grade]; ok {
					c.SetStyle(s)
				}
			}
		}
	}

	for col := range Columns {
		w, ok := columnWidths[col]
		if !ok {
			w = 15
		}
		sheet.SetColWidth(col, col, w)
	}
	return f, nil
}

// setCell writes numeric columns as numbers so spreadsheets can sort them.
func setCell(c *xlsx.Cell, col int, v string) {
	if v == "" {
		c.SetString("")
		return
	}
	switch col {
	case colRevenue, colNetResult:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.SetFloatWithFormat(f, "0.00")
			return
		}
	case colDirectorAge:
		if n, err := strconv.Atoi(v); err == nil {
			c.SetInt(n)
			return
		}
	}
	c.SetString(v)
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, records []model.ScoredRecord) error {
	f, err := BuildWorkbook(records)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}
