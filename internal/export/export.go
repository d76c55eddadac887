// Package export renders scored prospects as XLSX, CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Columns is the output header, in order.
var Columns = []string{
	"Score",
	"Qualification",
	"Entreprise",
	"Chiffre d'Affaires (M)",
	"Evolution CA",
	"Resultat Net (M)",
	"Activite",
	"Dirigeant Principal",
	"Age Dirigeant",
	"Telephone",
	"Email",
	"Site Web",
	"Adresse du Siege",
	"Ville",
	"Region",
	"Effectif",
	"Date de Creation",
	"Forme Juridique",
	"SIREN",
	"Fiche Pappers",
	"Fiche Data.gouv",
	"Resume Activite",
	"Analyse M&A",
	"Justification Score",
}

// Column indexes used for typed XLSX cells.
const (
	colRevenue     = 3
	colNetResult   = 5
	colDirectorAge = 8
)

// Format is an output file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FormatFor picks a format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", eris.Errorf("export: unsupported output extension %q", filepath.Ext(path))
}

// Filename builds a timestamped output name. A non-empty tag is appended so
// runs finishing in the same second do not overwrite each other.
func Filename(now time.Time, tag string, f Format) string {
	if tag == "" {
		return fmt.Sprintf("prospects_%s.%s", now.Format("20060102_150405"), f)
	}
	return fmt.Sprintf("prospects_%s_%s.%s", now.Format("20060102_150405"), tag, f)
}

// SortByGrade returns a copy ordered A to D. Records with the same grade
// keep their relative order.
func SortByGrade(records []model.ScoredRecord) []model.ScoredRecord {
	out := make([]model.ScoredRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Grade.Rank() < out[j].Score.Grade.Rank()
	})
	return out
}

func millions(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(float64(*v)/1e6, 'f', 2, 64)
}

// Row renders one record as strings in Columns order.
func Row(sr model.ScoredRecord) []string {
	r := sr.Record
	age := ""
	if r.DirectorAge != nil {
		age = strconv.Itoa(*r.DirectorAge)
	}
	sector := r.SectorLabel
	if sector == "" {
		sector = model.SectorLabel(r.SectorCode)
	}
	return []string{
		string(sr.Score.Grade),
		sr.Score.Label,
		r.Name,
		millions(r.Revenue),
		r.RevenueTrend,
		millions(r.NetResult),
		sector,
		r.Director,
		age,
		r.Phone,
		r.Email,
		r.Website,
		r.Address.Full(),
		r.Address.City,
		model.RegionName(r.Address.Region),
		model.BracketLabel(r.EmployeeBracket),
		r.CreationDate,
		model.LegalFormName(r.LegalForm),
		r.SIREN,
		r.PappersURL(),
		r.DataGouvURL(),
		sr.Score.Summary,
		sr.Score.Analysis,
		sr.Score.Justification,
	}
}

// WriteCSV writes a header and one row per record.
func WriteCSV(w io.Writer, records []model.ScoredRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, sr := range records {
		if err := cw.Write(Row(sr)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteJSON writes the records as an indented JSON array.
func WriteJSON(w io.Writer, records []model.ScoredRecord) error {
	if records == nil {
		records = []model.ScoredRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(records), "export: encode json")
}

// Write renders records in format f.
func Write(w io.Writer, f Format, records []model.ScoredRecord) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	}
	return eris.Errorf("export: unknown format %q", f)
}

// WriteFile writes records to path, choosing the format from its extension.
func WriteFile(path string, records []model.ScoredRecord) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "export: create output dir")
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	if err := Write(out, f, records); err != nil {
		_ = out.Close()
		return err
	}
	return eris.Wrap(out.Close(), "export: close file")
}
