package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"regexp"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/resolve"
	"github.com/sells-group/prospect-cli/pkg/annuaire"
)

var (
	lookupSIREN    string
	lookupScorer   string
	lookupContacts bool
)

var sirenRe = regexp.MustCompile(`^\d{9}$`)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Enrich and grade a single company by SIREN",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !sirenRe.MatchString(lookupSIREN) {
			return eris.Errorf("--siren must be 9 digits, got %q", lookupSIREN)
		}

		env, err := initEnv(cmd.Context(), "lookup", lookupScorer)
		if err != nil {
			return err
		}
		defer env.Close()

		sr, err := lookupOne(cmd.Context(), env.Directory, env.Pipeline, lookupSIREN,
			env.Options(lookupContacts || cfg.Website.Contacts))
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, sr)
	},
}

// lookupOne fetches a company from the directory and runs it through
// enrichment and scoring.
func lookupOne(ctx context.Context, dir annuaire.Client, p *pipeline.Pipeline, siren string, opts pipeline.Options) (model.ScoredRecord, error) {
	co, err := dir.Lookup(ctx, siren)
	if err != nil {
		return model.ScoredRecord{}, eris.Wrapf(err, "lookup %s", siren)
	}
	if co.SIREN != siren {
		return model.ScoredRecord{}, eris.Wrapf(annuaire.ErrNotFound, "lookup %s", siren)
	}
	return p.Qualify(ctx, resolve.RecordFromCompany(*co), opts), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

func init() {
	lookupCmd.Flags().StringVar(&lookupSIREN, "siren", "", "company SIREN (9 digits)")
	lookupCmd.Flags().StringVar(&lookupScorer, "scorer", "", "scorer: rules or ai (default from config)")
	lookupCmd.Flags().BoolVar(&lookupContacts, "contacts", false, "extract email and phone from the company website")
	_ = lookupCmd.MarkFlagRequired("siren")
	rootCmd.AddCommand(lookupCmd)
}
