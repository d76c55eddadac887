package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/export"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/pkg/notion"
	"github.com/sells-group/prospect-cli/pkg/salesforce"
)

// runFlags mirrors the run command's flags.
type runFlags struct {
	revenueMin     float64
	revenueMax     float64
	region         string
	sector         string
	form           string
	brackets       []string
	ageMin         int
	directorAgeMin int
	directorAgeMax int
	limit          int
	revenueMode    string
	scorer         string
	contacts       bool
	concurrency    int
	output         string
	sortGrade      bool
	notion         bool
	salesforce     bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, enrich and grade prospects, then export them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := filterFromFlags(cmd, runOpts)
		if err != nil {
			return err
		}
		if runOpts.output != "" {
			if _, err := export.FormatFor(runOpts.output); err != nil {
				return err
			}
		}

		env, err := initEnv(ctx, "run", runOpts.scorer)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := env.Options(runOpts.contacts || cfg.Website.Contacts)
		if runOpts.concurrency > 0 {
			opts.Concurrency = runOpts.concurrency
		}
		opts.Progress = func(done, total int) {
			zap.L().Debug("record qualified", zap.Int("done", done), zap.Int("total", total))
		}

		start := time.Now()
		res, err := env.Pipeline.Run(ctx, f, opts)
		if err != nil {
			if errors.Is(err, pipeline.ErrNoResults) {
				fmt.Println("No company matches these filters.")
				return nil
			}
			return eris.Wrap(err, "run pipeline")
		}

		records := res.Records
		if runOpts.sortGrade {
			records = export.SortByGrade(records)
		}

		out := runOpts.output
		if out == "" {
			out = filepath.Join(cfg.Server.OutputDir, export.Filename(time.Now(), newRunTag(), export.FormatXLSX))
		}
		if err := export.WriteFile(out, records); err != nil {
			return err
		}

		zap.L().Info("run complete",
			zap.String("output", out),
			zap.Int("total", res.Stats.Total),
			zap.Int("score_a", res.Stats.A),
			zap.Int("score_b", res.Stats.B),
			zap.Int("score_c", res.Stats.C),
			zap.Int("score_d", res.Stats.D),
			zap.Int("websites_found", res.Stats.WebsitesFound),
			zap.Duration("elapsed", time.Since(start)),
		)

		if err := syncCRM(ctx, records, runOpts.notion, runOpts.salesforce); err != nil {
			return err
		}

		fmt.Printf("%d prospects written to %s (A=%d B=%d C=%d D=%d)\n",
			res.Stats.Total, out, res.Stats.A, res.Stats.B, res.Stats.C, res.Stats.D)
		return nil
	},
}

// filterFromFlags builds a SearchFilter from the run flags. Unset flags keep
// the default filter values.
func filterFromFlags(cmd *cobra.Command, fl runFlags) (model.SearchFilter, error) {
	f := model.DefaultFilter()

	if cmd.Flags().Changed("ca-min") {
		f.RevenueMin = euros(fl.revenueMin)
	}
	if cmd.Flags().Changed("ca-max") {
		f.RevenueMax = euros(fl.revenueMax)
	}
	f.Region = fl.region
	f.Sector = strings.ToUpper(fl.sector)
	f.LegalForm = strings.ToUpper(fl.form)
	f.EmployeeBrackets = fl.brackets
	f.MinCompanyAge = fl.ageMin
	f.DirectorAgeMin = fl.directorAgeMin
	f.DirectorAgeMax = fl.directorAgeMax
	if fl.limit > 0 {
		f.Cap = fl.limit
	}
	if fl.revenueMode != "" {
		f.RevenueMode = model.RevenueMode(fl.revenueMode)
	}

	if err := f.Validate(); err != nil {
		return model.SearchFilter{}, err
	}
	return f, nil
}

// euros converts a M€ flag value; zero or less clears the bound.
func euros(m float64) *int64 {
	if m <= 0 {
		return nil
	}
	v := int64(math.Round(m * 1_000_000))
	return &v
}

// syncCRM pushes graded records to the enabled CRM sinks.
func syncCRM(ctx context.Context, records []model.ScoredRecord, toNotion, toSalesforce bool) error {
	if toNotion {
		if cfg.Notion.Token == "" || cfg.Notion.ProspectDB == "" {
			return eris.New("notion sync requires notion.token and notion.prospect_db")
		}
		nc := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(3))
		sum, err := notion.UpsertProspects(ctx, nc, cfg.Notion.ProspectDB, records)
		if err != nil {
			return eris.Wrap(err, "notion sync")
		}
		zap.L().Info("notion sync complete",
			zap.Int("created", sum.Created), zap.Int("updated", sum.Updated), zap.Int("failed", sum.Failed))
	}

	if toSalesforce {
		sf, err := salesforce.Connect(salesforce.JWTConfig{
			LoginURL: cfg.Salesforce.LoginURL,
			Username: cfg.Salesforce.Username,
			ClientID: cfg.Salesforce.ClientID,
			KeyPath:  cfg.Salesforce.KeyPath,
		}, salesforce.WithRateLimit(5))
		if err != nil {
			return eris.Wrap(err, "salesforce connect")
		}
		sum, err := salesforce.UpsertLeads(ctx, sf, records)
		if err != nil {
			return eris.Wrap(err, "salesforce sync")
		}
		zap.L().Info("salesforce sync complete",
			zap.Int("created", sum.Created), zap.Int("updated", sum.Updated), zap.Int("failed", sum.Failed))
	}

	return nil
}

// bindRunFlags registers the run flags on cmd, storing values in o.
func bindRunFlags(cmd *cobra.Command, o *runFlags) {
	fl := cmd.Flags()
	fl.Float64Var(&o.revenueMin, "ca-min", 5, "minimum revenue in M€ (0 for none)")
	fl.Float64Var(&o.revenueMax, "ca-max", 50, "maximum revenue in M€ (0 for none)")
	fl.StringVar(&o.region, "region", "", "region code (e.g. 11 for Ile-de-France)")
	fl.StringVar(&o.sector, "sector", "", "NAF code (62.01Z) or division (62)")
	fl.StringVar(&o.form, "form", "", "legal form (SAS, SARL, SA...) or 4-digit code")
	fl.StringSliceVar(&o.brackets, "brackets", nil, "employee bracket codes (default 12,21,22,31)")
	fl.IntVar(&o.ageMin, "age-min", 0, "minimum company age in years")
	fl.IntVar(&o.directorAgeMin, "director-age-min", 0, "minimum director age")
	fl.IntVar(&o.directorAgeMax, "director-age-max", 0, "maximum director age")
	fl.IntVar(&o.limit, "limit", 10, "maximum number of prospects")
	fl.StringVar(&o.revenueMode, "revenue-mode", "", "where the revenue band applies: server or post")
	fl.StringVar(&o.scorer, "scorer", "", "scorer: rules or ai (default from config)")
	fl.BoolVar(&o.contacts, "contacts", false, "extract email and phone from company websites")
	fl.IntVar(&o.concurrency, "concurrency", 0, "records processed in parallel (default from config)")
	fl.StringVarP(&o.output, "output", "o", "", "output file (.xlsx, .csv or .json)")
	fl.BoolVar(&o.sortGrade, "sort-grade", false, "order output from grade A to D")
	fl.BoolVar(&o.notion, "notion", false, "upsert prospects into the Notion database")
	fl.BoolVar(&o.salesforce, "salesforce", false, "upsert prospects as Salesforce leads")
}

func init() {
	bindRunFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}
