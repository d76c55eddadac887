package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/export"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
)

const (
	serviceName    = "prospect-cli"
	serviceVersion = "1.0"
	maxBodyBytes   = 1 << 20
	maxRunningJobs = 2
)

var servePort int

// prospectRunner runs the pipeline for one filter.
type prospectRunner interface {
	Run(ctx context.Context, f model.SearchFilter, opts pipeline.Options) (*pipeline.Result, error)
}

// server holds the state shared by the HTTP handlers.
type server struct {
	ctx          context.Context
	runner       prospectRunner
	opts         pipeline.Options
	outputDir    string
	aiConfigured bool
	jobs         *jobStore
	workers      *errgroup.Group
	now          func() time.Time
	newTag       func() string
}

func newServer(ctx context.Context, runner prospectRunner, opts pipeline.Options, outputDir string, aiConfigured bool) *server {
	workers := &errgroup.Group{}
	workers.SetLimit(maxRunningJobs)
	return &server{
		ctx:          ctx,
		runner:       runner,
		opts:         opts,
		outputDir:    outputDir,
		aiConfigured: aiConfigured,
		jobs:         newJobStore(),
		workers:      workers,
		now:          time.Now,
		newTag:       newRunTag,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job trigger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, "serve", "")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := os.MkdirAll(cfg.Server.OutputDir, 0o755); err != nil {
			return eris.Wrap(err, "create output dir")
		}

		srv := newServer(ctx, env.Pipeline, env.Options(cfg.Website.Contacts), cfg.Server.OutputDir, cfg.AIConfigured())
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildMux(srv, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		// Running jobs observe ctx cancellation.
		_ = srv.workers.Wait()
		return nil
	},
}

// buildMux wires the HTTP routes.
func buildMux(s *server, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleHome)
	r.Get("/health", s.handleHealth)
	r.Post("/scrape", s.handleScrape)
	r.Post("/jobs", s.handleCreateJob)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Get("/download/{file}", s.handleDownload)
	r.Get("/files", s.handleFiles)
	return r
}

func (s *server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, map[string]any{
		"status":  "online",
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]string{
			"/scrape":          "POST - run a search synchronously and export the result",
			"/jobs":            "POST - start a search in the background",
			"/jobs/{id}":       "GET - background search state",
			"/health":          "GET - service health",
			"/files":           "GET - list generated files",
			"/download/{file}": "GET - download a generated file",
		},
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"timestamp":     s.now().Format(time.RFC3339),
		"ai_configured": s.aiConfigured,
	})
}

func (s *server) handleScrape(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFilter(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.runner.Run(r.Context(), f, s.opts)
	if errors.Is(err, pipeline.ErrNoResults) {
		writeError(w, http.StatusNotFound, "no company matches these filters")
		return
	}
	if err != nil {
		zap.L().Error("scrape failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name, err := s.writeOutput(res.Records, s.newTag())
	if err != nil {
		zap.L().Error("scrape export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSONStatus(w, http.StatusOK, map[string]any{
		"status":       "success",
		"file":         name,
		"download_url": "/download/" + name,
		"stats":        res.Stats,
		"timestamp":    s.now().Format(time.RFC3339),
	})
}

func (s *server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFilter(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	j := s.jobs.create(f, s.now())
	if !s.workers.TryGo(func() error { s.runJob(j.ID, f); return nil }) {
		s.jobs.remove(j.ID)
		writeError(w, http.StatusTooManyRequests, "too many running jobs")
		return
	}

	writeJSONStatus(w, http.StatusAccepted, map[string]string{
		"job_id": j.ID,
		"status": j.Status,
	})
}

func (s *server) runJob(id string, f model.SearchFilter) {
	s.jobs.update(id, func(j *job) { j.Status = jobRunning })
	log := zap.L().With(zap.String("job_id", id))

	res, err := s.runner.Run(s.ctx, f, s.opts)
	var name string
	if err == nil {
		name, err = s.writeOutput(res.Records, shortID(id))
	}

	finished := s.now()
	s.jobs.update(id, func(j *job) {
		j.FinishedAt = &finished
		switch {
		case errors.Is(err, pipeline.ErrNoResults):
			j.Status = jobEmpty
		case err != nil:
			j.Status = jobFailed
			j.Error = err.Error()
		default:
			j.Status = jobDone
			j.File = name
			j.DownloadURL = "/download/" + name
			stats := res.Stats
			j.Stats = &stats
		}
	})

	if err != nil && !errors.Is(err, pipeline.ErrNoResults) {
		log.Error("job failed", zap.Error(err))
		return
	}
	log.Info("job complete", zap.String("file", name))
}

func (s *server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobs.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSONStatus(w, http.StatusOK, j)
}

func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if !validOutputName(name) {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	path := filepath.Join(s.outputDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// outputFile describes a generated export.
type outputFile struct {
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url"`
}

func (s *server) handleFiles(w http.ResponseWriter, _ *http.Request) {
	files, err := listOutputs(s.outputDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"files": files})
}

// listOutputs returns generated exports, newest first.
func listOutputs(dir string) ([]outputFile, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []outputFile{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "list outputs")
	}

	files := []outputFile{}
	for _, e := range entries {
		if e.IsDir() || !validOutputName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, outputFile{
			Name:        e.Name(),
			Created:     info.ModTime(),
			Size:        info.Size(),
			DownloadURL: "/download/" + e.Name(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Created.After(files[j].Created) })
	return files, nil
}

// writeOutput exports records as XLSX into the output directory. tag keeps
// names unique within a second.
func (s *server) writeOutput(records []model.ScoredRecord, tag string) (string, error) {
	name := export.Filename(s.now(), tag, export.FormatXLSX)
	if err := export.WriteFile(filepath.Join(s.outputDir, name), records); err != nil {
		return "", err
	}
	return name, nil
}

// validOutputName accepts only bare export file names.
func validOutputName(name string) bool {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return false
	}
	if !strings.HasPrefix(name, "prospects_") {
		return false
	}
	_, err := export.FormatFor(name)
	return err == nil
}

// decodeFilter reads a JSON SearchFilter over the defaults and validates it.
// An empty body yields the default filter.
func decodeFilter(body io.Reader) (model.SearchFilter, error) {
	f := model.DefaultFilter()
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return model.SearchFilter{}, eris.Wrap(err, "invalid request body")
	}
	f.Sector = strings.ToUpper(f.Sector)
	f.LegalForm = strings.ToUpper(f.LegalForm)
	if err := f.Validate(); err != nil {
		return model.SearchFilter{}, err
	}
	return f, nil
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"status": "error", "message": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
