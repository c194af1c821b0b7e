package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/ingest-cli/internal/ingest"
	"github.com/campusdata/ingest-cli/internal/model"
	"github.com/campusdata/ingest-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for scrape and analysis requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg, err := buildRegistry()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIHandler(st, reg),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer exposes the ingestion core over HTTP. Scrape and analysis
// requests run synchronously: the response carries the job outcome.
type apiServer struct {
	st      store.Store
	scrape  *ingest.ScrapeOrchestrator
	analyze *ingest.AnalysisOrchestrator
}

// newAPIHandler builds the chi router for the ingestion API.
func newAPIHandler(st store.Store, reg *ingest.Registry) http.Handler {
	s := &apiServer{
		st:      st,
		scrape:  ingest.NewScrapeOrchestrator(st, reg),
		analyze: ingest.NewAnalysisOrchestrator(st, reg),
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleCreateSource)
		r.Get("/sources/{id}/data", s.handleListSourceData)
		r.Post("/sources/{id}/scrape", s.handleScrape)
		r.Post("/data/{id}/analyze", s.handleAnalyze)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleScrape(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.scrape.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.analyze.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *apiServer) handleListSources(w http.ResponseWriter, r *http.Request) {
	filter := store.SourceFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Module:     r.URL.Query().Get("module"),
	}
	sources, err := s.st.ListSources(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *apiServer) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string            `json:"name"`
		URL    string            `json:"url"`
		Module string            `json:"module"`
		Config map[string]string `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	src := &model.Source{
		Name:   req.Name,
		URL:    req.URL,
		Module: req.Module,
		Active: true,
		Config: req.Config,
	}
	if err := s.st.CreateSource(r.Context(), src); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (s *apiServer) handleListSourceData(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	if _, err := s.st.GetSource(r.Context(), sourceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	captures, err := s.st.ListScrapedData(r.Context(), sourceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, captures)
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	jobs, err := s.st.ListJobs(r.Context(), store.JobFilter{
		Status:   model.JobStatus(r.URL.Query().Get("status")),
		SourceID: r.URL.Query().Get("source"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.st.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// writeIngestError maps orchestrator configuration errors onto HTTP
// statuses. Execution failures never reach here: those come back as a
// failed Outcome with status 200.
func writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrSourceNotFound),
		errors.Is(err, ingest.ErrScrapedDataNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrUnknownModule),
		errors.Is(err, ingest.ErrNoAnalyzer),
		errors.Is(err, ingest.ErrSourceInactive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
