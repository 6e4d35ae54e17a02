package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/database"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/metrics"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/query"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Server serves the latest report, live query results and metrics.
type Server struct {
	db      *database.DB
	dataDir string
	metrics *metrics.Metrics
	log     zerolog.Logger
	pages   map[string]*template.Template
	router  *chi.Mux
}

// New creates a Server reading report files from dataDir.
func New(db *database.DB, dataDir string, m *metrics.Metrics, log zerolog.Logger) (*Server, error) {
	if m == nil {
		m = metrics.New()
	}
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"cell":     report.Cell,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so "title" and "content" don't collide.
	pageNames := []string{"index.html", "query.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		db:      db,
		dataDir: dataDir,
		metrics: m,
		log:     log.With().Str("component", "server").Logger(),
		pages:   pages,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/", s.handleIndex)
	s.router.Get("/queries/{name}", s.handleQueryPage)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Get("/stats", s.handleStats)
		r.Get("/series", s.handleSeries)
		r.Get("/queries", s.handleQueries)
		r.Get("/queries/{name}", s.handleQuery)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		s.serverError(w, "loading stats", err)
		return
	}
	run, err := s.db.LastIngestRun(r.Context())
	if err != nil {
		s.serverError(w, "loading last ingest run", err)
		return
	}

	var reportMD string
	data, err := os.ReadFile(filepath.Join(s.dataDir, report.MarkdownFile))
	switch {
	case err == nil:
		reportMD = string(data)
	case !errors.Is(err, fs.ErrNotExist):
		s.serverError(w, "reading report", err)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Stats":   stats,
		"Run":     run,
		"Report":  reportMD,
		"Queries": query.Names(query.Battery),
	})
}

func (s *Server) handleQueryPage(w http.ResponseWriter, r *http.Request) {
	q, ok := query.Find(query.Battery, chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	res := s.run(r.Context(), q)
	s.render(w, "query.html", map[string]any{
		"Result": res,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load stats", err)
		return
	}
	run, err := s.db.LastIngestRun(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load last ingest run", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"tables":   stats,
		"last_run": run,
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series, err := report.ReadSeries(filepath.Join(s.dataDir, report.SeriesFile))
	if errors.Is(err, fs.ErrNotExist) {
		respondWithError(w, http.StatusNotFound, "No report has been generated yet", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to read series", err)
		return
	}
	respondWithJSON(w, http.StatusOK, series)
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	results := query.Run(r.Context(), s.db, query.Battery, s.observe)
	respondWithJSON(w, http.StatusOK, report.QueryOutputs(results))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q, ok := query.Find(query.Battery, chi.URLParam(r, "name"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "Unknown query", nil)
		return
	}
	res := s.run(r.Context(), q)
	out := report.QueryOutputs([]query.Result{res})[0]
	if res.Err != nil {
		respondWithJSON(w, http.StatusInternalServerError, out)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) run(ctx context.Context, q query.Query) query.Result {
	return query.Run(ctx, s.db, []query.Query{q}, s.observe)[0]
}

func (s *Server) observe(r query.Result) {
	s.metrics.RecordQuery(r.Name, r.Duration, r.Err != nil)
	if r.Err != nil {
		s.log.Warn().Str("query", r.Name).Err(r.Err).Msg("query failed")
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.serverError(w, "template "+name+" not found", nil)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.serverError(w, "rendering "+name, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.log.Error().Err(err).Msg(msg)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func respondWithError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	respondWithJSON(w, status, body)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port and shuts it down when
// ctx is cancelled.
func Serve(ctx context.Context, srv *Server, port int) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.log.Info().Str("addr", "http://"+httpServer.Addr).Msg("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
