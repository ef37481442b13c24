package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"pss/internal/dateutil"
	"pss/internal/engine"
	appLog "pss/internal/log"
	"pss/internal/model"
	"pss/internal/schedule"
)

// maxBodyBytes bounds POST bodies for task drafts and imports.
const maxBodyBytes = 10 << 20

// Options configures a Server.
type Options struct {
	// Listen is the HTTP listen address.
	Listen string
	// StatePath, when set, is rewritten after every successful mutation.
	StatePath string
	// Today returns the default start date for schedule queries.
	Today func() dateutil.Date
}

// Server exposes one engine over a JSON API. Every engine call holds mu, so
// the engine only ever sees one caller at a time.
type Server struct {
	opts Options
	mux  *http.ServeMux

	mu  sync.Mutex
	eng *engine.Engine

	// icsCache holds the last rendered feed; mutations drop it.
	icsCache *string
}

// NewServer constructs a new Server.
func NewServer(eng *engine.Engine, opts Options) *Server {
	if opts.Today == nil {
		opts.Today = func() dateutil.Date { return dateutil.FromTime(time.Now()) }
	}
	s := &Server{
		opts: opts,
		mux:  http.NewServeMux(),
		eng:  eng,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves HTTP on opts.Listen until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.opts.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// Reload replaces the engine state with the state file. It is called by the
// state watcher when another process rewrites the file.
func (s *Server) Reload() error {
	if s.opts.StatePath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.eng.Load(s.opts.StatePath); err != nil {
		return err
	}
	s.icsCache = nil
	appLog.Info("state reloaded", "path", s.opts.StatePath)
	return nil
}

// ActiveOn returns the active tasks of date under the server lock, for the
// agenda runner.
func (s *Server) ActiveOn(date dateutil.Date) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.ActiveOn(date)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/tasks/{name}", s.handleGetTask)
	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("DELETE /api/tasks/{name}", s.handleDeleteTask)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	Start string    `json:"start"`
	Range string    `json:"range"`
	Tasks []taskDTO `json:"tasks"`
}

// taskDTO is a JSON-friendly view of one stored task.
type taskDTO struct {
	Name      string  `json:"name"`
	Class     string  `json:"class"`
	Type      string  `json:"type"`
	StartDate int     `json:"start_date"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	EndDate   int     `json:"end_date,omitempty"`
	Frequency string  `json:"frequency,omitempty"`
	Cancels   string  `json:"cancels,omitempty"`
	Active    bool    `json:"active"`
}

func (s *Server) toDTO(t model.Task) taskDTO {
	b := t.Common()
	dto := taskDTO{
		Name:      b.Name,
		Class:     string(t.Kind()),
		Type:      string(b.Subtype),
		StartDate: int(b.StartDate),
		StartTime: b.StartTime,
		EndTime:   b.EndTime(),
		Duration:  b.Duration,
		Active:    s.eng.IsActive(t),
	}
	switch v := t.(type) {
	case model.RecurringTask:
		dto.EndDate = int(v.EndDate)
		dto.Frequency = string(v.Frequency)
	case model.AntiTask:
		dto.Cancels = v.Cancels
	case model.TransientTask:
	}
	return dto
}

func (s *Server) toDTOs(tasks []model.Task) []taskDTO {
	out := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, s.toDTO(t))
	}
	return out
}

// handleSchedule lists the tasks of a query window.
//
// GET /api/schedule?start=20220102&range=week
//   - start: YYYYMMDD or YYYY-MM-DD (default today)
//   - range: day, week, month or calendar (default week)
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	start, rng, err := s.parseWindow(r, schedule.RangeWeek)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := s.eng.ViewSchedule(start, rng)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{
		Start: dateutil.Format(start),
		Range: string(rng),
		Tasks: s.toDTOs(tasks),
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.eng.ViewTask(name); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toDTOs(s.eng.Occurrences(name)))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.eng.AddTask(d); err != nil {
		writeDomainError(w, err)
		return
	}
	if !s.persistLocked(w) {
		return
	}
	writeJSON(w, http.StatusCreated, s.toDTOs(s.eng.Occurrences(d.Name)))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.eng.DeleteTask(name); err != nil {
		writeDomainError(w, err)
		return
	}
	if !s.persistLocked(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport returns the snapshot of the whole schedule, or of one query
// window when start is given.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var opts engine.ExportOptions
	if r.URL.Query().Get("start") != "" {
		start, rng, err := s.parseWindow(r, schedule.RangeMonth)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		opts = engine.ExportOptions{Start: start, Range: rng}
	}

	var buf bytes.Buffer
	s.mu.Lock()
	err := s.eng.WriteExport(&buf, opts)
	s.mu.Unlock()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.eng.Import(bytes.NewReader(body)); err != nil {
		writeDomainError(w, err)
		return
	}
	if !s.persistLocked(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	if s.icsCache == nil {
		body := s.eng.ExportICS()
		s.icsCache = &body
	}
	body := *s.icsCache
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// persistLocked drops derived caches and writes the state file after a
// mutation. It reports false after writing an error response.
func (s *Server) persistLocked(w http.ResponseWriter) bool {
	s.icsCache = nil
	if s.opts.StatePath == "" {
		return true
	}
	if err := s.eng.Save(s.opts.StatePath); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save state")
		return false
	}
	return true
}

func (s *Server) parseWindow(r *http.Request, def schedule.Range) (dateutil.Date, schedule.Range, error) {
	q := r.URL.Query()

	start := s.opts.Today()
	if v := q.Get("start"); v != "" {
		d, err := dateutil.ParseDate(v)
		if err != nil {
			return 0, "", model.Validationf("%s", err)
		}
		start = d
	}

	rng := def
	if v := q.Get("range"); v != "" {
		parsed, err := schedule.ParseRange(v)
		if err != nil {
			return 0, "", err
		}
		rng = parsed
	}
	return start, rng, nil
}

// statusFor maps a domain error code to an HTTP status.
func statusFor(err error) int {
	switch model.CodeOf(err) {
	case model.CodeValidation, model.CodeImport:
		return http.StatusBadRequest
	case model.CodeConflict:
		return http.StatusConflict
	case model.CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		appLog.Error("api request failed", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
