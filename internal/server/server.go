package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hazz-dev/statusbot/internal/checker"
	"github.com/hazz-dev/statusbot/internal/command"
	"github.com/hazz-dev/statusbot/internal/notify"
	"github.com/hazz-dev/statusbot/internal/outage"
	"github.com/hazz-dev/statusbot/internal/registry"
	"github.com/hazz-dev/statusbot/internal/report"
	"github.com/hazz-dev/statusbot/internal/scheduler"
	"github.com/hazz-dev/statusbot/internal/storage"
)

// ServerStore defines the storage queries the server needs.
type ServerStore interface {
	AllLatest(ctx context.Context) ([]storage.Check, error)
	LatestCheck(ctx context.Context, service string) (*storage.Check, error)
	ServiceHistory(ctx context.Context, service string, limit, offset int) ([]storage.Check, int, error)
	UptimePercent(ctx context.Context, service string, last int) (float64, error)
	RecentOutages(ctx context.Context, limit int) ([]storage.Outage, error)
}

// Commands is the command surface exposed over HTTP.
type Commands interface {
	QueryStatus(ctx context.Context, channel string) (report.FullCheck, error)
	SetNotifications(action, channel string) (string, error)
	NotificationState() scheduler.State
}

// OutageView reads current outage state.
type OutageView interface {
	Records() []outage.Record
	DownSince(service string) (time.Time, bool)
}

// Server holds the chi router and its dependencies.
type Server struct {
	store    ServerStore
	registry *registry.Registry
	commands Commands
	outages  OutageView
	router   chi.Router
	logger   *slog.Logger
}

// New creates a new Server and registers all routes.
func New(store ServerStore, reg *registry.Registry, cmds Commands, outages OutageView, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    store,
		registry: reg,
		commands: cmds,
		outages:  outages,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/notifications", s.handleGetNotifications)
	r.Post("/api/notifications", s.handleSetNotifications)
	r.Get("/api/outages", s.handleOutages)
	r.Get("/api/services", s.handleListServices)
	r.Get("/api/services/{name}", s.handleGetService)
	r.Get("/api/services/{name}/history", s.handleGetServiceHistory)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusResult struct {
	Service    string `json:"service"`
	Outcome    string `json:"outcome"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMs  *int64 `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

type statusResponse struct {
	CheckedAt  time.Time      `json:"checked_at"`
	AllHealthy bool           `json:"all_healthy"`
	Report     notify.Report  `json:"report"`
	Results    []statusResult `json:"results"`
}

func toStatusResult(res checker.Result) statusResult {
	sr := statusResult{
		Service:    res.ServiceName,
		Outcome:    string(res.Outcome),
		StatusCode: res.StatusCode,
		Error:      res.Error,
	}
	if res.Responded() {
		ms := res.Latency.Milliseconds()
		sr.LatencyMs = &ms
	}
	return sr
}

// handleStatus runs an on-demand check. With ?channel= the report is also
// delivered to that channel.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	fc, err := s.commands.QueryStatus(r.Context(), channel)

	resp := statusResponse{
		CheckedAt:  fc.CheckedAt,
		AllHealthy: fc.AllHealthy,
		Report:     fc.Report(),
		Results:    make([]statusResult, 0, len(fc.Results)),
	}
	for _, res := range fc.Results {
		resp.Results = append(resp.Results, toStatusResult(res))
	}

	if err != nil {
		s.logger.Error("QueryStatus", "channel", channel, "error", err)
		writeEnvelope(w, http.StatusBadGateway, envelope{Data: resp, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notificationState(s.commands.NotificationState()))
}

type notificationStateResponse struct {
	scheduler.State
	IntervalSeconds int64 `json:"interval_seconds,omitempty"`
}

func notificationState(st scheduler.State) notificationStateResponse {
	return notificationStateResponse{State: st, IntervalSeconds: int64(st.Interval / time.Second)}
}

type setNotificationsRequest struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type setNotificationsResponse struct {
	Message string                    `json:"message"`
	State   notificationStateResponse `json:"state"`
}

func (s *Server) handleSetNotifications(w http.ResponseWriter, r *http.Request) {
	var req setNotificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := s.commands.SetNotifications(req.Action, req.Channel)
	switch {
	case errors.Is(err, command.ErrInvalidAction), errors.Is(err, command.ErrMissingChannel):
		writeError(w, http.StatusBadRequest, msg)
		return
	case err != nil:
		s.logger.Error("SetNotifications", "action", req.Action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, setNotificationsResponse{
		Message: msg,
		State:   notificationState(s.commands.NotificationState()),
	})
}

type openOutage struct {
	Service       string    `json:"service"`
	DownSince     time.Time `json:"down_since"`
	DownForSecond int64     `json:"down_for_seconds"`
}

type outagesResponse struct {
	Current []openOutage     `json:"current"`
	Recent  []storage.Outage `json:"recent"`
}

func (s *Server) handleOutages(w http.ResponseWriter, r *http.Request) {
	records := s.outages.Records()
	current := make([]openOutage, 0, len(records))
	for _, rec := range records {
		current = append(current, openOutage{
			Service:       rec.Service,
			DownSince:     rec.DownSince,
			DownForSecond: int64(time.Since(rec.DownSince) / time.Second),
		})
	}

	recent, err := s.store.RecentOutages(r.Context(), 20)
	if err != nil {
		s.logger.Error("RecentOutages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recent == nil {
		recent = []storage.Outage{}
	}

	writeJSON(w, http.StatusOK, outagesResponse{Current: current, Recent: recent})
}

type serviceDetail struct {
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Status      string     `json:"status"`
	StatusCode  *int       `json:"status_code"`
	LatencyMs   *int64     `json:"latency_ms"`
	UptimePct   float64    `json:"uptime_percent"`
	LastChecked *time.Time `json:"last_checked"`
	DownSince   *time.Time `json:"down_since"`
}

func (s *Server) detail(name, url string, latest *storage.Check) serviceDetail {
	d := serviceDetail{
		Name:   name,
		URL:    url,
		Status: "unknown",
	}
	if latest != nil {
		d.Status = latest.Outcome
		d.StatusCode = latest.StatusCode
		d.LatencyMs = latest.LatencyMs
		t := latest.CheckedAt
		d.LastChecked = &t
	}
	if since, ok := s.outages.DownSince(name); ok {
		d.DownSince = &since
	}
	return d
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	latestChecks, err := s.store.AllLatest(r.Context())
	if err != nil {
		s.logger.Error("AllLatest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	byService := make(map[string]*storage.Check, len(latestChecks))
	for i := range latestChecks {
		byService[latestChecks[i].Service] = &latestChecks[i]
	}

	services := s.registry.All()
	details := make([]serviceDetail, 0, len(services))
	for _, svc := range services {
		c := byService[svc.Name]
		d := s.detail(svc.Name, svc.URL, c)
		if c != nil {
			pct, _ := s.store.UptimePercent(r.Context(), svc.Name, 100)
			d.UptimePct = pct
		}
		details = append(details, d)
	}

	writeJSON(w, http.StatusOK, details)
}

type serviceDetailResponse struct {
	serviceDetail
	RecentChecks []storage.Check `json:"recent_checks"`
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	svc, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}

	latest, err := s.store.LatestCheck(r.Context(), name)
	if err != nil {
		s.logger.Error("LatestCheck", "service", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	history, _, err := s.store.ServiceHistory(r.Context(), name, 10, 0)
	if err != nil {
		s.logger.Error("ServiceHistory", "service", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	d := s.detail(svc.Name, svc.URL, latest)
	d.UptimePct, _ = s.store.UptimePercent(r.Context(), name, 100)

	writeJSON(w, http.StatusOK, serviceDetailResponse{
		serviceDetail: d,
		RecentChecks:  history,
	})
}

type historyResponse struct {
	Checks []storage.Check `json:"checks"`
	Total  int             `json:"total"`
}

func (s *Server) handleGetServiceHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, ok := s.registry.Get(name); !ok {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	checks, total, err := s.store.ServiceHistory(r.Context(), name, limit, offset)
	if err != nil {
		s.logger.Error("ServiceHistory", "service", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Checks: checks,
		Total:  total,
	})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
