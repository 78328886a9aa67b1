package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clientpulse/clientpulse/pkg/types"
	"github.com/clientpulse/clientpulse/server/internal/engine"
)

// requestTimeout bounds one API call. Reports fan out to every endpoint
// twice, so this is well above the probe timeouts.
const requestTimeout = 60 * time.Second

const defaultReportLimit = 20

// Engine is the subset of *engine.Engine served over HTTP.
type Engine interface {
	CheckHealth(ctx context.Context, clientID string) (types.ClientHealthResult, error)
	GetPerformance(ctx context.Context, clientID, timeframe string) (types.PerformanceReport, error)
	ConfigureAlert(ctx context.Context, clientID, metric string, threshold float64, comparator, channel string) (engine.AlertConfiguration, error)
	TestAlert(ctx context.Context, clientID, metric string, threshold float64, comparator string) (types.AlertTestResult, error)
	GenerateReport(ctx context.Context, clientID, kind string, includeRecommendations bool) (types.Report, error)
	ListReports(ctx context.Context, clientID string, limit int) ([]types.Report, error)
	GetAllClientsStatus(ctx context.Context, includeInactive bool) (types.AllClientsStatus, error)
	RegisterClient(ctx context.Context, c *types.Client) (types.ClientHealthResult, error)
	ListClients(ctx context.Context, includeInactive bool) ([]*types.Client, error)
	ClientDetails(ctx context.Context, clientID string) (types.ClientDetails, error)
	SystemTrends(ctx context.Context, days int) (types.SystemTrends, error)
}

// Handler is the HTTP handler for the clientpulse API.
type Handler struct {
	eng Engine
	r   chi.Router
}

// New creates a Handler wired to eng and registers all routes. authMW guards
// /api/v1; pass nil to serve it unauthenticated.
func New(eng Engine, authMW func(http.Handler) http.Handler) http.Handler {
	h := &Handler{eng: eng, r: chi.NewRouter()}

	h.r.Use(middleware.RequestID)
	h.r.Use(middleware.RealIP)
	h.r.Use(middleware.Recoverer)
	h.r.Use(middleware.Timeout(requestTimeout))

	h.r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "route not found")
	})

	h.r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	h.r.Handle("/metrics", promhttp.Handler())

	h.r.Route("/api/v1", func(r chi.Router) {
		if authMW != nil {
			r.Use(authMW)
		}
		r.Get("/status", h.status)
		r.Get("/trends", h.trends)
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.listClients)
			r.Post("/", h.registerClient)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/details", h.details)
				r.Get("/health", h.health)
				r.Get("/performance", h.performance)
				r.Put("/alerts/{metric}", h.configureAlert)
				r.Post("/alerts/{metric}/test", h.testAlert)
				r.Post("/reports", h.generateReport)
				r.Get("/reports", h.listReports)
			})
		})
	})

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.r.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// status returns GET /api/v1/status, the all-clients dashboard.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	inactive, err := boolParam(r, "include_inactive")
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.eng.GetAllClientsStatus(r.Context(), inactive)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

// trends returns GET /api/v1/trends?days=, the system-wide daily view.
func (h *Handler) trends(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonErr(w, http.StatusBadRequest, fmt.Sprintf("days %q must be a positive integer", v))
			return
		}
		days = n
	}
	res, err := h.eng.SystemTrends(r.Context(), days)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	inactive, err := boolParam(r, "include_inactive")
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	clients, err := h.eng.ListClients(r.Context(), inactive)
	if err != nil {
		fail(w, r, err)
		return
	}
	if clients == nil {
		clients = []*types.Client{}
	}
	jsonResp(w, http.StatusOK, clients)
}

// registerClient returns POST /api/v1/clients: 201 with the first health check.
func (h *Handler) registerClient(w http.ResponseWriter, r *http.Request) {
	var c types.Client
	if !decodeBody(w, r, &c) {
		return
	}
	res, err := h.eng.RegisterClient(r.Context(), &c)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusCreated, res)
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.ClientDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.CheckHealth(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	res, err := h.eng.GetPerformance(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("timeframe"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *Handler) configureAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if !decodeBody(w, r, &req) || !requireThreshold(w, req) {
		return
	}
	res, err := h.eng.ConfigureAlert(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "metric"),
		*req.Threshold, req.Comparator, req.Channel)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *Handler) testAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if !decodeBody(w, r, &req) || !requireThreshold(w, req) {
		return
	}
	res, err := h.eng.TestAlert(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "metric"),
		*req.Threshold, req.Comparator)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *Handler) generateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rep, err := h.eng.GenerateReport(r.Context(), chi.URLParam(r, "id"), req.Kind, req.recommendations())
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResp(w, http.StatusCreated, rep)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonErr(w, http.StatusBadRequest, fmt.Sprintf("limit %q must be a positive integer", v))
			return
		}
		limit = n
	}
	reps, err := h.eng.ListReports(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if reps == nil {
		reps = []types.Report{}
	}
	jsonResp(w, http.StatusOK, reps)
}

// --- helpers ----------------------------------------------------------------

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("api: request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	jsonErr(w, code, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func requireThreshold(w http.ResponseWriter, req alertRequest) bool {
	if req.Threshold == nil {
		jsonErr(w, http.StatusBadRequest, "threshold is required")
		return false
	}
	return true
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s %q must be a boolean", name, v)
	}
	return b, nil
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
