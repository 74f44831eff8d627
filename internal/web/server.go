package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/manager"
	"github.com/elys-network/clpm/internal/oracle"
	"github.com/elys-network/clpm/internal/reporter"
	"github.com/elys-network/clpm/internal/state"
	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/venue"
)

var webLogger = logger.GetForComponent("web_server")

const (
	defaultFeeWindow = 30 * 24 * time.Hour
	maxFeeWindow     = 366 * 24 * time.Hour
	requestTimeout   = 30 * time.Second
)

// PositionReader is the read-only view of the manager.
type PositionReader interface {
	Snapshot() manager.Snapshot
	Holdings(ctx context.Context) (types.HoldingsBalance, error)
	LivePosition(ctx context.Context) (types.Position, error)
}

// RecordStore is the read side of the state store.
type RecordStore interface {
	ListFeeRecords(ctx context.Context, from, to time.Time) ([]types.FeeRecord, error)
	ListOperations(ctx context.Context, limit int) ([]types.OperationRecord, error)
	FeeTotalsBySource(ctx context.Context, from, to time.Time) ([]state.FeeSourceTotal, error)
	GetOperationStats(ctx context.Context, since time.Time) ([]state.OperationStats, error)
	CheckHealth(ctx context.Context) error
}

// Reports produces fee summaries and target tracking.
type Reports interface {
	WeeklySummaries(ctx context.Context, weeks int) ([]reporter.PeriodSummary, error)
	TrackTarget(ctx context.Context, trailingWeeks int) (reporter.TargetStatus, error)
}

// AdvisoryFunc builds the advisory projection on demand.
type AdvisoryFunc func(ctx context.Context) (reporter.Advisory, error)

// CycleRunner triggers one compound attempt. The keeper implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) (types.CompoundResult, error)
}

// Config wires the server. Reports, Advisory, Compounder and Metrics are optional; their
// routes answer 404 when unset.
type Config struct {
	Port        string
	Manager     PositionReader
	Store       RecordStore
	Reports     Reports
	ReportWeeks int
	Advisory    AdvisoryFunc
	Compounder  CycleRunner
	Metrics     http.Handler
	Now         func() time.Time
}

// WebServer serves the manager's JSON API and metrics.
type WebServer struct {
	router  *mux.Router
	cfg     Config
	started time.Time
	server  *http.Server
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Manager == nil || cfg.Store == nil {
		return nil, errors.New("web server requires a manager and a store")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ReportWeeks <= 0 {
		cfg.ReportWeeks = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ws := &WebServer{
		router:  mux.NewRouter(),
		cfg:     cfg,
		started: cfg.Now(),
	}
	ws.setupRoutes()
	ws.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute, // POST /api/compound waits for receipts
		IdleTimeout:  60 * time.Second,
	}
	return ws, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.cfg.Metrics != nil {
		ws.router.Handle("/metrics", ws.cfg.Metrics).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/position", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/holdings", ws.handleGetHoldings).Methods("GET")
	api.HandleFunc("/fees", ws.handleGetFees).Methods("GET")
	api.HandleFunc("/operations", ws.handleGetOperations).Methods("GET")
	api.HandleFunc("/report/weekly", ws.handleWeeklyReport).Methods("GET")
	api.HandleFunc("/report/target", ws.handleTargetReport).Methods("GET")
	api.HandleFunc("/advisory", ws.handleAdvisory).Methods("GET")
	api.HandleFunc("/compound", ws.handleCompound).Methods("POST")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server and blocks until it stops.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.cfg.Port).Msg("Starting web server")

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Start returns nil afterwards.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// handleHealth reports database reachability and the manager's state
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := ws.cfg.Store.CheckHealth(ctx); err != nil {
		webLogger.Warn().Err(err).Msg("Database health check failed")
		dbHealthy = false
	}

	snap := ws.cfg.Manager.Snapshot()

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": ws.cfg.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(ws.cfg.Now().Sub(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "clpm-position-manager",
			"version": "1.0.0",
		},
		"manager_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"state":            snap.State,
			"position_id":      snap.Position.ID,
			"busy":             snap.Busy,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPosition returns the manager snapshot and, when a position is held, the venue's live view of it
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	snap := ws.cfg.Manager.Snapshot()
	response := map[string]interface{}{
		"snapshot": snap,
	}

	if snap.Position.IsActive() {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		live, err := ws.cfg.Manager.LivePosition(ctx)
		if err != nil {
			webLogger.Warn().Err(err).Uint64("positionID", uint64(snap.Position.ID)).Msg("Failed to read live position")
			response["live_error"] = err.Error()
		} else {
			response["live"] = live
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetHoldings returns the custody balances not deployed as liquidity
func (ws *WebServer) handleGetHoldings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	holdings, err := ws.cfg.Manager.Holdings(ctx)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to read holdings")
		ws.writeErrorResponse(w, http.StatusBadGateway, "Failed to read holdings")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, holdings)
}

// handleGetFees returns fee records and per-source totals for [from, to)
func (ws *WebServer) handleGetFees(w http.ResponseWriter, r *http.Request) {
	from, to, err := ws.parseWindow(r)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := ws.cfg.Store.ListFeeRecords(r.Context(), from, to)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list fee records")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve fee records")
		return
	}
	totals, err := ws.cfg.Store.FeeTotalsBySource(r.Context(), from, to)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to aggregate fee records")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to aggregate fee records")
		return
	}

	var totalUSD float64
	for _, t := range totals {
		totalUSD += t.TotalUSD
	}

	response := map[string]interface{}{
		"from":      from,
		"to":        to,
		"records":   records,
		"count":     len(records),
		"by_source": totals,
		"total_usd": totalUSD,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetOperations returns the most recent audit records and per-type stats
func (ws *WebServer) handleGetOperations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	ops, err := ws.cfg.Store.ListOperations(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list operations")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve operations")
		return
	}
	stats, err := ws.cfg.Store.GetOperationStats(r.Context(), ws.cfg.Now().Add(-defaultFeeWindow))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get operation stats")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve operation stats")
		return
	}

	response := map[string]interface{}{
		"operations": ops,
		"count":      len(ops),
		"limit":      limit,
		"stats_30d":  stats,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleWeeklyReport returns the trailing weekly summaries
func (ws *WebServer) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Reports == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Reporting is not configured")
		return
	}
	weeks := ws.cfg.ReportWeeks
	if weeksStr := r.URL.Query().Get("weeks"); weeksStr != "" {
		parsed, err := strconv.Atoi(weeksStr)
		if err != nil || parsed <= 0 || parsed > reporter.MaxReportWeeks {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid weeks parameter")
			return
		}
		weeks = parsed
	}

	summaries, err := ws.cfg.Reports.WeeklySummaries(r.Context(), weeks)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to build weekly report")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to build weekly report")
		return
	}
	if wantsTable(r) {
		ws.writeTableResponse(w, func(out io.Writer) error { return reporter.RenderWeekly(out, summaries) })
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"weeks":    summaries,
		"count":    len(summaries),
		"trailing": weeks,
	})
}

// handleTargetReport returns the target tracking status
func (ws *WebServer) handleTargetReport(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Reports == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Reporting is not configured")
		return
	}
	st, err := ws.cfg.Reports.TrackTarget(r.Context(), ws.cfg.ReportWeeks)
	if err != nil {
		if errors.Is(err, reporter.ErrInvalidPeriod) {
			ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
			return
		}
		webLogger.Error().Err(err).Msg("Failed to track target")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to track target")
		return
	}
	if wantsTable(r) {
		ws.writeTableResponse(w, func(out io.Writer) error { return reporter.RenderTarget(out, st) })
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, st)
}

// handleAdvisory returns the display-only yield projection
func (ws *WebServer) handleAdvisory(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Advisory == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Advisory is not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
	defer cancel()

	adv, err := ws.cfg.Advisory(ctx)
	if err != nil {
		webLogger.Warn().Err(err).Msg("Failed to build advisory")
		ws.writeErrorResponse(w, http.StatusBadGateway, "Failed to build advisory: "+err.Error())
		return
	}
	if wantsTable(r) {
		ws.writeTableResponse(w, func(out io.Writer) error { return reporter.RenderAdvisory(out, adv) })
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, adv)
}

// handleCompound runs one keeper cycle. Compounding is unprivileged, so no authentication is needed.
func (ws *WebServer) handleCompound(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Compounder == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Compounding is not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	res, err := ws.cfg.Compounder.RunCycle(ctx)
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), err.Error())
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

// statusForError maps lifecycle errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, manager.ErrNoFeesToCompound),
		errors.Is(err, manager.ErrNoActivePosition),
		errors.Is(err, manager.ErrReentrantCall),
		errors.Is(err, manager.ErrCloseIncomplete):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrStaleOracle), errors.Is(err, oracle.ErrInvalidOracleValue):
		return http.StatusServiceUnavailable
	case errors.Is(err, venue.ErrVenue):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parseWindow reads RFC3339 from/to query parameters, defaulting to the last 30 days.
func (ws *WebServer) parseWindow(r *http.Request) (time.Time, time.Time, error) {
	to := ws.cfg.Now().UTC()
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid 'to' timestamp, expected RFC3339")
		}
		to = t
	}
	from := to.Add(-defaultFeeWindow)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid 'from' timestamp, expected RFC3339")
		}
		from = t
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("'to' must be after 'from'")
	}
	if to.Sub(from) > maxFeeWindow {
		return time.Time{}, time.Time{}, errors.New("window cannot exceed 366 days")
	}
	return from, to, nil
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": ws.cfg.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// wantsTable reports whether the client asked for the plain-text table rendering.
func wantsTable(r *http.Request) bool {
	return r.URL.Query().Get("format") == "table"
}

// writeTableResponse renders into a buffer first so a render failure can still become a 500.
func (ws *WebServer) writeTableResponse(w http.ResponseWriter, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		webLogger.Error().Err(err).Msg("Failed to render table")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to render table")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		webLogger.Error().Err(err).Msg("Failed to write table response")
	}
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
