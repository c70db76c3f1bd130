package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stokenvault/internal/ingestion"
	"stokenvault/internal/observability"
	"stokenvault/internal/projection"
	"stokenvault/internal/query"
)

// HTTPServer serves the query API, the command submission endpoint, admin
// operations, health probes and Prometheus metrics.
type HTTPServer struct {
	httpServer *http.Server
	addr       string
}

// HTTPDeps holds everything the HTTP handlers need.
type HTTPDeps struct {
	DB          *sql.DB
	Query       *query.Service
	CommandChan chan<- ingestion.RawCommand
	Health      *observability.HealthChecker
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
}

func NewHTTPServer(addr string, deps *HTTPDeps) *HTTPServer {
	h := &handlers{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/vaults/{id}", h.instrument("get_vault", h.getVault))
	mux.HandleFunc("GET /v1/vaults/{id}/requests/{rid}", h.instrument("get_request", h.getRequest))
	mux.HandleFunc("GET /v1/vaults/{id}/balances/{addr}", h.instrument("get_balance", h.getBalance))
	mux.HandleFunc("GET /v1/vaults/{id}/price-history", h.instrument("price_history", h.getPriceHistory))
	mux.HandleFunc("GET /v1/vaults/{id}/events", h.instrument("get_events", h.getEvents))
	mux.HandleFunc("POST /v1/commands", h.instrument("submit_command", h.submitCommand))
	mux.HandleFunc("GET /v1/admin/integrity", h.instrument("verify_integrity", h.verifyIntegrity))
	mux.HandleFunc("POST /v1/admin/rebuild-projections", h.instrument("rebuild_projections", h.rebuildProjections))

	mux.HandleFunc("/healthz", deps.Health.LivenessHandler)
	mux.HandleFunc("/readyz", deps.Health.ReadinessHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	return &HTTPServer{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		addr:       addr,
	}
}

// Start runs the HTTP server until ctx is cancelled (blocking).
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type handlers struct {
	deps *HTTPDeps
}

func (h *handlers) instrument(endpoint string, fn func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := fn(w, r)
		if m := h.deps.Metrics; m != nil {
			m.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			m.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

func (h *handlers) getVault(w http.ResponseWriter, r *http.Request) int {
	resp, err := h.deps.Query.GetVault(r.Context(), r.PathValue("id"))
	return writeResult(w, resp, err)
}

func (h *handlers) getRequest(w http.ResponseWriter, r *http.Request) int {
	rid, err := strconv.ParseUint(r.PathValue("rid"), 10, 64)
	if err != nil {
		return writeError(w, http.StatusBadRequest, "invalid request id")
	}
	resp, err := h.deps.Query.GetRequest(r.Context(), r.PathValue("id"), rid)
	return writeResult(w, resp, err)
}

func (h *handlers) getBalance(w http.ResponseWriter, r *http.Request) int {
	resp, err := h.deps.Query.GetBalance(r.Context(), r.PathValue("id"), r.PathValue("addr"))
	return writeResult(w, resp, err)
}

func (h *handlers) getPriceHistory(w http.ResponseWriter, r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := h.deps.Query.GetPriceHistory(r.Context(), r.PathValue("id"), limit)
	return writeResult(w, resp, err)
}

func (h *handlers) getEvents(w http.ResponseWriter, r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var before *int64
	if v := r.URL.Query().Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return writeError(w, http.StatusBadRequest, "invalid before cursor")
		}
		before = &n
	}

	events, err := h.deps.Query.GetEvents(r.Context(), r.PathValue("id"), limit, before)
	return writeResult(w, map[string]interface{}{"events": events}, err)
}

// submitCommand accepts a command envelope over HTTP and feeds it into the
// same channel the NATS subscriber uses. Intended for tooling and tests;
// production producers publish to JetStream.
func (h *handlers) submitCommand(w http.ResponseWriter, r *http.Request) int {
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		return writeError(w, http.StatusBadRequest, "read body: "+err.Error())
	}

	raw := ingestion.RawCommand{
		Subject:   "http",
		Data:      buf,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}

	// Reject malformed envelopes up front; the dispatcher handles the rest.
	if _, err := ingestion.ParseCommand(raw); err != nil {
		return writeError(w, http.StatusBadRequest, err.Error())
	}

	select {
	case h.deps.CommandChan <- raw:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"accepted":true}`)
		return http.StatusAccepted
	case <-r.Context().Done():
		return writeError(w, http.StatusServiceUnavailable, "command queue unavailable")
	}
}

func (h *handlers) verifyIntegrity(w http.ResponseWriter, r *http.Request) int {
	report, err := h.deps.Query.VerifyIntegrity(r.Context())
	return writeResult(w, report, err)
}

func (h *handlers) rebuildProjections(w http.ResponseWriter, r *http.Request) int {
	if err := projection.RebuildProjections(r.Context(), h.deps.DB); err != nil {
		return writeError(w, http.StatusInternalServerError, err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"rebuilt":true}`)
	return http.StatusOK
}

// --- helpers ---

func writeResult(w http.ResponseWriter, v interface{}, err error) int {
	if errors.Is(err, query.ErrNotFound) {
		return writeError(w, http.StatusNotFound, "not found")
	}
	if err != nil {
		return writeError(w, http.StatusInternalServerError, err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: encode response: %v", err)
	}
	return http.StatusOK
}

func writeError(w http.ResponseWriter, status int, msg string) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
	return status
}
