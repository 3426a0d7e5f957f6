package faucet

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Funder is the entry point the HTTP handler serves
type Funder interface {
	Fund(ctx context.Context, recipient string) (Result, error)
}

// RouterConfig tunes the HTTP surface
type RouterConfig struct {
	// RatePerMinute limits requests per client IP; zero disables the limit
	RatePerMinute int
	EnableMetrics bool
}

type fundRequest struct {
	Address string `json:"address"`
}

type fundResponse struct {
	OK bool `json:"ok"`
	Result
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// NewRouter builds the faucet HTTP API
func NewRouter(funder Funder, cfg RouterConfig, l *zap.Logger) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(120 * time.Second))

	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, 1*time.Minute))
	}

	if cfg.EnableMetrics {
		mux.Handle("/server/metrics", promhttp.Handler())
	}

	mux.Get("/server/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"tempo-swap-faucet"}`))
	})

	mux.Post("/api/faucet", func(w http.ResponseWriter, r *http.Request) {
		var req fundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
			return
		}

		res, err := funder.Fund(r.Context(), req.Address)
		if err != nil {
			l.Warn("faucet request failed",
				zap.String("address", req.Address),
				zap.String("http_request_id", middleware.GetReqID(r.Context())),
				zap.Error(err))
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, fundResponse{OK: true, Result: res})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
