package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	authapi "huddle/cmd/internal/auth/api"
)

type httpDeps struct {
	log     Logger
	cfg     Config
	pool    *pgxpool.Pool
	rdb     redis.UniversalClient
	auth    *authapi.Handler
	gate    *authapi.Gate
	reg     *prometheus.Registry
	metrics *httpMetrics
}

// newHTTPHandler registers every route and wraps the mux in the middleware
// chain: request id, logging, security headers, metrics, credential gate.
func newHTTPHandler(d httpDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.cfg.ReadinessRequireDB && d.pool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if d.pool != nil {
			if err := PingDB(r.Context(), d.pool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				d.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}
		if d.rdb != nil {
			if err := PingRedis(r.Context(), d.rdb, 2*time.Second); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				d.log.Info("readyz.redis.not_ready", "err", err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if d.reg != nil {
		mux.Handle("GET /metrics", metricsHandler(d.reg))
	}

	if d.auth != nil {
		d.auth.Register(mux)
	}

	var h http.Handler = mux
	if d.gate != nil {
		h = d.gate.Middleware(h)
	}
	if d.metrics != nil {
		h = d.metrics.instrument(mux, h)
	}
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, d.log)
	return WithRequestID(h)
}
