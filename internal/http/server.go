package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/config"
	"expensetracker/internal/ledger"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
)

// Options configures the server shell around the API.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64

	// RateLimitPerMinute limits POST /expenses per client; 0 disables it.
	RateLimitPerMinute int

	Logger  *log.Logger
	Metrics *metrics.Metrics

	// Ready backs /readyz. When nil the ledger is used if it can be pinged.
	Ready Pinger
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxBodyBytes:       config.DefaultMaxBodyBytes,
		RateLimitPerMinute: 60,
	}
}

// OptionsFromConfig maps the application config onto server options.
func OptionsFromConfig(cfg *config.Config, logger *log.Logger, m *metrics.Metrics) Options {
	return Options{
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		IdleTimeout:        cfg.IdleTimeout,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Metrics:            m,
	}
}

type Server struct {
	http.Server
	api          *API
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer wires the ledger API, health endpoints and middleware chain.
func NewServer(addr string, l ledger.Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Ready == nil {
		if p, ok := l.(Pinger); ok {
			opts.Ready = p
		}
	}

	detector := security.NewDetector()
	api := NewAPI(l, WithMaxBodyBytes(opts.MaxBodyBytes))

	s := &Server{api: api}

	var record http.Handler = http.HandlerFunc(api.HandleRecordExpense)
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		record = s.limiter.Middleware(detector.ExtractClientIP, onRateLimit)(record)
		if err := opts.Metrics.RegisterRateLimiter(s.limiter); err != nil {
			opts.Logger.Warn("Rate limiter metrics unavailable", log.FieldError, err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("POST /expenses", withRoute(record))
	mux.Handle("GET /expenses/{date}", withRoute(http.HandlerFunc(api.HandleExpensesOn)))
	mux.Handle("GET /healthz", withRoute(http.HandlerFunc(handleHealth)))
	mux.Handle("GET /readyz", withRoute(handleReady(opts.Ready)))
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", withRoute(opts.Metrics.Handler()))
	}

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = trace.NewMiddleware(detector.ExtractClientIP, opts.Logger, opts.Metrics).Middleware(handler)

	s.Server = http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    opts.ReadTimeout,
		WriteTimeout:   opts.WriteTimeout,
		IdleTimeout:    opts.IdleTimeout,
		MaxHeaderBytes: 1 << 16, // 64KB
		ErrorLog:       slog.NewLogLogger(opts.Logger.Handler(), slog.LevelError),
	}
	return s
}

// Shutdown stops background goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
	})
	return s.Server.Shutdown(ctx)
}
