package http

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

func init() {
	// Values leave the API as JSON numbers, e.g. 10.5 rather than "10.5".
	decimal.MarshalJSONWithoutQuotes = true
}

// TransactionService is the single-transaction side used by the handlers.
type TransactionService interface {
	Create(ctx context.Context, in services.CreateTransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
	Overview(ctx context.Context) (services.Overview, error)
}

// Importer bulk-loads transactions from a row source.
type Importer interface {
	Import(ctx context.Context, src services.RowSource) (services.ImportResult, error)
}

// Pinger is implemented by stores that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr               string
	UploadDir          string
	MaxUploadBytes     int64
	RateLimitPerMinute int
	// Pinger is optional; readiness skips the store check without it.
	Pinger Pinger
	Logger *log.Logger
}

// Server wraps http.Server with the ledger routes and middleware.
type Server struct {
	http.Server

	transactions   TransactionService
	importer       Importer
	pinger         Pinger
	uploadDir      string
	maxUploadBytes int64
	logger         *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime               time.Time
	transactionsCreated  int64
	transactionsImported int64
	transactionsDeleted  int64
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, ts TransactionService, imp Importer) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		transactions:     ts,
		importer:         imp,
		pinger:           opts.Pinger,
		uploadDir:        opts.UploadDir,
		maxUploadBytes:   opts.MaxUploadBytes,
		logger:           opts.Logger,
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		appMetrics: &appMetrics{uptime: time.Now()},
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	limitWrites := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
	})

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.Handle("POST /transactions", limitWrites(http.HandlerFunc(s.handleCreateTransaction)))
	mux.Handle("POST /transactions/import", limitWrites(http.HandlerFunc(s.handleImportTransactions)))
	mux.Handle("DELETE /transactions/{id}", limitWrites(http.HandlerFunc(s.handleDeleteTransaction)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	recovery := security.Recovery(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	})

	// Outermost first: recovery, headers, detection, tracing, logger.
	var h http.Handler = mux
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(s.logger)(h)
	h = s.traceMiddleware.Middleware(h)
	h = s.securityDetector.Middleware(h)
	h = headers.Middleware(h)
	h = recovery(h)
	return h
}

// Shutdown stops the rate limiter and drains in-flight requests. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
