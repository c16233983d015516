// Package api serves the public REST surface: bills, members, speeches,
// issues, the policy category tree, and semantic speech search. Read
// endpoints are open; editorial writes require a bearer token.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/metrics"
	"github.com/seiji-watch/diet-tracker/internal/search"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

// BillReader serves bill reads.
type BillReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Bill, error)
	List(ctx context.Context, filter store.BillFilter, page store.Page) ([]*domain.Bill, int, error)
}

// MemberReader serves member reads.
type MemberReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	List(ctx context.Context, house domain.House, page store.Page) ([]*domain.Member, int, error)
}

// SpeechReader serves speech reads.
type SpeechReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Speech, error)
	List(ctx context.Context, filter store.SpeechFilter, page store.Page) ([]*domain.Speech, int, error)
}

// IssueStore serves issue reads and editorial creation.
type IssueStore interface {
	Create(ctx context.Context, in *domain.Issue) (*domain.Issue, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Issue, error)
	List(ctx context.Context, status domain.BillStatus, page store.Page) ([]*domain.Issue, int, error)
}

// CategoryStore serves the taxonomy tree and bill link management.
type CategoryStore interface {
	Tree(ctx context.Context) ([]*domain.CategoryTree, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.PolicyCategory, error)
	BillLinks(ctx context.Context, billID uuid.UUID) ([]domain.BillCategoryLink, error)
	LinkBill(ctx context.Context, link domain.BillCategoryLink) error
	UnlinkBill(ctx context.Context, billID, categoryID uuid.UUID) error
}

// SpeechSearcher serves semantic speech search.
type SpeechSearcher interface {
	Query(ctx context.Context, query string, opts ...search.Option) ([]search.Result, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Bills      BillReader     // Required
	Members    MemberReader   // Required
	Speeches   SpeechReader   // Required
	Issues     IssueStore     // Required
	Categories CategoryStore  // Required
	Search     SpeechSearcher // Optional: nil disables /api/search/speeches
	Pool       *pgxpool.Pool  // Optional: nil disables pool ping in /ready

	JWTSecret   []byte   // Required: 32+ bytes, HS256 verification key
	CORSOrigins []string // Allowed origins for CORS
	IsDev       bool     // Disables HSTS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Bills == nil, cfg.Members == nil, cfg.Speeches == nil,
		cfg.Issues == nil, cfg.Categories == nil:
		return nil, errors.New("all stores are required")
	case len(cfg.JWTSecret) < 32:
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	auth := &authenticator{secret: cfg.JWTSecret, logger: logger}

	bh := &billHandler{bills: cfg.Bills, categories: cfg.Categories, logger: logger}
	mh := &memberHandler{members: cfg.Members, logger: logger}
	sh := &speechHandler{speeches: cfg.Speeches, logger: logger}
	ih := &issueHandler{issues: cfg.Issues, logger: logger}
	ch := newCategoryHandler(cfg.Categories, logger)

	mux := http.NewServeMux()

	// Bills
	mux.HandleFunc("GET /api/bills", bh.list)
	mux.HandleFunc("GET /api/bills/{id}", bh.get)
	mux.HandleFunc("POST /api/bills/{id}/policy-categories", auth.require(bh.linkCategory))
	mux.HandleFunc("DELETE /api/bills/{id}/policy-categories/{categoryID}", auth.require(bh.unlinkCategory))

	// Members
	mux.HandleFunc("GET /api/members", mh.list)
	mux.HandleFunc("GET /api/members/{id}", mh.get)

	// Speeches
	mux.HandleFunc("GET /api/speeches", sh.list)
	mux.HandleFunc("GET /api/speeches/{id}", sh.get)

	// Issues
	mux.HandleFunc("GET /api/issues", ih.list)
	mux.HandleFunc("GET /api/issues/{id}", ih.get)
	mux.HandleFunc("POST /api/issues", auth.require(ih.create))

	// Policy category tree
	mux.HandleFunc("GET /api/policy-categories", ch.tree)
	mux.HandleFunc("GET /api/policy-categories/{id}", ch.get)

	// Semantic search, only registered when a searcher is wired
	if cfg.Search != nil {
		qh := &searchHandler{searcher: cfg.Search, logger: logger}
		mux.HandleFunc("GET /api/search/speeches", qh.speeches)
	}

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → Metrics → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = metricsMiddleware()(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps probes and metrics outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
