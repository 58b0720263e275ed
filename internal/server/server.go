// Package server implements the HTTP surface for the effort report
// service: an HTML report page, a JSON API, and cache administration.
package server

import (
	"context"
	"embed"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/prtally/prtally/internal/report"
	"github.com/prtally/prtally/pkg/track"
)

const (
	// DefaultRateLimit is the default per-IP requests per second limit.
	DefaultRateLimit = 10
	// DefaultRateBurst is the default burst size for rate limiting.
	DefaultRateBurst = 20
	// errorKey is the logging key for error messages.
	errorKey = "error"
)

// tokenPattern matches common GitHub token formats for sanitization.
var tokenPattern = regexp.MustCompile(
	`(?i)(ghp_[a-zA-Z0-9]{36}|gho_[a-zA-Z0-9]{36}|ghs_[a-zA-Z0-9]{36}|` +
		`github_pat_[a-zA-Z0-9_]{82}|Bearer\s+[a-zA-Z0-9._\-]+|token\s+[a-zA-Z0-9._\-]+)`,
)

//go:embed static/* templates/*
var assetFS embed.FS

// Reporter produces aggregated reports. *report.Service satisfies it;
// tests swap in a fake.
type Reporter interface {
	Report(ctx context.Context, p report.Params) (*track.Report, bool, error)
	Labels(ctx context.Context, org, since string) ([]string, error)
	InvalidateCaches()
}

// Pinger probes upstream connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Org, Labels, Since, and Until are the
// defaults a request can override with query parameters.
type Options struct {
	Reporter     Reporter
	Pinger       Pinger
	Org          string
	Labels       []string
	Since        string
	Until        string
	FetchTimeout time.Duration
	RateLimit    int
	RateBurst    int
	Logger       *slog.Logger
}

// Server handles HTTP requests for the effort report service.
type Server struct {
	logger         *slog.Logger
	reporter       Reporter
	pinger         Pinger
	csrfProtection *http.CrossOriginProtection
	opts           Options

	// Per-IP rate limiting.
	ipLimiters   map[string]*rate.Limiter
	ipLimitersMu sync.RWMutex
}

// New creates a Server. A nil Pinger degrades /healthz to a liveness
// check without the upstream probe.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 60 * time.Second
	}

	// Cross-origin POSTs are rejected via Sec-Fetch-Site and Origin
	// headers. GET, HEAD, and OPTIONS pass through untouched.
	return &Server{
		logger:         opts.Logger.With("component", "server"),
		reporter:       opts.Reporter,
		pinger:         opts.Pinger,
		csrfProtection: http.NewCrossOriginProtection(),
		opts:           opts,
		ipLimiters:     make(map[string]*rate.Limiter),
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.csrfProtection.Check(r); err != nil {
		s.logger.WarnContext(ctx, "cross-origin request denied",
			"origin", r.Header.Get("Origin"),
			"path", r.URL.Path,
			"method", r.Method,
			errorKey, err)
		http.Error(w, "Cross-origin request denied", http.StatusForbidden)
		return
	}

	// Security headers.
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")

	clientIP := clientIP(r)
	if !s.limiter(ctx, clientIP).Allow() {
		s.logger.WarnContext(ctx, "rate limit exceeded", "client_ip", clientIP, "path", r.URL.Path)
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	switch {
	case r.URL.Path == "/":
		s.requireGet(w, r, s.handleReportPage)
	case r.URL.Path == "/api/report":
		s.requireGet(w, r, s.handleReportAPI)
	case r.URL.Path == "/api/labels":
		s.requireGet(w, r, s.handleLabels)
	case r.URL.Path == "/healthz":
		s.requireGet(w, r, s.handleHealth)
	case r.URL.Path == "/cache/invalidate":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleInvalidate(w, r)
	case strings.HasPrefix(r.URL.Path, "/static/"):
		s.handleStatic(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (*Server) requireGet(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h(w, r)
}

// limiter returns the rate limiter for the given IP address.
func (s *Server) limiter(ctx context.Context, ip string) *rate.Limiter {
	s.ipLimitersMu.RLock()
	limiter, exists := s.ipLimiters[ip]
	s.ipLimitersMu.RUnlock()
	if exists {
		return limiter
	}

	s.ipLimitersMu.Lock()
	defer s.ipLimitersMu.Unlock()

	// Double-check after acquiring the write lock.
	if existing, exists := s.ipLimiters[ip]; exists {
		return existing
	}

	limiter = rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	s.ipLimiters[ip] = limiter

	// Drop half the map if it grows too large.
	const maxLimiters = 10000
	if len(s.ipLimiters) > maxLimiters {
		count := 0
		target := len(s.ipLimiters) / 2
		for key := range s.ipLimiters {
			delete(s.ipLimiters, key)
			count++
			if count >= target {
				break
			}
		}
		s.logger.InfoContext(ctx, "cleaned up IP rate limiters", "removed", count, "remaining", len(s.ipLimiters))
	}

	return limiter
}

// clientIP extracts the caller's IP. X-Forwarded-For is trusted
// because the expected deployment sits behind a proxy that sanitizes
// it; direct deployments fall back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// sanitizeError removes tokens from error messages before logging.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return tokenPattern.ReplaceAllString(err.Error(), "[REDACTED_TOKEN]")
}
