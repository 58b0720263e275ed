package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prtally/prtally/internal/report"
	"github.com/prtally/prtally/pkg/githubsearch"
)

// parseParams resolves report parameters: server defaults first, query
// parameters on top. Dates must be YYYY-MM-DD.
func (s *Server) parseParams(query url.Values) (report.Params, error) {
	p := report.Params{
		Org:    s.opts.Org,
		Labels: s.opts.Labels,
		Since:  s.opts.Since,
		Until:  s.opts.Until,
	}

	if org := query.Get("org"); org != "" {
		p.Org = org
	}
	if raw := query.Get("labels"); raw != "" {
		p.Labels = nil
		for _, label := range strings.Split(raw, ",") {
			if label = strings.TrimSpace(label); label != "" {
				p.Labels = append(p.Labels, label)
			}
		}
	}
	if since := query.Get("since"); since != "" {
		p.Since = since
	}
	if until := query.Get("until"); until != "" {
		p.Until = until
	}

	if p.Org == "" {
		return p, fmt.Errorf("org is required")
	}
	for _, date := range []struct{ name, value string }{
		{"since", p.Since},
		{"until", p.Until},
	} {
		if date.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", date.value); err != nil {
			return p, fmt.Errorf("%s: want YYYY-MM-DD, got %q", date.name, date.value)
		}
	}
	return p, nil
}

// writeFetchError maps upstream failures to status codes: timeouts get
// 504 with a hint, other fetch failures 502, everything else 500.
func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "report request failed",
		"path", r.URL.Path, errorKey, sanitizeError(err))
	switch {
	case githubsearch.IsTimeout(err):
		http.Error(w, "Upstream fetch timed out; narrow the date window or raise FETCH_TIMEOUT",
			http.StatusGatewayTimeout)
	case githubsearch.IsFetchError(err):
		http.Error(w, "Upstream fetch failed", http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleReportAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := s.parseParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	rep, hit, err := s.reporter.Report(ctx, params)
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", cacheHeader(hit))
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		s.logger.ErrorContext(ctx, "encoding report response", errorKey, err)
	}
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := s.parseParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	labels, err := s.reporter.Labels(ctx, params.Org, params.Since)
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]string{"labels": labels}); err != nil {
		s.logger.ErrorContext(ctx, "encoding labels response", errorKey, err)
	}
}

// handleHealth reports liveness, plus upstream reachability when a
// pinger is wired.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]any{
		"status": "ok",
		"org":    s.opts.Org,
		"labels": s.opts.Labels,
		"since":  s.opts.Since,
		"until":  s.opts.Until,
	}
	code := http.StatusOK
	if s.pinger != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.pinger.Ping(probeCtx); err != nil {
			s.logger.WarnContext(ctx, "upstream probe failed", errorKey, sanitizeError(err))
			status["status"] = "degraded"
			status["upstream"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["upstream"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.ErrorContext(ctx, "encoding health response", errorKey, err)
	}
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	s.reporter.InvalidateCaches()
	s.logger.InfoContext(r.Context(), "caches invalidated", "client_ip", clientIP(r))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "invalidated"}); err != nil {
		s.logger.ErrorContext(r.Context(), "encoding invalidate response", errorKey, err)
	}
}

// handleStatic serves embedded static files.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	content, err := assetFS.ReadFile(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	var contentType string
	switch {
	case strings.HasSuffix(path, ".css"):
		contentType = "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		contentType = "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".ico"):
		contentType = "image/x-icon"
	default:
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(content); err != nil {
		s.logger.ErrorContext(r.Context(), "writing static response", errorKey, err)
	}
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
