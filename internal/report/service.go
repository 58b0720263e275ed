// Package report orchestrates the fetch pipeline: search upstream,
// parse effort records, aggregate rollups, and memoize the result.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prtally/prtally/internal/cache"
	"github.com/prtally/prtally/pkg/githubsearch"
	"github.com/prtally/prtally/pkg/track"
)

// Searcher is the upstream slice the service needs. *githubsearch.Client
// satisfies it; tests swap in a fake.
type Searcher interface {
	Search(ctx context.Context, query string, page, perPage int) (githubsearch.Page, error)
	RecentLabels(ctx context.Context, org, since string, maxItems int) ([]string, error)
}

// Params identifies one report query.
type Params struct {
	Org    string
	Labels []string
	Since  string // YYYY-MM-DD
	Until  string // YYYY-MM-DD, empty for open-ended
}

// Options tunes the service. Zero values get sensible defaults.
type Options struct {
	TTL      time.Duration // report cache TTL, default 5m
	LabelTTL time.Duration // label cache TTL, default 30m
	MaxItems int           // fetch cap per report, 0 means unbounded
	PageSize int           // upstream page size, default 100
	Logger   *slog.Logger
	Now      func() time.Time // injectable clock for tests
}

// Service produces effort reports, caching both reports and label
// discovery per canonical query key.
type Service struct {
	searcher Searcher
	parser   *track.RecordParser
	reports  *cache.TTL[*track.Report]
	labels   *cache.TTL[[]string]
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a report service over the given upstream. prefix is the
// project key prefix used when extracting issue keys from titles.
func New(searcher Searcher, prefix string, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.LabelTTL <= 0 {
		opts.LabelTTL = 30 * time.Minute
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		searcher: searcher,
		parser:   track.NewRecordParser(prefix),
		reports:  cache.New[*track.Report](opts.Now),
		labels:   cache.New[[]string](opts.Now),
		opts:     opts,
		logger:   opts.Logger.With("component", "report"),
		now:      opts.Now,
	}
}

// Report returns the aggregated report for p, serving from cache when
// a fresh entry exists. Cached reports are shared; callers must not
// mutate them.
func (s *Service) Report(ctx context.Context, p Params) (*track.Report, bool, error) {
	key := cache.Key(p.Org, p.Labels, p.Since, p.Until)
	rep, hit, err := s.reports.GetOrCompute(key, s.opts.TTL, func() (*track.Report, error) {
		return s.fetch(ctx, p)
	})
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("report served", "key", key, "cache_hit", hit,
		"records", len(rep.Records), "total_found", rep.TotalFound)
	return rep, hit, nil
}

// fetch pages through the upstream search, parses every pull request
// into an effort record, and folds the records into a report.
func (s *Service) fetch(ctx context.Context, p Params) (*track.Report, error) {
	query := githubsearch.BuildQuery(p.Org, p.Labels, p.Since, p.Until)
	s.logger.Info("fetching report", "query", query, "max_items", s.opts.MaxItems)

	var (
		records    []track.EffortRecord
		totalFound int
	)
	// perPage stays constant across pages: the upstream offset is
	// (page-1)*perPage, so shrinking the final page would re-read
	// earlier items. The cap is applied client-side instead.
	perPage := s.opts.PageSize
	for page := 1; ; page++ {
		result, err := s.searcher.Search(ctx, query, page, perPage)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		totalFound = result.Total
		for _, pr := range result.Items {
			records = append(records, s.parser.Parse(pr))
		}

		if s.opts.MaxItems > 0 && len(records) >= s.opts.MaxItems {
			records = records[:s.opts.MaxItems]
			s.logger.Warn("fetch cap reached", "cap", s.opts.MaxItems, "total_found", totalFound)
			break
		}
		if len(result.Items) < perPage || len(records) >= totalFound {
			break
		}
	}

	rep := track.Aggregate(records)
	rep.TotalFound = totalFound
	rep.TotalProcessed = len(records)
	rep.FetchedAt = s.now()
	return rep, nil
}

// Labels returns the distinct labels seen on recent pull requests in
// org, cached per org+since.
func (s *Service) Labels(ctx context.Context, org, since string) ([]string, error) {
	key := fmt.Sprintf("labels|org=%s|since=%s", org, since)
	names, _, err := s.labels.GetOrCompute(key, s.opts.LabelTTL, func() ([]string, error) {
		return s.searcher.RecentLabels(ctx, org, since, s.opts.MaxItems)
	})
	return names, err
}

// InvalidateCaches drops every cached report and label set. The next
// request recomputes from upstream.
func (s *Service) InvalidateCaches() {
	s.reports.InvalidateAll()
	s.labels.InvalidateAll()
	s.logger.Info("caches invalidated")
}
