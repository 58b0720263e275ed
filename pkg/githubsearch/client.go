// Package githubsearch fetches pull request metadata from the GitHub
// search API, with client-side rate limiting and bounded retries.
package githubsearch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	gogithub "github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/prtally/prtally/pkg/track"
)

const (
	maxRetries = 3
	retryDelay = 2 * time.Second
)

// Client wraps the GitHub search API for pull request queries.
type Client struct {
	gh      *gogithub.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a search client. requestsPerSec bounds our own call
// rate; GitHub's search endpoint throttles aggressively and a
// client-side limiter keeps us out of secondary rate limits.
func New(token string, requestsPerSec float64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	gh := gogithub.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return &Client{
		gh:      gh,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		logger:  logger.With("component", "githubsearch"),
	}
}

// BuildQuery assembles a search query for merged-or-open pull requests
// in org, optionally filtered by labels and a created-date window.
// Dates are YYYY-MM-DD; an empty until leaves the window open-ended.
func BuildQuery(org string, labels []string, since, until string) string {
	parts := []string{fmt.Sprintf("org:%s", org), "is:pr"}
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("label:%q", label))
	}
	if since != "" {
		parts = append(parts, "created:>="+since)
	}
	if until != "" {
		parts = append(parts, "created:<="+until)
	}
	return strings.Join(parts, " ")
}

// Page is one page of search results. Total is the upstream total for
// the whole query, not the page; GitHub caps search at 1000 results,
// so Total can exceed what paging will ever return.
type Page struct {
	Items []track.PullRequest
	Total int
}

// Search runs one page of a pull request search. page is 1-based.
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Page{}, NewFetchError(err)
	}

	opts := &gogithub.SearchOptions{
		Sort:        "created",
		Order:       "desc",
		ListOptions: gogithub.ListOptions{Page: page, PerPage: perPage},
	}

	var result *gogithub.IssuesSearchResult
	err := retry.Do(
		func() error {
			var rerr error
			result, _, rerr = c.gh.Search.Issues(ctx, query, opts)
			return rerr
		},
		retry.Context(ctx),
		retry.Attempts(maxRetries),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		c.logger.Error("search failed", "query", query, "page", page, "error", err)
		return Page{}, NewFetchError(err)
	}

	out := Page{Total: result.GetTotal()}
	out.Items = make([]track.PullRequest, 0, len(result.Issues))
	for _, issue := range result.Issues {
		out.Items = append(out.Items, convertIssue(issue))
	}
	c.logger.Debug("search page fetched", "page", page, "items", len(out.Items), "total", out.Total)
	return out, nil
}

// convertIssue maps a search result issue onto our pull request shape.
// A missing body stays nil so downstream parsing can tell "no body"
// from "empty body".
func convertIssue(issue *gogithub.Issue) track.PullRequest {
	pr := track.PullRequest{
		Title:     issue.GetTitle(),
		Body:      issue.Body,
		Author:    issue.GetUser().GetLogin(),
		CreatedAt: issue.GetCreatedAt().Time,
		URL:       issue.GetHTMLURL(),
	}
	for _, l := range issue.Labels {
		pr.Labels = append(pr.Labels, l.GetName())
	}
	return pr
}

// Ping verifies connectivity and credentials with a cheap rate-limit
// probe. It does not consume search quota.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return NewFetchError(err)
	}
	if _, _, err := c.gh.RateLimit.Get(ctx); err != nil {
		return NewFetchError(err)
	}
	return nil
}

// RecentLabels returns the distinct label names seen on pull requests
// created in org since the given date, sorted. It scans at most
// maxItems results.
func (c *Client) RecentLabels(ctx context.Context, org, since string, maxItems int) ([]string, error) {
	query := BuildQuery(org, nil, since, "")
	seen := make(map[string]struct{})

	perPage := 100
	if maxItems > 0 && maxItems < perPage {
		perPage = maxItems
	}
	for page := 1; ; page++ {
		result, err := c.Search(ctx, query, page, perPage)
		if err != nil {
			return nil, err
		}
		for _, pr := range result.Items {
			for _, name := range pr.Labels {
				seen[name] = struct{}{}
			}
		}
		scanned := (page-1)*perPage + len(result.Items)
		if len(result.Items) < perPage || scanned >= result.Total {
			break
		}
		if maxItems > 0 && scanned >= maxItems {
			break
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
