package report

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/prtally/prtally/pkg/githubsearch"
	"github.com/prtally/prtally/pkg/track"
)

// fakeSearcher serves pages the way the live API does: the slice
// window for a request is (page-1)*perPage, so a page number only
// means something relative to the page size it was issued with.
type fakeSearcher struct {
	items       []track.PullRequest
	err         error
	searchCalls int
	labelCalls  int
	labels      []string
}

func (f *fakeSearcher) Search(_ context.Context, _ string, page, perPage int) (githubsearch.Page, error) {
	f.searchCalls++
	if f.err != nil {
		return githubsearch.Page{}, f.err
	}
	start := (page - 1) * perPage
	if start > len(f.items) {
		start = len(f.items)
	}
	end := start + perPage
	if end > len(f.items) {
		end = len(f.items)
	}
	return githubsearch.Page{Items: f.items[start:end], Total: len(f.items)}, nil
}

func (f *fakeSearcher) RecentLabels(context.Context, string, string, int) ([]string, error) {
	f.labelCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.labels, nil
}

func strPtr(s string) *string { return &s }

func samplePRs() []track.PullRequest {
	created := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	return []track.PullRequest{
		{
			Title:     "AIP10-1 add importer",
			Body:      strPtr("Estimate Time: 2h\nActual Time: 1h"),
			Author:    "alice",
			CreatedAt: created,
		},
		{
			Title:     "tidy up",
			Body:      nil,
			Author:    "alice",
			CreatedAt: created,
		},
		{
			Title:     "AIP10-2 fix exporter",
			Body:      strPtr("Estimate Time: 30m"),
			Author:    "bob",
			CreatedAt: created,
		},
	}
}

// numberedPRs builds n pull requests with distinct titles so tests can
// detect duplicated or dropped items.
func numberedPRs(n int) []track.PullRequest {
	prs := make([]track.PullRequest, 0, n)
	for i := 1; i <= n; i++ {
		prs = append(prs, track.PullRequest{
			Title:  fmt.Sprintf("PR-%d", i),
			Author: "alice",
		})
	}
	return prs
}

func TestReportEndToEnd(t *testing.T) {
	fake := &fakeSearcher{items: samplePRs()}
	svc := New(fake, "AIP", Options{
		Now: func() time.Time { return time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC) },
	})

	rep, hit, err := svc.Report(context.Background(), Params{Org: "acme", Since: "2025-04-29"})
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first report was a cache hit")
	}

	alice := rep.Developers["alice"]
	if alice == nil || alice.TotalPRs != 2 || alice.TotalEstimate != 2.0 || alice.TotalActual != 1.0 {
		t.Errorf("alice rollup = %+v, want {2 2 1}", alice)
	}
	bob := rep.Developers["bob"]
	if bob == nil || bob.TotalPRs != 1 || bob.TotalEstimate != 0.5 || bob.TotalActual != 0 {
		t.Errorf("bob rollup = %+v, want {1 0.5 0}", bob)
	}
	proj := rep.Projects["AIP10"]
	if proj == nil || proj.TotalPRs != 2 || proj.TotalEstimate != 2.5 || proj.TotalActual != 1.0 {
		t.Errorf("AIP10 rollup = %+v, want {2 2.5 1}", proj)
	}
	if !reflect.DeepEqual(proj.Developers, []string{"alice", "bob"}) {
		t.Errorf("AIP10 developers = %v, want [alice bob]", proj.Developers)
	}
	unknown := rep.Projects["Unknown"]
	if unknown == nil || unknown.TotalPRs != 1 {
		t.Errorf("Unknown rollup = %+v, want 1 PR", unknown)
	}
	if rep.TotalEstimate != 2.5 || rep.TotalActual != 1.0 {
		t.Errorf("totals = %v/%v, want 2.5/1.0", rep.TotalEstimate, rep.TotalActual)
	}
	if rep.TotalFound != 3 || rep.TotalProcessed != 3 {
		t.Errorf("found/processed = %d/%d, want 3/3", rep.TotalFound, rep.TotalProcessed)
	}
	if rep.FetchedAt.IsZero() {
		t.Error("FetchedAt not stamped")
	}
}

func TestReportCacheHit(t *testing.T) {
	fake := &fakeSearcher{items: samplePRs()}
	svc := New(fake, "AIP", Options{})
	params := Params{Org: "acme", Labels: []string{"b", "a"}, Since: "2025-04-29"}

	if _, _, err := svc.Report(context.Background(), params); err != nil {
		t.Fatal(err)
	}
	// Permuted labels are the same query and must share the entry.
	params.Labels = []string{"a", "b"}
	_, hit, err := svc.Report(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second identical query missed the cache")
	}
	if fake.searchCalls != 1 {
		t.Errorf("upstream called %d times, want 1", fake.searchCalls)
	}
}

func TestReportErrorNotCached(t *testing.T) {
	fake := &fakeSearcher{err: githubsearch.NewFetchError(errors.New("503"))}
	svc := New(fake, "AIP", Options{})
	params := Params{Org: "acme", Since: "2025-04-29"}

	if _, _, err := svc.Report(context.Background(), params); err == nil {
		t.Fatal("want error from failing upstream")
	}

	fake.err = nil
	fake.items = samplePRs()
	rep, hit, err := svc.Report(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("recovery call reported a cache hit")
	}
	if len(rep.Records) != 3 {
		t.Errorf("len(Records) = %d, want 3", len(rep.Records))
	}
}

func TestReportPagination(t *testing.T) {
	fake := &fakeSearcher{items: numberedPRs(5)}
	svc := New(fake, "AIP", Options{PageSize: 2})

	rep, _, err := svc.Report(context.Background(), Params{Org: "acme", Since: "2025-04-29"})
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalProcessed != 5 {
		t.Errorf("TotalProcessed = %d, want 5", rep.TotalProcessed)
	}
	if fake.searchCalls != 3 {
		t.Errorf("upstream called %d times, want 3", fake.searchCalls)
	}
	assertDistinctPrefix(t, rep.Records, 5)
}

func TestReportMaxItemsCap(t *testing.T) {
	// The cap is deliberately not a multiple of the page size: the
	// final request must keep the same page size and truncate locally,
	// because the upstream offset is (page-1)*perPage and a shrunk
	// last page would re-read earlier items.
	fake := &fakeSearcher{items: numberedPRs(6)}
	svc := New(fake, "AIP", Options{PageSize: 2, MaxItems: 3})

	rep, _, err := svc.Report(context.Background(), Params{Org: "acme", Since: "2025-04-29"})
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalProcessed != 3 {
		t.Errorf("TotalProcessed = %d, want 3 (capped)", rep.TotalProcessed)
	}
	if rep.TotalFound != 6 {
		t.Errorf("TotalFound = %d, want 6 (cap must not hide the upstream total)", rep.TotalFound)
	}
	assertDistinctPrefix(t, rep.Records, 3)
}

// assertDistinctPrefix checks that records are exactly PR-1..PR-n in
// order, with no duplicates and no holes.
func assertDistinctPrefix(t *testing.T, records []track.EffortRecord, n int) {
	t.Helper()
	if len(records) != n {
		t.Fatalf("len(records) = %d, want %d", len(records), n)
	}
	for i, rec := range records {
		if want := fmt.Sprintf("PR-%d", i+1); rec.Title != want {
			t.Errorf("records[%d] = %q, want %q", i, rec.Title, want)
		}
	}
}

func TestLabelsCached(t *testing.T) {
	fake := &fakeSearcher{labels: []string{"ai-dev", "bug"}}
	svc := New(fake, "AIP", Options{})

	got, err := svc.Labels(context.Background(), "acme", "2025-04-29")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"ai-dev", "bug"}) {
		t.Errorf("Labels = %v", got)
	}
	if _, err := svc.Labels(context.Background(), "acme", "2025-04-29"); err != nil {
		t.Fatal(err)
	}
	if fake.labelCalls != 1 {
		t.Errorf("upstream label calls = %d, want 1", fake.labelCalls)
	}
}

func TestInvalidateCaches(t *testing.T) {
	fake := &fakeSearcher{items: samplePRs()}
	svc := New(fake, "AIP", Options{})
	params := Params{Org: "acme", Since: "2025-04-29"}

	if _, _, err := svc.Report(context.Background(), params); err != nil {
		t.Fatal(err)
	}
	svc.InvalidateCaches()
	_, hit, err := svc.Report(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("report served from cache after invalidation")
	}
	if fake.searchCalls != 2 {
		t.Errorf("upstream called %d times, want 2", fake.searchCalls)
	}
}
