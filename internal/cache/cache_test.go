package cache

import (
	"errors"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for deterministic TTL tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestGetOrComputeWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	c := New[int](clock.Now)

	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	v, hit, err := c.GetOrCompute("k", time.Minute, compute)
	if err != nil || v != 42 || hit {
		t.Fatalf("first call = (%v, %v, %v), want (42, false, nil)", v, hit, err)
	}

	clock.Advance(30 * time.Second)
	v, hit, err = c.GetOrCompute("k", time.Minute, compute)
	if err != nil || v != 42 || !hit {
		t.Fatalf("second call = (%v, %v, %v), want (42, true, nil)", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times within TTL, want 1", calls)
	}

	clock.Advance(31 * time.Second)
	_, hit, err = c.GetOrCompute("k", time.Minute, compute)
	if err != nil || hit {
		t.Fatalf("post-expiry call hit=%v err=%v, want miss", hit, err)
	}
	if calls != 2 {
		t.Errorf("compute ran %d times after expiry, want 2", calls)
	}
}

func TestComputeErrorNotCached(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	c := New[int](clock.Now)

	boom := errors.New("upstream down")
	calls := 0
	_, _, err := c.GetOrCompute("k", time.Minute, func() (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if c.Len() != 0 {
		t.Error("failed compute wrote a cache entry")
	}

	// The next call must compute again, and a success is stored.
	v, hit, err := c.GetOrCompute("k", time.Minute, func() (int, error) {
		calls++
		return 7, nil
	})
	if err != nil || v != 7 || hit {
		t.Fatalf("recovery call = (%v, %v, %v), want (7, false, nil)", v, hit, err)
	}
	if calls != 2 {
		t.Errorf("compute ran %d times, want 2", calls)
	}
}

func TestInvalidateAll(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	c := New[string](clock.Now)

	for _, key := range []string{"a", "b"} {
		if _, _, err := c.GetOrCompute(key, time.Hour, func() (string, error) { return key, nil }); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}

	c.InvalidateAll()
	if c.Len() != 0 {
		t.Fatalf("Len after InvalidateAll = %d, want 0", c.Len())
	}

	calls := 0
	if _, _, err := c.GetOrCompute("a", time.Hour, func() (string, error) { calls++; return "a", nil }); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Error("invalidated entry did not recompute")
	}
}

func TestOverwriteReplacesEntry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	c := New[int](clock.Now)

	if _, _, err := c.GetOrCompute("k", time.Minute, func() (int, error) { return 1, nil }); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)
	if _, _, err := c.GetOrCompute("k", time.Minute, func() (int, error) { return 2, nil }); err != nil {
		t.Fatal(err)
	}

	v, hit, err := c.GetOrCompute("k", time.Minute, func() (int, error) { return 3, nil })
	if err != nil || !hit || v != 2 {
		t.Fatalf("got (%v, %v, %v), want (2, true, nil)", v, hit, err)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1 (overwrite, not append)", c.Len())
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name   string
		org    string
		labels []string
		since  string
		until  string
		want   string
	}{
		{
			name:  "no labels means all",
			org:   "acme",
			since: "2025-04-29",
			want:  "org=acme|labels=all|since=2025-04-29|until=",
		},
		{
			name:   "labels sorted",
			org:    "acme",
			labels: []string{"b", "a"},
			since:  "2025-04-29",
			until:  "2025-05-29",
			want:   "org=acme|labels=a,b|since=2025-04-29|until=2025-05-29",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.org, tt.labels, tt.since, tt.until); got != tt.want {
				t.Errorf("Key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyLabelPermutation(t *testing.T) {
	a := Key("acme", []string{"a", "b"}, "2025-04-29", "")
	b := Key("acme", []string{"b", "a"}, "2025-04-29", "")
	if a != b {
		t.Errorf("permuted label sets produced different keys: %q vs %q", a, b)
	}
	// Key must not mutate the caller's slice.
	labels := []string{"z", "a"}
	Key("acme", labels, "2025-04-29", "")
	if labels[0] != "z" {
		t.Error("Key sorted the caller's label slice in place")
	}
}
