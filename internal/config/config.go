// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/gsm"
	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultCacheTTL       = 5 * time.Minute
	DefaultLabelCacheTTL  = 30 * time.Minute
	DefaultFetchTimeout   = 60 * time.Second
	DefaultPageSize       = 100
	DefaultMaxItems       = 1000
	DefaultListen         = ":8080"
	DefaultRequestsPerSec = 5.0
)

// Config holds every runtime setting. Query parameters on the report
// endpoint can override Org, Labels, Since, and Until per request.
type Config struct {
	Org           string
	Labels        []string
	Since         string // YYYY-MM-DD
	Until         string // YYYY-MM-DD, empty for open-ended
	ProjectPrefix string

	MaxItems       int
	PageSize       int
	CacheTTL       time.Duration
	LabelCacheTTL  time.Duration
	FetchTimeout   time.Duration
	RequestsPerSec float64
	Listen         string

	logger *slog.Logger

	tokenOnce sync.Once
	token     string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present; a missing file is
// not an error.
func Load(logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Org:           os.Getenv("ORG"),
		Since:         os.Getenv("SINCE"),
		Until:         os.Getenv("UNTIL"),
		ProjectPrefix: os.Getenv("PROJECT_PREFIX"),
		Listen:        DefaultListen,
		logger:        logger.With("component", "config"),
	}

	if raw := os.Getenv("LABELS"); raw != "" {
		for _, label := range strings.Split(raw, ",") {
			if label = strings.TrimSpace(label); label != "" {
				cfg.Labels = append(cfg.Labels, label)
			}
		}
	}
	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Listen = v
	}

	var err error
	if cfg.MaxItems, err = intEnv("MAX_ITEMS", DefaultMaxItems); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = intEnv("PAGE_SIZE", DefaultPageSize); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", DefaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.LabelCacheTTL, err = durationEnv("LABEL_CACHE_TTL", DefaultLabelCacheTTL); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = durationEnv("FETCH_TIMEOUT", DefaultFetchTimeout); err != nil {
		return nil, err
	}
	cfg.RequestsPerSec = DefaultRequestsPerSec
	if v := os.Getenv("REQUESTS_PER_SEC"); v != "" {
		if cfg.RequestsPerSec, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("REQUESTS_PER_SEC: %w", err)
		}
	}

	for _, date := range []struct{ name, value string }{
		{"SINCE", cfg.Since},
		{"UNTIL", cfg.Until},
	} {
		if date.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", date.value); err != nil {
			return nil, fmt.Errorf("%s: want YYYY-MM-DD, got %q", date.name, date.value)
		}
	}

	return cfg, nil
}

// Validate checks that the settings a server needs are present.
func (c *Config) Validate() error {
	if c.Org == "" {
		return errors.New("ORG is required")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be 1-100, got %d", c.PageSize)
	}
	return nil
}

// Token resolves a GitHub token: the GITHUB_TOKEN environment variable,
// then the gh CLI, then Secret Manager. The result is cached for the
// process lifetime; an empty return means no token was found anywhere,
// which limits us to unauthenticated rate limits.
func (c *Config) Token(ctx context.Context) string {
	c.tokenOnce.Do(func() {
		if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			c.logger.Info("using token from environment")
			c.token = token
			return
		}

		cmdCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if out, err := exec.CommandContext(cmdCtx, "gh", "auth", "token").Output(); err == nil {
			if token := strings.TrimSpace(string(out)); token != "" {
				c.logger.Info("using token from gh CLI")
				c.token = token
				return
			}
		}

		if token, err := gsm.Fetch(ctx, "GITHUB_TOKEN"); err == nil && token != "" {
			c.logger.Info("using token from secret manager")
			c.token = token
			return
		}

		c.logger.Warn("no GitHub token found, search will be unauthenticated")
	})
	return c.token
}

func intEnv(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
