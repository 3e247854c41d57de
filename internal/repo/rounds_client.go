package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roundcast/roundcast/internal/cache"
	"github.com/roundcast/roundcast/internal/models"
	"github.com/roundcast/roundcast/internal/utils"
)

// LatestCacheKey is where the most recent upstream payload is cached.
const LatestCacheKey = "roundcast:latest"

const maxPayloadBytes = 1 << 20

// RoundsClient fetches the latest round from the upstream results feed.
type RoundsClient struct {
	baseURL    string
	latestPath string
	httpClient *http.Client
	cache      cache.Provider
	cacheTTL   time.Duration
	logger     *slog.Logger
	flights    singleflight.Group
}

// NewRoundsClient constructs a client for the configured feed. Concurrent
// FetchLatest calls share a single upstream request, and payloads are cached
// for cacheTTL when it is positive.
func NewRoundsClient(logger *slog.Logger, baseURL, latestPath string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration) *RoundsClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cacheTTL < 0 {
		cacheTTL = 0
	}
	return &RoundsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		latestPath: latestPath,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// FetchLatest returns the most recent round reported upstream. Every failure
// is an upstream error (utils.KindUpstream).
func (c *RoundsClient) FetchLatest(ctx context.Context) (models.RawRound, error) {
	if c == nil {
		return models.RawRound{}, utils.NewAppError("rounds.fetch", utils.KindUpstream, "client not initialised", nil)
	}
	if c.baseURL == "" {
		return models.RawRound{}, utils.NewAppError("rounds.fetch", utils.KindUpstream, "upstream base URL not configured", nil)
	}

	if c.cacheTTL > 0 {
		if data, err := c.cache.Get(ctx, LatestCacheKey); err == nil {
			if raw, err := decodeRound(data); err == nil {
				return raw, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("round cache read failed", slog.Any("error", err))
		}
	}

	// The shared request outlives any single caller's cancellation; the
	// http.Client timeout still bounds it.
	ch := c.flights.DoChan(LatestCacheKey, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return models.RawRound{}, utils.NewAppError("rounds.fetch", utils.KindUpstream, "request abandoned", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.RawRound{}, res.Err
		}
		data := res.Val.([]byte)
		raw, err := decodeRound(data)
		if err != nil {
			return models.RawRound{}, utils.NewAppError("rounds.fetch", utils.KindUpstream, "malformed upstream payload", err)
		}
		return raw, nil
	}
}

func (c *RoundsClient) fetch(ctx context.Context) ([]byte, error) {
	endpoint := c.latestURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, utils.NewAppError("rounds.fetch", utils.KindUpstream, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewAppError("rounds.fetch", utils.KindUpstream, "upstream unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, utils.NewAppError("rounds.fetch", utils.KindUpstream, fmt.Sprintf("upstream returned %s", resp.Status), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, utils.NewAppError("rounds.fetch", utils.KindUpstream, "read response", err)
	}
	if _, err := decodeRound(data); err != nil {
		return nil, utils.NewAppError("rounds.fetch", utils.KindUpstream, "malformed upstream payload", err)
	}

	if c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, LatestCacheKey, data, c.cacheTTL); err != nil {
			c.logger.Warn("round cache write failed", slog.Any("error", err))
		}
	}
	return data, nil
}

func (c *RoundsClient) latestURL() string {
	cleaned := "/" + strings.TrimLeft(c.latestPath, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func decodeRound(data []byte) (models.RawRound, error) {
	var raw models.RawRound
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.RawRound{}, fmt.Errorf("decode round: %w", err)
	}
	return raw, nil
}
