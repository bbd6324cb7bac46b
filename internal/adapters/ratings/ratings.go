// Package ratings keeps an in-memory snapshot of the external rating
// ladder, bulk-refreshed on a fixed interval.
package ratings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mklounge/squadqueue/internal/domain/model"
	"github.com/mklounge/squadqueue/internal/domain/roster"
	"github.com/mklounge/squadqueue/pkg/logger"
	"github.com/mklounge/squadqueue/pkg/metrics"
)

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) { c.client = client }
}

// WithRefreshInterval sets how often the snapshot is refreshed.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Cache) { c.refresh = d }
}

// WithRetryBackoff sets the wait before the single retry of a failed fetch.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Cache) { c.backoff = d }
}

// WithMinPlayers rejects payloads smaller than n entries as malformed.
func WithMinPlayers(n int) Option {
	return func(c *Cache) { c.minPlayers = n }
}

// WithPlacementRating substitutes the given rating for ladder entries
// carrying no rating yet.
func WithPlacementRating(rating int) Option {
	return func(c *Cache) { c.placement = rating }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// Cache is a read-through snapshot of the ladder. Lookups fail with
// ErrNotReady until the first successful refresh so players never join at
// a default rating by accident.
type Cache struct {
	url        string
	client     *http.Client
	refresh    time.Duration
	backoff    time.Duration
	minPlayers int
	placement  int

	log logger.Logger

	mu      sync.RWMutex
	ready   bool
	entries map[model.PlayerID]roster.Rating
}

// New creates a cache fetching from url.
func New(url string, opts ...Option) *Cache {
	c := &Cache{
		url:     url,
		client:  &http.Client{Timeout: 30 * time.Second},
		refresh: 5 * time.Minute,
		backoff: time.Minute,
		log:     logger.Named("ratings"),
		entries: make(map[model.PlayerID]roster.Rating),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup implements roster.RatingSource.
func (c *Cache) Lookup(_ context.Context, id model.PlayerID) (roster.Rating, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ready {
		return roster.Rating{}, false, ErrNotReady
	}
	entry, ok := c.entries[id]
	return entry, ok, nil
}

// Ready reports whether the first refresh has completed.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Run refreshes the snapshot until the context is cancelled. The first
// refresh happens immediately.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	c.refreshWithRetry(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshWithRetry(ctx)
		}
	}
}

// refreshWithRetry tries once, waits the backoff and tries again. A second
// failure skips the cycle; stale data is better than no scheduler.
func (c *Cache) refreshWithRetry(ctx context.Context) {
	err := c.RefreshOnce(ctx)
	if err == nil {
		return
	}
	c.log.Warn(ctx, "rating refresh failed, retrying after backoff",
		logger.Error(err), logger.Duration("backoff", c.backoff))

	select {
	case <-ctx.Done():
		return
	case <-time.After(c.backoff):
	}

	if err := c.RefreshOnce(ctx); err != nil {
		c.log.Error(ctx, "rating refresh failed twice, keeping stale data", logger.Error(err))
		metrics.RecordRatingRefreshError()
	}
}

// RefreshOnce fetches, validates and swaps in a new snapshot.
func (c *Cache) RefreshOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	var body payload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	entries, err := c.parse(body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = entries
	c.ready = true
	c.mu.Unlock()

	metrics.RecordRatingRefresh()
	metrics.UpdateRatingPoolSize(len(entries))
	c.log.Debug(ctx, "rating snapshot refreshed", logger.Int("players", len(entries)))
	return nil
}

type payload struct {
	Players []ladderPlayer `json:"players"`
}

type ladderPlayer struct {
	Name     string  `json:"name"`
	PlayerID *string `json:"playerId"`
	Rating   *int    `json:"rating"`
}

// parse validates the payload and builds the snapshot. Entries without an
// identity are skipped; entries without a rating get the placement rating.
func (c *Cache) parse(body payload) (map[model.PlayerID]roster.Rating, error) {
	if body.Players == nil {
		return nil, fmt.Errorf("%w: missing players list", ErrBadPayload)
	}
	if len(body.Players) < c.minPlayers {
		return nil, fmt.Errorf("%w: got %d players, want at least %d",
			ErrBadPayload, len(body.Players), c.minPlayers)
	}

	entries := make(map[model.PlayerID]roster.Rating, len(body.Players))
	for _, p := range body.Players {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: player with empty name", ErrBadPayload)
		}
		if p.PlayerID == nil || *p.PlayerID == "" {
			continue
		}
		rating := c.placement
		if p.Rating != nil {
			rating = *p.Rating
		}
		entries[model.PlayerID(*p.PlayerID)] = roster.Rating{Value: rating, Name: p.Name}
	}
	return entries, nil
}
