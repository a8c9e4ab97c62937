package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/config"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const profitLossKeyPrefix = "report:profit_loss"

// ProfitLossCache keeps computed summaries for a short while so that dashboards
// polling the same window do not re-run the aggregations.
type ProfitLossCache interface {
	Get(ctx context.Context, window domain.ReportWindow, period domain.ReportPeriod) (*domain.ProfitLossSummary, bool, error)
	Set(ctx context.Context, window domain.ReportWindow, period domain.ReportPeriod, summary *domain.ProfitLossSummary) error
	InvalidateAll(ctx context.Context) error
}

type redisProfitLossCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopProfitLossCache struct{}

// NewProfitLossCache returns the redis cache when CACHE_ENABLED is set and the noop
// cache otherwise.
func NewProfitLossCache(cfg config.CacheConfig) (ProfitLossCache, error) {
	if !cfg.Enabled {
		return &noopProfitLossCache{}, nil
	}

	client, err := connectRedis(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	return &redisProfitLossCache{
		client: client,
		ttl:    cacheTTL(cfg),
	}, nil
}

func NewNoopProfitLossCache() ProfitLossCache {
	return &noopProfitLossCache{}
}

func (c *redisProfitLossCache) Get(ctx context.Context, window domain.ReportWindow, period domain.ReportPeriod) (*domain.ProfitLossSummary, bool, error) {
	key := buildProfitLossKey(window, period)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var summary domain.ProfitLossSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, false, fmt.Errorf("decode profit loss cache: %w", err)
	}

	return &summary, true, nil
}

func (c *redisProfitLossCache) Set(ctx context.Context, window domain.ReportWindow, period domain.ReportPeriod, summary *domain.ProfitLossSummary) error {
	key := buildProfitLossKey(window, period)
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode profit loss cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisProfitLossCache) InvalidateAll(ctx context.Context) error {
	removed, err := unlinkPrefix(ctx, c.client, profitLossKeyPrefix)
	if err != nil {
		return err
	}
	log.Debug().Int("keys", removed).Msg("cache: profit loss entries invalidated")
	return nil
}

func (n *noopProfitLossCache) Get(ctx context.Context, window domain.ReportWindow, period domain.ReportPeriod) (*domain.ProfitLossSummary, bool, error) {
	return nil, false, nil
}

func (n *noopProfitLossCache) Set(ctx context.Context, window domain.ReportWindow, period domain.ReportPeriod, summary *domain.ProfitLossSummary) error {
	return nil
}

func (n *noopProfitLossCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// buildProfitLossKey truncates the window start to the minute: the weekly window
// moves with the clock and would otherwise never hit.
func buildProfitLossKey(window domain.ReportWindow, period domain.ReportPeriod) string {
	parts := []string{
		"filter=" + string(domain.ParseReportPeriod(string(period))),
		"start=" + window.Start.UTC().Truncate(time.Minute).Format(time.RFC3339),
	}
	if branch := strings.TrimSpace(window.BranchID); branch != "" {
		parts = append(parts, "branch="+branch)
	}

	raw := strings.Join(parts, "|")
	hash := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%s:%s", profitLossKeyPrefix, hex.EncodeToString(hash[:]))
}
