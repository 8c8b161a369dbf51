package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each
// (venue, symbol) price is stored at key "price:{venue}:{symbol}" with
// fields "ticks" and "ts" (Unix nanosecond timestamp). Prices stay in
// fixed-point ticks on the wire.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(venue, symbol string) string {
	return "price:" + venue + ":" + symbol
}

// SetPrice stores the latest price and timestamp for a (venue, symbol).
func (pc *PriceCache) SetPrice(ctx context.Context, venue, symbol string, priceTicks int64, ts time.Time) error {
	key := priceKey(venue, symbol)
	fields := map[string]interface{}{
		"ticks": strconv.FormatInt(priceTicks, 10),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s/%s: %w", venue, symbol, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a (venue, symbol).
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, venue, symbol string) (int64, time.Time, error) {
	key := priceKey(venue, symbol)
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s/%s: %w", venue, symbol, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	ticksStr, ok := vals["ticks"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	ticks, err := strconv.ParseInt(ticksStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ticks %s/%s: %w", venue, symbol, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s/%s: %w", venue, symbol, err)
	}

	return ticks, time.Unix(0, tsNano), nil
}

// GetVenuePrices retrieves the latest price per venue for one symbol using a
// pipeline. Venues without a stored price are omitted from the result.
func (pc *PriceCache) GetVenuePrices(ctx context.Context, venues []string, symbol string) (map[string]int64, error) {
	if len(venues) == 0 {
		return map[string]int64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(venues))
	for _, v := range venues {
		cmds[v] = pipe.HGetAll(ctx, priceKey(v, symbol))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: venue prices pipeline: %w", err)
	}

	result := make(map[string]int64, len(venues))
	for v, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		ticksStr, ok := vals["ticks"]
		if !ok {
			continue
		}
		ticks, err := strconv.ParseInt(ticksStr, 10, 64)
		if err != nil {
			continue
		}
		result[v] = ticks
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
