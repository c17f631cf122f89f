package matrix

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"medroute/internal/model"
)

// Cached wraps a Provider with a redis cache keyed by the coordinate set.
// Cache failures degrade to the inner provider instead of failing the solve.
type Cached struct {
	Inner Provider
	RDB   *redis.Client
	TTL   time.Duration
}

func NewCached(inner Provider, redisURL string, ttl time.Duration) (*Cached, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{Inner: inner, RDB: redis.NewClient(opt), TTL: ttl}, nil
}

func (c *Cached) Matrix(ctx context.Context, points []model.GeoPoint) (model.TravelMatrix, error) {
	key := cacheKey(points)
	if data, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		var m model.TravelMatrix
		if err := json.Unmarshal(data, &m); err == nil {
			return m, nil
		}
	}

	m, err := c.Inner.Matrix(ctx, points)
	if err != nil {
		return model.TravelMatrix{}, err
	}

	if data, err := json.Marshal(m); err == nil {
		if err := c.RDB.Set(ctx, key, data, c.TTL).Err(); err != nil {
			log.Printf("matrix cache: set failed: %v", err)
		}
	}
	return m, nil
}

// cacheKey hashes coordinates rounded to ~1m precision so equivalent point
// sets share an entry.
func cacheKey(points []model.GeoPoint) string {
	h := sha256.New()
	for _, p := range points {
		fmt.Fprintf(h, "%.5f,%.5f;", p.Lat, p.Lng)
	}
	return "matrix:" + hex.EncodeToString(h.Sum(nil))[:32]
}
