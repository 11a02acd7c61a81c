package marketdata

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/series"
)

// CacheConfig controls the daily-history cache.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// DefaultCacheConfig returns a local redis with a one-day TTL; history for
// a finished trading day never changes within that horizon.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Addr: "localhost:6379", TTL: 24 * time.Hour}
}

// CachedSource fronts a Source with a redis cache for the daily warmup
// load, which is the one heavy query in the startup path. Cache failures
// degrade to the backing source, never to an error.
type CachedSource struct {
	Source
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewCachedSource wraps src with the cache.
func NewCachedSource(src Source, cfg CacheConfig, log zerolog.Logger) *CachedSource {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return &CachedSource{
		Source: src,
		rdb:    rdb,
		ttl:    cfg.TTL,
		log:    log.With().Str("component", "daily_cache").Logger(),
	}
}

// NewCachedSourceWith wraps src with an existing client, for tests.
func NewCachedSourceWith(src Source, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedSource {
	return &CachedSource{Source: src, rdb: rdb, ttl: ttl, log: log}
}

// Close releases the redis client. The backing source is the caller's.
func (c *CachedSource) Close() error { return c.rdb.Close() }

// cachedDaily is the wire form of a DailySet. NaN is not representable in
// JSON, so missing values travel as nulls.
type cachedDaily struct {
	Dates  []string               `json:"dates"`
	Fields map[string]cachedFrame `json:"fields"`
}

type cachedFrame map[string][]*float64

func toCachedFrame(f *series.Frame) cachedFrame {
	out := make(cachedFrame)
	for _, sym := range f.Symbols() {
		col := f.Column(sym)
		enc := make([]*float64, len(col))
		for i, v := range col {
			if !math.IsNaN(v) {
				val := v
				enc[i] = &val
			}
		}
		out[sym] = enc
	}
	return out
}

func fromCachedFrame(dates []string, cf cachedFrame) (*series.Frame, error) {
	cols := make(map[string][]float64, len(cf))
	for sym, enc := range cf {
		col := make([]float64, len(enc))
		for i, p := range enc {
			if p == nil {
				col[i] = math.NaN()
			} else {
				col[i] = *p
			}
		}
		cols[sym] = col
	}
	return series.NewFrame(dates, cols)
}

// DailyKey derives the cache key for one daily-history request.
func DailyKey(symbols []string, from, to string) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, ",")))
	return fmt.Sprintf("uptrend:daily:%s:%s:%s", from, to, hex.EncodeToString(sum[:]))
}

// DailyBars serves from the cache when possible, falling through to the
// backing source and populating the cache on a miss.
func (c *CachedSource) DailyBars(ctx context.Context, symbols []string, from, to string) (*DailySet, error) {
	key := DailyKey(symbols, from, to)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		set, derr := decodeDailySet(raw)
		if derr == nil {
			c.log.Debug().Str("key", key).Msg("daily history cache hit")
			return set, nil
		}
		c.log.Warn().Err(derr).Str("key", key).Msg("cache entry unreadable, reloading")
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling through")
	}

	set, err := c.Source.DailyBars(ctx, symbols, from, to)
	if err != nil {
		return nil, err
	}
	if encoded, eerr := encodeDailySet(set); eerr == nil {
		if serr := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); serr != nil {
			c.log.Warn().Err(serr).Str("key", key).Msg("cache write failed")
		}
	}
	return set, nil
}

func encodeDailySet(set *DailySet) ([]byte, error) {
	return json.Marshal(cachedDaily{
		Dates: set.Dates,
		Fields: map[string]cachedFrame{
			"open":   toCachedFrame(set.Open),
			"high":   toCachedFrame(set.High),
			"low":    toCachedFrame(set.Low),
			"close":  toCachedFrame(set.Close),
			"volume": toCachedFrame(set.Volume),
		},
	})
}

func decodeDailySet(raw []byte) (*DailySet, error) {
	var cd cachedDaily
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, err
	}
	set := &DailySet{Dates: cd.Dates}
	for field, target := range map[string]**series.Frame{
		"open": &set.Open, "high": &set.High, "low": &set.Low,
		"close": &set.Close, "volume": &set.Volume,
	} {
		cf, ok := cd.Fields[field]
		if !ok {
			return nil, fmt.Errorf("marketdata: cached set missing %s", field)
		}
		f, err := fromCachedFrame(cd.Dates, cf)
		if err != nil {
			return nil, err
		}
		*target = f
	}
	return set, nil
}
