package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// LiveConfig parameterizes the live bridge adapter. The bridge is a small
// HTTP sidecar in front of the counter system; the strategy never talks to
// the counter directly.
type LiveConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst"`
}

// DefaultLiveConfig returns conservative bridge settings.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		BaseURL:        "http://127.0.0.1:7080",
		RequestTimeout: 5 * time.Second,
		RatePerSecond:  10,
		RateBurst:      5,
	}
}

// Live is the production Gateway: JSON over HTTP to the bridge, with a
// circuit breaker so a degraded counter fails fast instead of stalling the
// minute loop, and a client-side rate limit on top.
type Live struct {
	cfg     LiveConfig
	log     zerolog.Logger
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewLive builds the live adapter.
func NewLive(cfg LiveConfig, log zerolog.Logger) *Live {
	settings := gobreaker.Settings{
		Name:     "broker-bridge",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Live{
		cfg:     cfg,
		log:     log.With().Str("component", "live_gateway").Logger(),
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}
}

type orderRequest struct {
	Account string  `json:"account"`
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Volume  int64   `json:"volume"`
	Tag     string  `json:"tag"`
	Remark  string  `json:"remark"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

func (l *Live) do(ctx context.Context, method, path string, body, out any) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("broker: rate wait: %w", err)
	}
	_, err := l.breaker.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, l.cfg.BaseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("bridge %s: status %d", path, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			// Client-level declines are order rejections, not bridge
			// failures; they must not trip the breaker upward.
			raw, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("%w: %s", ErrOrderRejected, string(raw))
		}
		if out != nil {
			return nil, json.NewDecoder(resp.Body).Decode(out)
		}
		return nil, nil
	})
	return err
}

func (l *Live) order(ctx context.Context, side, account, symbol string, price float64, volume int64, tag, remark string) (string, error) {
	req := orderRequest{Account: account, Symbol: symbol, Side: side, Price: price, Volume: volume, Tag: tag, Remark: remark}
	var resp orderResponse
	if err := l.do(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return "", err
	}
	if resp.Status == "rejected" {
		return "", fmt.Errorf("%w: %s %s: %s", ErrOrderRejected, side, symbol, resp.Reason)
	}
	l.log.Info().Str("order_id", resp.OrderID).Str("side", side).Str("symbol", symbol).
		Float64("price", price).Int64("volume", volume).Str("tag", tag).Msg("order accepted")
	return resp.OrderID, nil
}

// Buy places a tagged buy order through the bridge.
func (l *Live) Buy(ctx context.Context, account, symbol string, price float64, volume int64, tag, remark string) (string, error) {
	return l.order(ctx, "buy", account, symbol, price, volume, tag, remark)
}

// Sell places a tagged sell order through the bridge.
func (l *Live) Sell(ctx context.Context, account, symbol string, price float64, volume int64, tag, remark string) (string, error) {
	return l.order(ctx, "sell", account, symbol, price, volume, tag, remark)
}

// Holdings queries the broker position set. An empty result is normal
// (momentarily stale reads included) and never an error.
func (l *Live) Holdings(ctx context.Context, account string) (map[string]Holding, error) {
	var out map[string]Holding
	path := "/accounts/" + url.PathEscape(account) + "/holdings"
	if err := l.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]Holding{}
	}
	return out, nil
}

// Cash queries available cash.
func (l *Live) Cash(ctx context.Context, account string) (float64, error) {
	var out struct {
		Cash float64 `json:"cash"`
	}
	path := "/accounts/" + url.PathEscape(account) + "/cash"
	if err := l.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Cash, nil
}

// TotalAsset queries the marked account value.
func (l *Live) TotalAsset(ctx context.Context, account string) (float64, error) {
	var out struct {
		TotalAsset float64 `json:"total_asset"`
	}
	path := "/accounts/" + url.PathEscape(account) + "/asset"
	if err := l.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.TotalAsset, nil
}
