package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quantmill/uptrend/internal/factors"
)

// FeedConfig locates the vendor minute-bar stream.
type FeedConfig struct {
	URL           string        `yaml:"url"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultFeedConfig returns timeouts suited to a once-a-minute stream.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{ReadTimeout: 90 * time.Second, ReconnectWait: 5 * time.Second}
}

// feedMessage is the vendor wire format: one frame per minute.
type feedMessage struct {
	Time string                       `json:"time"` // YYYYMMDDHHMMSS
	Bars map[string]factors.MinuteBar `json:"bars"`
}

// Feed consumes the live minute-bar stream and delivers MinuteTicks. It
// reconnects on failure until the context ends; a gap in the stream means
// missed ticks, never a crash.
type Feed struct {
	cfg   FeedConfig
	log   zerolog.Logger
	ticks chan MinuteTick
}

// NewFeed builds a feed; call Run to start it.
func NewFeed(cfg FeedConfig, log zerolog.Logger) *Feed {
	return &Feed{
		cfg:   cfg,
		log:   log.With().Str("component", "minute_feed").Logger(),
		ticks: make(chan MinuteTick, 16),
	}
}

// Ticks delivers parsed minute ticks. Closed when Run returns.
func (f *Feed) Ticks() <-chan MinuteTick { return f.ticks }

// Run dials and pumps until ctx is done. Each disconnect logs and retries
// after the configured wait.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.ticks)
	if f.cfg.URL == "" {
		return fmt.Errorf("marketdata: feed url is required")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
		if err != nil {
			f.log.Warn().Err(err).Str("url", f.cfg.URL).Msg("feed dial failed, retrying")
			if !f.wait(ctx) {
				return ctx.Err()
			}
			continue
		}
		f.log.Info().Str("url", f.cfg.URL).Msg("feed connected")
		err = f.pump(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn().Err(err).Msg("feed disconnected, reconnecting")
		if !f.wait(ctx) {
			return ctx.Err()
		}
	}
}

func (f *Feed) pump(ctx context.Context, conn *websocket.Conn) error {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg feedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.log.Warn().Err(err).Msg("unparseable feed frame skipped")
			continue
		}
		if len(msg.Time) != 14 || len(msg.Bars) == 0 {
			continue
		}
		select {
		case f.ticks <- MinuteTick{Timestamp: msg.Time, Bars: msg.Bars}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Feed) wait(ctx context.Context) bool {
	select {
	case <-time.After(f.cfg.ReconnectWait):
		return true
	case <-ctx.Done():
		return false
	}
}
