package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedServer accepts one websocket client, writes each frame, then closes.
func feedServer(t *testing.T, frames []string) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Give the client time to drain before the close handshake.
		time.Sleep(50 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collectTicks(ctx context.Context, feed *Feed, want int) []MinuteTick {
	var out []MinuteTick
	for len(out) < want {
		select {
		case tick, ok := <-feed.Ticks():
			if !ok {
				return out
			}
			out = append(out, tick)
		case <-ctx.Done():
			return out
		}
	}
	return out
}

func TestFeed_DeliversParsedTicks(t *testing.T) {
	url := feedServer(t, []string{
		`{"time":"20240110100500","bars":{"600000.SH":{"open":10,"high":10.1,"low":9.9,"close":10.05,"volume":150000,"amount":1500000}}}`,
		`{"time":"20240110100600","bars":{"600000.SH":{"open":10.05,"high":10.2,"low":10,"close":10.15,"volume":90000,"amount":912000}}}`,
	})

	cfg := DefaultFeedConfig()
	cfg.URL = url
	feed := NewFeed(cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	ticks := collectTicks(ctx, feed, 2)
	cancel()
	<-done

	require.Len(t, ticks, 2)
	assert.Equal(t, "20240110100500", ticks[0].Timestamp)
	bar := ticks[0].Bars["600000.SH"]
	assert.Equal(t, 10.05, bar.Close)
	assert.Equal(t, 150000.0, bar.Volume)
	assert.Equal(t, "20240110100600", ticks[1].Timestamp)
}

func TestFeed_SkipsMalformedFrames(t *testing.T) {
	url := feedServer(t, []string{
		`not json`,
		`{"time":"1005","bars":{"600000.SH":{"close":10}}}`,
		`{"time":"20240110100500","bars":{}}`,
		`{"time":"20240110100700","bars":{"600000.SH":{"close":10.2,"volume":1000,"amount":10200}}}`,
	})

	cfg := DefaultFeedConfig()
	cfg.URL = url
	feed := NewFeed(cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	ticks := collectTicks(ctx, feed, 1)
	cancel()
	<-done

	require.Len(t, ticks, 1)
	assert.Equal(t, "20240110100700", ticks[0].Timestamp)
}

func TestFeed_RequiresURL(t *testing.T) {
	feed := NewFeed(FeedConfig{ReadTimeout: time.Second, ReconnectWait: time.Millisecond}, zerolog.Nop())
	err := feed.Run(context.Background())
	assert.Error(t, err)

	_, open := <-feed.Ticks()
	assert.False(t, open, "ticks channel closes when Run returns")
}

func TestFeed_StopsOnContextCancel(t *testing.T) {
	cfg := FeedConfig{URL: "ws://127.0.0.1:1", ReadTimeout: time.Second, ReconnectWait: 10 * time.Millisecond}
	feed := NewFeed(cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}
