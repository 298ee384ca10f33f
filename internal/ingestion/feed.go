package ingestion

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"marketmirror/internal/event"
	"marketmirror/internal/observability"
)

const (
	readTimeout      = 60 * time.Second
	initialBackoff   = time.Second
	maxBackoff       = 60 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Handler consumes one decoded feed event.
type Handler func(ctx context.Context, evt event.Event) error

// Feed maintains the websocket connection to the exchange's event stream.
// Each (re)connection synthesizes a connection-start event before any
// frames, so the consumer knows its mirrored books may be stale and can
// resync.
type Feed struct {
	url      string
	apiKey   string
	handler  Handler
	repeater *Repeater
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func NewFeed(url, apiKey string, handler Handler, metrics *observability.Metrics,
	log zerolog.Logger) *Feed {
	return &Feed{
		url:     url,
		apiKey:  apiKey,
		handler: handler,
		metrics: metrics,
		log:     log,
	}
}

// AttachRepeater re-broadcasts every raw frame to the repeater's clients.
func (f *Feed) AttachRepeater(r *Repeater) {
	f.repeater = r
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff on any failure.
func (f *Feed) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		err := f.connectAndStream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn().Err(err).Dur("retry_in", backoff).Msg("feed disconnected")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *Feed) connectAndStream(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	if f.apiKey != "" {
		header.Set("Authorization", "JWT "+f.apiKey)
	}
	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	f.metrics.FeedReconnects.Inc()
	f.log.Info().Str("url", f.url).Msg("feed connected")

	// Close the connection when ctx ends so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := f.handler(ctx, &event.WebsocketStarting{}); err != nil {
		return err
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.metrics.FeedMessages.Inc()
		if f.repeater != nil {
			f.repeater.Broadcast(data)
		}

		evt, err := ParseMessage(data)
		if err != nil {
			f.metrics.ParseFailures.Inc()
			f.log.Error().Err(err).Msg("rejected feed frame")
			continue
		}
		if err := f.handler(ctx, evt); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			f.log.Error().Err(err).Stringer("kind", evt.Kind()).
				Msg("event failed to apply")
		}
	}
}
