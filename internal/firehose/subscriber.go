// Package firehose consumes the Bluesky Jetstream firehose and feeds post
// creates and deletes into the feed service.
package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/classifier"
	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/domain"
)

const (
	cursorServiceName = "jetstream"

	defaultCursorSaveInterval = 5 * time.Second
	defaultStatsInterval      = 30 * time.Second
	defaultIdleTimeout        = 60 * time.Second
)

// wantedCollections is the set of AT Proto collection NSIDs this subscriber
// requests from Jetstream. Only post events are needed for feed matching.
var wantedCollections = []string{
	domain.PostCollection,
}

// Handler receives decoded post events. *domain.FeedService implements it.
type Handler interface {
	ProcessNewPost(ctx context.Context, post *domain.IncomingPost) (classifier.Result, error)
	ProcessDeletePost(ctx context.Context, uri string) error
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// State is the connection state of a Subscriber.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Options tunes a Subscriber. Zero values take the defaults.
type Options struct {
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	IdleTimeout        time.Duration
	StatsInterval      time.Duration
	CursorSaveInterval time.Duration

	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

// Counters is a snapshot of ingest throughput since start.
type Counters struct {
	Processed int64
	Indexed   int64
	Deleted   int64
}

// Subscriber connects to the Jetstream firehose and processes events.
type Subscriber struct {
	url     string
	handler Handler
	logger  *slog.Logger
	dialer  *websocket.Dialer

	backoff            Backoff
	idleTimeout        time.Duration
	statsInterval      time.Duration
	cursorSaveInterval time.Duration

	state     atomic.Int32
	processed atomic.Int64
	indexed   atomic.Int64
	deleted   atomic.Int64
	metrics   *ingestMetrics

	// sleep waits between reconnects; tests replace it to observe delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSubscriber creates a new firehose subscriber.
func NewSubscriber(firehoseURL string, handler Handler, logger *slog.Logger, opts Options) (*Subscriber, error) {
	if _, err := url.Parse(firehoseURL); err != nil {
		return nil, fmt.Errorf("parse firehose url: %w", err)
	}

	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/firehose")
	}
	metrics, err := newIngestMetrics(meter)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		url:                firehoseURL,
		handler:            handler,
		logger:             logger,
		dialer:             websocket.DefaultDialer,
		backoff:            Backoff{Base: opts.BackoffBase, Max: opts.BackoffMax},
		idleTimeout:        orDefault(opts.IdleTimeout, defaultIdleTimeout),
		statsInterval:      orDefault(opts.StatsInterval, defaultStatsInterval),
		cursorSaveInterval: orDefault(opts.CursorSaveInterval, defaultCursorSaveInterval),
		metrics:            metrics,
		sleep:              sleepContext,
	}
	return s, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// State returns the current connection state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// Counters returns the ingest counters.
func (s *Subscriber) Counters() Counters {
	return Counters{
		Processed: s.processed.Load(),
		Indexed:   s.indexed.Load(),
		Deleted:   s.deleted.Load(),
	}
}

func (s *Subscriber) setState(st State) {
	if State(s.state.Swap(int32(st))) != st {
		s.logger.Debug("firehose state changed", "state", st.String())
	}
}

// Start connects to the firehose and processes events until the context is
// cancelled. Every drop is followed by a backoff sleep and a reconnect.
func (s *Subscriber) Start(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	for {
		s.setState(StateConnecting)
		err := s.subscribe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.setState(StateReconnecting)
		delay := s.backoff.Next()
		s.metrics.reconnects.Add(ctx, 1)
		s.logger.Error("firehose connection error, reconnecting",
			"error", err,
			"attempt", s.backoff.Attempt(),
			"delay", delay,
		)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Subscriber) buildURL(cursor int64) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for _, c := range wantedCollections {
		q.Add("wantedCollections", c)
	}
	if cursor > 0 {
		q.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.handler.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL, err := s.buildURL(cursor)
	if err != nil {
		return fmt.Errorf("build firehose url: %w", err)
	}
	s.logger.Info("connecting to firehose", "url", wsURL)

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.setState(StateConnected)
	s.backoff.Reset()
	s.logger.Info("connected to firehose")

	latestCursor := cursor
	lastCursorSave := time.Now()
	lastStatsLog := time.Now()
	defer func() {
		// Keep progress made since the last periodic save.
		if latestCursor > cursor {
			s.saveCursor(context.WithoutCancel(ctx), latestCursor)
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		ev, err := decodeEvent(message)
		if err != nil {
			s.logger.Warn("failed to decode event", "error", err)
			continue
		}
		if c := ev.cursor(); c > latestCursor {
			latestCursor = c
		}

		s.handle(ctx, ev)

		if time.Since(lastStatsLog) >= s.statsInterval {
			c := s.Counters()
			s.logger.Info("firehose stats",
				"processed", c.Processed,
				"indexed", c.Indexed,
				"deleted", c.Deleted,
			)
			lastStatsLog = time.Now()
		}

		if time.Since(lastCursorSave) >= s.cursorSaveInterval {
			if s.saveCursor(ctx, latestCursor) {
				lastCursorSave = time.Now()
			}
		}
	}
}

func (s *Subscriber) saveCursor(ctx context.Context, cursor int64) bool {
	if err := s.handler.UpdateCursor(ctx, cursorServiceName, cursor); err != nil {
		s.logger.Error("failed to save cursor", "error", err)
		return false
	}
	return true
}

// handle applies one event. Store failures are logged and the event dropped.
func (s *Subscriber) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case postCreate:
		s.processed.Add(1)
		s.metrics.processed.Add(ctx, 1)

		res, err := s.handler.ProcessNewPost(ctx, &e.post)
		if err != nil {
			s.logger.Error("failed to process post", "uri", e.post.URI, "error", err)
			return
		}
		if res.Include {
			s.indexed.Add(1)
			s.metrics.indexed.Add(ctx, 1, metric.WithAttributes(reasonAttr(res.Reason)))
			s.logger.Info("indexed post",
				"uri", e.post.URI,
				"reason", string(res.Reason),
				"context_score", res.ContextScore,
				"text_preview", truncate(e.post.Text, 100),
			)
		}

	case postDelete:
		if err := s.handler.ProcessDeletePost(ctx, e.uri); err != nil {
			s.logger.Error("failed to delete post", "uri", e.uri, "error", err)
			return
		}
		s.deleted.Add(1)
		s.metrics.deleted.Add(ctx, 1)

	case skipped:
		if e.reply {
			s.metrics.replies.Add(ctx, 1)
		}
	}
}

// truncate returns the first n runes of s, appending "..." if truncated.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
