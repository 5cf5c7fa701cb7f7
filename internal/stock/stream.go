// Package stock keeps a live feed of stock levels for the products the
// storefront is watching.
package stock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// State is the connection state of a Stream.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Backoff
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	default:
		return "idle"
	}
}

var errStreamEnded = errors.New("stock stream ended")

// TokenSource supplies the bearer token sent with the stream request.
type TokenSource interface {
	Token() string
}

// Scheduler runs fn after d and returns a func that cancels it.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

// Listener receives a copy of the full stock map after every applied event.
type Listener func(stock map[string]int)

// Option configures a Stream.
type Option func(*Stream)

// WithBackoff sets the first reconnect delay and its cap.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(s *Stream) {
		s.initialBackoff = initial
		s.maxBackoff = maxDelay
	}
}

// WithJitter replaces the random extra delay added to every reconnect.
func WithJitter(fn func(base time.Duration) time.Duration) Option {
	return func(s *Stream) { s.jitter = fn }
}

// WithScheduler replaces time.AfterFunc for reconnect timers.
func WithScheduler(fn Scheduler) Option {
	return func(s *Stream) { s.schedule = fn }
}

// WithHTTPClient sets the client used for stream connections.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Stream) { s.httpClient = c }
}

// Stream holds at most one live connection to the stock endpoint, scoped
// to the current watch set, and reconnects with jittered exponential
// backoff. The stock map only holds watched products.
type Stream struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenSource

	initialBackoff time.Duration
	maxBackoff     time.Duration
	jitter         func(time.Duration) time.Duration
	schedule       Scheduler

	mu        sync.Mutex
	state     State
	ids       []string
	watched   map[string]bool
	visible   bool
	closed    bool
	gen       uint64
	cancel    context.CancelFunc
	stopTimer func() bool
	backoff   *backoff.ExponentialBackOff
	stock     map[string]int
	listeners []Listener

	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewStream creates an idle stream for the given endpoint URL. tokens may be
// nil for anonymous connections.
func NewStream(endpoint string, tokens TokenSource, logger zerolog.Logger, opts ...Option) *Stream {
	s := &Stream{
		endpoint:       endpoint,
		httpClient:     &http.Client{},
		tokens:         tokens,
		initialBackoff: time.Second,
		maxBackoff:     30 * time.Second,
		jitter:         defaultJitter,
		schedule: func(d time.Duration, fn func()) func() bool {
			return time.AfterFunc(d, fn).Stop
		},
		visible: true,
		watched: make(map[string]bool),
		stock:   make(map[string]int),
		logger:  logger.With().Str("component", "stock-stream").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.backoff = &backoff.ExponentialBackOff{
		InitialInterval:     s.initialBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         s.maxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	s.backoff.Reset()

	return s
}

// defaultJitter adds up to a quarter of the base delay.
func defaultJitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(base)/4 + 1))
}

// OnUpdate registers a listener for applied stock events.
func (s *Stream) OnUpdate(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Open replaces the watch set, closing any current connection first. An
// empty set leaves the stream idle.
func (s *Stream) Open(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.teardownLocked()

	s.ids = append([]string(nil), ids...)
	s.watched = make(map[string]bool, len(ids))
	for _, id := range ids {
		s.watched[id] = true
	}
	for id := range s.stock {
		if !s.watched[id] {
			delete(s.stock, id)
		}
	}

	if len(s.ids) == 0 {
		s.logger.Debug().Msg("empty watch set, stream idle")
		return
	}
	if !s.visible {
		s.logger.Debug().Int("watched", len(s.ids)).Msg("hidden, deferring connection")
		return
	}

	s.connectLocked()
}

// SetVisible tears the connection down while hidden and reopens it, for a
// nonempty watch set, once visible again.
func (s *Stream) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.visible == visible {
		return
	}
	s.visible = visible

	if !visible {
		s.logger.Debug().Msg("hidden, closing stream")
		s.teardownLocked()
		return
	}

	if len(s.ids) > 0 && s.state == Idle {
		s.logger.Debug().Msg("visible, reopening stream")
		s.connectLocked()
	}
}

// Close releases the connection and any pending reconnect timer, and waits
// for the reader goroutine to exit.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.teardownLocked()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug().Msg("stock stream closed")
}

// State returns the current connection state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watched returns the current watch set.
func (s *Stream) Watched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

// Stock returns the last known stock of a watched product. The second
// result is false when nothing is known, which is not the same as zero.
func (s *Stream) Stock(productID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.stock[productID]
	return n, ok
}

// Snapshot returns a copy of the stock map.
func (s *Stream) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyStockLocked()
}

func (s *Stream) copyStockLocked() map[string]int {
	out := make(map[string]int, len(s.stock))
	for k, v := range s.stock {
		out[k] = v
	}
	return out
}

// teardownLocked cancels the live connection and the pending reconnect.
// Any goroutine still running belongs to an older generation.
func (s *Stream) teardownLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.state = Idle
}

func (s *Stream) connectLocked() {
	s.gen++
	gen := s.gen

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopTimer = nil
	s.state = Connecting

	target := s.streamURL()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, gen, target)
	}()
}

func (s *Stream) streamURL() string {
	sep := "?"
	if strings.Contains(s.endpoint, "?") {
		sep = "&"
	}
	return s.endpoint + sep + "ids=" + url.QueryEscape(strings.Join(s.ids, ","))
}

func (s *Stream) run(ctx context.Context, gen uint64, target string) {
	err := s.consume(ctx, gen, target)
	if ctx.Err() != nil {
		return
	}
	s.fail(gen, err)
}

func (s *Stream) consume(ctx context.Context, gen uint64, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.tokens != nil {
		if token := s.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect stock stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stock stream returned status %d", resp.StatusCode)
	}

	if !s.markConnected(gen) {
		return nil
	}

	frames := newFrameReader(resp.Body)
	for {
		events, err := frames.next()
		if err != nil {
			return fmt.Errorf("stock stream read failed: %w", err)
		}
		for _, ev := range events {
			data, _ := ev.Data.(string)
			s.apply(gen, ev.Event, data)
		}
	}
}

func (s *Stream) markConnected(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed {
		return false
	}
	s.state = Connected
	s.backoff.Reset()
	s.logger.Info().Int("watched", len(s.ids)).Msg("stock stream connected")
	return true
}

// apply merges one event into the stock map. Unparseable payloads are
// skipped.
func (s *Stream) apply(gen uint64, event, data string) {
	records, err := parseRecords(event, data)
	if err != nil {
		s.logger.Debug().Err(err).Str("event", event).Msg("skipping malformed stock event")
		return
	}
	if len(records) == 0 {
		return
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	for _, r := range records {
		if s.watched[r.ProductID] {
			s.stock[r.ProductID] = r.Stock
		}
	}
	snapshot := s.copyStockLocked()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// fail schedules a reconnect of the current generation.
func (s *Stream) fail(gen uint64, err error) {
	if err == nil {
		err = errStreamEnded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed {
		return
	}

	base := s.backoff.NextBackOff()
	delay := base + s.jitter(base)

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = Backoff
	s.stopTimer = s.schedule(delay, func() { s.retry(gen) })

	s.logger.Debug().Err(err).Dur("delay", delay).Msg("stock stream lost, reconnecting")
}

func (s *Stream) retry(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed || s.state != Backoff {
		return
	}
	s.connectLocked()
}
