package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"FinSqueeze/internal/domain/models"
	drepo "FinSqueeze/internal/domain/repository"
	applogger "FinSqueeze/pkg/logger"
	"FinSqueeze/pkg/util"

	"github.com/gorilla/websocket"
)

// QuoteTracker keeps the last trade per symbol from the Finnhub trade stream.
// It only supplies quotes; bars are never built from it.
type QuoteTracker struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger
	metrics        drepo.Metrics

	mu     sync.RWMutex
	quotes map[string]models.Quote

	connMu sync.Mutex
	conn   *websocket.Conn
}

var _ drepo.QuoteSource = (*QuoteTracker)(nil)

// Option configures QuoteTracker.
type Option func(*QuoteTracker)

func WithLogger(l *applogger.Logger) Option {
	return func(t *QuoteTracker) { t.log = l }
}

func WithMetrics(m drepo.Metrics) Option {
	return func(t *QuoteTracker) { t.metrics = m }
}

// WithIntervals sets reconnect backoff and ping interval.
func WithIntervals(reconnect, ping time.Duration) Option {
	return func(t *QuoteTracker) {
		if reconnect > 0 {
			t.reconnectDelay = reconnect
		}
		if ping > 0 {
			t.pingInterval = ping
		}
	}
}

func New(apiKey, websocketURL string, symbols []string, opts ...Option) *QuoteTracker {
	t := &QuoteTracker{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		log:            applogger.Nop(),
		quotes:         make(map[string]models.Quote),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LastQuote returns the most recent trade seen for symbol.
func (t *QuoteTracker) LastQuote(_ context.Context, symbol string) (models.Quote, error) {
	symbol = util.NormalizeSymbol(symbol)
	t.mu.RLock()
	q, ok := t.quotes[symbol]
	t.mu.RUnlock()
	if !ok {
		return models.Quote{}, &models.DataUnavailableError{Symbol: symbol, Err: errors.New("no trade seen yet")}
	}
	return q, nil
}

// Run connects, subscribes and reads until ctx is done, reconnecting on failure.
func (t *QuoteTracker) Run(ctx context.Context) error {
	for {
		err := t.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		t.log.Warn("finnhub session ended", applogger.Error(err))
		if t.metrics != nil {
			t.metrics.RecordError("finnhub")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.reconnectDelay):
		}
	}
}

func (t *QuoteTracker) session(ctx context.Context) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer t.closeConn()

	for _, s := range t.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": util.NormalizeSymbol(s)}
		if err := t.write(func(c *websocket.Conn) error { return c.WriteJSON(msg) }); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	t.log.Info("finnhub subscribed", applogger.Strings("symbols", t.symbols))

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go t.pingLoop(sessCtx)
	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("finnhub read: %w", err)
		}
		t.handleFrame(b)
	}
}

func (t *QuoteTracker) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(t.websocketURL)
	if err != nil {
		return nil, fmt.Errorf("finnhub url: %w", err)
	}
	if t.apiKey != "" {
		q := u.Query()
		q.Set("token", t.apiKey)
		u.RawQuery = q.Encode()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("finnhub connect: %w", err)
	}
	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
	return conn, nil
}

func (t *QuoteTracker) write(fn func(*websocket.Conn) error) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn == nil {
		return errors.New("finnhub not connected")
	}
	return fn(t.conn)
}

func (t *QuoteTracker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = t.write(func(c *websocket.Conn) error {
				return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			})
		}
	}
}

func (t *QuoteTracker) closeConn() {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// handleFrame applies a trade frame; ping and unknown frames are ignored.
func (t *QuoteTracker) handleFrame(b []byte) {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range m.Data {
		q := models.Quote{Symbol: d.S, Price: d.P, Volume: d.V, Timestamp: time.UnixMilli(d.T).UTC()}
		if prev, ok := t.quotes[d.S]; ok && prev.Timestamp.After(q.Timestamp) {
			continue
		}
		t.quotes[d.S] = q
		if t.metrics != nil {
			t.metrics.RecordLastPrice(d.S, d.P)
		}
	}
}
