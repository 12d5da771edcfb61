package tradernet

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	writeWait           = 10 * time.Second
	dialTimeout         = 30 * time.Second
	baseReconnectDelay  = 5 * time.Second
	maxReconnectDelay   = 5 * time.Minute
	cacheStaleThreshold = 5 * time.Minute
)

// MarketStatus is one market's open/closed state as reported over
// Tradernet's "markets" WebSocket channel.
type MarketStatus struct {
	Code      string
	Status    string
	UpdatedAt time.Time
}

// MarketStatusStream maintains a live cache of market open/closed status
// from Tradernet's WebSocket feed, reconnecting with exponential backoff
// on disconnect. It gates the allocation job (§4.10) against closed
// markets rather than letting orders queue around the clock.
type MarketStatusStream struct {
	url        string
	sid        string
	httpClient *http.Client
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	log zerolog.Logger

	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	cache      map[string]MarketStatus
	lastUpdate time.Time
	cacheMu    sync.RWMutex
}

// createHTTP1Client forces HTTP/1.1: Cloudflare negotiates HTTP/2 via TLS
// ALPN, but the WebSocket upgrade handshake requires HTTP/1.1.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:       (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSClientConfig:   &tls.Config{NextProtos: []string{"http/1.1"}},
			ForceAttemptHTTP2: false,
		},
	}
}

// NewMarketStatusStream creates a market-status stream client against the
// given Tradernet WebSocket URL and optional session id.
func NewMarketStatusStream(url, sid string, log zerolog.Logger) *MarketStatusStream {
	return &MarketStatusStream{
		url:        url,
		sid:        sid,
		httpClient: createHTTP1Client(),
		log:        log.With().Str("component", "market_status_stream").Logger(),
		cache:      make(map[string]MarketStatus),
		stopChan:   make(chan struct{}),
	}
}

// Start connects and begins the read loop, retrying in the background if
// the initial dial fails.
func (s *MarketStatusStream) Start() error {
	if err := s.connect(); err != nil {
		s.log.Warn().Err(err).Msg("initial market status connection failed, retrying in background")
		go s.reconnectLoop()
		return err
	}
	s.mu.RLock()
	ctx := s.connCtx
	s.mu.RUnlock()
	go s.readLoop(ctx)
	return nil
}

// Stop closes the stream and halts reconnection.
func (s *MarketStatusStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
	return s.disconnect()
}

func (s *MarketStatusStream) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wsURL := s.url
	if s.sid != "" {
		wsURL += "?SID=" + s.sid
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{HTTPClient: s.httpClient})
	if err != nil {
		return fmt.Errorf("failed to dial market status stream: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	s.conn = conn
	s.connCtx = connCtx
	s.cancelFunc = connCancel
	s.connected = true

	if err := s.subscribe(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		s.conn, s.connCtx, s.cancelFunc, s.connected = nil, nil, nil, false
		return fmt.Errorf("failed to subscribe to markets channel: %w", err)
	}
	return nil
}

func (s *MarketStatusStream) disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	err := s.conn.Close(websocket.StatusNormalClosure, "")
	s.conn, s.connCtx, s.connected = nil, nil, false
	if err != nil {
		return fmt.Errorf("error closing market status stream: %w", err)
	}
	return nil
}

func (s *MarketStatusStream) subscribe(ctx context.Context) error {
	data, err := json.Marshal([]string{"markets"})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return s.conn.Write(writeCtx, websocket.MessageText, data)
}

func (s *MarketStatusStream) readLoop(ctx context.Context) {
	defer func() {
		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if !stopped {
			go s.reconnectLoop()
		}
	}()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			s.log.Debug().Err(err).Msg("market status stream read ended")
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := s.handleMessage(message); err != nil {
			s.log.Error().Err(err).Msg("failed to handle market status message")
		}
	}
}

func (s *MarketStatusStream) handleMessage(message []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(message, &raw); err != nil {
		return fmt.Errorf("failed to parse message envelope: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("market status message too short")
	}

	var channel string
	if err := json.Unmarshal(raw[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}
	if channel != "markets" {
		return nil
	}

	var payload struct {
		Markets []struct {
			Code   string `json:"code"`
			Status string `json:"status"`
		} `json:"markets"`
	}
	if err := json.Unmarshal(raw[1], &payload); err != nil {
		return fmt.Errorf("failed to parse market payload: %w", err)
	}

	now := time.Now().UTC()
	s.cacheMu.Lock()
	for _, m := range payload.Markets {
		s.cache[m.Code] = MarketStatus{Code: m.Code, Status: m.Status, UpdatedAt: now}
	}
	s.lastUpdate = now
	s.cacheMu.Unlock()
	return nil
}

func (s *MarketStatusStream) reconnectLoop() {
	s.mu.Lock()
	if s.reconnecting || s.stopped {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}
		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if stopped {
			return
		}

		attempt++
		delay := time.Duration(math.Min(
			float64(baseReconnectDelay)*math.Pow(2, float64(attempt-1)),
			float64(maxReconnectDelay),
		))

		select {
		case <-time.After(delay):
		case <-s.stopChan:
			return
		}

		if err := s.connect(); err != nil {
			s.log.Error().Err(err).Int("attempt", attempt).Msg("market status reconnect failed")
			continue
		}

		s.mu.RLock()
		ctx := s.connCtx
		s.mu.RUnlock()
		go s.readLoop(ctx)
		return
	}
}

// IsOpen reports whether the named market is currently open. Returns an
// error if the market code has never been observed in the cache.
func (s *MarketStatusStream) IsOpen(code string) (bool, error) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	status, ok := s.cache[code]
	if !ok {
		return false, fmt.Errorf("market %s not found in status cache", code)
	}
	return status.Status == "open", nil
}

// IsCacheStale reports whether the cache hasn't refreshed recently enough
// to be trusted.
func (s *MarketStatusStream) IsCacheStale() bool {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.lastUpdate.IsZero() || time.Since(s.lastUpdate) > cacheStaleThreshold
}
