package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ListenerConfig configures the treasury listener's connection behavior.
type ListenerConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultListenerConfig returns default listener configuration.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// BalanceUpdate is one pushed balance change for a watched address.
type BalanceUpdate struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
	TxID    string `json:"tx_id"`
}

// TreasuryListener watches treasury addresses over a websocket and
// pushes balance updates to a channel. Used by the reconcile scheduler
// to trigger an out-of-cycle reconciliation when the treasury moves.
type TreasuryListener struct {
	endpoint  string
	addresses []string
	config    ListenerConfig
	logger    *log.Logger

	conn    *websocket.Conn
	connMu  sync.Mutex
	closed  atomic.Bool
	updates chan BalanceUpdate

	done chan struct{}
	wg   sync.WaitGroup
}

// NewTreasuryListener connects and subscribes to the given addresses.
func NewTreasuryListener(ctx context.Context, endpoint string, addresses []string, config *ListenerConfig, logger *log.Logger) (*TreasuryListener, error) {
	cfg := DefaultListenerConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	l := &TreasuryListener{
		endpoint:  endpoint,
		addresses: addresses,
		config:    cfg,
		logger:    logger,
		updates:   make(chan BalanceUpdate, 64),
		done:      make(chan struct{}),
	}

	if err := l.connect(ctx); err != nil {
		return nil, err
	}

	l.wg.Add(2)
	go l.readLoop()
	go l.pingLoop()

	return l, nil
}

// Updates returns the channel of pushed balance changes. Closed when
// the listener shuts down.
func (l *TreasuryListener) Updates() <-chan BalanceUpdate {
	return l.updates
}

// Close shuts the listener down and closes the updates channel.
func (l *TreasuryListener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(l.done)

	l.connMu.Lock()
	if l.conn != nil {
		l.conn.Close()
	}
	l.connMu.Unlock()

	l.wg.Wait()
	close(l.updates)
	return nil
}

// connect dials the endpoint and subscribes to the watched addresses.
func (l *TreasuryListener) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, l.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	sub := map[string]any{
		"method":    "subscribeBalances",
		"addresses": l.addresses,
	}
	conn.SetWriteDeadline(time.Now().Add(l.config.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
	return nil
}

// readLoop reads balance notifications, reconnecting with exponential
// backoff on connection loss.
func (l *TreasuryListener) readLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			return
		default:
		}

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(l.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if l.closed.Load() {
				return
			}
			l.logger.Printf("[chain] read: %v, reconnecting", err)
			if !l.reconnect() {
				return
			}
			continue
		}

		var update BalanceUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			l.logger.Printf("[chain] malformed notification: %v", err)
			continue
		}
		if update.Address == "" {
			continue
		}

		select {
		case l.updates <- update:
		case <-l.done:
			return
		default:
			// An update only signals that a reconcile is due.
			l.logger.Printf("[chain] updates channel full, dropping notification for %s", update.Address)
		}
	}
}

// reconnect retries the connection with exponential backoff until it
// succeeds or the listener closes. Returns false if closed.
func (l *TreasuryListener) reconnect() bool {
	delay := l.config.ReconnectDelay

	for {
		select {
		case <-l.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := l.connect(ctx)
		cancel()
		if err == nil {
			l.logger.Printf("[chain] reconnected to %s", l.endpoint)
			return true
		}

		l.logger.Printf("[chain] reconnect failed: %v", err)
		delay *= 2
		if delay > l.config.MaxReconnectDelay {
			delay = l.config.MaxReconnectDelay
		}
	}
}

// pingLoop keeps the connection alive.
func (l *TreasuryListener) pingLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.connMu.Lock()
			conn := l.conn
			l.connMu.Unlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(l.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				l.logger.Printf("[chain] ping: %v", err)
			}
		}
	}
}
