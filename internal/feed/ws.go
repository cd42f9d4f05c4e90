// Package feed consumes the venue's websocket activity stream and lands
// source trades and market resolutions in the archive.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mirrorlab/internal/observability"
)

const (
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// TradeHandler receives every fill message on the activity channel.
type TradeHandler func(*TradeMessage)

// ResolutionHandler receives every market resolution message.
type ResolutionHandler func(*ResolutionMessage)

// Client is a websocket client for the venue activity feed. It manages the
// connection lifecycle, restores subscriptions on reconnect, and dispatches
// messages to registered handlers.
type Client struct {
	wsURL         string
	reconnectWait time.Duration
	log           *slog.Logger

	mu            sync.RWMutex
	conn          *websocket.Conn
	closed        bool
	subscriptions []Command

	handlerMu          sync.RWMutex
	tradeHandlers      []TradeHandler
	resolutionHandlers []ResolutionHandler

	done chan struct{}
}

// NewClient creates a feed client for the given websocket endpoint.
func NewClient(wsURL string, reconnectWait time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if reconnectWait <= 0 {
		reconnectWait = reconnectDelay
	}
	return &Client{
		wsURL:         wsURL,
		reconnectWait: reconnectWait,
		log:           log,
		done:          make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the read and
// ping loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("feed: client closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", c.wsURL, err)
	}
	c.conn = conn

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop()
	go c.pingLoop()

	// Restore subscriptions after a reconnect.
	for _, cmd := range c.subscriptions {
		if err := c.sendCommand(cmd); err != nil {
			return fmt.Errorf("feed: restore subscription: %w", err)
		}
	}
	return nil
}

// Subscribe subscribes to a channel, optionally scoped to asset ids.
func (c *Client) Subscribe(channel string, assetIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("feed: not connected")
	}
	cmd := Command{Type: "subscribe", Channel: channel, Assets: assetIDs}
	if err := c.sendCommand(cmd); err != nil {
		return fmt.Errorf("feed: subscribe to %s: %w", channel, err)
	}
	c.subscriptions = append(c.subscriptions, cmd)
	return nil
}

// OnTrade registers a handler for fill messages.
func (c *Client) OnTrade(h TradeHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.tradeHandlers = append(c.tradeHandlers, h)
}

// OnResolution registers a handler for market resolution messages.
func (c *Client) OnResolution(h ResolutionHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.resolutionHandlers = append(c.resolutionHandlers, h)
}

// Close shuts down the connection and stops the loops.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return c.conn.Close()
	}
	return nil
}

// sendCommand sends a JSON command. Caller must hold c.mu.
func (c *Client) sendCommand(cmd Command) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn("feed connection lost, reconnecting", "error", err)
			c.reconnect()
			return // readLoop restarts via reconnect -> Connect
		}
		c.handleMessage(message)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage routes a raw message by its event type. Unparseable
// messages are dropped.
func (c *Client) handleMessage(raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.EventType {
	case "trade":
		var m TradeMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return
		}
		c.handlerMu.RLock()
		handlers := c.tradeHandlers
		c.handlerMu.RUnlock()
		for _, h := range handlers {
			h(&m)
		}

	case "market_resolved":
		var m ResolutionMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return
		}
		c.handlerMu.RLock()
		handlers := c.resolutionHandlers
		c.handlerMu.RUnlock()
		for _, h := range handlers {
			h(&m)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. Blocks
// until connected or the client is closed.
func (c *Client) reconnect() {
	delay := c.reconnectWait

	for {
		select {
		case <-c.done:
			return
		default:
		}

		time.Sleep(delay)

		observability.RecordFeedReconnect()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		c.log.Warn("feed reconnect failed", "error", err, "retry_in", delay)

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
