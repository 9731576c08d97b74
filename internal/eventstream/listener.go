// Package eventstream maintains the WebSocket connection that delivers
// controller push events. The listener authenticates with its first message,
// then forwards every decoded event to a channel consumed by the client's
// reconciliation goroutine. A dropped connection ends listening; liveness is
// observable through Alive, not through an error.
package eventstream

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simlab-dev/simlab/internal/log"
	"github.com/simlab-dev/simlab/internal/model"
)

const (
	// eventPath is the controller's event endpoint.
	eventPath = "/ws/ui"

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	pongWait         = 30 * time.Second
	pingInterval     = 15 * time.Second

	eventBuffer = 64
)

// ListenerConfig is the configuration for the event listener.
type ListenerConfig struct {
	// URL is the controller base URL; the listener rewrites it to the
	// WebSocket scheme and event endpoint.
	URL string
	// Token supplies a currently-valid bearer token for the auth handshake.
	Token func(ctx context.Context) (string, error)
	// ClientID identifies this client session in the auth handshake.
	ClientID string
	// Insecure skips TLS certificate verification.
	Insecure bool
	// Logger is the logger.
	Logger log.Logger
}

func (c *ListenerConfig) defaults() error {
	if c.URL == "" {
		return fmt.Errorf("controller URL is required")
	}
	if c.Token == nil {
		return fmt.Errorf("token source is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "eventstream.Listener"})

	return nil
}

// Listener is a single event stream connection. Create with NewListener,
// connect with Listen, consume Events until the channel closes, stop with
// Close.
type Listener struct {
	wsURL    string
	token    func(ctx context.Context) (string, error)
	clientID string
	insecure bool
	logger   log.Logger

	conn      *websocket.Conn
	events    chan model.Event
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	alive     atomic.Bool
}

// NewListener creates a new event listener.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wsURL, err := eventURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	return &Listener{
		wsURL:    wsURL,
		token:    cfg.Token,
		clientID: cfg.ClientID,
		insecure: cfg.Insecure,
		logger:   cfg.Logger,
		events:   make(chan model.Event, eventBuffer),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Listen connects, sends the auth handshake and starts the read loop.
func (l *Listener) Listen(ctx context.Context) error {
	token, err := l.token(ctx)
	if err != nil {
		return fmt.Errorf("getting auth token: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	if l.insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	conn, _, err := dialer.DialContext(ctx, l.wsURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", l.wsURL, err)
	}

	// The first message authenticates the connection.
	auth := map[string]string{
		"token":       token,
		"client_uuid": l.clientID,
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(auth); err != nil {
		conn.Close()
		return fmt.Errorf("sending auth message: %w", err)
	}

	l.conn = conn
	l.alive.Store(true)
	l.logger.Infof("Connected to event stream at %s", l.wsURL)

	go l.readLoop()
	go l.pingLoop()

	return nil
}

// Events returns the event channel. It is closed when listening ends.
func (l *Listener) Events() <-chan model.Event { return l.events }

// Alive reports whether the read loop is still running. A connection dropped
// by the server flips this to false without any error surfacing.
func (l *Listener) Alive() bool { return l.alive.Load() }

// Close signals the read loop to stop and blocks until it has exited.
// Safe to call more than once.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		close(l.closeCh)
		if l.conn != nil {
			l.conn.Close()
		}
	})
	if l.conn != nil {
		<-l.done
	}
}

func (l *Listener) readLoop() {
	defer func() {
		l.alive.Store(false)
		close(l.events)
		close(l.done)
		l.logger.Infof("Event stream closed")
	}()

	l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.closeCh:
			default:
				l.logger.Errorf("Event connection closed unexpectedly: %v", err)
			}
			return
		}
		l.conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := model.ParseEvent(raw)
		if err != nil {
			l.logger.Warningf("Discarding undecodable event: %v", err)
			continue
		}

		select {
		case l.events <- ev:
		case <-l.closeCh:
			return
		}
	}
}

func (l *Listener) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.closeCh:
			return
		case <-l.done:
			return
		case <-ticker.C:
			l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// eventURL rewrites the controller base URL to the WebSocket event endpoint.
func eventURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing controller URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "wss", "ws":
	default:
		return "", fmt.Errorf("unsupported controller URL scheme %q", u.Scheme)
	}
	u.Path = eventPath
	return u.String(), nil
}
