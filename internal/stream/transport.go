package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one raw inbound frame with its local receive timestamp.
type Frame struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when the read returned
}

// TransportConfig configures a single WebSocket transport.
type TransportConfig struct {
	URL          string        // WebSocket URL (e.g. ws://feed.example.com/ws)
	DialTimeout  time.Duration // Handshake timeout
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Frame channel buffer size
}

// Transport is one persistent bidirectional connection to the price feed.
// Exactly one owner (the Manager) holds and mutates it.
type Transport interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close initiates a clean shutdown: a normal-closure frame is sent and
	// no error is surfaced for the resulting read teardown.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Frames returns the inbound frame channel. It is closed when the read
	// loop stops, for any reason.
	Frames() <-chan Frame

	// Errors returns a channel carrying the read failure, if any, that
	// stopped the transport. Locally initiated closes produce none.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// wsTransport implements Transport over gorilla/websocket.
type wsTransport struct {
	cfg    TransportConfig
	logger *slog.Logger

	conn *websocket.Conn

	frames chan Frame
	errors chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewTransport creates a new WebSocket transport.
func NewTransport(cfg TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1024
	}

	return &wsTransport{
		cfg:    cfg,
		logger: logger,
		frames: make(chan Frame, cfg.BufferSize),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read loop.
func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	go t.readLoop()

	t.logger.Debug("websocket connected", "url", t.cfg.URL)

	return nil
}

// Close initiates a clean shutdown.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	conn := t.conn
	t.mu.Unlock()

	// Signal the read loop to treat the teardown as intentional.
	close(t.done)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}

	return nil
}

// Send writes raw bytes to the connection.
func (t *wsTransport) Send(data []byte) error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.RUnlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Frames returns the inbound frame channel.
func (t *wsTransport) Frames() <-chan Frame {
	return t.frames
}

// Errors returns the error channel.
func (t *wsTransport) Errors() <-chan error {
	return t.errors
}

// IsConnected returns the current connection state.
func (t *wsTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// readLoop reads frames from the WebSocket until the connection drops or
// Close is called. The error, when the stop was not locally initiated, is
// published before the frame channel closes so the owner can observe both.
func (t *wsTransport) readLoop() {
	defer func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		close(t.frames)
	}()

	for {
		select {
		case <-t.done:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Close() is called.
			select {
			case <-t.done:
				return
			default:
				select {
				case t.errors <- err:
				default:
				}
				return
			}
		}

		select {
		case t.frames <- Frame{Data: data, ReceivedAt: receivedAt}:
		case <-t.done:
			return
		default:
			t.logger.Warn("frame buffer full, dropping frame")
		}
	}
}

// isCleanClose reports whether a read error represents a close that the peer
// announced as intentional.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
