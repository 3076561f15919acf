package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/pricestream/internal/model"
	"github.com/rickgao/pricestream/internal/protocol"
)

// State is one position in the connection lifecycle state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is the read-only connection snapshot published to observers.
// Invariant: Connected and Reconnecting are never both true.
type Status struct {
	State        State
	Connected    bool
	Reconnecting bool
	ClientID     string
	LastError    string
}

// reconnectDelayCap bounds the linear backoff multiplier.
const reconnectDelayCap = 5

// reconnectDelay returns the backoff before reconnect attempt n (1-based):
// linear growth capped at a fixed multiplier.
func reconnectDelay(base time.Duration, attempt int) time.Duration {
	mult := attempt
	if mult > reconnectDelayCap {
		mult = reconnectDelayCap
	}
	if mult < 1 {
		mult = 1
	}
	return base * time.Duration(mult)
}

// Config configures the Manager.
type Config struct {
	URL                  string        // WebSocket URL of the price feed
	ReconnectBaseDelay   time.Duration // Base backoff unit
	MaxReconnectAttempts int           // Consecutive failures before giving up
	PingInterval         time.Duration // Interval between liveness pings
	StaleTimeout         time.Duration // Max silence before forcing a reconnect; 0 disables
	DialTimeout          time.Duration // Handshake timeout
	WriteTimeout         time.Duration // Write deadline for sends
	BufferSize           int           // Inbound frame buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectBaseDelay:   time.Second,
		MaxReconnectAttempts: 10,
		PingInterval:         15 * time.Second,
		StaleTimeout:         60 * time.Second,
		DialTimeout:          10 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           1024,
	}
}

// Manager owns the transport and drives the connection lifecycle:
// Idle -> Connecting -> Connected -> (Disconnected | Reconnecting) -> ... ,
// with Closed reachable only through Close. It replays the subscription
// registry after every successful (re)connection and fans decoded events out
// to registered consumer callbacks.
type Manager struct {
	cfg      Config
	logger   *slog.Logger
	registry *Registry

	prices *fanout[model.PriceUpdate]
	states *fanout[Status]
	errs   *fanout[error]

	mu             sync.Mutex
	state          State
	clientID       string
	lastError      string
	transport      Transport
	attempts       int
	reconnectTimer *time.Timer
	gen            uint64 // Connection generation; bumping it invalidates pending timers and dials
	lastFrame      time.Time
}

// NewManager creates a Manager. It performs no I/O until Connect.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}

	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		registry: NewRegistry(),
		state:    StateIdle,
	}

	m.errs = newFanout[error](func(r any) {
		m.logger.Error("error handler panicked", "panic", r)
	})
	m.prices = newFanout[model.PriceUpdate](func(r any) {
		m.reportHandlerPanic("price", r)
	})
	m.states = newFanout[Status](func(r any) {
		m.reportHandlerPanic("state", r)
	})

	return m
}

// OnPrice registers a price-update handler and returns its disposer.
func (m *Manager) OnPrice(fn func(model.PriceUpdate)) func() {
	return m.prices.register(fn)
}

// OnStateChange registers a connection-state handler and returns its disposer.
func (m *Manager) OnStateChange(fn func(Status)) func() {
	return m.states.register(fn)
}

// OnError registers an error handler and returns its disposer. Every member
// of the error taxonomy surfaces here: transport failures, decode failures,
// server-sent errors, exhausted retries, and panicking sibling handlers.
func (m *Manager) OnError(fn func(error)) func() {
	return m.errs.register(fn)
}

// Status returns the current connection snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Subscribe records the desire for a symbol and, when connected, sends the
// subscribe command immediately. While disconnected only the desire is
// recorded; it is replayed on the next successful connection.
func (m *Manager) Subscribe(symbol string) {
	m.mu.Lock()
	added := m.registry.Add(symbol)
	tr := m.transport
	connected := m.state == StateConnected
	m.mu.Unlock()

	if added && connected && tr != nil {
		m.sendTo(tr, protocol.Subscribe(Canonical(symbol)))
	}
}

// Unsubscribe drops a symbol. Unsubscribing a non-member is a no-op.
func (m *Manager) Unsubscribe(symbol string) {
	m.mu.Lock()
	removed := m.registry.Remove(symbol)
	tr := m.transport
	connected := m.state == StateConnected
	m.mu.Unlock()

	if removed && connected && tr != nil {
		m.sendTo(tr, protocol.Unsubscribe(Canonical(symbol)))
	}
}

// Symbols returns the current subscription snapshot.
func (m *Manager) Symbols() []string {
	return m.registry.Snapshot()
}

// Connect opens the transport and blocks until it reports open or failed.
// Calling Connect while already connected resolves immediately. A pending
// reconnect is cancelled and the attempt counter reset, so a manual Connect
// always starts the policy over.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClientClosed
	case StateConnected:
		m.mu.Unlock()
		return nil
	}
	m.stopReconnectTimerLocked()
	m.gen++
	gen := m.gen
	m.attempts = 0
	st := m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	m.publish(st)

	return m.dial(ctx, gen, true)
}

// Disconnect cancels any pending reconnect atomically with the close
// sequence, closes the transport with a clean-shutdown signal, and clears the
// client id. The client stays usable: a later Connect starts over.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateClosed ||
		(m.state == StateDisconnected && m.transport == nil && m.reconnectTimer == nil) {
		m.mu.Unlock()
		return
	}
	m.stopReconnectTimerLocked()
	m.gen++
	tr := m.transport
	m.transport = nil
	m.clientID = ""
	m.attempts = 0
	st := m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	m.publish(st)
	m.logger.Info("disconnected")
}

// Close permanently shuts the client down. Further Connect calls fail with
// ErrClientClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.stopReconnectTimerLocked()
	m.gen++
	tr := m.transport
	m.transport = nil
	m.clientID = ""
	st := m.setStateLocked(StateClosed)
	m.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	m.publish(st)
	return nil
}

// Send transmits a command best-effort: it is silently dropped while not
// connected. Delivery is never queued.
func (m *Manager) Send(cmd protocol.Command) {
	m.mu.Lock()
	tr := m.transport
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || tr == nil {
		m.logger.Debug("dropping command while not connected", "type", cmd.Type)
		return
	}
	m.sendTo(tr, cmd)
}

// dial opens a transport for generation gen. A manual dial reports its
// failure to the caller; automatic retries report through the error fan-out.
// Either way a failure feeds the backoff policy.
func (m *Manager) dial(ctx context.Context, gen uint64, manual bool) error {
	tr := NewTransport(TransportConfig{
		URL:          m.cfg.URL,
		DialTimeout:  m.cfg.DialTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}, m.logger)

	err := tr.Connect(ctx)

	m.mu.Lock()
	if m.gen != gen || m.state == StateClosed {
		m.mu.Unlock()
		tr.Close()
		return ErrClientClosed
	}

	if err != nil {
		m.lastError = err.Error()
		st, exhausted := m.scheduleReconnectLocked(gen)
		m.mu.Unlock()
		m.publish(st)
		if !manual {
			m.errs.dispatch(&TransportError{Err: err})
		}
		if exhausted != nil {
			m.errs.dispatch(exhausted)
		}
		if manual {
			return &TransportError{Err: err}
		}
		return nil
	}

	m.transport = tr
	m.attempts = 0
	m.lastError = ""
	m.lastFrame = time.Now()
	st := m.setStateLocked(StateConnected)
	symbols := m.registry.Snapshot()
	m.mu.Unlock()
	m.publish(st)

	go m.readLoop(tr, gen)
	go m.pingLoop(tr, gen)

	// Resync: the registry is the source of truth, not the transport.
	for _, sym := range symbols {
		m.sendTo(tr, protocol.Subscribe(sym))
	}

	m.logger.Info("connected", "url", m.cfg.URL, "resubscribed", len(symbols))
	return nil
}

// scheduleReconnectLocked arms the next retry timer or, when attempts hit the
// cap, parks the client in Disconnected and returns the terminal error for
// the caller to report exactly once.
func (m *Manager) scheduleReconnectLocked(gen uint64) (Status, error) {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		st := m.setStateLocked(StateDisconnected)
		return st, &ExhaustedRetriesError{Attempts: m.attempts}
	}

	m.attempts++
	attempt := m.attempts
	delay := reconnectDelay(m.cfg.ReconnectBaseDelay, attempt)
	st := m.setStateLocked(StateReconnecting)

	m.logger.Info("scheduling reconnect",
		"attempt", attempt,
		"max_attempts", m.cfg.MaxReconnectAttempts,
		"delay", delay,
	)

	m.reconnectTimer = time.AfterFunc(delay, func() { m.retry(gen) })
	return st, nil
}

// retry fires from the reconnect timer. A generation mismatch means a
// Disconnect, Close, or manual Connect superseded the timer.
func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	st := m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	m.publish(st)

	m.dial(context.Background(), gen, false)
}

// readLoop decodes and dispatches frames from one transport until it stops,
// then drives the state machine from the close.
func (m *Manager) readLoop(tr Transport, gen uint64) {
	for frame := range tr.Frames() {
		m.handleFrame(frame)
	}

	// Reader stopped: pick up the terminal error, if any.
	var err error
	select {
	case err = <-tr.Errors():
	default:
	}
	m.handleClose(tr, gen, err)
}

// handleFrame decodes one inbound frame and fans it out. Malformed frames
// are reported and dropped; they never crash the dispatch loop.
func (m *Manager) handleFrame(frame Frame) {
	m.mu.Lock()
	m.lastFrame = frame.ReceivedAt
	m.mu.Unlock()

	msg, err := protocol.Decode(frame.Data, frame.ReceivedAt)
	if err != nil {
		m.logger.Warn("dropping malformed frame", "error", err)
		m.errs.dispatch(err)
		return
	}

	switch msg.Kind {
	case protocol.KindConnected:
		m.mu.Lock()
		m.clientID = msg.ClientID
		st := m.statusLocked()
		m.mu.Unlock()
		m.logger.Info("feed session established", "client_id", msg.ClientID)
		m.publish(st)

	case protocol.KindPriceUpdate:
		m.prices.dispatch(*msg.Update)

	case protocol.KindSubscribed:
		// Acknowledgements are observational only; the registry already
		// reflects consumer intent.
		m.logger.Debug("subscription acknowledged", "ticker", msg.Ticker)

	case protocol.KindUnsubscribed:
		m.logger.Debug("unsubscription acknowledged", "ticker", msg.Ticker)

	case protocol.KindPong:
		// Liveness already recorded via lastFrame.

	case protocol.KindError:
		m.errs.dispatch(&ProtocolError{Message: msg.ErrText})

	default:
		m.logger.Debug("ignoring unknown frame kind", "type", msg.RawType)
	}
}

// handleClose drives the state machine from a transport teardown. Clean
// shutdowns stop here; unexpected drops enter the reconnect policy.
func (m *Manager) handleClose(tr Transport, gen uint64, err error) {
	m.mu.Lock()
	if m.transport != tr {
		// Already superseded by a disconnect or a newer connection.
		m.mu.Unlock()
		return
	}
	m.transport = nil
	m.clientID = ""

	if err == nil || isCleanClose(err) {
		st := m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		m.publish(st)
		m.logger.Info("connection closed cleanly")
		return
	}

	m.lastError = err.Error()
	st, exhausted := m.scheduleReconnectLocked(gen)
	m.mu.Unlock()
	m.publish(st)
	m.errs.dispatch(&TransportError{Err: err})
	if exhausted != nil {
		m.errs.dispatch(exhausted)
	}
}

// pingLoop sends application-level pings and forces the unclean-close path
// when the feed goes silent past the stale timeout.
func (m *Manager) pingLoop(tr Transport, gen uint64) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		current := m.transport == tr
		last := m.lastFrame
		m.mu.Unlock()

		if !current {
			return
		}

		if m.cfg.StaleTimeout > 0 && time.Since(last) > m.cfg.StaleTimeout {
			m.logger.Warn("no frames received, connection stale",
				"stale_timeout", m.cfg.StaleTimeout,
			)
			m.handleClose(tr, gen, ErrStaleConnection)
			tr.Close()
			return
		}

		m.sendTo(tr, protocol.Ping())
	}
}

func (m *Manager) sendTo(tr Transport, cmd protocol.Command) {
	data, err := protocol.Encode(cmd)
	if err != nil {
		m.logger.Error("failed to encode command", "type", cmd.Type, "error", err)
		return
	}
	if err := tr.Send(data); err != nil {
		m.logger.Debug("failed to send command", "type", cmd.Type, "error", err)
	}
}

func (m *Manager) reportHandlerPanic(category string, r any) {
	m.logger.Error("handler panicked", "category", category, "panic", r)
	m.errs.dispatch(&HandlerError{Category: category, Recovered: r})
}

func (m *Manager) setStateLocked(s State) Status {
	m.state = s
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:        m.state,
		Connected:    m.state == StateConnected,
		Reconnecting: m.state == StateReconnecting,
		ClientID:     m.clientID,
		LastError:    m.lastError,
	}
}

func (m *Manager) publish(st Status) {
	m.states.dispatch(st)
}

func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}
