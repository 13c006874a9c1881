package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/medisync/realtime/internal/broadcast"
	"github.com/medisync/realtime/internal/domain"
	"github.com/medisync/realtime/internal/observability"
	"github.com/medisync/realtime/internal/protocol"
	"github.com/medisync/realtime/internal/session"
	"github.com/medisync/realtime/internal/sink"
	"github.com/medisync/realtime/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrNoIdentity = errors.New("no session identity")
	ErrClosed     = errors.New("client closed")
)

type Config struct {
	// PageOrigin is the origin the UI was loaded from, e.g. https://hms.example.org.
	PageOrigin string
	Backoff    Backoff

	// RequireAuthAck keeps the connection in Authenticating until the server
	// answers auth with auth_ok, reconnecting after AuthTimeout. Off by
	// default: the connection counts as open once auth is written.
	RequireAuthAck bool
	AuthTimeout    time.Duration
	DialTimeout    time.Duration
}

// Manager owns the single messaging connection of one session. It
// authenticates on open, routes inbound frames into the store and schedules
// exactly one reconnect after every close until Disconnect is called or the
// identity goes away.
type Manager struct {
	cfg      Config
	endpoint string
	dialer   Dialer
	codec    *protocol.Codec
	store    *store.Store
	sink     sink.Sink
	now      func() time.Time

	mu             sync.Mutex
	state          State
	identity       *session.Identity
	conn           *connection
	gen            uint64 // bumped by every connect and disconnect; stale callbacks compare against it
	attempts       int
	reconnectTimer *time.Timer
	authTimer      *time.Timer
	cancelDial     context.CancelFunc
	closed         bool
}

type Option func(*Manager)

func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

func WithStore(s *store.Store) Option {
	return func(m *Manager) { m.store = s }
}

func WithCodec(c *protocol.Codec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithSink sets where client events are reported. Connection state events are
// published while the manager holds its lock, so the sink must not block;
// wrap slow sinks in sink.Async.
func WithSink(s sink.Sink) Option {
	return func(m *Manager) { m.sink = s }
}

func WithIdentity(id session.Identity) Option {
	return func(m *Manager) { m.identity = &id }
}

func New(cfg Config, opts ...Option) (*Manager, error) {
	endpoint, err := Endpoint(cfg.PageOrigin)
	if err != nil {
		return nil, err
	}
	if cfg.Backoff == nil {
		cfg.Backoff = Constant{Delay: DefaultReconnectDelay}
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	m := &Manager{
		cfg:      cfg,
		endpoint: endpoint,
		dialer:   WSDialer{},
		codec:    protocol.NewCodec(),
		store:    store.New(),
		sink:     sink.Discard{},
		now:      time.Now,
		state:    Disconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.identity != nil && m.identity.Validate() != nil {
		m.identity = nil
	}
	observability.ConnectionState.Set(float64(Disconnected))
	return m, nil
}

func (m *Manager) Endpoint() string { return m.endpoint }

func (m *Manager) Store() *store.Store { return m.store }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == Open
}

func (m *Manager) Identity() *session.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil
	}
	id := *m.identity
	return &id
}

// Connect starts connecting in the background. It is a no-op while a
// connection is open or being established.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked()
}

func (m *Manager) connectLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.state.active() {
		return nil
	}
	if m.identity == nil {
		return ErrNoIdentity
	}

	m.stopReconnectLocked()
	m.gen++
	gen := m.gen
	id := *m.identity

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	m.cancelDial = cancel
	m.setStateLocked(Connecting)

	go m.dial(ctx, cancel, gen, id)
	return nil
}

func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc, gen uint64, id session.Identity) {
	defer cancel()
	log := observability.GetLogger(ctx)

	ws, err := m.dialer.Dial(ctx, m.endpoint)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// Disconnected or superseded while dialing.
		if ws != nil {
			ws.Close()
		}
		return
	}
	m.cancelDial = nil

	if err != nil {
		log.Warn("client: dial failed", zap.String("endpoint", m.endpoint), zap.String("user_id", id.ID), zap.Error(err))
		m.setStateLocked(Disconnected)
		m.scheduleReconnectLocked()
		return
	}

	c := newConnection(gen, id.ID, ws)
	m.conn = c
	c.start()
	m.setStateLocked(Authenticating)

	auth, err := m.codec.EncodeAuth(id)
	if err != nil || !c.trySend(auth) {
		log.Error("client: auth frame not written", zap.String("user_id", id.ID), zap.Error(err))
		m.conn = nil
		go c.close()
		m.setStateLocked(Disconnected)
		m.scheduleReconnectLocked()
		return
	}
	observability.FramesTotal.WithLabelValues("out", string(protocol.KindAuth)).Inc()

	if m.cfg.RequireAuthAck {
		m.authTimer = time.AfterFunc(m.cfg.AuthTimeout, func() { m.authTimedOut(c) })
	} else {
		m.openLocked()
	}

	go m.readLoop(c)
}

func (m *Manager) openLocked() {
	m.attempts = 0
	m.setStateLocked(Open)
	observability.GetLogger(context.Background()).Info("client: connected",
		zap.String("endpoint", m.endpoint), zap.String("user_id", m.conn.userID))
}

func (m *Manager) authAcknowledged(c *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != c || m.state != Authenticating {
		return
	}
	m.stopAuthTimerLocked()
	m.openLocked()
}

func (m *Manager) authTimedOut(c *connection) {
	m.mu.Lock()
	if m.conn != c || m.state != Authenticating {
		m.mu.Unlock()
		return
	}
	m.authTimer = nil
	m.mu.Unlock()

	observability.GetLogger(context.Background()).Warn("client: auth not acknowledged, closing transport",
		zap.String("user_id", c.userID), zap.Duration("timeout", m.cfg.AuthTimeout))
	// The read loop sees the close and schedules the reconnect.
	c.closeWithReason(websocket.ClosePolicyViolation, "auth timeout")
}

func (m *Manager) readLoop(c *connection) {
	var readErr error
	defer func() {
		m.transportClosed(c, readErr)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		m.handleFrame(c, data)
	}
}

// transportClosed runs once per transport, whatever closed it. Errors are
// only reported here; recovery is the reconnect scheduled below.
func (m *Manager) transportClosed(c *connection, err error) {
	log := observability.GetLogger(context.Background())
	if err != nil && !c.isClosed() &&
		websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Error("client: transport error", zap.String("user_id", c.userID), zap.Error(err))
	}
	c.close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != c {
		return
	}
	m.conn = nil
	m.stopAuthTimerLocked()
	m.setStateLocked(Disconnected)
	log.Info("client: disconnected", zap.String("user_id", c.userID))
	m.scheduleReconnectLocked()
}

func (m *Manager) scheduleReconnectLocked() {
	if m.closed || m.identity == nil {
		return
	}
	log := observability.GetLogger(context.Background())

	delay, ok := m.cfg.Backoff.Next(m.attempts)
	if !ok {
		log.Warn("client: reconnect attempts exhausted", zap.Int("attempts", m.attempts))
		return
	}
	m.attempts++
	m.stopReconnectLocked()

	gen := m.gen
	m.reconnectTimer = time.AfterFunc(delay, func() { m.reconnect(gen) })
	observability.ReconnectsTotal.Inc()
	log.Info("client: reconnect scheduled", zap.Duration("delay", delay), zap.Int("attempt", m.attempts))
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.reconnectTimer == nil {
		return
	}
	m.reconnectTimer = nil
	if err := m.connectLocked(); err != nil {
		observability.GetLogger(context.Background()).Warn("client: reconnect skipped", zap.Error(err))
	}
}

// Disconnect cancels any pending reconnect, closes the transport and leaves
// the manager Disconnected. It is safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.stopReconnectLocked()
	m.stopAuthTimerLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.attempts = 0

	c := m.conn
	m.conn = nil
	if c == nil {
		if m.state != Disconnected {
			m.setStateLocked(Disconnected)
		}
		m.mu.Unlock()
		return
	}
	m.setStateLocked(Closing)
	m.mu.Unlock()

	c.close()

	m.mu.Lock()
	if m.gen == gen && m.state == Closing {
		m.setStateLocked(Disconnected)
	}
	m.mu.Unlock()
}

// Close disconnects for good; later Connect calls return ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Disconnect()
}

// SetIdentity swaps the session identity. Any change drops the current
// connection; a non-nil identity then connects again as the new user, a nil
// one stays disconnected.
func (m *Manager) SetIdentity(id *session.Identity) {
	var next *session.Identity
	if id != nil {
		if err := id.Validate(); err != nil {
			observability.GetLogger(context.Background()).Warn("client: ignoring invalid identity", zap.Error(err))
		} else {
			cp := *id
			next = &cp
		}
	}

	m.mu.Lock()
	same := sameIdentity(m.identity, next)
	m.mu.Unlock()
	if same {
		return
	}

	m.Disconnect()

	m.mu.Lock()
	m.identity = next
	m.mu.Unlock()

	if next != nil {
		if err := m.Connect(); err != nil {
			observability.GetLogger(context.Background()).Warn("client: connect after identity change failed", zap.Error(err))
		}
	}
}

func sameIdentity(a, b *session.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Bind follows a session provider until ctx ends, then disconnects.
func (m *Manager) Bind(ctx context.Context, p session.Provider) {
	updates := p.Updates(ctx)
	for {
		select {
		case <-ctx.Done():
			m.Disconnect()
			return
		case id, ok := <-updates:
			if !ok {
				m.Disconnect()
				return
			}
			m.SetIdentity(id)
		}
	}
}

func (m *Manager) handleFrame(c *connection, data []byte) {
	ctx, span := observability.StartSpan(context.Background(), "client.handleFrame")
	defer span.End()
	log := observability.GetLogger(ctx)

	m.mu.Lock()
	if m.conn != c {
		m.mu.Unlock()
		return
	}
	var userID, role string
	if m.identity != nil {
		userID, role = m.identity.ID, m.identity.Role
	}
	m.mu.Unlock()

	ev, err := m.codec.Decode(data)
	if err != nil {
		observability.FramesDroppedTotal.WithLabelValues("malformed").Inc()
		log.Warn("client: dropping malformed frame", zap.String("user_id", userID), zap.Int("size", len(data)), zap.Error(err))
		return
	}
	observability.FramesTotal.WithLabelValues("in", string(ev.Kind)).Inc()
	span.SetAttributes(attribute.String("frame.kind", string(ev.Kind)))

	switch ev.Kind {
	case protocol.KindAuthOK:
		m.authAcknowledged(c)

	case protocol.KindNewMessage, protocol.KindChatMessage:
		if m.store.AppendIncoming(*ev.Message) {
			m.emit(ctx, sink.Event{Type: sink.MessageStored, UserID: userID, Direction: sink.Incoming, Message: ev.Message})
		} else if cur, ok := m.store.Get(ev.Message.ID); ok {
			m.emit(ctx, sink.Event{Type: sink.StatusChanged, UserID: userID, Message: &cur})
		}

	case protocol.KindMessageDelivered:
		m.applyReceipt(ctx, userID, ev.MessageID, m.store.MarkDelivered)

	case protocol.KindMessageRead:
		m.applyReceipt(ctx, userID, ev.MessageID, m.store.MarkRead)

	case protocol.KindAdminBroadcast:
		if !broadcast.Matches(role, ev.Broadcast.Recipients) {
			observability.FramesDroppedTotal.WithLabelValues("not_addressed").Inc()
			log.Debug("client: broadcast not addressed to session", zap.String("role", role), zap.Strings("recipients", ev.Broadcast.Recipients))
			return
		}
		m.store.AppendNotification(*ev.Broadcast)
		m.emit(ctx, sink.Event{Type: sink.NotificationStored, UserID: userID, Direction: sink.Incoming, Notification: ev.Broadcast})

	default:
		observability.FramesDroppedTotal.WithLabelValues("unknown_kind").Inc()
		log.Debug("client: ignoring frame of unknown kind", zap.String("user_id", userID))
		return
	}
	m.reportStoreSize()
}

func (m *Manager) applyReceipt(ctx context.Context, userID, messageID string, apply func(string) (domain.ChatMessage, bool)) {
	msg, changed := apply(messageID)
	if !changed {
		observability.GetLogger(ctx).Debug("client: receipt changed nothing", zap.String("message_id", messageID))
		return
	}
	m.emit(ctx, sink.Event{Type: sink.StatusChanged, UserID: userID, Message: &msg})
}

// SendMessage stores the message optimistically and writes it to the
// transport. When the connection is not open the frame is dropped but the
// stored copy stays, still in sent.
func (m *Manager) SendMessage(receiverID, content string, typ domain.MessageType, attachments []string) domain.ChatMessage {
	ctx := context.Background()
	c, state, sender := m.snapshot()

	msg, frame, err := m.codec.EncodeChat(domain.ChatMessage{
		SenderID:    sender.ID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: typ,
		Attachments: attachments,
	})
	m.store.AppendOutgoing(msg)
	m.emit(ctx, sink.Event{Type: sink.MessageStored, UserID: sender.ID, Direction: sink.Outgoing, Message: &msg})
	m.reportStoreSize()

	if err != nil {
		observability.GetLogger(ctx).Error("client: encode chat message", zap.String("message_id", msg.ID), zap.Error(err))
		return msg
	}
	m.write(ctx, c, state, protocol.KindChatMessage, frame)
	return msg
}

// SendBroadcast echoes the broadcast into the local notification list and
// writes it to the transport, with the same drop rule as SendMessage.
func (m *Manager) SendBroadcast(content string, recipients []string) domain.BroadcastNotification {
	ctx := context.Background()
	c, state, sender := m.snapshot()

	n, frame, err := m.codec.EncodeBroadcast(domain.BroadcastNotification{
		SenderID:   sender.ID,
		SenderName: sender.DisplayName(),
		Content:    content,
		Recipients: recipients,
	})
	m.store.AppendNotification(n)
	m.emit(ctx, sink.Event{Type: sink.NotificationStored, UserID: sender.ID, Direction: sink.Outgoing, Notification: &n})
	m.reportStoreSize()

	if err != nil {
		observability.GetLogger(ctx).Error("client: encode broadcast", zap.Error(err))
		return n
	}
	m.write(ctx, c, state, protocol.KindAdminBroadcast, frame)
	return n
}

func (m *Manager) snapshot() (*connection, State, session.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id session.Identity
	if m.identity != nil {
		id = *m.identity
	}
	return m.conn, m.state, id
}

func (m *Manager) write(ctx context.Context, c *connection, state State, kind protocol.Kind, frame []byte) {
	log := observability.GetLogger(ctx)
	if c == nil || state != Open {
		observability.FramesDroppedTotal.WithLabelValues("not_connected").Inc()
		log.Warn("client: not connected, outbound frame dropped", zap.String("kind", string(kind)), zap.String("state", state.String()))
		return
	}
	if !c.trySend(frame) {
		observability.FramesDroppedTotal.WithLabelValues("send_failed").Inc()
		log.Warn("client: outbound frame dropped", zap.String("kind", string(kind)))
		return
	}
	observability.FramesTotal.WithLabelValues("out", string(kind)).Inc()
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	observability.ConnectionState.Set(float64(s))

	var userID string
	if m.identity != nil {
		userID = m.identity.ID
	}
	m.emit(context.Background(), sink.Event{Type: sink.ConnectionChanged, UserID: userID, State: s.String()})
}

func (m *Manager) emit(ctx context.Context, e sink.Event) {
	e.At = m.now()
	if err := m.sink.Publish(ctx, e); err != nil {
		observability.GetLogger(ctx).Warn("client: event sink", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func (m *Manager) reportStoreSize() {
	msgs, notes := m.store.Len()
	observability.StoreSize.WithLabelValues("messages").Set(float64(msgs))
	observability.StoreSize.WithLabelValues("notifications").Set(float64(notes))
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) stopAuthTimerLocked() {
	if m.authTimer != nil {
		m.authTimer.Stop()
		m.authTimer = nil
	}
}
