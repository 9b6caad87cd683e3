package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/jwt"
	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/stomp"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	connectTimeout   = 10 * time.Second
	idleTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

var (
	errNotConnected = errors.New("expected CONNECT frame")
	errAuthRequired = errors.New("authorization required")
)

// Broker is a minimal in-process STOMP 1.2 broker served over websocket.
// It fans published bodies out to every subscription of a destination.
type Broker struct {
	logger      *logger.Logger
	jwtMgr      *jwt.Manager
	roles       []fleet.Role
	requireAuth bool

	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex

	mu   sync.RWMutex
	subs map[string]map[*session]string // destination -> session -> subscription id

	seq atomic.Uint64
}

type BrokerOption func(*Broker)

// WithAuth validates CONNECT Authorization headers against mgr. When
// required is false, anonymous connections are accepted but a bad token
// is still rejected.
func WithAuth(mgr *jwt.Manager, required bool, roles ...fleet.Role) BrokerOption {
	return func(b *Broker) {
		b.jwtMgr = mgr
		b.requireAuth = required
		b.roles = roles
	}
}

// NewBroker creates a broker; mount it with Handle on the push endpoints.
func NewBroker(log *logger.Logger, opts ...BrokerOption) *Broker {
	if log == nil {
		log = logger.Discard()
	}
	b := &Broker{logger: log, subs: make(map[string]map[*session]string)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type session struct {
	id     string
	conn   *websocket.Conn
	user   string
	subIDs map[string]string // subscription id -> destination
}

// Handle upgrades the request and speaks STOMP until the client leaves.
func (b *Broker) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer b.writeLocks.Delete(conn)

	ctx := r.Context()
	conn.SetReadLimit(1 << 20) // 1 MiB

	s, err := b.handshake(conn)
	if err != nil {
		b.logger.Error(ctx, "stomp_connect_rejected", "STOMP handshake failed", err, map[string]any{"remote": r.RemoteAddr})
		_ = b.writeFrame(conn, stomp.NewFrame(contracts.StompError, contracts.StompHeaderMessage, err.Error()))
		b.wsWriteClose(conn, websocket.ClosePolicyViolation, "connect failed")
		return
	}
	defer b.dropSession(s)

	b.logger.Info(ctx, "stomp_connected", "STOMP session opened", map[string]any{"session": s.id, "user": s.user})

	_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	stop := make(chan struct{})
	defer close(stop)
	go b.pingLoop(conn, stop)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Error(ctx, "ws_unexpected_close", "STOMP connection closed unexpectedly", err, map[string]any{"session": s.id})
			} else {
				b.logger.Info(ctx, "ws_connection_closed", "STOMP connection closed", map[string]any{"session": s.id})
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))

		frames, err := stomp.Parse(payload)
		if err != nil {
			_ = b.writeFrame(conn, stomp.NewFrame(contracts.StompError, contracts.StompHeaderMessage, "malformed frame"))
			continue
		}
		for _, f := range frames {
			if done := b.dispatch(ctx, s, f); done {
				b.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
				return
			}
		}
	}
}

// handshake reads the first frame, which must be CONNECT (or STOMP), checks
// its Authorization header and answers CONNECTED.
func (b *Broker) handshake(conn *websocket.Conn) (*session, error) {
	_ = conn.SetReadDeadline(time.Now().Add(connectTimeout))

	var connect *stomp.Frame
	for connect == nil {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		frames, err := stomp.Parse(payload)
		if err != nil {
			return nil, err
		}
		if len(frames) == 0 {
			continue // heart-beat
		}
		connect = frames[0]
	}
	if connect.Command != contracts.StompConnect && connect.Command != contracts.StompStomp {
		return nil, errNotConnected
	}

	s := &session{id: uuid.NewString(), conn: conn, subIDs: make(map[string]string)}
	if b.jwtMgr != nil {
		res, err := jwt.ValidateConnectAuth(connect.Get(contracts.StompHeaderAuthorization), b.jwtMgr, b.roles...)
		if err != nil {
			return nil, err
		}
		if res == nil && b.requireAuth {
			return nil, errAuthRequired
		}
		if res != nil {
			s.user = res.Claims.Username
		}
	}

	connected := stomp.NewFrame(contracts.StompConnected,
		contracts.StompHeaderVersion, contracts.StompVersion,
		contracts.StompHeaderHeartBeat, "0,0",
		"session", s.id,
	)
	if err := b.writeFrame(conn, connected); err != nil {
		return nil, err
	}
	return s, nil
}

// dispatch handles one client frame and reports whether the session ends.
func (b *Broker) dispatch(ctx context.Context, s *session, f *stomp.Frame) bool {
	switch f.Command {
	case contracts.StompSubscribe:
		id, dest := f.Get(contracts.StompHeaderID), f.Get(contracts.StompHeaderDestination)
		if id == "" || dest == "" {
			b.sendError(s, f, "SUBSCRIBE requires id and destination")
			return false
		}
		b.subscribe(s, id, dest)
		b.logger.Debug(ctx, "stomp_subscribed", "client subscribed", map[string]any{"session": s.id, "destination": dest, "id": id})

	case contracts.StompUnsubscribe:
		b.unsubscribe(s, f.Get(contracts.StompHeaderID))

	case contracts.StompSend:
		dest := f.Get(contracts.StompHeaderDestination)
		if dest == "" {
			b.sendError(s, f, "SEND requires destination")
			return false
		}
		b.Publish(dest, f.Body)

	case contracts.StompDisconnect:
		b.sendReceipt(s, f)
		return true

	default:
		b.sendError(s, f, "unsupported command "+f.Command)
		return false
	}
	b.sendReceipt(s, f)
	return false
}

func (b *Broker) sendReceipt(s *session, f *stomp.Frame) {
	if rid := f.Get(contracts.StompHeaderReceipt); rid != "" {
		_ = b.writeFrame(s.conn, stomp.NewFrame(contracts.StompReceipt, contracts.StompHeaderReceiptID, rid))
	}
}

func (b *Broker) sendError(s *session, f *stomp.Frame, msg string) {
	e := stomp.NewFrame(contracts.StompError, contracts.StompHeaderMessage, msg)
	if rid := f.Get(contracts.StompHeaderReceipt); rid != "" {
		e.Set(contracts.StompHeaderReceiptID, rid)
	}
	_ = b.writeFrame(s.conn, e)
}

func (b *Broker) subscribe(s *session, id, dest string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := s.subIDs[id]; ok {
		delete(b.subs[old], s)
	}
	s.subIDs[id] = dest
	if b.subs[dest] == nil {
		b.subs[dest] = make(map[*session]string)
	}
	b.subs[dest][s] = id
}

func (b *Broker) unsubscribe(s *session, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dest, ok := s.subIDs[id]
	if !ok {
		return
	}
	delete(s.subIDs, id)
	delete(b.subs[dest], s)
	if len(b.subs[dest]) == 0 {
		delete(b.subs, dest)
	}
}

func (b *Broker) dropSession(s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, dest := range s.subIDs {
		delete(b.subs[dest], s)
		if len(b.subs[dest]) == 0 {
			delete(b.subs, dest)
		}
	}
	s.subIDs = map[string]string{}
}

// Subscribers returns how many subscriptions destination currently has.
func (b *Broker) Subscribers(destination string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[destination])
}

// Publish sends body as a MESSAGE to every subscriber of destination and
// returns how many writes succeeded.
func (b *Broker) Publish(destination string, body []byte) int {
	type target struct {
		conn  *websocket.Conn
		subID string
	}
	b.mu.RLock()
	targets := make([]target, 0, len(b.subs[destination]))
	for s, id := range b.subs[destination] {
		targets = append(targets, target{conn: s.conn, subID: id})
	}
	b.mu.RUnlock()

	delivered := 0
	for _, t := range targets {
		msg := stomp.NewFrame(contracts.StompMessage,
			contracts.StompHeaderDestination, destination,
			contracts.StompHeaderSubscription, t.subID,
			contracts.StompHeaderMessageID, strconv.FormatUint(b.seq.Add(1), 10),
			contracts.StompHeaderContentType, "application/json",
		)
		msg.Body = body
		if err := b.writeFrame(t.conn, msg); err != nil {
			b.logger.Error(context.Background(), "stomp_publish_failed", "failed to deliver message", err, map[string]any{"destination": destination})
			continue
		}
		delivered++
	}
	return delivered
}

// PublishJSON marshals v and publishes it to destination.
func (b *Broker) PublishJSON(destination string, v any) (int, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return b.Publish(destination, body), nil
}
