package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"smart-fleet/internal/api"
	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/metrics"
	"smart-fleet/internal/general/stomp"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 5 * time.Second
)

// ErrBrokerRejected is returned when the broker answers CONNECT or SUBSCRIBE with ERROR.
var ErrBrokerRejected = errors.New("broker rejected connection")

// StompSource subscribes to STOMP topics over a websocket.
type StompSource struct {
	url       string
	tokens    api.TokenSource
	dialer    *websocket.Dialer
	handshake time.Duration
	log       *logger.Logger
}

type StompOption func(*StompSource)

// WithToken sends "Authorization: Bearer <token>" in the CONNECT frame.
func WithToken(ts api.TokenSource) StompOption {
	return func(s *StompSource) { s.tokens = ts }
}

func WithDialer(d *websocket.Dialer) StompOption {
	return func(s *StompSource) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithHandshakeTimeout bounds dial + CONNECT/CONNECTED.
func WithHandshakeTimeout(d time.Duration) StompOption {
	return func(s *StompSource) { s.handshake = d }
}

func WithStompLogger(l *logger.Logger) StompOption {
	return func(s *StompSource) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStompSource targets a ws(s):// endpoint such as ws://localhost:8080/ws/websocket.
func NewStompSource(wsURL string, opts ...StompOption) *StompSource {
	s := &StompSource{
		url:       wsURL,
		dialer:    websocket.DefaultDialer,
		handshake: defaultHandshakeTimeout,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe connects, performs the STOMP handshake and subscribes to topic.
// Failures are logged and returned; there is no automatic retry.
func (s *StompSource) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("live url: %w", err)
	}

	hsCtx, cancel := context.WithTimeout(ctx, s.handshake)
	defer cancel()

	conn, resp, err := s.dialer.DialContext(hsCtx, s.url, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		s.log.Error(ctx, "live_connect_failed", "websocket dial failed", err, map[string]any{"url": s.url})
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}

	fail := func(action string, err error) (Subscription, error) {
		s.log.Error(ctx, action, "live subscription failed", err, map[string]any{"url": s.url, "topic": topic})
		_ = conn.Close()
		return nil, err
	}

	if deadline, ok := hsCtx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	connect := stomp.NewFrame(contracts.StompConnect,
		contracts.StompHeaderAcceptVersion, contracts.StompVersion,
		contracts.StompHeaderHost, u.Hostname(),
		contracts.StompHeaderHeartBeat, "0,0",
	)
	if s.tokens != nil {
		if tok := api.SanitizeToken(s.tokens.Token()); tok != "" {
			connect.Set(contracts.StompHeaderAuthorization, "Bearer "+tok)
		}
	}
	if err := writeFrame(conn, connect); err != nil {
		return fail("live_connect_failed", fmt.Errorf("send CONNECT: %w", err))
	}

	if err := awaitConnected(conn); err != nil {
		return fail("live_connect_failed", err)
	}

	subID := uuid.NewString()
	sub := stomp.NewFrame(contracts.StompSubscribe,
		contracts.StompHeaderID, subID,
		contracts.StompHeaderDestination, topic,
		"ack", "auto",
	)
	if err := writeFrame(conn, sub); err != nil {
		return fail("live_subscribe_failed", fmt.Errorf("send SUBSCRIBE: %w", err))
	}
	_ = conn.SetReadDeadline(time.Time{})

	ss := &stompSubscription{
		stream: newStream(),
		conn:   conn,
		subID:  subID,
		topic:  topic,
		log:    s.log,
	}
	go ss.read(context.WithoutCancel(ctx))
	ss.watch(ctx, ss.Close)

	s.log.Info(ctx, "live_subscribed", "subscribed to push topic", map[string]any{"url": s.url, "topic": topic, "subscription": subID})
	return ss, nil
}

func writeFrame(conn *websocket.Conn, f *stomp.Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, f.Encode())
}

func awaitConnected(conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await CONNECTED: %w", err)
		}
		frames, err := stomp.Parse(payload)
		if err != nil {
			return fmt.Errorf("await CONNECTED: %w", err)
		}
		for _, f := range frames {
			switch f.Command {
			case contracts.StompConnected:
				return nil
			case contracts.StompError:
				return fmt.Errorf("%w: %s", ErrBrokerRejected, brokerMessage(f))
			}
		}
	}
}

func brokerMessage(f *stomp.Frame) string {
	if msg := f.Get(contracts.StompHeaderMessage); msg != "" {
		return msg
	}
	return string(f.Body)
}

type stompSubscription struct {
	*stream
	conn  *websocket.Conn
	subID string
	topic string
	log   *logger.Logger
}

// Close is idempotent: it sends a best-effort UNSUBSCRIBE and DISCONNECT,
// closes the socket and returns after the reader goroutine has exited.
func (ss *stompSubscription) Close() error {
	ss.shutdown(func() {
		_ = writeFrame(ss.conn, stomp.NewFrame(contracts.StompUnsubscribe, contracts.StompHeaderID, ss.subID))
		_ = writeFrame(ss.conn, stomp.NewFrame(contracts.StompDisconnect))
		_ = ss.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(writeTimeout))
		_ = ss.conn.Close()
	})
	return nil
}

func (ss *stompSubscription) read(ctx context.Context) {
	defer close(ss.finished)
	defer close(ss.updates)

	for {
		_, payload, err := ss.conn.ReadMessage()
		if err != nil {
			if !ss.stopping() {
				ss.setErr(fmt.Errorf("live connection lost: %w", err))
				ss.log.Error(ctx, "live_connection_lost", "push channel closed", err, map[string]any{"topic": ss.topic})
				_ = ss.conn.Close()
			}
			return
		}

		frames, err := stomp.Parse(payload)
		if err != nil {
			metrics.LiveMessages.WithLabelValues("stomp", "malformed").Inc()
			ss.log.Error(ctx, "live_frame_malformed", "skipping malformed frame", err, nil)
		}
		for _, f := range frames {
			switch f.Command {
			case contracts.StompMessage:
				var v fleet.Vehicle
				if err := json.Unmarshal(f.Body, &v); err != nil {
					metrics.LiveMessages.WithLabelValues("stomp", "undecodable").Inc()
					ss.log.Error(ctx, "live_message_undecodable", "skipping message", err, map[string]any{"body": string(f.Body)})
					continue
				}
				metrics.LiveMessages.WithLabelValues("stomp", "decoded").Inc()
				if !ss.deliver(v) {
					return
				}
			case contracts.StompError:
				err := fmt.Errorf("%w: %s", ErrBrokerRejected, brokerMessage(f))
				ss.setErr(err)
				ss.log.Error(ctx, "live_broker_error", "broker sent ERROR", err, nil)
				_ = ss.conn.Close()
				return
			}
		}
	}
}
