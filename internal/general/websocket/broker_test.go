package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smart-fleet/internal/domain/fleet"
	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/jwt"
	"smart-fleet/internal/general/stomp"

	"github.com/gorilla/websocket"
)

func startBroker(t *testing.T, b *Broker) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(b.Handle))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, f *stomp.Frame) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, f.Encode()); err != nil {
		t.Fatalf("write %s: %v", f.Command, err)
	}
}

func recv(t *testing.T, conn *websocket.Conn) *stomp.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		frames, err := stomp.Parse(payload)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(frames) > 0 {
			return frames[0]
		}
	}
}

func connect(t *testing.T, conn *websocket.Conn, kv ...string) *stomp.Frame {
	t.Helper()
	args := append([]string{contracts.StompHeaderAcceptVersion, "1.2", contracts.StompHeaderHost, "localhost"}, kv...)
	send(t, conn, stomp.NewFrame(contracts.StompConnect, args...))
	return recv(t, conn)
}

func waitSubscribers(t *testing.T, b *Broker, dest string, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for b.Subscribers(dest) != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers(%s) = %d, want %d", dest, b.Subscribers(dest), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBrokerSubscribeAndPublish(t *testing.T) {
	b := NewBroker(nil)
	conn := dial(t, startBroker(t, b))

	if f := connect(t, conn); f.Command != contracts.StompConnected || f.Get(contracts.StompHeaderVersion) != "1.2" {
		t.Fatalf("want CONNECTED 1.2, got %+v", f)
	}
	send(t, conn, stomp.NewFrame(contracts.StompSubscribe,
		contracts.StompHeaderID, "sub-0",
		contracts.StompHeaderDestination, contracts.TopicVehicles))
	waitSubscribers(t, b, contracts.TopicVehicles, 1)

	if n := b.Publish(contracts.TopicVehicles, []byte(`{"id":7}`)); n != 1 {
		t.Fatalf("Publish delivered %d, want 1", n)
	}
	msg := recv(t, conn)
	if msg.Command != contracts.StompMessage {
		t.Fatalf("want MESSAGE, got %s", msg.Command)
	}
	if msg.Get(contracts.StompHeaderSubscription) != "sub-0" || string(msg.Body) != `{"id":7}` {
		t.Fatalf("unexpected message %+v body=%s", msg.Headers, msg.Body)
	}

	send(t, conn, stomp.NewFrame(contracts.StompUnsubscribe, contracts.StompHeaderID, "sub-0"))
	waitSubscribers(t, b, contracts.TopicVehicles, 0)
	if n := b.Publish(contracts.TopicVehicles, []byte(`{}`)); n != 0 {
		t.Fatalf("Publish after unsubscribe delivered %d", n)
	}
}

func TestBrokerDisconnectReceipt(t *testing.T) {
	b := NewBroker(nil)
	conn := dial(t, startBroker(t, b))
	connect(t, conn)

	send(t, conn, stomp.NewFrame(contracts.StompDisconnect, contracts.StompHeaderReceipt, "77"))
	f := recv(t, conn)
	if f.Command != contracts.StompReceipt || f.Get(contracts.StompHeaderReceiptID) != "77" {
		t.Fatalf("want RECEIPT 77, got %+v", f)
	}
}

func TestBrokerRejectsNonConnectFirstFrame(t *testing.T) {
	b := NewBroker(nil)
	conn := dial(t, startBroker(t, b))
	send(t, conn, stomp.NewFrame(contracts.StompSubscribe, contracts.StompHeaderID, "x", contracts.StompHeaderDestination, "/topic/x"))
	if f := recv(t, conn); f.Command != contracts.StompError {
		t.Fatalf("want ERROR, got %s", f.Command)
	}
}

func TestBrokerAuth(t *testing.T) {
	mgr := jwt.NewManager("secret", time.Hour)
	token, _, err := mgr.IssueUserToken("1", "admin", fleet.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	b := NewBroker(nil, WithAuth(mgr, true))
	url := startBroker(t, b)

	if f := connect(t, dial(t, url)); f.Command != contracts.StompError {
		t.Fatalf("anonymous connect must fail when auth is required, got %s", f.Command)
	}
	if f := connect(t, dial(t, url), contracts.StompHeaderAuthorization, "Bearer nope"); f.Command != contracts.StompError {
		t.Fatalf("bad token must fail, got %s", f.Command)
	}
	if f := connect(t, dial(t, url), contracts.StompHeaderAuthorization, "Bearer "+token); f.Command != contracts.StompConnected {
		t.Fatalf("valid token rejected: %+v", f)
	}
}

func TestBrokerSendFansOut(t *testing.T) {
	b := NewBroker(nil)
	url := startBroker(t, b)

	sub := dial(t, url)
	connect(t, sub)
	send(t, sub, stomp.NewFrame(contracts.StompSubscribe, contracts.StompHeaderID, "a", contracts.StompHeaderDestination, "/topic/chat"))
	waitSubscribers(t, b, "/topic/chat", 1)

	pub := dial(t, url)
	connect(t, pub)
	f := stomp.NewFrame(contracts.StompSend, contracts.StompHeaderDestination, "/topic/chat")
	f.Body = []byte("hello")
	send(t, pub, f)

	if got := recv(t, sub); got.Command != contracts.StompMessage || string(got.Body) != "hello" {
		t.Fatalf("unexpected frame %+v", got)
	}
}
