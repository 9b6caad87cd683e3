package stomp

import (
	"bytes"
	"errors"
	"testing"

	"smart-fleet/internal/general/contracts"
)

func TestEncodeParse(t *testing.T) {
	body := []byte(`{"id":1,"plate":"B-01"}`)
	f := NewFrame(contracts.StompMessage,
		contracts.StompHeaderDestination, "/topic/vehicles",
		contracts.StompHeaderSubscription, "sub-0",
		"weird", "a:b\nc",
	)
	f.Body = body

	got, err := Parse(f.Encode())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 frame, got %d", len(got))
	}
	g := got[0]
	if g.Command != contracts.StompMessage || g.Get(contracts.StompHeaderDestination) != "/topic/vehicles" {
		t.Fatalf("unexpected frame %+v", g)
	}
	if g.Get("weird") != "a:b\nc" {
		t.Fatalf("escaped header not restored: %q", g.Get("weird"))
	}
	if g.Get(contracts.StompHeaderContentLength) != "23" || !bytes.Equal(g.Body, body) {
		t.Fatalf("body/length mismatch: %q %q", g.Get(contracts.StompHeaderContentLength), g.Body)
	}
}

func TestParseHeartbeatsAndMultipleFrames(t *testing.T) {
	raw := []byte("\n\r\nCONNECTED\r\nversion:1.2\r\nheart-beat:0,0\r\n\r\n\x00\nMESSAGE\ndestination:/topic/vehicles\n\n{}\x00\n")
	frames, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("want 2 frames, got %d", len(frames))
	}
	if frames[0].Command != contracts.StompConnected || frames[0].Get("version") != "1.2" {
		t.Fatalf("first frame %+v", frames[0])
	}
	if string(frames[1].Body) != "{}" {
		t.Fatalf("second body %q", frames[1].Body)
	}

	if frames, err := Parse([]byte("\n\n")); err != nil || len(frames) != 0 {
		t.Fatalf("heart-beat only payload: %v %d", err, len(frames))
	}
}

func TestConnectHeadersNotEscaped(t *testing.T) {
	f := NewFrame(contracts.StompConnect, contracts.StompHeaderHost, "localhost:8080")
	if !bytes.Contains(f.Encode(), []byte("host:localhost:8080\n")) {
		t.Fatalf("CONNECT header was escaped: %q", f.Encode())
	}
}

func TestRepeatedHeaderFirstWins(t *testing.T) {
	frames, err := Parse([]byte("MESSAGE\nfoo:1\nfoo:2\n\n\x00"))
	if err != nil || frames[0].Get("foo") != "1" {
		t.Fatalf("first value must win: %v %+v", err, frames)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"no terminator": "MESSAGE\n\nbody",
		"bad header":    "MESSAGE\nnocolon\n\n\x00",
		"short body":    "MESSAGE\ncontent-length:10\n\nabc\x00",
		"bad length":    "MESSAGE\ncontent-length:x\n\n\x00",
		"no header end": "MESSAGE\nfoo:bar",
		"huge length":   "MESSAGE\ncontent-length:9223372036854775807\n\n{}\x00",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Parse([]byte("MESSAGE\n\nbody")); !errors.Is(err, ErrUnterminated) {
		t.Fatalf("want ErrUnterminated, got %v", err)
	}
	for _, cl := range []string{"3", "4", "9223372036854775807"} {
		raw := "MESSAGE\ncontent-length:" + cl + "\n\n{}\x00"
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrUnterminated) {
			t.Fatalf("content-length %s: want ErrUnterminated, got %v", cl, err)
		}
	}
}

func TestBodyWithNULUsesContentLength(t *testing.T) {
	f := NewFrame(contracts.StompMessage)
	f.Body = []byte("a\x00b")
	frames, err := Parse(f.Encode())
	if err != nil || !bytes.Equal(frames[0].Body, []byte("a\x00b")) {
		t.Fatalf("binary body lost: %v %+v", err, frames)
	}
}
