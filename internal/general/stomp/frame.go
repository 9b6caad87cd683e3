package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"smart-fleet/internal/general/contracts"
)

var (
	ErrMalformedFrame = errors.New("stomp: malformed frame")
	ErrUnterminated   = errors.New("stomp: frame missing NUL terminator")
)

// Header is one "key:value" line. Order is kept; for repeated keys the first wins.
type Header struct {
	Key, Value string
}

// Frame is a STOMP 1.2 frame.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

// NewFrame builds a frame from alternating key/value pairs.
func NewFrame(command string, kv ...string) *Frame {
	f := &Frame{Command: command}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers = append(f.Headers, Header{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

// Get returns the first value for key, or "".
func (f *Frame) Get(key string) string {
	v, _ := f.Lookup(key)
	return v
}

func (f *Frame) Lookup(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Set replaces the first value for key or appends it.
func (f *Frame) Set(key, value string) {
	for i := range f.Headers {
		if f.Headers[i].Key == key {
			f.Headers[i].Value = value
			return
		}
	}
	f.Headers = append(f.Headers, Header{Key: key, Value: value})
}

// CONNECT and CONNECTED headers are sent verbatim; every other frame escapes.
func escapes(command string) bool {
	return command != contracts.StompConnect && command != contracts.StompConnected
}

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r", `\n`, "\n", `\c`, ":")
)

// Encode serializes f, adding content-length when the body is not empty.
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	esc := escapes(f.Command)

	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	hasLength := false
	for _, h := range f.Headers {
		k, v := h.Key, h.Value
		if k == contracts.StompHeaderContentLength {
			hasLength = true
		}
		if esc {
			k, v = escaper.Replace(k), escaper.Replace(v)
		}
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(v)
		buf.WriteByte('\n')
	}
	if !hasLength && len(f.Body) > 0 {
		buf.WriteString(contracts.StompHeaderContentLength + ":" + strconv.Itoa(len(f.Body)) + "\n")
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Parse decodes every frame contained in data. Heart-beat EOLs between
// frames are skipped, so a payload of only newlines yields no frames.
func Parse(data []byte) ([]*Frame, error) {
	var out []*Frame
	for {
		data = skipEOLs(data)
		if len(data) == 0 {
			return out, nil
		}
		f, rest, err := parseOne(data)
		if err != nil {
			return out, err
		}
		out = append(out, f)
		data = rest
	}
}

func skipEOLs(b []byte) []byte {
	for len(b) > 0 {
		switch {
		case b[0] == '\n':
			b = b[1:]
		case len(b) > 1 && b[0] == '\r' && b[1] == '\n':
			b = b[2:]
		default:
			return b
		}
	}
	return b
}

// readLine returns the line without its EOL and the remainder.
func readLine(b []byte) (string, []byte, bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return "", b, false
	}
	line := b[:i]
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return string(line), b[i+1:], true
}

func parseOne(data []byte) (*Frame, []byte, error) {
	cmd, rest, ok := readLine(data)
	if !ok || cmd == "" {
		return nil, nil, ErrMalformedFrame
	}
	f := &Frame{Command: cmd}
	esc := escapes(cmd)

	for {
		var line string
		line, rest, ok = readLine(rest)
		if !ok {
			return nil, nil, ErrMalformedFrame
		}
		if line == "" {
			break
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, nil, fmt.Errorf("%w: header %q", ErrMalformedFrame, line)
		}
		k, v := line[:colon], line[colon+1:]
		if esc {
			k, v = unescaper.Replace(k), unescaper.Replace(v)
		}
		f.Headers = append(f.Headers, Header{Key: k, Value: v})
	}

	if cl, ok := f.Lookup(contracts.StompHeaderContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("%w: content-length %q", ErrMalformedFrame, cl)
		}
		if n >= len(rest) || rest[n] != 0 {
			return nil, nil, ErrUnterminated
		}
		f.Body = append([]byte(nil), rest[:n]...)
		return f, rest[n+1:], nil
	}

	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return nil, nil, ErrUnterminated
	}
	f.Body = append([]byte(nil), rest[:end]...)
	return f, rest[end+1:], nil
}
