package cdpcore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
)

var (
	// DefaultReadBufferSize is the default maximum read buffer size.
	DefaultReadBufferSize = 25 * 1024 * 1024

	// DefaultWriteBufferSize is the default maximum write buffer size.
	DefaultWriteBufferSize = 10 * 1024 * 1024
)

// ErrInvalidWebsocketMessage is returned when a non-text frame is read
// from the websocket.
const ErrInvalidWebsocketMessage Error = "invalid websocket message"

// Connection is the external collaborator named in §2: it owns the wire,
// accepts outbound Messages with monotonically assigned ids, and delivers
// inbound Messages (responses and events alike — the caller classifies
// them via Message.IsResponse/IsEvent). The core never constructs one
// directly; WSConnection below is the concrete gorilla/websocket-backed
// implementation used outside of tests.
type Connection interface {
	Read() (*Message, error)
	Write(*Message) error
	io.Closer
}

// WSConnection wraps a gorilla/websocket.Conn, marshaling and
// unmarshaling Messages with encoding/json, one message per call. Inbound
// frames are read into a single reused buffer; Write serializes
// concurrent callers with its own mutex, since gorilla/websocket allows
// only one writer at a time.
type WSConnection struct {
	ws *websocket.Conn

	readBuf bytes.Buffer
	writeMu sync.Mutex
	dbgf    LogFunc
}

// DialContext dials urlstr (a CDP websocket debugger URL) and returns a
// ready-to-use WSConnection.
func DialContext(ctx context.Context, urlstr string, opts ...DialOption) (*WSConnection, error) {
	d := &websocket.Dialer{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
	}
	ws, _, err := d.DialContext(ctx, urlstr, nil)
	if err != nil {
		return nil, err
	}
	c := &WSConnection{ws: ws}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Read reads and decodes the next inbound message.
func (c *WSConnection) Read() (*Message, error) {
	typ, r, err := c.ws.NextReader()
	if err != nil {
		return nil, err
	}
	if typ != websocket.TextMessage {
		return nil, ErrInvalidWebsocketMessage
	}

	c.readBuf.Reset()
	if _, err := c.readBuf.ReadFrom(r); err != nil {
		return nil, err
	}
	buf := c.readBuf.Bytes()
	if c.dbgf != nil {
		c.dbgf("<- %s", buf)
	}

	msg := new(Message)
	if err := json.Unmarshal(buf, msg); err != nil {
		return nil, &SerializationError{Cause: err}
	}
	// The read buffer is reused on the next call; Result/Params must
	// outlive this call (they're handed off to decodeResult elsewhere).
	if msg.Result != nil {
		msg.Result = easyjson.RawMessage(append([]byte{}, msg.Result...))
	}
	if msg.Params != nil {
		msg.Params = easyjson.RawMessage(append([]byte{}, msg.Params...))
	}
	return msg, nil
}

// Write encodes and sends an outbound message.
func (c *WSConnection) Write(msg *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	w, err := c.ws.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	defer w.Close()

	buf, err := json.Marshal(msg)
	if err != nil {
		return &SerializationError{Cause: err}
	}
	if c.dbgf != nil {
		c.dbgf("-> %s", buf)
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}
	return w.Close()
}

// Close closes the underlying websocket connection.
func (c *WSConnection) Close() error { return c.ws.Close() }

// ForceIP forces the host component in urlstr to be an IP address, since
// Chrome requires the "Host:" header to be an IP address or "localhost".
func ForceIP(urlstr string) string {
	if i := strings.Index(urlstr, "://"); i != -1 {
		scheme := urlstr[:i+3]
		host, port, path := urlstr[len(scheme)+3:], "", ""
		if i := strings.Index(host, "/"); i != -1 {
			host, path = host[:i], host[i:]
		}
		if i := strings.Index(host, ":"); i != -1 {
			host, port = host[:i], host[i:]
		}
		if addr, err := net.ResolveIPAddr("ip", host); err == nil {
			urlstr = scheme + addr.IP.String() + port + path
		}
	}
	return urlstr
}

// DialOption configures a WSConnection at dial time.
type DialOption func(*WSConnection)

// WithConnDebugf sets a wire-level protocol logger.
func WithConnDebugf(f LogFunc) DialOption {
	return func(c *WSConnection) { c.dbgf = f }
}
