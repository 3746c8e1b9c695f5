// Package ws owns the websocket connection to a room server: dialing
// with the token and encoding subprotocols, the single read loop that
// decodes and dispatches server frames by opcode, guarded sends, and
// the close lifecycle.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/codec"
	"github.com/DoyleJ11/minigame-sdk/internal/hub"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	DefaultWriteTimeout = 3 * time.Second
	DefaultReadLimit    = 4 << 20

	// closeTimeout bounds the close handshake before the socket is
	// dropped.
	closeTimeout = time.Second
)

var ErrSubprotocol = errors.New("ws: server selected a different encoding")

type Options struct {
	// Token is the opaque authorization token from matchmaking. It is
	// offered as the first subprotocol.
	Token    string
	Encoding codec.Encoding

	Logger       *zap.Logger
	Metrics      *Metrics
	WriteTimeout time.Duration
	ReadLimit    int64

	HTTPClient *http.Client
	HTTPHeader http.Header
}

func (o Options) withDefaults() Options {
	if o.Encoding == "" {
		o.Encoding = codec.EncodingBinary
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	return o
}

// CloseReason describes a close initiated by the remote end. Code is
// set when the reason text was a JSON {"code": ...} document.
type CloseReason struct {
	Status websocket.StatusCode
	Reason string
	Code   types.ErrorCode
}

func (r CloseReason) String() string {
	if r.Code != "" {
		return fmt.Sprintf("%s: %s", r.Status, r.Code)
	}
	if r.Reason != "" {
		return fmt.Sprintf("%s: %s", r.Status, r.Reason)
	}
	return r.Status.String()
}

type Conn struct {
	conn         *websocket.Conn
	codec        codec.Codec
	log          *zap.Logger
	metrics      *Metrics
	writeTimeout time.Duration

	subs *hub.Hub[types.ServerOpcode, types.ServerMessage]

	mu      sync.Mutex
	onClose func(CloseReason)

	open      atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closed    chan struct{}
}

// Dial connects to url and negotiates opts.Encoding. The returned Conn
// is open but delivers nothing until Start is called, so callers can
// subscribe first.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	cd, err := codec.For(opts.Encoding)
	if err != nil {
		return nil, err
	}

	protocols := []string{string(opts.Encoding)}
	if opts.Token != "" {
		protocols = []string{opts.Token, string(opts.Encoding)}
	}
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient:   opts.HTTPClient,
		HTTPHeader:   opts.HTTPHeader,
		Subprotocols: protocols,
	})
	if err != nil {
		return nil, fmt.Errorf("ws: dial: %w", err)
	}
	// The server may select the token rather than the encoding; only a
	// different encoding is refused.
	if got := conn.Subprotocol(); got != string(opts.Encoding) {
		if enc, err := codec.ParseEncoding(got); err == nil && enc != opts.Encoding {
			conn.CloseNow()
			return nil, fmt.Errorf("%w: %q", ErrSubprotocol, got)
		}
	}
	conn.SetReadLimit(opts.ReadLimit)

	c := newConn(conn, cd, opts)
	c.log.Debug("connected", zap.String("encoding", string(opts.Encoding)))
	return c, nil
}

func newConn(conn *websocket.Conn, cd codec.Codec, opts Options) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		conn:         conn,
		codec:        cd,
		log:          opts.Logger.Named("ws"),
		metrics:      opts.Metrics,
		writeTimeout: opts.WriteTimeout,
		subs:         hub.NewHub[types.ServerOpcode, types.ServerMessage](),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		closed:       make(chan struct{}),
	}
	c.subs.SetPanicHandler(func(op types.ServerOpcode, r any) {
		c.log.Error("subscriber panicked", zap.Stringer("opcode", op), zap.Any("panic", r))
	})
	c.open.Store(true)
	return c
}

func (c *Conn) Encoding() codec.Encoding { return c.codec.Encoding() }

// Open reports whether sends are currently written to the network.
func (c *Conn) Open() bool { return c.open.Load() }

// Done is closed when the read loop has exited.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) On(op types.ServerOpcode, fn func(types.ServerMessage)) hub.Subscription {
	return c.subs.On(op, fn)
}

func (c *Conn) Once(op types.ServerOpcode, fn func(types.ServerMessage)) hub.Subscription {
	return c.subs.Once(op, fn)
}

func (c *Conn) Off(op types.ServerOpcode, id hub.Subscription) bool {
	return c.subs.Off(op, id)
}

// OnClose sets the single close subscriber, replacing any earlier one.
// It is called at most once, and only for a close the remote end
// initiated or a connection failure.
func (c *Conn) OnClose(fn func(CloseReason)) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// OnAny subscribes fn to every known server opcode. It returns one
// subscription per opcode, in opcode order.
func (c *Conn) OnAny(fn func(types.ServerMessage)) []hub.Subscription {
	ops := types.ServerOpcodes()
	ids := make([]hub.Subscription, len(ops))
	for i, op := range ops {
		ids[i] = c.subs.On(op, fn)
	}
	return ids
}

// Start launches the read loop. Later calls do nothing.
func (c *Conn) Start() {
	c.startOnce.Do(func() { go c.readLoop() })
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.closedRemotely(err)
			return
		}
		msg, err := c.codec.DecodeServer(data)
		if err != nil {
			c.metrics.decodeError()
			c.log.Warn("dropping undecodable frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		if !c.open.Load() {
			return
		}
		c.metrics.received(msg.Opcode.String())
		c.log.Debug("frame received", zap.Stringer("opcode", msg.Opcode))
		c.subs.Emit(msg.Opcode, msg)
	}
}

func (c *Conn) closedRemotely(err error) {
	if !c.open.CompareAndSwap(true, false) {
		return
	}
	reason := closeReasonFrom(err)
	c.log.Info("connection closed by peer", zap.Stringer("reason", reason))
	c.conn.CloseNow()
	c.cancel()

	c.mu.Lock()
	fn := c.onClose
	c.onClose = nil
	c.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

func closeReasonFrom(err error) CloseReason {
	var ce websocket.CloseError
	if !errors.As(err, &ce) {
		return CloseReason{Status: websocket.StatusAbnormalClosure, Reason: err.Error()}
	}
	r := CloseReason{Status: ce.Code, Reason: ce.Reason}
	var body types.APIErrorResponse
	if json.Unmarshal([]byte(ce.Reason), &body) == nil {
		r.Code = body.Code
	}
	return r
}

// Send encodes and writes one client frame. Encoding errors are
// returned; a send on a connection that is not open is dropped and
// reports nil.
func (c *Conn) Send(ctx context.Context, op types.ClientOpcode, data any) error {
	frame, err := c.codec.EncodeClient(types.ClientMessage{Opcode: op, Data: data})
	if err != nil {
		return err
	}
	if !c.open.Load() {
		c.metrics.dropped(op.String())
		c.log.Debug("dropping send on closed connection", zap.Stringer("opcode", op))
		return nil
	}

	typ := websocket.MessageText
	if c.codec.Binary() {
		typ = websocket.MessageBinary
	}
	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := c.conn.Write(wctx, typ, frame); err != nil {
		if !c.open.Load() {
			c.metrics.dropped(op.String())
			return nil
		}
		return fmt.Errorf("ws: write %s: %w", op, err)
	}
	c.metrics.sent(op.String())
	return nil
}

// Close ends the connection and removes every subscriber, including the
// close subscriber, before returning. The close handshake finishes in
// the background and Closed reports when it has. It is safe to call
// more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.onClose = nil
		c.mu.Unlock()
		c.subs.RemoveAll()

		if !c.open.Swap(false) {
			c.cancel()
			close(c.closed)
			return
		}
		go c.closeHandshake()
	})
	return nil
}

func (c *Conn) closeHandshake() {
	defer close(c.closed)
	timer := time.AfterFunc(closeTimeout, func() { c.conn.CloseNow() })
	defer timer.Stop()

	err := c.conn.Close(websocket.StatusNormalClosure, "")
	if err != nil && !errors.Is(err, net.ErrClosed) && websocket.CloseStatus(err) == -1 {
		c.log.Debug("close handshake incomplete", zap.Error(err))
	}
	c.cancel()
	c.conn.CloseNow()
}

// Closed is closed once a local Close has fully released the socket.
func (c *Conn) Closed() <-chan struct{} { return c.closed }
