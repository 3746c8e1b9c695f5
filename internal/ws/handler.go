package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/codec"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var ErrMissingEncoding = errors.New("ws: client offered no known encoding")

// AcceptOptions configures the server side of a room connection.
type AcceptOptions struct {
	Logger       *zap.Logger
	WriteTimeout time.Duration
	ReadLimit    int64
	// Authorize checks the token the client offered. nil accepts any.
	Authorize func(token string) error
}

// Peer is the server end of one room connection. It speaks the same
// codecs in the opposite direction and exists for room servers written
// against this module, tests included.
type Peer struct {
	conn         *websocket.Conn
	codec        codec.Codec
	log          *zap.Logger
	writeTimeout time.Duration
	token        string
}

// Accept upgrades r, selecting the encoding from the client's offered
// subprotocols. Any other offered protocol is taken as the token.
func Accept(w http.ResponseWriter, r *http.Request, opts AcceptOptions) (*Peer, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}

	var token string
	known := false
	for _, p := range offeredProtocols(r) {
		if _, err := codec.ParseEncoding(p); err == nil {
			known = true
			continue
		}
		if token == "" {
			token = p
		}
	}
	if !known {
		http.Error(w, "missing encoding", http.StatusBadRequest)
		return nil, ErrMissingEncoding
	}
	if opts.Authorize != nil {
		if err := opts.Authorize(token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return nil, err
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{string(codec.EncodingBinary), string(codec.EncodingJSON)},
	})
	if err != nil {
		return nil, fmt.Errorf("ws: accept: %w", err)
	}
	enc, err := codec.ParseEncoding(conn.Subprotocol())
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "unsupported encoding")
		return nil, err
	}
	cd, _ := codec.For(enc)
	conn.SetReadLimit(opts.ReadLimit)

	return &Peer{
		conn:         conn,
		codec:        cd,
		log:          opts.Logger.Named("peer"),
		writeTimeout: opts.WriteTimeout,
		token:        token,
	}, nil
}

func offeredProtocols(r *http.Request) []string {
	var out []string
	for _, h := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (p *Peer) Token() string            { return p.token }
func (p *Peer) Encoding() codec.Encoding { return p.codec.Encoding() }

func (p *Peer) Send(ctx context.Context, op types.ServerOpcode, data any) error {
	frame, err := p.codec.EncodeServer(types.ServerMessage{Opcode: op, Data: data})
	if err != nil {
		return err
	}
	return p.WriteRaw(ctx, frame)
}

// WriteRaw writes frame unchanged in the negotiated message type.
func (p *Peer) WriteRaw(ctx context.Context, frame []byte) error {
	typ := websocket.MessageText
	if p.codec.Binary() {
		typ = websocket.MessageBinary
	}
	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	return p.conn.Write(ctx, typ, frame)
}

// Recv blocks for the next client frame.
func (p *Peer) Recv(ctx context.Context) (types.ClientMessage, error) {
	_, data, err := p.conn.Read(ctx)
	if err != nil {
		return types.ClientMessage{}, err
	}
	msg, err := p.codec.DecodeClient(data)
	if err != nil {
		p.log.Warn("undecodable client frame", zap.Error(err))
		return types.ClientMessage{}, err
	}
	return msg, nil
}

func (p *Peer) Close(status websocket.StatusCode, reason string) error {
	return p.conn.Close(status, reason)
}

// CloseWithCode closes with a JSON {"code": ...} reason, the form
// clients parse into CloseReason.Code.
func (p *Peer) CloseWithCode(status websocket.StatusCode, code types.ErrorCode) error {
	b, err := json.Marshal(types.APIErrorResponse{Code: code})
	if err != nil {
		return err
	}
	return p.conn.Close(status, string(b))
}

// Abort drops the connection without a close handshake.
func (p *Peer) Abort() error {
	return p.conn.CloseNow()
}
