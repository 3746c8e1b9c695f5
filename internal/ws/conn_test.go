package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/codec"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve runs script against every accepted peer and returns a ws:// URL.
func serve(t *testing.T, script func(ctx context.Context, p *Peer)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := Accept(w, r, AcceptOptions{})
		if err != nil {
			return
		}
		script(r.Context(), p)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drain blocks until the client goes away.
func drain(ctx context.Context, p *Peer) {
	for {
		if _, err := p.Recv(ctx); err != nil && !errors.Is(err, codec.ErrMalformedFrame) {
			return
		}
	}
}

func recvMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(within):
		t.Fatalf("timed out waiting for server message")
		return types.ServerMessage{}
	}
}

func recvClose(t *testing.T, ch <-chan CloseReason, within time.Duration) CloseReason {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(within):
		t.Fatalf("timed out waiting for close")
		return CloseReason{}
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func dial(t *testing.T, url string, opts Options) *Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConn_DispatchesInOrder(t *testing.T) {
	for _, enc := range []codec.Encoding{codec.EncodingBinary, codec.EncodingJSON} {
		t.Run(string(enc), func(t *testing.T) {
			url := serve(t, func(ctx context.Context, p *Peer) {
				assert.Equal(t, enc, p.Encoding())
				_ = p.Send(ctx, types.ServerMinigameSetGameState, types.GameState{State: float64(1)})
				_ = p.Send(ctx, types.ServerMinigameSendBinaryGameMessage, []byte{0x00, 0xff})
				_ = p.Send(ctx, types.ServerMinigameSetGameState, types.GameState{State: float64(2)})
				drain(ctx, p)
			})
			c := dial(t, url, Options{Token: "tok", Encoding: enc})

			got := make(chan types.ServerMessage, 8)
			c.On(types.ServerMinigameSetGameState, func(m types.ServerMessage) { got <- m })
			c.On(types.ServerMinigameSendBinaryGameMessage, func(m types.ServerMessage) { got <- m })
			c.Start()

			assert.Equal(t, types.GameState{State: float64(1)}, recvMsg(t, got, time.Second).Data)
			assert.Equal(t, []byte{0x00, 0xff}, recvMsg(t, got, time.Second).Data)
			assert.Equal(t, types.GameState{State: float64(2)}, recvMsg(t, got, time.Second).Data)
		})
	}
}

func TestConn_SendReachesPeer(t *testing.T) {
	received := make(chan types.ClientMessage, 1)
	tokens := make(chan string, 1)
	url := serve(t, func(ctx context.Context, p *Peer) {
		tokens <- p.Token()
		m, err := p.Recv(ctx)
		if err == nil {
			received <- m
		}
		drain(ctx, p)
	})
	c := dial(t, url, Options{Token: "secret", Encoding: codec.EncodingJSON})
	c.Start()

	require.NoError(t, c.Send(context.Background(), types.ClientMinigameSendPrivateMessage, types.PrivateMessage{Message: "hi"}))

	select {
	case m := <-received:
		assert.Equal(t, types.ClientMinigameSendPrivateMessage, m.Opcode)
		assert.Equal(t, types.PrivateMessage{Message: "hi"}, m.Data)
	case <-time.After(time.Second):
		t.Fatalf("peer never received the frame")
	}
	assert.Equal(t, "secret", <-tokens)
}

func TestConn_SendRejectsMismatchedPayload(t *testing.T) {
	url := serve(t, drain)
	c := dial(t, url, Options{})
	err := c.Send(context.Background(), types.ClientMinigameSetGameState, "not a GameState")
	require.ErrorIs(t, err, types.ErrPayloadMismatch)
}

func TestConn_RemoteCloseWithCode(t *testing.T) {
	url := serve(t, func(ctx context.Context, p *Peer) {
		_ = p.CloseWithCode(websocket.StatusPolicyViolation, types.CodeInvalidAuthorization)
	})
	c := dial(t, url, Options{Token: "t"})
	closed := make(chan CloseReason, 2)
	c.OnClose(func(r CloseReason) { closed <- r })
	c.Start()

	r := recvClose(t, closed, 2*time.Second)
	assert.Equal(t, websocket.StatusPolicyViolation, r.Status)
	assert.Equal(t, types.CodeInvalidAuthorization, r.Code)
	assert.False(t, c.Open())

	require.NoError(t, c.Close())
	select {
	case <-closed:
		t.Fatalf("close delivered twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConn_RemoteCloseVerbatimReason(t *testing.T) {
	url := serve(t, func(ctx context.Context, p *Peer) {
		_ = p.Close(websocket.StatusGoingAway, "room closed")
	})
	c := dial(t, url, Options{})
	closed := make(chan CloseReason, 1)
	c.OnClose(func(r CloseReason) { closed <- r })
	c.Start()

	r := recvClose(t, closed, 2*time.Second)
	assert.Equal(t, websocket.StatusGoingAway, r.Status)
	assert.Equal(t, "room closed", r.Reason)
	assert.Empty(t, r.Code)
}

func TestConn_LocalCloseIsQuietAndIdempotent(t *testing.T) {
	url := serve(t, drain)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := dial(t, url, Options{Metrics: metrics})

	closed := make(chan CloseReason, 1)
	c.OnClose(func(r CloseReason) { closed <- r })
	c.On(types.ServerError, func(types.ServerMessage) {})
	c.Start()

	_ = c.Close()
	require.NoError(t, c.Close())
	assert.False(t, c.Open())
	assert.Equal(t, 0, c.subs.Len(types.ServerError))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("read loop did not exit")
	}
	select {
	case r := <-closed:
		t.Fatalf("local close notified: %v", r)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, c.Send(context.Background(), types.ClientPing, types.Empty{}))
	assert.Equal(t, 1.0, counterValue(t, metrics.sendsDropped.WithLabelValues("Ping")))
}

func TestConn_DropsUndecodableFrames(t *testing.T) {
	url := serve(t, func(ctx context.Context, p *Peer) {
		_ = p.WriteRaw(ctx, []byte{byte(types.ServerMinigameSetGameState), 0xc1})
		_ = p.Send(ctx, types.ServerMinigameSetGameState, types.GameState{State: "ok"})
		drain(ctx, p)
	})
	metrics := NewMetrics(prometheus.NewRegistry())
	c := dial(t, url, Options{Metrics: metrics})
	got := make(chan types.ServerMessage, 2)
	c.On(types.ServerMinigameSetGameState, func(m types.ServerMessage) { got <- m })
	c.Start()

	assert.Equal(t, types.GameState{State: "ok"}, recvMsg(t, got, time.Second).Data)
	assert.Equal(t, 1.0, counterValue(t, metrics.decodeErrors))
	assert.Equal(t, 1.0, counterValue(t, metrics.framesReceived.WithLabelValues("MinigameSetGameState")))
}

func TestConn_OnceAndOff(t *testing.T) {
	url := serve(t, func(ctx context.Context, p *Peer) {
		for i := 0; i < 3; i++ {
			_ = p.Send(ctx, types.ServerPlayerLeft, types.UserRef{User: "u"})
		}
		_ = p.Send(ctx, types.ServerMinigameStartGame, types.Empty{})
		drain(ctx, p)
	})
	c := dial(t, url, Options{})
	once := make(chan types.ServerMessage, 3)
	off := make(chan types.ServerMessage, 3)
	done := make(chan types.ServerMessage, 1)
	c.Once(types.ServerPlayerLeft, func(m types.ServerMessage) { once <- m })
	id := c.On(types.ServerPlayerLeft, func(m types.ServerMessage) { off <- m })
	require.True(t, c.Off(types.ServerPlayerLeft, id))
	c.On(types.ServerMinigameStartGame, func(m types.ServerMessage) { done <- m })
	c.Start()

	recvMsg(t, done, time.Second)
	assert.Len(t, once, 1)
	assert.Len(t, off, 0)
}

func TestDial_AcceptsTokenSubprotocol(t *testing.T) {
	frames := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"tok"}})
		if err != nil {
			return
		}
		_, data, err := conn.Read(r.Context())
		if err == nil {
			frames <- data
		}
		_, _, _ = conn.Read(r.Context())
	}))
	t.Cleanup(srv.Close)

	c := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"), Options{Token: "tok"})
	assert.Equal(t, codec.EncodingBinary, c.Encoding())
	require.NoError(t, c.Send(context.Background(), types.ClientPing, types.Empty{}))

	select {
	case data := <-frames:
		assert.Equal(t, byte(types.ClientPing), data[0])
	case <-time.After(2 * time.Second):
		t.Fatal("frame not received")
	}
}

func TestDial_RejectsOtherEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Selects an encoding the client never offered.
		w.Header().Set("Sec-WebSocket-Protocol", string(codec.EncodingJSON))
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_, _, _ = conn.Read(r.Context())
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), Options{Token: "tok"})
	require.Error(t, err)
}

func TestConn_CloseDoesNotWaitForPeer(t *testing.T) {
	url := serve(t, func(ctx context.Context, p *Peer) {
		// Never reads, so the close frame goes unanswered.
		<-ctx.Done()
	})
	c := dial(t, url, Options{})
	c.Start()

	start := time.Now()
	require.NoError(t, c.Close())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, c.Open())

	select {
	case <-c.Closed():
	case <-time.After(closeTimeout + 2*time.Second):
		t.Fatal("socket not released after the close timeout")
	}
}
