package minigame_test

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/matchmaking"
	"github.com/DoyleJ11/minigame-sdk/internal/testkit"
	"github.com/DoyleJ11/minigame-sdk/internal/ws"
	"github.com/DoyleJ11/minigame-sdk/pkg/minigame"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const within = 3 * time.Second

func newSDK(t *testing.T, srv *testkit.Server, opts ...minigame.Option) *minigame.SDK {
	t.Helper()
	sdk, err := minigame.New(minigame.Config{
		BaseURL:           srv.URL,
		MinigameID:        "mg-1",
		TestingAccessCode: "secret",
		PlayersToStart:    2,
		Volume:            80,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { sdk.Destroy() })
	return sdk
}

type readyOutcome struct {
	ready types.SessionReady
	err   error
}

func startReady(t *testing.T, sdk *minigame.SDK) <-chan readyOutcome {
	t.Helper()
	out := make(chan readyOutcome, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), within)
		defer cancel()
		r, err := sdk.Ready(ctx)
		out <- readyOutcome{r, err}
	}()
	return out
}

func waitReady(t *testing.T, out <-chan readyOutcome) readyOutcome {
	t.Helper()
	select {
	case o := <-out:
		return o
	case <-time.After(within):
		t.Fatal("timed out waiting for Ready")
		return readyOutcome{}
	}
}

func lateJoinSnapshot() types.Information {
	host := testkit.Player("host")
	host.Ready = true
	info := testkit.Snapshot("me", "host", types.StatusStarted, host, testkit.Player("me"))
	info.Room.State = map[string]any{"round": float64(2)}
	return info
}

func TestReadyJoinsTestingRoom(t *testing.T) {
	srv := testkit.NewServer(testkit.Options{MinigameID: "mg-1", AccessCode: "secret"})
	t.Cleanup(srv.Close)
	reg := prometheus.NewRegistry()
	sdk := newSDK(t, srv, minigame.WithRegisterer(reg))

	out := startReady(t, sdk)
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	p, err := srv.NextPeer(ctx)
	require.NoError(t, err)
	require.NoError(t, testkit.Join(ctx, p, lateJoinSnapshot()))

	o := waitReady(t, out)
	require.NoError(t, o.err)
	assert.Equal(t, "me", o.ready.User)
	assert.Equal(t, "host", o.ready.Room.Host)
	assert.True(t, o.ready.JoinedLate)
	assert.Equal(t, types.Settings{Language: "en-US", Volume: 80}, o.ready.Settings)
	require.Len(t, o.ready.Players, 2)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Regexp(t, `^Guest_[A-Z0-9]{6}$`, reqs[0].DisplayName)

	_, err = sdk.Ready(ctx)
	assert.ErrorIs(t, err, minigame.ErrAlreadyReady)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["minigame_ws_frames_received_total"])
	assert.True(t, names["minigame_ws_frames_sent_total"])
}

func TestDataFollowsEvents(t *testing.T) {
	srv := testkit.NewServer(testkit.Options{})
	t.Cleanup(srv.Close)

	events := make(chan types.Event, 16)
	sdk := newSDK(t, srv, minigame.WithSink(types.SinkFunc(func(e types.Event) { events <- e })))

	_, ok := sdk.Data()
	assert.False(t, ok)

	out := startReady(t, sdk)
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	p, err := srv.NextPeer(ctx)
	require.NoError(t, err)
	require.NoError(t, testkit.Join(ctx, p, lateJoinSnapshot()))
	require.NoError(t, waitReady(t, out).err)

	require.NoError(t, p.Send(ctx, types.ServerMinigamePlayerReady, types.UserRef{User: "p3"}))
	require.NoError(t, p.Send(ctx, types.ServerMinigameSetPlayerState, types.PlayerState{User: "p3", State: "blue"}))
	require.NoError(t, p.Send(ctx, types.ServerMinigameSetGameState, types.GameState{State: map[string]any{"round": float64(3)}}))
	require.NoError(t, p.Send(ctx, types.ServerPlayerLeft, types.UserRef{User: "host"}))

	// SessionReady, GameStarted, then the four above.
	for i := 0; i < 6; i++ {
		select {
		case <-events:
		case <-time.After(within):
			t.Fatalf("timed out after %d events", i)
		}
	}

	data, ok := sdk.Data()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"round": float64(3)}, data.Room.State)
	require.Len(t, data.Players, 2)
	assert.Equal(t, "me", data.Players[0].ID)
	assert.Equal(t, "p3", data.Players[1].ID)
	assert.Equal(t, "blue", data.Players[1].State)

	require.NoError(t, sdk.SendGameMessage(ctx, "gg"))
	m, err := testkit.Expect(ctx, p, types.ClientMinigameSendGameMessage)
	require.NoError(t, err)
	assert.Equal(t, types.Message{Message: "gg"}, m.Data)
}

func TestReadyRejectedByMatchmaking(t *testing.T) {
	srv := testkit.NewServer(testkit.Options{AccessCode: "other"})
	t.Cleanup(srv.Close)
	sdk := newSDK(t, srv)

	for i := 0; i < 2; i++ {
		_, err := sdk.Ready(context.Background())
		assert.ErrorIs(t, err, matchmaking.ErrRejected)
	}
}

func TestReadyDisconnectedBeforeReady(t *testing.T) {
	srv := testkit.NewServer(testkit.Options{})
	t.Cleanup(srv.Close)

	closes := make(chan ws.CloseReason, 1)
	sdk := newSDK(t, srv, minigame.WithDisconnectHandler(func(r ws.CloseReason) { closes <- r }))

	out := startReady(t, sdk)
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()
	p, err := srv.NextPeer(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Send(ctx, types.ServerGetInformation,
		testkit.Snapshot("me", "host", types.StatusLobby, testkit.Player("host"), testkit.Player("me"))))
	require.NoError(t, p.CloseWithCode(websocket.StatusPolicyViolation, types.CodeTestingEnded))

	o := waitReady(t, out)
	assert.ErrorIs(t, o.err, minigame.ErrDisconnected)
	select {
	case r := <-closes:
		assert.Equal(t, types.CodeTestingEnded, r.Code)
	case <-time.After(within):
		t.Fatal("disconnect handler not called")
	}
}

func TestDestroy(t *testing.T) {
	srv := testkit.NewServer(testkit.Options{})
	t.Cleanup(srv.Close)
	sdk := newSDK(t, srv)

	require.NoError(t, sdk.Destroy())
	require.NoError(t, sdk.Destroy())

	_, err := sdk.Ready(context.Background())
	assert.ErrorIs(t, err, minigame.ErrDestroyed)
	sdk.SetClientPrompt("still fine")
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name string
		cfg  minigame.Config
	}{
		{"missing minigame", minigame.Config{TestingAccessCode: "c", PlayersToStart: 1}},
		{"missing access code", minigame.Config{MinigameID: "m", PlayersToStart: 1}},
		{"no players", minigame.Config{MinigameID: "m", TestingAccessCode: "c"}},
		{"bad encoding", minigame.Config{MinigameID: "m", TestingAccessCode: "c", PlayersToStart: 1, Encoding: "Xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := minigame.New(tt.cfg)
			assert.ErrorIs(t, err, minigame.ErrInvalidConfig)
		})
	}
}
