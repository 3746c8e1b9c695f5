package testkit

import (
	"context"
	"fmt"

	"github.com/DoyleJ11/minigame-sdk/internal/ws"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
)

// Expect reads client frames until one with op arrives, skipping the
// rest, and returns it.
func Expect(ctx context.Context, p *ws.Peer, op types.ClientOpcode) (types.ClientMessage, error) {
	for {
		m, err := p.Recv(ctx)
		if err != nil {
			return types.ClientMessage{}, fmt.Errorf("testkit: waiting for %s: %w", op, err)
		}
		if m.Opcode == op {
			return m, nil
		}
	}
}

// Player builds a connected, not yet ready player.
func Player(id string) types.GamePlayer {
	return types.GamePlayer{ID: id, DisplayName: "Guest_" + id, Avatar: "avatar-" + id}
}

// Snapshot builds a GetInformation payload for user in a room hosted by
// host.
func Snapshot(user, host string, status types.Status, players ...types.GamePlayer) types.Information {
	return types.Information{
		User:    user,
		Room:    types.RoomInfo{Host: host, State: map[string]any{}},
		Status:  status,
		Players: players,
	}
}

// Join plays the server side of a non-host joining a running room: the
// snapshot, the expected handshake, then the local player's ready.
func Join(ctx context.Context, p *ws.Peer, info types.Information) error {
	if err := p.Send(ctx, types.ServerGetInformation, info); err != nil {
		return err
	}
	if _, err := Expect(ctx, p, types.ClientMinigameHandshake); err != nil {
		return err
	}
	return p.Send(ctx, types.ServerMinigamePlayerReady, types.UserRef{User: info.User})
}
