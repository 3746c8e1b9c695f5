package engine

import "github.com/DoyleJ11/minigame-sdk/pkg/types"

type Phase string

const (
	PhaseConnecting       Phase = "connecting"
	PhaseAwaitingSnapshot Phase = "awaiting_snapshot"
	PhaseLobby            Phase = "lobby"
	PhaseLoadingMinigame  Phase = "loading_minigame"
	PhaseInGame           Phase = "in_game"
	PhaseEnded            Phase = "ended"
	PhaseDisconnected     Phase = "disconnected"
)

// DerivePhase maps a server room status onto the connected phases.
func DerivePhase(s types.Status) Phase {
	switch s {
	case types.StatusLoadingMinigame:
		return PhaseLoadingMinigame
	case types.StatusStarted:
		return PhaseInGame
	default:
		return PhaseLobby
	}
}

// Terminal reports whether no further message can be applied.
func (p Phase) Terminal() bool {
	return p == PhaseEnded || p == PhaseDisconnected
}
