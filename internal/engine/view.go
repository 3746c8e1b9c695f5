package engine

import "github.com/DoyleJ11/minigame-sdk/pkg/types"

// View is a detached copy of the mirror. Nothing in it aliases engine
// state.
type View struct {
	Phase    Phase
	User     string
	Room     types.Room
	Players  []types.GamePlayer
	Minigame *types.Minigame
	Pack     *types.Pack
	Settings types.Settings
	GateOpen bool
}

func (e *Engine) View() View {
	return View{
		Phase:    e.phase,
		User:     e.user,
		Room:     e.roomCopy(),
		Players:  clonePlayers(e.roster),
		Minigame: cloneMinigame(e.minigame),
		Pack:     clonePack(e.pack),
		Settings: e.settings,
		GateOpen: e.gateOpen,
	}
}

// Player returns a copy of the mirrored player id.
func (v View) Player(id string) (types.GamePlayer, bool) {
	for _, p := range v.Players {
		if p.ID == id {
			return p, true
		}
	}
	return types.GamePlayer{}, false
}

func (e *Engine) roomCopy() types.Room {
	r := e.room
	r.State = types.CloneState(r.State)
	return r
}

func clonePlayer(p types.GamePlayer) types.GamePlayer {
	p.State = types.CloneState(p.State)
	return p
}

func clonePlayers(ps []types.GamePlayer) []types.GamePlayer {
	out := make([]types.GamePlayer, len(ps))
	for i, p := range ps {
		out[i] = clonePlayer(p)
	}
	return out
}

func cloneMinigame(m *types.Minigame) *types.Minigame {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func clonePack(p *types.Pack) *types.Pack {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
