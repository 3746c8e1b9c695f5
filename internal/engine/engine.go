// Package engine is the client-side room protocol state machine. It
// applies decoded server messages to a local mirror of the room, decides
// which domain events reach the minigame, and reports the frames the
// client must send in response. It performs no I/O and is not safe for
// concurrent use; one goroutine owns each Engine.
package engine

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/minigame-sdk/pkg/types"
)

var ErrNotOpen = errors.New("engine: connection not open")
var ErrClosed = errors.New("engine: session closed")
var ErrDuplicateSnapshot = errors.New("engine: duplicate room snapshot")
var ErrNoSnapshot = errors.New("engine: message before room snapshot")
var ErrUnknownPlayer = errors.New("engine: unknown player")
var ErrFaulted = errors.New("engine: mirror diverged from server")

type Config struct {
	// PlayersToStart is the ready count, host included, at which a host
	// sends its own handshake.
	PlayersToStart int
	// AutoBegin makes a host that joins a lobby start the minigame.
	AutoBegin bool
	Settings  types.Settings
}

// Outbound is a frame the engine asks the caller to send.
type Outbound struct {
	Opcode types.ClientOpcode
	Data   any
}

// Result is what applying one server message produced. Events are in
// delivery order.
type Result struct {
	Events []types.Event
	Sends  []Outbound
}

type Engine struct {
	cfg      Config
	phase    Phase
	settings types.Settings

	snapshot bool
	user     string
	room     types.Room
	roster   []types.GamePlayer
	minigame *types.Minigame
	pack     *types.Pack

	gateOpen      bool
	handshakeSent bool
	fault         error
}

func New(cfg Config) *Engine {
	return &Engine{
		cfg:      cfg,
		phase:    PhaseConnecting,
		settings: cfg.Settings,
	}
}

func (e *Engine) Phase() Phase   { return e.phase }
func (e *Engine) GateOpen() bool { return e.gateOpen }
func (e *Engine) Snapshot() bool { return e.snapshot }
func (e *Engine) Fault() error   { return e.fault }
func (e *Engine) User() string   { return e.user }
func (e *Engine) Host() string   { return e.room.Host }

// IsHost reports whether the local player holds the host role.
func (e *Engine) IsHost() bool { return e.snapshot && e.user == e.room.Host }

// Opened records that the transport connected.
func (e *Engine) Opened() error {
	if e.phase != PhaseConnecting {
		return fmt.Errorf("engine: open in phase %s", e.phase)
	}
	e.phase = PhaseAwaitingSnapshot
	return nil
}

// Closed ends the engine. ended distinguishes a consumer close from a
// transport close.
func (e *Engine) Closed(ended bool) {
	if e.phase.Terminal() {
		return
	}
	if ended {
		e.phase = PhaseEnded
	} else {
		e.phase = PhaseDisconnected
	}
	e.gateOpen = false
}

// Apply consumes one server message. A returned error other than
// ErrNotOpen, ErrClosed or types.ErrPayloadMismatch is a protocol fault:
// the engine moves to PhaseDisconnected and rejects everything after.
func (e *Engine) Apply(msg types.ServerMessage) (Result, error) {
	if e.fault != nil {
		return Result{}, ErrFaulted
	}
	if e.phase == PhaseConnecting {
		return Result{}, ErrNotOpen
	}
	if e.phase.Terminal() {
		return Result{}, ErrClosed
	}
	if _, ok := msg.Data.(types.Unknown); ok {
		return Result{}, nil
	}
	if err := msg.Validate(); err != nil {
		return Result{}, err
	}

	res, err := e.apply(msg)
	if err != nil {
		e.fault = err
		e.phase = PhaseDisconnected
		e.gateOpen = false
		return Result{}, err
	}
	return res, nil
}

func (e *Engine) apply(msg types.ServerMessage) (Result, error) {
	if msg.Opcode == types.ServerGetInformation {
		if e.snapshot {
			return Result{}, ErrDuplicateSnapshot
		}
		return e.applySnapshot(msg.Data.(types.Information)), nil
	}
	if msg.Opcode == types.ServerError {
		return Result{}, nil
	}
	if !e.snapshot {
		return Result{}, fmt.Errorf("%w: %s", ErrNoSnapshot, msg.Opcode)
	}

	var r Result
	switch msg.Opcode {
	case types.ServerPlayerJoin:
		p := clonePlayer(msg.Data.(types.PlayerJoin).Player)
		if i := e.find(p.ID); i >= 0 {
			// A rejoin refreshes the profile; ready never reverts here.
			old := e.roster[i]
			p.Ready = p.Ready || old.Ready
			if p.State == nil {
				p.State = old.State
			}
			e.roster[i] = p
		} else {
			e.roster = append(e.roster, p)
		}

	case types.ServerPlayerLeft:
		user := msg.Data.(types.UserRef).User
		i := e.find(user)
		if i < 0 {
			return Result{}, unknownPlayer(msg.Opcode, user)
		}
		e.roster = append(e.roster[:i], e.roster[i+1:]...)
		e.forward(&r, types.PlayerLeft{User: user})

	case types.ServerTransferHost:
		user := msg.Data.(types.UserRef).User
		if e.find(user) < 0 {
			return Result{}, unknownPlayer(msg.Opcode, user)
		}
		e.room.Host = user

	case types.ServerUpdatedRoomSettings:
		d := msg.Data.(types.UpdatedRoomSettings)
		e.minigame = cloneMinigame(d.Minigame)
		e.pack = clonePack(d.Pack)

	case types.ServerLoadMinigame:
		e.room.Status = types.StatusLoadingMinigame
		e.phase = DerivePhase(e.room.Status)
		e.roster = clonePlayers(msg.Data.(types.PlayerList).Players)
		if !e.IsHost() || e.cfg.PlayersToStart <= 1 {
			e.handshake(&r)
		}

	case types.ServerEndMinigame:
		e.room.Status = types.StatusLobby
		e.room.State = nil
		e.phase = DerivePhase(e.room.Status)
		e.roster = clonePlayers(msg.Data.(types.PlayerList).Players)
		for i := range e.roster {
			e.roster[i].Ready = false
		}
		e.gateOpen = false
		e.handshakeSent = false

	case types.ServerMinigamePlayerReady:
		e.applyReady(&r, msg.Data.(types.UserRef).User)

	case types.ServerMinigameStartGame:
		e.room.Status = types.StatusStarted
		e.phase = DerivePhase(e.room.Status)
		e.forward(&r, types.GameStarted{JoinedLate: false})

	case types.ServerMinigameSetGameState:
		e.room.State = types.CloneState(msg.Data.(types.GameState).State)
		e.forward(&r, types.GameStateUpdated{State: types.CloneState(e.room.State)})

	case types.ServerMinigameSetPlayerState:
		d := msg.Data.(types.PlayerState)
		i := e.find(d.User)
		if i < 0 {
			return Result{}, unknownPlayer(msg.Opcode, d.User)
		}
		e.roster[i].State = types.CloneState(d.State)
		e.forward(&r, types.PlayerStateUpdated{User: d.User, State: types.CloneState(d.State)})

	case types.ServerMinigameSendGameMessage:
		e.forward(&r, types.GameMessage{Message: msg.Data.(types.Message).Message})

	case types.ServerMinigameSendPlayerMessage:
		d := msg.Data.(types.PlayerMessage)
		if e.find(d.User) < 0 {
			return Result{}, unknownPlayer(msg.Opcode, d.User)
		}
		e.forward(&r, types.PlayerMessageReceived{User: d.User, Message: d.Message})

	case types.ServerMinigameSendPrivateMessage:
		d := msg.Data.(types.DirectMessage)
		if e.find(d.FromUser) < 0 {
			return Result{}, unknownPlayer(msg.Opcode, d.FromUser)
		}
		e.forward(&r, types.PrivateMessageReceived{FromUser: d.FromUser, ToUser: d.ToUser, Message: d.Message})

	case types.ServerMinigameSendBinaryGameMessage:
		e.forward(&r, types.BinaryGameMessage{Message: msg.Data.([]byte)})

	case types.ServerMinigameSendBinaryPlayerMessage:
		d := msg.Data.(types.BinaryPlayerMessage)
		if e.find(d.User) < 0 {
			return Result{}, unknownPlayer(msg.Opcode, d.User)
		}
		e.forward(&r, types.BinaryPlayerMessageReceived{User: d.User, Message: d.Message})

	case types.ServerMinigameSendBinaryPrivateMessage:
		d := msg.Data.(types.BinaryDirectMessage)
		if e.find(d.FromUser) < 0 {
			return Result{}, unknownPlayer(msg.Opcode, d.FromUser)
		}
		e.forward(&r, types.BinaryPrivateMessageReceived{FromUser: d.FromUser, ToUser: d.ToUser, Message: d.Message})
	}
	return r, nil
}

func (e *Engine) applySnapshot(info types.Information) Result {
	e.snapshot = true
	e.user = info.User
	e.room = types.Room{
		Host:   info.Room.Host,
		Status: info.Status,
		State:  types.CloneState(info.Room.State),
	}
	e.roster = clonePlayers(info.Players)
	e.minigame = cloneMinigame(info.Minigame)
	e.pack = clonePack(info.Pack)
	e.phase = DerivePhase(info.Status)

	var r Result
	switch {
	case e.IsHost():
		if info.Status == types.StatusLobby && e.cfg.AutoBegin {
			r.Sends = append(r.Sends, Outbound{Opcode: types.ClientBeginGame, Data: types.Empty{}})
		}
	case info.Status != types.StatusLobby:
		e.handshake(&r)
	}
	if i := e.find(e.user); i >= 0 && e.roster[i].Ready {
		e.openGate(&r)
	}
	return r
}

func (e *Engine) applyReady(r *Result, user string) {
	i := e.find(user)
	if i < 0 {
		e.roster = append(e.roster, types.GamePlayer{ID: user})
		i = len(e.roster) - 1
	}
	e.roster[i].Ready = true
	joinedLate := e.room.Status == types.StatusStarted

	if user == e.user {
		if !e.gateOpen {
			e.openGate(r)
		}
	} else {
		e.forward(r, types.PlayerJoined{Player: e.roster[i].Player(), JoinedLate: joinedLate})
	}

	if !e.IsHost() || e.handshakeSent {
		return
	}
	if me := e.find(e.user); me >= 0 && e.roster[me].Ready {
		return
	}
	if e.readyNonHost()+1 >= e.cfg.PlayersToStart {
		e.handshake(r)
	}
}

// openGate releases the session: one SessionReady carrying the whole
// mirror, then live forwarding.
func (e *Engine) openGate(r *Result) {
	e.gateOpen = true
	started := e.room.Status == types.StatusStarted
	r.Events = append(r.Events, types.SessionReady{
		Settings:   e.settings,
		User:       e.user,
		Room:       e.roomCopy(),
		Players:    e.readyPlayers(),
		JoinedLate: started,
	})
	if started {
		r.Events = append(r.Events, types.GameStarted{JoinedLate: true})
	}
}

func (e *Engine) forward(r *Result, ev types.Event) {
	if e.gateOpen {
		r.Events = append(r.Events, ev)
	}
}

func (e *Engine) handshake(r *Result) {
	if e.handshakeSent {
		return
	}
	e.handshakeSent = true
	r.Sends = append(r.Sends, Outbound{Opcode: types.ClientMinigameHandshake, Data: types.Handshake{}})
}

// UpdateSettings merges u into the settings handed to the minigame.
func (e *Engine) UpdateSettings(u types.SettingsUpdate) []types.Event {
	if u.Language != nil {
		e.settings.Language = *u.Language
	}
	if u.Volume != nil {
		e.settings.Volume = *u.Volume
	}
	if !e.gateOpen {
		return nil
	}
	return []types.Event{types.SettingsUpdated{Settings: u}}
}

func (e *Engine) find(id string) int {
	for i := range e.roster {
		if e.roster[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) readyNonHost() int {
	n := 0
	for _, p := range e.roster {
		if p.Ready && p.ID != e.room.Host {
			n++
		}
	}
	return n
}

func (e *Engine) readyPlayers() []types.Player {
	out := []types.Player{}
	for _, p := range e.roster {
		if p.Ready {
			out = append(out, p.Player())
		}
	}
	return out
}

// HasPlayer reports whether id is in the mirrored roster.
func (e *Engine) HasPlayer(id string) bool { return e.find(id) >= 0 }

func unknownPlayer(op types.ServerOpcode, user string) error {
	return fmt.Errorf("%w: %s references %q", ErrUnknownPlayer, op, user)
}
