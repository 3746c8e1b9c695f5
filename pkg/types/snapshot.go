package types

import (
	"errors"
	"fmt"
)

// Status is the room lifecycle stage reported by the server.
type Status int

const (
	StatusLobby Status = iota
	StatusLoadingMinigame
	StatusStarted
)

func (s Status) String() string {
	switch s {
	case StatusLobby:
		return "lobby"
	case StatusLoadingMinigame:
		return "loading_minigame"
	case StatusStarted:
		return "started"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Room is the locally mirrored room. State is only ever replaced wholesale.
type Room struct {
	Host   string
	Status Status
	State  State
}

// GamePlayer is a player as the server describes it.
type GamePlayer struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	Mobile      bool   `json:"mobile"`
	Points      int    `json:"points"`
	Ready       bool   `json:"ready"`
	State       State  `json:"state"`
}

// Player is the minigame-facing view of a ready player.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	Mobile      bool   `json:"mobile"`
	Ready       bool   `json:"ready"`
	State       State  `json:"state"`
}

func (p GamePlayer) Player() Player {
	return Player{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
		Mobile:      p.Mobile,
		Ready:       p.Ready,
		State:       CloneState(p.State),
	}
}

type Minigame struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Description           string `json:"description,omitempty"`
	MinimumPlayersToStart int    `json:"minimumPlayersToStart"`
	SupportsMobile        bool   `json:"supportsMobile"`
}

type Pack struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Settings are the embedding surface's preferences for the minigame.
type Settings struct {
	Language string `json:"language"`
	Volume   int    `json:"volume"`
}

// SettingsUpdate changes the non-nil fields of Settings.
type SettingsUpdate struct {
	Language *string `json:"language,omitempty"`
	Volume   *int    `json:"volume,omitempty"`
}

// Ticket is the one-shot result of matchmaking.
type Ticket struct {
	AuthorizationToken string
	TargetAddress      string
	User               TicketUser
}

type TicketUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type PrizeType int

const (
	PrizeParticipation PrizeType = iota
	PrizeWinner
	PrizeSecond
	PrizeThird
)

type Prize struct {
	User string    `json:"user"`
	Type PrizeType `json:"type"`
}

var ErrDuplicatePrize = errors.New("types: a user cannot have multiple prizes")

// Results are the placements a host reports when ending a minigame.
// Empty placements are omitted; they are not promoted.
type Results struct {
	Winner       string
	Second       string
	Third        string
	Participants []string
}

// Prizes flattens r into the wire prize list.
func (r Results) Prizes() ([]Prize, error) {
	var prizes []Prize
	seen := map[string]bool{}
	add := func(user string, t PrizeType) error {
		if user == "" {
			return nil
		}
		if seen[user] {
			return fmt.Errorf("%w: %s", ErrDuplicatePrize, user)
		}
		seen[user] = true
		prizes = append(prizes, Prize{User: user, Type: t})
		return nil
	}
	for _, p := range []Prize{{r.Winner, PrizeWinner}, {r.Second, PrizeSecond}, {r.Third, PrizeThird}} {
		if err := add(p.User, p.Type); err != nil {
			return nil, err
		}
	}
	for _, user := range r.Participants {
		if err := add(user, PrizeParticipation); err != nil {
			return nil, err
		}
	}
	return prizes, nil
}
