package types

import (
	"errors"
	"fmt"
)

var ErrUnknownOpcode = errors.New("types: unknown opcode")
var ErrPayloadMismatch = errors.New("types: payload does not match opcode")

// ClientMessage is one client -> server frame. Data must be the payload
// type bound to Opcode:
//
//	Ping, BeginGame                      Empty
//	KickPlayer, TransferHost             UserRef
//	SetRoomSettings                      RoomSettings
//	MinigameHandshake                    Handshake
//	MinigameEndGame                      EndGame
//	MinigameSetGameState                 GameState
//	MinigameSetPlayerState               PlayerState
//	MinigameSendGameMessage              Message
//	MinigameSendPlayerMessage            Message
//	MinigameSendPrivateMessage           PrivateMessage
//	MinigameSendBinaryGameMessage        []byte
//	MinigameSendBinaryPlayerMessage      []byte
//	MinigameSendBinaryPrivateMessage     BinaryPrivateMessage
type ClientMessage struct {
	Opcode ClientOpcode
	Data   any
}

// ServerMessage is one server -> client frame. Data must be the payload
// type bound to Opcode:
//
//	GetInformation                       Information
//	PlayerJoin                           PlayerJoin
//	PlayerLeft, TransferHost             UserRef
//	MinigamePlayerReady                  UserRef
//	UpdatedRoomSettings                  UpdatedRoomSettings
//	LoadMinigame, EndMinigame            PlayerList
//	MinigameStartGame                    Empty
//	MinigameSetGameState                 GameState
//	MinigameSetPlayerState               PlayerState
//	MinigameSendGameMessage              Message
//	MinigameSendPlayerMessage            PlayerMessage
//	MinigameSendPrivateMessage           DirectMessage
//	MinigameSendBinaryGameMessage        []byte
//	MinigameSendBinaryPlayerMessage      BinaryPlayerMessage
//	MinigameSendBinaryPrivateMessage     BinaryDirectMessage
//	Error                                RemoteError
//
// Frames with an opcode this client does not know decode to Unknown.
type ServerMessage struct {
	Opcode ServerOpcode
	Data   any
}

type Empty struct{}

type UserRef struct {
	User string `json:"user"`
}

type RoomSettings struct {
	PackID     string `json:"packId"`
	MinigameID string `json:"minigameId"`
}

type Handshake struct {
	RoomHandshakeCount *int `json:"roomHandshakeCount,omitempty"`
}

type EndGame struct {
	Prizes []Prize `json:"prizes,omitempty"`
}

type GameState struct {
	State State `json:"state"`
}

type PlayerState struct {
	User  string `json:"user"`
	State State  `json:"state"`
}

type Message struct {
	Message State `json:"message"`
}

// PrivateMessage is addressed to User, or to the host when User is empty.
type PrivateMessage struct {
	User    string `json:"user,omitempty"`
	Message State  `json:"message"`
}

type BinaryPrivateMessage struct {
	User    string `json:"user,omitempty"`
	Message []byte `json:"message"`
}

// Information is the room snapshot sent once after connecting.
type Information struct {
	User     string       `json:"user"`
	Room     RoomInfo     `json:"room"`
	Status   Status       `json:"status"`
	Players  []GamePlayer `json:"players"`
	Minigame *Minigame    `json:"minigame,omitempty"`
	Pack     *Pack        `json:"pack,omitempty"`
}

type RoomInfo struct {
	Host  string `json:"host"`
	State State  `json:"state"`
}

type PlayerJoin struct {
	Player GamePlayer `json:"player"`
}

type UpdatedRoomSettings struct {
	Pack     *Pack     `json:"pack,omitempty"`
	Minigame *Minigame `json:"minigame,omitempty"`
}

type PlayerList struct {
	Players []GamePlayer `json:"players"`
}

type PlayerMessage struct {
	User    string `json:"user"`
	Message State  `json:"message"`
}

type DirectMessage struct {
	FromUser string `json:"fromUser"`
	ToUser   string `json:"toUser"`
	Message  State  `json:"message"`
}

type BinaryPlayerMessage struct {
	User    string `json:"user"`
	Message []byte `json:"message"`
}

type BinaryDirectMessage struct {
	FromUser string `json:"fromUser"`
	ToUser   string `json:"toUser"`
	Message  []byte `json:"message"`
}

type RemoteError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

// Text returns the server-supplied message, or the lookup text for Code.
func (e RemoteError) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Text()
}

// Unknown carries the payload of an opcode this client does not know.
// Opcode is the value as it appeared on the wire.
type Unknown struct {
	Opcode int
	Data   any
}

func (m ClientMessage) Validate() error {
	var ok bool
	switch m.Opcode {
	case ClientPing, ClientBeginGame:
		_, ok = m.Data.(Empty)
	case ClientKickPlayer, ClientTransferHost:
		_, ok = m.Data.(UserRef)
	case ClientSetRoomSettings:
		_, ok = m.Data.(RoomSettings)
	case ClientMinigameHandshake:
		_, ok = m.Data.(Handshake)
	case ClientMinigameEndGame:
		_, ok = m.Data.(EndGame)
	case ClientMinigameSetGameState:
		_, ok = m.Data.(GameState)
	case ClientMinigameSetPlayerState:
		_, ok = m.Data.(PlayerState)
	case ClientMinigameSendGameMessage, ClientMinigameSendPlayerMessage:
		_, ok = m.Data.(Message)
	case ClientMinigameSendPrivateMessage:
		_, ok = m.Data.(PrivateMessage)
	case ClientMinigameSendBinaryGameMessage, ClientMinigameSendBinaryPlayerMessage:
		_, ok = m.Data.([]byte)
	case ClientMinigameSendBinaryPrivateMessage:
		_, ok = m.Data.(BinaryPrivateMessage)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOpcode, m.Opcode)
	}
	if !ok {
		return fmt.Errorf("%w: %s carries %T", ErrPayloadMismatch, m.Opcode, m.Data)
	}
	return nil
}

func (m ServerMessage) Validate() error {
	var ok bool
	switch m.Opcode {
	case ServerGetInformation:
		_, ok = m.Data.(Information)
	case ServerPlayerJoin:
		_, ok = m.Data.(PlayerJoin)
	case ServerPlayerLeft, ServerTransferHost, ServerMinigamePlayerReady:
		_, ok = m.Data.(UserRef)
	case ServerUpdatedRoomSettings:
		_, ok = m.Data.(UpdatedRoomSettings)
	case ServerLoadMinigame, ServerEndMinigame:
		_, ok = m.Data.(PlayerList)
	case ServerMinigameStartGame:
		_, ok = m.Data.(Empty)
	case ServerMinigameSetGameState:
		_, ok = m.Data.(GameState)
	case ServerMinigameSetPlayerState:
		_, ok = m.Data.(PlayerState)
	case ServerMinigameSendGameMessage:
		_, ok = m.Data.(Message)
	case ServerMinigameSendPlayerMessage:
		_, ok = m.Data.(PlayerMessage)
	case ServerMinigameSendPrivateMessage:
		_, ok = m.Data.(DirectMessage)
	case ServerMinigameSendBinaryGameMessage:
		_, ok = m.Data.([]byte)
	case ServerMinigameSendBinaryPlayerMessage:
		_, ok = m.Data.(BinaryPlayerMessage)
	case ServerMinigameSendBinaryPrivateMessage:
		_, ok = m.Data.(BinaryDirectMessage)
	case ServerError:
		_, ok = m.Data.(RemoteError)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOpcode, m.Opcode)
	}
	if !ok {
		return fmt.Errorf("%w: %s carries %T", ErrPayloadMismatch, m.Opcode, m.Data)
	}
	return nil
}
