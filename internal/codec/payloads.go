package codec

import (
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
)

type unmarshalFunc func(v any) error

func decodeAs[T any](unmarshal unmarshalFunc) (any, error) {
	var v T
	if err := unmarshal(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeUnknown(op int, unmarshal unmarshalFunc) (any, error) {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return nil, err
	}
	return types.Unknown{Opcode: op, Data: types.NormalizeState(raw)}, nil
}

func decodeServerPayload(op types.ServerOpcode, unmarshal unmarshalFunc) (any, error) {
	switch op {
	case types.ServerGetInformation:
		return decodeAs[types.Information](unmarshal)
	case types.ServerPlayerJoin:
		return decodeAs[types.PlayerJoin](unmarshal)
	case types.ServerPlayerLeft, types.ServerTransferHost, types.ServerMinigamePlayerReady:
		return decodeAs[types.UserRef](unmarshal)
	case types.ServerUpdatedRoomSettings:
		return decodeAs[types.UpdatedRoomSettings](unmarshal)
	case types.ServerLoadMinigame, types.ServerEndMinigame:
		return decodeAs[types.PlayerList](unmarshal)
	case types.ServerMinigameStartGame:
		return decodeAs[types.Empty](unmarshal)
	case types.ServerMinigameSetGameState:
		return decodeAs[types.GameState](unmarshal)
	case types.ServerMinigameSetPlayerState:
		return decodeAs[types.PlayerState](unmarshal)
	case types.ServerMinigameSendGameMessage:
		return decodeAs[types.Message](unmarshal)
	case types.ServerMinigameSendPlayerMessage:
		return decodeAs[types.PlayerMessage](unmarshal)
	case types.ServerMinigameSendPrivateMessage:
		return decodeAs[types.DirectMessage](unmarshal)
	case types.ServerMinigameSendBinaryGameMessage:
		return decodeAs[[]byte](unmarshal)
	case types.ServerMinigameSendBinaryPlayerMessage:
		return decodeAs[types.BinaryPlayerMessage](unmarshal)
	case types.ServerMinigameSendBinaryPrivateMessage:
		return decodeAs[types.BinaryDirectMessage](unmarshal)
	case types.ServerError:
		return decodeAs[types.RemoteError](unmarshal)
	default:
		return decodeUnknown(int(op), unmarshal)
	}
}

func decodeClientPayload(op types.ClientOpcode, unmarshal unmarshalFunc) (any, error) {
	switch op {
	case types.ClientPing, types.ClientBeginGame:
		return decodeAs[types.Empty](unmarshal)
	case types.ClientKickPlayer, types.ClientTransferHost:
		return decodeAs[types.UserRef](unmarshal)
	case types.ClientSetRoomSettings:
		return decodeAs[types.RoomSettings](unmarshal)
	case types.ClientMinigameHandshake:
		return decodeAs[types.Handshake](unmarshal)
	case types.ClientMinigameEndGame:
		return decodeAs[types.EndGame](unmarshal)
	case types.ClientMinigameSetGameState:
		return decodeAs[types.GameState](unmarshal)
	case types.ClientMinigameSetPlayerState:
		return decodeAs[types.PlayerState](unmarshal)
	case types.ClientMinigameSendGameMessage, types.ClientMinigameSendPlayerMessage:
		return decodeAs[types.Message](unmarshal)
	case types.ClientMinigameSendPrivateMessage:
		return decodeAs[types.PrivateMessage](unmarshal)
	case types.ClientMinigameSendBinaryGameMessage, types.ClientMinigameSendBinaryPlayerMessage:
		return decodeAs[[]byte](unmarshal)
	case types.ClientMinigameSendBinaryPrivateMessage:
		return decodeAs[types.BinaryPrivateMessage](unmarshal)
	default:
		return decodeUnknown(int(op), unmarshal)
	}
}

// normalizeServer brings decoded State values into canonical form and
// turns nil byte sequences into empty ones, so both encodings agree.
func normalizeServer(data any) any {
	switch d := data.(type) {
	case types.Information:
		d.Room.State = types.NormalizeState(d.Room.State)
		d.Players = normalizePlayers(d.Players)
		return d
	case types.PlayerJoin:
		d.Player.State = types.NormalizeState(d.Player.State)
		return d
	case types.PlayerList:
		d.Players = normalizePlayers(d.Players)
		return d
	case types.GameState:
		d.State = types.NormalizeState(d.State)
		return d
	case types.PlayerState:
		d.State = types.NormalizeState(d.State)
		return d
	case types.Message:
		d.Message = types.NormalizeState(d.Message)
		return d
	case types.PlayerMessage:
		d.Message = types.NormalizeState(d.Message)
		return d
	case types.DirectMessage:
		d.Message = types.NormalizeState(d.Message)
		return d
	case []byte:
		return nonNil(d)
	case types.BinaryPlayerMessage:
		d.Message = nonNil(d.Message)
		return d
	case types.BinaryDirectMessage:
		d.Message = nonNil(d.Message)
		return d
	}
	return data
}

func normalizeClient(data any) any {
	switch d := data.(type) {
	case types.GameState:
		d.State = types.NormalizeState(d.State)
		return d
	case types.PlayerState:
		d.State = types.NormalizeState(d.State)
		return d
	case types.Message:
		d.Message = types.NormalizeState(d.Message)
		return d
	case types.PrivateMessage:
		d.Message = types.NormalizeState(d.Message)
		return d
	case []byte:
		return nonNil(d)
	case types.BinaryPrivateMessage:
		d.Message = nonNil(d.Message)
		return d
	}
	return data
}

func normalizePlayers(players []types.GamePlayer) []types.GamePlayer {
	for i := range players {
		players[i].State = types.NormalizeState(players[i].State)
	}
	return players
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
