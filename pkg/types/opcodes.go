package types

import "fmt"

// ClientOpcode identifies a client -> server message.
type ClientOpcode uint8

const (
	ClientPing ClientOpcode = iota
	ClientKickPlayer
	ClientTransferHost
	ClientSetRoomSettings
	ClientBeginGame
	ClientMinigameHandshake
	ClientMinigameEndGame
	ClientMinigameSetGameState
	ClientMinigameSetPlayerState
	ClientMinigameSendGameMessage
	ClientMinigameSendPlayerMessage
	ClientMinigameSendPrivateMessage
	ClientMinigameSendBinaryGameMessage
	ClientMinigameSendBinaryPlayerMessage
	ClientMinigameSendBinaryPrivateMessage
)

var clientOpcodeNames = [...]string{
	ClientPing:                             "Ping",
	ClientKickPlayer:                       "KickPlayer",
	ClientTransferHost:                     "TransferHost",
	ClientSetRoomSettings:                  "SetRoomSettings",
	ClientBeginGame:                        "BeginGame",
	ClientMinigameHandshake:                "MinigameHandshake",
	ClientMinigameEndGame:                  "MinigameEndGame",
	ClientMinigameSetGameState:             "MinigameSetGameState",
	ClientMinigameSetPlayerState:           "MinigameSetPlayerState",
	ClientMinigameSendGameMessage:          "MinigameSendGameMessage",
	ClientMinigameSendPlayerMessage:        "MinigameSendPlayerMessage",
	ClientMinigameSendPrivateMessage:       "MinigameSendPrivateMessage",
	ClientMinigameSendBinaryGameMessage:    "MinigameSendBinaryGameMessage",
	ClientMinigameSendBinaryPlayerMessage:  "MinigameSendBinaryPlayerMessage",
	ClientMinigameSendBinaryPrivateMessage: "MinigameSendBinaryPrivateMessage",
}

func (o ClientOpcode) Known() bool { return int(o) < len(clientOpcodeNames) }

func (o ClientOpcode) String() string {
	if o.Known() {
		return clientOpcodeNames[o]
	}
	return fmt.Sprintf("ClientOpcode(%d)", uint8(o))
}

// ServerOpcode identifies a server -> client message.
type ServerOpcode uint8

// OutOfRange opcodes tag textual frames whose opcode does not fit one
// byte. The frame's Unknown payload holds the real value.
const (
	ClientOpcodeOutOfRange ClientOpcode = 0xff
	ServerOpcodeOutOfRange ServerOpcode = 0xff
)

const (
	ServerGetInformation ServerOpcode = iota
	ServerPlayerJoin
	ServerPlayerLeft
	ServerTransferHost
	ServerUpdatedRoomSettings
	ServerLoadMinigame
	ServerEndMinigame
	ServerMinigamePlayerReady
	ServerMinigameStartGame
	ServerMinigameSetGameState
	ServerMinigameSetPlayerState
	ServerMinigameSendGameMessage
	ServerMinigameSendPlayerMessage
	ServerMinigameSendPrivateMessage
	ServerMinigameSendBinaryGameMessage
	ServerMinigameSendBinaryPlayerMessage
	ServerMinigameSendBinaryPrivateMessage
	ServerError
)

var serverOpcodeNames = [...]string{
	ServerGetInformation:                   "GetInformation",
	ServerPlayerJoin:                       "PlayerJoin",
	ServerPlayerLeft:                       "PlayerLeft",
	ServerTransferHost:                     "TransferHost",
	ServerUpdatedRoomSettings:              "UpdatedRoomSettings",
	ServerLoadMinigame:                     "LoadMinigame",
	ServerEndMinigame:                      "EndMinigame",
	ServerMinigamePlayerReady:              "MinigamePlayerReady",
	ServerMinigameStartGame:                "MinigameStartGame",
	ServerMinigameSetGameState:             "MinigameSetGameState",
	ServerMinigameSetPlayerState:           "MinigameSetPlayerState",
	ServerMinigameSendGameMessage:          "MinigameSendGameMessage",
	ServerMinigameSendPlayerMessage:        "MinigameSendPlayerMessage",
	ServerMinigameSendPrivateMessage:       "MinigameSendPrivateMessage",
	ServerMinigameSendBinaryGameMessage:    "MinigameSendBinaryGameMessage",
	ServerMinigameSendBinaryPlayerMessage:  "MinigameSendBinaryPlayerMessage",
	ServerMinigameSendBinaryPrivateMessage: "MinigameSendBinaryPrivateMessage",
	ServerError:                            "Error",
}

func (o ServerOpcode) Known() bool { return int(o) < len(serverOpcodeNames) }

func (o ServerOpcode) String() string {
	if o.Known() {
		return serverOpcodeNames[o]
	}
	return fmt.Sprintf("ServerOpcode(%d)", uint8(o))
}

// ServerOpcodes lists every server opcode this client understands.
func ServerOpcodes() []ServerOpcode {
	ops := make([]ServerOpcode, len(serverOpcodeNames))
	for i := range ops {
		ops[i] = ServerOpcode(i)
	}
	return ops
}

// ClientOpcodes lists every client opcode.
func ClientOpcodes() []ClientOpcode {
	ops := make([]ClientOpcode, len(clientOpcodeNames))
	for i := range ops {
		ops[i] = ClientOpcode(i)
	}
	return ops
}
