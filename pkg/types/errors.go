package types

// ErrorCode is a server error code, carried by the Error opcode, by
// matchmaking rejections and by websocket close reasons.
type ErrorCode string

const (
	CodeNotFound                     ErrorCode = "not_found"
	CodeUnexpectedError              ErrorCode = "unexpected_error"
	CodeInvalidAuthorization         ErrorCode = "invalid_authorization"
	CodeRateLimited                  ErrorCode = "rate_limited"
	CodeInternalError                ErrorCode = "internal_error"
	CodeFailedCaptcha                ErrorCode = "failed_captcha"
	CodeFailedToFetch                ErrorCode = "failed_to_fetch"
	CodeInvalidContentType           ErrorCode = "invalid_content_type"
	CodeCannotFindMinigameForPack    ErrorCode = "cannot_find_minigame_for_pack"
	CodeMinigameAlreadyInPack        ErrorCode = "minigame_already_in_pack"
	CodeReachedPackMinigameLimit     ErrorCode = "reached_pack_minigame_limit"
	CodeReachedMinigameLimit         ErrorCode = "reached_minigame_limit"
	CodeReachedPackLimit             ErrorCode = "reached_pack_limit"
	CodeMissingLocation              ErrorCode = "missing_location"
	CodeRoomNotFound                 ErrorCode = "room_not_found"
	CodeServersBusy                  ErrorCode = "servers_busy"
	CodeServerShutdown               ErrorCode = "server_shutdown"
	CodeNotImplemented               ErrorCode = "not_implemented"
	CodeAlreadyInGame                ErrorCode = "already_in_game"
	CodeReachedMaximumPlayerLimit    ErrorCode = "reached_maximum_player_limit"
	CodeKickedFromRoom               ErrorCode = "kicked_from_room"
	CodeTestingEnded                 ErrorCode = "testing_ended"
	CodeWSDisabledInTestingRoom      ErrorCode = "ws_disabled_in_testing_room"
	CodeWSNotHost                    ErrorCode = "ws_not_host"
	CodeWSDisabledDuringGame         ErrorCode = "ws_disabled_during_game"
	CodeWSCannotKickSelf             ErrorCode = "ws_cannot_kick_self"
	CodeWSCannotTransferSelf         ErrorCode = "ws_cannot_transfer_self"
	CodeWSCannotFindPack             ErrorCode = "ws_cannot_find_pack"
	CodeWSPackIsEmpty                ErrorCode = "ws_pack_is_empty"
	CodeWSCannotFindMinigame         ErrorCode = "ws_cannot_find_minigame"
	CodeWSMinigameMissingProxyURL    ErrorCode = "ws_minigame_missing_proxy_url"
	CodeWSCannotFindMinigameInPack   ErrorCode = "ws_cannot_find_minigame_in_pack"
	CodeWSCannotStartWithoutMinigame ErrorCode = "ws_cannot_start_without_minigame"
	CodeWSCannotStartFailedReqs      ErrorCode = "ws_cannot_start_failed_requirements"
	CodeWSGameHasNotStarted          ErrorCode = "ws_game_has_not_started"
	CodeWSIncorrectHandshakeCount    ErrorCode = "ws_incorrect_handshake_count"
	CodeWSCannotHandshakeIfReady     ErrorCode = "ws_cannot_handshake_if_ready"
	CodeWSNotReady                   ErrorCode = "ws_not_ready"
	CodeWSCannotFindReadyPlayer      ErrorCode = "ws_cannot_find_ready_player_to_send_message_to"
	CodeWSCannotHaveMultiplePrizes   ErrorCode = "ws_cannot_have_multiple_prizes"
	CodeWSNotHostPrivateMessage      ErrorCode = "ws_not_host_private_message"
)

var errorCodeText = map[ErrorCode]string{
	CodeNotFound:                     "Not found.",
	CodeUnexpectedError:              "An unexpected error has occurred.",
	CodeInvalidAuthorization:         "Invalid authorization!",
	CodeRateLimited:                  "You are currently being rate limited. Please try again in a bit.",
	CodeInternalError:                "An internal error has occurred.",
	CodeFailedCaptcha:                "Failed to validate captcha.",
	CodeFailedToFetch:                "Failed to fetch.",
	CodeInvalidContentType:           "Invalid Content-Type.",
	CodeCannotFindMinigameForPack:    "Failed to find the minigame to add to the pack.",
	CodeMinigameAlreadyInPack:        "The minigame is already in the pack.",
	CodeReachedPackMinigameLimit:     "You have reached the maximum amount of minigames a pack can have! (1000)",
	CodeReachedMinigameLimit:         "You have reached the minigames limit! (1000)",
	CodeReachedPackLimit:             "You have reached the packs limit! (1000)",
	CodeMissingLocation:              "Missing location.",
	CodeRoomNotFound:                 "The room could not be found.",
	CodeServersBusy:                  "The servers are currently busy! Please try again later.",
	CodeServerShutdown:               "The server has shutdown.",
	CodeNotImplemented:               "This has not been implemented.",
	CodeAlreadyInGame:                "A player with given ID is already in the game.",
	CodeReachedMaximumPlayerLimit:    "Reached maximum player limit in this room.",
	CodeKickedFromRoom:               "You've been kicked from the room!",
	CodeTestingEnded:                 "The minigame has ended on the testing server",
	CodeWSDisabledInTestingRoom:      "Cannot use disabled opcode in testing room.",
	CodeWSNotHost:                    "Only the host can run this action!",
	CodeWSDisabledDuringGame:         "Cannot run this action during a game.",
	CodeWSCannotKickSelf:             "Cannot kick yourself.",
	CodeWSCannotTransferSelf:         "Cannot transfer host to yourself.",
	CodeWSCannotFindPack:             "A pack with given ID doesn't exist!",
	CodeWSPackIsEmpty:                "The pack is empty! It doesn't contain any minigames.",
	CodeWSCannotFindMinigame:         "A minigame with given ID doesn't exist!",
	CodeWSMinigameMissingProxyURL:    "Cannot select a minigame missing a proxy URL",
	CodeWSCannotFindMinigameInPack:   "Cannot find minigame in pack.",
	CodeWSCannotStartWithoutMinigame: "Cannot start game without selecting a minigame.",
	CodeWSCannotStartFailedReqs:      "Cannot start game that fails to satisfy the minigame's minimum players to start requirement.",
	CodeWSGameHasNotStarted:          "Cannot run this action when a game is not ongoing.",
	CodeWSIncorrectHandshakeCount:    "Incorrect handshake count.",
	CodeWSCannotHandshakeIfReady:     "Cannot handshake if already ready.",
	CodeWSNotReady:                   "Cannot run this action if you are not ready.",
	CodeWSCannotFindReadyPlayer:      "Cannot find ready player with given id to run this action",
	CodeWSCannotHaveMultiplePrizes:   "A user cannot have multiple prizes.",
	CodeWSNotHostPrivateMessage:      "Only the host can send private messages to other players.",
}

// Text returns the human-readable text for c, or c itself when unknown.
func (c ErrorCode) Text() string {
	if t, ok := errorCodeText[c]; ok {
		return t
	}
	return string(c)
}

// APIErrorResponse is the JSON body of a rejected HTTP call and of a
// structured websocket close reason.
type APIErrorResponse struct {
	Code ErrorCode `json:"code"`
}
