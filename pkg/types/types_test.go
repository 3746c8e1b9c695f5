package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMessageValidate(t *testing.T) {
	cases := []struct {
		name    string
		msg     ClientMessage
		wantErr error
	}{
		{"ping", ClientMessage{ClientPing, Empty{}}, nil},
		{"binary game message", ClientMessage{ClientMinigameSendBinaryGameMessage, []byte{1}}, nil},
		{"wrong payload", ClientMessage{ClientMinigameSetGameState, Message{}}, ErrPayloadMismatch},
		{"unknown opcode", ClientMessage{ClientOpcode(200), Empty{}}, ErrUnknownOpcode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestServerMessageValidate(t *testing.T) {
	require.NoError(t, ServerMessage{ServerMinigameStartGame, Empty{}}.Validate())
	require.ErrorIs(t, ServerMessage{ServerPlayerJoin, UserRef{}}.Validate(), ErrPayloadMismatch)
	require.ErrorIs(t, ServerMessage{ServerOpcode(99), nil}.Validate(), ErrUnknownOpcode)
}

func TestOpcodeStrings(t *testing.T) {
	assert.Equal(t, "MinigameHandshake", ClientMinigameHandshake.String())
	assert.Equal(t, "Error", ServerError.String())
	assert.Equal(t, "ServerOpcode(42)", ServerOpcode(42).String())
	assert.Len(t, ServerOpcodes(), 18)
	assert.Len(t, ClientOpcodes(), 15)
}

func TestNormalizeState(t *testing.T) {
	in := map[any]any{
		"n":    int8(3),
		"list": []any{uint16(7), "x", nil, true},
		"nested": map[string]any{
			"f": float32(1.5),
		},
	}
	want := map[string]any{
		"n":    float64(3),
		"list": []any{float64(7), "x", nil, true},
		"nested": map[string]any{
			"f": float64(1.5),
		},
	}
	assert.Equal(t, want, NormalizeState(in))
}

func TestCloneStateDoesNotShare(t *testing.T) {
	orig := map[string]any{"list": []any{1.0}}
	cp := CloneState(orig).(map[string]any)
	cp["list"].([]any)[0] = 2.0
	assert.Equal(t, 1.0, orig["list"].([]any)[0])
}

func TestExceedsStateSize(t *testing.T) {
	assert.False(t, ExceedsStateSize("small"))
	big := make([]byte, MaxStateSize+1)
	for i := range big {
		big[i] = 'a'
	}
	assert.True(t, ExceedsStateSize(string(big)))
	assert.True(t, ExceedsStateSize(map[string]any{"k": string(big)}))
}

func TestResultsPrizes(t *testing.T) {
	prizes, err := Results{Winner: "a", Third: "c", Participants: []string{"d"}}.Prizes()
	require.NoError(t, err)
	assert.Equal(t, []Prize{
		{User: "a", Type: PrizeWinner},
		{User: "c", Type: PrizeThird},
		{User: "d", Type: PrizeParticipation},
	}, prizes)

	_, err = Results{Winner: "a", Participants: []string{"a"}}.Prizes()
	require.ErrorIs(t, err, ErrDuplicatePrize)
}

func TestErrorCodeText(t *testing.T) {
	assert.Equal(t, "Only the host can run this action!", CodeWSNotHost.Text())
	assert.Equal(t, "mystery", ErrorCode("mystery").Text())
	assert.Equal(t, "custom", RemoteError{Code: CodeWSNotHost, Message: "custom"}.Text())
	assert.Equal(t, CodeWSNotHost.Text(), RemoteError{Code: CodeWSNotHost}.Text())
}
