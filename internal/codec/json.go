package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/DoyleJ11/minigame-sdk/pkg/types"
)

// JSON is the textual codec: {"opcode": n, "data": payload}.
//
// JSON cannot carry raw bytes, so the opcodes that carry byte sequences
// render them as lowercase hex, two digits per byte. The set of such
// opcodes is fixed per direction; every other payload passes through.
type JSON struct{}

func (JSON) Encoding() Encoding { return EncodingJSON }
func (JSON) Binary() bool       { return false }

type frame struct {
	Opcode uint8 `json:"opcode"`
	Data   any   `json:"data"`
}

type rawFrame struct {
	Opcode *int64          `json:"opcode"`
	Data   json.RawMessage `json:"data"`
}

type hexPrivateMessage struct {
	User    string `json:"user,omitempty"`
	Message string `json:"message"`
}

type hexPlayerMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

type hexDirectMessage struct {
	FromUser string `json:"fromUser"`
	ToUser   string `json:"toUser"`
	Message  string `json:"message"`
}

func (JSON) EncodeClient(m types.ClientMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data := m.Data
	switch m.Opcode {
	case types.ClientMinigameSendBinaryGameMessage, types.ClientMinigameSendBinaryPlayerMessage:
		data = hex.EncodeToString(m.Data.([]byte))
	case types.ClientMinigameSendBinaryPrivateMessage:
		p := m.Data.(types.BinaryPrivateMessage)
		data = hexPrivateMessage{User: p.User, Message: hex.EncodeToString(p.Message)}
	}
	return marshalFrame(uint8(m.Opcode), data)
}

func (JSON) EncodeServer(m types.ServerMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data := m.Data
	switch m.Opcode {
	case types.ServerMinigameSendBinaryGameMessage:
		data = hex.EncodeToString(m.Data.([]byte))
	case types.ServerMinigameSendBinaryPlayerMessage:
		p := m.Data.(types.BinaryPlayerMessage)
		data = hexPlayerMessage{User: p.User, Message: hex.EncodeToString(p.Message)}
	case types.ServerMinigameSendBinaryPrivateMessage:
		p := m.Data.(types.BinaryDirectMessage)
		data = hexDirectMessage{FromUser: p.FromUser, ToUser: p.ToUser, Message: hex.EncodeToString(p.Message)}
	}
	return marshalFrame(uint8(m.Opcode), data)
}

func (JSON) DecodeServer(b []byte) (types.ServerMessage, error) {
	op, unmarshal, err := unmarshalFrame(b)
	if err != nil {
		return types.ServerMessage{}, err
	}
	if !fitsByte(op) {
		data, err := decodeUnknown(int(op), unmarshal)
		if err != nil {
			return types.ServerMessage{}, fmt.Errorf("%w: opcode %d: %v", ErrMalformedFrame, op, err)
		}
		return types.ServerMessage{Opcode: types.ServerOpcodeOutOfRange, Data: data}, nil
	}
	sop := types.ServerOpcode(op)

	var data any
	switch sop {
	case types.ServerMinigameSendBinaryGameMessage:
		data, err = decodeHexString(unmarshal)
	case types.ServerMinigameSendBinaryPlayerMessage:
		var p hexPlayerMessage
		if err = unmarshal(&p); err == nil {
			var msg []byte
			msg, err = hex.DecodeString(p.Message)
			data = types.BinaryPlayerMessage{User: p.User, Message: msg}
		}
	case types.ServerMinigameSendBinaryPrivateMessage:
		var p hexDirectMessage
		if err = unmarshal(&p); err == nil {
			var msg []byte
			msg, err = hex.DecodeString(p.Message)
			data = types.BinaryDirectMessage{FromUser: p.FromUser, ToUser: p.ToUser, Message: msg}
		}
	default:
		data, err = decodeServerPayload(sop, unmarshal)
	}
	if err != nil {
		return types.ServerMessage{}, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, sop, err)
	}
	return types.ServerMessage{Opcode: sop, Data: normalizeServer(data)}, nil
}

func (JSON) DecodeClient(b []byte) (types.ClientMessage, error) {
	op, unmarshal, err := unmarshalFrame(b)
	if err != nil {
		return types.ClientMessage{}, err
	}
	if !fitsByte(op) {
		data, err := decodeUnknown(int(op), unmarshal)
		if err != nil {
			return types.ClientMessage{}, fmt.Errorf("%w: opcode %d: %v", ErrMalformedFrame, op, err)
		}
		return types.ClientMessage{Opcode: types.ClientOpcodeOutOfRange, Data: data}, nil
	}
	cop := types.ClientOpcode(op)

	var data any
	switch cop {
	case types.ClientMinigameSendBinaryGameMessage, types.ClientMinigameSendBinaryPlayerMessage:
		data, err = decodeHexString(unmarshal)
	case types.ClientMinigameSendBinaryPrivateMessage:
		var p hexPrivateMessage
		if err = unmarshal(&p); err == nil {
			var msg []byte
			msg, err = hex.DecodeString(p.Message)
			data = types.BinaryPrivateMessage{User: p.User, Message: msg}
		}
	default:
		data, err = decodeClientPayload(cop, unmarshal)
	}
	if err != nil {
		return types.ClientMessage{}, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, cop, err)
	}
	return types.ClientMessage{Opcode: cop, Data: normalizeClient(data)}, nil
}

func marshalFrame(op uint8, data any) ([]byte, error) {
	b, err := json.Marshal(frame{Opcode: op, Data: data})
	if err != nil {
		return nil, fmt.Errorf("codec: encode payload: %w", err)
	}
	return b, nil
}

func fitsByte(op int64) bool { return op >= 0 && op <= math.MaxUint8 }

func unmarshalFrame(b []byte) (int64, unmarshalFunc, error) {
	var f rawFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Opcode == nil {
		return 0, nil, fmt.Errorf("%w: missing opcode", ErrMalformedFrame)
	}
	data := f.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return *f.Opcode, func(v any) error { return json.Unmarshal(data, v) }, nil
}

func decodeHexString(unmarshal unmarshalFunc) (any, error) {
	var s string
	if err := unmarshal(&s); err != nil {
		return nil, err
	}
	return hex.DecodeString(s)
}
