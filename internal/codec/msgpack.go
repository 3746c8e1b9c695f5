package codec

import (
	"bytes"
	"fmt"

	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/vmihailenco/msgpack/v5"
)

// Binary is the Oppack codec: [opcode byte][MessagePack payload].
//
// Payload structs carry json tags only; the MessagePack encoder and
// decoder read the same tags, so a single tag set names fields for both
// encodings.
type Binary struct{}

func (Binary) Encoding() Encoding { return EncodingBinary }
func (Binary) Binary() bool       { return true }

func (Binary) EncodeClient(m types.ClientMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return encodeOppack(uint8(m.Opcode), m.Data)
}

func (Binary) EncodeServer(m types.ServerMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return encodeOppack(uint8(m.Opcode), m.Data)
}

func (Binary) DecodeServer(frame []byte) (types.ServerMessage, error) {
	if len(frame) < 1 {
		return types.ServerMessage{}, ErrShortFrame
	}
	op := types.ServerOpcode(frame[0])
	data, err := decodeServerPayload(op, oppackUnmarshaler(frame[1:]))
	if err != nil {
		return types.ServerMessage{}, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, op, err)
	}
	return types.ServerMessage{Opcode: op, Data: normalizeServer(data)}, nil
}

func (Binary) DecodeClient(frame []byte) (types.ClientMessage, error) {
	if len(frame) < 1 {
		return types.ClientMessage{}, ErrShortFrame
	}
	op := types.ClientOpcode(frame[0])
	data, err := decodeClientPayload(op, oppackUnmarshaler(frame[1:]))
	if err != nil {
		return types.ClientMessage{}, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, op, err)
	}
	return types.ClientMessage{Opcode: op, Data: normalizeClient(data)}, nil
}

func encodeOppack(op uint8, data any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(op)
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("codec: encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

func oppackUnmarshaler(body []byte) unmarshalFunc {
	return func(v any) error {
		r := bytes.NewReader(body)
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(v); err != nil {
			return err
		}
		if r.Len() != 0 {
			return fmt.Errorf("%d trailing bytes", r.Len())
		}
		return nil
	}
}
