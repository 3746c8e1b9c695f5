// Package codec translates typed room protocol messages to and from
// websocket frames. Two encodings exist and one is chosen per
// connection: the compact binary "Oppack" encoding (one opcode byte
// followed by a MessagePack payload) and the textual "Json" encoding
// ({"opcode": n, "data": ...}, raw bytes rendered as lowercase hex).
//
// Both directions are implemented for both encodings. A client encodes
// ClientMessages and decodes ServerMessages; the test room server does
// the reverse. Decoders never assume the opcode set is closed: a frame
// with an unknown opcode decodes to types.Unknown.
package codec

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/minigame-sdk/pkg/types"
)

// Encoding names a wire encoding. The value is also the websocket
// subprotocol used to request it.
type Encoding string

const (
	EncodingBinary Encoding = "Oppack"
	EncodingJSON   Encoding = "Json"
)

var (
	ErrUnknownEncoding = errors.New("codec: unknown encoding")
	ErrShortFrame      = errors.New("codec: frame too short")
	ErrMalformedFrame  = errors.New("codec: malformed frame")
)

// Codec encodes and decodes frames for one Encoding.
type Codec interface {
	Encoding() Encoding
	// Binary reports whether frames travel as websocket binary messages.
	Binary() bool

	EncodeClient(types.ClientMessage) ([]byte, error)
	DecodeClient([]byte) (types.ClientMessage, error)
	EncodeServer(types.ServerMessage) ([]byte, error)
	DecodeServer([]byte) (types.ServerMessage, error)
}

// ParseEncoding accepts the subprotocol spelling of an encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingBinary, EncodingJSON:
		return Encoding(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

// For returns the codec for e.
func For(e Encoding) (Codec, error) {
	switch e {
	case EncodingBinary:
		return Binary{}, nil
	case EncodingJSON:
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, string(e))
	}
}
