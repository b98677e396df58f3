package ws

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Message is a decoded envelope. Payload stays in the codec's wire form
// until the receiver knows which type to decode it into.
type Message struct {
	Type    uint8
	Tick    uint32
	Payload []byte
}

// Codec frames envelopes for one connection.
type Codec interface {
	Name() string
	FrameType() websocket.MessageType
	Encode(typ uint8, tick uint32, payload any) ([]byte, error)
	Decode(data []byte) (Message, error)
	Unmarshal(payload []byte, v any) error
}

// CodecByName picks the codec requested by a client, JSON by default.
func CodecByName(name string) Codec {
	if name == CodecMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

type envelope struct {
	Type    uint8  `json:"type"`
	Tick    uint32 `json:"tick"`
	Payload any    `json:"payload"`
}

// JSONCodec sends text frames.
type JSONCodec struct{}

func (JSONCodec) Name() string                     { return CodecJSON }
func (JSONCodec) FrameType() websocket.MessageType { return websocket.MessageText }

func (JSONCodec) Encode(typ uint8, tick uint32, payload any) ([]byte, error) {
	return json.Marshal(envelope{Type: typ, Tick: tick, Payload: payload})
}

func (JSONCodec) Decode(data []byte) (Message, error) {
	var env struct {
		Type    uint8           `json:"type"`
		Tick    uint32          `json:"tick"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("json envelope: %w", err)
	}
	return Message{Type: env.Type, Tick: env.Tick, Payload: env.Payload}, nil
}

func (JSONCodec) Unmarshal(payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("json payload: empty")
	}
	return json.Unmarshal(payload, v)
}

// MsgpackCodec sends binary frames. Field names follow the json tags so
// both codecs share one schema.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string                     { return CodecMsgpack }
func (MsgpackCodec) FrameType() websocket.MessageType { return websocket.MessageBinary }

func (MsgpackCodec) Encode(typ uint8, tick uint32, payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(envelope{Type: typ, Tick: tick, Payload: payload}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Decode(data []byte) (Message, error) {
	var env struct {
		Type    uint8              `json:"type"`
		Tick    uint32             `json:"tick"`
		Payload msgpack.RawMessage `json:"payload"`
	}
	if err := newMsgpackDecoder(data).Decode(&env); err != nil {
		return Message{}, fmt.Errorf("msgpack envelope: %w", err)
	}
	return Message{Type: env.Type, Tick: env.Tick, Payload: env.Payload}, nil
}

func (MsgpackCodec) Unmarshal(payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("msgpack payload: empty")
	}
	return newMsgpackDecoder(payload).Decode(v)
}

func newMsgpackDecoder(data []byte) *msgpack.Decoder {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec
}
