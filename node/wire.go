package node

import (
	"bytes"
	"encoding/gob"

	"github.com/nodecrew/actorkit"
)

// wireMessage is what actually travels inside a frame.User payload: either
// a user message (gob-encoded separately, so its concrete type only needs
// registering with encoding/gob on both ends, not this envelope) or an
// exit signal carried across the link for a cross-node link/monitor.
// Spec's remote section only names the User frame as an opaque byte
// carrier; this envelope is the supplemented detail needed to make Pids
// transparently remote without the rest of actorkit knowing about nodes.
type wireMessage struct {
	Exit    bool
	From    actorkit.Pid
	Reason  string
	Payload []byte
}

func encodeUser(from actorkit.Pid, payload any) ([]byte, error) {
	var payloadBuf bytes.Buffer
	if err := gob.NewEncoder(&payloadBuf).Encode(&payload); err != nil {
		return nil, err
	}
	return encodeWire(wireMessage{From: from, Payload: payloadBuf.Bytes()})
}

func encodeExit(from actorkit.Pid, reason actorkit.ExitReason) ([]byte, error) {
	return encodeWire(wireMessage{Exit: true, From: from, Reason: reason.String()})
}

func encodeWire(msg wireMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeWire(data []byte) (wireMessage, error) {
	var msg wireMessage
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg)
	return msg, err
}

func decodeUserPayload(data []byte) (any, error) {
	var payload any
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload)
	return payload, err
}

// RegisterPayload makes value's concrete type valid for a cross-node user
// message. Call it once at startup for every type an application sends
// across a node boundary, the same way any encoding/gob user must
// register concrete types behind an interface.
func RegisterPayload(value any) {
	gob.Register(value)
}
