// Package realtime is the websocket push channel for forced logout. Clients
// connect with their session credential; the server pushes a revocation
// envelope when another login supersedes them, closing the window the
// polling guards would otherwise leave open.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Version is the wire protocol version.
const Version = 1

// Envelope types.
const (
	TypeHelloAck       = "hello.ack"
	TypeSessionRevoked = "session.revoked"
)

// Envelope is the single wire frame. Payload shape depends on Type.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloAckPayload confirms the connection and echoes the session.
type HelloAckPayload struct {
	SessionID string `json:"sessionId"`
}

// SessionRevokedPayload tells the client its session lost to a newer login.
type SessionRevokedPayload struct {
	Reason string `json:"reason"`
}

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) Envelope {
	return Envelope{
		V:       Version,
		Type:    typ,
		ID:      ulid.Make().String(),
		TS:      ts,
		Payload: payload,
	}
}
