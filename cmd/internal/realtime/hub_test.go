package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func revokedReason(t *testing.T, env Envelope) string {
	t.Helper()
	if env.Type != TypeSessionRevoked {
		t.Fatalf("type = %q, want %q", env.Type, TypeSessionRevoked)
	}
	var p SessionRevokedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return p.Reason
}

func TestKickUser_SparesTriggeringSession(t *testing.T) {
	hub := NewHub(nil)

	old := NewClient("u1", "sess-old", 4)
	fresh := NewClient("u1", "sess-new", 4)
	other := NewClient("u2", "sess-other", 4)
	hub.Register(old)
	hub.Register(fresh)
	hub.Register(other)

	hub.KickUser("u1", "new_login", "sess-new")

	select {
	case env := <-old.Send:
		if got := revokedReason(t, env); got != "new_login" {
			t.Fatalf("reason = %q", got)
		}
	default:
		t.Fatalf("old session did not receive a revocation")
	}
	select {
	case <-old.Done():
	default:
		t.Fatalf("old session not closed")
	}

	select {
	case env := <-fresh.Send:
		t.Fatalf("fresh session received %q", env.Type)
	default:
	}
	select {
	case <-fresh.Done():
		t.Fatalf("fresh session was closed")
	default:
	}

	select {
	case env := <-other.Send:
		t.Fatalf("other user received %q", env.Type)
	default:
	}
}

func TestKickUser_AllSessionsWhenNoException(t *testing.T) {
	hub := NewHub(nil)

	a := NewClient("u1", "sess-a", 4)
	b := NewClient("u1", "sess-b", 4)
	hub.Register(a)
	hub.Register(b)

	hub.KickUser("u1", "admin_action", "")

	for _, c := range []*Client{a, b} {
		select {
		case env := <-c.Send:
			revokedReason(t, env)
		default:
			t.Fatalf("session %s did not receive a revocation", c.SessionID)
		}
		select {
		case <-c.Done():
		default:
			t.Fatalf("session %s not closed", c.SessionID)
		}
	}
}

func TestKickUser_FullQueueDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)

	c := NewClient("u1", "sess-a", 1)
	c.Send <- newEnvelope(TypeHelloAck, nil, time.Now().UTC())
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		hub.KickUser("u1", "new_login", "")
		close(done)
	}()
	<-done

	select {
	case <-c.Done():
	default:
		t.Fatalf("client not closed despite full queue")
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	c := NewClient("u1", "sess-a", 4)

	hub.Register(c)
	if got := hub.Clients("u1"); got != 1 {
		t.Fatalf("clients = %d, want 1", got)
	}
	hub.Unregister(c)
	hub.Unregister(c)
	if got := hub.Clients("u1"); got != 0 {
		t.Fatalf("clients = %d, want 0", got)
	}

	// Kicking with nobody registered is a no-op.
	hub.KickUser("u1", "new_login", "")
}
