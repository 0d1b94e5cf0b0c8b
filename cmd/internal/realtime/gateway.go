package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"loveludo/cmd/internal/credential"
)

const (
	wsSubprotocol = "loveludo.realtime.v1"

	wsDefaultSendQueue    = 16
	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsDefaultPingEvery    = 30 * time.Second
	wsDefaultPingTimeout  = 10 * time.Second
	wsMaxPingFailures     = 3
	wsMaxFrameBytes       = 4 << 10
)

// GatewayConfig tunes the websocket endpoint. Zero values take defaults.
type GatewayConfig struct {
	OriginPatterns []string
	SendQueueSize  int
	WriteTimeout   time.Duration
	ReadIdle       time.Duration
	PingEvery      time.Duration
	PingTimeout    time.Duration
}

// Gateway upgrades /ws requests, authenticates them with the session
// credential, and keeps the connection registered in the Hub so KickUser can
// reach it. Clients send nothing meaningful; the read loop exists to notice
// disconnects and enforce idle limits.
type Gateway struct {
	log      *slog.Logger
	hub      *Hub
	verifier *credential.Verifier
	cfg      GatewayConfig
}

// NewGateway constructs a Gateway. hub may be nil.
func NewGateway(log *slog.Logger, hub *Hub, verifier *credential.Verifier, cfg GatewayConfig) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if hub == nil {
		hub = NewHub(log)
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = wsDefaultSendQueue
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = wsDefaultWriteTimeout
	}
	if cfg.ReadIdle <= 0 {
		cfg.ReadIdle = wsDefaultReadIdle
	}
	if cfg.PingEvery <= 0 {
		cfg.PingEvery = wsDefaultPingEvery
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = wsDefaultPingTimeout
	}
	return &Gateway{log: log, hub: hub, verifier: verifier, cfg: cfg}
}

// Hub exposes the registry so other components can kick through it.
func (g *Gateway) Hub() *Hub { return g.hub }

// KickUser satisfies the device guard's kicker dependency.
func (g *Gateway) KickUser(userID, reason string, exceptSessionID string) {
	g.hub.KickUser(userID, reason, exceptSessionID)
}

// ServeHTTP adapter so the gateway mounts as an http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and runs the push loop until the peer leaves
// or the session is revoked.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	id, err := g.verifier.FromRequest(r, now)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: g.cfg.OriginPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	conn.SetReadLimit(wsMaxFrameBytes)

	client := NewClient(id.UserID.String(), id.SessionID, g.cfg.SendQueueSize)
	g.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	shutdown := func(code websocket.StatusCode, reason string) {
		g.hub.Unregister(client)
		client.Close()
		_ = conn.Close(code, reason)
		cancel()
	}

	ackPayload, _ := json.Marshal(HelloAckPayload{SessionID: id.SessionID})
	ack := newEnvelope(TypeHelloAck, ackPayload, now)
	select {
	case client.Send <- ack:
	default:
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case env := <-client.Send:
				if err := g.write(ctx, conn, env); err != nil {
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			case <-client.Done():
				// Flush the revocation frame that triggered the close, if
				// one is queued.
				for {
					select {
					case env := <-client.Send:
						if g.write(ctx, conn, env) != nil {
							shutdown(websocket.StatusAbnormalClosure, "write failed")
							return
						}
					default:
						shutdown(websocket.StatusGoingAway, "session revoked")
						return
					}
				}
			}
		}
	}()

	go func() {
		t := time.NewTicker(g.cfg.PingEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, g.cfg.PingTimeout)
				err := conn.Ping(pingCtx)
				pingCancel()
				if err != nil {
					failures++
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	g.log.Info("ws.connected", "user_id", client.UserID, "session_id", client.SessionID)

	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdle)
		_, _, err := conn.Read(readCtx)
		readCancel()
		if err != nil {
			switch {
			case websocket.CloseStatus(err) != -1:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				shutdown(websocket.StatusNormalClosure, "idle")
			case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break
		}
		// Inbound frames are ignored; this channel is push-only.
	}

	<-writerDone
	g.log.Info("ws.disconnected", "user_id", client.UserID, "session_id", client.SessionID)
}

func (g *Gateway) write(parent context.Context, conn *websocket.Conn, env Envelope) error {
	ctx, cancel := context.WithTimeout(parent, g.cfg.WriteTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}
