// Package ws is the broadcast router: it classifies handshakes, pins each
// accepted socket to its one topic, and pumps authorized messages through the
// store and out to the topic's subscribers.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chesstour/live-backend/internal/auth"
	"github.com/chesstour/live-backend/internal/conn"
	"github.com/chesstour/live-backend/internal/protocol"
	"github.com/chesstour/live-backend/internal/registry"
	"github.com/chesstour/live-backend/internal/store"
	"github.com/chesstour/live-backend/internal/token"
)

const (
	readLimit     = 32 << 10
	writeTimeout  = 3 * time.Second
	effectTimeout = 5 * time.Second
	outboxSize    = 16
)

type Gateway struct {
	registry   *registry.Registry
	classifier *conn.Classifier
	store      store.Store
	log        *zap.Logger
}

func NewGateway(reg *registry.Registry, classifier *conn.Classifier, st store.Store, log *zap.Logger) *Gateway {
	return &Gateway{registry: reg, classifier: classifier, store: st, log: log}
}

// Handler upgrades and runs one connection. A classification failure rejects
// the handshake outright; no socket is accepted for it.
func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := handshakeFrom(r)

		cc, err := g.classifier.Classify(r.Context(), h)
		if err != nil {
			g.rejectHandshake(w, r, err)
			return
		}

		opts := &websocket.AcceptOptions{}
		if h.Token != "" {
			// Echo the client's token back as the selected subprotocol.
			opts.Subprotocols = []string{h.Token}
		}
		c, err := websocket.Accept(w, r, opts)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "bye")
		c.SetReadLimit(readLimit)

		connID := uuid.NewString()
		topic := cc.Topic()
		g.log.Info("connection accepted",
			zap.String("topic", topic),
			zap.String("conn_id", connID),
			zap.String("role", string(cc.Role())),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("audit_ip", h.AuditIP))
		out := make(chan []byte, outboxSize)

		g.registry.Inbox() <- registry.Subscribe{Topic: topic, ID: connID, Outbox: out}
		// The one unsubscribe for this connection, on every exit path.
		defer func() { g.registry.Inbox() <- registry.Unsubscribe{Topic: topic, ID: connID} }()

		go g.writePump(c, out)
		g.readPump(r.Context(), c, cc, connID)
	}
}

// writePump drains the subscriber outbox onto the socket. The registry closes
// the outbox when the connection is unsubscribed or dropped; closing the
// socket here then releases the blocked reader.
func (g *Gateway) writePump(c *websocket.Conn, out <-chan []byte) {
	for payload := range out {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			return
		}
	}
	c.Close(websocket.StatusPolicyViolation, "subscription closed")
}

// readPump is the Active loop: decode, authorize, apply, broadcast. Per-frame
// failures answer the sender with a scoped error and keep the socket open.
func (g *Gateway) readPump(ctx context.Context, c *websocket.Conn, cc conn.Context, connID string) {
	topic := cc.Topic()
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			// Clean or abnormal close alike: the deferred unsubscribe runs.
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			g.log.Info("decode failed",
				zap.String("topic", topic),
				zap.String("conn_id", connID),
				zap.Error(err))
			g.replyError(ctx, c, cc, err.Error())
			continue
		}

		decision := auth.Authorize(cc, msg)
		if !decision.Allowed {
			g.log.Info("send denied",
				zap.String("topic", topic),
				zap.String("conn_id", connID),
				zap.String("message_type", protocol.TypeOf(msg)),
				zap.String("reason", string(decision.Reason)))
			g.replyError(ctx, c, cc, string(decision.Reason))
			continue
		}

		confirmed, err := g.applyEffect(ctx, cc, msg)
		if err != nil {
			g.log.Warn("effect failed",
				zap.String("topic", topic),
				zap.String("conn_id", connID),
				zap.String("message_type", protocol.TypeOf(msg)),
				zap.Error(err))
			g.replyError(ctx, c, cc, "could not apply "+protocol.TypeOf(msg))
			continue
		}

		payload, err := protocol.Encode(confirmed)
		if err != nil {
			g.replyError(ctx, c, cc, "internal encoding error")
			continue
		}
		g.registry.Inbox() <- registry.Broadcast{Topic: topic, Payload: payload}
	}
}

func (g *Gateway) applyEffect(ctx context.Context, cc conn.Context, msg protocol.Message) (protocol.Message, error) {
	t, ok := cc.(conn.Tournament)
	if !ok {
		return msg, nil
	}
	ctx, cancel := context.WithTimeout(ctx, effectTimeout)
	defer cancel()
	return g.store.ApplyEffect(ctx, t.TournamentID, msg)
}

// replyError answers exactly one client. It writes directly rather than via
// the outbox so a denial is never observed by other subscribers.
func (g *Gateway) replyError(ctx context.Context, c *websocket.Conn, cc conn.Context, text string) {
	e := protocol.Error{Message: text}
	if gc, ok := cc.(conn.Global); ok {
		e.RecipientID = gc.UserID
	}
	payload, err := protocol.Encode(e)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = c.Write(wctx, websocket.MessageText, payload)
}

func (g *Gateway) rejectHandshake(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, conn.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, conn.ErrBadRequest):
		status = http.StatusBadRequest
	}
	g.log.Info("handshake rejected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("status", status),
		zap.Error(err))
	http.Error(w, http.StatusText(status), status)
}

// handshakeFrom pulls the classifier's inputs out of the upgrade request. The
// encrypted session token rides as the first offered subprotocol.
func handshakeFrom(r *http.Request) conn.Handshake {
	var tok string
	if raw := r.Header.Get("Sec-WebSocket-Protocol"); raw != "" {
		tok = strings.TrimSpace(strings.Split(raw, ",")[0])
	}
	q := r.URL.Query()
	return conn.Handshake{
		Token:          tok,
		ConnectionType: q.Get("connectionType"),
		TournamentID:   q.Get("tournamentId"),
		AuditIP:        q.Get("ip"),
		RemoteAddr:     r.RemoteAddr,
	}
}
