package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/example/attendgate/internal/auth"
	"github.com/example/attendgate/internal/observability"
	"github.com/example/attendgate/internal/protocol"
	"github.com/example/attendgate/pkg/transport"
	"github.com/google/uuid"
)

// Gateway accepts viewer connections, enforces the in-band AUTH
// handshake, dispatches pull requests to the handler table and fans
// attendance events out to every registered session.
type Gateway struct {
	logger   *slog.Logger
	verifier auth.Verifier
	registry Registry
	handlers map[string]HandlerFunc
	metrics  *observability.Metrics
	config   transport.ConnectionConfig
	wg       *sync.WaitGroup

	connMu sync.Mutex
	conns  map[uuid.UUID]*Session
}

func New(logger *slog.Logger, verifier auth.Verifier, registry Registry, handlers map[string]HandlerFunc, metrics *observability.Metrics, config transport.ConnectionConfig, wg *sync.WaitGroup) *Gateway {
	return &Gateway{
		logger:   logger.With(slog.String("component", "gateway")),
		verifier: verifier,
		registry: registry,
		handlers: handlers,
		metrics:  metrics,
		config:   config,
		wg:       wg,
		conns:    make(map[uuid.UUID]*Session),
	}
}

// Accept upgrades an HTTP request to a viewer session and blocks until
// the connection terminates.
func (g *Gateway) Accept(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		g.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(r.Context(), g.wg, wsConn, g.config, nil, nil, g.logger)
	g.track(conn)
	conn.SetOnMessageHandler(g.route)
	conn.SetOnCloseHandler(g.handleClose)

	conn.Run()
	<-conn.Done()
}

func (g *Gateway) track(conn *transport.Connection) *Session {
	session := NewSession(conn)
	g.connMu.Lock()
	g.conns[session.ID] = session
	g.connMu.Unlock()
	return session
}

func (g *Gateway) session(connID uuid.UUID) (*Session, bool) {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	session, ok := g.conns[connID]
	return session, ok
}

// route is the inbound message pump for every session.
func (g *Gateway) route(ctx context.Context, connID uuid.UUID, msg []byte) {
	session, ok := g.session(connID)
	if !ok || session.State() == StateClosed {
		return
	}

	var clientMsg protocol.ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		g.logger.Warn("Failed to unmarshal client message", slog.String("connID", connID.String()), slog.Any("error", err))
		if session.State() == StateUnauthenticated {
			g.rejectUnauthenticated(session)
			return
		}
		g.sendNotice(session, protocol.TypeError, "malformed message")
		return
	}

	switch session.State() {
	case StateUnauthenticated:
		g.handleAuth(session, clientMsg)
	case StateAuthenticated:
		g.dispatch(ctx, session, clientMsg)
	}
}

// handleAuth processes the mandatory first frame.
func (g *Gateway) handleAuth(session *Session, msg protocol.ClientMessage) {
	if msg.Type != protocol.TypeAuth {
		g.rejectUnauthenticated(session)
		return
	}

	identity, err := g.verifier.Verify(msg.Token)
	if err != nil {
		g.logger.Warn("Authentication failed", slog.String("connID", session.ID.String()), slog.Any("error", err))
		// Closed immediately so frames arriving before the transport
		// teardown cannot re-enter the handshake.
		session.MarkClosed()
		g.sendNotice(session, protocol.TypeAuthFailed, "invalid or expired token")
		session.Transport.SetCloseStatus(websocket.StatusPolicyViolation, "authentication failed")
		g.deferredClose(session)
		return
	}

	if !session.Authenticate(identity) {
		return
	}
	if !g.register(session, identity) {
		return
	}
	g.sendNotice(session, protocol.TypeAuthSuccess, "authenticated as "+identity)
	g.logger.Info("Viewer authenticated", slog.String("connID", session.ID.String()), slog.String("identity", identity))
}

// register inserts the authenticated session and re-checks for a close
// that raced the insertion: handleClose cannot evict an entry that was
// not yet present when it ran.
func (g *Gateway) register(session *Session, identity string) bool {
	g.registry.Put(identity, session)
	g.metrics.ConnectedViewers.Inc()
	if session.State() == StateClosed {
		g.registry.RemoveIfCurrent(identity, session)
		return false
	}
	return true
}

func (g *Gateway) rejectUnauthenticated(session *Session) {
	session.MarkClosed()
	g.sendNotice(session, protocol.TypeError, "authentication required")
	session.Transport.SetCloseStatus(websocket.StatusPolicyViolation, "authentication required")
	g.deferredClose(session)
}

// deferredClose lets the write pump flush the final frame before the
// transport tears down.
func (g *Gateway) deferredClose(session *Session) {
	go func() {
		time.Sleep(100 * time.Millisecond)
		session.Transport.Close(nil)
	}()
}

// dispatch hands an authenticated request to its handler. Handlers run
// concurrently; responses carry the request's correlation token so
// completion order does not matter.
func (g *Gateway) dispatch(ctx context.Context, session *Session, msg protocol.ClientMessage) {
	handler, ok := g.handlers[msg.Type]
	if !ok {
		g.logger.Warn("Received unknown request type", slog.String("type", msg.Type), slog.String("connID", session.ID.String()))
		g.sendErrorResponse(session, msg.Type, msg.RequestID, "unknown request type")
		return
	}

	go func() {
		start := time.Now()
		data, err := handler(ctx, msg.Payload)
		g.metrics.RequestLatency.WithLabelValues(msg.Type).Observe(time.Since(start).Seconds())
		if err != nil {
			g.logger.Warn("Request handler failed",
				slog.String("type", msg.Type),
				slog.String("requestId", msg.RequestID),
				slog.Any("error", err),
			)
			g.sendErrorResponse(session, msg.Type, msg.RequestID, err.Error())
			return
		}

		frame, err := protocol.NewSuccessResponse(msg.Type, msg.RequestID, data)
		if err != nil {
			g.sendErrorResponse(session, msg.Type, msg.RequestID, "failed to encode response")
			return
		}
		session.Transport.Send(frame)
	}()
}

// handleClose removes the session; the registry entry is evicted only
// if it still belongs to this session, so a replaced entry survives the
// old connection's closure.
func (g *Gateway) handleClose(connID uuid.UUID, err error) {
	g.connMu.Lock()
	session, ok := g.conns[connID]
	delete(g.conns, connID)
	g.connMu.Unlock()
	if !ok {
		return
	}

	identity := session.Identity()
	if wasAuthenticated := session.MarkClosed(); wasAuthenticated {
		g.metrics.ConnectedViewers.Dec()
		g.registry.RemoveIfCurrent(identity, session)
	}
	g.logger.Info("Viewer connection closed", slog.String("connID", connID.String()), slog.Any("reason", err))
}

// Broadcast delivers an attendance event to every registered session
// whose transport is still open. Closed transports are skipped, never
// removed here; removal belongs to the close handler.
func (g *Gateway) Broadcast(update protocol.PresenceUpdate) {
	frame, err := protocol.NewBroadcast(update)
	if err != nil {
		g.logger.Error("Failed to encode broadcast", slog.Any("error", err))
		return
	}

	for _, session := range g.registry.Snapshot() {
		if session.State() != StateAuthenticated || !session.Transport.Open() {
			continue
		}
		session.Transport.Send(frame)
		g.metrics.BroadcastsSent.Inc()
	}
}

// CloseAll terminates every tracked connection. Part of the graceful
// shutdown sequence.
func (g *Gateway) CloseAll() {
	g.connMu.Lock()
	sessions := make([]*Session, 0, len(g.conns))
	for _, s := range g.conns {
		sessions = append(sessions, s)
	}
	g.connMu.Unlock()

	for _, s := range sessions {
		s.Transport.Close(nil)
	}
}

func (g *Gateway) sendNotice(session *Session, noticeType, message string) {
	frame, err := protocol.NewNotice(noticeType, message)
	if err != nil {
		g.logger.Error("Failed to encode notice", slog.Any("error", err))
		return
	}
	session.Transport.Send(frame)
}

func (g *Gateway) sendErrorResponse(session *Session, requestType, requestID, message string) {
	frame, err := protocol.NewErrorResponse(requestType, requestID, message)
	if err != nil {
		g.logger.Error("Failed to encode error response", slog.Any("error", err))
		return
	}
	session.Transport.Send(frame)
}
