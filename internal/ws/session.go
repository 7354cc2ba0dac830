// Package ws implements the real-time messaging channel: handshake
// authentication, connection bookkeeping and the per-connection event loop.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sfcollab/internal/domain"
	"sfcollab/internal/presence"
	"sfcollab/internal/security"
	"sfcollab/internal/service"
)

const eventTimeout = 10 * time.Second

type HandlerConfig struct {
	AllowedOrigins []string
	// SendRate is the sustained sendMessage rate per connection, in events
	// per second. Zero disables limiting.
	SendRate   float64
	SendBurst  int
	SendBuffer int
}

// Handler upgrades /ws requests and runs one session per connection.
type Handler struct {
	hub      *Hub
	registry presence.Registry
	messages *service.MessageService
	gate     *Gate
	upgrader websocket.Upgrader
	cfg      HandlerConfig
	log      *zap.Logger
}

func NewHandler(
	hub *Hub,
	registry presence.Registry,
	tokens *security.TokenService,
	messages *service.MessageService,
	cfg HandlerConfig,
	log *zap.Logger,
) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		messages: messages,
		gate:     NewGate(tokens),
		upgrader: websocket.Upgrader{
			CheckOrigin:  makeCheckOrigin(cfg.AllowedOrigins),
			Subprotocols: []string{"bearer"},
		},
		cfg: cfg,
		log: log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	userID, reject := h.gate.Admit(r)
	if reject != "" {
		h.refuse(wsConn, reject)
		return
	}

	conn := NewConnection(userID, wsConn, h.cfg.SendBuffer)
	conn.Start()
	h.serve(r.Context(), conn, wsConn)
}

// refuse tells the client why it was rejected and closes the socket without
// touching the hub or the registry.
func (h *Handler) refuse(wsConn *websocket.Conn, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = wsConn.SetWriteDeadline(deadline)
	_ = wsConn.WriteJSON(outbound{Event: EventUnauthorized, Data: unauthorizedPayload{Message: reason}})
	_ = wsConn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	_ = wsConn.Close()
}

func (h *Handler) serve(ctx context.Context, conn *Connection, wsConn *websocket.Conn) {
	log := h.log.With(zap.String("user_id", conn.UserID()), zap.String("conn_id", conn.ID()))

	h.hub.Add(conn)
	h.registry.Register(conn.UserID(), conn)
	log.Info("ws connected")

	defer func() {
		h.hub.Remove(conn)
		if h.registry.Unregister(conn.UserID(), conn) {
			h.hub.BroadcastExcept(conn.ID(), EventUserOffline, conn.UserID())
		}
		conn.Close(websocket.CloseNormalClosure, "")
		log.Info("ws disconnected")
	}()

	h.hub.BroadcastExcept(conn.ID(), EventUserOnline, conn.UserID())
	_ = conn.Emit(EventInitialOnlineStatus, h.registry.ListOnline())

	limit := rate.Inf
	if h.cfg.SendRate > 0 {
		limit = rate.Limit(h.cfg.SendRate)
	}
	burst := h.cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}
	s := &session{
		Handler: h,
		conn:    conn,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}

	wsConn.SetReadLimit(maxMessageSize)
	_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("ws read", zap.Error(err))
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			log.Debug("ws malformed frame", zap.Error(err))
			continue
		}
		s.handle(ctx, in)
	}
}

// session holds the state of one admitted connection. Its events are
// handled on the read goroutine, one at a time, in receipt order.
type session struct {
	*Handler
	conn    *Connection
	limiter *rate.Limiter
	log     *zap.Logger
}

func (s *session) handle(ctx context.Context, in inbound) {
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	switch in.Event {
	case EventSendMessage:
		s.sendMessage(ctx, in)
	case EventMarkAsRead:
		s.markAsRead(ctx, in)
	default:
		s.log.Debug("ws unknown event", zap.String("event", in.Event))
		s.ack(in, ackPayload{Status: ackError, Message: msgUnknownEvent})
	}
}

func (s *session) sendMessage(ctx context.Context, in inbound) {
	if !s.limiter.Allow() {
		s.ack(in, ackPayload{Status: ackError, Message: msgRateLimited})
		return
	}

	var p sendMessagePayload
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, &p); err != nil {
			s.ack(in, ackPayload{Status: ackError, Message: msgInvalidPayload})
			return
		}
	}

	msg, err := s.messages.Send(ctx, s.conn.UserID(), service.SendInput{
		RecipientID: p.RecipientID,
		Content:     p.Content,
		File:        p.File,
		SenderName:  p.SenderName,
		TempID:      p.TempID,
	})
	if errors.Is(err, domain.ErrRecipientRequired) {
		s.ack(in, ackPayload{Status: ackError, Message: msgRecipientRequired})
		return
	}
	if err != nil {
		s.log.Error("send message", zap.String("recipient_id", p.RecipientID), zap.Error(err))
		s.ack(in, ackPayload{Status: ackError, Message: msgSendFailed})
		return
	}

	// Presence is read again here; the recipient may have left while the
	// message was being stored.
	if h, ok := s.registry.Lookup(msg.RecipientID); ok {
		if target, ok := h.(*Connection); ok {
			view := domain.NewMessageView(msg, msg.Content, msg.RecipientID)
			view.SenderName = p.SenderName
			// a note to self still arrives as an incoming message
			view.IsOwn = false
			if err := target.Emit(EventNewMessage, view); err != nil {
				s.log.Debug("push new message", zap.String("recipient_id", msg.RecipientID), zap.Error(err))
			}
		}
	}

	own := domain.NewMessageView(msg, msg.Content, s.conn.UserID())
	own.SenderName = p.SenderName
	if p.TempID != "" {
		own.ID = p.TempID
	}
	s.ack(in, ackPayload{Status: ackSuccess, Message: own})
}

func (s *session) markAsRead(ctx context.Context, in inbound) {
	ids, err := decodeIDs(in.Data)
	if err != nil {
		s.ack(in, ackPayload{Status: ackError, Message: msgInvalidPayload})
		return
	}

	updates, err := s.messages.MarkRead(ctx, s.conn.UserID(), ids)
	if err != nil {
		s.log.Error("mark as read", zap.Int("count", len(ids)), zap.Error(err))
		s.ack(in, ackPayload{Status: ackError, Message: msgMarkReadFailed})
		return
	}

	for _, u := range updates {
		if !s.registry.IsOnline(u.SenderID) {
			continue
		}
		s.hub.EmitToUser(u.SenderID, EventUnreadCountUpdate, unreadCountPayload{
			Count:    u.Count,
			ReaderID: u.ReaderID,
		})
	}
	s.ack(in, ackPayload{Status: ackSuccess})
}

// ack is a no-op for frames sent without an ackId.
func (s *session) ack(in inbound, p ackPayload) {
	if in.AckID == nil {
		return
	}
	b, err := json.Marshal(outbound{Event: EventAck, AckID: in.AckID, Data: p})
	if err != nil {
		s.log.Error("marshal ack", zap.Error(err))
		return
	}
	if err := s.conn.enqueue(b); err != nil {
		s.log.Debug("ack dropped", zap.Error(err))
	}
}
