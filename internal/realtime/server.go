package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"campusmart/internal/apperr"
	"campusmart/internal/auth"
	"campusmart/internal/event"
	"campusmart/internal/repository"
	"campusmart/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Presence counts a user's live connections across instances.
type Presence interface {
	Connected(ctx context.Context, userID uint) (int64, error)
	Disconnected(ctx context.Context, userID uint) (int64, error)
}

const eventTimeout = 10 * time.Second

// Server upgrades authenticated requests and dispatches inbound events.
type Server struct {
	hub      *Hub
	tokens   *auth.TokenManager
	users    repository.CatalogRepository
	chat     service.ChatService
	presence Presence
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer builds the socket endpoint. presence may be nil.
func NewServer(hub *Hub, tokens *auth.TokenManager, users repository.CatalogRepository, chat service.ChatService, presence Presence, log *slog.Logger) *Server {
	return &Server{
		hub:      hub,
		tokens:   tokens,
		users:    users,
		chat:     chat,
		presence: presence,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP rejects with 401 before upgrading unless ?token= is valid and
// the account is active.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.tokens.Parse(r.URL.Query().Get("token"))
	if err != nil {
		writeUnauthorized(w, "invalid or expired token")
		return
	}
	user, err := s.users.FindUser(r.Context(), nil, userID)
	if err != nil || !user.IsActive {
		writeUnauthorized(w, "account not found or inactive")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.log.Debug("websocket upgrade", slog.Any("err", err))
		return
	}

	c := newClient(uuid.NewString(), user.ID, conn, s.log)
	s.hub.register(c)
	s.hub.reg.Join(c.id, event.UserRoom(user.ID))
	s.log.Info("websocket connected", slog.String("conn_id", c.id), slog.Uint64("user_id", uint64(user.ID)))

	if s.firstConnection(user.ID) {
		s.hub.Broadcast(event.UserOnline, event.PresencePayload{UserID: user.ID})
	}

	go c.writeLoop()
	c.readLoop(func(data []byte) { s.dispatch(c, data) })

	s.hub.unregister(c)
	if s.lastConnection(user.ID) {
		s.hub.Broadcast(event.UserOffline, event.PresencePayload{UserID: user.ID})
	}
	s.log.Info("websocket disconnected", slog.String("conn_id", c.id), slog.Uint64("user_id", uint64(user.ID)))
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": http.StatusUnauthorized, "msg": msg})
}

// firstConnection falls back to the local registry when Redis presence is
// not configured or fails.
func (s *Server) firstConnection(userID uint) bool {
	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := s.presence.Connected(ctx, userID)
		if err == nil {
			return n == 1
		}
		s.log.Warn("presence connect", slog.Uint64("user_id", uint64(userID)), slog.Any("err", err))
	}
	return s.hub.reg.Connections(userID) == 1
}

func (s *Server) lastConnection(userID uint) bool {
	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := s.presence.Disconnected(ctx, userID)
		if err == nil {
			return n <= 0
		}
		s.log.Warn("presence disconnect", slog.Uint64("user_id", uint64(userID)), slog.Any("err", err))
	}
	return s.hub.reg.Connections(userID) == 0
}

func (s *Server) dispatch(c *Client, data []byte) {
	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.replyError(c, "invalid message format")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch env.Event {
	case event.JoinChat:
		var in event.ChatRef
		if !s.decode(c, env.Data, &in) {
			return
		}
		if _, err := s.chat.Authorize(ctx, c.userID, in.ChatID); err != nil {
			s.replyErr(c, err)
			return
		}
		s.hub.reg.Join(c.id, event.ChatRoom(in.ChatID))
		s.hub.sendTo(c.id, event.JoinedChat, event.ChatRef{ChatID: in.ChatID})

	case event.LeaveChat:
		var in event.ChatRef
		if !s.decode(c, env.Data, &in) {
			return
		}
		s.hub.reg.Leave(c.id, event.ChatRoom(in.ChatID))

	case event.SendMessage:
		var in event.SendMessageRequest
		if !s.decode(c, env.Data, &in) {
			return
		}
		_, err := s.chat.SendMessage(ctx, c.userID, in.ChatID, service.MessageInput{
			Content:  in.Content,
			Type:     in.Type,
			MediaURL: in.MediaURL,
		})
		if err != nil {
			s.replyErr(c, err)
		}

	case event.Typing:
		var in event.TypingRequest
		if !s.decode(c, env.Data, &in) {
			return
		}
		room := event.ChatRoom(in.ChatID)
		if !s.hub.reg.InRoom(c.id, room) {
			s.replyError(c, "join the chat first")
			return
		}
		s.hub.EmitExcept(room, c.id, event.UserTyping, event.TypingPayload{
			ChatID:   in.ChatID,
			UserID:   c.userID,
			IsTyping: in.IsTyping,
		})

	case event.MarkRead:
		var in event.ChatRef
		if !s.decode(c, env.Data, &in) {
			return
		}
		if err := s.chat.MarkRead(ctx, c.userID, in.ChatID); err != nil {
			s.replyErr(c, err)
		}

	default:
		s.replyError(c, "unknown event")
	}
}

func (s *Server) decode(c *Client, raw json.RawMessage, v any) bool {
	if len(raw) == 0 || json.Unmarshal(raw, v) != nil {
		s.replyError(c, "invalid message data")
		return false
	}
	return true
}

func (s *Server) replyErr(c *Client, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		s.log.Error("socket event failed", slog.String("conn_id", c.id), slog.Any("err", err))
	}
	s.replyError(c, apperr.Message(err))
}

func (s *Server) replyError(c *Client, msg string) {
	s.hub.sendTo(c.id, event.Error, event.ErrorPayload{Message: msg})
}
