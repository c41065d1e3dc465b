package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campusmart/internal/apperr"
	"campusmart/internal/event"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"gorm.io/gorm"
)

const previewRunes = 50

// MessageInput is a user-authored message.
type MessageInput struct {
	Content  string
	Type     model.MessageType
	MediaURL string
}

// Conversation is one inbox row as seen by a participant.
type Conversation struct {
	ID            uint           `json:"id"`
	OtherUser     *model.User    `json:"other_user"`
	StoreID       *uint          `json:"store_id,omitempty"`
	StoreName     string         `json:"store_name,omitempty"`
	Product       *model.Product `json:"product"`
	LastMessage   *model.Message `json:"last_message"`
	UnreadCount   int64          `json:"unread_count"`
	LastMessageAt time.Time      `json:"last_message_at"`
}

// MessagePage is returned oldest-first.
type MessagePage struct {
	Chat     *Conversation   `json:"chat"`
	Messages []model.Message `json:"messages"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
	Total    int64           `json:"total"`
	Pages    int             `json:"pages"`
}

type ChatService interface {
	// FindOrCreate returns the chat for the unordered pair (a, b), creating
	// it tagged with productID if none exists. Concurrent first contacts can
	// still create two chats.
	FindOrCreate(ctx context.Context, tx *gorm.DB, a, b uint, productID *uint) (*model.Chat, error)
	// Between returns the existing chat for the pair, or nil.
	Between(ctx context.Context, tx *gorm.DB, a, b uint) (*model.Chat, error)
	Start(ctx context.Context, userID, otherID uint, productID *uint) (*Conversation, error)
	SendMessage(ctx context.Context, senderID, chatID uint, in MessageInput) (*model.Message, error)
	ListMessages(ctx context.Context, userID, chatID uint, page repository.Page) (*MessagePage, error)
	ListConversations(ctx context.Context, userID uint) ([]Conversation, error)
	// MarkRead flags the other participant's messages read and tells the room.
	MarkRead(ctx context.Context, userID, chatID uint) error
	// Authorize fails with NotFound or Forbidden unless userID is in the chat.
	Authorize(ctx context.Context, userID, chatID uint) (*model.Chat, error)

	// AppendSystem posts a receipt-style message inside tx.
	AppendSystem(ctx context.Context, tx *gorm.DB, chatID, senderID uint, content string, orderID uint) (*model.Message, error)
	// Announce emits a committed message to the chat room and the recipient.
	Announce(msg model.Message, recipient uint)
}

type chatServiceImpl struct {
	db      *gorm.DB
	chats   repository.ChatRepository
	catalog repository.CatalogRepository
	notify  NotificationService
	pub     Publisher
	log     *slog.Logger
}

func NewChatService(db *gorm.DB, chats repository.ChatRepository, catalog repository.CatalogRepository,
	notify NotificationService, pub Publisher, log *slog.Logger) ChatService {
	if pub == nil {
		pub = NopPublisher
	}
	return &chatServiceImpl{db: db, chats: chats, catalog: catalog, notify: notify, pub: pub, log: log}
}

func (s *chatServiceImpl) FindOrCreate(ctx context.Context, tx *gorm.DB, a, b uint, productID *uint) (*model.Chat, error) {
	if a == b {
		return nil, apperr.Validation("cannot chat with yourself")
	}
	chat, err := s.chats.FindBetween(ctx, tx, a, b)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	chat = &model.Chat{User1ID: a, User2ID: b, ProductID: productID}
	if err := s.chats.Create(ctx, tx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

func (s *chatServiceImpl) Between(ctx context.Context, tx *gorm.DB, a, b uint) (*model.Chat, error) {
	chat, err := s.chats.FindBetween(ctx, tx, a, b)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return chat, err
}

func (s *chatServiceImpl) Start(ctx context.Context, userID, otherID uint, productID *uint) (*Conversation, error) {
	if otherID == 0 {
		return nil, apperr.Validation("seller_id is required")
	}
	if userID == otherID {
		return nil, apperr.Validation("cannot chat with yourself")
	}
	if _, err := s.catalog.FindUser(ctx, nil, otherID); err != nil {
		return nil, err
	}
	chat, err := s.FindOrCreate(ctx, nil, userID, otherID, productID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, *chat, userID)
}

func (s *chatServiceImpl) Authorize(ctx context.Context, userID, chatID uint) (*model.Chat, error) {
	chat, err := s.chats.FindByID(ctx, nil, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, apperr.Forbidden("not a participant of chat %d", chatID)
	}
	return chat, nil
}

func (s *chatServiceImpl) SendMessage(ctx context.Context, senderID, chatID uint, in MessageInput) (*model.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.MediaURL = strings.TrimSpace(in.MediaURL)
	if in.Type == "" {
		in.Type = model.MessageText
	}
	if !in.Type.Valid() || in.Type == model.MessageReceipt {
		return nil, apperr.Validation("unsupported message type %q", in.Type)
	}
	if in.Content == "" && in.MediaURL == "" {
		return nil, apperr.Validation("message content or media required")
	}

	var (
		msg       *model.Message
		recipient uint
		note      *model.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, err := s.chats.FindByID(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.HasParticipant(senderID) {
			return apperr.Forbidden("not a participant of chat %d", chatID)
		}
		sender, err := s.catalog.FindUser(ctx, tx, senderID)
		if err != nil {
			return err
		}
		recipient = chat.Other(senderID)

		msg = &model.Message{
			ChatID:      chat.ID,
			SenderID:    senderID,
			Content:     in.Content,
			MessageType: in.Type,
			MediaURL:    in.MediaURL,
		}
		if err := s.chats.AppendMessage(ctx, tx, msg); err != nil {
			return fmt.Errorf("append message: %w", err)
		}

		body := preview(in.Content, previewRunes)
		if in.Type == model.MessageImage || in.Type == model.MessageVideo {
			body = "📷 Sent a photo"
		}
		if body == "" {
			body = "Sent a media file"
		}
		note, err = s.notify.Record(ctx, tx, recipient,
			fmt.Sprintf("New message from %s", sender.FirstName), body,
			model.NotifyChat, model.JSONMap{"chat_id": chat.ID})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Announce(*msg, recipient)
	s.notify.Deliver(ctx, note)
	return msg, nil
}

func (s *chatServiceImpl) ListMessages(ctx context.Context, userID, chatID uint, page repository.Page) (*MessagePage, error) {
	page = page.Normalize(50)
	chat, err := s.Authorize(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	var (
		msgs  []model.Message
		total int64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		msgs, total, err = s.chats.ListMessages(ctx, tx, chat.ID, page)
		if err != nil {
			return err
		}
		_, err = s.chats.MarkRead(ctx, tx, chat.ID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// storage order is newest first; rows loaded before MarkRead still
	// carry the old flag
	chrono := make([]model.Message, len(msgs))
	for i, m := range msgs {
		if m.SenderID != userID {
			m.IsRead = true
		}
		chrono[len(msgs)-1-i] = m
	}

	summary, err := s.summarize(ctx, *chat, userID)
	if err != nil {
		return nil, err
	}
	return &MessagePage{
		Chat:     summary,
		Messages: chrono,
		Page:     page.Page,
		Limit:    page.Limit,
		Total:    total,
		Pages:    page.Pages(total),
	}, nil
}

func (s *chatServiceImpl) ListConversations(ctx context.Context, userID uint) ([]Conversation, error) {
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Conversation, 0, len(chats))
	for _, c := range chats {
		conv, err := s.summarize(ctx, c, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, nil
}

func (s *chatServiceImpl) MarkRead(ctx context.Context, userID, chatID uint) error {
	chat, err := s.Authorize(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if _, err := s.chats.MarkRead(ctx, nil, chat.ID, userID); err != nil {
		return err
	}
	s.pub.Emit(event.ChatRoom(chat.ID), event.MessagesRead, event.MessagesReadPayload{ChatID: chat.ID, ReadBy: userID})
	return nil
}

func (s *chatServiceImpl) AppendSystem(ctx context.Context, tx *gorm.DB, chatID, senderID uint, content string, orderID uint) (*model.Message, error) {
	msg := &model.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		MessageType: model.MessageReceipt,
	}
	if orderID != 0 {
		msg.OrderID = &orderID
	}
	if err := s.chats.AppendMessage(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("append receipt: %w", err)
	}
	return msg, nil
}

func (s *chatServiceImpl) Announce(msg model.Message, recipient uint) {
	payload := event.FromMessage(msg)
	s.pub.Emit(event.ChatRoom(msg.ChatID), event.NewMessage, payload)
	s.pub.Emit(event.UserRoom(recipient), event.NewMessageNotification,
		event.MessageNotificationPayload{ChatID: msg.ChatID, Message: payload})
}

func (s *chatServiceImpl) summarize(ctx context.Context, chat model.Chat, viewer uint) (*Conversation, error) {
	conv := &Conversation{
		ID:            chat.ID,
		LastMessageAt: chat.LastMessageAt,
	}

	other, err := s.catalog.FindUser(ctx, nil, chat.Other(viewer))
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	conv.OtherUser = other
	if other != nil {
		store, err := s.catalog.FindStoreByOwner(ctx, nil, other.ID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		if store != nil {
			conv.StoreID = &store.ID
			conv.StoreName = store.Name
		}
	}

	if chat.ProductID != nil {
		product, err := s.catalog.FindProduct(ctx, nil, *chat.ProductID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		conv.Product = product
	}

	if conv.LastMessage, err = s.chats.LastMessage(ctx, chat.ID); err != nil {
		return nil, err
	}
	if conv.UnreadCount, err = s.chats.UnreadCount(ctx, chat.ID, viewer); err != nil {
		return nil, err
	}
	return conv, nil
}
