package repository

import (
	"context"
	"errors"
	"time"

	"campusmart/internal/model"

	"gorm.io/gorm"
)

type ChatRepository interface {
	// FindBetween looks the pair up in either order.
	FindBetween(ctx context.Context, tx *gorm.DB, a, b uint) (*model.Chat, error)
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Chat, error)
	Create(ctx context.Context, tx *gorm.DB, chat *model.Chat) error
	// AppendMessage stores msg and advances the chat's last_message_at.
	AppendMessage(ctx context.Context, tx *gorm.DB, msg *model.Message) error
	// ListMessages pages newest-first.
	ListMessages(ctx context.Context, tx *gorm.DB, chatID uint, page Page) ([]model.Message, int64, error)
	// MarkRead flags every unread message in the chat not sent by reader.
	MarkRead(ctx context.Context, tx *gorm.DB, chatID, reader uint) (int64, error)
	ListForUser(ctx context.Context, userID uint) ([]model.Chat, error)
	LastMessage(ctx context.Context, chatID uint) (*model.Message, error)
	UnreadCount(ctx context.Context, chatID, reader uint) (int64, error)
}

type chatRepoImpl struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepoImpl{db: db}
}

func (r *chatRepoImpl) FindBetween(ctx context.Context, tx *gorm.DB, a, b uint) (*model.Chat, error) {
	var chat model.Chat
	err := pick(r.db, tx).WithContext(ctx).
		Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)", a, b, b, a).
		Order("id ASC").
		First(&chat).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Chat, error) {
	var chat model.Chat
	if err := pick(r.db, tx).WithContext(ctx).First(&chat, id).Error; err != nil {
		return nil, notFound(err, "chat")
	}
	return &chat, nil
}

func (r *chatRepoImpl) Create(ctx context.Context, tx *gorm.DB, chat *model.Chat) error {
	if chat.LastMessageAt.IsZero() {
		chat.LastMessageAt = time.Now()
	}
	return pick(r.db, tx).WithContext(ctx).Create(chat).Error
}

func (r *chatRepoImpl) AppendMessage(ctx context.Context, tx *gorm.DB, msg *model.Message) error {
	db := pick(r.db, tx).WithContext(ctx)
	if err := db.Create(msg).Error; err != nil {
		return err
	}
	return db.Model(&model.Chat{}).Where("id = ?", msg.ChatID).
		Update("last_message_at", msg.CreatedAt).Error
}

func (r *chatRepoImpl) ListMessages(ctx context.Context, tx *gorm.DB, chatID uint, page Page) ([]model.Message, int64, error) {
	page = page.Normalize(50)
	query := pick(r.db, tx).WithContext(ctx).Model(&model.Message{}).Where("chat_id = ?", chatID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var msgs []model.Message
	err := query.Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&msgs).Error
	return msgs, total, err
}

func (r *chatRepoImpl) MarkRead(ctx context.Context, tx *gorm.DB, chatID, reader uint) (int64, error) {
	result := pick(r.db, tx).WithContext(ctx).Model(&model.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, reader, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *chatRepoImpl) ListForUser(ctx context.Context, userID uint) ([]model.Chat, error) {
	var chats []model.Chat
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("last_message_at DESC, id DESC").
		Find(&chats).Error
	return chats, err
}

func (r *chatRepoImpl) LastMessage(ctx context.Context, chatID uint) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *chatRepoImpl) UnreadCount(ctx context.Context, chatID, reader uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, reader, false).
		Count(&n).Error
	return n, err
}
