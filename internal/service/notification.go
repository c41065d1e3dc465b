package service

import (
	"context"
	"log/slog"

	"campusmart/internal/event"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"gorm.io/gorm"
)

// NotificationList is one page of a user's notifications.
type NotificationList struct {
	Items       []model.Notification `json:"notifications"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	Total       int64                `json:"total"`
	Pages       int                  `json:"pages"`
	UnreadCount int64                `json:"unread_count"`
}

type NotificationService interface {
	// Record persists a notification inside the caller's transaction.
	Record(ctx context.Context, tx *gorm.DB, userID uint, title, message string, typ model.NotificationType, data model.JSONMap) (*model.Notification, error)
	// Deliver pushes already committed notifications to their owners and
	// queues them for out-of-band delivery. Failures are only logged.
	Deliver(ctx context.Context, ns ...*model.Notification)
	List(ctx context.Context, userID uint, unreadOnly bool, page repository.Page) (*NotificationList, error)
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

type notificationServiceImpl struct {
	repo   repository.NotificationRepository
	pub    Publisher
	outbox Outbox
	log    *slog.Logger
}

// NewNotificationService wires the dispatcher. outbox may be nil.
func NewNotificationService(repo repository.NotificationRepository, pub Publisher, outbox Outbox, log *slog.Logger) NotificationService {
	if pub == nil {
		pub = NopPublisher
	}
	return &notificationServiceImpl{repo: repo, pub: pub, outbox: outbox, log: log}
}

func (s *notificationServiceImpl) Record(ctx context.Context, tx *gorm.DB, userID uint, title, message string, typ model.NotificationType, data model.JSONMap) (*model.Notification, error) {
	if data == nil {
		data = model.JSONMap{}
	}
	n := &model.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
		Data:    data,
	}
	if err := s.repo.Create(ctx, tx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *notificationServiceImpl) Deliver(ctx context.Context, ns ...*model.Notification) {
	for _, n := range ns {
		if n == nil {
			continue
		}
		s.pub.Emit(event.UserRoom(n.UserID), event.Notification, event.FromNotification(*n))
		if s.outbox == nil {
			continue
		}
		if err := s.outbox.Append(ctx, *n); err != nil {
			s.log.Warn("outbox append failed",
				slog.Uint64("notification_id", uint64(n.ID)),
				slog.Uint64("user_id", uint64(n.UserID)),
				slog.Any("err", err))
		}
	}
}

func (s *notificationServiceImpl) List(ctx context.Context, userID uint, unreadOnly bool, page repository.Page) (*NotificationList, error) {
	page = page.Normalize(20)
	items, total, err := s.repo.List(ctx, userID, unreadOnly, page)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Notification{}
	}
	return &NotificationList{
		Items:       items,
		Page:        page.Page,
		Limit:       page.Limit,
		Total:       total,
		Pages:       page.Pages(total),
		UnreadCount: unread,
	}, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
