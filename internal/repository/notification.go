package repository

import (
	"context"

	"campusmart/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error
	List(ctx context.Context, userID uint, unreadOnly bool, page Page) ([]model.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	// MarkRead only touches the notification if it belongs to userID.
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

type notificationRepoImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepoImpl{db: db}
}

func (r *notificationRepoImpl) Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error {
	return pick(r.db, tx).WithContext(ctx).Create(n).Error
}

func (r *notificationRepoImpl) List(ctx context.Context, userID uint, unreadOnly bool, page Page) ([]model.Notification, int64, error) {
	page = page.Normalize(20)
	query := r.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Notification
	err := query.Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&list).Error
	return list, total, err
}

func (r *notificationRepoImpl) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (r *notificationRepoImpl) MarkRead(ctx context.Context, userID, id uint) error {
	var n model.Notification
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if err != nil {
		return notFound(err, "notification")
	}
	if n.IsRead {
		return nil
	}
	return r.db.WithContext(ctx).Model(&n).Update("is_read", true).Error
}

func (r *notificationRepoImpl) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
