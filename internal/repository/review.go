package repository

import (
	"context"

	"campusmart/internal/model"

	"gorm.io/gorm"
)

type ReviewRepository interface {
	Create(ctx context.Context, tx *gorm.DB, review *model.Review) error
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Review, error)
	Exists(ctx context.Context, tx *gorm.DB, userID, productID, orderID uint) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	// ListVisible returns approved, non-hidden reviews of a product.
	ListVisible(ctx context.Context, productID uint, page Page) ([]model.Review, int64, error)
	ListAll(ctx context.Context, page Page) ([]model.Review, int64, error)
	// ToggleHidden flips is_hidden and returns the updated review.
	ToggleHidden(ctx context.Context, id uint) (*model.Review, error)
}

type reviewRepoImpl struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepoImpl{db: db}
}

func (r *reviewRepoImpl) Create(ctx context.Context, tx *gorm.DB, review *model.Review) error {
	return pick(r.db, tx).WithContext(ctx).Create(review).Error
}

func (r *reviewRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Review, error) {
	var review model.Review
	if err := pick(r.db, tx).WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, notFound(err, "review")
	}
	return &review, nil
}

func (r *reviewRepoImpl) Exists(ctx context.Context, tx *gorm.DB, userID, productID, orderID uint) (bool, error) {
	var n int64
	err := pick(r.db, tx).WithContext(ctx).Model(&model.Review{}).
		Where("user_id = ? AND product_id = ? AND order_id = ?", userID, productID, orderID).
		Count(&n).Error
	return n > 0, err
}

func (r *reviewRepoImpl) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return pick(r.db, tx).WithContext(ctx).Delete(&model.Review{}, id).Error
}

func (r *reviewRepoImpl) ListVisible(ctx context.Context, productID uint, page Page) ([]model.Review, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Review{}).
		Where("product_id = ? AND is_approved = ? AND is_hidden = ?", productID, true, false)
	return r.page(query, page)
}

func (r *reviewRepoImpl) ListAll(ctx context.Context, page Page) ([]model.Review, int64, error) {
	return r.page(r.db.WithContext(ctx).Model(&model.Review{}), page)
}

func (r *reviewRepoImpl) page(query *gorm.DB, page Page) ([]model.Review, int64, error) {
	page = page.Normalize(20)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Review
	err := query.Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&list).Error
	return list, total, err
}

func (r *reviewRepoImpl) ToggleHidden(ctx context.Context, id uint) (*model.Review, error) {
	var review model.Review
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, id).Error; err != nil {
			return notFound(err, "review")
		}
		review.IsHidden = !review.IsHidden
		return tx.Model(&review).Update("is_hidden", review.IsHidden).Error
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}
