package repository

import (
	"context"
	"fmt"

	"campusmart/internal/apperr"
	"campusmart/internal/model"

	"gorm.io/gorm"
)

// OrderQuery filters order listings. Zero ids mean "any".
type OrderQuery struct {
	BuyerID uint
	StoreID uint
	Status  model.OrderStatus
	Page    Page
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error)
	// FindDetailed loads the order with product, store and buyer.
	FindDetailed(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error)
	// UpdateStatusIf moves the order from one status to another only if it
	// is still in from. Extra columns in fields are written in the same
	// statement. Fails with InvalidState when no row matched.
	UpdateStatusIf(ctx context.Context, tx *gorm.DB, id uint, from, to model.OrderStatus, fields map[string]any) error
	List(ctx context.Context, q OrderQuery) ([]model.Order, int64, error)
	CountByStatus(ctx context.Context) (map[model.OrderStatus]int64, error)
	// FindReviewable returns the buyer's earliest order on the product in one
	// of statuses; orderID narrows it to that order when non-zero.
	FindReviewable(ctx context.Context, tx *gorm.DB, buyerID, productID, orderID uint, statuses []model.OrderStatus) (*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return pick(r.db, tx).WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error) {
	var order model.Order
	if err := pick(r.db, tx).WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

func (r *orderRepoImpl) FindDetailed(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error) {
	var order model.Order
	err := pick(r.db, tx).WithContext(ctx).
		Preload("Product").
		Preload("Store").
		Preload("Buyer").
		First(&order, id).Error
	if err != nil {
		return nil, notFound(err, "order")
	}
	return &order, nil
}

func (r *orderRepoImpl) UpdateStatusIf(ctx context.Context, tx *gorm.DB, id uint, from, to model.OrderStatus, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	result := pick(r.db, tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update order %d status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.InvalidState("order %d is no longer %s", id, from)
	}
	return nil
}

func (r *orderRepoImpl) List(ctx context.Context, q OrderQuery) ([]model.Order, int64, error) {
	page := q.Page.Normalize(20)
	query := r.db.WithContext(ctx).Model(&model.Order{})
	if q.BuyerID != 0 {
		query = query.Where("buyer_id = ?", q.BuyerID)
	}
	if q.StoreID != 0 {
		query = query.Where("store_id = ?", q.StoreID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []model.Order
	err := query.
		Preload("Product").
		Preload("Store").
		Preload("Buyer").
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepoImpl) CountByStatus(ctx context.Context) (map[model.OrderStatus]int64, error) {
	var rows []struct {
		Status model.OrderStatus
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *orderRepoImpl) FindReviewable(ctx context.Context, tx *gorm.DB, buyerID, productID, orderID uint, statuses []model.OrderStatus) (*model.Order, error) {
	query := pick(r.db, tx).WithContext(ctx).
		Where("buyer_id = ? AND product_id = ? AND status IN ?", buyerID, productID, statuses)
	if orderID != 0 {
		query = query.Where("id = ?", orderID)
	}
	var order model.Order
	if err := query.Order("id ASC").First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
