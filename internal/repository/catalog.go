package repository

import (
	"context"
	"fmt"

	"campusmart/internal/model"

	"gorm.io/gorm"
)

// CatalogRepository is the product/store/user access the order and review
// flows need. Aggregate columns are only ever changed through it.
type CatalogRepository interface {
	FindUser(ctx context.Context, tx *gorm.DB, id uint) (*model.User, error)
	FindProduct(ctx context.Context, tx *gorm.DB, id uint) (*model.Product, error)
	FindStore(ctx context.Context, tx *gorm.DB, id uint) (*model.Store, error)
	FindStoreByOwner(ctx context.Context, tx *gorm.DB, ownerID uint) (*model.Store, error)

	CreateUser(ctx context.Context, tx *gorm.DB, user *model.User) error
	UpdateUser(ctx context.Context, tx *gorm.DB, id uint, fields map[string]any) error
	CreateStore(ctx context.Context, tx *gorm.DB, store *model.Store) error
	CreateProduct(ctx context.Context, tx *gorm.DB, product *model.Product) error
	ListProducts(ctx context.Context, storeID uint, page Page) ([]model.Product, int64, error)

	// ApplyApproval takes qty off the product's stock and bumps the order
	// counters on the product and its store.
	ApplyApproval(ctx context.Context, tx *gorm.DB, productID, storeID uint, qty int) error
	// RevertApproval undoes ApplyApproval for a cancelled order.
	RevertApproval(ctx context.Context, tx *gorm.DB, productID, storeID uint, qty int) error

	SetProductRating(ctx context.Context, tx *gorm.DB, productID uint, rating float64, total int) error
	ProductRatings(ctx context.Context, tx *gorm.DB, storeID uint) ([]float64, error)
	// SetStoreRating writes the store rating and adds delta to total_reviews
	// (never below zero).
	SetStoreRating(ctx context.Context, tx *gorm.DB, storeID uint, rating float64, delta int) error

	Count(ctx context.Context, model any, where string, args ...any) (int64, error)
}

type catalogRepoImpl struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepoImpl{db: db}
}

func (r *catalogRepoImpl) FindUser(ctx context.Context, tx *gorm.DB, id uint) (*model.User, error) {
	var user model.User
	if err := pick(r.db, tx).WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *catalogRepoImpl) FindProduct(ctx context.Context, tx *gorm.DB, id uint) (*model.Product, error) {
	var product model.Product
	if err := pick(r.db, tx).WithContext(ctx).Preload("Store").First(&product, id).Error; err != nil {
		return nil, notFound(err, "product")
	}
	return &product, nil
}

func (r *catalogRepoImpl) FindStore(ctx context.Context, tx *gorm.DB, id uint) (*model.Store, error) {
	var store model.Store
	if err := pick(r.db, tx).WithContext(ctx).First(&store, id).Error; err != nil {
		return nil, notFound(err, "store")
	}
	return &store, nil
}

func (r *catalogRepoImpl) FindStoreByOwner(ctx context.Context, tx *gorm.DB, ownerID uint) (*model.Store, error) {
	var store model.Store
	if err := pick(r.db, tx).WithContext(ctx).Where("owner_id = ?", ownerID).First(&store).Error; err != nil {
		return nil, notFound(err, "store")
	}
	return &store, nil
}

func (r *catalogRepoImpl) CreateUser(ctx context.Context, tx *gorm.DB, user *model.User) error {
	return pick(r.db, tx).WithContext(ctx).Create(user).Error
}

func (r *catalogRepoImpl) UpdateUser(ctx context.Context, tx *gorm.DB, id uint, fields map[string]any) error {
	result := pick(r.db, tx).WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "user")
	}
	return nil
}

func (r *catalogRepoImpl) CreateStore(ctx context.Context, tx *gorm.DB, store *model.Store) error {
	return pick(r.db, tx).WithContext(ctx).Create(store).Error
}

func (r *catalogRepoImpl) CreateProduct(ctx context.Context, tx *gorm.DB, product *model.Product) error {
	return pick(r.db, tx).WithContext(ctx).Create(product).Error
}

func (r *catalogRepoImpl) ListProducts(ctx context.Context, storeID uint, page Page) ([]model.Product, int64, error) {
	page = page.Normalize(20)
	query := r.db.WithContext(ctx).Model(&model.Product{}).Where("is_active = ?", true)
	if storeID != 0 {
		query = query.Where("store_id = ?", storeID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var products []model.Product
	err := query.Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&products).Error
	return products, total, err
}

func (r *catalogRepoImpl) ApplyApproval(ctx context.Context, tx *gorm.DB, productID, storeID uint, qty int) error {
	db := pick(r.db, tx).WithContext(ctx)
	// Every right-hand side sees the pre-update row.
	result := db.Model(&model.Product{}).Where("id = ?", productID).Updates(map[string]any{
		"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
		"is_in_stock":    gorm.Expr("CASE WHEN stock_quantity - ? <= 0 THEN ? ELSE is_in_stock END", qty, false),
		"total_orders":   gorm.Expr("total_orders + 1"),
	})
	if err := rowsOrNotFound(result, "product"); err != nil {
		return fmt.Errorf("apply approval to product %d: %w", productID, err)
	}
	result = db.Model(&model.Store{}).Where("id = ?", storeID).
		Update("total_orders", gorm.Expr("total_orders + 1"))
	if err := rowsOrNotFound(result, "store"); err != nil {
		return fmt.Errorf("apply approval to store %d: %w", storeID, err)
	}
	return nil
}

func (r *catalogRepoImpl) RevertApproval(ctx context.Context, tx *gorm.DB, productID, storeID uint, qty int) error {
	db := pick(r.db, tx).WithContext(ctx)
	result := db.Model(&model.Product{}).Where("id = ?", productID).Updates(map[string]any{
		"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
		"is_in_stock":    gorm.Expr("CASE WHEN stock_quantity + ? > 0 THEN ? ELSE is_in_stock END", qty, true),
		"total_orders":   gorm.Expr("CASE WHEN total_orders > 0 THEN total_orders - 1 ELSE 0 END"),
	})
	if err := rowsOrNotFound(result, "product"); err != nil {
		return fmt.Errorf("revert approval on product %d: %w", productID, err)
	}
	result = db.Model(&model.Store{}).Where("id = ?", storeID).
		Update("total_orders", gorm.Expr("CASE WHEN total_orders > 0 THEN total_orders - 1 ELSE 0 END"))
	if err := rowsOrNotFound(result, "store"); err != nil {
		return fmt.Errorf("revert approval on store %d: %w", storeID, err)
	}
	return nil
}

func (r *catalogRepoImpl) SetProductRating(ctx context.Context, tx *gorm.DB, productID uint, rating float64, total int) error {
	result := pick(r.db, tx).WithContext(ctx).Model(&model.Product{}).Where("id = ?", productID).
		Updates(map[string]any{"rating": rating, "total_reviews": total})
	return rowsOrNotFound(result, "product")
}

func (r *catalogRepoImpl) ProductRatings(ctx context.Context, tx *gorm.DB, storeID uint) ([]float64, error) {
	var ratings []float64
	err := pick(r.db, tx).WithContext(ctx).Model(&model.Product{}).
		Where("store_id = ?", storeID).
		Pluck("rating", &ratings).Error
	return ratings, err
}

func (r *catalogRepoImpl) SetStoreRating(ctx context.Context, tx *gorm.DB, storeID uint, rating float64, delta int) error {
	result := pick(r.db, tx).WithContext(ctx).Model(&model.Store{}).Where("id = ?", storeID).
		Updates(map[string]any{
			"rating":        rating,
			"total_reviews": gorm.Expr("CASE WHEN total_reviews + ? < 0 THEN 0 ELSE total_reviews + ? END", delta, delta),
		})
	return rowsOrNotFound(result, "store")
}

func (r *catalogRepoImpl) Count(ctx context.Context, m any, where string, args ...any) (int64, error) {
	var n int64
	query := r.db.WithContext(ctx).Model(m)
	if where != "" {
		query = query.Where(where, args...)
	}
	err := query.Count(&n).Error
	return n, err
}

func rowsOrNotFound(result *gorm.DB, what string) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, what)
	}
	return nil
}
