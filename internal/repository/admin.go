package repository

import (
	"context"
	"errors"

	"campusmart/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AdminRoleRepository interface {
	// Find returns nil without error when the user has no role row.
	Find(ctx context.Context, userID uint) (*model.AdminRole, error)
	Upsert(ctx context.Context, tx *gorm.DB, role *model.AdminRole) error
}

type adminRoleRepoImpl struct {
	db *gorm.DB
}

func NewAdminRoleRepository(db *gorm.DB) AdminRoleRepository {
	return &adminRoleRepoImpl{db: db}
}

func (r *adminRoleRepoImpl) Find(ctx context.Context, userID uint) (*model.AdminRole, error) {
	var role model.AdminRole
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *adminRoleRepoImpl) Upsert(ctx context.Context, tx *gorm.DB, role *model.AdminRole) error {
	return pick(r.db, tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permissions", "created_by", "updated_at"}),
	}).Create(role).Error
}
