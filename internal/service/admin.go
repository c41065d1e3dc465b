package service

import (
	"context"
	"fmt"
	"log/slog"

	"campusmart/internal/apperr"
	"campusmart/internal/auth"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"gorm.io/gorm"
)

type Dashboard struct {
	TotalUsers     int64                       `json:"total_users"`
	TotalSellers   int64                       `json:"total_sellers"`
	TotalStores    int64                       `json:"total_stores"`
	TotalProducts  int64                       `json:"total_products"`
	TotalOrders    int64                       `json:"total_orders"`
	OrdersByStatus map[model.OrderStatus]int64 `json:"orders_by_status"`
}

type AdminService interface {
	// Capabilities resolves what a user may do in the admin console.
	Capabilities(ctx context.Context, user *model.User) (auth.CapabilitySet, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
	ListOrders(ctx context.Context, status model.OrderStatus, page repository.Page) (*OrderPage, error)
	ListReviews(ctx context.Context, page repository.Page) (*ReviewPage, error)
	ToggleReviewHidden(ctx context.Context, reviewID uint) (*model.Review, error)
	ToggleUserActive(ctx context.Context, adminID, userID uint) (*model.User, error)
	// SetSupportCapabilities makes userID a support admin holding names.
	// Only a super admin may call it.
	SetSupportCapabilities(ctx context.Context, actor *model.User, userID uint, names []string) (*model.AdminRole, error)
}

type adminServiceImpl struct {
	db      *gorm.DB
	orders  repository.OrderRepository
	reviews repository.ReviewRepository
	catalog repository.CatalogRepository
	roles   repository.AdminRoleRepository
	notify  NotificationService
	log     *slog.Logger
}

func NewAdminService(db *gorm.DB, orders repository.OrderRepository, reviews repository.ReviewRepository,
	catalog repository.CatalogRepository, roles repository.AdminRoleRepository, notify NotificationService, log *slog.Logger) AdminService {
	return &adminServiceImpl{
		db:      db,
		orders:  orders,
		reviews: reviews,
		catalog: catalog,
		roles:   roles,
		notify:  notify,
		log:     log,
	}
}

func (s *adminServiceImpl) Capabilities(ctx context.Context, user *model.User) (auth.CapabilitySet, error) {
	if user == nil || !user.IsActive {
		return 0, nil
	}
	switch user.Role {
	case model.RoleAdmin, model.RoleSuperAdmin:
		return auth.AllCapabilities, nil
	case model.RoleSupportAdmin:
		role, err := s.roles.Find(ctx, user.ID)
		if err != nil || role == nil {
			return 0, err
		}
		set, err := auth.ParseCapabilities(role.Permissions)
		if err != nil {
			// stored data predates a capability rename; grant nothing
			s.log.Warn("unreadable admin role", slog.Uint64("user_id", uint64(user.ID)), slog.Any("err", err))
			return 0, nil
		}
		return set, nil
	}
	return 0, nil
}

func (s *adminServiceImpl) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		d   Dashboard
		err error
	)
	if d.TotalUsers, err = s.catalog.Count(ctx, &model.User{}, "is_active = ?", true); err != nil {
		return nil, err
	}
	if d.TotalSellers, err = s.catalog.Count(ctx, &model.User{}, "is_seller = ?", true); err != nil {
		return nil, err
	}
	if d.TotalStores, err = s.catalog.Count(ctx, &model.Store{}, "is_active = ?", true); err != nil {
		return nil, err
	}
	if d.TotalProducts, err = s.catalog.Count(ctx, &model.Product{}, "is_active = ?", true); err != nil {
		return nil, err
	}
	if d.OrdersByStatus, err = s.orders.CountByStatus(ctx); err != nil {
		return nil, err
	}
	for _, n := range d.OrdersByStatus {
		d.TotalOrders += n
	}
	return &d, nil
}

func (s *adminServiceImpl) ListOrders(ctx context.Context, status model.OrderStatus, page repository.Page) (*OrderPage, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown status %q", status)
	}
	page = page.Normalize(20)
	orders, total, err := s.orders.List(ctx, repository.OrderQuery{Status: status, Page: page})
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return &OrderPage{Orders: orders, Page: page.Page, Limit: page.Limit, Total: total, Pages: page.Pages(total)}, nil
}

func (s *adminServiceImpl) ListReviews(ctx context.Context, page repository.Page) (*ReviewPage, error) {
	page = page.Normalize(20)
	list, total, err := s.reviews.ListAll(ctx, page)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Review{}
	}
	return &ReviewPage{Reviews: list, Page: page.Page, Limit: page.Limit, Total: total, Pages: page.Pages(total)}, nil
}

func (s *adminServiceImpl) ToggleReviewHidden(ctx context.Context, reviewID uint) (*model.Review, error) {
	return s.reviews.ToggleHidden(ctx, reviewID)
}

func (s *adminServiceImpl) ToggleUserActive(ctx context.Context, adminID, userID uint) (*model.User, error) {
	if adminID == userID {
		return nil, apperr.Validation("cannot change your own account status")
	}
	var (
		user *model.User
		note *model.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = s.catalog.FindUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		user.IsActive = !user.IsActive
		if err := s.catalog.UpdateUser(ctx, tx, user.ID, map[string]any{"is_active": user.IsActive}); err != nil {
			return err
		}
		state := "suspended"
		if user.IsActive {
			state = "activated"
		}
		note, err = s.notify.Record(ctx, tx, user.ID, "Account "+state,
			fmt.Sprintf("Your account has been %s by an administrator.", state),
			model.NotifyAdmin, model.JSONMap{"is_active": user.IsActive})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.Deliver(ctx, note)
	return user, nil
}

func (s *adminServiceImpl) SetSupportCapabilities(ctx context.Context, actor *model.User, userID uint, names []string) (*model.AdminRole, error) {
	if actor == nil || actor.Role != model.RoleSuperAdmin {
		return nil, apperr.Forbidden("super admin access required")
	}
	set, err := auth.ParseCapabilities(names)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if set.Empty() {
		return nil, apperr.Validation("at least one capability is required")
	}

	role := &model.AdminRole{UserID: userID, Permissions: set.Names(), CreatedBy: actor.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.catalog.FindUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if target.Role == model.RoleAdmin || target.Role == model.RoleSuperAdmin {
			return apperr.InvalidState("user is already a full admin")
		}
		if err := s.catalog.UpdateUser(ctx, tx, target.ID, map[string]any{"role": model.RoleSupportAdmin}); err != nil {
			return err
		}
		return s.roles.Upsert(ctx, tx, role)
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}
