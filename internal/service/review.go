package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"campusmart/internal/apperr"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"gorm.io/gorm"
)

// reviewEligible is the set of order states that allow a review.
var reviewEligible = []model.OrderStatus{model.OrderCompleted}

type CreateReviewInput struct {
	ProductID uint
	OrderID   uint
	Rating    int
	Comment   string
}

type ReviewPage struct {
	Reviews []model.Review `json:"reviews"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Total   int64          `json:"total"`
	Pages   int            `json:"pages"`
}

type ReviewService interface {
	Create(ctx context.Context, userID uint, in CreateReviewInput) (*model.Review, error)
	Delete(ctx context.Context, userID, reviewID uint) error
	ListForProduct(ctx context.Context, productID uint, page repository.Page) (*ReviewPage, error)
}

type reviewServiceImpl struct {
	db      *gorm.DB
	reviews repository.ReviewRepository
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	notify  NotificationService
	log     *slog.Logger
}

func NewReviewService(db *gorm.DB, reviews repository.ReviewRepository, orders repository.OrderRepository,
	catalog repository.CatalogRepository, notify NotificationService, log *slog.Logger) ReviewService {
	return &reviewServiceImpl{db: db, reviews: reviews, orders: orders, catalog: catalog, notify: notify, log: log}
}

func (s *reviewServiceImpl) Create(ctx context.Context, userID uint, in CreateReviewInput) (*model.Review, error) {
	if in.ProductID == 0 {
		return nil, apperr.Validation("product_id is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}

	var (
		review *model.Review
		note   *model.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.catalog.FindProduct(ctx, tx, in.ProductID)
		if err != nil {
			return err
		}
		order, err := s.orders.FindReviewable(ctx, tx, userID, product.ID, in.OrderID, reviewEligible)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Forbidden("you must complete an order for this product before reviewing")
		}
		if err != nil {
			return err
		}
		dup, err := s.reviews.Exists(ctx, tx, userID, product.ID, order.ID)
		if err != nil {
			return err
		}
		if dup {
			return apperr.Conflict("you have already reviewed this order")
		}

		review = &model.Review{
			ProductID:  product.ID,
			UserID:     userID,
			OrderID:    order.ID,
			Rating:     in.Rating,
			Comment:    strings.TrimSpace(in.Comment),
			IsApproved: true,
		}
		if err := s.reviews.Create(ctx, tx, review); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("you have already reviewed this order")
			}
			return fmt.Errorf("create review: %w", err)
		}

		n := product.TotalReviews + 1
		rating := round1((product.Rating*float64(product.TotalReviews) + float64(in.Rating)) / float64(n))
		if err := s.catalog.SetProductRating(ctx, tx, product.ID, rating, n); err != nil {
			return err
		}
		if err := s.refreshStoreRating(ctx, tx, product.StoreID, 1); err != nil {
			return err
		}

		if product.Store == nil {
			return nil
		}
		reviewer, err := s.catalog.FindUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		note, err = s.notify.Record(ctx, tx, product.Store.OwnerID,
			"New Review "+strings.Repeat("⭐", in.Rating),
			fmt.Sprintf("%s left a %d-star review on %s", reviewer.FirstName, in.Rating, product.Title),
			model.NotifyReview, model.JSONMap{"product_id": product.ID, "review_id": review.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.Deliver(ctx, note)
	return review, nil
}

func (s *reviewServiceImpl) Delete(ctx context.Context, userID, reviewID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		review, err := s.reviews.FindByID(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		if review.UserID != userID {
			return apperr.Forbidden("you can only delete your own reviews")
		}
		if err := s.reviews.Delete(ctx, tx, review.ID); err != nil {
			return err
		}

		product, err := s.catalog.FindProduct(ctx, tx, review.ProductID)
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rating, n := 0.0, 0
		if product.TotalReviews > 1 {
			n = product.TotalReviews - 1
			rating = round1((product.Rating*float64(product.TotalReviews) - float64(review.Rating)) / float64(n))
		}
		if err := s.catalog.SetProductRating(ctx, tx, product.ID, rating, n); err != nil {
			return err
		}
		return s.refreshStoreRating(ctx, tx, product.StoreID, -1)
	})
}

// refreshStoreRating sets the store rating to the mean of all its product
// ratings and moves total_reviews by delta.
func (s *reviewServiceImpl) refreshStoreRating(ctx context.Context, tx *gorm.DB, storeID uint, delta int) error {
	ratings, err := s.catalog.ProductRatings(ctx, tx, storeID)
	if err != nil {
		return err
	}
	if len(ratings) == 0 {
		return nil
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return s.catalog.SetStoreRating(ctx, tx, storeID, round1(sum/float64(len(ratings))), delta)
}

func (s *reviewServiceImpl) ListForProduct(ctx context.Context, productID uint, page repository.Page) (*ReviewPage, error) {
	if _, err := s.catalog.FindProduct(ctx, nil, productID); err != nil {
		return nil, err
	}
	page = page.Normalize(20)
	list, total, err := s.reviews.ListVisible(ctx, productID, page)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Review{}
	}
	return &ReviewPage{Reviews: list, Page: page.Page, Limit: page.Limit, Total: total, Pages: page.Pages(total)}, nil
}
