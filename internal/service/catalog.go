package service

import (
	"context"
	"strings"

	"campusmart/internal/apperr"
	"campusmart/internal/model"
	"campusmart/internal/repository"

	"github.com/shopspring/decimal"
)

type CreateProductInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Stock       int
}

type ProductPage struct {
	Products []model.Product `json:"products"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
	Total    int64           `json:"total"`
	Pages    int             `json:"pages"`
}

// CatalogService is the thin product surface the order flow depends on.
type CatalogService interface {
	CreateProduct(ctx context.Context, sellerID uint, in CreateProductInput) (*model.Product, error)
	ListProducts(ctx context.Context, storeID uint, page repository.Page) (*ProductPage, error)
}

type catalogServiceImpl struct {
	catalog repository.CatalogRepository
}

func NewCatalogService(catalog repository.CatalogRepository) CatalogService {
	return &catalogServiceImpl{catalog: catalog}
}

func (s *catalogServiceImpl) CreateProduct(ctx context.Context, sellerID uint, in CreateProductInput) (*model.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if !in.Price.IsPositive() {
		return nil, apperr.Validation("price must be greater than 0")
	}
	if in.Stock < 0 {
		return nil, apperr.Validation("stock cannot be negative")
	}
	store, err := s.catalog.FindStoreByOwner(ctx, nil, sellerID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Forbidden("you need an active store to list products")
	}
	if err != nil {
		return nil, err
	}
	if !store.IsActive {
		return nil, apperr.Forbidden("you need an active store to list products")
	}
	p := &model.Product{
		StoreID:       store.ID,
		Title:         in.Title,
		Description:   strings.TrimSpace(in.Description),
		Price:         in.Price.Round(2),
		StockQuantity: in.Stock,
		IsInStock:     in.Stock > 0,
		IsActive:      true,
	}
	if err := s.catalog.CreateProduct(ctx, nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *catalogServiceImpl) ListProducts(ctx context.Context, storeID uint, page repository.Page) (*ProductPage, error) {
	page = page.Normalize(20)
	list, total, err := s.catalog.ListProducts(ctx, storeID, page)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Product{}
	}
	return &ProductPage{Products: list, Page: page.Page, Limit: page.Limit, Total: total, Pages: page.Pages(total)}, nil
}
