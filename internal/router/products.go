package router

import (
	"strconv"

	"campusmart/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// listProducts lists active products, optionally for one store.
func listProducts(catalog service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		storeID, _ := strconv.ParseUint(c.Query("store_id"), 10, 32)
		page, err := catalog.ListProducts(c.Request.Context(), uint(storeID), pageQuery(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, page)
	}
}

// createProduct lists a product in the caller's store.
func createProduct(catalog service.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title       string          `json:"title" binding:"required,max=200"`
			Description string          `json:"description"`
			Price       decimal.Decimal `json:"price"`
			Stock       int             `json:"stock_quantity" binding:"min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		p, err := catalog.CreateProduct(c.Request.Context(), me(c).ID, service.CreateProductInput{
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
		})
		if err != nil {
			fail(c, err)
			return
		}
		created(c, p)
	}
}
