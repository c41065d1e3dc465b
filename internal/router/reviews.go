package router

import (
	"campusmart/internal/service"

	"github.com/gin-gonic/gin"
)

func createReview(reviews service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProductID uint   `json:"product_id" binding:"required,min=1"`
			OrderID   uint   `json:"order_id"`
			Rating    int    `json:"rating"`
			Comment   string `json:"comment" binding:"max=2000"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		r, err := reviews.Create(c.Request.Context(), me(c).ID, service.CreateReviewInput{
			ProductID: req.ProductID,
			OrderID:   req.OrderID,
			Rating:    req.Rating,
			Comment:   req.Comment,
		})
		if err != nil {
			fail(c, err)
			return
		}
		created(c, r)
	}
}

func deleteReview(reviews service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		if err := reviews.Delete(c.Request.Context(), me(c).ID, id); err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"id": id})
	}
}

func listProductReviews(reviews service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		page, err := reviews.ListForProduct(c.Request.Context(), id, pageQuery(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, page)
	}
}
