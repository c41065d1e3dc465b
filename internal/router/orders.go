package router

import (
	"errors"
	"io"

	"campusmart/internal/service"

	"github.com/gin-gonic/gin"
)

func createOrder(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProductID uint   `json:"product_id" binding:"required,min=1"`
			Quantity  int    `json:"quantity" binding:"omitempty,min=1"`
			Note      string `json:"buyer_note" binding:"max=1000"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		placed, err := orders.Create(c.Request.Context(), me(c).ID, service.CreateOrderInput{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Note:      req.Note,
		})
		if err != nil {
			fail(c, err)
			return
		}
		created(c, placed)
	}
}

func listBuyerOrders(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, valid := statusQuery(c)
		if !valid {
			return
		}
		page, err := orders.ListAsBuyer(c.Request.Context(), me(c).ID, status, pageQuery(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, page)
	}
}

func listSellerOrders(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, valid := statusQuery(c)
		if !valid {
			return
		}
		page, err := orders.ListAsSeller(c.Request.Context(), me(c).ID, status, pageQuery(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, page)
	}
}

func getOrder(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		o, err := orders.Get(c.Request.Context(), me(c).ID, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, o)
	}
}

func confirmPayment(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		res, err := orders.ConfirmPayment(c.Request.Context(), me(c).ID, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, res)
	}
}

func approveOrder(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		o, err := orders.Approve(c.Request.Context(), me(c).ID, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, o)
	}
}

// reasonBody is shared by reject and cancel; the body is optional.
type reasonBody struct {
	Reason string `json:"reason" binding:"max=500"`
}

func bindReason(c *gin.Context) (string, bool) {
	var req reasonBody
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return "", false
	}
	return req.Reason, true
}

func rejectOrder(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		reason, valid := bindReason(c)
		if !valid {
			return
		}
		o, err := orders.Reject(c.Request.Context(), me(c).ID, id, reason)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, o)
	}
}

func completeOrder(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		o, err := orders.Complete(c.Request.Context(), me(c).ID, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, o)
	}
}

func cancelOrder(orders service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		reason, valid := bindReason(c)
		if !valid {
			return
		}
		o, err := orders.Cancel(c.Request.Context(), me(c).ID, id, reason)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, o)
	}
}
