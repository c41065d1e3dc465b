// Package router wires the HTTP API onto gin.
package router

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"campusmart/internal/apperr"
	"campusmart/internal/auth"
	"campusmart/internal/middleware"
	"campusmart/internal/model"
	"campusmart/internal/repository"
	"campusmart/internal/service"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// Deps is everything the handlers need. Redis may be nil.
type Deps struct {
	Tokens        *auth.TokenManager
	Users         repository.CatalogRepository
	Orders        service.OrderService
	Chat          service.ChatService
	Notifications service.NotificationService
	Reviews       service.ReviewService
	Catalog       service.CatalogService
	Admin         service.AdminService
	Socket        http.Handler
	Redis         *rd.Client
	RateLimit     int
	RateWindow    time.Duration
	Log           *slog.Logger
}

// Setup registers every HTTP route.
func Setup(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestLogger(d.Log))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	if d.Socket != nil {
		r.GET("/ws", gin.WrapH(d.Socket))
	}

	// public reads
	public := r.Group("/api/v1")
	public.GET("/reviews/product/:id", listProductReviews(d.Reviews))

	api := r.Group("/api/v1",
		middleware.RequireAuth(d.Tokens, d.Users),
		middleware.RedisRateLimit(d.Redis, d.RateLimit, d.RateWindow, d.Log),
	)

	orders := api.Group("/orders")
	orders.POST("", createOrder(d.Orders))
	orders.GET("", listBuyerOrders(d.Orders))
	orders.GET("/seller", listSellerOrders(d.Orders))
	orders.GET("/:id", getOrder(d.Orders))
	orders.POST("/:id/confirm-payment", confirmPayment(d.Orders))
	orders.POST("/:id/approve", approveOrder(d.Orders))
	orders.POST("/:id/reject", rejectOrder(d.Orders))
	orders.POST("/:id/complete", completeOrder(d.Orders))
	orders.POST("/:id/cancel", cancelOrder(d.Orders))

	chat := api.Group("/chat")
	chat.GET("/conversations", listConversations(d.Chat))
	chat.POST("/start", startChat(d.Chat))
	chat.GET("/:id/messages", listMessages(d.Chat))
	chat.POST("/:id/send", sendMessage(d.Chat))

	notes := api.Group("/notifications")
	notes.GET("", listNotifications(d.Notifications))
	notes.POST("/read-all", markAllNotificationsRead(d.Notifications))
	notes.POST("/:id/read", markNotificationRead(d.Notifications))

	reviews := api.Group("/reviews")
	reviews.POST("", createReview(d.Reviews))
	reviews.DELETE("/:id", deleteReview(d.Reviews))

	api.GET("/products", listProducts(d.Catalog))
	api.POST("/products", createProduct(d.Catalog))

	admin := api.Group("/admin")
	admin.GET("/dashboard", middleware.RequireCapability(d.Admin, auth.CapDashboard), dashboard(d.Admin))
	admin.GET("/orders", middleware.RequireCapability(d.Admin, auth.CapOrders), adminListOrders(d.Admin))
	admin.GET("/reviews", middleware.RequireCapability(d.Admin, auth.CapReviews), adminListReviews(d.Admin))
	admin.POST("/reviews/:id/toggle-hidden", middleware.RequireCapability(d.Admin, auth.CapReviews), toggleReviewHidden(d.Admin))
	admin.POST("/users/:id/toggle-active", middleware.RequireCapability(d.Admin, auth.CapUsers), toggleUserActive(d.Admin))
	admin.PUT("/users/:id/capabilities", setCapabilities(d.Admin))
	admin.GET("/me/capabilities", myCapabilities(d.Admin))
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "ok", "data": data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"code": 0, "msg": "ok", "data": data})
}

func fail(c *gin.Context, err error) {
	middleware.Abort(c, err)
}

func badRequest(c *gin.Context, err error) {
	fail(c, apperr.Validation("%s", err.Error()))
}

// idParam reads a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		fail(c, apperr.Validation("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func pageQuery(c *gin.Context) repository.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return repository.Page{Page: page, Limit: limit}
}

// statusQuery returns the ?status filter; an unknown value is rejected.
func statusQuery(c *gin.Context) (model.OrderStatus, bool) {
	s := model.OrderStatus(c.Query("status"))
	if s == "" || s.Valid() {
		return s, true
	}
	fail(c, apperr.Validation("unknown status %q", s))
	return "", false
}

func me(c *gin.Context) *model.User {
	return middleware.CurrentUser(c)
}
