package router

import (
	"strconv"

	"campusmart/internal/service"

	"github.com/gin-gonic/gin"
)

func listNotifications(notes service.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))
		list, err := notes.List(c.Request.Context(), me(c).ID, unreadOnly, pageQuery(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, list)
	}
}

func markNotificationRead(notes service.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		if err := notes.MarkRead(c.Request.Context(), me(c).ID, id); err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"id": id, "is_read": true})
	}
}

func markAllNotificationsRead(notes service.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := notes.MarkAllRead(c.Request.Context(), me(c).ID)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"updated": n})
	}
}
