package router

import (
	"campusmart/internal/model"
	"campusmart/internal/service"

	"github.com/gin-gonic/gin"
)

func listConversations(chat service.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := chat.ListConversations(c.Request.Context(), me(c).ID)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"conversations": list})
	}
}

func startChat(chat service.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID    uint  `json:"user_id" binding:"required,min=1"`
			ProductID *uint `json:"product_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		conv, err := chat.Start(c.Request.Context(), me(c).ID, req.UserID, req.ProductID)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, conv)
	}
}

func listMessages(chat service.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		page, err := chat.ListMessages(c.Request.Context(), me(c).ID, id, pageQuery(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, page)
	}
}

func sendMessage(chat service.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req struct {
			Content  string            `json:"content" binding:"max=5000"`
			Type     model.MessageType `json:"message_type"`
			MediaURL string            `json:"media_url" binding:"max=500"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		msg, err := chat.SendMessage(c.Request.Context(), me(c).ID, id, service.MessageInput{
			Content:  req.Content,
			Type:     req.Type,
			MediaURL: req.MediaURL,
		})
		if err != nil {
			fail(c, err)
			return
		}
		created(c, msg)
	}
}
