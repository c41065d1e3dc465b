// Package middleware holds the gin middleware shared by all API routes.
package middleware

import (
	"strings"

	"campusmart/internal/apperr"
	"campusmart/internal/auth"
	"campusmart/internal/model"
	"campusmart/internal/repository"
	"campusmart/internal/service"

	"github.com/gin-gonic/gin"
)

const userKey = "campusmart.user"

// RequireAuth resolves the Bearer token to an active user and stores it on
// the context for handlers.
func RequireAuth(tokens *auth.TokenManager, users repository.CatalogRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			Abort(c, apperr.Unauthorized("missing bearer token"))
			return
		}
		userID, err := tokens.Parse(raw)
		if err != nil {
			Abort(c, apperr.Unauthorized("invalid or expired token"))
			return
		}
		user, err := users.FindUser(c.Request.Context(), nil, userID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				Abort(c, apperr.Unauthorized("account not found"))
				return
			}
			Abort(c, err)
			return
		}
		if !user.IsActive {
			Abort(c, apperr.Forbidden("account is deactivated"))
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireCapability admits staff holding want. It must run after RequireAuth.
func RequireCapability(admin service.AdminService, want auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			Abort(c, apperr.Unauthorized("authentication required"))
			return
		}
		caps, err := admin.Capabilities(c.Request.Context(), user)
		if err != nil {
			Abort(c, err)
			return
		}
		if !caps.Has(want) {
			Abort(c, apperr.Forbidden("%s access required", want))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user set by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Abort ends the request with err mapped onto the response envelope.
// Internal errors are attached to the context for the request logger.
func Abort(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()
	if kind == apperr.KindInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code": status,
		"msg":  apperr.Message(err),
		"data": gin.H{"error": kind.Code()},
	})
}
