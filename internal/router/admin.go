package router

import (
	"campusmart/internal/service"

	"github.com/gin-gonic/gin"
)

func dashboard(admin service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := admin.Dashboard(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, d)
	}
}

func adminListOrders(admin service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, valid := statusQuery(c)
		if !valid {
			return
		}
		page, err := admin.ListOrders(c.Request.Context(), status, pageQuery(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, page)
	}
}

func adminListReviews(admin service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := admin.ListReviews(c.Request.Context(), pageQuery(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, page)
	}
}

func toggleReviewHidden(admin service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		r, err := admin.ToggleReviewHidden(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, r)
	}
}

func toggleUserActive(admin service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		u, err := admin.ToggleUserActive(c.Request.Context(), me(c).ID, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, u)
	}
}

// setCapabilities is guarded inside the service: only a super admin passes.
func setCapabilities(admin service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := idParam(c, "id")
		if !valid {
			return
		}
		var req struct {
			Capabilities []string `json:"capabilities"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		role, err := admin.SetSupportCapabilities(c.Request.Context(), me(c), id, req.Capabilities)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, role)
	}
}

func myCapabilities(admin service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		caps, err := admin.Capabilities(c.Request.Context(), me(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"role": me(c).Role, "capabilities": caps.Names()})
	}
}
