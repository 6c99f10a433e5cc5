package httpapi

import (
	"net/http"

	"licensing-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type bindUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) bindUser(c *gin.Context) {
	var req bindUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	binding, err := h.entitlements.BindUserToProfile(c.Request.Context(), c.Param("profile_id"), req.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, binding)
}

// rebindUser moves the user onto this profile, detaching any other profile
// binding the user holds anywhere.
func (h *Handler) rebindUser(c *gin.Context) {
	binding, err := h.entitlements.RebindUserToSingleProfile(c.Request.Context(), c.Param("profile_id"), c.Param("user_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, binding)
}

func (h *Handler) unbindUser(c *gin.Context) {
	if err := h.entitlements.UnbindUserFromProfile(c.Request.Context(), c.Param("profile_id"), c.Param("user_id")); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) listProfileMembers(c *gin.Context) {
	members, err := h.entitlements.ListProfileMembers(c.Request.Context(), c.Param("profile_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *Handler) reconcileProfileMembers(c *gin.Context) {
	var req reconcileIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	result, err := h.entitlements.ReconcileProfileMembers(c.Request.Context(), c.Param("profile_id"), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}

	reconcileResponse(c, result)
}

func (h *Handler) getBoundProfile(c *gin.Context) {
	binding, err := h.entitlements.BoundProfile(c.Request.Context(), c.Param("license_id"), c.Param("user_id"))
	if err != nil {
		fail(c, err)
		return
	}

	if binding == nil {
		c.JSON(http.StatusOK, gin.H{"binding": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"binding": binding})
}
