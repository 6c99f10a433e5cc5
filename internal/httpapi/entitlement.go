package httpapi

import (
	"net/http"

	"licensing-controlplane/pkg/db/pagination"
	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/services/entitlement"

	"github.com/gin-gonic/gin"
)

type addModuleRequest struct {
	ModuleID string `json:"module_id" binding:"required"`
}

func (h *Handler) addModule(c *gin.Context) {
	var req addModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	assoc, err := h.entitlements.AddModule(c.Request.Context(), c.Param("license_id"), req.ModuleID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, assoc)
}

func (h *Handler) removeModule(c *gin.Context) {
	if err := h.entitlements.RemoveModule(c.Request.Context(), c.Param("license_id"), c.Param("module_id")); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) listModules(c *gin.Context) {
	modules, err := h.entitlements.ListModules(c.Request.Context(), c.Param("license_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

type reconcileIDsRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) reconcileModules(c *gin.Context) {
	var req reconcileIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	result, err := h.entitlements.ReconcileModules(c.Request.Context(), c.Param("license_id"), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}

	reconcileResponse(c, result)
}

type addFeatureRequest struct {
	FeatureID string `json:"feature_id" binding:"required"`
}

func (h *Handler) addFeature(c *gin.Context) {
	var req addFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	assoc, err := h.entitlements.AddFeature(c.Request.Context(), c.Param("license_id"), req.FeatureID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, assoc)
}

func (h *Handler) removeFeature(c *gin.Context) {
	if err := h.entitlements.RemoveFeature(c.Request.Context(), c.Param("license_id"), c.Param("feature_id")); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) listFeatures(c *gin.Context) {
	features, err := h.entitlements.ListFeatures(c.Request.Context(), c.Param("license_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"features": features})
}

func (h *Handler) reconcileFeatures(c *gin.Context) {
	var req reconcileIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	result, err := h.entitlements.ReconcileFeatures(c.Request.Context(), c.Param("license_id"), req.IDs)
	if err != nil {
		fail(c, err)
		return
	}

	reconcileResponse(c, result)
}

type addUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Active *bool  `json:"active"`
	Policy string `json:"policy"`
}

func (h *Handler) policyOf(raw string) entitlement.CapacityPolicy {
	if raw == "" {
		return h.entitlements.DefaultCapacityPolicy()
	}
	return entitlement.ParseCapacityPolicy(raw)
}

func (h *Handler) addUser(c *gin.Context) {
	var req addUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	seat, err := h.entitlements.AddUser(c.Request.Context(), c.Param("license_id"), req.UserID, active, h.policyOf(req.Policy))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, seat)
}

type updateUserStatusRequest struct {
	Active *bool  `json:"active" binding:"required"`
	Policy string `json:"policy"`
}

func (h *Handler) updateUserStatus(c *gin.Context) {
	var req updateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	seat, err := h.entitlements.UpdateUserStatus(c.Request.Context(), c.Param("license_id"), c.Param("user_id"), *req.Active, h.policyOf(req.Policy))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, seat)
}

func (h *Handler) removeUser(c *gin.Context) {
	if err := h.entitlements.RemoveUser(c.Request.Context(), c.Param("license_id"), c.Param("user_id")); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) listUsers(c *gin.Context) {
	seats, err := h.entitlements.ListUsers(c.Request.Context(), c.Param("license_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": seats})
}

type reconcileUsersRequest struct {
	IDs    []string `json:"ids"`
	Policy string   `json:"policy"`
}

func (h *Handler) reconcileUsers(c *gin.Context) {
	var req reconcileUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	result, err := h.entitlements.ReconcileUsers(c.Request.Context(), c.Param("license_id"), req.IDs, h.policyOf(req.Policy))
	if err != nil {
		fail(c, err)
		return
	}

	reconcileResponse(c, result)
}

func (h *Handler) listEvents(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		fail(c, errutil.BadRequest(err.Error()))
		return
	}

	events, info, err := h.entitlements.ListEvents(c.Request.Context(), c.Param("license_id"), page)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "page_info": info})
}
