package httpapi

import (
	"net/http"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getPermissions(c *gin.Context) {
	set, err := h.compiler.Compile(c.Request.Context(), c.Param("user_id"), c.Param("license_id"))
	if err != nil {
		fail(c, err)
		return
	}

	features := make(map[string]rightsBody, len(set.Features))
	for featureID, rights := range set.Features {
		features[featureID] = newRightsBody(rights)
	}

	c.JSON(http.StatusOK, gin.H{
		"features":   features,
		"module_ids": set.ModuleIDs,
	})
}

type issueTokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// issueToken exchanges a license key and user id for a signed entitlement
// token. The license key travels in the X-API-Key header.
func (h *Handler) issueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	licenseKey := middleware.GetAPIKey(c.Request.Context())
	if licenseKey == "" {
		fail(c, errutil.Unauthorized("missing license key"))
		return
	}

	tok, err := h.tokens.IssueToken(c.Request.Context(), licenseKey, req.UserID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tok)
}
