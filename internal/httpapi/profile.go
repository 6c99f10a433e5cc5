package httpapi

import (
	"net/http"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/services/profile"

	"github.com/gin-gonic/gin"
)

type createProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) createProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	p, err := h.profiles.CreateProfile(c.Request.Context(), c.Param("license_id"), req.Name)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (h *Handler) getProfile(c *gin.Context) {
	p, err := h.profiles.GetProfile(c.Request.Context(), c.Param("profile_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) listProfiles(c *gin.Context) {
	profiles, err := h.profiles.ListProfiles(c.Request.Context(), c.Param("license_id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

// rightsBody is the wire form of one feature's rights.
type rightsBody struct {
	View   bool `json:"view"`
	Add    bool `json:"add"`
	Change bool `json:"change"`
	Delete bool `json:"delete"`
	Print  bool `json:"print"`
}

func (b rightsBody) rights() profile.Rights {
	var r profile.Rights
	if b.View {
		r |= profile.RightView
	}
	if b.Add {
		r |= profile.RightAdd
	}
	if b.Change {
		r |= profile.RightChange
	}
	if b.Delete {
		r |= profile.RightDelete
	}
	if b.Print {
		r |= profile.RightPrint
	}
	return r
}

func newRightsBody(r profile.Rights) rightsBody {
	return rightsBody{
		View:   r.Has(profile.RightView),
		Add:    r.Has(profile.RightAdd),
		Change: r.Has(profile.RightChange),
		Delete: r.Has(profile.RightDelete),
		Print:  r.Has(profile.RightPrint),
	}
}

func (h *Handler) listGrants(c *gin.Context) {
	grants, err := h.profiles.ListGrants(c.Request.Context(), c.Param("profile_id"))
	if err != nil {
		fail(c, err)
		return
	}

	body := make(map[string]rightsBody, len(grants))
	for _, g := range grants {
		body[g.FeatureID] = newRightsBody(g.Rights())
	}

	c.JSON(http.StatusOK, gin.H{"grants": body})
}

type reconcileGrantsRequest struct {
	Grants map[string]rightsBody `json:"grants"`
}

func (h *Handler) reconcileGrants(c *gin.Context) {
	var req reconcileGrantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	desired := make(map[string]profile.Rights, len(req.Grants))
	for featureID, body := range req.Grants {
		desired[featureID] = body.rights()
	}

	result, err := h.profiles.ReconcileGrants(c.Request.Context(), c.Param("profile_id"), desired)
	if err != nil {
		fail(c, err)
		return
	}

	reconcileResponse(c, result)
}
