package httpapi

import (
	"net/http"

	"licensing-controlplane/pkg/config"
	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/health"
	"licensing-controlplane/pkg/middleware"
	"licensing-controlplane/pkg/reconcile"
	"licensing-controlplane/services/entitlement"
	"licensing-controlplane/services/permission"
	"licensing-controlplane/services/profile"
	"licensing-controlplane/services/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewHandler,
		fx.Annotate(ProvideRouter, fx.As(new(http.Handler))),
	),
)

// Handler carries the admin API's service dependencies.
type Handler struct {
	health       health.HealthService
	entitlements *entitlement.Service
	profiles     *profile.Service
	compiler     *permission.Compiler
	tokens       *token.Service
}

type Params struct {
	fx.In
	Health       health.HealthService
	Entitlements *entitlement.Service
	Profiles     *profile.Service
	Compiler     *permission.Compiler
	Tokens       *token.Service
}

func NewHandler(p Params) *Handler {
	return &Handler{
		health:       p.Health,
		entitlements: p.Entitlements,
		profiles:     p.Profiles,
		compiler:     p.Compiler,
		tokens:       p.Tokens,
	}
}

// ProvideRouter builds the gin engine with every admin and runtime route.
func ProvideRouter(cfg *config.Config, h *Handler) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.APIKey(), actorMiddleware())

	r.GET("/healthz", h.health.Liveness)
	r.GET("/readyz", h.health.Readiness)

	v1 := r.Group("/v1")

	v1.POST("/tokens", h.issueToken)

	licenses := v1.Group("/licenses/:license_id")
	{
		licenses.GET("/modules", h.listModules)
		licenses.POST("/modules", h.addModule)
		licenses.PUT("/modules", h.reconcileModules)
		licenses.DELETE("/modules/:module_id", h.removeModule)

		licenses.GET("/features", h.listFeatures)
		licenses.POST("/features", h.addFeature)
		licenses.PUT("/features", h.reconcileFeatures)
		licenses.DELETE("/features/:feature_id", h.removeFeature)

		licenses.GET("/users", h.listUsers)
		licenses.POST("/users", h.addUser)
		licenses.PUT("/users", h.reconcileUsers)
		licenses.PATCH("/users/:user_id", h.updateUserStatus)
		licenses.DELETE("/users/:user_id", h.removeUser)
		licenses.GET("/users/:user_id/permissions", h.getPermissions)
		licenses.GET("/users/:user_id/profile", h.getBoundProfile)

		licenses.GET("/profiles", h.listProfiles)
		licenses.POST("/profiles", h.createProfile)

		licenses.GET("/events", h.listEvents)
	}

	profiles := v1.Group("/profiles/:profile_id")
	{
		profiles.GET("", h.getProfile)
		profiles.GET("/grants", h.listGrants)
		profiles.PUT("/grants", h.reconcileGrants)

		profiles.GET("/members", h.listProfileMembers)
		profiles.POST("/members", h.bindUser)
		profiles.PUT("/members", h.reconcileProfileMembers)
		profiles.PUT("/members/:user_id", h.rebindUser)
		profiles.DELETE("/members/:user_id", h.unbindUser)
	}

	return r
}

// actorMiddleware stamps the administrative caller onto the request context
// so graph mutations can attribute their audit rows.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := c.GetHeader("X-Actor"); actor != "" {
			ctx := entitlement.WithActor(c.Request.Context(), actor)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func fail(c *gin.Context, err error) {
	code, body := errutil.ToHTTP(err)
	c.JSON(code, body)
}

// reconcileResponse maps an aggregate reconciliation outcome to a response:
// 200 for no-op and full success, 207 when only part of the plan applied
// and 422 when every attempted item failed.
func reconcileResponse(c *gin.Context, result *reconcile.Result[string]) {
	status := result.Status()

	code := http.StatusOK
	switch status {
	case reconcile.PartialSuccess:
		code = http.StatusMultiStatus
	case reconcile.Failure:
		code = http.StatusUnprocessableEntity
	}

	c.JSON(code, gin.H{
		"status":   status,
		"applied":  result.Applied,
		"failed":   result.Failed,
		"kept":     result.Kept,
		"warnings": result.Warnings,
	})
}
