package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

type apiKeyKey struct{}

var APIKeyContextKey = apiKeyKey{}

const apiKeyHeader = "X-API-Key"

// APIKey lifts the caller's API key out of the request header into the
// request context so services do not touch transport types.
func APIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(apiKeyHeader); key != "" {
			ctx := context.WithValue(c.Request.Context(), APIKeyContextKey, key)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// GetAPIKey returns the API key carried by the context, or "".
func GetAPIKey(ctx context.Context) string {
	key, _ := ctx.Value(APIKeyContextKey).(string)
	return key
}
