package permission

import (
	"licensing-controlplane/services/entitlement"

	"go.uber.org/fx"
)

var Module = fx.Module("permission.module",
	CacheModule,
	fx.Provide(NewCompiler),
)

// CacheModule wires the cache and its invalidator hook alone, for processes
// that carry no database connection.
var CacheModule = fx.Module("permission.cache",
	fx.Provide(
		NewCache,
		fx.Annotate(
			func(c *Cache) *Cache { return c },
			fx.As(new(entitlement.CacheInvalidator)),
		),
	),
)
