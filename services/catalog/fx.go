package catalog

import (
	"go.uber.org/fx"
)

var ServiceModule = fx.Module("catalog.module",
	fx.Provide(NewReader),
)
