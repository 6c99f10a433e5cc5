package entitlement

import (
	"licensing-controlplane/services/profile"

	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.module",
	fx.Provide(
		NewService,
		fx.Annotate(
			func(s *Service) *Service { return s },
			fx.As(new(profile.EntitlementChecker)),
		),
	),
)
