package permission

import (
	"context"
	"sort"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/repository"
	"licensing-controlplane/services/catalog"
	"licensing-controlplane/services/entitlement"
	"licensing-controlplane/services/profile"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PermissionSet is the compiled view of a user's rights under one license:
// a feature→bitmask map and the distinct modules those features span. It is
// what the token service embeds as claims.
type PermissionSet struct {
	Features  map[string]profile.Rights `json:"features"`
	ModuleIDs []string                  `json:"module_ids"`
}

// Empty reports whether the set grants nothing.
func (p *PermissionSet) Empty() bool {
	return len(p.Features) == 0
}

// Compiler reads a user's bound profile and packs its grants into a
// PermissionSet.
type Compiler struct {
	db       *gorm.DB
	catalog  *catalog.Reader
	bindings repository.Repository[entitlement.ProfileUser]
	grants   repository.Repository[profile.FeatureGrant]
	cache    *Cache
}

type CompilerParams struct {
	fx.In
	DB      *gorm.DB
	Catalog *catalog.Reader
	Cache   *Cache `optional:"true"`
}

func NewCompiler(p CompilerParams) *Compiler {
	return &Compiler{
		db:       p.DB,
		catalog:  p.Catalog,
		bindings: repository.ProvideStore[entitlement.ProfileUser](p.DB),
		grants:   repository.ProvideStore[profile.FeatureGrant](p.DB),
		cache:    p.Cache,
	}
}

// Compile resolves the user's profile under the license and packs every
// grant into the bitmask map. A user with no bound profile compiles to an
// empty set, not an error: no profile means no permissions. Modules are
// derived from granted features only; an entitled module with zero granted
// features is not reported.
func (c *Compiler) Compile(ctx context.Context, userID, licenseID string) (*PermissionSet, error) {
	if c.cache != nil {
		if set, ok := c.cache.Get(ctx, licenseID, userID); ok {
			return set, nil
		}
	}

	set, err := c.compile(ctx, userID, licenseID)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(ctx, licenseID, userID, set)
	}

	return set, nil
}

func (c *Compiler) compile(ctx context.Context, userID, licenseID string) (*PermissionSet, error) {
	set := &PermissionSet{Features: map[string]profile.Rights{}}

	binding, err := c.bindings.FindOne(ctx, &entitlement.ProfileUser{LicenseID: licenseID, UserID: userID})
	if err != nil {
		zap.L().Error("failed query profile binding", zap.Error(err))
		return nil, errutil.Internal("failed to resolve profile binding", errutil.WithErr(err))
	}
	if binding == nil {
		return set, nil
	}

	grants, err := c.grants.Find(ctx, &profile.FeatureGrant{ProfileID: binding.ProfileID})
	if err != nil {
		zap.L().Error("failed query feature grants", zap.Error(err))
		return nil, errutil.Internal("failed to load feature grants", errutil.WithErr(err))
	}

	featureIDs := make([]string, 0, len(grants))
	for _, g := range grants {
		rights := g.Rights()
		if rights == 0 {
			continue
		}
		set.Features[g.FeatureID] = rights
		featureIDs = append(featureIDs, g.FeatureID)
	}

	if len(featureIDs) == 0 {
		return set, nil
	}

	features, err := c.catalog.ListFeatures(ctx, featureIDs)
	if err != nil {
		return nil, err
	}

	moduleSet := make(map[string]struct{}, len(features))
	for _, f := range features {
		moduleSet[f.ModuleID] = struct{}{}
	}

	set.ModuleIDs = make([]string, 0, len(moduleSet))
	for id := range moduleSet {
		set.ModuleIDs = append(set.ModuleIDs, id)
	}
	sort.Strings(set.ModuleIDs)

	return set, nil
}
