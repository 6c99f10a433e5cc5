package catalog

import (
	"context"
	"time"

	"licensing-controlplane/pkg/db/option"
	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/repository"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reader resolves reference entities for the entitlement engine. The engine
// never mutates the catalog; licenses, modules, features and users arrive via
// administrative CRUD elsewhere.
type Reader struct {
	db           *gorm.DB
	licenses     repository.Repository[License]
	modules      repository.Repository[Module]
	features     repository.Repository[Feature]
	users        repository.Repository[User]
	applications repository.Repository[Application]
}

type ReaderParams struct {
	fx.In
	DB *gorm.DB
}

func NewReader(p ReaderParams) *Reader {
	return &Reader{
		db:           p.DB,
		licenses:     repository.ProvideStore[License](p.DB),
		modules:      repository.ProvideStore[Module](p.DB),
		features:     repository.ProvideStore[Feature](p.DB),
		users:        repository.ProvideStore[User](p.DB),
		applications: repository.ProvideStore[Application](p.DB),
	}
}

func (r *Reader) GetLicense(ctx context.Context, licenseID string) (*License, error) {
	license, err := r.licenses.FindOne(ctx, &License{ID: licenseID})
	if err != nil {
		zap.L().Error("failed query license by id", zap.String("license_id", licenseID), zap.Error(err))
		return nil, errutil.Internal("failed to get license", errutil.WithErr(err))
	}
	if license == nil {
		return nil, errutil.NotFound("license not found")
	}
	return license, nil
}

func (r *Reader) GetLicenseByKey(ctx context.Context, licenseKey string) (*License, error) {
	license, err := r.licenses.FindOne(ctx, &License{LicenseKey: licenseKey})
	if err != nil {
		zap.L().Error("failed query license by key", zap.Error(err))
		return nil, errutil.Internal("failed to get license", errutil.WithErr(err))
	}
	if license == nil {
		return nil, errutil.NotFound("license not found")
	}
	return license, nil
}

// RequireValidLicense resolves a license by key and rejects inactive, revoked
// or out-of-window licenses.
func (r *Reader) RequireValidLicense(ctx context.Context, licenseKey string) (*License, error) {
	license, err := r.GetLicenseByKey(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	if !license.Valid(time.Now()) {
		return nil, errutil.Forbidden("license is not active")
	}
	return license, nil
}

func (r *Reader) GetModule(ctx context.Context, moduleID string) (*Module, error) {
	module, err := r.modules.FindOne(ctx, &Module{ID: moduleID})
	if err != nil {
		zap.L().Error("failed query module by id", zap.String("module_id", moduleID), zap.Error(err))
		return nil, errutil.Internal("failed to get module", errutil.WithErr(err))
	}
	if module == nil {
		return nil, errutil.NotFound("module not found")
	}
	return module, nil
}

func (r *Reader) GetFeature(ctx context.Context, featureID string) (*Feature, error) {
	feature, err := r.features.FindOne(ctx, &Feature{ID: featureID})
	if err != nil {
		zap.L().Error("failed query feature by id", zap.String("feature_id", featureID), zap.Error(err))
		return nil, errutil.Internal("failed to get feature", errutil.WithErr(err))
	}
	if feature == nil {
		return nil, errutil.NotFound("feature not found")
	}
	return feature, nil
}

func (r *Reader) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := r.users.FindOne(ctx, &User{ID: userID})
	if err != nil {
		zap.L().Error("failed query user by id", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to get user", errutil.WithErr(err))
	}
	if user == nil {
		return nil, errutil.NotFound("user not found")
	}
	return user, nil
}

// ListFeatures resolves a batch of features in one round trip.
func (r *Reader) ListFeatures(ctx context.Context, featureIDs []string) ([]*Feature, error) {
	if len(featureIDs) == 0 {
		return nil, nil
	}

	features, err := r.features.Find(ctx, &Feature{}, option.WithIDIn(featureIDs))
	if err != nil {
		zap.L().Error("failed query features by ids", zap.Error(err))
		return nil, errutil.Internal("failed to list features", errutil.WithErr(err))
	}
	return features, nil
}

// ListModuleFeatures returns every catalog feature owned by a module.
func (r *Reader) ListModuleFeatures(ctx context.Context, moduleID string) ([]*Feature, error) {
	features, err := r.features.Find(ctx, &Feature{ModuleID: moduleID})
	if err != nil {
		zap.L().Error("failed query features by module", zap.String("module_id", moduleID), zap.Error(err))
		return nil, errutil.Internal("failed to list module features", errutil.WithErr(err))
	}
	return features, nil
}
