package profile

import (
	"context"
	"time"

	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/reconcile"
	"licensing-controlplane/pkg/repository"
	"licensing-controlplane/services/catalog"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntitlementChecker reports whether a license holds a feature association.
// The entitlement graph service implements it; grants may only reference
// features the profile's license is entitled to.
type EntitlementChecker interface {
	FeatureEntitled(ctx context.Context, licenseID, featureID string) (bool, error)
}

type Service struct {
	db           *gorm.DB
	node         *snowflake.Node
	catalog      *catalog.Reader
	entitlements EntitlementChecker
	profiles     repository.Repository[Profile]
	grants       repository.Repository[FeatureGrant]
}

type ServiceParams struct {
	fx.In
	DB           *gorm.DB
	Node         *snowflake.Node
	Catalog      *catalog.Reader
	Entitlements EntitlementChecker
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:           p.DB,
		node:         p.Node,
		catalog:      p.Catalog,
		entitlements: p.Entitlements,
		profiles:     repository.ProvideStore[Profile](p.DB),
		grants:       repository.ProvideStore[FeatureGrant](p.DB),
	}
}

func requestLogger(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

func (s *Service) CreateProfile(ctx context.Context, licenseID, name string) (*Profile, error) {
	zapLog := requestLogger(ctx)

	if name == "" {
		return nil, errutil.ValidationFailed("profile name is required")
	}

	if _, err := s.catalog.GetLicense(ctx, licenseID); err != nil {
		return nil, err
	}

	slugName := slug.Make(name)
	exist, err := s.profiles.FindOne(ctx, &Profile{LicenseID: licenseID, Slug: slugName})
	if err != nil {
		zapLog.Error("failed query profile by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing profile", errutil.WithErr(err))
	}
	if exist != nil {
		return nil, errutil.Conflict("profile already exists for this license")
	}

	now := time.Now()
	p := &Profile{
		ID:        s.node.Generate().String(),
		CreatedAt: now,
		UpdatedAt: now,
		LicenseID: licenseID,
		Name:      name,
		Slug:      slugName,
	}

	if err := s.profiles.Create(ctx, p); err != nil {
		zapLog.Error("failed to create profile", zap.Error(err))
		return nil, errutil.Internal("failed to create profile", errutil.WithErr(err))
	}

	return p, nil
}

func (s *Service) GetProfile(ctx context.Context, profileID string) (*Profile, error) {
	p, err := s.profiles.FindOne(ctx, &Profile{ID: profileID})
	if err != nil {
		requestLogger(ctx).Error("failed query profile by id", zap.Error(err))
		return nil, errutil.Internal("failed to get profile", errutil.WithErr(err))
	}
	if p == nil {
		return nil, errutil.NotFound("profile not found")
	}
	return p, nil
}

func (s *Service) ListProfiles(ctx context.Context, licenseID string) ([]*Profile, error) {
	profiles, err := s.profiles.Find(ctx, &Profile{LicenseID: licenseID})
	if err != nil {
		requestLogger(ctx).Error("failed query profiles by license", zap.Error(err))
		return nil, errutil.Internal("failed to list profiles", errutil.WithErr(err))
	}
	return profiles, nil
}

// ListGrants returns every feature grant held by a profile.
func (s *Service) ListGrants(ctx context.Context, profileID string) ([]*FeatureGrant, error) {
	grants, err := s.grants.Find(ctx, &FeatureGrant{ProfileID: profileID})
	if err != nil {
		requestLogger(ctx).Error("failed query grants by profile", zap.Error(err))
		return nil, errutil.Internal("failed to list grants", errutil.WithErr(err))
	}
	return grants, nil
}

// ReconcileGrants replaces a profile's grant set with the desired
// feature→rights map. Features granted zero rights are removed rather than
// kept as empty rows.
func (s *Service) ReconcileGrants(ctx context.Context, profileID string, desired map[string]Rights) (*reconcile.Result[string], error) {
	zapLog := requestLogger(ctx)

	p, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	current, err := s.ListGrants(ctx, profileID)
	if err != nil {
		return nil, err
	}

	currentIDs := make([]string, 0, len(current))
	currentByFeature := make(map[string]*FeatureGrant, len(current))
	for _, g := range current {
		currentIDs = append(currentIDs, g.FeatureID)
		currentByFeature[g.FeatureID] = g
	}

	desiredIDs := make([]string, 0, len(desired))
	for featureID, rights := range desired {
		if rights == 0 {
			continue
		}
		desiredIDs = append(desiredIDs, featureID)
	}

	plan := reconcile.Diff(currentIDs, desiredIDs)
	result := &reconcile.Result[string]{Kept: plan.Keep}

	// Rights changes on kept features count as writes too.
	for _, featureID := range plan.Keep {
		g := currentByFeature[featureID]
		if g.Rights() == desired[featureID] {
			continue
		}

		g.SetRights(desired[featureID])
		// map update so cleared rights (false columns) persist
		values := map[string]any{
			"can_view":   g.CanView,
			"can_add":    g.CanAdd,
			"can_change": g.CanChange,
			"can_delete": g.CanDelete,
			"can_print":  g.CanPrint,
			"updated_at": time.Now(),
		}
		if err := s.grants.Update(ctx, g.ID, values); err != nil {
			zapLog.Error("failed to update grant", zap.String("feature_id", featureID), zap.Error(err))
			result.RecordFailed(featureID, reconcile.OpAdd, errutil.Internal("failed to update grant", errutil.WithErr(err)))
			continue
		}
		result.RecordApplied(featureID, reconcile.OpAdd)
	}

	for _, featureID := range plan.Remove {
		if _, err := s.grants.Delete(ctx, &FeatureGrant{ProfileID: profileID, FeatureID: featureID}); err != nil {
			zapLog.Error("failed to remove grant", zap.String("feature_id", featureID), zap.Error(err))
			result.RecordFailed(featureID, reconcile.OpRemove, errutil.Internal("failed to remove grant", errutil.WithErr(err)))
			continue
		}
		result.RecordApplied(featureID, reconcile.OpRemove)
	}

	for _, featureID := range plan.Add {
		if err := s.addGrant(ctx, p, featureID, desired[featureID]); err != nil {
			result.RecordFailed(featureID, reconcile.OpAdd, err)
			continue
		}
		result.RecordApplied(featureID, reconcile.OpAdd)
	}

	return result, nil
}

func (s *Service) addGrant(ctx context.Context, p *Profile, featureID string, rights Rights) error {
	if _, err := s.catalog.GetFeature(ctx, featureID); err != nil {
		return err
	}

	entitled, err := s.entitlements.FeatureEntitled(ctx, p.LicenseID, featureID)
	if err != nil {
		return err
	}
	if !entitled {
		return errutil.NotAssociated("feature is not associated with the profile's license")
	}

	now := time.Now()
	g := &FeatureGrant{
		ID:        s.node.Generate().String(),
		CreatedAt: now,
		UpdatedAt: now,
		ProfileID: p.ID,
		LicenseID: p.LicenseID,
		FeatureID: featureID,
	}
	g.SetRights(rights)

	if err := s.grants.Create(ctx, g); err != nil {
		requestLogger(ctx).Error("failed to create grant", zap.String("feature_id", featureID), zap.Error(err))
		return errutil.Internal("failed to create grant", errutil.WithErr(err))
	}
	return nil
}
