package entitlement

import (
	"context"
	"time"

	"licensing-controlplane/pkg/config"
	"licensing-controlplane/pkg/db/option"
	"licensing-controlplane/pkg/db/pagination"
	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/pkg/repository"
	"licensing-controlplane/pkg/task"
	"licensing-controlplane/services/catalog"
	"licensing-controlplane/services/profile"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CacheInvalidator drops any derived permission state for a license after
// the graph underneath it changed.
type CacheInvalidator interface {
	InvalidateLicense(ctx context.Context, licenseID string) error
}

// Service owns the entitlement graph: the License↔Module, License↔Feature,
// License↔User and Profile↔User association rows and every invariant over
// them.
type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	catalog *catalog.Reader

	modules  repository.Repository[LicenseModule]
	features repository.Repository[LicenseFeature]
	seats    repository.Repository[LicenseUser]
	bindings repository.Repository[ProfileUser]
	profiles repository.Repository[profile.Profile]
	grants   repository.Repository[profile.FeatureGrant]
	events   repository.Repository[EntitlementEvent]

	defaultPolicy CapacityPolicy
	enqueuer      task.Enqueuer
	invalidator   CacheInvalidator
}

type ServiceParams struct {
	fx.In
	DB          *gorm.DB
	Node        *snowflake.Node
	Catalog     *catalog.Reader
	Config      *config.Config
	Enqueuer    task.Enqueuer    `optional:"true"`
	Invalidator CacheInvalidator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	policy := StrictReject
	if p.Config != nil {
		policy = ParseCapacityPolicy(p.Config.Entitlement.DefaultCapacityPolicy)
	}

	return &Service{
		db:            p.DB,
		node:          p.Node,
		catalog:       p.Catalog,
		modules:       repository.ProvideStore[LicenseModule](p.DB),
		features:      repository.ProvideStore[LicenseFeature](p.DB),
		seats:         repository.ProvideStore[LicenseUser](p.DB),
		bindings:      repository.ProvideStore[ProfileUser](p.DB),
		profiles:      repository.ProvideStore[profile.Profile](p.DB),
		grants:        repository.ProvideStore[profile.FeatureGrant](p.DB),
		events:        repository.ProvideStore[EntitlementEvent](p.DB),
		defaultPolicy: policy,
		enqueuer:      p.Enqueuer,
		invalidator:   p.Invalidator,
	}
}

// DefaultCapacityPolicy is the configured fallback for callers that do not
// name a policy.
func (s *Service) DefaultCapacityPolicy() CapacityPolicy {
	return s.defaultPolicy
}

func requestLogger(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// recordEvent writes an audit row inside the caller's transaction.
func (s *Service) recordEvent(ctx context.Context, tx *gorm.DB, licenseID, kind, targetID string) error {
	return s.events.WithTrx(tx).Create(ctx, &EntitlementEvent{
		ID:        s.node.Generate().String(),
		CreatedAt: time.Now(),
		LicenseID: licenseID,
		Kind:      kind,
		TargetID:  targetID,
		Actor:     ActorFromContext(ctx),
	})
}

// ListEvents returns one cursor page of the license audit trail in
// insertion order.
func (s *Service) ListEvents(ctx context.Context, licenseID string, page pagination.Pagination) ([]*EntitlementEvent, *pagination.PageInfo, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}

	// Fetch one extra row to detect whether another page exists.
	fetch := page
	fetch.Limit = limit + 1

	events, err := s.events.Find(ctx, &EntitlementEvent{LicenseID: licenseID},
		option.WithSortBy(option.QuerySortBy{Field: "id", OrderBy: "ASC"}),
		option.ApplyPagination(fetch))
	if err != nil {
		requestLogger(ctx).Error("failed list entitlement events", zap.Error(err))
		return nil, nil, errutil.Internal("failed to list entitlement events", errutil.WithErr(err))
	}

	events, info := pagination.BuildCursorPageInfo(events, limit, func(ev *EntitlementEvent) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{ID: ev.ID})
		return cursor
	})
	return events, info, nil
}

// afterMutation runs the non-transactional follow-ups of a committed graph
// change: cache invalidation and the change notification task. Failures are
// logged, never surfaced; the mutation already happened.
func (s *Service) afterMutation(ctx context.Context, licenseID, kind, targetID string) {
	zapLog := requestLogger(ctx)

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateLicense(ctx, licenseID); err != nil {
			zapLog.Warn("failed to invalidate permission cache",
				zap.String("license_id", licenseID), zap.Error(err))
		}
	}

	if s.enqueuer != nil {
		t := NewChangedTask(ChangedPayload{
			LicenseID: licenseID,
			Kind:      kind,
			TargetID:  targetID,
		})
		if _, err := s.enqueuer.Enqueue(t); err != nil {
			zapLog.Warn("failed to enqueue entitlement change task",
				zap.String("license_id", licenseID), zap.Error(err))
		}
	}
}

// lockLicenseRow serialises concurrent multi-step mutations on one license.
// Touching the row takes a row-level write lock on engines that have one and
// is harmless on SQLite, whose writers are serialised anyway.
func lockLicenseRow(tx *gorm.DB, licenseID string) error {
	return tx.Model(&catalog.License{}).
		Where("id = ?", licenseID).
		Update("updated_at", time.Now()).Error
}

type actorKey struct{}

// WithActor stamps the administrative caller onto the context for audit rows.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
