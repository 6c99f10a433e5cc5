package token

import (
	"context"
	"time"

	"licensing-controlplane/pkg/config"
	"licensing-controlplane/pkg/errutil"
	"licensing-controlplane/services/catalog"
	"licensing-controlplane/services/permission"
	"licensing-controlplane/services/profile"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Claims is the signed entitlement payload handed to product backends.
// Features carries the compiled per-feature right bitmasks; Modules the
// distinct modules those features belong to.
type Claims struct {
	jwt.Claims
	TenantID string                    `json:"tenant_id"`
	UserID   string                    `json:"user_id"`
	Features map[string]profile.Rights `json:"features"`
	Modules  []string                  `json:"modules,omitempty"`
}

// HasFeature reports whether the claims grant at least one right on the
// feature.
func (c *Claims) HasFeature(featureID string) bool {
	return c.Features[featureID] != 0
}

// Token is a serialized entitlement token plus its expiry.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Service struct {
	catalog  *catalog.Reader
	compiler *permission.Compiler

	issuer string
	secret []byte
	ttl    time.Duration
}

type ServiceParams struct {
	fx.In
	Config   *config.Config
	Catalog  *catalog.Reader
	Compiler *permission.Compiler
}

func NewService(p ServiceParams) *Service {
	ttl := p.Config.Token.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		catalog:  p.Catalog,
		compiler: p.Compiler,
		issuer:   p.Config.Token.Issuer,
		secret:   []byte(p.Config.Token.Secret),
		ttl:      ttl,
	}
}

// IssueToken authenticates the caller's license key, compiles the user's
// permission set under that license and returns it as a signed JWT. The
// license must be active and unexpired; the user may legitimately compile
// to an empty set.
func (s *Service) IssueToken(ctx context.Context, licenseKey, userID string) (*Token, error) {
	license, err := s.catalog.RequireValidLicense(ctx, licenseKey)
	if err != nil {
		return nil, err
	}

	set, err := s.compiler.Compile(ctx, userID, license.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiry := now.Add(s.ttl)

	claims := Claims{
		Claims: jwt.Claims{
			Issuer:   s.issuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(expiry),
		},
		TenantID: license.TenantID,
		UserID:   userID,
		Features: set.Features,
		Modules:  set.ModuleIDs,
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: s.secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		zap.L().Error("failed build token signer", zap.Error(err))
		return nil, errutil.Internal("failed to sign token", errutil.WithErr(err))
	}

	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		zap.L().Error("failed serialize token", zap.Error(err))
		return nil, errutil.Internal("failed to sign token", errutil.WithErr(err))
	}

	return &Token{AccessToken: raw, TokenType: "Bearer", ExpiresAt: expiry}, nil
}

// ParseToken verifies the signature and expiry of a previously issued
// token and returns its claims.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	parsed, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, errutil.Unauthorized("invalid token", errutil.WithErr(err))
	}

	var claims Claims
	if err := parsed.Claims(s.secret, &claims); err != nil {
		return nil, errutil.Unauthorized("invalid token signature", errutil.WithErr(err))
	}

	if err := claims.Validate(jwt.Expected{Issuer: s.issuer, Time: time.Now().UTC()}); err != nil {
		return nil, errutil.Unauthorized("token expired or not yet valid", errutil.WithErr(err))
	}

	return &claims, nil
}
