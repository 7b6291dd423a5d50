package apikeys

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/security"
)

const (
	tokenScheme  = "pos_"
	prefixLength = 8
	secretLength = 32

	invalidKeyMessage = "invalid api key"
)

// verifiedCache remembers tokens that already passed the argon2id check.
type verifiedCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	APIKeyCacheKey(digest string) string
}

// Issued is returned once on creation. Token is never stored.
type Issued struct {
	Key   *models.APIKey
	Token string
}

// Service issues and authenticates register API keys.
type Service interface {
	Issue(ctx context.Context, name string) (*Issued, error)
	Authenticate(ctx context.Context, token string) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	Revoke(ctx context.Context, prefix string) error
}

type service struct {
	repo  Repository
	cfg   config.APIKeyConfig
	cache verifiedCache
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the API key service. cache may be nil.
func NewService(repo Repository, cfg config.APIKeyConfig, cache verifiedCache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("api key repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, cfg: cfg, cache: cache, logg: logg, now: time.Now}, nil
}

func (s *service) Issue(ctx context.Context, name string) (*Issued, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	prefix, err := security.RandomToken(prefixLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate key prefix")
	}
	secret, err := security.RandomToken(secretLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate key secret")
	}
	hash, err := security.HashSecret(secret, s.cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash key secret")
	}

	key := &models.APIKey{Name: name, Prefix: prefix, Hash: hash}
	if err := s.repo.Create(ctx, key); err != nil {
		if db.IsUniqueViolation(err, "ux_api_keys_prefix") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "api key prefix collision, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert api key")
	}
	return &Issued{Key: key, Token: FormatToken(prefix, secret)}, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*models.APIKey, error) {
	prefix, secret, ok := ParseToken(token)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidKeyMessage)
	}
	key, err := s.repo.FindByPrefix(ctx, prefix)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidKeyMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: lookup api key")
	}
	if key.RevokedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidKeyMessage)
	}

	cacheKey := ""
	if s.cache != nil {
		cacheKey = s.cache.APIKeyCacheKey(digest(token))
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached == key.ID.String() {
			return key, nil
		}
	}

	valid, err := security.VerifySecret(secret, key.Hash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify api key")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidKeyMessage)
	}

	now := s.now().UTC()
	if err := s.repo.Touch(ctx, key.ID, now); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "api_key", key.Prefix), "failed to record api key use")
	}
	key.LastUsedAt = &now
	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, cacheKey, key.ID.String(), s.cfg.CacheTTL); err != nil {
			s.logg.Warn(ctx, "failed to cache verified api key")
		}
	}
	return key, nil
}

func (s *service) List(ctx context.Context) ([]models.APIKey, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list api keys")
	}
	return keys, nil
}

func (s *service) Revoke(ctx context.Context, prefix string) error {
	revoked, err := s.repo.Revoke(ctx, strings.TrimSpace(prefix), s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: revoke api key")
	}
	if !revoked {
		return pkgerrors.New(pkgerrors.CodeNotFound, "api key not found")
	}
	return nil
}

// FormatToken renders the value handed to the register.
func FormatToken(prefix, secret string) string {
	return tokenScheme + prefix + "." + secret
}

// ParseToken splits a presented token into prefix and secret.
func ParseToken(token string) (string, string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(token), tokenScheme)
	if !ok {
		return "", "", false
	}
	prefix, secret, ok := strings.Cut(rest, ".")
	if !ok || len(prefix) != prefixLength || secret == "" {
		return "", "", false
	}
	return prefix, secret, true
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
