package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpdesk/ticketd/internal/domain"
	"github.com/helpdesk/ticketd/internal/repository"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

// Cache is the small caching surface the lookup service needs; implemented by
// the Redis wrapper. Cache faults degrade to store reads, never to request
// failures.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LookupService manages the category, priority and status reference tables.
type LookupService struct {
	repos  map[domain.LookupKind]repository.LookupRepository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// LookupDependencies bundles collaborators for the lookup service.
type LookupDependencies struct {
	CategoryRepo repository.LookupRepository
	PriorityRepo repository.LookupRepository
	StatusRepo   repository.LookupRepository
	Cache        Cache
	CacheTTL     time.Duration
	Logger       *zap.Logger
}

// NewLookupService constructs the service.
func NewLookupService(deps LookupDependencies) *LookupService {
	return &LookupService{
		repos: map[domain.LookupKind]repository.LookupRepository{
			domain.LookupCategory: deps.CategoryRepo,
			domain.LookupPriority: deps.PriorityRepo,
			domain.LookupStatus:   deps.StatusRepo,
		},
		cache:  deps.Cache,
		ttl:    deps.CacheTTL,
		logger: deps.Logger,
	}
}

// List enumerates a lookup table, served from cache when fresh.
func (s *LookupService) List(ctx context.Context, kind domain.LookupKind) ([]domain.Lookup, error) {
	repo, err := s.repo(kind)
	if err != nil {
		return nil, err
	}

	key := cacheKey(kind)
	if s.cache != nil {
		var cached []domain.Lookup
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logWarn("lookup cache read failed", kind, err)
		} else if hit {
			return cached, nil
		}
	}

	values, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, values, s.ttl); err != nil {
			s.logWarn("lookup cache write failed", kind, err)
		}
	}
	return values, nil
}

// Create adds a lookup value. Admin only; duplicate names conflict.
func (s *LookupService) Create(ctx context.Context, actor domain.Actor, kind domain.LookupKind, name string) (*domain.Lookup, error) {
	repo, err := s.authorizedRepo(actor, kind)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}

	lookup := &domain.Lookup{Name: name}
	if err := repo.Create(ctx, lookup); err != nil {
		return nil, err
	}
	s.invalidate(ctx, kind)
	return lookup, nil
}

// Update renames a lookup value.
func (s *LookupService) Update(ctx context.Context, actor domain.Actor, kind domain.LookupKind, id int64, name string) (*domain.Lookup, error) {
	repo, err := s.authorizedRepo(actor, kind)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}

	lookup := &domain.Lookup{ID: id, Name: name}
	if err := repo.Update(ctx, lookup); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(string(kind), map[string]any{"id": id})
		}
		return nil, err
	}
	s.invalidate(ctx, kind)
	return repo.GetByID(ctx, id)
}

// Delete removes a lookup value. The store refuses while tickets reference it;
// that surfaces as a conflict, not an internal error.
func (s *LookupService) Delete(ctx context.Context, actor domain.Actor, kind domain.LookupKind, id int64) error {
	repo, err := s.authorizedRepo(actor, kind)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound(string(kind), map[string]any{"id": id})
		}
		return err
	}
	s.invalidate(ctx, kind)
	return nil
}

func (s *LookupService) repo(kind domain.LookupKind) (repository.LookupRepository, error) {
	repo, ok := s.repos[kind]
	if !ok || repo == nil {
		return nil, apperrors.NewValidationError("unknown lookup kind", map[string]any{"kind": string(kind)})
	}
	return repo, nil
}

func (s *LookupService) authorizedRepo(actor domain.Actor, kind domain.LookupKind) (repository.LookupRepository, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only administrators can manage lookup values")
	}
	return s.repo(kind)
}

func (s *LookupService) invalidate(ctx context.Context, kind domain.LookupKind) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(kind)); err != nil {
		s.logWarn("lookup cache invalidation failed", kind, err)
	}
}

func (s *LookupService) logWarn(msg string, kind domain.LookupKind, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, zap.String("kind", string(kind)), zap.Error(err))
}

func cacheKey(kind domain.LookupKind) string {
	return "lookup:" + string(kind)
}
