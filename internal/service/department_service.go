package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/domain"
	"github.com/helpdesk/ticketd/internal/repository"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

// DepartmentService manages organizational units.
type DepartmentService struct {
	departments repository.DepartmentRepository
}

// NewDepartmentService builds the service.
func NewDepartmentService(departments repository.DepartmentRepository) *DepartmentService {
	return &DepartmentService{departments: departments}
}

// List enumerates departments for any authenticated caller.
func (s *DepartmentService) List(ctx context.Context) ([]domain.Department, error) {
	return s.departments.List(ctx)
}

// Create adds a department. Admin only; duplicate names conflict.
func (s *DepartmentService) Create(ctx context.Context, actor domain.Actor, name string) (*domain.Department, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only administrators can manage departments")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}

	dept := &domain.Department{Name: name}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, err
	}
	return dept, nil
}

// Update renames a department.
func (s *DepartmentService) Update(ctx context.Context, actor domain.Actor, id int64, name string) (*domain.Department, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only administrators can manage departments")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}

	dept := &domain.Department{ID: id, Name: name}
	if err := s.departments.Update(ctx, dept); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("department", map[string]any{"id": id})
		}
		return nil, err
	}
	return s.departments.GetByID(ctx, id)
}

// Delete removes a department. The store refuses while users belong to it.
func (s *DepartmentService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if !actor.IsAdmin {
		return apperrors.NewForbidden("only administrators can manage departments")
	}
	if err := s.departments.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("department", map[string]any{"id": id})
		}
		return err
	}
	return nil
}
