package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk/ticketd/internal/api/dto"
	"github.com/helpdesk/ticketd/internal/auth"
	"github.com/helpdesk/ticketd/internal/service"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

// DepartmentsHandler exposes department management endpoints.
type DepartmentsHandler struct {
	service *service.DepartmentService
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(departmentService *service.DepartmentService) *DepartmentsHandler {
	return &DepartmentsHandler{service: departmentService}
}

// List handles GET /departments.
func (h *DepartmentsHandler) List(c *fiber.Ctx) error {
	departments, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.LookupResponse, 0, len(departments))
	for i := range departments {
		items = append(items, dto.NewDepartmentResponse(&departments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create handles POST /departments (admin).
func (h *DepartmentsHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.LookupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	dept, err := h.service.Create(c.UserContext(), *actor, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// Update handles PUT /departments/:id (admin).
func (h *DepartmentsHandler) Update(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req dto.LookupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	dept, err := h.service.Update(c.UserContext(), *actor, id, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDepartmentResponse(dept)})
}

// Delete handles DELETE /departments/:id (admin).
func (h *DepartmentsHandler) Delete(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), *actor, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": id}})
}
