package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk/ticketd/internal/api/dto"
	"github.com/helpdesk/ticketd/internal/auth"
	"github.com/helpdesk/ticketd/internal/domain"
	"github.com/helpdesk/ticketd/internal/service"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

// LookupsHandler serves the category/priority/status reference tables. One
// handler per kind keeps routing flat, so the kind is fixed at construction.
type LookupsHandler struct {
	service *service.LookupService
	kind    domain.LookupKind
}

// NewLookupsHandler constructs a handler bound to one lookup kind.
func NewLookupsHandler(lookupService *service.LookupService, kind domain.LookupKind) *LookupsHandler {
	return &LookupsHandler{service: lookupService, kind: kind}
}

// List GET enumeration. Unauthenticated, as the original exposed it.
func (h *LookupsHandler) List(c *fiber.Ctx) error {
	values, err := h.service.List(c.UserContext(), h.kind)
	if err != nil {
		return err
	}
	items := make([]dto.LookupResponse, 0, len(values))
	for i := range values {
		items = append(items, dto.NewLookupResponse(&values[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST a new lookup value.
func (h *LookupsHandler) Create(c *fiber.Ctx) error {
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

	lookup, err := h.service.Create(c.UserContext(), *actor, h.kind, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewLookupResponse(lookup)})
}

// Update PUT renames a lookup value.
func (h *LookupsHandler) Update(c *fiber.Ctx) error {
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

	lookup, err := h.service.Update(c.UserContext(), *actor, h.kind, id, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLookupResponse(lookup)})
}

// Delete DELETE removes a lookup value.
func (h *LookupsHandler) Delete(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), *actor, h.kind, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": id}})
}
