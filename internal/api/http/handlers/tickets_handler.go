package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk/ticketd/internal/api/dto"
	"github.com/helpdesk/ticketd/internal/auth"
	"github.com/helpdesk/ticketd/internal/service"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	input := service.TicketCreateInput{
		Message:  req.Message,
		Category: req.Category.String(),
		Priority: req.Priority.String(),
	}
	detail, err := h.service.CreateTicket(c.UserContext(), *actor, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(detail)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var requesterID *int64
	raw := c.Query("user_id")
	if raw == "" {
		// Older clients send the filter in camelCase.
		raw = c.Query("userId")
	}
	if raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperrors.NewValidationError("user_id must be numeric", map[string]any{"field": "user_id"})
		}
		requesterID = &id
	}

	details, err := h.service.ListTickets(c.UserContext(), *actor, requesterID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(details))
	for i := range details {
		items = append(items, dto.NewTicketResponse(&details[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := pathID(c)
	if err != nil {
		return err
	}

	detail, err := h.service.GetTicket(c.UserContext(), *actor, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(detail)})
}

// UpdateTicket PUT /tickets/:id — the triage and audit workflow.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := pathID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := service.TicketPatch{Message: req.Message}
	if req.Status != nil && req.Status.IsSet() {
		raw := req.Status.String()
		patch.Status = &raw
	}
	if req.Category != nil && req.Category.IsSet() {
		raw := req.Category.String()
		patch.Category = &raw
	}
	if req.Priority != nil && req.Priority.IsSet() {
		raw := req.Priority.String()
		patch.Priority = &raw
	}

	detail, err := h.service.UpdateTicket(c.UserContext(), *actor, ticketID, patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(detail)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := pathID(c)
	if err != nil {
		return err
	}

	entries, err := h.service.ListHistory(c.UserContext(), *actor, ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.ChangeEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewChangeEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteTicket(c.UserContext(), *actor, ticketID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": ticketID}})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticketID, err := pathID(c)
	if err != nil {
		return err
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	detail, err := h.service.AddComment(c.UserContext(), *actor, ticketID, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(detail)})
}

// pathID parses the numeric :id route parameter.
func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("id must be numeric", map[string]any{"field": "id"})
	}
	return id, nil
}
