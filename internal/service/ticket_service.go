package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/domain"
	"github.com/helpdesk/ticketd/internal/events"
	"github.com/helpdesk/ticketd/internal/repository"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	store      TxRunner
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    repository.ChangeHistoryRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Store       TxRunner
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.ChangeHistoryRepository
	Dispatcher  events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
	}
}

// TicketCreateInput describes ticket creation payload. Category and Priority
// arrive in raw textual form; clients send them as numbers or numeric strings
// interchangeably.
type TicketCreateInput struct {
	Message  string
	Category string
	Priority string
}

// TicketPatch is a partial ticket update. Nil fields are untouched. Reference
// fields carry the caller's raw textual value and are coerced during
// validation.
type TicketPatch struct {
	Message  *string
	Status   *string
	Category *string
	Priority *string
}

type fieldChange struct {
	field    string
	previous string
	next     string
}

// resolvedPatch is a TicketPatch after reference coercion.
type resolvedPatch struct {
	message  *string
	status   *int64
	category *int64
	priority *int64
}

// UpdateTicket is the triage workflow: it authorizes the actor, diffs the
// patch against stored state field by field, records one audit row per changed
// field, applies the update and returns the denormalized view. Everything
// between the locked read and the reload happens in one transaction; on any
// failure nothing persists.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, ticketID int64, patch TicketPatch) (*domain.TicketDetail, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only administrators can update tickets")
	}

	resolved, err := resolvePatch(patch)
	if err != nil {
		return nil, err
	}

	var (
		detail  *domain.TicketDetail
		changes []fieldChange
	)
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		tickets := s.tickets.WithTx(tx)

		ticket, err := tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return err
		}

		changes = diffTicket(ticket, resolved)
		history := s.history.WithTx(tx)
		for _, change := range changes {
			entry := &domain.ChangeEntry{
				TicketID:      ticket.ID,
				UserID:        actor.ID,
				FieldChanged:  change.field,
				PreviousValue: change.previous,
				NewValue:      change.next,
			}
			if err := history.Create(ctx, entry); err != nil {
				return err
			}
		}

		applyPatch(ticket, resolved)
		if err := tickets.Update(ctx, ticket); err != nil {
			return err
		}

		detail, err = s.loadDetail(ctx, tickets, s.comments.WithTx(tx), ticket.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		payload := events.TicketUpdatedPayload{}
		for _, change := range changes {
			payload.Changes = append(payload.Changes, events.FieldChange{
				Field:    change.field,
				Previous: change.previous,
				New:      change.next,
			})
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: ticketID,
			ActorID:  actor.ID,
			Payload:  payload,
		})
	}
	return detail, nil
}

// CreateTicket files a new ticket for the actor. The status is always the
// initial one; any caller-supplied status is ignored.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.TicketDetail, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": domain.FieldMessage})
	}
	categoryID, err := coerceID(domain.FieldCategory, input.Category)
	if err != nil {
		return nil, err
	}
	priorityID, err := coerceID(domain.FieldPriority, input.Priority)
	if err != nil {
		return nil, err
	}

	requesterID := actor.ID
	ticket := &domain.Ticket{
		Message:     strings.TrimSpace(input.Message),
		StatusID:    domain.InitialStatusID,
		CategoryID:  categoryID,
		PriorityID:  priorityID,
		RequesterID: &requesterID,
	}

	var detail *domain.TicketDetail
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		tickets := s.tickets.WithTx(tx)
		if err := tickets.Create(ctx, ticket); err != nil {
			return err
		}
		detail, err = s.loadDetail(ctx, tickets, s.comments.WithTx(tx), ticket.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload: events.TicketCreatedPayload{
			CategoryID:  ticket.CategoryID,
			PriorityID:  ticket.PriorityID,
			RequesterID: actor.ID,
		},
	})
	return detail, nil
}

// ListTickets returns tickets newest first with their comment threads.
// Non-admin actors only see tickets they filed; admins see everything and may
// narrow to one requester.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, requesterID *int64) ([]domain.TicketDetail, error) {
	filter := repository.TicketFilter{}
	if actor.IsAdmin {
		filter.RequesterID = requesterID
	} else {
		own := actor.ID
		filter.RequesterID = &own
	}

	details, err := s.tickets.ListDetails(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range details {
		comments, err := s.comments.ListByTicket(ctx, details[i].ID)
		if err != nil {
			return nil, err
		}
		details[i].Comments = comments
	}
	return details, nil
}

// GetTicket fetches one ticket with associations, enforcing ownership for
// non-admin actors.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID int64) (*domain.TicketDetail, error) {
	detail, err := s.loadDetail(ctx, s.tickets, s.comments, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if !actor.IsAdmin {
		if detail.Requester == nil || detail.Requester.ID != actor.ID {
			return nil, apperrors.NewForbidden("access denied")
		}
	}
	return detail, nil
}

// ListHistory returns a ticket's audit trail, oldest change first. The trail
// records who changed what, so it is admin-only like the updates it mirrors.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, ticketID int64) ([]domain.ChangeEntry, error) {
	if !actor.IsAdmin {
		return nil, apperrors.NewForbidden("only administrators can read ticket history")
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID)
}

// DeleteTicket removes a ticket; comments and history rows go with it.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID int64) error {
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		ActorID:  actor.ID,
	})
	return nil
}

// AddComment appends a comment attributed to the actor and returns it with the
// author's denormalized identity.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID int64, body string) (*domain.CommentDetail, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("comment text is required", map[string]any{"field": "comment"})
	}

	comment := &domain.Comment{
		TicketID: ticketID,
		AuthorID: actor.ID,
		Body:     strings.TrimSpace(body),
	}

	var detail *domain.CommentDetail
	err := s.store.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.tickets.WithTx(tx).GetByID(ctx, ticketID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return err
		}

		comments := s.comments.WithTx(tx)
		if err := comments.Create(ctx, comment); err != nil {
			return err
		}
		var err error
		detail, err = comments.GetDetail(ctx, comment.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticketID,
		ActorID:  actor.ID,
		Payload: events.CommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    actor.ID,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return detail, nil
}

// resolvePatch coerces reference fields and rejects patches with nothing
// recognized in them.
func resolvePatch(patch TicketPatch) (resolvedPatch, error) {
	var resolved resolvedPatch
	present := 0

	if patch.Message != nil {
		resolved.message = patch.Message
		present++
	}
	for _, ref := range []struct {
		field string
		raw   *string
		dst   **int64
	}{
		{domain.FieldStatus, patch.Status, &resolved.status},
		{domain.FieldCategory, patch.Category, &resolved.category},
		{domain.FieldPriority, patch.Priority, &resolved.priority},
	} {
		if ref.raw == nil {
			continue
		}
		id, err := coerceID(ref.field, *ref.raw)
		if err != nil {
			return resolvedPatch{}, err
		}
		value := id
		*ref.dst = &value
		present++
	}

	if present == 0 {
		return resolvedPatch{}, apperrors.NewValidationError("nothing to update", nil)
	}
	return resolved, nil
}

// coerceID parses a reference value supplied as a number or numeric string.
func coerceID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError(field+" must be a numeric identifier", map[string]any{"field": field})
	}
	return id, nil
}

// diffTicket compares stored state against the patch using canonical string
// comparison: both sides in textual form, absent values as the empty string.
// This is what decides whether an audit row is written, so 2 and "2" must
// compare equal.
func diffTicket(ticket *domain.Ticket, patch resolvedPatch) []fieldChange {
	var changes []fieldChange

	appendChange := func(field, previous, next string) {
		if previous != next {
			changes = append(changes, fieldChange{field: field, previous: previous, next: next})
		}
	}

	if patch.message != nil {
		appendChange(domain.FieldMessage, ticket.Message, *patch.message)
	}
	if patch.status != nil {
		appendChange(domain.FieldStatus, canonicalID(ticket.StatusID), canonicalID(*patch.status))
	}
	if patch.category != nil {
		appendChange(domain.FieldCategory, canonicalID(ticket.CategoryID), canonicalID(*patch.category))
	}
	if patch.priority != nil {
		appendChange(domain.FieldPriority, canonicalID(ticket.PriorityID), canonicalID(*patch.priority))
	}
	return changes
}

// applyPatch writes every supplied field onto the ticket, changed or not;
// rewriting an equal value is idempotent.
func applyPatch(ticket *domain.Ticket, patch resolvedPatch) {
	if patch.message != nil {
		ticket.Message = *patch.message
	}
	if patch.status != nil {
		ticket.StatusID = *patch.status
	}
	if patch.category != nil {
		ticket.CategoryID = *patch.category
	}
	if patch.priority != nil {
		ticket.PriorityID = *patch.priority
	}
}

func canonicalID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *TicketService) loadDetail(ctx context.Context, tickets repository.TicketRepository, comments repository.CommentRepository, ticketID int64) (*domain.TicketDetail, error) {
	detail, err := tickets.GetDetail(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	detail.Comments, err = comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
