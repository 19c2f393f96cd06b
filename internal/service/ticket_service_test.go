package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/domain"
	"github.com/helpdesk/ticketd/internal/events"
	"github.com/helpdesk/ticketd/internal/repository"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

type fakeStore struct{}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type mockTicketRepo struct {
	tickets     map[int64]*domain.Ticket
	nextID      int64
	updateCalls int
}

func newMockTicketRepo(tickets ...*domain.Ticket) *mockTicketRepo {
	repo := &mockTicketRepo{tickets: make(map[int64]*domain.Ticket), nextID: 1}
	for _, t := range tickets {
		if t.ID >= repo.nextID {
			repo.nextID = t.ID + 1
		}
		copied := *t
		repo.tickets[t.ID] = &copied
	}
	return repo
}

func (m *mockTicketRepo) WithTx(tx pgx.Tx) repository.TicketRepository { return m }

func (m *mockTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.ID = m.nextID
	m.nextID++
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	m.tickets[ticket.ID] = &copied
	return nil
}

func (m *mockTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if _, ok := m.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.updateCalls++
	copied := *ticket
	copied.UpdatedAt = time.Now()
	m.tickets[ticket.ID] = &copied
	return nil
}

func (m *mockTicketRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.tickets, id)
	return nil
}

func (m *mockTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (m *mockTicketRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return m.GetByID(ctx, id)
}

func (m *mockTicketRepo) GetDetail(ctx context.Context, id int64) (*domain.TicketDetail, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	detail := &domain.TicketDetail{
		ID:           ticket.ID,
		Message:      ticket.Message,
		StatusID:     ticket.StatusID,
		StatusName:   fmt.Sprintf("status-%d", ticket.StatusID),
		CategoryID:   ticket.CategoryID,
		CategoryName: fmt.Sprintf("category-%d", ticket.CategoryID),
		PriorityID:   ticket.PriorityID,
		PriorityName: fmt.Sprintf("priority-%d", ticket.PriorityID),
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
	if ticket.RequesterID != nil {
		detail.Requester = &domain.UserRef{ID: *ticket.RequesterID, Username: fmt.Sprintf("user-%d", *ticket.RequesterID)}
	}
	return detail, nil
}

func (m *mockTicketRepo) ListDetails(ctx context.Context, filter repository.TicketFilter) ([]domain.TicketDetail, error) {
	ids := make([]int64, 0, len(m.tickets))
	for id, ticket := range m.tickets {
		if filter.RequesterID != nil {
			if ticket.RequesterID == nil || *ticket.RequesterID != *filter.RequesterID {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	details := make([]domain.TicketDetail, 0, len(ids))
	for _, id := range ids {
		detail, err := m.GetDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

type mockCommentRepo struct {
	byTicket map[int64][]domain.CommentDetail
	nextID   int64
}

func newMockCommentRepo() *mockCommentRepo {
	return &mockCommentRepo{byTicket: make(map[int64][]domain.CommentDetail), nextID: 1}
}

func (m *mockCommentRepo) WithTx(tx pgx.Tx) repository.CommentRepository { return m }

func (m *mockCommentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	comment.ID = m.nextID
	m.nextID++
	comment.CommentDate = time.Now()
	m.byTicket[comment.TicketID] = append(m.byTicket[comment.TicketID], domain.CommentDetail{
		ID:          comment.ID,
		TicketID:    comment.TicketID,
		Author:      domain.UserRef{ID: comment.AuthorID, Username: fmt.Sprintf("user-%d", comment.AuthorID)},
		Body:        comment.Body,
		CommentDate: comment.CommentDate,
	})
	return nil
}

func (m *mockCommentRepo) GetDetail(ctx context.Context, id int64) (*domain.CommentDetail, error) {
	for _, comments := range m.byTicket {
		for i := range comments {
			if comments[i].ID == id {
				copied := comments[i]
				return &copied, nil
			}
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockCommentRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.CommentDetail, error) {
	return append([]domain.CommentDetail{}, m.byTicket[ticketID]...), nil
}

type mockHistoryRepo struct {
	entries []domain.ChangeEntry
	failErr error
}

func (m *mockHistoryRepo) WithTx(tx pgx.Tx) repository.ChangeHistoryRepository { return m }

func (m *mockHistoryRepo) Create(ctx context.Context, entry *domain.ChangeEntry) error {
	if m.failErr != nil {
		return m.failErr
	}
	entry.ID = int64(len(m.entries) + 1)
	entry.ChangeDate = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockHistoryRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChangeEntry, error) {
	var entries []domain.ChangeEntry
	for _, entry := range m.entries {
		if entry.TicketID == ticketID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

type recordingDispatcher struct {
	published []events.Event
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

type ticketFixture struct {
	service    *TicketService
	tickets    *mockTicketRepo
	comments   *mockCommentRepo
	history    *mockHistoryRepo
	dispatcher *recordingDispatcher
}

func newTicketFixture(seed ...*domain.Ticket) *ticketFixture {
	tickets := newMockTicketRepo(seed...)
	comments := newMockCommentRepo()
	history := &mockHistoryRepo{}
	dispatcher := &recordingDispatcher{}
	svc := NewTicketService(TicketDependencies{
		Store:       &fakeStore{},
		TicketRepo:  tickets,
		CommentRepo: comments,
		HistoryRepo: history,
		Dispatcher:  dispatcher,
	})
	return &ticketFixture{service: svc, tickets: tickets, comments: comments, history: history, dispatcher: dispatcher}
}

func admin() domain.Actor {
	return domain.Actor{ID: 99, Username: "admin", IsAdmin: true}
}

func requester(id int64) domain.Actor {
	return domain.Actor{ID: id, Username: fmt.Sprintf("user-%d", id)}
}

func seedTicket(id int64, requesterID int64) *domain.Ticket {
	rid := requesterID
	return &domain.Ticket{
		ID:          id,
		Message:     "printer is on fire",
		StatusID:    1,
		CategoryID:  2,
		PriorityID:  3,
		RequesterID: &rid,
		CreatedAt:   time.Now().Add(-time.Hour),
		UpdatedAt:   time.Now().Add(-time.Hour),
	}
}

func strPtr(s string) *string { return &s }

func domainErrStatus(t *testing.T, err error) int {
	t.Helper()
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domainErr.HTTPStatus
}

func TestUpdateTicketRecordsOneHistoryRowPerChangedField(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	detail, err := fx.service.UpdateTicket(context.Background(), admin(), 1, TicketPatch{
		Message:  strPtr("printer replaced"),
		Status:   strPtr("4"),
		Category: strPtr("2"), // unchanged
		Priority: strPtr("1"),
	})
	if err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}

	if len(fx.history.entries) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(fx.history.entries))
	}
	byField := map[string]domain.ChangeEntry{}
	for _, entry := range fx.history.entries {
		byField[entry.FieldChanged] = entry
		if entry.TicketID != 1 || entry.UserID != 99 {
			t.Errorf("entry %+v has wrong attribution", entry)
		}
	}
	if _, ok := byField[domain.FieldCategory]; ok {
		t.Error("unchanged category must not produce a history row")
	}
	if e := byField[domain.FieldMessage]; e.PreviousValue != "printer is on fire" || e.NewValue != "printer replaced" {
		t.Errorf("message entry: %+v", e)
	}
	if e := byField[domain.FieldStatus]; e.PreviousValue != "1" || e.NewValue != "4" {
		t.Errorf("status entry: %+v", e)
	}
	if e := byField[domain.FieldPriority]; e.PreviousValue != "3" || e.NewValue != "1" {
		t.Errorf("priority entry: %+v", e)
	}

	if detail.StatusID != 4 || detail.PriorityID != 1 || detail.CategoryID != 2 {
		t.Errorf("stale detail returned: %+v", detail)
	}
	if detail.StatusName != "status-4" {
		t.Errorf("detail must be re-read after the update, got %q", detail.StatusName)
	}

	if len(fx.dispatcher.published) != 1 {
		t.Fatalf("expected one event, got %d", len(fx.dispatcher.published))
	}
	if fx.dispatcher.published[0].Type != events.EventTicketUpdated {
		t.Errorf("event type = %s", fx.dispatcher.published[0].Type)
	}
}

func TestUpdateTicketNumericStringEqualsNumber(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	// Stored status_id is 1; the client resends it as the string "1".
	detail, err := fx.service.UpdateTicket(context.Background(), admin(), 1, TicketPatch{
		Status: strPtr(" 1 "),
	})
	if err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if len(fx.history.entries) != 0 {
		t.Fatalf("equal values must not produce history rows, got %d", len(fx.history.entries))
	}
	if detail.StatusID != 1 {
		t.Errorf("status must stay 1, got %d", detail.StatusID)
	}
	// No-change updates still write the row back.
	if fx.tickets.updateCalls != 1 {
		t.Errorf("expected the update to be applied once, got %d", fx.tickets.updateCalls)
	}
	if len(fx.dispatcher.published) != 0 {
		t.Errorf("no-change update must not publish events")
	}
}

func TestUpdateTicketIsIdempotent(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))
	patch := TicketPatch{Status: strPtr("2"), Priority: strPtr("1")}

	if _, err := fx.service.UpdateTicket(context.Background(), admin(), 1, patch); err != nil {
		t.Fatalf("first update: %v", err)
	}
	first := len(fx.history.entries)

	if _, err := fx.service.UpdateTicket(context.Background(), admin(), 1, patch); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(fx.history.entries) != first {
		t.Errorf("replaying an identical patch must add no history rows: %d -> %d", first, len(fx.history.entries))
	}
}

func TestUpdateTicketForbiddenForNonAdmin(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	// Even the requester of the ticket cannot update it, and an invalid
	// payload must not shadow the authorization failure.
	_, err := fx.service.UpdateTicket(context.Background(), requester(7), 1, TicketPatch{
		Status: strPtr("not-a-number"),
	})
	if status := domainErrStatus(t, err); status != 403 {
		t.Fatalf("expected 403, got %d", status)
	}
	if len(fx.history.entries) != 0 || fx.tickets.updateCalls != 0 {
		t.Error("forbidden update must leave no trace")
	}
}

func TestUpdateTicketUnknownTicket(t *testing.T) {
	fx := newTicketFixture()

	_, err := fx.service.UpdateTicket(context.Background(), admin(), 42, TicketPatch{Status: strPtr("2")})
	if status := domainErrStatus(t, err); status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if len(fx.history.entries) != 0 {
		t.Error("missing ticket must not leave orphan history rows")
	}
}

func TestUpdateTicketNothingToUpdate(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	_, err := fx.service.UpdateTicket(context.Background(), admin(), 1, TicketPatch{})
	if status := domainErrStatus(t, err); status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestUpdateTicketRejectsNonNumericReference(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	_, err := fx.service.UpdateTicket(context.Background(), admin(), 1, TicketPatch{Priority: strPtr("high")})
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.HTTPStatus != 400 {
		t.Fatalf("expected 400, got %d", domainErr.HTTPStatus)
	}
	if domainErr.Details["field"] != domain.FieldPriority {
		t.Errorf("error must name the offending field, got %v", domainErr.Details)
	}
	if fx.tickets.updateCalls != 0 {
		t.Error("rejected patch must not be applied")
	}
}

func TestUpdateTicketPropagatesHistoryFailure(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))
	fx.history.failErr = errors.New("insert failed")

	_, err := fx.service.UpdateTicket(context.Background(), admin(), 1, TicketPatch{Status: strPtr("2")})
	if err == nil {
		t.Fatal("expected error")
	}
	if fx.tickets.updateCalls != 0 {
		t.Error("failed history insert must abort before the ticket update")
	}
	if len(fx.dispatcher.published) != 0 {
		t.Error("failed update must not publish events")
	}
}

func TestCreateTicketForcesInitialStatus(t *testing.T) {
	fx := newTicketFixture()

	detail, err := fx.service.CreateTicket(context.Background(), requester(7), TicketCreateInput{
		Message:  "vpn down",
		Category: "2",
		Priority: "1",
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if detail.StatusID != domain.InitialStatusID {
		t.Errorf("new ticket status = %d, want %d", detail.StatusID, domain.InitialStatusID)
	}
	if detail.Requester == nil || detail.Requester.ID != 7 {
		t.Errorf("requester not attributed: %+v", detail.Requester)
	}
	if len(fx.dispatcher.published) != 1 || fx.dispatcher.published[0].Type != events.EventTicketCreated {
		t.Errorf("expected a created event, got %+v", fx.dispatcher.published)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	fx := newTicketFixture()

	if _, err := fx.service.CreateTicket(context.Background(), requester(7), TicketCreateInput{
		Message: "  ", Category: "1", Priority: "1",
	}); err == nil {
		t.Error("blank message must be rejected")
	}
	if _, err := fx.service.CreateTicket(context.Background(), requester(7), TicketCreateInput{
		Message: "help", Category: "urgent", Priority: "1",
	}); err == nil {
		t.Error("non-numeric category must be rejected")
	}
}

func TestListTicketsScopesNonAdminToOwn(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7), seedTicket(2, 8), seedTicket(3, 7))

	own, err := fx.service.ListTickets(context.Background(), requester(7), nil)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("expected 2 own tickets, got %d", len(own))
	}
	for _, detail := range own {
		if detail.Requester == nil || detail.Requester.ID != 7 {
			t.Errorf("foreign ticket leaked: %+v", detail)
		}
	}

	// The scoping wins even when the caller asks for another requester.
	other := int64(8)
	own, err = fx.service.ListTickets(context.Background(), requester(7), &other)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(own) != 2 {
		t.Errorf("non-admin filter override leaked %d tickets", len(own))
	}

	all, err := fx.service.ListTickets(context.Background(), admin(), nil)
	if err != nil {
		t.Fatalf("ListTickets admin: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("admin sees %d tickets, want 3", len(all))
	}

	filtered, err := fx.service.ListTickets(context.Background(), admin(), &other)
	if err != nil {
		t.Fatalf("ListTickets admin filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != 2 {
		t.Errorf("admin filter by requester 8 returned %+v", filtered)
	}
}

func TestGetTicketEnforcesOwnership(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	if _, err := fx.service.GetTicket(context.Background(), requester(8), 1); err == nil {
		t.Error("foreign ticket must be forbidden")
	} else if status := domainErrStatus(t, err); status != 403 {
		t.Errorf("expected 403, got %d", status)
	}

	if _, err := fx.service.GetTicket(context.Background(), requester(7), 1); err != nil {
		t.Errorf("owner must read own ticket: %v", err)
	}
	if _, err := fx.service.GetTicket(context.Background(), admin(), 1); err != nil {
		t.Errorf("admin must read any ticket: %v", err)
	}

	if _, err := fx.service.GetTicket(context.Background(), admin(), 404); err == nil {
		t.Error("missing ticket must be a not-found error")
	}
}

func TestAddComment(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	detail, err := fx.service.AddComment(context.Background(), requester(7), 1, "  any update?  ")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if detail.Body != "any update?" {
		t.Errorf("body = %q", detail.Body)
	}
	if detail.Author.ID != 7 {
		t.Errorf("author = %+v", detail.Author)
	}

	if _, err := fx.service.AddComment(context.Background(), requester(7), 99, "hello"); err == nil {
		t.Error("comment on a missing ticket must fail")
	}
	if _, err := fx.service.AddComment(context.Background(), requester(7), 1, "   "); err == nil {
		t.Error("blank comment must be rejected")
	}
}

func TestListHistory(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	if _, err := fx.service.UpdateTicket(context.Background(), admin(), 1, TicketPatch{
		Status:   strPtr("2"),
		Priority: strPtr("1"),
	}); err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}

	entries, err := fx.service.ListHistory(context.Background(), admin(), 1)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.TicketID != 1 || entry.UserID != 99 {
			t.Errorf("entry attribution: %+v", entry)
		}
	}

	if _, err := fx.service.ListHistory(context.Background(), requester(7), 1); err == nil {
		t.Error("non-admin history read must be forbidden")
	} else if status := domainErrStatus(t, err); status != 403 {
		t.Errorf("expected 403, got %d", status)
	}

	if _, err := fx.service.ListHistory(context.Background(), admin(), 42); err == nil {
		t.Error("history for a missing ticket must be not found")
	} else if status := domainErrStatus(t, err); status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestDeleteTicket(t *testing.T) {
	fx := newTicketFixture(seedTicket(1, 7))

	if err := fx.service.DeleteTicket(context.Background(), admin(), 1); err != nil {
		t.Fatalf("DeleteTicket: %v", err)
	}
	if _, err := fx.tickets.GetByID(context.Background(), 1); !errors.Is(err, pgx.ErrNoRows) {
		t.Error("ticket must be gone")
	}
	if err := fx.service.DeleteTicket(context.Background(), admin(), 1); err == nil {
		t.Error("second delete must report not found")
	}
}
