package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/helpdesk/ticketd/internal/api/http/handlers"
	"github.com/helpdesk/ticketd/internal/auth"
	"github.com/helpdesk/ticketd/internal/domain"
	"github.com/helpdesk/ticketd/internal/observability"
	"github.com/helpdesk/ticketd/internal/repository"
	"github.com/helpdesk/ticketd/internal/service"
)

type stubStore struct{}

func (s *stubStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type stubTicketRepo struct {
	tickets map[int64]*domain.Ticket
}

func (r *stubTicketRepo) WithTx(tx pgx.Tx) repository.TicketRepository { return r }

func (r *stubTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.ID = int64(len(r.tickets) + 1)
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *stubTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *stubTicketRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *stubTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *stubTicketRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *stubTicketRepo) GetDetail(ctx context.Context, id int64) (*domain.TicketDetail, error) {
	ticket, ok := r.tickets[id]
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
	}
	if ticket.RequesterID != nil {
		detail.Requester = &domain.UserRef{ID: *ticket.RequesterID, Username: "someone"}
	}
	return detail, nil
}

func (r *stubTicketRepo) ListDetails(ctx context.Context, filter repository.TicketFilter) ([]domain.TicketDetail, error) {
	var details []domain.TicketDetail
	for id, ticket := range r.tickets {
		if filter.RequesterID != nil {
			if ticket.RequesterID == nil || *ticket.RequesterID != *filter.RequesterID {
				continue
			}
		}
		detail, err := r.GetDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		details = append(details, *detail)
	}
	return details, nil
}

type stubCommentRepo struct{}

func (r *stubCommentRepo) WithTx(tx pgx.Tx) repository.CommentRepository { return r }

func (r *stubCommentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	comment.ID = 1
	comment.CommentDate = time.Now()
	return nil
}

func (r *stubCommentRepo) GetDetail(ctx context.Context, id int64) (*domain.CommentDetail, error) {
	return &domain.CommentDetail{ID: id, Author: domain.UserRef{ID: 7, Username: "someone"}}, nil
}

func (r *stubCommentRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.CommentDetail, error) {
	return nil, nil
}

type stubLookupRepo struct {
	kind   domain.LookupKind
	values []domain.Lookup
}

func (r *stubLookupRepo) WithTx(tx pgx.Tx) repository.LookupRepository { return r }

func (r *stubLookupRepo) Kind() domain.LookupKind { return r.kind }

func (r *stubLookupRepo) Create(ctx context.Context, lookup *domain.Lookup) error {
	lookup.ID = int64(len(r.values) + 1)
	r.values = append(r.values, *lookup)
	return nil
}

func (r *stubLookupRepo) Update(ctx context.Context, lookup *domain.Lookup) error {
	for i := range r.values {
		if r.values[i].ID == lookup.ID {
			r.values[i] = *lookup
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *stubLookupRepo) Delete(ctx context.Context, id int64) error {
	for i := range r.values {
		if r.values[i].ID == id {
			r.values = append(r.values[:i], r.values[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *stubLookupRepo) GetByID(ctx context.Context, id int64) (*domain.Lookup, error) {
	for i := range r.values {
		if r.values[i].ID == id {
			copied := r.values[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubLookupRepo) List(ctx context.Context) ([]domain.Lookup, error) {
	return append([]domain.Lookup{}, r.values...), nil
}

type stubHistoryRepo struct {
	entries []domain.ChangeEntry
}

func (r *stubHistoryRepo) WithTx(tx pgx.Tx) repository.ChangeHistoryRepository { return r }

func (r *stubHistoryRepo) Create(ctx context.Context, entry *domain.ChangeEntry) error {
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *stubHistoryRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChangeEntry, error) {
	return r.entries, nil
}

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	history *stubHistoryRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	requesterID := int64(7)
	otherRequesterID := int64(8)
	tickets := &stubTicketRepo{tickets: map[int64]*domain.Ticket{
		1: {ID: 1, Message: "broken keyboard", StatusID: 1, CategoryID: 2, PriorityID: 3, RequesterID: &requesterID},
		2: {ID: 2, Message: "no dial tone", StatusID: 1, CategoryID: 2, PriorityID: 3, RequesterID: &otherRequesterID},
	}}
	history := &stubHistoryRepo{}

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:       &stubStore{},
		TicketRepo:  tickets,
		CommentRepo: &stubCommentRepo{},
		HistoryRepo: history,
	})
	lookupService := service.NewLookupService(service.LookupDependencies{
		CategoryRepo: &stubLookupRepo{kind: domain.LookupCategory, values: []domain.Lookup{{ID: 1, Name: "Computer"}}},
		PriorityRepo: &stubLookupRepo{kind: domain.LookupPriority, values: []domain.Lookup{{ID: 1, Name: "High"}}},
		StatusRepo:   &stubLookupRepo{kind: domain.LookupStatus, values: []domain.Lookup{{ID: 1, Name: "Open"}}},
		CacheTTL:     time.Minute,
	})

	tokens := auth.NewTokenManager("test-secret", 60)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test", "test", nil, nil),
		Users:          handlers.NewUsersHandler(nil),
		Departments:    handlers.NewDepartmentsHandler(nil),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Categories:     handlers.NewLookupsHandler(lookupService, domain.LookupCategory),
		Priorities:     handlers.NewLookupsHandler(lookupService, domain.LookupPriority),
		Statuses:       handlers.NewLookupsHandler(lookupService, domain.LookupStatus),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	return &testServer{app: app, tokens: tokens, history: history}
}

func (s *testServer) tokenFor(t *testing.T, user *domain.User) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(user)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (s *testServer) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestUpdateTicketEndpoint(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.tokenFor(t, &domain.User{ID: 99, Username: "admin", IsAdmin: true})

	// Status arrives as a number, priority as a numeric string.
	resp := srv.request(t, http.MethodPut, "/tickets/1", adminToken, map[string]any{
		"status":   4,
		"priority": "2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	if got := data["status"].(map[string]any)["id"].(float64); got != 4 {
		t.Errorf("status id = %v", got)
	}
	if got := data["priority"].(map[string]any)["id"].(float64); got != 2 {
		t.Errorf("priority id = %v", got)
	}
	if len(srv.history.entries) != 2 {
		t.Errorf("expected 2 audit rows, got %d", len(srv.history.entries))
	}
}

func TestUpdateTicketEndpointForbiddenForNonAdmin(t *testing.T) {
	srv := newTestServer(t)
	userToken := srv.tokenFor(t, &domain.User{ID: 7, Username: "someone"})

	resp := srv.request(t, http.MethodPut, "/tickets/1", userToken, map[string]any{"status": 4})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if code := body["error"].(map[string]any)["code"]; code != "FORBIDDEN" {
		t.Errorf("error code = %v", code)
	}
	if len(srv.history.entries) != 0 {
		t.Error("forbidden update must write nothing")
	}
}

func TestUpdateTicketEndpointRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.request(t, http.MethodPut, "/tickets/1", "", map[string]any{"status": 4})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestUpdateTicketEndpointRejectsBadID(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.tokenFor(t, &domain.User{ID: 99, Username: "admin", IsAdmin: true})

	resp := srv.request(t, http.MethodPut, "/tickets/abc", adminToken, map[string]any{"status": 4})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestUpdateTicketEndpointUnknownTicket(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.tokenFor(t, &domain.User{ID: 99, Username: "admin", IsAdmin: true})

	resp := srv.request(t, http.MethodPut, "/tickets/42", adminToken, map[string]any{"status": 4})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCreateTicketEndpoint(t *testing.T) {
	srv := newTestServer(t)
	userToken := srv.tokenFor(t, &domain.User{ID: 7, Username: "someone"})

	resp := srv.request(t, http.MethodPost, "/tickets", userToken, map[string]any{
		"message":  "monitor flickers",
		"category": "2",
		"priority": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	if got := data["status"].(map[string]any)["id"].(float64); got != float64(domain.InitialStatusID) {
		t.Errorf("new ticket status id = %v", got)
	}
}

func TestLookupEnumerationPaths(t *testing.T) {
	srv := newTestServer(t)

	// Both the /tickets/... spellings and the top-level aliases are public.
	for _, path := range []string{
		"/tickets/categories", "/tickets/priorities", "/tickets/status",
		"/categories", "/priorities", "/statuses",
	} {
		resp := srv.request(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
			continue
		}
		body := decodeBody(t, resp)
		if items := body["data"].([]any); len(items) != 1 {
			t.Errorf("GET %s returned %d items, want 1", path, len(items))
		}
	}

	// The literal segments must not fall through to the numeric :id route,
	// and numeric ids must keep working beside them.
	adminToken := srv.tokenFor(t, &domain.User{ID: 99, Username: "admin", IsAdmin: true})
	resp := srv.request(t, http.MethodGet, "/tickets/1", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /tickets/1 = %d, want 200", resp.StatusCode)
	}
}

func TestListTicketsFilterParamSpellings(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.tokenFor(t, &domain.User{ID: 99, Username: "admin", IsAdmin: true})

	for _, query := range []string{"?user_id=7", "?userId=7"} {
		resp := srv.request(t, http.MethodGet, "/tickets"+query, adminToken, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /tickets%s = %d", query, resp.StatusCode)
		}
		body := decodeBody(t, resp)
		items := body["data"].([]any)
		if len(items) != 1 {
			t.Errorf("GET /tickets%s returned %d tickets, want 1", query, len(items))
			continue
		}
		requester := items[0].(map[string]any)["requester"].(map[string]any)
		if requester["id"].(float64) != 7 {
			t.Errorf("GET /tickets%s leaked requester %v", query, requester["id"])
		}
	}
}

func TestTicketHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.tokenFor(t, &domain.User{ID: 99, Username: "admin", IsAdmin: true})

	resp := srv.request(t, http.MethodPut, "/tickets/1", adminToken, map[string]any{"status": 4})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	resp = srv.request(t, http.MethodGet, "/tickets/1/history", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	items := body["data"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(items))
	}
	entry := items[0].(map[string]any)
	if entry["field_changed"] != "status" || entry["previous_value"] != "1" || entry["new_value"] != "4" {
		t.Errorf("audit row = %v", entry)
	}

	userToken := srv.tokenFor(t, &domain.User{ID: 7, Username: "someone"})
	resp = srv.request(t, http.MethodGet, "/tickets/1/history", userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin history status = %d, want 403", resp.StatusCode)
	}
}

func TestHealthLiveEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.request(t, http.MethodGet, "/health/live", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
