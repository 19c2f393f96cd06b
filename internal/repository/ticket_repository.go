package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/domain"
)

// TicketFilter scopes ticket listings. A nil RequesterID means no scoping;
// non-admin callers are always scoped to their own id by the service.
type TicketFilter struct {
	RequesterID *int64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	WithTx(tx pgx.Tx) TicketRepository
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetByIDForUpdate locks the ticket row for the duration of the enclosing
	// transaction so concurrent updates serialize and each diff is computed
	// against committed state.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	GetDetail(ctx context.Context, id int64) (*domain.TicketDetail, error)
	ListDetails(ctx context.Context, filter TicketFilter) ([]domain.TicketDetail, error)
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) WithTx(tx pgx.Tx) TicketRepository {
	return &ticketRepository{db: tx}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (message, status_id, category_id, priority_id, requester_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Message,
		ticket.StatusID,
		ticket.CategoryID,
		ticket.PriorityID,
		ticket.RequesterID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET message=$1, status_id=$2, category_id=$3, priority_id=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Message,
		ticket.StatusID,
		ticket.CategoryID,
		ticket.PriorityID,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const ticketColumns = `id, message, status_id, category_id, priority_id, requester_id, created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1 FOR UPDATE`, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.Message,
		&ticket.StatusID,
		&ticket.CategoryID,
		&ticket.PriorityID,
		&ticket.RequesterID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

const ticketDetailQuery = `
    SELECT t.id, t.message,
           t.status_id, s.name,
           t.category_id, c.name,
           t.priority_id, p.name,
           u.id, u.username,
           t.created_at, t.updated_at
    FROM tickets t
    JOIN statuses s ON s.id = t.status_id
    JOIN categories c ON c.id = t.category_id
    JOIN priorities p ON p.id = t.priority_id
    LEFT JOIN users u ON u.id = t.requester_id`

func (r *ticketRepository) GetDetail(ctx context.Context, id int64) (*domain.TicketDetail, error) {
	row := r.db.QueryRow(ctx, ticketDetailQuery+` WHERE t.id=$1`, id)
	detail, err := scanTicketDetail(row)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (r *ticketRepository) ListDetails(ctx context.Context, filter TicketFilter) ([]domain.TicketDetail, error) {
	query := ticketDetailQuery
	args := []any{}
	if filter.RequesterID != nil {
		query += ` WHERE t.requester_id=$1`
		args = append(args, *filter.RequesterID)
	}
	query += ` ORDER BY t.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketDetail
	for rows.Next() {
		detail, err := scanTicketDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *detail)
	}
	return result, rows.Err()
}

func scanTicketDetail(row pgx.Row) (*domain.TicketDetail, error) {
	var (
		detail            domain.TicketDetail
		requesterID       *int64
		requesterUsername *string
	)
	if err := row.Scan(
		&detail.ID,
		&detail.Message,
		&detail.StatusID,
		&detail.StatusName,
		&detail.CategoryID,
		&detail.CategoryName,
		&detail.PriorityID,
		&detail.PriorityName,
		&requesterID,
		&requesterUsername,
		&detail.CreatedAt,
		&detail.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if requesterID != nil && requesterUsername != nil {
		detail.Requester = &domain.UserRef{ID: *requesterID, Username: *requesterUsername}
	}
	return &detail, nil
}
