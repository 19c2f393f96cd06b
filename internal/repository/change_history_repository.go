package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/domain"
)

// ChangeHistoryRepository stores the append-only audit trail. Entries are
// never updated or deleted here; only a cascading ticket delete removes them.
type ChangeHistoryRepository interface {
	WithTx(tx pgx.Tx) ChangeHistoryRepository
	Create(ctx context.Context, entry *domain.ChangeEntry) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChangeEntry, error)
}

type changeHistoryRepository struct {
	db DB
}

// NewChangeHistoryRepository builds repository.
func NewChangeHistoryRepository(db DB) ChangeHistoryRepository {
	return &changeHistoryRepository{db: db}
}

func (r *changeHistoryRepository) WithTx(tx pgx.Tx) ChangeHistoryRepository {
	return &changeHistoryRepository{db: tx}
}

func (r *changeHistoryRepository) Create(ctx context.Context, entry *domain.ChangeEntry) error {
	const query = `
        INSERT INTO change_history (ticket_id, user_id, field_changed, previous_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, change_date`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.UserID,
		entry.FieldChanged,
		entry.PreviousValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.ChangeDate)
}

func (r *changeHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ChangeEntry, error) {
	const query = `
        SELECT id, ticket_id, user_id, field_changed, previous_value, new_value, change_date
        FROM change_history WHERE ticket_id=$1 ORDER BY change_date ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChangeEntry
	for rows.Next() {
		var entry domain.ChangeEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.UserID,
			&entry.FieldChanged,
			&entry.PreviousValue,
			&entry.NewValue,
			&entry.ChangeDate,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
