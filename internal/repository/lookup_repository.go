package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/domain"
)

// LookupRepository persists one of the small reference tables
// (categories, priorities, statuses). The three tables share a shape, so a
// single implementation is parameterized by table name.
type LookupRepository interface {
	WithTx(tx pgx.Tx) LookupRepository
	Kind() domain.LookupKind
	Create(ctx context.Context, lookup *domain.Lookup) error
	Update(ctx context.Context, lookup *domain.Lookup) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Lookup, error)
	List(ctx context.Context) ([]domain.Lookup, error)
}

type lookupRepository struct {
	db    DB
	kind  domain.LookupKind
	table string
}

// NewCategoryRepository accesses the categories table.
func NewCategoryRepository(db DB) LookupRepository {
	return &lookupRepository{db: db, kind: domain.LookupCategory, table: "categories"}
}

// NewPriorityRepository accesses the priorities table.
func NewPriorityRepository(db DB) LookupRepository {
	return &lookupRepository{db: db, kind: domain.LookupPriority, table: "priorities"}
}

// NewStatusRepository accesses the statuses table.
func NewStatusRepository(db DB) LookupRepository {
	return &lookupRepository{db: db, kind: domain.LookupStatus, table: "statuses"}
}

func (r *lookupRepository) WithTx(tx pgx.Tx) LookupRepository {
	return &lookupRepository{db: tx, kind: r.kind, table: r.table}
}

func (r *lookupRepository) Kind() domain.LookupKind {
	return r.kind
}

func (r *lookupRepository) Create(ctx context.Context, lookup *domain.Lookup) error {
	query := fmt.Sprintf(`
        INSERT INTO %s (name)
        VALUES ($1)
        RETURNING id, created_at, updated_at`, r.table)
	return r.db.QueryRow(ctx, query, lookup.Name).Scan(&lookup.ID, &lookup.CreatedAt, &lookup.UpdatedAt)
}

func (r *lookupRepository) Update(ctx context.Context, lookup *domain.Lookup) error {
	query := fmt.Sprintf(`UPDATE %s SET name=$1, updated_at=NOW() WHERE id=$2`, r.table)
	cmd, err := r.db.Exec(ctx, query, lookup.Name, lookup.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *lookupRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, r.table), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *lookupRepository) GetByID(ctx context.Context, id int64) (*domain.Lookup, error) {
	query := fmt.Sprintf(`SELECT id, name, created_at, updated_at FROM %s WHERE id=$1`, r.table)
	var lookup domain.Lookup
	if err := r.db.QueryRow(ctx, query, id).Scan(&lookup.ID, &lookup.Name, &lookup.CreatedAt, &lookup.UpdatedAt); err != nil {
		return nil, err
	}
	return &lookup, nil
}

func (r *lookupRepository) List(ctx context.Context) ([]domain.Lookup, error) {
	query := fmt.Sprintf(`SELECT id, name, created_at, updated_at FROM %s ORDER BY id`, r.table)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Lookup
	for rows.Next() {
		var lookup domain.Lookup
		if err := rows.Scan(&lookup.ID, &lookup.Name, &lookup.CreatedAt, &lookup.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, lookup)
	}
	return result, rows.Err()
}
