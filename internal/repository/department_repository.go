package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/domain"
)

// DepartmentRepository encapsulates department persistence.
type DepartmentRepository interface {
	WithTx(tx pgx.Tx) DepartmentRepository
	Create(ctx context.Context, dept *domain.Department) error
	Update(ctx context.Context, dept *domain.Department) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Department, error)
	List(ctx context.Context) ([]domain.Department, error)
}

type departmentRepository struct {
	db DB
}

// NewDepartmentRepository instantiates repository.
func NewDepartmentRepository(db DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) WithTx(tx pgx.Tx) DepartmentRepository {
	return &departmentRepository{db: tx}
}

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	const query = `
        INSERT INTO departments (name)
        VALUES ($1)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, dept.Name).Scan(&dept.ID, &dept.CreatedAt, &dept.UpdatedAt)
}

func (r *departmentRepository) Update(ctx context.Context, dept *domain.Department) error {
	const query = `UPDATE departments SET name=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, dept.Name, dept.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *departmentRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM departments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *departmentRepository) GetByID(ctx context.Context, id int64) (*domain.Department, error) {
	const query = `SELECT id, name, created_at, updated_at FROM departments WHERE id=$1`
	var dept domain.Department
	if err := r.db.QueryRow(ctx, query, id).Scan(&dept.ID, &dept.Name, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) List(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at, updated_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}
