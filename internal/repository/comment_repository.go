package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk/ticketd/internal/domain"
)

// CommentRepository stores ticket comments.
type CommentRepository interface {
	WithTx(tx pgx.Tx) CommentRepository
	Create(ctx context.Context, comment *domain.Comment) error
	GetDetail(ctx context.Context, id int64) (*domain.CommentDetail, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.CommentDetail, error)
}

type commentRepository struct {
	db DB
}

// NewCommentRepository builds repository.
func NewCommentRepository(db DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) WithTx(tx pgx.Tx) CommentRepository {
	return &commentRepository{db: tx}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, author_id, body)
        VALUES ($1,$2,$3)
        RETURNING id, comment_date`
	return r.db.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Body,
	).Scan(&comment.ID, &comment.CommentDate)
}

const commentDetailQuery = `
    SELECT cm.id, cm.ticket_id, u.id, u.username, cm.body, cm.comment_date
    FROM comments cm
    JOIN users u ON u.id = cm.author_id`

func (r *commentRepository) GetDetail(ctx context.Context, id int64) (*domain.CommentDetail, error) {
	var detail domain.CommentDetail
	if err := r.db.QueryRow(ctx, commentDetailQuery+` WHERE cm.id=$1`, id).Scan(
		&detail.ID,
		&detail.TicketID,
		&detail.Author.ID,
		&detail.Author.Username,
		&detail.Body,
		&detail.CommentDate,
	); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.CommentDetail, error) {
	rows, err := r.db.Query(ctx, commentDetailQuery+` WHERE cm.ticket_id=$1 ORDER BY cm.comment_date ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CommentDetail
	for rows.Next() {
		var detail domain.CommentDetail
		if err := rows.Scan(
			&detail.ID,
			&detail.TicketID,
			&detail.Author.ID,
			&detail.Author.Username,
			&detail.Body,
			&detail.CommentDate,
		); err != nil {
			return nil, err
		}
		result = append(result, detail)
	}
	return result, rows.Err()
}
