package exportlog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codekids/quiz-backend/internal/models"
)

// Repository handles export_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an export logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one attempt.
func (r *Repository) Record(ctx context.Context, l *models.ExportLog) error {
	const q = `INSERT INTO export_logs (session_id, participant_name, score, total_questions, destination, status, attempt, error_message, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), $9)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.SessionID, l.ParticipantName, l.Score, l.TotalQuestions, l.Destination,
		l.Status, l.Attempt, l.ErrorMessage, l.CompletedAt).Scan(&l.ID, &l.CreatedAt)
}

// List returns the most recent attempts, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]*models.ExportLog, error) {
	const q = `SELECT id, session_id, participant_name, score, total_questions, destination, status, attempt, error_message, completed_at, created_at
		FROM export_logs
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ExportLog
	for rows.Next() {
		l, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// Latest returns the newest attempt for a session, or nil when there is none.
func (r *Repository) Latest(ctx context.Context, sessionID uuid.UUID) (*models.ExportLog, error) {
	const q = `SELECT id, session_id, participant_name, score, total_questions, destination, status, attempt, error_message, completed_at, created_at
		FROM export_logs
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	l, err := scan(r.pool.QueryRow(ctx, q, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func scan(row pgx.Row) (*models.ExportLog, error) {
	var l models.ExportLog
	var errMsg *string
	if err := row.Scan(&l.ID, &l.SessionID, &l.ParticipantName, &l.Score, &l.TotalQuestions, &l.Destination,
		&l.Status, &l.Attempt, &errMsg, &l.CompletedAt, &l.CreatedAt); err != nil {
		return nil, err
	}
	if errMsg != nil {
		l.ErrorMessage = *errMsg
	}
	return &l, nil
}
