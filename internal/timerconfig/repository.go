package timerconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codekids/quiz-backend/internal/models"
)

// Repository loads and stores the single timer configuration record.
// Load returns nil, nil when no record exists yet.
type Repository interface {
	Load(ctx context.Context) (*models.TimerConfig, error)
	Save(ctx context.Context, cfg models.TimerConfig) error
}

// FileRepository keeps the record in a JSON file.
type FileRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileRepository creates a JSON file repository at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Load(_ context.Context) (*models.TimerConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	var cfg models.TimerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	return &cfg, nil
}

func (r *FileRepository) Save(_ context.Context, cfg models.TimerConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode timer config: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	return nil
}

// PgRepository keeps the record in the single-row admin_config table.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a PostgreSQL-backed repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Load(ctx context.Context) (*models.TimerConfig, error) {
	const q = `SELECT timer_duration_minutes, last_updated, updated_by FROM admin_config WHERE id = 1`
	var cfg models.TimerConfig
	err := r.pool.QueryRow(ctx, q).Scan(&cfg.TimerDurationMinutes, &cfg.LastUpdated, &cfg.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *PgRepository) Save(ctx context.Context, cfg models.TimerConfig) error {
	const q = `INSERT INTO admin_config (id, timer_duration_minutes, last_updated, updated_by)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET timer_duration_minutes = EXCLUDED.timer_duration_minutes,
			last_updated = EXCLUDED.last_updated,
			updated_by = EXCLUDED.updated_by`
	_, err := r.pool.Exec(ctx, q, cfg.TimerDurationMinutes, cfg.LastUpdated, cfg.UpdatedBy)
	return err
}
