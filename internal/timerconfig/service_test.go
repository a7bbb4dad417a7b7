package timerconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codekids/quiz-backend/internal/models"
)

type brokenRepo struct{}

func (brokenRepo) Load(context.Context) (*models.TimerConfig, error) {
	return nil, errors.New("disk on fire")
}

func (brokenRepo) Save(context.Context, models.TimerConfig) error {
	return errors.New("disk on fire")
}

func newFileService(t *testing.T) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "admin-config.json")
	svc := NewService(NewFileRepository(path), nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, path
}

func TestMinutesDefaultsWhenMissing(t *testing.T) {
	svc, path := newFileService(t)
	if got := svc.Minutes(context.Background()); got != DefaultMinutes {
		t.Fatalf("Minutes = %d, want %d", got, DefaultMinutes)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("public read must not create the config file")
	}
	if got := svc.DurationSeconds(context.Background()); got != 600 {
		t.Fatalf("DurationSeconds = %d, want 600", got)
	}
}

func TestMinutesDefaultsWhenUnreadable(t *testing.T) {
	svc := NewService(brokenRepo{}, nil)
	if got := svc.Minutes(context.Background()); got != DefaultMinutes {
		t.Fatalf("Minutes = %d, want %d", got, DefaultMinutes)
	}

	path := filepath.Join(t.TempDir(), "admin-config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc = NewService(NewFileRepository(path), nil)
	if got := svc.Minutes(context.Background()); got != DefaultMinutes {
		t.Fatalf("Minutes on corrupt file = %d, want %d", got, DefaultMinutes)
	}
}

func TestConfigCreatesDefault(t *testing.T) {
	svc, path := newFileService(t)
	cfg, err := svc.Config(context.Background())
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if cfg.TimerDurationMinutes != 10 || cfg.UpdatedBy != "system" {
		t.Fatalf("unexpected default %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
}

func TestSetValidatesRange(t *testing.T) {
	svc, _ := newFileService(t)
	tests := []struct {
		minutes int
		wantErr bool
	}{
		{0, true},
		{-5, true},
		{61, true},
		{1, false},
		{60, false},
		{25, false},
	}
	for _, tt := range tests {
		_, err := svc.Set(context.Background(), tt.minutes, "admin")
		if tt.wantErr != errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("Set(%d) err = %v, wantErr %v", tt.minutes, err, tt.wantErr)
		}
	}
	if got := svc.Minutes(context.Background()); got != 25 {
		t.Fatalf("Minutes after Set = %d, want 25", got)
	}
}

func TestSetPersistsActor(t *testing.T) {
	svc, path := newFileService(t)
	if _, err := svc.Set(context.Background(), 15, "admin"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	cfg, err := NewFileRepository(path).Load(context.Background())
	if err != nil || cfg == nil {
		t.Fatalf("Load: %v %v", cfg, err)
	}
	if cfg.TimerDurationMinutes != 15 || cfg.UpdatedBy != "admin" || !cfg.LastUpdated.Equal(svc.now()) {
		t.Fatalf("unexpected stored config %+v", cfg)
	}
}
