package timerconfig

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/internal/models"
)

const (
	DefaultMinutes = 10
	MinMinutes     = 1
	MaxMinutes     = 60

	actorSystem = "system"
)

// ErrInvalidDuration is returned by Set for minutes outside [MinMinutes, MaxMinutes].
var ErrInvalidDuration = errors.New("timer duration must be between 1 and 60 minutes")

// Service reads and updates the countdown length.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a timer config service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, now: time.Now, logger: logger}
}

// Minutes never fails: a missing or unreadable record yields DefaultMinutes.
func (s *Service) Minutes(ctx context.Context) int {
	cfg, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn("timer config unreadable, using default", zap.Error(err))
		return DefaultMinutes
	}
	if cfg == nil || cfg.TimerDurationMinutes < MinMinutes || cfg.TimerDurationMinutes > MaxMinutes {
		return DefaultMinutes
	}
	return cfg.TimerDurationMinutes
}

// DurationSeconds is the configured countdown length in seconds.
func (s *Service) DurationSeconds(ctx context.Context) int {
	return s.Minutes(ctx) * 60
}

// Config returns the full record, writing the default one when none exists.
func (s *Service) Config(ctx context.Context) (models.TimerConfig, error) {
	cfg, err := s.repo.Load(ctx)
	if err != nil {
		return models.TimerConfig{}, err
	}
	if cfg != nil {
		return *cfg, nil
	}
	def := models.TimerConfig{
		TimerDurationMinutes: DefaultMinutes,
		LastUpdated:          s.now().UTC(),
		UpdatedBy:            actorSystem,
	}
	if err := s.repo.Save(ctx, def); err != nil {
		return models.TimerConfig{}, err
	}
	s.logger.Info("timer config initialised", zap.Int("minutes", def.TimerDurationMinutes))
	return def, nil
}

// Set validates and stores a new duration.
func (s *Service) Set(ctx context.Context, minutes int, actor string) (models.TimerConfig, error) {
	if minutes < MinMinutes || minutes > MaxMinutes {
		return models.TimerConfig{}, ErrInvalidDuration
	}
	cfg := models.TimerConfig{
		TimerDurationMinutes: minutes,
		LastUpdated:          s.now().UTC(),
		UpdatedBy:            actor,
	}
	if err := s.repo.Save(ctx, cfg); err != nil {
		return models.TimerConfig{}, err
	}
	s.logger.Info("timer config updated", zap.Int("minutes", minutes), zap.String("by", actor))
	return cfg, nil
}
