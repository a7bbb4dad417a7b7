package models

import (
	"time"

	"github.com/google/uuid"
)

// ExportLogStatus for delivery.
const (
	ExportLogStatusSucceeded = "succeeded"
	ExportLogStatusFailed    = "failed"
)

// ExportLog records one export attempt for a completed session.
type ExportLog struct {
	ID              uuid.UUID `json:"id"`
	SessionID       uuid.UUID `json:"session_id"`
	ParticipantName string    `json:"participant_name"`
	Score           int       `json:"score"`
	TotalQuestions  int       `json:"total_questions"`
	Destination     string    `json:"destination"`
	Status          string    `json:"status"`
	Attempt         int       `json:"attempt"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
	CreatedAt       time.Time `json:"created_at"`
}
