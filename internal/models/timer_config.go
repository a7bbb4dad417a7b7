package models

import "time"

// TimerConfig is the admin-editable countdown length.
type TimerConfig struct {
	TimerDurationMinutes int       `json:"timerDurationMinutes"`
	LastUpdated          time.Time `json:"lastUpdated"`
	UpdatedBy            string    `json:"updatedBy"`
}
