package models

// Role represents a caller's privilege level.
type Role string

const (
	// RoleAdmin may change the timer configuration and read export logs.
	RoleAdmin Role = "admin"
)
