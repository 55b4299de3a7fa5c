package domain

import "time"

// Roles assigned to accounts.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a platform account.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         string
	PasswordHash []byte
	CreatedAt    time.Time
}
