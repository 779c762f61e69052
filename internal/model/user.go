package model

import "time"

// User is an account owner.
type User struct {
	CreatedAt    time.Time
	TelegramID   *int64
	Name         string
	Email        string
	PasswordHash string
	ID           int64
}
