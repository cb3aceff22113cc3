package users

import (
	"errors"

	"github.com/examportal/examportal/internal/rbac"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         rbac.Role `json:"role"`
	CreatedAt    int64     `json:"created_at"`
}

type Student struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
	CreatedAt  int64  `json:"created_at"`
}

var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRollNumberTaken    = errors.New("roll number already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
