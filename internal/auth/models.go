package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	Role              string    `json:"role"`
	Avatar            string    `json:"avatar"`
	Password          []byte    `json:"-"`
	PlaintextPassword string    `json:"-"`
	Token             string    `json:"-"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

func (user *User) IsAdmin() bool {
	return user != nil && user.Role == RoleAdmin
}

type UserClaim struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`

	jwt.RegisteredClaims
}
