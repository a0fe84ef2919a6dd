package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	RoleLabel    string
}

// Claims is the bearer token payload.
type Claims struct {
	UserID    int64  `json:"uid"`
	RoleLabel string `json:"role"`
	jwt.RegisteredClaims
}

// Token is a signed bearer token.
type Token struct {
	AccessToken string    `json:"token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
