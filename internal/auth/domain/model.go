package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	AccountID snowflake.ID
	Email     string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}
