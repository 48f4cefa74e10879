package domain

import "context"

// Authenticator resolves a raw session token to the caller it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*Identity, error)
}

type Service interface {
	Authenticator
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
}
