package auth

import (
	"context"
	"net/http"
)

// DevAuthenticator accepts every request as a fixed identity. Local
// development only.
type DevAuthenticator struct {
	identity Identity
}

func NewDevAuthenticator(cfg Config) *DevAuthenticator {
	return &DevAuthenticator{identity: Identity{
		Subject: cfg.DevSubject,
		Email:   cfg.DevEmail,
		Roles:   append([]string(nil), cfg.DevRoles...),
	}}
}

func (a *DevAuthenticator) Authenticate(_ context.Context, _ *http.Request) (Identity, error) {
	return a.identity, nil
}
