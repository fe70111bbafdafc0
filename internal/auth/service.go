package auth

import (
	"errors"
	"fmt"
)

// ErrUnauthorizedService is returned when a publisher's token, declared
// service, and target channel do not line up.
var ErrUnauthorizedService = errors.New("unauthorized_service")

// ServiceAuthenticator decides whether a publishing service may write to a
// channel. The gateway consults it with the raw X-Service-Token value, the
// service the publisher declared in the body, and the derived channel name.
type ServiceAuthenticator interface {
	Authorize(token, service, channel string) error
}

// TokenAuthenticator is the reference authenticator: a static token →
// service map from configuration. A token authorizes exactly the service it
// is mapped to, on any channel addressed under that service.
type TokenAuthenticator struct {
	// Tokens maps a service credential to the service name it belongs to.
	Tokens map[string]string
}

// NewTokenAuthenticator builds an authenticator over a token → service map.
func NewTokenAuthenticator(tokens map[string]string) *TokenAuthenticator {
	if tokens == nil {
		tokens = map[string]string{}
	}
	return &TokenAuthenticator{Tokens: tokens}
}

// Authorize implements ServiceAuthenticator.
func (a *TokenAuthenticator) Authorize(token, service, channel string) error {
	if token == "" {
		return fmt.Errorf("%w: missing service token", ErrUnauthorizedService)
	}
	owner, ok := a.Tokens[token]
	if !ok {
		return fmt.Errorf("%w: unknown service token", ErrUnauthorizedService)
	}
	if owner != service {
		return fmt.Errorf("%w: token belongs to %q, publish declared %q", ErrUnauthorizedService, owner, service)
	}
	return nil
}
