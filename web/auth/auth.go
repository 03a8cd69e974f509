// Package auth delegates identity to an external provider (Clerk). The
// service itself never stores credentials; it only verifies bearer tokens and
// forwards registrations.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/clerkinc/clerk-sdk-go/clerk"
	"github.com/mcnijman/go-emailaddress"
)

var (
	ErrInvalidToken = errors.New("invalid identity token")
	ErrInvalidEmail = errors.New("invalid email address")
)

// IdentityProvider is the external identity collaborator.
type IdentityProvider interface {
	// CreateUser registers credentials with the provider and returns the new
	// user id.
	CreateUser(ctx context.Context, email, password string) (string, error)

	// VerifyToken checks a bearer token and returns the authenticated user
	// id. Invalid or expired tokens yield ErrInvalidToken.
	VerifyToken(token string) (string, error)
}

// ClerkProvider implements IdentityProvider on top of the Clerk API.
type ClerkProvider struct {
	client clerk.Client
}

func NewClerkProvider(apiKey string) (*ClerkProvider, error) {
	client, err := clerk.NewClient(apiKey)
	if err != nil {
		return nil, err
	}

	return &ClerkProvider{client: client}, nil
}

func (p *ClerkProvider) CreateUser(_ context.Context, email, password string) (string, error) {
	if _, err := emailaddress.Parse(email); err != nil {
		return "", ErrInvalidEmail
	}

	user, err := p.client.Users().Create(clerk.CreateUserParams{
		EmailAddresses: []string{email},
		Password:       &password,
	})
	if err != nil {
		return "", err
	}

	return user.ID, nil
}

func (p *ClerkProvider) VerifyToken(token string) (string, error) {
	claims, err := p.client.VerifyToken(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// StatusForProviderError maps a provider registration failure to an HTTP
// status: provider-rejected input (email already in use, weak password and
// the like) is a 400, anything else is a provider outage.
func StatusForProviderError(err error) int {
	if errors.Is(err, ErrInvalidEmail) {
		return http.StatusBadRequest
	}

	var apiErr *clerk.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil &&
		apiErr.Response.StatusCode >= 400 && apiErr.Response.StatusCode < 500 {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}
