package service

import (
	"context"
	"time"

	"github.com/readingcompanion/companion-server/internal/auth"
	"github.com/readingcompanion/companion-server/internal/errors"
	"github.com/readingcompanion/companion-server/internal/logger"
)

// validProviders are the identity providers a client may exchange for a
// token. "local" is the single-user desktop mode.
var validProviders = map[string]bool{
	"apple":  true,
	"google": true,
	"local":  true,
}

// AuthService exchanges client identities for access tokens.
type AuthService struct {
	tokens *auth.TokenService
	logger *logger.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(tokens *auth.TokenService, log *logger.Logger) *AuthService {
	return &AuthService{
		tokens: tokens,
		logger: log,
	}
}

// TokenResult is a minted access token and its lifetime.
type TokenResult struct {
	OwnerID     string
	AccessToken string
	ExpiresIn   time.Duration
}

// ExchangeIdentity mints an access token for a provider identity. The
// owner ID is derived from the provider and subject, so the same person
// always lands on the same notes.
func (s *AuthService) ExchangeIdentity(ctx context.Context, provider, subject string) (*TokenResult, error) {
	if !validProviders[provider] {
		return nil, errors.Validation("unknown identity provider")
	}
	if subject == "" {
		return nil, errors.Validation("subject is required")
	}

	ownerID := provider + ":" + subject
	token, err := s.tokens.GenerateAccessToken(ownerID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate access token")
	}

	s.logger.Info("access token issued", "owner_id", ownerID)
	return &TokenResult{
		OwnerID:     ownerID,
		AccessToken: token,
		ExpiresIn:   s.tokens.AccessTokenDuration(),
	}, nil
}
