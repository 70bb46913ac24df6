package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "exchangeToken",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/token",
		Summary:     "Exchange identity for access token",
		Description: "Mints a PASETO access token for a provider identity",
		Tags:        []string{"Auth"},
	}, s.handleExchangeToken)
}

// === DTOs ===

// TokenRequest is the request body for exchanging an identity.
type TokenRequest struct {
	Provider string `json:"provider" validate:"required,oneof=apple google local" doc:"Identity provider"`
	Subject  string `json:"subject" validate:"required,min=1,max=200" doc:"Provider-scoped subject"`
}

// TokenInput wraps the token request for Huma.
type TokenInput struct {
	Body TokenRequest
}

// TokenResponse contains a minted access token.
type TokenResponse struct {
	OwnerID     string `json:"ownerId" doc:"Owner ID derived from the identity"`
	AccessToken string `json:"accessToken" doc:"PASETO v4.local access token"`
	ExpiresIn   int64  `json:"expiresIn" doc:"Token lifetime in seconds"`
}

// TokenOutput wraps the token response for Huma.
type TokenOutput struct {
	Body TokenResponse
}

// === Handlers ===

func (s *Server) handleExchangeToken(ctx context.Context, input *TokenInput) (*TokenOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	result, err := s.services.Auth.ExchangeIdentity(ctx, input.Body.Provider, input.Body.Subject)
	if err != nil {
		return nil, err
	}

	return &TokenOutput{
		Body: TokenResponse{
			OwnerID:     result.OwnerID,
			AccessToken: result.AccessToken,
			ExpiresIn:   int64(result.ExpiresIn.Seconds()),
		},
	}, nil
}
