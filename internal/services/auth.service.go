package services

import (
	"context"
	"errors"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/repository"
)

var ErrInvalidAPIKey = errors.New("invalid api key")

type InvestorRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Investor, error)
}

// AuthService resolves request credentials to an investor. It is the single
// capability check evaluated once per request; handlers never inspect
// profile fields themselves.
type AuthService struct {
	investors InvestorRepository
}

func NewAuthService(investors InvestorRepository) *AuthService {
	return &AuthService{
		investors: investors,
	}
}

func (s *AuthService) Authenticate(ctx context.Context, apiKey string) (*model.Investor, error) {
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}
	investor, err := s.investors.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, repository.ErrInvestorNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	return investor, nil
}
