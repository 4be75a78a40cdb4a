package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/nimblebank/cardissuer/internal/bankprovider"
	"github.com/nimblebank/cardissuer/internal/expiry"
	"github.com/nimblebank/cardissuer/issuance/models"
)

// ProviderClient performs the single outbound card-issuance call. Failures
// wrap bankprovider.ErrClientRejected or bankprovider.ErrUnavailable.
type ProviderClient interface {
	IssueCard(ctx context.Context, externalUserID, color string) (bankprovider.IssuedCard, error)
}

// Service is the card issuance orchestrator: it validates the request, calls
// the provider, interprets the outcome and commits the result. Every failure
// it returns is a categorized *Error.
type Service struct {
	repo     *Repository
	provider ProviderClient
	logger   *slog.Logger
}

func NewService(repo *Repository, provider ProviderClient, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		logger:   logger.With(slog.String("component", "issuance")),
	}
}

// IssueCard issues one card for user with the given color. The sequence is
// ordered and the first failure short-circuits the rest: color check,
// provider call, expiration normalization, status presence, commit. Either a
// fully-formed card is persisted and returned, or nothing is stored.
func (s *Service) IssueCard(ctx context.Context, user *models.User, color models.Color) (*models.Card, error) {
	// The API boundary validates color before invoking; re-checked here so
	// the invariant does not depend on the caller.
	if !color.Valid() {
		return nil, newError(ErrInvalidInput, fmt.Sprintf("unsupported color %q", color), nil)
	}

	issued, err := s.provider.IssueCard(ctx, user.ExternalID, string(color))
	if err != nil {
		if errors.Is(err, bankprovider.ErrClientRejected) {
			return nil, newError(ErrUserNotRegistered, "user is not registered for card issuance", err)
		}
		return nil, newError(ErrProviderUnavailable, "the card provider is temporarily unavailable", err)
	}

	var expiration *time.Time
	if issued.ExpirationDate != "" {
		t, err := expiry.Parse(issued.ExpirationDate)
		if err != nil {
			return nil, newError(ErrInvalidCardData, "provider returned an unparseable expiration date", err)
		}
		if t.Before(time.Now()) {
			return nil, newError(ErrInvalidCardData, "provider issued an already-expired card", nil)
		}
		expiration = &t
	}

	if issued.Status == "" {
		return nil, newError(ErrProviderUnavailable, "provider did not return status", nil)
	}

	card := &models.Card{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Color:          color,
		ProviderCardID: issued.ID,
		Status:         issued.Status,
		ExpirationDate: expiration,
	}

	if err := s.repo.CreateCard(ctx, card); err != nil {
		// The provider-side card now exists with no local record. Logged
		// with its reference so it can be reconciled manually.
		s.logger.Error("card issued at provider but not persisted",
			slog.String("provider_card_id", issued.ID),
			slog.String("external_user_id", user.ExternalID),
			slog.Any("err", err))
		return nil, newError(ErrPersistence, "could not store the issued card", err)
	}

	return card, nil
}

// ListCards returns all cards owned by user, newest-created first.
func (s *Service) ListCards(ctx context.Context, user *models.User) ([]*models.Card, error) {
	cards, err := s.repo.ListCards(ctx, user.ID)
	if err != nil {
		return nil, newError(ErrPersistence, "could not list cards", err)
	}
	return cards, nil
}

// GetCard returns the card with cardID iff it is owned by user.
func (s *Service) GetCard(ctx context.Context, user *models.User, cardID string) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, user.ID, cardID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrCardNotFound, "the requested card was not found", err)
		}
		return nil, newError(ErrPersistence, "could not load the card", err)
	}
	return card, nil
}

// RegisterUser creates a user with a generated API key. Bootstrap plumbing
// for the authenticated endpoints; the provider is not involved.
func (s *Service) RegisterUser(ctx context.Context, req models.RegisterUser) (*models.User, error) {
	if req.Username == "" {
		return nil, newError(ErrInvalidInput, "username is required", nil)
	}
	if req.ExternalID == "" {
		return nil, newError(ErrInvalidInput, "external_id is required", nil)
	}

	user := &models.User{
		ID:         uuid.New().String(),
		Username:   req.Username,
		ExternalID: req.ExternalID,
		APIKey:     uuid.New().String(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, newError(ErrInvalidInput, "username is already taken", err)
		}
		return nil, newError(ErrPersistence, "could not store the user", err)
	}

	return user, nil
}
