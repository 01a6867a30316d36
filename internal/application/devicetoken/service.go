package devicetoken

import (
	"context"
	"fmt"

	"github.com/go-notify-nosql/internal/domain"
)

type Service interface {
	// Register upserts a token for the user. A token already owned by a
	// different user is reassigned, not rejected, since a physical device
	// outlives whichever account was last signed in on it.
	Register(ctx context.Context, userID string, req domain.RegisterTokenRequest) (*domain.DeviceToken, error)
	List(ctx context.Context, userID string) ([]domain.DeviceToken, error)
	// DeleteByToken removes the row matching both token and owner and
	// returns how many rows were removed (0 or 1).
	DeleteByToken(ctx context.Context, userID, token string) (int, error)
	// DeleteByID removes the row with the given id. A row owned by another
	// user yields domain.ErrForbidden; a missing id yields domain.ErrNotFound.
	DeleteByID(ctx context.Context, userID, tokenID string) error
}

type tokenStore interface {
	Upsert(ctx context.Context, userID, token, platform string) (*domain.DeviceToken, error)
	ListByUser(ctx context.Context, userID string) ([]domain.DeviceToken, error)
	GetByID(ctx context.Context, tokenID string) (*domain.DeviceToken, error)
	DeleteByToken(ctx context.Context, userID, token string) (int, error)
	Delete(ctx context.Context, token string) error
}

type service struct {
	repo tokenStore
}

func NewService(repo tokenStore) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, userID string, req domain.RegisterTokenRequest) (*domain.DeviceToken, error) {
	return s.repo.Upsert(ctx, userID, req.Token, req.Platform)
}

func (s *service) List(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) DeleteByToken(ctx context.Context, userID, token string) (int, error) {
	return s.repo.DeleteByToken(ctx, userID, token)
}

func (s *service) DeleteByID(ctx context.Context, userID, tokenID string) error {
	row, err := s.repo.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if row.UserID != userID {
		return fmt.Errorf("token belongs to another user: %w", domain.ErrForbidden)
	}
	return s.repo.Delete(ctx, row.Token)
}
