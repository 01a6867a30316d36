package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/pkg/id"
)

type Service interface {
	// CreateOrGet creates a notification and its pending delivery job, or
	// returns the original pair when the (userID, idempotencyKey) was seen
	// before. The dedup key is permanent: a duplicate resolves to the
	// original even if its job already finished or failed.
	CreateOrGet(ctx context.Context, userID string, req domain.CreateNotificationRequest) (*domain.CreateResult, error)
	List(ctx context.Context, userID string, limit int32, since time.Time) ([]domain.Notification, error)
	Get(ctx context.Context, userID, notificationID string) (*domain.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	Delete(ctx context.Context, userID, notificationID string) error
}

type notificationStore interface {
	CreateWithJob(ctx context.Context, n *domain.Notification, j *domain.Job) error
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Notification, error)
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	List(ctx context.Context, userID string, limit int32, since time.Time) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	SoftDelete(ctx context.Context, userID, notificationID string) error
}

type jobStore interface {
	GetByNotification(ctx context.Context, notificationID string) (*domain.Job, error)
}

type service struct {
	repo    notificationStore
	jobRepo jobStore
}

func NewService(repo notificationStore, jobRepo jobStore) Service {
	return &service{repo: repo, jobRepo: jobRepo}
}

func (s *service) CreateOrGet(ctx context.Context, userID string, req domain.CreateNotificationRequest) (*domain.CreateResult, error) {
	if req.IdempotencyKey != "" {
		if res, err := s.lookupExisting(ctx, userID, req.IdempotencyKey); err == nil {
			return res, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         userID,
		Title:          req.Title,
		Body:           req.Body,
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}
	j := &domain.Job{
		JobID:          id.New(),
		NotificationID: n.NotificationID,
		Status:         domain.JobPending,
		CreatedAt:      now,
	}

	err := s.repo.CreateWithJob(ctx, n, j)
	if err == nil {
		return &domain.CreateResult{Notification: n, JobID: &j.JobID}, nil
	}
	if errors.Is(err, domain.ErrConflict) && req.IdempotencyKey != "" {
		// A concurrent request with the same key won the transaction; fall
		// back to the lookup path and hand back the winner's pair.
		return s.lookupExisting(ctx, userID, req.IdempotencyKey)
	}
	return nil, err
}

func (s *service) lookupExisting(ctx context.Context, userID, key string) (*domain.CreateResult, error) {
	existing, err := s.repo.GetByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	res := &domain.CreateResult{Notification: existing, Duplicated: true}
	if job, err := s.jobRepo.GetByNotification(ctx, existing.NotificationID); err == nil {
		res.JobID = &job.JobID
	}
	return res, nil
}

func (s *service) List(ctx context.Context, userID string, limit int32, since time.Time) ([]domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, userID, limit, since)
}

func (s *service) Get(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID || n.IsDeleted {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	return n, nil
}

func (s *service) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	return s.repo.MarkRead(ctx, userID, ids)
}

func (s *service) Delete(ctx context.Context, userID, notificationID string) error {
	return s.repo.SoftDelete(ctx, userID, notificationID)
}
