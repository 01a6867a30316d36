package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) CreateWithJob(ctx context.Context, n *domain.Notification, j *domain.Job) error {
	return m.Called(ctx, n, j).Error(0)
}
func (m *mockNotificationStore) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Notification, error) {
	args := m.Called(ctx, userID, key)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationStore) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationStore) List(ctx context.Context, userID string, limit int32, since time.Time) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, limit, since)
	return args.Get(0).([]domain.Notification), args.Error(1)
}
func (m *mockNotificationStore) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	args := m.Called(ctx, userID, ids)
	return args.Int(0), args.Error(1)
}
func (m *mockNotificationStore) SoftDelete(ctx context.Context, userID, notificationID string) error {
	return m.Called(ctx, userID, notificationID).Error(0)
}

type mockJobStore struct{ mock.Mock }

func (m *mockJobStore) GetByNotification(ctx context.Context, notificationID string) (*domain.Job, error) {
	args := m.Called(ctx, notificationID)
	if j, _ := args.Get(0).(*domain.Job); j != nil {
		return j, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func baseReq() domain.CreateNotificationRequest {
	return domain.CreateNotificationRequest{
		Title:          "Hi",
		Body:           "Body",
		IdempotencyKey: "k1",
	}
}

// --- CreateOrGet tests ---

func TestCreateOrGet_NewNotification(t *testing.T) {
	ns := &mockNotificationStore{}
	ns.On("GetByIdempotencyKey", mock.Anything, "u1", "k1").Return(nil, domain.ErrNotFound)
	ns.On("CreateWithJob", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(ns, &mockJobStore{})
	res, err := svc.CreateOrGet(context.Background(), "u1", baseReq())

	require.NoError(t, err)
	assert.False(t, res.Duplicated)
	require.NotNil(t, res.JobID)
	assert.NotEmpty(t, res.Notification.NotificationID)
	assert.Equal(t, "u1", res.Notification.UserID)

	// The job must be created pending and point at the notification.
	createdJob := ns.Calls[1].Arguments.Get(2).(*domain.Job)
	assert.Equal(t, domain.JobPending, createdJob.Status)
	assert.Equal(t, res.Notification.NotificationID, createdJob.NotificationID)
	ns.AssertExpectations(t)
}

func TestCreateOrGet_WithoutKey_SkipsLookup(t *testing.T) {
	ns := &mockNotificationStore{}
	ns.On("CreateWithJob", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	req := baseReq()
	req.IdempotencyKey = ""
	svc := NewService(ns, &mockJobStore{})
	res, err := svc.CreateOrGet(context.Background(), "u1", req)

	require.NoError(t, err)
	assert.False(t, res.Duplicated)
	ns.AssertNotCalled(t, "GetByIdempotencyKey", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrGet_Duplicate_ReturnsOriginal(t *testing.T) {
	existing := &domain.Notification{NotificationID: "n1", UserID: "u1", IdempotencyKey: "k1"}

	ns := &mockNotificationStore{}
	ns.On("GetByIdempotencyKey", mock.Anything, "u1", "k1").Return(existing, nil)

	js := &mockJobStore{}
	js.On("GetByNotification", mock.Anything, "n1").Return(&domain.Job{JobID: "j1", Status: domain.JobFailed}, nil)

	svc := NewService(ns, js)
	res, err := svc.CreateOrGet(context.Background(), "u1", baseReq())

	require.NoError(t, err)
	assert.True(t, res.Duplicated)
	assert.Equal(t, "n1", res.Notification.NotificationID)
	require.NotNil(t, res.JobID)
	// The dedup key is permanent: a failed job still resolves to the original.
	assert.Equal(t, "j1", *res.JobID)
	ns.AssertNotCalled(t, "CreateWithJob", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrGet_Duplicate_JobRowAbsent(t *testing.T) {
	existing := &domain.Notification{NotificationID: "n1", UserID: "u1"}

	ns := &mockNotificationStore{}
	ns.On("GetByIdempotencyKey", mock.Anything, "u1", "k1").Return(existing, nil)

	js := &mockJobStore{}
	js.On("GetByNotification", mock.Anything, "n1").Return(nil, domain.ErrNotFound)

	svc := NewService(ns, js)
	res, err := svc.CreateOrGet(context.Background(), "u1", baseReq())

	require.NoError(t, err)
	assert.True(t, res.Duplicated)
	assert.Nil(t, res.JobID)
}

func TestCreateOrGet_ConcurrentConflict_FallsBackToLookup(t *testing.T) {
	winner := &domain.Notification{NotificationID: "n-winner", UserID: "u1", IdempotencyKey: "k1"}

	ns := &mockNotificationStore{}
	// First lookup misses, the create loses the race, the second lookup
	// finds the concurrent winner.
	ns.On("GetByIdempotencyKey", mock.Anything, "u1", "k1").Return(nil, domain.ErrNotFound).Once()
	ns.On("CreateWithJob", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrConflict)
	ns.On("GetByIdempotencyKey", mock.Anything, "u1", "k1").Return(winner, nil).Once()

	js := &mockJobStore{}
	js.On("GetByNotification", mock.Anything, "n-winner").Return(&domain.Job{JobID: "j-winner"}, nil)

	svc := NewService(ns, js)
	res, err := svc.CreateOrGet(context.Background(), "u1", baseReq())

	require.NoError(t, err)
	assert.True(t, res.Duplicated)
	assert.Equal(t, "n-winner", res.Notification.NotificationID)
	ns.AssertExpectations(t)
}

func TestCreateOrGet_StoreError_Propagated(t *testing.T) {
	ns := &mockNotificationStore{}
	ns.On("GetByIdempotencyKey", mock.Anything, "u1", "k1").Return(nil, domain.ErrNotFound)
	ns.On("CreateWithJob", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("table throttled"))

	svc := NewService(ns, &mockJobStore{})
	_, err := svc.CreateOrGet(context.Background(), "u1", baseReq())

	assert.ErrorContains(t, err, "table throttled")
}

// --- read-path tests ---

func TestGet_OtherUsersNotification_NotFound(t *testing.T) {
	ns := &mockNotificationStore{}
	ns.On("Get", mock.Anything, "n1").Return(&domain.Notification{NotificationID: "n1", UserID: "u2"}, nil)

	svc := NewService(ns, &mockJobStore{})
	_, err := svc.Get(context.Background(), "u1", "n1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGet_SoftDeleted_NotFound(t *testing.T) {
	ns := &mockNotificationStore{}
	ns.On("Get", mock.Anything, "n1").Return(&domain.Notification{NotificationID: "n1", UserID: "u1", IsDeleted: true}, nil)

	svc := NewService(ns, &mockJobStore{})
	_, err := svc.Get(context.Background(), "u1", "n1")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestList_ClampsLimit(t *testing.T) {
	ns := &mockNotificationStore{}
	ns.On("List", mock.Anything, "u1", int32(20), mock.Anything).Return([]domain.Notification{}, nil)

	svc := NewService(ns, &mockJobStore{})
	_, err := svc.List(context.Background(), "u1", 500, time.Time{})

	require.NoError(t, err)
	ns.AssertExpectations(t)
}
