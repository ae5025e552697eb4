package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mindroute-ai/mindroute/src/models"
)

// MockProviderClient implements models.ProviderClient
type MockProviderClient struct {
	mock.Mock
	ProviderID string
}

func (m *MockProviderClient) ID() string {
	return m.ProviderID
}

func (m *MockProviderClient) Complete(ctx context.Context, prompt string) (*models.Completion, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Completion), args.Error(1)
}

// MockCacheTier implements models.CacheTierStore
type MockCacheTier struct {
	mock.Mock
	TierName string
}

func (m *MockCacheTier) Name() string {
	return m.TierName
}

func (m *MockCacheTier) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CacheEntry), args.Error(1)
}

func (m *MockCacheTier) Set(ctx context.Context, entry *models.CacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockCacheTier) Delete(ctx context.Context, fingerprint string) error {
	args := m.Called(ctx, fingerprint)
	return args.Error(0)
}

func (m *MockCacheTier) Stats() models.TierStats {
	args := m.Called()
	return args.Get(0).(models.TierStats)
}

func (m *MockCacheTier) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockOutcomeStore implements models.OutcomeStore
type MockOutcomeStore struct {
	mock.Mock
}

func (m *MockOutcomeStore) Append(ctx context.Context, d *models.RoutingDecision) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockOutcomeStore) RecentSince(ctx context.Context, since time.Time) ([]models.RoutingDecision, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoutingDecision), args.Error(1)
}

func (m *MockOutcomeStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutcomeStore) AttachFeedback(ctx context.Context, requestID string, rating int) error {
	args := m.Called(ctx, requestID, rating)
	return args.Error(0)
}

func (m *MockOutcomeStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
