// Package testutils provides mock implementations and data factories for testing
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/healthharmony/assistant/internal/domain/assessment"
	"github.com/healthharmony/assistant/internal/domain/user"
	"github.com/healthharmony/assistant/internal/ports/inbound"
	"github.com/healthharmony/assistant/internal/ports/outbound"
	"github.com/stretchr/testify/mock"
)

// MockModelProvider is a mock outbound.ModelProvider
type MockModelProvider struct {
	mock.Mock
}

func (m *MockModelProvider) Name() string {
	return "mock"
}

func (m *MockModelProvider) Generate(ctx context.Context, req outbound.ModelRequest) (*outbound.ModelResponse, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*outbound.ModelResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockModelProvider) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Reply builds a provider response carrying text
func Reply(text string) *outbound.ModelResponse {
	return &outbound.ModelResponse{Text: text, Provider: "mock", Model: "mock-1", PromptTokens: 10, CompletionTokens: 5}
}

// MockCacheRepository is a mock outbound.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if raw, ok := args.Get(0).([]byte); ok {
		return raw, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockUserRepository is an in-memory outbound.UserRepository that also
// records calls
type MockUserRepository struct {
	mock.Mock
	mu    sync.RWMutex
	users map[uuid.UUID]*user.User
}

// NewMockUserRepository creates an empty repository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*user.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.users[u.ID()] = u
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, u *user.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, outbound.ErrNotFound
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, outbound.ErrNotFound
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProfileRepository is a mock outbound.ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Find(ctx context.Context, userID uuid.UUID) (*outbound.StoredProfile, error) {
	args := m.Called(ctx, userID)
	if doc, ok := args.Get(0).(*outbound.StoredProfile); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfileRepository) Save(ctx context.Context, doc *outbound.StoredProfile) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// MockFlowService is a mock inbound.FlowService
type MockFlowService struct {
	mock.Mock
}

func (m *MockFlowService) ValidateProfileItem(ctx context.Context, cmd inbound.ValidateItemCommand) (*assessment.ValidationResult, error) {
	args := m.Called(ctx, cmd)
	if r, ok := args.Get(0).(*assessment.ValidationResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFlowService) GetSuggestions(ctx context.Context, query inbound.SuggestionsQuery) (*assessment.SuggestionsResult, error) {
	args := m.Called(ctx, query)
	if r, ok := args.Get(0).(*assessment.SuggestionsResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFlowService) CheckItemCompatibility(ctx context.Context, cmd inbound.CompatibilityCommand) (*assessment.CompatibilityResult, error) {
	args := m.Called(ctx, cmd)
	if r, ok := args.Get(0).(*assessment.CompatibilityResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFlowService) SuggestAlternatives(ctx context.Context, cmd inbound.ItemCommand) (*assessment.AlternativesResult, error) {
	args := m.Called(ctx, cmd)
	if r, ok := args.Get(0).(*assessment.AlternativesResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFlowService) GetPostIngestionAdvice(ctx context.Context, cmd inbound.ItemCommand) (*assessment.AdviceResult, error) {
	args := m.Called(ctx, cmd)
	if r, ok := args.Get(0).(*assessment.AdviceResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFlowService) GetLifestyleTips(ctx context.Context, query inbound.TipsQuery) (*assessment.LifestyleTipsResult, error) {
	args := m.Called(ctx, query)
	if r, ok := args.Get(0).(*assessment.LifestyleTipsResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
