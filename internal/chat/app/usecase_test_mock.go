package app

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPresenceRepository Mock PresenceRepository
type MockPresenceRepository struct {
	mock.Mock
}

// MarkOnline mock set presence marker
func (m *MockPresenceRepository) MarkOnline(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// GetStatus mock read presence status
func (m *MockPresenceRepository) GetStatus(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// IncrUnread mock unread counter increment
func (m *MockPresenceRepository) IncrUnread(ctx context.Context, conversationID, userID int64) (int64, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(int64), args.Error(1)
}

// GetUnread mock unread counter read
func (m *MockPresenceRepository) GetUnread(ctx context.Context, conversationID, userID int64) (int64, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockMemberRepository Mock MemberRepository
type MockMemberRepository struct {
	mock.Mock
}

// AutoMigrate mock migrate
func (m *MockMemberRepository) AutoMigrate() error {
	args := m.Called()
	return args.Error(0)
}

// ParticipantIDs mock membership lookup
func (m *MockMemberRepository) ParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).([]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEventAppender Mock EventAppender
type MockEventAppender struct {
	mock.Mock
}

// Append mock event log append
func (m *MockEventAppender) Append(ctx context.Context, key, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
