package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockHackChatRepository struct {
	mock.Mock
}

func (m *MockHackChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockHackChatRepository) CreateAccount(params CreateAccountParams) (Profile, error) {
	args := m.Called(params)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockHackChatRepository) GetAccountById(accountId string) (Profile, error) {
	args := m.Called(accountId)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockHackChatRepository) GetAccountByEmail(email string) (Profile, error) {
	args := m.Called(email)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockHackChatRepository) GetProfilesByIds(ids []string) ([]Profile, error) {
	args := m.Called(ids)
	return args.Get(0).([]Profile), args.Error(1)
}
func (m *MockHackChatRepository) CreateEvent(params CreateEventParams) (Event, error) {
	args := m.Called(params)
	return args.Get(0).(Event), args.Error(1)
}
func (m *MockHackChatRepository) GetEventByExternalId(externalId string) (Event, error) {
	args := m.Called(externalId)
	return args.Get(0).(Event), args.Error(1)
}
func (m *MockHackChatRepository) ListEvents() ([]Event, error) {
	args := m.Called()
	return args.Get(0).([]Event), args.Error(1)
}
func (m *MockHackChatRepository) CreateEventMessage(params CreateEventMessageParams) (EventMessage, error) {
	args := m.Called(params)
	return args.Get(0).(EventMessage), args.Error(1)
}
func (m *MockHackChatRepository) ListEventMessages(eventId int) ([]EventMessage, error) {
	args := m.Called(eventId)
	return args.Get(0).([]EventMessage), args.Error(1)
}
func (m *MockHackChatRepository) GetEventMessage(id string) (EventMessage, error) {
	args := m.Called(id)
	return args.Get(0).(EventMessage), args.Error(1)
}
func (m *MockHackChatRepository) DeleteEventMessage(id, userId string) (int64, error) {
	args := m.Called(id, userId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockHackChatRepository) CreateCommunityMessage(params CreateCommunityMessageParams) (CommunityMessage, error) {
	args := m.Called(params)
	return args.Get(0).(CommunityMessage), args.Error(1)
}
func (m *MockHackChatRepository) ListCommunityMessages(limit int) ([]CommunityMessage, error) {
	args := m.Called(limit)
	return args.Get(0).([]CommunityMessage), args.Error(1)
}
func (m *MockHackChatRepository) GetCommunityMessage(id string) (CommunityMessage, error) {
	args := m.Called(id)
	return args.Get(0).(CommunityMessage), args.Error(1)
}
func (m *MockHackChatRepository) DeleteCommunityMessage(id, userId string) (int64, error) {
	args := m.Called(id, userId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockHackChatRepository) UpsertTypingIndicator(eventId int, userId string, lastTypedAt time.Time) (TypingIndicator, error) {
	args := m.Called(eventId, userId, lastTypedAt)
	return args.Get(0).(TypingIndicator), args.Error(1)
}
func (m *MockHackChatRepository) CreateConnection(requesterId, receiverId string) (Connection, error) {
	args := m.Called(requesterId, receiverId)
	return args.Get(0).(Connection), args.Error(1)
}
func (m *MockHackChatRepository) GetConnection(id string) (Connection, error) {
	args := m.Called(id)
	return args.Get(0).(Connection), args.Error(1)
}
func (m *MockHackChatRepository) ListConnections(userId string) ([]Connection, error) {
	args := m.Called(userId)
	return args.Get(0).([]Connection), args.Error(1)
}
func (m *MockHackChatRepository) ConnectionExistsBetween(userA, userB string) bool {
	args := m.Called(userA, userB)
	return args.Bool(0)
}
func (m *MockHackChatRepository) AcceptConnection(id string) (int64, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockHackChatRepository) DeleteConnection(id string) (int64, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Error(1)
}
