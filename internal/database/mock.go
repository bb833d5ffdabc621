package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) UpdateOnlineStatus(userId int, online bool) error {
	args := m.Called(userId, online)
	return args.Error(0)
}
func (m *MockRepository) ListUsers() ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) ListActiveUserIds() ([]int, error) {
	args := m.Called()
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockRepository) CreateChat(params CreateChatParams) (Chat, error) {
	args := m.Called(params)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockRepository) GetChatByExternalId(externalId string) (Chat, error) {
	args := m.Called(externalId)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockRepository) GetActiveChatForUser(userId int) (Chat, error) {
	args := m.Called(userId)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockRepository) ListChats() ([]Chat, error) {
	args := m.Called()
	return args.Get(0).([]Chat), args.Error(1)
}
func (m *MockRepository) CloseChatWithReview(params CloseChatParams) (Chat, error) {
	args := m.Called(params)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessages(chatId int) ([]Message, error) {
	args := m.Called(chatId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) ApplyModeration(params ModerationParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) UpdateRole(params UpdateRoleParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) DismissUser(params DismissParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) ListModerationLogs() ([]ModerationLog, error) {
	args := m.Called()
	return args.Get(0).([]ModerationLog), args.Error(1)
}
func (m *MockRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	args := m.Called(params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockRepository) ListNotifications(userId int) ([]Notification, error) {
	args := m.Called(userId)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockRepository) MarkNotificationRead(notificationId, userId int) error {
	args := m.Called(notificationId, userId)
	return args.Error(0)
}
func (m *MockRepository) GetStats() (Stats, error) {
	args := m.Called()
	return args.Get(0).(Stats), args.Error(1)
}
