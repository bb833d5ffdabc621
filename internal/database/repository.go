package database

type Repository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(userId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	UpdateOnlineStatus(userId int, online bool) error
	ListUsers() ([]User, error)
	ListActiveUserIds() ([]int, error)

	CreateChat(params CreateChatParams) (Chat, error)
	GetChatByExternalId(externalId string) (Chat, error)
	GetActiveChatForUser(userId int) (Chat, error)
	ListChats() ([]Chat, error)
	CloseChatWithReview(params CloseChatParams) (Chat, error)

	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessages(chatId int) ([]Message, error)

	ApplyModeration(params ModerationParams) (User, error)
	UpdateRole(params UpdateRoleParams) (User, error)
	DismissUser(params DismissParams) (User, error)
	ListModerationLogs() ([]ModerationLog, error)

	CreateNotification(params CreateNotificationParams) (Notification, error)
	ListNotifications(userId int) ([]Notification, error)
	MarkNotificationRead(notificationId, userId int) error

	GetStats() (Stats, error)
}
