package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id            int
	Username      string
	EmailAddress  string
	PasswordHash  string
	Role          string
	Online        bool
	LastSeen      time.Time
	Banned        bool
	BanExpiresAt  sql.NullTime
	BanReason     sql.NullString
	Muted         bool
	MuteExpiresAt sql.NullTime
	WarningCount  int
	Rating        sql.NullFloat64
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Chat struct {
	Id         int
	ExternalId string
	UserId     int
	ListenerId sql.NullInt64
	Status     string
	Rating     sql.NullInt64
	ReviewText sql.NullString
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   sql.NullTime
}

type Message struct {
	Id        int
	ChatId    int
	SenderId  int
	Type      string
	Content   string
	MediaUrl  sql.NullString
	CreatedAt time.Time
}

type Review struct {
	Id         int
	ChatId     int
	AuthorId   int
	ListenerId int
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

type ModerationLog struct {
	Id              int
	ModeratorId     int
	TargetUserId    int
	Action          string
	Reason          string
	DurationMinutes sql.NullInt64
	CreatedAt       time.Time
}

type Notification struct {
	Id        int
	UserId    int
	Title     string
	Body      string
	Kind      string
	Read      bool
	CreatedAt time.Time
}

type Stats struct {
	TotalUsers  int
	Listeners   int
	ActiveChats int
	Messages    int
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateChatParams struct {
	ExternalId string
	UserId     int
	ListenerId sql.NullInt64
}

type CreateMessageParams struct {
	ChatId   int
	SenderId int
	Type     string
	Content  string
	MediaUrl sql.NullString
}

type CloseChatParams struct {
	ChatId     int
	AuthorId   int
	ListenerId int
	Rating     int
	Comment    string
}

type ModerationParams struct {
	ModeratorId     int
	TargetUserId    int
	Action          string
	Reason          string
	DurationMinutes sql.NullInt64
	MuteExpiresAt   sql.NullTime
	BanExpiresAt    sql.NullTime
}

type UpdateRoleParams struct {
	ActorId      int
	TargetUserId int
	NewRole      string
	Reason       string
}

type DismissParams struct {
	ActorId      int
	TargetUserId int
	Reason       string
}

type CreateNotificationParams struct {
	UserId int
	Title  string
	Body   string
	Kind   string
}
