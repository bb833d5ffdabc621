package types

import (
	"time"
)

type ChatStatus string

const (
	ChatActive ChatStatus = "active"
	ChatClosed ChatStatus = "closed"
)

type MessageType string

const (
	MessageText    MessageType = "text"
	MessageImage   MessageType = "image"
	MessageVideo   MessageType = "video"
	MessageAudio   MessageType = "audio"
	MessageSticker MessageType = "sticker"
)

func (mt MessageType) Valid() bool {
	switch mt {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageSticker:
		return true
	}
	return false
}

type ModerationAction string

const (
	ActionWarning    ModerationAction = "warning"
	ActionMute       ModerationAction = "mute"
	ActionBan        ModerationAction = "ban"
	ActionUnban      ModerationAction = "unban"
	ActionRoleChange ModerationAction = "role_change"
	ActionDismissal  ModerationAction = "dismissal"
)

// ValidModerateAction reports whether the action may be requested through
// the moderate endpoint. Role changes and dismissals have their own
// endpoints and only appear in the ledger.
func (a ModerationAction) ValidModerateAction() bool {
	switch a {
	case ActionWarning, ActionMute, ActionBan, ActionUnban:
		return true
	}
	return false
}

type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationWarning NotificationKind = "warning"
)

type User struct {
	Id            int        `json:"id"`
	Username      string     `json:"username"`
	EmailAddress  string     `json:"email_address,omitempty"`
	Password      string     `json:"-"`
	Role          Role       `json:"role"`
	Online        bool       `json:"online"`
	LastSeen      time.Time  `json:"last_seen,omitempty"`
	Banned        bool       `json:"banned"`
	BanExpiresAt  *time.Time `json:"ban_expires_at,omitempty"`
	BanReason     string     `json:"ban_reason,omitempty"`
	Muted         bool       `json:"muted"`
	MuteExpiresAt *time.Time `json:"mute_expires_at,omitempty"`
	WarningCount  int        `json:"warning_count"`
	Rating        *float64   `json:"rating,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty"`
}

// IsBanned reports whether the ban is in force at the given time. A ban
// without an expiry is permanent.
func (u User) IsBanned(now time.Time) bool {
	if !u.Banned {
		return false
	}
	if u.BanExpiresAt == nil {
		return true
	}
	return now.Before(*u.BanExpiresAt)
}

// IsMuted reports whether the mute is in force at the given time. Mutes
// always carry an expiry; a mute without one is treated as lapsed.
func (u User) IsMuted(now time.Time) bool {
	if !u.Muted || u.MuteExpiresAt == nil {
		return false
	}
	return now.Before(*u.MuteExpiresAt)
}

type Chat struct {
	Id         int        `json:"id"`
	ExternalId string     `json:"external_id"`
	UserId     int        `json:"user_id"`
	ListenerId *int       `json:"listener_id,omitempty"`
	Status     ChatStatus `json:"status"`
	Rating     *int       `json:"rating,omitempty"`
	ReviewText string     `json:"review_text,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// IsParticipant reports whether the user id is the chat's initiator or its
// assigned listener.
func (c Chat) IsParticipant(userId int) bool {
	if c.UserId == userId {
		return true
	}
	return c.ListenerId != nil && *c.ListenerId == userId
}

type Message struct {
	Id        int         `json:"id"`
	ChatId    int         `json:"chat_id"`
	SenderId  int         `json:"sender_id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content,omitempty"`
	MediaUrl  string      `json:"media_url,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type Review struct {
	Id         int       `json:"id"`
	ChatId     int       `json:"chat_id"`
	AuthorId   int       `json:"author_id"`
	ListenerId int       `json:"listener_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

type ModerationRecord struct {
	Id              int              `json:"id"`
	ModeratorId     int              `json:"moderator_id"`
	TargetUserId    int              `json:"target_user_id"`
	Action          ModerationAction `json:"action"`
	Reason          string           `json:"reason,omitempty"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time        `json:"created_at,omitempty"`
}

type Notification struct {
	Id        int              `json:"id"`
	UserId    int              `json:"user_id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Kind      NotificationKind `json:"kind"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
}

// Stats is the aggregate view served by the admin stats endpoint. The
// online count comes from the presence store, not the database.
type Stats struct {
	TotalUsers  int `json:"total_users"`
	Listeners   int `json:"listeners"`
	ActiveChats int `json:"active_chats"`
	Messages    int `json:"messages"`
	OnlineUsers int `json:"online_users"`
}
