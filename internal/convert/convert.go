// Package convert maps database rows onto the API-facing types. Password
// hashes never cross this boundary.
package convert

import (
	"github.com/quietdawn/supportchat/internal/database"
	"github.com/quietdawn/supportchat/internal/types"
)

func ToUser(u database.User) types.User {
	user := types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		Role:         types.Role(u.Role),
		Online:       u.Online,
		LastSeen:     u.LastSeen,
		Banned:       u.Banned,
		Muted:        u.Muted,
		WarningCount: u.WarningCount,
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}

	if u.BanExpiresAt.Valid {
		t := u.BanExpiresAt.Time
		user.BanExpiresAt = &t
	}
	if u.BanReason.Valid {
		user.BanReason = u.BanReason.String
	}
	if u.MuteExpiresAt.Valid {
		t := u.MuteExpiresAt.Time
		user.MuteExpiresAt = &t
	}
	if u.Rating.Valid {
		r := u.Rating.Float64
		user.Rating = &r
	}

	return user
}

func ToChat(c database.Chat) types.Chat {
	chat := types.Chat{
		Id:         c.Id,
		ExternalId: c.ExternalId,
		UserId:     c.UserId,
		Status:     types.ChatStatus(c.Status),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}

	if c.ListenerId.Valid {
		id := int(c.ListenerId.Int64)
		chat.ListenerId = &id
	}
	if c.Rating.Valid {
		r := int(c.Rating.Int64)
		chat.Rating = &r
	}
	if c.ReviewText.Valid {
		chat.ReviewText = c.ReviewText.String
	}
	if c.ClosedAt.Valid {
		t := c.ClosedAt.Time
		chat.ClosedAt = &t
	}

	return chat
}

func ToMessage(m database.Message) types.Message {
	msg := types.Message{
		Id:        m.Id,
		ChatId:    m.ChatId,
		SenderId:  m.SenderId,
		Type:      types.MessageType(m.Type),
		Content:   m.Content,
		Timestamp: m.CreatedAt,
	}

	if m.MediaUrl.Valid {
		msg.MediaUrl = m.MediaUrl.String
	}

	return msg
}

func ToModerationRecord(l database.ModerationLog) types.ModerationRecord {
	record := types.ModerationRecord{
		Id:           l.Id,
		ModeratorId:  l.ModeratorId,
		TargetUserId: l.TargetUserId,
		Action:       types.ModerationAction(l.Action),
		Reason:       l.Reason,
		CreatedAt:    l.CreatedAt,
	}

	if l.DurationMinutes.Valid {
		d := int(l.DurationMinutes.Int64)
		record.DurationMinutes = &d
	}

	return record
}

func ToNotification(n database.Notification) types.Notification {
	return types.Notification{
		Id:        n.Id,
		UserId:    n.UserId,
		Title:     n.Title,
		Body:      n.Body,
		Kind:      types.NotificationKind(n.Kind),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
