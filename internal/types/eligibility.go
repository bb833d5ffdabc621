package types

import "time"

// SendDenial enumerates the reasons a message send is refused. The HTTP
// relay handler and the websocket publish path share this check so the two
// entry points can never drift apart.
type SendDenial int

const (
	SendAllowed SendDenial = iota
	DenyChatClosed
	DenyNotParticipant
	DenyBanned
	DenyMuted
)

// CanSendMessage decides whether sender may append a message to chat at the
// given time. For DenyMuted the second return value is the mute expiry so
// callers can tell the sender when they may speak again. Ban and mute state
// must come from a freshly loaded user record; socket-level authorization
// goes stale.
func CanSendMessage(sender User, chat Chat, now time.Time) (SendDenial, time.Time) {
	if chat.Status != ChatActive {
		return DenyChatClosed, time.Time{}
	}
	if !chat.IsParticipant(sender.Id) {
		return DenyNotParticipant, time.Time{}
	}
	if sender.IsBanned(now) {
		return DenyBanned, time.Time{}
	}
	if sender.IsMuted(now) {
		return DenyMuted, *sender.MuteExpiresAt
	}
	return SendAllowed, time.Time{}
}
