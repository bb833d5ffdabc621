package server

import (
	"net/http"
	"time"

	"github.com/quietdawn/supportchat/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for everything a client sends over the
// socket. Exactly one of the payload fields is set.
type ClientMessage struct {
	BaseMessage
	Publish *Publish `json:"publish,omitempty"`
	Join    *Join    `json:"join,omitempty"`
	Leave   *Leave   `json:"leave,omitempty"`
	Typing  *Typing  `json:"typing,omitempty"`
	UserId  int      `json:"-"`
	client  *Client  `json:"-"`
}

type Publish struct {
	ChatId   string `json:"chat_id"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	MediaUrl string `json:"media_url,omitempty"`
}

type Join struct {
	ChatId string `json:"chat_id"`
}

type Leave struct {
	ChatId string `json:"chat_id"`
}

type Typing struct {
	ChatId  string `json:"chat_id"`
	Started bool   `json:"started"`
}

// ServerMessage is the envelope for everything sent to a client. UserId
// targets user-level pushes routed through the chat server; it never goes
// over the wire.
type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
	UserId       int            `json:"-"`
	SkipClient   *Client        `json:"-"`
	// chatId routes relayed messages to a loaded room
	chatId string `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	Typing     *TypingEvent        `json:"typing,omitempty"`
	Presence   *PresenceEvent      `json:"presence,omitempty"`
	Notice     *types.Notification `json:"notice,omitempty"`
	ChatClosed *ChatClosed         `json:"chat_closed,omitempty"`
}

type TypingEvent struct {
	ChatId  string `json:"chat_id"`
	UserId  int    `json:"user_id"`
	Started bool   `json:"started"`
}

type PresenceEvent struct {
	ChatId  string `json:"chat_id"`
	UserId  int    `json:"user_id"`
	Present bool   `json:"present"`
}

type ChatClosed struct {
	ChatId string `json:"chat_id"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrChatNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "chat not found",
		},
	}
}

func ErrChatClosed(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "chat is closed",
		},
	}
}

func ErrNotParticipant(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "not a chat participant",
		},
	}
}

func ErrAccountBlocked(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "account blocked",
		},
	}
}

func ErrMuted(id int, expiresAt time.Time) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "account muted",
			Data:         map[string]any{"mute_expires_at": expiresAt},
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
