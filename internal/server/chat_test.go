package server

import (
	"database/sql"
	"testing"
	"time"

	"github.com/quietdawn/supportchat/internal/database"
	"github.com/quietdawn/supportchat/internal/metrics"
	"github.com/quietdawn/supportchat/internal/types"
	"github.com/stretchr/testify/assert"
)

func newTestChatRoom(cs *ChatServer, chat types.Chat) *ChatRoom {
	r := newChatRoom(cs, chat)
	// the run loop normally arms this in start()
	r.killTimer = time.NewTimer(idleChatTimeout)
	return r
}

func activeTestChat() types.Chat {
	listenerId := 2
	return types.Chat{
		Id:         7,
		ExternalId: "abc123",
		UserId:     1,
		ListenerId: &listenerId,
		Status:     types.ChatActive,
	}
}

func TestChatRoom_handleJoin(t *testing.T) {
	t.Run("participant joins", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRepository{}, &metrics.MockStats{})
		room := newTestChatRoom(cs, activeTestChat())
		client := newTestClient(cs, types.User{Id: 1})

		room.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{ChatId: room.externalId},
			client:      client,
		})

		assert.Contains(t, room.clients, client, "expected client to be in the room")
		assert.Contains(t, client.chats, room.externalId, "expected room tracked on the client")

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected OK response")
			assert.NotNil(t, msg.Response.Data, "expected chat state in response")
		default:
			t.Error("expected join acknowledgement to be queued")
		}
	})

	t.Run("non-participant is refused", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRepository{}, &metrics.MockStats{})
		room := newTestChatRoom(cs, activeTestChat())
		client := newTestClient(cs, types.User{Id: 99})

		room.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{ChatId: room.externalId},
			client:      client,
		})

		assert.NotContains(t, room.clients, client, "expected client not to be in the room")

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 403, msg.Response.ResponseCode, "expected forbidden for non-participant")
		default:
			t.Error("expected refusal to be queued")
		}
	})
}

func TestChatRoom_handlePublish(t *testing.T) {
	chat := activeTestChat()

	freshSender := database.User{Id: 1, Username: "testuser", Role: string(types.RoleUser), Active: true}

	t.Run("successful publish saves and fans out", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(freshSender, nil).Once()
		db.On("CreateMessage", database.CreateMessageParams{
			ChatId:   chat.Id,
			SenderId: 1,
			Type:     string(types.MessageText),
			Content:  "hello",
		}).Return(database.Message{
			Id:       10,
			ChatId:   chat.Id,
			SenderId: 1,
			Type:     string(types.MessageText),
			Content:  "hello",
		}, nil).Once()

		stats := &metrics.MockStats{}
		defer stats.AssertExpectations(t)
		stats.On("Incr", metrics.MessagesRelayed).Once()

		cs := newTestChatServer(t, db, stats)
		room := newTestChatRoom(cs, chat)

		sender := newTestClient(cs, types.User{Id: 1})
		listener := newTestClient(cs, types.User{Id: 2})
		room.addClient(sender)
		room.addClient(listener)

		room.handlePublish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{ChatId: chat.ExternalId, Content: "hello"},
			UserId:      1,
			client:      sender,
		})

		// sender gets the ack first, then the fanned-out message
		select {
		case msg := <-sender.send:
			assert.NotNil(t, msg.Response, "expected ack response")
			assert.Equal(t, 202, msg.Response.ResponseCode, "expected accepted ack")
			assert.Equal(t, 3, msg.Id, "expected ack to echo the message id")
		default:
			t.Fatal("expected ack to be queued to sender")
		}

		for _, c := range []*Client{sender, listener} {
			select {
			case msg := <-c.send:
				assert.NotNil(t, msg.Message, "expected message payload")
				assert.Equal(t, "hello", msg.Message.Content)
				assert.Equal(t, 10, msg.Message.Id, "expected persisted message id")
			default:
				t.Error("expected message to be fanned out")
			}
		}
	})

	t.Run("banned sender is refused per message", func(t *testing.T) {
		banned := freshSender
		banned.Banned = true

		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(banned, nil).Once()

		cs := newTestChatServer(t, db, &metrics.MockStats{})
		room := newTestChatRoom(cs, chat)
		sender := newTestClient(cs, types.User{Id: 1})
		room.addClient(sender)

		room.handlePublish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{ChatId: chat.ExternalId, Content: "hello"},
			UserId:      1,
			client:      sender,
		})

		select {
		case msg := <-sender.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 403, msg.Response.ResponseCode)
			assert.Equal(t, "account blocked", msg.Response.Error)
		default:
			t.Error("expected refusal to be queued")
		}
	})

	t.Run("muted sender gets the expiry back", func(t *testing.T) {
		muted := freshSender
		muted.Muted = true
		muted.MuteExpiresAt = sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true}

		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(muted, nil).Once()

		cs := newTestChatServer(t, db, &metrics.MockStats{})
		room := newTestChatRoom(cs, chat)
		sender := newTestClient(cs, types.User{Id: 1})
		room.addClient(sender)

		room.handlePublish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{ChatId: chat.ExternalId, Content: "hello"},
			UserId:      1,
			client:      sender,
		})

		select {
		case msg := <-sender.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 403, msg.Response.ResponseCode)
			assert.Equal(t, "account muted", msg.Response.Error)
			assert.NotNil(t, msg.Response.Data, "expected mute expiry in response data")
		default:
			t.Error("expected refusal to be queued")
		}
	})

	t.Run("non-participant sender is refused", func(t *testing.T) {
		outsider := database.User{Id: 99, Username: "outsider", Role: string(types.RoleUser), Active: true}

		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 99).Return(outsider, nil).Once()

		cs := newTestChatServer(t, db, &metrics.MockStats{})
		room := newTestChatRoom(cs, chat)
		sender := newTestClient(cs, types.User{Id: 99})
		room.addClient(sender)

		room.handlePublish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{ChatId: chat.ExternalId, Content: "hello"},
			UserId:      99,
			client:      sender,
		})

		select {
		case msg := <-sender.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 403, msg.Response.ResponseCode)
		default:
			t.Error("expected refusal to be queued")
		}
	})

	t.Run("closed chat refuses publishes", func(t *testing.T) {
		closedChat := chat
		closedChat.Status = types.ChatClosed

		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(freshSender, nil).Once()

		cs := newTestChatServer(t, db, &metrics.MockStats{})
		room := newTestChatRoom(cs, closedChat)
		sender := newTestClient(cs, types.User{Id: 1})
		room.addClient(sender)

		room.handlePublish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{ChatId: chat.ExternalId, Content: "hello"},
			UserId:      1,
			client:      sender,
		})

		select {
		case msg := <-sender.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 409, msg.Response.ResponseCode)
		default:
			t.Error("expected refusal to be queued")
		}
	})

	t.Run("invalid message type is refused", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(freshSender, nil).Once()

		cs := newTestChatServer(t, db, &metrics.MockStats{})
		room := newTestChatRoom(cs, chat)
		sender := newTestClient(cs, types.User{Id: 1})
		room.addClient(sender)

		room.handlePublish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{ChatId: chat.ExternalId, Type: "carrier-pigeon", Content: "hello"},
			UserId:      1,
			client:      sender,
		})

		select {
		case msg := <-sender.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 400, msg.Response.ResponseCode)
		default:
			t.Error("expected refusal to be queued")
		}
	})
}

func TestChatRoom_handleTyping(t *testing.T) {
	cs := newTestChatServer(t, &database.MockRepository{}, &metrics.MockStats{})
	room := newTestChatRoom(cs, activeTestChat())

	sender := newTestClient(cs, types.User{Id: 1})
	listener := newTestClient(cs, types.User{Id: 2})
	room.addClient(sender)
	room.addClient(listener)

	room.handleTyping(&ClientMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Typing:      &Typing{ChatId: room.externalId, Started: true},
		UserId:      1,
		client:      sender,
	})

	select {
	case msg := <-listener.send:
		assert.NotNil(t, msg.Notification, "expected notification message")
		assert.NotNil(t, msg.Notification.Typing, "expected typing event")
		assert.Equal(t, 1, msg.Notification.Typing.UserId)
		assert.True(t, msg.Notification.Typing.Started)
	default:
		t.Error("expected typing event to reach the other participant")
	}

	select {
	case <-sender.send:
		t.Error("expected typing event to skip the sender")
	default:
	}
}

func TestChatRoom_removeClient(t *testing.T) {
	cs := newTestChatServer(t, &database.MockRepository{}, &metrics.MockStats{})
	room := newTestChatRoom(cs, activeTestChat())

	client := newTestClient(cs, types.User{Id: 1})
	room.addClient(client)
	assert.Contains(t, room.clients, client, "expected client in the room")

	room.removeClient(client)
	assert.NotContains(t, room.clients, client, "expected client removed from the room")
	assert.NotContains(t, client.chats, room.externalId, "expected room removed from the client")
	assert.NotContains(t, room.userMap, 1, "expected userMap entry to be gone")
}

func TestChatRoom_handleExit(t *testing.T) {
	t.Run("closed chat notifies clients", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRepository{}, &metrics.MockStats{})
		room := newTestChatRoom(cs, activeTestChat())

		client := newTestClient(cs, types.User{Id: 1})
		room.addClient(client)

		done := make(chan struct{})
		room.handleExit(exitReq{closed: true, done: done})

		select {
		case <-done:
		default:
			t.Error("expected done to be closed")
		}

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Notification, "expected notification message")
			assert.NotNil(t, msg.Notification.ChatClosed, "expected chat closed event")
			assert.Equal(t, room.externalId, msg.Notification.ChatClosed.ChatId)
		default:
			t.Error("expected chat closed notification")
		}

		assert.NotContains(t, client.chats, room.externalId, "expected room removed from the client")
	})

	t.Run("idle unload is silent", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRepository{}, &metrics.MockStats{})
		room := newTestChatRoom(cs, activeTestChat())

		client := newTestClient(cs, types.User{Id: 1})
		room.addClient(client)

		room.handleExit(exitReq{})

		select {
		case <-client.send:
			t.Error("expected no notification on idle unload")
		default:
		}
	})
}
