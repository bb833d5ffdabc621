package server

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/quietdawn/supportchat/internal/convert"
	"github.com/quietdawn/supportchat/internal/database"
	"github.com/quietdawn/supportchat/internal/metrics"
	"github.com/quietdawn/supportchat/internal/types"
)

const idleChatTimeout = time.Minute

type exitReq struct {
	closed bool
	done   chan struct{}
}

// ChatRoom is the live side of one chat. A single goroutine owns it, so
// message appends and fan-out for a chat are serialized: messages from one
// sender always land in submission order.
type ChatRoom struct {
	id            int
	externalId    string
	chat          types.Chat
	cs            *ChatServer
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	deliverChan   chan *ServerMessage
	clients       map[*Client]struct{}
	userMap       map[int]map[*Client]struct{}
	clientLock    sync.RWMutex
	log           *log.Logger
	// killTimer unloads the room once every participant has disconnected
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
}

func newChatRoom(cs *ChatServer, chat types.Chat) *ChatRoom {
	return &ChatRoom{
		id:            chat.Id,
		externalId:    chat.ExternalId,
		chat:          chat,
		cs:            cs,
		joinChan:      make(chan *ClientMessage, 64),
		leaveChan:     make(chan *ClientMessage, 64),
		clientMsgChan: make(chan *ClientMessage, 256),
		deliverChan:   make(chan *ServerMessage, 256),
		clients:       make(map[*Client]struct{}),
		userMap:       make(map[int]map[*Client]struct{}),
		log:           cs.log,
		exit:          make(chan exitReq),
		done:          make(chan struct{}),
	}
}

func (r *ChatRoom) start() {
	r.killTimer = time.NewTimer(idleChatTimeout)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.clientMsgChan:
			if msg.Publish != nil {
				r.handlePublish(msg)
			} else if msg.Typing != nil {
				r.handleTyping(msg)
			}
		case sm := <-r.deliverChan:
			r.broadcast(sm)
		case <-r.killTimer.C:
			r.handleTimeout()
		case e := <-r.exit:
			r.handleExit(e)
			return
		}
	}
}

func (r *ChatRoom) handleJoin(join *ClientMessage) {
	c := join.client

	if !r.chat.IsParticipant(c.user.Id) {
		c.queueMessage(ErrNotParticipant(join.Id))
		return
	}

	r.killTimer.Stop()
	r.addClient(c)

	c.queueMessage(NoErrOK(join.Id, r.chat))

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Presence: &PresenceEvent{
				ChatId:  r.externalId,
				UserId:  c.user.Id,
				Present: true,
			},
		},
		SkipClient: c,
	})
}

func (r *ChatRoom) handleLeave(leaveMsg *ClientMessage) {
	client := leaveMsg.client
	r.removeClient(client)

	if leaveMsg.Id != 0 {
		client.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}

	r.clientLock.RLock()
	gone := r.userMap[client.user.Id] == nil
	r.clientLock.RUnlock()

	if gone {
		r.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Notification: &Notification{
				Presence: &PresenceEvent{
					ChatId:  r.externalId,
					UserId:  client.user.Id,
					Present: false,
				},
			},
			SkipClient: client,
		})
	}
}

// handlePublish appends a message to the chat and fans it out. Sender
// eligibility is re-checked against a freshly loaded user record on every
// message; the socket was authorized at connect time and may be stale.
func (r *ChatRoom) handlePublish(msg *ClientMessage) {
	dbUser, err := r.cs.db.GetAccountById(msg.UserId)
	if err != nil {
		r.log.Println("load sender:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	sender := convert.ToUser(dbUser)
	switch denial, muteExpiry := types.CanSendMessage(sender, r.chat, Now()); denial {
	case types.DenyChatClosed:
		msg.client.queueMessage(ErrChatClosed(msg.Id))
		return
	case types.DenyNotParticipant:
		msg.client.queueMessage(ErrNotParticipant(msg.Id))
		return
	case types.DenyBanned:
		msg.client.queueMessage(ErrAccountBlocked(msg.Id))
		return
	case types.DenyMuted:
		msg.client.queueMessage(ErrMuted(msg.Id, muteExpiry))
		return
	}

	msgType := msg.Publish.Type
	if msgType == "" {
		msgType = string(types.MessageText)
	}
	if !types.MessageType(msgType).Valid() {
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	saved, err := r.cs.db.CreateMessage(database.CreateMessageParams{
		ChatId:   r.id,
		SenderId: msg.UserId,
		Type:     msgType,
		Content:  msg.Publish.Content,
		MediaUrl: sql.NullString{String: msg.Publish.MediaUrl, Valid: msg.Publish.MediaUrl != ""},
	})
	if err != nil {
		r.log.Println("save message:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	msg.client.queueMessage(NoErrAccepted(msg.Id))
	r.cs.stats.Incr(metrics.MessagesRelayed)

	m := convert.ToMessage(saved)
	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Id: msg.Id, Timestamp: m.Timestamp},
		Message:     &m,
	})
}

// handleTyping relays a typing indicator to the other participants.
// Typing events are never persisted.
func (r *ChatRoom) handleTyping(msg *ClientMessage) {
	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Typing: &TypingEvent{
				ChatId:  r.externalId,
				UserId:  msg.UserId,
				Started: msg.Typing.Started,
			},
		},
		SkipClient: msg.client,
	})
}

func (r *ChatRoom) handleTimeout() {
	r.log.Printf("chat %q idle, requesting unload", r.externalId)
	select {
	case r.cs.unloadChatChan <- unloadChatRequest{chatId: r.externalId}:
	default:
		// unload queue full, try again on the next idle period
		r.killTimer.Reset(idleChatTimeout)
	}
}

func (r *ChatRoom) handleExit(e exitReq) {
	if e.closed {
		r.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Notification: &Notification{
				ChatClosed: &ChatClosed{ChatId: r.externalId},
			},
		})
	}

	r.clientLock.Lock()
	for c := range r.clients {
		c.delChat(r.externalId)
	}
	r.clientLock.Unlock()

	if e.done != nil {
		close(e.done)
	}
	close(r.done)
}

func (r *ChatRoom) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	if r.userMap[c.user.Id] == nil {
		r.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	r.userMap[c.user.Id][c] = struct{}{}

	c.addChat(r)
}

func (r *ChatRoom) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.delChat(r.externalId)

	if userClients, ok := r.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.user.Id)
		}
	}

	if len(r.clients) == 0 {
		r.killTimer.Reset(idleChatTimeout)
	}
}

func (r *ChatRoom) broadcast(msg *ServerMessage) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
