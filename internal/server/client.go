package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quietdawn/supportchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection. All connection-scoped state lives
// here, keyed by nothing global; a user with two tabs open is two Clients.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	chats      map[string]*ChatRoom
	chatsLock  sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		chats:      make(map[string]*ChatRoom),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.chatServer.touchPresence(c.user.Id)
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		switch {
		case msg.Join != nil:
			c.joinChat(&msg)
		case msg.Leave != nil:
			c.leaveChat(&msg)
		case msg.Publish != nil:
			c.routeToChat(msg.Publish.ChatId, &msg)
		case msg.Typing != nil:
			c.routeToChat(msg.Typing.ChatId, &msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

func (c *Client) routeToChat(chatId string, msg *ClientMessage) {
	room := c.getChat(chatId)
	if room == nil {
		c.queueMessage(ErrChatNotFound(msg.Id))
		return
	}

	select {
	case room.clientMsgChan <- msg:
	default:
		c.log.Printf("clientMsgChan full for chat %q", room.externalId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to queue message, client send channel full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	// the run loop stops consuming deRegisterChan once it has exited
	select {
	case c.chatServer.deRegisterChan <- c:
	case <-c.chatServer.done:
	}
	c.leaveAllChats()
	c.stopClient()
}

func (c *Client) leaveAllChats() {
	c.chatsLock.RLock()
	defer c.chatsLock.RUnlock()

	for _, room := range c.chats {
		room.leaveChan <- &ClientMessage{
			Leave:  &Leave{ChatId: room.externalId},
			UserId: c.user.Id,
			client: c,
		}
	}
}

func (c *Client) joinChat(msg *ClientMessage) {
	select {
	case c.chatServer.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveChat(msg *ClientMessage) {
	room := c.getChat(msg.Leave.ChatId)
	if room == nil {
		c.queueMessage(ErrChatNotFound(msg.Id))
		return
	}

	select {
	case room.leaveChan <- msg:
	default:
		c.log.Printf("leaveChan full for chat %q", room.externalId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) addChat(r *ChatRoom) {
	c.chatsLock.Lock()
	defer c.chatsLock.Unlock()

	c.chats[r.externalId] = r
}

func (c *Client) delChat(id string) {
	c.chatsLock.Lock()
	defer c.chatsLock.Unlock()

	delete(c.chats, id)
}

func (c *Client) getChat(id string) *ChatRoom {
	c.chatsLock.RLock()
	defer c.chatsLock.RUnlock()

	return c.chats[id]
}
