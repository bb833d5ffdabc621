package server

import (
	"context"
	"log"
	"sync"

	"github.com/quietdawn/supportchat/internal/convert"
	"github.com/quietdawn/supportchat/internal/database"
	"github.com/quietdawn/supportchat/internal/metrics"
	"github.com/quietdawn/supportchat/internal/presence"
	"github.com/quietdawn/supportchat/internal/types"
)

type unloadChatRequest struct {
	chatId string
	// closed marks the chat as terminally closed, which tells connected
	// clients the conversation is over rather than just idle
	closed bool
}

// ChatServer owns the live chat rooms and every connected client. Its run
// loop is the only goroutine that touches the chats map.
type ChatServer struct {
	log      *log.Logger
	db       database.Repository
	stats    metrics.Provider
	presence *presence.Store

	clients     map[*Client]struct{}
	userClients map[int]map[*Client]struct{}
	clientsLock sync.Mutex

	joinChan       chan *ClientMessage
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	broadcastChan  chan *ServerMessage
	relayChan      chan *ServerMessage
	unloadChatChan chan unloadChatRequest
	disconnectChan chan int
	chats          map[string]*ChatRoom
	stop           chan struct{}
	done           chan struct{}
}

// NewChatServer creates a chat server. The presence store may be nil, in
// which case only the database online flag is maintained.
func NewChatServer(logger *log.Logger, db database.Repository, stats metrics.Provider, ps *presence.Store) (*ChatServer, error) {
	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          stats,
		presence:       ps,
		clients:        make(map[*Client]struct{}),
		userClients:    make(map[int]map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage, 64),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		broadcastChan:  make(chan *ServerMessage, 256),
		relayChan:      make(chan *ServerMessage, 256),
		unloadChatChan: make(chan unloadChatRequest, 64),
		disconnectChan: make(chan int, 16),
		chats:          make(map[string]*ChatRoom),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case joinMsg := <-cs.joinChan:
			cs.handleJoin(joinMsg)
		case client := <-cs.RegisterChan:
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.removeClient(client)
		case sm := <-cs.broadcastChan:
			cs.deliverToUser(sm)
		case sm := <-cs.relayChan:
			cs.relayToChat(sm)
		case req := <-cs.unloadChatChan:
			cs.unloadChat(req)
		case userId := <-cs.disconnectChan:
			cs.disconnectUser(userId)
		case <-cs.stop:
			for _, r := range cs.chats {
				close(r.exit)
				<-r.done
			}

			close(cs.done)
			return
		}
	}
}

func (cs *ChatServer) handleJoin(joinMsg *ClientMessage) {
	if room, ok := cs.chats[joinMsg.Join.ChatId]; ok {
		select {
		case room.joinChan <- joinMsg:
		default:
			cs.log.Printf("join channel full on chat %q", room.externalId)
			joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
		}
		return
	}

	dbChat, err := cs.db.GetChatByExternalId(joinMsg.Join.ChatId)
	if err != nil {
		joinMsg.client.queueMessage(ErrChatNotFound(joinMsg.Id))
		return
	}

	chat := convert.ToChat(dbChat)
	if chat.Status != types.ChatActive {
		joinMsg.client.queueMessage(ErrChatClosed(joinMsg.Id))
		return
	}

	room := newChatRoom(cs, chat)
	cs.chats[room.externalId] = room
	cs.stats.Incr(metrics.LoadedChats)

	room.joinChan <- joinMsg
	go room.start()
}

func (cs *ChatServer) unloadChat(req unloadChatRequest) {
	room, ok := cs.chats[req.chatId]
	if !ok {
		return
	}

	delete(cs.chats, req.chatId)
	cs.stats.Decr(metrics.LoadedChats)

	done := make(chan struct{})
	room.exit <- exitReq{closed: req.closed, done: done}
	<-done
}

// deliverToUser pushes a server message to every open connection of the
// target user. Users without a connection simply miss the live push; the
// notification row is already durable.
func (cs *ChatServer) deliverToUser(sm *ServerMessage) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	for client := range cs.userClients[sm.UserId] {
		if client.queueMessage(sm) {
			cs.stats.Incr(metrics.NotificationsPushed)
		}
	}
}

// relayToChat hands a message produced outside the socket path (the HTTP
// send endpoint) to the chat's room, if it is loaded. An unloaded room
// means no participant is connected, so there is no one to deliver to.
func (cs *ChatServer) relayToChat(sm *ServerMessage) {
	room, ok := cs.chats[sm.chatId]
	if !ok {
		return
	}

	select {
	case room.deliverChan <- sm:
	default:
		cs.log.Printf("deliver channel full on chat %q", room.externalId)
	}
}

func (cs *ChatServer) disconnectUser(userId int) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	for client := range cs.userClients[userId] {
		client.stopClient()
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	if cs.userClients[c.user.Id] == nil {
		cs.userClients[c.user.Id] = make(map[*Client]struct{})
	}
	cs.userClients[c.user.Id][c] = struct{}{}
	first := len(cs.userClients[c.user.Id]) == 1
	cs.clientsLock.Unlock()

	cs.stats.Incr(metrics.ActiveConnections)

	if first {
		cs.markOnline(c.user.Id, true)
	}
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	_, known := cs.clients[c]
	delete(cs.clients, c)
	var last bool
	if userClients, ok := cs.userClients[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(cs.userClients, c.user.Id)
			last = true
		}
	}
	cs.clientsLock.Unlock()

	if known {
		cs.stats.Decr(metrics.ActiveConnections)
	}

	if last {
		cs.markOnline(c.user.Id, false)
	}
}

func (cs *ChatServer) markOnline(userId int, online bool) {
	if err := cs.db.UpdateOnlineStatus(userId, online); err != nil {
		cs.log.Println("update online status:", err)
	}

	if cs.presence == nil {
		return
	}

	ctx := context.Background()
	var err error
	if online {
		err = cs.presence.SetOnline(ctx, userId)
	} else {
		err = cs.presence.SetOffline(ctx, userId)
	}
	if err != nil {
		cs.log.Println("presence update:", err)
	}
}

func (cs *ChatServer) touchPresence(userId int) {
	if cs.presence == nil {
		return
	}

	if err := cs.presence.Refresh(context.Background(), userId); err != nil {
		cs.log.Println("presence refresh:", err)
	}
}

// RegisterClient hands a freshly upgraded connection to the run loop.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.RegisterChan <- c
}

// NotifyUser pushes a notification to all of the user's connections.
// Best effort: dropped if the push queue is full.
func (cs *ChatServer) NotifyUser(userId int, notice types.Notification) {
	sm := &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		Notification: &Notification{Notice: &notice},
		UserId:       userId,
	}

	select {
	case cs.broadcastChan <- sm:
	default:
		cs.log.Println("broadcast channel full, dropping notification push")
	}
}

// RelayMessage fans a message appended through the HTTP endpoint out to any
// clients connected to the chat. Best effort for the same reason.
func (cs *ChatServer) RelayMessage(chatExternalId string, msg types.Message) {
	m := msg
	sm := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: m.Timestamp},
		Message:     &m,
		chatId:      chatExternalId,
	}

	select {
	case cs.relayChan <- sm:
	default:
		cs.log.Println("relay channel full, dropping message push")
	}
}

// UnloadChat removes a chat's room, telling connected clients the chat is
// closed. Called after a review closes the chat.
func (cs *ChatServer) UnloadChat(chatExternalId string) {
	select {
	case cs.unloadChatChan <- unloadChatRequest{chatId: chatExternalId, closed: true}:
	case <-cs.done:
	}
}

// DisconnectUser force-closes every connection belonging to the user.
// Called when a ban lands so socket authorization cannot go stale.
func (cs *ChatServer) DisconnectUser(userId int) {
	select {
	case cs.disconnectChan <- userId:
	case <-cs.done:
	}
}

func (cs *ChatServer) Shutdown() {
	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)
	<-cs.done
}
