package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quietdawn/supportchat/internal/convert"
	"github.com/quietdawn/supportchat/internal/database"
	"github.com/quietdawn/supportchat/internal/metrics"
	"github.com/quietdawn/supportchat/internal/server"
	"github.com/quietdawn/supportchat/internal/types"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateChatRequest struct {
	ListenerId *int `json:"listener_id,omitempty"`
}

type SendMessageRequest struct {
	ChatId   string `json:"chat_id"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	MediaUrl string `json:"media_url,omitempty"`
}

type SubmitReviewRequest struct {
	ChatId  string `json:"chat_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type MarkReadRequest struct {
	Id int `json:"id"`
}

func (s *SupportChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *SupportChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if err := validateRegistration(req); err != nil {
		s.writeJson(w, err.StatusCode, err)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrDuplicate) {
			errResp = NewConflictError("email or username already registered")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// registration opens a session right away, same as login
	user := convert.ToUser(newUser)
	token, err := s.createJwtForSession(user, s.tokenTTL)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, s.tokenTTL))

	s.writeJson(w, http.StatusCreated, user)
}

func validateRegistration(req RegisterRequest) *ApiError {
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return NewValidationError("a valid email address is required")
	}
	if len(req.Username) < minUsernameLength || len(req.Username) > maxUsernameLength {
		return NewValidationError("username must be between 3 and 20 characters")
	}
	if len(req.Password) < minPasswordLength {
		return NewValidationError("password must be at least 6 characters")
	}
	return nil
}

// login issues a session cookie. Unknown email and wrong password take the
// same path out so the two cases cannot be told apart.
func (s *SupportChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(strings.TrimSpace(strings.ToLower(lr.Email)))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewAuthError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewAuthError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user := convert.ToUser(dbUser)
	if !user.Active {
		errResp := NewAuthError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.createJwtForSession(user, s.tokenTTL)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, s.tokenTTL))

	if err := s.db.UpdateOnlineStatus(user.Id, true); err != nil {
		s.log.Println("mark online:", err)
	}
	if s.presence != nil {
		if err := s.presence.SetOnline(r.Context(), user.Id); err != nil {
			s.log.Println("presence online:", err)
		}
	}

	s.writeJson(w, http.StatusOK, user)
}

func (s *SupportChatApp) logout(w http.ResponseWriter, r *http.Request) {
	if user, ok := UserFromContext(r.Context()); ok {
		if err := s.db.UpdateOnlineStatus(user.Id, false); err != nil {
			s.log.Println("mark offline:", err)
		}
		if s.presence != nil {
			if err := s.presence.SetOffline(r.Context(), user.Id); err != nil {
				s.log.Println("presence offline:", err)
			}
		}
	}

	// overwrite the cookie with an already-expired token so the browser
	// drops it
	http.SetCookie(w, createJwtCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func (s *SupportChatApp) session(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

// createChat opens a chat for the requesting user. A user holds at most one
// active chat: if one already exists it is returned as-is, and the partial
// unique index in the database backstops the check against concurrent
// requests.
func (s *SupportChatApp) createChat(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if user.IsBanned(time.Now()) {
		errResp := NewForbiddenError("account blocked")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateChatRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	if existing, err := s.db.GetActiveChatForUser(user.Id); err == nil {
		s.writeJson(w, http.StatusOK, convert.ToChat(existing))
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateChatParams{
		ExternalId: sid,
		UserId:     user.Id,
	}
	if req.ListenerId != nil {
		params.ListenerId = sql.NullInt64{Int64: int64(*req.ListenerId), Valid: true}
	}

	newChat, err := s.db.CreateChat(params)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// lost the race to a concurrent request, return the winner
			existing, selErr := s.db.GetActiveChatForUser(user.Id)
			if selErr == nil {
				s.writeJson(w, http.StatusOK, convert.ToChat(existing))
				return
			}
			err = selErr
		}
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, convert.ToChat(newChat))
}

func (s *SupportChatApp) getChat(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		// no id means the caller wants their own active chat
		dbChat, err := s.db.GetActiveChatForUser(user.Id)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, database.ErrNotFound) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, convert.ToChat(dbChat))
		return
	}

	chat, errResp := s.loadChatForViewer(externalId, user)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, chat)
}

// loadChatForViewer fetches a chat and checks the viewer may see it:
// participants and staff at admin rank or above.
func (s *SupportChatApp) loadChatForViewer(externalId string, viewer types.User) (types.Chat, *ApiError) {
	dbChat, err := s.db.GetChatByExternalId(externalId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Chat{}, NewNotFoundError()
		}
		return types.Chat{}, NewInternalServerError(err)
	}

	chat := convert.ToChat(dbChat)
	if !chat.IsParticipant(viewer.Id) && viewer.Role.Rank() < types.RoleAdmin.Rank() {
		return types.Chat{}, NewAuthorizationError()
	}

	return chat, nil
}

// sendMessage appends a message to a chat over HTTP and fans it out to any
// connected sockets. Eligibility runs against the fresh user record loaded
// by the auth middleware, the same check the socket path applies.
func (s *SupportChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.ChatId == "" {
		errResp := NewValidationError("chat_id is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbChat, err := s.db.GetChatByExternalId(req.ChatId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat := convert.ToChat(dbChat)
	if errResp := sendDenialError(user, chat); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msgType := req.Type
	if msgType == "" {
		msgType = string(types.MessageText)
	}
	if !types.MessageType(msgType).Valid() {
		errResp := NewValidationError("unknown message type")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if req.Content == "" && req.MediaUrl == "" {
		errResp := NewValidationError("message content is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	saved, err := s.db.CreateMessage(database.CreateMessageParams{
		ChatId:   chat.Id,
		SenderId: user.Id,
		Type:     msgType,
		Content:  req.Content,
		MediaUrl: sql.NullString{String: req.MediaUrl, Valid: req.MediaUrl != ""},
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg := convert.ToMessage(saved)
	s.cs.RelayMessage(chat.ExternalId, msg)
	s.stats.Incr(metrics.MessagesRelayed)

	s.writeJson(w, http.StatusCreated, msg)
}

func sendDenialError(user types.User, chat types.Chat) *ApiError {
	denial, muteExpiry := types.CanSendMessage(user, chat, time.Now())
	switch denial {
	case types.DenyChatClosed:
		return NewConflictError("chat is closed")
	case types.DenyNotParticipant:
		return NewAuthorizationError()
	case types.DenyBanned:
		return NewForbiddenError("account blocked")
	case types.DenyMuted:
		errResp := NewForbiddenError("account muted")
		errResp.Data = map[string]any{"mute_expires_at": muteExpiry}
		return errResp
	}
	return nil
}

func (s *SupportChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("chat_id")
	if externalId == "" {
		errResp := NewValidationError("chat_id is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, errResp := s.loadChatForViewer(externalId, user)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMessages, err := s.db.GetMessages(chat.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		messages = append(messages, convert.ToMessage(m))
	}

	s.writeJson(w, http.StatusOK, messages)
}

// submitReview closes the reviewer's chat and records the rating. The
// close and the review land in one transaction, so a chat can never be
// closed twice or reviewed twice.
func (s *SupportChatApp) submitReview(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.ChatId == "" {
		errResp := NewValidationError("chat_id is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		errResp := NewValidationError("rating must be between 1 and 5")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbChat, err := s.db.GetChatByExternalId(req.ChatId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat := convert.ToChat(dbChat)
	if chat.UserId != user.Id {
		// only the person who opened the chat reviews it
		errResp := NewAuthorizationError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if chat.ListenerId == nil {
		errResp := NewValidationError("chat has no listener to review")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	closedChat, err := s.db.CloseChatWithReview(database.CloseChatParams{
		ChatId:     chat.Id,
		AuthorId:   user.Id,
		ListenerId: *chat.ListenerId,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, database.ErrDuplicate):
			errResp = NewConflictError("chat already reviewed")
		case errors.Is(err, database.ErrNotFound):
			errResp = NewConflictError("chat is closed")
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.UnloadChat(chat.ExternalId)

	s.writeJson(w, http.StatusOK, convert.ToChat(closedChat))
}

func (s *SupportChatApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbNotifications, err := s.db.ListNotifications(user.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	notifications := make([]types.Notification, 0, len(dbNotifications))
	for _, n := range dbNotifications {
		notifications = append(notifications, convert.ToNotification(n))
	}

	s.writeJson(w, http.StatusOK, notifications)
}

func (s *SupportChatApp) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Id == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.MarkNotificationRead(req.Id, user.Id); err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *SupportChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		s.writeJson(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *SupportChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if user.IsBanned(time.Now()) {
		errResp := NewForbiddenError("account blocked")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(user, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
