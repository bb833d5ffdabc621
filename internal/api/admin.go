package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/quietdawn/supportchat/internal/convert"
	"github.com/quietdawn/supportchat/internal/database"
	"github.com/quietdawn/supportchat/internal/metrics"
	"github.com/quietdawn/supportchat/internal/types"
)

const defaultMuteMinutes = 60

type ModerateRequest struct {
	TargetUserId    int    `json:"target_user_id"`
	Action          string `json:"action"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

type AssignRoleRequest struct {
	TargetUserId int    `json:"target_user_id"`
	Role         string `json:"role"`
	Reason       string `json:"reason,omitempty"`
}

type DismissRequest struct {
	TargetUserId int    `json:"target_user_id"`
	Reason       string `json:"reason,omitempty"`
}

type BroadcastRequest struct {
	UserIds []int  `json:"user_ids,omitempty"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Kind    string `json:"kind,omitempty"`
}

// moderate applies a warning, mute, ban or unban to a target account. The
// state change and its ledger entry commit in one transaction. Bans take
// effect immediately: every open socket of the target is force-closed.
func (s *SupportChatApp) moderate(w http.ResponseWriter, r *http.Request) {
	actor, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req ModerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	action := types.ModerationAction(req.Action)
	if !action.ValidModerateAction() {
		errResp := NewValidationError("unknown moderation action")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if req.TargetUserId == 0 {
		errResp := NewValidationError("target_user_id is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbTarget, err := s.db.GetAccountById(req.TargetUserId)
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

	target := convert.ToUser(dbTarget)
	if !types.CanModerate(actor.Role, target.Role) {
		errResp := NewAuthorizationError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.ModerationParams{
		ModeratorId:  actor.Id,
		TargetUserId: target.Id,
		Action:       string(action),
		Reason:       req.Reason,
	}

	now := time.Now()
	switch action {
	case types.ActionMute:
		minutes := req.DurationMinutes
		if minutes <= 0 {
			minutes = defaultMuteMinutes
		}
		params.DurationMinutes = sql.NullInt64{Int64: int64(minutes), Valid: true}
		params.MuteExpiresAt = sql.NullTime{Time: now.Add(time.Duration(minutes) * time.Minute), Valid: true}
	case types.ActionBan:
		if req.DurationMinutes > 0 {
			params.DurationMinutes = sql.NullInt64{Int64: int64(req.DurationMinutes), Valid: true}
			params.BanExpiresAt = sql.NullTime{Time: now.Add(time.Duration(req.DurationMinutes) * time.Minute), Valid: true}
		}
	}

	updated, err := s.db.ApplyModeration(params)
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

	s.stats.Incr(metrics.ModerationActions)

	if action == types.ActionBan {
		s.cs.DisconnectUser(target.Id)
	}

	if action != types.ActionUnban {
		s.notifyModerated(target.Id, action, req.Reason)
	}

	s.writeJson(w, http.StatusOK, convert.ToUser(updated))
}

func (s *SupportChatApp) notifyModerated(userId int, action types.ModerationAction, reason string) {
	var title string
	switch action {
	case types.ActionWarning:
		title = "You received a warning"
	case types.ActionMute:
		title = "Your account has been muted"
	case types.ActionBan:
		title = "Your account has been banned"
	default:
		return
	}

	dbNotification, err := s.db.CreateNotification(database.CreateNotificationParams{
		UserId: userId,
		Title:  title,
		Body:   reason,
		Kind:   string(types.NotificationWarning),
	})
	if err != nil {
		s.log.Println("create moderation notification:", err)
		return
	}

	s.cs.NotifyUser(userId, convert.ToNotification(dbNotification))
}

// assignRole sets a target's role. The rule is monotonic: the actor must
// strictly outrank both the target's current role and the role being
// granted, so nobody can promote a peer or mint an equal.
func (s *SupportChatApp) assignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newRole := types.Role(req.Role)
	if !newRole.Valid() {
		errResp := NewValidationError("unknown role")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if req.TargetUserId == 0 {
		errResp := NewValidationError("target_user_id is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbTarget, err := s.db.GetAccountById(req.TargetUserId)
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

	target := convert.ToUser(dbTarget)
	if !types.CanAssignRole(actor.Role, target.Role, newRole) {
		errResp := NewAuthorizationError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.db.UpdateRole(database.UpdateRoleParams{
		ActorId:      actor.Id,
		TargetUserId: target.Id,
		NewRole:      string(newRole),
		Reason:       req.Reason,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.stats.Incr(metrics.ModerationActions)

	if dbNotification, err := s.db.CreateNotification(database.CreateNotificationParams{
		UserId: target.Id,
		Title:  fmt.Sprintf("Your role is now %s", newRole),
		Body:   req.Reason,
		Kind:   string(types.NotificationInfo),
	}); err != nil {
		s.log.Println("create role notification:", err)
	} else {
		s.cs.NotifyUser(target.Id, convert.ToNotification(dbNotification))
	}

	s.writeJson(w, http.StatusOK, convert.ToUser(updated))
}

// dismiss demotes a listener or admin back to user.
func (s *SupportChatApp) dismiss(w http.ResponseWriter, r *http.Request) {
	actor, ok := UserFromContext(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req DismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetUserId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbTarget, err := s.db.GetAccountById(req.TargetUserId)
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

	target := convert.ToUser(dbTarget)
	if !target.Role.Dismissable() {
		errResp := NewValidationError("only listeners and admins can be dismissed")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !types.CanModerate(actor.Role, target.Role) {
		errResp := NewAuthorizationError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.db.DismissUser(database.DismissParams{
		ActorId:      actor.Id,
		TargetUserId: target.Id,
		Reason:       req.Reason,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewConflictError("user is no longer dismissable")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.stats.Incr(metrics.ModerationActions)

	if dbNotification, err := s.db.CreateNotification(database.CreateNotificationParams{
		UserId: target.Id,
		Title:  "You have been dismissed from your role",
		Body:   req.Reason,
		Kind:   string(types.NotificationInfo),
	}); err != nil {
		s.log.Println("create dismissal notification:", err)
	} else {
		s.cs.NotifyUser(target.Id, convert.ToNotification(dbNotification))
	}

	s.writeJson(w, http.StatusOK, convert.ToUser(updated))
}

// broadcastNotification fans a notification out to the named users, or to
// every active user when no ids are given. Each row commits independently;
// a failure mid-way leaves earlier deliveries in place and is reported as
// one aggregate error.
func (s *SupportChatApp) broadcastNotification(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Title == "" || req.Body == "" {
		errResp := NewValidationError("title and body are required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = string(types.NotificationInfo)
	}
	if kind != string(types.NotificationInfo) && kind != string(types.NotificationWarning) {
		errResp := NewValidationError("unknown notification kind")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	userIds := req.UserIds
	if len(userIds) == 0 {
		var err error
		userIds, err = s.db.ListActiveUserIds()
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	var failed int
	for _, userId := range userIds {
		dbNotification, err := s.db.CreateNotification(database.CreateNotificationParams{
			UserId: userId,
			Title:  req.Title,
			Body:   req.Body,
			Kind:   kind,
		})
		if err != nil {
			s.log.Printf("create notification for user %d: %v", userId, err)
			failed++
			continue
		}

		s.cs.NotifyUser(userId, convert.ToNotification(dbNotification))
	}

	if failed > 0 {
		errResp := NewInternalServerError(fmt.Errorf("failed to deliver %d of %d notifications", failed, len(userIds)))
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusAccepted, map[string]int{"delivered": len(userIds)})
}

func (s *SupportChatApp) adminStats(w http.ResponseWriter, r *http.Request) {
	dbStats, err := s.db.GetStats()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	stats := types.Stats{
		TotalUsers:  dbStats.TotalUsers,
		Listeners:   dbStats.Listeners,
		ActiveChats: dbStats.ActiveChats,
		Messages:    dbStats.Messages,
	}

	if s.presence != nil {
		online, err := s.presence.OnlineCount(r.Context())
		if err != nil {
			s.log.Println("presence count:", err)
		} else {
			stats.OnlineUsers = online
		}
	}

	s.writeJson(w, http.StatusOK, stats)
}

func (s *SupportChatApp) listUsers(w http.ResponseWriter, r *http.Request) {
	dbUsers, err := s.db.ListUsers()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, convert.ToUser(u))
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *SupportChatApp) listChats(w http.ResponseWriter, r *http.Request) {
	dbChats, err := s.db.ListChats()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chats := make([]types.Chat, 0, len(dbChats))
	for _, c := range dbChats {
		chats = append(chats, convert.ToChat(c))
	}

	s.writeJson(w, http.StatusOK, chats)
}

func (s *SupportChatApp) listModerationLogs(w http.ResponseWriter, r *http.Request) {
	dbLogs, err := s.db.ListModerationLogs()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	records := make([]types.ModerationRecord, 0, len(dbLogs))
	for _, l := range dbLogs {
		records = append(records, convert.ToModerationRecord(l))
	}

	s.writeJson(w, http.StatusOK, records)
}
