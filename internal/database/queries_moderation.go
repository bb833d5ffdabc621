package database

import (
	"database/sql"
	"fmt"
	"time"
)

const insertLogQuery = "INSERT INTO moderation_logs " +
	"(moderator_id, target_user_id, action, reason, duration_minutes, created_at) " +
	"VALUES ($1, $2, $3, $4, $5, $6)"

// ApplyModeration mutates the target's moderation fields and appends the
// audit record in a single transaction. The field mutation is one
// conditional UPDATE, never a read-modify-write.
func (db *PgRepository) ApplyModeration(params ModerationParams) (User, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return User{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var row *sql.Row
	switch params.Action {
	case "warning":
		row = tx.QueryRow(
			"UPDATE users SET warning_count = warning_count + 1, updated_at = $2 "+
				"WHERE id = $1 RETURNING "+userColumns,
			params.TargetUserId, now,
		)
	case "mute":
		row = tx.QueryRow(
			"UPDATE users SET muted = TRUE, mute_expires_at = $2, updated_at = $3 "+
				"WHERE id = $1 RETURNING "+userColumns,
			params.TargetUserId, params.MuteExpiresAt, now,
		)
	case "ban":
		row = tx.QueryRow(
			"UPDATE users SET banned = TRUE, ban_expires_at = $2, ban_reason = $3, updated_at = $4 "+
				"WHERE id = $1 RETURNING "+userColumns,
			params.TargetUserId, params.BanExpiresAt, params.Reason, now,
		)
	case "unban":
		row = tx.QueryRow(
			"UPDATE users SET banned = FALSE, ban_expires_at = NULL, ban_reason = NULL, updated_at = $2 "+
				"WHERE id = $1 RETURNING "+userColumns,
			params.TargetUserId, now,
		)
	default:
		err = fmt.Errorf("unknown moderation action %q", params.Action)
		return User{}, err
	}

	var user User
	user, err = scanUser(row)
	if err != nil {
		return User{}, err
	}

	_, err = tx.Exec(
		insertLogQuery,
		params.ModeratorId,
		params.TargetUserId,
		params.Action,
		params.Reason,
		params.DurationMinutes,
		now,
	)
	if err != nil {
		return User{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return User{}, err
	}

	return user, nil
}

// UpdateRole sets the target's role and appends a role_change audit record
// in one transaction.
func (db *PgRepository) UpdateRole(params UpdateRoleParams) (User, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return User{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	row := tx.QueryRow(
		"UPDATE users SET role = $2, updated_at = $3 WHERE id = $1 RETURNING "+userColumns,
		params.TargetUserId,
		params.NewRole,
		now,
	)

	var user User
	user, err = scanUser(row)
	if err != nil {
		return User{}, err
	}

	_, err = tx.Exec(
		insertLogQuery,
		params.ActorId,
		params.TargetUserId,
		"role_change",
		params.Reason,
		sql.NullInt64{},
		now,
	)
	if err != nil {
		return User{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return User{}, err
	}

	return user, nil
}

// DismissUser demotes a listener or admin back to user and deactivates the
// account. The role guard is repeated in SQL so a concurrent role change
// cannot slip past the handler's check.
func (db *PgRepository) DismissUser(params DismissParams) (User, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return User{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	row := tx.QueryRow(
		"UPDATE users SET role = 'user', active = FALSE, updated_at = $2 "+
			"WHERE id = $1 AND role IN ('listener', 'admin') RETURNING "+userColumns,
		params.TargetUserId,
		now,
	)

	var user User
	user, err = scanUser(row)
	if err != nil {
		return User{}, err
	}

	_, err = tx.Exec(
		insertLogQuery,
		params.ActorId,
		params.TargetUserId,
		"dismissal",
		params.Reason,
		sql.NullInt64{},
		now,
	)
	if err != nil {
		return User{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return User{}, err
	}

	return user, nil
}

func (db *PgRepository) ListModerationLogs() ([]ModerationLog, error) {
	rows, err := db.conn.Query(
		"SELECT id, moderator_id, target_user_id, action, reason, duration_minutes, created_at " +
			"FROM moderation_logs ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var logs []ModerationLog
	for rows.Next() {
		var entry ModerationLog
		err := rows.Scan(
			&entry.Id,
			&entry.ModeratorId,
			&entry.TargetUserId,
			&entry.Action,
			&entry.Reason,
			&entry.DurationMinutes,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

func (db *PgRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	row := db.conn.QueryRow(
		"INSERT INTO notifications (user_id, title, body, kind, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"RETURNING id, user_id, title, body, kind, read, created_at",
		params.UserId,
		params.Title,
		params.Body,
		params.Kind,
		time.Now().UTC(),
	)

	var n Notification
	err := row.Scan(&n.Id, &n.UserId, &n.Title, &n.Body, &n.Kind, &n.Read, &n.CreatedAt)

	return n, mapError(err)
}

func (db *PgRepository) ListNotifications(userId int) ([]Notification, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, title, body, kind, read, created_at "+
			"FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userId,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var notifications = make([]Notification, 0)
	for rows.Next() {
		var n Notification
		err := rows.Scan(&n.Id, &n.UserId, &n.Title, &n.Body, &n.Kind, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead flips the read flag. The user id guard means a
// recipient can only touch their own notifications.
func (db *PgRepository) MarkNotificationRead(notificationId, userId int) error {
	res, err := db.conn.Exec(
		"UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2",
		notificationId,
		userId,
	)
	if err != nil {
		return mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}
