package database

import (
	"time"
)

const userColumns = "id, username, email, password_hash, role, online, last_seen, " +
	"banned, ban_expires_at, ban_reason, muted, mute_expires_at, warning_count, " +
	"rating, active, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.Role,
		&u.Online,
		&u.LastSeen,
		&u.Banned,
		&u.BanExpiresAt,
		&u.BanReason,
		&u.Muted,
		&u.MuteExpiresAt,
		&u.WarningCount,
		&u.Rating,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, mapError(err)
}

func (db *PgRepository) CreateAccount(params CreateAccountParams) (User, error) {
	row := db.conn.QueryRow(
		"INSERT INTO users (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING "+userColumns,
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	return scanUser(row)
}

func (db *PgRepository) GetAccountById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1",
		userId,
	)

	return scanUser(row)
}

func (db *PgRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1",
		email,
	)

	return scanUser(row)
}

func (db *PgRepository) UpdateOnlineStatus(userId int, online bool) error {
	res, err := db.conn.Exec(
		"UPDATE users SET online = $2, last_seen = $3, updated_at = $3 WHERE id = $1",
		userId,
		online,
		time.Now().UTC(),
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

func (db *PgRepository) ListUsers() ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT " + userColumns + " FROM users ORDER BY id",
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// ListActiveUserIds returns the ids of all active, non-banned users. Used by
// the broadcast notification fan-out.
func (db *PgRepository) ListActiveUserIds() ([]int, error) {
	rows, err := db.conn.Query(
		"SELECT id FROM users WHERE active AND NOT banned ORDER BY id",
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PgRepository) GetStats() (Stats, error) {
	row := db.conn.QueryRow(
		"SELECT " +
			"(SELECT COUNT(*) FROM users), " +
			"(SELECT COUNT(*) FROM users WHERE role = 'listener'), " +
			"(SELECT COUNT(*) FROM chats WHERE status = 'active'), " +
			"(SELECT COUNT(*) FROM messages)",
	)

	var s Stats
	err := row.Scan(&s.TotalUsers, &s.Listeners, &s.ActiveChats, &s.Messages)

	return s, mapError(err)
}
