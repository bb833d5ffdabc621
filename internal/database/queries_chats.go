package database

import (
	"time"
)

const chatColumns = "id, external_id, user_id, listener_id, status, rating, " +
	"review_text, created_at, updated_at, closed_at"

func scanChat(row rowScanner) (Chat, error) {
	var c Chat
	err := row.Scan(
		&c.Id,
		&c.ExternalId,
		&c.UserId,
		&c.ListenerId,
		&c.Status,
		&c.Rating,
		&c.ReviewText,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ClosedAt,
	)

	return c, mapError(err)
}

// CreateChat inserts a new active chat. The partial unique index on
// (user_id) WHERE status = 'active' turns a concurrent duplicate create
// into ErrDuplicate, which callers resolve by re-reading the active chat.
func (db *PgRepository) CreateChat(params CreateChatParams) (Chat, error) {
	row := db.conn.QueryRow(
		"INSERT INTO chats (external_id, user_id, listener_id, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, 'active', $4, $4) RETURNING "+chatColumns,
		params.ExternalId,
		params.UserId,
		params.ListenerId,
		time.Now().UTC(),
	)

	return scanChat(row)
}

func (db *PgRepository) GetChatByExternalId(externalId string) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT "+chatColumns+" FROM chats WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	return scanChat(row)
}

func (db *PgRepository) GetActiveChatForUser(userId int) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT "+chatColumns+" FROM chats WHERE user_id = $1 AND status = 'active' LIMIT 1",
		userId,
	)

	return scanChat(row)
}

func (db *PgRepository) ListChats() ([]Chat, error) {
	rows, err := db.conn.Query(
		"SELECT " + chatColumns + " FROM chats ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}

	return chats, rows.Err()
}

// CloseChatWithReview records the review, transitions the chat to closed and
// refreshes the listener's aggregate rating, all in one transaction. The
// unique index on reviews.chat_id makes a second review ErrDuplicate.
func (db *PgRepository) CloseChatWithReview(params CloseChatParams) (Chat, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	_, err = tx.Exec(
		"INSERT INTO reviews (chat_id, author_id, listener_id, rating, comment, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		params.ChatId,
		params.AuthorId,
		params.ListenerId,
		params.Rating,
		params.Comment,
		now,
	)
	if err != nil {
		return Chat{}, mapError(err)
	}

	row := tx.QueryRow(
		"UPDATE chats SET status = 'closed', rating = $2, review_text = $3, "+
			"closed_at = $4, updated_at = $4 "+
			"WHERE id = $1 AND status = 'active' RETURNING "+chatColumns,
		params.ChatId,
		params.Rating,
		params.Comment,
		now,
	)

	chat, err := scanChat(row)
	if err != nil {
		return Chat{}, err
	}

	_, err = tx.Exec(
		"UPDATE users SET rating = (SELECT AVG(rating) FROM reviews WHERE listener_id = $1), "+
			"updated_at = $2 WHERE id = $1",
		params.ListenerId,
		now,
	)
	if err != nil {
		return Chat{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return Chat{}, err
	}

	return chat, nil
}

// CreateMessage appends a message and bumps the chat's updated_at in one
// transaction. Messages are immutable once written.
func (db *PgRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	row := tx.QueryRow(
		"INSERT INTO messages (chat_id, sender_id, type, content, media_url, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING id, chat_id, sender_id, type, content, media_url, created_at",
		params.ChatId,
		params.SenderId,
		params.Type,
		params.Content,
		params.MediaUrl,
		now,
	)

	var msg Message
	err = row.Scan(
		&msg.Id,
		&msg.ChatId,
		&msg.SenderId,
		&msg.Type,
		&msg.Content,
		&msg.MediaUrl,
		&msg.CreatedAt,
	)
	if err != nil {
		return Message{}, mapError(err)
	}

	_, err = tx.Exec(
		"UPDATE chats SET updated_at = $2 WHERE id = $1",
		params.ChatId,
		now,
	)
	if err != nil {
		return Message{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func (db *PgRepository) GetMessages(chatId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, chat_id, sender_id, type, content, media_url, created_at "+
			"FROM messages WHERE chat_id = $1 ORDER BY created_at, id",
		chatId,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		err := rows.Scan(
			&msg.Id,
			&msg.ChatId,
			&msg.SenderId,
			&msg.Type,
			&msg.Content,
			&msg.MediaUrl,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
