package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

func (db *PgHackChatRepository) CreateAccount(params CreateAccountParams) (Profile, error) {
	now := time.Now().UTC()
	res := db.conn.QueryRow(
		"INSERT INTO profiles (id, full_name, college, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, full_name, college, email",
		uuid.NewString(),
		params.FullName,
		sql.NullString{String: params.College, Valid: params.College != ""},
		params.EmailAddress,
		params.PasswordHash,
		now,
		now,
	)

	var (
		p       Profile
		college sql.NullString
	)
	err := res.Scan(
		&p.Id,
		&p.FullName,
		&college,
		&p.EmailAddress,
	)
	p.College = college.String

	return p, err
}

func (db *PgHackChatRepository) GetAccountById(id string) (Profile, error) {
	row := db.conn.QueryRow(
		"SELECT id, full_name, college, email, created_at, updated_at FROM profiles "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var (
		p       Profile
		college sql.NullString
	)
	err := row.Scan(
		&p.Id,
		&p.FullName,
		&college,
		&p.EmailAddress,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.College = college.String

	return p, err
}

func (db *PgHackChatRepository) GetAccountByEmail(email string) (Profile, error) {
	row := db.conn.QueryRow(
		"SELECT id, full_name, college, email, password_hash FROM profiles "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var (
		p       Profile
		college sql.NullString
	)
	err := row.Scan(
		&p.Id,
		&p.FullName,
		&college,
		&p.EmailAddress,
		&p.PasswordHash,
	)
	p.College = college.String

	return p, err
}

func (db *PgHackChatRepository) GetProfilesByIds(ids []string) ([]Profile, error) {
	rows, err := db.conn.Query(
		"SELECT id, full_name, college FROM profiles WHERE id = ANY($1)",
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var (
			p       Profile
			college sql.NullString
		)
		if err = rows.Scan(&p.Id, &p.FullName, &college); err != nil {
			break
		}
		p.College = college.String

		profiles = append(profiles, p)
	}

	return profiles, err
}

func (db *PgHackChatRepository) CreateEvent(params CreateEventParams) (Event, error) {
	res := db.conn.QueryRow(
		"INSERT INTO events (external_id, title, owner_id, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, external_id, title, owner_id, created_at",
		params.ExternalId,
		params.Title,
		params.OwnerId,
		time.Now().UTC(),
	)

	var event Event
	err := res.Scan(
		&event.Id,
		&event.ExternalId,
		&event.Title,
		&event.OwnerId,
		&event.CreatedAt,
	)

	return event, err
}

func (db *PgHackChatRepository) GetEventByExternalId(externalId string) (Event, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, owner_id, created_at FROM events "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var event Event
	err := row.Scan(
		&event.Id,
		&event.ExternalId,
		&event.Title,
		&event.OwnerId,
		&event.CreatedAt,
	)

	return event, err
}

func (db *PgHackChatRepository) ListEvents() ([]Event, error) {
	rows, err := db.conn.Query(
		"SELECT id, external_id, title, owner_id, created_at FROM events ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		if err = rows.Scan(&event.Id, &event.ExternalId, &event.Title, &event.OwnerId, &event.CreatedAt); err != nil {
			break
		}

		events = append(events, event)
	}

	return events, err
}

func (db *PgHackChatRepository) CreateEventMessage(params CreateEventMessageParams) (EventMessage, error) {
	mentions := params.Mentions
	if mentions == nil {
		mentions = []string{}
	}

	res := db.conn.QueryRow(
		"INSERT INTO event_messages (id, event_id, user_id, content, mentions, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, event_id, user_id, content, mentions, created_at",
		uuid.NewString(),
		params.EventId,
		params.UserId,
		params.Content,
		pq.Array(mentions),
		time.Now().UTC(),
	)

	var msg EventMessage
	err := res.Scan(
		&msg.Id,
		&msg.EventId,
		&msg.UserId,
		&msg.Content,
		pq.Array(&msg.Mentions),
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgHackChatRepository) ListEventMessages(eventId int) ([]EventMessage, error) {
	rows, err := db.conn.Query(
		"SELECT id, event_id, user_id, content, mentions, created_at FROM event_messages "+
			"WHERE event_id = $1 ORDER BY created_at ASC",
		eventId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]EventMessage, 0)
	for rows.Next() {
		var msg EventMessage
		if err = rows.Scan(&msg.Id, &msg.EventId, &msg.UserId, &msg.Content, pq.Array(&msg.Mentions), &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

func (db *PgHackChatRepository) GetEventMessage(id string) (EventMessage, error) {
	row := db.conn.QueryRow(
		"SELECT id, event_id, user_id, content, mentions, created_at FROM event_messages "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var msg EventMessage
	err := row.Scan(
		&msg.Id,
		&msg.EventId,
		&msg.UserId,
		&msg.Content,
		pq.Array(&msg.Mentions),
		&msg.CreatedAt,
	)

	return msg, err
}

// DeleteEventMessage deletes a message only when userId is its sender and
// returns the number of rows removed.
func (db *PgHackChatRepository) DeleteEventMessage(id, userId string) (int64, error) {
	res, err := db.conn.Exec(
		"DELETE FROM event_messages WHERE id = $1 AND user_id = $2",
		id,
		userId,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgHackChatRepository) CreateCommunityMessage(params CreateCommunityMessageParams) (CommunityMessage, error) {
	res := db.conn.QueryRow(
		"INSERT INTO community_messages (id, user_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, user_id, content, created_at",
		uuid.NewString(),
		params.UserId,
		params.Content,
		time.Now().UTC(),
	)

	var msg CommunityMessage
	err := res.Scan(
		&msg.Id,
		&msg.UserId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgHackChatRepository) ListCommunityMessages(limit int) ([]CommunityMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(
		"SELECT id, user_id, content, created_at FROM community_messages "+
			"ORDER BY created_at ASC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]CommunityMessage, 0, limit)
	for rows.Next() {
		var msg CommunityMessage
		if err = rows.Scan(&msg.Id, &msg.UserId, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

func (db *PgHackChatRepository) GetCommunityMessage(id string) (CommunityMessage, error) {
	row := db.conn.QueryRow(
		"SELECT id, user_id, content, created_at FROM community_messages "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var msg CommunityMessage
	err := row.Scan(
		&msg.Id,
		&msg.UserId,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgHackChatRepository) DeleteCommunityMessage(id, userId string) (int64, error) {
	res, err := db.conn.Exec(
		"DELETE FROM community_messages WHERE id = $1 AND user_id = $2",
		id,
		userId,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgHackChatRepository) UpsertTypingIndicator(eventId int, userId string, lastTypedAt time.Time) (TypingIndicator, error) {
	res := db.conn.QueryRow(
		"INSERT INTO typing_indicators (event_id, user_id, last_typed_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (event_id, user_id) DO UPDATE SET last_typed_at = EXCLUDED.last_typed_at "+
			"RETURNING event_id, user_id, last_typed_at",
		eventId,
		userId,
		lastTypedAt,
	)

	var ind TypingIndicator
	err := res.Scan(
		&ind.EventId,
		&ind.UserId,
		&ind.LastTypedAt,
	)

	return ind, err
}

func (db *PgHackChatRepository) CreateConnection(requesterId, receiverId string) (Connection, error) {
	res := db.conn.QueryRow(
		"INSERT INTO connections (id, requester_id, receiver_id, status, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, requester_id, receiver_id, status, created_at",
		uuid.NewString(),
		requesterId,
		receiverId,
		ConnectionStatusPending,
		time.Now().UTC(),
	)

	var conn Connection
	err := res.Scan(
		&conn.Id,
		&conn.RequesterId,
		&conn.ReceiverId,
		&conn.Status,
		&conn.CreatedAt,
	)
	if err != nil {
		return Connection{}, fmt.Errorf("create connection: %w", err)
	}

	return conn, nil
}

func (db *PgHackChatRepository) GetConnection(id string) (Connection, error) {
	row := db.conn.QueryRow(
		"SELECT id, requester_id, receiver_id, status, created_at FROM connections "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var conn Connection
	err := row.Scan(
		&conn.Id,
		&conn.RequesterId,
		&conn.ReceiverId,
		&conn.Status,
		&conn.CreatedAt,
	)

	return conn, err
}

func (db *PgHackChatRepository) ListConnections(userId string) ([]Connection, error) {
	rows, err := db.conn.Query(
		"SELECT id, requester_id, receiver_id, status, created_at FROM connections "+
			"WHERE requester_id = $1 OR receiver_id = $1 ORDER BY created_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns = make([]Connection, 0)
	for rows.Next() {
		var conn Connection
		if err = rows.Scan(&conn.Id, &conn.RequesterId, &conn.ReceiverId, &conn.Status, &conn.CreatedAt); err != nil {
			break
		}

		conns = append(conns, conn)
	}

	return conns, err
}

func (db *PgHackChatRepository) ConnectionExistsBetween(userA, userB string) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM connections WHERE (requester_id = $1 AND receiver_id = $2) "+
			"OR (requester_id = $2 AND receiver_id = $1) LIMIT 1",
		userA,
		userB,
	)

	var id string
	err := res.Scan(&id)

	return err == nil
}

func (db *PgHackChatRepository) AcceptConnection(id string) (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE connections SET status = $2 WHERE id = $1 AND status = $3",
		id,
		ConnectionStatusAccepted,
		ConnectionStatusPending,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgHackChatRepository) DeleteConnection(id string) (int64, error) {
	res, err := db.conn.Exec(
		"DELETE FROM connections WHERE id = $1",
		id,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
