package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/splitledger/internal/ir"
)

// RegisterUser creates a user or updates the username of an existing one.
// The username is normalized with ir.NormalizeUsername. Returns
// ErrUsernameTaken if another user already holds the name.
func (s *Store) RegisterUser(ctx context.Context, id ir.PartyID, username string) (ir.User, error) {
	name := ir.NormalizeUsername(username)
	if id == "" || name == "" {
		return ir.User{}, fmt.Errorf("register user: id and username are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username
	`, string(id), name, s.now())
	if err != nil {
		if isUniqueViolation(err) {
			return ir.User{}, fmt.Errorf("register user %q: %w", name, ErrUsernameTaken)
		}
		return ir.User{}, fmt.Errorf("register user: %w", err)
	}

	return ir.User{ID: id, Username: name}, nil
}

// User retrieves a user by id.
// Returns ErrUserNotFound if no such user exists.
func (s *Store) User(ctx context.Context, id ir.PartyID) (ir.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username FROM users WHERE id = ?
	`, string(id))
	return scanUserRow(row)
}

// UserByUsername retrieves a user by username. The lookup normalizes the
// name, so "@bob" finds "bob".
// Returns ErrUserNotFound if no such user exists.
func (s *Store) UserByUsername(ctx context.Context, username string) (ir.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username FROM users WHERE username = ?
	`, ir.NormalizeUsername(username))
	return scanUserRow(row)
}

// AddChatMember adds a user to a chat, creating the chat on first use.
// Returns false if the user was already a member.
func (s *Store) AddChatMember(ctx context.Context, chatID string, userID ir.PartyID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("add chat member: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chats (id) VALUES (?)
		ON CONFLICT(id) DO NOTHING
	`, chatID); err != nil {
		return false, fmt.Errorf("add chat member: insert chat: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO chat_members (chat_id, user_id, seq)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1 FROM chat_members WHERE chat_id = ?
		ON CONFLICT(chat_id, user_id) DO NOTHING
	`, chatID, string(userID), chatID)
	if err != nil {
		return false, fmt.Errorf("add chat member: insert member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add chat member: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("add chat member: commit: %w", err)
	}
	return rowsAffected > 0, nil
}

// IsChatMember reports whether a user belongs to a chat.
func (s *Store) IsChatMember(ctx context.Context, chatID string, userID ir.PartyID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_members WHERE chat_id = ? AND user_id = ?
	`, chatID, string(userID)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check chat member: %w", err)
	}
	return count > 0, nil
}

// LoadGroupMembers returns every registered user of a chat in join order.
func (s *Store) LoadGroupMembers(ctx context.Context, chatID string) ([]ir.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username
		FROM chat_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.chat_id = ?
		ORDER BY m.seq ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	users := []ir.User{}
	for rows.Next() {
		var u ir.User
		var id string
		if err := rows.Scan(&id, &u.Username); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		u.ID = ir.PartyID(id)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return users, nil
}

// ListChats returns the ids of every known chat.
func (s *Store) ListChats(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chats ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	chats := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

func scanUserRow(row *sql.Row) (ir.User, error) {
	var id, username string
	if err := row.Scan(&id, &username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.User{}, ErrUserNotFound
		}
		return ir.User{}, fmt.Errorf("scan user: %w", err)
	}
	return ir.User{ID: ir.PartyID(id), Username: username}, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
