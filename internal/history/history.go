package history

import (
	"database/sql"
	"errors"
	"fmt"
)

// Role values of a persisted turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrStorageUnavailable indicates the backing store could not be reached or
// written. Callers can test for it with errors.Is.
var ErrStorageUnavailable = errors.New("history storage unavailable")

// Turn is one message in a conversation.
type Turn struct {
	Role    string
	Content string
}

// Store persists per-chat conversation history. Rows are append-only and
// read back in insertion order; a conversation is created implicitly on the
// first append.
type Store struct {
	DB *sql.DB
}

// Append adds one turn at the end of the chat's sequence.
func (s *Store) Append(chatID int64, role, content string) error {
	_, err := s.DB.Exec(
		"INSERT INTO history (chat_id, role, text) VALUES (?, ?, ?)",
		chatID, role, content,
	)
	if err != nil {
		return fmt.Errorf("%w: append chat_id=%d: %v", ErrStorageUnavailable, chatID, err)
	}
	return nil
}

// Read returns all turns for the chat, oldest first. An unknown chat yields
// an empty slice, not an error.
func (s *Store) Read(chatID int64) ([]Turn, error) {
	rows, err := s.DB.Query(
		"SELECT role, text FROM history WHERE chat_id = ? ORDER BY id",
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: read chat_id=%d: %v", ErrStorageUnavailable, chatID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("%w: scan chat_id=%d: %v", ErrStorageUnavailable, chatID, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read chat_id=%d: %v", ErrStorageUnavailable, chatID, err)
	}
	return turns, nil
}

// ReadTail returns at most limit of the chat's most recent turns, still
// ordered oldest first. limit <= 0 reads the full history.
func (s *Store) ReadTail(chatID int64, limit int) ([]Turn, error) {
	if limit <= 0 {
		return s.Read(chatID)
	}
	rows, err := s.DB.Query(
		"SELECT role, text FROM history WHERE chat_id = ? ORDER BY id DESC LIMIT ?",
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: read chat_id=%d: %v", ErrStorageUnavailable, chatID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("%w: scan chat_id=%d: %v", ErrStorageUnavailable, chatID, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read chat_id=%d: %v", ErrStorageUnavailable, chatID, err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Clear deletes all turns for the chat. A single DELETE keeps the operation
// atomic: concurrent readers observe either the full sequence or none of it.
// Clearing a chat with no history is a no-op success.
func (s *Store) Clear(chatID int64) error {
	_, err := s.DB.Exec("DELETE FROM history WHERE chat_id = ?", chatID)
	if err != nil {
		return fmt.Errorf("%w: clear chat_id=%d: %v", ErrStorageUnavailable, chatID, err)
	}
	return nil
}
