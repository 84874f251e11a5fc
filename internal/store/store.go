// Package store persists the last chart sent to a chat in a SQLite file.
//
// The table only grows: Save appends, UpdateMessageID rewrites matching rows
// and Latest reads the row with the highest id, whichever chat it belongs to.
// Each call opens and closes its own connection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER,
	message_id INTEGER,
	company TEXT,
	data_type TEXT
)`

// View is a chart message: where it was sent and what it shows.
type View struct {
	ChatID    int64
	MessageID int
	Company   string
	Metric    string
}

type Store struct {
	path string
}

// New creates the messages table if needed.
func New(ctx context.Context, path string) (*Store, error) {
	s := &Store{path: path}
	err := s.withDB(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, schema)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) withDB(fn func(*sql.DB) error) error {
	db, err := sql.Open("sqlite3", s.path+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

// Save appends a view.
func (s *Store) Save(ctx context.Context, v View) error {
	err := s.withDB(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO messages (chat_id, message_id, company, data_type) VALUES (?, ?, ?, ?)`,
			v.ChatID, v.MessageID, v.Company, v.Metric)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save view: %w", err)
	}
	log.Debug().
		Int64("chat_id", v.ChatID).
		Int("message_id", v.MessageID).
		Str("company", v.Company).
		Str("metric", v.Metric).
		Msg("Saved view")
	return nil
}

// Latest returns the most recently inserted view. ok is false on an empty store.
func (s *Store) Latest(ctx context.Context) (v View, ok bool, err error) {
	err = s.withDB(func(db *sql.DB) error {
		row := db.QueryRowContext(ctx,
			`SELECT chat_id, message_id, company, data_type FROM messages ORDER BY id DESC LIMIT 1`)
		return row.Scan(&v.ChatID, &v.MessageID, &v.Company, &v.Metric)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return View{}, false, nil
	}
	if err != nil {
		return View{}, false, fmt.Errorf("failed to read latest view: %w", err)
	}
	return v, true, nil
}

// UpdateMessageID rewrites the message id of every view matching the chat,
// company and metric. It returns the number of rows changed.
func (s *Store) UpdateMessageID(ctx context.Context, chatID int64, company, metric string, messageID int) (int64, error) {
	var affected int64
	err := s.withDB(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE messages SET message_id = ? WHERE chat_id = ? AND company = ? AND data_type = ?`,
			messageID, chatID, company, metric)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update message id: %w", err)
	}
	log.Debug().
		Int64("chat_id", chatID).
		Int("message_id", messageID).
		Int64("rows", affected).
		Msg("Updated view message id")
	return affected, nil
}
