package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"soulchat-backend/internal/db"
	"soulchat-backend/internal/dialogue"
)

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

func (ps *PostgresStore) AppendMessage(ctx context.Context, sessionID string, msg dialogue.Message) error {
	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO session_messages (session_id, role, content) VALUES ($1, $2, $3)`,
		sessionID, msg.Role, msg.Content)
	if err != nil {
		return pgUnavailable(err)
	}
	return nil
}

func (ps *PostgresStore) History(ctx context.Context, sessionID string) ([]dialogue.Message, error) {
	rows, err := ps.db.QueryContext(ctx,
		`SELECT role, content FROM session_messages WHERE session_id = $1 ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, pgUnavailable(err)
	}
	defer rows.Close()

	var out []dialogue.Message
	for rows.Next() {
		var msg dialogue.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, pgUnavailable(err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, pgUnavailable(err)
	}
	return out, nil
}

func (ps *PostgresStore) TrimHistory(ctx context.Context, sessionID string, maxMessages int) error {
	if maxMessages <= 0 {
		return nil
	}
	_, err := ps.db.ExecContext(ctx, `
		DELETE FROM session_messages
		WHERE session_id = $1 AND id NOT IN (
			SELECT id FROM session_messages
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		)`, sessionID, maxMessages)
	if err != nil {
		return pgUnavailable(err)
	}
	return nil
}

func (ps *PostgresStore) GetState(ctx context.Context, sessionID string) (*dialogue.SessionState, error) {
	var raw []byte
	err := ps.db.QueryRowContext(ctx,
		`SELECT state FROM session_states WHERE session_id = $1`,
		sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pgUnavailable(err)
	}
	var state dialogue.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, nil
	}
	return &state, nil
}

func (ps *PostgresStore) PutState(ctx context.Context, sessionID string, state *dialogue.SessionState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = ps.db.ExecContext(ctx, `
		INSERT INTO session_states (session_id, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		sessionID, b)
	if err != nil {
		return pgUnavailable(err)
	}
	return nil
}

func (ps *PostgresStore) GetCredential(ctx context.Context, sessionID, provider string) (string, error) {
	var key string
	err := ps.db.QueryRowContext(ctx,
		`SELECT api_key FROM session_credentials WHERE session_id = $1 AND provider = $2`,
		sessionID, provider).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", pgUnavailable(err)
	}
	return key, nil
}

func (ps *PostgresStore) PutCredential(ctx context.Context, sessionID, provider, apiKey string) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO session_credentials (session_id, provider, api_key, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, provider)
		DO UPDATE SET api_key = EXCLUDED.api_key, updated_at = NOW()`,
		sessionID, provider, apiKey)
	if err != nil {
		return pgUnavailable(err)
	}
	return nil
}

func (ps *PostgresStore) ClearSession(ctx context.Context, sessionID string) error {
	for _, q := range []string{
		`DELETE FROM session_messages WHERE session_id = $1`,
		`DELETE FROM session_states WHERE session_id = $1`,
		`DELETE FROM session_credentials WHERE session_id = $1`,
	} {
		if _, err := ps.db.ExecContext(ctx, q, sessionID); err != nil {
			return pgUnavailable(err)
		}
	}
	return nil
}

func pgUnavailable(err error) error {
	return fmt.Errorf("%w: %v", dialogue.ErrStoreUnavailable, err)
}
