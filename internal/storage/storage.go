// Package storage keeps game sessions as JSONB documents in libSQL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/cluequiz/internal/cluequiz"
)

// timeLayout is fixed width so updated_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Summary describes a saved session for listings.
type Summary struct {
	ID        string
	Status    cluequiz.Status
	Players   []string
	Round     int
	Rounds    int
	UpdatedAt time.Time
}

type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Save writes the session, replacing any earlier version.
func (s *SessionStore) Save(ctx context.Context, id string, state *cluequiz.PersistedGameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO game_sessions (id, status, data, updated_at) VALUES (?, ?, jsonb(?), ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data, updated_at = excluded.updated_at`,
		id, string(state.Status), string(data), s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", id, err)
	}
	return nil
}

// Load returns nil and no error when id is not stored.
func (s *SessionStore) Load(ctx context.Context, id string) (*cluequiz.PersistedGameState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM game_sessions WHERE id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var st cluequiz.PersistedGameState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &st, nil
}

// List returns up to limit sessions, most recently saved first.
func (s *SessionStore) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, updated_at,
		        json_extract(data, '$.currentRound'),
		        json_extract(data, '$.totalProfilesCount'),
		        json(json_extract(data, '$.players'))
		 FROM game_sessions ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			status  string
			updated string
			round   sql.NullInt64
			rounds  sql.NullInt64
			players sql.NullString
		)
		if err := rows.Scan(&sum.ID, &status, &updated, &round, &rounds, &players); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sum.Status = cluequiz.Status(status)
		sum.Round = int(round.Int64)
		sum.Rounds = int(rounds.Int64)
		if sum.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("session %s updated_at: %w", sum.ID, err)
		}

		if players.Valid {
			var ps []cluequiz.Player
			if err := json.Unmarshal([]byte(players.String), &ps); err == nil {
				for _, p := range ps {
					sum.Players = append(sum.Players, p.Name)
				}
			}
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return out, nil
}

// Delete removes id. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM game_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Check pings the database for health reporting.
func (s *SessionStore) Check(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
