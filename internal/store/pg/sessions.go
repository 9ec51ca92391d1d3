package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskfold.org/internal/session"
)

func (s *Store) Put(ctx context.Context, keyHash string, payload session.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode session payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into sessions (key_hash, account_id, payload, created_at, expires_at)
		values ($1, $2, $3, $4, $5)
		on conflict (key_hash) do update
		set payload = excluded.payload, expires_at = excluded.expires_at
	`, keyHash, payload.Profile.AccountID, data, payload.CreatedAt, payload.ExpiresAt)
	return err
}

func (s *Store) Get(ctx context.Context, keyHash string) (session.Payload, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		select payload
		from sessions
		where key_hash = $1 and expires_at > now()
	`, keyHash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Payload{}, session.ErrNotFound
	}
	if err != nil {
		return session.Payload{}, err
	}
	var payload session.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		// An unreadable payload must never authenticate anyone.
		return session.Payload{}, session.ErrNotFound
	}
	return payload, nil
}

func (s *Store) Delete(ctx context.Context, keyHash string) error {
	res, err := s.db.ExecContext(ctx, `delete from sessions where key_hash = $1`, keyHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return session.ErrNotFound
	}
	return nil
}

// PurgeExpiredSessions removes rows whose expiry has passed. Expired
// sessions are already unreadable through Get; the sweeper only reclaims
// the rows.
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where expires_at < $1`, now)
	return err
}
