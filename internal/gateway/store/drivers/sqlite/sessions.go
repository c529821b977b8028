package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/domain"
)

type sessionsRepo struct {
	db *sql.DB
}

func (r *sessionsRepo) Create(ctx context.Context, s domain.StoredSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, email, refresh_token, created_at, last_seen_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.TokenHash, s.UserID, s.Email, s.RefreshToken,
		s.CreatedAt.UTC(), s.LastSeenAt.UTC(), s.ExpiresAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetByTokenHash(ctx context.Context, tokenHash string) (domain.StoredSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token_hash, user_id, email, refresh_token, created_at, last_seen_at, expires_at
		FROM sessions
		WHERE token_hash = ?`,
		tokenHash,
	)

	var s domain.StoredSession
	err := row.Scan(&s.TokenHash, &s.UserID, &s.Email, &s.RefreshToken, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt)
	if err != nil {
		return domain.StoredSession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) Touch(ctx context.Context, tokenHash, refreshToken string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET refresh_token = ?, last_seen_at = ?
		WHERE token_hash = ?`,
		refreshToken, at.UTC(), tokenHash,
	)
	return err
}

func (r *sessionsRepo) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	return err
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, cutoff.UTC())
	return err
}
