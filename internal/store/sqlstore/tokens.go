package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lifedash/lifedash/internal/model"
)

type tokens struct {
	db *sql.DB
}

func (r *tokens) Store(ctx context.Context, t *model.GoogleToken) error {
	t.UpdatedAt = model.NowUTC()
	// Google omits the refresh token on re-consent; an empty value keeps the
	// stored one instead of wiping the grant.
	_, err := r.db.ExecContext(ctx, `INSERT INTO google_tokens (user_email, refresh_token_enc, access_token, expires_at, scope, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_email) DO UPDATE SET
refresh_token_enc = CASE WHEN excluded.refresh_token_enc = '' THEN google_tokens.refresh_token_enc ELSE excluded.refresh_token_enc END,
access_token = excluded.access_token,
expires_at = excluded.expires_at,
scope = excluded.scope,
updated_at = excluded.updated_at`,
		t.User, t.RefreshTokenEnc, nullStr(t.AccessToken), nullStr(t.ExpiresAt), nullStr(t.Scope), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (r *tokens) Get(ctx context.Context, user string) (*model.GoogleToken, error) {
	var (
		t       model.GoogleToken
		access  sql.NullString
		expires sql.NullString
		scope   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT user_email, refresh_token_enc, access_token, expires_at, scope, updated_at
FROM google_tokens WHERE user_email = $1`, user).
		Scan(&t.User, &t.RefreshTokenEnc, &access, &expires, &scope, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	t.AccessToken = strPtr(access)
	t.ExpiresAt = strPtr(expires)
	t.Scope = strPtr(scope)
	return &t, nil
}

func (r *tokens) UpdateAccessToken(ctx context.Context, user, accessToken, expiresAt string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE google_tokens SET
access_token = $1, expires_at = $2, updated_at = $3 WHERE user_email = $4`,
		accessToken, expiresAt, model.NowUTC(), user)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *tokens) Delete(ctx context.Context, user string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM google_tokens WHERE user_email = $1", user)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
