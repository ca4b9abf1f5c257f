package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/vault"
)

const (
	// GoogleTokenURL is the OAuth 2 token endpoint; overridable in tests.
	GoogleTokenURL = "https://oauth2.googleapis.com/token"

	// expirySlack is shaved off the reported lifetime so a token is never
	// used in its final seconds.
	expirySlack = 30 * time.Second
)

// TokenProvider yields a usable access token per user, refreshing through
// the stored refresh token when the cached one has expired.
type TokenProvider struct {
	tokens       store.Tokens
	vault        *vault.Vault
	http         *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string
}

// NewTokenProvider builds a provider over the token store and vault.
func NewTokenProvider(tokens store.Tokens, v *vault.Vault, clientID, clientSecret, tokenURL string) *TokenProvider {
	if tokenURL == "" {
		tokenURL = GoogleTokenURL
	}
	return &TokenProvider{
		tokens:       tokens,
		vault:        v,
		http:         resty.New().SetTimeout(20 * time.Second),
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessToken returns a valid access token for user. A cached token with a
// future expiry is reused; otherwise a refresh round-trip is made and the
// result persisted.
func (p *TokenProvider) AccessToken(ctx context.Context, user string) (string, error) {
	row, err := p.tokens.Get(ctx, user)
	if err != nil {
		return "", fmt.Errorf("access token for %s: %w", user, err)
	}

	if row.AccessToken != nil && row.ExpiresAt != nil {
		if exp, perr := time.Parse(model.TimestampLayout, *row.ExpiresAt); perr == nil && exp.After(time.Now()) {
			return *row.AccessToken, nil
		}
	}

	refresh, err := p.vault.Decrypt(row.RefreshTokenEnc)
	if err != nil {
		return "", fmt.Errorf("access token for %s: %w", user, err)
	}

	var tr tokenResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     p.clientID,
			"client_secret": p.clientSecret,
			"refresh_token": refresh,
			"grant_type":    "refresh_token",
		}).
		SetResult(&tr).
		Post(p.tokenURL)
	if err != nil {
		return "", &Error{Kind: KindTransient, Message: err.Error()}
	}
	if resp.IsError() {
		apiErr := apiError(resp.StatusCode(), resp.Body())
		// A rejected refresh token means the grant is gone, not a flaky
		// network. The next interactive OAuth round rebinds it.
		if resp.StatusCode() == 400 || resp.StatusCode() == 401 {
			apiErr.Kind = KindTokenInvalid
		}
		return "", apiErr
	}
	if tr.AccessToken == "" {
		return "", &Error{Kind: KindPermanent, Status: resp.StatusCode(), Message: "token endpoint returned no access_token"}
	}

	expiresAt := time.Now().
		Add(time.Duration(tr.ExpiresIn) * time.Second).
		Add(-expirySlack).
		UTC().Format(model.TimestampLayout)
	if err := p.tokens.UpdateAccessToken(ctx, user, tr.AccessToken, expiresAt); err != nil {
		return "", fmt.Errorf("persist access token for %s: %w", user, err)
	}
	return tr.AccessToken, nil
}
