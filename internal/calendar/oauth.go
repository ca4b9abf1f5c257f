package calendar

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lifedash/lifedash/internal/model"
	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/vault"
)

// GoogleAuthURL is the consent screen endpoint.
const GoogleAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

const calendarScope = "https://www.googleapis.com/auth/calendar"

// OAuth runs the authorization-code flow and persists the resulting grant.
type OAuth struct {
	tokens       store.Tokens
	vault        *vault.Vault
	http         *resty.Client
	clientID     string
	clientSecret string
	redirectURI  string
	authURL      string
	tokenURL     string
}

// NewOAuth builds the flow helper. Empty authURL/tokenURL target Google.
func NewOAuth(tokens store.Tokens, v *vault.Vault, clientID, clientSecret, redirectURI, authURL, tokenURL string) *OAuth {
	if authURL == "" {
		authURL = GoogleAuthURL
	}
	if tokenURL == "" {
		tokenURL = GoogleTokenURL
	}
	return &OAuth{
		tokens:       tokens,
		vault:        v,
		http:         resty.New().SetTimeout(20 * time.Second),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		authURL:      authURL,
		tokenURL:     tokenURL,
	}
}

// ConnectURL returns the consent URL for user. Offline access plus a forced
// consent prompt so Google issues a refresh token.
func (o *OAuth) ConnectURL(user string) string {
	q := url.Values{}
	q.Set("client_id", o.clientID)
	q.Set("redirect_uri", o.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", calendarScope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", user)
	return o.authURL + "?" + q.Encode()
}

// Exchange swaps the authorization code for tokens and stores them. When
// Google omits the refresh token on re-consent, the stored ciphertext is
// kept.
func (o *OAuth) Exchange(ctx context.Context, user, code string) error {
	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	resp, err := o.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     o.clientID,
			"client_secret": o.clientSecret,
			"redirect_uri":  o.redirectURI,
			"code":          code,
			"grant_type":    "authorization_code",
		}).
		SetResult(&tr).
		Post(o.tokenURL)
	if err != nil {
		return &Error{Kind: KindTransient, Message: err.Error()}
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), resp.Body())
	}
	if tr.AccessToken == "" {
		return &Error{Kind: KindPermanent, Status: resp.StatusCode(), Message: "token exchange returned no access_token"}
	}

	enc := ""
	if tr.RefreshToken != "" {
		if enc, err = o.vault.Encrypt(tr.RefreshToken); err != nil {
			return fmt.Errorf("oauth exchange: %w", err)
		}
	}
	expiresAt := time.Now().
		Add(time.Duration(tr.ExpiresIn) * time.Second).
		Add(-expirySlack).
		UTC().Format(model.TimestampLayout)

	row := &model.GoogleToken{
		User:            user,
		RefreshTokenEnc: enc,
		AccessToken:     &tr.AccessToken,
		ExpiresAt:       &expiresAt,
	}
	if tr.Scope != "" {
		row.Scope = &tr.Scope
	}
	if err := o.tokens.Store(ctx, row); err != nil {
		return fmt.Errorf("oauth exchange: %w", err)
	}
	return nil
}
