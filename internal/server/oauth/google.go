// Package oauth performs the Google OAuth 2.0 authorization-code handshake
// and keeps the anti-CSRF state values in Redis. Its only output is an email
// address Google has verified; account handling lives in the services.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var ErrEmailNotVerified = errors.New("oauth: email not verified by provider")

// GoogleProvider wraps an oauth2.Config for Google sign-in.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return newProvider(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}, googleUserInfoURL)
}

func newProvider(cfg *oauth2.Config, userInfoURL string) *GoogleProvider {
	return &GoogleProvider{config: cfg, userInfoURL: userInfoURL}
}

// AuthURL is the consent-screen URL the browser is redirected to.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// VerifiedEmail exchanges an authorization code and returns the account's
// email, or ErrEmailNotVerified when Google has not verified it.
func (p *GoogleProvider) VerifiedEmail(ctx context.Context, code string) (string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return "", fmt.Errorf("user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user info status: %s", resp.Status)
	}

	var info struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode user info: %w", err)
	}

	if info.Email == "" || !info.EmailVerified {
		return "", ErrEmailNotVerified
	}
	return info.Email, nil
}
