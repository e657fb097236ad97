package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newGoogleStub(t *testing.T, userInfo map[string]any, userInfoStatus int) *GoogleProvider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userInfoStatus)
		_ = json.NewEncoder(w).Encode(userInfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return newProvider(&oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURL:  "http://localhost:3000/auth/google/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		Scopes:       []string{"openid", "email"},
	}, srv.URL+"/userinfo")
}

func TestNewGoogleProvider_AuthURL(t *testing.T) {
	p := NewGoogleProvider("cid", "csecret", "http://localhost:3000/auth/google/callback")

	u, err := url.Parse(p.AuthURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "cid", u.Query().Get("client_id"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Contains(t, u.Query().Get("scope"), "email")
}

func TestVerifiedEmail_Success(t *testing.T) {
	p := newGoogleStub(t, map[string]any{"email": "g@b.com", "email_verified": true}, http.StatusOK)

	email, err := p.VerifiedEmail(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "g@b.com", email)
}

func TestVerifiedEmail_Unverified(t *testing.T) {
	p := newGoogleStub(t, map[string]any{"email": "g@b.com", "email_verified": false}, http.StatusOK)

	_, err := p.VerifiedEmail(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestVerifiedEmail_BadCode(t *testing.T) {
	p := newGoogleStub(t, map[string]any{}, http.StatusOK)

	_, err := p.VerifiedEmail(context.Background(), "bad-code")
	assert.ErrorContains(t, err, "exchange code")
}

func TestVerifiedEmail_UserInfoFailure(t *testing.T) {
	p := newGoogleStub(t, map[string]any{}, http.StatusInternalServerError)

	_, err := p.VerifiedEmail(context.Background(), "good-code")
	assert.ErrorContains(t, err, "user info status")
}
