package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/golang-jwt/jwt/v5"
)

var testUser = &models.User{ID: "7f1b7e42-3c55-4d2a-9a43-0f7f0c3f9a10", Email: "a@x.io", IsActive: true}

type fakeUsers struct {
	registerErr  error
	authErr      error
	profileErr   error
	registered   []string
	profileCalls int
}

func (f *fakeUsers) Register(_ context.Context, email, _ string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, email)
	return &models.User{ID: testUser.ID, Email: email}, nil
}

func (f *fakeUsers) Profile(_ context.Context, id string) (*models.User, error) {
	f.profileCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if id != testUser.ID {
		return nil, common.ErrUserNotFound
	}
	return testUser, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, id string) (*models.User, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	if id != testUser.ID {
		return nil, common.ErrInvalidCredentials
	}
	return testUser, nil
}

type fakeSessions struct {
	loginRes *services.LoginResult
	err      error
	enabled  bool

	gotEmail   string
	gotUserID  string
	gotCode    string
	gotToken   string
	forgotSeen []string
}

func (f *fakeSessions) session() *services.LoginResult {
	if f.loginRes != nil {
		return f.loginRes
	}
	return &services.LoginResult{
		User:   testUser,
		Tokens: &services.TokenPair{AccessToken: "access", RefreshToken: "refresh"},
	}
}

func (f *fakeSessions) Login(_ context.Context, email, _ string) (*services.LoginResult, error) {
	f.gotEmail = email
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func (f *fakeSessions) Refresh(_ context.Context, token string) (*services.LoginResult, error) {
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func (f *fakeSessions) Logout(_ context.Context, token string) error {
	f.gotToken = token
	return f.err
}

func (f *fakeSessions) GenerateTwoFactorSecret(_ context.Context, email string) (*services.TwoFactorSecret, error) {
	f.gotEmail = email
	if f.err != nil {
		return nil, f.err
	}
	return &services.TwoFactorSecret{Secret: "JBSWY3DPEHPK3PXP", EnrollmentURL: "otpauth://totp/x"}, nil
}

func (f *fakeSessions) EnableTwoFactor(_ context.Context, userID, code string) (bool, error) {
	f.gotUserID, f.gotCode = userID, code
	return f.enabled, f.err
}

func (f *fakeSessions) LoginWithTwoFactor(_ context.Context, userID, code string) (*services.LoginResult, error) {
	f.gotUserID, f.gotCode = userID, code
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func (f *fakeSessions) LoginWithGoogle(_ context.Context, email string) (*services.LoginResult, error) {
	f.gotEmail = email
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func (f *fakeSessions) ForgotPassword(_ context.Context, email string) (bool, error) {
	f.forgotSeen = append(f.forgotSeen, email)
	return true, f.err
}

func (f *fakeSessions) ResetPassword(_ context.Context, token, _ string) (bool, error) {
	f.gotToken = token
	if f.err != nil {
		return false, f.err
	}
	return true, nil
}

// fakeTokens accepts "good", reports "expired" as expired and rejects the rest.
type fakeTokens struct{}

func (fakeTokens) Parse(token string) (*auth.Claims, error) {
	switch token {
	case "good":
	case "expired":
		return nil, common.ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: malformed", common.ErrInvalidToken)
	}
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: testUser.ID},
		Email:            testUser.Email,
	}, nil
}

type fakeGoogle struct {
	email string
	err   error
}

func (fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f fakeGoogle) VerifiedEmail(context.Context, string) (string, error) {
	return f.email, f.err
}

type fakeStates struct {
	issued map[string]bool
}

func (f *fakeStates) Issue(context.Context) (string, error) {
	if f.issued == nil {
		f.issued = map[string]bool{}
	}
	f.issued["st4te"] = true
	return "st4te", nil
}

func (f *fakeStates) Consume(_ context.Context, state string) (bool, error) {
	ok := f.issued[state]
	delete(f.issued, state)
	return ok, nil
}

type fixture struct {
	users    *fakeUsers
	sessions *fakeSessions
	google   *fakeGoogle
	states   *fakeStates
	handler  http.Handler
}

func newFixture(t *testing.T, withGoogle bool) *fixture {
	t.Helper()
	f := &fixture{
		users:    &fakeUsers{},
		sessions: &fakeSessions{},
		google:   &fakeGoogle{email: "g@x.io"},
		states:   &fakeStates{},
	}
	deps := Deps{Users: f.users, Sessions: f.sessions, Tokens: fakeTokens{}}
	if withGoogle {
		deps.Google = f.google
		deps.States = f.states
	}
	f.handler = NewServer(":0", []string{"http://localhost:4200"}, deps).Router()
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}
