package services

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	resettokensrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/resettokens"
	usersrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
)

// --- repositories ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	saves  int
	create int
	err    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.create++
	for _, u := range f.byID {
		if u.Email == user.Email {
			return nil, common.ErrDuplicateAccount
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	c := *user
	f.byID[user.ID] = &c
	return user, nil
}

func (f *fakeUsersRepo) Save(_ context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	f.saves++
	c := *user
	f.byID[user.ID] = &c
	return user, nil
}

func (f *fakeUsersRepo) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *f.byID[id]
	return &c
}

func (f *fakeUsersRepo) put(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *u
	f.byID[u.ID] = &c
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.RefreshToken
	stolen map[string]bool // ids whose next Revoke loses a race
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{byID: map[string]*models.RefreshToken{}, stolen: map[string]bool{}}
}

func (f *fakeRefreshRepo) Create(_ context.Context, t *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *t
	f.byID[t.ID] = &c
	return nil
}

func (f *fakeRefreshRepo) FindByID(_ context.Context, id string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeRefreshRepo) Revoke(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok || !t.IsActive {
		return false, nil
	}
	t.IsActive = false
	if f.stolen[id] {
		return false, nil
	}
	return true, nil
}

func (f *fakeRefreshRepo) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.byID {
		if t.UserID == userID && t.IsActive {
			t.IsActive = false
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) get(id string) *models.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *f.byID[id]
	return &c
}

func (f *fakeRefreshRepo) activeFor(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.byID {
		if t.UserID == userID && t.IsActive {
			n++
		}
	}
	return n
}

type fakeResetRepo struct {
	mu   sync.Mutex
	byID map[string]*models.PasswordResetToken
	// beforeCreate runs ahead of Create, e.g. to let a competing request win.
	beforeCreate func()
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{byID: map[string]*models.PasswordResetToken{}}
}

func (f *fakeResetRepo) Create(_ context.Context, t *models.PasswordResetToken) error {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.byID {
		if other.UserID == t.UserID && other.IsActive {
			return common.ErrActiveResetToken
		}
	}
	c := *t
	f.byID[t.ID] = &c
	return nil
}

func (f *fakeResetRepo) FindByID(_ context.Context, id string) (*models.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeResetRepo) FindActiveByUser(_ context.Context, userID string) (*models.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.UserID == userID && t.IsActive {
			c := *t
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeResetRepo) Revoke(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok || !t.IsActive {
		return false, nil
	}
	t.IsActive = false
	return true, nil
}

func (f *fakeResetRepo) all() []*models.PasswordResetToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.PasswordResetToken, 0, len(f.byID))
	for _, t := range f.byID {
		c := *t
		out = append(out, &c)
	}
	return out
}

type fakeRepoManager struct {
	users   *fakeUsersRepo
	refresh *fakeRefreshRepo
	resets  *fakeResetRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{users: newFakeUsersRepo(), refresh: newFakeRefreshRepo(), resets: newFakeResetRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.refresh }
func (m *fakeRepoManager) ResetTokens(dbx.DBTX) resettokensrepo.Repository     { return m.resets }

// fakeTx runs fn directly; the in-memory repos have no rollback.
type fakeTx struct{ calls int }

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	t.calls++
	return fn(ctx, nil)
}

// --- collaborators ---

type fakeHasher struct {
	mu          sync.Mutex
	hashCalls   int
	verifyCalls int
}

func (h *fakeHasher) Hash(plain string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashCalls++
	return "hashed:" + plain, nil
}

func (h *fakeHasher) Verify(plain, digest string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.verifyCalls++
	return digest != "" && digest == "hashed:"+plain
}

type fakeTOTP struct {
	validCode   string
	secretSeq   int
	verifyCalls int
	lastSkew    uint
}

func (f *fakeTOTP) GenerateSecret(account string) (string, error) {
	f.secretSeq++
	return strings.Repeat("A", 31) + string(rune('A'+f.secretSeq%26)), nil
}

func (f *fakeTOTP) EnrollmentURL(secret, account, issuer string) (string, error) {
	return "otpauth://totp/" + issuer + ":" + account + "?secret=" + secret + "&issuer=" + issuer, nil
}

func (f *fakeTOTP) Verify(secret, code string, skew uint) bool {
	f.verifyCalls++
	f.lastSkew = skew
	return secret != "" && code == f.validCode
}

type fakeTokens struct{ n int }

func (f *fakeTokens) Sign(subject, email string) (string, error) {
	f.n++
	return "access:" + subject, nil
}

type sentReset struct {
	userID  string
	tokenID string
}

type fakeNotifier struct {
	sent []sentReset
	err  error
}

func (f *fakeNotifier) SendPasswordResetEmail(_ context.Context, user *models.User, tokenID string) error {
	f.sent = append(f.sent, sentReset{userID: user.ID, tokenID: tokenID})
	return f.err
}

// --- fixture ---

type fixture struct {
	repos    *fakeRepoManager
	tx       *fakeTx
	hasher   *fakeHasher
	totp     *fakeTOTP
	tokens   *fakeTokens
	notifier *fakeNotifier
	clock    time.Time
	cfg      *config.Config
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func newFixture() *fixture {
	return &fixture{
		repos:    newFakeRepoManager(),
		tx:       &fakeTx{},
		hasher:   &fakeHasher{},
		totp:     &fakeTOTP{validCode: "123456"},
		tokens:   &fakeTokens{},
		notifier: &fakeNotifier{},
		clock:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		cfg:      testConfig(),
	}
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) services() (*SessionService, *UserService, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf, "debug", "json")

	sessions := NewSessionService(SessionDeps{
		Repomanager: f.repos,
		Tx:          f.tx,
		Hasher:      f.hasher,
		TOTP:        f.totp,
		Tokens:      f.tokens,
		Notifier:    f.notifier,
		Logger:      logger,
	}, f.cfg)
	sessions.now = func() time.Time { return f.clock }

	users := NewUserService(nil, f.repos, f.hasher, logger)
	return sessions, users, buf
}

// addUser stores an active user with password "secret1".
func (f *fixture) addUser(email string, mutate ...func(*models.User)) *models.User {
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hashed:secret1",
		IsActive:     true,
		CreatedAt:    f.clock,
	}
	for _, m := range mutate {
		m(u)
	}
	f.repos.users.put(u)
	return u
}
