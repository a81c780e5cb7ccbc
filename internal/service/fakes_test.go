package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cryptonite/profiles/internal/apperror"
	"github.com/cryptonite/profiles/internal/auth"
	"github.com/cryptonite/profiles/internal/enrichment"
	"github.com/cryptonite/profiles/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================
//
// Hand-written fakes keep the tests readable: each one is a map plus a few
// error knobs, and you can see exactly what it does.

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User // keyed by username
	nextID int64

	// set to a non-nil error to simulate a database failure
	createErr error
	getErr    error
	updateErr error

	updates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.users[user.Username]; ok {
		return apperror.Conflict("user", user.Username)
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.Username] = &stored
	return nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", "id")
}

func (f *fakeUserRepo) List(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUserRepo) RecentUsernames(ctx context.Context, limit int) ([]string, error) {
	all, _ := f.List(ctx)
	names := []string{}
	for i := len(all) - 1; i >= 0 && len(names) < limit; i-- {
		names = append(names, all[i].Username)
	}
	return names, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.users[user.Username]; !ok {
		return apperror.NotFound("user", user.Username)
	}
	f.updates++
	stored := *user
	f.users[user.Username] = &stored
	return nil
}

// put stores a user directly, bypassing Create.
func (f *fakeUserRepo) put(u model.User) {
	if u.ID == 0 {
		u.ID = f.nextID
		f.nextID++
	}
	f.users[u.Username] = &u
}

// fakeVerifier answers with a fixed payload, token or error.
type fakeVerifier struct {
	payload  *model.VerificationPayload
	token    string
	err      error
	profiles int // FetchProfile calls
}

func (f *fakeVerifier) FetchProfile(_ context.Context, _ string) (*model.VerificationPayload, error) {
	f.profiles++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeVerifier) FetchToken(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeGitHub struct {
	gotLogin string
	err      error
}

func (f *fakeGitHub) Summary(_ context.Context, login string) (*enrichment.GitHubSummary, error) {
	f.gotLogin = login
	if f.err != nil {
		return nil, f.err
	}
	return &enrichment.GitHubSummary{User: enrichment.GitHubUser{Login: login}, Repos: []enrichment.GitHubRepo{}}, nil
}

type fakeBitbucket struct {
	gotName string
	err     error
}

func (f *fakeBitbucket) Summary(_ context.Context, name string) (*enrichment.BitbucketSummary, error) {
	f.gotName = name
	if f.err != nil {
		return nil, f.err
	}
	return &enrichment.BitbucketSummary{User: enrichment.BitbucketUser{Nickname: name}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSessions(t *testing.T) *auth.SessionService {
	t.Helper()
	s, err := auth.NewSessionService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	return s
}

// newTestAuthService returns an AuthService over repo with the cheapest
// bcrypt cost and a fixed avatar choice.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()
	svc := NewAuthService(repo, newTestSessions(t), auth.NewPasswordServiceWithCost(bcrypt.MinCost), testLogger())
	svc.pickAvatar = func() int { return 3 }
	return svc
}

func strPtr(s string) *string { return &s }
