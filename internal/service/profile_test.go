package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptonite/profiles/internal/apperror"
	"github.com/cryptonite/profiles/internal/auth"
	"github.com/cryptonite/profiles/internal/model"
	"github.com/cryptonite/profiles/internal/profile"
)

type profileFixture struct {
	repo      *fakeUserRepo
	verifier  *fakeVerifier
	github    *fakeGitHub
	bitbucket *fakeBitbucket
	svc       *ProfileService
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	f := &profileFixture{
		repo:      newFakeUserRepo(),
		verifier:  &fakeVerifier{},
		github:    &fakeGitHub{},
		bitbucket: &fakeBitbucket{},
	}
	f.svc = NewProfileService(f.repo, f.verifier, f.github, f.bitbucket, testLogger())
	return f
}

func verifiedPayload() *model.VerificationPayload {
	return &model.VerificationPayload{
		AuthorPhoto: strPtr("https://cdn.example/alice.png"),
		AuthorRank:  strPtr("Genuine"),
		DataConfigurations: []model.DataConfiguration{
			{DataPointType: "github", DisplayValue: "https://github.com/alice-gh"},
			{DataPointType: "bitbucket", DisplayValue: "alice-bb"},
		},
		Raw: []byte(`{"authorRank":"Genuine"}`),
	}
}

var alice = &auth.Session{UserID: 1, Username: "alice"}

// =========================================================================
// View / Reconcile
// =========================================================================

func TestView_SwitchOffSkipsVerification(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", Photo: "https://x/p.png", SwitchState: model.SwitchOff, AuthorRank: "Genuine"})
	f.verifier.payload = verifiedPayload()

	view, err := f.svc.View(context.Background(), "alice")
	require.NoError(t, err)

	assert.Zero(t, f.verifier.profiles, "no fetch when the switch is off")
	assert.Zero(t, f.repo.updates, "no write when the switch is off")
	assert.Equal(t, profile.RankUnverified, view.Display.Rank)
	assert.Equal(t, "https://x/p.png", view.Display.Photo)
	assert.Equal(t, profile.BorderLight, view.Display.BorderColor)
	assert.Empty(t, view.VerifiedDetails)
}

func TestView_SwitchOnMergesAndPersists(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", Photo: "https://x/p.png", SwitchState: model.SwitchOn})
	f.verifier.payload = verifiedPayload()

	view, err := f.svc.View(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/alice.png", view.Display.Photo)
	assert.Equal(t, "Genuine", view.Display.Rank)
	assert.Equal(t, profile.BorderPrimary, view.Display.BorderColor)
	assert.JSONEq(t, `{"authorRank":"Genuine"}`, view.VerifiedDetails)
	assert.False(t, view.VerificationFailed)

	stored, err := f.repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Genuine", stored.AuthorRank)
	assert.Equal(t, "https://cdn.example/alice.png", stored.AuthorPhoto)
}

func TestView_VerificationFailureDegrades(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{
		Username:    "alice",
		Photo:       "https://x/p.png",
		SwitchState: model.SwitchOn,
		AuthorPhoto: "https://x/old-verified.png",
		AuthorRank:  "Credible",
	})
	f.verifier.err = errors.New("connection refused")

	view, err := f.svc.View(context.Background(), "alice")
	require.NoError(t, err)

	assert.True(t, view.VerificationFailed)
	assert.Zero(t, f.repo.updates)
	// previously reconciled values still display
	assert.Equal(t, "Credible", view.Display.Rank)
	assert.Equal(t, "https://x/old-verified.png", view.Display.Photo)
}

func TestView_UnknownUser(t *testing.T) {
	f := newProfileFixture(t)

	_, err := f.svc.View(context.Background(), "ghost")

	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func TestView_PersistFailureIsReturned(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", SwitchState: model.SwitchOn})
	f.verifier.payload = verifiedPayload()
	f.repo.updateErr = errors.New("disk full")

	_, err := f.svc.View(context.Background(), "alice")

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrUpstream))
}

func TestReconcile_FetchFailureIsUpstreamAndWritesNothing(t *testing.T) {
	f := newProfileFixture(t)
	record := model.User{Username: "alice", SwitchState: model.SwitchOn, AuthorRank: "Reliable"}
	f.repo.put(record)
	f.verifier.err = errors.New("503")

	out, err := f.svc.Reconcile(context.Background(), record)

	assert.True(t, errors.Is(err, apperror.ErrUpstream), "got %v", err)
	assert.False(t, out.Merged)
	assert.Equal(t, "Reliable", out.Record.AuthorRank)
	assert.Zero(t, f.repo.updates)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	f := newProfileFixture(t)
	record := model.User{Username: "alice", SwitchState: model.SwitchOn}
	f.repo.put(record)
	f.verifier.payload = verifiedPayload()

	first, err := f.svc.Reconcile(context.Background(), record)
	require.NoError(t, err)
	second, err := f.svc.Reconcile(context.Background(), first.Record)
	require.NoError(t, err)

	assert.Equal(t, first.Record, second.Record)
	assert.Equal(t, 2, f.repo.updates, "the merged record is written every time")
}

// =========================================================================
// Edit
// =========================================================================

func TestEditForm_OwnerSeesLinks(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", SwitchState: model.SwitchOn})
	f.verifier.payload = verifiedPayload()

	form, err := f.svc.EditForm(context.Background(), alice, "alice")
	require.NoError(t, err)

	assert.Equal(t, "/users/alice/token", form.TokenURL)
	assert.Equal(t, "/users/alice/verify_status", form.VerifyStatusURL)
	assert.Equal(t, []ProfileLink{
		{Type: "github", Value: "https://github.com/alice-gh"},
		{Type: "bitbucket", Value: "alice-bb"},
	}, form.Links)
}

func TestEditForm_VerificationDownStillRenders(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", SwitchState: model.SwitchOn})
	f.verifier.err = errors.New("timeout")

	form, err := f.svc.EditForm(context.Background(), alice, "alice")
	require.NoError(t, err)
	assert.Empty(t, form.Links)
}

func TestEditForm_NotOwner(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "bob"})

	_, err := f.svc.EditForm(context.Background(), alice, "bob")
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)

	_, err = f.svc.EditForm(context.Background(), nil, "bob")
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)
}

func TestUpdate_AppliesFieldsAndNormalisesSwitch(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", AuthorRank: "Genuine", PasswordHash: "hash"})

	user, err := f.svc.Update(context.Background(), alice, "alice", EditInput{
		FullName:    " Alice ",
		Location:    "Porto",
		Photo:       "https://x/new.png",
		SwitchState: "on",
	})
	require.NoError(t, err)

	assert.Equal(t, "Alice", user.FullName)
	assert.Equal(t, model.SwitchOn, user.SwitchState)

	stored, _ := f.repo.GetByUsername(context.Background(), "alice")
	assert.Equal(t, "Porto", stored.Location)
	assert.Equal(t, "https://x/new.png", stored.Photo)
	assert.Equal(t, "Genuine", stored.AuthorRank, "edits never touch author fields")
	assert.Equal(t, "hash", stored.PasswordHash)
	assert.Zero(t, f.verifier.profiles, "edits do not reconcile")

	user, err = f.svc.Update(context.Background(), alice, "alice", EditInput{SwitchState: "yes please"})
	require.NoError(t, err)
	assert.Equal(t, model.SwitchOff, user.SwitchState)
}

func TestUpdate_RejectsBadPhoto(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice"})

	_, err := f.svc.Update(context.Background(), alice, "alice", EditInput{Photo: "javascript:alert(1)"})

	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
}

func TestUpdate_NotOwner(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "bob"})

	_, err := f.svc.Update(context.Background(), alice, "bob", EditInput{FullName: "hacked"})

	assert.True(t, errors.Is(err, apperror.ErrForbidden), "got %v", err)
	assert.Zero(t, f.repo.updates)
}

// =========================================================================
// Token / verify status
// =========================================================================

func TestToken(t *testing.T) {
	f := newProfileFixture(t)
	f.verifier.token = "tok-123"

	token, err := f.svc.Token(context.Background(), alice, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	_, err = f.svc.Token(context.Background(), alice, "bob")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	f.verifier.err = errors.New("boom")
	_, err = f.svc.Token(context.Background(), alice, "alice")
	require.True(t, errors.Is(err, apperror.ErrUpstream))
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Failed to generate token", appErr.Message)
}

func TestVerifyStatus(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice"})

	f.verifier.payload = verifiedPayload()
	status, err := f.svc.VerifyStatus(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, &VerifyStatus{Username: "alice", Verified: true, AuthorRank: "Genuine"}, status)

	f.verifier.payload = &model.VerificationPayload{}
	status, err = f.svc.VerifyStatus(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, &VerifyStatus{Username: "alice", Verified: false, AuthorRank: "Unverified"}, status)

	assert.Zero(t, f.repo.updates, "verify_status is read only")
}

func TestVerifyStatus_Errors(t *testing.T) {
	f := newProfileFixture(t)

	_, err := f.svc.VerifyStatus(context.Background(), "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	f.repo.put(model.User{Username: "alice"})
	f.verifier.err = errors.New("down")
	_, err = f.svc.VerifyStatus(context.Background(), "alice")
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
}

// =========================================================================
// GitHub / Bitbucket
// =========================================================================

func TestGitHub_FollowsVerifiedLink(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", SwitchState: model.SwitchOn})
	f.verifier.payload = verifiedPayload()

	summary, err := f.svc.GitHub(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice-gh", f.github.gotLogin)
	assert.Equal(t, "alice-gh", summary.User.Login)
}

func TestGitHub_RequiresSwitchAndLink(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "off", SwitchState: model.SwitchOff})
	f.repo.put(model.User{Username: "nolink", SwitchState: model.SwitchOn})
	f.verifier.payload = &model.VerificationPayload{}

	_, err := f.svc.GitHub(context.Background(), "off")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)

	_, err = f.svc.GitHub(context.Background(), "nolink")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
}

func TestGitHub_UpstreamFailure(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", SwitchState: model.SwitchOn})
	f.verifier.payload = verifiedPayload()
	f.github.err = errors.New("rate limited")

	_, err := f.svc.GitHub(context.Background(), "alice")

	assert.True(t, errors.Is(err, apperror.ErrUpstream), "got %v", err)
}

func TestBitbucket(t *testing.T) {
	f := newProfileFixture(t)
	f.repo.put(model.User{Username: "alice", SwitchState: model.SwitchOn})
	f.verifier.payload = verifiedPayload()

	summary, err := f.svc.Bitbucket(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-bb", f.bitbucket.gotName)
	assert.Equal(t, "alice-bb", summary.User.Nickname)

	f.bitbucket.err = errors.New("500")
	_, err = f.svc.Bitbucket(context.Background(), "alice")
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
}
