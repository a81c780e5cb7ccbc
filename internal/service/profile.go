package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/cryptonite/profiles/internal/apperror"
	"github.com/cryptonite/profiles/internal/auth"
	"github.com/cryptonite/profiles/internal/enrichment"
	"github.com/cryptonite/profiles/internal/model"
	"github.com/cryptonite/profiles/internal/profile"
	"github.com/cryptonite/profiles/internal/repository"
)

// Verifier is the verification service client.
// *verification.Client satisfies it; tests use a fake.
type Verifier interface {
	FetchProfile(ctx context.Context, username string) (*model.VerificationPayload, error)
	FetchToken(ctx context.Context, username string) (string, error)
}

// GitHubSource returns a GitHub account summary.
type GitHubSource interface {
	Summary(ctx context.Context, login string) (*enrichment.GitHubSummary, error)
}

// BitbucketSource returns a Bitbucket account summary.
type BitbucketSource interface {
	Summary(ctx context.Context, name string) (*enrichment.BitbucketSummary, error)
}

// Link types on a verified profile that the enrichment endpoints follow.
const (
	LinkGitHub    = "github"
	LinkBitbucket = "bitbucket"
)

// ProfileService runs the profile pipeline: load the record, reconcile it
// with the verification service when the owner opted in, persist, format.
type ProfileService struct {
	users     repository.UserRepository
	verifier  Verifier
	github    GitHubSource
	bitbucket BitbucketSource
	logger    *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(
	users repository.UserRepository,
	verifier Verifier,
	github GitHubSource,
	bitbucket BitbucketSource,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:     users,
		verifier:  verifier,
		github:    github,
		bitbucket: bitbucket,
		logger:    logger,
	}
}

// ProfileView is everything the profile page renders.
type ProfileView struct {
	User            model.User
	Display         profile.DisplayAttributes
	VerifiedDetails string
	// VerificationFailed is set when the owner opted in but the verification
	// service could not be reached. The page still renders from local data.
	VerificationFailed bool
}

// ProfileLink is one identity link from the verified profile.
type ProfileLink struct {
	Type  string
	Value string
}

// EditForm is the prefilled edit page.
type EditForm struct {
	User            model.User
	Links           []ProfileLink
	TokenURL        string
	VerifyStatusURL string
}

// EditInput is a submitted edit form. Fields map 1:1 to the form fields
// full_name, location, photo and switch_state.
type EditInput struct {
	FullName    string
	Location    string
	Photo       string
	SwitchState string
}

// VerifyStatus is the JSON answer of GET /users/{username}/verify_status.
type VerifyStatus struct {
	Username   string `json:"username"`
	Verified   bool   `json:"verified"`
	AuthorRank string `json:"authorRank"`
}

// Get returns the record for username.
func (s *ProfileService) Get(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading %q: %w", username, err)
	}
	return user, nil
}

// List returns every user for the directory page.
func (s *ProfileService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/profile: listing users: %w", err)
	}
	return users, nil
}

// Reconcile fetches the verification payload for record (when its owner
// opted in), merges it and persists the merged record.
//
// With the switch off nothing is fetched and the record comes back
// unchanged. A failed fetch is an apperror.ErrUpstream and nothing is
// written.
func (s *ProfileService) Reconcile(ctx context.Context, record model.User) (profile.Outcome, error) {
	if !record.VerificationEnabled() {
		return profile.Outcome{Record: record}, nil
	}

	payload, err := s.verifier.FetchProfile(ctx, record.Username)
	if err != nil {
		return profile.Outcome{Record: record},
			apperror.UpstreamFailure("Failed to fetch verification profile", err)
	}

	out := profile.Reconcile(record, payload)
	if out.Merged {
		if err := s.users.Update(ctx, &out.Record); err != nil {
			return profile.Outcome{Record: record},
				fmt.Errorf("service/profile: saving reconciled %q: %w", record.Username, err)
		}
	}
	return out, nil
}

// View builds the profile page for username.
//
// Verification failures degrade the page instead of failing it: the stored
// record is shown as-is and VerificationFailed is set. Unknown usernames and
// store errors are returned.
func (s *ProfileService) View(ctx context.Context, username string) (*ProfileView, error) {
	user, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	view := &ProfileView{}
	out, err := s.Reconcile(ctx, *user)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrUpstream):
		s.logger.Warn("verification unavailable, rendering local profile",
			slog.String("username", username),
			slog.Any("error", err),
		)
		view.VerificationFailed = true
	default:
		return nil, err
	}

	view.User = out.Record
	view.VerifiedDetails = out.VerifiedDetails
	view.Display = profile.Format(out.Record)
	return view, nil
}

// EditForm returns the edit page for username. Only the owner may open it.
//
// When verification is on, the form also lists the identity links from the
// verified profile; if the service is down the links are simply left out.
func (s *ProfileService) EditForm(ctx context.Context, viewer *auth.Session, username string) (*EditForm, error) {
	if err := requireOwner(viewer, username); err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	form := &EditForm{
		User:            *user,
		TokenURL:        userPath(username, "token"),
		VerifyStatusURL: userPath(username, "verify_status"),
	}

	if user.VerificationEnabled() {
		payload, err := s.verifier.FetchProfile(ctx, username)
		if err != nil {
			s.logger.Warn("verification unavailable, edit form without links",
				slog.String("username", username),
				slog.Any("error", err),
			)
			return form, nil
		}
		for _, dc := range payload.DataConfigurations {
			if v := strings.TrimSpace(dc.DisplayValue); v != "" {
				form.Links = append(form.Links, ProfileLink{Type: dc.DataPointType, Value: v})
			}
		}
	}
	return form, nil
}

// Update applies an edit submitted by the owner and persists it. No
// reconciliation runs here; the next profile view will do that.
func (s *ProfileService) Update(ctx context.Context, viewer *auth.Session, username string, in EditInput) (*model.User, error) {
	if err := requireOwner(viewer, username); err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	photo := strings.TrimSpace(in.Photo)
	if photo != "" {
		if u, err := url.Parse(photo); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, apperror.ValidationFailed("photo", "photo must be an http(s) URL")
		}
	}

	user.FullName = strings.TrimSpace(in.FullName)
	user.Location = strings.TrimSpace(in.Location)
	user.Photo = photo
	user.SwitchState = model.ParseSwitchState(in.SwitchState)

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/profile: updating %q: %w", username, err)
	}

	s.logger.Info("profile updated",
		slog.String("username", username),
		slog.String("switchState", string(user.SwitchState)),
	)
	return user, nil
}

// Token fetches a one-time verification token for the owner.
func (s *ProfileService) Token(ctx context.Context, viewer *auth.Session, username string) (string, error) {
	if err := requireOwner(viewer, username); err != nil {
		return "", err
	}
	token, err := s.verifier.FetchToken(ctx, username)
	if err != nil {
		return "", apperror.UpstreamFailure("Failed to generate token", err)
	}
	return token, nil
}

// VerifyStatus reports whether username currently holds a verified rank. It
// reads the verification service directly and writes nothing.
func (s *ProfileService) VerifyStatus(ctx context.Context, username string) (*VerifyStatus, error) {
	if _, err := s.Get(ctx, username); err != nil {
		return nil, err
	}

	payload, err := s.verifier.FetchProfile(ctx, username)
	if err != nil {
		return nil, apperror.UpstreamFailure("Failed to fetch verification status", err)
	}

	status := &VerifyStatus{Username: username, AuthorRank: profile.RankUnverified}
	if rank, ok := payload.Rank(); ok {
		status.AuthorRank = rank
		status.Verified = rank != profile.RankUnverified
	}
	return status, nil
}

// GitHub returns the GitHub summary of the account linked on username's
// verified profile.
func (s *ProfileService) GitHub(ctx context.Context, username string) (*enrichment.GitHubSummary, error) {
	account, err := s.linkedAccount(ctx, username, LinkGitHub)
	if err != nil {
		return nil, err
	}
	summary, err := s.github.Summary(ctx, account)
	if err != nil {
		return nil, apperror.UpstreamFailure("Failed to fetch GitHub data", err)
	}
	return summary, nil
}

// Bitbucket returns the Bitbucket summary of the account linked on
// username's verified profile.
func (s *ProfileService) Bitbucket(ctx context.Context, username string) (*enrichment.BitbucketSummary, error) {
	account, err := s.linkedAccount(ctx, username, LinkBitbucket)
	if err != nil {
		return nil, err
	}
	summary, err := s.bitbucket.Summary(ctx, account)
	if err != nil {
		return nil, apperror.UpstreamFailure("Failed to fetch Bitbucket data", err)
	}
	return summary, nil
}

// linkedAccount resolves the account name of a link type on the verified
// profile. Links are only followed for owners who opted in.
func (s *ProfileService) linkedAccount(ctx context.Context, username, linkType string) (string, error) {
	user, err := s.Get(ctx, username)
	if err != nil {
		return "", err
	}
	if !user.VerificationEnabled() {
		return "", apperror.NotFound(linkType+" account", username)
	}

	payload, err := s.verifier.FetchProfile(ctx, username)
	if err != nil {
		return "", apperror.UpstreamFailure("Failed to fetch verification profile", err)
	}

	value, ok := payload.Link(linkType)
	if !ok {
		return "", apperror.NotFound(linkType+" account", username)
	}
	account := enrichment.AccountName(value)
	if account == "" {
		return "", apperror.NotFound(linkType+" account", username)
	}
	return account, nil
}

func requireOwner(viewer *auth.Session, username string) error {
	if viewer == nil || viewer.Username != username {
		return apperror.Forbidden("you can only manage your own profile")
	}
	return nil
}

func userPath(username, action string) string {
	return "/users/" + url.PathEscape(username) + "/" + action
}
