package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/cryptonite/profiles/internal/apperror"
	"github.com/cryptonite/profiles/internal/auth"
	"github.com/cryptonite/profiles/internal/service"
)

// ProfileHandler serves the member directory, profile pages and the edit
// form, plus the JSON endpoints hanging off a profile.
type ProfileHandler struct {
	profiles      *service.ProfileService
	accounts      *service.AuthService
	sessions      *auth.SessionService
	pages         *Renderer
	secureCookies bool
	logger        *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(
	profiles *service.ProfileService,
	accounts *service.AuthService,
	sessions *auth.SessionService,
	pages *Renderer,
	secureCookies bool,
	logger *slog.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		profiles:      profiles,
		accounts:      accounts,
		sessions:      sessions,
		pages:         pages,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleList renders every member.
//
// HTTP: GET /users
func (h *ProfileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.profiles.List(r.Context())
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	data := newPage(r, "Members")
	data.Users = users
	h.pages.Render(w, http.StatusOK, "users", data)
}

// HandleProfile renders one profile.
//
// HTTP: GET /users/{username}
//
// The profile is reconciled with the verification service on the way (if
// its owner opted in). An unreachable verification service does not fail
// the page; the profile view carries a notice instead.
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	view, err := h.profiles.View(r.Context(), username)
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	data := newPage(r, view.User.Username)
	data.Profile = view
	data.IsOwner = data.Viewer != nil && data.Viewer.Username == view.User.Username
	h.pages.Render(w, http.StatusOK, "profile", data)
}

// HandleEditPage renders the edit form for the viewer's own profile.
//
// HTTP: GET /users/{username}/edit
func (h *ProfileHandler) HandleEditPage(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	form, err := h.profiles.EditForm(r.Context(), sess, r.PathValue("username"))
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	data := newPage(r, "Edit profile")
	data.Form = form
	h.pages.Render(w, http.StatusOK, "edit", data)
}

// HandleEdit saves the edit form and refreshes the session so the new name
// shows up in the header straight away.
//
// HTTP: POST /users/{username}/edit
// FORM: full_name, location, photo, switch_state
func (h *ProfileHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	username := r.PathValue("username")

	if err := r.ParseForm(); err != nil {
		h.pages.renderError(w, r, apperror.ValidationFailed("form", "Invalid form submission"))
		return
	}

	user, err := h.profiles.Update(r.Context(), sess, username, service.EditInput{
		FullName:    r.PostFormValue("full_name"),
		Location:    r.PostFormValue("location"),
		Photo:       r.PostFormValue("photo"),
		SwitchState: r.PostFormValue("switch_state"),
	})
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			h.renderEditWithError(w, r, username, err)
			return
		}
		h.pages.renderError(w, r, err)
		return
	}

	token, err := h.accounts.RefreshSession(user)
	if err != nil {
		// The edit is saved; the header just shows the old name until the
		// next login.
		h.logger.Warn("refreshing session after edit", slog.Any("error", err))
	} else {
		auth.SetCookie(w, token, h.sessions, h.secureCookies)
	}

	http.Redirect(w, r, "/users/"+url.PathEscape(user.Username), http.StatusSeeOther)
}

func (h *ProfileHandler) renderEditWithError(w http.ResponseWriter, r *http.Request, username string, cause error) {
	sess, _ := auth.SessionFromContext(r.Context())
	form, err := h.profiles.EditForm(r.Context(), sess, username)
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	status, _, message := statusFor(cause)
	data := newPage(r, "Edit profile")
	data.Form = form
	data.Error = message
	h.pages.Render(w, status, "edit", data)
}
