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

// AuthHandler serves signup, login and logout.
//
// DEPENDENCY CHAIN:
//   - accounts *service.AuthService → signup/login rules, session issuing
//   - sessions *auth.SessionService → cookie lifetime
//   - pages    *Renderer            → HTML forms
type AuthHandler struct {
	accounts      *service.AuthService
	sessions      *auth.SessionService
	pages         *Renderer
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookies should be true when
// the site is served over HTTPS.
func NewAuthHandler(
	accounts *service.AuthService,
	sessions *auth.SessionService,
	pages *Renderer,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:      accounts,
		sessions:      sessions,
		pages:         pages,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleSignupPage renders the signup form.
//
// HTTP: GET /signup
func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "signup", "Sign up", pageData{})
}

// HandleSignup creates an account and logs it in.
//
// HTTP: POST /signup
// FORM: username, password, full_name, location
//
// Validation errors and a taken username re-render the form with the
// message and the matching status (400 / 409).
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, r, http.StatusBadRequest, "signup", "Sign up", pageData{Error: "Invalid form submission"})
		return
	}

	in := service.SignupInput{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
		FullName: r.PostFormValue("full_name"),
		Location: r.PostFormValue("location"),
	}

	res, err := h.accounts.Signup(r.Context(), in)
	if err != nil {
		if isFormError(err) {
			status, _, message := statusFor(err)
			h.renderForm(w, r, status, "signup", "Sign up", pageData{
				Error:    message,
				Username: in.Username,
				FullName: in.FullName,
				Location: in.Location,
			})
			return
		}
		h.pages.renderError(w, r, err)
		return
	}

	auth.SetCookie(w, res.Token, h.sessions, h.secureCookies)
	http.Redirect(w, r, "/users/"+url.PathEscape(res.User.Username), http.StatusSeeOther)
}

// HandleLoginPage renders the login form.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "login", "Log in", pageData{})
}

// HandleLogin checks the credentials and starts a session.
//
// HTTP: POST /login
// FORM: username, password
//
// Unknown users and wrong passwords get the same 400 and message.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, r, http.StatusBadRequest, "login", "Log in", pageData{Error: "Invalid form submission"})
		return
	}
	username := r.PostFormValue("username")

	res, err := h.accounts.Login(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		if isFormError(err) {
			status, _, message := statusFor(err)
			h.renderForm(w, r, status, "login", "Log in", pageData{Error: message, Username: username})
			return
		}
		h.pages.renderError(w, r, err)
		return
	}

	h.logger.Info("user logged in", slog.String("username", res.User.Username))
	auth.SetCookie(w, res.Token, h.sessions, h.secureCookies)
	http.Redirect(w, r, "/users/"+url.PathEscape(res.User.Username), http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: GET /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// renderForm renders the login or signup page with the recent signups
// listed under it. A failure to list them only drops the list.
func (h *AuthHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, page, title string, data pageData) {
	base := newPage(r, title)
	data.Title = base.Title
	data.Viewer = base.Viewer

	recent, err := h.accounts.RecentUsernames(r.Context())
	if err != nil {
		h.logger.Warn("listing recent users", slog.Any("error", err))
	}
	data.Recent = recent

	h.pages.Render(w, status, page, data)
}

// isFormError reports whether err is a user mistake to show on the form
// rather than on the error page.
func isFormError(err error) bool {
	return errors.Is(err, apperror.ErrValidation) ||
		errors.Is(err, apperror.ErrConflict) ||
		errors.Is(err, apperror.ErrInvalidCredential)
}
