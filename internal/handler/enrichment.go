package handler

import (
	"net/http"

	"github.com/cryptonite/profiles/internal/auth"
)

// HandleToken returns a one-time verification token for the owner.
//
// HTTP: GET /users/{username}/token
//
// RESPONSE FORMAT:
//
//	{"token": "..."}
//
// An upstream failure answers 500 {"error":"upstream_error","message":"Failed to generate token"}.
func (h *ProfileHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	token, err := h.profiles.Token(r.Context(), sess, r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// HandleVerifyStatus reports the current verification state of a profile.
//
// HTTP: GET /users/{username}/verify_status
//
// RESPONSE FORMAT:
//
//	{"username": "alice", "verified": true, "authorRank": "Genuine"}
func (h *ProfileHandler) HandleVerifyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.profiles.VerifyStatus(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleGitHub returns the GitHub account linked on the verified profile,
// with its public repositories and their languages.
//
// HTTP: GET /users/{username}/github
func (h *ProfileHandler) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	summary, err := h.profiles.GitHub(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleBitbucket returns the Bitbucket account linked on the verified
// profile, with its repositories.
//
// HTTP: GET /users/{username}/bitbucket
func (h *ProfileHandler) HandleBitbucket(w http.ResponseWriter, r *http.Request) {
	summary, err := h.profiles.Bitbucket(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
