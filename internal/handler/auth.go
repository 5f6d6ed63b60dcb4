package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/auth"
	"github.com/sakif/species-catalog/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler manages sign-in, sign-out and the current user.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginPage      → the sign-in page (GitHub button + email forms)
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it for a user, issue JWT
//   - HandleRegister       → create a local account, issue JWT
//   - HandleLogin          → verify email + password, issue JWT
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the currently logged-in user's profile
//
// Register, login and logout accept either an HTML form post (the login
// page) or a JSON body (scripts). Forms get redirects; JSON gets JSON.
type AuthHandler struct {
	auth         *service.AuthService
	github       *auth.GitHubProvider
	views        *Views
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be unconfigured; the
// GitHub routes then answer 404 and the login page hides the button.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	views *Views,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		github:       github,
		views:        views,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// HandleLoginPage renders the sign-in page. A signed-in user goes straight
// to the catalog.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, http.StatusOK, r.URL.Query().Get("error"), "")
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when the two match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if !h.github.Enabled() {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Upsert the user and issue a JWT cookie
//  4. Redirect to the catalog
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if !h.github.Enabled() {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		redirectLogin(w, r, "GitHub sign-in was cancelled")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		redirectLogin(w, r, "GitHub sign-in failed")
		return
	}

	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed", slog.String("error", err.Error()))
		redirectLogin(w, r, "GitHub sign-in failed")
		return
	}

	h.setTokenCookie(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// credentials is the body of register and login.
type credentials struct {
	Email    string `json:"email"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// HandleRegister creates a local account and signs it in.
//
// HTTP: POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	creds, isJSON, err := readCredentials(r)
	if err != nil {
		h.authFailed(w, isJSON, apperror.ValidationFailed("body", "invalid request body"), "")
		return
	}

	result, err := h.auth.Register(r.Context(), creds.Email, creds.Login, creds.Password)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			err = &apperror.AppError{Err: apperror.ErrConflict, Message: "an account with that email already exists"}
		}
		h.authFailed(w, isJSON, err, creds.Email)
		return
	}

	h.setTokenCookie(w, result.Token)
	if isJSON {
		writeJSON(w, http.StatusCreated, result.User)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogin verifies an email + password pair.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	creds, isJSON, err := readCredentials(r)
	if err != nil {
		h.authFailed(w, isJSON, apperror.ValidationFailed("body", "invalid request body"), "")
		return
	}

	result, err := h.auth.Login(r.Context(), strings.ToLower(strings.TrimSpace(creds.Email)), creds.Password)
	if err != nil {
		h.authFailed(w, isJSON, err, creds.Email)
		return
	}

	h.setTokenCookie(w, result.Token)
	if isJSON {
		writeJSON(w, http.StatusOK, result.User)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// The token stays technically valid until it expires, but without the
// cookie the browser can no longer send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user not found", slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie stores the JWT in an HttpOnly cookie.
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
// MaxAge matches the token lifetime so both expire together.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.auth.TokenTTL(),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// authFailed answers a failed register/login: JSON callers get the error
// body, form posts get the login page again with the message.
func (h *AuthHandler) authFailed(w http.ResponseWriter, isJSON bool, err error, email string) {
	if isJSON {
		writeError(w, err)
		return
	}
	status, _ := statusFor(err)
	msg := "Something went wrong, please try again"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		msg = appErr.Message
	} else {
		h.logger.Error("auth request failed", slog.String("error", err.Error()))
	}
	h.renderLogin(w, status, msg, email)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, status int, msg, email string) {
	h.views.writeHTML(w, status, "login.html", loginPage{
		Title:         "Sign in · Species Catalog",
		Error:         msg,
		Email:         email,
		GitHubEnabled: h.github.Enabled(),
		MinPassword:   auth.MinPasswordLength,
	})
}

func readCredentials(r *http.Request) (credentials, bool, error) {
	var creds credentials
	if isJSONRequest(r) {
		err := json.NewDecoder(r.Body).Decode(&creds)
		return creds, true, err
	}
	if err := r.ParseForm(); err != nil {
		return creds, false, err
	}
	creds.Email = r.PostForm.Get("email")
	creds.Login = r.PostForm.Get("login")
	creds.Password = r.PostForm.Get("password")
	return creds, false, nil
}

func isJSONRequest(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func redirectLogin(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/login?error="+url.QueryEscape(msg), http.StatusSeeOther)
}
