// Login, logout and session token issuance.

package handlers

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maruel/mdwiki/internal/ksid"
	"github.com/maruel/mdwiki/internal/server/reqctx"
	"github.com/maruel/mdwiki/internal/server/webui"
	"github.com/maruel/mdwiki/internal/storage/identity"
	"github.com/maruel/mdwiki/internal/utils"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "mdwiki_session"

// maxDeviceInfo truncates stored User-Agent strings.
const maxDeviceInfo = 200

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	data := webui.LoginData{}
	if user := reqctx.User(r.Context()); user != nil {
		data.Username = user.Username
	}
	h.renderLogin(w, http.StatusOK, data)
}

// Login verifies credentials and sets the session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, http.StatusBadRequest, webui.LoginData{Warning: "Invalid form submission"})
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		h.renderLogin(w, http.StatusBadRequest, webui.LoginData{Warning: "Username and password are required"})
		return
	}

	user, err := h.Users.Authenticate(username, password)
	if err != nil {
		h.Log.Info("login failed", "username", username, "ip", reqctx.ClientIP(r.Context()))
		h.renderLogin(w, http.StatusUnauthorized, webui.LoginData{Warning: "Invalid username or password"})
		return
	}

	token, expiresAt, err := h.issueToken(user, r)
	if err != nil {
		h.Log.Error("failed to issue session token", "err", err)
		h.renderLogin(w, http.StatusInternalServerError, webui.LoginData{Warning: "Something went wrong"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.Log.Info("login", "username", username, "ip", reqctx.ClientIP(r.Context()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout revokes the session server-side and clears the cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sid := reqctx.SessionID(r.Context()); sid != 0 {
		if err := h.Sessions.Revoke(sid); err != nil {
			h.Log.Warn("failed to revoke session", "sid", sid, "err", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// issueToken creates a session and signs a JWT carrying its ID, so the
// session can be revoked independently of token expiry.
func (h *Handlers) issueToken(user *identity.User, r *http.Request) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(h.Config.SessionExpiryHours) * time.Hour)

	// Pre-generate the session ID so it can go into the claims.
	sessionID := ksid.NewID()
	claims := jwt.MapClaims{
		"sub": user.ID,
		"sid": sessionID.String(),
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.Config.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	ctx := r.Context()
	deviceInfo := reqctx.UserAgent(ctx)
	if len(deviceInfo) > maxDeviceInfo {
		deviceInfo = deviceInfo[:maxDeviceInfo]
	}
	clientIP := reqctx.ClientIP(ctx)
	country := h.Geo.CountryCode(clientIP)
	if _, err := h.Sessions.CreateWithID(sessionID, user.ID, utils.HashToken(tokenString), deviceInfo, clientIP, country, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (h *Handlers) renderLogin(w http.ResponseWriter, status int, data webui.LoginData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := webui.Templates.ExecuteTemplate(w, "login.html", data); err != nil {
		h.Log.Error("failed to render login page", "err", err)
	}
}
