// Request metadata and authentication middleware.

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maruel/mdwiki/internal/ksid"
	"github.com/maruel/mdwiki/internal/server/handlers"
	"github.com/maruel/mdwiki/internal/server/reqctx"
	"github.com/maruel/mdwiki/internal/storage/identity"
)

// touchInterval is how often a session's LastUsed is persisted. Persisting on
// every request would rewrite the session table constantly.
const touchInterval = 10 * time.Minute

var (
	errNoToken        = errors.New("no token")
	errInvalidToken   = errors.New("invalid token")
	errInvalidClaims  = errors.New("invalid claims")
	errSessionRevoked = errors.New("session revoked or expired")
)

// meta records client IP and User-Agent in the request context.
func (rt *router) meta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqctx.WithClientIP(r.Context(), reqctx.GetClientIP(r))
		ctx = reqctx.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// auth resolves the session token, if any, and records the user and session
// ID in the context. Requests without a valid token proceed anonymously;
// individual routes decide whether that is acceptable.
func (rt *router) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := rt.authenticate(r)
		if err == nil {
			ctx := reqctx.WithUser(r.Context(), user)
			ctx = reqctx.WithSessionID(ctx, sessionID)
			r = r.WithContext(ctx)
		} else if !errors.Is(err, errNoToken) {
			rt.h.Log.Debug("rejected session token", "err", err, "ip", reqctx.GetClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser gates browser routes: anonymous requests go to the login page.
func (rt *router) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqctx.User(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	})
}

// requireAPIUser gates non-HTML routes with a plain 401.
func (rt *router) requireAPIUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqctx.User(r.Context()) == nil {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	})
}

// limitLogin throttles login attempts per client IP.
func (rt *router) limitLogin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rt.login.Allow(reqctx.ClientIP(r.Context())) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many attempts, try again later", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	})
}

// authenticate validates the JWT from the session cookie or an Authorization
// header and checks the referenced session is still live.
func (rt *router) authenticate(r *http.Request) (*identity.User, ksid.ID, error) {
	tokenString := tokenFromRequest(r)
	if tokenString == "" {
		return nil, 0, errNoToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(rt.h.Config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, 0, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, 0, errInvalidClaims
	}

	userIDStr, ok := claims["sub"].(string)
	if !ok {
		return nil, 0, errInvalidClaims
	}
	userID, err := ksid.Parse(userIDStr)
	if err != nil {
		return nil, 0, errInvalidClaims
	}
	user, err := rt.h.Users.Get(userID)
	if err != nil {
		return nil, 0, errInvalidToken
	}

	sidStr, ok := claims["sid"].(string)
	if !ok {
		return nil, 0, errInvalidClaims
	}
	sessionID, err := ksid.Parse(sidStr)
	if err != nil {
		return nil, 0, errInvalidClaims
	}
	if !rt.h.Sessions.IsValid(sessionID) {
		return nil, 0, errSessionRevoked
	}
	rt.touch(sessionID)
	return user, sessionID, nil
}

// touch refreshes the session's LastUsed at most once per touchInterval.
func (rt *router) touch(sessionID ksid.ID) {
	session, err := rt.h.Sessions.Get(sessionID)
	if err != nil || time.Since(session.LastUsed) < touchInterval {
		return
	}
	if err := rt.h.Sessions.Touch(sessionID); err != nil {
		rt.h.Log.Warn("failed to touch session", "sid", sessionID, "err", err)
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(handlers.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return ""
}
