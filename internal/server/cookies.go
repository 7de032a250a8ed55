package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "shopdesk_session"
	// CookieMaxAge is how long the browser keeps the session cookie
	CookieMaxAge = 30 * 24 * time.Hour
	// SessionHeader echoes the session id for clients without cookies
	SessionHeader = "X-Session-Id"
)

// SetSessionCookie sets an HTTP-only session cookie
func SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	}
	http.SetCookie(w, cookie)
}

// GetSessionCookie reads the session ID from the cookie
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func newSessionID() string {
	return uuid.NewString()
}

// getSessionID looks at the cookie, then the header, then the query string.
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && cookie != "" {
		return cookie
	}
	if sid := r.Header.Get(SessionHeader); sid != "" {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		return sid
	}
	return ""
}
