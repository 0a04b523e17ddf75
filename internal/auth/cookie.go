package auth

import (
	"net/http"
	"time"
)

// CookieName is the name of the session cookie.
const CookieName = "jwt"

const (
	logoutValue = "loggedout"
	logoutTTL   = 2 * time.Second
)

// SessionCookie builds the HTTP-only cookie carrying s.Token.
func SessionCookie(s *Session) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.CookieExpires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// LogoutCookie overwrites the session cookie with a placeholder that expires
// almost immediately. The token itself stays valid until its own expiry.
func LogoutCookie(now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    logoutValue,
		Path:     "/",
		Expires:  now.Add(logoutTTL),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
