package tenantauth

import (
	"net/http"
	"time"
)

// RefreshCookieName builds the environment- and user-type-namespaced
// refresh cookie name, e.g. "refresh_production_customer". Namespacing
// keeps admin and customer sessions, and sessions from different
// deployments under one domain, from clobbering each other.
func RefreshCookieName(environment string, userType UserType) string {
	return "refresh_" + environment + "_" + string(userType)
}

// RefreshCookie wraps a refresh token in an HttpOnly cookie scoped to the
// engine's environment and the bearer's user type.
func (e *Engine) RefreshCookie(userType UserType, refreshToken string) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName(e.config.Environment, userType),
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(e.config.Token.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearRefreshCookie expires the refresh cookie for the user type.
func (e *Engine) ClearRefreshCookie(userType UserType) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName(e.config.Environment, userType),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
