package tenantauth

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRefreshCookieName(t *testing.T) {
	if got := RefreshCookieName("production", UserTypeCustomer); got != "refresh_production_customer" {
		t.Fatalf("RefreshCookieName = %q", got)
	}
	if got := RefreshCookieName("staging", UserTypeAdmin); got != "refresh_staging_admin" {
		t.Fatalf("RefreshCookieName = %q", got)
	}
}

func TestRefreshCookieAttributes(t *testing.T) {
	h := newTestEngine(t, func(cfg *Config) {
		cfg.Token.RefreshTTL = 48 * time.Hour
	})

	result, err := h.engine.Login(context.Background(), "alice@example.com", alicePassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	c := h.engine.RefreshCookie(UserTypeCustomer, result.Tokens.RefreshToken)
	if c.Name != "refresh_develop_customer" {
		t.Fatalf("Name = %q", c.Name)
	}
	if c.Value != result.Tokens.RefreshToken {
		t.Fatal("cookie does not carry the refresh token")
	}
	if c.MaxAge != int(48*time.Hour/time.Second) {
		t.Fatalf("MaxAge = %d", c.MaxAge)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode || c.Path != "/" {
		t.Fatalf("unexpected attributes %+v", c)
	}
}

func TestClearRefreshCookie(t *testing.T) {
	h := newTestEngine(t, nil)

	c := h.engine.ClearRefreshCookie(UserTypeCustomer)
	if c.Name != "refresh_develop_customer" {
		t.Fatalf("Name = %q", c.Name)
	}
	if c.Value != "" || c.MaxAge != -1 {
		t.Fatalf("expected expiring empty cookie, got %+v", c)
	}
}
