package tenantauth

import (
	"context"
	"encoding/base32"
	"errors"
	"strings"
	"testing"
	"time"
)

func loginIntoOrg2(t *testing.T, h *testHarness) *LoginResult {
	t.Helper()

	u, _ := h.store.GetUserByID(context.Background(), "u1")
	u.DefaultOrganisationID = "org2"
	h.store.setUser(u)

	result, err := h.engine.Login(context.Background(), "alice@example.com", alicePassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return result
}

func decodeSecret(t *testing.T, secretBase32 string) []byte {
	t.Helper()
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secretBase32)
	if err != nil {
		t.Fatalf("decoding secret: %v", err)
	}
	return raw
}

func TestLoginRequiresMFASetup(t *testing.T) {
	h := newTestEngine(t, nil)
	h.requireMFAInOrg2()

	result := loginIntoOrg2(t, h)
	if result.Code != StatusLoginMFASetupRequired {
		t.Fatalf("expected %s, got %s", StatusLoginMFASetupRequired, result.Code)
	}
	if result.Tokens != nil {
		t.Fatal("expected no tokens before MFA")
	}
	if result.MFA == nil || result.MFA.ChallengeToken == "" || result.MFA.SecretBase32 == "" {
		t.Fatalf("expected challenge with provisioning secret, got %+v", result.MFA)
	}
	if !strings.HasPrefix(result.MFA.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning URI %q", result.MFA.ProvisioningURI)
	}
	if !h.redis.Exists("MFA:SETUP:u1:org2") {
		t.Fatal("expected cached provisioning secret")
	}
}

func TestMFASetupConfirmIssuesTokensAndPersistsFactor(t *testing.T) {
	h := newTestEngine(t, nil)
	h.requireMFAInOrg2()

	challenge := loginIntoOrg2(t, h)
	secret := decodeSecret(t, challenge.MFA.SecretBase32)

	result, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, codeFor(t, h.engine.config.MFA, secret))
	if err != nil {
		t.Fatalf("CompleteMFALogin failed: %v", err)
	}
	if result.Code != StatusLoginSuccess || result.Tokens == nil {
		t.Fatalf("expected tokens, got %+v", result)
	}

	factor, err := h.store.GetMFAFactor(context.Background(), "u1", "org2")
	if err != nil || factor == nil || !factor.Confirmed {
		t.Fatalf("expected confirmed factor, got %+v err=%v", factor, err)
	}
	if h.redis.Exists("MFA:SETUP:u1:org2") {
		t.Fatal("expected provisioning secret consumed on success")
	}
}

func TestMFALoginAgainstConfirmedFactor(t *testing.T) {
	h := newTestEngine(t, nil)
	h.requireMFAInOrg2()

	secret := []byte("12345678901234567890")
	if err := h.store.SaveMFAFactor(context.Background(), MFAFactor{
		UserID: "u1", OrganisationID: "org2", Secret: secret, Confirmed: true,
	}); err != nil {
		t.Fatalf("SaveMFAFactor failed: %v", err)
	}

	challenge := loginIntoOrg2(t, h)
	if challenge.Code != StatusLoginMFARequired {
		t.Fatalf("expected %s, got %s", StatusLoginMFARequired, challenge.Code)
	}
	if challenge.MFA.SecretBase32 != "" || challenge.MFA.ProvisioningURI != "" {
		t.Fatal("confirmed factor must not leak a provisioning secret")
	}

	result, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, codeFor(t, h.engine.config.MFA, secret))
	if err != nil {
		t.Fatalf("CompleteMFALogin failed: %v", err)
	}
	if result.Tokens == nil {
		t.Fatal("expected tokens after OTP")
	}
}

func TestMFAWrongCodeKeepsProvisioningSecret(t *testing.T) {
	h := newTestEngine(t, nil)
	h.requireMFAInOrg2()

	challenge := loginIntoOrg2(t, h)

	_, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, "000000")
	if !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("expected ErrMFACodeInvalid, got %v", err)
	}
	if !h.redis.Exists("MFA:SETUP:u1:org2") {
		t.Fatal("provisioning secret must survive a failed attempt")
	}

	// The same enrollment must still confirm.
	secret := decodeSecret(t, challenge.MFA.SecretBase32)
	if _, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, codeFor(t, h.engine.config.MFA, secret)); err != nil {
		t.Fatalf("retry after failure failed: %v", err)
	}
}

func TestMFALockoutAndRecovery(t *testing.T) {
	h := newTestEngine(t, func(cfg *Config) {
		cfg.MFA.MaxAttempts = 2
		cfg.MFA.Lockout = time.Minute
	})
	h.requireMFAInOrg2()

	challenge := loginIntoOrg2(t, h)
	secret := decodeSecret(t, challenge.MFA.SecretBase32)

	if _, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, "000000"); !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("expected ErrMFACodeInvalid, got %v", err)
	}
	if _, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, "000000"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited at cap, got %v", err)
	}

	// Locked out even with the correct code.
	good := codeFor(t, h.engine.config.MFA, secret)
	if _, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, good); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited during lockout, got %v", err)
	}

	h.redis.FastForward(h.engine.config.MFA.Lockout)

	if _, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, codeFor(t, h.engine.config.MFA, secret)); err != nil {
		t.Fatalf("expected success after lockout expiry, got %v", err)
	}
}

func TestMFASuccessClearsFailureCounter(t *testing.T) {
	h := newTestEngine(t, func(cfg *Config) {
		cfg.MFA.MaxAttempts = 3
	})
	h.requireMFAInOrg2()

	challenge := loginIntoOrg2(t, h)
	secret := decodeSecret(t, challenge.MFA.SecretBase32)

	if _, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, "000000"); !errors.Is(err, ErrMFACodeInvalid) {
		t.Fatalf("expected ErrMFACodeInvalid, got %v", err)
	}
	if _, err := h.engine.CompleteMFALogin(context.Background(), challenge.MFA.ChallengeToken, codeFor(t, h.engine.config.MFA, secret)); err != nil {
		t.Fatalf("CompleteMFALogin failed: %v", err)
	}
	if h.redis.Exists("MFA:ATTEMPTS:u1:org2") {
		t.Fatal("expected failure counter cleared on success")
	}
}

func TestMFAChallengeTokenTypeIsolation(t *testing.T) {
	h := newTestEngine(t, nil)
	h.requireMFAInOrg2()

	// An access token must never pass as a challenge token.
	login, err := h.engine.Login(context.Background(), "bob@example.com", alicePassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := h.engine.CompleteMFALogin(context.Background(), login.Tokens.AccessToken, "000000"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
