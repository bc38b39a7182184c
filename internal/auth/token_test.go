package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "unit-test-secret"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewTokenService("   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewTokenService(testSecret, WithClock(fixedClock(now)))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, expiresAt, err := svc.Issue("user-1", "a@b.c", []string{"Admin", "User"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := now.Add(15 * time.Minute); !expiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", expiresAt, want)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.Email != "a@b.c" {
		t.Fatalf("email = %q", claims.Email)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "Admin" {
		t.Fatalf("roles = %v", claims.Roles)
	}
	if claims.Scope != "" {
		t.Fatalf("access token must carry no scope, got %q", claims.Scope)
	}
	if claims.ID == "" {
		t.Fatal("jti missing")
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	svc, _ := NewTokenService(testSecret)
	if _, _, err := svc.Issue("", "a@b.c", nil); err == nil {
		t.Fatal("expected error for empty userID")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	svc, _ := NewTokenService(testSecret, WithClock(func() time.Time { return clock }))

	token, _, err := svc.Issue("user-1", "", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = issued.Add(14 * time.Minute)
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("token should still verify before expiry: %v", err)
	}

	clock = issued.Add(16 * time.Minute)
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc, _ := NewTokenService(testSecret)
	token, _, err := svc.Issue("user-1", "a@b.c", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := svc.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer, _ := NewTokenService("secret-a")
	verifier, _ := NewTokenService("secret-b")
	token, _, err := issuer.Issue("user-1", "", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	svc, _ := NewTokenService(testSecret)
	if _, err := svc.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyResetScopeRequired(t *testing.T) {
	svc, _ := NewTokenService(testSecret)

	access, _, err := svc.Issue("user-1", "a@b.c", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.VerifyReset(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token must not pass VerifyReset, got %v", err)
	}

	reset, _, err := svc.IssueReset("user-1")
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}
	claims, err := svc.VerifyReset(reset)
	if err != nil {
		t.Fatalf("VerifyReset: %v", err)
	}
	if claims.Scope != ScopePasswordReset {
		t.Fatalf("scope = %q", claims.Scope)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	// Reset tokens still pass plain Verify; only the ceremony requires the scope.
	if _, err := svc.Verify(reset); err != nil {
		t.Fatalf("reset token must pass Verify: %v", err)
	}
}

func TestResetTokenExpiresAfterConfiguredTTL(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	svc, _ := NewTokenService(testSecret, WithClock(func() time.Time { return clock }))

	token, expiresAt, err := svc.IssueReset("user-1")
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}
	if want := issued.Add(time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", expiresAt, want)
	}

	clock = issued.Add(61 * time.Minute)
	if _, err := svc.VerifyReset(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after TTL, got %v", err)
	}
}

func TestRefreshMintsFreshToken(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	svc, _ := NewTokenService(testSecret, WithClock(func() time.Time { return clock }))

	old, _, err := svc.Issue("user-1", "a@b.c", []string{"User"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = issued.Add(10 * time.Minute)
	fresh, remaining, err := svc.Refresh(old)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fresh == old {
		t.Fatal("refresh must mint a new token")
	}
	if remaining != "01:00:00" {
		t.Fatalf("remaining = %q, want 01:00:00", remaining)
	}

	claims, err := svc.Verify(fresh)
	if err != nil {
		t.Fatalf("Verify fresh: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "a@b.c" {
		t.Fatalf("claims not carried over: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "User" {
		t.Fatalf("roles not carried over: %v", claims.Roles)
	}
	if !claims.IssuedAt.Time.Equal(clock) {
		t.Fatalf("issued-at = %v, want %v", claims.IssuedAt.Time, clock)
	}
}

func TestRefreshRejectsInvalidToken(t *testing.T) {
	svc, _ := NewTokenService(testSecret)
	if _, _, err := svc.Refresh("garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRefreshRejectsResetToken(t *testing.T) {
	svc, _ := NewTokenService(testSecret)
	reset, _, err := svc.IssueReset("user-1")
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}
	if _, _, err := svc.Refresh(reset); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("reset token must not refresh into a bearer token, got %v", err)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                  "00:00:00",
		-5 * time.Second:                   "00:00:00",
		59 * time.Second:                   "00:00:59",
		time.Minute:                        "00:01:00",
		time.Hour + 2*time.Minute + 3*time.Second: "01:02:03",
		25 * time.Hour:                     "25:00:00",
	}
	for d, want := range cases {
		if got := FormatRemaining(d); got != want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", d, got, want)
		}
	}
}
