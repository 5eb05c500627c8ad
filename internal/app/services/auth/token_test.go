package auth

import (
	"testing"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/user"
)

var tokenKey = []byte("0123456789abcdef0123456789abcdef")

func TestIssueDecodeRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(tokenKey, time.Hour)

	token, err := issuer.Issue(user.User{
		ID:       42,
		Username: "lisa",
		Roles:    []string{user.RoleMember, user.RoleVIP},
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected user id 42, got %d", claims.UserID)
	}
	if claims.Username != "lisa" {
		t.Fatalf("expected username lisa, got %q", claims.Username)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != user.RoleMember || claims.Roles[1] != user.RoleVIP {
		t.Fatalf("roles not preserved: %v", claims.Roles)
	}
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	issuer := NewTokenIssuer(tokenKey, time.Hour)
	other := NewTokenIssuer([]byte("another-key-another-key-another!"), time.Hour)

	token, err := issuer.Issue(user.User{ID: 1, Username: "lisa"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Decode(token); err == nil {
		t.Fatal("expected decode to fail for a foreign key")
	}
}

func TestDecodeRejectsExpired(t *testing.T) {
	issuer := &TokenIssuer{key: tokenKey, ttl: -time.Minute}

	token, err := issuer.Issue(user.User{ID: 1, Username: "lisa"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Decode(token); err == nil {
		t.Fatal("expected decode to fail for an expired token")
	}
}
