package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/storage/memory"
	apperrors "github.com/velora-dev/velora/internal/errors"
)

func newTestService() *Service {
	store := memory.New()
	return New(store, store, NewTokenIssuer(tokenKey, time.Hour), nil)
}

func TestRegisterAssignsMemberRole(t *testing.T) {
	svc := newTestService()

	u, err := svc.Register(context.Background(), user.User{Username: "Lisa", KnownAs: "Lisa"}, "pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "lisa" {
		t.Fatalf("expected lowercased username, got %q", u.Username)
	}
	if len(u.Roles) != 1 || u.Roles[0] != user.RoleMember {
		t.Fatalf("expected member role, got %v", u.Roles)
	}
	if len(u.PasswordHash) == 0 || len(u.PasswordSalt) != 64 {
		t.Fatalf("credentials not derived: hash=%d salt=%d", len(u.PasswordHash), len(u.PasswordSalt))
	}
}

func TestRegisterRejectsDuplicateUsernameCaseInsensitive(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, user.User{Username: "lisa"}, "pass"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(ctx, user.User{Username: "LISA"}, "pass")
	if !errors.Is(err, apperrors.Validation("")) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestRegisterRejectsPasswordLength(t *testing.T) {
	svc := newTestService()

	for _, password := range []string{"abc", "ninechars"} {
		if _, err := svc.Register(context.Background(), user.User{Username: "lisa"}, password); err == nil {
			t.Fatalf("expected rejection for password %q", password)
		}
	}
}

func TestLoginIssuesTokenWithRoles(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, user.User{Username: "lisa"}, "pass"); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, token, err := svc.Login(ctx, "Lisa", "pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Username != "lisa" {
		t.Fatalf("unexpected user %q", u.Username)
	}

	claims, err := svc.tokens.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.UserID != u.ID {
		t.Fatalf("token user id %d, want %d", claims.UserID, u.ID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != user.RoleMember {
		t.Fatalf("token roles %v", claims.Roles)
	}
}

func TestLoginFailureIsUniform(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, user.User{Username: "lisa"}, "pass"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, unknownUser := svc.Login(ctx, "nobody", "pass")
	_, _, badPassword := svc.Login(ctx, "lisa", "wrong")

	for _, err := range []error{unknownUser, badPassword} {
		se := apperrors.AsServiceError(err)
		if se == nil || se.Code != apperrors.CodeUnauthenticated {
			t.Fatalf("expected unauthenticated, got %v", err)
		}
	}
	if unknownUser.Error() != badPassword.Error() {
		t.Fatal("login failures must be indistinguishable")
	}
}

func TestEditRolesReplacesSet(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, user.User{Username: "lisa"}, "pass"); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := svc.EditRoles(ctx, "lisa", []string{user.RoleModerator, user.RoleVIP})
	if err != nil {
		t.Fatalf("edit roles: %v", err)
	}
	if len(u.Roles) != 2 || !u.HasRole(user.RoleModerator) || !u.HasRole(user.RoleVIP) {
		t.Fatalf("roles not replaced: %v", u.Roles)
	}
	if u.HasRole(user.RoleMember) {
		t.Fatal("unselected role should be removed")
	}
}

func TestRolesOfReflectsEdits(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, user.User{Username: "lisa"}, "pass"); err != nil {
		t.Fatalf("register: %v", err)
	}

	roles, err := svc.RolesOf(ctx, "lisa")
	if err != nil {
		t.Fatalf("roles of: %v", err)
	}
	if len(roles) != 1 || roles[0] != user.RoleMember {
		t.Fatalf("unexpected roles: %v", roles)
	}

	if _, err := svc.EditRoles(ctx, "lisa", []string{user.RoleVIP}); err != nil {
		t.Fatalf("edit roles: %v", err)
	}
	roles, err = svc.RolesOf(ctx, "lisa")
	if err != nil {
		t.Fatalf("roles of: %v", err)
	}
	if len(roles) != 1 || roles[0] != user.RoleVIP {
		t.Fatalf("edit not reflected: %v", roles)
	}

	if _, err := svc.RolesOf(ctx, "nobody"); err == nil {
		t.Fatal("expected not found for unknown user")
	}
}

func TestEditRolesRejectsUnknownRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, user.User{Username: "lisa"}, "pass"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.EditRoles(ctx, "lisa", []string{"Superuser"}); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	members := []SeedUser{
		{User: user.User{Username: "lisa", Gender: "female", DateOfBirth: time.Date(1992, 3, 4, 0, 0, 0, 0, time.UTC)}, Password: "pass", PhotoURL: "https://img/lisa"},
	}
	if err := svc.Seed(ctx, members, "pass"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.Seed(ctx, members, "pass"); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	users, err := svc.UsersWithRoles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users after reseeding, got %d", len(users))
	}

	admin, err := svc.users.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if !admin.HasRole(user.RoleAdmin) || !admin.HasRole(user.RoleModerator) {
		t.Fatalf("admin roles %v", admin.Roles)
	}

	lisa, err := svc.users.GetUserByUsername(ctx, "lisa")
	if err != nil {
		t.Fatalf("get lisa: %v", err)
	}
	photos, err := svc.photos.ListPhotos(ctx, lisa.ID, true)
	if err != nil {
		t.Fatalf("list photos: %v", err)
	}
	if len(photos) != 1 || !photos[0].IsMain || !photos[0].IsApproved {
		t.Fatalf("seeded photo not approved main: %+v", photos)
	}
}
