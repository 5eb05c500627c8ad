// Package auth manages credentials, role assignments and bearer tokens.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/photo"
	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/storage"
	apperrors "github.com/velora-dev/velora/internal/errors"
	"github.com/velora-dev/velora/pkg/logger"
)

var knownRoles = map[string]bool{
	user.RoleMember:    true,
	user.RoleAdmin:     true,
	user.RoleModerator: true,
	user.RoleVIP:       true,
}

// Service registers users, authenticates them and administers roles.
type Service struct {
	users  storage.UserStore
	photos storage.PhotoStore
	tokens *TokenIssuer
	log    *logger.Logger
}

// New constructs an auth service. The photo store is only consulted when
// seeding.
func New(users storage.UserStore, photos storage.PhotoStore, tokens *TokenIssuer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{
		users:  users,
		photos: photos,
		tokens: tokens,
		log:    log,
	}
}

// Register creates a new user with the Member role. Usernames are stored
// lowercase and compared case-insensitively.
func (s *Service) Register(ctx context.Context, u user.User, password string) (user.User, error) {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	if u.Username == "" {
		return user.User{}, apperrors.Validation("username is required")
	}
	if len(password) < 4 || len(password) > 8 {
		return user.User{}, apperrors.Validation("password must be between 4 and 8 characters").
			WithDetail("password", "length out of range")
	}

	_, err := s.users.GetUserByUsername(ctx, u.Username)
	switch {
	case err == nil:
		return user.User{}, apperrors.Validation("username already taken").
			WithDetail("username", "DuplicateUsername")
	case !errors.Is(err, storage.ErrNotFound):
		return user.User{}, apperrors.OperationFailed("could not check username", err)
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return user.User{}, apperrors.OperationFailed("could not hash password", err)
	}
	u.PasswordHash = hash
	u.PasswordSalt = salt
	u.Roles = []string{user.RoleMember}

	now := time.Now().UTC()
	u.Created = now
	u.LastActive = now

	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, apperrors.Validation("username already taken").
				WithDetail("username", "DuplicateUsername")
		}
		return user.User{}, apperrors.OperationFailed("could not create user", err)
	}

	s.log.WithField("user_id", created.ID).WithField("username", created.Username).
		Info("user registered")
	return created, nil
}

// Login verifies the credentials and issues a bearer token. A bad username
// and a bad password yield the same error.
func (s *Service) Login(ctx context.Context, username, password string) (user.User, string, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, "", apperrors.Unauthenticated("invalid username or password")
		}
		return user.User{}, "", apperrors.OperationFailed("could not look up user", err)
	}
	if !verifyPassword(password, u.PasswordHash, u.PasswordSalt) {
		return user.User{}, "", apperrors.Unauthenticated("invalid username or password")
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return user.User{}, "", apperrors.OperationFailed("could not issue token", err)
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, token, nil
}

// EditRoles replaces a user's role set: missing roles are added, unselected
// ones removed.
func (s *Service) EditRoles(ctx context.Context, username string, roles []string) (user.User, error) {
	if len(roles) == 0 {
		return user.User{}, apperrors.Validation("at least one role is required")
	}
	seen := map[string]bool{}
	cleaned := make([]string, 0, len(roles))
	for _, role := range roles {
		if !knownRoles[role] {
			return user.User{}, apperrors.Validation("unknown role").WithDetail("role", role)
		}
		if !seen[role] {
			seen[role] = true
			cleaned = append(cleaned, role)
		}
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperrors.NotFound("user not found")
		}
		return user.User{}, apperrors.OperationFailed("could not look up user", err)
	}

	updated, err := s.users.UpdateRoles(ctx, u.ID, cleaned)
	if err != nil {
		return user.User{}, apperrors.OperationFailed("could not update roles", err)
	}

	s.log.WithField("user_id", u.ID).WithField("roles", strings.Join(cleaned, ",")).
		Info("roles updated")
	return updated, nil
}

// RolesOf returns the roles currently held by the named user.
func (s *Service) RolesOf(ctx context.Context, username string) ([]string, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.OperationFailed("could not look up user", err)
	}
	return u.Roles, nil
}

// UsersWithRoles lists every user with their roles, ordered by username.
func (s *Service) UsersWithRoles(ctx context.Context) ([]user.User, error) {
	users, err := s.users.ListUsersWithRoles(ctx)
	if err != nil {
		return nil, apperrors.OperationFailed("could not list users", err)
	}
	return users, nil
}

// SeedUser pairs a member profile with its initial photo.
type SeedUser struct {
	User     user.User
	Password string
	PhotoURL string
}

// Seed populates an empty store with member profiles and an admin account.
// Seeded photos are approved and main; the admin gets Admin and Moderator.
// It is a no-op when any user already exists.
func (s *Service) Seed(ctx context.Context, members []SeedUser, adminPassword string) error {
	existing, err := s.users.ListUsersWithRoles(ctx)
	if err != nil {
		return apperrors.OperationFailed("could not inspect store", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, m := range members {
		hash, salt, err := hashPassword(m.Password)
		if err != nil {
			return apperrors.OperationFailed("could not hash password", err)
		}
		u := m.User
		u.Username = strings.ToLower(u.Username)
		u.PasswordHash = hash
		u.PasswordSalt = salt
		u.Roles = []string{user.RoleMember}
		if u.Created.IsZero() {
			u.Created = time.Now().UTC()
		}
		if u.LastActive.IsZero() {
			u.LastActive = u.Created
		}

		created, err := s.users.CreateUser(ctx, u)
		if err != nil {
			return apperrors.OperationFailed("could not seed user", err)
		}
		if m.PhotoURL != "" && s.photos != nil {
			_, err := s.photos.CreatePhoto(ctx, photo.Photo{
				UserID:     created.ID,
				URL:        m.PhotoURL,
				IsMain:     true,
				IsApproved: true,
				DateAdded:  created.Created,
			})
			if err != nil {
				return apperrors.OperationFailed("could not seed photo", err)
			}
		}
	}

	hash, salt, err := hashPassword(adminPassword)
	if err != nil {
		return apperrors.OperationFailed("could not hash password", err)
	}
	admin := user.User{
		Username:     "admin",
		PasswordHash: hash,
		PasswordSalt: salt,
		KnownAs:      "Admin",
		Roles:        []string{user.RoleAdmin, user.RoleModerator},
		DateOfBirth:  time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		Created:      time.Now().UTC(),
		LastActive:   time.Now().UTC(),
	}
	if _, err := s.users.CreateUser(ctx, admin); err != nil {
		return apperrors.OperationFailed("could not seed admin", err)
	}

	s.log.WithField("members", len(members)).Info("store seeded")
	return nil
}
