// Package storage defines the persistence contracts for the application's
// four aggregates. The core never embeds SQL; stores implement these
// interfaces over whatever engine backs them.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/like"
	"github.com/velora-dev/velora/internal/app/domain/message"
	"github.com/velora-dev/velora/internal/app/domain/photo"
	"github.com/velora-dev/velora/internal/app/domain/user"
)

// Sentinel errors every store maps engine-specific failures onto.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict reports an optimistic-concurrency collision; the caller may
	// retry.
	ErrConflict = errors.New("concurrent modification")
)

// UserOrder enumerates the supported sort keys for user listings.
type UserOrder string

const (
	OrderLastActive UserOrder = "lastActive"
	OrderCreated    UserOrder = "created"
)

// UserQuery describes a filtered, sorted, paged view over users. Filters
// compose conjunctively. The requesting user is always excluded.
type UserQuery struct {
	RequesterID int64
	Gender      string
	MinAge      int
	MaxAge      int
	// Likers restricts to users who have liked the requester; Likees to users
	// the requester has liked.
	Likers  bool
	Likees  bool
	OrderBy UserOrder
	Page    PageParams
	// Now anchors the age-to-birthdate window; zero means time.Now.
	Now time.Time
}

// MessageQuery describes a paged mailbox view for one user.
type MessageQuery struct {
	UserID    int64
	Container message.Container
	Page      PageParams
}

// UserStore persists identities, their credentials and role assignments.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	// GetUserByUsername matches case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	ListUsers(ctx context.Context, q UserQuery) (Page[user.User], error)
	// ListUsersWithRoles returns every user ordered by username ascending.
	ListUsersWithRoles(ctx context.Context) ([]user.User, error)
	UpdateRoles(ctx context.Context, userID int64, roles []string) (user.User, error)
	// TouchLastActive refreshes the activity timestamp; callers treat failure
	// as non-fatal.
	TouchLastActive(ctx context.Context, userID int64, at time.Time) error
}

// PhotoStore persists photos and the main-photo transition.
type PhotoStore interface {
	CreatePhoto(ctx context.Context, p photo.Photo) (photo.Photo, error)
	GetPhoto(ctx context.Context, id int64) (photo.Photo, error)
	GetMainPhoto(ctx context.Context, userID int64) (photo.Photo, error)
	// ListPhotos returns a user's photos; approvedOnly hides pending ones.
	ListPhotos(ctx context.Context, userID int64, approvedOnly bool) ([]photo.Photo, error)
	// SetMainPhoto atomically clears the previous main flag and sets the new
	// one in a single commit. expectedVersion guards the target row; a
	// mismatch yields ErrConflict.
	SetMainPhoto(ctx context.Context, userID, photoID, expectedVersion int64) error
	ApprovePhoto(ctx context.Context, id int64) error
	DeletePhoto(ctx context.Context, id int64) error
	ListUnapprovedPhotos(ctx context.Context) ([]photo.ForModeration, error)
}

// LikeStore persists the directed like edges.
type LikeStore interface {
	// CreateLike inserts the edge; a second insert for the same ordered pair
	// yields ErrDuplicate.
	CreateLike(ctx context.Context, l like.Like) error
	GetLike(ctx context.Context, likerID, likeeID int64) (like.Like, error)
	// LikerIDs returns ids of users who have liked userID.
	LikerIDs(ctx context.Context, userID int64) ([]int64, error)
	// LikeeIDs returns ids of users whom userID has liked.
	LikeeIDs(ctx context.Context, userID int64) ([]int64, error)
}

// MessageStore persists direct messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, m message.Message) (message.Message, error)
	GetMessage(ctx context.Context, id int64) (message.Message, error)
	// MarkRead sets the read flag and timestamp.
	MarkRead(ctx context.Context, id int64, at time.Time) error
	// SetDeleted records one party's delete flag and, when both flags are
	// set, destroys the record in the same commit. It reports whether the
	// record was destroyed.
	SetDeleted(ctx context.Context, id int64, bySender bool) (destroyed bool, err error)
	ListMessages(ctx context.Context, q MessageQuery) (Page[message.Message], error)
	// Thread returns the two-way conversation, newest first, honoring each
	// party's delete flag.
	Thread(ctx context.Context, userID, recipientID int64) ([]message.Message, error)
}
