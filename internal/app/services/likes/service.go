// Package likes records the one-way like edges between users.
package likes

import (
	"context"
	"errors"

	"github.com/velora-dev/velora/internal/app/domain/like"
	"github.com/velora-dev/velora/internal/app/storage"
	apperrors "github.com/velora-dev/velora/internal/errors"
	"github.com/velora-dev/velora/pkg/logger"
)

// Service creates like edges.
type Service struct {
	users storage.UserStore
	likes storage.LikeStore
	log   *logger.Logger
}

// New constructs a likes service.
func New(users storage.UserStore, likes storage.LikeStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("likes")
	}
	return &Service{users: users, likes: likes, log: log}
}

// Like records that liker likes likee. Liking twice or liking yourself is
// rejected; the edge is never removed.
func (s *Service) Like(ctx context.Context, likerID, likeeID int64) error {
	if likerID == likeeID {
		return apperrors.Validation("you cannot like yourself")
	}

	if _, err := s.users.GetUser(ctx, likeeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return apperrors.OperationFailed("could not load user", err)
	}

	err := s.likes.CreateLike(ctx, like.Like{LikerID: likerID, LikeeID: likeeID})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return apperrors.Conflict("you already liked this user").
				WithDetail("like", "AlreadyLiked")
		}
		return apperrors.OperationFailed("could not save like", err)
	}

	s.log.WithField("liker_id", likerID).WithField("likee_id", likeeID).Info("like recorded")
	return nil
}
