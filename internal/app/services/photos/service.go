// Package photos manages profile photos and their moderation lifecycle.
package photos

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/photo"
	"github.com/velora-dev/velora/internal/app/imagestore"
	"github.com/velora-dev/velora/internal/app/storage"
	apperrors "github.com/velora-dev/velora/internal/errors"
	"github.com/velora-dev/velora/pkg/logger"
)

// Service uploads, promotes and removes photos.
type Service struct {
	users  storage.UserStore
	photos storage.PhotoStore
	images imagestore.Store
	log    *logger.Logger
}

// New constructs a photos service.
func New(users storage.UserStore, photos storage.PhotoStore, images imagestore.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("photos")
	}
	return &Service{users: users, photos: photos, images: images, log: log}
}

// Add uploads the image and records the photo. The first photo a user adds
// becomes their main photo; every upload starts unapproved.
func (s *Service) Add(ctx context.Context, userID int64, file io.Reader, filename, description string) (photo.Photo, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return photo.Photo{}, apperrors.NotFound("user not found")
		}
		return photo.Photo{}, apperrors.OperationFailed("could not load user", err)
	}

	url, publicID, err := s.images.Upload(ctx, file, filename, imagestore.ProfileTransform)
	if err != nil {
		return photo.Photo{}, apperrors.OperationFailed("could not upload image", err)
	}

	isMain := false
	if _, err := s.photos.GetMainPhoto(ctx, userID); errors.Is(err, storage.ErrNotFound) {
		isMain = true
	} else if err != nil {
		return photo.Photo{}, apperrors.OperationFailed("could not check main photo", err)
	}

	created, err := s.photos.CreatePhoto(ctx, photo.Photo{
		UserID:      userID,
		URL:         url,
		PublicID:    publicID,
		Description: description,
		DateAdded:   time.Now().UTC(),
		IsMain:      isMain,
		IsApproved:  false,
	})
	if err != nil {
		return photo.Photo{}, apperrors.OperationFailed("could not save photo", err)
	}

	s.log.WithField("photo_id", created.ID).WithField("user_id", userID).
		WithField("is_main", isMain).Info("photo added")
	return created, nil
}

// Get returns one of the user's photos.
func (s *Service) Get(ctx context.Context, userID, photoID int64) (photo.Photo, error) {
	p, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return photo.Photo{}, apperrors.NotFound("photo not found")
		}
		return photo.Photo{}, apperrors.OperationFailed("could not load photo", err)
	}
	if p.UserID != userID {
		return photo.Photo{}, apperrors.NotFound("photo not found")
	}
	return p, nil
}

// SetMain promotes an approved photo to main, demoting the previous one in
// the same commit. A concurrent promotion surfaces as Conflict.
func (s *Service) SetMain(ctx context.Context, userID, photoID int64) error {
	p, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("photo not found")
		}
		return apperrors.OperationFailed("could not load photo", err)
	}
	if p.UserID != userID {
		return apperrors.Forbidden("cannot modify another user's photo")
	}
	if p.IsMain {
		return apperrors.Validation("this is already the main photo")
	}
	if !p.IsApproved {
		return apperrors.Validation("photo must be approved first")
	}

	if err := s.photos.SetMainPhoto(ctx, userID, photoID, p.Version); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return apperrors.Conflict("photo was modified concurrently")
		case errors.Is(err, storage.ErrNotFound):
			return apperrors.NotFound("photo not found")
		}
		return apperrors.OperationFailed("could not set main photo", err)
	}

	s.log.WithField("photo_id", photoID).WithField("user_id", userID).Info("main photo set")
	return nil
}

// Delete removes a non-main photo, destroying the hosted image first when
// one exists.
func (s *Service) Delete(ctx context.Context, userID, photoID int64) error {
	p, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("photo not found")
		}
		return apperrors.OperationFailed("could not load photo", err)
	}
	if p.UserID != userID {
		return apperrors.Forbidden("cannot delete another user's photo")
	}
	if p.IsMain {
		return apperrors.Validation("cannot delete your main photo")
	}

	if p.PublicID != "" {
		if err := s.images.Destroy(ctx, p.PublicID); err != nil {
			return apperrors.OperationFailed("could not destroy hosted image", err)
		}
	}
	if err := s.photos.DeletePhoto(ctx, photoID); err != nil {
		return apperrors.OperationFailed("could not delete photo", err)
	}

	s.log.WithField("photo_id", photoID).WithField("user_id", userID).Info("photo deleted")
	return nil
}

// ForModeration lists photos awaiting approval with their owner's username.
func (s *Service) ForModeration(ctx context.Context) ([]photo.ForModeration, error) {
	items, err := s.photos.ListUnapprovedPhotos(ctx)
	if err != nil {
		return nil, apperrors.OperationFailed("could not list photos", err)
	}
	return items, nil
}

// Approve clears a photo for display.
func (s *Service) Approve(ctx context.Context, photoID int64) error {
	if err := s.photos.ApprovePhoto(ctx, photoID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("photo not found")
		}
		return apperrors.OperationFailed("could not approve photo", err)
	}
	s.log.WithField("photo_id", photoID).Info("photo approved")
	return nil
}

// Reject destroys a pending photo. The main photo cannot be rejected.
func (s *Service) Reject(ctx context.Context, photoID int64) error {
	p, err := s.photos.GetPhoto(ctx, photoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("photo not found")
		}
		return apperrors.OperationFailed("could not load photo", err)
	}
	if p.IsMain {
		return apperrors.Validation("cannot reject the main photo")
	}

	if p.PublicID != "" {
		if err := s.images.Destroy(ctx, p.PublicID); err != nil {
			return apperrors.OperationFailed("could not destroy hosted image", err)
		}
	}
	if err := s.photos.DeletePhoto(ctx, photoID); err != nil {
		return apperrors.OperationFailed("could not delete photo", err)
	}

	s.log.WithField("photo_id", photoID).Info("photo rejected")
	return nil
}
