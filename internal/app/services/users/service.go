// Package users serves member profiles and the filtered member listing.
package users

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

// Age bounds applied when a listing request names none. A request at exactly
// these defaults skips the birthdate filter entirely, so users without a
// plausible date of birth still appear.
const (
	DefaultMinAge = 18
	DefaultMaxAge = 99
)

// ListParams filters the member listing.
type ListParams struct {
	RequesterID int64
	Gender      string
	MinAge      int
	MaxAge      int
	Likers      bool
	Likees      bool
	OrderBy     string
	Page        storage.PageParams
}

// Summary is one row of the member listing.
type Summary struct {
	User     user.User
	PhotoURL string
}

// Detail is a full profile with its visible photos.
type Detail struct {
	User   user.User
	Photos []photo.Photo
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Introduction string
	LookingFor   string
	Interests    string
	City         string
	Country      string
}

// Viewer identifies who is looking, for photo visibility decisions.
type Viewer struct {
	UserID      int64
	CanModerate bool
}

// Service reads and updates member profiles.
type Service struct {
	users  storage.UserStore
	photos storage.PhotoStore
	log    *logger.Logger
}

// New constructs a users service.
func New(users storage.UserStore, photos storage.PhotoStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{users: users, photos: photos, log: log}
}

// List returns one page of members matching the filters. The requester is
// always excluded; an unspecified gender defaults to the opposite of the
// requester's.
func (s *Service) List(ctx context.Context, p ListParams) (storage.Page[Summary], error) {
	requester, err := s.users.GetUser(ctx, p.RequesterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Page[Summary]{}, apperrors.NotFound("user not found")
		}
		return storage.Page[Summary]{}, apperrors.OperationFailed("could not load requester", err)
	}

	q := storage.UserQuery{
		RequesterID: p.RequesterID,
		Gender:      p.Gender,
		Likers:      p.Likers,
		Likees:      p.Likees,
		Page:        p.Page.Normalize(),
	}
	if q.Gender == "" {
		q.Gender = oppositeGender(requester.Gender)
	}

	minAge, maxAge := p.MinAge, p.MaxAge
	if minAge == 0 {
		minAge = DefaultMinAge
	}
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	if minAge != DefaultMinAge || maxAge != DefaultMaxAge {
		q.MinAge = minAge
		q.MaxAge = maxAge
	}

	if strings.EqualFold(p.OrderBy, string(storage.OrderCreated)) {
		q.OrderBy = storage.OrderCreated
	} else {
		q.OrderBy = storage.OrderLastActive
	}

	page, err := s.users.ListUsers(ctx, q)
	if err != nil {
		return storage.Page[Summary]{}, apperrors.OperationFailed("could not list users", err)
	}

	viewer := Viewer{UserID: p.RequesterID, CanModerate: requester.HasRole(user.RoleModerator) || requester.HasRole(user.RoleAdmin)}
	summaries := make([]Summary, 0, len(page.Items))
	for _, u := range page.Items {
		summaries = append(summaries, Summary{
			User:     u,
			PhotoURL: s.mainPhotoURL(ctx, u.ID, viewer),
		})
	}

	return storage.Page[Summary]{
		Items:       summaries,
		CurrentPage: page.CurrentPage,
		PageSize:    page.PageSize,
		TotalCount:  page.TotalCount,
		TotalPages:  page.TotalPages,
	}, nil
}

// Get returns one profile. Unapproved photos are hidden unless the viewer
// owns the profile or can moderate.
func (s *Service) Get(ctx context.Context, id int64, viewer Viewer) (Detail, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Detail{}, apperrors.NotFound("user not found")
		}
		return Detail{}, apperrors.OperationFailed("could not load user", err)
	}

	approvedOnly := viewer.UserID != id && !viewer.CanModerate
	photos, err := s.photos.ListPhotos(ctx, id, approvedOnly)
	if err != nil {
		return Detail{}, apperrors.OperationFailed("could not load photos", err)
	}

	return Detail{User: u, Photos: photos}, nil
}

// Update applies the editable profile fields.
func (s *Service) Update(ctx context.Context, id int64, p ProfileUpdate) error {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return apperrors.OperationFailed("could not load user", err)
	}

	u.Introduction = p.Introduction
	u.LookingFor = p.LookingFor
	u.Interests = p.Interests
	u.City = p.City
	u.Country = p.Country

	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return apperrors.OperationFailed("could not update user", err)
	}

	s.log.WithField("user_id", id).Info("profile updated")
	return nil
}

// TouchLastActive refreshes the activity timestamp. Errors are returned for
// the caller to log; they should never fail a request.
func (s *Service) TouchLastActive(ctx context.Context, id int64) error {
	return s.users.TouchLastActive(ctx, id, time.Now().UTC())
}

func (s *Service) mainPhotoURL(ctx context.Context, userID int64, viewer Viewer) string {
	p, err := s.photos.GetMainPhoto(ctx, userID)
	if err != nil {
		return ""
	}
	if !p.IsApproved && viewer.UserID != userID && !viewer.CanModerate {
		return ""
	}
	return p.URL
}

func oppositeGender(gender string) string {
	switch strings.ToLower(gender) {
	case "male":
		return "female"
	case "female":
		return "male"
	default:
		return ""
	}
}
