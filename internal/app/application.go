// Package app wires stores, collaborators and services together.
package app

import (
	"fmt"

	"github.com/velora-dev/velora/internal/app/imagestore"
	"github.com/velora-dev/velora/internal/app/services/auth"
	"github.com/velora-dev/velora/internal/app/services/likes"
	"github.com/velora-dev/velora/internal/app/services/messages"
	"github.com/velora-dev/velora/internal/app/services/photos"
	"github.com/velora-dev/velora/internal/app/services/users"
	"github.com/velora-dev/velora/internal/app/storage"
	"github.com/velora-dev/velora/internal/app/storage/memory"
	"github.com/velora-dev/velora/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Photos   storage.PhotoStore
	Likes    storage.LikeStore
	Messages storage.MessageStore
}

// Application ties the domain services together.
type Application struct {
	log *logger.Logger

	Tokens   *auth.TokenIssuer
	Auth     *auth.Service
	Users    *users.Service
	Photos   *photos.Service
	Likes    *likes.Service
	Messages *messages.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, images imagestore.Store, tokens *auth.TokenIssuer, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Photos == nil {
		stores.Photos = mem
	}
	if stores.Likes == nil {
		stores.Likes = mem
	}
	if stores.Messages == nil {
		stores.Messages = mem
	}
	if images == nil {
		log.Warn("no image store configured; uploads go to the in-memory fake")
		images = imagestore.NewFake()
	}

	return &Application{
		log:      log,
		Tokens:   tokens,
		Auth:     auth.New(stores.Users, stores.Photos, tokens, log),
		Users:    users.New(stores.Users, stores.Photos, log),
		Photos:   photos.New(stores.Users, stores.Photos, images, log),
		Likes:    likes.New(stores.Users, stores.Likes, log),
		Messages: messages.New(stores.Users, stores.Messages, log),
	}, nil
}
