// Package messages implements direct messaging between members.
package messages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/message"
	"github.com/velora-dev/velora/internal/app/storage"
	apperrors "github.com/velora-dev/velora/internal/errors"
	"github.com/velora-dev/velora/pkg/logger"
)

// Service sends, reads and deletes messages.
type Service struct {
	users    storage.UserStore
	messages storage.MessageStore
	log      *logger.Logger
}

// New constructs a messages service.
func New(users storage.UserStore, messages storage.MessageStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("messages")
	}
	return &Service{users: users, messages: messages, log: log}
}

// Create sends a message after verifying the recipient exists.
func (s *Service) Create(ctx context.Context, senderID, recipientID int64, content string) (message.Message, error) {
	if senderID == recipientID {
		return message.Message{}, apperrors.Validation("you cannot message yourself")
	}
	if strings.TrimSpace(content) == "" {
		return message.Message{}, apperrors.Validation("content is required")
	}

	if _, err := s.users.GetUser(ctx, recipientID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return message.Message{}, apperrors.NotFound("recipient not found")
		}
		return message.Message{}, apperrors.OperationFailed("could not load recipient", err)
	}

	m, err := s.messages.CreateMessage(ctx, message.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		MessageSent: time.Now().UTC(),
	})
	if err != nil {
		return message.Message{}, apperrors.OperationFailed("could not save message", err)
	}

	s.log.WithField("message_id", m.ID).WithField("sender_id", senderID).
		WithField("recipient_id", recipientID).Info("message sent")
	return m, nil
}

// Get returns a message the user participates in. A message the user already
// deleted is gone from their point of view.
func (s *Service) Get(ctx context.Context, userID, id int64) (message.Message, error) {
	m, err := s.messages.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return message.Message{}, apperrors.NotFound("message not found")
		}
		return message.Message{}, apperrors.OperationFailed("could not load message", err)
	}
	switch userID {
	case m.SenderID:
		if m.SenderDeleted {
			return message.Message{}, apperrors.NotFound("message not found")
		}
	case m.RecipientID:
		if m.RecipientDeleted {
			return message.Message{}, apperrors.NotFound("message not found")
		}
	default:
		return message.Message{}, apperrors.Forbidden("not a participant in this message")
	}
	return m, nil
}

// MarkRead stamps the message read. Only the recipient may do so.
func (s *Service) MarkRead(ctx context.Context, userID, id int64) error {
	m, err := s.messages.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("message not found")
		}
		return apperrors.OperationFailed("could not load message", err)
	}
	if m.RecipientID != userID {
		return apperrors.Forbidden("only the recipient can mark a message read")
	}
	if m.IsRead {
		return nil
	}
	if err := s.messages.MarkRead(ctx, id, time.Now().UTC()); err != nil {
		return apperrors.OperationFailed("could not mark message read", err)
	}
	return nil
}

// Delete hides the message for the acting party. Once both parties have
// deleted it, the record is destroyed.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	m, err := s.messages.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("message not found")
		}
		return apperrors.OperationFailed("could not load message", err)
	}
	if userID != m.SenderID && userID != m.RecipientID {
		return apperrors.Forbidden("not a participant in this message")
	}

	destroyed, err := s.messages.SetDeleted(ctx, id, userID == m.SenderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("message not found")
		}
		return apperrors.OperationFailed("could not delete message", err)
	}

	entry := s.log.WithField("message_id", id).WithField("user_id", userID)
	if destroyed {
		entry.Info("message destroyed")
	} else {
		entry.Info("message deleted for one party")
	}
	return nil
}

// List returns one page of a user's mailbox.
func (s *Service) List(ctx context.Context, userID int64, container message.Container, page storage.PageParams) (storage.Page[message.Message], error) {
	result, err := s.messages.ListMessages(ctx, storage.MessageQuery{
		UserID:    userID,
		Container: container,
		Page:      page.Normalize(),
	})
	if err != nil {
		return storage.Page[message.Message]{}, apperrors.OperationFailed("could not list messages", err)
	}
	return result, nil
}

// Thread returns the conversation between two users, newest first, honoring
// each party's delete flags.
func (s *Service) Thread(ctx context.Context, userID, recipientID int64) ([]message.Message, error) {
	thread, err := s.messages.Thread(ctx, userID, recipientID)
	if err != nil {
		return nil, apperrors.OperationFailed("could not load thread", err)
	}
	return thread, nil
}
