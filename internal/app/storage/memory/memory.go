package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/like"
	"github.com/velora-dev/velora/internal/app/domain/message"
	"github.com/velora-dev/velora/internal/app/domain/photo"
	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]user.User
	photos   map[int64]photo.Photo
	likes    map[[2]int64]like.Like
	messages map[int64]message.Message
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PhotoStore = (*Store)(nil)
var _ storage.LikeStore = (*Store)(nil)
var _ storage.MessageStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:   1,
		users:    make(map[int64]user.User),
		photos:   make(map[int64]photo.Photo),
		likes:    make(map[[2]int64]like.Like),
		messages: make(map[int64]message.Message),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return user.User{}, storage.ErrDuplicate
		}
	}

	u.ID = s.nextIDLocked()
	now := time.Now().UTC()
	if u.Created.IsZero() {
		u.Created = now
	}
	if u.LastActive.IsZero() {
		u.LastActive = now
	}
	u.Roles = cloneStrings(u.Roles)

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}

	// Identity and credentials are immutable through this path.
	u.Username = original.Username
	u.PasswordHash = original.PasswordHash
	u.PasswordSalt = original.PasswordSalt
	u.Roles = cloneStrings(original.Roles)
	u.Created = original.Created

	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) ListUsers(_ context.Context, q storage.UserQuery) (storage.Page[user.User], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := q.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var likerSet, likeeSet map[int64]struct{}
	if q.Likers {
		likerSet = make(map[int64]struct{})
		for pair := range s.likes {
			if pair[1] == q.RequesterID {
				likerSet[pair[0]] = struct{}{}
			}
		}
	}
	if q.Likees {
		likeeSet = make(map[int64]struct{})
		for pair := range s.likes {
			if pair[0] == q.RequesterID {
				likeeSet[pair[1]] = struct{}{}
			}
		}
	}

	var matched []user.User
	for _, u := range s.users {
		if u.ID == q.RequesterID {
			continue
		}
		if q.Gender != "" && !strings.EqualFold(u.Gender, q.Gender) {
			continue
		}
		if likerSet != nil {
			if _, ok := likerSet[u.ID]; !ok {
				continue
			}
		}
		if likeeSet != nil {
			if _, ok := likeeSet[u.ID]; !ok {
				continue
			}
		}
		if q.MinAge != 0 || q.MaxAge != 0 {
			minDOB, maxDOB := storage.AgeWindow(q.MinAge, q.MaxAge, now)
			if u.DateOfBirth.Before(minDOB) || u.DateOfBirth.After(maxDOB) {
				continue
			}
		}
		matched = append(matched, cloneUser(u))
	}

	// Ties on the sort key break by id ascending so repeated queries over an
	// unchanged snapshot return identical pages.
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.OrderBy {
		case storage.OrderCreated:
			if !a.Created.Equal(b.Created) {
				return a.Created.After(b.Created)
			}
		default:
			if !a.LastActive.Equal(b.LastActive) {
				return a.LastActive.After(b.LastActive)
			}
		}
		return a.ID < b.ID
	})

	return storage.SlicePage(matched, q.Page), nil
}

func (s *Store) ListUsersWithRoles(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, cloneUser(u))
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Username) < strings.ToLower(result[j].Username)
	})
	return result, nil
}

func (s *Store) UpdateRoles(_ context.Context, userID int64, roles []string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	u.Roles = cloneStrings(roles)
	s.users[userID] = u
	return cloneUser(u), nil
}

func (s *Store) TouchLastActive(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.LastActive = at.UTC()
	s.users[userID] = u
	return nil
}

// PhotoStore implementation ---------------------------------------------------

func (s *Store) CreatePhoto(_ context.Context, p photo.Photo) (photo.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.UserID]; !ok {
		return photo.Photo{}, storage.ErrNotFound
	}

	p.ID = s.nextIDLocked()
	if p.DateAdded.IsZero() {
		p.DateAdded = time.Now().UTC()
	}
	p.Version = 1
	s.photos[p.ID] = p
	return p, nil
}

func (s *Store) GetPhoto(_ context.Context, id int64) (photo.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.photos[id]
	if !ok {
		return photo.Photo{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetMainPhoto(_ context.Context, userID int64) (photo.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.photos {
		if p.UserID == userID && p.IsMain {
			return p, nil
		}
	}
	return photo.Photo{}, storage.ErrNotFound
}

func (s *Store) ListPhotos(_ context.Context, userID int64, approvedOnly bool) ([]photo.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []photo.Photo
	for _, p := range s.photos {
		if p.UserID != userID {
			continue
		}
		if approvedOnly && !p.IsApproved {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) SetMainPhoto(_ context.Context, userID, photoID, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.photos[photoID]
	if !ok || target.UserID != userID {
		return storage.ErrNotFound
	}
	if target.Version != expectedVersion {
		return storage.ErrConflict
	}

	for id, p := range s.photos {
		if p.UserID == userID && p.IsMain && id != photoID {
			p.IsMain = false
			p.Version++
			s.photos[id] = p
		}
	}
	target.IsMain = true
	target.Version++
	s.photos[photoID] = target
	return nil
}

func (s *Store) ApprovePhoto(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.photos[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.IsApproved = true
	p.Version++
	s.photos[id] = p
	return nil
}

func (s *Store) DeletePhoto(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.photos, id)
	return nil
}

func (s *Store) ListUnapprovedPhotos(_ context.Context) ([]photo.ForModeration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []photo.ForModeration
	for _, p := range s.photos {
		if p.IsApproved {
			continue
		}
		item := photo.ForModeration{ID: p.ID, URL: p.URL, IsApproved: p.IsApproved}
		if owner, ok := s.users[p.UserID]; ok {
			item.Username = owner.Username
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// LikeStore implementation ----------------------------------------------------

func (s *Store) CreateLike(_ context.Context, l like.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]int64{l.LikerID, l.LikeeID}
	if _, exists := s.likes[key]; exists {
		return storage.ErrDuplicate
	}
	s.likes[key] = l
	return nil
}

func (s *Store) GetLike(_ context.Context, likerID, likeeID int64) (like.Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.likes[[2]int64{likerID, likeeID}]
	if !ok {
		return like.Like{}, storage.ErrNotFound
	}
	return l, nil
}

func (s *Store) LikerIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for pair := range s.likes {
		if pair[1] == userID {
			ids = append(ids, pair[0])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) LikeeIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for pair := range s.likes {
		if pair[0] == userID {
			ids = append(ids, pair[1])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MessageStore implementation -------------------------------------------------

func (s *Store) CreateMessage(_ context.Context, m message.Message) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextIDLocked()
	if m.MessageSent.IsZero() {
		m.MessageSent = time.Now().UTC()
	}
	s.messages[m.ID] = m
	return m, nil
}

func (s *Store) GetMessage(_ context.Context, id int64) (message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return message.Message{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) MarkRead(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return storage.ErrNotFound
	}
	at = at.UTC()
	m.IsRead = true
	m.DateRead = &at
	s.messages[id] = m
	return nil
}

func (s *Store) SetDeleted(_ context.Context, id int64, bySender bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if bySender {
		m.SenderDeleted = true
	} else {
		m.RecipientDeleted = true
	}
	if m.SenderDeleted && m.RecipientDeleted {
		delete(s.messages, id)
		return true, nil
	}
	s.messages[id] = m
	return false, nil
}

func (s *Store) ListMessages(_ context.Context, q storage.MessageQuery) (storage.Page[message.Message], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []message.Message
	for _, m := range s.messages {
		switch q.Container {
		case message.ContainerInbox:
			if m.RecipientID != q.UserID || m.RecipientDeleted {
				continue
			}
		case message.ContainerOutbox:
			if m.SenderID != q.UserID || m.SenderDeleted {
				continue
			}
		default:
			if m.RecipientID != q.UserID || m.RecipientDeleted || m.IsRead {
				continue
			}
		}
		matched = append(matched, cloneMessage(m))
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.MessageSent.Equal(b.MessageSent) {
			return a.MessageSent.After(b.MessageSent)
		}
		return a.ID < b.ID
	})

	return storage.SlicePage(matched, q.Page), nil
}

func (s *Store) Thread(_ context.Context, userID, recipientID int64) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []message.Message
	for _, m := range s.messages {
		inbound := m.RecipientID == userID && m.SenderID == recipientID && !m.RecipientDeleted
		outbound := m.SenderID == userID && m.RecipientID == recipientID && !m.SenderDeleted
		if inbound || outbound {
			result = append(result, cloneMessage(m))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.MessageSent.Equal(b.MessageSent) {
			return a.MessageSent.After(b.MessageSent)
		}
		return a.ID < b.ID
	})
	return result, nil
}

// helpers ---------------------------------------------------------------------

func cloneUser(u user.User) user.User {
	u.Roles = cloneStrings(u.Roles)
	u.PasswordHash = cloneBytes(u.PasswordHash)
	u.PasswordSalt = cloneBytes(u.PasswordSalt)
	return u
}

func cloneMessage(m message.Message) message.Message {
	if m.DateRead != nil {
		t := *m.DateRead
		m.DateRead = &t
	}
	return m
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
