// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/velora-dev/velora/internal/app/domain/like"
	"github.com/velora-dev/velora/internal/app/domain/message"
	"github.com/velora-dev/velora/internal/app/domain/photo"
	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/storage"
)

// Store implements the storage interfaces over a PostgreSQL handle.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.PhotoStore = (*Store)(nil)
var _ storage.LikeStore = (*Store)(nil)
var _ storage.MessageStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, username, password_hash, password_salt, gender, date_of_birth,
	known_as, introduction, looking_for, interests, city, country, created, last_active`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	if u.Created.IsZero() {
		u.Created = now
	}
	if u.LastActive.IsZero() {
		u.LastActive = now
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO users (username, password_hash, password_salt, gender, date_of_birth,
			known_as, introduction, looking_for, interests, city, country, created, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, u.Username, u.PasswordHash, u.PasswordSalt, u.Gender, u.DateOfBirth,
		u.KnownAs, u.Introduction, u.LookingFor, u.Interests, u.City, u.Country,
		u.Created, u.LastActive).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, storage.ErrDuplicate
		}
		return user.User{}, err
	}

	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_name) VALUES ($1, $2)
		`, u.ID, role); err != nil {
			return user.User{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	if err != nil {
		return user.User{}, mapNoRows(err)
	}
	if u.Roles, err = s.rolesOf(ctx, u.ID); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)
	`, username)
	if err != nil {
		return user.User{}, mapNoRows(err)
	}
	if u.Roles, err = s.rolesOf(ctx, u.ID); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET gender = $2, date_of_birth = $3, known_as = $4, introduction = $5,
			looking_for = $6, interests = $7, city = $8, country = $9
		WHERE id = $1
	`, u.ID, u.Gender, u.DateOfBirth, u.KnownAs, u.Introduction,
		u.LookingFor, u.Interests, u.City, u.Country)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) ListUsers(ctx context.Context, q storage.UserQuery) (storage.Page[user.User], error) {
	now := q.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	where := []string{"u.id <> :requester_id"}
	args := map[string]interface{}{
		"requester_id": q.RequesterID,
		"limit":        q.Page.Size,
		"offset":       q.Page.Offset(),
	}

	if q.Gender != "" {
		where = append(where, "lower(u.gender) = lower(:gender)")
		args["gender"] = q.Gender
	}
	if q.Likers {
		where = append(where, "u.id IN (SELECT liker_id FROM likes WHERE likee_id = :requester_id)")
	}
	if q.Likees {
		where = append(where, "u.id IN (SELECT likee_id FROM likes WHERE liker_id = :requester_id)")
	}
	if q.MinAge != 0 || q.MaxAge != 0 {
		minDOB, maxDOB := storage.AgeWindow(q.MinAge, q.MaxAge, now)
		where = append(where, "u.date_of_birth BETWEEN :min_dob AND :max_dob")
		args["min_dob"] = minDOB
		args["max_dob"] = maxDOB
	}

	orderBy := "u.last_active DESC, u.id ASC"
	if q.OrderBy == storage.OrderCreated {
		orderBy = "u.created DESC, u.id ASC"
	}

	countQuery := "SELECT count(*) FROM users u WHERE " + strings.Join(where, " AND ")
	var total int
	rows, err := s.db.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return storage.Page[user.User]{}, err
	}
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			rows.Close()
			return storage.Page[user.User]{}, err
		}
	}
	rows.Close()

	listQuery := fmt.Sprintf(`
		SELECT %s FROM users u
		WHERE %s
		ORDER BY %s
		LIMIT :limit OFFSET :offset
	`, userColumns, strings.Join(where, " AND "), orderBy)

	rows, err = s.db.NamedQueryContext(ctx, listQuery, args)
	if err != nil {
		return storage.Page[user.User]{}, err
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.StructScan(&u); err != nil {
			return storage.Page[user.User]{}, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return storage.Page[user.User]{}, err
	}

	return storage.NewPage(users, total, q.Page), nil
}

func (s *Store) ListUsersWithRoles(ctx context.Context) ([]user.User, error) {
	var users []user.User
	err := s.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+` FROM users ORDER BY lower(username) ASC
	`)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Roles, err = s.rolesOf(ctx, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Store) UpdateRoles(ctx context.Context, userID int64, roles []string) (user.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT true FROM users WHERE id = $1`, userID); err != nil {
		return user.User{}, mapNoRows(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return user.User{}, err
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_name) VALUES ($1, $2)
		`, userID, role); err != nil {
			return user.User{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) TouchLastActive(ctx context.Context, userID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_active = $2 WHERE id = $1
	`, userID, at.UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) rolesOf(ctx context.Context, userID int64) ([]string, error) {
	var roles []string
	err := s.db.SelectContext(ctx, &roles, `
		SELECT role_name FROM user_roles WHERE user_id = $1 ORDER BY role_name
	`, userID)
	return roles, err
}

// --- PhotoStore -------------------------------------------------------------

const photoColumns = `id, user_id, url, public_id, description, date_added, is_main, is_approved, version`

func (s *Store) CreatePhoto(ctx context.Context, p photo.Photo) (photo.Photo, error) {
	if p.DateAdded.IsZero() {
		p.DateAdded = time.Now().UTC()
	}
	p.Version = 1
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO photos (user_id, url, public_id, description, date_added, is_main, is_approved, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, p.UserID, p.URL, p.PublicID, p.Description, p.DateAdded, p.IsMain, p.IsApproved, p.Version).Scan(&p.ID)
	if err != nil {
		return photo.Photo{}, err
	}
	return p, nil
}

func (s *Store) GetPhoto(ctx context.Context, id int64) (photo.Photo, error) {
	var p photo.Photo
	err := s.db.GetContext(ctx, &p, `
		SELECT `+photoColumns+` FROM photos WHERE id = $1
	`, id)
	if err != nil {
		return photo.Photo{}, mapNoRows(err)
	}
	return p, nil
}

func (s *Store) GetMainPhoto(ctx context.Context, userID int64) (photo.Photo, error) {
	var p photo.Photo
	err := s.db.GetContext(ctx, &p, `
		SELECT `+photoColumns+` FROM photos WHERE user_id = $1 AND is_main
	`, userID)
	if err != nil {
		return photo.Photo{}, mapNoRows(err)
	}
	return p, nil
}

func (s *Store) ListPhotos(ctx context.Context, userID int64, approvedOnly bool) ([]photo.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE user_id = $1`
	if approvedOnly {
		query += ` AND is_approved`
	}
	query += ` ORDER BY id ASC`

	var photos []photo.Photo
	if err := s.db.SelectContext(ctx, &photos, query, userID); err != nil {
		return nil, err
	}
	return photos, nil
}

// SetMainPhoto flips the previous main photo off and the target on inside one
// transaction. The version check on the target detects a concurrent set-main
// and surfaces it as a retryable conflict instead of committing a second main
// photo.
func (s *Store) SetMainPhoto(ctx context.Context, userID, photoID, expectedVersion int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE photos SET is_main = false, version = version + 1
		WHERE user_id = $1 AND is_main AND id <> $2
	`, userID, photoID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE photos SET is_main = true, version = version + 1
		WHERE id = $1 AND user_id = $2 AND version = $3
	`, photoID, userID, expectedVersion)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Either the row vanished or another writer bumped the version.
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT true FROM photos WHERE id = $1 AND user_id = $2`, photoID, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return err
		}
		return storage.ErrConflict
	}

	return tx.Commit()
}

func (s *Store) ApprovePhoto(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE photos SET is_approved = true, version = version + 1 WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePhoto(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListUnapprovedPhotos(ctx context.Context) ([]photo.ForModeration, error) {
	var items []photo.ForModeration
	err := s.db.SelectContext(ctx, &items, `
		SELECT p.id, u.username, p.url, p.is_approved
		FROM photos p
		JOIN users u ON u.id = p.user_id
		WHERE NOT p.is_approved
		ORDER BY p.id ASC
	`)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- LikeStore --------------------------------------------------------------

func (s *Store) CreateLike(ctx context.Context, l like.Like) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO likes (liker_id, likee_id) VALUES ($1, $2)
	`, l.LikerID, l.LikeeID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) GetLike(ctx context.Context, likerID, likeeID int64) (like.Like, error) {
	var l like.Like
	err := s.db.GetContext(ctx, &l, `
		SELECT liker_id, likee_id FROM likes WHERE liker_id = $1 AND likee_id = $2
	`, likerID, likeeID)
	if err != nil {
		return like.Like{}, mapNoRows(err)
	}
	return l, nil
}

func (s *Store) LikerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT liker_id FROM likes WHERE likee_id = $1 ORDER BY liker_id
	`, userID)
	return ids, err
}

func (s *Store) LikeeIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT likee_id FROM likes WHERE liker_id = $1 ORDER BY likee_id
	`, userID)
	return ids, err
}

// --- MessageStore -----------------------------------------------------------

const messageColumns = `id, sender_id, recipient_id, content, is_read, date_read,
	message_sent, sender_deleted, recipient_deleted`

func (s *Store) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	if m.MessageSent.IsZero() {
		m.MessageSent = time.Now().UTC()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, content, is_read, date_read,
			message_sent, sender_deleted, recipient_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, m.SenderID, m.RecipientID, m.Content, m.IsRead, m.DateRead,
		m.MessageSent, m.SenderDeleted, m.RecipientDeleted).Scan(&m.ID)
	if err != nil {
		return message.Message{}, err
	}
	return m, nil
}

func (s *Store) GetMessage(ctx context.Context, id int64) (message.Message, error) {
	var m message.Message
	err := s.db.GetContext(ctx, &m, `
		SELECT `+messageColumns+` FROM messages WHERE id = $1
	`, id)
	if err != nil {
		return message.Message{}, mapNoRows(err)
	}
	return m, nil
}

func (s *Store) MarkRead(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = true, date_read = $2 WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetDeleted updates one party's flag and destroys the row in the same
// transaction once both flags are set, so two concurrent deletes cannot leave
// a doubly-deleted row behind.
func (s *Store) SetDeleted(ctx context.Context, id int64, bySender bool) (bool, error) {
	column := "recipient_deleted"
	if bySender {
		column = "sender_deleted"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE messages SET %s = true WHERE id = $1
	`, column), id)
	if err != nil {
		return false, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return false, storage.ErrNotFound
	}

	result, err = tx.ExecContext(ctx, `
		DELETE FROM messages WHERE id = $1 AND sender_deleted AND recipient_deleted
	`, id)
	if err != nil {
		return false, err
	}
	destroyed, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return destroyed > 0, nil
}

func (s *Store) ListMessages(ctx context.Context, q storage.MessageQuery) (storage.Page[message.Message], error) {
	var where string
	switch q.Container {
	case message.ContainerInbox:
		where = "recipient_id = $1 AND NOT recipient_deleted"
	case message.ContainerOutbox:
		where = "sender_id = $1 AND NOT sender_deleted"
	default:
		where = "recipient_id = $1 AND NOT recipient_deleted AND NOT is_read"
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `
		SELECT count(*) FROM messages WHERE `+where, q.UserID); err != nil {
		return storage.Page[message.Message]{}, err
	}

	var messages []message.Message
	err := s.db.SelectContext(ctx, &messages, `
		SELECT `+messageColumns+` FROM messages
		WHERE `+where+`
		ORDER BY message_sent DESC, id ASC
		LIMIT $2 OFFSET $3
	`, q.UserID, q.Page.Size, q.Page.Offset())
	if err != nil {
		return storage.Page[message.Message]{}, err
	}

	return storage.NewPage(messages, total, q.Page), nil
}

func (s *Store) Thread(ctx context.Context, userID, recipientID int64) ([]message.Message, error) {
	var messages []message.Message
	err := s.db.SelectContext(ctx, &messages, `
		SELECT `+messageColumns+` FROM messages
		WHERE (recipient_id = $1 AND sender_id = $2 AND NOT recipient_deleted)
		   OR (sender_id = $1 AND recipient_id = $2 AND NOT sender_deleted)
		ORDER BY message_sent DESC, id ASC
	`, userID, recipientID)
	if err != nil {
		return nil, err
	}
	return messages, nil
}
