package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/velora-dev/velora/internal/app/domain/like"
	"github.com/velora-dev/velora/internal/app/domain/message"
	"github.com/velora-dev/velora/internal/app/domain/photo"
	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestSetMainPhotoConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE photos SET is_main = false").
		WithArgs(int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Stale version: the guarded update touches no rows.
	mock.ExpectExec("UPDATE photos SET is_main = true").
		WithArgs(int64(3), int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT true FROM photos").
		WithArgs(int64(3), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))
	mock.ExpectRollback()

	err := store.SetMainPhoto(context.Background(), 7, 3, 1)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetMainPhotoMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE photos SET is_main = false").
		WithArgs(int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE photos SET is_main = true").
		WithArgs(int64(3), int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT true FROM photos").
		WithArgs(int64(3), int64(7)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.SetMainPhoto(context.Background(), 7, 3, 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetDeletedDestroysWhenBothFlagged(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE messages SET sender_deleted = true").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM messages").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	destroyed, err := store.SetDeleted(context.Background(), 9, true)
	if err != nil {
		t.Fatalf("set deleted: %v", err)
	}
	if !destroyed {
		t.Fatal("expected the message to be destroyed")
	}
}

func TestSetDeletedKeepsSingleFlag(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE messages SET recipient_deleted = true").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM messages").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	destroyed, err := store.SetDeleted(context.Background(), 9, false)
	if err != nil {
		t.Fatalf("set deleted: %v", err)
	}
	if destroyed {
		t.Fatal("message should survive a single-party delete")
	}
}

func TestCreateLikeDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO likes").
		WithArgs(int64(1), int64(2)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateLike(context.Background(), like.Like{LikerID: 1, LikeeID: 2})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMarkReadMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE messages SET is_read = true").
		WithArgs(int64(44), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkRead(context.Background(), 44, time.Now())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	dob := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	alice, err := store.CreateUser(ctx, user.User{
		Username: "alice", PasswordHash: []byte{1}, PasswordSalt: []byte{2},
		Gender: "female", DateOfBirth: dob, Roles: []string{user.RoleMember},
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	p, err := store.CreatePhoto(ctx, photo.Photo{UserID: alice.ID, URL: "https://img/1", IsMain: true})
	if err != nil {
		t.Fatalf("create photo: %v", err)
	}
	if p.Version != 1 {
		t.Fatalf("expected version 1, got %d", p.Version)
	}

	bob, err := store.CreateUser(ctx, user.User{
		Username: "bob", PasswordHash: []byte{1}, PasswordSalt: []byte{2},
		Gender: "male", DateOfBirth: dob, Roles: []string{user.RoleMember},
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	m, err := store.CreateMessage(ctx, message.Message{SenderID: alice.ID, RecipientID: bob.ID, Content: "hi"})
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	thread, err := store.Thread(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 1 || thread[0].ID != m.ID {
		t.Fatalf("unexpected thread %+v", thread)
	}
}
