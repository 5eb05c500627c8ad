package messages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/velora-dev/velora/internal/app/domain/message"
	"github.com/velora-dev/velora/internal/app/domain/user"
	"github.com/velora-dev/velora/internal/app/storage"
	"github.com/velora-dev/velora/internal/app/storage/memory"
	apperrors "github.com/velora-dev/velora/internal/errors"
)

type fixture struct {
	store *memory.Store
	svc   *Service
	lisa  int64
	bob   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	lisa, err := store.CreateUser(ctx, user.User{Username: "lisa", DateOfBirth: dob})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	bob, err := store.CreateUser(ctx, user.User{Username: "bob", DateOfBirth: dob})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return &fixture{store: store, svc: New(store, store, nil), lisa: lisa.ID, bob: bob.ID}
}

func TestCreateValidations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.lisa, f.lisa, "hi"); !errors.Is(err, apperrors.Validation("")) {
		t.Fatalf("self-message should be rejected, got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.lisa, f.bob, "  "); !errors.Is(err, apperrors.Validation("")) {
		t.Fatalf("empty content should be rejected, got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.lisa, 999, "hi"); !errors.Is(err, apperrors.NotFound("")) {
		t.Fatalf("unknown recipient should be rejected, got %v", err)
	}
}

func TestMarkReadRecipientOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.lisa, f.bob, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.MarkRead(ctx, f.lisa, m.ID); !errors.Is(err, apperrors.Forbidden("")) {
		t.Fatalf("sender must not mark read, got %v", err)
	}

	if err := f.svc.MarkRead(ctx, f.bob, m.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, err := f.store.GetMessage(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsRead || got.DateRead == nil {
		t.Fatalf("message not stamped read: %+v", got)
	}
}

func TestMutualDeleteDestroysMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.lisa, f.bob, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.Delete(ctx, f.lisa, m.ID); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	// The record survives the first delete, hidden from the sender only.
	if _, err := f.svc.Get(ctx, f.lisa, m.ID); !errors.Is(err, apperrors.NotFound("")) {
		t.Fatalf("sender should no longer see the message, got %v", err)
	}
	if _, err := f.svc.Get(ctx, f.bob, m.ID); err != nil {
		t.Fatalf("recipient should still see the message: %v", err)
	}

	if err := f.svc.Delete(ctx, f.bob, m.ID); err != nil {
		t.Fatalf("recipient delete: %v", err)
	}
	if _, err := f.store.GetMessage(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("record should be destroyed, got %v", err)
	}
}

func TestDeleteRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, f.lisa, f.bob, "hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.Delete(ctx, 999, m.ID); !errors.Is(err, apperrors.Forbidden("")) {
		t.Fatalf("stranger delete should be forbidden, got %v", err)
	}
}

func TestContainersAndThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.lisa, f.bob, "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := f.svc.Create(ctx, f.bob, f.lisa, "second")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.MarkRead(ctx, f.lisa, second.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	inbox, err := f.svc.List(ctx, f.bob, message.ContainerInbox, storage.PageParams{})
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if inbox.TotalCount != 1 || inbox.Items[0].ID != first.ID {
		t.Fatalf("bob inbox: %+v", inbox.Items)
	}

	outbox, err := f.svc.List(ctx, f.bob, message.ContainerOutbox, storage.PageParams{})
	if err != nil {
		t.Fatalf("outbox: %v", err)
	}
	if outbox.TotalCount != 1 || outbox.Items[0].ID != second.ID {
		t.Fatalf("bob outbox: %+v", outbox.Items)
	}

	// Unread is the default container; lisa read her one message already.
	unread, err := f.svc.List(ctx, f.lisa, message.ContainerUnread, storage.PageParams{})
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread.TotalCount != 0 {
		t.Fatalf("lisa unread: %+v", unread.Items)
	}

	thread, err := f.svc.Thread(ctx, f.lisa, f.bob)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 2 {
		t.Fatalf("thread length %d", len(thread))
	}

	// Deleting hides the thread message for that party only.
	if err := f.svc.Delete(ctx, f.lisa, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	thread, err = f.svc.Thread(ctx, f.lisa, f.bob)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 1 || thread[0].ID != second.ID {
		t.Fatalf("lisa thread after delete: %+v", thread)
	}
	bobThread, err := f.svc.Thread(ctx, f.bob, f.lisa)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(bobThread) != 2 {
		t.Fatalf("bob thread after lisa's delete: %+v", bobThread)
	}
}
