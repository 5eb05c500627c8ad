package imagestore

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Fake is an in-memory Store for tests.
type Fake struct {
	mu        sync.Mutex
	nextID    int
	hosted    map[string]bool
	UploadErr error
	// Destroyed records every public id passed to Destroy, in order.
	Destroyed []string
}

var _ Store = (*Fake)(nil)

// NewFake constructs an empty fake store.
func NewFake() *Fake {
	return &Fake{hosted: make(map[string]bool)}
}

func (f *Fake) Upload(_ context.Context, r io.Reader, _ string, _ Transform) (string, string, error) {
	if f.UploadErr != nil {
		return "", "", f.UploadErr
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	publicID := fmt.Sprintf("fake-%d", f.nextID)
	f.hosted[publicID] = true
	return "https://images.test/" + publicID, publicID, nil
}

func (f *Fake) Destroy(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hosted[publicID] {
		return fmt.Errorf("unknown public id %s", publicID)
	}
	delete(f.hosted, publicID)
	f.Destroyed = append(f.Destroyed, publicID)
	return nil
}
