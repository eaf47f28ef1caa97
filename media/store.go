// Package media persists uploaded food photos and hands back opaque references.
package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"foodlog"
)

// Ref is an opaque pointer to stored media (absolute path or URL).
type Ref string

// Store persists binary content. Implementations must be safe for concurrent
// use and must never return a Ref for a partially written object.
type Store interface {
	Store(ctx context.Context, data []byte, ext string) (Ref, error)
}

// NewName returns a collision-free object name: a random UUID plus the
// sanitized extension.
func NewName(ext string) string {
	return uuid.NewString() + SanitizeExt(ext)
}

// SanitizeExt normalizes a client-supplied extension to ".xyz" form. Anything
// that is not short and alphanumeric is dropped.
func SanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" || len(ext) > 8 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + ext
}

func validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: media is empty", foodlog.ErrValidation)
	}
	return nil
}

// MemStore keeps media in memory. It is meant for tests and local runs.
type MemStore struct {
	mu      sync.Mutex
	objects map[Ref][]byte
	err     error
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[Ref][]byte)}
}

// NewMemStoreWithError returns a store whose writes always fail with err.
func NewMemStoreWithError(err error) *MemStore {
	return &MemStore{objects: make(map[Ref][]byte), err: err}
}

func (m *MemStore) Store(ctx context.Context, data []byte, ext string) (Ref, error) {
	if err := validate(data); err != nil {
		return "", err
	}
	if m.err != nil {
		return "", fmt.Errorf("%w: %w", foodlog.ErrStorage, m.err)
	}

	ref := Ref("mem://" + NewName(ext))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[ref] = append([]byte(nil), data...)
	return ref, nil
}

// Get returns a copy of the stored object.
func (m *MemStore) Get(ref Ref) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[ref]
	return append([]byte(nil), b...), ok
}

// Len reports how many objects were stored.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
