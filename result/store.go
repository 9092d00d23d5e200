package result

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/poiesic/docroute/core"
)

// ArtifactStore reads result artifacts.
// Implementations report an absent object as *core.MissingArtifactError.
type ArtifactStore interface {
	Fetch(ctx context.Context, ref core.ObjectRef) ([]byte, error)
}

// FileStore serves artifacts from a local directory laid out as root/bucket/key.
// References that resolve outside the root are rejected with ErrOutsideRoot.
type FileStore struct {
	root string
}

var _ ArtifactStore = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Fetch reads the artifact at ref.
func (s *FileStore) Fetch(ctx context.Context, ref core.ObjectRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.Join(filepath.FromSlash(ref.Bucket), filepath.FromSlash(ref.Key))
	if !filepath.IsLocal(rel) {
		return nil, core.Permanent("fetch artifact", fmt.Errorf("%w: %s", ErrOutsideRoot, ref.URI()))
	}
	data, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &core.MissingArtifactError{Location: ref, Err: err}
		}
		return nil, err
	}
	return data, nil
}

// MemoryStore is an in-memory ArtifactStore, used for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[core.ObjectRef][]byte
}

var _ ArtifactStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[core.ObjectRef][]byte)}
}

// Put stores data at ref, replacing any previous object.
func (s *MemoryStore) Put(ref core.ObjectRef, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = append([]byte(nil), data...)
}

// Fetch returns a copy of the object at ref.
func (s *MemoryStore) Fetch(ctx context.Context, ref core.ObjectRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[ref]
	if !ok {
		return nil, &core.MissingArtifactError{Location: ref}
	}
	return append([]byte(nil), data...), nil
}
