package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"

	"github.com/KhylleVillasurda/Notequarry/models"
)

type memoryBlob struct {
	data     []byte
	revision int64
}

// MemoryBlobStore is an in-process [BlobStore]. It backs tests and serves as
// the reference semantics for the capability: revisions are monotonically
// increasing per blob, checksums are SHA-256 over the stored bytes.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string]*memoryBlob

	// FailPut, when set, makes the next Put return the error and leave the
	// store unchanged. Used to simulate interrupted uploads.
	FailPut error
}

// NewMemoryBlobStore returns an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string]*memoryBlob)}
}

// Put implements [BlobStore].
func (m *MemoryBlobStore) Put(_ context.Context, id string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPut != nil {
		err := m.FailPut
		m.FailPut = nil
		return "", err
	}

	b := m.blobs[id]
	if b == nil {
		b = &memoryBlob{}
		m.blobs[id] = b
	}
	b.data = append([]byte(nil), data...)
	b.revision++

	return strconv.FormatInt(b.revision, 10), nil
}

// Get implements [BlobStore].
func (m *MemoryBlobStore) Get(_ context.Context, id string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blobs[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), b.data...), strconv.FormatInt(b.revision, 10), nil
}

// List implements [BlobStore].
func (m *MemoryBlobStore) List(_ context.Context) ([]models.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]models.BlobInfo, 0, len(m.blobs))
	for id, b := range m.blobs {
		sum := sha256.Sum256(b.data)
		infos = append(infos, models.BlobInfo{
			ID:       id,
			Revision: strconv.FormatInt(b.revision, 10),
			Size:     int64(len(b.data)),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	return infos, nil
}

// Delete implements [BlobStore].
func (m *MemoryBlobStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, id)
	return nil
}

var _ BlobStore = (*MemoryBlobStore)(nil)
