package store

import "sync"

// Backend holds the serialized user document.
// Load returns (nil, nil) when nothing has been stored yet.
// Save replaces the whole document; a failed Save must leave the previous one readable.
type Backend interface {
	Load() ([]byte, error)
	Save(doc []byte) error
}

// MemoryBackend keeps the document in memory
type MemoryBackend struct {
	mu  sync.RWMutex
	doc []byte

	// FailSave, when set, is returned by Save instead of storing
	FailSave error
}

// NewMemoryBackend returns a backend seeded with doc (may be nil)
func NewMemoryBackend(doc []byte) *MemoryBackend {
	return &MemoryBackend{doc: doc}
}

func (m *MemoryBackend) Load() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc == nil {
		return nil, nil
	}
	return append([]byte(nil), m.doc...), nil
}

func (m *MemoryBackend) Save(doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.doc = append([]byte(nil), doc...)
	return nil
}

// Bytes returns the last saved document
func (m *MemoryBackend) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.doc...)
}
