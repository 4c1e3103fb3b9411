package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Storage is the minimal key-value surface the session store persists through.
// The web app keeps it in memory (one browser session per process); the CLI
// uses a file so a sign-in survives across invocations until the TTL runs out.
type Storage interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// FileStorage keeps the key-value map as a JSON file. Reads and writes go
// through the file on every call; the session payload is four small fields,
// so there is nothing worth caching.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()[key]
}

func (s *FileStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.read()
	values[key] = value
	s.write(values)
}

func (s *FileStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.read()
	delete(values, key)
	s.write(values)
}

func (s *FileStorage) read() map[string]string {
	values := make(map[string]string)
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return values
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return make(map[string]string)
	}
	return values
}

func (s *FileStorage) write(values map[string]string) {
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o700)
	_ = os.WriteFile(s.path, raw, 0o600)
}
