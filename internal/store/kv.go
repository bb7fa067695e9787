package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage keys for the two persisted JSON blobs.
const (
	KeySettings    = "app-settings"
	KeyWeatherData = "weather-data"
)

// ErrNotFound is returned by KV.Load when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// KV is the durable key-value storage the store mirrors its persistable
// subset to. Records are opaque JSON blobs loaded wholesale at startup.
type KV interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

// FileKV stores each record as <dir>/<key>.json. Writes go through a temp
// file and rename so a crash mid-write never corrupts the previous record.
type FileKV struct {
	dir string
}

// NewFileKV creates the directory if needed and returns a FileKV over it.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Load reads the record for key, or ErrNotFound if it was never saved.
func (f *FileKV) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read record %s: %w", key, err)
	}
	return data, nil
}

// Save atomically replaces the record for key.
func (f *FileKV) Save(key string, data []byte) error {
	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", key, err)
	}
	if err := os.Rename(tmp, f.path(key)); err != nil {
		return fmt.Errorf("commit record %s: %w", key, err)
	}
	return nil
}

// MemoryKV is an in-process KV for tests.
type MemoryKV struct {
	records map[string][]byte
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{records: make(map[string][]byte)}
}

func (m *MemoryKV) Load(key string) ([]byte, error) {
	data, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *MemoryKV) Save(key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.records[key] = cp
	return nil
}
