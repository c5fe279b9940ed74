package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the credentials in a small JSON file, the stand-in for the
// device's local key-value store. Writes go through a temp file and rename
// so a crash mid-write leaves either the old pair or the new pair on disk,
// never a mix.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed store at the given path. The parent
// directory is created if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("read token store: %w", err)
	}

	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		// A corrupt store is treated as absent credentials; the user will
		// simply have to log in again.
		return Credentials{}, ErrNotFound
	}
	creds := Credentials{
		AccessToken:  kv[KeyAccessToken],
		RefreshToken: kv[KeyRefreshToken],
		UserID:       kv[KeyUserID],
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return Credentials{}, ErrNotFound
	}
	return creds, nil
}

func (s *FileStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv := map[string]string{
		KeyAccessToken:  creds.AccessToken,
		KeyRefreshToken: creds.RefreshToken,
		KeyUserID:       creds.UserID,
	}
	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	return s.writeAtomic(data)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear token store: %w", err)
	}
	return nil
}

// writeAtomic writes data to the store path via temp file + rename.
func (s *FileStore) writeAtomic(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokenstore-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
