package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/funnel/internal/domain"
)

// fileDocument is the TOML layout of the preferences file.
type fileDocument struct {
	Users map[string]userPreferences `toml:"users"`
}

type userPreferences struct {
	CardFields []string `toml:"card_fields"`
}

// FileBackend stores selections in a TOML file keyed by user.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend constructs a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: strings.TrimSpace(path)}
}

// Path returns the preferences file path.
func (f *FileBackend) Path() string {
	return f.path
}

// LoadCardFields reads the selection for user. A missing file or user reports false.
func (f *FileBackend) LoadCardFields(_ context.Context, user string) ([]domain.FieldID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, false, err
	}
	prefs, ok := doc.Users[user]
	if !ok {
		return nil, false, nil
	}
	return domain.ParseFieldIDs(prefs.CardFields), true, nil
}

// SaveCardFields rewrites the file with user's selection replaced.
func (f *FileBackend) SaveCardFields(_ context.Context, user string, fields []domain.FieldID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	if doc.Users == nil {
		doc.Users = map[string]userPreferences{}
	}
	doc.Users[user] = userPreferences{CardFields: domain.FieldStrings(fields)}

	content, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return writeFileAtomic(f.path, content)
}

func (f *FileBackend) read() (fileDocument, error) {
	var doc fileDocument
	if f.path == "" {
		return doc, errors.New("preferences path is required")
	}
	content, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read preferences %q: %w", f.path, err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return doc, nil
	}
	if err := toml.Unmarshal(content, &doc); err != nil {
		return doc, fmt.Errorf("decode preferences %q: %w", f.path, err)
	}
	return doc, nil
}

// writeFileAtomic writes content to a temp file beside path and renames it into place.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp preferences: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close preferences: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}
