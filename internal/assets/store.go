package assets

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RefPrefix is the public path prefix of managed asset references
const RefPrefix = "/uploads/"

// Store persists uploaded binary files under generated names
type Store interface {
	// Save writes data under a fresh name preserving filename's extension
	// and returns the asset reference
	Save(data []byte, filename string) (string, error)
	// Delete removes the file behind ref, best-effort; it reports whether
	// a file was actually removed
	Delete(ref string) bool
	// Exists reports whether ref resolves to a stored file
	Exists(ref string) bool
}

// Managed reports whether ref is an asset this store owns, as opposed to an
// external URL or a static placeholder
func Managed(ref string) bool {
	if !strings.HasPrefix(ref, RefPrefix) {
		return false
	}
	name := strings.TrimPrefix(ref, RefPrefix)
	return name != "" && name == path.Base(name)
}

// DiskStore is a Store backed by a local directory
type DiskStore struct {
	dir string
	log *logrus.Logger
}

// NewDiskStore creates the upload directory if needed and returns a store over it
func NewDiskStore(dir string, log *logrus.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, log: log}, nil
}

// Dir returns the directory files are stored in
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Save(data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save asset %s: %w", name, err)
	}
	return RefPrefix + name, nil
}

func (s *DiskStore) Delete(ref string) bool {
	p, ok := s.path(ref)
	if !ok {
		return false
	}
	if err := os.Remove(p); err != nil {
		if !os.IsNotExist(err) {
			s.log.Errorf("Failed to delete asset %s: %v", ref, err)
		}
		return false
	}
	return true
}

func (s *DiskStore) Exists(ref string) bool {
	p, ok := s.path(ref)
	if !ok {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// path maps a managed reference to its on-disk location, rejecting anything
// that could escape the upload directory
func (s *DiskStore) path(ref string) (string, bool) {
	if !Managed(ref) {
		return "", false
	}
	return filepath.Join(s.dir, strings.TrimPrefix(ref, RefPrefix)), true
}
