package citation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
)

// Store is a content-addressed filesystem blob store for cited evidence.
// Blobs live at <dir>/<h[0:2]>/<h[2:4]>/<h> where h is the hex sha256 of
// the content, so a citation can be re-verified byte for byte long after
// the source page changed. It implements ports.CitationStore.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create citation dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Put stores content and returns its hash. When the ref already carries a
// hash it must match the content; a mismatch means the caller cited bytes
// it does not hold.
func (s *Store) Put(ref models.CitationRef, content []byte) (string, error) {
	hash := hashOf(content)
	if ref.ContentHash != "" && ref.ContentHash != hash {
		return "", domain.NewDomainError(domain.ErrCitationCorrupt, ref.SourceURI)
	}

	path := s.pathFor(hash)
	if _, err := os.Stat(path); err == nil {
		// content-addressed: identical bytes are already stored
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	// write-then-rename so readers never see a partial blob
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename blob: %w", err)
	}
	return hash, nil
}

// Get returns the stored content for a hash.
func (s *Store) Get(hash string) ([]byte, error) {
	content, err := os.ReadFile(s.pathFor(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewDomainError(domain.ErrCitationNotFound, hash)
		}
		return nil, err
	}
	if hashOf(content) != hash {
		return nil, domain.NewDomainError(domain.ErrCitationCorrupt, hash)
	}
	return content, nil
}

// VerifyHash reports whether the ref's content is stored and intact.
func (s *Store) VerifyHash(ref models.CitationRef) bool {
	if ref.ContentHash == "" {
		return false
	}
	_, err := s.Get(ref.ContentHash)
	return err == nil
}

func (s *Store) pathFor(hash string) string {
	if len(hash) < 4 {
		return filepath.Join(s.dir, "short", hash)
	}
	return filepath.Join(s.dir, hash[0:2], hash[2:4], hash)
}

func hashOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
