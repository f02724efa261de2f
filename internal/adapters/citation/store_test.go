package citation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
)

func TestPutAndGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("Go is an open source programming language.")
	hash, err := store.Put(models.CitationRef{SourceURI: "https://example.org/go"}, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected hex sha256, got %q", hash)
	}

	got, err := store.Get(hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: %q", got)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("same bytes")
	h1, err := store.Put(models.CitationRef{}, content)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := store.Put(models.CitationRef{}, content)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
}

func TestPutRejectsMismatchedHash(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ref := models.CitationRef{ContentHash: "deadbeef"}
	if _, err := store.Put(ref, []byte("content")); !errors.Is(err, domain.ErrCitationCorrupt) {
		t.Errorf("expected ErrCitationCorrupt, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.Get("0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, domain.ErrCitationNotFound) {
		t.Errorf("expected ErrCitationNotFound, got %v", err)
	}
}

func TestGetDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	hash, err := store.Put(models.CitationRef{}, []byte("original"))
	if err != nil {
		t.Fatal(err)
	}

	// tamper with the blob on disk
	path := filepath.Join(dir, hash[0:2], hash[2:4], hash)
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(hash); !errors.Is(err, domain.ErrCitationCorrupt) {
		t.Errorf("expected ErrCitationCorrupt, got %v", err)
	}
}

func TestVerifyHash(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	hash, err := store.Put(models.CitationRef{}, []byte("evidence"))
	if err != nil {
		t.Fatal(err)
	}

	if !store.VerifyHash(models.CitationRef{ContentHash: hash}) {
		t.Error("expected stored ref to verify")
	}
	if store.VerifyHash(models.CitationRef{ContentHash: "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"}) {
		t.Error("expected missing ref to fail")
	}
	if store.VerifyHash(models.CitationRef{}) {
		t.Error("expected empty hash to fail")
	}
}
