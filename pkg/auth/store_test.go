package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blockrelay/filerelay/pkg/crypto"
)

func writeWhitelist(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing whitelist fixture: %v", err)
	}
	return path
}

func TestLoadSkipsBlanksAndComments(t *testing.T) {
	path := writeWhitelist(t,
		"# back-office branch keys",
		"",
		"branch-001-key",
		"  branch-002-key  ",
		"# disabled: branch-003-key",
	)

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if !store.Contains(KeyHash(crypto.SHA256([]byte("branch-001-key")))) {
		t.Error("expected branch-001-key to be authorized")
	}
	if !store.Contains(KeyHash(crypto.SHA256([]byte("branch-002-key")))) {
		t.Error("expected branch-002-key to be authorized (whitespace trimmed)")
	}
	if store.Contains(KeyHash(crypto.SHA256([]byte("branch-003-key")))) {
		t.Error("commented-out key should not be authorized")
	}
}

func TestLoadFailsClosedOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "does-not-exist.txt")); err == nil {
		t.Error("expected error loading a missing whitelist file")
	}
}

func TestContainsUnknownKey(t *testing.T) {
	path := writeWhitelist(t, "known-key")
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Contains(KeyHash(crypto.SHA256([]byte("unknown-key")))) {
		t.Error("unknown key should not be authorized")
	}
}

func TestAddIsIdempotentAndPersists(t *testing.T) {
	path := writeWhitelist(t, "existing-key")
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := store.Add("new-key"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !store.Contains(KeyHash(crypto.SHA256([]byte("new-key")))) {
		t.Error("newly added key should be authorized immediately")
	}

	// Adding the same key again should not duplicate the file entry or error.
	if err := store.Add("new-key"); err != nil {
		t.Fatalf("Add (duplicate): %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Add: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("Len() after reload = %d, want 2", reloaded.Len())
	}
}

func TestAddRejectsBlankKey(t *testing.T) {
	path := writeWhitelist(t, "existing-key")
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Add("   "); err == nil {
		t.Error("expected error adding a blank connect key")
	}
}

func TestReloadPicksUpExternalEdits(t *testing.T) {
	path := writeWhitelist(t, "key-one")
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Contains(KeyHash(crypto.SHA256([]byte("key-two")))) {
		t.Fatal("key-two should not yet be authorized")
	}

	if err := os.WriteFile(path, []byte("key-one\nkey-two\n"), 0o600); err != nil {
		t.Fatalf("rewriting whitelist: %v", err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !store.Contains(KeyHash(crypto.SHA256([]byte("key-two")))) {
		t.Error("key-two should be authorized after Reload")
	}
}
