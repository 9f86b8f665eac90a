// Package auth implements the authorization store: an in-memory set of
// SHA-256 digests of whitelisted connect keys, loaded from a line-oriented
// text file. The store never keeps a plaintext connect key in memory
// longer than it takes to hash it.
package auth

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/samber/oops"

	qerrors "github.com/blockrelay/filerelay/internal/errors"
	"github.com/blockrelay/filerelay/pkg/crypto"
)

// KeyHash is the SHA-256 digest of a connect key, the only form of a
// connect key this package ever stores.
type KeyHash [32]byte

// Store holds the set of connect-key digests authorized to complete a
// handshake. The zero value is not usable; construct with Load.
type Store struct {
	mu   sync.RWMutex
	path string
	set  map[KeyHash]struct{}
}

// Load reads path line by line, skipping blank lines and lines beginning
// with '#', hashing every remaining line as a connect key. Load fails
// closed: a missing or unreadable file is a ConfigError, never an empty
// store.
func Load(path string) (*Store, error) {
	set, err := loadSet(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, set: set}, nil
}

func loadSet(path string) (map[KeyHash]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qerrors.New(qerrors.ConfigError, "auth.Load",
			oops.Errorf("opening whitelist %q: %w", path, err))
	}
	defer f.Close()

	set := make(map[KeyHash]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[KeyHash(crypto.SHA256([]byte(line)))] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, qerrors.New(qerrors.ConfigError, "auth.Load",
			oops.Errorf("reading whitelist %q: %w", path, err))
	}
	return set, nil
}

// Contains reports whether hash is present in the authorized set.
func (s *Store) Contains(hash KeyHash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[hash]
	return ok
}

// Len returns the number of authorized connect keys currently loaded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}

// Add authorizes a new plaintext connect key: it is hashed, appended to
// the whitelist file if not already present, and mirrored into the
// in-memory set. Add is idempotent by hash.
func (s *Store) Add(plaintextKey string) error {
	line := strings.TrimSpace(plaintextKey)
	if line == "" || strings.HasPrefix(line, "#") {
		return qerrors.New(qerrors.PolicyError, "auth.Add", qerrors.ErrUnknownConnectKey)
	}
	hash := KeyHash(crypto.SHA256([]byte(line)))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.set[hash]; exists {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return qerrors.New(qerrors.ConfigError, "auth.Add",
			oops.Errorf("opening whitelist %q for append: %w", s.path, err))
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return qerrors.New(qerrors.ConfigError, "auth.Add",
			oops.Errorf("appending to whitelist %q: %w", s.path, err))
	}

	s.set[hash] = struct{}{}
	return nil
}

// Reload re-reads the whitelist file from disk and atomically swaps the
// in-memory set, so a hand-edited or externally rewritten whitelist takes
// effect without restarting the process. Existing sessions in flight are
// unaffected; only new handshakes see the new set.
func (s *Store) Reload() error {
	set, err := loadSet(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
	return nil
}
