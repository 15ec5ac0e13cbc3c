package group

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPairingTTL is how long an issued pairing code stays valid.
const DefaultPairingTTL = 10 * time.Minute

// pairingEntry is one outstanding code.
type pairingEntry struct {
	name    string
	root    bool
	expires time.Time
}

// PairingStore issues and verifies one-time codes that bind a chat to a
// new group. It is an explicit, injected store with entry expiry; it is
// owned by whoever registers groups, never ambient process state.
type PairingStore struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	codes map[string]pairingEntry
}

// NewPairingStore creates a store with the given code lifetime.
// A non-positive ttl uses DefaultPairingTTL.
func NewPairingStore(ttl time.Duration) *PairingStore {
	if ttl <= 0 {
		ttl = DefaultPairingTTL
	}
	return &PairingStore{
		ttl:   ttl,
		now:   time.Now,
		codes: make(map[string]pairingEntry),
	}
}

// TTL returns the configured code lifetime.
func (s *PairingStore) TTL() time.Duration {
	return s.ttl
}

// Issue creates a code binding a future chat to a group name. Issuing
// also prunes expired codes.
func (s *PairingStore) Issue(name string, root bool) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate pairing code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.codes[code] = pairingEntry{
		name:    name,
		root:    root,
		expires: s.now().Add(s.ttl),
	}
	return code, nil
}

// Verify consumes a code and returns the group name and root flag it
// was issued for. A code verifies at most once.
func (s *PairingStore) Verify(code string) (name string, root bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	entry, found := s.codes[code]
	if !found {
		return "", false, false
	}
	delete(s.codes, code)
	return entry.name, entry.root, true
}

// Pending returns the number of outstanding (unexpired) codes.
func (s *PairingStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.codes)
}

func (s *PairingStore) pruneLocked() {
	now := s.now()
	for code, entry := range s.codes {
		if now.After(entry.expires) {
			delete(s.codes, code)
		}
	}
}

// PendingFile is where CLI-issued codes wait for the gateway. The CLI
// appends to it; the gateway consumes it at startup.
const PendingFile = "pending_codes.json"

type pendingCode struct {
	Code    string    `json:"code"`
	Name    string    `json:"name"`
	Root    bool      `json:"root"`
	Expires time.Time `json:"expires"`
}

// IssueToFile generates a code and appends it to the pending file at
// path. This is the bootstrap path: it works while the gateway is not
// running, and the gateway seeds its store from the file on startup.
func IssueToFile(path, name string, root bool, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPairingTTL
	}
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate pairing code: %w", err)
	}

	var pending []pendingCode
	if data, err := os.ReadFile(path); err == nil {
		// A corrupt pending file is discarded, not fatal.
		_ = json.Unmarshal(data, &pending)
	}
	pending = append(pending, pendingCode{
		Code:    code,
		Name:    name,
		Root:    root,
		Expires: time.Now().Add(ttl),
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create pending code dir: %w", err)
	}
	data, err := json.MarshalIndent(pending, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal pending codes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write pending codes: %w", err)
	}
	return code, nil
}

// LoadPending seeds the store from the pending file and removes it.
// A missing file is not an error. Expired entries are dropped.
func (s *PairingStore) LoadPending(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read pending codes: %w", err)
	}

	var pending []pendingCode
	if err := json.Unmarshal(data, &pending); err != nil {
		return 0, fmt.Errorf("failed to parse pending codes: %w", err)
	}

	s.mu.Lock()
	loaded := 0
	now := s.now()
	for _, p := range pending {
		if now.After(p.Expires) {
			continue
		}
		s.codes[p.Code] = pairingEntry{
			name:    p.Name,
			root:    p.Root,
			expires: p.Expires,
		}
		loaded++
	}
	s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		return loaded, fmt.Errorf("failed to remove pending code file: %w", err)
	}
	return loaded, nil
}

// randomCode returns a short uppercase code like "K7QF-2MXN".
func randomCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 0, 9)
	for i, b := range buf {
		if i == 4 {
			out = append(out, '-')
		}
		out = append(out, alphabet[int(b)%len(alphabet)])
	}
	return string(out), nil
}
