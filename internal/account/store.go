package account

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// persistTimeout bounds a single snapshot write. Persistence runs detached
// from the caller's cancellation so a finished mutation is not lost.
const persistTimeout = 10 * time.Second

// Credential is a named account cookie plus usage metadata.
// Timestamps are unix seconds. Secret is the base64 cookie blob.
type Credential struct {
	Name        string `json:"name"`
	Secret      string `json:"secret"`
	Description string `json:"description"`
	LastUsedAt  int64  `json:"lastUsedAt"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// PublicCredential is a Credential without its secret, safe to list.
type PublicCredential struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LastUsedAt  int64  `json:"lastUsedAt"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(s *Store) { s.now = c }
}

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Store owns the credential set. The mutex covers the in-memory slice only;
// sink I/O happens on a copied snapshot after the lock is released.
type Store struct {
	sink Sink
	now  Clock
	log  *slog.Logger

	mu    sync.Mutex
	creds []Credential
	seq   map[string]uint64 // name → selection sequence, 0 = never selected
	tick  uint64
	gen   uint64 // generation of the latest snapshot taken

	wmu   sync.Mutex // serializes sink writes
	saved uint64     // generation of the latest snapshot written
}

// snapshot is a copy of the credential set tagged with its generation.
type snapshot struct {
	creds []Credential
	gen   uint64
}

// NewStore loads the snapshot from sink. A missing snapshot starts an empty
// store and writes it back; an unreadable one is an error.
func NewStore(ctx context.Context, sink Sink, opts ...Option) (*Store, error) {
	s := &Store{
		sink: sink,
		now:  time.Now,
		log:  slog.Default(),
		seq:  make(map[string]uint64),
	}
	for _, o := range opts {
		o(s)
	}

	creds, found, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.creds = creds
	if !found {
		s.persist(ctx, s.snapshot())
	}
	s.log.Info("account: store loaded", slog.Int("accounts", len(creds)))
	return s, nil
}

func (s *Store) load(ctx context.Context) ([]Credential, bool, error) {
	data, err := s.sink.Load(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("account: load snapshot: %w", err)
	}
	if len(data) == 0 {
		return []Credential{}, false, nil
	}
	var creds []Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, true, fmt.Errorf("account: parse snapshot: %w", err)
	}
	if creds == nil {
		creds = []Credential{}
	}
	return creds, true, nil
}

// Reload replaces the in-memory set with the sink's current snapshot.
// Selection history is kept for names that survive the reload.
func (s *Store) Reload(ctx context.Context) error {
	creds, _, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.creds = creds
	for name := range s.seq {
		if s.indexLocked(name) < 0 {
			delete(s.seq, name)
		}
	}
	s.mu.Unlock()
	s.log.Info("account: store reloaded", slog.Int("accounts", len(creds)))
	return nil
}

// Add inserts a new credential. The secret must decode.
func (s *Store) Add(ctx context.Context, name, secret, description string) error {
	if err := Validate(secret); err != nil {
		return err
	}

	now := s.now().Unix()
	s.mu.Lock()
	if s.indexLocked(name) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	s.creds = append(s.creds, Credential{
		Name:        name,
		Secret:      secret,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	return nil
}

// Update changes the secret and/or description of an existing credential.
// Nil fields are left as they are.
func (s *Store) Update(ctx context.Context, name string, secret, description *string) error {
	if secret != nil {
		if err := Validate(*secret); err != nil {
			return err
		}
	}

	now := s.now().Unix()
	s.mu.Lock()
	i := s.indexLocked(name)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if secret != nil {
		s.creds[i].Secret = *secret
	}
	if description != nil {
		s.creds[i].Description = *description
	}
	s.creds[i].UpdatedAt = now
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	return nil
}

// Delete removes a credential by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	i := s.indexLocked(name)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.creds = append(s.creds[:i], s.creds[i+1:]...)
	delete(s.seq, name)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	return nil
}

// Get returns a copy of the named credential.
func (s *Store) Get(name string) (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(name)
	if i < 0 {
		return Credential{}, false
	}
	return s.creds[i], true
}

// List returns every credential in insertion order, secrets stripped.
func (s *Store) List() []PublicCredential {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PublicCredential, len(s.creds))
	for i, c := range s.creds {
		out[i] = PublicCredential{
			Name:        c.Name,
			Description: c.Description,
			LastUsedAt:  c.LastUsedAt,
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.UpdatedAt,
		}
	}
	return out
}

// Len returns the number of stored credentials.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds)
}

// SelectForUse picks a credential and marks it used. A non-empty name picks
// that credential. An empty name picks the least recently used one; ties go
// to whichever this process selected longest ago, then to insertion order.
// It returns false when nothing matches.
func (s *Store) SelectForUse(ctx context.Context, name string) (string, bool) {
	s.mu.Lock()
	i := -1
	if name != "" {
		i = s.indexLocked(name)
	} else {
		for j := range s.creds {
			if i < 0 || s.lessLocked(j, i) {
				i = j
			}
		}
	}
	if i < 0 {
		s.mu.Unlock()
		return "", false
	}

	s.tick++
	c := &s.creds[i]
	c.LastUsedAt = s.now().Unix()
	s.seq[c.Name] = s.tick
	secret := c.Secret
	picked := c.Name
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug("account: selected", slog.String("name", picked))
	s.persist(ctx, snap)
	return secret, true
}

// lessLocked orders credentials for LRU selection.
func (s *Store) lessLocked(a, b int) bool {
	ca, cb := s.creds[a], s.creds[b]
	if ca.LastUsedAt != cb.LastUsedAt {
		return ca.LastUsedAt < cb.LastUsedAt
	}
	sa, sb := s.seq[ca.Name], s.seq[cb.Name]
	if sa != sb {
		return sa < sb
	}
	return a < b
}

func (s *Store) indexLocked(name string) int {
	for i := range s.creds {
		if s.creds[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() snapshot {
	out := make([]Credential, len(s.creds))
	copy(out, s.creds)
	s.gen++
	return snapshot{creds: out, gen: s.gen}
}

// persist writes snap to the sink. Writes are serialized and a snapshot
// older than one already written is dropped, so the sink never goes back
// in time. Failures are logged; memory stays authoritative until the next
// successful write.
func (s *Store) persist(ctx context.Context, snap snapshot) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if snap.gen <= s.saved {
		return
	}

	data, err := json.MarshalIndent(snap.creds, "", "  ")
	if err != nil {
		s.log.Error("account: marshal snapshot", slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.sink.Save(ctx, data); err != nil {
		s.log.Warn("account: save snapshot failed", slog.Any("error", err), slog.Int("accounts", len(snap.creds)))
		return
	}
	s.saved = snap.gen
}

// Close releases the sink.
func (s *Store) Close() error {
	return s.sink.Close()
}
