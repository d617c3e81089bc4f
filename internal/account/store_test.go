package account

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(unix int64) *fakeClock { return &fakeClock{now: time.Unix(unix, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, seed []Credential, clock *fakeClock) (*Store, *MemorySink) {
	t.Helper()
	var data []byte
	if seed != nil {
		var err error
		data, err = json.Marshal(seed)
		require.NoError(t, err)
	}
	sink := NewMemorySink(data)
	s, err := NewStore(context.Background(), sink, WithClock(clock.Now))
	require.NoError(t, err)
	return s, sink
}

func TestStore_AddGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, nil, newFakeClock(1000))

	require.NoError(t, s.Add(ctx, "a", b64("sessionid=1"), "first"))
	require.NoError(t, s.Add(ctx, "b", b64("sessionid=2"), ""))

	c, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, b64("sessionid=1"), c.Secret)
	assert.Equal(t, "first", c.Description)
	assert.Equal(t, int64(1000), c.CreatedAt)
	assert.Equal(t, int64(1000), c.UpdatedAt)
	assert.Zero(t, c.LastUsedAt)

	// Returned value is a copy.
	c.Secret = "mutated"
	again, _ := s.Get("a")
	assert.Equal(t, b64("sessionid=1"), again.Secret)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStore_AddDuplicate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, nil, newFakeClock(1000))

	require.NoError(t, s.Add(ctx, "a", b64("x=1"), ""))
	err := s.Add(ctx, "a", b64("x=2"), "other")
	require.ErrorIs(t, err, ErrAlreadyExists)

	c, _ := s.Get("a")
	assert.Equal(t, b64("x=1"), c.Secret)
	assert.Equal(t, 1, s.Len())
}

func TestStore_AddRejectsRawCookie(t *testing.T) {
	s, _ := newTestStore(t, nil, newFakeClock(1000))
	err := s.Add(context.Background(), "a", "sessionid=raw", "")
	require.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ListHidesSecret(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, nil, newFakeClock(1000))
	require.NoError(t, s.Add(ctx, "z", b64("k=v"), "zz"))
	require.NoError(t, s.Add(ctx, "a", b64("k=v"), "aa"))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "z", list[0].Name)
	assert.Equal(t, "a", list[1].Name)

	raw, err := json.Marshal(list)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), b64("k=v"))
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1000)
	s, _ := newTestStore(t, nil, clock)
	require.NoError(t, s.Add(ctx, "a", b64("k=1"), "old"))

	clock.Advance(time.Minute)
	desc := "new"
	require.NoError(t, s.Update(ctx, "a", nil, &desc))
	c, _ := s.Get("a")
	assert.Equal(t, "new", c.Description)
	assert.Equal(t, b64("k=1"), c.Secret)
	assert.Equal(t, int64(1060), c.UpdatedAt)

	secret := b64("k=2")
	require.NoError(t, s.Update(ctx, "a", &secret, nil))
	c, _ = s.Get("a")
	assert.Equal(t, secret, c.Secret)

	bad := "not base64!"
	require.ErrorIs(t, s.Update(ctx, "a", &bad, nil), ErrFormat)
	require.ErrorIs(t, s.Update(ctx, "missing", nil, &desc), ErrNotFound)
}

func TestStore_DeleteMissingKeepsCount(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, nil, newFakeClock(1000))
	require.NoError(t, s.Add(ctx, "a", b64("k=1"), ""))

	require.ErrorIs(t, s.Delete(ctx, "nope"), ErrNotFound)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_SelectLRUScenario(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1000)
	s, _ := newTestStore(t, []Credential{
		{Name: "a", Secret: "sa", LastUsedAt: 100},
		{Name: "b", Secret: "sb", LastUsedAt: 50},
	}, clock)

	secret, ok := s.SelectForUse(ctx, "")
	require.True(t, ok)
	assert.Equal(t, "sb", secret)
	b, _ := s.Get("b")
	assert.Greater(t, b.LastUsedAt, int64(100))

	secret, ok = s.SelectForUse(ctx, "")
	require.True(t, ok)
	assert.Equal(t, "sa", secret)
}

func TestStore_SelectFairnessWithFrozenClock(t *testing.T) {
	ctx := context.Background()
	seed := []Credential{
		{Name: "a", Secret: "sa"},
		{Name: "b", Secret: "sb"},
		{Name: "c", Secret: "sc"},
		{Name: "d", Secret: "sd"},
	}
	s, _ := newTestStore(t, seed, newFakeClock(5000))

	seen := map[string]bool{}
	for range seed {
		secret, ok := s.SelectForUse(ctx, "")
		require.True(t, ok)
		seen[secret] = true
	}
	assert.Len(t, seen, len(seed))
	for _, c := range s.List() {
		assert.Equal(t, int64(5000), c.LastUsedAt)
	}

	// The cycle repeats in the same order.
	secret, _ := s.SelectForUse(ctx, "")
	assert.Equal(t, "sa", secret)
}

func TestStore_SelectByName(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, []Credential{{Name: "a", Secret: "sa"}, {Name: "b", Secret: "sb"}}, newFakeClock(2000))

	secret, ok := s.SelectForUse(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, "sb", secret)
	b, _ := s.Get("b")
	assert.Equal(t, int64(2000), b.LastUsedAt)

	_, ok = s.SelectForUse(ctx, "zzz")
	assert.False(t, ok)
}

func TestStore_SelectEmpty(t *testing.T) {
	s, _ := newTestStore(t, nil, newFakeClock(1))
	_, ok := s.SelectForUse(context.Background(), "")
	assert.False(t, ok)
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	s, sink := newTestStore(t, nil, newFakeClock(1000))
	base := sink.Saves() // initial empty snapshot

	require.NoError(t, s.Add(ctx, "a", b64("k=1"), ""))
	s.SelectForUse(ctx, "")
	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, base+3, sink.Saves())

	data, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestStore_SaveFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	s, sink := newTestStore(t, nil, newFakeClock(1000))
	sink.FailSaves(errors.New("disk full"))

	require.NoError(t, s.Add(ctx, "a", b64("k=1"), ""))
	_, ok := s.Get("a")
	assert.True(t, ok)
}

func TestStore_CorruptSnapshot(t *testing.T) {
	_, err := NewStore(context.Background(), NewMemorySink([]byte("{not json")))
	require.Error(t, err)
}

func TestStore_ForwardReadable(t *testing.T) {
	sink := NewMemorySink([]byte(`[{"name":"a","secret":"s","extra":true}]`))
	s, err := NewStore(context.Background(), sink)
	require.NoError(t, err)
	c, ok := s.Get("a")
	require.True(t, ok)
	assert.Zero(t, c.CreatedAt)
}

func TestStore_Reload(t *testing.T) {
	ctx := context.Background()
	s, sink := newTestStore(t, []Credential{{Name: "a", Secret: "sa"}}, newFakeClock(10))

	require.NoError(t, sink.Save(ctx, []byte(`[{"name":"x","secret":"sx"},{"name":"y","secret":"sy"}]`)))
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestStore_ConcurrentSelect(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, []Credential{{Name: "a", Secret: "sa"}, {Name: "b", Secret: "sb"}}, newFakeClock(10))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := s.SelectForUse(ctx, "")
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, s.Len())
}

func TestStore_StaleSnapshotNotWritten(t *testing.T) {
	ctx := context.Background()
	s, sink := newTestStore(t, []Credential{{Name: "a", Secret: "sa"}}, newFakeClock(10))
	base := sink.Saves()

	older := s.snapshot()
	require.NoError(t, s.Delete(ctx, "a"))
	s.persist(ctx, older)

	assert.Equal(t, base+1, sink.Saves())
	data, err := sink.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}
