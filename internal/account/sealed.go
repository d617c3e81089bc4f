package account

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// SealedSink encrypts snapshots with age before they reach the inner sink.
// A plaintext JSON snapshot found on load is passed through, so an existing
// store can be sealed in place: the next save encrypts it.
type SealedSink struct {
	inner     Sink
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewSealedSink wraps inner with the given x25519 identity.
func NewSealedSink(inner Sink, identity *age.X25519Identity) *SealedSink {
	return &SealedSink{inner: inner, identity: identity, recipient: identity.Recipient()}
}

// GenerateIdentity creates a fresh x25519 identity.
func GenerateIdentity() (*age.X25519Identity, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("account: generate age identity: %w", err)
	}
	return id, nil
}

// LoadIdentity reads an age identity file (as written by age-keygen).
// Comment lines are ignored; the first x25519 identity is used.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("account: open identity: %w", err)
	}
	defer f.Close()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("account: parse identity %s: %w", path, err)
	}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, errors.New("account: identity file has no x25519 key")
}

func (s *SealedSink) Load(ctx context.Context) ([]byte, error) {
	data, err := s.inner.Load(ctx)
	if err != nil || len(data) == 0 {
		return data, err
	}
	if strings.HasPrefix(string(bytes.TrimSpace(data)), "[") {
		return data, nil
	}

	r, err := age.Decrypt(bytes.NewReader(data), s.identity)
	if err != nil {
		return nil, fmt.Errorf("account: decrypt snapshot: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("account: read decrypted snapshot: %w", err)
	}
	return plain, nil
}

func (s *SealedSink) Save(ctx context.Context, data []byte) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return fmt.Errorf("account: encrypt snapshot: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("account: encrypt snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("account: finalize snapshot: %w", err)
	}
	return s.inner.Save(ctx, buf.Bytes())
}

func (s *SealedSink) Close() error { return s.inner.Close() }

// Unwrap returns the inner sink.
func (s *SealedSink) Unwrap() Sink { return s.inner }
