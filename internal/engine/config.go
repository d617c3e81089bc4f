package engine

import (
	"log/slog"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	UserAgent      string
	SignerURL      string // empty = requests go out without a_bogus
	FetchTimeout   time.Duration
	ConnectTimeout time.Duration
	MaxConns       int
	MaxIdleConns   int
	RetryBaseDelay time.Duration

	UpstreamRPS   float64
	UpstreamBurst int

	StealthTransport bool   // go-stealth instead of net/http
	WebshareAPIKey   string // proxy pool for the stealth transport

	RedisURL             string
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
}

// Runtime is the set of process-wide collaborators built from Config and
// shared by every Request.
type Runtime struct {
	Config    Config
	Signer    Signer
	Transport Transport
	Limiter   *Limiter
	Cache     *Cache
}

// Init builds the shared collaborators. A stealth transport that fails to
// start falls back to the pooled one.
func Init(c Config) *Runtime {
	rt := &Runtime{Config: c}

	if c.SignerURL != "" {
		rt.Signer = NewHTTPSigner(c.SignerURL)
		slog.Info("signer: using sidecar", slog.String("url", c.SignerURL))
	} else {
		rt.Signer = UnsignedSigner
		slog.Warn("signer: SIGNER_URL not set, requests are unsigned")
	}

	if c.StealthTransport {
		timeoutSec := int(c.FetchTimeout / time.Second)
		if timeoutSec <= 0 {
			timeoutSec = 30
		}
		st, err := NewStealthTransport(timeoutSec, c.WebshareAPIKey)
		if err != nil {
			slog.Error("stealth client init failed", slog.Any("error", err))
		} else {
			rt.Transport = st
			slog.Info("stealth browser client initialized")
		}
	}
	if rt.Transport == nil {
		rt.Transport = NewPooledTransport(TransportConfig{
			Timeout:        c.FetchTimeout,
			ConnectTimeout: c.ConnectTimeout,
			MaxConns:       c.MaxConns,
			MaxIdleConns:   c.MaxIdleConns,
		})
	}

	rt.Limiter = NewLimiter(c.UpstreamRPS, c.UpstreamBurst, 0)
	rt.Cache = NewCache(CacheConfig{
		RedisURL:        c.RedisURL,
		TTL:             c.CacheTTL,
		MaxEntries:      c.CacheMaxEntries,
		CleanupInterval: c.CacheCleanupInterval,
	})
	return rt
}

// Options returns Request options wired to the shared collaborators.
func (rt *Runtime) Options() Options {
	return Options{
		UserAgent:      rt.Config.UserAgent,
		Signer:         rt.Signer,
		Transport:      rt.Transport,
		Limiter:        rt.Limiter,
		RetryBaseDelay: rt.Config.RetryBaseDelay,
	}
}

// Close releases the cache.
func (rt *Runtime) Close() error {
	return rt.Cache.Close()
}
