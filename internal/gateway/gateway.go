// Package gateway exposes the Douyin request engine and the account store
// over REST and MCP.
package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anatolykoptev/go_douyin/internal/account"
	"github.com/anatolykoptev/go_douyin/internal/engine"
	"github.com/anatolykoptev/go_douyin/internal/toolutil"
)

// Gateway hands out engines per account and owns the admin service.
type Gateway struct {
	store *account.Store
	opts  engine.Options
	cache *engine.Cache
	log   *slog.Logger
	admin *Admin

	def *engine.Request

	mu    sync.Mutex
	fixed map[string]fixedEngine
}

type fixedEngine struct {
	secret string
	req    *engine.Request
}

// New builds a Gateway. opts carries the shared signer, transport and
// limiter; Store, Secret and Rotate are set per engine. cache may be nil.
func New(store *account.Store, opts engine.Options, cache *engine.Cache) *Gateway {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	def := opts
	def.Store, def.Rotate, def.Secret = store, true, ""

	return &Gateway{
		store: store,
		opts:  opts,
		cache: cache,
		log:   log,
		admin: NewAdmin(store, engine.NewValidator(opts)),
		def:   engine.New(def),
		fixed: make(map[string]fixedEngine),
	}
}

// Admin returns the account management service.
func (g *Gateway) Admin() *Admin { return g.admin }

// Default returns the shared rotating engine.
func (g *Gateway) Default() *engine.Request { return g.def }

// EngineFor returns the engine serving name. An empty or unknown name gets
// the rotating default. A known name is marked used in the store, so pinned
// traffic counts against rotation, and gets an engine pinned to its secret,
// rebuilt when the secret changes.
func (g *Gateway) EngineFor(ctx context.Context, name string) *engine.Request {
	if name == "" {
		return g.def
	}
	secret, ok := g.store.SelectForUse(ctx, name)
	if !ok {
		g.log.Warn("unknown account, using rotation", slog.String("account", name))
		g.forget(name)
		return g.def
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if fe, ok := g.fixed[name]; ok && fe.secret == secret {
		return fe.req
	}
	o := g.opts
	o.Store, o.Rotate, o.Secret = nil, false, secret
	req := engine.New(o)
	g.fixed[name] = fixedEngine{secret: secret, req: req}
	g.log.Debug("account engine created", slog.String("account", name))
	return req
}

// forget drops the cached engine for name.
func (g *Gateway) forget(name string) {
	g.mu.Lock()
	delete(g.fixed, name)
	g.mu.Unlock()
}

// Fetch runs one upstream JSON call for account. A non-nil body makes it a
// form POST. Cacheable GETs go through the response cache keyed by uri,
// account and the sorted params.
func (g *Gateway) Fetch(ctx context.Context, name, uri string, params, body map[string]string, live, cacheable bool) map[string]any {
	var key string
	if cacheable && body == nil && g.cache != nil {
		key = engine.CacheKey(uri, name, engine.CanonicalQuery(params))
		if out, ok := toolutil.CacheLoadJSON[map[string]any](ctx, g.cache, key); ok {
			return out
		}
	}

	out := g.EngineFor(ctx, name).FetchJSON(ctx, uri, params, body, live)
	if key != "" && len(out) > 0 {
		toolutil.CacheStoreJSON(ctx, g.cache, key, out)
	}
	return out
}
