package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_douyin/internal/account"
)

var (
	defaultTransport     Transport
	defaultTransportOnce sync.Once
)

// DefaultTransport is the process-wide pooled transport with default limits.
func DefaultTransport() Transport {
	defaultTransportOnce.Do(func() {
		defaultTransport = NewPooledTransport(TransportConfig{})
	})
	return defaultTransport
}

// Options configures a Request.
type Options struct {
	// Secret pins the Request to one base64 cookie. It wins over Rotate.
	Secret string
	// Rotate selects a fresh least-recently-used account for every fetch.
	// Without it (and without Secret) one account is picked on first use
	// and kept for the life of the Request.
	Rotate bool

	UserAgent      string
	Store          *account.Store // nil: requests without Secret go out unauthenticated
	Signer         Signer         // nil: UnsignedSigner
	Transport      Transport      // nil: DefaultTransport()
	Limiter        *Limiter       // nil: no pacing
	RetryBaseDelay time.Duration  // 0: one second
	Logger         *slog.Logger
}

// Request issues signed calls against the upstream web API on behalf of
// one account (or a rotation over all of them). It is safe for concurrent use.
type Request struct {
	secret    string
	rotate    bool
	store     *account.Store
	signer    Signer
	transport Transport
	limiter   *Limiter
	log       *slog.Logger
	prof      profile

	fetchPolicy retryPolicy
	webidPolicy retryPolicy
	sleep       sleepFunc

	mu            sync.Mutex
	cookies       map[string]string // cached for non-rotating Requests
	cookiesLoaded bool
	referer       string

	webidMu sync.Mutex
	webid   string
}

// callState is what one public fetch carries through its attempts.
type callState struct {
	id      string
	cookies map[string]string
	nested  bool // sub-fetch on behalf of a parent call; never rotates
}

// New builds a Request.
func New(o Options) *Request {
	r := &Request{
		secret:      o.Secret,
		rotate:      o.Rotate && o.Secret == "",
		store:       o.Store,
		signer:      o.Signer,
		transport:   o.Transport,
		limiter:     o.Limiter,
		log:         o.Logger,
		prof:        newProfile(o.UserAgent),
		fetchPolicy: fetchPolicy,
		webidPolicy: webidPolicy,
		sleep:       sleepCtx,
	}
	if r.signer == nil {
		r.signer = UnsignedSigner
	}
	if r.transport == nil {
		r.transport = DefaultTransport()
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if o.RetryBaseDelay > 0 {
		r.fetchPolicy.BaseDelay = o.RetryBaseDelay
	}
	r.referer = r.prof.headers["referer"]
	return r
}

// UserAgent returns the User-Agent this Request presents.
func (r *Request) UserAgent() string { return r.prof.userAgent }

// Rotating reports whether every fetch picks a fresh account.
func (r *Request) Rotating() bool { return r.rotate }

// newCall starts a public fetch. A rotating Request selects its account here,
// once per call.
func (r *Request) newCall(ctx context.Context) *callState {
	cs := &callState{id: uuid.NewString()}
	cs.cookies = r.resolveCookies(ctx)
	return cs
}

func (r *Request) resolveCookies(ctx context.Context) map[string]string {
	if r.rotate {
		metrics.Rotations.Add(1)
		return r.selectCookies(ctx)
	}

	r.mu.Lock()
	if r.cookiesLoaded {
		c := r.cookies
		r.mu.Unlock()
		return c
	}
	r.mu.Unlock()

	var c map[string]string
	if r.secret != "" {
		c = r.decode(r.secret)
	} else {
		c = r.selectCookies(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cookiesLoaded {
		r.cookies = c
		r.cookiesLoaded = true
	}
	return r.cookies
}

func (r *Request) selectCookies(ctx context.Context) map[string]string {
	if r.store == nil {
		return map[string]string{}
	}
	secret, ok := r.store.SelectForUse(ctx, "")
	if !ok {
		r.log.Debug("no accounts configured, sending unauthenticated")
		return map[string]string{}
	}
	return r.decode(secret)
}

func (r *Request) decode(secret string) map[string]string {
	c, err := account.Decode(secret)
	if err != nil {
		r.log.Warn("stored cookie does not decode, sending unauthenticated", slog.Any("error", err))
		return map[string]string{}
	}
	return c
}

// Resolve picks an account through store (by name, or least recently used
// when name is empty) and returns its decoded cookies.
func Resolve(ctx context.Context, store *account.Store, name string) (map[string]string, bool) {
	if store == nil {
		return nil, false
	}
	secret, ok := store.SelectForUse(ctx, name)
	if !ok {
		return nil, false
	}
	c, err := account.Decode(secret)
	if err != nil {
		return nil, false
	}
	return c, true
}

// FetchJSON calls uri and returns the decoded JSON object. Every failure
// (exhausted retries, signer error, rejected request) yields an empty map.
// body != nil sends a form POST; otherwise live selects the live host.
func (r *Request) FetchJSON(ctx context.Context, uri string, params, body map[string]string, live bool) map[string]any {
	out, err := r.FetchJSONResult(ctx, uri, params, body, live)
	if err != nil {
		return map[string]any{}
	}
	return out
}

// FetchJSONResult is FetchJSON with the failure exposed as a *FetchError.
func (r *Request) FetchJSONResult(ctx context.Context, uri string, params, body map[string]string, live bool) (map[string]any, error) {
	metrics.FetchJSON.Add(1)
	cs := r.newCall(ctx)
	log := r.log.With(slog.String("call_id", cs.id), slog.String("uri", uri))

	q := r.prof.buildParams(params, cs.cookies)
	q["webid"] = r.webID(ctx, cs)

	query := CanonicalQuery(q)
	sig, err := sign(ctx, r.signer, uri, query, r.prof.userAgent)
	if err != nil {
		metrics.SignerErrors.Add(1)
		metrics.Failures.Add(1)
		log.Error("sign failed", slog.Any("error", err))
		return nil, &FetchError{Kind: FailSigner, URI: uri, Err: &SignerError{URI: uri, Err: err}}
	}
	if sig != "" {
		query += "&a_bogus=" + quote(sig)
	}

	headers := r.headersFor(uri, q)
	out := &Outbound{Method: http.MethodGet, Headers: headers, Cookies: cs.cookies}
	switch {
	case body != nil:
		form := url.Values{}
		for k, v := range body {
			form.Set(k, v)
		}
		out.Method = http.MethodPost
		out.URL = Host + uri + "?" + query
		out.Body = []byte(form.Encode())
		headers["Content-Type"] = "application/x-www-form-urlencoded"
		headers["X-Secsdk-Csrf-Token"] = ""
	case live:
		out.URL = LiveHost + uri + "?" + query
	default:
		out.URL = Host + uri + "?" + query
	}

	var status int
	data, st := runRetry(ctx, r.fetchPolicy, r.sleep, log, func(n int) (map[string]any, error) {
		in, err := r.attempt(ctx, out)
		if err != nil {
			log.Warn("json request error", slog.Int("attempt", n), slog.Any("error", err))
			return nil, err
		}
		status = in.Status
		if err := checkInbound(in); err != nil {
			log.Warn("json request rejected", slog.Int("attempt", n), slog.Int("status", in.Status))
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(in.Body, &m); err != nil || m == nil {
			log.Warn("json decode failed", slog.Int("attempt", n), slog.String("body", preview(string(in.Body))))
			return nil, fmt.Errorf("%w: %s", errUndecodable, preview(string(in.Body)))
		}
		return m, nil
	})
	if st.Phase == phaseSucceeded {
		return data, nil
	}
	return nil, r.fail(log, uri, status, st)
}

// FetchHTML GETs a page with the Request's cookies and returns its body,
// or "" when every attempt failed.
func (r *Request) FetchHTML(ctx context.Context, pageURL string) string {
	out, err := r.FetchHTMLResult(ctx, pageURL)
	if err != nil {
		return ""
	}
	return out
}

// FetchHTMLResult is FetchHTML with the failure exposed as a *FetchError.
func (r *Request) FetchHTMLResult(ctx context.Context, pageURL string) (string, error) {
	metrics.FetchHTML.Add(1)
	return r.fetchHTML(ctx, r.newCall(ctx), pageURL, r.fetchPolicy)
}

func (r *Request) fetchHTML(ctx context.Context, cs *callState, pageURL string, p retryPolicy) (string, error) {
	log := r.log.With(slog.String("call_id", cs.id), slog.String("url", pageURL), slog.Bool("nested", cs.nested))

	headers := maps.Clone(r.prof.headers)
	headers["sec-fetch-dest"] = "document"
	r.mu.Lock()
	headers["referer"] = r.referer
	r.mu.Unlock()
	out := &Outbound{Method: http.MethodGet, URL: pageURL, Headers: headers, Cookies: cs.cookies}

	var status int
	page, st := runRetry(ctx, p, r.sleep, log, func(n int) (string, error) {
		in, err := r.attempt(ctx, out)
		if err != nil {
			log.Warn("html request error", slog.Int("attempt", n), slog.Any("error", err))
			return "", err
		}
		status = in.Status
		if err := checkInbound(in); err != nil {
			log.Warn("html request rejected", slog.Int("attempt", n), slog.Int("status", in.Status))
			return "", err
		}
		return string(in.Body), nil
	})
	if st.Phase == phaseSucceeded {
		return page, nil
	}
	return "", r.fail(log, pageURL, status, st)
}

// attempt sends one request through the limiter and transport.
func (r *Request) attempt(ctx context.Context, out *Outbound) (*Inbound, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	metrics.Attempts.Add(1)
	in, err := r.transport.Do(ctx, out)
	if err != nil {
		return nil, err
	}
	if in.Status == http.StatusTooManyRequests {
		metrics.RateLimited.Add(1)
		r.limiter.RecordRateLimited(in.RetryAfter)
	}
	return in, nil
}

// checkInbound applies the upstream's success contract: 200 with a body.
func checkInbound(in *Inbound) error {
	if in.Status != http.StatusOK {
		return &StatusError{Status: in.Status}
	}
	if len(in.Body) == 0 {
		return ErrEmptyBody
	}
	return nil
}

func (r *Request) fail(log *slog.Logger, target string, status int, st retryState) error {
	metrics.Failures.Add(1)
	kind := FailTransient
	switch {
	case st.Phase == phaseFailed && isCanceled(st.Err):
		kind = FailCanceled
	case st.Phase == phaseFailed:
		kind = FailPermanent
	case isUpstreamRejection(st.Err):
		kind = FailUpstream
	}
	log.Error("request failed", slog.String("state", st.Phase.String()), slog.Int("attempts", st.Attempt),
		slog.Int("status", status), slog.Any("error", st.Err))
	return &FetchError{Kind: kind, URI: target, Status: status, Attempts: st.Attempt, Err: st.Err}
}

// headersFor returns a private copy of the headers for uri, moving the
// Request's referer when the routing table has an entry for it.
func (r *Request) headersFor(uri string, params map[string]string) map[string]string {
	headers := maps.Clone(r.prof.headers)
	r.mu.Lock()
	if ref, ok := refererFor(uri, params); ok {
		r.referer = ref
	}
	headers["referer"] = r.referer
	r.mu.Unlock()
	return headers
}

// Referer returns the referer the next unrouted call will send.
func (r *Request) Referer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.referer
}
