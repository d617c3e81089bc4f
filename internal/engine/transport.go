package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/anatolykoptev/go_douyin/internal/account"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 16 << 20

// Outbound is one upstream request. URL already carries the query string.
type Outbound struct {
	Method  string
	URL     string
	Headers map[string]string
	Cookies map[string]string
	Body    []byte
}

// Inbound is an upstream response of any status.
type Inbound struct {
	Status     int
	Body       []byte
	RetryAfter time.Duration // parsed from Retry-After on 429, else 0
}

// Transport sends one attempt. Retries are the caller's job.
type Transport interface {
	Do(ctx context.Context, req *Outbound) (*Inbound, error)
}

// TransportConfig sizes the shared connection pool.
type TransportConfig struct {
	Timeout        time.Duration // whole request, including body read
	ConnectTimeout time.Duration
	MaxConns       int // hard cap on concurrent upstream connections
	MaxIdleConns   int
}

// PooledTransport is a net/http client shared by every Request. It has no
// cookie jar: each request carries its own account's cookies.
type PooledTransport struct {
	client *http.Client
	sem    *semaphore.Weighted
}

// NewPooledTransport builds the shared transport.
func NewPooledTransport(c TransportConfig) *PooledTransport {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 100
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 20
	}
	dialer := &net.Dialer{Timeout: c.ConnectTimeout, KeepAlive: 30 * time.Second}
	return &PooledTransport{
		client: &http.Client{
			Timeout: c.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        c.MaxIdleConns,
				MaxIdleConnsPerHost: c.MaxIdleConns,
				MaxConnsPerHost:     c.MaxConns,
				IdleConnTimeout:     60 * time.Second,
				TLSHandshakeTimeout: c.ConnectTimeout,
			},
		},
		sem: semaphore.NewWeighted(int64(c.MaxConns)),
	}
}

func (t *PooledTransport) Do(ctx context.Context, o *Outbound) (*Inbound, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.sem.Release(1)

	var body io.Reader
	if o.Body != nil {
		body = bytes.NewReader(o.Body)
	}
	req, err := http.NewRequestWithContext(ctx, o.Method, o.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range o.Headers {
		req.Header.Set(k, v)
	}
	if len(o.Cookies) > 0 {
		req.Header.Set("Cookie", account.ToString(o.Cookies))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	in := &Inbound{Status: resp.StatusCode, Body: data}
	if resp.StatusCode == http.StatusTooManyRequests {
		in.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return in, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}
