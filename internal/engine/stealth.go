package engine

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"

	"github.com/anatolykoptev/go_douyin/internal/account"
)

// BrowserClient is the go-stealth client with a Chrome TLS fingerprint.
type BrowserClient = stealth.BrowserClient

// StealthTransport sends requests through go-stealth.
type StealthTransport struct {
	bc *BrowserClient
}

// NewStealthTransport builds the browser client, routed through a Webshare
// proxy pool when webshareKey is set. timeoutSec is the per-request timeout.
func NewStealthTransport(timeoutSec int, webshareKey string) (*StealthTransport, error) {
	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(timeoutSec))

	if webshareKey != "" {
		pool, err := proxypool.NewWebshare(webshareKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &StealthTransport{bc: bc}, nil
}

func (t *StealthTransport) Do(ctx context.Context, o *Outbound) (*Inbound, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(o.Headers)+1)
	for k, v := range o.Headers {
		headers[k] = v
	}
	if len(o.Cookies) > 0 {
		headers["Cookie"] = account.ToString(o.Cookies)
	}
	var body io.Reader
	if o.Body != nil {
		body = bytes.NewReader(o.Body)
	}

	data, _, status, err := t.bc.Do(o.Method, o.URL, headers, body)
	if err != nil {
		return nil, err
	}
	return &Inbound{Status: status, Body: data}, nil
}
