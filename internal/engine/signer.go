package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Signer produces the a_bogus token for a request.
// query is the CanonicalQuery of the final parameters.
type Signer interface {
	Sign(ctx context.Context, uri, query, userAgent string) (string, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, uri, query, userAgent string) (string, error)

func (f SignerFunc) Sign(ctx context.Context, uri, query, userAgent string) (string, error) {
	return f(ctx, uri, query, userAgent)
}

// sign calls s and turns a panic into an error, failing only this call.
func sign(ctx context.Context, s Signer, uri, query, userAgent string) (sig string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("signer panic: %v", p)
		}
	}()
	return s.Sign(ctx, uri, query, userAgent)
}

// UnsignedSigner returns an empty token; requests go out without a_bogus.
var UnsignedSigner Signer = SignerFunc(func(context.Context, string, string, string) (string, error) {
	return "", nil
})

// Signing routines exposed by the signing sidecar.
const (
	SignDetail = "sign_detail"
	SignReply  = "sign_reply"
)

// CallName picks the signing routine for uri. Comment-reply endpoints use a
// different routine from everything else.
func CallName(uri string) string {
	if strings.Contains(uri, "reply") {
		return SignReply
	}
	return SignDetail
}

// CanonicalQuery renders params as k=v pairs joined by "&", sorted by key.
// Values are escaped the way the signing routine expects: spaces as %20 and
// "/" left literal.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(quote(params[k]))
	}
	return sb.String()
}

var quoteFixer = strings.NewReplacer("+", "%20", "%2F", "/")

func quote(s string) string {
	return quoteFixer.Replace(url.QueryEscape(s))
}

// HTTPSigner delegates signing to an HTTP sidecar that runs the upstream's
// signing script. Request: {"call","query","user_agent"}. Response: {"a_bogus"}.
type HTTPSigner struct {
	URL    string
	Client *http.Client
}

// NewHTTPSigner returns a signer for the sidecar at endpoint.
func NewHTTPSigner(endpoint string) *HTTPSigner {
	return &HTTPSigner{URL: endpoint, Client: &http.Client{Timeout: 10 * time.Second}}
}

type signRequest struct {
	Call      string `json:"call"`
	Query     string `json:"query"`
	UserAgent string `json:"user_agent"`
}

type signResponse struct {
	ABogus string `json:"a_bogus"`
	Error  string `json:"error,omitempty"`
}

func (s *HTTPSigner) Sign(ctx context.Context, uri, query, userAgent string) (string, error) {
	payload, err := json.Marshal(signRequest{Call: CallName(uri), Query: query, UserAgent: userAgent})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("signer: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signer: status %d: %s", resp.StatusCode, preview(string(body)))
	}

	var out signResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("signer: decode: %w", err)
	}
	if out.Error != "" {
		return "", errors.New("signer: " + out.Error)
	}
	if out.ABogus == "" {
		return "", errors.New("signer: empty a_bogus")
	}
	return out.ABogus, nil
}
