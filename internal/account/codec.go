package account

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"
)

// cookieDomainToken is a bare domain segment that browser exports sometimes
// leave inside the cookie string. It carries no key and is dropped.
const cookieDomainToken = "douyin.com"

// Decode turns a stored (base64) secret into the cookie map sent upstream.
// An empty secret is an empty map. Raw cookie text is rejected, not sniffed:
// callers must encode before storing.
func Decode(encoded string) (map[string]string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return map[string]string{}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: decoded cookie is not utf-8 text", ErrFormat)
	}

	cookies := ToMap(string(raw))
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: decoded cookie has no key=value pairs", ErrFormat)
	}
	return cookies, nil
}

// Validate reports whether encoded would decode to a non-empty cookie map.
func Validate(encoded string) error {
	if strings.TrimSpace(encoded) == "" {
		return fmt.Errorf("%w: empty cookie", ErrFormat)
	}
	_, err := Decode(encoded)
	return err
}

// ToMap parses a "k=v; k2=v2" cookie string. Malformed segments are skipped.
func ToMap(cookie string) map[string]string {
	out := make(map[string]string)
	for _, seg := range strings.Split(strings.TrimSpace(cookie), "; ") {
		if seg == "" || seg == cookieDomainToken {
			continue
		}
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			slog.Warn("cookie: skipping malformed segment", slog.Int("len", len(seg)))
			continue
		}
		out[key] = value
	}
	return out
}

// ToString is the inverse of ToMap. Keys are sorted so the output is stable.
func ToString(cookies map[string]string) string {
	keys := make([]string, 0, len(cookies))
	for k := range cookies {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+cookies[k])
	}
	return strings.Join(parts, "; ")
}

// Encode produces the stored form of a cookie map.
func Encode(cookies map[string]string) string {
	return base64.StdEncoding.EncodeToString([]byte(ToString(cookies)))
}
