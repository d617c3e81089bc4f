package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const (
	webidURL    = Host + "/?recommend=1"
	webidDigits = 19
)

// The id sits in an escaped JSON blob inside a <script>: \"user_unique_id\":\"7392...\"
var webidRe = regexp.MustCompile(`\\"user_unique_id\\":\\"(\d+)\\"`)

// WebID returns the session identifier for this Request, resolving it on
// first use. It never fails: when the landing page yields nothing a random
// 19-digit id is used and kept.
func (r *Request) WebID(ctx context.Context) string {
	return r.webID(ctx, r.newCall(ctx))
}

func (r *Request) webID(ctx context.Context, parent *callState) string {
	r.webidMu.Lock()
	defer r.webidMu.Unlock()
	if r.webid != "" {
		return r.webid
	}

	sub := &callState{id: parent.id, cookies: parent.cookies, nested: true}
	page, err := r.fetchHTML(ctx, sub, webidURL, r.webidPolicy)
	id := ""
	if err != nil {
		r.log.Warn("webid: landing page fetch failed", slog.String("call_id", parent.id), slog.Any("error", err))
	} else if id = extractWebID(page); id == "" {
		r.log.Warn("webid: no user_unique_id in landing page", slog.String("call_id", parent.id))
	}
	if id == "" {
		id = randomDigits(webidDigits)
		metrics.WebIDFallbacks.Add(1)
		r.log.Info("webid: using random id", slog.String("call_id", parent.id))
	}
	r.webid = id
	return id
}

// extractWebID looks in <script> bodies first, then in the whole page.
func extractWebID(page string) string {
	if page == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(page))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			if m := webidRe.FindStringSubmatch(page); m != nil {
				return m[1]
			}
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			if m := webidRe.FindSubmatch(z.Text()); m != nil {
				return string(m[1])
			}
		}
	}
}
