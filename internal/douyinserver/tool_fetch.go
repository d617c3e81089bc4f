package douyinserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_douyin/internal/gateway"
	"github.com/anatolykoptev/go_douyin/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FetchInput is a raw upstream call.
type FetchInput struct {
	URI     string            `json:"uri" jsonschema:"Upstream path, e.g. /aweme/v1/web/aweme/detail/"`
	Params  map[string]string `json:"params,omitempty" jsonschema:"Endpoint query params; the browser baseline, msToken, webid and signature are added automatically"`
	Form    map[string]string `json:"form,omitempty" jsonschema:"Form body; when set the call is a POST"`
	Live    bool              `json:"live,omitempty" jsonschema:"Send to live.douyin.com instead of www.douyin.com"`
	Account string            `json:"account,omitempty" jsonschema:"Stored account to use; empty rotates through all accounts"`
}

// RouteInput calls one entry of the proxy route table.
type RouteInput struct {
	Path    string            `json:"path" jsonschema:"Route path below /aweme/v1/web, e.g. /aweme/detail/ or /general/search/single/"`
	Args    map[string]string `json:"args,omitempty" jsonschema:"Route arguments, e.g. {\"aweme_id\": \"7380308118061780287\"}"`
	Account string            `json:"account,omitempty" jsonschema:"Stored account to use; empty rotates through all accounts"`
}

// FetchOutput wraps the decoded upstream JSON.
type FetchOutput struct {
	URI  string         `json:"uri"`
	Data map[string]any `json:"data"`
}

func registerFetch(server *mcp.Server, gw *gateway.Gateway) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "douyin_fetch",
		Description: "Call any Douyin web API endpoint with a browser-like fingerprint, signed query and account cookies. Returns the upstream JSON, or an error when the upstream returned nothing after retries (usually an expired cookie or a missing signature).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input FetchInput) (*mcp.CallToolResult, FetchOutput, error) {
		uri := strings.TrimSpace(input.URI)
		if !strings.HasPrefix(uri, "/") {
			return nil, FetchOutput{}, errors.New("uri must be an absolute path")
		}
		params := toolutil.MergeParams(input.Params, nil)
		var form map[string]string
		if len(input.Form) > 0 {
			form = toolutil.MergeParams(input.Form, nil)
		}
		data := gw.Fetch(ctx, toolutil.NormAccount(input.Account), uri, params, form, input.Live, false)
		if len(data) == 0 {
			return nil, FetchOutput{}, fmt.Errorf("empty upstream result for %s", uri)
		}
		return nil, FetchOutput{URI: uri, Data: data}, nil
	})
}

func registerRoute(server *mcp.Server, gw *gateway.Gateway) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "douyin_route",
		Description: "Call a named Douyin proxy route (video detail, comments, user posts, search, live room...) with the same argument names as the REST API under /aweme/v1/web.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input RouteInput) (*mcp.CallToolResult, FetchOutput, error) {
		rt, ok := gateway.FindRoute(input.Path)
		if !ok {
			return nil, FetchOutput{}, fmt.Errorf("unknown route %q", input.Path)
		}
		data, err := gw.CallRoute(ctx, rt, toolutil.NormAccount(input.Account), input.Args)
		if err != nil {
			return nil, FetchOutput{}, err
		}
		return nil, FetchOutput{URI: rt.URI, Data: data}, nil
	})
}
