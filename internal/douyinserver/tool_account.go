package douyinserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_douyin/internal/gateway"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AccountListInput takes no arguments.
type AccountListInput struct{}

// AccountNameInput names one account.
type AccountNameInput struct {
	Name string `json:"name" jsonschema:"Account name"`
}

// AccountResult echoes the account an operation applied to.
type AccountResult struct {
	Name string `json:"name"`
}

func registerAccountList(server *mcp.Server, admin *gateway.Admin) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "account_list",
		Description: "List stored Douyin accounts with their description and usage timestamps. Cookies are not included.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ AccountListInput) (*mcp.CallToolResult, gateway.ListResult, error) {
		return nil, admin.List(), nil
	})
}

func registerAccountAdd(server *mcp.Server, admin *gateway.Admin) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "account_add",
		Description: "Store a new Douyin account. The cookie must be the base64-encoded Cookie header of a logged-in douyin.com session. By default the cookie is checked against the profile endpoint before saving.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input gateway.AddInput) (*mcp.CallToolResult, AccountResult, error) {
		if err := admin.Add(ctx, input); err != nil {
			return nil, AccountResult{}, err
		}
		return nil, AccountResult{Name: input.Name}, nil
	})
}

func registerAccountUpdate(server *mcp.Server, admin *gateway.Admin) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "account_update",
		Description: "Replace the cookie and/or description of a stored account. Omitted fields are kept.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input gateway.UpdateInput) (*mcp.CallToolResult, AccountResult, error) {
		if err := admin.Update(ctx, input); err != nil {
			return nil, AccountResult{}, err
		}
		return nil, AccountResult{Name: input.Name}, nil
	})
}

func registerAccountDelete(server *mcp.Server, admin *gateway.Admin) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "account_delete",
		Description: "Delete a stored account by name.",
		Annotations: &mcp.ToolAnnotations{DestructiveHint: boolPtr(true)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input AccountNameInput) (*mcp.CallToolResult, AccountResult, error) {
		if input.Name == "" {
			return nil, AccountResult{}, errors.New("name is required")
		}
		if err := admin.Delete(ctx, input.Name); err != nil {
			return nil, AccountResult{}, err
		}
		return nil, AccountResult{Name: input.Name}, nil
	})
}

func registerAccountTest(server *mcp.Server, admin *gateway.Admin) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "account_test",
		Description: "Check whether a stored account (by name) or a base64 cookie is still logged in.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input gateway.TestInput) (*mcp.CallToolResult, gateway.TestResult, error) {
		res, err := admin.Test(ctx, input)
		if err != nil {
			return nil, gateway.TestResult{}, err
		}
		return nil, res, nil
	})
}

func boolPtr(b bool) *bool { return &b }
