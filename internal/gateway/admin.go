package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_douyin/internal/account"
)

// ErrorCode classifies an admin failure.
type ErrorCode string

const (
	CodeNotFound        ErrorCode = "not_found"
	CodeAlreadyExists   ErrorCode = "already_exists"
	CodeFormat          ErrorCode = "format"
	CodeInvalid         ErrorCode = "invalid"
	CodeUnauthenticated ErrorCode = "unauthenticated"
)

// AdminError is the typed outcome of a rejected admin operation.
type AdminError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AdminError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AdminError) Unwrap() error { return e.Err }

func adminErr(code ErrorCode, msg string, err error) *AdminError {
	return &AdminError{Code: code, Message: msg, Err: err}
}

// CodeOf returns the AdminError code of err, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var ae *AdminError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Checker reports whether a base64 cookie is logged in.
type Checker interface {
	Check(ctx context.Context, secret string) (bool, error)
}

// AddInput is the payload of account add.
type AddInput struct {
	Name        string `json:"name" jsonschema:"Unique account name"`
	Cookie      string `json:"cookie" jsonschema:"Base64-encoded cookie header copied from a logged-in browser"`
	Description string `json:"description,omitempty" jsonschema:"Free-form note"`
	TestLogin   *bool  `json:"testLogin,omitempty" jsonschema:"Verify the cookie is logged in before saving (default true)"`
}

// UpdateInput is the payload of account update. Omitted fields are kept.
type UpdateInput struct {
	Name        string  `json:"name" jsonschema:"Account to update"`
	Cookie      string  `json:"cookie,omitempty" jsonschema:"New base64-encoded cookie"`
	Description *string `json:"description,omitempty" jsonschema:"New description"`
	TestLogin   *bool   `json:"testLogin,omitempty" jsonschema:"Verify a new cookie before saving (default true)"`
}

// TestInput names a stored account or carries a cookie to probe.
type TestInput struct {
	Name   string `json:"name,omitempty" jsonschema:"Stored account to test"`
	Cookie string `json:"cookie,omitempty" jsonschema:"Base64-encoded cookie to test when no name is given"`
}

// TestResult is the outcome of a login probe.
type TestResult struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status"`
}

// CookieResult is a selected cookie and the account it came from.
type CookieResult struct {
	Cookie  string `json:"cookie"`
	Account string `json:"account"`
}

// ListResult is the account listing.
type ListResult struct {
	Accounts []account.PublicCredential `json:"accounts"`
	Total    int                        `json:"total"`
}

const (
	statusLoggedIn  = "logged in"
	statusLoggedOut = "not logged in"
	autoSelected    = "auto"
)

// Admin manages stored accounts.
type Admin struct {
	store   *account.Store
	checker Checker
}

// NewAdmin returns an Admin over store that probes cookies with checker.
func NewAdmin(store *account.Store, checker Checker) *Admin {
	return &Admin{store: store, checker: checker}
}

// List returns every account without secrets.
func (a *Admin) List() ListResult {
	accs := a.store.List()
	return ListResult{Accounts: accs, Total: len(accs)}
}

// Add stores a new account. The cookie is probed first unless TestLogin is
// explicitly false.
func (a *Admin) Add(ctx context.Context, in AddInput) error {
	name := strings.TrimSpace(in.Name)
	cookie := strings.TrimSpace(in.Cookie)
	if name == "" {
		return adminErr(CodeInvalid, "account name is required", nil)
	}
	if cookie == "" {
		return adminErr(CodeInvalid, "cookie is required", nil)
	}
	if err := a.checkCookie(ctx, cookie, in.TestLogin); err != nil {
		return err
	}

	err := a.store.Add(ctx, name, cookie, strings.TrimSpace(in.Description))
	switch {
	case errors.Is(err, account.ErrAlreadyExists):
		return adminErr(CodeAlreadyExists, "account name already exists", err)
	case errors.Is(err, account.ErrFormat):
		return adminErr(CodeFormat, "cookie must be base64 encoded", err)
	case err != nil:
		return err
	}
	slog.Info("account added", slog.String("account", name))
	return nil
}

// Update replaces the cookie and/or description of an existing account.
func (a *Admin) Update(ctx context.Context, in UpdateInput) error {
	name := strings.TrimSpace(in.Name)
	cookie := strings.TrimSpace(in.Cookie)
	if name == "" {
		return adminErr(CodeInvalid, "account name is required", nil)
	}
	if err := a.checkCookie(ctx, cookie, in.TestLogin); err != nil {
		return err
	}

	var secret, desc *string
	if cookie != "" {
		secret = &cookie
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		desc = &d
	}
	err := a.store.Update(ctx, name, secret, desc)
	switch {
	case errors.Is(err, account.ErrNotFound):
		return adminErr(CodeNotFound, "account not found", err)
	case errors.Is(err, account.ErrFormat):
		return adminErr(CodeFormat, "cookie must be base64 encoded", err)
	case err != nil:
		return err
	}
	slog.Info("account updated", slog.String("account", name))
	return nil
}

// Delete removes an account.
func (a *Admin) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return adminErr(CodeInvalid, "account name is required", nil)
	}
	if err := a.store.Delete(ctx, name); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return adminErr(CodeNotFound, "account not found", err)
		}
		return err
	}
	slog.Info("account deleted", slog.String("account", name))
	return nil
}

// Test probes a stored account by name, or a raw cookie when no name is set.
func (a *Admin) Test(ctx context.Context, in TestInput) (TestResult, error) {
	name := strings.TrimSpace(in.Name)
	secret := strings.TrimSpace(in.Cookie)
	switch {
	case name != "":
		cred, ok := a.store.Get(name)
		if !ok {
			return TestResult{}, adminErr(CodeNotFound, "account not found", account.ErrNotFound)
		}
		secret = cred.Secret
	case secret == "":
		return TestResult{}, adminErr(CodeInvalid, "account name or cookie is required", nil)
	}

	valid, err := a.checker.Check(ctx, secret)
	if err != nil {
		if errors.Is(err, account.ErrFormat) {
			return TestResult{}, adminErr(CodeFormat, "cookie must be base64 encoded", err)
		}
		return TestResult{}, err
	}
	res := TestResult{Valid: valid, Status: statusLoggedOut}
	if valid {
		res.Status = statusLoggedIn
	}
	return res, nil
}

// GetCookie selects a cookie, by name or least recently used, and marks it used.
func (a *Admin) GetCookie(ctx context.Context, name string) (CookieResult, error) {
	name = strings.TrimSpace(name)
	secret, ok := a.store.SelectForUse(ctx, name)
	if !ok {
		return CookieResult{}, adminErr(CodeNotFound, "no account available", account.ErrNotFound)
	}
	label := name
	if label == "" {
		label = autoSelected
	}
	return CookieResult{Cookie: secret, Account: label}, nil
}

// checkCookie validates the encoding of a non-empty cookie and, unless
// testLogin is false, that it is logged in.
func (a *Admin) checkCookie(ctx context.Context, cookie string, testLogin *bool) error {
	if cookie == "" {
		return nil
	}
	if err := account.Validate(cookie); err != nil {
		return adminErr(CodeFormat, "cookie must be base64 encoded", err)
	}
	if testLogin != nil && !*testLogin {
		return nil
	}
	valid, err := a.checker.Check(ctx, cookie)
	if err != nil {
		return adminErr(CodeFormat, "cookie must be base64 encoded", err)
	}
	if !valid {
		return adminErr(CodeUnauthenticated, "cookie is invalid or not logged in", nil)
	}
	return nil
}
