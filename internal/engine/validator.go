package engine

import (
	"context"
	"log/slog"

	"github.com/anatolykoptev/go_douyin/internal/account"
)

// profileSelfURI answers with the logged-in user for a valid session.
const profileSelfURI = "/aweme/v1/web/user/profile/self/"

// Validator checks whether a cookie still carries a logged-in session.
type Validator struct {
	opts Options
}

// NewValidator reuses o for the probe requests. Secret, Rotate and Store
// are ignored.
func NewValidator(o Options) *Validator {
	o.Secret, o.Rotate, o.Store = "", false, nil
	return &Validator{opts: o}
}

// Check probes the profile endpoint with secret. A malformed secret is an
// error; an upstream that does not return a user is (false, nil).
func (v *Validator) Check(ctx context.Context, secret string) (bool, error) {
	if err := account.Validate(secret); err != nil {
		return false, err
	}
	metrics.Validations.Add(1)

	o := v.opts
	o.Secret = secret
	r := New(o)

	var valid bool
	err := TrackOperation(ctx, "validate_cookie", func(ctx context.Context) error {
		var err error
		valid, err = r.loggedIn(ctx)
		return err
	})
	if err != nil {
		r.log.Info("profile probe failed", slog.Any("error", err))
	}
	if !valid {
		metrics.ValidationFails.Add(1)
		r.log.Info("cookie not logged in or expired")
	}
	return valid, nil
}

// LoggedIn reports whether the Request's own account is logged in.
func (r *Request) LoggedIn(ctx context.Context) bool {
	ok, _ := r.loggedIn(ctx)
	return ok
}

// loggedIn is LoggedIn with the fetch failure, if any, exposed.
func (r *Request) loggedIn(ctx context.Context) (bool, error) {
	data, err := r.FetchJSONResult(ctx, profileSelfURI, map[string]string{}, nil, false)
	if err != nil {
		return false, err
	}
	user, ok := data["user"].(map[string]any)
	if !ok || len(user) == 0 {
		r.log.Debug("profile probe returned no user", slog.Int("keys", len(data)))
		return false, nil
	}
	return true, nil
}
