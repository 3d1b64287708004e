package session

import (
	"context"
	"net/url"
)

// Decision is the outcome of a route guard.
type Decision struct {
	Allow     bool
	Redirect  Destination
	ReturnURL string
}

// RedirectURL renders the redirect with its returnUrl query, if any.
func (d Decision) RedirectURL() string {
	if d.ReturnURL == "" {
		return string(d.Redirect)
	}
	return string(d.Redirect) + "?returnUrl=" + url.QueryEscape(d.ReturnURL)
}

// RequireAdmin waits for startup restoration, then admits only administrators.
// Anonymous callers go to the login screen with returnURL; authenticated
// non-admins go home.
func RequireAdmin(ctx context.Context, m *Manager, returnURL string) (Decision, error) {
	if err := waitResolved(ctx, m); err != nil {
		return Decision{}, err
	}

	state := m.Snapshot()
	switch {
	case !state.IsAuthenticated():
		return Decision{Redirect: DestinationLogin, ReturnURL: returnURL}, nil
	case !state.IsAdmin():
		return Decision{Redirect: DestinationHome}, nil
	default:
		return Decision{Allow: true}, nil
	}
}

// PublicOnly keeps authenticated users away from the login screens.
func PublicOnly(ctx context.Context, m *Manager) (Decision, error) {
	if err := waitResolved(ctx, m); err != nil {
		return Decision{}, err
	}
	if m.IsAuthenticated() {
		return Decision{Redirect: DestinationAdmin}, nil
	}
	return Decision{Allow: true}, nil
}

func waitResolved(ctx context.Context, m *Manager) error {
	select {
	case <-m.Resolved():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
