package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAuth struct{ ok bool }

func (f fakeAuth) IsAuthenticated(context.Context) bool { return f.ok }

type fakeRefresher struct {
	token string
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

func TestProtected(t *testing.T) {
	tests := []struct {
		name      string
		authed    bool
		refresher *fakeRefresher
		want      Decision
		wantCalls int
	}{
		{"signed in", true, &fakeRefresher{}, Decision{Allow: true}, 0},
		{"silent refresh succeeds", false, &fakeRefresher{token: "new"}, Decision{Allow: true}, 1},
		{"silent refresh fails", false, &fakeRefresher{err: errors.New("401")}, Decision{Redirect: LoginRoute, From: "/scan"}, 1},
		{"refresh yields no token", false, &fakeRefresher{}, Decision{Redirect: LoginRoute, From: "/scan"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(fakeAuth{tt.authed}, tt.refresher, nil)
			got := g.Protected(context.Background(), "/scan")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, tt.refresher.calls)
		})
	}
}

func TestPublic(t *testing.T) {
	r := &fakeRefresher{}
	assert.Equal(t, Decision{Allow: true}, New(fakeAuth{false}, r, nil).Public(context.Background(), "/login"))
	assert.Equal(t, Decision{Redirect: HomeRoute}, New(fakeAuth{true}, r, nil).Public(context.Background(), "/login"))
	assert.Zero(t, r.calls)
}

func TestDecisionURL(t *testing.T) {
	assert.Equal(t, "/login?from=%2Fhistory", Decision{Redirect: LoginRoute, From: "/history"}.URL())
	assert.Equal(t, "/home", Decision{Redirect: HomeRoute}.URL())
	assert.Empty(t, Decision{Allow: true}.URL())
}
