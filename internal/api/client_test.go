package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"portfolio-console/internal/domain/auth"
	xerrors "portfolio-console/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuth struct {
	mu       sync.Mutex
	token    string
	rejected []string
}

func (f *fakeAuth) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeAuth) HandleUnauthorized(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, path)
}

func (f *fakeAuth) rejections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rejected...)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fakeAuth) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL + "/"}, zap.NewNop())
	a := &fakeAuth{token: "session-token"}
	c.SetAuthenticator(a)
	return c, a
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestDo_ErrorDetail(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"Incorrect email or password"}`, "Incorrect email or password"},
		{"detail list", `{"detail":[{"msg":"field required"},{"msg":"too short"}]}`, "field required; too short"},
		{"error field", `{"error":"bad things"}`, "bad things"},
		{"message field", `{"message":"try later"}`, "try later"},
		{"plain text", `gateway exploded`, "gateway exploded"},
		{"empty", ``, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, respond(http.StatusBadRequest, tc.body))
			err := c.Do(context.Background(), http.MethodPost, PathChangePassword, struct{}{}, nil)

			apiErr, ok := xerrors.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, PathChangePassword, apiErr.Path)
			assert.Equal(t, tc.want, apiErr.Detail)
		})
	}
}

func TestDo_AttachesHeaders(t *testing.T) {
	var got http.Header
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		respond(http.StatusOK, `{"id":1,"email":"a@b.c"}`)(w, r)
	})

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", user.Email)
	assert.Equal(t, "Bearer session-token", got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.Equal(t, "portfolio-console", got.Get("User-Agent"))
	assert.Empty(t, got.Get("Content-Type"), "GET has no body")
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	var authz string
	c, a := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
		respond(http.StatusOK, `{}`)(w, r)
	})
	a.token = ""

	_, err := c.Login(context.Background(), auth.LoginRequest{Identifier: "a", Password: "b"})
	require.NoError(t, err)
	assert.Empty(t, authz)
}

func TestDo_PinnedBearer(t *testing.T) {
	var authz string
	c, a := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
		respond(http.StatusUnauthorized, `{"detail":"expired"}`)(w, r)
	})

	_, err := c.Me(WithBearer(context.Background(), "fresh-token"))
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, "Bearer fresh-token", authz)
	assert.Empty(t, a.rejections(), "pinned requests never end the session")
}

func TestDo_UnauthorizedInterceptor(t *testing.T) {
	c, a := newTestClient(t, respond(http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`))
	ctx := context.Background()

	_, err := c.Me(ctx)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, []string{PathMe}, a.rejections())

	_, err = c.EnableEmail2FA(ctx, "pw")
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, []string{PathMe, PathEnableEmail2FA}, a.rejections())
}

func TestDo_UnauthorizedExemptPaths(t *testing.T) {
	c, a := newTestClient(t, respond(http.StatusUnauthorized, `{"detail":"nope"}`))
	ctx := context.Background()

	_, err := c.Login(ctx, auth.LoginRequest{Identifier: "a", Password: "b"})
	assert.Error(t, err)
	_, err = c.Verify2FA(ctx, auth.Verify2FARequest{TempToken: "t", Code: "1"})
	assert.Error(t, err)
	_, err = c.RequestEmailCode(ctx, "t")
	assert.Error(t, err)
	_, err = c.Refresh(ctx)
	assert.Error(t, err)

	assert.Empty(t, a.rejections())
}

func TestDo_ForbiddenAlsoIntercepted(t *testing.T) {
	c, a := newTestClient(t, respond(http.StatusForbidden, `{"detail":"forbidden"}`))

	_, err := c.DisableTOTP(context.Background(), "pw")
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Len(t, a.rejections(), 1)
}

func TestDo_UndecodableBody(t *testing.T) {
	c, _ := newTestClient(t, respond(http.StatusOK, `not json`))

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrUnexpectedResponse)
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK, `{}`))
	c := New(Config{BaseURL: srv.URL}, zap.NewNop())
	srv.Close()

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrTransport)
}

func TestRefresh_SendsEmptyObject(t *testing.T) {
	var body []byte
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		body = buf[:n]
		respond(http.StatusOK, `{"access_token":"next","token_type":"bearer"}`)(w, r)
	})

	resp, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "next", resp.AccessToken)
	assert.Equal(t, "{}", string(body))
}
