package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/config"
	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/jrsteele09/go-auth-client/users"
)

const clrkkLogin = `{"accessToken":"a","refreshToken":"r","user":{"role":null,"user_id":6,"username":"Clrkk"}}`

// testFixture holds a scripted backend and a service wired over a fake repo
type testFixture struct {
	server       *httptest.Server
	repo         *repofake.FakeRepo
	service      *auth.Service
	client       *apiclient.Client
	loginStatus  atomic.Int32
	loginBody    atomic.Value
	logoutStatus atomic.Int32
	logoutHits   atomic.Int32
	loginRequest atomic.Value
	refreshGate  atomic.Value
	refreshHits  atomic.Int32
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{repo: repofake.NewFakeRepo()}
	f.loginStatus.Store(http.StatusOK)
	f.loginBody.Store(clrkkLogin)
	f.logoutStatus.Store(http.StatusNoContent)

	mux := http.NewServeMux()
	mux.HandleFunc("/users/login", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.loginRequest.Store(string(body))
		w.WriteHeader(int(f.loginStatus.Load()))
		_, _ = w.Write([]byte(f.loginBody.Load().(string)))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutHits.Add(1)
		w.WriteHeader(int(f.logoutStatus.Load()))
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user_id":6,"username":"Clrkk","role":null}`))
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshHits.Add(1)
		if gate, ok := f.refreshGate.Load().(chan struct{}); ok {
			<-gate
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "a2"})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.service, f.client = f.open(t)
	return f
}

// open wires a fresh service over the same repo, simulating a process restart.
func (f *testFixture) open(t *testing.T) (*auth.Service, *apiclient.Client) {
	t.Helper()
	cfg := config.Client{
		BaseURL:        f.server.URL,
		RequestTimeout: 2 * time.Second,
		RefreshTimeout: 2 * time.Second,
		LoginPath:      "/login",
		IdentityPolicy: config.IdentityPolicyEnforce,
	}
	service, client, err := auth.Open(cfg, f.repo)
	require.NoError(t, err)
	return service, client
}

func (f *testFixture) requireLoggedOut(t *testing.T) {
	t.Helper()
	session := f.service.CurrentSession()
	require.Nil(t, session.User)
	require.False(t, session.IsAuthenticated)
	require.False(t, f.repo.Has(credentials.AccessKey))
	require.False(t, f.repo.Has(credentials.RefreshKey))
	require.False(t, f.repo.Has(sessions.UserStoreKey))
	require.False(t, f.repo.Has(sessions.CurrentUserKey))
}

func TestLogin_PersistsSessionEnvelope(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	payload, err := f.service.Login(ctx, "Clrkk", "x", true)
	require.NoError(t, err)
	require.Equal(t, "a", payload.AccessToken())
	require.JSONEq(t, `{"username":"Clrkk","password":"x"}`, f.loginRequest.Load().(string))

	envelope, err := f.repo.Get(ctx, sessions.UserStoreKey)
	require.NoError(t, err)
	require.JSONEq(t, `{"state":{"currentUser":{"role":null,"user_id":6,"username":"Clrkk"}}}`, envelope)

	session := f.service.CurrentSession()
	require.True(t, session.IsAuthenticated)
	require.Equal(t, users.Identity{UserID: 6, Username: "Clrkk"}, *session.User)

	access, err := f.repo.Get(ctx, credentials.AccessKey)
	require.NoError(t, err)
	require.Equal(t, "a", access)
	remember, err := f.repo.Get(ctx, credentials.RememberKey)
	require.NoError(t, err)
	require.Equal(t, "true", remember)
}

func TestLogin_NotRememberedKeepsTokensOutOfStorage(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Login(ctx, "Clrkk", "x", false)
	require.NoError(t, err)
	require.True(t, f.service.CurrentSession().IsAuthenticated)

	require.False(t, f.repo.Has(credentials.AccessKey))
	require.False(t, f.repo.Has(credentials.RefreshKey))
	remember, err := f.repo.Get(ctx, credentials.RememberKey)
	require.NoError(t, err)
	require.Equal(t, "false", remember)

	// a restart forgets the identity along with the unremembered tokens
	restarted, _ := f.open(t)
	session, err := restarted.Restore(ctx)
	require.NoError(t, err)
	require.False(t, session.IsAuthenticated)
	require.False(t, f.repo.Has(sessions.UserStoreKey))
}

func TestLogin_RememberedSessionSurvivesRestart(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	_, err := f.service.Login(ctx, "Clrkk", "x", true)
	require.NoError(t, err)

	restarted, _ := f.open(t)
	session, err := restarted.Restore(ctx)
	require.NoError(t, err)
	require.True(t, session.IsAuthenticated)
	require.Equal(t, users.Identity{UserID: 6, Username: "Clrkk"}, *session.User)

	me, err := restarted.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(6), me.UserID)
}

func TestLogin_NormalisesPayloadShapes(t *testing.T) {
	cases := map[string]struct {
		body     string
		expected users.Identity
	}{
		"flattened with id": {
			body:     `{"accessToken":"a","refreshToken":"r","id":"12","username":"flat","role":"admin"}`,
			expected: users.Identity{UserID: 12, Username: "flat", Role: utils.Ptr("admin")},
		},
		"nested numeric username": {
			body:     `{"accessToken":"a","user":{"user_id":7,"username":1234}}`,
			expected: users.Identity{UserID: 7, Username: "1234"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newTestFixture(t)
			f.loginBody.Store(tc.body)
			_, err := f.service.Login(context.Background(), "u", "p", true)
			require.NoError(t, err)
			require.Equal(t, tc.expected, *f.service.CurrentSession().User)
		})
	}
}

func TestLogin_InvalidUserStructureRollsBack(t *testing.T) {
	bodies := map[string]string{
		"missing id":       `{"accessToken":"a","refreshToken":"r","user":{"username":"Clrkk"}}`,
		"non numeric id":   `{"accessToken":"a","refreshToken":"r","user":{"user_id":"abc","username":"Clrkk"}}`,
		"missing username": `{"accessToken":"a","refreshToken":"r","user":{"user_id":6}}`,
		"empty username":   `{"accessToken":"a","refreshToken":"r","user_id":6,"username":""}`,
		"not an object":    `["a","r"]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			f := newTestFixture(t)
			f.loginBody.Store(body)

			_, err := f.service.Login(context.Background(), "Clrkk", "x", true)
			require.ErrorIs(t, err, sessionerrors.ErrInvalidUserStructure)
			f.requireLoggedOut(t)
			require.Zero(t, f.client.Refresher().Completed())
		})
	}
}

func TestLogin_InvalidStructureOverExistingSessionLogsOut(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	_, err := f.service.Login(ctx, "Clrkk", "x", true)
	require.NoError(t, err)

	f.loginBody.Store(`{"accessToken":"b","refreshToken":"r2","user":{"username":"Clrkk"}}`)
	_, err = f.service.Login(ctx, "Clrkk", "x", true)
	require.ErrorIs(t, err, sessionerrors.ErrInvalidUserStructure)
	f.requireLoggedOut(t)
	require.Zero(t, f.client.Refresher().Completed())
}

func TestLogin_RejectedCredentials(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden} {
		f := newTestFixture(t)
		f.loginStatus.Store(int32(status))
		f.loginBody.Store(`{"error":"invalid_credentials"}`)

		_, err := f.service.Login(context.Background(), "Clrkk", "wrong", true)
		require.ErrorIs(t, err, sessionerrors.ErrInvalidCredentials)
		require.NotErrorIs(t, err, sessionerrors.ErrAuthRejected)
		f.requireLoggedOut(t)
	}
}

func TestLogin_ServerErrorIsNotInvalidCredentials(t *testing.T) {
	f := newTestFixture(t)
	f.loginStatus.Store(http.StatusInternalServerError)

	_, err := f.service.Login(context.Background(), "Clrkk", "x", true)
	require.ErrorIs(t, err, sessionerrors.ErrHTTPStatus)
	require.NotErrorIs(t, err, sessionerrors.ErrInvalidCredentials)
}

func TestLogin_UnverifiedPersistRollsBack(t *testing.T) {
	f := newTestFixture(t)
	f.repo.DropKeys = map[string]bool{sessions.UserStoreKey: true}

	_, err := f.service.Login(context.Background(), "Clrkk", "x", true)
	require.ErrorIs(t, err, sessionerrors.ErrPersistFailed)

	session := f.service.CurrentSession()
	require.False(t, session.IsAuthenticated)
	require.False(t, f.repo.Has(credentials.AccessKey))
	require.False(t, f.repo.Has(sessions.CurrentUserKey))
}

func TestLogout_ClearsEvenWhenBackendFails(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusInternalServerError} {
		f := newTestFixture(t)
		f.logoutStatus.Store(int32(status))
		ctx := context.Background()
		_, err := f.service.Login(ctx, "Clrkk", "x", true)
		require.NoError(t, err)

		var redirectedTo string
		require.NoError(t, f.service.Logout(ctx, func(path string) { redirectedTo = path }))
		require.Equal(t, int32(1), f.logoutHits.Load())
		require.Equal(t, "/login", redirectedTo)
		f.requireLoggedOut(t)
	}
}

func TestLogout_UnreachableBackend(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	_, err := f.service.Login(ctx, "Clrkk", "x", true)
	require.NoError(t, err)

	f.server.Close()
	require.NoError(t, f.service.Logout(ctx, nil))
	f.requireLoggedOut(t)
}

func TestLogout_ReturnsClearFailure(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	_, err := f.service.Login(ctx, "Clrkk", "x", true)
	require.NoError(t, err)

	f.repo.FailApply = repofake.ErrInjected
	redirected := false
	err = f.service.Logout(ctx, func(string) { redirected = true })
	require.ErrorIs(t, err, repofake.ErrInjected)
	require.False(t, redirected)
	require.Nil(t, f.service.CurrentSession().User)
}

func TestLogout_DuringRefreshStaysLoggedOut(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	_, err := f.service.Login(ctx, "Clrkk", "x", true)
	require.NoError(t, err)

	gate := make(chan struct{})
	f.refreshGate.Store(gate)
	refreshed := make(chan error, 1)
	go func() {
		refreshed <- f.service.Refresh(ctx)
	}()
	require.Eventually(t, func() bool { return f.refreshHits.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, f.service.Logout(ctx, nil))
	close(gate)

	err = <-refreshed
	require.ErrorIs(t, err, sessionerrors.ErrSessionChanged)
	f.requireLoggedOut(t)
	require.Zero(t, f.client.Refresher().Completed())
}

func TestCurrentSession_FlagMatchesUser(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			session := f.service.CurrentSession()
			if (session.User != nil) != session.IsAuthenticated {
				t.Errorf("session user %v with IsAuthenticated=%v", session.User, session.IsAuthenticated)
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		_, err := f.service.Login(ctx, "Clrkk", "x", true)
		require.NoError(t, err)
		require.NoError(t, f.service.Logout(ctx, nil))
	}
	close(stop)
	<-done
}

func TestRefresh_PreservesPersistFlag(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	_, err := f.service.Login(ctx, "Clrkk", "x", false)
	require.NoError(t, err)

	require.NoError(t, f.service.Refresh(ctx))
	require.False(t, f.repo.Has(credentials.AccessKey))
	require.Equal(t, int64(1), f.client.Refresher().Completed())
	require.True(t, f.service.CurrentSession().IsAuthenticated)
}

func TestUpdateUser(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	_, err := f.service.Login(ctx, "Clrkk", "x", true)
	require.NoError(t, err)

	require.NoError(t, f.service.UpdateUser(ctx, users.Patch{Role: utils.Ptr("buyer")}))
	require.Equal(t, "buyer", utils.Value(f.service.CurrentSession().User.Role))

	err = f.service.UpdateUser(ctx, users.Patch{UserID: utils.Ptr(int64(0))})
	require.ErrorIs(t, err, sessionerrors.ErrValidation)
	require.Equal(t, int64(6), f.service.CurrentSession().User.UserID)
}

func TestNewService_Validation(t *testing.T) {
	_, err := auth.NewService(nil, nil, nil)
	require.Error(t, err)
}
