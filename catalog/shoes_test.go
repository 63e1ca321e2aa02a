package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/catalog"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/internal/config"
	sessionerrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/jrsteele09/go-auth-client/users"
)

type stubClient struct {
	resp *apiclient.Response
	err  error
	req  apiclient.Request
}

func (s *stubClient) Do(_ context.Context, req apiclient.Request) (*apiclient.Response, error) {
	s.req = req
	return s.resp, s.err
}

func TestFetchShoes_NormalisesShapes(t *testing.T) {
	client := &stubClient{resp: &apiclient.Response{StatusCode: 200, Body: []byte(`[
		{"id":1,"name":"Trail Runner","price":89.99,"image":"/a.webp","tag":"new"},
		{"shoe_id":"2","Productname":"Court","Price":"74.5","imageUrl":"/b.webp","type":"lifestyle"},
		{"product_id":3,"title":"No Price","amount":"n/a"},
		{"name":"no id"},
		{"id":4}
	]`)}}

	shoes, err := catalog.FetchShoes(context.Background(), client, 0)
	require.NoError(t, err)
	require.Equal(t, catalog.DefaultTimeout, client.req.Timeout)
	require.Equal(t, []catalog.Shoe{
		{ID: 1, Name: "Trail Runner", Price: 89.99, Image: "/a.webp", Tag: "new"},
		{ID: 2, Name: "Court", Price: 74.5, Image: "/b.webp", Category: "lifestyle"},
		{ID: 3, Name: "No Price"},
	}, shoes)
}

func TestFetchShoes_NotFoundIsEmpty(t *testing.T) {
	client := &stubClient{err: &apiclient.StatusError{StatusCode: http.StatusNotFound, Method: "GET", Path: catalog.ShoesPath}}

	shoes, err := catalog.FetchShoes(context.Background(), client, 0)
	require.NoError(t, err)
	require.Empty(t, shoes)
	require.NotNil(t, shoes)
}

func TestFetchShoes_PropagatesOtherFailures(t *testing.T) {
	client := &stubClient{err: &apiclient.StatusError{StatusCode: http.StatusInternalServerError}}
	_, err := catalog.FetchShoes(context.Background(), client, 0)
	require.ErrorIs(t, err, sessionerrors.ErrHTTPStatus)

	client = &stubClient{err: sessionerrors.Join(sessionerrors.ErrTransport, context.DeadlineExceeded)}
	_, err = catalog.FetchShoes(context.Background(), client, 0)
	require.ErrorIs(t, err, sessionerrors.ErrTransport)
}

func TestFetchShoes_MissingRefreshEndpointIsNotAnEmptyCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == catalog.ShoesPath {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ctx := context.Background()
	repo := repofake.NewFakeRepo()
	creds, err := credentials.New(repo)
	require.NoError(t, err)
	store, err := sessions.New(repo)
	require.NoError(t, err)
	require.NoError(t, creds.Set(ctx, "expired", "refresh-1", true))
	require.NoError(t, store.SetUser(ctx, users.Identity{UserID: 6, Username: "Clrkk"}))

	client, err := apiclient.New(config.Client{BaseURL: srv.URL, RequestTimeout: time.Second}, creds, store)
	require.NoError(t, err)

	shoes, err := catalog.FetchShoes(ctx, client, 0)
	require.Nil(t, shoes)
	require.ErrorIs(t, err, sessionerrors.ErrAuthRejected)
	require.Equal(t, http.StatusUnauthorized, apiclient.StatusCode(err))
	require.Nil(t, store.Current())
}
