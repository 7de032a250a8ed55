package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var sampleProducts = []Product{
	{ID: 1, Title: "Fjallraven Backpack", Price: 109.95, Category: "men's clothing"},
	{ID: 2, Title: "Slim Fit T-Shirt", Price: 22.3, Category: "men's clothing"},
	{ID: 3, Title: "Cotton Jacket", Price: 55.99, Category: "men's clothing"},
}

func newFakeStore(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		limit := len(sampleProducts)
		if v := r.URL.Query().Get("limit"); v == "2" {
			limit = 2
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sampleProducts[:limit])
	})
	mux.HandleFunc("/products/", func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/products/") {
		case "1":
			_ = json.NewEncoder(w).Encode(sampleProducts[0])
		case "404":
			http.NotFound(w, r)
		case "500":
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
		case "bad":
			_, _ = w.Write([]byte("<html>"))
		case "null":
			_, _ = w.Write([]byte("null"))
		default:
			// fakestore answers unknown ids with 200 and an empty body
			w.WriteHeader(http.StatusOK)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_List(t *testing.T) {
	srv := newFakeStore(t)
	c := New(Options{BaseURL: srv.URL + "/"}, nil)

	res := c.List(context.Background(), 2)
	require.Equal(t, Success, res.Outcome)
	require.Len(t, res.Products, 2)
	require.Equal(t, "Fjallraven Backpack", res.Products[0].Title)

	// a server that ignores limit is still trimmed
	res = c.List(context.Background(), 1)
	require.Equal(t, Success, res.Outcome)
	require.Len(t, res.Products, 1)
}

func TestClient_Get(t *testing.T) {
	srv := newFakeStore(t)
	c := New(Options{BaseURL: srv.URL}, nil)

	res := c.Get(context.Background(), 1)
	require.Equal(t, Success, res.Outcome)
	require.Equal(t, 109.95, res.Product.Price)

	require.Equal(t, NotFound, c.Get(context.Background(), 999).Outcome)
	require.Equal(t, NotFound, c.Get(context.Background(), 404).Outcome)
	require.Equal(t, Unavailable, c.Get(context.Background(), 500).Outcome)
}

func TestClient_GetOddBodies(t *testing.T) {
	srv := newFakeStore(t)
	c := New(Options{BaseURL: srv.URL}, nil)

	var p *Product
	require.NoError(t, c.getJSON(context.Background(), "/products/null", &p))
	require.Nil(t, p)

	err := c.getJSON(context.Background(), "/products/bad", &p)
	require.Error(t, err)
	require.Equal(t, Unavailable, classify(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	defer close(release)

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	start := time.Now()
	res := c.Get(context.Background(), 1)
	require.Equal(t, Timeout, res.Outcome)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Options{BaseURL: base}, nil)
	res := c.List(context.Background(), 5)
	require.Equal(t, TransportError, res.Outcome)
	require.Error(t, res.Err)
}

func TestClient_ClientCredentials(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/products/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(sampleProducts[0])
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Options{
		BaseURL:      srv.URL,
		ClientID:     "shopdesk",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/oauth/token",
	}, nil)

	require.Equal(t, Success, c.Get(context.Background(), 1).Outcome)
	require.Equal(t, Success, c.Get(context.Background(), 1).Outcome)
	// token is cached between calls
	require.EqualValues(t, 1, tokenCalls.Load())
}

func TestClient_TokenFailureIsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Options{BaseURL: srv.URL, ClientID: "x", ClientSecret: "y", TokenURL: srv.URL + "/oauth/token"}, nil)
	require.Equal(t, Unavailable, c.List(context.Background(), 3).Outcome)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, 1, ClampLimit(0))
	require.Equal(t, 1, ClampLimit(-4))
	require.Equal(t, 7, ClampLimit(7))
	require.Equal(t, MaxListLimit, ClampLimit(500))
}
