package keystone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func authServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/v3", 0)
}

func decodeAuthRequest(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	auth, ok := body["auth"].(map[string]any)
	require.True(t, ok, "request body must carry an auth object")
	return auth
}

func TestAuthenticateSuccess(t *testing.T) {
	t.Parallel()

	expiresAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v3/auth/tokens", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		auth := decodeAuthRequest(t, r)
		identity := auth["identity"].(map[string]any)
		require.Equal(t, []any{"password"}, identity["methods"])

		w.Header().Set("X-Subject-Token", "tok1")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": map[string]any{
				"expires_at": expiresAt,
				"user": map[string]any{
					"id": "u1", "name": "alice",
					"domain": map[string]any{"id": "ud1", "name": "staff"},
				},
				"project": map[string]any{
					"id": "p1", "name": "Alpha",
					"domain": map[string]any{"id": "d1", "name": "acme"},
				},
			},
		})
	})

	result := client.AuthenticateWithCredentials(context.Background(), "alice", "hunter2",
		Scope{ProjectID: "p1"})

	require.True(t, result.Success)
	require.Equal(t, "tok1", result.Token)
	require.Equal(t, "tok1", result.TokenData.Value)
	require.Equal(t, expiresAt, result.TokenData.ExpiresAt)
	require.Equal(t, "alice", result.TokenData.User.Name)
	require.NotNil(t, result.TokenData.Project)
	require.Equal(t, "p1", result.TokenData.Project.ID)
	require.Equal(t, "d1", result.TokenData.Project.Domain.ID)
}

func TestAuthenticateRejected(t *testing.T) {
	t.Parallel()

	client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid user/password"))
	})

	result := client.AuthenticateWithCredentials(context.Background(), "alice", "wrong", Scope{})

	require.False(t, result.Success)
	require.False(t, result.Transport, "a backend verdict is not a transport failure")
	require.Equal(t, "Authentication failed: 401 - invalid user/password", result.Error)
}

func TestAuthenticateTransportFailures(t *testing.T) {
	t.Parallel()

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		endpoint := srv.URL
		srv.Close()

		client := New(endpoint+"/v3", 0)
		result := client.AuthenticateWithCredentials(context.Background(), "alice", "pw", Scope{})
		require.False(t, result.Success)
		require.True(t, result.Transport)
		require.NotEmpty(t, result.Error)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		t.Cleanup(srv.Close)

		client := New(srv.URL+"/v3", 50*time.Millisecond)
		result := client.AuthenticateWithCredentials(context.Background(), "alice", "pw", Scope{})
		require.False(t, result.Success)
		require.True(t, result.Transport)
	})

	t.Run("missing subject token header", func(t *testing.T) {
		client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"token":{}}`))
		})

		result := client.AuthenticateWithCredentials(context.Background(), "alice", "pw", Scope{})
		require.False(t, result.Success)
		require.True(t, result.Transport)
	})

	t.Run("garbled body", func(t *testing.T) {
		client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Subject-Token", "tok1")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("not json"))
		})

		result := client.AuthenticateWithCredentials(context.Background(), "alice", "pw", Scope{})
		require.False(t, result.Success)
		require.True(t, result.Transport)
	})
}

func TestScopePayloadPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		scope Scope
		want  any
	}{
		{
			name:  "project id wins over everything",
			scope: Scope{ProjectID: "p1", ProjectName: "Alpha", DomainID: "d1", DomainName: "acme"},
			want:  map[string]any{"project": map[string]any{"id": "p1"}},
		},
		{
			name:  "project name requires its domain qualifier",
			scope: Scope{ProjectName: "Alpha", DomainID: "d1"},
			want: map[string]any{"project": map[string]any{
				"name": "Alpha", "domain": map[string]any{"id": "d1"},
			}},
		},
		{
			name:  "domain id before domain name",
			scope: Scope{DomainID: "d1", DomainName: "acme"},
			want:  map[string]any{"domain": map[string]any{"id": "d1"}},
		},
		{
			name:  "domain name alone",
			scope: Scope{DomainName: "acme"},
			want:  map[string]any{"domain": map[string]any{"name": "acme"}},
		},
		{
			name:  "unscoped omits the scope key",
			scope: Scope{},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotScope any
			client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
				auth := decodeAuthRequest(t, r)
				gotScope = auth["scope"]

				w.Header().Set("X-Subject-Token", "tok1")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"token":{}}`))
			})

			result := client.AuthenticateWithCredentials(context.Background(), "alice", "pw", tt.scope)
			require.True(t, result.Success)
			require.Equal(t, tt.want, gotScope)
		})
	}
}
