package transport_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlab-dev/simlab/internal/transport"
)

// controllerStub is an httptest-backed controller that issues sequential
// bearer tokens and serves a handful of API paths.
type controllerStub struct {
	mux       *http.ServeMux
	authCalls int32
	lastToken atomic.Value
}

func newControllerStub(t *testing.T) (*controllerStub, *httptest.Server) {
	t.Helper()

	s := &controllerStub{mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/v0/authenticate", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&s.authCalls, 1)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "admin" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(fmt.Sprintf("token-%d", n))
	})

	server := httptest.NewServer(s.mux)
	t.Cleanup(server.Close)

	return s, server
}

func (s *controllerStub) handle(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	s.mux.HandleFunc("/api/v0/"+path, func(w http.ResponseWriter, r *http.Request) {
		s.lastToken.Store(r.Header.Get("Authorization"))
		handler(w, r)
	})
}

func TestClientAuthenticatesOnce(t *testing.T) {
	stub, server := newControllerStub(t)
	stub.handle("system_information", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"version": "2.9.0", "ready": true})
	})

	client, err := transport.NewClient(transport.ClientConfig{
		URL:      server.URL,
		Username: "admin",
		Password: "secret",
	})
	require.NoError(t, err)

	out := map[string]interface{}{}
	require.NoError(t, client.Get(context.Background(), "system_information", &out))
	require.NoError(t, client.Get(context.Background(), "system_information", &out))

	assert.Equal(t, "2.9.0", out["version"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.authCalls))
	assert.Equal(t, "Bearer token-1", stub.lastToken.Load())
}

func TestClientRetriesOnceOnUnauthorized(t *testing.T) {
	stub, server := newControllerStub(t)

	var calls int32
	stub.handle("labs", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]string{"lab-1"})
	})

	client, err := transport.NewClient(transport.ClientConfig{
		URL:      server.URL,
		Username: "admin",
		Password: "secret",
	})
	require.NoError(t, err)

	var labs []string
	require.NoError(t, client.Get(context.Background(), "labs", &labs))

	assert.Equal(t, []string{"lab-1"}, labs)
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.authCalls))
	assert.Equal(t, "Bearer token-2", stub.lastToken.Load())
}

func TestClientPreIssuedToken(t *testing.T) {
	stub, server := newControllerStub(t)
	stub.handle("labs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{})
	})

	// Opaque token, no credentials to fall back to.
	client, err := transport.NewClient(transport.ClientConfig{
		URL:   server.URL,
		Token: "opaque-token",
	})
	require.NoError(t, err)

	var labs []string
	require.NoError(t, client.Get(context.Background(), "labs", &labs))

	assert.Equal(t, int32(0), atomic.LoadInt32(&stub.authCalls))
	assert.Equal(t, "Bearer opaque-token", stub.lastToken.Load())
}

func TestClientExpiredJWTReauthenticates(t *testing.T) {
	stub, server := newControllerStub(t)
	stub.handle("labs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]string{})
	})

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	client, err := transport.NewClient(transport.ClientConfig{
		URL:      server.URL,
		Username: "admin",
		Password: "secret",
		Token:    expired,
	})
	require.NoError(t, err)

	var labs []string
	require.NoError(t, client.Get(context.Background(), "labs", &labs))

	// The expired token was never sent, the client re-authenticated first.
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.authCalls))
	assert.Equal(t, "Bearer token-1", stub.lastToken.Load())
}

func TestClientPostSendsJSONBody(t *testing.T) {
	stub, server := newControllerStub(t)

	var gotBody map[string]interface{}
	var gotContentType string
	stub.handle("labs", func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "lab-1"})
	})

	client, err := transport.NewClient(transport.ClientConfig{
		URL:      server.URL,
		Username: "admin",
		Password: "secret",
	})
	require.NoError(t, err)

	out := map[string]string{}
	err = client.Post(context.Background(), "labs", map[string]string{"title": "test"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]interface{}{"title": "test"}, gotBody)
	assert.Equal(t, "lab-1", out["id"])
}

func TestClientHTTPErrors(t *testing.T) {
	stub, server := newControllerStub(t)
	stub.handle("labs/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"description": "Lab not found"})
	})

	client, err := transport.NewClient(transport.ClientConfig{
		URL:      server.URL,
		Username: "admin",
		Password: "secret",
	})
	require.NoError(t, err)

	err = client.Get(context.Background(), "labs/missing", nil)
	require.Error(t, err)

	assert.True(t, transport.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, transport.ErrorStatus(err))
	assert.Contains(t, err.Error(), "Lab not found")
}

func TestNewClientConfigValidation(t *testing.T) {
	tests := map[string]struct {
		config transport.ClientConfig
		expErr bool
	}{
		"Username and password should be enough": {
			config: transport.ClientConfig{URL: "https://controller.test", Username: "admin", Password: "secret"},
		},
		"A pre-issued token should be enough": {
			config: transport.ClientConfig{URL: "https://controller.test", Token: "tok"},
		},
		"Missing URL should fail": {
			config: transport.ClientConfig{Username: "admin", Password: "secret"},
			expErr: true,
		},
		"Missing credentials should fail": {
			config: transport.ClientConfig{URL: "https://controller.test"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := transport.NewClient(test.config)

			if test.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
