package ogsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOGS serves the token, ui/config and me endpoints.
type fakeOGS struct {
	*httptest.Server
	tokenRequests atomic.Int32
	lastGrant     atomic.Value
}

func newFakeOGS(t *testing.T) *fakeOGS {
	t.Helper()
	f := &fakeOGS{}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.tokenRequests.Add(1)
		f.lastGrant.Store(r.PostForm.Get("grant_type"))
		if r.PostForm.Get("grant_type") == "password" && r.PostForm.Get("password") != "secret" {
			http.Error(w, "invalid grant", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-token",
			"refresh_token": "refresh-token",
			"token_type":    "Bearer",
			"expires_in":    2592000,
		})
	})
	mux.HandleFunc("/api/v1/ui/config/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{
			"chat_auth": "chat-auth",
			"notification_auth": "notification-auth",
			"user_jwt": "user-jwt",
			"user": {"id": 100, "username": "alice"}
		}`))
	})
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer fresh-token", "Bearer stored-token":
			w.Write([]byte(`{"id": 100, "username": "alice", "professional": false, "ranking": 31}`))
		default:
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeOGS) options() []Option {
	cfg := testConfig()
	cfg.BaseURL = f.URL
	return []Option{WithConfig(cfg), WithHTTPClient(f.Client())}
}

func TestClient_Login(t *testing.T) {
	srv := newFakeOGS(t)
	c := NewClient("client-id", "client-secret", srv.options()...)

	require.NoError(t, c.Login(context.Background(), "alice", "secret"))
	assert.Equal(t, "password", srv.lastGrant.Load())
	assert.Equal(t, Credentials{
		AccessToken:      "fresh-token",
		ChatAuth:         "chat-auth",
		NotificationAuth: "notification-auth",
		UserJWT:          "user-jwt",
		UserID:           100,
		Username:         "alice",
	}, c.Credentials())
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), c.ExpiresAt, time.Minute)
	assert.Zero(t, c.ExpiresIn)
}

func TestClient_Login_BadPassword(t *testing.T) {
	srv := newFakeOGS(t)
	c := NewClient("client-id", "", srv.options()...)

	err := c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Empty(t, c.AccessToken)
}

func TestClient_SaveAndLoad(t *testing.T) {
	srv := newFakeOGS(t)
	secretFile := filepath.Join(t.TempDir(), "secret.json")

	stored := NewClient("client-id", "client-secret")
	stored.Token = Token{
		AccessToken:  "stored-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(20 * 24 * time.Hour),
	}
	stored.Auth = Auth{ChatAuth: "chat-auth", NotificationAuth: "notification-auth", UserJWT: "user-jwt"}
	require.NoError(t, stored.Save(secretFile))

	info, err := os.Stat(secretFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	c, err := LoadClient(context.Background(), secretFile, srv.options()...)
	require.NoError(t, err)
	assert.Equal(t, int32(0), srv.tokenRequests.Load())
	assert.Equal(t, "stored-token", c.AccessToken)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, int64(100), c.UserID)
	assert.Equal(t, "chat-auth", c.Credentials().ChatAuth)
}

func TestClient_LoadRefreshesExpiringToken(t *testing.T) {
	srv := newFakeOGS(t)
	secretFile := filepath.Join(t.TempDir(), "secret.json")

	stored := NewClient("client-id", "client-secret")
	stored.Token = Token{
		AccessToken:  "stored-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, stored.Save(secretFile))

	c, err := LoadClient(context.Background(), secretFile, srv.options()...)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.tokenRequests.Load())
	assert.Equal(t, "refresh_token", srv.lastGrant.Load())
	assert.Equal(t, "fresh-token", c.AccessToken)
	assert.Equal(t, "user-jwt", c.UserJWT)

	data, err := os.ReadFile(secretFile)
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "fresh-token", saved["access_token"])
	assert.Equal(t, "chat-auth", saved["chat_auth"])
	assert.NotContains(t, saved, "expires_in")
}

func TestClient_RefreshWithoutRefreshToken(t *testing.T) {
	srv := newFakeOGS(t)
	c := NewClient("client-id", "", srv.options()...)

	refreshed, err := c.MaybeRefresh(context.Background(), time.Hour)
	require.Error(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, int32(0), srv.tokenRequests.Load())
}

func TestClient_Get(t *testing.T) {
	srv := newFakeOGS(t)
	c := NewClient("client-id", "", srv.options()...)
	c.AccessToken = "fresh-token"

	var me map[string]any
	require.NoError(t, c.Get(context.Background(), "/api/v1/me", nil, &me))
	assert.Equal(t, "alice", me["username"])

	assert.Error(t, c.Get(context.Background(), "/api/v1/me", nil, me), "non-pointer")
	assert.Error(t, c.Get(context.Background(), "/api/v1/missing", nil, &me))
}

func TestClient_Connect(t *testing.T) {
	srv := newFakeOGS(t)
	tr := &fakeTransport{}
	opts := append(srv.options(), WithDialer(&fakeDialer{transport: tr}))
	c := NewClient("client-id", "", opts...)
	require.NoError(t, c.Login(context.Background(), "alice", "secret"))

	s, err := c.Connect(context.Background(), nil)
	require.NoError(t, err)
	defer s.Disconnect()

	assert.Equal(t, SocketReady, s.State())
	auth := tr.FramesOf("authenticate")
	require.Len(t, auth, 1)
	assert.Equal(t, "chat-auth", auth[0].Payload["auth"])
	assert.Equal(t, "user-jwt", auth[0].Payload["jwt"])
	assert.Equal(t, float64(100), auth[0].Payload["player_id"])
}
