package zoom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCredentialStore implements integration.CredentialStore.
type mockCredentialStore struct {
	saved map[string]domain.OAuthCredential
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{saved: make(map[string]domain.OAuthCredential)}
}

func (m *mockCredentialStore) SaveCredential(_ context.Context, _ string, provider string, cred domain.OAuthCredential) error {
	m.saved[provider] = cred
	return nil
}

func newTestProvider(serverURL string) *Provider {
	return NewProvider(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		AuthBaseURL:  serverURL,
		APIBaseURL:   serverURL,
	}, integration.NewTokenManager(newMockCredentialStore()))
}

func freshIntegration() *domain.Integration {
	return &domain.Integration{
		TeamID:     "T1",
		Provider:   "zoom",
		Capability: domain.CapabilityCall,
		Credential: domain.OAuthCredential{
			AccessToken:  "token",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
}

func TestCreateCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/me":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "zoom-user-1"})
		case "/users/zoom-user-1/meetings":
			var req meetingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, meetingTypeScheduled, req.Type)
			assert.True(t, req.Settings.JoinBeforeHost)

			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":       987654321,
				"join_url": "https://zoom.us/j/987654321",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	res := newTestProvider(server.URL).CreateCall(context.Background(), freshIntegration())

	require.NotNil(t, res)
	assert.Equal(t, "https://zoom.us/j/987654321", res.Link)
	assert.Equal(t, domain.CapabilityCall, res.Capability)
}

func TestCreateCall_MeetingCreationFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/me" {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "zoom-user-1"})
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	assert.Nil(t, newTestProvider(server.URL).CreateCall(context.Background(), freshIntegration()))
}

func TestCreateCall_UserLookupFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	assert.Nil(t, newTestProvider(server.URL).CreateCall(context.Background(), freshIntegration()))
}

func TestRefreshCredential_RotatesRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "zoom token exchange uses basic auth")
		assert.Equal(t, "cid", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	cred, err := newTestProvider(server.URL).RefreshCredential(context.Background(), domain.OAuthCredential{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	})

	require.NoError(t, err)
	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "new-refresh", cred.RefreshToken, "zoom issues a new refresh token")
}

func TestRefreshCredential_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).RefreshCredential(context.Background(), domain.OAuthCredential{
		RefreshToken: "old-refresh",
	})

	require.Error(t, err)
}
