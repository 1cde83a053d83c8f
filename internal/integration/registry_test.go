package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore implements Store for testing.
type mockStore struct {
	authorized   []string
	integrations map[string]*domain.Integration
	authErr      error
	getErr       error
}

func newMockStore() *mockStore {
	return &mockStore{integrations: make(map[string]*domain.Integration)}
}

func (m *mockStore) AuthorizedProviders(_ context.Context, _ string) ([]string, error) {
	return m.authorized, m.authErr
}

func (m *mockStore) GetIntegration(_ context.Context, _ string, provider string) (*domain.Integration, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.integrations[provider], nil
}

// mockTicketProvider implements TicketProvider for testing.
type mockTicketProvider struct{}

func (m *mockTicketProvider) Name() string { return "jira" }
func (m *mockTicketProvider) RefreshCredential(_ context.Context, c domain.OAuthCredential) (domain.OAuthCredential, error) {
	return c, nil
}
func (m *mockTicketProvider) CreateTicket(_ context.Context, _ *domain.Integration) *domain.Resource {
	return nil
}
func (m *mockTicketProvider) AddComment(_ context.Context, _ *domain.Integration, _, _ string) CommentResult {
	return CommentOK()
}

// mockCallProvider implements CallProvider for testing.
type mockCallProvider struct{}

func (m *mockCallProvider) Name() string { return "zoom" }
func (m *mockCallProvider) RefreshCredential(_ context.Context, c domain.OAuthCredential) (domain.OAuthCredential, error) {
	return c, nil
}
func (m *mockCallProvider) CreateCall(_ context.Context, _ *domain.Integration) *domain.Resource {
	return nil
}

func validCredential() domain.OAuthCredential {
	return domain.OAuthCredential{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func newTestRegistry(store Store) *Registry {
	return NewRegistry(store, &mockTicketProvider{}, &mockCallProvider{})
}

func TestRegistry_Ticket_NotAuthorized(t *testing.T) {
	store := newMockStore()
	store.authorized = []string{"zoom"}

	_, err := newTestRegistry(store).Ticket(context.Background(), "T1")

	require.ErrorIs(t, err, ErrIntegrationUnavailable)
}

func TestRegistry_Ticket_MissingCredential(t *testing.T) {
	store := newMockStore()
	store.authorized = []string{"jira"}
	// authorized but nothing stored

	_, err := newTestRegistry(store).Ticket(context.Background(), "T1")

	require.ErrorIs(t, err, ErrIntegrationUnavailable)
}

func TestRegistry_Ticket_InvalidCredential(t *testing.T) {
	store := newMockStore()
	store.authorized = []string{"jira"}
	store.integrations["jira"] = &domain.Integration{
		TeamID:   "T1",
		Provider: "jira",
		// no account id, credential incomplete
		Credential: domain.OAuthCredential{AccessToken: "a"},
	}

	_, err := newTestRegistry(store).Ticket(context.Background(), "T1")

	require.ErrorIs(t, err, ErrIntegrationUnavailable)
}

func TestRegistry_Ticket_Valid(t *testing.T) {
	store := newMockStore()
	store.authorized = []string{"jira"}
	store.integrations["jira"] = &domain.Integration{
		TeamID:     "T1",
		Provider:   "jira",
		AccountID:  "acme",
		Credential: validCredential(),
	}

	binding, err := newTestRegistry(store).Ticket(context.Background(), "T1")

	require.NoError(t, err)
	assert.Equal(t, "jira", binding.Provider.Name())
	assert.Equal(t, domain.CapabilityTicket, binding.Integration.Capability)
}

func TestRegistry_ForTeam(t *testing.T) {
	t.Run("both configured", func(t *testing.T) {
		store := newMockStore()
		store.authorized = []string{"jira", "zoom"}
		store.integrations["jira"] = &domain.Integration{
			TeamID: "T1", Provider: "jira", AccountID: "acme", Credential: validCredential(),
		}
		store.integrations["zoom"] = &domain.Integration{
			TeamID: "T1", Provider: "zoom", Credential: validCredential(),
		}

		set, err := newTestRegistry(store).ForTeam(context.Background(), "T1")

		require.NoError(t, err)
		assert.NotNil(t, set.Ticket)
		assert.NotNil(t, set.Call)
	})

	t.Run("only ticket configured", func(t *testing.T) {
		store := newMockStore()
		store.authorized = []string{"jira"}
		store.integrations["jira"] = &domain.Integration{
			TeamID: "T1", Provider: "jira", AccountID: "acme", Credential: validCredential(),
		}

		set, err := newTestRegistry(store).ForTeam(context.Background(), "T1")

		require.NoError(t, err)
		assert.NotNil(t, set.Ticket)
		assert.Nil(t, set.Call)
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		store := newMockStore()
		store.authErr = errors.New("db down")

		_, err := newTestRegistry(store).ForTeam(context.Background(), "T1")

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrIntegrationUnavailable)
	})
}
