package incident

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRepo struct {
	incidents []domain.Incident
	createErr error
}

func (f *fakeRepo) CreateIncident(_ context.Context, inc *domain.Incident) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.incidents = append(f.incidents, *inc)
	return nil
}

func (f *fakeRepo) GetIncident(_ context.Context, teamID, incidentID string) (*domain.Incident, error) {
	for i := range f.incidents {
		if f.incidents[i].TeamID == teamID && f.incidents[i].ID == incidentID {
			inc := f.incidents[i]
			return &inc, nil
		}
	}
	return nil, ErrIncidentNotFound
}

func (f *fakeRepo) ListIncidents(_ context.Context, teamID string) ([]domain.Incident, error) {
	out := make([]domain.Incident, 0)
	for _, inc := range f.incidents {
		if inc.TeamID == teamID {
			out = append(out, inc)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, teamID, incidentID string, status domain.IncidentStatus, resolution string) error {
	for i := range f.incidents {
		if f.incidents[i].TeamID == teamID && f.incidents[i].ID == incidentID {
			f.incidents[i].Status = status
			if resolution != "" {
				f.incidents[i].Resolution = resolution
			}
			return nil
		}
	}
	return ErrIncidentNotFound
}

type fakeTransport struct {
	channelID    string
	createErr    error
	createdNames []string
	topics       map[string]string
}

func (f *fakeTransport) CreateChannel(_ context.Context, _, name string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdNames = append(f.createdNames, name)
	return f.channelID, nil
}

func (f *fakeTransport) SetTopic(_ context.Context, _, channelID, topic string) error {
	if f.topics == nil {
		f.topics = make(map[string]string)
	}
	f.topics[channelID] = topic
	return nil
}

type fakeNotifier struct {
	announced []*domain.Incident
}

func (f *fakeNotifier) Announce(_ context.Context, inc *domain.Incident) error {
	f.announced = append(f.announced, inc)
	return nil
}

// fakeIntegrationStore backs the registry and the token manager.
type fakeIntegrationStore struct {
	authorized   []string
	integrations map[string]*domain.Integration
}

func (f *fakeIntegrationStore) AuthorizedProviders(context.Context, string) ([]string, error) {
	return f.authorized, nil
}

func (f *fakeIntegrationStore) GetIntegration(_ context.Context, _, provider string) (*domain.Integration, error) {
	return f.integrations[provider], nil
}

type fakeTicketProvider struct {
	resource *domain.Resource
	comments []string
}

func (f *fakeTicketProvider) Name() string { return "jira" }

func (f *fakeTicketProvider) RefreshCredential(_ context.Context, cred domain.OAuthCredential) (domain.OAuthCredential, error) {
	return cred, nil
}

func (f *fakeTicketProvider) CreateTicket(context.Context, *domain.Integration) *domain.Resource {
	return f.resource
}

func (f *fakeTicketProvider) AddComment(_ context.Context, _ *domain.Integration, _, comment string) integration.CommentResult {
	f.comments = append(f.comments, comment)
	return integration.CommentOK()
}

type fakeCallProvider struct {
	resource *domain.Resource
}

func (f *fakeCallProvider) Name() string { return "zoom" }

func (f *fakeCallProvider) RefreshCredential(_ context.Context, cred domain.OAuthCredential) (domain.OAuthCredential, error) {
	return cred, nil
}

func (f *fakeCallProvider) CreateCall(context.Context, *domain.Integration) *domain.Resource {
	return f.resource
}

func validIntegration(provider string, cap domain.Capability) *domain.Integration {
	return &domain.Integration{
		TeamID:     "T001",
		Provider:   provider,
		Capability: cap,
		AccountID:  "acme",
		Credential: domain.OAuthCredential{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
}

type fixture struct {
	svc       *Service
	repo      *fakeRepo
	transport *fakeTransport
	notifier  *fakeNotifier
	ticket    *fakeTicketProvider
	call      *fakeCallProvider
	store     *fakeIntegrationStore
}

func newFixture(authorized ...string) *fixture {
	store := &fakeIntegrationStore{
		authorized: authorized,
		integrations: map[string]*domain.Integration{
			"jira": validIntegration("jira", domain.CapabilityTicket),
			"zoom": validIntegration("zoom", domain.CapabilityCall),
		},
	}
	ticket := &fakeTicketProvider{
		resource: &domain.Resource{
			Provider:   "jira",
			Capability: domain.CapabilityTicket,
			Link:       "https://acme.atlassian.net/browse/WAT-1",
			Key:        "WAT-1",
		},
	}
	call := &fakeCallProvider{
		resource: &domain.Resource{
			Provider:   "zoom",
			Capability: domain.CapabilityCall,
			Link:       "https://zoom.us/j/123",
		},
	}

	f := &fixture{
		repo:      &fakeRepo{},
		transport: &fakeTransport{channelID: "C100"},
		notifier:  &fakeNotifier{},
		ticket:    ticket,
		call:      call,
		store:     store,
	}
	f.svc = NewService(
		f.repo,
		integration.NewRegistry(store, ticket, call),
		f.transport,
		f.notifier,
		time.UTC,
		discardLogger(),
	)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func TestCreateIncident_FullSequence(t *testing.T) {
	f := newFixture("jira", "zoom")

	inc, err := f.svc.CreateIncident(context.Background(), "T001", "Database Outage")
	require.NoError(t, err)

	assert.Equal(t, []string{"i-database-outag-05-01-24"}, f.transport.createdNames)
	assert.Equal(t, "C100", inc.ID)
	assert.Equal(t, domain.IncidentOngoing, inc.Status)
	require.True(t, inc.HasTicket())
	require.True(t, inc.HasCall())
	assert.Equal(t, "WAT-1", inc.Ticket.Key)

	require.Len(t, f.repo.incidents, 1)
	assert.Equal(t, "Database Outage", f.transport.topics["C100"])
	require.Len(t, f.notifier.announced, 1)
	assert.Equal(t, "C100", f.notifier.announced[0].ID)
}

func TestCreateIncident_UnnamedUsesSequenceAndCallTopic(t *testing.T) {
	f := newFixture("jira", "zoom")
	f.repo.incidents = []domain.Incident{
		{TeamID: "T001", ID: "C001", Status: domain.IncidentClosed, StartedAt: testNow.Add(-2 * time.Hour)},
		{TeamID: "T001", ID: "C002", Status: domain.IncidentClosed, StartedAt: testNow.Add(-time.Hour)},
	}

	inc, err := f.svc.CreateIncident(context.Background(), "T001", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"i-sereno-05-01-24_3"}, f.transport.createdNames)
	assert.Equal(t, "https://zoom.us/j/123", f.transport.topics["C100"])
	assert.Empty(t, inc.Name)
}

func TestCreateIncident_OnlyTicketConfigured(t *testing.T) {
	f := newFixture("jira")

	inc, err := f.svc.CreateIncident(context.Background(), "T001", "API down")
	require.NoError(t, err)

	assert.True(t, inc.HasTicket())
	assert.Nil(t, inc.Call)
	require.Len(t, f.repo.incidents, 1)
}

func TestCreateIncident_TicketFailureDoesNotAbort(t *testing.T) {
	f := newFixture("jira", "zoom")
	f.ticket.resource = nil

	inc, err := f.svc.CreateIncident(context.Background(), "T001", "API down")
	require.NoError(t, err)

	assert.Nil(t, inc.Ticket)
	assert.True(t, inc.HasCall())
	require.Len(t, f.repo.incidents, 1)
}

func TestCreateIncident_ChannelFailureAborts(t *testing.T) {
	f := newFixture("jira", "zoom")
	f.transport.createErr = errors.New("name taken")

	_, err := f.svc.CreateIncident(context.Background(), "T001", "API down")
	require.ErrorIs(t, err, ErrChannelCreationFailed)
	assert.Empty(t, f.repo.incidents)
	assert.Empty(t, f.notifier.announced)
}

func TestStartIncident_OngoingTodayBlocksCreation(t *testing.T) {
	f := newFixture("jira", "zoom")
	f.repo.incidents = []domain.Incident{
		{TeamID: "T001", ID: "C001", Status: domain.IncidentOngoing, StartedAt: testNow.Add(-time.Hour)},
	}

	result, err := f.svc.StartIncident(context.Background(), "T001", "another one")
	require.NoError(t, err)

	assert.Nil(t, result.Created)
	require.Len(t, result.OngoingToday, 1)
	assert.Equal(t, "C001", result.OngoingToday[0].ID)
	assert.Empty(t, f.transport.createdNames)
}

func TestStartIncident_YesterdaysOngoingDoesNotBlock(t *testing.T) {
	f := newFixture("jira", "zoom")
	f.repo.incidents = []domain.Incident{
		{TeamID: "T001", ID: "C001", Status: domain.IncidentOngoing, StartedAt: testNow.Add(-24 * time.Hour)},
	}

	result, err := f.svc.StartIncident(context.Background(), "T001", "new today")
	require.NoError(t, err)

	require.NotNil(t, result.Created)
	assert.Empty(t, result.OngoingToday)
}

func TestOngoingIncidents_IgnoresDate(t *testing.T) {
	f := newFixture()
	f.repo.incidents = []domain.Incident{
		{TeamID: "T001", ID: "C001", Status: domain.IncidentOngoing, StartedAt: testNow.Add(-72 * time.Hour)},
		{TeamID: "T001", ID: "C002", Status: domain.IncidentClosed, StartedAt: testNow},
	}

	ongoing, err := f.svc.OngoingIncidents(context.Background(), "T001")
	require.NoError(t, err)
	require.Len(t, ongoing, 1)
	assert.Equal(t, "C001", ongoing[0].ID)
}

func TestTodayIncidents(t *testing.T) {
	f := newFixture()
	f.repo.incidents = []domain.Incident{
		{TeamID: "T001", ID: "C001", Status: domain.IncidentClosed, StartedAt: testNow.Add(-time.Hour)},
		{TeamID: "T001", ID: "C002", Status: domain.IncidentOngoing, StartedAt: testNow.Add(-24 * time.Hour)},
	}

	today, err := f.svc.TodayIncidents(context.Background(), "T001")
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "C001", today[0].ID)
}

func TestLogComment(t *testing.T) {
	f := newFixture("jira", "zoom")
	f.repo.incidents = []domain.Incident{
		{
			TeamID: "T001", ID: "C100", Status: domain.IncidentOngoing, StartedAt: testNow,
			Ticket: &domain.Resource{Provider: "jira", Link: "https://acme.atlassian.net/browse/WAT-1", Key: "WAT-1"},
		},
	}

	outcome := f.svc.LogComment(context.Background(), "T001", "C100", "mitigation applied")
	assert.True(t, outcome.OK)
	assert.Equal(t, []string{"mitigation applied"}, f.ticket.comments)
}

func TestLogComment_NoIncident(t *testing.T) {
	f := newFixture("jira")

	outcome := f.svc.LogComment(context.Background(), "T001", "C999", "hello")
	assert.False(t, outcome.OK)
	assert.Contains(t, outcome.Message, "not tracking an incident")
}

func TestLogComment_NoTicket(t *testing.T) {
	f := newFixture("jira")
	f.repo.incidents = []domain.Incident{
		{TeamID: "T001", ID: "C100", Status: domain.IncidentOngoing, StartedAt: testNow},
	}

	outcome := f.svc.LogComment(context.Background(), "T001", "C100", "hello")
	assert.False(t, outcome.OK)
	assert.Contains(t, outcome.Message, "no ticket")
	assert.Empty(t, f.ticket.comments)
}

func TestCloseIncident(t *testing.T) {
	f := newFixture("jira")
	f.repo.incidents = []domain.Incident{
		{
			TeamID: "T001", ID: "C100", Status: domain.IncidentOngoing, StartedAt: testNow,
			Ticket: &domain.Resource{Provider: "jira", Link: "https://acme.atlassian.net/browse/WAT-1", Key: "WAT-1"},
		},
	}

	err := f.svc.CloseIncident(context.Background(), "T001", "C100", "rolled back deploy")
	require.NoError(t, err)

	assert.Equal(t, domain.IncidentClosed, f.repo.incidents[0].Status)
	assert.Equal(t, "rolled back deploy", f.repo.incidents[0].Resolution)
	assert.Equal(t, []string{"Resolution: rolled back deploy"}, f.ticket.comments)
}

func TestCloseIncident_NotFound(t *testing.T) {
	f := newFixture("jira")

	err := f.svc.CloseIncident(context.Background(), "T001", "C999", "")
	require.ErrorIs(t, err, ErrIncidentNotFound)
	assert.Empty(t, f.repo.incidents)
}
