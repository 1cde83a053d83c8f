package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type post struct {
	channelID string
	msg       slack.Message
}

type fakeTransport struct {
	posts      []post
	invited    [][]string
	joined     []string
	postErrFor map[string]error
	joinErrFor map[string]error
	inviteErr  error
}

func (f *fakeTransport) PostBlocks(_ context.Context, _, channelID string, msg slack.Message) error {
	if err := f.postErrFor[channelID]; err != nil {
		return err
	}
	f.posts = append(f.posts, post{channelID: channelID, msg: msg})
	return nil
}

func (f *fakeTransport) InviteMembers(_ context.Context, _, _ string, userIDs []string) error {
	if f.inviteErr != nil {
		return f.inviteErr
	}
	f.invited = append(f.invited, userIDs)
	return nil
}

func (f *fakeTransport) JoinChannel(_ context.Context, _, channelID string) error {
	if err := f.joinErrFor[channelID]; err != nil {
		return err
	}
	f.joined = append(f.joined, channelID)
	return nil
}

type fakeResponders struct {
	all    []string
	oncall string
	err    error
}

func (f *fakeResponders) RespondersWithOncall(context.Context, string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.all, nil
}

func (f *fakeResponders) Oncall(context.Context, string) (string, error) {
	return f.oncall, nil
}

type fakeBuilder struct{}

func (fakeBuilder) NewIncidentMessage(inc *domain.Incident, oncall string) slack.Message {
	return slack.Message{Text: "incident " + inc.ID + " oncall " + oncall}
}

func newCoordinator(transport *fakeTransport, responders *fakeResponders) *Coordinator {
	return NewCoordinator(transport, responders, fakeBuilder{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func incident() *domain.Incident {
	return &domain.Incident{TeamID: "T001", ID: "C100", Status: domain.IncidentOngoing}
}

func TestAnnounce_InvitesUsersAndMirrorsToChannels(t *testing.T) {
	transport := &fakeTransport{}
	responders := &fakeResponders{all: []string{"U111", "C222", "U333", "C444"}, oncall: "U333"}
	c := newCoordinator(transport, responders)

	require.NoError(t, c.Announce(context.Background(), incident()))

	// one batched invite for the user-kind responders
	require.Len(t, transport.invited, 1)
	assert.Equal(t, []string{"U111", "U333"}, transport.invited[0])

	assert.Equal(t, []string{"C222", "C444"}, transport.joined)

	// announcement in the incident channel plus one mirror per channel
	require.Len(t, transport.posts, 3)
	assert.Equal(t, "C100", transport.posts[0].channelID)
	assert.Equal(t, "incident C100 oncall U333", transport.posts[0].msg.Text)
	assert.Equal(t, "C222", transport.posts[1].channelID)
	assert.Equal(t, "C444", transport.posts[2].channelID)
}

func TestAnnounce_JoinFailureSkipsThatChannelOnly(t *testing.T) {
	transport := &fakeTransport{joinErrFor: map[string]error{"C222": errors.New("not_allowed")}}
	responders := &fakeResponders{all: []string{"C222", "C444"}}
	c := newCoordinator(transport, responders)

	require.NoError(t, c.Announce(context.Background(), incident()))

	assert.Equal(t, []string{"C444"}, transport.joined)
	require.Len(t, transport.posts, 2)
	assert.Equal(t, "C444", transport.posts[1].channelID)
}

func TestAnnounce_InviteFailureStillNotifiesChannels(t *testing.T) {
	transport := &fakeTransport{inviteErr: errors.New("rate_limited")}
	responders := &fakeResponders{all: []string{"U111", "C222"}}
	c := newCoordinator(transport, responders)

	require.NoError(t, c.Announce(context.Background(), incident()))

	assert.Empty(t, transport.invited)
	assert.Equal(t, []string{"C222"}, transport.joined)
}

func TestAnnounce_NoUsersMeansNoInviteCall(t *testing.T) {
	transport := &fakeTransport{}
	responders := &fakeResponders{all: []string{"C222"}}
	c := newCoordinator(transport, responders)

	require.NoError(t, c.Announce(context.Background(), incident()))
	assert.Empty(t, transport.invited)
}

func TestAnnounce_AnnouncementPostFailureAborts(t *testing.T) {
	transport := &fakeTransport{postErrFor: map[string]error{"C100": errors.New("channel_not_found")}}
	responders := &fakeResponders{all: []string{"U111"}}
	c := newCoordinator(transport, responders)

	err := c.Announce(context.Background(), incident())
	require.Error(t, err)
	assert.Empty(t, transport.invited)
}

func TestAnnounce_ResponderLookupFailureAfterAnnouncement(t *testing.T) {
	transport := &fakeTransport{}
	responders := &fakeResponders{err: errors.New("connection lost")}
	c := newCoordinator(transport, responders)

	err := c.Announce(context.Background(), incident())
	require.Error(t, err)
	require.Len(t, transport.posts, 1)
}
