// Package bot is the Slack-facing surface: event, slash-command and
// interaction webhooks, routed to the incident and team services.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/incident"
	"github.com/piraidev/sereno/internal/integration"
	"github.com/piraidev/sereno/internal/oauth"
	"github.com/piraidev/sereno/internal/pkg/ctxlog"
	"github.com/piraidev/sereno/internal/pkg/httputil"
	"github.com/piraidev/sereno/internal/slack"
)

// Interactive component identifiers.
const (
	actionConfirmCreate   = "incident_create_confirm"
	actionCancelCreate    = "incident_create_cancel"
	callbackCloseIncident = "incident_close"
	blockResolution       = "resolution_block"
	actionResolution      = "resolution_input"
)

const apologyMessage = "Something went wrong on my side. Please try again."

// IncidentService is the incident surface the bot drives.
type IncidentService interface {
	StartIncident(ctx context.Context, teamID, name string) (*incident.StartResult, error)
	CreateIncident(ctx context.Context, teamID, name string) (*domain.Incident, error)
	CreateTicketFor(ctx context.Context, teamID string) (*domain.Resource, error)
	CreateCallFor(ctx context.Context, teamID string) (*domain.Resource, error)
	OngoingIncidents(ctx context.Context, teamID string) ([]domain.Incident, error)
	GetIncident(ctx context.Context, teamID, incidentID string) (*domain.Incident, error)
	LogComment(ctx context.Context, teamID, incidentID, text string) incident.CommentOutcome
	CloseIncident(ctx context.Context, teamID, incidentID, resolution string) error
}

// TeamService is the settings surface the bot drives.
type TeamService interface {
	AddResponders(ctx context.Context, teamID string, ids []string) ([]string, error)
	RemoveResponders(ctx context.Context, teamID string, ids []string) ([]string, error)
	Responders(ctx context.Context, teamID string) ([]string, error)
	Oncall(ctx context.Context, teamID string) (string, error)
	SetOncall(ctx context.Context, teamID, userID string) error
	Settings(ctx context.Context, teamID string) (*domain.TeamSettings, error)
}

// Transport is the subset of the chat client the bot posts through.
type Transport interface {
	PostMessage(ctx context.Context, teamID, channelID, text string) error
	PostBlocks(ctx context.Context, teamID, channelID string, msg slack.Message) error
	OpenView(ctx context.Context, teamID, triggerID string, view slack.View) error
	Respond(ctx context.Context, responseURL, text string) error
	RespondBlocks(ctx context.Context, responseURL string, msg slack.Message) error
	DeleteOriginal(ctx context.Context, responseURL string) error
}

// Handler handles Slack webhook requests.
type Handler struct {
	incidents IncidentService
	teams     TeamService
	transport Transport
	links     *oauth.Links
	format    Formatter
	logger    *slog.Logger
}

// NewHandler creates a new bot handler.
func NewHandler(incidents IncidentService, teams TeamService, transport Transport, links *oauth.Links, logger *slog.Logger) *Handler {
	return &Handler{
		incidents: incidents,
		teams:     teams,
		transport: transport,
		links:     links,
		logger:    logger,
	}
}

// RegisterRoutes registers the Slack webhook routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.Events)
	r.Post("/commands", h.Commands)
	r.Post("/interactions", h.Interactions)
}

type eventEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	TeamID    string `json:"team_id"`
	Event     struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Channel string `json:"channel"`
		User    string `json:"user"`
	} `json:"event"`
}

// Events handles the Slack Events API: URL verification handshakes and
// app_mention callbacks.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var envelope eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		httputil.Text(w, http.StatusBadRequest, "malformed event")
		return
	}

	switch envelope.Type {
	case "url_verification":
		httputil.JSON(w, http.StatusOK, map[string]string{"challenge": envelope.Challenge})
		return
	case "event_callback":
		if envelope.Event.Type == "app_mention" {
			h.handleMention(r.Context(), envelope.TeamID, envelope.Event.Channel, envelope.Event.Text)
		}
	}
	w.WriteHeader(http.StatusOK)
}

var botMention = regexp.MustCompile(`<@[A-Z0-9]+>`)

func (h *Handler) handleMention(ctx context.Context, teamID, channelID, text string) {
	logger := ctxlog.FromContext(ctx)
	cleaned := strings.TrimSpace(botMention.ReplaceAllString(text, ""))
	lowered := strings.ToLower(cleaned)

	var err error
	switch {
	case lowered == "alive":
		err = h.transport.PostMessage(ctx, teamID, channelID, "I'm alive. :robot_face:")
	case strings.HasPrefix(lowered, "create ticket"):
		err = h.mentionCreateTicket(ctx, teamID, channelID)
	case strings.HasPrefix(lowered, "create call"):
		err = h.mentionCreateCall(ctx, teamID, channelID)
	case strings.HasPrefix(lowered, "get call"):
		err = h.mentionGetCall(ctx, teamID, channelID)
	case strings.HasPrefix(lowered, "new incident"), strings.HasPrefix(lowered, "create incident"):
		name := strings.TrimSpace(trimCommand(cleaned, "new incident", "create incident"))
		err = h.mentionNewIncident(ctx, teamID, channelID, name)
	case strings.Contains(lowered, "oncall"), strings.Contains(lowered, "on-call"):
		err = h.mentionOncall(ctx, teamID, channelID)
	case strings.Contains(lowered, "ongoing"):
		err = h.mentionOngoing(ctx, teamID, channelID)
	default:
		err = h.transport.PostBlocks(ctx, teamID, channelID, h.format.HelpMessage())
	}

	if err != nil {
		logger.Error("mention handling failed",
			"team_id", teamID, "channel_id", channelID, "text", lowered, "error", err)
		if postErr := h.transport.PostMessage(ctx, teamID, channelID, apologyMessage); postErr != nil {
			logger.Error("could not deliver failure message",
				"team_id", teamID, "channel_id", channelID, "error", postErr)
		}
	}
}

func (h *Handler) mentionCreateTicket(ctx context.Context, teamID, channelID string) error {
	res, err := h.incidents.CreateTicketFor(ctx, teamID)
	if errors.Is(err, integration.ErrIntegrationUnavailable) {
		return h.transport.PostMessage(ctx, teamID, channelID,
			"No ticket integration is connected. Run `/sereno register` first.")
	}
	if err != nil {
		return h.transport.PostMessage(ctx, teamID, channelID, "I couldn't create a ticket right now.")
	}
	return h.transport.PostMessage(ctx, teamID, channelID,
		fmt.Sprintf("Ticket created: <%s|%s>", res.Link, res.Key))
}

func (h *Handler) mentionCreateCall(ctx context.Context, teamID, channelID string) error {
	res, err := h.incidents.CreateCallFor(ctx, teamID)
	if errors.Is(err, integration.ErrIntegrationUnavailable) {
		return h.transport.PostMessage(ctx, teamID, channelID,
			"No call integration is connected. Run `/sereno register` first.")
	}
	if err != nil {
		return h.transport.PostMessage(ctx, teamID, channelID, "I couldn't create a call right now.")
	}
	return h.transport.PostMessage(ctx, teamID, channelID,
		fmt.Sprintf("Call created: <%s|Join the call>", res.Link))
}

func (h *Handler) mentionGetCall(ctx context.Context, teamID, channelID string) error {
	inc, err := h.incidents.GetIncident(ctx, teamID, channelID)
	if errors.Is(err, incident.ErrIncidentNotFound) {
		return h.transport.PostMessage(ctx, teamID, channelID, "This channel is not tracking an incident.")
	}
	if err != nil {
		return err
	}
	if !inc.HasCall() {
		return h.transport.PostMessage(ctx, teamID, channelID, "This incident has no call.")
	}
	return h.transport.PostMessage(ctx, teamID, channelID,
		fmt.Sprintf("Call: <%s|Join the call>", inc.Call.Link))
}

func (h *Handler) mentionNewIncident(ctx context.Context, teamID, channelID, name string) error {
	result, err := h.incidents.StartIncident(ctx, teamID, name)
	if err != nil {
		return err
	}
	if len(result.OngoingToday) > 0 {
		return h.transport.PostBlocks(ctx, teamID, channelID,
			h.format.ConfirmCreateMessage(result.OngoingToday, name))
	}
	return h.transport.PostMessage(ctx, teamID, channelID,
		fmt.Sprintf("Incident channel <#%s> created.", result.Created.ID))
}

func (h *Handler) mentionOncall(ctx context.Context, teamID, channelID string) error {
	oncall, err := h.teams.Oncall(ctx, teamID)
	if err != nil {
		return err
	}
	if oncall == "" {
		return h.transport.PostMessage(ctx, teamID, channelID, "No on-call is configured.")
	}
	return h.transport.PostMessage(ctx, teamID, channelID, fmt.Sprintf("<@%s> is on call.", oncall))
}

func (h *Handler) mentionOngoing(ctx context.Context, teamID, channelID string) error {
	ongoing, err := h.incidents.OngoingIncidents(ctx, teamID)
	if err != nil {
		return err
	}
	return h.transport.PostBlocks(ctx, teamID, channelID, h.format.IncidentListMessage(ongoing))
}

// Commands handles the /sereno slash command.
func (h *Handler) Commands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httputil.Text(w, http.StatusBadRequest, "malformed command")
		return
	}

	teamID := r.PostForm.Get("team_id")
	channelID := r.PostForm.Get("channel_id")
	userID := r.PostForm.Get("user_id")
	triggerID := r.PostForm.Get("trigger_id")
	responseURL := r.PostForm.Get("response_url")
	text := strings.TrimSpace(r.PostForm.Get("text"))

	sub, rest := splitCommand(text)

	var err error
	switch sub {
	case "register":
		err = h.commandRegister(ctx, teamID, userID, responseURL)
	case "responders":
		err = h.commandResponders(ctx, teamID, responseURL, rest)
	case "oncall":
		err = h.commandOncall(ctx, teamID, responseURL, rest)
	case "comment":
		outcome := h.incidents.LogComment(ctx, teamID, channelID, rest)
		err = h.transport.Respond(ctx, responseURL, outcome.Message)
	case "close":
		err = h.transport.OpenView(ctx, teamID, triggerID, h.format.CloseModal(channelID))
	default:
		err = h.transport.Respond(ctx, responseURL, h.format.HelpMessage().Text+
			"\nSay `@Sereno help` in a channel for the full list.")
	}

	if err != nil {
		logger.Error("command handling failed",
			"team_id", teamID, "command", sub, "error", err)
		if respErr := h.transport.Respond(ctx, responseURL, apologyMessage); respErr != nil {
			logger.Error("could not deliver failure message", "team_id", teamID, "error", respErr)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) commandRegister(ctx context.Context, teamID, userID, responseURL string) error {
	jiraURL, err := h.links.Jira(teamID, userID)
	if err != nil {
		return err
	}
	zoomURL, err := h.links.Zoom(teamID, userID)
	if err != nil {
		return err
	}

	settings, err := h.teams.Settings(ctx, teamID)
	if err != nil {
		return err
	}

	msg := h.format.RegisterMessage(jiraURL, zoomURL, h.links.SlackInstall(),
		settings.AuthorizedProviders)
	return h.transport.RespondBlocks(ctx, responseURL, msg)
}

func (h *Handler) commandResponders(ctx context.Context, teamID, responseURL, rest string) error {
	verb, mentionText := splitCommand(rest)
	ids := parseMentionIDs(mentionText)

	switch verb {
	case "add":
		if len(ids) == 0 {
			return h.transport.Respond(ctx, responseURL, "Mention the users or channels to add.")
		}
		updated, err := h.teams.AddResponders(ctx, teamID, ids)
		if err != nil {
			return err
		}
		return h.transport.Respond(ctx, responseURL,
			fmt.Sprintf("Responders updated (%d total).", len(updated)))
	case "remove":
		if len(ids) == 0 {
			return h.transport.Respond(ctx, responseURL, "Mention the users or channels to remove.")
		}
		updated, err := h.teams.RemoveResponders(ctx, teamID, ids)
		if err != nil {
			return err
		}
		return h.transport.Respond(ctx, responseURL,
			fmt.Sprintf("Responders updated (%d total).", len(updated)))
	default: // list
		responders, err := h.teams.Responders(ctx, teamID)
		if err != nil {
			return err
		}
		oncall, err := h.teams.Oncall(ctx, teamID)
		if err != nil {
			return err
		}
		return h.transport.Respond(ctx, responseURL,
			h.format.RespondersMessage(responders, oncall).Blocks[0].Text.Text)
	}
}

func (h *Handler) commandOncall(ctx context.Context, teamID, responseURL, rest string) error {
	ids := parseMentionIDs(rest)
	if len(ids) == 0 {
		oncall, err := h.teams.Oncall(ctx, teamID)
		if err != nil {
			return err
		}
		if oncall == "" {
			return h.transport.Respond(ctx, responseURL, "No on-call is configured.")
		}
		return h.transport.Respond(ctx, responseURL, fmt.Sprintf("<@%s> is on call.", oncall))
	}

	if err := h.teams.SetOncall(ctx, teamID, ids[0]); err != nil {
		return h.transport.Respond(ctx, responseURL, "The on-call must be a user.")
	}
	return h.transport.Respond(ctx, responseURL, fmt.Sprintf("<@%s> is now on call.", ids[0]))
}

type interactionPayload struct {
	Type string `json:"type"`
	Team struct {
		ID string `json:"id"`
	} `json:"team"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	ResponseURL string `json:"response_url"`
	Actions     []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
	View struct {
		CallbackID      string `json:"callback_id"`
		PrivateMetadata string `json:"private_metadata"`
		State           struct {
			Values map[string]map[string]struct {
				Value string `json:"value"`
			} `json:"values"`
		} `json:"state"`
	} `json:"view"`
}

// Interactions handles button clicks and modal submissions.
func (h *Handler) Interactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httputil.Text(w, http.StatusBadRequest, "malformed interaction")
		return
	}

	var payload interactionPayload
	if err := json.Unmarshal([]byte(r.PostForm.Get("payload")), &payload); err != nil {
		httputil.Text(w, http.StatusBadRequest, "malformed interaction payload")
		return
	}

	switch payload.Type {
	case "block_actions":
		h.handleBlockAction(ctx, payload)
	case "view_submission":
		if payload.View.CallbackID == callbackCloseIncident {
			h.handleCloseSubmission(ctx, payload)
		}
	default:
		logger.Debug("ignoring interaction", "type", payload.Type)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleBlockAction(ctx context.Context, payload interactionPayload) {
	logger := ctxlog.FromContext(ctx)
	if len(payload.Actions) == 0 {
		return
	}
	teamID := payload.Team.ID
	action := payload.Actions[0]

	switch action.ActionID {
	case actionConfirmCreate:
		if err := h.transport.DeleteOriginal(ctx, payload.ResponseURL); err != nil {
			logger.Debug("could not delete confirm prompt", "error", err)
		}
		inc, err := h.incidents.CreateIncident(ctx, teamID, action.Value)
		if err != nil {
			logger.Error("confirmed incident creation failed", "team_id", teamID, "error", err)
			if respErr := h.transport.Respond(ctx, payload.ResponseURL, apologyMessage); respErr != nil {
				logger.Error("could not deliver failure message", "team_id", teamID, "error", respErr)
			}
			return
		}
		if err := h.transport.Respond(ctx, payload.ResponseURL,
			fmt.Sprintf("Incident channel <#%s> created.", inc.ID)); err != nil {
			logger.Debug("could not confirm creation", "error", err)
		}
	case actionCancelCreate:
		if err := h.transport.DeleteOriginal(ctx, payload.ResponseURL); err != nil {
			logger.Debug("could not delete confirm prompt", "error", err)
		}
	}
}

func (h *Handler) handleCloseSubmission(ctx context.Context, payload interactionPayload) {
	logger := ctxlog.FromContext(ctx)
	teamID := payload.Team.ID
	channelID := payload.View.PrivateMetadata
	resolution := payload.View.State.Values[blockResolution][actionResolution].Value

	err := h.incidents.CloseIncident(ctx, teamID, channelID, resolution)
	switch {
	case errors.Is(err, incident.ErrIncidentNotFound):
		h.postOrLog(ctx, teamID, channelID, "This channel is not tracking an incident.")
	case err != nil:
		logger.Error("incident close failed",
			"team_id", teamID, "incident_id", channelID, "error", err)
		h.postOrLog(ctx, teamID, channelID, apologyMessage)
	default:
		h.postOrLog(ctx, teamID, channelID, "Incident closed. :white_check_mark:")
	}
}

func (h *Handler) postOrLog(ctx context.Context, teamID, channelID, text string) {
	if err := h.transport.PostMessage(ctx, teamID, channelID, text); err != nil {
		ctxlog.FromContext(ctx).Error("could not post message",
			"team_id", teamID, "channel_id", channelID, "error", err)
	}
}

var mentionID = regexp.MustCompile(`<[@#]([A-Z0-9]+)(?:\|[^>]*)?>`)

// parseMentionIDs extracts user and channel IDs from escaped Slack
// mentions like <@U123456|name> and <#C123456|name>.
func parseMentionIDs(text string) []string {
	matches := mentionID.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

func splitCommand(text string) (head, rest string) {
	head, rest, _ = strings.Cut(strings.TrimSpace(text), " ")
	return head, strings.TrimSpace(rest)
}

func trimCommand(text string, prefixes ...string) string {
	lowered := strings.ToLower(text)
	for _, p := range prefixes {
		if strings.HasPrefix(lowered, p) {
			return text[len(p):]
		}
	}
	return text
}
