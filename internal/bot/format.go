package bot

import (
	"fmt"
	"strings"

	"github.com/piraidev/sereno/internal/domain"
	"github.com/piraidev/sereno/internal/slack"
)

// Formatter renders every user-facing message the bot posts. It also
// satisfies the notifier's MessageBuilder.
type Formatter struct{}

// NewIncidentMessage renders the announcement posted to the incident
// channel and mirrored to responder channels. Sections for absent
// capabilities are omitted entirely.
func (Formatter) NewIncidentMessage(inc *domain.Incident, oncall string) slack.Message {
	title := ":rotating_light: *New incident*"
	if inc.Name != "" {
		title = fmt.Sprintf(":rotating_light: *New incident: %s*", inc.Name)
	}

	blocks := []slack.Block{slack.Section(title)}
	blocks = append(blocks, slack.Section(fmt.Sprintf("Channel: <#%s>", inc.ID)))

	if inc.HasTicket() {
		blocks = append(blocks, slack.Section(fmt.Sprintf("Ticket: <%s|%s>", inc.Ticket.Link, inc.Ticket.Key)))
	}
	if inc.HasCall() {
		blocks = append(blocks, slack.Section(fmt.Sprintf("Call: <%s|Join the call>", inc.Call.Link)))
	}
	if oncall != "" {
		blocks = append(blocks, slack.Section(fmt.Sprintf("On-call: <@%s>", oncall)))
	}

	fallback := "New incident"
	if inc.Name != "" {
		fallback = "New incident: " + inc.Name
	}
	return slack.Message{Text: fallback, Blocks: blocks}
}

// ConfirmCreateMessage asks the user to confirm creating another incident
// when ongoing ones from today already exist.
func (Formatter) ConfirmCreateMessage(ongoing []domain.Incident, name string) slack.Message {
	var b strings.Builder
	b.WriteString("There are already ongoing incidents from today:\n")
	for _, inc := range ongoing {
		b.WriteString(fmt.Sprintf("• <#%s>", inc.ID))
		if inc.Name != "" {
			b.WriteString(" — " + inc.Name)
		}
		b.WriteString("\n")
	}
	b.WriteString("Create another one?")

	return slack.Message{
		Text: "Create another incident?",
		Blocks: []slack.Block{
			slack.Section(b.String()),
			{
				Type: "actions",
				Elements: []slack.Element{
					{
						Type:     "button",
						ActionID: actionConfirmCreate,
						Style:    "danger",
						Text:     slack.Plain("Create anyway"),
						Value:    name,
					},
					{
						Type:     "button",
						ActionID: actionCancelCreate,
						Text:     slack.Plain("Cancel"),
					},
				},
			},
		},
	}
}

// IncidentListMessage renders the ongoing incident list for a mention.
func (Formatter) IncidentListMessage(ongoing []domain.Incident) slack.Message {
	if len(ongoing) == 0 {
		return slack.Message{Text: "No ongoing incidents. :tada:"}
	}

	var b strings.Builder
	b.WriteString("*Ongoing incidents:*\n")
	for _, inc := range ongoing {
		b.WriteString(fmt.Sprintf("• <#%s>", inc.ID))
		if inc.Name != "" {
			b.WriteString(" — " + inc.Name)
		}
		if inc.HasTicket() {
			b.WriteString(fmt.Sprintf(" (<%s|%s>)", inc.Ticket.Link, inc.Ticket.Key))
		}
		b.WriteString("\n")
	}
	return slack.Message{Text: "Ongoing incidents", Blocks: []slack.Block{slack.Section(b.String())}}
}

// RespondersMessage renders the responder list.
func (Formatter) RespondersMessage(responders []string, oncall string) slack.Message {
	var b strings.Builder
	if len(responders) == 0 {
		b.WriteString("No responders configured.")
	} else {
		b.WriteString("*Responders:*\n")
		for _, id := range responders {
			r := domain.Responder{ID: id}
			if r.IsChannel() {
				b.WriteString(fmt.Sprintf("• <#%s>\n", id))
			} else {
				b.WriteString(fmt.Sprintf("• <@%s>\n", id))
			}
		}
	}
	if oncall != "" {
		b.WriteString(fmt.Sprintf("\nOn-call: <@%s>", oncall))
	}
	return slack.Message{Text: "Responders", Blocks: []slack.Block{slack.Section(b.String())}}
}

// RegisterMessage renders the provider authorization links, the app install
// link and, when any provider is already connected, the current list.
func (Formatter) RegisterMessage(jiraURL, zoomURL, installURL string, connected []string) slack.Message {
	text := fmt.Sprintf(
		"Connect your tools:\n• <%s|Authorize Jira> — tickets\n• <%s|Authorize Zoom> — calls\n• <%s|Install Sereno> — add the bot to another workspace",
		jiraURL, zoomURL, installURL,
	)
	blocks := []slack.Block{slack.Section(text)}
	if len(connected) > 0 {
		blocks = append(blocks, slack.Divider(),
			slack.Section("Already connected: "+strings.Join(connected, ", ")))
	}
	return slack.Message{Text: "Connect your tools", Blocks: blocks}
}

// HelpMessage lists what the bot understands.
func (Formatter) HelpMessage() slack.Message {
	text := strings.Join([]string{
		"*Mentions:*",
		"• `new incident [name]` — open an incident",
		"• `create ticket` / `create call` — create a single resource",
		"• `get call` — link to this incident's call",
		"• `ongoing incidents` — list open incidents",
		"• `who is oncall` — show the on-call",
		"• `alive` — health check",
		"",
		"*Commands:*",
		"• `/sereno register` — connect Jira and Zoom",
		"• `/sereno responders add|remove|list [@user|#channel ...]`",
		"• `/sereno oncall [@user]` — show or set the on-call",
		"• `/sereno comment <text>` — log a comment on this incident's ticket",
		"• `/sereno close` — close this incident",
	}, "\n")
	return slack.Message{Text: "Sereno help", Blocks: []slack.Block{slack.Section(text)}}
}

// CloseModal builds the resolution modal opened by /sereno close. The
// incident channel id travels in private metadata.
func (Formatter) CloseModal(channelID string) slack.View {
	return slack.View{
		Type:            "modal",
		CallbackID:      callbackCloseIncident,
		PrivateMetadata: channelID,
		Title:           slack.Plain("Close incident"),
		Submit:          slack.Plain("Close"),
		Close:           slack.Plain("Cancel"),
		Blocks: []slack.Block{
			{
				Type:    "input",
				BlockID: blockResolution,
				Label:   slack.Plain("Resolution"),
				Element: &slack.Element{
					Type:        "plain_text_input",
					ActionID:    actionResolution,
					Multiline:   true,
					Placeholder: slack.Plain("What fixed it?"),
				},
			},
		},
	}
}
