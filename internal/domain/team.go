package domain

// TeamSettings is the per-team configuration record: the workspace bot
// token, the responder set, the on-call designee and the list of providers
// the team has gone through OAuth with.
type TeamSettings struct {
	TeamID              string   `json:"team_id"`
	BotToken            string   `json:"-"`
	Responders          []string `json:"responders"`
	Oncall              string   `json:"oncall"`
	AuthorizedProviders []string `json:"authorized_providers"`
}
