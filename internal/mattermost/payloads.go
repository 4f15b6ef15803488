package mattermost

// SlashCommand is the form Mattermost posts for a slash command.
type SlashCommand struct {
	Token       string `form:"token"`
	TeamID      string `form:"team_id"`
	ChannelID   string `form:"channel_id"`
	UserID      string `form:"user_id"`
	UserName    string `form:"user_name"`
	Command     string `form:"command"`
	Text        string `form:"text"`
	TriggerID   string `form:"trigger_id"`
	ResponseURL string `form:"response_url"`
}

// ActionRequest is the Mattermost interactive action request.
type ActionRequest struct {
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	ChannelID string         `json:"channel_id"`
	PostID    string         `json:"post_id"`
	TriggerID string         `json:"trigger_id"`
	Type      string         `json:"type"`
	Context   map[string]any `json:"context"`
}

// Token returns the signed context token carried by every button.
func (a *ActionRequest) Token() string {
	if a.Context == nil {
		return ""
	}
	s, _ := a.Context[contextTokenKey].(string)
	return s
}

// DialogSubmission is the Mattermost dialog submission.
type DialogSubmission struct {
	Type       string            `json:"type"`
	CallbackID string            `json:"callback_id"`
	State      string            `json:"state"`
	UserID     string            `json:"user_id"`
	ChannelID  string            `json:"channel_id"`
	TeamID     string            `json:"team_id"`
	Submission map[string]string `json:"submission"`
	Cancelled  bool              `json:"cancelled"`
}

// SlashResponse is the response to a slash command.
type SlashResponse struct {
	ResponseType string       `json:"response_type"`
	Text         string       `json:"text,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// ActionResponse is the response to an interactive action.
type ActionResponse struct {
	Update        *ActionUpdate `json:"update,omitempty"`
	EphemeralText string        `json:"ephemeral_text,omitempty"`
}

// ActionUpdate replaces the clicked post.
type ActionUpdate struct {
	Message string `json:"message"`
	Props   *Props `json:"props,omitempty"`
}

// DialogResponse reports field errors back to the open dialog.
type DialogResponse struct {
	Error  string            `json:"error,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}
