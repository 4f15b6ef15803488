package mattermost

import (
	"fmt"

	"attendance/internal/service"
)

const contextTokenKey = "token"

// ActionPath is the route prefix Mattermost calls back for button clicks.
const ActionPath = "/api/mattermost/actions/"

// Signer seals the button payload so callbacks cannot be forged or replayed by
// another user.
type Signer interface {
	SignAction(action, value, userID string) (string, error)
}

// Renderer turns cards into attachments with signed buttons.
type Renderer struct {
	botURL string
	signer Signer
}

func NewRenderer(botURL string, signer Signer) *Renderer {
	return &Renderer{botURL: botURL, signer: signer}
}

// Attachments renders text and actions for userID. No actions yields an attachment
// without buttons, which is how resolved cards lose theirs.
func (r *Renderer) Attachments(text string, actions []service.CardAction, userID string) ([]Attachment, error) {
	att := Attachment{Text: text, Color: "#1c58d9"}
	for i, a := range actions {
		token, err := r.signer.SignAction(a.Name, a.Value, userID)
		if err != nil {
			return nil, fmt.Errorf("sign action: %w", err)
		}
		att.Actions = append(att.Actions, Action{
			ID:    fmt.Sprintf("%s%d", a.Name, i),
			Name:  a.Label,
			Type:  "button",
			Style: a.Style,
			Integration: Integration{
				URL:     r.botURL + ActionPath + a.Name,
				Context: map[string]any{contextTokenKey: token},
			},
		})
	}
	if len(actions) == 0 {
		att.Color = "#8a8a8a"
	}
	return []Attachment{att}, nil
}

// Props is Attachments wrapped for a post body.
func (r *Renderer) Props(card service.Card, userID string) (Props, error) {
	atts, err := r.Attachments(card.Text, card.Actions, userID)
	if err != nil {
		return Props{}, err
	}
	return Props{Attachments: atts}, nil
}
