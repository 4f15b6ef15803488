package service

import (
	"context"
	"time"

	"attendance/internal/i18n"
	"attendance/internal/model"
)

// Layouts used in chat. Input parsing accepts the same ones.
const (
	DateLayout = "02.01.2006"
	TimeLayout = "15:04"
)

// Card is a chat message with optional buttons. Transports render actions natively.
type Card struct {
	Text    string
	Actions []CardAction
}

// CardAction is one button. Value travels back with the click.
type CardAction struct {
	Name  string
	Label string
	Style string
	Value string
}

// Button names understood by the inbound webhook.
const (
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionCancel   = "cancel"
	ActionChoose   = "choose"
	ActionConfirm  = "confirm"
	ActionAbort    = "abort"
	ActionQueue    = "queue"
	ActionMine     = "mine"
	ActionWithdraw = "withdraw"
)

// Outcome describes how a request was resolved. A nil Actor means the system.
type Outcome struct {
	Status model.RequestStatus
	Actor  *model.Employee
	Reason string
}

func TypeLabel(ctx context.Context, t model.RequestType) string {
	return i18n.T(ctx, "type."+string(t))
}

func StatusLabel(ctx context.Context, s model.RequestStatus) string {
	return i18n.T(ctx, "status."+string(s))
}

// FormatPeriod renders the range of a request in loc.
func FormatPeriod(ctx context.Context, r *model.AbsenceRequest, loc *time.Location) string {
	start, end := r.StartAt.In(loc), r.EndAt.In(loc)
	if r.Type.IsPartial() {
		return i18n.T(ctx, "period.partial", map[string]any{
			"Date": start.Format(DateLayout),
			"From": start.Format(TimeLayout),
			"To":   end.Format(TimeLayout),
		})
	}
	if model.SameDay(start, end) {
		return i18n.T(ctx, "period.single", map[string]any{"Date": start.Format(DateLayout)})
	}
	shifted := *r
	shifted.StartAt, shifted.EndAt = start, end
	return i18n.T(ctx, "period.range", map[string]any{
		"Start": start.Format(DateLayout),
		"End":   end.Format(DateLayout),
		"Days":  shifted.Days(),
	})
}

func employeeName(e *model.Employee) string {
	if e == nil {
		return ""
	}
	return e.FullName()
}

// RequestSummary is the body shared by admin cards, owner messages and the confirm step.
func RequestSummary(ctx context.Context, r *model.AbsenceRequest, loc *time.Location) string {
	comment := ""
	if r.Comment != nil {
		comment = *r.Comment
	}
	return i18n.T(ctx, "card.summary", map[string]any{
		"Name":    employeeName(r.Employee),
		"Type":    TypeLabel(ctx, r.Type),
		"Period":  FormatPeriod(ctx, r, loc),
		"Comment": comment,
	})
}

// RequestCard is what every admin receives for a new request.
func RequestCard(ctx context.Context, r *model.AbsenceRequest, loc *time.Location) Card {
	id := r.ID.String()
	return Card{
		Text: i18n.T(ctx, "card.new_request") + "\n" + RequestSummary(ctx, r, loc),
		Actions: []CardAction{
			{Name: ActionApprove, Label: i18n.T(ctx, "button.approve"), Style: "success", Value: id},
			{Name: ActionReject, Label: i18n.T(ctx, "button.reject"), Style: "danger", Value: id},
		},
	}
}

// ResolvedCard replaces a request card once the request left pending. It has no buttons.
func ResolvedCard(ctx context.Context, r *model.AbsenceRequest, o Outcome, loc *time.Location) Card {
	return Card{
		Text: RequestSummary(ctx, r, loc) + "\n\n" + i18n.T(ctx, "card.outcome", map[string]any{
			"Status": StatusLabel(ctx, o.Status),
			"Actor":  actorLabel(ctx, o.Actor),
			"Reason": o.Reason,
		}),
	}
}

func actorLabel(ctx context.Context, actor *model.Employee) string {
	if actor == nil {
		return i18n.T(ctx, "actor.system")
	}
	return actor.FullName()
}

// OwnerMessage tells the author what happened to the request.
func OwnerMessage(ctx context.Context, r *model.AbsenceRequest, o Outcome, loc *time.Location) string {
	return i18n.T(ctx, "owner."+string(o.Status), map[string]any{
		"Type":   TypeLabel(ctx, r.Type),
		"Period": FormatPeriod(ctx, r, loc),
		"Actor":  actorLabel(ctx, o.Actor),
		"Reason": o.Reason,
	})
}
