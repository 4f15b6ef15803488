package handler

import (
	"context"
	"net/http"
	"strings"

	"attendance/internal/i18n"
	"attendance/internal/logger"
	"attendance/internal/mattermost"
	"attendance/internal/middleware"
	"attendance/internal/model"
	"attendance/internal/service"
	"attendance/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	dialogPath        = "/api/mattermost/dialogs/reject"
	rejectReasonField = "reason"
)

// ActionSigner signs and checks the tokens carried by chat buttons and dialogs.
type ActionSigner interface {
	SignAction(action, value, userID string) (string, error)
	VerifyAction(token, action, userID string) (*middleware.ActionClaims, error)
}

// DialogOpener opens interactive dialogs.
type DialogOpener interface {
	OpenDialog(ctx context.Context, req *mattermost.DialogRequest) error
}

// MattermostHandler serves the slash command, button callbacks and the reject dialog.
type MattermostHandler struct {
	workflow     *workflow.Orchestrator
	renderer     *mattermost.Renderer
	signer       ActionSigner
	dialogs      DialogOpener
	botURL       string
	commandToken string
	log          *logrus.Entry
}

func NewMattermostHandler(
	wf *workflow.Orchestrator,
	renderer *mattermost.Renderer,
	signer ActionSigner,
	dialogs DialogOpener,
	botURL, commandToken string,
) *MattermostHandler {
	return &MattermostHandler{
		workflow:     wf,
		renderer:     renderer,
		signer:       signer,
		dialogs:      dialogs,
		botURL:       strings.TrimRight(botURL, "/"),
		commandToken: commandToken,
		log:          logger.WithComponent("mattermost"),
	}
}

func (h *MattermostHandler) RegisterRoutes(router *gin.RouterGroup) {
	mm := router.Group("/api/mattermost")
	{
		mm.POST("/command", middleware.RequireCommandToken(h.commandToken), h.Command)
		mm.POST("/actions/:action", h.Action)
		mm.POST("/dialogs/reject", h.RejectDialog)
	}
}

// Command handles the slash command. The reply is only visible to the caller.
// @Summary      Slash command
// @Tags         mattermost
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  mattermost.SlashResponse
// @Router       /api/mattermost/command [post]
func (h *MattermostHandler) Command(c *gin.Context) {
	var cmd mattermost.SlashCommand
	if err := c.ShouldBind(&cmd); err != nil || cmd.UserID == "" {
		badRequest(c, "invalid slash command payload")
		return
	}
	ctx := c.Request.Context()

	reply, err := h.workflow.HandleCommand(ctx, cmd.UserID, cmd.Text)
	if err != nil {
		h.log.WithError(err).WithField("user_id", cmd.UserID).Warn("command failed")
	}
	atts, err := h.renderer.Attachments(reply.Text, reply.Actions, cmd.UserID)
	if err != nil {
		logger.LogError("render_reply", err, map[string]interface{}{"user_id": cmd.UserID})
		c.JSON(http.StatusOK, mattermost.SlashResponse{ResponseType: "ephemeral", Text: i18n.T(ctx, "error.generic")})
		return
	}
	c.JSON(http.StatusOK, mattermost.SlashResponse{ResponseType: "ephemeral", Attachments: atts})
}

// Action handles a button click. The clicked post is replaced with the result.
// @Summary      Button callback
// @Tags         mattermost
// @Accept       json
// @Produce      json
// @Param        action  path      string  true  "approve|reject|cancel|withdraw|mine|choose|confirm|abort|queue"
// @Success      200     {object}  mattermost.ActionResponse
// @Router       /api/mattermost/actions/{action} [post]
func (h *MattermostHandler) Action(c *gin.Context) {
	var req mattermost.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		badRequest(c, "invalid action payload")
		return
	}
	ctx := c.Request.Context()
	action := c.Param("action")

	claims, err := h.signer.VerifyAction(req.Token(), action, req.UserID)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"action": action, "user_id": req.UserID}).Warn("rejected action token")
		c.JSON(http.StatusOK, mattermost.ActionResponse{EphemeralText: i18n.T(ctx, "error.bad_signature")})
		return
	}

	switch action {
	case service.ActionApprove:
		h.approve(c, &req, claims.Value)
	case service.ActionReject:
		h.openRejectDialog(c, &req, claims.Value)
	default:
		reply, err := h.workflow.HandleAction(ctx, req.UserID, action, claims.Value)
		if err != nil {
			h.log.WithError(err).WithField("action", action).Warn("action failed")
		}
		h.update(c, req.UserID, service.Card{Text: reply.Text, Actions: reply.Actions})
	}
}

func (h *MattermostHandler) approve(c *gin.Context, req *mattermost.ActionRequest, value string) {
	ctx := c.Request.Context()
	id, err := uuid.Parse(value)
	if err != nil {
		c.JSON(http.StatusOK, mattermost.ActionResponse{EphemeralText: i18n.T(ctx, "error.request_not_found")})
		return
	}
	res, err := h.workflow.Resolve(ctx, workflow.ResolveInput{
		RequestID:   id,
		Status:      model.StatusApproved,
		ActorChatID: req.UserID,
		PostID:      req.PostID,
		InPlace:     true,
	})
	if err != nil {
		h.ephemeralError(c, "approve_request", req.UserID, err)
		return
	}
	if res.InPlace {
		h.update(c, "", res.Card)
		return
	}
	c.JSON(http.StatusOK, mattermost.ActionResponse{EphemeralText: res.Card.Text})
}

func (h *MattermostHandler) openRejectDialog(c *gin.Context, req *mattermost.ActionRequest, value string) {
	ctx := c.Request.Context()
	if _, err := uuid.Parse(value); err != nil {
		c.JSON(http.StatusOK, mattermost.ActionResponse{EphemeralText: i18n.T(ctx, "error.request_not_found")})
		return
	}
	state, err := h.signer.SignAction(service.ActionReject, value, req.UserID)
	if err != nil {
		h.ephemeralError(c, "sign_dialog_state", req.UserID, err)
		return
	}
	err = h.dialogs.OpenDialog(ctx, &mattermost.DialogRequest{
		TriggerID: req.TriggerID,
		URL:       h.botURL + dialogPath,
		Dialog: mattermost.Dialog{
			Title:       i18n.T(ctx, "dialog.reject_title"),
			CallbackID:  service.ActionReject,
			SubmitLabel: i18n.T(ctx, "dialog.submit"),
			State:       state,
			Elements: []mattermost.DialogElement{{
				DisplayName: i18n.T(ctx, "dialog.reject_reason"),
				Name:        rejectReasonField,
				Type:        "textarea",
				HelpText:    i18n.T(ctx, "dialog.reject_hint"),
				Optional:    true,
				MaxLength:   1000,
			}},
		},
	})
	if err != nil {
		h.ephemeralError(c, "open_reject_dialog", req.UserID, err)
		return
	}
	c.JSON(http.StatusOK, mattermost.ActionResponse{})
}

// RejectDialog finalises a rejection. Every card, including the admin's own, is retracted
// through the API because the dialog has no post to update.
// @Summary      Reject dialog submission
// @Tags         mattermost
// @Accept       json
// @Produce      json
// @Success      200  {object}  mattermost.DialogResponse
// @Router       /api/mattermost/dialogs/reject [post]
func (h *MattermostHandler) RejectDialog(c *gin.Context) {
	var sub mattermost.DialogSubmission
	if err := c.ShouldBindJSON(&sub); err != nil || sub.UserID == "" {
		badRequest(c, "invalid dialog payload")
		return
	}
	if sub.Cancelled {
		c.Status(http.StatusOK)
		return
	}
	ctx := c.Request.Context()

	claims, err := h.signer.VerifyAction(sub.State, service.ActionReject, sub.UserID)
	if err != nil {
		c.JSON(http.StatusOK, mattermost.DialogResponse{Error: i18n.T(ctx, "error.bad_signature")})
		return
	}
	id, err := uuid.Parse(claims.Value)
	if err != nil {
		c.JSON(http.StatusOK, mattermost.DialogResponse{Error: i18n.T(ctx, "error.request_not_found")})
		return
	}

	_, err = h.workflow.Resolve(ctx, workflow.ResolveInput{
		RequestID:   id,
		Status:      model.StatusRejected,
		ActorChatID: sub.UserID,
		Reason:      strings.TrimSpace(sub.Submission[rejectReasonField]),
	})
	if err != nil {
		text, expected := workflow.UserMessage(ctx, err)
		if !expected {
			logger.LogError("reject_request", err, map[string]interface{}{"user_id": sub.UserID})
		}
		c.JSON(http.StatusOK, mattermost.DialogResponse{Error: text})
		return
	}
	c.Status(http.StatusOK)
}

// update replaces the clicked post with card, signing its buttons for userID.
func (h *MattermostHandler) update(c *gin.Context, userID string, card service.Card) {
	props, err := h.renderer.Props(card, userID)
	if err != nil {
		h.ephemeralError(c, "render_update", userID, err)
		return
	}
	c.JSON(http.StatusOK, mattermost.ActionResponse{Update: &mattermost.ActionUpdate{Props: &props}})
}

func (h *MattermostHandler) ephemeralError(c *gin.Context, op, userID string, err error) {
	text, expected := workflow.UserMessage(c.Request.Context(), err)
	if !expected {
		logger.LogError(op, err, map[string]interface{}{"user_id": userID})
	}
	c.JSON(http.StatusOK, mattermost.ActionResponse{EphemeralText: text})
}
