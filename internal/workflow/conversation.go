package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"attendance/internal/i18n"
	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/service"
	"attendance/internal/session"

	"github.com/google/uuid"
)

// Conversation steps. Every collected field lives in session.State.Data.
const (
	StepWaitingEmail = "waiting_email"
	StepWaitingCode  = "waiting_code"

	StepChoosingType  = "choosing_type"
	StepEnteringStart = "entering_start"
	StepEnteringEnd   = "entering_end"
	StepEnteringDate  = "entering_date"
	StepTimeFrom      = "entering_time_from"
	StepTimeTo        = "entering_time_to"
	StepComment       = "entering_comment"
	StepConfirming    = "confirming"
)

const (
	keyEmployeeID = "employee_id"
	keyType       = "type"
	keyStart      = "start"
	keyEnd        = "end"
	keyDate       = "date"
	keyFrom       = "from"
	keyTo         = "to"
	keyComment    = "comment"

	storedDate = "2006-01-02"
	storedTime = "15:04"

	myRequestsPage = 10
)

// Reply is the bot's answer to one user input.
type Reply struct {
	Text    string
	Actions []service.CardAction
}

func (o *Orchestrator) say(ctx context.Context, id string, data ...map[string]any) Reply {
	return Reply{Text: i18n.T(ctx, id, data...)}
}

// UserMessage renders err for a chat user. ok is false for unexpected errors.
func UserMessage(ctx context.Context, err error) (string, bool) {
	id, ok := userMessage(err)
	return i18n.T(ctx, id), ok
}

func (o *Orchestrator) failure(ctx context.Context, op string, chatID string, err error) (Reply, error) {
	text, expected := UserMessage(ctx, err)
	if expected {
		return Reply{Text: text}, nil
	}
	logger.LogError(op, err, map[string]interface{}{"chat_id": chatID})
	return Reply{Text: text}, err
}

// HandleCommand is the entry point for slash command text. A known keyword starts a
// command; anything else is an answer to the current step.
func (o *Orchestrator) HandleCommand(ctx context.Context, chatID, text string) (Reply, error) {
	cmd, arg := splitCommand(text)
	switch cmd {
	case "", "help":
		return o.say(ctx, "help"), nil
	case "register":
		return o.StartRegistration(ctx, chatID)
	case "request", "new":
		return o.StartRequest(ctx, chatID)
	case "my":
		return o.MyRequests(ctx, chatID, 0)
	case "queue":
		return o.Queue(ctx, chatID, 0)
	case "invite":
		return o.inviteCommand(ctx, chatID, arg)
	case "code":
		return o.redeemCommand(ctx, chatID, arg)
	case "abort", "stop":
		return o.Abort(ctx, chatID)
	}
	return o.HandleMessage(ctx, chatID, text)
}

// HandleMessage feeds free text into the active flow.
func (o *Orchestrator) HandleMessage(ctx context.Context, chatID, text string) (Reply, error) {
	st, err := o.sessions.Load(ctx, chatID)
	if err != nil {
		return o.failure(ctx, "session_load", chatID, err)
	}
	switch st.Flow {
	case session.FlowRegister:
		return o.registerStep(ctx, chatID, st, text)
	case session.FlowRequest:
		return o.requestStep(ctx, chatID, st, text)
	}
	return o.say(ctx, "help"), nil
}

// HandleAction serves buttons that belong to a conversation rather than to a request card.
func (o *Orchestrator) HandleAction(ctx context.Context, chatID, action, value string) (Reply, error) {
	switch action {
	case service.ActionChoose, service.ActionConfirm:
		return o.HandleMessage(ctx, chatID, value)
	case service.ActionAbort:
		return o.Abort(ctx, chatID)
	case service.ActionQueue:
		index, err := strconv.Atoi(value)
		if err != nil {
			index = 0
		}
		return o.Queue(ctx, chatID, index)
	case service.ActionMine:
		offset, err := strconv.Atoi(value)
		if err != nil {
			offset = 0
		}
		return o.MyRequests(ctx, chatID, offset)
	case service.ActionWithdraw:
		id, err := uuid.Parse(value)
		if err != nil {
			return o.say(ctx, "error.request_not_found"), nil
		}
		return o.ConfirmCancel(ctx, chatID, id)
	case service.ActionCancel:
		id, err := uuid.Parse(value)
		if err != nil {
			return o.say(ctx, "error.request_not_found"), nil
		}
		res, err := o.Cancel(ctx, id, chatID)
		if err != nil {
			return o.failure(ctx, "cancel_request", chatID, err)
		}
		return Reply{Text: i18n.T(ctx, "cancel.done") + "\n\n" + res.Card.Text}, nil
	}
	return o.say(ctx, "help"), nil
}

// Abort leaves whatever flow the user is in.
func (o *Orchestrator) Abort(ctx context.Context, chatID string) (Reply, error) {
	if err := o.sessions.Clear(ctx, chatID); err != nil {
		return o.failure(ctx, "session_clear", chatID, err)
	}
	return o.say(ctx, "flow.aborted"), nil
}

func (o *Orchestrator) save(ctx context.Context, chatID string, st *session.State, reply Reply) (Reply, error) {
	if err := o.sessions.Save(ctx, chatID, st); err != nil {
		return o.failure(ctx, "session_save", chatID, err)
	}
	return reply, nil
}

// --- registration ---

// StartRegistration asks for the work email unless the account is already registered.
func (o *Orchestrator) StartRegistration(ctx context.Context, chatID string) (Reply, error) {
	employee, err := o.employees.FindByChatID(ctx, chatID)
	if err == nil {
		return o.say(ctx, "register.already", map[string]any{"Name": employee.FullName()}), nil
	}
	if !errors.Is(err, service.ErrProfileNotFound) {
		return o.failure(ctx, "start_registration", chatID, err)
	}
	st := &session.State{}
	st.Begin(session.FlowRegister, StepWaitingEmail)
	return o.save(ctx, chatID, st, o.say(ctx, "register.ask_email"))
}

func (o *Orchestrator) registerStep(ctx context.Context, chatID string, st *session.State, text string) (Reply, error) {
	switch st.Step {
	case StepWaitingEmail:
		if err := service.ValidateEmail(text); err != nil {
			return o.say(ctx, "register.email_invalid"), nil
		}
		employee, err := o.employees.FindByEmail(ctx, text)
		if errors.Is(err, service.ErrEmployeeNotFound) {
			return o.say(ctx, "register.email_unknown"), nil
		}
		if err != nil {
			return o.failure(ctx, "register_email", chatID, err)
		}
		st.Set(keyEmployeeID, employee.ID.String())
		st.Step = StepWaitingCode
		return o.save(ctx, chatID, st, o.say(ctx, "register.ask_code"))

	case StepWaitingCode:
		employeeID, err := uuid.Parse(st.Get(keyEmployeeID))
		if err != nil {
			st.Begin(session.FlowRegister, StepWaitingEmail)
			return o.save(ctx, chatID, st, o.say(ctx, "register.ask_email"))
		}
		result, err := o.register(ctx, service.RegisterInput{ChatID: chatID, EmployeeID: &employeeID, Code: text})
		if errors.Is(err, service.ErrInviteNotFound) {
			return o.say(ctx, "register.code_not_found"), nil
		}
		if err != nil {
			st.Reset()
			if _, saveErr := o.save(ctx, chatID, st, Reply{}); saveErr != nil {
				return Reply{}, saveErr
			}
			return o.failure(ctx, "register_code", chatID, err)
		}
		switch result.Status {
		case model.InviteUsed:
			return o.say(ctx, "register.code_used"), nil
		case model.InviteExpired:
			return o.say(ctx, "register.code_expired"), nil
		}
		st.Reset()
		return o.save(ctx, chatID, st, o.say(ctx, "register.done", map[string]any{"Name": result.Employee.FullName()}))
	}

	st.Reset()
	return o.save(ctx, chatID, st, o.say(ctx, "help"))
}

// redeemCommand registers with a code alone, without the email step.
func (o *Orchestrator) redeemCommand(ctx context.Context, chatID, code string) (Reply, error) {
	if strings.TrimSpace(code) == "" {
		return o.say(ctx, "register.ask_code"), nil
	}
	result, err := o.RedeemInvite(ctx, chatID, code)
	if err != nil {
		return o.failure(ctx, "redeem_invite", chatID, err)
	}
	switch result.Status {
	case model.InviteUsed:
		return o.say(ctx, "register.code_used"), nil
	case model.InviteExpired:
		return o.say(ctx, "register.code_expired"), nil
	}
	if err := o.sessions.Clear(ctx, chatID); err != nil {
		logger.WithComponent("workflow").WithError(err).Warn("failed to clear session")
	}
	return o.say(ctx, "register.done", map[string]any{"Name": result.Employee.FullName()}), nil
}

// --- request form ---

// StartRequest opens the request form for a registered user.
func (o *Orchestrator) StartRequest(ctx context.Context, chatID string) (Reply, error) {
	if _, err := o.employees.FindByChatID(ctx, chatID); err != nil {
		return o.failure(ctx, "start_request", chatID, err)
	}
	st := &session.State{}
	st.Begin(session.FlowRequest, StepChoosingType)
	return o.save(ctx, chatID, st, o.typePrompt(ctx))
}

func (o *Orchestrator) typePrompt(ctx context.Context) Reply {
	reply := o.say(ctx, "request.choose_type")
	for i, t := range model.RequestTypes {
		reply.Actions = append(reply.Actions, service.CardAction{
			Name:  service.ActionChoose,
			Label: fmt.Sprintf("%d. %s", i+1, service.TypeLabel(ctx, t)),
			Value: string(t),
		})
	}
	reply.Actions = append(reply.Actions, o.abortAction(ctx))
	return reply
}

func (o *Orchestrator) abortAction(ctx context.Context) service.CardAction {
	return service.CardAction{Name: service.ActionAbort, Label: i18n.T(ctx, "button.abort"), Style: "default"}
}

func parseType(text string) (model.RequestType, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(model.RequestTypes) {
		return model.RequestTypes[n-1], true
	}
	t := model.RequestType(text)
	return t, t.Valid()
}

func (o *Orchestrator) today() time.Time {
	return midnight(o.now(), o.loc)
}

func (o *Orchestrator) requestStep(ctx context.Context, chatID string, st *session.State, text string) (Reply, error) {
	switch st.Step {
	case StepChoosingType:
		t, ok := parseType(text)
		if !ok {
			reply := o.typePrompt(ctx)
			reply.Text = i18n.T(ctx, "request.unknown_type") + "\n" + reply.Text
			return reply, nil
		}
		st.Set(keyType, string(t))
		if t.IsPartial() {
			st.Step = StepEnteringDate
			return o.save(ctx, chatID, st, o.say(ctx, "request.ask_date"))
		}
		st.Step = StepEnteringStart
		return o.save(ctx, chatID, st, o.say(ctx, "request.ask_start"))

	case StepEnteringStart, StepEnteringDate:
		day, err := parseDate(text, o.loc)
		if err != nil {
			return o.say(ctx, "request.bad_date"), nil
		}
		if day.Before(o.today()) {
			return o.say(ctx, "request.start_past"), nil
		}
		if st.Step == StepEnteringDate {
			st.Set(keyDate, day.Format(storedDate))
			st.Step = StepTimeFrom
			return o.save(ctx, chatID, st, o.say(ctx, "request.ask_time_from"))
		}
		st.Set(keyStart, day.Format(storedDate))
		st.Step = StepEnteringEnd
		return o.save(ctx, chatID, st, o.say(ctx, "request.ask_end"))

	case StepEnteringEnd:
		start, err := parseDate(st.Get(keyStart), o.loc)
		if err != nil {
			return o.restartForm(ctx, chatID, st)
		}
		end := start
		if !isSkip(text) {
			if end, err = parseDate(text, o.loc); err != nil {
				return o.say(ctx, "request.bad_date"), nil
			}
		}
		if end.Before(start) {
			return o.say(ctx, "request.end_before_start"), nil
		}
		st.Set(keyEnd, end.Format(storedDate))
		st.Step = StepComment
		return o.save(ctx, chatID, st, o.say(ctx, "request.ask_comment"))

	case StepTimeFrom:
		day, err := parseDate(st.Get(keyDate), o.loc)
		if err != nil {
			return o.restartForm(ctx, chatID, st)
		}
		offset, err := parseClock(text)
		if err != nil {
			return o.say(ctx, "request.bad_time"), nil
		}
		if atClock(day, offset).Before(o.now()) {
			return o.say(ctx, "request.start_past"), nil
		}
		st.Set(keyFrom, atClock(day, offset).Format(storedTime))
		st.Step = StepTimeTo
		return o.save(ctx, chatID, st, o.say(ctx, "request.ask_time_to"))

	case StepTimeTo:
		day, err := parseDate(st.Get(keyDate), o.loc)
		if err != nil {
			return o.restartForm(ctx, chatID, st)
		}
		from, err := parseClock(st.Get(keyFrom))
		if err != nil {
			return o.restartForm(ctx, chatID, st)
		}
		to, err := parseClock(text)
		if err != nil {
			return o.say(ctx, "request.bad_time"), nil
		}
		if to <= from {
			return o.say(ctx, "request.partial_range"), nil
		}
		st.Set(keyTo, atClock(day, to).Format(storedTime))
		st.Step = StepComment
		return o.save(ctx, chatID, st, o.say(ctx, "request.ask_comment"))

	case StepComment:
		if isSkip(text) {
			st.Delete(keyComment)
		} else {
			st.Set(keyComment, strings.TrimSpace(text))
		}
		in, err := o.formInput(chatID, st)
		if err != nil {
			return o.restartForm(ctx, chatID, st)
		}
		st.Step = StepConfirming
		return o.save(ctx, chatID, st, o.confirmPrompt(ctx, in))

	case StepConfirming:
		if isNo(text) {
			return o.Abort(ctx, chatID)
		}
		if !isYes(text) {
			in, err := o.formInput(chatID, st)
			if err != nil {
				return o.restartForm(ctx, chatID, st)
			}
			return o.confirmPrompt(ctx, in), nil
		}
		return o.submitForm(ctx, chatID, st)
	}

	return o.restartForm(ctx, chatID, st)
}

func (o *Orchestrator) restartForm(ctx context.Context, chatID string, st *session.State) (Reply, error) {
	st.Begin(session.FlowRequest, StepChoosingType)
	return o.save(ctx, chatID, st, o.typePrompt(ctx))
}

// formInput rebuilds the request from the collected fields.
func (o *Orchestrator) formInput(chatID string, st *session.State) (service.SubmitInput, error) {
	in := service.SubmitInput{
		ChatID:  chatID,
		Type:    model.RequestType(st.Get(keyType)),
		Comment: st.Get(keyComment),
	}
	if !in.Type.Valid() {
		return in, errBadInput
	}
	if in.Type.IsPartial() {
		day, err := parseDate(st.Get(keyDate), o.loc)
		if err != nil {
			return in, err
		}
		from, err := parseClock(st.Get(keyFrom))
		if err != nil {
			return in, err
		}
		to, err := parseClock(st.Get(keyTo))
		if err != nil {
			return in, err
		}
		in.Start, in.End = atClock(day, from), atClock(day, to)
		return in, nil
	}
	start, err := parseDate(st.Get(keyStart), o.loc)
	if err != nil {
		return in, err
	}
	end, err := parseDate(st.Get(keyEnd), o.loc)
	if err != nil {
		return in, err
	}
	in.Start, in.End = start, end
	return in, nil
}

func (o *Orchestrator) confirmPrompt(ctx context.Context, in service.SubmitInput) Reply {
	preview := &model.AbsenceRequest{Type: in.Type, StartAt: in.Start, EndAt: in.End}
	if c := strings.TrimSpace(in.Comment); c != "" {
		preview.Comment = &c
	}
	return Reply{
		Text: i18n.T(ctx, "request.confirm", map[string]any{
			"Type":    service.TypeLabel(ctx, in.Type),
			"Period":  service.FormatPeriod(ctx, preview, o.loc),
			"Comment": in.Comment,
		}),
		Actions: []service.CardAction{
			{Name: service.ActionConfirm, Label: i18n.T(ctx, "button.confirm"), Style: "primary", Value: "yes"},
			o.abortAction(ctx),
		},
	}
}

func (o *Orchestrator) submitForm(ctx context.Context, chatID string, st *session.State) (Reply, error) {
	in, err := o.formInput(chatID, st)
	if err != nil {
		return o.restartForm(ctx, chatID, st)
	}
	// The form may have sat in confirming past midnight.
	if midnight(in.Start, o.loc).Before(o.today()) {
		st.Begin(session.FlowRequest, StepChoosingType)
		prompt := o.typePrompt(ctx)
		prompt.Text = i18n.T(ctx, "request.start_past") + "\n" + prompt.Text
		return o.save(ctx, chatID, st, prompt)
	}

	result, err := o.SubmitRequest(ctx, in)
	if err != nil {
		if service.IsValidation(err) {
			return o.restartForm(ctx, chatID, st)
		}
		st.Reset()
		if _, saveErr := o.save(ctx, chatID, st, Reply{}); saveErr != nil {
			return Reply{}, saveErr
		}
		return o.failure(ctx, "submit_request", chatID, err)
	}

	st.Reset()
	id := "request.submitted"
	if result.Fanout.Sent == 0 {
		id = "request.submitted_no_admins"
	}
	return o.save(ctx, chatID, st, o.say(ctx, id, map[string]any{"Count": result.Fanout.Sent}))
}

// --- lists ---

// MyRequests shows one page of the caller's requests, newest first, starting at offset.
// Out of range offsets are clamped to the first or last page.
func (o *Orchestrator) MyRequests(ctx context.Context, chatID string, offset int) (Reply, error) {
	employee, err := o.employees.FindByChatID(ctx, chatID)
	if err != nil {
		return o.failure(ctx, "my_requests", chatID, err)
	}
	total, err := o.absences.CountByEmployee(ctx, employee.ID)
	if err != nil {
		return o.failure(ctx, "my_requests", chatID, err)
	}
	if total == 0 {
		return o.say(ctx, "my.empty"), nil
	}
	if last := int((total - 1) / myRequestsPage * myRequestsPage); offset > last {
		offset = last
	}
	if offset < 0 {
		offset = 0
	}
	requests, err := o.absences.ListByEmployee(ctx, employee.ID, offset, myRequestsPage)
	if err != nil {
		return o.failure(ctx, "my_requests", chatID, err)
	}

	lines := []string{i18n.T(ctx, "my.header", map[string]any{
		"From":  offset + 1,
		"To":    offset + len(requests),
		"Total": total,
	})}
	var actions []service.CardAction
	for i := range requests {
		r := &requests[i]
		period := service.FormatPeriod(ctx, r, o.loc)
		lines = append(lines, i18n.T(ctx, "my.item", map[string]any{
			"Type":   service.TypeLabel(ctx, r.Type),
			"Period": period,
			"Status": service.StatusLabel(ctx, r.Status),
		}))
		if r.Status == model.StatusPending {
			actions = append(actions, service.CardAction{
				Name:  service.ActionWithdraw,
				Label: i18n.T(ctx, "button.cancel", map[string]any{"Period": period}),
				Style: "danger",
				Value: r.ID.String(),
			})
		}
	}
	if offset > 0 {
		actions = append(actions, service.CardAction{
			Name: service.ActionMine, Label: i18n.T(ctx, "button.prev"), Value: strconv.Itoa(offset - myRequestsPage),
		})
	}
	if int64(offset+len(requests)) < total {
		actions = append(actions, service.CardAction{
			Name: service.ActionMine, Label: i18n.T(ctx, "button.next"), Value: strconv.Itoa(offset + myRequestsPage),
		})
	}
	return Reply{Text: strings.Join(lines, "\n"), Actions: actions}, nil
}

// ConfirmCancel asks the owner to confirm withdrawing a pending request.
func (o *Orchestrator) ConfirmCancel(ctx context.Context, chatID string, requestID uuid.UUID) (Reply, error) {
	employee, err := o.employees.FindByChatID(ctx, chatID)
	if err != nil {
		return o.failure(ctx, "confirm_cancel", chatID, err)
	}
	request, err := o.absences.GetByID(ctx, requestID)
	if err != nil {
		return o.failure(ctx, "confirm_cancel", chatID, err)
	}
	if request.EmployeeID != employee.ID {
		return o.say(ctx, "error.not_owner"), nil
	}
	if request.Status != model.StatusPending {
		return o.say(ctx, "error.already_processed"), nil
	}
	return Reply{
		Text:    i18n.T(ctx, "cancel.confirm") + "\n" + service.RequestSummary(ctx, request, o.loc),
		Actions: []service.CardAction{
			{Name: service.ActionCancel, Label: i18n.T(ctx, "button.withdraw"), Style: "danger", Value: request.ID.String()},
			{Name: service.ActionMine, Label: i18n.T(ctx, "button.back"), Value: "0"},
		},
	}, nil
}

// Queue shows one pending request to an admin with review and navigation buttons.
func (o *Orchestrator) Queue(ctx context.Context, chatID string, index int) (Reply, error) {
	if _, err := o.resolveAdmin(ctx, chatID, nil); err != nil {
		return o.failure(ctx, "queue", chatID, err)
	}
	page, err := o.absences.PendingAt(ctx, index)
	if err != nil {
		return o.failure(ctx, "queue", chatID, err)
	}
	if page.Request == nil {
		return o.say(ctx, "queue.empty"), nil
	}

	card := service.RequestCard(ctx, page.Request, o.loc)
	reply := Reply{
		Text: i18n.T(ctx, "queue.position", map[string]any{"Index": page.Index + 1, "Total": page.Total}) +
			"\n" + service.RequestSummary(ctx, page.Request, o.loc),
		Actions: card.Actions,
	}
	if page.Index > 0 {
		reply.Actions = append(reply.Actions, service.CardAction{
			Name: service.ActionQueue, Label: i18n.T(ctx, "button.prev"), Value: strconv.Itoa(page.Index - 1),
		})
	}
	if int64(page.Index+1) < page.Total {
		reply.Actions = append(reply.Actions, service.CardAction{
			Name: service.ActionQueue, Label: i18n.T(ctx, "button.next"), Value: strconv.Itoa(page.Index + 1),
		})
	}
	return reply, nil
}

func (o *Orchestrator) inviteCommand(ctx context.Context, chatID, email string) (Reply, error) {
	if strings.TrimSpace(email) == "" {
		return o.say(ctx, "invite.usage"), nil
	}
	res, err := o.IssueInvite(ctx, email, chatID)
	if err != nil {
		return o.failure(ctx, "issue_invite", chatID, err)
	}
	return o.say(ctx, "invite.issued", map[string]any{
		"Name":    res.Employee.FullName(),
		"Code":    res.Token.Code,
		"Expires": res.Token.ExpiresAt.In(o.loc).Format(service.DateLayout + " " + service.TimeLayout),
	}), nil
}
