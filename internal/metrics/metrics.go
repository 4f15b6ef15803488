package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_requests_submitted_total",
		Help: "Absence requests written to the ledger, by type.",
	}, []string{"type"})

	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_request_transitions_total",
		Help: "Status transitions out of pending, by target status and result.",
	}, []string{"status", "result"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_notifications_total",
		Help: "Outbound chat messages by kind (card, retract, owner) and result.",
	}, []string{"kind", "result"})

	InvitesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_invites_issued_total",
		Help: "Invite codes issued.",
	})

	InviteRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_invite_redemptions_total",
		Help: "Registration attempts by outcome.",
	}, []string{"outcome"})
)
