package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WorkdayHours converts partial absences into fractional days.
const WorkdayHours = 8

// AbsenceStatistics aggregates requests overlapping a time window
type AbsenceStatistics struct {
	From          time.Time               `json:"from"`
	To            time.Time               `json:"to"`
	TotalRequests int64                   `json:"total_requests"`
	ByStatus      map[RequestStatus]int64 `json:"by_status"`
	ByType        map[RequestType]int64   `json:"by_type"`
	ApprovedDays  decimal.Decimal         `json:"approved_days"`
	Employees     []EmployeeAbsence       `json:"employees"`
}

// EmployeeAbsence is the approved absence of one employee inside the window
type EmployeeAbsence struct {
	EmployeeID uuid.UUID       `json:"employee_id"`
	Name       string          `json:"name"`
	Requests   int             `json:"requests"`
	Days       decimal.Decimal `json:"days"`
}
