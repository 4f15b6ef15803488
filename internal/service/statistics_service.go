package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"attendance/internal/model"
	"attendance/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, from, to time.Time) (model.AbsenceStatistics, error)
}

type statisticsService struct {
	stats     repository.StatisticsRepository
	absences  repository.AbsenceRepository
	employees repository.EmployeeRepository
	loc       *time.Location
}

func NewStatisticsService(
	stats repository.StatisticsRepository,
	absences repository.AbsenceRepository,
	employees repository.EmployeeRepository,
	opts ...Option,
) StatisticsService {
	o := buildOptions(opts)
	return &statisticsService{stats: stats, absences: absences, employees: employees, loc: o.loc}
}

// GetStatistics counts requests overlapping [from, to] and sums approved absence inside it
func (s *statisticsService) GetStatistics(ctx context.Context, from, to time.Time) (model.AbsenceStatistics, error) {
	stats := model.AbsenceStatistics{
		From:         from,
		To:           to,
		ByStatus:     map[model.RequestStatus]int64{},
		ByType:       map[model.RequestType]int64{},
		ApprovedDays: decimal.Zero,
	}
	if to.Before(from) {
		return stats, ErrInvalidDateRange
	}

	byStatus, err := s.stats.CountByStatus(ctx, from, to)
	if err != nil {
		return stats, err
	}
	for status, total := range byStatus {
		stats.ByStatus[status] = total
		stats.TotalRequests += total
	}
	byType, err := s.stats.CountByType(ctx, from, to)
	if err != nil {
		return stats, err
	}
	stats.ByType = byType

	approved, err := s.absences.ListOverlapping(ctx, from, to, model.StatusApproved)
	if err != nil {
		return stats, fmt.Errorf("failed to list approved requests: %w", err)
	}

	perEmployee := map[uuid.UUID]*model.EmployeeAbsence{}
	for i := range approved {
		r := &approved[i]
		days := s.daysWithin(r, from, to)
		entry, ok := perEmployee[r.EmployeeID]
		if !ok {
			entry = &model.EmployeeAbsence{EmployeeID: r.EmployeeID, Days: decimal.Zero}
			perEmployee[r.EmployeeID] = entry
		}
		entry.Requests++
		entry.Days = entry.Days.Add(days)
		stats.ApprovedDays = stats.ApprovedDays.Add(days)
	}

	if len(perEmployee) > 0 {
		employees, err := s.employees.List(ctx, 0, 0)
		if err != nil {
			return stats, fmt.Errorf("failed to list employees: %w", err)
		}
		for i := range employees {
			if entry, ok := perEmployee[employees[i].ID]; ok {
				entry.Name = employees[i].FullName()
			}
		}
	}

	stats.Employees = make([]model.EmployeeAbsence, 0, len(perEmployee))
	for _, entry := range perEmployee {
		stats.Employees = append(stats.Employees, *entry)
	}
	sort.Slice(stats.Employees, func(i, j int) bool {
		if !stats.Employees[i].Days.Equal(stats.Employees[j].Days) {
			return stats.Employees[i].Days.GreaterThan(stats.Employees[j].Days)
		}
		return stats.Employees[i].Name < stats.Employees[j].Name
	})
	return stats, nil
}

// daysWithin is the part of r falling inside [from, to]. Partial absences count as
// hours over a workday, whole-day requests as calendar days.
func (s *statisticsService) daysWithin(r *model.AbsenceRequest, from, to time.Time) decimal.Decimal {
	if r.Type.IsPartial() {
		hours := decimal.NewFromFloat(r.Hours())
		return hours.Div(decimal.NewFromInt(model.WorkdayHours)).Round(2)
	}
	start, end := r.StartAt.In(s.loc), r.EndAt.In(s.loc)
	if f := from.In(s.loc); start.Before(f) {
		start = f
	}
	if t := to.In(s.loc); end.After(t) {
		end = t
	}
	clipped := model.AbsenceRequest{StartAt: start, EndAt: end}
	return decimal.NewFromInt(int64(clipped.Days()))
}
