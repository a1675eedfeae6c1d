package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"timesheets/calendar"
	"timesheets/middleware"
	"timesheets/timesheet"
)

// recentWeeks is how many week-ending dates the week picker offers.
const recentWeeks = 7

type TimesheetHandler struct {
	svc *timesheet.Service
}

func NewTimesheetHandler(svc *timesheet.Service) *TimesheetHandler {
	return &TimesheetHandler{svc: svc}
}

type weekRow struct {
	Date         string     `json:"date"`
	Weekday      string     `json:"weekday"`
	ID           uint       `json:"id,omitempty"`
	StartedAt    string     `json:"started_at"`
	FinishedAt   string     `json:"finished_at"`
	BreakCode    string     `json:"break_code"`
	TotalMinutes *int       `json:"total_minutes,omitempty"`
	Total        string     `json:"total,omitempty"`
	IsApproved   bool       `json:"is_approved"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	Approver     string     `json:"approver,omitempty"`
	Comment      string     `json:"comment,omitempty"`
}

type weekResponse struct {
	UserID       uint      `json:"user_id"`
	Employee     string    `json:"employee"`
	WeekEnding   string    `json:"week_ending"`
	TotalMinutes int       `json:"total_minutes"`
	Total        string    `json:"total"`
	Rows         []weekRow `json:"rows"`
}

type weekRequest struct {
	Rows []rowRequest `json:"rows" validate:"required,dive"`
}

type rowRequest struct {
	ID         uint   `json:"id"`
	StartedAt  string `json:"started_at" validate:"max=8"`
	FinishedAt string `json:"finished_at" validate:"max=8"`
	BreakCode  string `json:"break_code" validate:"max=20"`
}

func newWeekResponse(week *timesheet.Week) weekResponse {
	resp := weekResponse{
		UserID:       week.User.ID,
		Employee:     week.User.DisplayName(),
		WeekEnding:   calendar.FormatDate(week.WeekEnding),
		TotalMinutes: week.TotalMinutes(),
		Total:        calendar.FormatMinutes(week.TotalMinutes()),
		Rows:         make([]weekRow, 0, len(week.Slots)),
	}
	for _, slot := range week.Slots {
		row := weekRow{
			Date:    calendar.FormatDate(slot.Date),
			Weekday: slot.Date.Weekday().String(),
		}
		if e := slot.Entry; e != nil {
			row.ID = e.ID
			row.StartedAt = e.StartedAt
			row.FinishedAt = e.FinishedAt
			if e.Break != nil {
				row.BreakCode = e.Break.Code
			}
			if total, ok := e.TotalMinutes(); ok {
				row.TotalMinutes = &total
				row.Total = calendar.FormatMinutes(total)
			}
			row.IsApproved = e.IsApproved
			row.ApprovedAt = e.ApprovedAt
			if e.Approver != nil {
				row.Approver = e.Approver.DisplayName()
			}
			row.Comment = e.Comment
		}
		resp.Rows = append(resp.Rows, row)
	}
	return resp
}

// Weeks lists the most recent week-ending dates, newest first.
func (h *TimesheetHandler) Weeks(w http.ResponseWriter, r *http.Request) {
	var weeks []string
	for d := range calendar.WeekEndingDates(h.svc.Now(), recentWeeks) {
		weeks = append(weeks, calendar.FormatDate(d))
	}
	respondData(w, http.StatusOK, weeks)
}

func (h *TimesheetHandler) Breaks(w http.ResponseWriter, r *http.Request) {
	breaks, err := h.svc.ListBreakTypes(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, breaks)
}

func (h *TimesheetHandler) weekParams(w http.ResponseWriter, r *http.Request) (uint, time.Time, bool) {
	userID, ok := uintParam(w, r, "userID")
	if !ok {
		return 0, time.Time{}, false
	}
	weekEnding, err := calendar.ParseDate(chi.URLParam(r, "weekEnding"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid weekEnding, expected YYYY-MM-DD")
		return 0, time.Time{}, false
	}
	return userID, weekEnding, true
}

func (h *TimesheetHandler) GetWeek(w http.ResponseWriter, r *http.Request) {
	userID, weekEnding, ok := h.weekParams(w, r)
	if !ok {
		return
	}
	principal := middleware.GetUserFromContext(r.Context())

	week, err := h.svc.Load(r.Context(), principal, userID, weekEnding)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, newWeekResponse(week))
}

func (h *TimesheetHandler) PutWeek(w http.ResponseWriter, r *http.Request) {
	userID, weekEnding, ok := h.weekParams(w, r)
	if !ok {
		return
	}
	var req weekRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	principal := middleware.GetUserFromContext(r.Context())

	rows := make([]timesheet.RowEdit, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, timesheet.RowEdit{
			ID:         row.ID,
			StartedAt:  row.StartedAt,
			FinishedAt: row.FinishedAt,
			BreakCode:  row.BreakCode,
		})
	}

	week, err := h.svc.Submit(r.Context(), principal, userID, weekEnding, rows)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, newWeekResponse(week))
}
