package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"timesheets/calendar"
	"timesheets/middleware"
	"timesheets/models"
	"timesheets/timesheet"
)

type ApprovalHandler struct {
	svc *timesheet.Service
}

func NewApprovalHandler(svc *timesheet.Service) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

type approvalRow struct {
	ID           uint       `json:"id"`
	Date         string     `json:"date"`
	UserID       uint       `json:"user_id"`
	Employee     string     `json:"employee"`
	StartedAt    string     `json:"started_at"`
	FinishedAt   string     `json:"finished_at"`
	BreakCode    string     `json:"break_code,omitempty"`
	TotalMinutes *int       `json:"total_minutes,omitempty"`
	IsApproved   bool       `json:"is_approved"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	Approver     string     `json:"approver,omitempty"`
	Comment      string     `json:"comment,omitempty"`
	ModifiedAt   time.Time  `json:"modified_at"`
}

type approvalRequest struct {
	IDs     []uint `json:"ids" validate:"required,min=1,max=100"`
	Comment string `json:"comment" validate:"max=2000"`
}

type batchFailure struct {
	ID     uint   `json:"id"`
	Status int    `json:"status"`
	Error  string `json:"error"`
}

type batchResponse struct {
	Updated []uint         `json:"updated"`
	Failed  []batchFailure `json:"failed"`
}

// batchErrorResponse reports a batch that stopped on a storage failure
// together with the entries it had already updated.
type batchErrorResponse struct {
	Message string `json:"message"`
	Updated []uint `json:"updated"`
}

func newApprovalRow(e *models.Entry) approvalRow {
	row := approvalRow{
		ID:         e.ID,
		Date:       calendar.FormatDate(e.Date),
		UserID:     e.UserID,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
		IsApproved: e.IsApproved,
		ApprovedAt: e.ApprovedAt,
		Comment:    e.Comment,
		ModifiedAt: e.ModifiedAt,
	}
	if e.User != nil {
		row.Employee = e.User.DisplayName()
	}
	if e.Break != nil {
		row.BreakCode = e.Break.Code
	}
	if total, ok := e.TotalMinutes(); ok {
		row.TotalMinutes = &total
	}
	if e.Approver != nil {
		row.Approver = e.Approver.DisplayName()
	}
	return row
}

// filterFromQuery reads the optional user_id and week_ending query values.
func filterFromQuery(w http.ResponseWriter, r *http.Request) (models.EntryFilter, bool) {
	var filter models.EntryFilter
	if s := r.URL.Query().Get("user_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil || id == 0 {
			respondError(w, http.StatusBadRequest, "invalid user_id")
			return filter, false
		}
		userID := uint(id)
		filter.UserID = &userID
	}
	if s := r.URL.Query().Get("week_ending"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid week_ending, expected YYYY-MM-DD")
			return filter, false
		}
		filter.WeekEnding = &d
	}
	return filter, true
}

func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterFromQuery(w, r)
	if !ok {
		return
	}
	principal := middleware.GetUserFromContext(r.Context())

	entries, err := h.svc.ListForApproval(r.Context(), principal, filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	rows := make([]approvalRow, 0, len(entries))
	for i := range entries {
		rows = append(rows, newApprovalRow(&entries[i]))
	}
	respondData(w, http.StatusOK, rows)
}

func (h *ApprovalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.svc.Approve)
}

func (h *ApprovalHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.svc.Revoke)
}

type batchFunc func(ctx context.Context, principal *models.User, ids []uint, comment string) (*timesheet.BatchResult, error)

func (h *ApprovalHandler) batch(w http.ResponseWriter, r *http.Request, fn batchFunc) {
	var req approvalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	principal := middleware.GetUserFromContext(r.Context())

	result, err := fn(r.Context(), principal, req.IDs, req.Comment)
	if err != nil && result != nil && len(result.Updated) > 0 {
		// entries written before the failure stay written
		slog.ErrorContext(r.Context(), "batch interrupted",
			"principal_id", principal.ID,
			"updated", result.Updated,
			"error", err)
		writeJSON(w, http.StatusInternalServerError, batchErrorResponse{
			Message: "internal server error",
			Updated: result.Updated,
		})
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := batchResponse{Updated: result.Updated, Failed: []batchFailure{}}
	for _, id := range slices.Sorted(maps.Keys(result.Failed)) {
		ferr := result.Failed[id]
		resp.Failed = append(resp.Failed, batchFailure{ID: id, Status: errorStatus(ferr), Error: ferr.Error()})
	}
	respondData(w, http.StatusOK, resp)
}

var exportHeader = []string{
	"Employee", "Company", "Date", "Started", "Finished", "Break", "Total", "Approved", "Approver", "Comment",
}

func exportRecord(e *models.Entry) []string {
	company, breakName, total, approver := "", "", "", ""
	if e.User != nil && e.User.Workplace != nil {
		company = e.User.Workplace.Name
	}
	if e.Break != nil {
		breakName = e.Break.Name
	}
	if minutes, ok := e.TotalMinutes(); ok {
		total = calendar.FormatMinutes(minutes)
	}
	if e.Approver != nil {
		approver = e.Approver.DisplayName()
	}
	employee := ""
	if e.User != nil {
		employee = e.User.DisplayName()
	}
	return []string{
		employee,
		company,
		calendar.FormatDate(e.Date),
		e.StartedAt,
		e.FinishedAt,
		breakName,
		total,
		strconv.FormatBool(e.IsApproved),
		approver,
		e.Comment,
	}
}

// Export writes the approval listing as CSV or, with format=xlsx, as a
// spreadsheet.
func (h *ApprovalHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterFromQuery(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		respondError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	principal := middleware.GetUserFromContext(r.Context())

	entries, err := h.svc.ListForApproval(r.Context(), principal, filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	name := "timesheets"
	if filter.WeekEnding != nil {
		name += "_" + calendar.FormatDate(calendar.WeekEndingDate(*filter.WeekEnding))
	}

	if format == "xlsx" {
		h.exportXLSX(w, r, name+".xlsx", entries)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", name))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write(exportHeader)
	for i := range entries {
		writer.Write(exportRecord(&entries[i]))
	}
}

func (h *ApprovalHandler) exportXLSX(w http.ResponseWriter, r *http.Request, filename string, entries []models.Entry) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Timesheets"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		respondServiceError(w, r, err)
		return
	}

	write := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := write(1, exportHeader); err != nil {
		respondServiceError(w, r, err)
		return
	}
	for i := range entries {
		if err := write(i+2, exportRecord(&entries[i])); err != nil {
			respondServiceError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := f.Write(w); err != nil {
		slog.ErrorContext(r.Context(), "write spreadsheet", "error", err)
	}
}
