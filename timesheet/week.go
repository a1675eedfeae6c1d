package timesheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"timesheets/calendar"
	"timesheets/models"
)

// Slot is one day of a week view. Entry is nil for a day with nothing stored.
type Slot struct {
	Date  time.Time
	Entry *models.Entry
}

func (s Slot) Empty() bool {
	return s.Entry == nil
}

// Week is the Monday to Sunday view of one user's entries.
type Week struct {
	User       *models.User
	WeekEnding time.Time
	Slots      [calendar.DaysInWeek]Slot
}

// TotalMinutes sums the totals of every complete slot.
func (w *Week) TotalMinutes() int {
	var total int
	for _, slot := range w.Slots {
		if slot.Entry == nil {
			continue
		}
		if minutes, ok := slot.Entry.TotalMinutes(); ok {
			total += minutes
		}
	}
	return total
}

// RowEdit is the submitted state of one slot, in week order. ID is zero for a
// slot that had no entry when the form was rendered. A blank BreakCode keeps
// the stored break.
type RowEdit struct {
	ID         uint
	StartedAt  string
	FinishedAt string
	BreakCode  string
}

// Load returns the seven slots of the week containing weekEnding. Days without
// an entry come back empty; when a day holds several entries the oldest one is
// shown.
func (s *Service) Load(ctx context.Context, principal *models.User, userID uint, weekEnding time.Time) (*Week, error) {
	user, err := s.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !principal.CanViewWeek(user) {
		return nil, &AuthorizationError{PrincipalID: principal.ID, Action: "view this timesheet"}
	}
	return s.loadWeek(ctx, user, weekEnding)
}

func (s *Service) loadWeek(ctx context.Context, user *models.User, weekEnding time.Time) (*Week, error) {
	weekEnding = calendar.WeekEndingDate(weekEnding)
	days := calendar.WeekDayDates(weekEnding)

	var entries []models.Entry
	err := s.db.WithContext(ctx).
		Preload("Break").
		Preload("Approver").
		Where("user_id = ? AND date >= ? AND date < ?", user.ID, days[0], weekEnding.AddDate(0, 0, 1)).
		Order("date asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, storageErr("load week", err)
	}
	return reconcile(user, weekEnding, entries), nil
}

// reconcile lays entries ordered by date and id onto the seven days ending at
// weekEnding. The first entry of a day wins.
func reconcile(user *models.User, weekEnding time.Time, entries []models.Entry) *Week {
	byDate := make(map[string]*models.Entry, len(entries))
	for i := range entries {
		key := calendar.FormatDate(entries[i].Date)
		if _, taken := byDate[key]; !taken {
			byDate[key] = &entries[i]
		}
	}

	week := &Week{User: user, WeekEnding: weekEnding}
	for i, day := range calendar.WeekDayDates(weekEnding) {
		week.Slots[i] = Slot{Date: day, Entry: byDate[calendar.FormatDate(day)]}
	}
	return week
}

// Submit applies a full week of edits for the principal's own timesheet.
// Every row is checked before anything is written; on any problem the week is
// left untouched and all problems are returned together as RowErrors. Edited
// entries lose their approval. Unchanged rows are not written, so submitting
// the same week twice is a no-op the second time.
func (s *Service) Submit(ctx context.Context, principal *models.User, userID uint, weekEnding time.Time, rows []RowEdit) (*Week, error) {
	user, err := s.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !principal.CanEditOwnWeek(user) {
		return nil, &AuthorizationError{PrincipalID: principal.ID, Action: "edit this timesheet"}
	}
	if len(rows) != calendar.DaysInWeek {
		return nil, &ValidationError{
			Row:     -1,
			Field:   "rows",
			Message: fmt.Sprintf("expected %d rows, got %d", calendar.DaysInWeek, len(rows)),
		}
	}

	breaks, err := s.breaksByCode(ctx)
	if err != nil {
		return nil, err
	}
	week, err := s.loadWeek(ctx, user, weekEnding)
	if err != nil {
		return nil, err
	}

	changes, err := week.plan(rows, breaks)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return week, nil
	}

	now := s.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			if err := c.apply(tx, user.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return nil, err
		}
		return nil, storageErr("save week", err)
	}

	s.log.Info("timesheet saved",
		"user_id", user.ID,
		"week_ending", calendar.FormatDate(week.WeekEnding),
		"changed_rows", len(changes))

	return s.loadWeek(ctx, user, week.WeekEnding)
}

// change is a planned write for one slot. entryID zero creates an entry.
type change struct {
	row        int
	date       time.Time
	entryID    uint
	startedAt  string
	finishedAt string
	breakID    *uint
}

func (w *Week) plan(rows []RowEdit, breaks map[string]models.BreakType) ([]change, error) {
	var (
		changes []change
		errs    RowErrors
	)
	for i, row := range rows {
		c, rowErrs := planRow(i, w.Slots[i], row, breaks)
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		if c != nil {
			changes = append(changes, *c)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return changes, nil
}

func planRow(idx int, slot Slot, row RowEdit, breaks map[string]models.BreakType) (*change, RowErrors) {
	started := strings.TrimSpace(row.StartedAt)
	finished := strings.TrimSpace(row.FinishedAt)
	code := strings.TrimSpace(row.BreakCode)

	switch {
	case row.ID != 0 && (slot.Entry == nil || slot.Entry.ID != row.ID):
		return nil, RowErrors{&NotFoundError{Kind: "entry", Key: fmt.Sprint(row.ID), Row: idx}}
	case row.ID == 0 && started == "" && finished == "":
		// a break picked for a day without times is not an entry
		return nil, nil
	}

	var errs RowErrors
	started, err := normalizeClock(started)
	if err != nil {
		errs = append(errs, &ValidationError{Row: idx, Field: "started_at", Message: err.Error()})
	}
	finished, err = normalizeClock(finished)
	if err != nil {
		errs = append(errs, &ValidationError{Row: idx, Field: "finished_at", Message: err.Error()})
	}

	var breakID *uint
	if code != "" {
		b, ok := breaks[code]
		if !ok {
			errs = append(errs, &NotFoundError{Kind: "break type", Key: code, Row: idx})
		} else {
			breakID = &b.ID
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	c := &change{
		row:        idx,
		date:       slot.Date,
		startedAt:  started,
		finishedAt: finished,
		breakID:    breakID,
	}

	// A row sent without an id for a day that already has an entry edits
	// that entry, so a repeated submission never adds a second row.
	stored := slot.Entry
	if stored == nil {
		return c, nil
	}
	c.entryID = stored.ID
	if breakID == nil {
		c.breakID = stored.BreakID
	}
	if stored.StartedAt == c.startedAt && stored.FinishedAt == c.finishedAt && sameID(stored.BreakID, c.breakID) {
		return nil, nil
	}
	return c, nil
}

func normalizeClock(s string) (string, error) {
	if s == "" {
		return "", errors.New("is required")
	}
	minutes, err := calendar.ParseClock(s)
	if err != nil {
		return "", err
	}
	return calendar.FormatClock(minutes), nil
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (c change) apply(tx *gorm.DB, userID uint, now time.Time) error {
	if c.entryID == 0 {
		// another submission may have created the day in the meantime
		var existing models.Entry
		err := tx.Where("user_id = ? AND date = ?", userID, c.date).
			Order("id asc").
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID == 0 {
			return tx.Create(&models.Entry{
				Date:       c.date,
				UserID:     userID,
				BreakID:    c.breakID,
				StartedAt:  c.startedAt,
				FinishedAt: c.finishedAt,
				ModifiedAt: now,
			}).Error
		}
		c.entryID = existing.ID
	}

	res := tx.Model(&models.Entry{}).
		Where("id = ? AND user_id = ?", c.entryID, userID).
		Updates(map[string]any{
			"started_at":  c.startedAt,
			"finished_at": c.finishedAt,
			"break_id":    c.breakID,
			"modified_at": now,
			"is_approved": false,
			"approver_id": nil,
			"approved_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConflictError{EntryID: c.entryID, Reason: "entry no longer exists"}
	}
	return nil
}
