package models

import (
	"fmt"
	"time"

	"timesheets/calendar"
)

// Entry is one person's working day: start and finish times of day, an
// optional break and the approval stamp. IsApproved true always comes with
// ApproverID and ApprovedAt set, false with both cleared.
type Entry struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Date       time.Time  `gorm:"not null;type:date;index:idx_entries_user_date,priority:2" json:"date"`
	UserID     uint       `gorm:"not null;index:idx_entries_user_date,priority:1" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BreakID    *uint      `gorm:"index" json:"break_id"`
	Break      *BreakType `gorm:"foreignKey:BreakID" json:"break,omitempty"`
	StartedAt  string     `gorm:"not null;size:5" json:"started_at"`
	FinishedAt string     `gorm:"not null;size:5" json:"finished_at"`
	ModifiedAt time.Time  `gorm:"not null" json:"modified_at"`
	ApproverID *uint      `gorm:"index" json:"approver_id"`
	Approver   *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	ApprovedAt *time.Time `json:"approved_at"`
	IsApproved bool       `gorm:"not null;default:false" json:"is_approved"`
	Comment    string     `gorm:"type:text" json:"comment"`
}

// EntryFilter narrows approval listings.
type EntryFilter struct {
	UserID     *uint
	WeekEnding *time.Time
}

func (e *Entry) BreakMinutes() int {
	if e.Break == nil {
		return 0
	}
	return e.Break.Minutes
}

// TotalMinutes is finish minus start minus the break. ok is false while
// either time is missing. A finish before the start gives a negative total.
func (e *Entry) TotalMinutes() (total int, ok bool) {
	if e.StartedAt == "" || e.FinishedAt == "" {
		return 0, false
	}
	start, err := calendar.ParseClock(e.StartedAt)
	if err != nil {
		return 0, false
	}
	finish, err := calendar.ParseClock(e.FinishedAt)
	if err != nil {
		return 0, false
	}
	return finish - start - e.BreakMinutes(), true
}

func (e *Entry) String() string {
	started, finished := "N/A", "N/A"
	if e.StartedAt != "" {
		started = e.StartedAt
	}
	if e.FinishedAt != "" {
		finished = e.FinishedAt
	}
	out := fmt.Sprintf("On %s from %s to %s", calendar.FormatDate(e.Date), started, finished)
	if e.Break != nil {
		out += " with break for " + e.Break.Name
	}
	if total, ok := e.TotalMinutes(); ok && total != 0 {
		out += ", total: " + calendar.FormatMinutes(total)
	}
	return out
}
