package models

import (
	"fmt"
	"time"
)

// BreakType is reference data: a break code and how many minutes it takes
// off the worked time of an entry.
type BreakType struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Code            string    `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name            string    `gorm:"not null;size:100" json:"name"`
	Minutes         int       `gorm:"not null" json:"minutes"`
	AlternativeCode *string   `gorm:"uniqueIndex;size:20" json:"alternative_code,omitempty"`
}

func (b *BreakType) String() string {
	return b.Name
}

func (b *BreakType) GoString() string {
	alt := "<nil>"
	if b.AlternativeCode != nil {
		alt = fmt.Sprintf("%q", *b.AlternativeCode)
	}
	return fmt.Sprintf("BreakType(code=%q, name=%q, minutes=%d, alternative_code=%s)", b.Code, b.Name, b.Minutes, alt)
}
