package models

import (
	"time"
)

type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"not null;size:200" json:"name"`
	Code      string    `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Users     []User    `gorm:"foreignKey:WorkplaceID" json:"users,omitempty"`
}

func (c *Company) String() string {
	return c.Name
}
