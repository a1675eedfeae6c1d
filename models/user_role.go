package models

import (
	"time"
)

// UserRole is the join row between users and roles, keyed by both ids.
type UserRole struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	RoleID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ApproverCompany records that a user may approve the entries of everyone
// whose workplace is the company.
type ApproverCompany struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CompanyID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"company_id"`
	CreatedAt time.Time `json:"created_at"`
}
