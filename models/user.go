package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
)

type RoleName string

const (
	RoleEmployee RoleName = "emp"
	RoleApprover RoleName = "approver"
	RoleAdmin    RoleName = "admin"
)

// AllRoles lists the roles seeded on a fresh database.
var AllRoles = []RoleName{RoleEmployee, RoleApprover, RoleAdmin}

type Role struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	Name        RoleName `gorm:"uniqueIndex;not null;size:20" json:"name"`
	Description string   `gorm:"size:200" json:"description,omitempty"`
}

type User struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Username           string    `gorm:"uniqueIndex;not null;size:100" json:"username"`
	PasswordHash       string    `gorm:"not null" json:"-"`
	Email              string    `gorm:"not null;size:200" json:"email"`
	FirstName          string    `gorm:"not null;size:100" json:"first_name"`
	LastName           string    `gorm:"not null;size:100" json:"last_name"`
	Active             bool      `gorm:"not null" json:"active"`
	MustChangePassword bool      `gorm:"not null;default:false" json:"must_change_password"`
	WorkplaceID        *uint     `gorm:"index" json:"workplace_id"`
	Workplace          *Company  `gorm:"foreignKey:WorkplaceID" json:"workplace,omitempty"`
	Roles              []Role    `gorm:"many2many:user_roles;joinForeignKey:UserID;joinReferences:RoleID" json:"roles,omitempty"`
	ApprovesFor        []Company `gorm:"many2many:approver_companies;joinForeignKey:UserID;joinReferences:CompanyID" json:"approves_for,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}

func (u *User) GravatarURL(size int) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(u.Email))))
	return fmt.Sprintf("http://www.gravatar.com/avatar/%s?d=identicon&s=%d", hex.EncodeToString(sum[:]), size)
}

// RoleNames returns the names of the loaded Roles association.
func (u *User) RoleNames() []RoleName {
	names := make([]RoleName, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// ApprovesForIDs returns the ids of the loaded ApprovesFor association.
func (u *User) ApprovesForIDs() []uint {
	ids := make([]uint, 0, len(u.ApprovesFor))
	for _, c := range u.ApprovesFor {
		ids = append(ids, c.ID)
	}
	return ids
}

func (u *User) HasRole(name RoleName) bool {
	return slices.Contains(u.RoleNames(), name)
}

func (u *User) ApprovesForCompany(companyID uint) bool {
	return slices.Contains(u.ApprovesForIDs(), companyID)
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

func (u *User) IsApprover() bool {
	return u.HasRole(RoleApprover)
}

func (u *User) CanEditOwnWeek(target *User) bool {
	return target != nil && u.Active && u.ID == target.ID
}

// CanApprove requires the approver or admin role and the target's workplace
// in the approves_for set. Admin alone grants nothing here.
func (u *User) CanApprove(target *User) bool {
	if target == nil || target.WorkplaceID == nil {
		return false
	}
	if !u.IsApprover() && !u.IsAdmin() {
		return false
	}
	return u.ApprovesForCompany(*target.WorkplaceID)
}

func (u *User) CanViewWeek(target *User) bool {
	return u.CanEditOwnWeek(target) || u.CanApprove(target)
}

func (u *User) CanAdminister() bool {
	return u.IsAdmin()
}

func (u *User) String() string {
	return u.FullName()
}
