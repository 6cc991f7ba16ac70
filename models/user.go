package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleSuperAdmin     Role = "SuperAdmin"
	RoleProjectManager Role = "ProjectManager"
)

type UserStatus string

const (
	UserActive    UserStatus = "Active"
	UserInactive  UserStatus = "Inactive"
	UserSuspended UserStatus = "Suspended"
)

// User is a project owner account.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"user_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Email        string     `gorm:"uniqueIndex;not null;size:100" json:"email"`
	PasswordHash string     `gorm:"not null;size:255" json:"-"`
	FirstName    string     `gorm:"not null;size:100" json:"first_name"`
	MiddleName   *string    `gorm:"size:100" json:"middle_name"`
	LastName     string     `gorm:"not null;size:100" json:"last_name"`
	Birthdate    *Date      `json:"birthdate"`
	Phone        *string    `gorm:"size:20" json:"phone"`
	RegionID     *uint      `json:"region"`
	ProvinceID   *uint      `json:"province"`
	CityID       *uint      `json:"city"`
	BarangayID   *uint      `json:"barangay"`
	Street       *string    `gorm:"size:200" json:"street"`
	Role         Role       `gorm:"not null;size:20" json:"role"`
	Status       UserStatus `gorm:"not null;size:20" json:"status"`
}

func (u *User) BeforeSave(_ *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleProjectManager
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	return prepareCredentials(&u.Email, &u.PasswordHash)
}

func (u *User) Ref() AccountRef { return AccountRef{Kind: KindUser, ID: u.ID} }
func (u *User) Secret() string  { return u.PasswordHash }

func (u *User) Identity() Identity {
	return Identity{
		Kind:        KindUser,
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        string(u.Role),
		DisplayName: displayName(u.FirstName, u.LastName, u.Email),
	}
}
