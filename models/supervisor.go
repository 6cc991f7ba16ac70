package models

import (
	"time"

	"gorm.io/gorm"
)

type SupervisorStatus string

const (
	SupervisorActive      SupervisorStatus = "active"
	SupervisorDeactivated SupervisorStatus = "deactivated"
	SupervisorFired       SupervisorStatus = "fired"
)

// Supervisor runs a single project on site. ProjectID mirrors
// Project.SupervisorID and is only written by the assignment coordinator.
type Supervisor struct {
	ID           uint             `gorm:"primaryKey" json:"supervisor_id"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ProjectID    *uint            `gorm:"index" json:"project_id"`
	Project      *Project         `gorm:"foreignKey:ProjectID;constraint:OnDelete:SET NULL" json:"-"`
	FirstName    string           `gorm:"not null;size:100" json:"first_name"`
	MiddleName   *string          `gorm:"size:100" json:"middle_name"`
	LastName     string           `gorm:"not null;size:100" json:"last_name"`
	Email        string           `gorm:"uniqueIndex;not null;size:100" json:"email"`
	PasswordHash string           `gorm:"not null;size:255" json:"-"`
	PhoneNumber  string           `gorm:"size:20" json:"phone_number"`
	Birthdate    *Date            `json:"birthdate"`
	Status       SupervisorStatus `gorm:"not null;size:20" json:"status"`
}

func (s *Supervisor) BeforeSave(_ *gorm.DB) error {
	if s.Status == "" {
		s.Status = SupervisorActive
	}
	return prepareCredentials(&s.Email, &s.PasswordHash)
}

// Role is fixed by the account variant.
func (*Supervisor) Role() string { return "Supervisor" }

func (s *Supervisor) Ref() AccountRef { return AccountRef{Kind: KindSupervisor, ID: s.ID} }
func (s *Supervisor) Secret() string  { return s.PasswordHash }

func (s *Supervisor) Identity() Identity {
	return Identity{
		Kind:        KindSupervisor,
		ID:          s.ID,
		Email:       s.Email,
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		Role:        s.Role(),
		DisplayName: displayName(s.FirstName, s.LastName, s.Email),
		ProjectID:   s.ProjectID,
	}
}
