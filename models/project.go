package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project is owned by a User and may carry one supervisor and one client.
// SupervisorID and ClientID are unique so an assignee can back at most one
// project; the assignee rows hold the mirrored ProjectID.
type Project struct {
	ID           uint            `gorm:"primaryKey" json:"project_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ProjectImage *string         `gorm:"size:500" json:"project_image"`
	ProjectName  string          `gorm:"not null;size:200" json:"project_name"`
	Description  *string         `json:"description"`
	UserID       *uint           `gorm:"index" json:"user_id"`
	User         *User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	RegionID     *uint           `json:"region"`
	ProvinceID   *uint           `json:"province"`
	CityID       *uint           `json:"city"`
	BarangayID   *uint           `json:"barangay"`
	Street       *string         `gorm:"size:200" json:"street"`
	ProjectType  string          `gorm:"size:100" json:"project_type"`
	StartDate    *Date           `json:"start_date"`
	EndDate      *Date           `json:"end_date"`
	SupervisorID *uint           `gorm:"uniqueIndex" json:"supervisor_id"`
	ClientID     *uint           `gorm:"uniqueIndex" json:"client_id"`
	Budget       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"budget"`
	Status       string          `gorm:"not null;size:50" json:"status"`
}

const DefaultProjectStatus = "Planning"

// AssigneeID returns the project's current assignee of the given kind.
func (p *Project) AssigneeID(kind AccountKind) *uint {
	switch kind {
	case KindSupervisor:
		return p.SupervisorID
	case KindClient:
		return p.ClientID
	}
	return nil
}

func (p *Project) SetAssigneeID(kind AccountKind, id *uint) {
	switch kind {
	case KindSupervisor:
		p.SupervisorID = id
	case KindClient:
		p.ClientID = id
	}
}
