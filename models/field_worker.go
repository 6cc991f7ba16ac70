package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FieldWorker is a day-rate worker that always belongs to exactly one project.
type FieldWorker struct {
	ID           uint            `gorm:"primaryKey" json:"field_worker_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ProjectID    uint            `gorm:"not null;index" json:"project_id"`
	Project      *Project        `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	UserID       *uint           `gorm:"index" json:"user_id"`
	User         *User           `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	FirstName    string          `gorm:"not null;size:100" json:"first_name"`
	MiddleName   *string         `gorm:"size:100" json:"middle_name"`
	LastName     string          `gorm:"not null;size:100" json:"last_name"`
	PhoneNumber  string          `gorm:"size:20" json:"phone_number"`
	Birthdate    *Date           `json:"birthdate"`
	Role         string          `gorm:"not null;size:50" json:"role"`
	Payrate      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"payrate"`
	SSSID        *string         `gorm:"column:sss_id;size:30" json:"sss_id"`
	PhilHealthID *string         `gorm:"column:philhealth_id;size:30" json:"philhealth_id"`
	PagIbigID    *string         `gorm:"column:pagibig_id;size:30" json:"pagibig_id"`
}

func (w *FieldWorker) FullName() string {
	return w.FirstName + " " + w.LastName
}
