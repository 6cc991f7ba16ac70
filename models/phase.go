package models

import (
	"time"
)

type Phase struct {
	ID          uint      `gorm:"primaryKey" json:"phase_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ProjectID   uint      `gorm:"not null;index" json:"project_id"`
	Project     *Project  `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	PhaseName   string    `gorm:"not null;size:200" json:"phase_name"`
	Description *string   `json:"description"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	Status      string    `gorm:"not null;size:50" json:"status"`
	Subtasks    []Subtask `gorm:"foreignKey:PhaseID;constraint:OnDelete:CASCADE" json:"subtasks,omitempty"`
}

type Subtask struct {
	ID        uint      `gorm:"primaryKey" json:"subtask_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	PhaseID   uint      `gorm:"not null;index" json:"phase_id"`
	Title     string    `gorm:"not null;size:200" json:"title"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	Status    string    `gorm:"not null;size:50" json:"status"`
	Progress  int       `gorm:"not null;default:0" json:"progress"`
}

const DefaultTaskStatus = "not_started"
