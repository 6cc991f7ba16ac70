package models

import (
	"time"
)

// SubtaskAssignment links a field worker to a subtask. The pair is unique.
type SubtaskAssignment struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	SubtaskID     uint         `gorm:"not null;uniqueIndex:idx_subtask_worker,priority:1" json:"subtask_id"`
	Subtask       *Subtask     `gorm:"foreignKey:SubtaskID;constraint:OnDelete:CASCADE" json:"-"`
	FieldWorkerID uint         `gorm:"not null;index;uniqueIndex:idx_subtask_worker,priority:2" json:"field_worker_id"`
	FieldWorker   *FieldWorker `gorm:"foreignKey:FieldWorkerID;constraint:OnDelete:CASCADE" json:"field_worker,omitempty"`
}

// AssignmentPair is one requested (subtask, worker) link.
type AssignmentPair struct {
	SubtaskID     uint `json:"subtask_id" validate:"required"`
	FieldWorkerID uint `json:"field_worker_id" validate:"required"`
}
