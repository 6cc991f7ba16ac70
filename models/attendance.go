package models

import (
	"time"
)

type AttendanceStatus string

const (
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceOnSite  AttendanceStatus = "on_site"
	AttendanceOnBreak AttendanceStatus = "on_break"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceAbsent, AttendanceOnSite, AttendanceOnBreak:
		return true
	}
	return false
}

// Attendance is the single record of a worker's day.
type Attendance struct {
	ID             uint             `gorm:"primaryKey" json:"attendance_id"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	FieldWorkerID  uint             `gorm:"not null;uniqueIndex:idx_worker_date,priority:1" json:"field_worker_id"`
	FieldWorker    *FieldWorker     `gorm:"foreignKey:FieldWorkerID;constraint:OnDelete:CASCADE" json:"-"`
	ProjectID      uint             `gorm:"not null;index" json:"project_id"`
	Project        *Project         `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	AttendanceDate Date             `gorm:"not null;index;uniqueIndex:idx_worker_date,priority:2" json:"attendance_date"`
	Status         AttendanceStatus `gorm:"not null;size:20" json:"status"`
	CheckInTime    *time.Time       `json:"check_in_time"`
	CheckOutTime   *time.Time       `json:"check_out_time"`
	BreakInTime    *time.Time       `json:"break_in_time"`
	BreakOutTime   *time.Time       `json:"break_out_time"`
}

type AttendanceFilter struct {
	ProjectID     uint
	FieldWorkerID uint
	Date          *Date
}
