package services

import (
	"context"
	"fmt"
	"time"

	"structura/apperr"
	"structura/database"
	"structura/logger"
	"structura/metrics"
	"structura/models"

	"gorm.io/gorm"
)

// AttendanceLedger keeps one record per worker per day. Creating and
// updating are separate calls; creating twice for the same day conflicts.
type AttendanceLedger struct {
	tm *database.TxManager
}

func NewAttendanceLedger(tm *database.TxManager) *AttendanceLedger {
	return &AttendanceLedger{tm: tm}
}

// AttendanceFields are the mutable parts of a day's record. Timestamps drive
// the status: check-in and break-out mean on site, break-in means on break.
// Check-out is recorded without touching the status.
type AttendanceFields struct {
	Status       *models.AttendanceStatus `json:"status"`
	CheckInTime  *time.Time               `json:"check_in_time"`
	CheckOutTime *time.Time               `json:"check_out_time"`
	BreakInTime  *time.Time               `json:"break_in_time"`
	BreakOutTime *time.Time               `json:"break_out_time"`
}

type RecordAttendanceInput struct {
	FieldWorkerID  uint         `json:"field_worker_id" validate:"required"`
	ProjectID      uint         `json:"project_id"`
	AttendanceDate *models.Date `json:"attendance_date" validate:"required"`
	AttendanceFields
}

// Record creates the record for (worker, date). ProjectID defaults to the
// worker's project and must match it when given.
func (l *AttendanceLedger) Record(ctx context.Context, in RecordAttendanceInput) (*models.Attendance, error) {
	if err := apperr.Validate(&in); err != nil {
		return nil, err
	}
	var rec *models.Attendance
	err := l.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		projectID, err := workerProject(tx, in.FieldWorkerID)
		if err != nil {
			return err
		}
		if in.ProjectID != 0 && in.ProjectID != projectID {
			return apperr.NewValidationError("project_id",
				fmt.Sprintf("field worker %d belongs to project %d", in.FieldWorkerID, projectID))
		}

		var existing int64
		err = tx.Model(&models.Attendance{}).
			Where("field_worker_id = ? AND attendance_date = ?", in.FieldWorkerID, *in.AttendanceDate).
			Count(&existing).Error
		if err != nil {
			return err
		}
		if existing > 0 {
			return attendanceTaken(in.FieldWorkerID, *in.AttendanceDate)
		}

		rec = &models.Attendance{
			FieldWorkerID:  in.FieldWorkerID,
			ProjectID:      projectID,
			AttendanceDate: *in.AttendanceDate,
			Status:         models.AttendanceAbsent,
		}
		if err := applyAttendance(rec, in.AttendanceFields); err != nil {
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return attendanceTaken(in.FieldWorkerID, *in.AttendanceDate)
			}
			return fmt.Errorf("creating attendance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("Attendance recorded", "attendance_id", rec.ID,
		"field_worker_id", rec.FieldWorkerID, "date", rec.AttendanceDate, "status", rec.Status)
	return rec, nil
}

// Update changes an existing record addressed by its id.
func (l *AttendanceLedger) Update(ctx context.Context, id uint, fields AttendanceFields) (*models.Attendance, error) {
	return l.update(ctx, fields, func(tx *gorm.DB, rec *models.Attendance) error {
		err := database.ForUpdate(tx).First(rec, id).Error
		if database.IsNotFound(err) {
			return apperr.NotFound("attendance", id)
		}
		return err
	})
}

// UpdateByKey changes the record of workerID on date.
func (l *AttendanceLedger) UpdateByKey(ctx context.Context, workerID uint, date models.Date, fields AttendanceFields) (*models.Attendance, error) {
	return l.update(ctx, fields, func(tx *gorm.DB, rec *models.Attendance) error {
		err := database.ForUpdate(tx).
			Where("field_worker_id = ? AND attendance_date = ?", workerID, date).
			Take(rec).Error
		if database.IsNotFound(err) {
			return fmt.Errorf("attendance of field worker %d on %s: %w", workerID, date, apperr.ErrNotFound)
		}
		return err
	})
}

func (l *AttendanceLedger) update(ctx context.Context, fields AttendanceFields, load func(*gorm.DB, *models.Attendance) error) (*models.Attendance, error) {
	var rec models.Attendance
	err := l.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		rec = models.Attendance{}
		if err := load(tx, &rec); err != nil {
			return err
		}
		if err := applyAttendance(&rec, fields); err != nil {
			return err
		}
		return tx.Save(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *AttendanceLedger) Delete(ctx context.Context, id uint) error {
	return deleteByID(l.tm.DB(ctx), &models.Attendance{}, id, "attendance")
}

// Query lists records matching filter, newest date first.
func (l *AttendanceLedger) Query(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	q := l.tm.DB(ctx).Model(&models.Attendance{})
	if filter.ProjectID != 0 {
		q = q.Where("project_id = ?", filter.ProjectID)
	}
	if filter.FieldWorkerID != 0 {
		q = q.Where("field_worker_id = ?", filter.FieldWorkerID)
	}
	if filter.Date != nil {
		q = q.Where("attendance_date = ?", *filter.Date)
	}
	out := []models.Attendance{}
	if err := q.Order("attendance_date DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("querying attendance: %w", err)
	}
	return out, nil
}

// applyAttendance sets an explicit status first and then lets timestamps
// move it along.
func applyAttendance(rec *models.Attendance, f AttendanceFields) error {
	if f.Status != nil {
		if !f.Status.Valid() {
			return apperr.NewValidationError("status", "must be one of absent, on_site, on_break")
		}
		rec.Status = *f.Status
	}
	if f.CheckInTime != nil {
		rec.CheckInTime = utc(f.CheckInTime)
		rec.Status = models.AttendanceOnSite
	}
	if f.BreakInTime != nil {
		if rec.CheckInTime == nil {
			return apperr.NewValidationError("break_in_time", "requires check_in_time")
		}
		rec.BreakInTime = utc(f.BreakInTime)
		rec.Status = models.AttendanceOnBreak
	}
	if f.BreakOutTime != nil {
		if rec.BreakInTime == nil {
			return apperr.NewValidationError("break_out_time", "requires break_in_time")
		}
		rec.BreakOutTime = utc(f.BreakOutTime)
		rec.Status = models.AttendanceOnSite
	}
	if f.CheckOutTime != nil {
		if rec.CheckInTime == nil {
			return apperr.NewValidationError("check_out_time", "requires check_in_time")
		}
		rec.CheckOutTime = utc(f.CheckOutTime)
	}
	return nil
}

func utc(t *time.Time) *time.Time {
	u := t.UTC()
	return &u
}

func attendanceTaken(workerID uint, date models.Date) error {
	metrics.Conflicts.WithLabelValues(metrics.ConflictAttendance).Inc()
	return apperr.Conflict("attendance for field worker %d on %s already exists", workerID, date)
}
