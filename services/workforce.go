package services

import (
	"context"
	"fmt"

	"structura/apperr"
	"structura/database"
	"structura/logger"
	"structura/metrics"
	"structura/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WorkforceRegistry owns field workers and their subtask assignments.
// A (subtask, worker) pair is stored at most once.
type WorkforceRegistry struct {
	tm *database.TxManager
}

func NewWorkforceRegistry(tm *database.TxManager) *WorkforceRegistry {
	return &WorkforceRegistry{tm: tm}
}

type WorkerInput struct {
	ProjectID    uint            `json:"project_id" validate:"required"`
	UserID       *uint           `json:"user_id"`
	FirstName    string          `json:"first_name" validate:"required,max=100"`
	MiddleName   *string         `json:"middle_name" validate:"omitempty,max=100"`
	LastName     string          `json:"last_name" validate:"required,max=100"`
	PhoneNumber  string          `json:"phone_number" validate:"max=20"`
	Birthdate    *models.Date    `json:"birthdate"`
	Role         string          `json:"role" validate:"required,max=50"`
	Payrate      decimal.Decimal `json:"payrate"`
	SSSID        *string         `json:"sss_id" validate:"omitempty,max=30"`
	PhilHealthID *string         `json:"philhealth_id" validate:"omitempty,max=30"`
	PagIbigID    *string         `json:"pagibig_id" validate:"omitempty,max=30"`
}

// WorkerPatch updates a worker in place. A worker never changes project.
type WorkerPatch struct {
	FirstName    *string          `json:"first_name" validate:"omitempty,min=1,max=100"`
	MiddleName   *string          `json:"middle_name" validate:"omitempty,max=100"`
	LastName     *string          `json:"last_name" validate:"omitempty,min=1,max=100"`
	PhoneNumber  *string          `json:"phone_number" validate:"omitempty,max=20"`
	Birthdate    *models.Date     `json:"birthdate"`
	Role         *string          `json:"role" validate:"omitempty,min=1,max=50"`
	Payrate      *decimal.Decimal `json:"payrate"`
	SSSID        *string          `json:"sss_id" validate:"omitempty,max=30"`
	PhilHealthID *string          `json:"philhealth_id" validate:"omitempty,max=30"`
	PagIbigID    *string          `json:"pagibig_id" validate:"omitempty,max=30"`
}

func (r *WorkforceRegistry) CreateWorker(ctx context.Context, in WorkerInput) (*models.FieldWorker, error) {
	if err := apperr.Validate(&in); err != nil {
		return nil, err
	}
	if in.Payrate.IsNegative() {
		return nil, apperr.NewValidationError("payrate", "must not be negative")
	}
	worker := &models.FieldWorker{
		ProjectID:    in.ProjectID,
		UserID:       in.UserID,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		PhoneNumber:  in.PhoneNumber,
		Birthdate:    in.Birthdate,
		Role:         in.Role,
		Payrate:      in.Payrate,
		SSSID:        in.SSSID,
		PhilHealthID: in.PhilHealthID,
		PagIbigID:    in.PagIbigID,
	}
	err := r.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := requireRef(tx, &models.Project{}, in.ProjectID, "project"); err != nil {
			return err
		}
		if in.UserID != nil {
			if err := requireRef(tx, &models.User{}, *in.UserID, "user"); err != nil {
				return err
			}
		}
		return tx.Create(worker).Error
	})
	if err != nil {
		return nil, err
	}
	return worker, nil
}

func (r *WorkforceRegistry) GetWorker(ctx context.Context, id uint) (*models.FieldWorker, error) {
	var w models.FieldWorker
	err := r.tm.DB(ctx).First(&w, id).Error
	if database.IsNotFound(err) {
		return nil, apperr.NotFound("field worker", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading field worker %d: %w", id, err)
	}
	return &w, nil
}

func (r *WorkforceRegistry) UpdateWorker(ctx context.Context, id uint, patch WorkerPatch) (*models.FieldWorker, error) {
	if err := apperr.Validate(&patch); err != nil {
		return nil, err
	}
	if patch.Payrate != nil && patch.Payrate.IsNegative() {
		return nil, apperr.NewValidationError("payrate", "must not be negative")
	}
	var w models.FieldWorker
	err := r.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		w = models.FieldWorker{}
		err := database.ForUpdate(tx).First(&w, id).Error
		if database.IsNotFound(err) {
			return apperr.NotFound("field worker", id)
		}
		if err != nil {
			return err
		}
		setIf(&w.FirstName, patch.FirstName)
		setIf(&w.LastName, patch.LastName)
		setIf(&w.PhoneNumber, patch.PhoneNumber)
		setIf(&w.Role, patch.Role)
		setIf(&w.Payrate, patch.Payrate)
		setPtrIf(&w.MiddleName, patch.MiddleName)
		setPtrIf(&w.Birthdate, patch.Birthdate)
		setPtrIf(&w.SSSID, patch.SSSID)
		setPtrIf(&w.PhilHealthID, patch.PhilHealthID)
		setPtrIf(&w.PagIbigID, patch.PagIbigID)
		return tx.Save(&w).Error
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// DeleteWorker removes the worker with its assignments and attendance.
func (r *WorkforceRegistry) DeleteWorker(ctx context.Context, id uint) error {
	return deleteByID(r.tm.DB(ctx), &models.FieldWorker{}, id, "field worker")
}

// ListWorkersForProject returns the project's workers ordered by last then
// first name.
func (r *WorkforceRegistry) ListWorkersForProject(ctx context.Context, projectID uint) ([]models.FieldWorker, error) {
	db := r.tm.DB(ctx)
	if err := requireRow(db, &models.Project{}, projectID, "project"); err != nil {
		return nil, err
	}
	workers := []models.FieldWorker{}
	err := db.Where("project_id = ?", projectID).Order("last_name, first_name, id").Find(&workers).Error
	if err != nil {
		return nil, fmt.Errorf("listing workers: %w", err)
	}
	return workers, nil
}

// ListWorkers returns every field worker, newest first.
func (r *WorkforceRegistry) ListWorkers(ctx context.Context) ([]models.FieldWorker, error) {
	workers := []models.FieldWorker{}
	if err := r.tm.DB(ctx).Order("id DESC").Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("listing workers: %w", err)
	}
	return workers, nil
}

// AssignWorker links one worker to one subtask.
func (r *WorkforceRegistry) AssignWorker(ctx context.Context, pair models.AssignmentPair) (*models.SubtaskAssignment, error) {
	out, err := r.AssignWorkersBulk(ctx, []models.AssignmentPair{pair})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// AssignWorkersBulk validates every pair and then inserts them together.
// Any bad reference or duplicate, inside the batch or against stored rows,
// rejects the whole batch.
func (r *WorkforceRegistry) AssignWorkersBulk(ctx context.Context, pairs []models.AssignmentPair) ([]models.SubtaskAssignment, error) {
	if len(pairs) == 0 {
		return nil, apperr.NewValidationError("assignments", "at least one assignment is required")
	}
	seen := make(map[models.AssignmentPair]struct{}, len(pairs))
	for i, p := range pairs {
		if err := apperr.Validate(&p); err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			metrics.Conflicts.WithLabelValues(metrics.ConflictAssignment).Inc()
			return nil, apperr.Conflict("assignment %d repeats subtask %d and field worker %d", i, p.SubtaskID, p.FieldWorkerID)
		}
		seen[p] = struct{}{}
	}

	rows := make([]models.SubtaskAssignment, len(pairs))
	err := r.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		subtaskProjects := map[uint]uint{}
		workerProjects := map[uint]uint{}
		for i, p := range pairs {
			sp, err := cachedLookup(subtaskProjects, p.SubtaskID, func() (uint, error) { return subtaskProject(tx, p.SubtaskID) })
			if err != nil {
				return err
			}
			wp, err := cachedLookup(workerProjects, p.FieldWorkerID, func() (uint, error) { return workerProject(tx, p.FieldWorkerID) })
			if err != nil {
				return err
			}
			if sp != wp {
				return apperr.NewValidationError("field_worker_id",
					fmt.Sprintf("field worker %d is not on the project of subtask %d", p.FieldWorkerID, p.SubtaskID))
			}
			var existing int64
			err = tx.Model(&models.SubtaskAssignment{}).
				Where("subtask_id = ? AND field_worker_id = ?", p.SubtaskID, p.FieldWorkerID).
				Count(&existing).Error
			if err != nil {
				return err
			}
			if existing > 0 {
				return assignmentTaken(p)
			}
			rows[i] = models.SubtaskAssignment{SubtaskID: p.SubtaskID, FieldWorkerID: p.FieldWorkerID}
		}
		if err := tx.Create(&rows).Error; err != nil {
			if database.IsUniqueViolation(err) {
				metrics.Conflicts.WithLabelValues(metrics.ConflictAssignment).Inc()
				return apperr.Conflict("field worker already assigned to subtask")
			}
			return fmt.Errorf("inserting assignments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Assigned field workers", "count", len(rows))
	return rows, nil
}

// UnassignBySubtask deletes every assignment of a subtask and reports how
// many rows went.
func (r *WorkforceRegistry) UnassignBySubtask(ctx context.Context, subtaskID uint) (int64, error) {
	if subtaskID == 0 {
		return 0, apperr.NewValidationError("subtask_id", "is required")
	}
	res := r.tm.DB(ctx).Where("subtask_id = ?", subtaskID).Delete(&models.SubtaskAssignment{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting assignments of subtask %d: %w", subtaskID, res.Error)
	}
	return res.RowsAffected, nil
}

// Unassign deletes one assignment by its own id.
func (r *WorkforceRegistry) Unassign(ctx context.Context, id uint) error {
	return deleteByID(r.tm.DB(ctx), &models.SubtaskAssignment{}, id, "assignment")
}

// ListAssignmentsForSubtask returns the subtask's assignments with their
// workers, oldest first.
func (r *WorkforceRegistry) ListAssignmentsForSubtask(ctx context.Context, subtaskID uint) ([]models.SubtaskAssignment, error) {
	db := r.tm.DB(ctx)
	if err := requireRow(db, &models.Subtask{}, subtaskID, "subtask"); err != nil {
		return nil, err
	}
	out := []models.SubtaskAssignment{}
	err := db.Preload("FieldWorker").Where("subtask_id = ?", subtaskID).Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	return out, nil
}

func cachedLookup(cache map[uint]uint, id uint, load func() (uint, error)) (uint, error) {
	if v, ok := cache[id]; ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return 0, err
	}
	cache[id] = v
	return v, nil
}

type projectRef struct {
	ProjectID uint
}

func subtaskProject(tx *gorm.DB, subtaskID uint) (uint, error) {
	var row projectRef
	err := tx.Table("subtasks").
		Select("phases.project_id").
		Joins("JOIN phases ON phases.id = subtasks.phase_id").
		Where("subtasks.id = ?", subtaskID).
		Take(&row).Error
	if database.IsNotFound(err) {
		return 0, apperr.InvalidReference("subtask", subtaskID)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving subtask %d: %w", subtaskID, err)
	}
	return row.ProjectID, nil
}

func workerProject(tx *gorm.DB, workerID uint) (uint, error) {
	var row projectRef
	err := tx.Model(&models.FieldWorker{}).Select("project_id").Where("id = ?", workerID).Take(&row).Error
	if database.IsNotFound(err) {
		return 0, apperr.InvalidReference("field worker", workerID)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving field worker %d: %w", workerID, err)
	}
	return row.ProjectID, nil
}

func assignmentTaken(p models.AssignmentPair) error {
	metrics.Conflicts.WithLabelValues(metrics.ConflictAssignment).Inc()
	return apperr.Conflict("field worker %d is already assigned to subtask %d", p.FieldWorkerID, p.SubtaskID)
}
