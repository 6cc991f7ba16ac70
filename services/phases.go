package services

import (
	"context"
	"fmt"

	"structura/apperr"
	"structura/database"
	"structura/models"

	"gorm.io/gorm"
)

// PhaseService manages a project's phases and their subtasks.
type PhaseService struct {
	tm *database.TxManager
}

func NewPhaseService(tm *database.TxManager) *PhaseService {
	return &PhaseService{tm: tm}
}

type PhaseInput struct {
	ProjectID   uint    `json:"project_id" validate:"required"`
	PhaseName   string  `json:"phase_name" validate:"required,max=200"`
	Description *string `json:"description"`
	SortOrder   int     `json:"sort_order" validate:"min=0"`
	Status      string  `json:"status" validate:"max=50"`
}

type PhasePatch struct {
	PhaseName   *string `json:"phase_name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	SortOrder   *int    `json:"sort_order" validate:"omitempty,min=0"`
	Status      *string `json:"status" validate:"omitempty,max=50"`
}

type SubtaskInput struct {
	PhaseID   uint   `json:"phase_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=200"`
	SortOrder int    `json:"sort_order" validate:"min=0"`
	Status    string `json:"status" validate:"max=50"`
	Progress  int    `json:"progress" validate:"min=0,max=100"`
}

type SubtaskPatch struct {
	Title     *string `json:"title" validate:"omitempty,min=1,max=200"`
	SortOrder *int    `json:"sort_order" validate:"omitempty,min=0"`
	Status    *string `json:"status" validate:"omitempty,max=50"`
	Progress  *int    `json:"progress" validate:"omitempty,min=0,max=100"`
}

func (s *PhaseService) CreatePhase(ctx context.Context, in PhaseInput) (*models.Phase, error) {
	if err := apperr.Validate(&in); err != nil {
		return nil, err
	}
	phase := &models.Phase{
		ProjectID:   in.ProjectID,
		PhaseName:   in.PhaseName,
		Description: in.Description,
		SortOrder:   in.SortOrder,
		Status:      orDefault(in.Status, models.DefaultTaskStatus),
	}
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := requireRef(tx, &models.Project{}, in.ProjectID, "project"); err != nil {
			return err
		}
		return tx.Create(phase).Error
	})
	if err != nil {
		return nil, err
	}
	return phase, nil
}

// ListPhases returns the project's phases with their subtasks, both in
// display order.
func (s *PhaseService) ListPhases(ctx context.Context, projectID uint) ([]models.Phase, error) {
	phases := []models.Phase{}
	err := s.tm.DB(ctx).
		Preload("Subtasks", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Where("project_id = ?", projectID).
		Order("sort_order, id").
		Find(&phases).Error
	if err != nil {
		return nil, fmt.Errorf("listing phases: %w", err)
	}
	return phases, nil
}

func (s *PhaseService) GetPhase(ctx context.Context, id uint) (*models.Phase, error) {
	var phase models.Phase
	err := s.tm.DB(ctx).
		Preload("Subtasks", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		First(&phase, id).Error
	if database.IsNotFound(err) {
		return nil, apperr.NotFound("phase", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading phase %d: %w", id, err)
	}
	return &phase, nil
}

func (s *PhaseService) UpdatePhase(ctx context.Context, id uint, patch PhasePatch) (*models.Phase, error) {
	if err := apperr.Validate(&patch); err != nil {
		return nil, err
	}
	var phase models.Phase
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		phase = models.Phase{}
		err := database.ForUpdate(tx).First(&phase, id).Error
		if database.IsNotFound(err) {
			return apperr.NotFound("phase", id)
		}
		if err != nil {
			return err
		}
		setIf(&phase.PhaseName, patch.PhaseName)
		setIf(&phase.SortOrder, patch.SortOrder)
		setIf(&phase.Status, patch.Status)
		setPtrIf(&phase.Description, patch.Description)
		return tx.Save(&phase).Error
	})
	if err != nil {
		return nil, err
	}
	return &phase, nil
}

// DeletePhase removes the phase; subtasks and their assignments cascade.
func (s *PhaseService) DeletePhase(ctx context.Context, id uint) error {
	return deleteByID(s.tm.DB(ctx), &models.Phase{}, id, "phase")
}

func (s *PhaseService) CreateSubtask(ctx context.Context, in SubtaskInput) (*models.Subtask, error) {
	if err := apperr.Validate(&in); err != nil {
		return nil, err
	}
	st := &models.Subtask{
		PhaseID:   in.PhaseID,
		Title:     in.Title,
		SortOrder: in.SortOrder,
		Status:    orDefault(in.Status, models.DefaultTaskStatus),
		Progress:  in.Progress,
	}
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := requireRef(tx, &models.Phase{}, in.PhaseID, "phase"); err != nil {
			return err
		}
		return tx.Create(st).Error
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PhaseService) ListSubtasks(ctx context.Context, phaseID uint) ([]models.Subtask, error) {
	out := []models.Subtask{}
	if err := s.tm.DB(ctx).Where("phase_id = ?", phaseID).Order("sort_order, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing subtasks: %w", err)
	}
	return out, nil
}

func (s *PhaseService) UpdateSubtask(ctx context.Context, id uint, patch SubtaskPatch) (*models.Subtask, error) {
	if err := apperr.Validate(&patch); err != nil {
		return nil, err
	}
	var st models.Subtask
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		st = models.Subtask{}
		err := database.ForUpdate(tx).First(&st, id).Error
		if database.IsNotFound(err) {
			return apperr.NotFound("subtask", id)
		}
		if err != nil {
			return err
		}
		setIf(&st.Title, patch.Title)
		setIf(&st.SortOrder, patch.SortOrder)
		setIf(&st.Status, patch.Status)
		setIf(&st.Progress, patch.Progress)
		return tx.Save(&st).Error
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PhaseService) DeleteSubtask(ctx context.Context, id uint) error {
	return deleteByID(s.tm.DB(ctx), &models.Subtask{}, id, "subtask")
}

func deleteByID(db *gorm.DB, model any, id uint, entity string) error {
	res := db.Delete(model, id)
	if res.Error != nil {
		return fmt.Errorf("deleting %s %d: %w", entity, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
