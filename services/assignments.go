// Package services holds the transactional units of work behind the REST surface.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"structura/apperr"
	"structura/database"
	"structura/logger"
	"structura/metrics"
	"structura/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// assigneeKinds are the account variants a project links to, in lock order.
var assigneeKinds = []models.AccountKind{models.KindSupervisor, models.KindClient}

// AssignmentCoordinator keeps Project.SupervisorID/ClientID and the
// assignee's ProjectID pointing at each other. Every write to either side
// goes through here, inside one transaction. Locks are taken project rows
// first, then assignee rows ordered by kind and id.
type AssignmentCoordinator struct {
	tm *database.TxManager
}

func NewAssignmentCoordinator(tm *database.TxManager) *AssignmentCoordinator {
	return &AssignmentCoordinator{tm: tm}
}

type CreateProjectInput struct {
	ProjectName  string           `json:"project_name" validate:"required,max=200"`
	UserID       *uint            `json:"user_id" validate:"required"`
	ProjectImage *string          `json:"project_image" validate:"omitempty,max=500"`
	Description  *string          `json:"description"`
	ProjectType  string           `json:"project_type" validate:"max=100"`
	RegionID     *uint            `json:"region"`
	ProvinceID   *uint            `json:"province"`
	CityID       *uint            `json:"city"`
	BarangayID   *uint            `json:"barangay"`
	Street       *string          `json:"street" validate:"omitempty,max=200"`
	StartDate    *models.Date     `json:"start_date"`
	EndDate      *models.Date     `json:"end_date"`
	Budget       *decimal.Decimal `json:"budget"`
	Status       string           `json:"status" validate:"max=50"`
	SupervisorID *uint            `json:"supervisor_id"`
	ClientID     *uint            `json:"client_id"`
}

func (in *CreateProjectInput) validate() error {
	if err := apperr.Validate(in); err != nil {
		return err
	}
	if in.Budget != nil && in.Budget.IsNegative() {
		return apperr.NewValidationError("budget", "must not be negative")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(in.StartDate.Time) {
		return apperr.NewValidationError("end_date", "must not be before start_date")
	}
	return nil
}

// ProjectPatch is a partial update. Assignee fields are tri-state: omitted
// leaves the link alone, null unassigns, a value reassigns.
type ProjectPatch struct {
	ProjectName  *string           `json:"project_name" validate:"omitempty,min=1,max=200"`
	ProjectImage *string           `json:"project_image" validate:"omitempty,max=500"`
	Description  *string           `json:"description"`
	ProjectType  *string           `json:"project_type" validate:"omitempty,max=100"`
	RegionID     *uint             `json:"region"`
	ProvinceID   *uint             `json:"province"`
	CityID       *uint             `json:"city"`
	BarangayID   *uint             `json:"barangay"`
	Street       *string           `json:"street" validate:"omitempty,max=200"`
	StartDate    *models.Date      `json:"start_date"`
	EndDate      *models.Date      `json:"end_date"`
	Budget       *decimal.Decimal  `json:"budget"`
	Status       *string           `json:"status" validate:"omitempty,max=50"`
	SupervisorID models.NullableID `json:"supervisor_id"`
	ClientID     models.NullableID `json:"client_id"`
}

func (p *ProjectPatch) assignee(kind models.AccountKind) models.NullableID {
	if kind == models.KindSupervisor {
		return p.SupervisorID
	}
	return p.ClientID
}

func (p *ProjectPatch) apply(project *models.Project) error {
	if p.Budget != nil && p.Budget.IsNegative() {
		return apperr.NewValidationError("budget", "must not be negative")
	}
	setIf(&project.ProjectName, p.ProjectName)
	setIf(&project.ProjectType, p.ProjectType)
	setIf(&project.Status, p.Status)
	setIf(&project.Budget, p.Budget)
	setPtrIf(&project.ProjectImage, p.ProjectImage)
	setPtrIf(&project.Description, p.Description)
	setPtrIf(&project.RegionID, p.RegionID)
	setPtrIf(&project.ProvinceID, p.ProvinceID)
	setPtrIf(&project.CityID, p.CityID)
	setPtrIf(&project.BarangayID, p.BarangayID)
	setPtrIf(&project.Street, p.Street)
	setPtrIf(&project.StartDate, p.StartDate)
	setPtrIf(&project.EndDate, p.EndDate)
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(project.StartDate.Time) {
		return apperr.NewValidationError("end_date", "must not be before start_date")
	}
	return nil
}

// CreateProject inserts the project and points the given supervisor and
// client back at it in the same transaction.
func (c *AssignmentCoordinator) CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var project *models.Project
	err := c.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.User{}, *in.UserID, "user"); err != nil {
			return err
		}
		for _, kind := range assigneeKinds {
			id := in.assignee(kind)
			if id == nil {
				continue
			}
			row, err := lockAssignee(tx, kind, *id)
			if err != nil {
				return err
			}
			if row.ProjectID != nil {
				return assigneeTaken(kind, *id, *row.ProjectID)
			}
		}

		project = in.toModel()
		if err := tx.Create(project).Error; err != nil {
			if database.IsUniqueViolation(err) {
				metrics.Conflicts.WithLabelValues(metrics.ConflictProject).Inc()
				return apperr.Conflict("assignee already linked to another project")
			}
			return fmt.Errorf("creating project: %w", err)
		}
		for _, kind := range assigneeKinds {
			if id := in.assignee(kind); id != nil {
				if err := setBackReference(tx, kind, *id, &project.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Project created", "project_id", project.ID,
		"supervisor_id", project.SupervisorID, "client_id", project.ClientID)
	return project, nil
}

// UpdateProject applies patch and reconciles both assignee links.
func (c *AssignmentCoordinator) UpdateProject(ctx context.Context, projectID uint, patch ProjectPatch) (*models.Project, error) {
	if err := apperr.Validate(&patch); err != nil {
		return nil, err
	}
	var project models.Project
	err := c.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		project = models.Project{}
		if err := lockProject(tx, projectID, &project); err != nil {
			return err
		}
		if err := patch.apply(&project); err != nil {
			return err
		}
		for _, kind := range assigneeKinds {
			want := patch.assignee(kind)
			if !want.Set {
				continue
			}
			if err := reassign(tx, &project, kind, want.Value); err != nil {
				return err
			}
		}
		return saveProject(tx, &project)
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// AssignAccount links an assignee to a project from the account side. A null
// value detaches the account from whatever project it is on.
func (c *AssignmentCoordinator) AssignAccount(ctx context.Context, kind models.AccountKind, accountID uint, target models.NullableID) error {
	if kind.ProjectColumn() == "" {
		return apperr.NewValidationError("type", "only supervisors and clients can be assigned")
	}
	if !target.Set {
		return nil
	}
	return c.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		return assignAccountTx(tx, kind, accountID, target)
	})
}

func assignAccountTx(tx *gorm.DB, kind models.AccountKind, accountID uint, target models.NullableID) error {
	if !target.Set {
		return nil
	}
	if target.Value == nil {
		return detachAccount(tx, kind, accountID)
	}
	var project models.Project
	if err := lockProject(tx, *target.Value, &project); err != nil {
		return err
	}
	current := project.AssigneeID(kind)
	if current != nil && *current != accountID {
		metrics.Conflicts.WithLabelValues(metrics.ConflictProject).Inc()
		return apperr.Conflict("project %d already has %s %d", project.ID, kind, *current)
	}
	if err := reassign(tx, &project, kind, &accountID); err != nil {
		return err
	}
	return saveProject(tx, &project)
}

// DeleteProject removes a project and clears any assignee pointing at it.
// Phases, subtasks, workers and attendance go with it by cascade.
func (c *AssignmentCoordinator) DeleteProject(ctx context.Context, projectID uint) error {
	return c.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		var project models.Project
		if err := lockProject(tx, projectID, &project); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, kind := range assigneeKinds {
			err := tx.Table(kind.Table()).Where("project_id = ?", projectID).
				Updates(map[string]any{"project_id": nil, "updated_at": now}).Error
			if err != nil {
				return fmt.Errorf("clearing %s back-references: %w", kind, err)
			}
		}
		if err := tx.Delete(&models.Project{}, projectID).Error; err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		return nil
	})
}

// DeleteAccount removes an account. For assignees the project side is
// cleared first so the project row is locked before the account row.
func (c *AssignmentCoordinator) DeleteAccount(ctx context.Context, kind models.AccountKind, accountID uint) error {
	table := kind.Table()
	if table == "" {
		return apperr.NewValidationError("type", "unknown account type")
	}
	return c.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if col := kind.ProjectColumn(); col != "" {
			err := tx.Model(&models.Project{}).Where(col+" = ?", accountID).
				Updates(map[string]any{col: nil, "updated_at": time.Now().UTC()}).Error
			if err != nil {
				return fmt.Errorf("clearing project %s: %w", col, err)
			}
		}
		res := tx.Exec("DELETE FROM "+table+" WHERE id = ?", accountID)
		if res.Error != nil {
			return fmt.Errorf("deleting %s: %w", kind, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(string(kind), accountID)
		}
		return nil
	})
}

// AssignmentViolation describes one broken project/assignee link.
type AssignmentViolation struct {
	Kind      models.AccountKind `json:"kind"`
	ProjectID uint               `json:"project_id"`
	AccountID uint               `json:"account_id"`
	Detail    string             `json:"detail"`
}

// VerifyAssignments scans both sides of every link and reports mismatches.
func (c *AssignmentCoordinator) VerifyAssignments(ctx context.Context) ([]AssignmentViolation, error) {
	db := c.tm.DB(ctx)
	var projects []models.Project
	if err := db.Select("id", "supervisor_id", "client_id").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	var out []AssignmentViolation
	for _, kind := range assigneeKinds {
		var rows []assigneeRow
		if err := db.Table(kind.Table()).Select("id", "project_id").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("loading %s rows: %w", kind, err)
		}
		backRefs := make(map[uint]*uint, len(rows))
		for _, r := range rows {
			backRefs[r.ID] = r.ProjectID
		}
		forward := make(map[uint]uint)
		for i := range projects {
			id := projects[i].AssigneeID(kind)
			if id == nil {
				continue
			}
			forward[*id] = projects[i].ID
			if ref := backRefs[*id]; ref == nil || *ref != projects[i].ID {
				out = append(out, AssignmentViolation{Kind: kind, ProjectID: projects[i].ID, AccountID: *id,
					Detail: "project points at account but account does not point back"})
			}
		}
		for _, r := range rows {
			if r.ProjectID == nil {
				continue
			}
			if pid, ok := forward[r.ID]; !ok || pid != *r.ProjectID {
				out = append(out, AssignmentViolation{Kind: kind, ProjectID: *r.ProjectID, AccountID: r.ID,
					Detail: "account points at project but project does not point back"})
			}
		}
	}
	return out, nil
}

type assigneeRow struct {
	ID        uint
	ProjectID *uint
}

func (in *CreateProjectInput) assignee(kind models.AccountKind) *uint {
	if kind == models.KindSupervisor {
		return in.SupervisorID
	}
	return in.ClientID
}

func (in *CreateProjectInput) toModel() *models.Project {
	p := &models.Project{
		ProjectName:  in.ProjectName,
		UserID:       in.UserID,
		ProjectImage: in.ProjectImage,
		Description:  in.Description,
		ProjectType:  in.ProjectType,
		RegionID:     in.RegionID,
		ProvinceID:   in.ProvinceID,
		CityID:       in.CityID,
		BarangayID:   in.BarangayID,
		Street:       in.Street,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		SupervisorID: in.SupervisorID,
		ClientID:     in.ClientID,
		Status:       in.Status,
	}
	if in.Budget != nil {
		p.Budget = *in.Budget
	}
	if p.Status == "" {
		p.Status = models.DefaultProjectStatus
	}
	return p
}

// reassign moves project's link of the given kind from its current assignee
// to newID, updating both back-references. project is saved by the caller.
func reassign(tx *gorm.DB, project *models.Project, kind models.AccountKind, newID *uint) error {
	oldID := project.AssigneeID(kind)
	if models.SameID(oldID, newID) {
		return nil
	}

	ids := make([]uint, 0, 2)
	if oldID != nil {
		ids = append(ids, *oldID)
	}
	if newID != nil {
		ids = append(ids, *newID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	locked := make(map[uint]*assigneeRow, len(ids))
	for _, id := range ids {
		row, err := lockAssignee(tx, kind, id)
		if err != nil {
			if oldID != nil && id == *oldID && errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return err
		}
		locked[id] = row
	}

	if newID != nil {
		row := locked[*newID]
		if row.ProjectID != nil && *row.ProjectID != project.ID {
			return assigneeTaken(kind, *newID, *row.ProjectID)
		}
	}
	if oldID != nil {
		if row, ok := locked[*oldID]; ok && models.SameID(row.ProjectID, &project.ID) {
			if err := setBackReference(tx, kind, *oldID, nil); err != nil {
				return err
			}
		}
	}
	if newID != nil {
		if err := setBackReference(tx, kind, *newID, &project.ID); err != nil {
			return err
		}
	}
	project.SetAssigneeID(kind, newID)
	logger.FromContext(tx.Statement.Context).Debug("Reassigned project", "project_id", project.ID,
		"kind", kind, "from", oldID, "to", newID)
	return nil
}

// detachAccount clears the account's project link on both sides.
func detachAccount(tx *gorm.DB, kind models.AccountKind, accountID uint) error {
	var project models.Project
	err := database.ForUpdate(tx).Where(kind.ProjectColumn()+" = ?", accountID).Take(&project).Error
	switch {
	case err == nil:
		if err := reassign(tx, &project, kind, nil); err != nil {
			return err
		}
		return saveProject(tx, &project)
	case database.IsNotFound(err):
		if _, err := lockAssignee(tx, kind, accountID); err != nil {
			return err
		}
		return setBackReference(tx, kind, accountID, nil)
	default:
		return fmt.Errorf("loading project for %s %d: %w", kind, accountID, err)
	}
}

func lockProject(tx *gorm.DB, id uint, dst *models.Project) error {
	err := database.ForUpdate(tx).First(dst, id).Error
	if database.IsNotFound(err) {
		return apperr.NotFound("project", id)
	}
	if err != nil {
		return fmt.Errorf("loading project %d: %w", id, err)
	}
	return nil
}

func lockAssignee(tx *gorm.DB, kind models.AccountKind, id uint) (*assigneeRow, error) {
	var row assigneeRow
	err := database.ForUpdate(tx.Table(kind.Table())).Select("id", "project_id").Where("id = ?", id).Take(&row).Error
	if database.IsNotFound(err) {
		return nil, apperr.NotFound(string(kind), id)
	}
	if err != nil {
		return nil, fmt.Errorf("locking %s %d: %w", kind, id, err)
	}
	return &row, nil
}

func setBackReference(tx *gorm.DB, kind models.AccountKind, accountID uint, projectID *uint) error {
	var value any
	if projectID != nil {
		value = *projectID
	}
	err := tx.Table(kind.Table()).Where("id = ?", accountID).
		Updates(map[string]any{"project_id": value, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("updating %s %d back-reference: %w", kind, accountID, err)
	}
	return nil
}

func saveProject(tx *gorm.DB, project *models.Project) error {
	if err := tx.Save(project).Error; err != nil {
		if database.IsUniqueViolation(err) {
			metrics.Conflicts.WithLabelValues(metrics.ConflictProject).Inc()
			return apperr.Conflict("assignee already linked to another project")
		}
		return fmt.Errorf("saving project %d: %w", project.ID, err)
	}
	return nil
}

func assigneeTaken(kind models.AccountKind, accountID, projectID uint) error {
	metrics.Conflicts.WithLabelValues(metrics.ConflictProject).Inc()
	return apperr.Conflict("%s %d is already assigned to project %d", kind, accountID, projectID)
}

func (c *AssignmentCoordinator) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	err := c.tm.DB(ctx).First(&p, id).Error
	if database.IsNotFound(err) {
		return nil, apperr.NotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading project %d: %w", id, err)
	}
	return &p, nil
}

// ListProjects returns projects newest first, optionally for one owner.
func (c *AssignmentCoordinator) ListProjects(ctx context.Context, ownerID uint) ([]models.Project, error) {
	q := c.tm.DB(ctx).Order("created_at DESC, id DESC")
	if ownerID != 0 {
		q = q.Where("user_id = ?", ownerID)
	}
	out := []models.Project{}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return out, nil
}
