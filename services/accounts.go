package services

import (
	"context"
	"fmt"

	"structura/apperr"
	"structura/database"
	"structura/metrics"
	"structura/models"

	"gorm.io/gorm"
)

// AccountService writes the three account tables. Secrets go through the
// models' save hooks; project links go through the assignment coordinator.
type AccountService struct {
	tm *database.TxManager
}

func NewAccountService(tm *database.TxManager) *AccountService {
	return &AccountService{tm: tm}
}

type OwnerInput struct {
	Email      string       `json:"email" validate:"required,email,max=100"`
	Password   string       `json:"password" validate:"required,min=6,max=72"`
	FirstName  string       `json:"first_name" validate:"required,max=100"`
	MiddleName *string      `json:"middle_name" validate:"omitempty,max=100"`
	LastName   string       `json:"last_name" validate:"required,max=100"`
	Birthdate  *models.Date `json:"birthdate"`
	Phone      *string      `json:"phone" validate:"omitempty,max=20"`
	RegionID   *uint        `json:"region"`
	ProvinceID *uint        `json:"province"`
	CityID     *uint        `json:"city"`
	BarangayID *uint        `json:"barangay"`
	Street     *string      `json:"street" validate:"omitempty,max=200"`
	Role       models.Role  `json:"role" validate:"omitempty,oneof=SuperAdmin ProjectManager"`
	Status     string       `json:"status" validate:"omitempty,oneof=Active Inactive Suspended"`
}

type OwnerPatch struct {
	Email      *string      `json:"email" validate:"omitempty,email,max=100"`
	Password   *string      `json:"password" validate:"omitempty,min=6,max=72"`
	FirstName  *string      `json:"first_name" validate:"omitempty,min=1,max=100"`
	MiddleName *string      `json:"middle_name" validate:"omitempty,max=100"`
	LastName   *string      `json:"last_name" validate:"omitempty,min=1,max=100"`
	Birthdate  *models.Date `json:"birthdate"`
	Phone      *string      `json:"phone" validate:"omitempty,max=20"`
	RegionID   *uint        `json:"region"`
	ProvinceID *uint        `json:"province"`
	CityID     *uint        `json:"city"`
	BarangayID *uint        `json:"barangay"`
	Street     *string      `json:"street" validate:"omitempty,max=200"`
	Role       *models.Role `json:"role" validate:"omitempty,oneof=SuperAdmin ProjectManager"`
	Status     *string      `json:"status" validate:"omitempty,oneof=Active Inactive Suspended"`
}

// AssigneeInput creates a supervisor or a client.
type AssigneeInput struct {
	Email       string            `json:"email" validate:"required,email,max=100"`
	Password    string            `json:"password" validate:"required,min=6,max=72"`
	FirstName   string            `json:"first_name" validate:"required,max=100"`
	MiddleName  *string           `json:"middle_name" validate:"omitempty,max=100"`
	LastName    string            `json:"last_name" validate:"required,max=100"`
	PhoneNumber string            `json:"phone_number" validate:"max=20"`
	Birthdate   *models.Date      `json:"birthdate"`
	Status      string            `json:"status"`
	ProjectID   models.NullableID `json:"project_id"`
}

type AssigneePatch struct {
	Email       *string           `json:"email" validate:"omitempty,email,max=100"`
	Password    *string           `json:"password" validate:"omitempty,min=6,max=72"`
	FirstName   *string           `json:"first_name" validate:"omitempty,min=1,max=100"`
	MiddleName  *string           `json:"middle_name" validate:"omitempty,max=100"`
	LastName    *string           `json:"last_name" validate:"omitempty,min=1,max=100"`
	PhoneNumber *string           `json:"phone_number" validate:"omitempty,max=20"`
	Birthdate   *models.Date      `json:"birthdate"`
	Status      *string           `json:"status"`
	ProjectID   models.NullableID `json:"project_id"`
}

func (s *AccountService) CreateOwner(ctx context.Context, in OwnerInput) (*models.User, error) {
	if err := apperr.Validate(&in); err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        in.Email,
		PasswordHash: in.Password,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		Birthdate:    in.Birthdate,
		Phone:        in.Phone,
		RegionID:     in.RegionID,
		ProvinceID:   in.ProvinceID,
		CityID:       in.CityID,
		BarangayID:   in.BarangayID,
		Street:       in.Street,
		Role:         in.Role,
		Status:       models.UserStatus(in.Status),
	}
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		return createAccount(tx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AccountService) UpdateOwner(ctx context.Context, id uint, patch OwnerPatch) (*models.User, error) {
	if err := apperr.Validate(&patch); err != nil {
		return nil, err
	}
	var u models.User
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		u = models.User{}
		if err := lockAccount(tx, models.KindUser, id, &u); err != nil {
			return err
		}
		setIf(&u.Email, patch.Email)
		setIf(&u.PasswordHash, patch.Password)
		setIf(&u.FirstName, patch.FirstName)
		setIf(&u.LastName, patch.LastName)
		setIf(&u.Role, patch.Role)
		if patch.Status != nil {
			u.Status = models.UserStatus(*patch.Status)
		}
		setPtrIf(&u.MiddleName, patch.MiddleName)
		setPtrIf(&u.Birthdate, patch.Birthdate)
		setPtrIf(&u.Phone, patch.Phone)
		setPtrIf(&u.RegionID, patch.RegionID)
		setPtrIf(&u.ProvinceID, patch.ProvinceID)
		setPtrIf(&u.CityID, patch.CityID)
		setPtrIf(&u.BarangayID, patch.BarangayID)
		setPtrIf(&u.Street, patch.Street)
		return saveAccount(tx, &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateAssignee inserts a supervisor or client and, when project_id is
// given, links it in the same transaction.
func (s *AccountService) CreateAssignee(ctx context.Context, kind models.AccountKind, in AssigneeInput) (models.Account, error) {
	if err := apperr.Validate(&in); err != nil {
		return nil, err
	}
	if err := validateAssigneeStatus(kind, in.Status); err != nil {
		return nil, err
	}
	var acc models.Account
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		acc = newAssignee(kind, in)
		if err := createAccount(tx, acc); err != nil {
			return err
		}
		id := acc.Ref().ID
		if err := assignAccountTx(tx, kind, id, in.ProjectID); err != nil {
			return err
		}
		if in.ProjectID.Set {
			return tx.First(acc, id).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// UpdateAssignee applies patch to a supervisor or client. The project link
// is settled first so locks follow the project-then-account order.
func (s *AccountService) UpdateAssignee(ctx context.Context, kind models.AccountKind, id uint, patch AssigneePatch) (models.Account, error) {
	if err := apperr.Validate(&patch); err != nil {
		return nil, err
	}
	if patch.Status != nil {
		if err := validateAssigneeStatus(kind, *patch.Status); err != nil {
			return nil, err
		}
	}
	var acc models.Account
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := assignAccountTx(tx, kind, id, patch.ProjectID); err != nil {
			return err
		}
		acc = emptyAccount(kind)
		if err := lockAccount(tx, kind, id, acc); err != nil {
			return err
		}
		applyAssigneePatch(acc, patch)
		return saveAccount(tx, acc)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// GetAccount loads one account of the given kind.
func (s *AccountService) GetAccount(ctx context.Context, kind models.AccountKind, id uint) (models.Account, error) {
	acc := emptyAccount(kind)
	if acc == nil {
		return nil, apperr.NewValidationError("type", "unknown account type")
	}
	err := s.tm.DB(ctx).First(acc, id).Error
	if database.IsNotFound(err) {
		return nil, apperr.NotFound(string(kind), id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s %d: %w", kind, id, err)
	}
	return acc, nil
}

// ListAccounts returns every account of the given kind ordered by id.
func (s *AccountService) ListAccounts(ctx context.Context, kind models.AccountKind) (any, error) {
	db := s.tm.DB(ctx).Order("id")
	switch kind {
	case models.KindUser:
		return findAll[models.User](db)
	case models.KindSupervisor:
		return findAll[models.Supervisor](db)
	case models.KindClient:
		return findAll[models.Client](db)
	}
	return nil, apperr.NewValidationError("type", "unknown account type")
}

func findAll[T any](db *gorm.DB) ([]T, error) {
	out := []T{}
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return out, nil
}

func emptyAccount(kind models.AccountKind) models.Account {
	switch kind {
	case models.KindUser:
		return &models.User{}
	case models.KindSupervisor:
		return &models.Supervisor{}
	case models.KindClient:
		return &models.Client{}
	}
	return nil
}

func newAssignee(kind models.AccountKind, in AssigneeInput) models.Account {
	if kind == models.KindSupervisor {
		return &models.Supervisor{
			Email:        in.Email,
			PasswordHash: in.Password,
			FirstName:    in.FirstName,
			MiddleName:   in.MiddleName,
			LastName:     in.LastName,
			PhoneNumber:  in.PhoneNumber,
			Birthdate:    in.Birthdate,
			Status:       models.SupervisorStatus(in.Status),
		}
	}
	return &models.Client{
		Email:        in.Email,
		PasswordHash: in.Password,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		PhoneNumber:  in.PhoneNumber,
		Birthdate:    in.Birthdate,
		Status:       models.ClientStatus(in.Status),
	}
}

func applyAssigneePatch(acc models.Account, p AssigneePatch) {
	switch a := acc.(type) {
	case *models.Supervisor:
		setIf(&a.Email, p.Email)
		setIf(&a.PasswordHash, p.Password)
		setIf(&a.FirstName, p.FirstName)
		setIf(&a.LastName, p.LastName)
		setIf(&a.PhoneNumber, p.PhoneNumber)
		setPtrIf(&a.MiddleName, p.MiddleName)
		setPtrIf(&a.Birthdate, p.Birthdate)
		if p.Status != nil {
			a.Status = models.SupervisorStatus(*p.Status)
		}
	case *models.Client:
		setIf(&a.Email, p.Email)
		setIf(&a.PasswordHash, p.Password)
		setIf(&a.FirstName, p.FirstName)
		setIf(&a.LastName, p.LastName)
		setIf(&a.PhoneNumber, p.PhoneNumber)
		setPtrIf(&a.MiddleName, p.MiddleName)
		setPtrIf(&a.Birthdate, p.Birthdate)
		if p.Status != nil {
			a.Status = models.ClientStatus(*p.Status)
		}
	}
}

func validateAssigneeStatus(kind models.AccountKind, status string) error {
	if kind.ProjectColumn() == "" {
		return apperr.NewValidationError("type", "only supervisors and clients are assignees")
	}
	switch status {
	case "", "active", "deactivated":
		return nil
	case "fired":
		if kind == models.KindSupervisor {
			return nil
		}
	}
	return apperr.NewValidationError("status", "is not a valid "+string(kind)+" status")
}

func lockAccount(tx *gorm.DB, kind models.AccountKind, id uint, dst any) error {
	err := database.ForUpdate(tx).First(dst, id).Error
	if database.IsNotFound(err) {
		return apperr.NotFound(string(kind), id)
	}
	if err != nil {
		return fmt.Errorf("loading %s %d: %w", kind, id, err)
	}
	return nil
}

func createAccount(tx *gorm.DB, acc any) error {
	if err := tx.Create(acc).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return emailTaken()
		}
		return fmt.Errorf("creating account: %w", err)
	}
	return nil
}

func saveAccount(tx *gorm.DB, acc any) error {
	if err := tx.Save(acc).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return emailTaken()
		}
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

func emailTaken() error {
	metrics.Conflicts.WithLabelValues(metrics.ConflictEmail).Inc()
	return apperr.Conflict("email is already registered")
}
