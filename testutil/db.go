// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"structura/database"
	"structura/models"
	"structura/vault"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database in t's temp dir. A single
// connection serializes transactions the way row locks do on Postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	vault.SetDefaultCost(bcrypt.MinCost)

	dsn := filepath.Join(t.TempDir(), "structura.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), database.NewConfig("silent"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// NewTxManager wraps db with a short retry budget.
func NewTxManager(db *gorm.DB) *database.TxManager {
	return database.NewTxManager(db, 2, time.Millisecond)
}

func CreateOwner(t *testing.T, db *gorm.DB, email, password string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: password, FirstName: "Olivia", LastName: "Owner"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateSupervisor(t *testing.T, db *gorm.DB, email, password string) *models.Supervisor {
	t.Helper()
	s := &models.Supervisor{Email: email, PasswordHash: password, FirstName: "Sam", LastName: "Super", PhoneNumber: "0917"}
	require.NoError(t, db.Create(s).Error)
	return s
}

func CreateClient(t *testing.T, db *gorm.DB, email, password string) *models.Client {
	t.Helper()
	c := &models.Client{Email: email, PasswordHash: password, FirstName: "Cora", LastName: "Client", PhoneNumber: "0918"}
	require.NoError(t, db.Create(c).Error)
	return c
}

// CreateProject inserts a bare project without assignees.
func CreateProject(t *testing.T, db *gorm.DB, ownerID uint, name string) *models.Project {
	t.Helper()
	p := &models.Project{
		ProjectName: name,
		UserID:      &ownerID,
		ProjectType: "Residential",
		Budget:      decimal.RequireFromString("1500000.00"),
		Status:      models.DefaultProjectStatus,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func CreateWorker(t *testing.T, db *gorm.DB, projectID uint, first string) *models.FieldWorker {
	t.Helper()
	w := &models.FieldWorker{
		ProjectID: projectID,
		FirstName: first,
		LastName:  "Worker",
		Role:      "Mason",
		Payrate:   decimal.RequireFromString("650.00"),
	}
	require.NoError(t, db.Create(w).Error)
	return w
}

// CreateSubtask inserts a phase with one subtask under projectID.
func CreateSubtask(t *testing.T, db *gorm.DB, projectID uint, title string) *models.Subtask {
	t.Helper()
	phase := &models.Phase{ProjectID: projectID, PhaseName: "Phase for " + title, Status: models.DefaultTaskStatus}
	require.NoError(t, db.Create(phase).Error)
	st := &models.Subtask{PhaseID: phase.ID, Title: title, Status: models.DefaultTaskStatus}
	require.NoError(t, db.Create(st).Error)
	return st
}
