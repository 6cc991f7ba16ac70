package services_test

import (
	"context"
	"sync"
	"testing"

	"structura/apperr"
	"structura/models"
	"structura/services"
	"structura/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func supervisorProject(t *testing.T, db *gorm.DB, id uint) *uint {
	t.Helper()
	var s models.Supervisor
	require.NoError(t, db.First(&s, id).Error)
	return s.ProjectID
}

func clientProject(t *testing.T, db *gorm.DB, id uint) *uint {
	t.Helper()
	var c models.Client
	require.NoError(t, db.First(&c, id).Error)
	return c.ProjectID
}

func requireSymmetric(t *testing.T, c *services.AssignmentCoordinator) {
	t.Helper()
	violations, err := c.VerifyAssignments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestAssignmentCoordinator_CreateProject(t *testing.T) {
	ctx := context.Background()

	t.Run("Should link both assignees to the new project", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		sup := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
		cli := testutil.CreateClient(t, db, "c1@structura.test", "pw")
		budget := decimal.RequireFromString("2500000.50")

		p, err := c.CreateProject(ctx, services.CreateProjectInput{
			ProjectName:  "Riverside Duplex",
			UserID:       &owner.ID,
			Budget:       &budget,
			SupervisorID: &sup.ID,
			ClientID:     &cli.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, models.DefaultProjectStatus, p.Status)
		assert.Equal(t, &p.ID, supervisorProject(t, db, sup.ID))
		assert.Equal(t, &p.ID, clientProject(t, db, cli.ID))

		var stored models.Project
		require.NoError(t, db.First(&stored, p.ID).Error)
		assert.True(t, budget.Equal(stored.Budget))
		requireSymmetric(t, c)
	})

	t.Run("Should require the owner id", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))

		_, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "No Owner"})
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "user_id")
	})

	t.Run("Should reject a negative budget", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		budget := decimal.NewFromInt(-1)

		_, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, Budget: &budget})
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("Should fail with not found for unknown assignees and persist nothing", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		ghost := uint(999)

		_, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, ClientID: &ghost})
		require.ErrorIs(t, err, apperr.ErrNotFound)

		var count int64
		require.NoError(t, db.Model(&models.Project{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("Should fail with not found for an unknown owner", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		ghost := uint(42)

		_, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &ghost})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestAssignmentCoordinator_ReassignScenario(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
	owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
	s1 := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
	s2 := testutil.CreateSupervisor(t, db, "s2@structura.test", "pw")

	x, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, SupervisorID: &s1.ID})
	require.NoError(t, err)
	assert.Equal(t, &x.ID, supervisorProject(t, db, s1.ID))

	x, err = c.UpdateProject(ctx, x.ID, services.ProjectPatch{SupervisorID: models.SetID(s2.ID)})
	require.NoError(t, err)
	assert.Equal(t, &s2.ID, x.SupervisorID)
	assert.Nil(t, supervisorProject(t, db, s1.ID))
	assert.Equal(t, &x.ID, supervisorProject(t, db, s2.ID))

	_, err = c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "Y", UserID: &owner.ID, SupervisorID: &s2.ID})
	require.ErrorIs(t, err, apperr.ErrConflict)

	y := testutil.CreateProject(t, db, owner.ID, "Y2")
	_, err = c.UpdateProject(ctx, y.ID, services.ProjectPatch{SupervisorID: models.SetID(s2.ID)})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, &x.ID, supervisorProject(t, db, s2.ID))

	requireSymmetric(t, c)
}

func TestAssignmentCoordinator_UpdateProject(t *testing.T) {
	ctx := context.Background()

	t.Run("Should leave omitted assignees alone", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		sup := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
		p, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, SupervisorID: &sup.ID})
		require.NoError(t, err)

		name := "Renamed"
		p, err = c.UpdateProject(ctx, p.ID, services.ProjectPatch{ProjectName: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", p.ProjectName)
		assert.Equal(t, &sup.ID, p.SupervisorID)
		assert.Equal(t, &p.ID, supervisorProject(t, db, sup.ID))
	})

	t.Run("Should unassign on explicit null", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		cli := testutil.CreateClient(t, db, "c1@structura.test", "pw")
		p, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, ClientID: &cli.ID})
		require.NoError(t, err)

		p, err = c.UpdateProject(ctx, p.ID, services.ProjectPatch{ClientID: models.ClearID()})
		require.NoError(t, err)
		assert.Nil(t, p.ClientID)
		assert.Nil(t, clientProject(t, db, cli.ID))
		requireSymmetric(t, c)
	})

	t.Run("Should roll back both sides when the second assignee fails", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		sup := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
		p := testutil.CreateProject(t, db, owner.ID, "X")

		_, err := c.UpdateProject(ctx, p.ID, services.ProjectPatch{
			SupervisorID: models.SetID(sup.ID),
			ClientID:     models.SetID(404),
		})
		require.ErrorIs(t, err, apperr.ErrNotFound)
		assert.Nil(t, supervisorProject(t, db, sup.ID))

		var stored models.Project
		require.NoError(t, db.First(&stored, p.ID).Error)
		assert.Nil(t, stored.SupervisorID)
	})

	t.Run("Should fail with not found for an unknown project", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		_, err := c.UpdateProject(ctx, 77, services.ProjectPatch{})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestAssignmentCoordinator_AssignAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("Should link from the account side", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		cli := testutil.CreateClient(t, db, "c1@structura.test", "pw")
		p := testutil.CreateProject(t, db, owner.ID, "X")

		require.NoError(t, c.AssignAccount(ctx, models.KindClient, cli.ID, models.SetID(p.ID)))
		assert.Equal(t, &p.ID, clientProject(t, db, cli.ID))
		requireSymmetric(t, c)

		require.NoError(t, c.AssignAccount(ctx, models.KindClient, cli.ID, models.ClearID()))
		assert.Nil(t, clientProject(t, db, cli.ID))
		requireSymmetric(t, c)
	})

	t.Run("Should refuse a project that already has another assignee", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		s1 := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
		s2 := testutil.CreateSupervisor(t, db, "s2@structura.test", "pw")
		p, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, SupervisorID: &s1.ID})
		require.NoError(t, err)

		err = c.AssignAccount(ctx, models.KindSupervisor, s2.ID, models.SetID(p.ID))
		require.ErrorIs(t, err, apperr.ErrConflict)
		assert.Nil(t, supervisorProject(t, db, s2.ID))
	})

	t.Run("Should move an account between projects", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		sup := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
		x, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, SupervisorID: &sup.ID})
		require.NoError(t, err)
		y := testutil.CreateProject(t, db, owner.ID, "Y")

		// Still on X, so Y cannot take it.
		require.ErrorIs(t, c.AssignAccount(ctx, models.KindSupervisor, sup.ID, models.SetID(y.ID)), apperr.ErrConflict)

		require.NoError(t, c.AssignAccount(ctx, models.KindSupervisor, sup.ID, models.ClearID()))
		require.NoError(t, c.AssignAccount(ctx, models.KindSupervisor, sup.ID, models.SetID(y.ID)))
		assert.Equal(t, &y.ID, supervisorProject(t, db, sup.ID))

		var stored models.Project
		require.NoError(t, db.First(&stored, x.ID).Error)
		assert.Nil(t, stored.SupervisorID)
		requireSymmetric(t, c)
	})

	t.Run("Should reject owner accounts", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		err := c.AssignAccount(ctx, models.KindUser, 1, models.SetID(1))
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestAssignmentCoordinator_Deletes(t *testing.T) {
	ctx := context.Background()

	t.Run("Should clear back-references when a project is deleted", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		sup := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
		cli := testutil.CreateClient(t, db, "c1@structura.test", "pw")
		p, err := c.CreateProject(ctx, services.CreateProjectInput{
			ProjectName: "X", UserID: &owner.ID, SupervisorID: &sup.ID, ClientID: &cli.ID,
		})
		require.NoError(t, err)
		worker := testutil.CreateWorker(t, db, p.ID, "Wendy")

		require.NoError(t, c.DeleteProject(ctx, p.ID))
		assert.Nil(t, supervisorProject(t, db, sup.ID))
		assert.Nil(t, clientProject(t, db, cli.ID))
		assert.ErrorIs(t, db.First(&models.FieldWorker{}, worker.ID).Error, gorm.ErrRecordNotFound)

		assert.ErrorIs(t, c.DeleteProject(ctx, p.ID), apperr.ErrNotFound)
	})

	t.Run("Should clear the project side when an assignee is deleted", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		sup := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
		p, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, SupervisorID: &sup.ID})
		require.NoError(t, err)

		require.NoError(t, c.DeleteAccount(ctx, models.KindSupervisor, sup.ID))
		var stored models.Project
		require.NoError(t, db.First(&stored, p.ID).Error)
		assert.Nil(t, stored.SupervisorID)

		assert.ErrorIs(t, c.DeleteAccount(ctx, models.KindSupervisor, sup.ID), apperr.ErrNotFound)
	})

	t.Run("Should cascade an owner's projects", func(t *testing.T) {
		db := testutil.NewDB(t)
		c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		cli := testutil.CreateClient(t, db, "c1@structura.test", "pw")
		_, err := c.CreateProject(ctx, services.CreateProjectInput{ProjectName: "X", UserID: &owner.ID, ClientID: &cli.ID})
		require.NoError(t, err)

		require.NoError(t, c.DeleteAccount(ctx, models.KindUser, owner.ID))
		var count int64
		require.NoError(t, db.Model(&models.Project{}).Count(&count).Error)
		assert.Zero(t, count)
		assert.Nil(t, clientProject(t, db, cli.ID))
	})
}

func TestAssignmentCoordinator_VerifyAssignments(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
	owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
	sup := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")
	p := testutil.CreateProject(t, db, owner.ID, "X")

	// A raw column write bypasses the coordinator and breaks the link.
	require.NoError(t, db.Model(&models.Supervisor{}).Where("id = ?", sup.ID).Update("project_id", p.ID).Error)

	violations, err := c.VerifyAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, models.KindSupervisor, violations[0].Kind)
	assert.Equal(t, sup.ID, violations[0].AccountID)
	assert.Equal(t, p.ID, violations[0].ProjectID)
}

func TestAssignmentCoordinator_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	c := services.NewAssignmentCoordinator(testutil.NewTxManager(db))
	owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
	sup := testutil.CreateSupervisor(t, db, "s1@structura.test", "pw")

	const n = 6
	projects := make([]*models.Project, n)
	for i := range projects {
		projects[i] = testutil.CreateProject(t, db, owner.ID, "P")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.UpdateProject(ctx, projects[i].ID, services.ProjectPatch{SupervisorID: models.SetID(sup.ID)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	var linked int64
	require.NoError(t, db.Model(&models.Project{}).Where("supervisor_id = ?", sup.ID).Count(&linked).Error)
	assert.Equal(t, int64(1), linked)
	requireSymmetric(t, c)
}
