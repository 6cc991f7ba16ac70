package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"structura/apperr"
	"structura/models"
	"structura/services"
	"structura/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPhaseService(t *testing.T) {
	ctx := context.Background()

	t.Run("Should list phases and subtasks in display order", func(t *testing.T) {
		db := testutil.NewDB(t)
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		project := testutil.CreateProject(t, db, owner.ID, "Lakeside")
		svc := services.NewPhaseService(testutil.NewTxManager(db))

		late, err := svc.CreatePhase(ctx, services.PhaseInput{ProjectID: project.ID, PhaseName: "Finishing", SortOrder: 2})
		require.NoError(t, err)
		early, err := svc.CreatePhase(ctx, services.PhaseInput{ProjectID: project.ID, PhaseName: "Foundation", SortOrder: 1})
		require.NoError(t, err)
		assert.Equal(t, models.DefaultTaskStatus, early.Status)

		_, err = svc.CreateSubtask(ctx, services.SubtaskInput{PhaseID: early.ID, Title: "Rebar", SortOrder: 2})
		require.NoError(t, err)
		_, err = svc.CreateSubtask(ctx, services.SubtaskInput{PhaseID: early.ID, Title: "Excavate", SortOrder: 1})
		require.NoError(t, err)

		phases, err := svc.ListPhases(ctx, project.ID)
		require.NoError(t, err)
		require.Len(t, phases, 2)
		assert.Equal(t, early.ID, phases[0].ID)
		assert.Equal(t, late.ID, phases[1].ID)
		require.Len(t, phases[0].Subtasks, 2)
		assert.Equal(t, "Excavate", phases[0].Subtasks[0].Title)
	})

	t.Run("Should update and cascade deletes", func(t *testing.T) {
		db := testutil.NewDB(t)
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		project := testutil.CreateProject(t, db, owner.ID, "Lakeside")
		svc := services.NewPhaseService(testutil.NewTxManager(db))
		phase, err := svc.CreatePhase(ctx, services.PhaseInput{ProjectID: project.ID, PhaseName: "Roofing"})
		require.NoError(t, err)
		st, err := svc.CreateSubtask(ctx, services.SubtaskInput{PhaseID: phase.ID, Title: "Trusses"})
		require.NoError(t, err)

		progress := 60
		st, err = svc.UpdateSubtask(ctx, st.ID, services.SubtaskPatch{Progress: &progress})
		require.NoError(t, err)
		assert.Equal(t, 60, st.Progress)

		tooMuch := 101
		_, err = svc.UpdateSubtask(ctx, st.ID, services.SubtaskPatch{Progress: &tooMuch})
		assert.True(t, apperr.IsValidation(err))

		name := "Roof"
		phase, err = svc.UpdatePhase(ctx, phase.ID, services.PhasePatch{PhaseName: &name})
		require.NoError(t, err)
		assert.Equal(t, "Roof", phase.PhaseName)

		require.NoError(t, svc.DeletePhase(ctx, phase.ID))
		subtasks, err := svc.ListSubtasks(ctx, phase.ID)
		require.NoError(t, err)
		assert.Empty(t, subtasks)
		assert.ErrorIs(t, svc.DeleteSubtask(ctx, st.ID), apperr.ErrNotFound)
	})

	t.Run("Should reject unknown parents", func(t *testing.T) {
		db := testutil.NewDB(t)
		svc := services.NewPhaseService(testutil.NewTxManager(db))

		_, err := svc.CreatePhase(ctx, services.PhaseInput{ProjectID: 9, PhaseName: "X"})
		assert.ErrorIs(t, err, apperr.ErrInvalidReference)
		_, err = svc.CreateSubtask(ctx, services.SubtaskInput{PhaseID: 9, Title: "X"})
		assert.ErrorIs(t, err, apperr.ErrInvalidReference)
		_, err = svc.GetPhase(ctx, 9)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

// lockProjectReads makes the next n reads of the projects table fail with
// SQLite's contention error.
func lockProjectReads(t *testing.T, db *gorm.DB, n int32) {
	t.Helper()
	remaining := atomic.Int32{}
	remaining.Store(n)
	err := db.Callback().Query().Before("gorm:query").Register("test:lock_projects", func(tx *gorm.DB) {
		if tx.Statement.Table == "projects" && remaining.Add(-1) >= 0 {
			_ = tx.AddError(errors.New("database is locked"))
		}
	})
	require.NoError(t, err)
}

func TestReferenceChecks_Contention(t *testing.T) {
	ctx := context.Background()

	t.Run("Should retry a reference check that hit lock contention", func(t *testing.T) {
		db := testutil.NewDB(t)
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		project := testutil.CreateProject(t, db, owner.ID, "Lakeside")
		lockProjectReads(t, db, 1)

		phase, err := services.NewPhaseService(testutil.NewTxManager(db)).
			CreatePhase(ctx, services.PhaseInput{ProjectID: project.ID, PhaseName: "Foundation"})
		require.NoError(t, err)
		assert.Equal(t, project.ID, phase.ProjectID)
	})

	t.Run("Should report exhausted retries as transient, not as a bad reference", func(t *testing.T) {
		db := testutil.NewDB(t)
		owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
		project := testutil.CreateProject(t, db, owner.ID, "Lakeside")
		lockProjectReads(t, db, 100)
		tm := testutil.NewTxManager(db)

		_, err := services.NewPhaseService(tm).
			CreatePhase(ctx, services.PhaseInput{ProjectID: project.ID, PhaseName: "Foundation"})
		require.ErrorIs(t, err, apperr.ErrTransient)
		assert.NotErrorIs(t, err, apperr.ErrInvalidReference)

		_, err = services.NewWorkforceRegistry(tm).CreateWorker(ctx, services.WorkerInput{
			ProjectID: project.ID, FirstName: "Ana", LastName: "Reyes", Role: "Mason",
		})
		require.ErrorIs(t, err, apperr.ErrTransient)
		assert.NotErrorIs(t, err, apperr.ErrInvalidReference)
	})

	t.Run("Should still report a missing project as a bad reference", func(t *testing.T) {
		db := testutil.NewDB(t)
		_, err := services.NewPhaseService(testutil.NewTxManager(db)).
			CreatePhase(ctx, services.PhaseInput{ProjectID: 404, PhaseName: "Foundation"})
		assert.ErrorIs(t, err, apperr.ErrInvalidReference)
	})
}
