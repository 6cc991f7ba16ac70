package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"structura/apperr"
	"structura/models"
	"structura/services"
	"structura/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) *time.Time {
	t := time.Date(2024, time.January, 10, hour, minute, 0, 0, time.UTC)
	return &t
}

func dateRef(d models.Date) *models.Date { return &d }

func newLedger(t *testing.T) (*services.AttendanceLedger, *models.FieldWorker, *models.Project) {
	t.Helper()
	db := testutil.NewDB(t)
	owner := testutil.CreateOwner(t, db, "owner@structura.test", "pw")
	project := testutil.CreateProject(t, db, owner.ID, "Bayview")
	worker := testutil.CreateWorker(t, db, project.ID, "Wendy")
	return services.NewAttendanceLedger(testutil.NewTxManager(db)), worker, project
}

func TestAttendanceLedger_DayScenario(t *testing.T) {
	ctx := context.Background()
	ledger, worker, project := newLedger(t)
	day := models.NewDate(2024, time.January, 10)

	rec, err := ledger.Record(ctx, services.RecordAttendanceInput{
		FieldWorkerID:    worker.ID,
		AttendanceDate:   dateRef(day),
		AttendanceFields: services.AttendanceFields{CheckInTime: at(7, 30)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceOnSite, rec.Status)
	assert.Equal(t, project.ID, rec.ProjectID)

	rec, err = ledger.Update(ctx, rec.ID, services.AttendanceFields{BreakInTime: at(12, 0)})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceOnBreak, rec.Status)

	rec, err = ledger.UpdateByKey(ctx, worker.ID, day, services.AttendanceFields{BreakOutTime: at(13, 0)})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceOnSite, rec.Status)

	rec, err = ledger.Update(ctx, rec.ID, services.AttendanceFields{CheckOutTime: at(17, 0)})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceOnSite, rec.Status)
	require.NotNil(t, rec.CheckOutTime)
	assert.True(t, at(17, 0).Equal(*rec.CheckOutTime))

	all, err := ledger.Query(ctx, models.AttendanceFilter{FieldWorkerID: worker.ID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, day.String(), all[0].AttendanceDate.String())
}

func TestAttendanceLedger_Record(t *testing.T) {
	ctx := context.Background()
	day := models.NewDate(2024, time.January, 10)

	t.Run("Should default to absent", func(t *testing.T) {
		ledger, worker, _ := newLedger(t)
		rec, err := ledger.Record(ctx, services.RecordAttendanceInput{FieldWorkerID: worker.ID, AttendanceDate: dateRef(day)})
		require.NoError(t, err)
		assert.Equal(t, models.AttendanceAbsent, rec.Status)
	})

	t.Run("Should conflict on a second record for the same day", func(t *testing.T) {
		ledger, worker, _ := newLedger(t)
		in := services.RecordAttendanceInput{FieldWorkerID: worker.ID, AttendanceDate: dateRef(day)}
		_, err := ledger.Record(ctx, in)
		require.NoError(t, err)

		_, err = ledger.Record(ctx, in)
		require.ErrorIs(t, err, apperr.ErrConflict)

		all, err := ledger.Query(ctx, models.AttendanceFilter{FieldWorkerID: worker.ID, Date: dateRef(day)})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Should store one record under concurrent creates", func(t *testing.T) {
		ledger, worker, _ := newLedger(t)
		in := services.RecordAttendanceInput{FieldWorkerID: worker.ID, AttendanceDate: dateRef(day)}

		const n = 5
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = ledger.Record(ctx, in)
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
		all, err := ledger.Query(ctx, models.AttendanceFilter{FieldWorkerID: worker.ID})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Should reject a project the worker is not on", func(t *testing.T) {
		ledger, worker, project := newLedger(t)
		_, err := ledger.Record(ctx, services.RecordAttendanceInput{
			FieldWorkerID: worker.ID, ProjectID: project.ID + 100, AttendanceDate: dateRef(day),
		})
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "project_id")
	})

	t.Run("Should reject an unknown worker", func(t *testing.T) {
		ledger, _, _ := newLedger(t)
		_, err := ledger.Record(ctx, services.RecordAttendanceInput{FieldWorkerID: 999, AttendanceDate: dateRef(day)})
		assert.ErrorIs(t, err, apperr.ErrInvalidReference)
	})

	t.Run("Should require the date", func(t *testing.T) {
		ledger, worker, _ := newLedger(t)
		_, err := ledger.Record(ctx, services.RecordAttendanceInput{FieldWorkerID: worker.ID})
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "attendance_date")
	})

	t.Run("Should refuse a break before check-in", func(t *testing.T) {
		ledger, worker, _ := newLedger(t)
		_, err := ledger.Record(ctx, services.RecordAttendanceInput{
			FieldWorkerID:    worker.ID,
			AttendanceDate:   dateRef(day),
			AttendanceFields: services.AttendanceFields{BreakInTime: at(12, 0)},
		})
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "break_in_time")
	})

	t.Run("Should reject an unknown status", func(t *testing.T) {
		ledger, worker, _ := newLedger(t)
		bogus := models.AttendanceStatus("departed")
		_, err := ledger.Record(ctx, services.RecordAttendanceInput{
			FieldWorkerID:    worker.ID,
			AttendanceDate:   dateRef(day),
			AttendanceFields: services.AttendanceFields{Status: &bogus},
		})
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestAttendanceLedger_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("Should report a missing record", func(t *testing.T) {
		ledger, worker, _ := newLedger(t)
		_, err := ledger.Update(ctx, 404, services.AttendanceFields{})
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = ledger.UpdateByKey(ctx, worker.ID, models.NewDate(2024, time.March, 1), services.AttendanceFields{})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Should apply an explicit status before timestamps", func(t *testing.T) {
		ledger, worker, _ := newLedger(t)
		rec, err := ledger.Record(ctx, services.RecordAttendanceInput{
			FieldWorkerID: worker.ID, AttendanceDate: dateRef(models.NewDate(2024, time.January, 11)),
		})
		require.NoError(t, err)

		absent := models.AttendanceAbsent
		rec, err = ledger.Update(ctx, rec.ID, services.AttendanceFields{Status: &absent, CheckInTime: at(8, 0)})
		require.NoError(t, err)
		assert.Equal(t, models.AttendanceOnSite, rec.Status)
	})
}

func TestAttendanceLedger_Query(t *testing.T) {
	ctx := context.Background()
	ledger, worker, project := newLedger(t)

	for _, d := range []int{3, 1, 2} {
		_, err := ledger.Record(ctx, services.RecordAttendanceInput{
			FieldWorkerID: worker.ID, AttendanceDate: dateRef(models.NewDate(2024, time.February, d)),
		})
		require.NoError(t, err)
	}

	all, err := ledger.Query(ctx, models.AttendanceFilter{ProjectID: project.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-02-03", all[0].AttendanceDate.String())
	assert.Equal(t, "2024-02-02", all[1].AttendanceDate.String())
	assert.Equal(t, "2024-02-01", all[2].AttendanceDate.String())

	one, err := ledger.Query(ctx, models.AttendanceFilter{Date: dateRef(models.NewDate(2024, time.February, 2))})
	require.NoError(t, err)
	require.Len(t, one, 1)

	none, err := ledger.Query(ctx, models.AttendanceFilter{ProjectID: project.ID + 1})
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, ledger.Delete(ctx, one[0].ID))
	assert.ErrorIs(t, ledger.Delete(ctx, one[0].ID), apperr.ErrNotFound)
}
