package timesheet

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"timesheets/models"
)

func TestApproveSetsApprovalFields(t *testing.T) {
	f := newFixture(t)
	entry := f.addEntry(t, f.alice, "2024-01-03", "09:00", "17:00")

	res, err := f.svc.Approve(t.Context(), f.carol, []uint{entry.ID}, "looks right")
	require.NoError(t, err)
	assert.Equal(t, []uint{entry.ID}, res.Updated)
	assert.Empty(t, res.Failed)

	stored := f.reload(t, entry.ID)
	assert.True(t, stored.IsApproved)
	require.NotNil(t, stored.ApproverID)
	assert.Equal(t, f.carol.ID, *stored.ApproverID)
	require.NotNil(t, stored.ApprovedAt)
	assert.True(t, f.now.Equal(*stored.ApprovedAt))
	assert.Equal(t, "looks right", stored.Comment)
	assert.True(t, entry.ModifiedAt.Equal(stored.ModifiedAt))
}

func TestRevokeClearsApproval(t *testing.T) {
	f := newFixture(t)
	entry := f.addEntry(t, f.alice, "2024-01-03", "09:00", "17:00")
	_, err := f.svc.Approve(t.Context(), f.carol, []uint{entry.ID}, "ok")
	require.NoError(t, err)

	res, err := f.svc.Revoke(t.Context(), f.carol, []uint{entry.ID}, "missing break")
	require.NoError(t, err)
	assert.Equal(t, []uint{entry.ID}, res.Updated)

	stored := f.reload(t, entry.ID)
	assert.False(t, stored.IsApproved)
	assert.Nil(t, stored.ApproverID)
	assert.Nil(t, stored.ApprovedAt)
	assert.Equal(t, "missing break", stored.Comment)
}

func TestApproveOutsideScopeWritesNothing(t *testing.T) {
	f := newFixture(t)
	mine := f.addEntry(t, f.alice, "2024-01-03", "09:00", "17:00")
	theirs := f.addEntry(t, f.bob, "2024-01-03", "09:00", "17:00")

	_, err := f.svc.Approve(t.Context(), f.carol, []uint{mine.ID, theirs.ID}, "")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, f.carol.ID, authErr.PrincipalID)

	assert.False(t, f.reload(t, mine.ID).IsApproved)
	assert.False(t, f.reload(t, theirs.ID).IsApproved)
}

func TestApproveRequiresApproverRole(t *testing.T) {
	f := newFixture(t)
	entry := f.addEntry(t, f.alice, "2024-01-03", "09:00", "17:00")

	// approves_for alone grants nothing without the role
	f.alice.ApprovesFor = []models.Company{f.acme}
	_, err := f.svc.Approve(t.Context(), f.alice, []uint{entry.ID}, "")
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, f.reload(t, entry.ID).IsApproved)
}

func TestApproveReportsMissingEntries(t *testing.T) {
	f := newFixture(t)
	entry := f.addEntry(t, f.alice, "2024-01-03", "09:00", "17:00")

	res, err := f.svc.Approve(t.Context(), f.carol, []uint{4242, entry.ID, entry.ID}, "")
	require.NoError(t, err)

	assert.Equal(t, []uint{entry.ID}, res.Updated)
	require.Contains(t, res.Failed, uint(4242))
	var notFound *NotFoundError
	assert.ErrorAs(t, res.Failed[4242], &notFound)
	assert.True(t, f.reload(t, entry.ID).IsApproved)
}

func TestApproveSkipsEntryEditedConcurrently(t *testing.T) {
	f := newFixture(t)
	edited := f.addEntry(t, f.alice, "2024-01-02", "09:00", "17:00")
	other := f.addEntry(t, f.alice, "2024-01-03", "09:00", "17:00")

	// Simulate the owner saving the first entry after it was read for approval.
	var once sync.Once
	later := f.now.Add(time.Minute)
	err := f.db.Callback().Update().Before("gorm:update").Register("test:concurrent_edit", func(tx *gorm.DB) {
		once.Do(func() {
			tx.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE entries SET modified_at = ?, finished_at = ? WHERE id = ?", later, "18:00", edited.ID)
		})
	})
	require.NoError(t, err)

	res, err := f.svc.Approve(t.Context(), f.carol, []uint{edited.ID, other.ID}, "")
	require.NoError(t, err)

	assert.Equal(t, []uint{other.ID}, res.Updated)
	require.Contains(t, res.Failed, edited.ID)
	var conflict *ConflictError
	assert.ErrorAs(t, res.Failed[edited.ID], &conflict)

	stored := f.reload(t, edited.ID)
	assert.False(t, stored.IsApproved)
	assert.Equal(t, "18:00", stored.FinishedAt)
	assert.True(t, f.reload(t, other.ID).IsApproved)
}

func TestListForApprovalScope(t *testing.T) {
	f := newFixture(t)
	later := f.addEntry(t, f.alice, "2024-01-05", "09:00", "17:00")
	earlier := f.addEntry(t, f.alice, "2024-01-02", "09:00", "17:00")
	f.addEntry(t, f.bob, "2024-01-03", "09:00", "17:00")
	sameDay := f.addEntry(t, f.carol, "2024-01-05", "08:00", "16:00")

	entries, err := f.svc.ListForApproval(t.Context(), f.carol, models.EntryFilter{})
	require.NoError(t, err)

	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
		require.NotNil(t, e.User)
		assert.Equal(t, f.acme.ID, *e.User.WorkplaceID)
	}
	assert.Equal(t, []uint{earlier.ID, later.ID, sameDay.ID}, ids)
}

func TestListForApprovalFilters(t *testing.T) {
	f := newFixture(t)
	inWeek := f.addEntry(t, f.alice, "2024-01-07", "09:00", "17:00")
	f.addEntry(t, f.alice, "2024-01-08", "09:00", "17:00")
	f.addEntry(t, f.alice, "2023-12-31", "09:00", "17:00")
	f.addEntry(t, f.carol, "2024-01-03", "09:00", "17:00")

	week := mustDate(t, "2024-01-04")
	entries, err := f.svc.ListForApproval(t.Context(), f.carol, models.EntryFilter{
		UserID:     &f.alice.ID,
		WeekEnding: &week,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, inWeek.ID, entries[0].ID)

	t.Run("user outside scope", func(t *testing.T) {
		_, err := f.svc.ListForApproval(t.Context(), f.carol, models.EntryFilter{UserID: &f.bob.ID})
		var authErr *AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})
}

func TestListForApprovalIsCapped(t *testing.T) {
	f := newFixture(t)
	start := mustDate(t, "2024-01-01")
	for i := range MaxApprovalRows + 5 {
		f.addEntry(t, f.alice, start.AddDate(0, 0, i).Format("2006-01-02"), "09:00", "17:00")
	}

	entries, err := f.svc.ListForApproval(t.Context(), f.carol, models.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, MaxApprovalRows)
	for i, e := range entries {
		assert.Equal(t, start.AddDate(0, 0, i), e.Date, fmt.Sprintf("row %d", i))
	}
}

func TestListForApprovalAccess(t *testing.T) {
	f := newFixture(t)
	f.addEntry(t, f.alice, "2024-01-03", "09:00", "17:00")

	t.Run("employee", func(t *testing.T) {
		_, err := f.svc.ListForApproval(t.Context(), f.alice, models.EntryFilter{})
		var authErr *AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})
	t.Run("admin without companies", func(t *testing.T) {
		entries, err := f.svc.ListForApproval(t.Context(), f.dave, models.EntryFilter{})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
