package timesheet

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"timesheets/calendar"
	"timesheets/database"
	"timesheets/models"
)

type fixture struct {
	db  *gorm.DB
	svc *Service
	now time.Time

	acme   models.Company
	globex models.Company

	alice *models.User // employee at acme
	bob   *models.User // employee at globex
	carol *models.User // approver for acme
	dave  *models.User // admin approving for nobody
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared", "silent")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Seed(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:  newTestDB(t),
		now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.db, WithClock(func() time.Time { return f.now }))

	f.acme = models.Company{Code: "ACME", Name: "Acme Ltd."}
	f.globex = models.Company{Code: "GLOBEX", Name: "Globex Ltd."}
	require.NoError(t, f.db.Create(&f.acme).Error)
	require.NoError(t, f.db.Create(&f.globex).Error)

	f.alice = f.createUser(t, "alice", &f.acme, []models.RoleName{models.RoleEmployee})
	f.bob = f.createUser(t, "bob", &f.globex, []models.RoleName{models.RoleEmployee})
	f.carol = f.createUser(t, "carol", &f.acme, []models.RoleName{models.RoleApprover}, f.acme)
	f.dave = f.createUser(t, "dave", &f.globex, []models.RoleName{models.RoleAdmin})
	return f
}

func (f *fixture) createUser(t *testing.T, username string, workplace *models.Company, roles []models.RoleName, approvesFor ...models.Company) *models.User {
	t.Helper()
	var rs []models.Role
	require.NoError(t, f.db.Where("name IN ?", roles).Find(&rs).Error)
	require.Len(t, rs, len(roles))

	user := models.User{
		Username:     username,
		PasswordHash: "x",
		FirstName:    username,
		Active:       true,
		Roles:        rs,
		ApprovesFor:  approvesFor,
	}
	if workplace != nil {
		user.WorkplaceID = &workplace.ID
	}
	require.NoError(t, f.db.Omit("Roles.*", "ApprovesFor.*").Create(&user).Error)

	loaded, err := f.svc.FindUser(t.Context(), user.ID)
	require.NoError(t, err)
	return loaded
}

func (f *fixture) breakID(t *testing.T, code string) *uint {
	t.Helper()
	var b models.BreakType
	require.NoError(t, f.db.Where("code = ?", code).First(&b).Error)
	return &b.ID
}

func (f *fixture) addEntry(t *testing.T, user *models.User, date, started, finished string) *models.Entry {
	t.Helper()
	d, err := calendar.ParseDate(date)
	require.NoError(t, err)
	entry := models.Entry{
		Date:       d,
		UserID:     user.ID,
		StartedAt:  started,
		FinishedAt: finished,
		ModifiedAt: f.svc.Now(),
	}
	require.NoError(t, f.db.Create(&entry).Error)
	return &entry
}

func (f *fixture) reload(t *testing.T, id uint) models.Entry {
	t.Helper()
	var entry models.Entry
	require.NoError(t, f.db.Preload("Break").First(&entry, id).Error)
	return entry
}

func (f *fixture) countEntries(t *testing.T, user *models.User) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Entry{}).Where("user_id = ?", user.ID).Count(&n).Error)
	return n
}

func blankWeek() []RowEdit {
	return make([]RowEdit, calendar.DaysInWeek)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.ParseDate(s)
	require.NoError(t, err)
	return d
}
