package database

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timesheets/calendar"
	"timesheets/models"
)

//go:embed fixtures/breaks.yaml
var breaksYAML []byte

//go:embed fixtures/demo.yaml
var demoYAML []byte

var roleDescriptions = map[models.RoleName]string{
	models.RoleEmployee: "Employee",
	models.RoleApprover: "Approves timesheets of the companies assigned to them",
	models.RoleAdmin:    "Administers users, companies and breaks",
}

type breakCatalog struct {
	Breaks []struct {
		Code            string  `yaml:"code"`
		Name            string  `yaml:"name"`
		Minutes         int     `yaml:"minutes"`
		AlternativeCode *string `yaml:"alternative_code"`
	} `yaml:"breaks"`
}

type demoData struct {
	Password  string `yaml:"password"`
	Companies []struct {
		Code string `yaml:"code"`
		Name string `yaml:"name"`
	} `yaml:"companies"`
	Users []struct {
		Username  string `yaml:"username"`
		FirstName string `yaml:"first_name"`
		LastName  string `yaml:"last_name"`
	} `yaml:"users"`
}

// Seed creates the roles, the break catalog and the default admin. Rows that
// already exist are left alone.
func Seed(db *gorm.DB) error {
	if err := seedRoles(db); err != nil {
		return err
	}
	if err := seedBreaks(db); err != nil {
		return err
	}
	return seedDefaultAdmin(db)
}

func seedRoles(db *gorm.DB) error {
	roles := make([]models.Role, 0, len(models.AllRoles))
	for _, name := range models.AllRoles {
		roles = append(roles, models.Role{Name: name, Description: roleDescriptions[name]})
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&roles).Error
	if err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	return nil
}

func seedBreaks(db *gorm.DB) error {
	var catalog breakCatalog
	if err := yaml.Unmarshal(breaksYAML, &catalog); err != nil {
		return fmt.Errorf("parse break catalog: %w", err)
	}

	breaks := make([]models.BreakType, 0, len(catalog.Breaks))
	for _, b := range catalog.Breaks {
		breaks = append(breaks, models.BreakType{
			Code:            b.Code,
			Name:            b.Name,
			Minutes:         b.Minutes,
			AlternativeCode: b.AlternativeCode,
		})
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&breaks).Error
	if err != nil {
		return fmt.Errorf("seed break catalog: %w", err)
	}
	return nil
}

func seedDefaultAdmin(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	roles, err := findRoles(db, models.RoleApprover, models.RoleAdmin)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:           "admin",
		FirstName:          "Administrator",
		PasswordHash:       string(hashedPassword),
		Active:             true,
		MustChangePassword: true,
		Roles:              roles,
	}
	if err := db.Omit("Roles.*").Create(&admin).Error; err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	slog.Info("default admin user created", "username", "admin", "password", "admin")
	return nil
}

func findRoles(db *gorm.DB, names ...models.RoleName) ([]models.Role, error) {
	var roles []models.Role
	if err := db.Where("name IN ?", names).Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}
	if len(roles) != len(names) {
		return nil, fmt.Errorf("find roles %v: %d of %d present", names, len(roles), len(names))
	}
	return roles, nil
}

// SeedDemo fills an empty database with demo companies, users and one week of
// entries ending on the Sunday after today. Employees user0..user2 get the emp
// role; every other demo user approves for its own workplace and the next
// company, and admins also get the admin role. It does nothing when the demo
// users already exist.
func SeedDemo(db *gorm.DB, today time.Time) error {
	var demo demoData
	if err := yaml.Unmarshal(demoYAML, &demo); err != nil {
		return fmt.Errorf("parse demo data: %w", err)
	}
	if len(demo.Users) == 0 || len(demo.Companies) <= len(demo.Users) {
		return errors.New("demo data needs more companies than users")
	}

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", demo.Users[0].Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(demo.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		companies := make([]models.Company, 0, len(demo.Companies))
		for _, c := range demo.Companies {
			companies = append(companies, models.Company{Code: c.Code, Name: c.Name})
		}
		if err := tx.Create(&companies).Error; err != nil {
			return fmt.Errorf("create demo companies: %w", err)
		}

		emp, err := findRoles(tx, models.RoleEmployee)
		if err != nil {
			return err
		}
		approver, err := findRoles(tx, models.RoleApprover)
		if err != nil {
			return err
		}
		admin, err := findRoles(tx, models.RoleAdmin)
		if err != nil {
			return err
		}

		users := make([]models.User, 0, len(demo.Users))
		for i, u := range demo.Users {
			user := models.User{
				Username:     u.Username,
				Email:        u.Username + "@example.com",
				FirstName:    u.FirstName,
				LastName:     u.LastName,
				PasswordHash: string(hashedPassword),
				Active:       true,
				WorkplaceID:  &companies[i].ID,
			}
			switch {
			case strings.HasPrefix(u.Username, "user"):
				user.Roles = emp
			default:
				user.ApprovesFor = []models.Company{companies[i], companies[i+1]}
				user.Roles = approver
				if strings.HasPrefix(u.Username, "admin") {
					user.Roles = append(append([]models.Role{}, approver...), admin...)
				}
			}
			users = append(users, user)
		}
		if err := tx.Omit("ApprovesFor.*", "Roles.*").Create(&users).Error; err != nil {
			return fmt.Errorf("create demo users: %w", err)
		}

		var breaks []models.BreakType
		if err := tx.Order("id").Find(&breaks).Error; err != nil {
			return err
		}
		if len(breaks) == 0 {
			return errors.New("break catalog is empty")
		}

		var entries []models.Entry
		now := time.Now().UTC().Truncate(time.Microsecond)
		no := 0
		for _, user := range users {
			for _, day := range calendar.WeekDayDates(calendar.WeekEndingDate(today)) {
				entries = append(entries, models.Entry{
					Date:       day,
					UserID:     user.ID,
					BreakID:    &breaks[no%len(breaks)].ID,
					StartedAt:  calendar.FormatClock(7*60 + no*10%60),
					FinishedAt: calendar.FormatClock(16*60 + no*7%60),
					ModifiedAt: now,
				})
				no++
			}
		}
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("create demo entries: %w", err)
		}

		slog.Info("demo data created",
			"companies", len(companies),
			"users", len(users),
			"entries", len(entries))
		return nil
	})
}
