package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timesheets/models"
)

// Open connects to the database named by dsn. The dialect follows the DSN:
// postgres:// and postgresql:// use PostgreSQL, mysql:// uses MySQL, and
// file: URIs, *.db paths and :memory: use SQLite.
func Open(dsn, logLevel string) (*gorm.DB, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	case strings.HasPrefix(dsn, "mysql://"):
		return mysql.Open(mysqlDSN(strings.TrimPrefix(dsn, "mysql://"))), nil
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), dsn == ":memory:":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database url %q", dsn)
}

// mysqlDSN adds the driver options the service relies on: times scanned into
// time.Time and matched rather than changed rows in RowsAffected.
func mysqlDSN(dsn string) string {
	for _, opt := range []string{"parseTime=true", "clientFoundRows=true"} {
		name, _, _ := strings.Cut(opt, "=")
		if strings.Contains(dsn, name+"=") {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + opt
		} else {
			dsn += "?" + opt
		}
	}
	return dsn
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.User{}, "Roles", &models.UserRole{}); err != nil {
		return fmt.Errorf("setup user roles: %w", err)
	}
	if err := db.SetupJoinTable(&models.User{}, "ApprovesFor", &models.ApproverCompany{}); err != nil {
		return fmt.Errorf("setup approver companies: %w", err)
	}
	err := db.AutoMigrate(
		&models.Company{},
		&models.Role{},
		&models.BreakType{},
		&models.User{},
		&models.UserRole{},
		&models.ApproverCompany{},
		&models.Entry{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
