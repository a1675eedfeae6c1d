// Package timesheet reconciles a user's sparse entries into a seven-day week,
// applies submitted week edits and runs the approval workflow.
package timesheet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"timesheets/models"
)

// MaxApprovalRows caps approval listings; callers page by week.
const MaxApprovalRows = 100

// Service carries the storage handle, clock and logger every operation runs
// against. The acting principal is passed to each call.
type Service struct {
	db  *gorm.DB
	now func() time.Time
	log *slog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:  db,
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC, truncated to what every supported
// database keeps of a timestamp.
func (s *Service) Now() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// FindUser loads a user with roles, approval companies and workplace.
func (s *Service) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Roles").
		Preload("ApprovesFor").
		Preload("Workplace").
		First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, storageErr("find user", err)
	}
	return &user, nil
}

// ListBreakTypes returns the break catalog ordered by code.
func (s *Service) ListBreakTypes(ctx context.Context) ([]models.BreakType, error) {
	var breaks []models.BreakType
	if err := s.db.WithContext(ctx).Order("code").Find(&breaks).Error; err != nil {
		return nil, storageErr("list break types", err)
	}
	return breaks, nil
}

func (s *Service) breaksByCode(ctx context.Context) (map[string]models.BreakType, error) {
	breaks, err := s.ListBreakTypes(ctx)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]models.BreakType, len(breaks))
	for _, b := range breaks {
		if b.AlternativeCode != nil {
			byCode[*b.AlternativeCode] = b
		}
	}
	// primary codes win over alternative ones
	for _, b := range breaks {
		byCode[b.Code] = b
	}
	return byCode, nil
}
