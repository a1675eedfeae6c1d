package timesheet

import (
	"context"
	"slices"

	"timesheets/calendar"
	"timesheets/models"
)

// BatchResult reports a batch approval. Entries that were missing or changed
// concurrently are listed in Failed; the rest are in Updated.
type BatchResult struct {
	Updated []uint
	Failed  map[uint]error
}

// ListForApproval returns entries of users working at companies the principal
// approves for, ordered by date then id and capped at MaxApprovalRows.
// filter narrows the listing to one user or one week.
func (s *Service) ListForApproval(ctx context.Context, principal *models.User, filter models.EntryFilter) ([]models.Entry, error) {
	if !principal.IsApprover() && !principal.IsAdmin() {
		return nil, &AuthorizationError{PrincipalID: principal.ID, Action: "list entries for approval"}
	}
	if filter.UserID != nil {
		target, err := s.FindUser(ctx, *filter.UserID)
		if err != nil {
			return nil, err
		}
		if !principal.CanApprove(target) {
			return nil, &AuthorizationError{PrincipalID: principal.ID, Action: "list entries of this user"}
		}
	}

	companyIDs := principal.ApprovesForIDs()
	if len(companyIDs) == 0 {
		return []models.Entry{}, nil
	}

	query := s.db.WithContext(ctx).
		Preload("User.Workplace").
		Preload("Break").
		Preload("Approver").
		Joins("JOIN users ON users.id = entries.user_id").
		Where("users.workplace_id IN ?", companyIDs)

	if filter.UserID != nil {
		query = query.Where("entries.user_id = ?", *filter.UserID)
	}
	if filter.WeekEnding != nil {
		end := calendar.WeekEndingDate(*filter.WeekEnding)
		days := calendar.WeekDayDates(end)
		query = query.Where("entries.date >= ? AND entries.date < ?", days[0], end.AddDate(0, 0, 1))
	}

	var entries []models.Entry
	err := query.
		Order("entries.date asc, entries.id asc").
		Limit(MaxApprovalRows).
		Find(&entries).Error
	if err != nil {
		return nil, storageErr("list entries for approval", err)
	}
	return entries, nil
}

// Approve marks entries approved by the principal and stores the comment.
// If any existing entry belongs to someone the principal cannot approve for,
// nothing is written.
func (s *Service) Approve(ctx context.Context, principal *models.User, ids []uint, comment string) (*BatchResult, error) {
	now := s.Now()
	return s.setApproval(ctx, principal, ids, "approve entries", map[string]any{
		"is_approved": true,
		"approver_id": principal.ID,
		"approved_at": now,
		"comment":     comment,
	})
}

// Revoke clears the approval of entries and stores the comment.
func (s *Service) Revoke(ctx context.Context, principal *models.User, ids []uint, comment string) (*BatchResult, error) {
	return s.setApproval(ctx, principal, ids, "revoke approvals", map[string]any{
		"is_approved": false,
		"approver_id": nil,
		"approved_at": nil,
		"comment":     comment,
	})
}

func (s *Service) setApproval(ctx context.Context, principal *models.User, ids []uint, action string, updates map[string]any) (*BatchResult, error) {
	if !principal.IsApprover() && !principal.IsAdmin() {
		return nil, &AuthorizationError{PrincipalID: principal.ID, Action: action}
	}

	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	result := &BatchResult{Updated: []uint{}, Failed: map[uint]error{}}
	if len(ids) == 0 {
		return result, nil
	}

	var entries []models.Entry
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("id IN ?", ids).
		Find(&entries).Error
	if err != nil {
		return nil, storageErr("load entries", err)
	}

	byID := make(map[uint]models.Entry, len(entries))
	for _, e := range entries {
		if !principal.CanApprove(e.User) {
			return nil, &AuthorizationError{PrincipalID: principal.ID, Action: action}
		}
		byID[e.ID] = e
	}

	for _, id := range ids {
		entry, ok := byID[id]
		if !ok {
			result.Failed[id] = notFound("entry", id)
			continue
		}
		// an entry edited since it was read keeps its state
		res := s.db.WithContext(ctx).
			Model(&models.Entry{}).
			Where("id = ? AND modified_at = ?", id, entry.ModifiedAt).
			Updates(updates)
		if res.Error != nil {
			return result, storageErr(action, res.Error)
		}
		if res.RowsAffected == 0 {
			result.Failed[id] = &ConflictError{EntryID: id, Reason: "entry changed since it was read"}
			continue
		}
		result.Updated = append(result.Updated, id)
	}

	s.log.Info(action,
		"principal_id", principal.ID,
		"updated", len(result.Updated),
		"failed", len(result.Failed))

	return result, nil
}
