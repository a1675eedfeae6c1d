package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"timesheets/middleware"
	"timesheets/models"
)

// AdminHandler manages reference data and user accounts.
type AdminHandler struct {
	db *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

type companyRequest struct {
	Code string `json:"code" validate:"required,alphanum,max=20"`
	Name string `json:"name" validate:"required,max=200"`
}

type breakRequest struct {
	Code            string  `json:"code" validate:"required,max=20"`
	Name            string  `json:"name" validate:"required,max=100"`
	Minutes         int     `json:"minutes" validate:"min=0,max=1440"`
	AlternativeCode *string `json:"alternative_code" validate:"omitempty,max=20"`
}

type createUserRequest struct {
	Username    string            `json:"username" validate:"required,min=3,max=100"`
	Password    string            `json:"password" validate:"required,min=5"`
	Email       string            `json:"email" validate:"omitempty,email"`
	FirstName   string            `json:"first_name" validate:"max=100"`
	LastName    string            `json:"last_name" validate:"max=100"`
	WorkplaceID *uint             `json:"workplace_id"`
	Roles       []models.RoleName `json:"roles" validate:"dive,oneof=emp approver admin"`
	ApprovesFor []uint            `json:"approves_for"`
}

type updateUserRequest struct {
	Email       *string            `json:"email" validate:"omitempty,email"`
	FirstName   *string            `json:"first_name" validate:"omitempty,max=100"`
	LastName    *string            `json:"last_name" validate:"omitempty,max=100"`
	Active      *bool              `json:"active"`
	// WorkplaceID 0 detaches the user from any company.
	WorkplaceID *uint              `json:"workplace_id"`
	Roles       *[]models.RoleName `json:"roles" validate:"omitempty,dive,oneof=emp approver admin"`
	ApprovesFor *[]uint            `json:"approves_for"`
	Password    *string            `json:"password" validate:"omitempty,min=5"`
}

func (h *AdminHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	var companies []models.Company
	if err := h.db.WithContext(r.Context()).Order("code").Find(&companies).Error; err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, companies)
}

func (h *AdminHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	company := models.Company{Code: req.Code, Name: req.Name}
	if err := h.db.WithContext(r.Context()).Create(&company).Error; err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, company)
}

func (h *AdminHandler) ListBreaks(w http.ResponseWriter, r *http.Request) {
	var breaks []models.BreakType
	if err := h.db.WithContext(r.Context()).Order("code").Find(&breaks).Error; err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, breaks)
}

func (h *AdminHandler) CreateBreak(w http.ResponseWriter, r *http.Request) {
	var req breakRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b := models.BreakType{
		Code:            req.Code,
		Name:            req.Name,
		Minutes:         req.Minutes,
		AlternativeCode: req.AlternativeCode,
	}
	if err := h.db.WithContext(r.Context()).Create(&b).Error; err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, b)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	err := h.db.WithContext(r.Context()).
		Preload("Roles").
		Preload("ApprovesFor").
		Preload("Workplace").
		Order("username").
		Find(&users).Error
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, users)
}

// lookupError is a reference to a row that does not exist.
type lookupError struct {
	msg string
}

func (e *lookupError) Error() string { return e.msg }

func findRoles(db *gorm.DB, names []models.RoleName) ([]models.Role, error) {
	roles := []models.Role{}
	names = slices.Compact(slices.Sorted(slices.Values(names)))
	if len(names) == 0 {
		return roles, nil
	}
	if err := db.Where("name IN ?", names).Find(&roles).Error; err != nil {
		return nil, err
	}
	if len(roles) != len(names) {
		return nil, &lookupError{msg: fmt.Sprintf("unknown role in %v", names)}
	}
	return roles, nil
}

func findCompanies(db *gorm.DB, ids []uint) ([]models.Company, error) {
	companies := []models.Company{}
	ids = slices.Compact(slices.Sorted(slices.Values(ids)))
	if len(ids) == 0 {
		return companies, nil
	}
	if err := db.Where("id IN ?", ids).Find(&companies).Error; err != nil {
		return nil, err
	}
	if len(companies) != len(ids) {
		return nil, &lookupError{msg: fmt.Sprintf("unknown company in %v", ids)}
	}
	return companies, nil
}

func checkWorkplace(db *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	_, err := findCompanies(db, []uint{*id})
	return err
}

func (h *AdminHandler) respondAdminError(w http.ResponseWriter, r *http.Request, err error) {
	var lookup *lookupError
	if errors.As(err, &lookup) {
		respondError(w, http.StatusNotFound, lookup.Error())
		return
	}
	respondServiceError(w, r, err)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	user := models.User{
		Username:           req.Username,
		PasswordHash:       string(hashedPassword),
		Email:              req.Email,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Active:             true,
		MustChangePassword: true,
		WorkplaceID:        req.WorkplaceID,
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := checkWorkplace(tx, req.WorkplaceID); err != nil {
			return err
		}
		roles, err := findRoles(tx, req.Roles)
		if err != nil {
			return err
		}
		companies, err := findCompanies(tx, req.ApprovesFor)
		if err != nil {
			return err
		}
		user.Roles = roles
		user.ApprovesFor = companies
		return tx.Omit("Roles.*", "ApprovesFor.*").Create(&user).Error
	})
	if err != nil {
		h.respondAdminError(w, r, err)
		return
	}

	admin := middleware.GetUserFromContext(r.Context())
	slog.InfoContext(r.Context(), "user created", "user_id", user.ID, "username", user.Username, "by", admin.ID)
	respondData(w, http.StatusCreated, user)
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &lookupError{msg: fmt.Sprintf("user %d not found", id)}
			}
			return err
		}

		updates := map[string]any{}
		if req.Email != nil {
			updates["email"] = *req.Email
		}
		if req.FirstName != nil {
			updates["first_name"] = *req.FirstName
		}
		if req.LastName != nil {
			updates["last_name"] = *req.LastName
		}
		if req.Active != nil {
			updates["active"] = *req.Active
		}
		switch {
		case req.WorkplaceID == nil:
		case *req.WorkplaceID == 0:
			updates["workplace_id"] = nil
		default:
			if err := checkWorkplace(tx, req.WorkplaceID); err != nil {
				return err
			}
			updates["workplace_id"] = *req.WorkplaceID
		}
		if req.Password != nil {
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			updates["password_hash"] = string(hashedPassword)
			updates["must_change_password"] = true
		}
		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
		}

		if req.Roles != nil {
			roles, err := findRoles(tx, *req.Roles)
			if err != nil {
				return err
			}
			if err := tx.Model(&user).Association("Roles").Replace(roles); err != nil {
				return err
			}
		}
		if req.ApprovesFor != nil {
			companies, err := findCompanies(tx, *req.ApprovesFor)
			if err != nil {
				return err
			}
			if err := tx.Model(&user).Association("ApprovesFor").Replace(companies); err != nil {
				return err
			}
		}

		user = models.User{}
		return tx.Preload("Roles").Preload("ApprovesFor").Preload("Workplace").First(&user, id).Error
	})
	if err != nil {
		h.respondAdminError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, user)
}
